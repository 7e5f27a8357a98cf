package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/pavelanni/certexam/internal/apperr"
)

func ptr(v int64) *int64 { return &v }

func validConfig() ExamConfig {
	cfg := DefaultConfig()
	cfg.Name = "Responsive Web Design"
	cfg.QuestionSets = []QuestionSetQuota{{
		Type:                     QuestionTypeMultipleChoice,
		NumberOfSet:              1,
		NumberOfQuestions:        2,
		NumberOfCorrectAnswers:   1,
		NumberOfIncorrectAnswers: 3,
	}}
	return cfg
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ExamConfig)
		wantErr string
	}{
		{name: "default shape is valid", mutate: func(*ExamConfig) {}},
		{name: "no mirrors is valid", mutate: func(c *ExamConfig) {
			c.TotalTimeInS, c.RetakeTimeInS = nil, nil
		}},
		{name: "mirror rounds", mutate: func(c *ExamConfig) {
			c.TotalTimeInMS = 1500
			c.TotalTimeInS = ptr(2)
		}},
		{name: "passing zero", mutate: func(c *ExamConfig) { c.PassingPercent = 0 }},
		{name: "passing hundred", mutate: func(c *ExamConfig) { c.PassingPercent = 100 }},
		{name: "passing above range", mutate: func(c *ExamConfig) { c.PassingPercent = 100.5 }, wantErr: "passingPercent"},
		{name: "passing negative", mutate: func(c *ExamConfig) { c.PassingPercent = -1 }, wantErr: "passingPercent"},
		{name: "zero total time", mutate: func(c *ExamConfig) {
			c.TotalTimeInMS = 0
			c.TotalTimeInS = nil
		}, wantErr: "totalTimeInMS"},
		{name: "negative retake time", mutate: func(c *ExamConfig) {
			c.RetakeTimeInMS = -5
			c.RetakeTimeInS = nil
		}, wantErr: "retakeTimeInMS"},
		{name: "mirror mismatch", mutate: func(c *ExamConfig) { c.TotalTimeInS = ptr(60) }, wantErr: "totalTimeInS"},
		{name: "retake mirror mismatch", mutate: func(c *ExamConfig) { c.RetakeTimeInS = ptr(1) }, wantErr: "retakeTimeInS"},
		{name: "no quotas", mutate: func(c *ExamConfig) { c.QuestionSets = nil }, wantErr: "at least one quota"},
		{name: "unknown type", mutate: func(c *ExamConfig) { c.QuestionSets[0].Type = "Essay" }, wantErr: "unknown type"},
		{name: "zero sets", mutate: func(c *ExamConfig) { c.QuestionSets[0].NumberOfSet = 0 }, wantErr: "numberOfSet"},
		{name: "zero correct answers", mutate: func(c *ExamConfig) { c.QuestionSets[0].NumberOfCorrectAnswers = 0 }, wantErr: "numberOfCorrectAnswers"},
		{name: "zero incorrect answers", mutate: func(c *ExamConfig) { c.QuestionSets[0].NumberOfIncorrectAnswers = 0 }, wantErr: "numberOfIncorrectAnswers"},
		{name: "tags cover questions", mutate: func(c *ExamConfig) {
			c.Tags = []TagQuota{{Group: []string{"css"}, NumberOfQuestions: 1}, {Group: []string{"html"}, NumberOfQuestions: 1}}
		}},
		{name: "tags short of questions", mutate: func(c *ExamConfig) {
			c.Tags = []TagQuota{{Group: []string{"css"}, NumberOfQuestions: 1}}
		}, wantErr: "tag quotas cover 1 of 2"},
		{name: "empty tag group", mutate: func(c *ExamConfig) {
			c.Tags = []TagQuota{{NumberOfQuestions: 2}}
		}, wantErr: "empty group"},
		{name: "zero tag count", mutate: func(c *ExamConfig) {
			c.Tags = []TagQuota{{Group: []string{"css"}, NumberOfQuestions: 0}, {Group: []string{"html"}, NumberOfQuestions: 2}}
		}, wantErr: "tags[0]: numberOfQuestions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !errors.Is(err, apperr.ErrConfigInvalid) {
				t.Errorf("expected ConfigInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateConfigReportsAllViolations(t *testing.T) {
	cfg := validConfig()
	cfg.PassingPercent = 120
	cfg.TotalTimeInS = ptr(1)
	cfg.QuestionSets[0].NumberOfQuestions = 0

	err := ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"passingPercent", "totalTimeInS", "numberOfQuestions"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidateConfigIsPure(t *testing.T) {
	cfg := validConfig()
	cfg.PassingPercent = 101

	first := ValidateConfig(cfg)
	second := ValidateConfig(cfg)
	if first == nil || second == nil || first.Error() != second.Error() {
		t.Errorf("validation not repeatable: %v vs %v", first, second)
	}
	if cfg.PassingPercent != 101 {
		t.Errorf("config mutated by validation")
	}
}

func TestModerationApprovedFor(t *testing.T) {
	m := Moderation{Version: 2, Status: ModerationApproved}
	if !m.ApprovedFor(2) {
		t.Errorf("expected approval of version 2")
	}
	if m.ApprovedFor(3) {
		t.Errorf("stale approval honored for version 3")
	}
	m.Status = ModerationPending
	if m.ApprovedFor(2) {
		t.Errorf("pending record treated as approved")
	}
}

func TestParseExpiryPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    ExpiryPolicy
		wantErr bool
	}{
		{"", ExpiryScore, false},
		{"score", ExpiryScore, false},
		{" Reject ", ExpiryReject, false},
		{"discard", "", true},
	}
	for _, tt := range tests {
		got, err := ParseExpiryPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseExpiryPolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseExpiryPolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
