package attempt

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/model"
)

const (
	start  int64 = 1_760_000_000_000
	hour   int64 = 60 * 60 * 1000
	budget       = 2 * hour
	retake       = 24 * hour
)

type fixture struct {
	exam model.GeneratedExam
	in   Input
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	examID := primitive.NewObjectID()
	exam := model.GeneratedExam{ID: primitive.NewObjectID(), ExamID: examID, Version: 3, CreatedAtInMS: start - 60_000}
	for s := 0; s < 2; s++ {
		set := model.GeneratedQuestionSet{ID: primitive.NewObjectID(), Type: model.QuestionTypeMultipleChoice}
		for q := 0; q < 2; q++ {
			set.Questions = append(set.Questions, model.GeneratedQuestion{
				ID:         primitive.NewObjectID(),
				QuestionID: primitive.NewObjectID(),
				Answers:    []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()},
			})
		}
		exam.QuestionSets = append(exam.QuestionSets, set)
	}

	a := model.ExamAttempt{
		ID:              primitive.NewObjectID(),
		UserID:          "user-1",
		ExamID:          examID,
		GeneratedExamID: exam.ID,
		StartTimeInMS:   start,
		Version:         1,
	}
	for _, s := range exam.QuestionSets {
		sa := model.QuestionSetAttempt{ID: s.ID}
		for _, q := range s.Questions {
			sa.Questions = append(sa.Questions, model.QuestionAttempt{
				ID:                 q.ID,
				Answers:            []primitive.ObjectID{q.Answers[0]},
				SubmissionTimeInMS: start + hour,
			})
		}
		a.QuestionSets = append(a.QuestionSets, sa)
	}

	cfg := model.DefaultConfig()
	cfg.TotalTimeInMS = budget
	cfg.RetakeTimeInMS = retake

	return &fixture{
		exam: exam,
		in: Input{
			Attempt:    a,
			Exam:       exam,
			Config:     cfg,
			Moderation: model.Moderation{ExamID: examID, Version: 3, Status: model.ModerationApproved},
			Now:        time.UnixMilli(start + hour),
			Policy:     model.ExpiryScore,
		},
	}
}

func wantCode(t *testing.T, err error, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

func TestValidateAccepts(t *testing.T) {
	f := newFixture(t)
	v, err := Validate(f.in)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.Expired {
		t.Errorf("attempt within budget flagged expired")
	}
	if v.Elapsed != time.Hour {
		t.Errorf("Elapsed = %s, want 1h", v.Elapsed)
	}
}

func TestValidatePartialAttempt(t *testing.T) {
	f := newFixture(t)
	f.in.Attempt.QuestionSets = f.in.Attempt.QuestionSets[:1]
	f.in.Attempt.QuestionSets[0].Questions = f.in.Attempt.QuestionSets[0].Questions[:1]
	if _, err := Validate(f.in); err != nil {
		t.Fatalf("unanswered questions should not be a structural error: %v", err)
	}
}

func TestValidateStructure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fixture)
	}{
		{"unknown set", func(f *fixture) { f.in.Attempt.QuestionSets[0].ID = primitive.NewObjectID() }},
		{"unknown question", func(f *fixture) { f.in.Attempt.QuestionSets[0].Questions[0].ID = primitive.NewObjectID() }},
		{"question under wrong set", func(f *fixture) {
			f.in.Attempt.QuestionSets[0].Questions[0].ID = f.exam.QuestionSets[1].Questions[0].ID
		}},
		{"answer not presented", func(f *fixture) {
			f.in.Attempt.QuestionSets[1].Questions[1].Answers = []primitive.ObjectID{primitive.NewObjectID()}
		}},
		{"set answered twice", func(f *fixture) {
			f.in.Attempt.QuestionSets = append(f.in.Attempt.QuestionSets, f.in.Attempt.QuestionSets[0])
		}},
		{"question answered twice", func(f *fixture) {
			qs := f.in.Attempt.QuestionSets[0].Questions
			f.in.Attempt.QuestionSets[0].Questions = append(qs, qs[0])
		}},
		{"different generated exam", func(f *fixture) { f.in.Attempt.GeneratedExamID = primitive.NewObjectID() }},
		{"different template", func(f *fixture) { f.in.Attempt.ExamID = primitive.NewObjectID() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(f)
			_, err := Validate(f.in)
			wantCode(t, err, apperr.ErrUnknownReference)
		})
	}
}

func TestValidateStructureCheckedFirst(t *testing.T) {
	f := newFixture(t)
	f.in.Attempt.QuestionSets[0].ID = primitive.NewObjectID()
	f.in.Moderation.Status = model.ModerationRejected
	f.in.Priors = []model.ExamAttempt{{ID: primitive.NewObjectID(), UserID: "user-1", ExamID: f.in.Attempt.ExamID, StartTimeInMS: start}}

	_, err := Validate(f.in)
	wantCode(t, err, apperr.ErrUnknownReference)
}

func TestValidateExpiry(t *testing.T) {
	tests := []struct {
		name        string
		offset      int64
		policy      model.ExpiryPolicy
		wantExpired bool
		wantErr     error
	}{
		{"at budget", budget, model.ExpiryScore, false, nil},
		{"over budget scored", budget + 1, model.ExpiryScore, true, nil},
		{"over budget rejected", budget + 1, model.ExpiryReject, false, apperr.ErrExpired},
		{"at budget reject policy", budget, model.ExpiryReject, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.in.Policy = tt.policy
			f.in.Attempt.QuestionSets[1].Questions[0].SubmissionTimeInMS = start + tt.offset
			f.in.Now = time.UnixMilli(start + tt.offset)
			v, err := Validate(f.in)
			if tt.wantErr != nil {
				wantCode(t, err, tt.wantErr)
				return
			}
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if v.Expired != tt.wantExpired {
				t.Errorf("Expired = %v, want %v", v.Expired, tt.wantExpired)
			}
		})
	}
}

func TestValidateRetakeCooldown(t *testing.T) {
	prior := func(f *fixture, startMS int64) model.ExamAttempt {
		return model.ExamAttempt{
			ID:            primitive.NewObjectID(),
			UserID:        "user-1",
			ExamID:        f.in.Attempt.ExamID,
			StartTimeInMS: startMS,
		}
	}
	// The fixture submits at start+hour.
	const now = start + hour

	t.Run("one millisecond early", func(t *testing.T) {
		f := newFixture(t)
		t0 := now - retake + 1
		f.in.Priors = []model.ExamAttempt{prior(f, t0)}
		_, err := Validate(f.in)
		wantCode(t, err, apperr.ErrRetakeTooSoon)
		at, ok := apperr.EarliestEligible(err)
		if !ok || at.UnixMilli() != t0+retake {
			t.Errorf("EarliestEligible = %v, want %v", at, time.UnixMilli(t0+retake))
		}
	})

	t.Run("exactly at cooldown", func(t *testing.T) {
		f := newFixture(t)
		f.in.Priors = []model.ExamAttempt{prior(f, now-retake)}
		if _, err := Validate(f.in); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})

	t.Run("latest prior decides", func(t *testing.T) {
		f := newFixture(t)
		f.in.Priors = []model.ExamAttempt{prior(f, now-retake-48*hour), prior(f, now-hour), prior(f, now-retake-100*hour)}
		_, err := Validate(f.in)
		wantCode(t, err, apperr.ErrRetakeTooSoon)
	})

	t.Run("other users and templates ignored", func(t *testing.T) {
		f := newFixture(t)
		other := prior(f, now-hour)
		other.UserID = "user-2"
		otherExam := prior(f, now-hour)
		otherExam.ExamID = primitive.NewObjectID()
		self := prior(f, now-hour)
		self.ID = f.in.Attempt.ID
		f.in.Priors = []model.ExamAttempt{other, otherExam, self}
		if _, err := Validate(f.in); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})
}

func TestValidateTimestamps(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fixture)
	}{
		{"start after server time", func(f *fixture) {
			f.in.Attempt.StartTimeInMS = f.in.Now.UnixMilli() + 1
		}},
		{"start before exam was generated", func(f *fixture) {
			f.in.Attempt.StartTimeInMS = f.exam.CreatedAtInMS - 1
		}},
		{"start at epoch", func(f *fixture) {
			f.in.Attempt.StartTimeInMS = 0
			for i := range f.in.Attempt.QuestionSets {
				for j := range f.in.Attempt.QuestionSets[i].Questions {
					f.in.Attempt.QuestionSets[i].Questions[j].SubmissionTimeInMS = 1000
				}
			}
		}},
		{"submission before start", func(f *fixture) {
			f.in.Attempt.QuestionSets[0].Questions[1].SubmissionTimeInMS = start - 1
		}},
		{"submission in the future", func(f *fixture) {
			f.in.Attempt.QuestionSets[1].Questions[1].SubmissionTimeInMS = f.in.Now.UnixMilli() + 1
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(f)
			_, err := Validate(f.in)
			wantCode(t, err, apperr.ErrInvalidRequest)
		})
	}
}

func TestValidateModeration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Moderation)
	}{
		{"pending", func(m *model.Moderation) { m.Status = model.ModerationPending }},
		{"rejected", func(m *model.Moderation) { m.Status = model.ModerationRejected }},
		{"stale approval", func(m *model.Moderation) { m.Version = 2 }},
		{"other template", func(m *model.Moderation) { m.ExamID = primitive.NewObjectID() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(&f.in.Moderation)
			_, err := Validate(f.in)
			wantCode(t, err, apperr.ErrTemplateNotApproved)
		})
	}
}
