package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/pavelanni/certexam/internal/apperr"
)

// ValidateConfig checks a template config and reports every violation at once
// as a single ConfigInvalid error.
func ValidateConfig(cfg ExamConfig) error {
	var errs []error

	if math.IsNaN(cfg.PassingPercent) || cfg.PassingPercent < 0 || cfg.PassingPercent > 100 {
		errs = append(errs, fmt.Errorf("passingPercent %v not in [0, 100]", cfg.PassingPercent))
	}
	errs = append(errs, checkDuration("totalTime", cfg.TotalTimeInMS, cfg.TotalTimeInS)...)
	errs = append(errs, checkDuration("retakeTime", cfg.RetakeTimeInMS, cfg.RetakeTimeInS)...)

	tagTotal := 0
	for i, tq := range cfg.Tags {
		if len(tq.Group) == 0 {
			errs = append(errs, fmt.Errorf("tags[%d]: empty group", i))
		}
		for _, tag := range tq.Group {
			if tag == "" {
				errs = append(errs, fmt.Errorf("tags[%d]: blank tag name", i))
				break
			}
		}
		if tq.NumberOfQuestions < 1 {
			errs = append(errs, fmt.Errorf("tags[%d]: numberOfQuestions %d < 1", i, tq.NumberOfQuestions))
			continue
		}
		tagTotal += tq.NumberOfQuestions
	}

	if len(cfg.QuestionSets) == 0 {
		errs = append(errs, errors.New("questionSets: at least one quota required"))
	}
	for i, q := range cfg.QuestionSets {
		if !q.Type.Valid() {
			errs = append(errs, fmt.Errorf("questionSets[%d]: unknown type %q", i, q.Type))
		}
		for _, c := range []struct {
			name string
			n    int
		}{
			{"numberOfSet", q.NumberOfSet},
			{"numberOfQuestions", q.NumberOfQuestions},
			{"numberOfCorrectAnswers", q.NumberOfCorrectAnswers},
			{"numberOfIncorrectAnswers", q.NumberOfIncorrectAnswers},
		} {
			if c.n < 1 {
				errs = append(errs, fmt.Errorf("questionSets[%d]: %s %d < 1", i, c.name, c.n))
			}
		}
		if len(cfg.Tags) > 0 && tagTotal < q.NumberOfQuestions {
			errs = append(errs, fmt.Errorf("questionSets[%d]: tag quotas cover %d of %d questions",
				i, tagTotal, q.NumberOfQuestions))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return apperr.Wrap(apperr.CodeConfigInvalid, errors.Join(errs...), "invalid exam config")
}

func checkDuration(name string, ms int64, seconds *int64) []error {
	var errs []error
	if ms <= 0 {
		errs = append(errs, fmt.Errorf("%sInMS %d must be positive", name, ms))
	}
	if seconds != nil {
		if want := int64(math.Round(float64(ms) / 1000)); *seconds != want {
			errs = append(errs, fmt.Errorf("%sInS %d does not match %sInMS %d (want %d)",
				name, *seconds, name, ms, want))
		}
	}
	return errs
}
