package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/attempt"
	"github.com/pavelanni/certexam/internal/event"
	"github.com/pavelanni/certexam/internal/model"
	"github.com/pavelanni/certexam/internal/scoring"
)

type submittedEvent struct {
	AttemptID       string  `json:"attemptId"`
	UserID          string  `json:"userId"`
	ExamID          string  `json:"examId"`
	GeneratedExamID string  `json:"generatedExamId"`
	Verdict         string  `json:"verdict"`
	ErrorCode       string  `json:"errorCode,omitempty"`
	Percent         float64 `json:"percent"`
	Passed          bool    `json:"passed"`
}

// Submit validates and grades an attempt. An attempt without an ID gets a
// fresh one, reported in ScoreResult.AttemptID. Every submission that names a
// known generated exam is recorded, including rejected ones.
func (s *Service) Submit(ctx context.Context, a model.ExamAttempt) (model.ScoreResult, error) {
	if s.Maintenance() {
		return model.ScoreResult{}, apperr.New(apperr.CodeMaintenance, "submissions paused for maintenance")
	}
	if a.UserID == "" {
		return model.ScoreResult{}, apperr.New(apperr.CodeInvalidRequest, "attempt has no user")
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}

	unlock, err := s.locks.Lock(ctx, "attempt/"+a.UserID+"/"+a.ExamID.Hex())
	if err != nil {
		return model.ScoreResult{}, err
	}
	defer unlock()

	exam, err := s.repo.GetGeneratedExam(ctx, a.GeneratedExamID)
	if apperr.IsNotFound(err) {
		return model.ScoreResult{}, apperr.New(apperr.CodeUnknownReference, "unknown generated exam %s", a.GeneratedExamID.Hex())
	}
	if err != nil {
		return model.ScoreResult{}, fmt.Errorf("load generated exam: %w", err)
	}
	tmpl, err := s.repo.GetTemplateVersion(ctx, exam.ExamID, exam.Version)
	if err != nil {
		return model.ScoreResult{}, fmt.Errorf("load template version: %w", err)
	}
	mod, err := s.repo.GetModeration(ctx, exam.ExamID)
	if err != nil && !apperr.IsNotFound(err) {
		return model.ScoreResult{}, fmt.Errorf("load moderation: %w", err)
	}
	priors, err := s.repo.ListCountingAttempts(ctx, a.UserID, a.ExamID)
	if err != nil {
		return model.ScoreResult{}, fmt.Errorf("load prior attempts: %w", err)
	}

	now := s.now()
	verdict, verr := attempt.Validate(attempt.Input{
		Attempt:    a,
		Exam:       exam,
		Config:     tmpl.Config,
		Priors:     priors,
		Moderation: mod,
		Now:        now,
		Policy:     s.cfg.ExpiryPolicy,
	})

	rec := model.AttemptRecord{Attempt: a, RecordedAt: now}
	if verr != nil {
		rec.Verdict = model.VerdictRejected
		rec.ErrorCode = string(apperr.CodeOf(verr))
		if err := s.record(ctx, rec); err != nil {
			return model.ScoreResult{}, err
		}
		slog.Info("attempt rejected", "attempt_id", a.ID.Hex(), "user_id", a.UserID, "code", rec.ErrorCode)
		return model.ScoreResult{}, verr
	}

	key, err := s.repo.GetAnswerKey(ctx, exam.ID)
	if err != nil {
		return model.ScoreResult{}, fmt.Errorf("load answer key: %w", err)
	}
	score := scoring.Score(a, key, tmpl.Config)
	rec.Verdict = model.VerdictAccepted
	if verdict.Expired {
		score = scoring.MarkExpired(score)
		rec.Verdict = model.VerdictExpired
	}
	rec.Score = &score
	if err := s.record(ctx, rec); err != nil {
		return model.ScoreResult{}, err
	}

	slog.Info("attempt graded",
		"attempt_id", a.ID.Hex(),
		"user_id", a.UserID,
		"exam_id", a.ExamID.Hex(),
		"percent", score.Percent,
		"passed", score.Passed,
		"expired", score.Expired,
	)
	return score, nil
}

func (s *Service) record(ctx context.Context, rec model.AttemptRecord) error {
	if err := s.repo.SaveAttemptRecord(ctx, rec); err != nil {
		if errors.Is(err, apperr.ErrDuplicateAttempt) {
			return err
		}
		return fmt.Errorf("save attempt record: %w", err)
	}
	ev := submittedEvent{
		AttemptID:       rec.Attempt.ID.Hex(),
		UserID:          rec.Attempt.UserID,
		ExamID:          rec.Attempt.ExamID.Hex(),
		GeneratedExamID: rec.Attempt.GeneratedExamID.Hex(),
		Verdict:         string(rec.Verdict),
		ErrorCode:       rec.ErrorCode,
	}
	if rec.Score != nil {
		ev.Percent = rec.Score.Percent
		ev.Passed = rec.Score.Passed
	}
	s.publish(ctx, event.AttemptSubmitted, ev)
	return nil
}
