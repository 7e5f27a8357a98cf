package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/event"
	"github.com/pavelanni/certexam/internal/generation"
	"github.com/pavelanni/certexam/internal/model"
	"github.com/pavelanni/certexam/internal/moderation"
)

// MaxBatchCount bounds the instances generated per template in one batch.
const MaxBatchCount = 100

type generatedEvent struct {
	GeneratedExamID string `json:"generatedExamId"`
	ExamID          string `json:"examId"`
	Version         int    `json:"version"`
	Questions       int    `json:"questions"`
}

// Generate samples a new instance of the latest version of examID, stores it
// with its answer key and returns the client-safe exam.
func (s *Service) Generate(ctx context.Context, examID primitive.ObjectID) (model.GeneratedExam, error) {
	if s.Maintenance() {
		return model.GeneratedExam{}, apperr.New(apperr.CodeMaintenance, "generation paused for maintenance")
	}

	tmpl, err := s.repo.GetTemplate(ctx, examID)
	if err != nil {
		return model.GeneratedExam{}, fmt.Errorf("load template: %w", err)
	}
	if tmpl.Deprecated {
		return model.GeneratedExam{}, apperr.New(apperr.CodeTemplateDeprecated, "exam %s is deprecated", examID.Hex())
	}
	mod, err := s.repo.GetModeration(ctx, examID)
	if apperr.IsNotFound(err) {
		return model.GeneratedExam{}, apperr.New(apperr.CodeTemplateNotApproved, "exam %s has no moderation record", examID.Hex())
	}
	if err != nil {
		return model.GeneratedExam{}, fmt.Errorf("load moderation: %w", err)
	}
	if err := moderation.RequireApproved(mod, tmpl.Version); err != nil {
		return model.GeneratedExam{}, err
	}

	res, err := s.gen.Generate(tmpl)
	if err != nil {
		return model.GeneratedExam{}, err
	}
	res.Exam.CreatedAtInMS = s.now().UnixMilli()
	if err := s.repo.SaveGeneratedExam(ctx, res.Exam, res.Key); err != nil {
		return model.GeneratedExam{}, fmt.Errorf("save generated exam: %w", err)
	}

	out := generation.Project(res)
	slog.Info("generated exam",
		"generated_exam_id", out.ID.Hex(),
		"exam_id", examID.Hex(),
		"version", out.Version,
		"questions", out.QuestionCount(),
	)
	s.publish(ctx, event.ExamGenerated, generatedEvent{
		GeneratedExamID: out.ID.Hex(),
		ExamID:          examID.Hex(),
		Version:         out.Version,
		Questions:       out.QuestionCount(),
	})
	return out, nil
}

// BatchResult counts the outcome of batch generation for one template.
type BatchResult struct {
	ExamID    primitive.ObjectID `json:"examId"`
	Completed int                `json:"completed"`
	Failed    int                `json:"failed"`
	LastError string             `json:"lastError,omitempty"`
}

// GenerateBatch generates count instances of every template in examIDs with
// at most concurrency generations in flight. A failing template does not stop
// the others.
func (s *Service) GenerateBatch(ctx context.Context, examIDs []primitive.ObjectID, count, concurrency int) ([]BatchResult, error) {
	if count < 1 || count > MaxBatchCount {
		return nil, apperr.New(apperr.CodeInvalidRequest, "count %d not in [1, %d]", count, MaxBatchCount)
	}
	if len(examIDs) == 0 {
		return nil, apperr.New(apperr.CodeInvalidRequest, "no exams selected")
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]BatchResult, len(examIDs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range examIDs {
		results[i].ExamID = id
		for n := 0; n < count; n++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				_, err := s.Generate(gctx, id)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					results[i].Failed++
					results[i].LastError = err.Error()
					return nil
				}
				results[i].Completed++
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	for _, r := range results {
		slog.Info("batch generation finished", "exam_id", r.ExamID.Hex(), "completed", r.Completed, "failed", r.Failed)
	}
	return results, nil
}
