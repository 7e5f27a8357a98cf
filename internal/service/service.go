// Package service wires the exam engine to persistence and events. It owns
// the per-user locking that makes "check cooldown, then record attempt" atomic.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/generation"
	"github.com/pavelanni/certexam/internal/keylock"
	"github.com/pavelanni/certexam/internal/model"
)

// Repository persists templates, moderation records, generated exams with
// their answer keys, and attempt audit records. Lookups of missing records
// fail with apperr.ErrNotFound; re-recording an attempt ID fails with
// apperr.ErrDuplicateAttempt.
type Repository interface {
	SaveTemplate(ctx context.Context, t model.ExamTemplate) error
	GetTemplate(ctx context.Context, id primitive.ObjectID) (model.ExamTemplate, error)
	GetTemplateVersion(ctx context.Context, id primitive.ObjectID, version int) (model.ExamTemplate, error)
	ListTemplates(ctx context.Context) ([]model.ExamTemplate, error)

	GetModeration(ctx context.Context, examID primitive.ObjectID) (model.Moderation, error)
	SaveModeration(ctx context.Context, m model.Moderation) error
	// ListModerations filters by status; "" returns every record.
	ListModerations(ctx context.Context, status model.ModerationStatus) ([]model.Moderation, error)

	SaveGeneratedExam(ctx context.Context, exam model.GeneratedExam, key model.AnswerKey) error
	GetGeneratedExam(ctx context.Context, id primitive.ObjectID) (model.GeneratedExam, error)
	GetAnswerKey(ctx context.Context, generatedExamID primitive.ObjectID) (model.AnswerKey, error)
	GeneratedExamCount(ctx context.Context, examID primitive.ObjectID) (int, error)

	SaveAttemptRecord(ctx context.Context, r model.AttemptRecord) error
	// ListCountingAttempts returns the user's attempts on examID whose verdict
	// starts a retake cooldown.
	ListCountingAttempts(ctx context.Context, userID string, examID primitive.ObjectID) ([]model.ExamAttempt, error)
	ListAttemptRecords(ctx context.Context) ([]model.AttemptRecord, error)
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Service is the caller-facing exam engine.
type Service struct {
	repo   Repository
	gen    *generation.Generator
	cfg    model.EngineConfig
	locks  *keylock.Locker
	events Publisher
	now    func() time.Time

	mu          sync.RWMutex
	maintenance bool
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sends domain events to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithGenerator replaces the sampler built from the engine config.
func WithGenerator(g *generation.Generator) Option {
	return func(s *Service) { s.gen = g }
}

// New creates a Service.
func New(repo Repository, cfg model.EngineConfig, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		cfg:   cfg,
		locks: keylock.New(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.gen == nil {
		s.gen = generation.NewFromConfig(cfg)
	}
	return s
}

// SetMaintenance toggles maintenance mode. While on, generation and
// submission are refused.
func (s *Service) SetMaintenance(on bool) {
	s.mu.Lock()
	s.maintenance = on
	s.mu.Unlock()
	slog.Info("maintenance mode changed", "enabled", on)
}

// Maintenance reports whether maintenance mode is on.
func (s *Service) Maintenance() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maintenance
}

func (s *Service) publish(ctx context.Context, eventType string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, eventType, payload); err != nil {
		slog.Warn("publish event failed", "type", eventType, "error", err)
	}
}
