package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/event"
	"github.com/pavelanni/certexam/internal/model"
	"github.com/pavelanni/certexam/internal/moderation"
)

// Moderate applies a review transition to the template's moderation record.
// A zero req.Version targets the record's current version.
func (s *Service) Moderate(ctx context.Context, examID primitive.ObjectID, req moderation.Request) (model.Moderation, error) {
	unlock, err := s.locks.Lock(ctx, "template/"+examID.Hex())
	if err != nil {
		return model.Moderation{}, err
	}
	defer unlock()

	cur, err := s.repo.GetModeration(ctx, examID)
	if err != nil {
		return model.Moderation{}, fmt.Errorf("load moderation: %w", err)
	}
	if req.Version == 0 {
		req.Version = cur.Version
	}
	next, err := moderation.Transition(cur, req, s.now())
	if err != nil {
		return model.Moderation{}, err
	}
	if err := s.repo.SaveModeration(ctx, next); err != nil {
		return model.Moderation{}, fmt.Errorf("save moderation: %w", err)
	}

	slog.Info("moderation updated", "exam_id", examID.Hex(), "version", next.Version,
		"from", cur.Status, "to", next.Status, "moderator", next.ModeratorID)
	s.publish(ctx, event.ModerationUpdated, next)
	return next, nil
}

// GetModeration returns the moderation record of a template.
func (s *Service) GetModeration(ctx context.Context, examID primitive.ObjectID) (model.Moderation, error) {
	return s.repo.GetModeration(ctx, examID)
}

// ListModerations returns moderation records, optionally filtered by status.
func (s *Service) ListModerations(ctx context.Context, status model.ModerationStatus) ([]model.Moderation, error) {
	return s.repo.ListModerations(ctx, status)
}
