package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/event"
	"github.com/pavelanni/certexam/internal/model"
	"github.com/pavelanni/certexam/internal/moderation"
)

type templateEvent struct {
	ExamID  string `json:"examId"`
	Name    string `json:"name"`
	Version int    `json:"version"`
}

// CreateTemplate stores t as version 1 with a pending moderation record.
func (s *Service) CreateTemplate(ctx context.Context, t model.ExamTemplate) (model.ExamTemplate, error) {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	t.Version = 1
	normalizeTemplate(&t)
	if err := model.ValidateConfig(t.Config); err != nil {
		return model.ExamTemplate{}, err
	}

	if err := s.repo.SaveTemplate(ctx, t); err != nil {
		return model.ExamTemplate{}, fmt.Errorf("save template: %w", err)
	}
	if err := s.repo.SaveModeration(ctx, moderation.New(t.ID, t.Version, s.now())); err != nil {
		return model.ExamTemplate{}, fmt.Errorf("save moderation: %w", err)
	}

	slog.Info("created exam template", "exam_id", t.ID.Hex(), "name", t.Config.Name)
	s.publish(ctx, event.ExamCreated, templateEvent{ExamID: t.ID.Hex(), Name: t.Config.Name, Version: t.Version})
	return t, nil
}

// UpdateTemplate stores t as a new version of an existing template. Earlier
// versions stay untouched and the moderation record moves to the new version.
func (s *Service) UpdateTemplate(ctx context.Context, t model.ExamTemplate) (model.ExamTemplate, error) {
	unlock, err := s.locks.Lock(ctx, "template/"+t.ID.Hex())
	if err != nil {
		return model.ExamTemplate{}, err
	}
	defer unlock()

	cur, err := s.repo.GetTemplate(ctx, t.ID)
	if err != nil {
		return model.ExamTemplate{}, fmt.Errorf("load template: %w", err)
	}
	t.Version = cur.Version + 1
	normalizeTemplate(&t)
	if err := model.ValidateConfig(t.Config); err != nil {
		return model.ExamTemplate{}, err
	}

	mod, err := s.repo.GetModeration(ctx, t.ID)
	if apperr.IsNotFound(err) {
		mod = moderation.New(t.ID, cur.Version, s.now())
	} else if err != nil {
		return model.ExamTemplate{}, fmt.Errorf("load moderation: %w", err)
	}
	mod, err = moderation.Edit(mod, t.Version, s.now())
	if err != nil {
		return model.ExamTemplate{}, err
	}

	if err := s.repo.SaveTemplate(ctx, t); err != nil {
		return model.ExamTemplate{}, fmt.Errorf("save template: %w", err)
	}
	if err := s.repo.SaveModeration(ctx, mod); err != nil {
		return model.ExamTemplate{}, fmt.Errorf("save moderation: %w", err)
	}

	slog.Info("updated exam template", "exam_id", t.ID.Hex(), "version", t.Version, "moderation", mod.Status)
	s.publish(ctx, event.ExamUpdated, templateEvent{ExamID: t.ID.Hex(), Name: t.Config.Name, Version: t.Version})
	return t, nil
}

// GetTemplate returns the latest version of a template.
func (s *Service) GetTemplate(ctx context.Context, id primitive.ObjectID) (model.ExamTemplate, error) {
	return s.repo.GetTemplate(ctx, id)
}

// ListTemplates returns the latest version of every template.
func (s *Service) ListTemplates(ctx context.Context) ([]model.ExamTemplate, error) {
	return s.repo.ListTemplates(ctx)
}

func normalizeTemplate(t *model.ExamTemplate) {
	if t.QuestionSets == nil {
		t.QuestionSets = []model.QuestionSet{}
	}
	if t.Prerequisites == nil {
		t.Prerequisites = []primitive.ObjectID{}
	}
	if t.Config.Tags == nil {
		t.Config.Tags = []model.TagQuota{}
	}
	if t.Config.TotalTimeInMS == 0 && t.Config.TotalTimeInS == nil {
		t.Config.TotalTimeInMS = model.DefaultTotalTimeInMS
	}
	if t.Config.RetakeTimeInMS == 0 && t.Config.RetakeTimeInS == nil {
		t.Config.RetakeTimeInMS = model.DefaultRetakeTimeInMS
	}
}
