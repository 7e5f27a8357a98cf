package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/model"
)

// SaveTemplate inserts a template version. Stored versions are never replaced.
func (s *Store) SaveTemplate(ctx context.Context, t model.ExamTemplate) error {
	body, err := encode(t)
	if err != nil {
		return fmt.Errorf("encode template: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exam_templates (id, version, name, deprecated, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID.Hex(), t.Version, t.Config.Name, t.Deprecated, body, millis(time.Now()),
	)
	if isConstraint(err) {
		return apperr.New(apperr.CodeInvalidRequest, "exam %s version %d already stored", t.ID.Hex(), t.Version)
	}
	return err
}

// GetTemplate returns the latest version of a template.
func (s *Store) GetTemplate(ctx context.Context, id primitive.ObjectID) (model.ExamTemplate, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM exam_templates WHERE id = ? ORDER BY version DESC LIMIT 1`, id.Hex(),
	).Scan(&body)
	if err != nil {
		return model.ExamTemplate{}, notFound(err, "exam %s", id.Hex())
	}
	var t model.ExamTemplate
	return t, decode(body, &t)
}

// GetTemplateVersion returns one stored version of a template.
func (s *Store) GetTemplateVersion(ctx context.Context, id primitive.ObjectID, version int) (model.ExamTemplate, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM exam_templates WHERE id = ? AND version = ?`, id.Hex(), version,
	).Scan(&body)
	if err != nil {
		return model.ExamTemplate{}, notFound(err, "exam %s version %d", id.Hex(), version)
	}
	var t model.ExamTemplate
	return t, decode(body, &t)
}

// ListTemplates returns the latest version of every template, oldest first.
func (s *Store) ListTemplates(ctx context.Context) ([]model.ExamTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.body FROM exam_templates t
		JOIN (SELECT id, MAX(version) AS version, MIN(created_at) AS first FROM exam_templates GROUP BY id) latest
		  ON t.id = latest.id AND t.version = latest.version
		ORDER BY latest.first, t.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var templates []model.ExamTemplate
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var t model.ExamTemplate
		if err := decode(body, &t); err != nil {
			return nil, fmt.Errorf("decode template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}
