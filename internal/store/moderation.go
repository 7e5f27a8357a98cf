package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/model"
)

// SaveModeration upserts the moderation record of a template.
func (s *Store) SaveModeration(ctx context.Context, m model.Moderation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO moderations (exam_id, version, status, feedback, moderator_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(exam_id) DO UPDATE SET
		   version = excluded.version,
		   status = excluded.status,
		   feedback = excluded.feedback,
		   moderator_id = excluded.moderator_id,
		   updated_at = excluded.updated_at`,
		m.ExamID.Hex(), m.Version, m.Status, m.Feedback, m.ModeratorID, millis(m.UpdatedAt),
	)
	return err
}

// GetModeration returns the moderation record of a template.
func (s *Store) GetModeration(ctx context.Context, examID primitive.ObjectID) (model.Moderation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT exam_id, version, status, feedback, moderator_id, updated_at FROM moderations WHERE exam_id = ?`,
		examID.Hex(),
	)
	m, err := scanModeration(row)
	if err != nil {
		return model.Moderation{}, notFound(err, "moderation for exam %s", examID.Hex())
	}
	return m, nil
}

// ListModerations returns moderation records with the given status, or all when status is "".
func (s *Store) ListModerations(ctx context.Context, status model.ModerationStatus) ([]model.Moderation, error) {
	query := `SELECT exam_id, version, status, feedback, moderator_id, updated_at FROM moderations WHERE 1=1`
	var args []any
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at, exam_id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Moderation
	for rows.Next() {
		m, err := scanModeration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanModeration(sc scanner) (model.Moderation, error) {
	var (
		m       model.Moderation
		examID  string
		updated int64
	)
	if err := sc.Scan(&examID, &m.Version, &m.Status, &m.Feedback, &m.ModeratorID, &updated); err != nil {
		return model.Moderation{}, err
	}
	id, err := primitive.ObjectIDFromHex(examID)
	if err != nil {
		return model.Moderation{}, err
	}
	m.ExamID = id
	m.UpdatedAt = fromMillis(updated)
	return m, nil
}
