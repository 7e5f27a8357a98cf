package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/model"
)

// SaveGeneratedExam stores a generated exam and its answer key in one
// transaction. A key is written once and never updated.
func (s *Store) SaveGeneratedExam(ctx context.Context, exam model.GeneratedExam, key model.AnswerKey) error {
	if key.GeneratedExamID != exam.ID {
		return fmt.Errorf("answer key belongs to %s, not %s", key.GeneratedExamID.Hex(), exam.ID.Hex())
	}
	examBody, err := encode(exam)
	if err != nil {
		return fmt.Errorf("encode generated exam: %w", err)
	}
	keyBody, err := encode(key)
	if err != nil {
		return fmt.Errorf("encode answer key: %w", err)
	}

	created := exam.CreatedAtInMS
	if created == 0 {
		created = millis(time.Now())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO generated_exams (id, exam_id, version, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		exam.ID.Hex(), exam.ExamID.Hex(), exam.Version, examBody, created,
	)
	if isConstraint(err) {
		return apperr.New(apperr.CodeInvalidRequest, "generated exam %s already stored", exam.ID.Hex())
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO answer_keys (generated_exam_id, body) VALUES (?, ?)`,
		exam.ID.Hex(), keyBody,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// GetGeneratedExam returns the client-safe exam.
func (s *Store) GetGeneratedExam(ctx context.Context, id primitive.ObjectID) (model.GeneratedExam, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM generated_exams WHERE id = ?`, id.Hex()).Scan(&body)
	if err != nil {
		return model.GeneratedExam{}, notFound(err, "generated exam %s", id.Hex())
	}
	var exam model.GeneratedExam
	return exam, decode(body, &exam)
}

// GetAnswerKey returns the answer key of a generated exam.
func (s *Store) GetAnswerKey(ctx context.Context, generatedExamID primitive.ObjectID) (model.AnswerKey, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM answer_keys WHERE generated_exam_id = ?`, generatedExamID.Hex(),
	).Scan(&body)
	if err != nil {
		return model.AnswerKey{}, notFound(err, "answer key for %s", generatedExamID.Hex())
	}
	var key model.AnswerKey
	return key, decode(body, &key)
}

// GeneratedExamCount returns the number of generated exams of a template.
func (s *Store) GeneratedExamCount(ctx context.Context, examID primitive.ObjectID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generated_exams WHERE exam_id = ?`, examID.Hex()).Scan(&n)
	return n, err
}
