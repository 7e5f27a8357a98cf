package store

import (
	"context"
	"database/sql"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/model"
)

// SaveAttemptRecord stores the audit record of a submission.
func (s *Store) SaveAttemptRecord(ctx context.Context, r model.AttemptRecord) error {
	body, err := encode(r.Attempt)
	if err != nil {
		return fmt.Errorf("encode attempt: %w", err)
	}
	var score sql.NullString
	if r.Score != nil {
		enc, err := encode(r.Score)
		if err != nil {
			return fmt.Errorf("encode score: %w", err)
		}
		score = sql.NullString{String: enc, Valid: true}
	}
	a := r.Attempt
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exam_attempts (id, user_id, exam_id, generated_exam_id, start_time_ms, verdict, error_code, score, body, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.Hex(), a.UserID, a.ExamID.Hex(), a.GeneratedExamID.Hex(), a.StartTimeInMS,
		r.Verdict, r.ErrorCode, score, body, millis(r.RecordedAt),
	)
	if isConstraint(err) {
		return apperr.New(apperr.CodeDuplicateAttempt, "attempt %s already recorded", a.ID.Hex())
	}
	return err
}

// ListCountingAttempts returns the user's accepted and expired attempts on examID.
func (s *Store) ListCountingAttempts(ctx context.Context, userID string, examID primitive.ObjectID) ([]model.ExamAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM exam_attempts
		 WHERE user_id = ? AND exam_id = ? AND verdict IN (?, ?)
		 ORDER BY start_time_ms`,
		userID, examID.Hex(), model.VerdictAccepted, model.VerdictExpired,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ExamAttempt
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var a model.ExamAttempt
		if err := decode(body, &a); err != nil {
			return nil, fmt.Errorf("decode attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListAttemptRecords returns every attempt record in recording order.
func (s *Store) ListAttemptRecords(ctx context.Context) ([]model.AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body, verdict, error_code, score, recorded_at FROM exam_attempts ORDER BY recorded_at, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AttemptRecord
	for rows.Next() {
		var (
			r        model.AttemptRecord
			body     string
			score    sql.NullString
			recorded int64
		)
		if err := rows.Scan(&body, &r.Verdict, &r.ErrorCode, &score, &recorded); err != nil {
			return nil, err
		}
		if err := decode(body, &r.Attempt); err != nil {
			return nil, fmt.Errorf("decode attempt: %w", err)
		}
		if score.Valid {
			r.Score = &model.ScoreResult{}
			if err := decode(score.String, r.Score); err != nil {
				return nil, fmt.Errorf("decode score: %w", err)
			}
		}
		r.RecordedAt = fromMillis(recorded)
		out = append(out, r)
	}
	return out, rows.Err()
}
