package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pavelanni/certexam/internal/apperr"
)

// Store is the SQLite implementation of the exam repository.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exam_templates (
		id TEXT NOT NULL,
		version INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		deprecated INTEGER NOT NULL DEFAULT 0,
		body TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (id, version)
	);

	CREATE TABLE IF NOT EXISTS moderations (
		exam_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		feedback TEXT NOT NULL DEFAULT '',
		moderator_id TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS generated_exams (
		id TEXT PRIMARY KEY,
		exam_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		body TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (exam_id, version) REFERENCES exam_templates(id, version)
	);

	CREATE TABLE IF NOT EXISTS answer_keys (
		generated_exam_id TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		FOREIGN KEY (generated_exam_id) REFERENCES generated_exams(id)
	);

	CREATE TABLE IF NOT EXISTS exam_attempts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		exam_id TEXT NOT NULL,
		generated_exam_id TEXT NOT NULL,
		start_time_ms INTEGER NOT NULL,
		verdict TEXT NOT NULL,
		error_code TEXT NOT NULL DEFAULT '',
		score TEXT,
		body TEXT NOT NULL,
		recorded_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_exam_attempts_user_exam ON exam_attempts(user_id, exam_id);

	CREATE TABLE IF NOT EXISTS exam_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT:
		return true
	}
	return false
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(apperr.CodeNotFound, format, args...)
	}
	return err
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decode(body string, v any) error {
	return json.Unmarshal([]byte(body), v)
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
