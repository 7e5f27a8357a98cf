// Package mongostore is the MongoDB implementation of the exam repository.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	colTemplates      = "exam_templates"
	colModerations    = "moderations"
	colGeneratedExams = "generated_exams"
	colAnswerKeys     = "answer_keys"
	colAttempts       = "exam_attempts"
	colMetadata       = "exam_metadata"
)

// Store keeps one collection per record kind.
type Store struct {
	client *mongo.Client

	templates  *mongo.Collection
	moderation *mongo.Collection
	exams      *mongo.Collection
	keys       *mongo.Collection
	attempts   *mongo.Collection
	metadata   *mongo.Collection
}

// New connects to uri, pings the server and ensures indexes on database.
func New(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &Store{
		client:     client,
		templates:  db.Collection(colTemplates),
		moderation: db.Collection(colModerations),
		exams:      db.Collection(colGeneratedExams),
		keys:       db.Collection(colAnswerKeys),
		attempts:   db.Collection(colAttempts),
		metadata:   db.Collection(colMetadata),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	if _, err := s.templates.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "examId", Value: 1}, {Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := s.exams.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "examId", Value: 1}},
	}); err != nil {
		return err
	}
	_, err := s.attempts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "attempt.userId", Value: 1}, {Key: "attempt.examId", Value: 1}},
	})
	return err
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor) ([]T, error) {
	defer cur.Close(ctx)
	var out []T
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, cur.Err()
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
