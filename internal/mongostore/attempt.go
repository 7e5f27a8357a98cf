package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/model"
)

type attemptDoc struct {
	ID                  primitive.ObjectID `bson:"_id"`
	model.AttemptRecord `bson:",inline"`
}

// SaveAttemptRecord stores the audit record of a submission.
func (s *Store) SaveAttemptRecord(ctx context.Context, r model.AttemptRecord) error {
	_, err := s.attempts.InsertOne(ctx, attemptDoc{ID: r.Attempt.ID, AttemptRecord: r})
	if mongo.IsDuplicateKeyError(err) {
		return apperr.New(apperr.CodeDuplicateAttempt, "attempt %s already recorded", r.Attempt.ID.Hex())
	}
	return err
}

// ListCountingAttempts returns the user's accepted and expired attempts on examID.
func (s *Store) ListCountingAttempts(ctx context.Context, userID string, examID primitive.ObjectID) ([]model.ExamAttempt, error) {
	cur, err := s.attempts.Find(ctx, bson.M{
		"attempt.userId": userID,
		"attempt.examId": examID,
		"verdict":        bson.M{"$in": bson.A{model.VerdictAccepted, model.VerdictExpired}},
	}, options.Find().SetSort(bson.D{{Key: "attempt.startTimeInMS", Value: 1}}))
	if err != nil {
		return nil, err
	}
	docs, err := decodeAll[attemptDoc](ctx, cur)
	if err != nil {
		return nil, err
	}
	out := make([]model.ExamAttempt, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Attempt)
	}
	return out, nil
}

// ListAttemptRecords returns every attempt record in recording order.
func (s *Store) ListAttemptRecords(ctx context.Context) ([]model.AttemptRecord, error) {
	cur, err := s.attempts.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "recordedAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	docs, err := decodeAll[attemptDoc](ctx, cur)
	if err != nil {
		return nil, err
	}
	out := make([]model.AttemptRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.AttemptRecord)
	}
	return out, nil
}
