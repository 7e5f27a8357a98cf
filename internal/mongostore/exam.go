package mongostore

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/model"
)

// SaveGeneratedExam stores a generated exam and its answer key. The exam is
// removed again when the key cannot be written, so no exam exists without a key.
func (s *Store) SaveGeneratedExam(ctx context.Context, exam model.GeneratedExam, key model.AnswerKey) error {
	if key.GeneratedExamID != exam.ID {
		return fmt.Errorf("answer key belongs to %s, not %s", key.GeneratedExamID.Hex(), exam.ID.Hex())
	}
	_, err := s.exams.InsertOne(ctx, exam)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.New(apperr.CodeInvalidRequest, "generated exam %s already stored", exam.ID.Hex())
	}
	if err != nil {
		return err
	}
	if _, err := s.keys.InsertOne(ctx, key); err != nil {
		if _, derr := s.exams.DeleteOne(ctx, bson.M{"_id": exam.ID}); derr != nil {
			slog.Error("failed to remove generated exam without key", "generated_exam_id", exam.ID.Hex(), "error", derr)
		}
		return fmt.Errorf("save answer key: %w", err)
	}
	return nil
}

func (s *Store) GetGeneratedExam(ctx context.Context, id primitive.ObjectID) (model.GeneratedExam, error) {
	var exam model.GeneratedExam
	err := s.exams.FindOne(ctx, bson.M{"_id": id}).Decode(&exam)
	if isNoDocuments(err) {
		return model.GeneratedExam{}, apperr.New(apperr.CodeNotFound, "generated exam %s", id.Hex())
	}
	return exam, err
}

func (s *Store) GetAnswerKey(ctx context.Context, generatedExamID primitive.ObjectID) (model.AnswerKey, error) {
	var key model.AnswerKey
	err := s.keys.FindOne(ctx, bson.M{"_id": generatedExamID}).Decode(&key)
	if isNoDocuments(err) {
		return model.AnswerKey{}, apperr.New(apperr.CodeNotFound, "answer key for %s", generatedExamID.Hex())
	}
	return key, err
}

// GeneratedExamCount returns the number of generated exams of a template.
func (s *Store) GeneratedExamCount(ctx context.Context, examID primitive.ObjectID) (int, error) {
	n, err := s.exams.CountDocuments(ctx, bson.M{"examId": examID})
	return int(n), err
}
