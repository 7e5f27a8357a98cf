package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/model"
)

// SaveModeration replaces the moderation record of a template.
func (s *Store) SaveModeration(ctx context.Context, m model.Moderation) error {
	_, err := s.moderation.ReplaceOne(ctx, bson.M{"_id": m.ExamID}, m, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) GetModeration(ctx context.Context, examID primitive.ObjectID) (model.Moderation, error) {
	var m model.Moderation
	err := s.moderation.FindOne(ctx, bson.M{"_id": examID}).Decode(&m)
	if isNoDocuments(err) {
		return model.Moderation{}, apperr.New(apperr.CodeNotFound, "moderation for %s", examID.Hex())
	}
	return m, err
}

func (s *Store) ListModerations(ctx context.Context, status model.ModerationStatus) ([]model.Moderation, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cur, err := s.moderation.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updatedAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeAll[model.Moderation](ctx, cur)
}
