package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/model"
)

// templateDoc stores one immutable template version.
type templateDoc struct {
	Key       string             `bson:"_id"`
	ExamID    primitive.ObjectID `bson:"examId"`
	Version   int                `bson:"version"`
	CreatedAt time.Time          `bson:"createdAt"`
	Template  model.ExamTemplate `bson:"template"`
}

func templateKey(id primitive.ObjectID, version int) string {
	return fmt.Sprintf("%s:%d", id.Hex(), version)
}

// SaveTemplate stores a new template version.
func (s *Store) SaveTemplate(ctx context.Context, t model.ExamTemplate) error {
	_, err := s.templates.InsertOne(ctx, templateDoc{
		Key:       templateKey(t.ID, t.Version),
		ExamID:    t.ID,
		Version:   t.Version,
		CreatedAt: time.Now().UTC(),
		Template:  t,
	})
	if mongo.IsDuplicateKeyError(err) {
		return apperr.New(apperr.CodeInvalidRequest, "template %s version %d already stored", t.ID.Hex(), t.Version)
	}
	return err
}

// GetTemplate returns the latest version of a template.
func (s *Store) GetTemplate(ctx context.Context, id primitive.ObjectID) (model.ExamTemplate, error) {
	var doc templateDoc
	err := s.templates.FindOne(ctx, bson.M{"examId": id},
		options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}}),
	).Decode(&doc)
	if isNoDocuments(err) {
		return model.ExamTemplate{}, apperr.New(apperr.CodeNotFound, "template %s", id.Hex())
	}
	return doc.Template, err
}

// GetTemplateVersion returns one exact template version.
func (s *Store) GetTemplateVersion(ctx context.Context, id primitive.ObjectID, version int) (model.ExamTemplate, error) {
	var doc templateDoc
	err := s.templates.FindOne(ctx, bson.M{"_id": templateKey(id, version)}).Decode(&doc)
	if isNoDocuments(err) {
		return model.ExamTemplate{}, apperr.New(apperr.CodeNotFound, "template %s version %d", id.Hex(), version)
	}
	return doc.Template, err
}

// ListTemplates returns the latest version of every template, in creation order.
func (s *Store) ListTemplates(ctx context.Context) ([]model.ExamTemplate, error) {
	cur, err := s.templates.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "version", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	docs, err := decodeAll[templateDoc](ctx, cur)
	if err != nil {
		return nil, err
	}
	index := make(map[primitive.ObjectID]int)
	var out []model.ExamTemplate
	for _, d := range docs {
		if i, ok := index[d.ExamID]; ok {
			if d.Version > out[i].Version {
				out[i] = d.Template
			}
			continue
		}
		index[d.ExamID] = len(out)
		out = append(out, d.Template)
	}
	return out, nil
}
