package mongostore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const importPrefix = "import:"

type metadataDoc struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// GetImportedFileHash returns the content hash recorded for an imported file,
// or "" if the file was never imported.
func (s *Store) GetImportedFileHash(ctx context.Context, path string) (string, error) {
	var doc metadataDoc
	err := s.metadata.FindOne(ctx, bson.M{"_id": importPrefix + path}).Decode(&doc)
	if isNoDocuments(err) {
		return "", nil
	}
	return doc.Value, err
}

// SetImportedFileHash records the content hash of an imported file.
func (s *Store) SetImportedFileHash(ctx context.Context, path, hash string) error {
	_, err := s.metadata.ReplaceOne(ctx,
		bson.M{"_id": importPrefix + path},
		metadataDoc{Key: importPrefix + path, Value: hash},
		options.Replace().SetUpsert(true),
	)
	return err
}
