package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const settingsCollectionName = "settings"

type settingDocument struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// MongoSettingsRepository implements SettingsRepository for MongoDB.
// Settings are stored as one document per key, mirroring a plain key/value table.
type MongoSettingsRepository struct {
	collection *mongo.Collection
}

// NewMongoSettingsRepository creates a new MongoDB settings repository.
func NewMongoSettingsRepository(db *mongo.Database) *MongoSettingsRepository {
	return &MongoSettingsRepository{
		collection: db.Collection(settingsCollectionName),
	}
}

// GetSetting returns the stored value for key, or ("", false, nil) when the key is absent.
func (r *MongoSettingsRepository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var doc settingDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return doc.Value, true, nil
}

// SetSetting stores or replaces the value for key.
func (r *MongoSettingsRepository) SetSetting(ctx context.Context, key, value string) error {
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": key}, settingDocument{Key: key, Value: value}, opts)
	if err != nil {
		return fmt.Errorf("failed to write setting %q: %w", key, err)
	}
	return nil
}
