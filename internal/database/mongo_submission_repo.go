package database

import (
	"context"
	"fmt"
	"time"

	"photoqueue-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const submissionCollectionName = "submissions"

// MongoSubmissionRepository implements SubmissionRepository for MongoDB.
type MongoSubmissionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubmissionRepository creates a new MongoDB submission repository.
func NewMongoSubmissionRepository(db *mongo.Database) *MongoSubmissionRepository {
	return &MongoSubmissionRepository{
		collection: db.Collection(submissionCollectionName),
	}
}

// InsertSubmission adds a new submission to the database.
// A fresh ObjectID is generated when the submission does not carry one, and
// the status is forced to pending.
func (r *MongoSubmissionRepository) InsertSubmission(ctx context.Context, submission *models.Submission) error {
	if submission.ID.IsZero() {
		submission.ID = primitive.NewObjectID()
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now()
	}
	submission.Status = string(models.StatusPending)

	_, err := r.collection.InsertOne(ctx, submission)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// ListPending retrieves all submissions with 'pending' status, oldest first.
func (r *MongoSubmissionRepository) ListPending(ctx context.Context) ([]models.Submission, error) {
	filter := bson.M{"status": string(models.StatusPending)}

	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "created_at", Value: 1}}) // Oldest first

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending submissions: %w", err)
	}
	defer cursor.Close(ctx)

	var submissions []models.Submission
	if err = cursor.All(ctx, &submissions); err != nil {
		return nil, fmt.Errorf("failed to decode pending submissions: %w", err)
	}

	return submissions, nil
}

// ListLatest retrieves up to limit submissions of any status, newest first.
func (r *MongoSubmissionRepository) ListLatest(ctx context.Context, limit int) ([]models.Submission, error) {
	findOptions := options.Find()
	findOptions.SetLimit(int64(limit))
	findOptions.SetSort(bson.D{{Key: "created_at", Value: -1}}) // Newest first

	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find latest submissions: %w", err)
	}
	defer cursor.Close(ctx)

	var submissions []models.Submission
	if err = cursor.All(ctx, &submissions); err != nil {
		return nil, fmt.Errorf("failed to decode latest submissions: %w", err)
	}

	return submissions, nil
}

// UpdateStatus transitions a submission to the given status. The filter only
// matches pending records, which keeps terminal statuses one-way: updating an
// already published or removed submission matches nothing and returns false.
func (r *MongoSubmissionRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.SubmissionStatus) (bool, error) {
	filter := bson.M{"_id": id, "status": string(models.StatusPending)}
	update := bson.M{"$set": bson.M{"status": string(status)}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update submission status for ID %s: %w", id.Hex(), err)
	}

	return result.MatchedCount > 0, nil
}

// GetSubmissionByID retrieves a single submission by its MongoDB ObjectID.
// It returns ErrSubmissionNotFound if no submission matches the ID.
func (r *MongoSubmissionRepository) GetSubmissionByID(ctx context.Context, id primitive.ObjectID) (*models.Submission, error) {
	var submission models.Submission
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&submission)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to find submission by ID %s: %w", id.Hex(), err)
	}
	return &submission, nil
}
