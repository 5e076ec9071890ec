package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubmissionStatus defines the possible states of a submission.
// Transitions are one-way: a submission never returns to pending once it
// has been published or removed.
type SubmissionStatus string

const (
	StatusPending   SubmissionStatus = "pending"
	StatusPublished SubmissionStatus = "published"
	StatusRemoved   SubmissionStatus = "removed"
)

// Submission represents a subscriber photo submission stored in the database.
type Submission struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	FileIDs     []string           `bson:"file_ids"` // Ordered photo file IDs; the first carries the caption when rendered as an album
	Caption     string             `bson:"caption,omitempty"`
	SubmitterID int64              `bson:"submitter_id"`
	Username    string             `bson:"username,omitempty"`
	FirstName   string             `bson:"first_name,omitempty"`
	CreatedAt   time.Time          `bson:"created_at"` // Defines FIFO queue order
	Status      string             `bson:"status"`
}
