package database

import (
	"context"
	"errors"

	"photoqueue-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrSubmissionNotFound is returned when a submission is not found.
var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionRepository defines the interface for submission storage.
type SubmissionRepository interface {
	// InsertSubmission stores a new submission record.
	InsertSubmission(ctx context.Context, submission *models.Submission) error
	// ListPending returns all pending submissions ordered by creation time ascending.
	ListPending(ctx context.Context) ([]models.Submission, error)
	// ListLatest returns up to limit submissions of any status, newest first.
	ListLatest(ctx context.Context, limit int) ([]models.Submission, error)
	// UpdateStatus transitions a non-terminal submission to the given status.
	// It returns true if a record was changed.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.SubmissionStatus) (bool, error)
	// GetSubmissionByID returns a submission or ErrSubmissionNotFound.
	GetSubmissionByID(ctx context.Context, id primitive.ObjectID) (*models.Submission, error)
}

// SettingsRepository defines the interface for persisted key/value settings.
type SettingsRepository interface {
	// GetSetting returns the stored value for key, or ("", false, nil) when the key is absent.
	GetSetting(ctx context.Context, key string) (string, bool, error)
	// SetSetting stores or replaces the value for key.
	SetSetting(ctx context.Context, key, value string) error
}

// PostLogger defines the interface for logging published posts.
type PostLogger interface {
	// LogPublishedPost logs information about a post published to the channel.
	LogPublishedPost(log models.PostLog) error
}

// UserActionLogger defines the interface for logging user actions.
type UserActionLogger interface {
	// LogUserAction logs an action performed by a user.
	LogUserAction(userID int64, action string, details interface{}) error
}

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// UpdateUser updates or creates a user record in the database.
	UpdateUser(ctx context.Context, userID int64, username, firstName, lastName string, isAdmin bool, action string) error
}
