// Package queue owns the submission lifecycle: enqueueing new submissions,
// listing the pending FIFO queue, and transitioning records out of it.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"photoqueue-bot/internal/database"
	"photoqueue-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrPositionOutOfRange is returned when a 1-based queue position does not
// resolve to a pending submission. It is user input error, not a fault.
var ErrPositionOutOfRange = errors.New("queue position out of range")

// Draft carries the data needed to create a new submission record.
type Draft struct {
	FileIDs     []string
	Caption     string
	SubmitterID int64
	Username    string
	FirstName   string
	CreatedAt   time.Time // Zero means "now"
}

// Service implements the submission queue on top of a SubmissionRepository.
type Service struct {
	repo database.SubmissionRepository
}

// NewService creates a queue service backed by repo.
func NewService(repo database.SubmissionRepository) *Service {
	return &Service{repo: repo}
}

// Enqueue inserts a new pending submission and returns it together with its
// 1-based position among pending submissions, counted after insertion.
func (s *Service) Enqueue(ctx context.Context, draft Draft) (*models.Submission, int, error) {
	if len(draft.FileIDs) == 0 {
		return nil, 0, fmt.Errorf("submission must contain at least one file")
	}

	submission := &models.Submission{
		FileIDs:     draft.FileIDs,
		Caption:     draft.Caption,
		SubmitterID: draft.SubmitterID,
		Username:    draft.Username,
		FirstName:   draft.FirstName,
		CreatedAt:   draft.CreatedAt,
	}
	if err := s.repo.InsertSubmission(ctx, submission); err != nil {
		return nil, 0, err
	}

	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		// The record is stored; report position 0 rather than failing the enqueue.
		log.Printf("[Queue] Enqueued %s but failed to count pending: %v", submission.ID.Hex(), err)
		return submission, 0, nil
	}
	return submission, len(pending), nil
}

// ListPending returns all pending submissions, oldest first.
func (s *Service) ListPending(ctx context.Context) ([]models.Submission, error) {
	return s.repo.ListPending(ctx)
}

// ListLatest returns up to limit submissions of any status, newest first.
func (s *Service) ListLatest(ctx context.Context, limit int) ([]models.Submission, error) {
	return s.repo.ListLatest(ctx, limit)
}

// CountPending returns the number of pending submissions.
func (s *Service) CountPending(ctx context.Context) (int, error) {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

// GetByID returns a submission by ID, or database.ErrSubmissionNotFound.
func (s *Service) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Submission, error) {
	return s.repo.GetSubmissionByID(ctx, id)
}

// GetByPosition resolves a 1-based position in the pending queue to a submission.
func (s *Service) GetByPosition(ctx context.Context, position int) (*models.Submission, error) {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	if position < 1 || position > len(pending) {
		return nil, ErrPositionOutOfRange
	}
	return &pending[position-1], nil
}

// RemoveByID marks a submission as removed. The record is kept for later
// review. It returns false when the submission does not exist or has already
// reached a terminal status, so calling it twice is safe.
func (s *Service) RemoveByID(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return s.repo.UpdateStatus(ctx, id, models.StatusRemoved)
}

// RemoveByPosition resolves a 1-based position and removes the submission
// found there, returning it.
func (s *Service) RemoveByPosition(ctx context.Context, position int) (*models.Submission, error) {
	submission, err := s.GetByPosition(ctx, position)
	if err != nil {
		return nil, err
	}
	if _, err := s.RemoveByID(ctx, submission.ID); err != nil {
		return nil, err
	}
	return submission, nil
}

// MarkPublished transitions a submission to the published status. It returns
// false when the submission is missing or already terminal.
func (s *Service) MarkPublished(ctx context.Context, id primitive.ObjectID) (bool, error) {
	return s.repo.UpdateStatus(ctx, id, models.StatusPublished)
}
