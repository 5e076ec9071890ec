// Package mediagroups reassembles multi-photo submissions that Telegram
// delivers as several discrete messages sharing a media group ID.
package mediagroups

import (
	"context"
	"log"
	"sync"
	"time"

	"photoqueue-bot/internal/database/models"
	"photoqueue-bot/internal/queue"
)

// DefaultQuietWindow is the fixed delay between the first observed part of a
// group and its finalization. The deadline does not slide when later parts
// arrive: parts delivered after the window are lost to the group.
const DefaultQuietWindow = 1 * time.Second

// Part is a single photo belonging to a media group.
type Part struct {
	GroupID     string
	FileID      string
	Caption     string
	SubmitterID int64
	Username    string
	FirstName   string
	ChatID      int64 // Chat to notify once the group is finalized
}

// Finalized is emitted on the events channel when a group has been assembled
// and enqueued.
type Finalized struct {
	GroupID    string
	ChatID     int64
	Submission *models.Submission
	Position   int
	Err        error // Non-nil when enqueueing failed; Submission is nil then
}

type groupBuffer struct {
	mu      sync.Mutex
	fileIDs []string
	// Caption, submitter and creation time are captured from the first part
	// only; later parts never overwrite them.
	caption     string
	submitterID int64
	username    string
	firstName   string
	chatID      int64
	createdAt   time.Time
	timer       *time.Timer
}

// Aggregator buffers media group parts and finalizes each group into a single
// queued submission after a fixed quiet window.
type Aggregator struct {
	queue  *queue.Service
	quiet  time.Duration
	groups sync.Map // map[string]*groupBuffer
	events chan Finalized
	now    func() time.Time
}

// NewAggregator creates an aggregator that enqueues finalized groups into q.
// A non-positive quiet window falls back to DefaultQuietWindow.
func NewAggregator(q *queue.Service, quiet time.Duration) *Aggregator {
	if quiet <= 0 {
		quiet = DefaultQuietWindow
	}
	return &Aggregator{
		queue:  q,
		quiet:  quiet,
		events: make(chan Finalized, 16),
		now:    time.Now,
	}
}

// Events returns the channel on which finalization results are delivered.
// The transport layer consumes it to reply with the queue position.
func (a *Aggregator) Events() <-chan Finalized {
	return a.events
}

// AddPart records one part of a media group. The first part of a previously
// unseen group creates the buffer, captures caption and submitter, and arms
// the finalize timer; subsequent parts only append their file reference.
func (a *Aggregator) AddPart(part Part) {
	if part.GroupID == "" || part.FileID == "" {
		return
	}

	actual, loaded := a.groups.LoadOrStore(part.GroupID, &groupBuffer{
		caption:     part.Caption,
		submitterID: part.SubmitterID,
		username:    part.Username,
		firstName:   part.FirstName,
		chatID:      part.ChatID,
		createdAt:   a.now(),
	})
	buffer := actual.(*groupBuffer)

	buffer.mu.Lock()
	buffer.fileIDs = append(buffer.fileIDs, part.FileID)
	total := len(buffer.fileIDs)
	armTimer := !loaded && buffer.timer == nil
	if armTimer {
		groupID := part.GroupID
		buffer.timer = time.AfterFunc(a.quiet, func() {
			a.finalize(groupID)
		})
	}
	buffer.mu.Unlock()

	if armTimer {
		log.Printf("[MediaGroups Group:%s] First part stored, finalizing in %v.", part.GroupID, a.quiet)
	} else {
		log.Printf("[MediaGroups Group:%s] Added part. Total: %d", part.GroupID, total)
	}
}

// finalize assembles the buffered group into one submission, enqueues it, and
// reports the result on the events channel. The buffer is discarded first so
// parts arriving after the deadline start a fresh group.
func (a *Aggregator) finalize(groupID string) {
	val, loaded := a.groups.LoadAndDelete(groupID)
	if !loaded {
		return
	}
	buffer := val.(*groupBuffer)

	buffer.mu.Lock()
	fileIDs := make([]string, len(buffer.fileIDs))
	copy(fileIDs, buffer.fileIDs)
	draft := queue.Draft{
		FileIDs:     fileIDs,
		Caption:     buffer.caption,
		SubmitterID: buffer.submitterID,
		Username:    buffer.username,
		FirstName:   buffer.firstName,
		CreatedAt:   buffer.createdAt,
	}
	chatID := buffer.chatID
	buffer.mu.Unlock()

	submission, position, err := a.queue.Enqueue(context.Background(), draft)
	if err != nil {
		log.Printf("[MediaGroups Group:%s] Failed to enqueue finalized group: %v", groupID, err)
		a.events <- Finalized{GroupID: groupID, ChatID: chatID, Err: err}
		return
	}

	log.Printf("[MediaGroups Group:%s] Finalized %d part(s) into submission %s at position %d.",
		groupID, len(fileIDs), submission.ID.Hex(), position)
	a.events <- Finalized{GroupID: groupID, ChatID: chatID, Submission: submission, Position: position}
}

// Shutdown stops all pending finalize timers. Buffered groups whose timers
// were stopped are dropped; the events channel is left open for any finalize
// already in flight.
func (a *Aggregator) Shutdown() {
	stopped := 0
	a.groups.Range(func(key, value interface{}) bool {
		buffer := value.(*groupBuffer)
		buffer.mu.Lock()
		if buffer.timer != nil && buffer.timer.Stop() {
			stopped++
		}
		buffer.timer = nil
		buffer.mu.Unlock()
		a.groups.Delete(key)
		return true
	})
	if stopped > 0 {
		log.Printf("[MediaGroups] Shutdown complete. Stopped %d active timer(s).", stopped)
	}
}
