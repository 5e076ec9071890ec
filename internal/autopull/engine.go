// Package autopull decides when to automatically publish the oldest queued
// submission, based on observed admin activity in the channel, a cooldown
// delay, and a recurring daily posting window.
package autopull

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"photoqueue-bot/internal/database/models"

	"github.com/getsentry/sentry-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QueueService is the slice of the queue API the engine needs.
type QueueService interface {
	ListPending(ctx context.Context) ([]models.Submission, error)
	RemoveByID(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// SettingsStore provides the live configuration the engine reads on every
// evaluation. Implementations must fall back to defaults instead of failing.
type SettingsStore interface {
	AdminTags(ctx context.Context) []string
	SubscriberTag(ctx context.Context) string
	AdminPostThreshold(ctx context.Context) int
	PostingDelay(ctx context.Context) int
	PostingStart(ctx context.Context) string
	PostingEnd(ctx context.Context) string
	Timezone(ctx context.Context) string
	AdminPostCount(ctx context.Context) int
	SetAdminPostCount(ctx context.Context, count int) error
}

// Gateway publishes a submission to the channel.
type Gateway interface {
	Publish(ctx context.Context, submission *models.Submission, auto bool) error
}

// Status is a read-only snapshot of the engine's decision inputs, computed
// with the same window and elapsed formulas the evaluation uses.
type Status struct {
	QueueLength     int
	AdminPostCount  int
	Threshold       int
	PostsRemaining  int
	DelayMinutes    int
	DelayRemaining  time.Duration // Zero when the cooldown has elapsed
	WithinWindow    bool
	NextWindowStart time.Time // Zero when inside the posting window
	LastChannelPost time.Time
}

// Engine tracks channel activity and drives the auto-publish decision.
// All state transitions happen under a single mutex, which doubles as the
// single-flight guard around the evaluate-publish-reset sequence: a timer
// firing during an in-flight publish waits instead of racing it.
type Engine struct {
	queue    QueueService
	settings SettingsStore
	gateway  Gateway

	mu              sync.Mutex
	lastChannelPost time.Time
	timer           *time.Timer // At most one outstanding re-evaluation timer
	stopped         bool

	now func() time.Time
}

// NewEngine creates an engine. The last-channel-post clock starts at "now" so
// the cooldown delay applies from process start.
func NewEngine(queue QueueService, settings SettingsStore, gateway Gateway) *Engine {
	e := &Engine{
		queue:    queue,
		settings: settings,
		gateway:  gateway,
		now:      time.Now,
	}
	e.lastChannelPost = e.now()
	return e
}

// Start runs the initial evaluation. Call once after construction.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evaluateLocked(ctx)
}

// Stop cancels any outstanding timer and prevents further evaluations.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	e.cancelTimerLocked()
}

// OnSubmissionAdded re-evaluates after a new submission entered the queue.
func (e *Engine) OnSubmissionAdded(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evaluateLocked(ctx)
}

// OnChannelPost classifies an observed channel post, updates the activity
// counters, and re-evaluates. The last-post clock advances on every post
// regardless of classification. A post matching an admin tag increments the
// counter; a post matching the subscriber tag resets it to zero afterwards,
// so a post matching both nets out to a reset.
func (e *Engine) OnChannelPost(ctx context.Context, text, caption string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.lastChannelPost = e.now()

	combined := strings.ToLower(text + " " + caption)
	if matchesAnyTag(combined, e.settings.AdminTags(ctx)) {
		count := e.settings.AdminPostCount(ctx) + 1
		if err := e.settings.SetAdminPostCount(ctx, count); err != nil {
			log.Printf("[AutoPull] Failed to persist admin post count: %v", err)
		} else {
			log.Printf("[AutoPull] Admin post detected. New admin count: %d", count)
		}
	}
	if tag := strings.ToLower(e.settings.SubscriberTag(ctx)); tag != "" && strings.Contains(combined, tag) {
		if err := e.settings.SetAdminPostCount(ctx, 0); err != nil {
			log.Printf("[AutoPull] Failed to reset admin post count: %v", err)
		} else {
			log.Println("[AutoPull] Subscriber post detected. Admin count reset.")
		}
	}

	e.evaluateLocked(ctx)
}

// matchesAnyTag reports whether the lower-cased text contains any of the tags
// as a case-insensitive substring.
func matchesAnyTag(loweredText string, tags []string) bool {
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if strings.Contains(loweredText, strings.ToLower(tag)) {
			return true
		}
	}
	return false
}

// evaluateLocked runs the publish decision. Callers must hold e.mu.
//
// Outside the posting window it schedules a wake-up for the next window
// start. Inside the window it publishes the queue head once the admin post
// threshold is met and the cooldown since the last channel post has elapsed;
// otherwise it either waits for more admin posts (no timer) or schedules a
// wake-up for the moment the cooldown expires.
func (e *Engine) evaluateLocked(ctx context.Context) {
	if e.stopped {
		return
	}

	threshold := e.settings.AdminPostThreshold(ctx)
	delay := time.Duration(e.settings.PostingDelay(ctx)) * time.Minute
	adminCount := e.settings.AdminPostCount(ctx)
	now := e.now()
	elapsed := now.Sub(e.lastChannelPost)

	log.Printf("[AutoPull] Check: adminCount=%d, threshold=%d, elapsed=%s, requiredDelay=%s",
		adminCount, threshold, elapsed.Round(time.Second), delay)

	within, nextStart := e.windowState(ctx, now)
	if !within {
		wait := nextStart.Sub(now)
		log.Printf("[AutoPull] Outside posting window. Next allowed posting at %s.",
			nextStart.Format("15:04 MST"))
		e.scheduleLocked(wait)
		return
	}

	if adminCount < threshold {
		e.cancelTimerLocked()
		log.Printf("[AutoPull] Admin count below threshold (%d/%d); waiting for more admin posts.",
			adminCount, threshold)
		return
	}

	if elapsed < delay {
		remaining := delay - elapsed
		log.Printf("[AutoPull] Scheduling pull in %s.", remaining.Round(time.Second))
		e.scheduleLocked(remaining)
		return
	}

	pending, err := e.queue.ListPending(ctx)
	if err != nil {
		log.Printf("[AutoPull] Failed to read queue: %v", err)
		sentry.CaptureException(err)
		return
	}
	if len(pending) == 0 {
		log.Println("[AutoPull] Conditions met but queue is empty.")
		e.cancelTimerLocked()
		return
	}

	head := pending[0]
	log.Printf("[AutoPull] Conditions met. Publishing submission %s", head.ID.Hex())
	if err := e.gateway.Publish(ctx, &head, true); err != nil {
		// The submission stays pending and counters keep their values, so the
		// very next trigger retries the identical decision.
		log.Printf("[AutoPull] Failed to publish submission %s: %v", head.ID.Hex(), err)
		sentry.CaptureException(err)
		return
	}

	if _, err := e.queue.RemoveByID(ctx, head.ID); err != nil {
		log.Printf("[AutoPull] Published %s but failed to dequeue it: %v", head.ID.Hex(), err)
		sentry.CaptureException(err)
	}
	e.lastChannelPost = e.now()
	if err := e.settings.SetAdminPostCount(ctx, 0); err != nil {
		log.Printf("[AutoPull] Failed to reset admin post count: %v", err)
	}
	e.cancelTimerLocked()
	log.Println("[AutoPull] Submission published successfully. Counters reset.")
}

// windowState reports whether now falls inside the posting window and, if
// not, the next instant the window opens. Malformed window settings degrade
// to an always-open window; an unknown timezone degrades to UTC.
func (e *Engine) windowState(ctx context.Context, now time.Time) (bool, time.Time) {
	loc, err := time.LoadLocation(e.settings.Timezone(ctx))
	if err != nil {
		log.Printf("[AutoPull] Unknown timezone %q, falling back to UTC: %v", e.settings.Timezone(ctx), err)
		loc = time.UTC
	}

	startMinutes, err := parseClockMinutes(e.settings.PostingStart(ctx))
	if err != nil {
		log.Printf("[AutoPull] Malformed posting window start, window treated as open: %v", err)
		return true, time.Time{}
	}
	endMinutes, err := parseClockMinutes(e.settings.PostingEnd(ctx))
	if err != nil {
		log.Printf("[AutoPull] Malformed posting window end, window treated as open: %v", err)
		return true, time.Time{}
	}

	local := now.In(loc)
	if withinWindow(minutesOfDay(local), startMinutes, endMinutes) {
		return true, time.Time{}
	}
	return false, nextWindowStart(now, startMinutes, loc)
}

// scheduleLocked arms the single re-evaluation timer, replacing any existing
// one. Callers must hold e.mu.
func (e *Engine) scheduleLocked(wait time.Duration) {
	e.cancelTimerLocked()
	if wait < 0 {
		wait = 0
	}
	e.timer = time.AfterFunc(wait, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.timer = nil
		e.evaluateLocked(context.Background())
	})
}

// cancelTimerLocked discards the outstanding timer, if any. Callers must hold e.mu.
func (e *Engine) cancelTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// GetStatus returns a snapshot of the decision inputs without mutating any
// state. It shares the window and elapsed computations with the evaluation,
// so the two never diverge.
func (e *Engine) GetStatus(ctx context.Context) Status {
	e.mu.Lock()
	lastPost := e.lastChannelPost
	e.mu.Unlock()

	threshold := e.settings.AdminPostThreshold(ctx)
	delayMinutes := e.settings.PostingDelay(ctx)
	adminCount := e.settings.AdminPostCount(ctx)
	now := e.now()

	remaining := time.Duration(delayMinutes)*time.Minute - now.Sub(lastPost)
	if remaining < 0 {
		remaining = 0
	}
	postsRemaining := threshold - adminCount
	if postsRemaining < 0 {
		postsRemaining = 0
	}

	queueLength := 0
	if pending, err := e.queue.ListPending(ctx); err == nil {
		queueLength = len(pending)
	} else {
		log.Printf("[AutoPull] Status: failed to read queue: %v", err)
	}

	within, nextStart := e.windowState(ctx, now)

	return Status{
		QueueLength:     queueLength,
		AdminPostCount:  adminCount,
		Threshold:       threshold,
		PostsRemaining:  postsRemaining,
		DelayMinutes:    delayMinutes,
		DelayRemaining:  remaining,
		WithinWindow:    within,
		NextWindowStart: nextStart,
		LastChannelPost: lastPost,
	}
}
