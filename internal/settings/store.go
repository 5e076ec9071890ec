// Package settings provides typed access to runtime bot configuration
// persisted in the database, with defaults taken from the process environment.
package settings

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"photoqueue-bot/internal/config"
	"photoqueue-bot/internal/database"
)

// Setting keys as stored in the settings collection.
const (
	keyAdminTags          = "admin_tags"
	keySubscriberTag      = "subscriber_tag"
	keyAdminPostThreshold = "admin_post_threshold"
	keyPostingDelay       = "posting_delay"
	keyPostingStart       = "posting_start"
	keyPostingEnd         = "posting_end"
	keyTimezone           = "timezone"
	keySubmitPermission   = "submit_permission"
	keyAdminPostCount     = "admin_post_count"
)

// Submit permission modes.
const (
	SubmitPermissionPublic = "public"
	SubmitPermissionAdmin  = "admin"
)

// Store provides typed read/write access to persisted settings.
// Reads never fail the caller: a missing key falls back to the configured
// default and a malformed value degrades to the default with a log entry.
type Store struct {
	repo     database.SettingsRepository
	defaults *config.Config
}

// NewStore creates a settings store backed by repo, with defaults from cfg.
func NewStore(repo database.SettingsRepository, cfg *config.Config) *Store {
	return &Store{repo: repo, defaults: cfg}
}

// get returns the raw stored value and whether it was present. Read errors
// are logged and treated as absence.
func (s *Store) get(ctx context.Context, key string) (string, bool) {
	value, found, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		log.Printf("[Settings] Error reading %q, falling back to default: %v", key, err)
		return "", false
	}
	return value, found
}

func (s *Store) getInt(ctx context.Context, key string, defaultValue int) int {
	value, found := s.get(ctx, key)
	if !found {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("[Settings] Malformed integer for %q: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// AdminTags returns the configured admin tag set. Tags are stored as a JSON
// array; a corrupt encoding degrades to an empty set.
func (s *Store) AdminTags(ctx context.Context) []string {
	value, found := s.get(ctx, keyAdminTags)
	if !found {
		return s.defaults.DefaultAdminTags
	}
	var tags []string
	if err := json.Unmarshal([]byte(value), &tags); err != nil {
		log.Printf("[Settings] Malformed admin tag list %q, treating as empty: %v", value, err)
		return nil
	}
	return tags
}

// SetAdminTags replaces the admin tag set.
func (s *Store) SetAdminTags(ctx context.Context, tags []string) error {
	encoded, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	return s.repo.SetSetting(ctx, keyAdminTags, string(encoded))
}

// SubscriberTag returns the tag required in submission captions.
func (s *Store) SubscriberTag(ctx context.Context) string {
	if value, found := s.get(ctx, keySubscriberTag); found {
		return value
	}
	return s.defaults.DefaultSubscriberTag
}

// SetSubscriberTag replaces the subscriber tag.
func (s *Store) SetSubscriberTag(ctx context.Context, tag string) error {
	return s.repo.SetSetting(ctx, keySubscriberTag, tag)
}

// AdminPostThreshold returns the number of admin posts required before a pull.
func (s *Store) AdminPostThreshold(ctx context.Context) int {
	return s.getInt(ctx, keyAdminPostThreshold, s.defaults.AdminPostThreshold)
}

// SetAdminPostThreshold replaces the admin post threshold.
func (s *Store) SetAdminPostThreshold(ctx context.Context, threshold int) error {
	return s.repo.SetSetting(ctx, keyAdminPostThreshold, strconv.Itoa(threshold))
}

// PostingDelay returns the minimum delay after channel activity, in minutes.
func (s *Store) PostingDelay(ctx context.Context) int {
	return s.getInt(ctx, keyPostingDelay, s.defaults.PostingDelayMinutes)
}

// SetPostingDelay replaces the posting delay in minutes.
func (s *Store) SetPostingDelay(ctx context.Context, minutes int) error {
	return s.repo.SetSetting(ctx, keyPostingDelay, strconv.Itoa(minutes))
}

// PostingStart returns the daily posting window start as "HH:MM".
func (s *Store) PostingStart(ctx context.Context) string {
	if value, found := s.get(ctx, keyPostingStart); found {
		return value
	}
	return s.defaults.PostingStart
}

// PostingEnd returns the daily posting window end as "HH:MM".
func (s *Store) PostingEnd(ctx context.Context) string {
	if value, found := s.get(ctx, keyPostingEnd); found {
		return value
	}
	return s.defaults.PostingEnd
}

// Timezone returns the IANA timezone identifier for the posting window.
func (s *Store) Timezone(ctx context.Context) string {
	if value, found := s.get(ctx, keyTimezone); found {
		return value
	}
	return s.defaults.Timezone
}

// SubmitPermission returns who may submit photos: "public" or "admin".
func (s *Store) SubmitPermission(ctx context.Context) string {
	if value, found := s.get(ctx, keySubmitPermission); found {
		return value
	}
	return s.defaults.DefaultSubmitPermission
}

// SetSubmitPermission replaces the submit permission mode.
func (s *Store) SetSubmitPermission(ctx context.Context, permission string) error {
	return s.repo.SetSetting(ctx, keySubmitPermission, permission)
}

// AdminPostCount returns the persisted count of observed admin channel posts.
func (s *Store) AdminPostCount(ctx context.Context) int {
	return s.getInt(ctx, keyAdminPostCount, 0)
}

// SetAdminPostCount replaces the admin post counter.
func (s *Store) SetAdminPostCount(ctx context.Context, count int) error {
	return s.repo.SetSetting(ctx, keyAdminPostCount, strconv.Itoa(count))
}

// IncrementAdminPostCount increments the admin post counter and returns the new value.
func (s *Store) IncrementAdminPostCount(ctx context.Context) (int, error) {
	count := s.AdminPostCount(ctx) + 1
	if err := s.SetAdminPostCount(ctx, count); err != nil {
		return count - 1, err
	}
	return count, nil
}
