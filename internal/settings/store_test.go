package settings

import (
	"context"
	"errors"
	"testing"

	"photoqueue-bot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSettingsRepo is an in-memory SettingsRepository.
type fakeSettingsRepo struct {
	values map[string]string
	getErr error
}

func (r *fakeSettingsRepo) GetSetting(_ context.Context, key string) (string, bool, error) {
	if r.getErr != nil {
		return "", false, r.getErr
	}
	value, found := r.values[key]
	return value, found, nil
}

func (r *fakeSettingsRepo) SetSetting(_ context.Context, key, value string) error {
	if r.values == nil {
		r.values = map[string]string{}
	}
	r.values[key] = value
	return nil
}

func testDefaults() *config.Config {
	return &config.Config{
		DefaultAdminTags:        []string{"#meme"},
		DefaultSubscriberTag:    "#fromsubs",
		AdminPostThreshold:      5,
		PostingDelayMinutes:     60,
		PostingStart:            "08:00",
		PostingEnd:              "00:00",
		Timezone:                "UTC",
		DefaultSubmitPermission: "public",
	}
}

func TestStoreFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewStore(&fakeSettingsRepo{}, testDefaults())

	assert.Equal(t, []string{"#meme"}, store.AdminTags(ctx))
	assert.Equal(t, "#fromsubs", store.SubscriberTag(ctx))
	assert.Equal(t, 5, store.AdminPostThreshold(ctx))
	assert.Equal(t, 60, store.PostingDelay(ctx))
	assert.Equal(t, "08:00", store.PostingStart(ctx))
	assert.Equal(t, "00:00", store.PostingEnd(ctx))
	assert.Equal(t, "UTC", store.Timezone(ctx))
	assert.Equal(t, SubmitPermissionPublic, store.SubmitPermission(ctx))
	assert.Equal(t, 0, store.AdminPostCount(ctx))
}

func TestStorePersistedValuesWinOverDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewStore(&fakeSettingsRepo{}, testDefaults())

	require.NoError(t, store.SetAdminTags(ctx, []string{"#a", "#b"}))
	require.NoError(t, store.SetSubscriberTag(ctx, "#subs"))
	require.NoError(t, store.SetAdminPostThreshold(ctx, 3))
	require.NoError(t, store.SetPostingDelay(ctx, 15))
	require.NoError(t, store.SetSubmitPermission(ctx, SubmitPermissionAdmin))
	require.NoError(t, store.SetAdminPostCount(ctx, 2))

	assert.Equal(t, []string{"#a", "#b"}, store.AdminTags(ctx))
	assert.Equal(t, "#subs", store.SubscriberTag(ctx))
	assert.Equal(t, 3, store.AdminPostThreshold(ctx))
	assert.Equal(t, 15, store.PostingDelay(ctx))
	assert.Equal(t, SubmitPermissionAdmin, store.SubmitPermission(ctx))
	assert.Equal(t, 2, store.AdminPostCount(ctx))
}

func TestStoreMalformedValuesDegrade(t *testing.T) {
	ctx := context.Background()
	repo := &fakeSettingsRepo{values: map[string]string{
		"admin_tags":           "not json at all",
		"admin_post_threshold": "five",
	}}
	store := NewStore(repo, testDefaults())

	assert.Empty(t, store.AdminTags(ctx), "corrupt tag list reads as empty, not as the default")
	assert.Equal(t, 5, store.AdminPostThreshold(ctx), "malformed integer falls back to the default")
}

func TestStoreReadErrorsFallBackToDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewStore(&fakeSettingsRepo{getErr: errors.New("db down")}, testDefaults())

	assert.Equal(t, "#fromsubs", store.SubscriberTag(ctx))
	assert.Equal(t, 5, store.AdminPostThreshold(ctx))
}

func TestIncrementAdminPostCount(t *testing.T) {
	ctx := context.Background()
	store := NewStore(&fakeSettingsRepo{}, testDefaults())

	count, err := store.IncrementAdminPostCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.IncrementAdminPostCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, store.AdminPostCount(ctx))
}
