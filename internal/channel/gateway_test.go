package channel

import (
	"context"
	"errors"
	"testing"

	"photoqueue-bot/internal/database/models"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockBot is a mock implementing the telegoapi.BotAPI interface
type MockBot struct {
	mock.Mock
}

func (m *MockBot) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendPhoto(ctx context.Context, params *telego.SendPhotoParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SendMediaGroup(ctx context.Context, params *telego.SendMediaGroupParams) ([]telego.Message, error) {
	args := m.Called(ctx, params)
	if msgs, ok := args.Get(0).([]telego.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) GetMe(ctx context.Context) (*telego.User, error) {
	args := m.Called(ctx)
	if user, ok := args.Get(0).(*telego.User); ok {
		return user, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	args := m.Called(ctx, params)
	if member, ok := args.Get(0).(telego.ChatMember); ok {
		return member, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

// recordingPostLogger captures PostLog entries.
type recordingPostLogger struct {
	entries []models.PostLog
	err     error
}

func (l *recordingPostLogger) LogPublishedPost(entry models.PostLog) error {
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, entry)
	return nil
}

const testChannelID = int64(-100200300)

func testSubmission(fileIDs ...string) *models.Submission {
	return &models.Submission{
		ID:          primitive.NewObjectID(),
		FileIDs:     fileIDs,
		Caption:     "a caption",
		SubmitterID: 777,
		Username:    "alice",
		Status:      string(models.StatusPending),
	}
}

func TestPublishSinglePhoto(t *testing.T) {
	mockBot := new(MockBot)
	logger := &recordingPostLogger{}
	gw, err := NewGateway(mockBot, testChannelID, logger)
	require.NoError(t, err)

	var sent *telego.SendPhotoParams
	mockBot.On("SendPhoto", mock.Anything, mock.AnythingOfType("*telego.SendPhotoParams")).
		Run(func(args mock.Arguments) {
			sent = args.Get(1).(*telego.SendPhotoParams)
		}).
		Return(&telego.Message{MessageID: 42}, nil).Once()

	sub := testSubmission("file-1")
	err = gw.Publish(context.Background(), sub, true)

	require.NoError(t, err)
	mockBot.AssertExpectations(t)
	require.NotNil(t, sent)
	assert.Equal(t, telegoutil.ID(testChannelID), sent.ChatID)
	assert.Equal(t, "a caption", sent.Caption)

	require.Len(t, logger.entries, 1)
	entry := logger.entries[0]
	assert.Equal(t, sub.ID.Hex(), entry.SubmissionID)
	assert.Equal(t, "photo", entry.MessageType)
	assert.Equal(t, 42, entry.ChannelPostID)
	assert.True(t, entry.AutoPublished)
}

func TestPublishAlbumPutsCaptionOnFirstItem(t *testing.T) {
	mockBot := new(MockBot)
	logger := &recordingPostLogger{}
	gw, err := NewGateway(mockBot, testChannelID, logger)
	require.NoError(t, err)

	var sent *telego.SendMediaGroupParams
	mockBot.On("SendMediaGroup", mock.Anything, mock.AnythingOfType("*telego.SendMediaGroupParams")).
		Run(func(args mock.Arguments) {
			sent = args.Get(1).(*telego.SendMediaGroupParams)
		}).
		Return([]telego.Message{{MessageID: 50}, {MessageID: 51}}, nil).Once()

	err = gw.Publish(context.Background(), testSubmission("file-1", "file-2", "file-3"), false)

	require.NoError(t, err)
	require.NotNil(t, sent)
	require.Len(t, sent.Media, 3)
	first, ok := sent.Media[0].(*telego.InputMediaPhoto)
	require.True(t, ok)
	assert.Equal(t, "a caption", first.Caption)
	second, ok := sent.Media[1].(*telego.InputMediaPhoto)
	require.True(t, ok)
	assert.Empty(t, second.Caption)

	require.Len(t, logger.entries, 1)
	assert.Equal(t, "media_group", logger.entries[0].MessageType)
	assert.Equal(t, 3, logger.entries[0].FileCount)
	assert.Equal(t, 50, logger.entries[0].ChannelPostID)
	assert.False(t, logger.entries[0].AutoPublished)
}

func TestPublishSendFailureReturnsError(t *testing.T) {
	mockBot := new(MockBot)
	logger := &recordingPostLogger{}
	gw, err := NewGateway(mockBot, testChannelID, logger)
	require.NoError(t, err)

	mockBot.On("SendPhoto", mock.Anything, mock.Anything).
		Return(nil, errors.New("telegram unavailable")).Once()

	err = gw.Publish(context.Background(), testSubmission("file-1"), true)

	assert.Error(t, err)
	assert.Empty(t, logger.entries, "failed publishes are not logged as posts")
}

func TestPublishLogFailureDoesNotFailPublish(t *testing.T) {
	mockBot := new(MockBot)
	logger := &recordingPostLogger{err: errors.New("db down")}
	gw, err := NewGateway(mockBot, testChannelID, logger)
	require.NoError(t, err)

	mockBot.On("SendPhoto", mock.Anything, mock.Anything).
		Return(&telego.Message{MessageID: 42}, nil).Once()

	err = gw.Publish(context.Background(), testSubmission("file-1"), true)
	assert.NoError(t, err, "the channel post went out; logging is best effort")
}

func TestPublishRejectsEmptySubmission(t *testing.T) {
	gw, err := NewGateway(new(MockBot), testChannelID, nil)
	require.NoError(t, err)

	assert.Error(t, gw.Publish(context.Background(), nil, false))
	assert.Error(t, gw.Publish(context.Background(), &models.Submission{}, false))
}
