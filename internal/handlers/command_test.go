package handlers

import (
	"context"
	"testing"
	"time"

	"photoqueue-bot/internal/autopull"
	"photoqueue-bot/internal/channel"
	"photoqueue-bot/internal/config"
	"photoqueue-bot/internal/database"
	"photoqueue-bot/internal/database/models"
	"photoqueue-bot/internal/locales"
	"photoqueue-bot/internal/mediagroups"
	"photoqueue-bot/internal/queue"
	"photoqueue-bot/internal/settings"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Mocks ---

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

// MockAdminChecker is a mock implementing auth.AdminCheckerInterface
type MockAdminChecker struct {
	mock.Mock
}

func (m *MockAdminChecker) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// fakeSubmissionRepo is an in-memory SubmissionRepository.
type fakeSubmissionRepo struct {
	submissions []models.Submission
}

func (r *fakeSubmissionRepo) InsertSubmission(_ context.Context, submission *models.Submission) error {
	if submission.ID.IsZero() {
		submission.ID = primitive.NewObjectID()
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now()
	}
	submission.Status = string(models.StatusPending)
	r.submissions = append(r.submissions, *submission)
	return nil
}

func (r *fakeSubmissionRepo) ListPending(_ context.Context) ([]models.Submission, error) {
	var pending []models.Submission
	for _, s := range r.submissions {
		if s.Status == string(models.StatusPending) {
			pending = append(pending, s)
		}
	}
	return pending, nil
}

func (r *fakeSubmissionRepo) ListLatest(_ context.Context, limit int) ([]models.Submission, error) {
	var latest []models.Submission
	for i := len(r.submissions) - 1; i >= 0 && len(latest) < limit; i-- {
		latest = append(latest, r.submissions[i])
	}
	return latest, nil
}

func (r *fakeSubmissionRepo) UpdateStatus(_ context.Context, id primitive.ObjectID, status models.SubmissionStatus) (bool, error) {
	for i := range r.submissions {
		if r.submissions[i].ID == id && r.submissions[i].Status == string(models.StatusPending) {
			r.submissions[i].Status = string(status)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSubmissionRepo) GetSubmissionByID(_ context.Context, id primitive.ObjectID) (*models.Submission, error) {
	for i := range r.submissions {
		if r.submissions[i].ID == id {
			s := r.submissions[i]
			return &s, nil
		}
	}
	return nil, database.ErrSubmissionNotFound
}

// fakeSettingsRepo is an in-memory SettingsRepository.
type fakeSettingsRepo struct {
	values map[string]string
}

func (r *fakeSettingsRepo) GetSetting(_ context.Context, key string) (string, bool, error) {
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

// --- Test Suite Setup ---

const (
	testChannelID = int64(12345)
	testBotName   = "Photo Queue Bot"
)

type testHandlerSuite struct {
	t                *testing.T
	mockBot          *MockBot
	mockAdminChecker *MockAdminChecker
	submissionRepo   *fakeSubmissionRepo
	queueService     *queue.Service
	settingsStore    *settings.Store
	handler          *MessageHandler
}

// setupTestHandlerSuite creates a suite with fresh fakes and a handler wired
// over real domain services.
func setupTestHandlerSuite(t *testing.T) *testHandlerSuite {
	t.Helper()
	locales.Init("en")

	mockBot := new(MockBot)
	mockAdminChecker := new(MockAdminChecker)
	submissionRepo := &fakeSubmissionRepo{}

	cfg := &config.Config{
		DefaultSubscriberTag:    "#fromsubs",
		AdminPostThreshold:      5,
		PostingDelayMinutes:     60,
		PostingStart:            "00:00",
		PostingEnd:              "00:00",
		Timezone:                "UTC",
		DefaultSubmitPermission: "public",
	}

	queueService := queue.NewService(submissionRepo)
	settingsStore := settings.NewStore(&fakeSettingsRepo{}, cfg)
	gateway, err := channel.NewGateway(mockBot, testChannelID, nil)
	require.NoError(t, err)
	engine := autopull.NewEngine(queueService, settingsStore, gateway)
	aggregator := mediagroups.NewAggregator(queueService, 20*time.Millisecond)

	handler := NewMessageHandler(
		testBotName,
		testChannelID,
		queueService,
		settingsStore,
		engine,
		gateway,
		aggregator,
		mockAdminChecker,
		nil,
		nil,
	)

	t.Cleanup(func() {
		engine.Stop()
		aggregator.Shutdown()
	})

	return &testHandlerSuite{
		t:                t,
		mockBot:          mockBot,
		mockAdminChecker: mockAdminChecker,
		submissionRepo:   submissionRepo,
		queueService:     queueService,
		settingsStore:    settingsStore,
		handler:          handler,
	}
}

func userMessage(userID, chatID int64, text string) telego.Message {
	return telego.Message{
		MessageID: 100,
		From: &telego.User{
			ID:           userID,
			Username:     "testuser",
			FirstName:    "Test",
			LanguageCode: "en",
		},
		Chat: telego.Chat{ID: chatID},
		Date: time.Now().Unix(),
		Text: text,
	}
}

// expectSendMessage registers a SendMessage expectation and captures the params.
func (s *testHandlerSuite) expectSendMessage(captured **telego.SendMessageParams) {
	s.mockBot.On("SendMessage", mock.Anything, mock.AnythingOfType("*telego.SendMessageParams")).
		Run(func(args mock.Arguments) {
			if params, ok := args.Get(1).(*telego.SendMessageParams); ok {
				*captured = params
			}
		}).
		Return(&telego.Message{}, nil).Once()
}

// --- Tests ---

func TestHandleStart(t *testing.T) {
	s := setupTestHandlerSuite(t)
	ctx := context.Background()
	msg := userMessage(1000, 2000, "/start")

	s.mockAdminChecker.On("IsAdmin", mock.Anything, int64(1000)).Return(false, nil).Once()

	var captured *telego.SendMessageParams
	s.expectSendMessage(&captured)

	err := s.handler.HandleStart(ctx, s.mockBot, msg)

	assert.NoError(t, err)
	s.mockBot.AssertExpectations(t)
	require.NotNil(t, captured)
	assert.Equal(t, telegoutil.ID(int64(2000)), captured.ChatID)
	assert.Contains(t, captured.Text, testBotName)
	assert.Contains(t, captured.Text, "#fromsubs", "welcome message names the required tag")
}

func TestRequireAdminDeniesNonAdmin(t *testing.T) {
	s := setupTestHandlerSuite(t)
	ctx := context.Background()
	msg := userMessage(1000, 2000, "/queue")

	s.mockAdminChecker.On("IsAdmin", mock.Anything, int64(1000)).Return(false, nil).Once()

	var captured *telego.SendMessageParams
	s.expectSendMessage(&captured)

	err := s.handler.HandleQueue(ctx, s.mockBot, msg)

	assert.NoError(t, err)
	require.NotNil(t, captured)
	expected := locales.GetMessage(locales.NewLocalizer("en"), "MsgErrorRequiresAdmin", nil, nil)
	assert.Equal(t, expected, captured.Text)
}

func TestHandleQueueEmpty(t *testing.T) {
	s := setupTestHandlerSuite(t)
	ctx := context.Background()
	msg := userMessage(1000, 2000, "/queue")

	s.mockAdminChecker.On("IsAdmin", mock.Anything, int64(1000)).Return(true, nil).Once()

	var captured *telego.SendMessageParams
	s.expectSendMessage(&captured)

	err := s.handler.HandleQueue(ctx, s.mockBot, msg)

	assert.NoError(t, err)
	require.NotNil(t, captured)
	expected := locales.GetMessage(locales.NewLocalizer("en"), "MsgQueueEmpty", nil, nil)
	assert.Equal(t, expected, captured.Text)
}

func TestHandleQueueListsPendingSubmissions(t *testing.T) {
	s := setupTestHandlerSuite(t)
	ctx := context.Background()

	sub, _, err := s.queueService.Enqueue(ctx, queue.Draft{
		FileIDs: []string{"file-1"}, Caption: "#fromsubs hi", SubmitterID: 777, Username: "alice",
	})
	require.NoError(t, err)

	msg := userMessage(1000, 2000, "/queue")
	s.mockAdminChecker.On("IsAdmin", mock.Anything, int64(1000)).Return(true, nil).Once()

	var captured *telego.SendMessageParams
	s.expectSendMessage(&captured)

	err = s.handler.HandleQueue(ctx, s.mockBot, msg)

	assert.NoError(t, err)
	require.NotNil(t, captured)
	assert.Contains(t, captured.Text, sub.ID.Hex())
	assert.Contains(t, captured.Text, "@alice")
}

func TestHandleRemoveByPosition(t *testing.T) {
	s := setupTestHandlerSuite(t)
	ctx := context.Background()

	first, _, err := s.queueService.Enqueue(ctx, queue.Draft{FileIDs: []string{"file-1"}, SubmitterID: 777})
	require.NoError(t, err)
	_, _, err = s.queueService.Enqueue(ctx, queue.Draft{FileIDs: []string{"file-2"}, SubmitterID: 888})
	require.NoError(t, err)

	msg := userMessage(1000, 2000, "/remove 1")
	s.mockAdminChecker.On("IsAdmin", mock.Anything, int64(1000)).Return(true, nil).Once()

	var captured *telego.SendMessageParams
	s.expectSendMessage(&captured)

	err = s.handler.HandleRemove(ctx, s.mockBot, msg)

	assert.NoError(t, err)
	require.NotNil(t, captured)
	assert.Contains(t, captured.Text, first.ID.Hex())

	count, err := s.queueService.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandleRemoveByID(t *testing.T) {
	s := setupTestHandlerSuite(t)
	ctx := context.Background()

	sub, _, err := s.queueService.Enqueue(ctx, queue.Draft{FileIDs: []string{"file-1"}, SubmitterID: 777})
	require.NoError(t, err)

	msg := userMessage(1000, 2000, "/remove id "+sub.ID.Hex())
	s.mockAdminChecker.On("IsAdmin", mock.Anything, int64(1000)).Return(true, nil).Once()

	var captured *telego.SendMessageParams
	s.expectSendMessage(&captured)

	err = s.handler.HandleRemove(ctx, s.mockBot, msg)

	assert.NoError(t, err)
	require.NotNil(t, captured)
	expected := locales.GetMessage(locales.NewLocalizer("en"), "MsgRemoveSuccessID",
		map[string]interface{}{"ID": sub.ID.Hex()}, nil)
	assert.Equal(t, expected, captured.Text)
}

func TestHandleRemovePositionOutOfRange(t *testing.T) {
	s := setupTestHandlerSuite(t)
	ctx := context.Background()

	msg := userMessage(1000, 2000, "/remove 7")
	s.mockAdminChecker.On("IsAdmin", mock.Anything, int64(1000)).Return(true, nil).Once()

	var captured *telego.SendMessageParams
	s.expectSendMessage(&captured)

	err := s.handler.HandleRemove(ctx, s.mockBot, msg)

	assert.NoError(t, err)
	require.NotNil(t, captured)
	assert.Contains(t, captured.Text, "out of range")
}

func TestHandlePullPublishesQueueHead(t *testing.T) {
	s := setupTestHandlerSuite(t)
	ctx := context.Background()

	head, _, err := s.queueService.Enqueue(ctx, queue.Draft{FileIDs: []string{"file-1"}, SubmitterID: 777})
	require.NoError(t, err)
	_, _, err = s.queueService.Enqueue(ctx, queue.Draft{FileIDs: []string{"file-2"}, SubmitterID: 888})
	require.NoError(t, err)

	msg := userMessage(1000, 2000, "/pull")
	s.mockAdminChecker.On("IsAdmin", mock.Anything, int64(1000)).Return(true, nil).Once()

	var sentPhoto *telego.SendPhotoParams
	s.mockBot.On("SendPhoto", mock.Anything, mock.AnythingOfType("*telego.SendPhotoParams")).
		Run(func(args mock.Arguments) {
			if params, ok := args.Get(1).(*telego.SendPhotoParams); ok {
				sentPhoto = params
			}
		}).
		Return(&telego.Message{MessageID: 42}, nil).Once()

	var captured *telego.SendMessageParams
	s.expectSendMessage(&captured)

	err = s.handler.HandlePull(ctx, s.mockBot, msg)

	assert.NoError(t, err)
	s.mockBot.AssertExpectations(t)
	require.NotNil(t, sentPhoto)
	assert.Equal(t, telegoutil.ID(testChannelID), sentPhoto.ChatID, "publishes to the channel, not the chat")
	require.NotNil(t, captured)
	assert.Contains(t, captured.Text, head.ID.Hex())

	count, err := s.queueService.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "published head left the queue")
}

func TestHandleConfigSetThreshold(t *testing.T) {
	s := setupTestHandlerSuite(t)
	ctx := context.Background()

	msg := userMessage(1000, 2000, "/config set adminpostthreshold 3")
	s.mockAdminChecker.On("IsAdmin", mock.Anything, int64(1000)).Return(true, nil).Once()

	var captured *telego.SendMessageParams
	s.expectSendMessage(&captured)

	err := s.handler.HandleConfig(ctx, s.mockBot, msg)

	assert.NoError(t, err)
	assert.Equal(t, 3, s.settingsStore.AdminPostThreshold(ctx))
}

func TestHandleConfigShow(t *testing.T) {
	s := setupTestHandlerSuite(t)
	ctx := context.Background()

	msg := userMessage(1000, 2000, "/config show")
	s.mockAdminChecker.On("IsAdmin", mock.Anything, int64(1000)).Return(true, nil).Once()

	var captured *telego.SendMessageParams
	s.expectSendMessage(&captured)

	err := s.handler.HandleConfig(ctx, s.mockBot, msg)

	assert.NoError(t, err)
	require.NotNil(t, captured)
	assert.Contains(t, captured.Text, "#fromsubs")
	assert.Contains(t, captured.Text, "public")
}

func TestHandleMyPostsEmpty(t *testing.T) {
	s := setupTestHandlerSuite(t)
	ctx := context.Background()

	msg := userMessage(1000, 2000, "/myposts")

	var captured *telego.SendMessageParams
	s.expectSendMessage(&captured)

	err := s.handler.HandleMyPosts(ctx, s.mockBot, msg)

	assert.NoError(t, err)
	require.NotNil(t, captured)
	expected := locales.GetMessage(locales.NewLocalizer("en"), "MsgMyPostsEmpty", nil, nil)
	assert.Equal(t, expected, captured.Text)
}

func TestGetCommandHandler(t *testing.T) {
	s := setupTestHandlerSuite(t)

	assert.NotNil(t, s.handler.GetCommandHandler("start"))
	assert.NotNil(t, s.handler.GetCommandHandler("pull"))
	assert.Nil(t, s.handler.GetCommandHandler("nosuchcommand"))
}
