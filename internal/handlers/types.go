package handlers

import (
	"context"
	"log"

	"photoqueue-bot/internal/auth"
	"photoqueue-bot/internal/autopull"
	"photoqueue-bot/internal/channel"
	"photoqueue-bot/internal/database"
	"photoqueue-bot/internal/mediagroups"
	"photoqueue-bot/internal/queue"
	"photoqueue-bot/internal/settings"
	telegoapi "photoqueue-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

// Action types for logging and user updates
const (
	ActionCommandStart         = "command_start"
	ActionCommandHelp          = "command_help"
	ActionCommandQueue         = "command_queue"
	ActionCommandRemove        = "command_remove"
	ActionCommandView          = "command_view"
	ActionCommandViewID        = "command_viewid"
	ActionCommandMyPosts       = "command_myposts"
	ActionCommandLatest        = "command_latest"
	ActionCommandPull          = "command_pull"
	ActionCommandStatus        = "command_status"
	ActionCommandConfig        = "command_config"
	ActionCommandSetAdminCount = "command_setadmincount"
	ActionSubmitPhoto          = "submit_photo"
	ActionSubmitMediaGroup     = "submit_media_group"
)

// Command represents a bot command, mapping the command string to its
// localized description key and handler function.
type Command struct {
	Command     string
	Description string // Message ID of the localized description
	AdminOnly   bool
	Handler     func(context.Context, telegoapi.BotAPI, telego.Message) error
}

// MessageHandler handles incoming Telegram messages: the command surface and
// the photo submission flow.
type MessageHandler struct {
	botName   string
	channelID int64

	queue        *queue.Service
	settings     *settings.Store
	engine       *autopull.Engine
	gateway      *channel.Gateway
	aggregator   *mediagroups.Aggregator
	adminChecker auth.AdminCheckerInterface
	actionLogger database.UserActionLogger
	userRepo     database.UserRepository

	commands []Command
}

// NewMessageHandler creates and initializes a new MessageHandler instance.
func NewMessageHandler(
	botName string,
	channelID int64,
	queueService *queue.Service,
	settingsStore *settings.Store,
	engine *autopull.Engine,
	gateway *channel.Gateway,
	aggregator *mediagroups.Aggregator,
	adminChecker auth.AdminCheckerInterface,
	actionLogger database.UserActionLogger,
	userRepo database.UserRepository,
) *MessageHandler {
	if queueService == nil || settingsStore == nil || engine == nil || gateway == nil || aggregator == nil {
		log.Fatal("MessageHandler: queue, settings, engine, gateway and aggregator dependencies are required")
	}
	if adminChecker == nil {
		log.Fatal("MessageHandler: admin checker dependency is nil")
	}

	h := &MessageHandler{
		botName:      botName,
		channelID:    channelID,
		queue:        queueService,
		settings:     settingsStore,
		engine:       engine,
		gateway:      gateway,
		aggregator:   aggregator,
		adminChecker: adminChecker,
		actionLogger: actionLogger,
		userRepo:     userRepo,
	}
	h.commands = []Command{
		{Command: "start", Description: "CmdStartDesc", Handler: h.HandleStart},
		{Command: "help", Description: "CmdHelpDesc", Handler: h.HandleHelp},
		{Command: "myposts", Description: "CmdMyPostsDesc", Handler: h.HandleMyPosts},
		{Command: "queue", Description: "CmdQueueDesc", AdminOnly: true, Handler: h.HandleQueue},
		{Command: "remove", Description: "CmdRemoveDesc", AdminOnly: true, Handler: h.HandleRemove},
		{Command: "view", Description: "CmdViewDesc", AdminOnly: true, Handler: h.HandleView},
		{Command: "viewid", Description: "CmdViewIDDesc", AdminOnly: true, Handler: h.HandleViewID},
		{Command: "latest", Description: "CmdLatestDesc", AdminOnly: true, Handler: h.HandleLatest},
		{Command: "pull", Description: "CmdPullDesc", AdminOnly: true, Handler: h.HandlePull},
		{Command: "status", Description: "CmdStatusDesc", AdminOnly: true, Handler: h.HandleStatus},
		{Command: "config", Description: "CmdConfigDesc", AdminOnly: true, Handler: h.HandleConfig},
		{Command: "setadmincount", Description: "CmdSetAdminCountDesc", AdminOnly: true, Handler: h.HandleSetAdminCount},
	}
	return h
}

// GetChannelID returns the target channel ID configured for this handler.
func (h *MessageHandler) GetChannelID() int64 {
	return h.channelID
}

// GetCommandHandler retrieves the handler function associated with a specific
// command string (e.g., "start"). It returns nil if the command is not found.
func (h *MessageHandler) GetCommandHandler(command string) func(context.Context, telegoapi.BotAPI, telego.Message) error {
	for _, cmd := range h.commands {
		if cmd.Command == command {
			return cmd.Handler
		}
	}
	return nil
}

// Commands returns the registered command table.
func (h *MessageHandler) Commands() []Command {
	return h.commands
}
