package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"photoqueue-bot/internal/database"
	"photoqueue-bot/internal/locales"
	"photoqueue-bot/internal/queue"
	telegoapi "photoqueue-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SetupCommands registers the command list with Telegram.
func (h *MessageHandler) SetupCommands(ctx context.Context, bot telegoapi.BotAPI) error {
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())

	cmds := make([]telego.BotCommand, 0, len(h.commands))
	for _, cmd := range h.commands {
		cmds = append(cmds, telego.BotCommand{
			Command:     cmd.Command,
			Description: locales.GetMessage(localizer, cmd.Description, nil, nil),
		})
	}

	if err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: cmds}); err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	return nil
}

// HandleStart handles the /start command. It sends a welcome message naming
// the subscriber tag a submission must carry.
func (h *MessageHandler) HandleStart(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	isAdmin, _ := h.adminChecker.IsAdmin(ctx, message.From.ID)
	h.RecordUserActivity(ctx, message.From, ActionCommandStart, isAdmin, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	startMsg := locales.GetMessage(localizer, "MsgStart", map[string]interface{}{
		"BotName": h.botName,
		"Tag":     h.settings.SubscriberTag(ctx),
	}, nil)
	return h.sendReply(ctx, bot, message.Chat.ID, startMsg)
}

// HandleHelp handles the /help command.
func (h *MessageHandler) HandleHelp(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	isAdmin, _ := h.adminChecker.IsAdmin(ctx, message.From.ID)
	h.RecordUserActivity(ctx, message.From, ActionCommandHelp, isAdmin, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	helpMsg := locales.GetMessage(localizer, "MsgHelp", nil, nil)
	return h.sendReply(ctx, bot, message.Chat.ID, helpMsg)
}

// HandleQueue handles the /queue command. It lists pending submissions in
// FIFO order with their positions.
func (h *MessageHandler) HandleQueue(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if ok, err := h.requireAdmin(ctx, bot, message); !ok {
		return err
	}
	localizer := h.getLocalizer(message.From)

	pending, err := h.queue.ListPending(ctx)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	if len(pending) == 0 {
		return h.sendReply(ctx, bot, message.Chat.ID, locales.GetMessage(localizer, "MsgQueueEmpty", nil, nil))
	}

	var sb strings.Builder
	for i, sub := range pending {
		caption := sub.Caption
		if caption == "" {
			caption = "N/A"
		}
		fmt.Fprintf(&sb, "%d. ID: %s, From: %s, Caption: %s\n", i+1, sub.ID.Hex(), formatSubmitter(&sub), caption)
	}

	h.RecordUserActivity(ctx, message.From, ActionCommandQueue, true, map[string]interface{}{
		"chat_id":      message.Chat.ID,
		"queue_length": len(pending),
	})
	return h.sendReply(ctx, bot, message.Chat.ID, strings.TrimRight(sb.String(), "\n"))
}

// HandleRemove handles the /remove command. It accepts either
// "/remove id <submissionId>" or "/remove [pos] <position>".
func (h *MessageHandler) HandleRemove(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if ok, err := h.requireAdmin(ctx, bot, message); !ok {
		return err
	}
	localizer := h.getLocalizer(message.From)
	chatID := message.Chat.ID

	args := commandArgs(message)
	if len(args) == 0 {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgRemoveUsage", nil, nil))
	}

	if args[0] == "id" {
		if len(args) < 2 {
			return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgRemoveUsage", nil, nil))
		}
		id, err := primitive.ObjectIDFromHex(args[1])
		if err != nil {
			return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgInvalidSubmissionID", nil, nil))
		}
		removed, err := h.queue.RemoveByID(ctx, id)
		if err != nil {
			return h.sendError(ctx, bot, chatID, err)
		}
		msgID := "MsgRemoveNotFound"
		if removed {
			msgID = "MsgRemoveSuccessID"
		}
		h.RecordUserActivity(ctx, message.From, ActionCommandRemove, true, map[string]interface{}{
			"chat_id":       chatID,
			"submission_id": args[1],
			"removed":       removed,
		})
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, msgID, map[string]interface{}{"ID": args[1]}, nil))
	}

	posArg := args[0]
	if posArg == "pos" {
		if len(args) < 2 {
			return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgRemoveUsage", nil, nil))
		}
		posArg = args[1]
	}
	position, err := strconv.Atoi(posArg)
	if err != nil || position < 1 {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgPositionInvalid", nil, nil))
	}

	submission, err := h.queue.RemoveByPosition(ctx, position)
	if err != nil {
		if errors.Is(err, queue.ErrPositionOutOfRange) {
			count, _ := h.queue.CountPending(ctx)
			return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgPositionOutOfRange", map[string]interface{}{
				"Position": position,
				"Count":    count,
			}, nil))
		}
		return h.sendError(ctx, bot, chatID, err)
	}

	h.RecordUserActivity(ctx, message.From, ActionCommandRemove, true, map[string]interface{}{
		"chat_id":       chatID,
		"position":      position,
		"submission_id": submission.ID.Hex(),
	})
	return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgRemoveSuccessPos", map[string]interface{}{
		"Position": position,
		"ID":       submission.ID.Hex(),
	}, nil))
}

// HandleView handles the /view command: show the submission at a 1-based
// queue position.
func (h *MessageHandler) HandleView(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if ok, err := h.requireAdmin(ctx, bot, message); !ok {
		return err
	}
	localizer := h.getLocalizer(message.From)
	chatID := message.Chat.ID

	args := commandArgs(message)
	if len(args) == 0 {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgViewUsage", nil, nil))
	}
	position, err := strconv.Atoi(args[0])
	if err != nil || position < 1 {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgPositionInvalid", nil, nil))
	}

	submission, err := h.queue.GetByPosition(ctx, position)
	if err != nil {
		if errors.Is(err, queue.ErrPositionOutOfRange) {
			count, _ := h.queue.CountPending(ctx)
			return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgPositionOutOfRange", map[string]interface{}{
				"Position": position,
				"Count":    count,
			}, nil))
		}
		return h.sendError(ctx, bot, chatID, err)
	}

	h.RecordUserActivity(ctx, message.From, ActionCommandView, true, map[string]interface{}{
		"chat_id":       chatID,
		"position":      position,
		"submission_id": submission.ID.Hex(),
	})
	if err := h.sendSubmissionMedia(ctx, bot, chatID, submission); err != nil {
		return h.sendError(ctx, bot, chatID, err)
	}
	return nil
}

// HandleViewID handles the /viewid command: show a submission by its unique ID.
func (h *MessageHandler) HandleViewID(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if ok, err := h.requireAdmin(ctx, bot, message); !ok {
		return err
	}
	localizer := h.getLocalizer(message.From)
	chatID := message.Chat.ID

	args := commandArgs(message)
	if len(args) == 0 {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgViewIDUsage", nil, nil))
	}
	id, err := primitive.ObjectIDFromHex(args[0])
	if err != nil {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgInvalidSubmissionID", nil, nil))
	}

	submission, err := h.queue.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrSubmissionNotFound) {
			return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgSubmissionNotFound", map[string]interface{}{"ID": args[0]}, nil))
		}
		return h.sendError(ctx, bot, chatID, err)
	}

	h.RecordUserActivity(ctx, message.From, ActionCommandViewID, true, map[string]interface{}{
		"chat_id":       chatID,
		"submission_id": args[0],
	})
	if err := h.sendSubmissionMedia(ctx, bot, chatID, submission); err != nil {
		return h.sendError(ctx, bot, chatID, err)
	}
	return nil
}

// HandleMyPosts handles the /myposts command. It lists the caller's pending
// submissions with their queue positions and contents.
func (h *MessageHandler) HandleMyPosts(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)
	chatID := message.Chat.ID
	userID := message.From.ID

	pending, err := h.queue.ListPending(ctx)
	if err != nil {
		return h.sendError(ctx, bot, chatID, err)
	}

	found := false
	for i, sub := range pending {
		if sub.SubmitterID != userID {
			continue
		}
		found = true
		entry := locales.GetMessage(localizer, "MsgMyPostsEntry", map[string]interface{}{
			"ID":       sub.ID.Hex(),
			"Position": i + 1,
		}, nil)
		if err := h.sendReply(ctx, bot, chatID, entry); err != nil {
			return err
		}
		if err := h.sendSubmissionMedia(ctx, bot, chatID, &pending[i]); err != nil {
			return h.sendError(ctx, bot, chatID, err)
		}
	}
	if !found {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgMyPostsEmpty", nil, nil))
	}

	h.RecordUserActivity(ctx, message.From, ActionCommandMyPosts, false, map[string]interface{}{
		"chat_id": chatID,
	})
	return nil
}

// HandleLatest handles the /latest command: list the newest submissions of
// any status. An optional numeric argument overrides the default limit of 5.
func (h *MessageHandler) HandleLatest(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if ok, err := h.requireAdmin(ctx, bot, message); !ok {
		return err
	}
	localizer := h.getLocalizer(message.From)
	chatID := message.Chat.ID

	limit := 5
	if args := commandArgs(message); len(args) > 0 {
		if parsed, err := strconv.Atoi(args[0]); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	latest, err := h.queue.ListLatest(ctx, limit)
	if err != nil {
		return h.sendError(ctx, bot, chatID, err)
	}
	if len(latest) == 0 {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgLatestEmpty", nil, nil))
	}

	var sb strings.Builder
	sb.WriteString("Latest submissions:\n")
	for i, sub := range latest {
		fmt.Fprintf(&sb, "%d. ID: %s, From: %s, Status: %s, Submitted: %s\n",
			i+1, sub.ID.Hex(), formatSubmitter(&sub), sub.Status, sub.CreatedAt.Format("2006-01-02 15:04"))
	}

	h.RecordUserActivity(ctx, message.From, ActionCommandLatest, true, map[string]interface{}{
		"chat_id": chatID,
		"limit":   limit,
	})
	return h.sendReply(ctx, bot, chatID, strings.TrimRight(sb.String(), "\n"))
}

// HandlePull handles the /pull command: immediately publish the queue head.
func (h *MessageHandler) HandlePull(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if ok, err := h.requireAdmin(ctx, bot, message); !ok {
		return err
	}
	localizer := h.getLocalizer(message.From)
	chatID := message.Chat.ID

	pending, err := h.queue.ListPending(ctx)
	if err != nil {
		return h.sendError(ctx, bot, chatID, err)
	}
	if len(pending) == 0 {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgQueueEmpty", nil, nil))
	}

	head := pending[0]
	if err := h.gateway.Publish(ctx, &head, false); err != nil {
		_ = h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgPullFailed", nil, nil))
		return err
	}
	if _, err := h.queue.RemoveByID(ctx, head.ID); err != nil {
		return h.sendError(ctx, bot, chatID, err)
	}

	h.RecordUserActivity(ctx, message.From, ActionCommandPull, true, map[string]interface{}{
		"chat_id":       chatID,
		"submission_id": head.ID.Hex(),
	})
	return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgPullSuccess", map[string]interface{}{
		"ID": head.ID.Hex(),
	}, nil))
}

// HandleStatus handles the /status command. It reports the queue length and
// the auto-pull decision inputs.
func (h *MessageHandler) HandleStatus(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if ok, err := h.requireAdmin(ctx, bot, message); !ok {
		return err
	}
	localizer := h.getLocalizer(message.From)
	chatID := message.Chat.ID

	status := h.engine.GetStatus(ctx)

	var sb strings.Builder
	sb.WriteString(locales.GetMessage(localizer, "MsgStatusQueueLine", map[string]interface{}{
		"Count": status.QueueLength,
	}, nil))
	sb.WriteString("\n\n")

	if status.QueueLength == 0 {
		sb.WriteString(locales.GetMessage(localizer, "MsgStatusQueueEmpty", nil, nil))
	} else {
		sb.WriteString(locales.GetMessage(localizer, "MsgStatusHeader", nil, nil))
		sb.WriteString("\n")
		switch {
		case !status.WithinWindow:
			sb.WriteString(locales.GetMessage(localizer, "MsgStatusOutsideWindow", map[string]interface{}{
				"Time": status.NextWindowStart.Format("15:04 MST"),
			}, nil))
		case status.AdminPostCount < status.Threshold:
			sb.WriteString(locales.GetMessage(localizer, "MsgStatusAdminProgress", map[string]interface{}{
				"Count":     status.AdminPostCount,
				"Threshold": status.Threshold,
				"Remaining": status.PostsRemaining,
			}, nil))
		case status.DelayRemaining > 0:
			minutes := int(status.DelayRemaining.Minutes()) + 1
			sb.WriteString(locales.GetMessage(localizer, "MsgStatusWaitingDelay", map[string]interface{}{
				"Count":     status.AdminPostCount,
				"Threshold": status.Threshold,
				"Minutes":   minutes,
			}, nil))
		default:
			sb.WriteString(locales.GetMessage(localizer, "MsgStatusReady", nil, nil))
		}
	}

	h.RecordUserActivity(ctx, message.From, ActionCommandStatus, true, map[string]interface{}{
		"chat_id": chatID,
	})
	return h.sendReply(ctx, bot, chatID, sb.String())
}

// HandleConfig handles the /config command: "show" prints the current
// settings, "set <key> <value...>" updates one of them.
func (h *MessageHandler) HandleConfig(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if ok, err := h.requireAdmin(ctx, bot, message); !ok {
		return err
	}
	localizer := h.getLocalizer(message.From)
	chatID := message.Chat.ID

	args := commandArgs(message)
	if len(args) == 0 {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigUsage", nil, nil))
	}

	switch strings.ToLower(args[0]) {
	case "show":
		notSet := locales.GetMessage(localizer, "MsgConfigNotSet", nil, nil)
		adminTags := strings.Join(h.settings.AdminTags(ctx), ", ")
		if adminTags == "" {
			adminTags = notSet
		}
		subscriberTag := h.settings.SubscriberTag(ctx)
		if subscriberTag == "" {
			subscriberTag = notSet
		}
		msg := locales.GetMessage(localizer, "MsgConfigShow", map[string]interface{}{
			"AdminTags":     adminTags,
			"SubscriberTag": subscriberTag,
			"Threshold":     h.settings.AdminPostThreshold(ctx),
			"Delay":         h.settings.PostingDelay(ctx),
			"Start":         h.settings.PostingStart(ctx),
			"End":           h.settings.PostingEnd(ctx),
			"Timezone":      h.settings.Timezone(ctx),
			"Permission":    h.settings.SubmitPermission(ctx),
		}, nil)
		return h.sendReply(ctx, bot, chatID, msg)

	case "set":
		if len(args) < 3 {
			return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigUsage", nil, nil))
		}
		return h.handleConfigSet(ctx, bot, message, strings.ToLower(args[1]), args[2:])

	default:
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigUsage", nil, nil))
	}
}

// handleConfigSet applies a single /config set update.
func (h *MessageHandler) handleConfigSet(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, key string, values []string) error {
	localizer := h.getLocalizer(message.From)
	chatID := message.Chat.ID

	record := func(detail interface{}) {
		h.RecordUserActivity(ctx, message.From, ActionCommandConfig, true, map[string]interface{}{
			"chat_id": chatID,
			"key":     key,
			"value":   detail,
		})
	}

	switch key {
	case "admintags":
		if err := h.settings.SetAdminTags(ctx, values); err != nil {
			return h.sendError(ctx, bot, chatID, err)
		}
		record(values)
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigAdminTagsUpdated", map[string]interface{}{
			"Tags": strings.Join(values, ", "),
		}, nil))

	case "subscribertag":
		if len(values) != 1 {
			return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigUsage", nil, nil))
		}
		if err := h.settings.SetSubscriberTag(ctx, values[0]); err != nil {
			return h.sendError(ctx, bot, chatID, err)
		}
		record(values[0])
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigSubscriberTagUpdated", map[string]interface{}{
			"Tag": values[0],
		}, nil))

	case "adminpostthreshold":
		threshold, err := strconv.Atoi(values[0])
		if err != nil || threshold < 0 {
			return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigInvalidNumber", nil, nil))
		}
		if err := h.settings.SetAdminPostThreshold(ctx, threshold); err != nil {
			return h.sendError(ctx, bot, chatID, err)
		}
		record(threshold)
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigThresholdUpdated", map[string]interface{}{
			"Threshold": threshold,
		}, nil))

	case "postingdelay":
		delay, err := strconv.Atoi(values[0])
		if err != nil || delay < 0 {
			return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigInvalidNumber", nil, nil))
		}
		if err := h.settings.SetPostingDelay(ctx, delay); err != nil {
			return h.sendError(ctx, bot, chatID, err)
		}
		record(delay)
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigDelayUpdated", map[string]interface{}{
			"Delay": delay,
		}, nil))

	case "submitpermission":
		if len(values) != 1 {
			return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigUsage", nil, nil))
		}
		permission := strings.ToLower(values[0])
		if permission != "public" && permission != "admin" {
			return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigInvalidPermission", nil, nil))
		}
		if err := h.settings.SetSubmitPermission(ctx, permission); err != nil {
			return h.sendError(ctx, bot, chatID, err)
		}
		record(permission)
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigPermissionUpdated", map[string]interface{}{
			"Permission": permission,
		}, nil))

	default:
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigUnknownKey", nil, nil))
	}
}

// HandleSetAdminCount handles the /setadmincount command: override the
// persisted admin post counter and re-evaluate the publish decision.
func (h *MessageHandler) HandleSetAdminCount(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if ok, err := h.requireAdmin(ctx, bot, message); !ok {
		return err
	}
	localizer := h.getLocalizer(message.From)
	chatID := message.Chat.ID

	args := commandArgs(message)
	if len(args) != 1 {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgSetAdminCountUsage", nil, nil))
	}
	count, err := strconv.Atoi(args[0])
	if err != nil || count < 0 {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgConfigInvalidNumber", nil, nil))
	}

	if err := h.settings.SetAdminPostCount(ctx, count); err != nil {
		return h.sendError(ctx, bot, chatID, err)
	}
	h.engine.OnSubmissionAdded(ctx) // Counter changed, the decision may have too

	h.RecordUserActivity(ctx, message.From, ActionCommandSetAdminCount, true, map[string]interface{}{
		"chat_id": chatID,
		"count":   count,
	})
	return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgSetAdminCountUpdated", map[string]interface{}{
		"Count": count,
	}, nil))
}
