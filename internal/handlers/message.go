package handlers

import (
	"context"
	"strings"

	"photoqueue-bot/internal/locales"
	"photoqueue-bot/internal/mediagroups"
	"photoqueue-bot/internal/queue"
	"photoqueue-bot/internal/settings"
	telegoapi "photoqueue-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

// HandleSubmission processes a non-command private message as a photo
// submission attempt. Every message must carry at least one photo and the
// subscriber tag in its caption; media group parts are handed to the
// aggregator while standalone photos are enqueued directly.
func (h *MessageHandler) HandleSubmission(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)
	chatID := message.Chat.ID

	if len(message.Photo) == 0 {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgSubmissionRequiresPhoto", nil, nil))
	}

	if h.settings.SubmitPermission(ctx) == settings.SubmitPermissionAdmin {
		isAdmin, err := h.adminChecker.IsAdmin(ctx, message.From.ID)
		if err != nil {
			return h.sendError(ctx, bot, chatID, err)
		}
		if !isAdmin {
			return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgErrorRequiresAdmin", nil, nil))
		}
	}

	tag := h.settings.SubscriberTag(ctx)
	if tag == "" {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgSubscriberTagNotConfigured", nil, nil))
	}
	if !strings.Contains(strings.ToLower(message.Caption), strings.ToLower(tag)) {
		return h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgSubmissionRequiresTag", map[string]interface{}{
			"Tag": tag,
		}, nil))
	}

	// Telegram orders photo sizes ascending; the last entry is the original.
	fileID := message.Photo[len(message.Photo)-1].FileID

	if message.MediaGroupID != "" {
		h.aggregator.AddPart(mediagroups.Part{
			GroupID:     message.MediaGroupID,
			FileID:      fileID,
			Caption:     message.Caption,
			SubmitterID: message.From.ID,
			Username:    message.From.Username,
			FirstName:   message.From.FirstName,
			ChatID:      chatID,
		})
		h.RecordUserActivity(ctx, message.From, ActionSubmitMediaGroup, false, map[string]interface{}{
			"chat_id":        chatID,
			"media_group_id": message.MediaGroupID,
		})
		// The aggregator replies with the queue position once the group settles.
		return nil
	}

	submission, position, err := h.queue.Enqueue(ctx, queue.Draft{
		FileIDs:     []string{fileID},
		Caption:     message.Caption,
		SubmitterID: message.From.ID,
		Username:    message.From.Username,
		FirstName:   message.From.FirstName,
	})
	if err != nil {
		_ = h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgSubmissionFailed", nil, nil))
		return err
	}

	h.RecordUserActivity(ctx, message.From, ActionSubmitPhoto, false, map[string]interface{}{
		"chat_id":       chatID,
		"submission_id": submission.ID.Hex(),
		"position":      position,
	})
	if err := h.sendReply(ctx, bot, chatID, locales.GetMessage(localizer, "MsgSubmissionRecorded", map[string]interface{}{
		"Position": position,
	}, nil)); err != nil {
		return err
	}

	h.engine.OnSubmissionAdded(ctx)
	return nil
}
