package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"

	"photoqueue-bot/internal/database/models"
	"photoqueue-bot/internal/locales"
	telegoapi "photoqueue-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// sendReply sends a plain text message to the user, logging send failures
// instead of surfacing them.
func (h *MessageHandler) sendReply(ctx context.Context, bot telegoapi.BotAPI, chatID int64, text string) error {
	_, err := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		log.Printf("Error sending message to chat %d: %v", chatID, err)
	}
	return nil
}

// sendError sends a generic localized error message to the user and returns
// the original error so the update loop can report it.
func (h *MessageHandler) sendError(ctx context.Context, bot telegoapi.BotAPI, chatID int64, originalErr error) error {
	log.Printf("Error for user in chat %d: %v", chatID, originalErr)

	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
	errMsg := locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil)

	if _, sendErr := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), errMsg)); sendErr != nil {
		log.Printf("Error sending generic error message to chat %d: %v", chatID, sendErr)
	}

	return originalErr
}

// getLocalizer determines the best localizer for a given user.
func (h *MessageHandler) getLocalizer(user *telego.User) *i18n.Localizer {
	lang := locales.GetDefaultLanguageTag().String()
	if user != nil && user.LanguageCode != "" {
		lang = user.LanguageCode
	}
	return locales.NewLocalizer(lang)
}

// RecordUserActivity combines updating user info and logging the action.
func (h *MessageHandler) RecordUserActivity(ctx context.Context, user *telego.User, action string, isAdmin bool, details map[string]interface{}) {
	if user == nil {
		log.Printf("Attempted to record activity for nil user, action: %s", action)
		return
	}

	if h.userRepo != nil {
		if err := h.userRepo.UpdateUser(ctx, user.ID, user.Username, user.FirstName, user.LastName, isAdmin, action); err != nil {
			log.Printf("Error updating user %d (%s) in DB during action %s: %v", user.ID, user.Username, action, err)
		}
	}
	if h.actionLogger != nil {
		if err := h.actionLogger.LogUserAction(user.ID, action, details); err != nil {
			log.Printf("Error logging action %s for user %d (%s): %v", action, user.ID, user.Username, err)
		}
	}
}

// requireAdmin checks whether the message sender administers the target
// channel. When they do not, a localized denial is sent and false returned.
func (h *MessageHandler) requireAdmin(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) (bool, error) {
	isAdmin, err := h.adminChecker.IsAdmin(ctx, message.From.ID)
	if err != nil {
		return false, h.sendError(ctx, bot, message.Chat.ID, err)
	}
	if !isAdmin {
		localizer := h.getLocalizer(message.From)
		msg := locales.GetMessage(localizer, "MsgErrorRequiresAdmin", nil, nil)
		return false, h.sendReply(ctx, bot, message.Chat.ID, msg)
	}
	return true, nil
}

// sendSubmissionMedia sends a submission's photos to chatID, as a single
// photo or as an album with the caption on the first item.
func (h *MessageHandler) sendSubmissionMedia(ctx context.Context, bot telegoapi.BotAPI, chatID int64, submission *models.Submission) error {
	if len(submission.FileIDs) == 1 {
		params := tu.Photo(tu.ID(chatID), telego.InputFile{FileID: submission.FileIDs[0]})
		params.Caption = submission.Caption
		_, err := bot.SendPhoto(ctx, params)
		return err
	}

	media := make([]telego.InputMedia, 0, len(submission.FileIDs))
	for i, fileID := range submission.FileIDs {
		photo := tu.MediaPhoto(telego.InputFile{FileID: fileID})
		if i == 0 {
			photo.Caption = submission.Caption
		}
		media = append(media, photo)
	}
	_, err := bot.SendMediaGroup(ctx, tu.MediaGroup(tu.ID(chatID), media...))
	return err
}

// formatSubmitter renders a submitter for queue listings.
func formatSubmitter(submission *models.Submission) string {
	if submission.Username != "" {
		return fmt.Sprintf("@%s (ID: %d)", submission.Username, submission.SubmitterID)
	}
	return fmt.Sprintf("User ID: %d", submission.SubmitterID)
}

// commandArgs returns the whitespace-separated arguments after the command itself.
func commandArgs(message telego.Message) []string {
	fields := strings.Fields(message.Text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}
