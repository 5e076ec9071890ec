// Package channel performs the outbound publish side effect: delivering a
// submission to the target channel as a single photo or a grouped album.
package channel

import (
	"context"
	"fmt"
	"log"
	"time"

	"photoqueue-bot/internal/database"
	"photoqueue-bot/internal/database/models"
	telegoapi "photoqueue-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Gateway publishes submissions to the configured channel.
type Gateway struct {
	bot        telegoapi.BotAPI
	channelID  int64
	postLogger database.PostLogger
}

// NewGateway creates a channel gateway.
func NewGateway(bot telegoapi.BotAPI, channelID int64, postLogger database.PostLogger) (*Gateway, error) {
	if bot == nil {
		return nil, fmt.Errorf("bot instance cannot be nil")
	}
	if channelID == 0 {
		return nil, fmt.Errorf("channel ID cannot be zero")
	}
	return &Gateway{
		bot:        bot,
		channelID:  channelID,
		postLogger: postLogger,
	}, nil
}

// Publish delivers the submission's photos to the channel. A single file is
// sent as one photo; multiple files are sent as one album with the caption on
// the first item. There is no partial success: either the whole submission is
// delivered or an error is returned.
func (g *Gateway) Publish(ctx context.Context, submission *models.Submission, auto bool) error {
	if submission == nil || len(submission.FileIDs) == 0 {
		return fmt.Errorf("submission has no files to publish")
	}

	var channelPostID int
	messageType := "photo"

	if len(submission.FileIDs) == 1 {
		params := tu.Photo(tu.ID(g.channelID), telego.InputFile{FileID: submission.FileIDs[0]})
		params.Caption = submission.Caption
		sent, err := g.bot.SendPhoto(ctx, params)
		if err != nil {
			return fmt.Errorf("failed to send photo to channel: %w", err)
		}
		if sent != nil {
			channelPostID = sent.MessageID
		}
	} else {
		messageType = "media_group"
		media := make([]telego.InputMedia, 0, len(submission.FileIDs))
		for i, fileID := range submission.FileIDs {
			photo := tu.MediaPhoto(telego.InputFile{FileID: fileID})
			if i == 0 {
				photo.Caption = submission.Caption
			}
			media = append(media, photo)
		}
		sent, err := g.bot.SendMediaGroup(ctx, tu.MediaGroup(tu.ID(g.channelID), media...))
		if err != nil {
			return fmt.Errorf("failed to send media group to channel: %w", err)
		}
		if len(sent) > 0 {
			channelPostID = sent[0].MessageID
		}
	}

	if g.postLogger != nil {
		logEntry := models.PostLog{
			SubmissionID:  submission.ID.Hex(),
			SubmitterID:   submission.SubmitterID,
			Username:      submission.Username,
			Caption:       submission.Caption,
			MessageType:   messageType,
			FileCount:     len(submission.FileIDs),
			SubmittedAt:   submission.CreatedAt,
			PublishedAt:   time.Now(),
			ChannelID:     g.channelID,
			ChannelPostID: channelPostID,
			AutoPublished: auto,
		}
		if err := g.postLogger.LogPublishedPost(logEntry); err != nil {
			// Log only: the publish itself succeeded.
			log.Printf("[Gateway] Error logging published post %s: %v", submission.ID.Hex(), err)
		}
	}

	return nil
}

// CheckBotAccess verifies the bot is an administrator of the target channel.
// A missing privilege is reported as a warning, not a failure: the bot can
// still run and collect submissions.
func (g *Gateway) CheckBotAccess(ctx context.Context) error {
	me, err := g.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to identify bot: %w", err)
	}

	member, err := g.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: g.channelID},
		UserID: me.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to check bot membership in channel %d: %w", g.channelID, err)
	}

	status := member.MemberStatus()
	if status != telego.MemberStatusCreator && status != telego.MemberStatusAdministrator {
		log.Printf("Warning: bot is not an admin in channel %d (status %q). Publishing will fail until it is promoted.", g.channelID, status)
	} else {
		log.Println("Bot is connected to the channel and has admin privileges.")
	}
	return nil
}
