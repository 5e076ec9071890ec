// Package bot wraps the telego update stream: it rate limits, recovers
// panics, and routes each update to the command surface, the submission
// flow, or the auto-pull engine.
package bot

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"photoqueue-bot/internal/autopull"
	"photoqueue-bot/internal/handlers"
	"photoqueue-bot/internal/locales"
	"photoqueue-bot/internal/mediagroups"
	telegoapi "photoqueue-bot/pkg/telegoapi"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/ratelimit"
)

// Bot owns the update processing loop.
type Bot struct {
	bot         telegoapi.BotAPI
	updatesChan <-chan telego.Update
	debug       bool

	handler     *handlers.MessageHandler
	engine      *autopull.Engine
	aggregator  *mediagroups.Aggregator
	ratelimiter ratelimit.Limiter
}

// BotDeps holds the dependencies required by the Bot.
type BotDeps struct {
	Bot         telegoapi.BotAPI
	UpdatesChan <-chan telego.Update
	Debug       bool
	Handler     *handlers.MessageHandler
	Engine      *autopull.Engine
	Aggregator  *mediagroups.Aggregator
}

// New creates a new Bot instance from its dependencies.
func New(deps BotDeps) (*Bot, error) {
	if deps.Bot == nil {
		return nil, fmt.Errorf("telego bot (BotAPI) instance cannot be nil")
	}
	if deps.UpdatesChan == nil {
		return nil, fmt.Errorf("updates channel cannot be nil")
	}
	if deps.Handler == nil {
		return nil, fmt.Errorf("message handler cannot be nil")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("auto-pull engine cannot be nil")
	}
	if deps.Aggregator == nil {
		return nil, fmt.Errorf("media group aggregator cannot be nil")
	}

	return &Bot{
		bot:         deps.Bot,
		updatesChan: deps.UpdatesChan,
		debug:       deps.Debug,
		handler:     deps.Handler,
		engine:      deps.Engine,
		aggregator:  deps.Aggregator,
		ratelimiter: ratelimit.New(20),
	}, nil
}

// handleCommandUpdate processes a message identified as a command.
func (b *Bot) handleCommandUpdate(ctx context.Context, message telego.Message) {
	command := "unknown"
	if len(message.Text) > 1 && strings.HasPrefix(message.Text, "/") {
		command = strings.Split(message.Text, " ")[0][1:]
		// Strip a "@botname" suffix so commands work in group chats too.
		if at := strings.Index(command, "@"); at != -1 {
			command = command[:at]
		}
	}
	logPrefix := fmt.Sprintf("[Cmd:%s User:%d]", command, message.From.ID)

	handlerFunc := b.handler.GetCommandHandler(command)
	if handlerFunc == nil {
		log.Printf("%s No handler found", logPrefix)
		localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
		unknownCmdMsg := locales.GetMessage(localizer, "MsgErrorUnknownCommand", nil, nil)
		if _, err := b.bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), unknownCmdMsg)); err != nil {
			log.Printf("%s Failed to send unknown command message: %v", logPrefix, err)
		}
		return
	}

	if b.debug {
		log.Printf("%s Executing handler", logPrefix)
	}
	if err := handlerFunc(ctx, b.bot, message); err != nil {
		log.Printf("%s Handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s handler error: %w", logPrefix, err))
	}
}

// handleSubmissionUpdate processes a non-command message as a submission attempt.
func (b *Bot) handleSubmissionUpdate(ctx context.Context, message telego.Message) {
	logPrefix := fmt.Sprintf("[Submit User:%d Msg:%d]", message.From.ID, message.MessageID)
	if b.debug {
		log.Printf("%s Processing submission", logPrefix)
	}
	if err := b.handler.HandleSubmission(ctx, b.bot, message); err != nil {
		log.Printf("%s Handler error: %v", logPrefix, err)
		sentry.CaptureException(fmt.Errorf("%s submission handler error: %w", logPrefix, err))
	}
}

// handleChannelPost feeds posts from the target channel into the auto-pull
// engine. Posts from any other channel the bot happens to be in are ignored.
func (b *Bot) handleChannelPost(ctx context.Context, post telego.Message) {
	if post.Chat.ID != b.handler.GetChannelID() {
		if b.debug {
			log.Printf("Ignoring channel post from unrelated chat %d", post.Chat.ID)
		}
		return
	}
	b.engine.OnChannelPost(ctx, post.Text, post.Caption)
}

// processUpdate routes incoming updates to the appropriate handlers.
func (b *Bot) processUpdate(ctx context.Context, update telego.Update) {
	b.ratelimiter.Take()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in processUpdate: %v\n%s", r, debug.Stack())
			sentry.CurrentHub().Recover(r)
			sentry.Flush(time.Second * 2)
		}
	}()

	processingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch {
	case update.Message != nil:
		message := *update.Message
		if message.From == nil {
			log.Printf("Ignoring message %d from chat %d without sender", message.MessageID, message.Chat.ID)
			return
		}
		if strings.HasPrefix(message.Text, "/") {
			b.handleCommandUpdate(processingCtx, message)
		} else {
			b.handleSubmissionUpdate(processingCtx, message)
		}

	case update.ChannelPost != nil:
		b.handleChannelPost(processingCtx, *update.ChannelPost)

	default:
		if b.debug {
			log.Printf("Ignoring unhandled update type: %+v", update)
		}
	}
}

// consumeAggregatorEvents replies to submitters once their media group has
// been assembled and queued, and nudges the engine for each new submission.
func (b *Bot) consumeAggregatorEvents(ctx context.Context) {
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.aggregator.Events():
			if !ok {
				return
			}
			if ev.Err != nil {
				log.Printf("[Bot] Media group %s failed to enqueue: %v", ev.GroupID, ev.Err)
				sentry.CaptureException(ev.Err)
				msg := locales.GetMessage(localizer, "MsgSubmissionFailed", nil, nil)
				if _, err := b.bot.SendMessage(ctx, tu.Message(tu.ID(ev.ChatID), msg)); err != nil {
					log.Printf("[Bot] Failed to notify chat %d: %v", ev.ChatID, err)
				}
				continue
			}

			msg := locales.GetMessage(localizer, "MsgSubmissionRecorded", map[string]interface{}{
				"Position": ev.Position,
			}, nil)
			if _, err := b.bot.SendMessage(ctx, tu.Message(tu.ID(ev.ChatID), msg)); err != nil {
				log.Printf("[Bot] Failed to notify chat %d: %v", ev.ChatID, err)
			}
			b.engine.OnSubmissionAdded(ctx)
		}
	}
}

// Start begins the bot's update processing loop. It blocks until ctx is done
// and all in-flight updates are handled.
func (b *Bot) Start(ctx context.Context) {
	log.Println("Listening for updates...")

	go b.consumeAggregatorEvents(ctx)

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			log.Println("Context done, stopping update processing...")
			wg.Wait()
			log.Println("All update processing finished.")
			return
		case update, ok := <-b.updatesChan:
			if !ok {
				log.Println("Updates channel closed.")
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(up telego.Update) {
				defer wg.Done()
				b.processUpdate(ctx, up)
			}(update)
		}
	}
}
