package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"photoqueue-bot/internal/auth"
	"photoqueue-bot/internal/autopull"
	"photoqueue-bot/internal/channel"
	"photoqueue-bot/internal/config"
	"photoqueue-bot/internal/database"
	"photoqueue-bot/internal/handlers"
	"photoqueue-bot/internal/locales"
	"photoqueue-bot/internal/mediagroups"
	"photoqueue-bot/internal/queue"
	"photoqueue-bot/internal/settings"

	telegoBot "photoqueue-bot/bot"

	sentry "github.com/getsentry/sentry-go"
	telego "github.com/mymmrac/telego"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize localization bundle
	locales.Init(cfg.DefaultLanguage)

	// Initialize Sentry (if DSN is provided)
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.Version,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	// Connect to MongoDB
	client, db, err := database.ConnectDB(cfg)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}
	defer func() {
		if err = client.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
			sentry.CaptureException(err)
		} else {
			log.Println("Disconnected from MongoDB.")
		}
	}()

	// Create repository instances
	submissionRepo := database.NewMongoSubmissionRepository(db)
	settingsRepo := database.NewMongoSettingsRepository(db)
	mongoLogger := database.NewMongoLogger(db)

	// Creating context for application lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Bot Initialization ---
	// 1. Create the raw telego bot instance first
	var bot *telego.Bot
	if cfg.Debug {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	}
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create telego bot: %v", err)
	}

	// 2. Create the admin checker
	adminChecker, err := auth.NewAdminChecker(bot, cfg.ChannelID)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create admin checker: %v", err)
	}

	// 3. Domain services
	settingsStore := settings.NewStore(settingsRepo, cfg)
	queueService := queue.NewService(submissionRepo)

	gateway, err := channel.NewGateway(bot, cfg.ChannelID, mongoLogger)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create channel gateway: %v", err)
	}
	if err := gateway.CheckBotAccess(ctx); err != nil {
		log.Printf("Channel access check failed: %v", err)
		sentry.CaptureException(err)
	}

	aggregator := mediagroups.NewAggregator(queueService, mediagroups.DefaultQuietWindow)
	engine := autopull.NewEngine(queueService, settingsStore, gateway)

	// 4. Create message handler with dependencies
	messageHandler := handlers.NewMessageHandler(
		cfg.BotName,
		cfg.ChannelID,
		queueService,
		settingsStore,
		engine,
		gateway,
		aggregator,
		adminChecker,
		mongoLogger,
		mongoLogger,
	)
	if err := messageHandler.SetupCommands(ctx, bot); err != nil {
		log.Printf("Failed to register bot commands: %v", err)
		sentry.CaptureException(err)
	}

	// 5. Start receiving updates and create the bot wrapper
	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to start long polling: %v", err)
	}

	appBot, err := telegoBot.New(telegoBot.BotDeps{
		Bot:         bot,
		UpdatesChan: updates,
		Debug:       cfg.Debug,
		Handler:     messageHandler,
		Engine:      engine,
		Aggregator:  aggregator,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}

	engine.Start(ctx)
	go appBot.Start(ctx)

	// Wait for context cancellation (e.g., SIGINT, SIGTERM)
	<-ctx.Done()

	log.Println("Shutting down bot...")
	engine.Stop()
	aggregator.Shutdown()
	log.Println("Bot shutdown complete.")
}
