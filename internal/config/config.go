package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	AppEnv          string
	Debug           bool
	Version         string
	BotToken        string
	BotName         string
	ChannelID       int64
	SentryDSN       string
	MongoDBURI      string
	MongoDBDatabase string
	DefaultLanguage string

	// Defaults for runtime settings. The settings store falls back to these
	// when a key has never been written.
	DefaultAdminTags        []string
	DefaultSubscriberTag    string
	AdminPostThreshold      int
	PostingDelayMinutes     int
	PostingStart            string // "HH:MM" local time
	PostingEnd              string // "HH:MM" local time
	Timezone                string // IANA timezone identifier
	DefaultSubmitPermission string // "public" or "admin"
}

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present but prioritizes
// actual environment variables set in the system (e.g., by Docker).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	debug, _ := strconv.ParseBool(getEnv("DEBUG", "false"))

	channelIDStr := getEnv("CHANNEL_ID", "")
	channelID, err := strconv.ParseInt(channelIDStr, 10, 64)
	if err != nil && channelIDStr != "" {
		return nil, fmt.Errorf("invalid CHANNEL_ID: %w", err)
	}

	threshold, err := strconv.Atoi(getEnv("ADMIN_POST_THRESHOLD", "5"))
	if err != nil || threshold < 0 {
		return nil, fmt.Errorf("invalid ADMIN_POST_THRESHOLD: %q", getEnv("ADMIN_POST_THRESHOLD", "5"))
	}
	delay, err := strconv.Atoi(getEnv("POSTING_DELAY", "60"))
	if err != nil || delay < 0 {
		return nil, fmt.Errorf("invalid POSTING_DELAY: %q", getEnv("POSTING_DELAY", "60"))
	}

	var adminTags []string
	for _, tag := range strings.Split(getEnv("DEFAULT_ADMIN_TAGS", ""), ",") {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			adminTags = append(adminTags, trimmed)
		}
	}

	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Debug:           debug,
		Version:         getEnv("VERSION", "dev"),
		BotToken:        getEnv("TELEGRAM_BOT_TOKEN", ""),
		BotName:         getEnv("BOT_NAME", "Photo Queue Bot"),
		ChannelID:       channelID,
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		MongoDBURI:      getEnv("MONGODB_URI", ""),
		MongoDBDatabase: getEnv("MONGODB_DATABASE", ""),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en"),

		DefaultAdminTags:        adminTags,
		DefaultSubscriberTag:    getEnv("DEFAULT_SUBSCRIBER_TAG", ""),
		AdminPostThreshold:      threshold,
		PostingDelayMinutes:     delay,
		PostingStart:            getEnv("POSTING_START", "08:00"),
		PostingEnd:              getEnv("POSTING_END", "00:00"),
		Timezone:                getEnv("TIMEZONE", "UTC"),
		DefaultSubmitPermission: getEnv("DEFAULT_SUBMIT_PERMISSION", "public"),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.ChannelID == 0 {
		return nil, fmt.Errorf("CHANNEL_ID is required")
	}
	if cfg.MongoDBURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}
	if cfg.MongoDBDatabase == "" {
		return nil, fmt.Errorf("MONGODB_DATABASE is required")
	}
	if cfg.SentryDSN == "" {
		log.Println("Warning: SENTRY_DSN is not set. Error tracking disabled.")
	}
	if cfg.DefaultSubmitPermission != "public" && cfg.DefaultSubmitPermission != "admin" {
		return nil, fmt.Errorf("DEFAULT_SUBMIT_PERMISSION must be 'public' or 'admin', got %q", cfg.DefaultSubmitPermission)
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
