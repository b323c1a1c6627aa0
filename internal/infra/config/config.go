package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken string
	DatabaseURL   string
	AdminChatID   int64
	LogLevel      string
	Environment   string
	// CronSpecRecurring drives the recurring-request dispatch pass.
	CronSpecRecurring string
	// CronSpecReminder drives the reminder dispatch pass.
	CronSpecReminder string
	// DynamicLookbackDays bounds the transaction window for dynamic amount
	// resolution.
	DynamicLookbackDays int
	// CadenceLookbackDays bounds the transaction window for cadence
	// inference; wider than the dynamic window so yearly charges register.
	CadenceLookbackDays int
	// DueLeniency lets a cycle fire slightly before its exact due instant
	// to absorb scheduler jitter.
	DueLeniency time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	adminIDStr := os.Getenv("ADMIN_CHAT_ID")
	if adminIDStr == "" {
		return nil, fmt.Errorf("ADMIN_CHAT_ID is not set")
	}
	cfg.AdminChatID, err = strconv.ParseInt(adminIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_CHAT_ID: %w", err)
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.CronSpecRecurring = os.Getenv("CRON_SPEC_RECURRING_CHECK")
	if cfg.CronSpecRecurring == "" {
		cfg.CronSpecRecurring = "*/10 * * * *" // Default: every 10 minutes
	}

	cfg.CronSpecReminder = os.Getenv("CRON_SPEC_REMINDER_CHECK")
	if cfg.CronSpecReminder == "" {
		cfg.CronSpecReminder = "*/5 * * * *" // Default: every 5 minutes
	}

	cfg.DynamicLookbackDays, err = intFromEnv("DYNAMIC_LOOKBACK_DAYS", 120)
	if err != nil {
		return nil, err
	}

	cfg.CadenceLookbackDays, err = intFromEnv("CADENCE_LOOKBACK_DAYS", 730)
	if err != nil {
		return nil, err
	}

	leniencyHours, err := intFromEnv("DUE_LENIENCY_HOURS", 2)
	if err != nil {
		return nil, err
	}
	cfg.DueLeniency = time.Duration(leniencyHours) * time.Hour

	return cfg, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, v)
	}
	return v, nil
}
