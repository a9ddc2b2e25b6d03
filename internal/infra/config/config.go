package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL     string
	TelegramToken   string // optional; the admin bot is disabled when empty
	AdminTelegramID int64
	LogLevel        string
	Environment     string
	Location        *time.Location // calendar used for "today" and due-date comparisons

	CronSpecEvaluate    string
	CronSpecLedgerPrune string
	PassTimeout         time.Duration
	LedgerRetention     time.Duration
	DryRun              bool

	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string
	SMTPFromEmail string
	SMTPFromName  string

	AMQPURL      string
	AMQPExchange string

	RedisURL    string
	PassLockTTL time.Duration

	SentryDSN string
	HTTPAddr  string
	JWTSecret string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}
	if cfg.TelegramToken != "" && cfg.AdminTelegramID == 0 {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is required when TELEGRAM_TOKEN is set")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	cfg.Location = time.Local
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		cfg.Location, err = time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
		}
	}

	// Defaults: evaluate at 9 AM daily, prune the ledger at 3:30 AM daily.
	cfg.CronSpecEvaluate = getEnv("CRON_SPEC_EVALUATE", "0 9 * * *")
	cfg.CronSpecLedgerPrune = getEnv("CRON_SPEC_LEDGER_PRUNE", "30 3 * * *")

	if cfg.PassTimeout, err = getEnvDuration("PASS_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	retentionDays, err := getEnvInt("LEDGER_RETENTION_DAYS", 90)
	if err != nil {
		return nil, err
	}
	if retentionDays < 2 {
		// same-day idempotence needs at least yesterday and today
		return nil, fmt.Errorf("LEDGER_RETENTION_DAYS must be at least 2, got %d", retentionDays)
	}
	cfg.LedgerRetention = time.Duration(retentionDays) * 24 * time.Hour

	if raw := os.Getenv("DRY_RUN"); raw != "" {
		cfg.DryRun, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid DRY_RUN: %w", err)
		}
	}

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	if cfg.SMTPPort, err = getEnvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFromEmail = os.Getenv("SMTP_FROM_EMAIL")
	cfg.SMTPFromName = getEnv("SMTP_FROM_NAME", "Lodge Secretary")
	if cfg.SMTPHost != "" && cfg.SMTPFromEmail == "" {
		return nil, fmt.Errorf("SMTP_FROM_EMAIL is required when SMTP_HOST is set")
	}

	cfg.AMQPURL = os.Getenv("AMQP_URL")
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", "notifications")

	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.PassLockTTL, err = getEnvDuration("PASS_LOCK_TTL", 10*time.Minute); err != nil {
		return nil, err
	}

	cfg.SentryDSN = os.Getenv("SENTRY_DSN")
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.HTTPAddr != "" && cfg.JWTSecret == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production when HTTP_ADDR is set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return value, nil
}
