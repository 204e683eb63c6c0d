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
	DatabaseURL string

	KafkaBrokers  []string
	DeliveryTopic string
	ChangeTopic   string
	EventTopic    string
	OutcomeTopic  string
	ConsumerGroup string

	CronSpecSweep string // outbox sweep trigger
	// SweepLockLease must exceed the expected sweep duration; see the
	// outbox service for why.
	SweepLockLease      time.Duration
	ReminderGraceWindow time.Duration

	ActionServiceURL  string
	AccountServiceURL string
	HTTPTimeout       time.Duration
	AccountCacheTTL   time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string

	LogLevel    string
	Environment string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't
	// exist; godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS is not set")
	}
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}

	cfg.DeliveryTopic = envOrDefault("KAFKA_DELIVERY_TOPIC", "notification-delivery")
	cfg.ChangeTopic = envOrDefault("KAFKA_CHANGE_TOPIC", "notification-changes")
	cfg.EventTopic = envOrDefault("KAFKA_EVENT_TOPIC", "tis-business-events")
	cfg.OutcomeTopic = envOrDefault("KAFKA_OUTCOME_TOPIC", "delivery-outcomes")
	cfg.ConsumerGroup = envOrDefault("KAFKA_CONSUMER_GROUP", "trainee-notification-delivery")

	cfg.CronSpecSweep = envOrDefault("CRON_SPEC_OUTBOX_SWEEP", "* * * * *") // every minute

	var err error
	cfg.SweepLockLease, err = durationOrDefault("SWEEP_LOCK_LEASE", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.ReminderGraceWindow, err = durationOrDefault("REMINDER_GRACE_WINDOW", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.HTTPTimeout, err = durationOrDefault("HTTP_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.AccountCacheTTL, err = durationOrDefault("ACCOUNT_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.ActionServiceURL = os.Getenv("ACTION_SERVICE_URL")
	if cfg.ActionServiceURL == "" {
		return nil, fmt.Errorf("ACTION_SERVICE_URL is not set")
	}
	cfg.AccountServiceURL = os.Getenv("ACCOUNT_SERVICE_URL")
	if cfg.AccountServiceURL == "" {
		return nil, fmt.Errorf("ACCOUNT_SERVICE_URL is not set")
	}

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("SMTP_HOST is not set")
	}
	portStr := envOrDefault("SMTP_PORT", "587")
	cfg.SMTPPort, err = strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.EmailFrom = os.Getenv("EMAIL_FROM")
	if cfg.EmailFrom == "" {
		return nil, fmt.Errorf("EMAIL_FROM is not set")
	}

	cfg.LogLevel = strings.ToLower(envOrDefault("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(envOrDefault("ENVIRONMENT", "development"))

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
