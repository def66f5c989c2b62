package config

import (
	"os"
	"strconv"
	"time"
)

// ProcessingMode selects how accepted events are classified.
type ProcessingMode string

const (
	// ModeImmediate classifies and records within the webhook request.
	ModeImmediate ProcessingMode = "immediate"
	// ModeDeferred stores the raw event only; a background processor drains
	// unprocessed events.
	ModeDeferred ProcessingMode = "deferred"
)

// Config captures all runtime configuration. It is built once in main and
// passed explicitly to components; nothing reads the environment later.
type Config struct {
	Addr         string
	WebhookToken string
	Mode         ProcessingMode

	DatabaseURL string
	Redis       RedisConfig

	ClassifierURL     string
	ClassifierTimeout time.Duration

	ControlRoom ControlRoomConfig

	ProcessorPollInterval time.Duration
	ProcessorBatchSize    int

	EventRetention time.Duration
	PurgeInterval  time.Duration

	ReportDir string
}

// RedisConfig holds connection settings for the optional fingerprint cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ControlRoomConfig holds settings for the external automation service.
type ControlRoomConfig struct {
	URL          string
	AuthEndpoint string
	Username     string
	APIKey       string
	EmailBotID   int
	TeamsBotID   int
	Recipients   string
	TeamsWebhook string
	Timeout      time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:         envOr("PATHFINDER_ADDR", ":8080"),
		WebhookToken: os.Getenv("WEBHOOK_TOKEN"),
		Mode:         processingMode(os.Getenv("PROCESSING_MODE")),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},

		ClassifierURL:     os.Getenv("CLASSIFIER_URL"),
		ClassifierTimeout: envDuration("CLASSIFIER_TIMEOUT", 30*time.Second),

		ControlRoom: ControlRoomConfig{
			URL:          os.Getenv("CONTROL_ROOM_URL"),
			AuthEndpoint: os.Getenv("CONTROL_ROOM_AUTH_ENDPOINT"),
			Username:     os.Getenv("CONTROL_ROOM_USERNAME"),
			APIKey:       os.Getenv("CONTROL_ROOM_API_KEY"),
			EmailBotID:   envInt("CONTROL_ROOM_EMAIL_BOT_ID", 0),
			TeamsBotID:   envInt("CONTROL_ROOM_TEAMS_BOT_ID", 0),
			Recipients:   os.Getenv("NOTIFY_RECIPIENTS"),
			TeamsWebhook: os.Getenv("NOTIFY_TEAMS_WEBHOOK"),
			Timeout:      envDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},

		ProcessorPollInterval: envDuration("PROCESSOR_POLL_INTERVAL", 30*time.Second),
		ProcessorBatchSize:    envInt("PROCESSOR_BATCH_SIZE", 50),

		EventRetention: envDuration("EVENT_RETENTION", 90*24*time.Hour),
		PurgeInterval:  envDuration("PURGE_INTERVAL", 24*time.Hour),

		ReportDir: envOr("REPORT_DIR", "reports"),
	}
}

func processingMode(raw string) ProcessingMode {
	if raw == string(ModeDeferred) {
		return ModeDeferred
	}
	return ModeImmediate
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
