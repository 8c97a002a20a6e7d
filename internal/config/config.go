// Package config centralises configuration parsing for the social service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures runtime configuration values. An empty PostgresURL runs the
// engine in memory over the demo profiles; an empty GeminiAPIKey disables the
// AI scorer.
type Config struct {
	HTTPAddress    string `env:"HTTP_ADDRESS" envDefault:":8080"`
	MetricsAddress string `env:"METRICS_ADDRESS" envDefault:":9090"`
	CORSOrigin     string `env:"CORS_ORIGIN" envDefault:"*"`

	PostgresURL string `env:"POSTGRES_URL"`
	// SeedProfiles provisions the demo profiles into an empty database.
	SeedProfiles bool `env:"SEED_PROFILES" envDefault:"true"`

	KafkaBrokers       []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"kafka:9092"`
	ConsumerTopics     []string      `env:"CONSUMER_TOPICS" envSeparator:"," envDefault:"social_graph_events,social_activity_events,social_engagement_events"`
	ConsumerGroupID    string        `env:"CONSUMER_GROUP_ID" envDefault:"fitsocial-event-log"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"25"`
	DLQPollInterval    time.Duration `env:"DLQ_POLL_INTERVAL" envDefault:"30s"`
	DLQMaxRetries      int           `env:"DLQ_MAX_RETRIES" envDefault:"5"`
	DLQBaseDelay       time.Duration `env:"DLQ_BASE_DELAY" envDefault:"1m"`
	DLQBatchSize       int           `env:"DLQ_BATCH_SIZE" envDefault:"50"`

	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"fitsocial.identity"`

	GeminiAPIKey string        `env:"GEMINI_API_KEY"`
	GeminiModel  string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	AITimeout    time.Duration `env:"AI_TIMEOUT" envDefault:"8s"`

	StreakTimezone string `env:"STREAK_TIMEZONE"`

	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogDevelopment bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// Load reads environment variables into Config, applying defaults for local dev.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.KafkaBrokers = trimEmpty(cfg.KafkaBrokers)
	cfg.ConsumerTopics = trimEmpty(cfg.ConsumerTopics)

	if cfg.OutboxBatchSize <= 0 {
		return Config{}, fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", cfg.OutboxBatchSize)
	}
	if cfg.OutboxPollInterval <= 0 {
		return Config{}, fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive, got %s", cfg.OutboxPollInterval)
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location resolves StreakTimezone, the calendar used to compare workout days.
// An empty value means the host's local calendar.
func (c Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.StreakTimezone) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.StreakTimezone)
	if err != nil {
		return nil, fmt.Errorf("STREAK_TIMEZONE %q: %w", c.StreakTimezone, err)
	}
	return loc, nil
}

func trimEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
