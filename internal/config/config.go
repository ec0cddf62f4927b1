package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default values applied when the corresponding environment variable is unset.
const (
	DefaultTimezone            = "America/New_York"
	DefaultConfirmationTimeout = 300 * time.Second
	DefaultCalendarID          = "primary"
	DefaultOpenAIModel         = "gpt-4-turbo-preview"
	DefaultOpenAIBaseURL       = "https://api.openai.com/v1"
	DefaultHTTPAddr            = ":8080"
	DefaultMetricsAddr         = ":9090"
)

// Config holds the runtime configuration for the calendar agent.
// All values come from the environment (a .env file is loaded if present).
type Config struct {
	// Timezone is the IANA timezone name all event times are normalized to.
	Timezone string
	// Location is the parsed Timezone.
	Location *time.Location

	// ConfirmationTimeout is how long a pending action stays confirmable.
	ConfirmationTimeout time.Duration

	// CalendarID is the target Google calendar ("primary" for the
	// authenticated user's own calendar).
	CalendarID string

	// ServiceAccountFile is an optional path to a Google service account
	// key file. When set it takes precedence over the OAuth token flow.
	ServiceAccountFile string

	// OpenAIAPIKey authenticates the intent resolver's language model calls.
	OpenAIAPIKey string
	// OpenAIModel is the chat model used for intent resolution.
	OpenAIModel string
	// OpenAIBaseURL allows pointing the resolver at any API implementing
	// the chat completions wire format.
	OpenAIBaseURL string

	// WebhookSecret, when non-empty, is required in the X-Webhook-Token
	// header of every webhook request.
	WebhookSecret string

	// HTTPAddr is the webhook server listen address.
	HTTPAddr string

	// MetricsEnabled controls the dedicated metrics server.
	MetricsEnabled bool
	// MetricsAddr is the metrics server listen address.
	MetricsAddr string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present, matching the original deployment
// layout. Validation failures are fatal at startup.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		Timezone:            getEnv("TIMEZONE", DefaultTimezone),
		ConfirmationTimeout: DefaultConfirmationTimeout,
		CalendarID:          getEnv("CALENDAR_ID", DefaultCalendarID),
		ServiceAccountFile:  os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         getEnv("OPENAI_MODEL", DefaultOpenAIModel),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", DefaultOpenAIBaseURL),
		WebhookSecret:       os.Getenv("WEBHOOK_SECRET"),
		HTTPAddr:            getEnv("HTTP_ADDR", DefaultHTTPAddr),
		MetricsEnabled:      getEnv("METRICS_ENABLED", "true") != "false",
		MetricsAddr:         getEnv("METRICS_ADDR", DefaultMetricsAddr),
	}

	if raw := os.Getenv("CONFIRMATION_TIMEOUT"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("invalid CONFIRMATION_TIMEOUT %q: must be a positive number of seconds", raw)
		}
		cfg.ConfirmationTimeout = time.Duration(seconds) * time.Second
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if c.CalendarID == "" {
		return fmt.Errorf("CALENDAR_ID cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
