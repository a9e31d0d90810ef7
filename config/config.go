// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials (Slack bot token, OpenAI key), use ValidateDigestReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// Slack
	SlackBotToken string

	// OpenAI
	OpenAIAPIKey     string
	OpenAIModel      string
	SummaryMaxTokens int

	// Cache
	CacheBackend string // memory | redis
	RedisURL     string

	// Digest
	WatchedChannels      []string
	MaxMessagesPerDigest int
	DigestAt             string // HH:MM, UTC
	DigestWeekdaysOnly   bool

	// App
	HTTPAddr string
	AppEnv   string
}

// Load reads environment variables and applies defaults. It doesn't fail if credentials
// are missing; use ValidateDigestReady() when you require digest generation. Missing
// optional variables fall back to defaults (e.g., in-memory cache).
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.SlackBotToken = os.Getenv("SLACK_BOT_TOKEN")

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModel = os.Getenv("OPENAI_MODEL")
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4-turbo-preview"
	}
	cfg.SummaryMaxTokens = 500
	if s := os.Getenv("SUMMARY_MAX_TOKENS"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid SUMMARY_MAX_TOKENS: %q", s)
		}
		cfg.SummaryMaxTokens = n
	}

	// Cache
	cfg.CacheBackend = strings.ToLower(os.Getenv("CACHE_BACKEND"))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "memory"
	}
	if cfg.CacheBackend != "memory" && cfg.CacheBackend != "redis" {
		return nil, fmt.Errorf("invalid CACHE_BACKEND %q (want memory or redis)", cfg.CacheBackend)
	}
	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		cfg.RedisURL = "redis://localhost:6379"
	}

	// Digest
	if v := os.Getenv("WATCHED_CHANNELS"); v != "" {
		for _, ch := range strings.Split(v, ",") {
			if ch = strings.TrimSpace(ch); ch != "" {
				cfg.WatchedChannels = append(cfg.WatchedChannels, ch)
			}
		}
	} else {
		cfg.WatchedChannels = []string{"standup", "project-x"}
	}
	cfg.MaxMessagesPerDigest = 100
	if s := os.Getenv("MAX_MESSAGES_PER_DIGEST"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid MAX_MESSAGES_PER_DIGEST: %q", s)
		}
		cfg.MaxMessagesPerDigest = n
	}
	cfg.DigestAt = os.Getenv("DIGEST_AT")
	if cfg.DigestAt == "" {
		cfg.DigestAt = "17:00"
	}
	if _, _, err := ParseClock(cfg.DigestAt); err != nil {
		return nil, fmt.Errorf("invalid DIGEST_AT: %w", err)
	}
	cfg.DigestWeekdaysOnly = os.Getenv("DIGEST_WEEKDAYS_ONLY") != "0" // default on

	// App
	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	cfg.AppEnv = os.Getenv("APP_ENV")
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}

	return cfg, nil
}

// ValidateDigestReady checks required credentials when digest generation is enabled.
func (c *Config) ValidateDigestReady() error {
	var missing []string
	if c.SlackBotToken == "" {
		missing = append(missing, "SLACK_BOT_TOKEN")
	}
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env: %s", strings.Join(missing, ", "))
	}
	if !strings.HasPrefix(c.SlackBotToken, "xoxb-") {
		return fmt.Errorf("invalid SLACK_BOT_TOKEN format (want xoxb- prefix)")
	}
	if !strings.HasPrefix(c.OpenAIAPIKey, "sk-") {
		return fmt.Errorf("invalid OPENAI_API_KEY format (want sk- prefix)")
	}
	return nil
}

// IsProduction reports whether the service runs with APP_ENV=production.
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

// ParseClock parses an HH:MM wall-clock string.
func ParseClock(s string) (hour, min int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", s)
	}
	min, err = strconv.Atoi(parts[1])
	if err != nil || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", s)
	}
	return hour, min, nil
}
