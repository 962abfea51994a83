package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	FeedURL          string `yaml:"feed_url"`
	TelegramToken    string `yaml:"telegram_token"`
	TelegramChatID   int64  `yaml:"telegram_chat_id"`
	StateFile        string `yaml:"state_file"`
	MaxEntries       int    `yaml:"max_entries"`
	PostDelaySecs    int    `yaml:"post_delay_secs"`
	MaxAgeHours      int    `yaml:"max_age_hours"`
	MaxImageBytes    int    `yaml:"max_image_bytes"`
	MaxRecords       int    `yaml:"max_records"`
	FetchTimeoutSecs int    `yaml:"fetch_timeout_secs"`
	Header           string `yaml:"header"`
}

// Load reads configuration from a YAML file and applies defaults and
// environment overrides. A missing file is not an error: the job can run
// entirely from environment variables.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// env-only operation
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	applyDefaults(cfg)
	if err := applyEnvironmentOverrides(cfg); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("NEWS_BOT_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

func applyDefaults(cfg *Config) {
	if cfg.StateFile == "" {
		cfg.StateFile = "./posted_links.json"
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 10
	}
	if cfg.PostDelaySecs == 0 {
		cfg.PostDelaySecs = 2
	}
	if cfg.MaxImageBytes == 0 {
		cfg.MaxImageBytes = 10_000_000
	}
	if cfg.MaxRecords == 0 {
		cfg.MaxRecords = 2000
	}
	if cfg.FetchTimeoutSecs == 0 {
		cfg.FetchTimeoutSecs = 15
	}
	if cfg.Header == "" {
		cfg.Header = "News"
	}
}

func applyEnvironmentOverrides(cfg *Config) error {
	if feedURL := os.Getenv("RSS_URL"); feedURL != "" {
		cfg.FeedURL = feedURL
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.TelegramToken = token
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID must be a numeric chat ID, got %q", chatID)
		}
		cfg.TelegramChatID = id
	}
	if stateFile := os.Getenv("NEWS_BOT_STATE"); stateFile != "" {
		cfg.StateFile = stateFile
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.FeedURL == "" {
		return fmt.Errorf("feed_url is required")
	}
	if u, err := url.Parse(cfg.FeedURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("feed_url %q is not a valid URL", cfg.FeedURL)
	}
	if cfg.TelegramToken == "" {
		return fmt.Errorf("telegram_token is required")
	}
	if cfg.TelegramChatID == 0 {
		return fmt.Errorf("telegram_chat_id is required")
	}
	if cfg.MaxEntries < 1 {
		return fmt.Errorf("max_entries must be positive, got %d", cfg.MaxEntries)
	}
	if cfg.PostDelaySecs < 0 {
		return fmt.Errorf("post_delay_secs must not be negative, got %d", cfg.PostDelaySecs)
	}
	if cfg.MaxAgeHours < 0 {
		return fmt.Errorf("max_age_hours must not be negative, got %d", cfg.MaxAgeHours)
	}
	if cfg.MaxRecords < 1 {
		return fmt.Errorf("max_records must be positive, got %d", cfg.MaxRecords)
	}
	return nil
}
