package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration. Values come from defaults,
// then the YAML file pointed at by FLATWATCH_CONFIG, then environment
// variables for the secrets that should not live in a file.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Database DatabaseConfig `yaml:"database"`
	Scraping ScrapingConfig `yaml:"scraping"`
	Browser  BrowserConfig  `yaml:"browser"`
	Telegram TelegramConfig `yaml:"telegram"`
	Users    []UserConfig   `yaml:"users"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type ScrapingConfig struct {
	// Interval between polling cycles, in time.ParseDuration syntax.
	Interval   string `yaml:"interval"`
	MaxResults int    `yaml:"max_results"`
}

type BrowserConfig struct {
	Headless   bool   `yaml:"headless"`
	ChromePath string `yaml:"chrome_path"`
}

type TelegramConfig struct {
	BotToken    string `yaml:"bot_token"`
	AdminChatID string `yaml:"admin_chat_id"`
}

// UserConfig declares one watcher: who to notify and which provider
// searches to poll for them. Providers maps a provider key to the search
// URL (or query string, for API providers) that user cares about.
type UserConfig struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	ChatID    string            `yaml:"chat_id"`
	Providers map[string]string `yaml:"providers"`
}

// Load resolves the effective configuration.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("FLATWATCH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Logging:  LoggingConfig{Level: "info"},
		Scraping: ScrapingConfig{Interval: "5m", MaxResults: 20},
		Browser:  BrowserConfig{Headless: true},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_ADMIN_CHAT_ID"); v != "" {
		cfg.Telegram.AdminChatID = v
	}
	if v := os.Getenv("CHROME_BIN"); v != "" {
		cfg.Browser.ChromePath = v
	}
}

func validate(cfg *Config) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required")
	}
	if _, err := time.ParseDuration(cfg.Scraping.Interval); err != nil {
		return fmt.Errorf("scraping interval %q: %w", cfg.Scraping.Interval, err)
	}
	if cfg.Scraping.MaxResults <= 0 {
		return fmt.Errorf("scraping max_results must be positive")
	}
	if len(cfg.Users) == 0 {
		return fmt.Errorf("at least one user must be configured")
	}
	seen := make(map[string]struct{}, len(cfg.Users))
	for i, u := range cfg.Users {
		if u.ID == "" {
			return fmt.Errorf("users[%d]: id is required", i)
		}
		if _, dup := seen[u.ID]; dup {
			return fmt.Errorf("users[%d]: duplicate id %q", i, u.ID)
		}
		seen[u.ID] = struct{}{}
		if u.ChatID == "" {
			return fmt.Errorf("user %s: chat_id is required", u.ID)
		}
		if len(u.Providers) == 0 {
			return fmt.Errorf("user %s: at least one provider is required", u.ID)
		}
	}
	return nil
}
