package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Server
	Port        int    `env:"PORT" envDefault:"3001"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"*"`

	// Providers
	GeminiKey         string `env:"GOOGLE_GEMINI_API_KEY"`
	OpenRouterKey     string `env:"OPENROUTER_API_KEY"`
	GeminiBaseURL     string `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	OpenRouterBaseURL string `env:"OPENROUTER_BASE_URL" envDefault:"https://openrouter.ai/api/v1"`

	// Storage
	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"interviewcoach.db"`

	// Telegram front-end, disabled when empty
	BotToken           string `env:"BOT_TOKEN"`
	DropPendingUpdates bool   `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`
	LogTelegramChatID  int64  `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError      int    `env:"LOG_TOPIC_ERROR"`
	LogTopicInterview  int    `env:"LOG_TOPIC_INTERVIEW"`

	// Prompts
	PromptsFile string `env:"PROMPTS_FILE"`

	// Job posting import. Private networks are refused unless allowed.
	JobFetchAllowPrivate bool `env:"JOB_FETCH_ALLOW_PRIVATE" envDefault:"false"`

	RateLimitPerMinute int     `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	USDToRUB           float64 `env:"USD_TO_RUB" envDefault:"95"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "memory", "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("parse config: DATABASE_URL is required for postgres store")
		}
	default:
		return fmt.Errorf("parse config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) BotEnabled() bool {
	return c.BotToken != ""
}

// SlogLevel maps LOG_LEVEL onto slog levels, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
