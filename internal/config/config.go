// Package config содержит логику чтения конфигурации бота.
package config

import (
	"errors"
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/mmeshcher/gatedmart/internal/model"
)

const (
	defaultRunAddress    = "localhost:8080"
	defaultBotAPIAddress = "https://api.telegram.org"
)

var (
	ErrBotTokenRequired = errors.New("bot token is required")
	ErrAdminIDRequired  = errors.New("admin id is required")
)

// Config содержит параметры конфигурации бота.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	DatabaseURI     string `env:"DATABASE_URI"`
	BotToken        string `env:"BOT_TOKEN"`
	BotAPIAddress   string `env:"BOT_API_ADDRESS"`
	AdminID         int64  `env:"ADMIN_ID"`
	WebhookSecret   string `env:"WEBHOOK_SECRET"`
	RedisAddress    string `env:"REDIS_ADDRESS"`
	DefaultLanguage string `env:"DEFAULT_LANGUAGE"`
	CatalogFile     string `env:"CATALOG_FILE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, empty keeps data in memory")
	flag.StringVar(&cfg.BotToken, "t", "", "bot API token")
	flag.StringVar(&cfg.BotAPIAddress, "b", defaultBotAPIAddress, "bot API address")
	flag.Int64Var(&cfg.AdminID, "admin", 0, "administrator user id")
	flag.StringVar(&cfg.WebhookSecret, "s", "", "webhook secret token")
	flag.StringVar(&cfg.RedisAddress, "redis", "", "redis address for sessions, empty keeps sessions in memory")
	flag.StringVar(&cfg.DefaultLanguage, "l", string(model.DefaultLanguage), "default interface language")

	flag.StringVar(&cfg.CatalogFile, "c", "", "YAML file with catalog items to load at startup")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.BotToken != "" {
		cfg.BotToken = fromEnv.BotToken
	}
	if fromEnv.BotAPIAddress != "" {
		cfg.BotAPIAddress = fromEnv.BotAPIAddress
	}
	if fromEnv.AdminID != 0 {
		cfg.AdminID = fromEnv.AdminID
	}
	if fromEnv.WebhookSecret != "" {
		cfg.WebhookSecret = fromEnv.WebhookSecret
	}
	if fromEnv.RedisAddress != "" {
		cfg.RedisAddress = fromEnv.RedisAddress
	}
	if fromEnv.DefaultLanguage != "" {
		cfg.DefaultLanguage = fromEnv.DefaultLanguage
	}
	if fromEnv.CatalogFile != "" {
		cfg.CatalogFile = fromEnv.CatalogFile
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.BotAPIAddress == "" {
		cfg.BotAPIAddress = defaultBotAPIAddress
	}

	if cfg.BotToken == "" {
		return nil, ErrBotTokenRequired
	}
	if cfg.AdminID <= 0 {
		return nil, ErrAdminIDRequired
	}
	if !model.Language(cfg.DefaultLanguage).IsSupported() {
		return nil, fmt.Errorf("%w: %q", model.ErrInvalidLanguage, cfg.DefaultLanguage)
	}

	return cfg, nil
}
