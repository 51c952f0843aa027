package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v6"
	"github.com/google/uuid"
)

type Config struct {
	ServerAddress  string `env:"SERVER_ADDRESS"`
	DatabaseDSN    string `env:"DATABASE_DSN"`
	BotToken       string `env:"BOT_TOKEN"`
	TelegramAPI    string `env:"TELEGRAM_API"`
	WebhookURL     string `env:"WEBHOOK_URL"`
	WebhookSecret  string `env:"WEBHOOK_SECRET"`
	MigrationsPath string `env:"MIGRATIONS_PATH"`
}

func ParseFlags() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	envServerAddress := cfg.ServerAddress
	envDatabaseDSN := cfg.DatabaseDSN
	envBotToken := cfg.BotToken
	envTelegramAPI := cfg.TelegramAPI
	envWebhookURL := cfg.WebhookURL
	envWebhookSecret := cfg.WebhookSecret
	envMigrationsPath := cfg.MigrationsPath

	flag.StringVar(&cfg.ServerAddress, "a", "localhost:8080", "Address of the webhook server")
	flag.StringVar(&cfg.DatabaseDSN, "d", "", "PostgreSQL DSN (in-memory storage when empty)")
	flag.StringVar(&cfg.BotToken, "t", "", "Bot API token")
	flag.StringVar(&cfg.TelegramAPI, "api", "https://api.telegram.org", "Bot API base URL")
	flag.StringVar(&cfg.WebhookURL, "u", "", "Public base URL to register as the webhook (registration skipped when empty)")
	flag.StringVar(&cfg.WebhookSecret, "s", "", "Webhook path secret (random when empty)")
	flag.StringVar(&cfg.MigrationsPath, "m", "migrations", "Path to database migrations")

	flag.Parse()

	if envServerAddress != "" {
		cfg.ServerAddress = envServerAddress
	}
	if envDatabaseDSN != "" {
		cfg.DatabaseDSN = envDatabaseDSN
	}
	if envBotToken != "" {
		cfg.BotToken = envBotToken
	}
	if envTelegramAPI != "" {
		cfg.TelegramAPI = envTelegramAPI
	}
	if envWebhookURL != "" {
		cfg.WebhookURL = envWebhookURL
	}
	if envWebhookSecret != "" {
		cfg.WebhookSecret = envWebhookSecret
	}
	if envMigrationsPath != "" {
		cfg.MigrationsPath = envMigrationsPath
	}

	cfg.applyDefaultValues()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.BotToken == "" {
		return fmt.Errorf("bot token cannot be empty")
	}
	if c.TelegramAPI == "" {
		return fmt.Errorf("bot API base URL cannot be empty")
	}
	return nil
}

func (c *Config) applyDefaultValues() {
	if c.ServerAddress == "" {
		c.ServerAddress = "localhost:8080"
	}

	if c.TelegramAPI == "" {
		c.TelegramAPI = "https://api.telegram.org"
	}

	if c.WebhookSecret == "" {
		c.WebhookSecret = uuid.NewString()
	}

	if c.MigrationsPath == "" {
		c.MigrationsPath = "migrations"
	}
}
