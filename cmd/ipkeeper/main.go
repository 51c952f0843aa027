package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/akudrin/ipkeeper/internal/bot"
	"github.com/akudrin/ipkeeper/internal/config"
	"github.com/akudrin/ipkeeper/internal/repository"
	"github.com/akudrin/ipkeeper/internal/service"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	sugar.Infow("Starting ipkeeper bot")

	cfg, err := config.ParseFlags()
	if err != nil {
		sugar.Fatalw("Configuration error",
			"error", err.Error())
	}

	sugar.Infow(
		"Configuration loaded",
		"server_address", cfg.ServerAddress,
		"database_configured", cfg.DatabaseDSN != "",
	)

	var store repository.Store
	if cfg.DatabaseDSN != "" {
		pgStore, err := repository.NewPostgresStore(cfg.DatabaseDSN, cfg.MigrationsPath)
		if err != nil {
			sugar.Fatalw("Failed to initialize PostgreSQL store",
				"error", err.Error())
		}
		store = pgStore
		sugar.Infow("Using PostgreSQL store")
	} else {
		store = repository.NewMemoryStore()
		sugar.Infow("No database DSN configured, using in-memory store")
	}
	defer store.Close()

	engine := service.NewEngine(store, logger)
	client := bot.NewClient(cfg.TelegramAPI, cfg.BotToken, logger)
	webhook := bot.NewWebhook(engine, client, store, logger, cfg.WebhookSecret)

	if cfg.WebhookURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := client.SetWebhook(ctx, cfg.WebhookURL+"/webhook/"+cfg.WebhookSecret); err != nil {
			cancel()
			sugar.Fatalw("Failed to register webhook",
				"error", err.Error())
		}
		cancel()
		sugar.Infow("Webhook registered", "url", cfg.WebhookURL)
	}

	r := webhook.SetupRouter()

	sugar.Infow(
		"Server starting",
		"address", cfg.ServerAddress,
	)

	if err := http.ListenAndServe(cfg.ServerAddress, r); err != nil {
		sugar.Fatalw(err.Error(), "event", "start server")
	}
}
