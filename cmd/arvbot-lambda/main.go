package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/alejandrodnm/arvbot/config"
	lambdahandler "github.com/alejandrodnm/arvbot/internal/adapters/lambda"
	"github.com/alejandrodnm/arvbot/internal/adapters/notify"
	"github.com/alejandrodnm/arvbot/internal/app"
)

func main() {
	ctx := context.Background()

	// ---- Configuration: solo env (ARVBOT_*, BETFAIR_*) y SSM ----
	if os.Getenv("ARVBOT_STORAGE_DRIVER") == "" {
		_ = os.Setenv("ARVBOT_STORAGE_DRIVER", "dynamodb")
	}
	cfg, err := config.Load(os.Getenv("ARVBOT_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Log.Level)})))
	if err := app.ValidateLambda(cfg); err != nil {
		slog.Error("ARVBOT NOT STARTED: configuration error", "err", err)
		os.Exit(1)
	}

	if cfg.Exchange.SSMPrefix != "" {
		getter, err := app.NewSSMGetter(ctx)
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		if err := app.LoadSecrets(ctx, cfg, getter); err != nil {
			slog.Error("failed to load secrets", "err", err)
			os.Exit(1)
		}
	}

	// ---- Clients ----
	store, err := app.OpenStorage(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "driver", cfg.Storage.Driver)
		os.Exit(1)
	}

	exchange, err := app.OpenExchange(ctx, cfg.Exchange)
	if err != nil {
		slog.Error("ARVBOT NOT STARTED: exchange unavailable", "err", err)
		os.Exit(1)
	}

	notifiers, err := app.Notifiers(cfg.Telegram, notify.NewConsole(false, false))
	if err != nil {
		slog.Error("failed to create notifiers", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	// Sin endpoint de scrape en Lambda: métricas desactivadas.
	poller, err := app.NewPoller(cfg, store, exchange, nil, notifiers...)
	if err != nil {
		slog.Error("failed to create poller", "err", err)
		os.Exit(1)
	}

	h, err := lambdahandler.NewHandler(poller)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
