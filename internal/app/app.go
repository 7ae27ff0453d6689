// Package app wires config into the concrete adapters. Both entrypoints
// (the CLI and the Lambda handler) build their dependencies through here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/alejandrodnm/arvbot/config"
	"github.com/alejandrodnm/arvbot/internal/adapters/betfair"
	"github.com/alejandrodnm/arvbot/internal/adapters/notify"
	"github.com/alejandrodnm/arvbot/internal/adapters/paper"
	"github.com/alejandrodnm/arvbot/internal/adapters/paramstore"
	"github.com/alejandrodnm/arvbot/internal/adapters/storage"
	"github.com/alejandrodnm/arvbot/internal/application/investment"
	"github.com/alejandrodnm/arvbot/internal/domain"
	"github.com/alejandrodnm/arvbot/internal/ports"
	"github.com/alejandrodnm/arvbot/internal/telemetry"
)

// Claves relativas a exchange.ssm_prefix.
const (
	ssmUsername      = "betfair/username"
	ssmPassword      = "betfair/password"
	ssmAppKey        = "betfair/app_key"
	ssmTelegramToken = "telegram/token"
)

// OpenStorage abre el driver configurado: sqlite (default) o dynamodb.
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (ports.Storage, error) {
	switch cfg.Driver {
	case "sqlite", "":
		store, err := storage.NewSQLiteStorage(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("app.OpenStorage: %w", err)
		}
		return store, nil
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("app.OpenStorage: load AWS config: %w", err)
		}
		store, err := storage.NewDynamoStorage(dynamodb.NewFromConfig(awsCfg), cfg.DynamoDBTable, cfg.DynamoDBStatusIndex)
		if err != nil {
			return nil, fmt.Errorf("app.OpenStorage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("app.OpenStorage: %w: unknown storage driver %q", domain.ErrConfiguration, cfg.Driver)
	}
}

// ValidateLambda exige storage dynamodb: en Lambda el filesystem es de solo
// lectura fuera de /tmp.
func ValidateLambda(cfg *config.Config) error {
	if cfg.Storage.Driver != "dynamodb" {
		return fmt.Errorf("app.ValidateLambda: %w: storage driver %q is not usable in Lambda, set ARVBOT_STORAGE_DRIVER=dynamodb",
			domain.ErrConfiguration, cfg.Storage.Driver)
	}
	return nil
}

// NewSSMGetter construye un cliente de Parameter Store con la config AWS por defecto.
func NewSSMGetter(ctx context.Context) (paramstore.Getter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.NewSSMGetter: load AWS config: %w", err)
	}
	client, err := paramstore.New(ssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("app.NewSSMGetter: %w", err)
	}
	return client, nil
}

// LoadSecrets completa desde SSM las credenciales que env y YAML dejaron
// vacías. Sin ssm_prefix no hace nada.
func LoadSecrets(ctx context.Context, cfg *config.Config, g paramstore.Getter) error {
	if cfg.Exchange.SSMPrefix == "" {
		return nil
	}
	targets := map[string]*string{
		ssmUsername: &cfg.Exchange.Username,
		ssmPassword: &cfg.Exchange.Password,
		ssmAppKey:   &cfg.Exchange.AppKey,
	}
	if cfg.Telegram.ChatID != 0 {
		targets[ssmTelegramToken] = &cfg.Telegram.Token
	}
	if err := paramstore.Fill(ctx, g, cfg.Exchange.SSMPrefix, targets); err != nil {
		return fmt.Errorf("app.LoadSecrets: %w", err)
	}
	slog.Debug("secrets loaded from parameter store", "prefix", cfg.Exchange.SSMPrefix)
	return nil
}

// OpenExchange hace login en Betfair, o devuelve el exchange simulado si
// exchange.paper está activo. Credenciales incompletas son ErrConfiguration
// y un login rechazado es ErrAuth.
func OpenExchange(ctx context.Context, cfg config.ExchangeConfig) (ports.Exchange, error) {
	if cfg.Paper {
		ex, err := paper.Login(ctx, paper.Options{})
		if err != nil {
			return nil, fmt.Errorf("app.OpenExchange: %w", err)
		}
		return ex, nil
	}

	client, err := betfair.Login(ctx, betfair.Credentials{
		Username: cfg.Username,
		Password: cfg.Password,
		AppKey:   cfg.AppKey,
		CertPath: cfg.CertPath,
		KeyPath:  cfg.KeyPath,
	}, betfair.Options{
		IdentityBase: cfg.IdentityBase,
		BettingBase:  cfg.BettingBase,
	})
	if err != nil {
		return nil, fmt.Errorf("app.OpenExchange: %w", err)
	}
	return client, nil
}

// Notifiers devuelve la consola más Telegram si hay token y chat configurados.
func Notifiers(cfg config.TelegramConfig, console *notify.Console) ([]ports.Notifier, error) {
	notifiers := []ports.Notifier{console}
	if cfg.Token == "" || cfg.ChatID == 0 {
		return notifiers, nil
	}
	tg, err := notify.NewTelegram(cfg.Token, cfg.ChatID)
	if err != nil {
		return nil, fmt.Errorf("app.Notifiers: %w", err)
	}
	return append(notifiers, tg), nil
}

// NewPoller traduce la config al poller de inversión.
func NewPoller(
	cfg *config.Config,
	store ports.Storage,
	exchange ports.Exchange,
	metrics *telemetry.Metrics,
	notifiers ...ports.Notifier,
) (*investment.Poller, error) {
	pollCfg := investment.PollerConfig{
		FlagID:       cfg.Poller.FlagID,
		Interval:     cfg.PollInterval(),
		LeaseTTL:     cfg.LeaseTTL(),
		CycleTimeout: cfg.CycleTimeout(),
	}
	execCfg := investment.ExecutorConfig{
		Stake:           cfg.Investment.Stake,
		EventTypeIDs:    []string{cfg.Investment.EventTypeID},
		MarketTypeCodes: cfg.Investment.MarketTypeCodes,
		BSPOnly:         cfg.Investment.BSPOnly != nil && *cfg.Investment.BSPOnly,
		Window:          cfg.MarketWindow(),
	}
	p, err := investment.NewPoller(pollCfg, store, exchange, execCfg, metrics, notifiers...)
	if err != nil {
		return nil, fmt.Errorf("app.NewPoller: %w", err)
	}
	return p, nil
}

// CloseStorage cierra el store logueando el error en vez de devolverlo.
func CloseStorage(store ports.Storage) {
	if err := store.Close(); err != nil {
		slog.Warn("failed to close storage", "err", err)
	}
}

// ShutdownTelemetry vacía las trazas pendientes con un timeout corto.
func ShutdownTelemetry(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.Warn("telemetry shutdown failed", "err", err)
	}
}
