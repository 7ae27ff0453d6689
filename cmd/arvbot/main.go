package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alejandrodnm/arvbot/config"
	"github.com/alejandrodnm/arvbot/internal/app"
	"github.com/alejandrodnm/arvbot/internal/domain"
)

// cli guarda los flags globales y la config cargada en PersistentPreRunE.
type cli struct {
	configPath string
	verbose    bool
	logFormat  string
	paper      bool
	table      bool

	cfg *config.Config
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	switch {
	case err == nil:
		return
	case errors.Is(err, domain.ErrConfiguration):
		slog.Error("ARVBOT NOT STARTED: configuration error", "err", err)
	case errors.Is(err, domain.ErrAuth):
		slog.Error("ARVBOT NOT STARTED: exchange login rejected", "err", err)
	default:
		slog.Error("arvbot failed", "err", err)
	}
	cancel()
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "arvbot",
		Short:         "Perception-test sessions settled by a Betfair wager",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return c.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "config/config.yaml", "path to config file")
	flags.BoolVar(&c.verbose, "verbose", false, "set log level to debug")
	flags.StringVar(&c.logFormat, "format", "", "log format: text|json (overrides config)")
	flags.BoolVar(&c.paper, "paper", false, "use the simulated exchange instead of Betfair")
	flags.BoolVar(&c.table, "table", false, "print cycle reports as a table")

	root.AddCommand(
		newServeCmd(c),
		newPollCmd(c),
		newSessionCmd(c),
	)
	return root
}

func (c *cli) load() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.verbose {
		cfg.Log.Level = "debug"
	}
	if c.logFormat != "" {
		cfg.Log.Format = c.logFormat
	}
	if c.paper {
		cfg.Exchange.Paper = true
	}
	setupLogger(cfg.Log)
	c.cfg = cfg
	return nil
}

// loadSecrets solo consulta SSM si hay prefijo configurado.
func (c *cli) loadSecrets(ctx context.Context) error {
	if c.cfg.Exchange.SSMPrefix == "" {
		return nil
	}
	g, err := app.NewSSMGetter(ctx)
	if err != nil {
		return err
	}
	return app.LoadSecrets(ctx, c.cfg, g)
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
