package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/alejandrodnm/arvbot/internal/adapters/httpapi"
	"github.com/alejandrodnm/arvbot/internal/adapters/notify"
	"github.com/alejandrodnm/arvbot/internal/app"
	"github.com/alejandrodnm/arvbot/internal/application/investment"
	"github.com/alejandrodnm/arvbot/internal/application/session"
	"github.com/alejandrodnm/arvbot/internal/ports"
	"github.com/alejandrodnm/arvbot/internal/telemetry"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the investment poller until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	cfg := c.cfg
	slog.Info("arvbot starting",
		"config", c.configPath,
		"paper", cfg.Exchange.Paper,
		"storage", cfg.Storage.Driver,
		"http_addr", cfg.HTTP.Addr,
		"interval", cfg.PollInterval(),
	)

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer app.ShutdownTelemetry(shutdown)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	store, poller, err := c.buildPoller(ctx, metrics)
	if err != nil {
		return err
	}
	defer app.CloseStorage(store)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pollErr := make(chan error, 1)
	go func() {
		pollErr <- poller.Run(ctx)
		cancel()
	}()

	api := httpapi.New(session.New(store), reg)
	if err := api.Serve(ctx, cfg.HTTP.Addr); err != nil {
		cancel()
		<-pollErr
		return err
	}
	if err := <-pollErr; err != nil {
		return fmt.Errorf("poller: %w", err)
	}
	slog.Info("arvbot stopped cleanly")
	return nil
}

// buildPoller abre storage y exchange (con secretos de SSM si aplica) y
// monta el poller con sus notifiers.
func (c *cli) buildPoller(ctx context.Context, metrics *telemetry.Metrics) (ports.Storage, *investment.Poller, error) {
	if err := c.loadSecrets(ctx); err != nil {
		return nil, nil, err
	}

	store, err := app.OpenStorage(ctx, c.cfg.Storage)
	if err != nil {
		return nil, nil, err
	}

	exchange, err := app.OpenExchange(ctx, c.cfg.Exchange)
	if err != nil {
		app.CloseStorage(store)
		return nil, nil, err
	}

	notifiers, err := app.Notifiers(c.cfg.Telegram, notify.NewConsole(c.table, c.verbose))
	if err != nil {
		app.CloseStorage(store)
		return nil, nil, err
	}

	poller, err := app.NewPoller(c.cfg, store, exchange, metrics, notifiers...)
	if err != nil {
		app.CloseStorage(store)
		return nil, nil, err
	}
	return store, poller, nil
}
