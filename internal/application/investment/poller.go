package investment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alejandrodnm/arvbot/internal/domain"
	"github.com/alejandrodnm/arvbot/internal/ports"
	"github.com/alejandrodnm/arvbot/internal/telemetry"
)

const releaseTimeout = 10 * time.Second

// PollerConfig controla el loop y el lease single-flight.
type PollerConfig struct {
	FlagID       string
	Interval     time.Duration
	LeaseTTL     time.Duration // un lease vencido se puede tomar aunque running siga a true
	CycleTimeout time.Duration
	Owner        string // identifica a esta instancia en el flag; vacío = uuid
}

// Poller ejecuta ciclos: investing -> invested, luego invested -> resolved.
type Poller struct {
	cfg       PollerConfig
	store     ports.Storage
	executor  *Executor
	resolver  *Resolver
	notifiers []ports.Notifier
	metrics   *telemetry.Metrics
	tracer    trace.Tracer

	mu sync.Mutex // evita ciclos solapados dentro del proceso
}

// NewPoller construye el poller. exchange tiene que venir de un login
// correcto (betfair.Login o paper.Login); nil es un error de configuración.
func NewPoller(
	cfg PollerConfig,
	store ports.Storage,
	exchange ports.Exchange,
	execCfg ExecutorConfig,
	metrics *telemetry.Metrics,
	notifiers ...ports.Notifier,
) (*Poller, error) {
	if store == nil {
		return nil, fmt.Errorf("investment.NewPoller: %w: storage is required", domain.ErrConfiguration)
	}
	executor, err := NewExecutor(store, exchange, execCfg, metrics)
	if err != nil {
		return nil, err
	}
	resolver, err := NewResolver(store, exchange)
	if err != nil {
		return nil, err
	}

	if cfg.FlagID == "" {
		return nil, fmt.Errorf("investment.NewPoller: %w: flag id is required", domain.ErrConfiguration)
	}
	if cfg.Interval <= 0 || cfg.LeaseTTL <= 0 || cfg.CycleTimeout <= 0 {
		return nil, fmt.Errorf("investment.NewPoller: %w: interval, lease ttl and cycle timeout must be positive", domain.ErrConfiguration)
	}
	if cfg.Owner == "" {
		cfg.Owner = uuid.NewString()
	}

	return &Poller{
		cfg:       cfg,
		store:     store,
		executor:  executor,
		resolver:  resolver,
		notifiers: notifiers,
		metrics:   metrics,
		tracer:    telemetry.Tracer(),
	}, nil
}

// Run ejecuta un ciclo inmediatamente y luego uno por intervalo hasta que
// el contexto se cancele.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("investment poller starting",
		"interval", p.cfg.Interval,
		"lease_ttl", p.cfg.LeaseTTL,
		"owner", p.cfg.Owner,
	)

	p.tick(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("investment poller stopped")
			return nil
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if _, err := p.RunCycle(ctx); err != nil {
		slog.Error("poll cycle failed", "err", err)
	}
}

// RunCycle ejecuta exactamente un ciclo. Si otro ciclo tiene el flag (en este
// proceso o en otro) devuelve un report con Skipped y no toca ninguna sesión.
func (p *Poller) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	report := domain.CycleReport{StartedAt: time.Now().UTC()}

	if !p.mu.TryLock() {
		slog.Info("poll cycle skipped: previous cycle still running in this process")
		report.Skipped = true
		report.SkipReason = domain.SkipCycleRunning
		p.finish(ctx, &report)
		return report, nil
	}
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.CycleTimeout)
	defer cancel()

	ctx, span := p.tracer.Start(ctx, "investment.cycle",
		trace.WithAttributes(attribute.String("poller.owner", p.cfg.Owner)))
	defer span.End()

	acquired, err := p.store.AcquirePollFlag(ctx, p.cfg.FlagID, p.cfg.Owner, p.cfg.LeaseTTL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquire flag")
		return report, fmt.Errorf("investment.RunCycle: acquire flag: %w", err)
	}
	if !acquired {
		slog.Info("poll cycle skipped: flag held by another poller", "flag_id", p.cfg.FlagID)
		span.SetAttributes(attribute.Bool("cycle.skipped", true))
		report.Skipped = true
		report.SkipReason = domain.SkipFlagHeld
		p.finish(ctx, &report)
		return report, nil
	}
	defer p.release(ctx)

	var errs []error

	// investing antes que invested. Una sesión invertida en este ciclo no se
	// intenta resolver hasta el siguiente.
	placedNow := make(map[string]bool)
	investing, err := p.store.QuerySessions(ctx, domain.StatusInvesting)
	if err != nil {
		slog.Error("query investing sessions failed", "err", err)
		errs = append(errs, fmt.Errorf("query investing: %w", err))
	}
	report.Investing = len(investing)
	for _, sess := range investing {
		res, err := p.executeOne(ctx, sess)
		if err == nil {
			placedNow[sess.ID] = true
		}
		p.record(&report, res, err)
	}

	invested, err := p.store.QuerySessions(ctx, domain.StatusInvested)
	if err != nil {
		slog.Error("query invested sessions failed", "err", err)
		errs = append(errs, fmt.Errorf("query invested: %w", err))
	}
	for _, sess := range invested {
		if placedNow[sess.ID] {
			continue
		}
		report.Invested++
		res, err := p.resolveOne(ctx, sess.ID)
		p.record(&report, res, err)
	}

	report.Duration = time.Since(report.StartedAt)
	span.SetAttributes(
		attribute.Int("cycle.investing", report.Investing),
		attribute.Int("cycle.invested", report.Invested),
		attribute.Int("cycle.failures", len(report.Failures())),
	)
	p.finish(ctx, &report)

	slog.Info("poll cycle complete",
		"investing", report.Investing,
		"invested", report.Invested,
		"placed", len(report.Placed()),
		"resolved", len(report.Resolved()),
		"pending", len(report.Pending()),
		"failed", len(report.Failures()),
		"duration", report.Duration.Round(time.Millisecond),
	)

	if len(errs) > 0 {
		err := errors.Join(errs...)
		span.SetStatus(codes.Error, err.Error())
		return report, fmt.Errorf("investment.RunCycle: %w", err)
	}
	return report, nil
}

func (p *Poller) executeOne(ctx context.Context, sess domain.Session) (domain.SessionResult, error) {
	ctx, span := p.tracer.Start(ctx, "investment.execute",
		trace.WithAttributes(attribute.String("session.id", sess.ID)))
	defer span.End()

	res, err := p.executor.Execute(ctx, sess)
	traceResult(span, res, err)
	return res, err
}

func (p *Poller) resolveOne(ctx context.Context, sessionID string) (domain.SessionResult, error) {
	ctx, span := p.tracer.Start(ctx, "investment.resolve",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	res, err := p.resolver.Resolve(ctx, sessionID)
	traceResult(span, res, err)
	return res, err
}

func traceResult(span trace.Span, res domain.SessionResult, err error) {
	if res.MarketID != "" {
		span.SetAttributes(attribute.String("market.id", res.MarketID))
	}
	if err == nil || domain.IsNotReady(err) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// record añade el resultado al report y lo loguea según su gravedad.
func (p *Poller) record(report *domain.CycleReport, res domain.SessionResult, err error) {
	res.Err = err
	res.NotReady = domain.IsNotReady(err)
	report.Results = append(report.Results, res)

	switch {
	case err == nil:
	case res.NotReady:
		slog.Info("session not ready", "session_id", res.SessionID, "phase", res.Phase, "reason", err)
	case errors.Is(err, domain.ErrPlacementFailure):
		slog.Warn("session left in investing", "session_id", res.SessionID, "err", err)
	default:
		slog.Error("session processing failed", "session_id", res.SessionID, "phase", res.Phase, "err", err)
	}
}

// release libera el flag aunque el ciclo se haya cancelado o vencido.
func (p *Poller) release(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := p.store.ReleasePollFlag(ctx, p.cfg.FlagID, p.cfg.Owner); err != nil {
		slog.Error("release poll flag failed; lease expires on its own",
			"flag_id", p.cfg.FlagID, "lease_ttl", p.cfg.LeaseTTL, "err", err)
	}
}

// finish publica métricas y entrega el report a los notifiers.
func (p *Poller) finish(ctx context.Context, report *domain.CycleReport) {
	p.metrics.ObserveCycle(*report)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	for _, n := range p.notifiers {
		if err := n.NotifyCycle(ctx, *report); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}
}
