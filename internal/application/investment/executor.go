// Package investment places and settles the wager behind each session and
// drives both steps from a single-flight polling loop.
package investment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/arvbot/internal/domain"
	"github.com/alejandrodnm/arvbot/internal/ports"
	"github.com/alejandrodnm/arvbot/internal/telemetry"
)

// ExecutorConfig fija el mercado buscado y el stake.
type ExecutorConfig struct {
	Stake           float64
	EventTypeIDs    []string
	MarketTypeCodes []string
	BSPOnly         bool
	Window          time.Duration // el mercado debe empezar dentro de esta ventana
}

// Executor coloca la apuesta de una sesión en investing.
type Executor struct {
	store    ports.SessionStore
	exchange ports.Exchange
	cfg      ExecutorConfig
	metrics  *telemetry.Metrics
	now      func() time.Time
}

// NewExecutor requiere un exchange ya autenticado.
func NewExecutor(store ports.SessionStore, exchange ports.Exchange, cfg ExecutorConfig, metrics *telemetry.Metrics) (*Executor, error) {
	if exchange == nil {
		return nil, fmt.Errorf("investment.NewExecutor: %w: exchange session is required", domain.ErrConfiguration)
	}
	if store == nil {
		return nil, fmt.Errorf("investment.NewExecutor: %w: session store is required", domain.ErrConfiguration)
	}
	if cfg.Stake <= 0 {
		return nil, fmt.Errorf("investment.NewExecutor: %w: stake must be positive", domain.ErrConfiguration)
	}
	return &Executor{store: store, exchange: exchange, cfg: cfg, metrics: metrics, now: time.Now}, nil
}

// Execute lleva la sesión de investing a invested.
//
// Antes de colocar nada busca órdenes ya existentes con el customerOrderRef
// de la sesión; si las hay las adopta. Un rechazo del exchange devuelve
// domain.ErrPlacementFailure y deja la sesión intacta para el próximo ciclo.
func (e *Executor) Execute(ctx context.Context, sess domain.Session) (domain.SessionResult, error) {
	res := domain.SessionResult{SessionID: sess.ID, Phase: domain.CyclePhaseExecute}

	if sess.Status != domain.StatusInvesting {
		return res, fmt.Errorf("investment.Execute: %w: session is %s", domain.ErrInvalidTransition, sess.Status)
	}
	investing, ok := sess.Phase.(domain.InvestingPhase)
	if !ok {
		return res, fmt.Errorf("investment.Execute: %w: missing strategy", domain.ErrInvalidStrategy)
	}
	strategy, err := domain.StrategyAt(investing.StrategyIdx)
	if err != nil {
		return res, fmt.Errorf("investment.Execute: %w", err)
	}
	res.Strategy = strategy
	ref := domain.CustomerOrderRef(sess.ID)

	invested, found, err := e.existingOrder(ctx, investing.StrategyIdx, ref)
	if err != nil {
		return res, err
	}
	if found {
		slog.Warn("adopting existing order, skipping placement",
			"session_id", sess.ID, "market_id", invested.MarketID, "ref", ref)
	} else {
		invested, err = e.place(ctx, sess.ID, strategy, investing.StrategyIdx, ref)
		if err != nil {
			res.MarketID = invested.MarketID
			return res, err
		}
	}
	res.MarketID = invested.MarketID

	if err := sess.MarkInvested(invested); err != nil {
		return res, fmt.Errorf("investment.Execute: %w", err)
	}
	if err := e.store.SaveSession(ctx, &sess); err != nil {
		// La orden ya está en el exchange; el próximo ciclo la adopta.
		return res, fmt.Errorf("investment.Execute: save: %w", err)
	}

	slog.Info("session invested",
		"session_id", sess.ID,
		"strategy", strategy,
		"market_id", invested.MarketID,
		"bet_ids", invested.Report.BetIDs(),
		"adopted", invested.Adopted,
	)
	return res, nil
}

// existingOrder busca órdenes de esta sesión, abiertas o ya liquidadas.
func (e *Executor) existingOrder(ctx context.Context, strategyIdx int, ref string) (domain.InvestedPhase, bool, error) {
	current, err := e.exchange.ListCurrentOrders(ctx, []string{ref})
	if err != nil {
		return domain.InvestedPhase{}, false, fmt.Errorf("investment.Execute: list current orders: %w", err)
	}
	for _, o := range current {
		if o.CustomerOrderRef != ref {
			continue
		}
		return adoptedPhase(strategyIdx, ref, o.MarketID, domain.InstructionReport{
			Status:              domain.InstructionStatusOK,
			OrderStatus:         o.Status,
			BetID:               o.BetID,
			PlacedDate:          o.PlacedDate,
			AveragePriceMatched: o.AveragePriceMatched,
			SizeMatched:         o.SizeMatched,
			SelectionID:         o.SelectionID,
			Side:                o.Side,
			Price:               o.Price,
			Size:                o.Size,
		}), true, nil
	}

	cleared, err := e.exchange.ListClearedOrders(ctx, domain.ClearedOrderFilter{
		BetStatus:         domain.BetStatusSettled,
		CustomerOrderRefs: []string{ref},
	})
	if err != nil {
		return domain.InvestedPhase{}, false, fmt.Errorf("investment.Execute: list cleared orders: %w", err)
	}
	for _, o := range cleared {
		if o.CustomerOrderRef != ref {
			continue
		}
		return adoptedPhase(strategyIdx, ref, o.MarketID, domain.InstructionReport{
			Status:              domain.InstructionStatusOK,
			BetID:               o.BetID,
			AveragePriceMatched: o.PriceMatched,
			SizeMatched:         o.SizeSettled,
			SelectionID:         o.SelectionID,
			Price:               o.PriceMatched,
			Size:                o.SizeSettled,
		}), true, nil
	}
	return domain.InvestedPhase{}, false, nil
}

func adoptedPhase(strategyIdx int, ref, marketID string, ir domain.InstructionReport) domain.InvestedPhase {
	return domain.InvestedPhase{
		StrategyIdx:      strategyIdx,
		MarketID:         marketID,
		CustomerRef:      ref,
		CustomerOrderRef: ref,
		Report: domain.ExecutionReport{
			CustomerRef:        ref,
			Status:             domain.InstructionStatusOK,
			MarketID:           marketID,
			InstructionReports: []domain.InstructionReport{ir},
		},
		Adopted: true,
	}
}

// place busca mercado, elige favorito y coloca una orden FILL_OR_KILL.
func (e *Executor) place(ctx context.Context, sessionID string, strategy domain.Strategy, strategyIdx int, ref string) (domain.InvestedPhase, error) {
	now := e.now().UTC()
	market, err := e.exchange.FindMarket(ctx, domain.MarketFilter{
		EventTypeIDs:    e.cfg.EventTypeIDs,
		MarketTypeCodes: e.cfg.MarketTypeCodes,
		BSPOnly:         e.cfg.BSPOnly,
		From:            now,
		To:              now.Add(e.cfg.Window),
		Sort:            domain.MarketSortFirstToStart,
		MaxResults:      1,
	})
	if err != nil {
		return domain.InvestedPhase{}, fmt.Errorf("investment.Execute: find market: %w", err)
	}

	book, err := e.exchange.GetMarketBook(ctx, market.ID)
	if err != nil {
		return domain.InvestedPhase{MarketID: market.ID}, fmt.Errorf("investment.Execute: market book: %w", err)
	}
	fav, err := book.Favourite()
	if err != nil {
		return domain.InvestedPhase{MarketID: market.ID}, fmt.Errorf("investment.Execute: favourite of %s: %w", market.ID, err)
	}

	side := strategy.Side()
	price := fav.BestPrice(side)
	if price <= 0 {
		return domain.InvestedPhase{MarketID: market.ID}, fmt.Errorf("investment.Execute: no %s price for selection %d: %w",
			side, fav.SelectionID, domain.ErrNoBookAvailable)
	}

	req := domain.PlaceOrdersRequest{
		MarketID:      market.ID,
		CustomerRef:   ref,
		MarketVersion: book.Version, // si el mercado cambió desde la lectura, Betfair rechaza
		Instructions: []domain.PlaceInstruction{{
			SelectionID:      fav.SelectionID,
			Side:             side,
			OrderType:        domain.OrderTypeLimit,
			Size:             e.cfg.Stake,
			Price:            price,
			PersistenceType:  domain.PersistenceLapse,
			TimeInForce:      domain.TimeInForceFillOrKill,
			CustomerOrderRef: ref,
		}},
	}
	slog.Debug("placing order",
		"session_id", sessionID,
		"market_id", market.ID,
		"selection_id", fav.SelectionID,
		"side", side,
		"price", price,
		"stake", e.cfg.Stake,
	)

	report, err := e.exchange.PlaceOrders(ctx, req)
	if err != nil {
		return domain.InvestedPhase{MarketID: market.ID}, fmt.Errorf("investment.Execute: place orders: %w", err)
	}
	if !report.Succeeded() {
		e.metrics.PlacementFailed()
		slog.Warn("order placement failed",
			"session_id", sessionID,
			"market_id", market.ID,
			"status", report.Status,
			"error_code", placementErrorCode(report),
		)
		return domain.InvestedPhase{MarketID: market.ID}, fmt.Errorf("investment.Execute: %s: %w",
			placementErrorCode(report), domain.ErrPlacementFailure)
	}

	return domain.InvestedPhase{
		StrategyIdx:      strategyIdx,
		MarketID:         market.ID,
		CustomerRef:      ref,
		CustomerOrderRef: ref,
		Report:           report,
	}, nil
}

// placementErrorCode devuelve el primer código útil del report.
func placementErrorCode(r domain.ExecutionReport) string {
	if r.ErrorCode != "" {
		return r.ErrorCode
	}
	for _, ir := range r.InstructionReports {
		switch {
		case ir.ErrorCode != "":
			return ir.ErrorCode
		case ir.OrderStatus == domain.OrderStatusExpired:
			return domain.OrderStatusExpired
		}
	}
	if len(r.InstructionReports) == 0 {
		return "NO_INSTRUCTION_REPORTS"
	}
	return r.Status
}
