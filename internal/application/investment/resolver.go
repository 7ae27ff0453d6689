package investment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/arvbot/internal/domain"
	"github.com/alejandrodnm/arvbot/internal/ports"
)

// Resolver aplica la liquidación de la apuesta a una sesión invested.
type Resolver struct {
	store    ports.SessionStore
	exchange ports.Exchange
}

// NewResolver requiere un exchange ya autenticado.
func NewResolver(store ports.SessionStore, exchange ports.Exchange) (*Resolver, error) {
	if exchange == nil {
		return nil, fmt.Errorf("investment.NewResolver: %w: exchange session is required", domain.ErrConfiguration)
	}
	if store == nil {
		return nil, fmt.Errorf("investment.NewResolver: %w: session store is required", domain.ErrConfiguration)
	}
	return &Resolver{store: store, exchange: exchange}, nil
}

// Resolve relee la sesión, busca su orden liquidada y fija la imagen objetivo.
// Sin liquidación todavía devuelve domain.ErrNoClearedOrder, que el poller
// trata como "not ready".
func (r *Resolver) Resolve(ctx context.Context, sessionID string) (domain.SessionResult, error) {
	res := domain.SessionResult{SessionID: sessionID, Phase: domain.CyclePhaseResolve}

	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return res, fmt.Errorf("investment.Resolve: load: %w", err)
	}
	if sess.Status != domain.StatusInvested {
		return res, fmt.Errorf("investment.Resolve: %w: session is %s", domain.ErrInvalidTransition, sess.Status)
	}
	invested, ok := sess.Phase.(domain.InvestedPhase)
	if !ok || invested.CustomerRef == "" || invested.MarketID == "" {
		return res, fmt.Errorf("investment.Resolve: %w: session has no placed order", domain.ErrInvalidInput)
	}
	if sess.ChosenImageIdx == nil {
		return res, fmt.Errorf("investment.Resolve: %w: session has no chosen image", domain.ErrInvalidInput)
	}
	res.MarketID = invested.MarketID
	if s, err := domain.StrategyAt(invested.StrategyIdx); err == nil {
		res.Strategy = s
	}

	cleared, err := r.exchange.ListClearedOrders(ctx, domain.ClearedOrderFilter{
		BetStatus: domain.BetStatusSettled,
		MarketIDs: []string{invested.MarketID},
	})
	if err != nil {
		return res, fmt.Errorf("investment.Resolve: list cleared orders: %w", err)
	}

	order, ok := matchClearedOrder(cleared, invested)
	if !ok {
		return res, fmt.Errorf("investment.Resolve: market %s: %w", invested.MarketID, domain.ErrNoClearedOrder)
	}
	outcome, ok := domain.ParseOutcome(order.BetOutcome)
	if !ok {
		return res, fmt.Errorf("investment.Resolve: bet %s outcome %q: %w", order.BetID, order.BetOutcome, domain.ErrNoClearedOrder)
	}

	if err := sess.Resolve(outcome, order); err != nil {
		return res, fmt.Errorf("investment.Resolve: %w", err)
	}
	if err := r.store.SaveSession(ctx, &sess); err != nil {
		return res, fmt.Errorf("investment.Resolve: save: %w", err)
	}

	res.Outcome = outcome
	res.Target = *sess.TargetImageIdx
	slog.Info("session resolved",
		"session_id", sess.ID,
		"market_id", invested.MarketID,
		"outcome", outcome,
		"profit", order.Profit,
		"target_image", res.Target,
		"correct", sess.IsCorrect(),
	)
	return res, nil
}

// matchClearedOrder elige la orden de la sesión: primero por customerOrderRef;
// si no aparece, la primera orden del mercado sin ref. Una orden con el ref
// de otra sesión nunca se usa.
func matchClearedOrder(cleared []domain.ClearedOrder, p domain.InvestedPhase) (domain.ClearedOrder, bool) {
	if p.CustomerOrderRef != "" {
		for _, o := range cleared {
			if o.MarketID == p.MarketID && o.CustomerOrderRef == p.CustomerOrderRef {
				return o, true
			}
		}
	}
	for _, o := range cleared {
		if o.MarketID != p.MarketID {
			continue
		}
		if p.CustomerOrderRef == "" || o.CustomerOrderRef == "" {
			return o, true
		}
	}
	return domain.ClearedOrder{}, false
}
