// Package paper is an in-memory exchange for running the poller without
// real money. Markets are synthetic, orders always match at the requested
// price, and each order settles a fixed time after placement with an outcome
// drawn from the implied probability of its price.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

const defaultSettleAfter = 10 * time.Minute

// Options tunes the simulation.
type Options struct {
	SettleAfter time.Duration    // time from placement to settlement
	Seed        uint64           // 0 = seeded from the clock
	Now         func() time.Time // nil = time.Now
}

type order struct {
	betID     string
	marketID  string
	selection int64
	side      domain.Side
	price     float64
	size      float64
	ref       string
	placedAt  time.Time
}

// Exchange implements ports.Exchange in memory.
type Exchange struct {
	mu          sync.Mutex
	rng         *rand.Rand
	now         func() time.Time
	settleAfter time.Duration

	nextMarket int64
	nextBet    int64
	books      map[string]domain.MarketBook
	orders     []order
	cleared    map[string]domain.ClearedOrder // betID → settlement
}

// Login returns a ready paper exchange. It never fails; it exists so the
// paper and real exchanges are obtained the same way.
func Login(_ context.Context, opts Options) (*Exchange, error) {
	if opts.SettleAfter <= 0 {
		opts.SettleAfter = defaultSettleAfter
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(opts.Now().UnixNano())
	}
	slog.Info("paper exchange ready", "settle_after", opts.SettleAfter)
	return &Exchange{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:         opts.Now,
		settleAfter: opts.SettleAfter,
		nextMarket:  1_000_000,
		nextBet:     30_000_000_000,
		books:       make(map[string]domain.MarketBook),
		cleared:     make(map[string]domain.ClearedOrder),
	}, nil
}

// FindMarket creates a synthetic win market starting inside the filter window.
func (e *Exchange) FindMarket(_ context.Context, filter domain.MarketFilter) (domain.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	start := now.Add(e.settleAfter / 2)
	if !filter.To.IsZero() && start.After(filter.To) {
		return domain.Market{}, domain.ErrNoMarketAvailable
	}

	e.nextMarket++
	id := fmt.Sprintf("1.%d", e.nextMarket)
	runners := 3 + e.rng.IntN(6)

	market := domain.Market{ID: id, Name: "Paper Race", EventName: "Paper Meeting", StartTime: start}
	book := domain.MarketBook{MarketID: id, Version: 1, Status: "OPEN"}
	for i := 0; i < runners; i++ {
		sel := int64(100 + i)
		back := roundPrice(1.5 + e.rng.Float64()*18)
		lay := roundPrice(back * 1.02)
		market.Runners = append(market.Runners, domain.RunnerDescription{SelectionID: sel, Name: fmt.Sprintf("Runner %d", i+1)})
		book.Runners = append(book.Runners, domain.Runner{
			SelectionID:     sel,
			Status:          "ACTIVE",
			AvailableToBack: []domain.PriceSize{{Price: back, Size: 100}},
			AvailableToLay:  []domain.PriceSize{{Price: lay, Size: 100}},
		})
	}
	e.books[id] = book
	return market, nil
}

// GetMarketBook returns the book generated with the market.
func (e *Exchange) GetMarketBook(_ context.Context, marketID string) (domain.MarketBook, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	book, ok := e.books[marketID]
	if !ok {
		return domain.MarketBook{}, fmt.Errorf("paper.GetMarketBook: %s: %w", marketID, domain.ErrNoBookAvailable)
	}
	return book, nil
}

// PlaceOrders matches every valid instruction in full at its limit price.
func (e *Exchange) PlaceOrders(_ context.Context, req domain.PlaceOrdersRequest) (domain.ExecutionReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := domain.ExecutionReport{
		CustomerRef: req.CustomerRef,
		Status:      domain.InstructionStatusOK,
		MarketID:    req.MarketID,
	}
	if _, ok := e.books[req.MarketID]; !ok {
		report.Status = "FAILURE"
		report.ErrorCode = "MARKET_NOT_OPEN_FOR_BETTING"
		return report, nil
	}

	now := e.now().UTC()
	for _, in := range req.Instructions {
		ir := domain.InstructionReport{
			SelectionID: in.SelectionID,
			Side:        in.Side,
			Price:       in.Price,
			Size:        in.Size,
		}
		if in.Price <= 1 || in.Size <= 0 {
			ir.Status = "FAILURE"
			ir.ErrorCode = "INVALID_BET_SIZE_OR_PRICE"
			report.Status = "FAILURE"
			report.InstructionReports = append(report.InstructionReports, ir)
			continue
		}

		e.nextBet++
		betID := fmt.Sprintf("%d", e.nextBet)
		e.orders = append(e.orders, order{
			betID:     betID,
			marketID:  req.MarketID,
			selection: in.SelectionID,
			side:      in.Side,
			price:     in.Price,
			size:      in.Size,
			ref:       in.CustomerOrderRef,
			placedAt:  now,
		})

		ir.Status = domain.InstructionStatusOK
		ir.OrderStatus = "EXECUTION_COMPLETE"
		ir.BetID = betID
		ir.PlacedDate = now
		ir.AveragePriceMatched = in.Price
		ir.SizeMatched = in.Size
		report.InstructionReports = append(report.InstructionReports, ir)
	}
	return report, nil
}

// ListCurrentOrders returns placed orders that have not settled yet.
func (e *Exchange) ListCurrentOrders(_ context.Context, customerOrderRefs []string) ([]domain.CurrentOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settle()

	var out []domain.CurrentOrder
	for _, o := range e.orders {
		if _, done := e.cleared[o.betID]; done {
			continue
		}
		if len(customerOrderRefs) > 0 && !slices.Contains(customerOrderRefs, o.ref) {
			continue
		}
		out = append(out, domain.CurrentOrder{
			BetID:               o.betID,
			MarketID:            o.marketID,
			SelectionID:         o.selection,
			Side:                o.side,
			Status:              "EXECUTION_COMPLETE",
			CustomerOrderRef:    o.ref,
			Price:               o.price,
			Size:                o.size,
			SizeMatched:         o.size,
			AveragePriceMatched: o.price,
			PlacedDate:          o.placedAt,
		})
	}
	return out, nil
}

// ListClearedOrders settles due orders and returns those matching the filter.
func (e *Exchange) ListClearedOrders(_ context.Context, filter domain.ClearedOrderFilter) ([]domain.ClearedOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settle()

	if filter.BetStatus != "" && filter.BetStatus != domain.BetStatusSettled {
		return nil, nil
	}
	var out []domain.ClearedOrder
	for _, o := range e.orders {
		c, ok := e.cleared[o.betID]
		if !ok {
			continue
		}
		if len(filter.MarketIDs) > 0 && !slices.Contains(filter.MarketIDs, c.MarketID) {
			continue
		}
		if len(filter.CustomerOrderRefs) > 0 && !slices.Contains(filter.CustomerOrderRefs, c.CustomerOrderRef) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// settle resolves every order placed at least settleAfter ago. The runner
// wins with probability 1/price. Caller holds e.mu.
func (e *Exchange) settle() {
	now := e.now().UTC()
	for _, o := range e.orders {
		if _, done := e.cleared[o.betID]; done {
			continue
		}
		if now.Sub(o.placedAt) < e.settleAfter {
			continue
		}

		runnerWins := e.rng.Float64() < 1/o.price
		won := runnerWins == (o.side == domain.SideBack)

		var profit float64
		switch {
		case o.side == domain.SideBack && won:
			profit = o.size * (o.price - 1)
		case o.side == domain.SideBack:
			profit = -o.size
		case won:
			profit = o.size
		default:
			profit = -o.size * (o.price - 1)
		}

		outcome := "LOST"
		if won {
			outcome = "WON"
		}
		e.cleared[o.betID] = domain.ClearedOrder{
			MarketID:         o.marketID,
			SelectionID:      o.selection,
			BetID:            o.betID,
			BetOutcome:       outcome,
			PriceMatched:     o.price,
			SizeSettled:      o.size,
			Profit:           roundPrice(profit),
			CustomerOrderRef: o.ref,
			SettledDate:      o.placedAt.Add(e.settleAfter),
		}
		slog.Debug("paper order settled", "bet_id", o.betID, "market_id", o.marketID, "outcome", outcome)
	}
}

// roundPrice rounds to two decimals.
func roundPrice(v float64) float64 {
	return float64(int64(v*100+0.5*sign(v))) / 100
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
