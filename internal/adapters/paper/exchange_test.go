package paper_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/arvbot/internal/adapters/paper"
	"github.com/alejandrodnm/arvbot/internal/domain"
	"github.com/alejandrodnm/arvbot/internal/ports"
)

var _ ports.Exchange = (*paper.Exchange)(nil)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newExchange(t *testing.T, c *clock) *paper.Exchange {
	t.Helper()
	ex, err := paper.Login(context.Background(), paper.Options{
		SettleAfter: 10 * time.Minute,
		Seed:        42,
		Now:         c.now,
	})
	require.NoError(t, err)
	return ex
}

func placeOnFavourite(t *testing.T, ex *paper.Exchange, side domain.Side, ref string) (domain.Market, domain.ExecutionReport) {
	t.Helper()
	ctx := context.Background()

	market, err := ex.FindMarket(ctx, domain.MarketFilter{})
	require.NoError(t, err)
	book, err := ex.GetMarketBook(ctx, market.ID)
	require.NoError(t, err)
	fav, err := book.Favourite()
	require.NoError(t, err)

	report, err := ex.PlaceOrders(ctx, domain.PlaceOrdersRequest{
		MarketID:    market.ID,
		CustomerRef: ref,
		Instructions: []domain.PlaceInstruction{{
			SelectionID:      fav.SelectionID,
			Side:             side,
			OrderType:        domain.OrderTypeLimit,
			Size:             2,
			Price:            fav.BestPrice(side),
			PersistenceType:  domain.PersistenceLapse,
			TimeInForce:      domain.TimeInForceFillOrKill,
			CustomerOrderRef: ref,
		}},
	})
	require.NoError(t, err)
	return market, report
}

func TestPaper_FindMarketBuildsBook(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ex := newExchange(t, c)

	market, err := ex.FindMarket(context.Background(), domain.MarketFilter{To: c.t.Add(24 * time.Hour)})
	require.NoError(t, err)
	assert.NotEmpty(t, market.ID)
	assert.True(t, market.StartTime.After(c.t))
	assert.GreaterOrEqual(t, len(market.Runners), 3)

	book, err := ex.GetMarketBook(context.Background(), market.ID)
	require.NoError(t, err)
	assert.Len(t, book.Runners, len(market.Runners))
	for _, r := range book.Runners {
		assert.Greater(t, r.BestBack(), 1.0)
		assert.GreaterOrEqual(t, r.BestLay(), r.BestBack())
	}
}

func TestPaper_NoMarketInsideWindow(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ex := newExchange(t, c)

	_, err := ex.FindMarket(context.Background(), domain.MarketFilter{To: c.t.Add(time.Minute)})
	assert.ErrorIs(t, err, domain.ErrNoMarketAvailable)
}

func TestPaper_UnknownBook(t *testing.T) {
	ex := newExchange(t, &clock{t: time.Now()})

	_, err := ex.GetMarketBook(context.Background(), "1.nope")
	assert.ErrorIs(t, err, domain.ErrNoBookAvailable)
}

func TestPaper_PlaceOrdersMatchesInFull(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ex := newExchange(t, c)

	market, report := placeOnFavourite(t, ex, domain.SideBack, "ref1")

	assert.True(t, report.Succeeded())
	assert.Equal(t, market.ID, report.MarketID)
	require.Len(t, report.InstructionReports, 1)
	ir := report.InstructionReports[0]
	assert.NotEmpty(t, ir.BetID)
	assert.Equal(t, 2.0, ir.SizeMatched)
	assert.Equal(t, c.t, ir.PlacedDate)
}

func TestPaper_PlaceOrdersRejectsUnknownMarket(t *testing.T) {
	ex := newExchange(t, &clock{t: time.Now()})

	report, err := ex.PlaceOrders(context.Background(), domain.PlaceOrdersRequest{
		MarketID:     "1.nope",
		Instructions: []domain.PlaceInstruction{{SelectionID: 1, Side: domain.SideBack, Size: 2, Price: 3}},
	})
	require.NoError(t, err)
	assert.False(t, report.Succeeded())
	assert.Equal(t, "MARKET_NOT_OPEN_FOR_BETTING", report.ErrorCode)
}

func TestPaper_PlaceOrdersRejectsInvalidPrice(t *testing.T) {
	c := &clock{t: time.Now()}
	ex := newExchange(t, c)
	market, err := ex.FindMarket(context.Background(), domain.MarketFilter{})
	require.NoError(t, err)

	report, err := ex.PlaceOrders(context.Background(), domain.PlaceOrdersRequest{
		MarketID:     market.ID,
		Instructions: []domain.PlaceInstruction{{SelectionID: 100, Side: domain.SideBack, Size: 2, Price: 1}},
	})
	require.NoError(t, err)
	assert.False(t, report.Succeeded())
	assert.Equal(t, "INVALID_BET_SIZE_OR_PRICE", report.InstructionReports[0].ErrorCode)
}

func TestPaper_OrderSettlesAfterDelay(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ex := newExchange(t, c)
	ctx := context.Background()

	market, report := placeOnFavourite(t, ex, domain.SideBack, "ref1")
	betID := report.InstructionReports[0].BetID
	price := report.InstructionReports[0].Price

	current, err := ex.ListCurrentOrders(ctx, []string{"ref1"})
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, betID, current[0].BetID)

	cleared, err := ex.ListClearedOrders(ctx, domain.ClearedOrderFilter{MarketIDs: []string{market.ID}})
	require.NoError(t, err)
	assert.Empty(t, cleared, "nothing settles before the delay")

	c.t = c.t.Add(10 * time.Minute)

	cleared, err = ex.ListClearedOrders(ctx, domain.ClearedOrderFilter{
		MarketIDs:         []string{market.ID},
		CustomerOrderRefs: []string{"ref1"},
	})
	require.NoError(t, err)
	require.Len(t, cleared, 1)
	got := cleared[0]
	assert.Equal(t, betID, got.BetID)
	assert.Equal(t, "ref1", got.CustomerOrderRef)

	outcome, ok := domain.ParseOutcome(got.BetOutcome)
	require.True(t, ok)
	if outcome == domain.OutcomeWin {
		assert.InDelta(t, 2*(price-1), got.Profit, 0.01)
	} else {
		assert.InDelta(t, -2.0, got.Profit, 0.01)
	}

	current, err = ex.ListCurrentOrders(ctx, []string{"ref1"})
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestPaper_SettlementIsStable(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ex := newExchange(t, c)
	ctx := context.Background()

	_, _ = placeOnFavourite(t, ex, domain.SideLay, "ref2")
	c.t = c.t.Add(time.Hour)

	first, err := ex.ListClearedOrders(ctx, domain.ClearedOrderFilter{CustomerOrderRefs: []string{"ref2"}})
	require.NoError(t, err)
	second, err := ex.ListClearedOrders(ctx, domain.ClearedOrderFilter{CustomerOrderRefs: []string{"ref2"}})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPaper_ClearedFilterByRef(t *testing.T) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	ex := newExchange(t, c)
	ctx := context.Background()

	placeOnFavourite(t, ex, domain.SideBack, "a")
	placeOnFavourite(t, ex, domain.SideBack, "b")
	c.t = c.t.Add(time.Hour)

	cleared, err := ex.ListClearedOrders(ctx, domain.ClearedOrderFilter{CustomerOrderRefs: []string{"b"}})
	require.NoError(t, err)
	require.Len(t, cleared, 1)
	assert.Equal(t, "b", cleared[0].CustomerOrderRef)

	all, err := ex.ListClearedOrders(ctx, domain.ClearedOrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
