package investment_test

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/arvbot/internal/adapters/storage"
	"github.com/alejandrodnm/arvbot/internal/application/investment"
	"github.com/alejandrodnm/arvbot/internal/domain"
)

const testMarketID = "1.100"

// fakeExchange responde con datos fijos y registra las llamadas.
type fakeExchange struct {
	mu sync.Mutex

	marketErr  error
	book       domain.MarketBook
	bookErr    error
	placeErr   error
	rejectRefs map[string]string // ref -> error code devuelto en el report
	current    []domain.CurrentOrder
	cleared    []domain.ClearedOrder
	clearedErr error

	// block, si no es nil, hace que FindMarket espere hasta que se cierre o
	// el contexto venza. entered se señala al entrar.
	block   chan struct{}
	entered chan struct{}

	calls          map[string]int // método -> número de llamadas
	findFilters    []domain.MarketFilter
	placed         []domain.PlaceOrdersRequest
	clearedFilters []domain.ClearedOrderFilter
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		book: domain.MarketBook{
			MarketID: testMarketID,
			Version:  7,
			Status:   "OPEN",
			Runners: []domain.Runner{
				{SelectionID: 101, AvailableToBack: []domain.PriceSize{{Price: 4.1, Size: 20}}, AvailableToLay: []domain.PriceSize{{Price: 4.3, Size: 20}}},
				{SelectionID: 102, AvailableToBack: []domain.PriceSize{{Price: 2.46, Size: 50}}, AvailableToLay: []domain.PriceSize{{Price: 2.5, Size: 40}}},
				{SelectionID: 103},
			},
		},
		rejectRefs: map[string]string{},
		calls:      map[string]int{},
	}
}

func (f *fakeExchange) FindMarket(ctx context.Context, filter domain.MarketFilter) (domain.Market, error) {
	f.mu.Lock()
	f.calls["FindMarket"]++
	f.findFilters = append(f.findFilters, filter)
	block, entered, err := f.block, f.entered, f.marketErr
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.Market{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.Market{}, err
	}
	return domain.Market{ID: testMarketID, Name: "R1 1000m", StartTime: time.Now().Add(time.Hour)}, nil
}

func (f *fakeExchange) GetMarketBook(_ context.Context, marketID string) (domain.MarketBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["GetMarketBook"]++
	if f.bookErr != nil {
		return domain.MarketBook{}, f.bookErr
	}
	b := f.book
	b.MarketID = marketID
	return b, nil
}

func (f *fakeExchange) PlaceOrders(_ context.Context, req domain.PlaceOrdersRequest) (domain.ExecutionReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["PlaceOrders"]++
	f.placed = append(f.placed, req)
	if f.placeErr != nil {
		return domain.ExecutionReport{}, f.placeErr
	}

	report := domain.ExecutionReport{CustomerRef: req.CustomerRef, Status: domain.InstructionStatusOK, MarketID: req.MarketID}
	for _, in := range req.Instructions {
		ir := domain.InstructionReport{
			Status:              domain.InstructionStatusOK,
			OrderStatus:         "EXECUTION_COMPLETE",
			BetID:               "bet-" + in.CustomerOrderRef,
			SelectionID:         in.SelectionID,
			Side:                in.Side,
			Price:               in.Price,
			Size:                in.Size,
			SizeMatched:         in.Size,
			AveragePriceMatched: in.Price,
		}
		if code, ok := f.rejectRefs[in.CustomerOrderRef]; ok {
			ir.Status = "FAILURE"
			ir.ErrorCode = code
			ir.BetID = ""
			report.Status = "FAILURE"
			if code == domain.OrderStatusExpired {
				ir.Status = domain.InstructionStatusOK
				ir.ErrorCode = ""
				ir.OrderStatus = domain.OrderStatusExpired
				report.Status = domain.InstructionStatusOK
			}
		}
		report.InstructionReports = append(report.InstructionReports, ir)
	}
	return report, nil
}

func (f *fakeExchange) ListCurrentOrders(_ context.Context, refs []string) ([]domain.CurrentOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListCurrentOrders"]++
	var out []domain.CurrentOrder
	for _, o := range f.current {
		if len(refs) == 0 || slices.Contains(refs, o.CustomerOrderRef) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeExchange) ListClearedOrders(_ context.Context, filter domain.ClearedOrderFilter) ([]domain.ClearedOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ListClearedOrders"]++
	f.clearedFilters = append(f.clearedFilters, filter)
	if f.clearedErr != nil {
		return nil, f.clearedErr
	}
	var out []domain.ClearedOrder
	for _, o := range f.cleared {
		if len(filter.MarketIDs) > 0 && !slices.Contains(filter.MarketIDs, o.MarketID) {
			continue
		}
		if len(filter.CustomerOrderRefs) > 0 && !slices.Contains(filter.CustomerOrderRefs, o.CustomerOrderRef) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// totalCalls suma las llamadas a cualquier método del exchange.
func (f *fakeExchange) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeExchange) placedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.placed)
}

func (f *fakeExchange) settle(ref, outcome string, profit float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, domain.ClearedOrder{
		MarketID:         testMarketID,
		SelectionID:      102,
		BetID:            "bet-" + ref,
		BetOutcome:       outcome,
		PriceMatched:     2.46,
		SizeSettled:      1,
		Profit:           profit,
		CustomerOrderRef: ref,
		SettledDate:      time.Date(2026, 3, 1, 14, 36, 12, 0, time.UTC),
	})
}

var execCfg = investment.ExecutorConfig{
	Stake:           1.0,
	EventTypeIDs:    []string{domain.EventTypeHorseRacing},
	MarketTypeCodes: []string{domain.MarketTypeWin},
	BSPOnly:         true,
	Window:          24 * time.Hour,
}

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// seedInvesting guarda una sesión en investing con la imagen elegida.
func seedInvesting(t *testing.T, store *storage.SQLiteStorage, id string, chosen int) domain.Session {
	t.Helper()
	sess, err := domain.NewSession(id, []string{id + "-a.jpg", id + "-b.jpg"})
	require.NoError(t, err)
	require.NoError(t, sess.Activate("impression of "+id))
	require.NoError(t, sess.Complete(chosen))
	require.NoError(t, sess.StartInvesting())
	require.NoError(t, store.SaveSession(context.Background(), &sess))
	return sess
}

// seedInvested guarda una sesión ya invertida en testMarketID.
func seedInvested(t *testing.T, store *storage.SQLiteStorage, id string, chosen int) domain.Session {
	t.Helper()
	sess, err := domain.NewSession(id, []string{id + "-a.jpg", id + "-b.jpg"})
	require.NoError(t, err)
	require.NoError(t, sess.Activate("impression of "+id))
	require.NoError(t, sess.Complete(chosen))
	require.NoError(t, sess.StartInvesting())
	ref := domain.CustomerOrderRef(id)
	require.NoError(t, sess.MarkInvested(domain.InvestedPhase{
		StrategyIdx:      chosen,
		MarketID:         testMarketID,
		CustomerRef:      ref,
		CustomerOrderRef: ref,
	}))
	require.NoError(t, store.SaveSession(context.Background(), &sess))
	return sess
}

func mustGet(t *testing.T, store *storage.SQLiteStorage, id string) domain.Session {
	t.Helper()
	sess, err := store.GetSession(context.Background(), id)
	require.NoError(t, err)
	return sess
}
