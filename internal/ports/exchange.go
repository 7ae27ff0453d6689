package ports

import (
	"context"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

// Exchange is an authenticated session against the betting exchange. Adapters
// hand one out only after a successful login, so holding an Exchange means
// the credentials were accepted.
type Exchange interface {
	// FindMarket returns the first market matching the filter, or
	// domain.ErrNoMarketAvailable.
	FindMarket(ctx context.Context, filter domain.MarketFilter) (domain.Market, error)

	// GetMarketBook returns the best offers for a market, or
	// domain.ErrNoBookAvailable.
	GetMarketBook(ctx context.Context, marketID string) (domain.MarketBook, error)

	// PlaceOrders submits the instructions. A rejected placement is reported in
	// the returned ExecutionReport, not as an error.
	PlaceOrders(ctx context.Context, req domain.PlaceOrdersRequest) (domain.ExecutionReport, error)

	// ListCurrentOrders returns unsettled orders tagged with any of the refs.
	ListCurrentOrders(ctx context.Context, customerOrderRefs []string) ([]domain.CurrentOrder, error)

	// ListClearedOrders returns settled orders matching the filter.
	ListClearedOrders(ctx context.Context, filter domain.ClearedOrderFilter) ([]domain.ClearedOrder, error)
}
