package betfair

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

// FindMarket devuelve el primer mercado del catálogo que cumple el filtro.
func (c *Client) FindMarket(ctx context.Context, filter domain.MarketFilter) (domain.Market, error) {
	req := listMarketCatalogueRequest{
		Filter: marketFilter{
			EventTypeIDs:    filter.EventTypeIDs,
			MarketTypeCodes: filter.MarketTypeCodes,
		},
		MarketProjection: []string{"EVENT", "MARKET_START_TIME", "RUNNER_DESCRIPTION"},
		Sort:             filter.Sort,
		MaxResults:       filter.MaxResults,
	}
	if filter.BSPOnly {
		bsp := true
		req.Filter.BSPOnly = &bsp
	}
	if !filter.From.IsZero() || !filter.To.IsZero() {
		req.Filter.MarketStartTime = &timeSpan{From: filter.From.UTC(), To: filter.To.UTC()}
	}
	if req.MaxResults <= 0 {
		req.MaxResults = 1
	}

	var catalogue []marketCatalogue
	if err := c.call(ctx, "listMarketCatalogue", req, &catalogue); err != nil {
		return domain.Market{}, err
	}
	if len(catalogue) == 0 {
		return domain.Market{}, fmt.Errorf("betfair.listMarketCatalogue: %w", domain.ErrNoMarketAvailable)
	}
	return mapMarket(catalogue[0]), nil
}

// GetMarketBook devuelve los mejores precios (EX_BEST_OFFERS) de un mercado.
func (c *Client) GetMarketBook(ctx context.Context, marketID string) (domain.MarketBook, error) {
	req := listMarketBookRequest{
		MarketIDs:       []string{marketID},
		PriceProjection: priceProjection{PriceData: []string{"EX_BEST_OFFERS"}},
	}

	var books []marketBookRaw
	if err := c.call(ctx, "listMarketBook", req, &books); err != nil {
		return domain.MarketBook{}, err
	}
	if len(books) == 0 {
		return domain.MarketBook{}, fmt.Errorf("betfair.listMarketBook: %s: %w", marketID, domain.ErrNoBookAvailable)
	}
	return mapMarketBook(books[0]), nil
}
