package betfair

import (
	"context"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

// PlaceOrders envía las instrucciones. Un rechazo de Betfair llega en el
// report (status FAILURE), no como error.
func (c *Client) PlaceOrders(ctx context.Context, req domain.PlaceOrdersRequest) (domain.ExecutionReport, error) {
	var raw placeExecutionReport
	if err := c.call(ctx, "placeOrders", toPlaceOrdersRequest(req), &raw); err != nil {
		return domain.ExecutionReport{}, err
	}
	return mapExecutionReport(raw), nil
}

// ListCurrentOrders devuelve las órdenes no liquidadas con esos customerOrderRefs.
func (c *Client) ListCurrentOrders(ctx context.Context, customerOrderRefs []string) ([]domain.CurrentOrder, error) {
	req := listCurrentOrdersRequest{
		CustomerOrderRefs: customerOrderRefs,
		OrderProjection:   "ALL",
	}

	var report currentOrderSummaryReport
	if err := c.call(ctx, "listCurrentOrders", req, &report); err != nil {
		return nil, err
	}

	orders := make([]domain.CurrentOrder, 0, len(report.CurrentOrders))
	for _, o := range report.CurrentOrders {
		orders = append(orders, mapCurrentOrder(o))
	}
	return orders, nil
}

// ListClearedOrders devuelve las órdenes liquidadas que cumplen el filtro.
func (c *Client) ListClearedOrders(ctx context.Context, filter domain.ClearedOrderFilter) ([]domain.ClearedOrder, error) {
	req := listClearedOrdersRequest{
		BetStatus:         filter.BetStatus,
		MarketIDs:         filter.MarketIDs,
		CustomerOrderRefs: filter.CustomerOrderRefs,
	}
	if req.BetStatus == "" {
		req.BetStatus = domain.BetStatusSettled
	}

	var report clearedOrderSummaryReport
	if err := c.call(ctx, "listClearedOrders", req, &report); err != nil {
		return nil, err
	}

	orders := make([]domain.ClearedOrder, 0, len(report.ClearedOrders))
	for _, o := range report.ClearedOrders {
		orders = append(orders, mapClearedOrder(o))
	}
	return orders, nil
}
