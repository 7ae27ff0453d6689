package betfair

import "github.com/alejandrodnm/arvbot/internal/domain"

// mapping.go convierte DTOs de la API en entidades de dominio y viceversa.

func mapMarket(raw marketCatalogue) domain.Market {
	m := domain.Market{
		ID:        raw.MarketID,
		Name:      raw.MarketName,
		StartTime: raw.MarketStartTime,
		Runners:   make([]domain.RunnerDescription, 0, len(raw.Runners)),
	}
	if raw.Event != nil {
		m.EventName = raw.Event.Name
	}
	for _, r := range raw.Runners {
		m.Runners = append(m.Runners, domain.RunnerDescription{SelectionID: r.SelectionID, Name: r.RunnerName})
	}
	return m
}

func mapMarketBook(raw marketBookRaw) domain.MarketBook {
	book := domain.MarketBook{
		MarketID: raw.MarketID,
		Version:  raw.Version,
		Status:   raw.Status,
		Runners:  make([]domain.Runner, 0, len(raw.Runners)),
	}
	for _, r := range raw.Runners {
		runner := domain.Runner{SelectionID: r.SelectionID, Status: r.Status}
		if r.Ex != nil {
			runner.AvailableToBack = mapPriceSizes(r.Ex.AvailableToBack)
			runner.AvailableToLay = mapPriceSizes(r.Ex.AvailableToLay)
		}
		book.Runners = append(book.Runners, runner)
	}
	return book
}

func mapPriceSizes(raw []priceSizeRaw) []domain.PriceSize {
	if len(raw) == 0 {
		return nil
	}
	out := make([]domain.PriceSize, len(raw))
	for i, ps := range raw {
		out[i] = domain.PriceSize{Price: ps.Price, Size: ps.Size}
	}
	return out
}

func toPlaceOrdersRequest(req domain.PlaceOrdersRequest) placeOrdersRequest {
	out := placeOrdersRequest{
		MarketID:     req.MarketID,
		CustomerRef:  req.CustomerRef,
		Instructions: make([]placeInstruction, 0, len(req.Instructions)),
	}
	if req.MarketVersion > 0 {
		out.MarketVersion = &marketVersion{Version: req.MarketVersion}
	}
	for _, in := range req.Instructions {
		out.Instructions = append(out.Instructions, placeInstruction{
			SelectionID: in.SelectionID,
			Side:        string(in.Side),
			OrderType:   in.OrderType,
			LimitOrder: &limitOrder{
				Size:            in.Size,
				Price:           in.Price,
				PersistenceType: in.PersistenceType,
				TimeInForce:     in.TimeInForce,
			},
			CustomerOrderRef: in.CustomerOrderRef,
		})
	}
	return out
}

func mapExecutionReport(raw placeExecutionReport) domain.ExecutionReport {
	report := domain.ExecutionReport{
		CustomerRef:        raw.CustomerRef,
		Status:             raw.Status,
		ErrorCode:          raw.ErrorCode,
		MarketID:           raw.MarketID,
		InstructionReports: make([]domain.InstructionReport, 0, len(raw.InstructionReports)),
	}
	for _, ir := range raw.InstructionReports {
		r := domain.InstructionReport{
			Status:              ir.Status,
			ErrorCode:           ir.ErrorCode,
			OrderStatus:         ir.OrderStatus,
			BetID:               ir.BetID,
			PlacedDate:          ir.PlacedDate,
			AveragePriceMatched: ir.AveragePriceMatched,
			SizeMatched:         ir.SizeMatched,
			SelectionID:         ir.Instruction.SelectionID,
			Side:                domain.Side(ir.Instruction.Side),
		}
		if ir.Instruction.LimitOrder != nil {
			r.Price = ir.Instruction.LimitOrder.Price
			r.Size = ir.Instruction.LimitOrder.Size
		}
		report.InstructionReports = append(report.InstructionReports, r)
	}
	return report
}

func mapCurrentOrder(raw currentOrderRaw) domain.CurrentOrder {
	return domain.CurrentOrder{
		BetID:               raw.BetID,
		MarketID:            raw.MarketID,
		SelectionID:         raw.SelectionID,
		Side:                domain.Side(raw.Side),
		Status:              raw.Status,
		CustomerOrderRef:    raw.CustomerOrderRef,
		Price:               raw.PriceSize.Price,
		Size:                raw.PriceSize.Size,
		SizeMatched:         raw.SizeMatched,
		AveragePriceMatched: raw.AveragePriceMatched,
		PlacedDate:          raw.PlacedDate,
	}
}

func mapClearedOrder(raw clearedOrderRaw) domain.ClearedOrder {
	return domain.ClearedOrder{
		MarketID:         raw.MarketID,
		SelectionID:      raw.SelectionID,
		BetID:            raw.BetID,
		BetOutcome:       raw.BetOutcome,
		PriceMatched:     raw.PriceMatched,
		SizeSettled:      raw.SizeSettled,
		Profit:           raw.Profit,
		CustomerOrderRef: raw.CustomerOrderRef,
		SettledDate:      raw.SettledDate,
	}
}
