package betfair

import "time"

// DTOs raw de la Betting API. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- Identity ---

type certLoginResponse struct {
	SessionToken string `json:"sessionToken"`
	LoginStatus  string `json:"loginStatus"`
}

// apingFault es el cuerpo de un error 4xx de la Betting API.
type apingFault struct {
	FaultCode   string `json:"faultcode"`
	FaultString string `json:"faultstring"`
	Detail      struct {
		APINGException struct {
			ErrorCode    string `json:"errorCode"`
			ErrorDetails string `json:"errorDetails"`
		} `json:"APINGException"`
	} `json:"detail"`
}

// --- listMarketCatalogue ---

type marketFilter struct {
	EventTypeIDs    []string  `json:"eventTypeIds,omitempty"`
	MarketTypeCodes []string  `json:"marketTypeCodes,omitempty"`
	BSPOnly         *bool     `json:"bspOnly,omitempty"`
	MarketStartTime *timeSpan `json:"marketStartTime,omitempty"`
	MarketIDs       []string  `json:"marketIds,omitempty"`
}

type timeSpan struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type listMarketCatalogueRequest struct {
	Filter           marketFilter `json:"filter"`
	MarketProjection []string     `json:"marketProjection,omitempty"`
	Sort             string       `json:"sort,omitempty"`
	MaxResults       int          `json:"maxResults"`
}

type marketCatalogue struct {
	MarketID        string          `json:"marketId"`
	MarketName      string          `json:"marketName"`
	MarketStartTime time.Time       `json:"marketStartTime"`
	Event           *eventRaw       `json:"event,omitempty"`
	Runners         []runnerCatalog `json:"runners"`
}

type eventRaw struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type runnerCatalog struct {
	SelectionID int64  `json:"selectionId"`
	RunnerName  string `json:"runnerName"`
}

// --- listMarketBook ---

type listMarketBookRequest struct {
	MarketIDs       []string        `json:"marketIds"`
	PriceProjection priceProjection `json:"priceProjection"`
}

type priceProjection struct {
	PriceData []string `json:"priceData"`
}

type marketBookRaw struct {
	MarketID string          `json:"marketId"`
	Status   string          `json:"status"`
	Version  int64           `json:"version"`
	Runners  []runnerBookRaw `json:"runners"`
}

type runnerBookRaw struct {
	SelectionID int64        `json:"selectionId"`
	Status      string       `json:"status"`
	Ex          *exchangeRaw `json:"ex,omitempty"`
	LastTraded  float64      `json:"lastPriceTraded,omitempty"`
}

type exchangeRaw struct {
	AvailableToBack []priceSizeRaw `json:"availableToBack"`
	AvailableToLay  []priceSizeRaw `json:"availableToLay"`
}

type priceSizeRaw struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// --- placeOrders ---

type placeOrdersRequest struct {
	MarketID      string             `json:"marketId"`
	Instructions  []placeInstruction `json:"instructions"`
	CustomerRef   string             `json:"customerRef,omitempty"`
	MarketVersion *marketVersion     `json:"marketVersion,omitempty"`
}

type marketVersion struct {
	Version int64 `json:"version"`
}

type placeInstruction struct {
	SelectionID      int64       `json:"selectionId"`
	Handicap         float64     `json:"handicap"`
	Side             string      `json:"side"`
	OrderType        string      `json:"orderType"`
	LimitOrder       *limitOrder `json:"limitOrder,omitempty"`
	CustomerOrderRef string      `json:"customerOrderRef,omitempty"`
}

type limitOrder struct {
	Size            float64 `json:"size"`
	Price           float64 `json:"price"`
	PersistenceType string  `json:"persistenceType,omitempty"`
	TimeInForce     string  `json:"timeInForce,omitempty"`
}

type placeExecutionReport struct {
	CustomerRef        string                   `json:"customerRef"`
	Status             string                   `json:"status"`
	ErrorCode          string                   `json:"errorCode"`
	MarketID           string                   `json:"marketId"`
	InstructionReports []placeInstructionReport `json:"instructionReports"`
}

type placeInstructionReport struct {
	Status              string           `json:"status"`
	ErrorCode           string           `json:"errorCode"`
	OrderStatus         string           `json:"orderStatus"`
	Instruction         placeInstruction `json:"instruction"`
	BetID               string           `json:"betId"`
	PlacedDate          time.Time        `json:"placedDate"`
	AveragePriceMatched float64          `json:"averagePriceMatched"`
	SizeMatched         float64          `json:"sizeMatched"`
}

// --- listCurrentOrders ---

type listCurrentOrdersRequest struct {
	CustomerOrderRefs []string `json:"customerOrderRefs,omitempty"`
	OrderProjection   string   `json:"orderProjection,omitempty"`
}

type currentOrderSummaryReport struct {
	CurrentOrders []currentOrderRaw `json:"currentOrders"`
	MoreAvailable bool              `json:"moreAvailable"`
}

type currentOrderRaw struct {
	BetID               string       `json:"betId"`
	MarketID            string       `json:"marketId"`
	SelectionID         int64        `json:"selectionId"`
	Side                string       `json:"side"`
	Status              string       `json:"status"`
	PriceSize           priceSizeRaw `json:"priceSize"`
	SizeMatched         float64      `json:"sizeMatched"`
	AveragePriceMatched float64      `json:"averagePriceMatched"`
	PlacedDate          time.Time    `json:"placedDate"`
	CustomerOrderRef    string       `json:"customerOrderRef"`
}

// --- listClearedOrders ---

type listClearedOrdersRequest struct {
	BetStatus         string   `json:"betStatus"`
	MarketIDs         []string `json:"marketIds,omitempty"`
	CustomerOrderRefs []string `json:"customerOrderRefs,omitempty"`
}

type clearedOrderSummaryReport struct {
	ClearedOrders []clearedOrderRaw `json:"clearedOrders"`
	MoreAvailable bool              `json:"moreAvailable"`
}

type clearedOrderRaw struct {
	EventTypeID      string    `json:"eventTypeId"`
	MarketID         string    `json:"marketId"`
	SelectionID      int64     `json:"selectionId"`
	BetID            string    `json:"betId"`
	Side             string    `json:"side"`
	BetOutcome       string    `json:"betOutcome"`
	PriceMatched     float64   `json:"priceMatched"`
	SizeSettled      float64   `json:"sizeSettled"`
	Profit           float64   `json:"profit"`
	CustomerOrderRef string    `json:"customerOrderRef"`
	SettledDate      time.Time `json:"settledDate"`
}
