package domain

import (
	"sort"
	"strings"
	"time"
)

// Order constants as understood by the exchange.
const (
	OrderTypeLimit         = "LIMIT"
	PersistenceLapse       = "LAPSE"
	TimeInForceFillOrKill  = "FILL_OR_KILL"
	InstructionStatusOK    = "SUCCESS"
	OrderStatusExpired     = "EXPIRED"
	BetStatusSettled       = "SETTLED"
	MarketSortFirstToStart = "FIRST_TO_START"
	MarketTypeWin          = "WIN"
	EventTypeHorseRacing   = "7"
)

// MarketFilter selects the next eligible market.
type MarketFilter struct {
	EventTypeIDs    []string
	MarketTypeCodes []string
	BSPOnly         bool
	From            time.Time
	To              time.Time
	Sort            string
	MaxResults      int
}

// Market is a catalogue entry of the exchange.
type Market struct {
	ID        string
	Name      string
	EventName string
	StartTime time.Time
	Runners   []RunnerDescription
}

// RunnerDescription is the static part of a runner (name, selection).
type RunnerDescription struct {
	SelectionID int64
	Name        string
}

// MarketBook is the live price snapshot of a market.
type MarketBook struct {
	MarketID string
	Version  int64
	Status   string
	Runners  []Runner
}

// Runner is one selection in a market book with its best available prices.
type Runner struct {
	SelectionID     int64
	Status          string
	AvailableToBack []PriceSize // best first
	AvailableToLay  []PriceSize // best first
}

// PriceSize is one price level.
type PriceSize struct {
	Price float64
	Size  float64
}

// BestBack returns the best price available to back, or 0 when there is none.
func (r Runner) BestBack() float64 {
	if len(r.AvailableToBack) == 0 {
		return 0
	}
	return r.AvailableToBack[0].Price
}

// BestLay returns the best price available to lay, or 0 when there is none.
func (r Runner) BestLay() float64 {
	if len(r.AvailableToLay) == 0 {
		return 0
	}
	return r.AvailableToLay[0].Price
}

// BestPrice returns the best available price for an order on the given side.
func (r Runner) BestPrice(side Side) float64 {
	if side == SideLay {
		return r.BestLay()
	}
	return r.BestBack()
}

// Favourite returns the runner with the lowest best back price. Runners without
// a back price sort last; the book itself is not reordered.
func (b MarketBook) Favourite() (Runner, error) {
	runners := make([]Runner, len(b.Runners))
	copy(runners, b.Runners)

	sort.SliceStable(runners, func(i, j int) bool {
		pi, pj := runners[i].BestBack(), runners[j].BestBack()
		if pi == 0 {
			return false
		}
		if pj == 0 {
			return true
		}
		return pi < pj
	})

	if len(runners) == 0 || runners[0].BestBack() == 0 {
		return Runner{}, ErrNoBookAvailable
	}
	return runners[0], nil
}

// PlaceInstruction is a single limit order.
type PlaceInstruction struct {
	SelectionID      int64
	Side             Side
	OrderType        string
	Size             float64
	Price            float64
	PersistenceType  string
	TimeInForce      string
	CustomerOrderRef string
}

// PlaceOrdersRequest groups the instructions sent in one placement call.
type PlaceOrdersRequest struct {
	MarketID      string
	Instructions  []PlaceInstruction
	CustomerRef   string
	MarketVersion int64
}

// ExecutionReport is the exchange's answer to a placement call.
type ExecutionReport struct {
	CustomerRef        string              `json:"customerRef"`
	Status             string              `json:"status"`
	ErrorCode          string              `json:"errorCode,omitempty"`
	MarketID           string              `json:"marketId"`
	InstructionReports []InstructionReport `json:"instructionReports"`
}

// InstructionReport is the outcome of one instruction.
type InstructionReport struct {
	Status              string    `json:"status"`
	ErrorCode           string    `json:"errorCode,omitempty"`
	OrderStatus         string    `json:"orderStatus,omitempty"`
	BetID               string    `json:"betId,omitempty"`
	PlacedDate          time.Time `json:"placedDate,omitempty"`
	AveragePriceMatched float64   `json:"averagePriceMatched,omitempty"`
	SizeMatched         float64   `json:"sizeMatched,omitempty"`
	SelectionID         int64     `json:"selectionId"`
	Side                Side      `json:"side"`
	Price               float64   `json:"price"`
	Size                float64   `json:"size"`
}

// Succeeded reports whether every instruction was accepted and none expired.
// An empty report is not a success.
func (r ExecutionReport) Succeeded() bool {
	if len(r.InstructionReports) == 0 {
		return false
	}
	for _, ir := range r.InstructionReports {
		if ir.Status != InstructionStatusOK || ir.OrderStatus == OrderStatusExpired {
			return false
		}
	}
	return true
}

// BetIDs returns the bet ids assigned to the instructions, skipping empty ones.
func (r ExecutionReport) BetIDs() []string {
	ids := make([]string, 0, len(r.InstructionReports))
	for _, ir := range r.InstructionReports {
		if ir.BetID != "" {
			ids = append(ids, ir.BetID)
		}
	}
	return ids
}

// CurrentOrder is an order the exchange has not settled yet.
type CurrentOrder struct {
	BetID               string
	MarketID            string
	SelectionID         int64
	Side                Side
	Status              string
	CustomerOrderRef    string
	Price               float64
	Size                float64
	SizeMatched         float64
	AveragePriceMatched float64
	PlacedDate          time.Time
}

// ClearedOrderFilter narrows a cleared orders query.
type ClearedOrderFilter struct {
	BetStatus         string
	MarketIDs         []string
	CustomerOrderRefs []string
}

// ClearedOrder is the exchange's final record of a wager.
type ClearedOrder struct {
	MarketID         string
	SelectionID      int64
	BetID            string
	BetOutcome       string
	PriceMatched     float64
	SizeSettled      float64
	Profit           float64
	CustomerOrderRef string
	SettledDate      time.Time
}

// Outcome of a settled wager.
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLoss Outcome = "LOSS"
)

// ParseOutcome maps the exchange's bet outcome onto a win or loss.
// Anything else (placed, void) is not a usable outcome.
func ParseOutcome(betOutcome string) (Outcome, bool) {
	switch strings.ToUpper(strings.TrimSpace(betOutcome)) {
	case "WON", "WIN":
		return OutcomeWin, true
	case "LOST", "LOSE", "LOSS":
		return OutcomeLoss, true
	}
	return "", false
}
