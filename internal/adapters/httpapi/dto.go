package httpapi

import (
	"time"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

// sessionDTO is the wire form of a session. Execution internals (execution
// report, customer refs) stay server-side.
type sessionDTO struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	Images         []string   `json:"images"`
	ChosenImageIdx *int       `json:"chosenImageIdx,omitempty"`
	TargetImageIdx *int       `json:"targetImageIdx,omitempty"`
	ImpressionText string     `json:"impressionText,omitempty"`
	Investment     *investDTO `json:"investment,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type investDTO struct {
	Strategy string  `json:"strategy,omitempty"`
	MarketID string  `json:"marketId,omitempty"`
	Outcome  string  `json:"outcome,omitempty"`
	Profit   float64 `json:"profit,omitempty"`
	Correct  *bool   `json:"correct,omitempty"`
}

func toDTO(s domain.Session) sessionDTO {
	dto := sessionDTO{
		ID:             s.ID,
		Status:         string(s.Status),
		Images:         s.Images,
		ChosenImageIdx: s.ChosenImageIdx,
		TargetImageIdx: s.TargetImageIdx,
		ImpressionText: s.ImpressionText,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if s.Phase == nil {
		return dto
	}

	inv := &investDTO{}
	if idx, ok := domain.StrategyIdxOf(s.Phase); ok {
		if strategy, err := domain.StrategyAt(idx); err == nil {
			inv.Strategy = string(strategy)
		}
	}
	switch p := s.Phase.(type) {
	case domain.InvestedPhase:
		inv.MarketID = p.MarketID
	case domain.ResolvedPhase:
		inv.MarketID = p.MarketID
		inv.Outcome = string(p.Outcome)
		inv.Profit = p.Profit
		correct := s.IsCorrect()
		inv.Correct = &correct
	}
	dto.Investment = inv
	return dto
}
