package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// PhaseKind tags the execution data carried by a session.
type PhaseKind string

const (
	PhaseInvesting PhaseKind = "investing"
	PhaseInvested  PhaseKind = "invested"
	PhaseResolved  PhaseKind = "resolved"
)

// Phase is the execution data of a session in one lifecycle phase. Only the
// types in this package implement it.
type Phase interface {
	Kind() PhaseKind
	isPhase()
}

// InvestingPhase holds the strategy chosen for a session waiting for a wager.
type InvestingPhase struct {
	StrategyIdx int `json:"strategyIdx"`
}

// InvestedPhase holds the placed wager.
type InvestedPhase struct {
	StrategyIdx      int             `json:"strategyIdx"`
	MarketID         string          `json:"marketId"`
	CustomerRef      string          `json:"customerRef"`
	CustomerOrderRef string          `json:"customerOrderRef,omitempty"`
	Report           ExecutionReport `json:"executionReport"`
	Adopted          bool            `json:"adopted,omitempty"` // recovered from an existing order
}

// ResolvedPhase holds the settlement applied to the session.
type ResolvedPhase struct {
	InvestedPhase
	BetID     string    `json:"betId,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Profit    float64   `json:"profit"`
	SettledAt time.Time `json:"settledAt"`
}

func (InvestingPhase) Kind() PhaseKind { return PhaseInvesting }
func (InvestedPhase) Kind() PhaseKind { return PhaseInvested }
func (ResolvedPhase) Kind() PhaseKind { return PhaseResolved }

func (InvestingPhase) isPhase() {}
func (InvestedPhase) isPhase() {}
func (ResolvedPhase) isPhase() {}

// StrategyIdxOf returns the strategy index carried by any phase.
func StrategyIdxOf(p Phase) (int, bool) {
	switch v := p.(type) {
	case InvestingPhase:
		return v.StrategyIdx, true
	case InvestedPhase:
		return v.StrategyIdx, true
	case ResolvedPhase:
		return v.StrategyIdx, true
	}
	return 0, false
}

// phaseEnvelope is the stored form of a Phase.
type phaseEnvelope struct {
	Kind PhaseKind       `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalPhase encodes a phase with its kind tag. A nil phase encodes to nil.
func MarshalPhase(p Phase) ([]byte, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("domain.MarshalPhase: %w", err)
	}
	return json.Marshal(phaseEnvelope{Kind: p.Kind(), Data: data})
}

// UnmarshalPhase decodes what MarshalPhase produced. Empty input is a nil phase.
func UnmarshalPhase(b []byte) (Phase, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, nil
	}
	var env phaseEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("domain.UnmarshalPhase: envelope: %w", err)
	}

	switch env.Kind {
	case PhaseInvesting:
		var p InvestingPhase
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("domain.UnmarshalPhase: %s: %w", env.Kind, err)
		}
		return p, nil
	case PhaseInvested:
		var p InvestedPhase
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("domain.UnmarshalPhase: %s: %w", env.Kind, err)
		}
		return p, nil
	case PhaseResolved:
		var p ResolvedPhase
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("domain.UnmarshalPhase: %s: %w", env.Kind, err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("domain.UnmarshalPhase: unknown kind %q", env.Kind)
}
