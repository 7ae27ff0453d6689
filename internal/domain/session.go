package domain

import (
	"fmt"
	"strings"
	"time"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusPending            SessionStatus = "pending"
	StatusActive             SessionStatus = "active"
	StatusCompleted          SessionStatus = "completed"
	StatusInvesting          SessionStatus = "investing"
	StatusInvested           SessionStatus = "invested"
	StatusInvestmentResolved SessionStatus = "investment_resolved"
)

// SessionImages is the fixed number of images shown in a session. The strategy
// catalog and the win/loss complement both rely on it being two.
const SessionImages = 2

// transitions lists the only allowed edge out of each status.
var transitions = map[SessionStatus]SessionStatus{
	StatusPending:   StatusActive,
	StatusActive:    StatusCompleted,
	StatusCompleted: StatusInvesting,
	StatusInvesting: StatusInvested,
	StatusInvested:  StatusInvestmentResolved,
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to SessionStatus) bool {
	next, ok := transitions[from]
	return ok && next == to
}

// ParseSessionStatus validates a status string.
func ParseSessionStatus(s string) (SessionStatus, error) {
	st := SessionStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusActive, StatusCompleted,
		StatusInvesting, StatusInvested, StatusInvestmentResolved:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

// Session is one perception test settled by a wager.
type Session struct {
	ID             string
	Status         SessionStatus
	Images         []string
	ChosenImageIdx *int
	TargetImageIdx *int
	ImpressionText string
	Phase          Phase // nil until the session starts investing
	Version        int64 // optimistic concurrency token, 0 = never saved
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewSession builds a pending session over exactly two images.
func NewSession(id string, images []string) (Session, error) {
	if strings.TrimSpace(id) == "" {
		return Session{}, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if len(images) != SessionImages {
		return Session{}, fmt.Errorf("%w: a session needs %d images, got %d", ErrInvalidInput, SessionImages, len(images))
	}
	imgs := make([]string, len(images))
	for i, img := range images {
		img = strings.TrimSpace(img)
		if img == "" {
			return Session{}, fmt.Errorf("%w: image %d is empty", ErrInvalidInput, i)
		}
		imgs[i] = img
	}
	return Session{ID: id, Status: StatusPending, Images: imgs}, nil
}

// Activate records the impression text: pending -> active.
func (s *Session) Activate(impressionText string) error {
	if err := s.checkTransition(StatusActive); err != nil {
		return err
	}
	text := strings.TrimSpace(impressionText)
	if text == "" {
		return fmt.Errorf("%w: impression text is required", ErrInvalidInput)
	}
	if s.ImpressionText != "" {
		return fmt.Errorf("%w: impression text already set", ErrInvalidInput)
	}
	s.ImpressionText = text
	s.Status = StatusActive
	return nil
}

// Complete records the image the user chose: active -> completed.
func (s *Session) Complete(chosenImageIdx int) error {
	if err := s.checkTransition(StatusCompleted); err != nil {
		return err
	}
	if chosenImageIdx < 0 || chosenImageIdx >= len(s.Images) {
		return fmt.Errorf("%w: chosen image %d out of range", ErrInvalidInput, chosenImageIdx)
	}
	idx := chosenImageIdx
	s.ChosenImageIdx = &idx
	s.Status = StatusCompleted
	return nil
}

// StartInvesting selects the strategy from the chosen image: completed -> investing.
func (s *Session) StartInvesting() error {
	if err := s.checkTransition(StatusInvesting); err != nil {
		return err
	}
	if s.ChosenImageIdx == nil {
		return fmt.Errorf("%w: no chosen image", ErrInvalidStrategy)
	}
	if _, err := StrategyAt(*s.ChosenImageIdx); err != nil {
		return err
	}
	s.Phase = InvestingPhase{StrategyIdx: *s.ChosenImageIdx}
	s.Status = StatusInvesting
	return nil
}

// MarkInvested records the placed wager: investing -> invested.
func (s *Session) MarkInvested(p InvestedPhase) error {
	if err := s.checkTransition(StatusInvested); err != nil {
		return err
	}
	if _, ok := s.Phase.(InvestingPhase); !ok {
		return fmt.Errorf("%w: session %s has no investing data", ErrInvalidTransition, s.ID)
	}
	if p.MarketID == "" || p.CustomerRef == "" {
		return fmt.Errorf("%w: market id and customer ref are required", ErrInvalidInput)
	}
	s.Phase = p
	s.Status = StatusInvested
	return nil
}

// Resolve applies the settlement outcome and sets the target image:
// invested -> investment_resolved.
func (s *Session) Resolve(outcome Outcome, settled ClearedOrder) error {
	if err := s.checkTransition(StatusInvestmentResolved); err != nil {
		return err
	}
	invested, ok := s.Phase.(InvestedPhase)
	if !ok {
		return fmt.Errorf("%w: session %s has no invested data", ErrInvalidTransition, s.ID)
	}
	if s.ChosenImageIdx == nil {
		return fmt.Errorf("%w: session %s has no chosen image", ErrInvalidInput, s.ID)
	}
	if outcome != OutcomeWin && outcome != OutcomeLoss {
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidInput, outcome)
	}

	target := TargetImageIdx(*s.ChosenImageIdx, outcome)
	s.TargetImageIdx = &target
	s.Phase = ResolvedPhase{
		InvestedPhase: invested,
		BetID:         settled.BetID,
		Outcome:       outcome,
		Profit:        settled.Profit,
		SettledAt:     settled.SettledDate,
	}
	s.Status = StatusInvestmentResolved
	return nil
}

// IsCorrect reports whether the user chose the target image. Only meaningful
// once the investment is resolved.
func (s Session) IsCorrect() bool {
	return s.ChosenImageIdx != nil && s.TargetImageIdx != nil && *s.ChosenImageIdx == *s.TargetImageIdx
}

func (s *Session) checkTransition(to SessionStatus) error {
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}
	return nil
}

// TargetImageIdx maps the wager outcome back onto the session: a win makes the
// chosen image the target, a loss makes the other one the target.
func TargetImageIdx(chosen int, outcome Outcome) int {
	if outcome == OutcomeWin {
		return chosen
	}
	return (chosen + 1) % SessionImages
}

// CustomerOrderRef is the per-session order reference sent with every
// placement. The exchange limits it to 32 characters.
func CustomerOrderRef(sessionID string) string {
	ref := strings.ReplaceAll(sessionID, "-", "")
	if len(ref) > 32 {
		ref = ref[:32]
	}
	return ref
}
