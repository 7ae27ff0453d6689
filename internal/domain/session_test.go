package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) Session {
	t.Helper()
	s, err := NewSession("11111111-2222-3333-4444-555555555555", []string{"img/a.jpg", "img/b.jpg"})
	require.NoError(t, err)
	return s
}

func intPtr(v int) *int { return &v }

func TestNewSession_RequiresTwoImages(t *testing.T) {
	_, err := NewSession("s1", []string{"only-one.jpg"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewSession("s1", []string{"a.jpg", " "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewSession("", []string{"a.jpg", "b.jpg"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	s, err := NewSession("s1", []string{"a.jpg", "b.jpg"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s.Status)
	assert.Nil(t, s.Phase)
}

func TestCanTransition_OnlyAllowedEdges(t *testing.T) {
	all := []SessionStatus{
		StatusPending, StatusActive, StatusCompleted,
		StatusInvesting, StatusInvested, StatusInvestmentResolved,
	}
	allowed := map[[2]SessionStatus]bool{
		{StatusPending, StatusActive}:              true,
		{StatusActive, StatusCompleted}:            true,
		{StatusCompleted, StatusInvesting}:         true,
		{StatusInvesting, StatusInvested}:          true,
		{StatusInvested, StatusInvestmentResolved}: true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]SessionStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestSession_FullLifecycle(t *testing.T) {
	s := newTestSession(t)

	require.NoError(t, s.Activate("  a red barn near water "))
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, "a red barn near water", s.ImpressionText)

	require.NoError(t, s.Complete(1))
	assert.Equal(t, StatusCompleted, s.Status)
	require.NotNil(t, s.ChosenImageIdx)
	assert.Equal(t, 1, *s.ChosenImageIdx)

	require.NoError(t, s.StartInvesting())
	assert.Equal(t, StatusInvesting, s.Status)
	assert.Equal(t, InvestingPhase{StrategyIdx: 1}, s.Phase)

	require.NoError(t, s.MarkInvested(InvestedPhase{StrategyIdx: 1, MarketID: "1.234", CustomerRef: "ref"}))
	assert.Equal(t, StatusInvested, s.Status)

	require.NoError(t, s.Resolve(OutcomeLoss, ClearedOrder{MarketID: "1.234", BetID: "99", Profit: -1}))
	assert.Equal(t, StatusInvestmentResolved, s.Status)
	require.NotNil(t, s.TargetImageIdx)
	assert.Equal(t, 0, *s.TargetImageIdx)
	assert.False(t, s.IsCorrect())

	resolved, ok := s.Phase.(ResolvedPhase)
	require.True(t, ok)
	assert.Equal(t, "1.234", resolved.MarketID)
	assert.Equal(t, "99", resolved.BetID)
	assert.Equal(t, OutcomeLoss, resolved.Outcome)
}

func TestSession_RejectedTransitionDoesNotMutate(t *testing.T) {
	s := newTestSession(t)
	before := s

	err := s.Complete(0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, before, s)

	err = s.StartInvesting()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, before, s)

	err = s.Resolve(OutcomeWin, ClearedOrder{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, before, s)
}

func TestSession_ActivateRequiresText(t *testing.T) {
	s := newTestSession(t)
	err := s.Activate("   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, StatusPending, s.Status)
	assert.Empty(t, s.ImpressionText)
}

func TestSession_CompleteRejectsOutOfRange(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Activate("text"))

	err := s.Complete(2)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, StatusActive, s.Status)
	assert.Nil(t, s.ChosenImageIdx)
}

func TestSession_StartInvestingRejectsInvalidStrategy(t *testing.T) {
	s := newTestSession(t)
	s.Status = StatusCompleted
	s.ChosenImageIdx = intPtr(5)

	err := s.StartInvesting()
	assert.ErrorIs(t, err, ErrInvalidStrategy)
	assert.Equal(t, StatusCompleted, s.Status)
	assert.Nil(t, s.Phase)
}

func TestSession_MarkInvestedRequiresInvestingPhase(t *testing.T) {
	s := newTestSession(t)
	s.Status = StatusInvesting

	err := s.MarkInvested(InvestedPhase{MarketID: "m", CustomerRef: "c"})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusInvesting, s.Status)

	s.Phase = InvestingPhase{StrategyIdx: 0}
	err = s.MarkInvested(InvestedPhase{MarketID: "", CustomerRef: "c"})
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, InvestingPhase{StrategyIdx: 0}, s.Phase)
}

func TestTargetImageIdx_TotalOverBinaryDomain(t *testing.T) {
	for _, chosen := range []int{0, 1} {
		assert.Equal(t, chosen, TargetImageIdx(chosen, OutcomeWin))
		assert.Equal(t, 1-chosen, TargetImageIdx(chosen, OutcomeLoss))
	}
}

func TestCustomerOrderRef_FitsExchangeLimit(t *testing.T) {
	ref := CustomerOrderRef("11111111-2222-3333-4444-555555555555")
	assert.Equal(t, "11111111222233334444555555555555", ref)
	assert.LessOrEqual(t, len(ref), 32)
	assert.Equal(t, ref, CustomerOrderRef("11111111-2222-3333-4444-555555555555"))
}

func TestParseSessionStatus(t *testing.T) {
	st, err := ParseSessionStatus("Investing")
	require.NoError(t, err)
	assert.Equal(t, StatusInvesting, st)

	_, err = ParseSessionStatus("failed")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
