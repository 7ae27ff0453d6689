package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/arvbot/internal/adapters/notify"
	"github.com/alejandrodnm/arvbot/internal/domain"
)

func makeReport() domain.CycleReport {
	return domain.CycleReport{
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Investing: 2,
		Invested:  2,
		Results: []domain.SessionResult{
			{SessionID: "aaaaaaaa-1111", Phase: domain.CyclePhaseExecute, MarketID: "1.234", Strategy: domain.StrategyBackFavourite},
			{SessionID: "bbbbbbbb-2222", Phase: domain.CyclePhaseExecute, Strategy: domain.StrategyLayFavourite, Err: domain.ErrPlacementFailure},
			{SessionID: "cccccccc-3333", Phase: domain.CyclePhaseResolve, MarketID: "1.200", Outcome: domain.OutcomeWin, Target: 1},
			{SessionID: "dddddddd-4444", Phase: domain.CyclePhaseResolve, MarketID: "1.201", Err: domain.ErrNoClearedOrder, NotReady: true},
		},
	}
}

func TestConsole_NotifyCycle_Compact(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false, false)

	require.NoError(t, n.NotifyCycle(context.Background(), makeReport()))

	out := buf.String()
	assert.Contains(t, out, "investing:2 invested:2")
	assert.Contains(t, out, "placed:1 resolved:1 pending:1 failed:1")
	assert.Contains(t, out, "!! bbbbbbbb execute: order placement failed")
	assert.NotContains(t, out, "dddddddd", "not-ready sessions are not listed as failures")
}

func TestConsole_NotifyCycle_Table(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true, false)

	require.NoError(t, n.NotifyCycle(context.Background(), makeReport()))

	out := buf.String()
	assert.Contains(t, out, "aaaaaaaa")
	assert.Contains(t, out, "BackFav")
	assert.Contains(t, out, "1.234")
	assert.Contains(t, out, "placed")
	assert.Contains(t, out, "WIN -> target 1")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "pending")
}

func TestConsole_NotifyCycle_Skipped(t *testing.T) {
	tests := []struct {
		name   string
		reason domain.SkipReason
		want   string
	}{
		{"flag held elsewhere", domain.SkipFlagHeld, "cycle skipped: another poller holds the flag"},
		{"overlap in process", domain.SkipCycleRunning, "cycle skipped: previous cycle still running"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			n := notify.NewConsoleWriter(&buf, false, false)

			require.NoError(t, n.NotifyCycle(context.Background(), domain.CycleReport{Skipped: true, SkipReason: tt.reason}))
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestConsole_NotifyCycle_EmptyIsQuiet(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, notify.NewConsoleWriter(&buf, false, false).NotifyCycle(context.Background(), domain.CycleReport{}))
	assert.Empty(t, buf.String())

	require.NoError(t, notify.NewConsoleWriter(&buf, false, true).NotifyCycle(context.Background(), domain.CycleReport{}))
	assert.Contains(t, buf.String(), "nothing to do")
}

func TestConsole_PrintSessions(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true, false)

	chosen := 1
	n.PrintSessions([]domain.Session{
		{ID: "s-1", Status: domain.StatusPending},
		{ID: "s-2", Status: domain.StatusCompleted, ChosenImageIdx: &chosen},
	})

	out := buf.String()
	assert.Contains(t, out, "s-1")
	assert.Contains(t, out, "pending")
	assert.Contains(t, out, "s-2")
	assert.Contains(t, out, "completed")
}

func TestConsole_PrintSessions_Empty(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, true, false).PrintSessions(nil)
	assert.Contains(t, buf.String(), "no sessions")
}

func TestConsole_PrintSession_Resolved(t *testing.T) {
	var buf bytes.Buffer
	chosen, target := 0, 0
	s := domain.Session{
		ID:             "s-1",
		Status:         domain.StatusInvestmentResolved,
		Images:         []string{"a.png", "b.png"},
		ImpressionText: "warm",
		ChosenImageIdx: &chosen,
		TargetImageIdx: &target,
		Phase: domain.ResolvedPhase{
			InvestedPhase: domain.InvestedPhase{StrategyIdx: 0, MarketID: "1.9", CustomerRef: "ref"},
			BetID:         "42",
			Outcome:       domain.OutcomeWin,
			Profit:        1.46,
		},
	}

	notify.NewConsoleWriter(&buf, true, false).PrintSession(s)

	out := buf.String()
	assert.Contains(t, out, "b.png")
	assert.Contains(t, out, "BackFav")
	assert.Contains(t, out, "1.9 (ref ref)")
	assert.Contains(t, out, "WIN  profit 1.46  bet 42")
	assert.Contains(t, out, "Correct:    true")
}

func TestConsole_PrintSession_Pending(t *testing.T) {
	var buf bytes.Buffer
	notify.NewConsoleWriter(&buf, true, false).PrintSession(domain.Session{ID: "s-1", Status: domain.StatusPending})

	out := buf.String()
	assert.Contains(t, out, "Chosen:     -")
	assert.NotContains(t, out, "Strategy")
}
