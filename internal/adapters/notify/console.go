package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

// Console implementa ports.Notifier escribiendo a un io.Writer.
type Console struct {
	out     io.Writer
	table   bool
	verbose bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table, verbose bool) *Console {
	return &Console{out: os.Stdout, table: table, verbose: verbose}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table, verbose bool) *Console {
	return &Console{out: w, table: table, verbose: verbose}
}

// NotifyCycle imprime el resumen del ciclo en el modo configurado.
func (c *Console) NotifyCycle(_ context.Context, report domain.CycleReport) error {
	now := report.StartedAt.Local().Format("15:04:05")
	if report.Skipped {
		reason := report.SkipReason
		if reason == "" {
			reason = domain.SkipFlagHeld
		}
		fmt.Fprintf(c.out, "[%s] cycle skipped: %s\n", now, reason)
		return nil
	}
	if len(report.Results) == 0 {
		if c.verbose {
			fmt.Fprintf(c.out, "[%s] nothing to do\n", now)
		}
		return nil
	}

	if c.table {
		c.printTable(report)
	} else {
		c.printCompact(report)
	}
	return nil
}

// printCompact imprime el ciclo en una línea más una por fallo.
func (c *Console) printCompact(report domain.CycleReport) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s | investing:%d invested:%d | placed:%d resolved:%d pending:%d failed:%d",
		report.StartedAt.Local().Format("15:04:05"),
		report.Duration.Round(time.Millisecond),
		report.Investing, report.Invested,
		len(report.Placed()), len(report.Resolved()),
		len(report.Pending()), len(report.Failures()))

	for _, f := range report.Failures() {
		fmt.Fprintf(&sb, "\n  !! %s %s: %v", shortID(f.SessionID), f.Phase, f.Err)
	}
	fmt.Fprintln(c.out, sb.String())
}

// printTable imprime una fila por sesión procesada.
func (c *Console) printTable(report domain.CycleReport) {
	fmt.Fprintf(c.out, "\n[%s] cycle %s: %d investing, %d invested\n",
		report.StartedAt.Local().Format("15:04:05"),
		report.Duration.Round(time.Millisecond),
		report.Investing, report.Invested)

	table := tablewriter.NewWriter(c.out)
	table.Header("Session", "Phase", "Strategy", "Market", "Result")
	for _, r := range report.Results {
		table.Append(
			shortID(r.SessionID),
			string(r.Phase),
			string(r.Strategy),
			orDash(r.MarketID),
			resultLabel(r),
		)
	}
	table.Render()
}

// PrintSessions imprime un listado de sesiones (comando session list).
func (c *Console) PrintSessions(sessions []domain.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(c.out, "no sessions")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Status", "Chosen", "Target", "Created", "Updated")
	for _, s := range sessions {
		table.Append(
			s.ID,
			string(s.Status),
			idxLabel(s.ChosenImageIdx),
			idxLabel(s.TargetImageIdx),
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			s.UpdatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	table.Render()
}

// PrintSession imprime el detalle de una sesión.
func (c *Console) PrintSession(s domain.Session) {
	fmt.Fprintf(c.out, "ID:         %s\n", s.ID)
	fmt.Fprintf(c.out, "Status:     %s\n", s.Status)
	for i, img := range s.Images {
		fmt.Fprintf(c.out, "Image %d:    %s\n", i, img)
	}
	if s.ImpressionText != "" {
		fmt.Fprintf(c.out, "Impression: %s\n", s.ImpressionText)
	}
	fmt.Fprintf(c.out, "Chosen:     %s\n", idxLabel(s.ChosenImageIdx))
	fmt.Fprintf(c.out, "Target:     %s\n", idxLabel(s.TargetImageIdx))

	switch p := s.Phase.(type) {
	case domain.InvestingPhase:
		fmt.Fprintf(c.out, "Strategy:   %s\n", strategyLabel(p.StrategyIdx))
	case domain.InvestedPhase:
		fmt.Fprintf(c.out, "Strategy:   %s\n", strategyLabel(p.StrategyIdx))
		fmt.Fprintf(c.out, "Market:     %s (ref %s)\n", p.MarketID, p.CustomerRef)
	case domain.ResolvedPhase:
		fmt.Fprintf(c.out, "Strategy:   %s\n", strategyLabel(p.StrategyIdx))
		fmt.Fprintf(c.out, "Market:     %s (ref %s)\n", p.MarketID, p.CustomerRef)
		fmt.Fprintf(c.out, "Outcome:    %s  profit %.2f  bet %s\n", p.Outcome, p.Profit, orDash(p.BetID))
		fmt.Fprintf(c.out, "Correct:    %t\n", s.IsCorrect())
	}
}

// --- helpers ---

func resultLabel(r domain.SessionResult) string {
	switch {
	case r.Err != nil && r.NotReady:
		return "pending: " + r.Err.Error()
	case r.Err != nil:
		return "FAILED: " + r.Err.Error()
	case r.Phase == domain.CyclePhaseResolve:
		return fmt.Sprintf("%s -> target %d", r.Outcome, r.Target)
	}
	return "placed"
}

func strategyLabel(idx int) string {
	s, err := domain.StrategyAt(idx)
	if err != nil {
		return fmt.Sprintf("#%d", idx)
	}
	return string(s)
}

func idxLabel(idx *int) string {
	if idx == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *idx)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
