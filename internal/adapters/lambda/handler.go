// Package lambda adapts the poller to a scheduled Lambda invocation: each
// EventBridge event runs exactly one cycle.
package lambda

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

// CycleRunner es lo que el handler necesita del poller.
type CycleRunner interface {
	RunCycle(ctx context.Context) (domain.CycleReport, error)
}

// Summary es la respuesta de cada invocación (visible en los logs de Lambda).
type Summary struct {
	Skipped   bool `json:"skipped"`
	Investing int  `json:"investing"`
	Invested  int  `json:"invested"`
	Placed    int  `json:"placed"`
	Resolved  int  `json:"resolved"`
	Pending   int  `json:"pending"`
	Failed    int  `json:"failed"`
}

// Handler corre un ciclo por evento programado.
type Handler struct {
	runner CycleRunner
}

// NewHandler valida la dependencia.
func NewHandler(runner CycleRunner) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("lambda.NewHandler: cycle runner is required")
	}
	return &Handler{runner: runner}, nil
}

// Handle ejecuta el ciclo. Un error de ciclo se devuelve para que la
// invocación quede marcada como fallida; los fallos por sesión no.
func (h *Handler) Handle(ctx context.Context, event events.CloudWatchEvent) (Summary, error) {
	slog.Debug("scheduled invocation", "event_id", event.ID, "source", event.Source, "time", event.Time)

	report, err := h.runner.RunCycle(ctx)
	summary := Summary{
		Skipped:   report.Skipped,
		Investing: report.Investing,
		Invested:  report.Invested,
		Placed:    len(report.Placed()),
		Resolved:  len(report.Resolved()),
		Pending:   len(report.Pending()),
		Failed:    len(report.Failures()),
	}
	if err != nil {
		return summary, fmt.Errorf("lambda.Handle: %w", err)
	}
	return summary, nil
}
