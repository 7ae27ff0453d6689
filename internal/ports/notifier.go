package ports

import (
	"context"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

// Notifier presenta el resultado de cada ciclo de polling.
type Notifier interface {
	// NotifyCycle recibe el resumen del ciclo. En consola imprime una tabla;
	// en Telegram solo avisa cuando hubo fallos.
	NotifyCycle(ctx context.Context, report domain.CycleReport) error
}
