package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/arvbot/internal/domain"
)

// SessionStore persiste las sesiones.
type SessionStore interface {
	// GetSession devuelve la sesión o domain.ErrNotFound.
	GetSession(ctx context.Context, id string) (domain.Session, error)

	// SaveSession hace upsert con control de versión optimista. Version 0 inserta;
	// cualquier otra versión solo se escribe si coincide con la almacenada
	// (si no, domain.ErrVersionConflict). En éxito incrementa s.Version y fija
	// los timestamps.
	SaveSession(ctx context.Context, s *domain.Session) error

	// QuerySessions devuelve las sesiones en el estado dado, por orden de creación.
	// Un status vacío devuelve todas.
	QuerySessions(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error)

	// DeleteSession elimina la sesión o devuelve domain.ErrNotFound.
	DeleteSession(ctx context.Context, id string) error
}

// FlagStore persiste el flag single-flight del poller.
type FlagStore interface {
	// GetPollFlag devuelve el flag o domain.ErrNotFound si nunca se adquirió.
	GetPollFlag(ctx context.Context, id string) (domain.PollFlag, error)

	// AcquirePollFlag marca el flag como running para owner durante ttl, en una
	// sola escritura condicional. Devuelve false si otro owner tiene un lease vigente.
	AcquirePollFlag(ctx context.Context, id, owner string, ttl time.Duration) (bool, error)

	// ReleasePollFlag limpia el flag si owner todavía lo tiene.
	ReleasePollFlag(ctx context.Context, id, owner string) error
}

// Storage agrupa ambos stores y el cierre de la conexión.
type Storage interface {
	SessionStore
	FlagStore

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
