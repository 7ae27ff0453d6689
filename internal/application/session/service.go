// Package session implements the session use cases consumed by the HTTP API
// and the operator CLI.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alejandrodnm/arvbot/internal/domain"
	"github.com/alejandrodnm/arvbot/internal/ports"
)

// maxConflictRetries acota los reintentos cuando otro writer gana la carrera.
const maxConflictRetries = 3

// Service aplica las transiciones de usuario sobre el store.
type Service struct {
	store ports.SessionStore
	newID func() string
}

// New crea un Service sobre store.
func New(store ports.SessionStore) *Service {
	return &Service{store: store, newID: uuid.NewString}
}

// WithIDGenerator reemplaza el generador de ids (tests).
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.newID = gen
	return s
}

// Create persiste una sesión nueva en pending.
func (s *Service) Create(ctx context.Context, images []string) (domain.Session, error) {
	sess, err := domain.NewSession(s.newID(), images)
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.store.SaveSession(ctx, &sess); err != nil {
		return domain.Session{}, fmt.Errorf("session.Create: save: %w", err)
	}
	slog.Info("session created", "session_id", sess.ID)
	return sess, nil
}

// Get devuelve la sesión o domain.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (domain.Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return domain.Session{}, fmt.Errorf("session.Get: %w", err)
	}
	return sess, nil
}

// List devuelve las sesiones en status, o todas con status vacío.
func (s *Service) List(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error) {
	sessions, err := s.store.QuerySessions(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("session.List: %w", err)
	}
	return sessions, nil
}

// Delete borra la sesión o devuelve domain.ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("session.Delete: %w", err)
	}
	slog.Info("session deleted", "session_id", id)
	return nil
}

// Activate registra la impresión: pending -> active.
func (s *Service) Activate(ctx context.Context, id, impressionText string) (domain.Session, error) {
	return s.mutate(ctx, "activate", id, func(sess *domain.Session) error {
		return sess.Activate(impressionText)
	})
}

// Complete registra la imagen elegida: active -> completed.
func (s *Service) Complete(ctx context.Context, id string, chosenImageIdx int) (domain.Session, error) {
	return s.mutate(ctx, "complete", id, func(sess *domain.Session) error {
		return sess.Complete(chosenImageIdx)
	})
}

// Invest entrega la sesión al poller: completed -> investing.
func (s *Service) Invest(ctx context.Context, id string) (domain.Session, error) {
	return s.mutate(ctx, "invest", id, func(sess *domain.Session) error {
		return sess.StartInvesting()
	})
}

// mutate carga, aplica y guarda. Si otro writer guardó entre medias se
// recarga y se vuelve a aplicar; la transición decide si aún es válida.
func (s *Service) mutate(ctx context.Context, op, id string, apply func(*domain.Session) error) (domain.Session, error) {
	for attempt := 1; ; attempt++ {
		sess, err := s.store.GetSession(ctx, id)
		if err != nil {
			return domain.Session{}, fmt.Errorf("session.%s: load: %w", op, err)
		}
		from := sess.Status
		if err := apply(&sess); err != nil {
			return domain.Session{}, fmt.Errorf("session.%s: %w", op, err)
		}

		err = s.store.SaveSession(ctx, &sess)
		if err == nil {
			slog.Info("session updated", "session_id", id, "from", from, "to", sess.Status)
			return sess, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt >= maxConflictRetries {
			return domain.Session{}, fmt.Errorf("session.%s: save: %w", op, err)
		}
		slog.Debug("session write conflict, retrying", "session_id", id, "attempt", attempt)
	}
}
