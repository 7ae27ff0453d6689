package storage

// sqlite.go: sesiones y flag de polling en SQLite.
//
// Estrategia:
//   - `sessions`: una fila por sesión. `version` implementa el control optimista:
//     cada UPDATE exige la versión leída y la incrementa.
//   - `poll_flags`: una fila por poller. El lease se toma con un único
//     INSERT ... ON CONFLICT DO UPDATE ... WHERE, así dos procesos no pueden
//     tenerlo a la vez aunque compartan el archivo.
//   - Los instantes de lease se guardan en unix millis para comparar en SQL.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/arvbot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id               TEXT PRIMARY KEY,
    status           TEXT    NOT NULL,
    images           TEXT    NOT NULL,
    chosen_image_idx INTEGER,
    target_image_idx INTEGER,
    impression_text  TEXT    NOT NULL DEFAULT '',
    phase            TEXT,
    version          INTEGER NOT NULL DEFAULT 1,
    created_at       TEXT    NOT NULL,
    updated_at       TEXT    NOT NULL
);

CREATE TABLE IF NOT EXISTS poll_flags (
    id          TEXT PRIMARY KEY,
    running     INTEGER NOT NULL DEFAULT 0,
    owner       TEXT    NOT NULL DEFAULT '',
    lease_until INTEGER NOT NULL DEFAULT 0,
    updated_at  TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status, created_at);
`

// timeLayout tiene ancho fijo para que created_at ordene como texto.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	return &SQLiteStorage{db: db, now: time.Now}, nil
}

// ─── Sessions ────────────────────────────────────────────────────────────────

// GetSession devuelve la sesión o domain.ErrNotFound.
func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row := s.db.QueryRowContext(ctx, selectSession+` WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, fmt.Errorf("storage.GetSession: %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("storage.GetSession: %s: %w", id, err)
	}
	return sess, nil
}

// SaveSession inserta (Version 0) o actualiza exigiendo la versión almacenada.
func (s *SQLiteStorage) SaveSession(ctx context.Context, sess *domain.Session) error {
	images, err := encodeImages(sess.Images)
	if err != nil {
		return fmt.Errorf("storage.SaveSession: %w", err)
	}
	phase, err := domain.MarshalPhase(sess.Phase)
	if err != nil {
		return fmt.Errorf("storage.SaveSession: %w", err)
	}

	now := s.now().UTC()

	if sess.Version == 0 {
		createdAt := sess.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO sessions
				(id, status, images, chosen_image_idx, target_image_idx,
				 impression_text, phase, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			sess.ID, string(sess.Status), images, nullInt(sess.ChosenImageIdx), nullInt(sess.TargetImageIdx),
			sess.ImpressionText, nullBytes(phase), formatTime(createdAt), formatTime(now),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("storage.SaveSession: insert %s: %w", sess.ID, domain.ErrVersionConflict)
			}
			return fmt.Errorf("storage.SaveSession: insert %s: %w", sess.ID, err)
		}
		sess.Version = 1
		sess.CreatedAt = createdAt
		sess.UpdatedAt = now
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET
			status           = ?,
			chosen_image_idx = ?,
			target_image_idx = ?,
			impression_text  = ?,
			phase            = ?,
			version          = version + 1,
			updated_at       = ?
		WHERE id = ? AND version = ?`,
		string(sess.Status), nullInt(sess.ChosenImageIdx), nullInt(sess.TargetImageIdx),
		sess.ImpressionText, nullBytes(phase), formatTime(now),
		sess.ID, sess.Version,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveSession: update %s: %w", sess.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage.SaveSession: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("storage.SaveSession: %s at version %d: %w", sess.ID, sess.Version, domain.ErrVersionConflict)
	}
	sess.Version++
	sess.UpdatedAt = now
	return nil
}

// QuerySessions devuelve las sesiones en el estado dado por orden de creación.
func (s *SQLiteStorage) QuerySessions(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error) {
	q := selectSession
	var args []any
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.QuerySessions: query: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.QuerySessions: scan row: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// DeleteSession elimina la sesión o devuelve domain.ErrNotFound.
func (s *SQLiteStorage) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage.DeleteSession: %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage.DeleteSession: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("storage.DeleteSession: %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ─── Poll flag ───────────────────────────────────────────────────────────────

// GetPollFlag devuelve el flag o domain.ErrNotFound si nunca se adquirió.
func (s *SQLiteStorage) GetPollFlag(ctx context.Context, id string) (domain.PollFlag, error) {
	var (
		f         domain.PollFlag
		running   int
		leaseMs   int64
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, running, owner, lease_until, updated_at FROM poll_flags WHERE id = ?`, id,
	).Scan(&f.ID, &running, &f.Owner, &leaseMs, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PollFlag{}, fmt.Errorf("storage.GetPollFlag: %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.PollFlag{}, fmt.Errorf("storage.GetPollFlag: %s: %w", id, err)
	}
	f.Running = running != 0
	if leaseMs > 0 {
		f.LeaseUntil = time.UnixMilli(leaseMs).UTC()
	}
	f.UpdatedAt = parseTime(updatedAt)
	return f, nil
}

// AcquirePollFlag toma el lease en una sola sentencia: inserta el flag si no
// existe o lo actualiza solo si no está running o su lease venció.
func (s *SQLiteStorage) AcquirePollFlag(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO poll_flags (id, running, owner, lease_until, updated_at)
		VALUES (?, 1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			running     = 1,
			owner       = excluded.owner,
			lease_until = excluded.lease_until,
			updated_at  = excluded.updated_at
		WHERE poll_flags.running = 0 OR poll_flags.lease_until < ?`,
		id, owner, now.Add(ttl).UnixMilli(), formatTime(now), now.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("storage.AcquirePollFlag: %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("storage.AcquirePollFlag: rows affected: %w", err)
	}
	return n == 1, nil
}

// ReleasePollFlag limpia el flag si owner todavía lo tiene. Si el lease ya lo
// tomó otro poller no hace nada.
func (s *SQLiteStorage) ReleasePollFlag(ctx context.Context, id, owner string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE poll_flags SET running = 0, owner = '', lease_until = 0, updated_at = ?
		WHERE id = ? AND owner = ?`,
		formatTime(s.now().UTC()), id, owner,
	)
	if err != nil {
		return fmt.Errorf("storage.ReleasePollFlag: %s: %w", id, err)
	}
	return nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

const selectSession = `
	SELECT id, status, images, chosen_image_idx, target_image_idx,
	       impression_text, phase, version, created_at, updated_at
	FROM sessions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.Session, error) {
	var (
		sess               domain.Session
		status, images     string
		chosen, target     sql.NullInt64
		phase              sql.NullString
		createdAt, updated string
	)
	if err := row.Scan(
		&sess.ID, &status, &images, &chosen, &target,
		&sess.ImpressionText, &phase, &sess.Version, &createdAt, &updated,
	); err != nil {
		return domain.Session{}, err
	}

	sess.Status = domain.SessionStatus(status)
	imgs, err := decodeImages(images)
	if err != nil {
		return domain.Session{}, fmt.Errorf("session %s: %w", sess.ID, err)
	}
	sess.Images = imgs
	sess.ChosenImageIdx = intFromNull(chosen)
	sess.TargetImageIdx = intFromNull(target)
	if phase.Valid {
		p, err := domain.UnmarshalPhase([]byte(phase.String))
		if err != nil {
			return domain.Session{}, fmt.Errorf("session %s: %w", sess.ID, err)
		}
		sess.Phase = p
	}
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updated)
	return sess, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
