package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/arvbot/internal/adapters/storage"
	"github.com/alejandrodnm/arvbot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func makeSession(t *testing.T, id string) domain.Session {
	t.Helper()
	s, err := domain.NewSession(id, []string{"img/" + id + "-a.jpg", "img/" + id + "-b.jpg"})
	require.NoError(t, err)
	return s
}

func TestSQLiteStorage_SaveAndGetSession(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	sess := makeSession(t, "s1")
	require.NoError(t, db.SaveSession(ctx, &sess))
	assert.Equal(t, int64(1), sess.Version)
	assert.False(t, sess.CreatedAt.IsZero())

	got, err := db.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, []string{"img/s1-a.jpg", "img/s1-b.jpg"}, got.Images)
	assert.Nil(t, got.ChosenImageIdx)
	assert.Nil(t, got.Phase)
	assert.Equal(t, int64(1), got.Version)
}

func TestSQLiteStorage_RoundTripsPhaseAndIndexes(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	sess := makeSession(t, "s1")
	require.NoError(t, sess.Activate("water"))
	require.NoError(t, sess.Complete(1))
	require.NoError(t, sess.StartInvesting())
	require.NoError(t, sess.MarkInvested(domain.InvestedPhase{
		StrategyIdx: 1,
		MarketID:    "1.234",
		CustomerRef: "ref",
		Report: domain.ExecutionReport{
			Status:             domain.InstructionStatusOK,
			InstructionReports: []domain.InstructionReport{{Status: domain.InstructionStatusOK, BetID: "9"}},
		},
	}))
	require.NoError(t, db.SaveSession(ctx, &sess))

	got, err := db.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInvested, got.Status)
	assert.Equal(t, "water", got.ImpressionText)
	require.NotNil(t, got.ChosenImageIdx)
	assert.Equal(t, 1, *got.ChosenImageIdx)

	invested, ok := got.Phase.(domain.InvestedPhase)
	require.True(t, ok)
	assert.Equal(t, "1.234", invested.MarketID)
	assert.Equal(t, []string{"9"}, invested.Report.BetIDs())
}

func TestSQLiteStorage_GetSession_NotFound(t *testing.T) {
	db := newStore(t)
	_, err := db.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteStorage_StaleWriteIsRejected(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	sess := makeSession(t, "s1")
	require.NoError(t, db.SaveSession(ctx, &sess))

	// Dos lectores de la misma versión
	a, err := db.GetSession(ctx, "s1")
	require.NoError(t, err)
	b, err := db.GetSession(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, a.Activate("first"))
	require.NoError(t, db.SaveSession(ctx, &a))
	assert.Equal(t, int64(2), a.Version)

	require.NoError(t, b.Activate("second"))
	err = db.SaveSession(ctx, &b)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.Equal(t, int64(1), b.Version)

	got, err := db.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "first", got.ImpressionText)
}

func TestSQLiteStorage_DuplicateInsertConflicts(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	a := makeSession(t, "s1")
	require.NoError(t, db.SaveSession(ctx, &a))
	b := makeSession(t, "s1")
	assert.ErrorIs(t, db.SaveSession(ctx, &b), domain.ErrVersionConflict)
}

func TestSQLiteStorage_QuerySessionsByStatus(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	for _, id := range []string{"s1", "s2", "s3"} {
		sess := makeSession(t, id)
		if id != "s2" {
			require.NoError(t, sess.Activate("text"))
		}
		require.NoError(t, db.SaveSession(ctx, &sess))
		time.Sleep(time.Millisecond)
	}

	active, err := db.QuerySessions(ctx, domain.StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "s1", active[0].ID)
	assert.Equal(t, "s3", active[1].ID)

	all, err := db.QuerySessions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := db.QuerySessions(ctx, domain.StatusInvested)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStorage_DeleteSession(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	sess := makeSession(t, "s1")
	require.NoError(t, db.SaveSession(ctx, &sess))
	require.NoError(t, db.DeleteSession(ctx, "s1"))

	_, err := db.GetSession(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, db.DeleteSession(ctx, "s1"), domain.ErrNotFound)
}

func TestSQLiteStorage_PollFlagLease(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	_, err := db.GetPollFlag(ctx, "poller")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ok, err := db.AcquirePollFlag(ctx, "poller", "owner-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Lease vigente: nadie más lo toma, ni el mismo owner
	ok, err = db.AcquirePollFlag(ctx, "poller", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	flag, err := db.GetPollFlag(ctx, "poller")
	require.NoError(t, err)
	assert.True(t, flag.Running)
	assert.Equal(t, "owner-a", flag.Owner)
	assert.True(t, flag.Held(time.Now()))

	// Release de otro owner no libera
	require.NoError(t, db.ReleasePollFlag(ctx, "poller", "owner-b"))
	flag, err = db.GetPollFlag(ctx, "poller")
	require.NoError(t, err)
	assert.True(t, flag.Running)

	require.NoError(t, db.ReleasePollFlag(ctx, "poller", "owner-a"))
	flag, err = db.GetPollFlag(ctx, "poller")
	require.NoError(t, err)
	assert.False(t, flag.Running)
	assert.False(t, flag.Held(time.Now()))

	ok, err = db.AcquirePollFlag(ctx, "poller", "owner-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteStorage_ExpiredLeaseCanBeTakenOver(t *testing.T) {
	db := newStore(t)
	ctx := context.Background()

	// Lease ya vencido: simula un poller que murió sin liberar
	ok, err := db.AcquirePollFlag(ctx, "poller", "crashed", -time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = db.AcquirePollFlag(ctx, "poller", "fresh", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	flag, err := db.GetPollFlag(ctx, "poller")
	require.NoError(t, err)
	assert.Equal(t, "fresh", flag.Owner)
}
