package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reversi-cards/reversi-server-go/internal/config"
	"github.com/reversi-cards/reversi-server-go/internal/game"
	"github.com/reversi-cards/reversi-server-go/internal/game/action"
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/rng"
)

// committed plays one action from a fresh game and returns the ledger entry
// and snapshot it produces.
func committed(t *testing.T, matchID string, seed uint64) (Entry, Snapshot) {
	t.Helper()
	engine := game.New(nil)
	src := rng.New(seed)
	g, err := engine.NewGame(src)
	require.NoError(t, err)

	a := action.Place("a0", 0, board.Black, 2, 3)
	res := engine.Apply(g, a, src)
	require.True(t, res.OK, res.Err)

	snap, err := NewSnapshot(matchID, res.Game)
	require.NoError(t, err)
	wire, err := json.Marshal(a)
	require.NoError(t, err)
	return Entry{
		MatchID:     matchID,
		TurnIndex:   0,
		ActionID:    a.ActionID,
		Wire:        wire,
		Checksum:    snap.Checksum,
		CommittedAt: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	}, snap
}

func runStoreSuite(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("match round trip", func(t *testing.T) {
		s := open(t)
		created := time.Date(2026, time.March, 1, 9, 30, 0, 0, time.UTC)
		m := Match{ID: "m-1", Seed: 1<<63 + 5, Rules: game.Rules{HandLimit: 6, OpeningHand: 2, StartingCharge: 1}, CreatedAt: created}
		require.NoError(t, s.CreateMatch(ctx, m))
		assert.ErrorIs(t, s.CreateMatch(ctx, m), ErrAlreadyExists)

		got, err := s.GetMatch(ctx, "m-1")
		require.NoError(t, err)
		assert.Equal(t, m.Seed, got.Seed)
		assert.Equal(t, m.Rules, got.Rules)
		assert.True(t, created.Equal(got.CreatedAt))

		_, err = s.GetMatch(ctx, "absent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("append and read back", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateMatch(ctx, Match{ID: "m-2", Seed: 3, Rules: game.DefaultRules()}))
		entry, snap := committed(t, "m-2", 3)

		require.NoError(t, s.Append(ctx, entry, snap))
		assert.ErrorIs(t, s.Append(ctx, entry, snap), ErrAlreadyExists)

		entries, err := s.Entries(ctx, "m-2")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, entry.ActionID, entries[0].ActionID)
		assert.Equal(t, entry.Wire, entries[0].Wire)
		assert.Equal(t, entry.Checksum, entries[0].Checksum)
		assert.True(t, entry.CommittedAt.Equal(entries[0].CommittedAt))

		latest, err := s.LatestSnapshot(ctx, "m-2")
		require.NoError(t, err)
		assert.Equal(t, snap.TurnIndex, latest.TurnIndex)
		assert.Equal(t, snap.Tracker, latest.Tracker)
		restored, err := latest.Game()
		require.NoError(t, err)
		assert.True(t, restored.Tracker.Applied("a0"))
		assert.Equal(t, board.White, restored.Board.CurrentPlayer)
	})

	t.Run("append to unknown match", func(t *testing.T) {
		s := open(t)
		entry, snap := committed(t, "ghost", 1)
		assert.ErrorIs(t, s.Append(ctx, entry, snap), ErrNotFound)
		_, err := s.Entries(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.LatestSnapshot(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("mismatched snapshot", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.CreateMatch(ctx, Match{ID: "m-3", Rules: game.DefaultRules()}))
		entry, snap := committed(t, "m-3", 1)
		snap.TurnIndex = 5
		assert.Error(t, s.Append(ctx, entry, snap))
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemory()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSQLiteRequiresPath(t *testing.T) {
	_, err := OpenSQLite(" ")
	assert.Error(t, err)
}

// TestPostgresStore runs against a live database when REVERSI_TEST_DATABASE_URL
// is set.
func TestPostgresStore(t *testing.T) {
	url := os.Getenv("REVERSI_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("REVERSI_TEST_DATABASE_URL not set")
	}
	runStoreSuite(t, func(t *testing.T) Store {
		s, err := OpenPostgres(context.Background(), config.DatabaseConfig{URL: url, ConnectTimeout: 5 * time.Second}, zaptest.NewLogger(t))
		require.NoError(t, err)
		ctx := context.Background()
		_, err = s.pool.Exec(ctx, `TRUNCATE snapshots, ledger, matches`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, config.DatabaseConfig{Driver: config.DriverMemory}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, Path: filepath.Join(t.TempDir(), "x.db")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.DatabaseConfig{Driver: "mongo"}, nil)
	assert.Error(t, err)
}

func TestExportReplay(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.CreateMatch(ctx, Match{ID: "m-x", Seed: 7, Rules: game.DefaultRules()}))
	entry, snap := committed(t, "m-x", 7)
	require.NoError(t, s.Append(ctx, entry, snap))

	engine := game.New(nil)
	replay, err := ExportReplay(ctx, s, engine, "m-x")
	require.NoError(t, err)
	assert.Equal(t, 1, replay.Size())
	assert.Equal(t, uint64(7), replay.Seed)

	final, err := replay.Verify(engine)
	require.NoError(t, err)
	assert.Equal(t, board.White, final.Board.CurrentPlayer)

	_, err = ExportReplay(ctx, s, engine, "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}
