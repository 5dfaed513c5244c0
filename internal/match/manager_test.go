package match

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reversi-cards/reversi-server-go/internal/game"
	"github.com/reversi-cards/reversi-server-go/internal/game/action"
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/rules"
	"github.com/reversi-cards/reversi-server-go/internal/store"
)

var fixedTime = time.Date(2026, time.April, 2, 10, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, st store.Store, opts ...Option) *Manager {
	t.Helper()
	logger := zaptest.NewLogger(t)
	opts = append([]Option{WithClock(func() time.Time { return fixedTime })}, opts...)
	return NewManager(game.New(nil, game.WithLogger(logger)), st, logger, opts...)
}

// nextAction picks the first legal placement for the player to move, or a
// pass when there is none.
func nextAction(g game.Game) action.Action {
	player := g.Board.CurrentPlayer
	id := fmt.Sprintf("a%d", g.Cards.TurnIndex)
	if moves := board.LegalMoves(&g.Board.Grid, player, g.Cards.Markers.FlipBlockers()); len(moves) > 0 {
		return action.Place(id, g.Cards.TurnIndex, player, moves[0].Row, moves[0].Col)
	}
	return action.Pass(id, g.Cards.TurnIndex, player)
}

func play(t *testing.T, m *Manager, match *Match, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		g := match.Game()
		if g.Board.Finished {
			return
		}
		res, err := m.Submit(context.Background(), match.ID, nextAction(g))
		require.NoError(t, err)
		require.True(t, res.OK, res.Err)
	}
}

type failingStore struct {
	*store.Memory
	fail bool
}

func (f *failingStore) Append(ctx context.Context, e store.Entry, snap store.Snapshot) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Memory.Append(ctx, e, snap)
}

func TestCreateMatch(t *testing.T) {
	st := store.NewMemory()
	m := newTestManager(t, st)

	match, err := m.CreateWithSeed(context.Background(), 42)
	require.NoError(t, err)
	assert.NotEmpty(t, match.ID)
	assert.Equal(t, uint64(42), match.Seed)

	got, ok := m.Get(match.ID)
	require.True(t, ok)
	assert.Same(t, match, got)
	assert.Equal(t, 1, m.ActiveCount())

	header, err := st.GetMatch(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), header.Seed)
	assert.Equal(t, game.DefaultRules(), header.Rules)
	assert.True(t, fixedTime.Equal(header.CreatedAt))

	snap, err := match.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, snap.State)
	assert.Equal(t, board.Black, snap.CurrentPlayer)
	assert.Equal(t, Score{Black: 2, White: 2}, snap.Score)
	assert.Equal(t, Score{Black: 3, White: 3}, snap.HandSizes)
	require.Len(t, snap.Board, board.Size)
	assert.Equal(t, "...WB...", snap.Board[3])
	assert.Len(t, snap.Checksum, 64)
}

func TestCreateUsesSeedSource(t *testing.T) {
	m := newTestManager(t, nil, WithSeeds(func() (uint64, error) { return 7, nil }))
	match, err := m.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), match.Seed)

	failing := newTestManager(t, nil, WithSeeds(func() (uint64, error) { return 0, errors.New("no entropy") }))
	_, err = failing.Create(context.Background())
	assert.ErrorContains(t, err, "no entropy")
}

func TestSameSeedSameDeal(t *testing.T) {
	m := newTestManager(t, nil)
	a, err := m.CreateWithSeed(context.Background(), 99)
	require.NoError(t, err)
	b, err := m.CreateWithSeed(context.Background(), 99)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	play(t, m, a, 6)
	play(t, m, b, 6)
	sa, err := a.Snapshot()
	require.NoError(t, err)
	sb, err := b.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, sa.Checksum, sb.Checksum)
}

func TestMaxMatches(t *testing.T) {
	m := newTestManager(t, nil, WithMaxMatches(1))
	first, err := m.CreateWithSeed(context.Background(), 1)
	require.NoError(t, err)
	_, err = m.CreateWithSeed(context.Background(), 2)
	assert.ErrorIs(t, err, ErrTooManyMatches)

	m.Remove(first.ID)
	_, ok := m.Get(first.ID)
	assert.False(t, ok)
	_, err = m.CreateWithSeed(context.Background(), 2)
	assert.NoError(t, err)
}

func TestSubmitCommitsAndPersists(t *testing.T) {
	st := store.NewMemory()
	m := newTestManager(t, st)
	match, err := m.CreateWithSeed(context.Background(), 5)
	require.NoError(t, err)

	var updates []Update
	m.OnCommit(func(u Update) { updates = append(updates, u) })
	var events []rules.Event
	handle := match.Subscribe(func(e rules.Event) { events = append(events, e) })

	res, err := m.SubmitJSON(context.Background(), match.ID,
		[]byte(`{"actionId":"a0","turnIndex":0,"playerKey":"black","type":"place","row":2,"col":3}`))
	require.NoError(t, err)
	require.True(t, res.OK, res.Err)

	assert.Equal(t, board.White, match.Game().Board.CurrentPlayer)
	require.Len(t, updates, 1)
	assert.Equal(t, match.ID, updates[0].MatchID)
	assert.Equal(t, 1, updates[0].TurnIndex)
	assert.Equal(t, res.Events, updates[0].Events)
	assert.Equal(t, res.Events, events)

	entries, err := st.Entries(context.Background(), match.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a0", entries[0].ActionID)
	assert.Equal(t, updates[0].Checksum, entries[0].Checksum)
	assert.True(t, fixedTime.Equal(entries[0].CommittedAt))

	latest, err := st.LatestSnapshot(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, latest.TurnIndex)

	match.Unsubscribe(handle)
	play(t, m, match, 1)
	assert.Len(t, events, len(res.Events))
	assert.Len(t, updates, 2)
}

func TestSubmitRejections(t *testing.T) {
	st := store.NewMemory()
	m := newTestManager(t, st)
	match, err := m.CreateWithSeed(context.Background(), 5)
	require.NoError(t, err)
	before := match.Game()

	res, err := m.SubmitJSON(context.Background(), match.ID, []byte(`{"actionId":"x","turnIndex":0}`))
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, rules.StageRejected, res.Stage)
	assert.NotEmpty(t, res.SchemaErrors)

	res, err = m.SubmitJSON(context.Background(), match.ID, []byte(`not json`))
	require.NoError(t, err)
	assert.Equal(t, rules.ReasonInvalidAction, res.RejectedReason)

	res, err = m.Submit(context.Background(), match.ID, action.Place("a0", 0, board.Black, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, rules.ReasonIllegalMove, res.RejectedReason)

	res, err = m.Submit(context.Background(), match.ID, action.Place("a0", 0, board.White, 2, 3))
	require.NoError(t, err)
	assert.False(t, res.OK)

	assert.Equal(t, before, match.Game())
	entries, err := st.Entries(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	play(t, m, match, 1)
	res, err = m.Submit(context.Background(), match.ID, action.Place("a0", 1, board.White, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, rules.ReasonDuplicateAction, res.RejectedReason)

	_, err = m.Submit(context.Background(), "missing", action.Pass("p", 0, board.Black))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.SubmitJSON(context.Background(), "missing", []byte(`{}`))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistFailureLeavesMatchUntouched(t *testing.T) {
	st := &failingStore{Memory: store.NewMemory()}
	m := newTestManager(t, st)
	match, err := m.CreateWithSeed(context.Background(), 11)
	require.NoError(t, err)
	before := match.Game()
	checkpoint := match.src.Checkpoint()

	st.fail = true
	_, err = m.Submit(context.Background(), match.ID, nextAction(before))
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, before, match.Game())
	assert.Equal(t, checkpoint, match.src.Checkpoint())

	st.fail = false
	play(t, m, match, 1)
	assert.Equal(t, 1, match.Game().Cards.TurnIndex)
}

func TestFinishedMatchSavesReplay(t *testing.T) {
	dir := t.TempDir()
	recorder := game.NewReplayRecorder(zaptest.NewLogger(t), dir)
	m := newTestManager(t, nil, WithRecorder(recorder))
	match, err := m.CreateWithSeed(context.Background(), 2024)
	require.NoError(t, err)
	require.True(t, recorder.IsRecording(match.ID))

	var last Update
	m.OnCommit(func(u Update) { last = u })
	play(t, m, match, 200)

	snap, err := match.Snapshot()
	require.NoError(t, err)
	require.Equal(t, StateFinished, snap.State)
	require.NotNil(t, snap.EndTime)
	assert.True(t, last.Finished)
	assert.Equal(t, 0, m.ActiveCount())
	assert.False(t, recorder.IsRecording(match.ID))

	_, err = os.Stat(game.ReplayPath(dir, match.ID))
	require.NoError(t, err)
	replay, err := recorder.LoadReplay(match.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.TurnIndex, replay.Size())
	final, err := replay.Verify(game.New(nil))
	require.NoError(t, err)
	sum, err := final.ComputeChecksum()
	require.NoError(t, err)
	assert.Equal(t, snap.Checksum, sum.Hash)

	res, err := m.Submit(context.Background(), match.ID, nextAction(match.Game()))
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestResumeFromLedger(t *testing.T) {
	st := store.NewMemory()
	m := newTestManager(t, st)
	match, err := m.CreateWithSeed(context.Background(), 77)
	require.NoError(t, err)
	play(t, m, match, 10)
	want, err := match.Snapshot()
	require.NoError(t, err)

	restarted := newTestManager(t, st)
	resumed, err := restarted.Resume(context.Background(), match.ID)
	require.NoError(t, err)
	got, err := resumed.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, want.Checksum, got.Checksum)
	assert.Equal(t, want.TurnIndex, got.TurnIndex)

	again, err := restarted.Resume(context.Background(), match.ID)
	require.NoError(t, err)
	assert.Same(t, resumed, again)

	assert.Equal(t, match.src.Checkpoint(), resumed.src.Checkpoint())

	_, err = restarted.Resume(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResumeDetectsTamperedLedger(t *testing.T) {
	st := store.NewMemory()
	m := newTestManager(t, st)
	match, err := m.CreateWithSeed(context.Background(), 8)
	require.NoError(t, err)
	play(t, m, match, 1)

	entry := store.Entry{
		MatchID:   match.ID,
		TurnIndex: 1,
		ActionID:  "forged",
		Wire:      []byte(`{"actionId":"forged","turnIndex":1,"playerKey":"white","type":"pass"}`),
		Checksum:  "0000",
	}
	snap, err := store.NewSnapshot(match.ID, match.Game())
	require.NoError(t, err)
	snap.TurnIndex = 2
	require.NoError(t, st.Append(context.Background(), entry, snap))

	_, err = newTestManager(t, st).Resume(context.Background(), match.ID)
	assert.Error(t, err)
}

func TestConcurrentSubmissionsSerialise(t *testing.T) {
	m := newTestManager(t, nil)
	match, err := m.CreateWithSeed(context.Background(), 3)
	require.NoError(t, err)
	a := nextAction(match.Game())

	var wg sync.WaitGroup
	results := make([]game.Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := m.Submit(context.Background(), match.ID, a)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, res := range results {
		if res.OK {
			committed++
		} else {
			assert.Equal(t, rules.ReasonDuplicateAction, res.RejectedReason)
		}
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, match.Game().Cards.TurnIndex)
}
