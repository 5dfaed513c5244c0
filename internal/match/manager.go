package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reversi-cards/reversi-server-go/internal/game"
	"github.com/reversi-cards/reversi-server-go/internal/game/action"
	"github.com/reversi-cards/reversi-server-go/internal/game/rng"
	"github.com/reversi-cards/reversi-server-go/internal/game/rules"
	"github.com/reversi-cards/reversi-server-go/internal/store"
)

var (
	// ErrNotFound is returned for an unknown match id.
	ErrNotFound = errors.New("match not found")
	// ErrTooManyMatches is returned when the active match limit is reached.
	ErrTooManyMatches = errors.New("too many active matches")
)

// Update is what a committed action publishes to commit listeners.
type Update struct {
	MatchID      string                    `json:"matchId"`
	TurnIndex    int                       `json:"turnIndex"`
	Checksum     string                    `json:"checksum"`
	Events       []rules.Event             `json:"events"`
	Presentation []rules.PresentationEvent `json:"presentation"`
	Finished     bool                      `json:"finished"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder records every match into rr and saves the replay when the
// match finishes.
func WithRecorder(rr *game.ReplayRecorder) Option {
	return func(m *Manager) {
		m.recorder = rr
	}
}

// WithMaxMatches caps the number of in-progress matches. Zero means no cap.
func WithMaxMatches(n int) Option {
	return func(m *Manager) {
		m.maxMatches = n
	}
}

// WithSeeds overrides where new match seeds come from.
func WithSeeds(fn func() (uint64, error)) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newSeed = fn
		}
	}
}

// WithClock overrides the wall clock used for match metadata.
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

// Manager manages hosted matches.
type Manager struct {
	engine     *game.Engine
	store      store.Store
	recorder   *game.ReplayRecorder
	logger     *zap.Logger
	maxMatches int
	newSeed    func() (uint64, error)
	now        func() time.Time

	mu        sync.RWMutex
	matches   map[string]*Match
	listeners []func(Update)
}

// NewManager creates a match manager persisting into st.
func NewManager(engine *game.Engine, st store.Store, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if st == nil {
		st = store.NewMemory()
	}
	m := &Manager{
		engine:  engine,
		store:   st,
		logger:  logger,
		newSeed: rng.NewSeed,
		now:     func() time.Time { return time.Now().UTC() },
		matches: make(map[string]*Match),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnCommit registers fn to run after every committed action of every match.
func (m *Manager) OnCommit(fn func(Update)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Create opens a match with a fresh random seed.
func (m *Manager) Create(ctx context.Context) (*Match, error) {
	seed, err := m.newSeed()
	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}
	return m.CreateWithSeed(ctx, seed)
}

// CreateWithSeed opens a match whose deck and random effects follow seed.
func (m *Manager) CreateWithSeed(ctx context.Context, seed uint64) (*Match, error) {
	if m.maxMatches > 0 && m.ActiveCount() >= m.maxMatches {
		return nil, ErrTooManyMatches
	}

	src := rng.New(seed)
	g, err := m.engine.NewGame(src)
	if err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}
	id := uuid.New().String()
	created := m.now()

	if err := m.store.CreateMatch(ctx, store.Match{
		ID:        id,
		Seed:      seed,
		Rules:     m.engine.Rules(),
		CreatedAt: created,
	}); err != nil {
		return nil, fmt.Errorf("create match: %w", err)
	}
	if m.recorder != nil {
		if err := m.recorder.StartRecording(id, seed, m.engine.Rules(), g); err != nil {
			m.logger.Warn("failed to start replay recording", zap.String("match_id", id), zap.Error(err))
		}
	}

	match := newMatch(id, seed, m.engine, g, src, created)
	m.host(match)

	m.logger.Info("match created",
		zap.String("match_id", id),
		zap.Uint64("seed", seed),
		zap.Int("deck", len(g.Cards.Deck)),
	)
	return match, nil
}

// host registers match unless a match with the same id is already hosted,
// in which case the hosted one is returned.
func (m *Manager) host(match *Match) *Match {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.matches[match.ID]; ok {
		return existing
	}
	logger := m.logger.With(zap.String("match_id", match.ID))
	match.Subscribe(func(e rules.Event) {
		logger.Debug("event",
			zap.String("type", string(e.Type)),
			zap.String("action_id", e.ActionID),
			zap.Int("ply", e.PlyIndex),
		)
	})
	m.matches[match.ID] = match
	return match
}

// Get retrieves a hosted match by id.
func (m *Manager) Get(id string) (*Match, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	match, ok := m.matches[id]
	return match, ok
}

// Remove stops hosting a match. Its ledger stays in the store.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.matches, id)
	m.mu.Unlock()
	if m.recorder != nil {
		m.recorder.ClearReplay(id)
	}
	m.logger.Info("match removed", zap.String("match_id", id))
}

// List returns every hosted match.
func (m *Manager) List() []*Match {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Match, 0, len(m.matches))
	for _, match := range m.matches {
		out = append(out, match)
	}
	return out
}

// ActiveCount returns the number of matches still in progress.
func (m *Manager) ActiveCount() int {
	count := 0
	for _, match := range m.List() {
		match.mu.Lock()
		if match.state != StateFinished {
			count++
		}
		match.mu.Unlock()
	}
	return count
}

// SubmitJSON validates a wire action and submits it. Schema failures come
// back as a rejected result, not an error.
func (m *Manager) SubmitJSON(ctx context.Context, id string, raw []byte) (game.Result, error) {
	match, ok := m.Get(id)
	if !ok {
		return game.Result{}, ErrNotFound
	}
	a, check := action.ValidateJSON(raw)
	if !check.Valid {
		m.logger.Info("action rejected",
			zap.String("match_id", id),
			zap.String("reason", string(check.Reason)),
			zap.Strings("errors", check.Errors),
		)
		return game.Result{
			Game:           match.Game(),
			Stage:          rules.StageRejected,
			RejectedReason: check.Reason,
			SchemaErrors:   check.Errors,
			Err:            check.Err(),
		}, nil
	}
	return m.Submit(ctx, id, a)
}

// Submit applies a to the match. A rejected action leaves the match as it
// was and returns the rejected result with a nil error; the error is
// reserved for an unknown match or a failure to persist.
func (m *Manager) Submit(ctx context.Context, id string, a action.Action) (game.Result, error) {
	match, ok := m.Get(id)
	if !ok {
		return game.Result{}, ErrNotFound
	}

	match.mu.Lock()
	defer match.mu.Unlock()

	checkpoint := match.src.Checkpoint()
	res := match.engine.Apply(match.game, a, match.src)
	if !res.OK {
		return res, nil
	}

	a = action.Normalize(a)
	checksum, err := m.persist(ctx, id, a, res.Game)
	if err != nil {
		match.src.Rewind(checkpoint)
		m.logger.Error("failed to persist action",
			zap.String("match_id", id),
			zap.String("action_id", a.ActionID),
			zap.Error(err),
		)
		return game.Result{}, err
	}

	match.game = res.Game
	if m.recorder != nil {
		if err := m.recorder.RecordAction(id, a, checksum); err != nil {
			m.logger.Warn("failed to record replay action", zap.String("match_id", id), zap.Error(err))
		}
	}
	match.bus.PublishBatch(res.Events)

	if res.Game.Board.Finished {
		match.finish(m.now())
		m.logger.Info("match finished",
			zap.String("match_id", id),
			zap.Stringer("winner", res.Game.Board.Winner),
			zap.Int("turn_index", res.Game.Cards.TurnIndex),
		)
		if m.recorder != nil && m.recorder.IsRecording(id) {
			if err := m.recorder.SaveReplay(id); err != nil {
				m.logger.Error("failed to save replay", zap.String("match_id", id), zap.Error(err))
			}
		}
	}

	m.notify(Update{
		MatchID:      id,
		TurnIndex:    res.Game.Cards.TurnIndex,
		Checksum:     checksum,
		Events:       res.Events,
		Presentation: res.Presentation,
		Finished:     res.Game.Board.Finished,
	})
	return res, nil
}

func (m *Manager) persist(ctx context.Context, id string, a action.Action, g game.Game) (string, error) {
	snap, err := store.NewSnapshot(id, g)
	if err != nil {
		return "", err
	}
	wire, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode action %s: %w", a.ActionID, err)
	}
	err = m.store.Append(ctx, store.Entry{
		MatchID:     id,
		TurnIndex:   a.TurnIndex,
		ActionID:    a.ActionID,
		Wire:        wire,
		Checksum:    snap.Checksum,
		CommittedAt: m.now(),
	}, snap)
	if err != nil {
		return "", fmt.Errorf("append action %s: %w", a.ActionID, err)
	}
	return snap.Checksum, nil
}

func (m *Manager) notify(u Update) {
	m.mu.RLock()
	listeners := append([]func(Update){}, m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(u)
	}
}

// Resume rebuilds a match from its stored ledger and hosts it again. Every
// entry is re-applied from the seed and must reproduce the stored checksum,
// and the result must match the latest snapshot.
func (m *Manager) Resume(ctx context.Context, id string) (*Match, error) {
	if match, ok := m.Get(id); ok {
		return match, nil
	}
	header, err := m.store.GetMatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", id, err)
	}
	entries, err := m.store.Entries(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", id, err)
	}

	engine := game.New(m.engine.Catalog(), game.WithRules(header.Rules), game.WithLogger(m.logger))
	src := rng.New(header.Seed)
	g, err := engine.NewGame(src)
	if err != nil {
		return nil, fmt.Errorf("resume %s: %w", id, err)
	}
	for i, entry := range entries {
		res := engine.ApplyJSON(g, entry.Wire, src)
		if !res.OK {
			return nil, fmt.Errorf("resume %s: entry %d (%s) rejected: %w", id, i, entry.ActionID, res.Err)
		}
		sum, err := res.Game.ComputeChecksum()
		if err != nil {
			return nil, fmt.Errorf("resume %s: %w", id, err)
		}
		if sum.Hash != entry.Checksum {
			return nil, fmt.Errorf("resume %s: entry %d checksum %s, stored %s", id, i, sum.Hash, entry.Checksum)
		}
		g = res.Game
	}
	if len(entries) > 0 {
		snap, err := m.store.LatestSnapshot(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resume %s: %w", id, err)
		}
		if _, err := snap.Game(); err != nil {
			return nil, fmt.Errorf("resume %s: %w", id, err)
		}
		if last := entries[len(entries)-1]; snap.Checksum != last.Checksum {
			return nil, fmt.Errorf("resume %s: snapshot at turn %d does not match ledger entry %s", id, snap.TurnIndex, last.ActionID)
		}
	}

	match := m.host(newMatch(id, header.Seed, engine, g, src, header.CreatedAt))

	m.logger.Info("match resumed",
		zap.String("match_id", id),
		zap.Int("entries", len(entries)),
		zap.Int("turn_index", g.Cards.TurnIndex),
	)
	return match, nil
}
