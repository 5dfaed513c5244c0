// Package store persists matches, their committed action ledger and the
// latest state snapshot of each match.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reversi-cards/reversi-server-go/internal/config"
	"github.com/reversi-cards/reversi-server-go/internal/game"
	"github.com/reversi-cards/reversi-server-go/internal/game/action"
)

var (
	// ErrNotFound is returned when a match or snapshot does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrAlreadyExists is returned for a duplicate match id, action id or
	// ledger position.
	ErrAlreadyExists = errors.New("store: already exists")
)

// Match is the immutable header of a hosted match.
type Match struct {
	ID        string
	Seed      uint64
	Rules     game.Rules
	CreatedAt time.Time
}

// Entry is one committed action in the ledger.
type Entry struct {
	MatchID     string
	TurnIndex   int
	ActionID    string
	Wire        []byte
	Checksum    string
	CommittedAt time.Time
}

// Snapshot is the state of a match after its latest committed action.
type Snapshot struct {
	MatchID   string
	TurnIndex int
	Checksum  string
	State     []byte
	Tracker   action.TrackerState
}

// NewSnapshot captures g for matchID.
func NewSnapshot(matchID string, g game.Game) (Snapshot, error) {
	state, err := g.SerializeToBytes()
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", matchID, err)
	}
	sum, err := g.ComputeChecksum()
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %s: %w", matchID, err)
	}
	return Snapshot{
		MatchID:   matchID,
		TurnIndex: g.Cards.TurnIndex,
		Checksum:  sum.Hash,
		State:     state,
		Tracker:   g.Tracker.State(),
	}, nil
}

// Game decodes the snapshot state and checks it against the stored checksum.
func (s Snapshot) Game() (game.Game, error) {
	g, err := game.DeserializeFromBytes(s.State)
	if err != nil {
		return game.Game{}, err
	}
	ok, err := g.VerifyChecksum(game.Checksum{Hash: s.Checksum, Version: game.ChecksumVersion})
	if err != nil {
		return game.Game{}, err
	}
	if !ok {
		return game.Game{}, fmt.Errorf("snapshot %s at turn %d does not match its checksum", s.MatchID, s.TurnIndex)
	}
	return g, nil
}

// Store is the persistence boundary of the match manager.
type Store interface {
	CreateMatch(ctx context.Context, m Match) error
	GetMatch(ctx context.Context, id string) (Match, error)
	// Append adds e to the ledger and replaces the match snapshot in one step.
	Append(ctx context.Context, e Entry, snap Snapshot) error
	Entries(ctx context.Context, matchID string) ([]Entry, error)
	LatestSnapshot(ctx context.Context, matchID string) (Snapshot, error)
	Close() error
}

// Open creates the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case config.DriverMemory, "":
		logger.Info("using in-memory store")
		return NewMemory(), nil
	case config.DriverSQLite:
		s, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite store", zap.String("path", cfg.Path))
		return s, nil
	case config.DriverPostgres:
		s, err := OpenPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func encodeRules(r game.Rules) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}
	return data, nil
}

func decodeRules(data []byte) (game.Rules, error) {
	var r game.Rules
	if err := json.Unmarshal(data, &r); err != nil {
		return game.Rules{}, fmt.Errorf("decode rules: %w", err)
	}
	return r, nil
}

func encodeTracker(st action.TrackerState) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode tracker: %w", err)
	}
	return data, nil
}

func decodeTracker(data []byte) (action.TrackerState, error) {
	var st action.TrackerState
	if err := json.Unmarshal(data, &st); err != nil {
		return action.TrackerState{}, fmt.Errorf("decode tracker: %w", err)
	}
	return st, nil
}

func validateAppend(e Entry, snap Snapshot) error {
	switch {
	case e.MatchID == "" || e.ActionID == "":
		return fmt.Errorf("entry requires a match id and an action id")
	case snap.MatchID != e.MatchID:
		return fmt.Errorf("snapshot for %s appended with entry for %s", snap.MatchID, e.MatchID)
	case snap.TurnIndex != e.TurnIndex+1:
		return fmt.Errorf("snapshot at turn %d does not follow entry %d", snap.TurnIndex, e.TurnIndex)
	}
	return nil
}
