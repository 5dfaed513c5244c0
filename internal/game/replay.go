package game

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/reversi-cards/reversi-server-go/internal/game/action"
	"github.com/reversi-cards/reversi-server-go/internal/game/rng"
)

const replayVersion = 1

// ReplayEntry is one committed action in wire form with the checksum of the
// state it produced.
type ReplayEntry struct {
	Wire     []byte
	Checksum string
}

// Action decodes the entry's wire action.
func (e ReplayEntry) Action() (action.Action, error) {
	a, res := action.ValidateJSON(e.Wire)
	if !res.Valid {
		return action.Action{}, res.Err()
	}
	return a, nil
}

// Replay is a recorded match: the seed and rules it started from, the
// opening checksum and every committed action in order.
type Replay struct {
	MatchID      string
	Seed         uint64
	Rules        Rules
	Initial      string
	Entries      []ReplayEntry
	CurrentIndex int
	mu           sync.RWMutex
}

// NewReplay creates an empty replay for a match opened with seed and rules.
func NewReplay(matchID string, seed uint64, r Rules, initial string) *Replay {
	return &Replay{
		MatchID: matchID,
		Seed:    seed,
		Rules:   r,
		Initial: initial,
		Entries: make([]ReplayEntry, 0),
	}
}

// Record appends a committed action and the checksum after it.
func (r *Replay) Record(a action.Action, checksum string) error {
	wire, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode action %s: %w", a.ActionID, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, ReplayEntry{Wire: wire, Checksum: checksum})
	return nil
}

// Start rewinds playback to the first entry.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CurrentIndex = 0
}

// Next returns the next entry, or false at the end.
func (r *Replay) Next() (ReplayEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CurrentIndex >= len(r.Entries) {
		return ReplayEntry{}, false
	}
	e := r.Entries[r.CurrentIndex]
	r.CurrentIndex++
	return e, true
}

// Size returns the number of recorded actions.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Entries)
}

// Verify replays every entry through engine from a fresh game and checks
// each checksum. It returns the final state.
func (r *Replay) Verify(engine *Engine) (Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engine = engine.withRules(r.Rules)
	src := rng.New(r.Seed)
	g, err := engine.NewGame(src)
	if err != nil {
		return Game{}, fmt.Errorf("replay %s: %w", r.MatchID, err)
	}
	sum, err := g.ComputeChecksum()
	if err != nil {
		return Game{}, err
	}
	if sum.Hash != r.Initial {
		return Game{}, fmt.Errorf("replay %s: opening checksum %s, recorded %s", r.MatchID, sum.Hash, r.Initial)
	}

	for i, entry := range r.Entries {
		res := engine.ApplyJSON(g, entry.Wire, src)
		if !res.OK {
			return g, fmt.Errorf("replay %s: entry %d rejected: %w", r.MatchID, i, res.Err)
		}
		g = res.Game
		sum, err := g.ComputeChecksum()
		if err != nil {
			return g, err
		}
		if sum.Hash != entry.Checksum {
			return g, fmt.Errorf("replay %s: entry %d checksum %s, recorded %s", r.MatchID, i, sum.Hash, entry.Checksum)
		}
	}
	return g, nil
}

// replayMetadata heads a replay file.
type replayMetadata struct {
	MatchID    string
	Seed       uint64
	Rules      Rules
	Initial    string
	Timestamp  time.Time
	Version    int
	EntryCount int
}

// ReplayPath is the file a match's replay is saved to.
func ReplayPath(directory, matchID string) string {
	return filepath.Join(directory, fmt.Sprintf("%s.replay", matchID))
}

// SaveToFile writes the replay as a zstd-compressed gob stream.
func (r *Replay) SaveToFile(directory string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(ReplayPath(directory, r.MatchID))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	zw, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	encoder := gob.NewEncoder(zw)

	metadata := replayMetadata{
		MatchID:    r.MatchID,
		Seed:       r.Seed,
		Rules:      r.Rules,
		Initial:    r.Initial,
		Timestamp:  time.Now().UTC(),
		Version:    replayVersion,
		EntryCount: len(r.Entries),
	}
	if err := encoder.Encode(&metadata); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	for i := range r.Entries {
		if err := encoder.Encode(&r.Entries[i]); err != nil {
			zw.Close()
			return fmt.Errorf("failed to encode entry %d: %w", i, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush replay: %w", err)
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile.
func LoadReplayFromFile(path string) (*Replay, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	zr, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()
	decoder := gob.NewDecoder(zr)

	var metadata replayMetadata
	if err := decoder.Decode(&metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if metadata.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", metadata.Version)
	}

	replay := NewReplay(metadata.MatchID, metadata.Seed, metadata.Rules, metadata.Initial)
	for i := 0; i < metadata.EntryCount; i++ {
		var entry ReplayEntry
		if err := decoder.Decode(&entry); err != nil {
			return nil, fmt.Errorf("failed to decode entry %d: %w", i, err)
		}
		replay.Entries = append(replay.Entries, entry)
	}
	return replay, nil
}

// ReplayRecorder keeps the replays of live matches.
type ReplayRecorder struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	replays map[string]*Replay
	saveDir string
}

// NewReplayRecorder creates a recorder saving into saveDir.
func NewReplayRecorder(logger *zap.Logger, saveDir string) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		replays: make(map[string]*Replay),
		saveDir: saveDir,
	}
}

// StartRecording begins a replay for a match opened from g.
func (rr *ReplayRecorder) StartRecording(matchID string, seed uint64, r Rules, g Game) error {
	sum, err := g.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("start recording %s: %w", matchID, err)
	}
	rr.mu.Lock()
	rr.replays[matchID] = NewReplay(matchID, seed, r, sum.Hash)
	rr.mu.Unlock()

	rr.logger.Info("started replay recording", zap.String("match_id", matchID))
	return nil
}

// RecordAction appends a committed action if the match is being recorded.
func (rr *ReplayRecorder) RecordAction(matchID string, a action.Action, checksum string) error {
	rr.mu.RLock()
	replay := rr.replays[matchID]
	rr.mu.RUnlock()
	if replay == nil {
		return nil
	}
	if err := replay.Record(a, checksum); err != nil {
		return err
	}
	rr.logger.Debug("recorded replay action",
		zap.String("match_id", matchID),
		zap.String("action_id", a.ActionID),
		zap.Int("entries", replay.Size()),
	)
	return nil
}

// IsRecording reports whether a match is being recorded.
func (rr *ReplayRecorder) IsRecording(matchID string) bool {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	_, ok := rr.replays[matchID]
	return ok
}

// GetReplay returns the live replay of a match.
func (rr *ReplayRecorder) GetReplay(matchID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	replay, ok := rr.replays[matchID]
	return replay, ok
}

// SaveReplay writes a match's replay to disk and forgets it.
func (rr *ReplayRecorder) SaveReplay(matchID string) error {
	rr.mu.Lock()
	replay, ok := rr.replays[matchID]
	if !ok {
		rr.mu.Unlock()
		return fmt.Errorf("no replay found for match %s", matchID)
	}
	delete(rr.replays, matchID)
	rr.mu.Unlock()

	if err := replay.SaveToFile(rr.saveDir); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}
	rr.logger.Info("saved replay to disk",
		zap.String("match_id", matchID),
		zap.Int("entries", replay.Size()),
		zap.String("directory", rr.saveDir),
	)
	return nil
}

// LoadReplay reads a saved replay from the recorder's directory.
func (rr *ReplayRecorder) LoadReplay(matchID string) (*Replay, error) {
	replay, err := LoadReplayFromFile(ReplayPath(rr.saveDir, matchID))
	if err != nil {
		return nil, err
	}
	rr.logger.Info("loaded replay from disk",
		zap.String("match_id", matchID),
		zap.Int("entries", replay.Size()),
	)
	return replay, nil
}

// ClearReplay drops a replay without saving it.
func (rr *ReplayRecorder) ClearReplay(matchID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.replays, matchID)
}
