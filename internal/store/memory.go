package store

import (
	"context"
	"sync"
	"time"
)

// Memory keeps everything in process. It is the default store and the one
// used by tests.
type Memory struct {
	mu        sync.RWMutex
	matches   map[string]Match
	entries   map[string][]Entry
	snapshots map[string]Snapshot
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		matches:   make(map[string]Match),
		entries:   make(map[string][]Entry),
		snapshots: make(map[string]Snapshot),
	}
}

func (m *Memory) CreateMatch(ctx context.Context, match Match) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[match.ID]; ok {
		return ErrAlreadyExists
	}
	if match.CreatedAt.IsZero() {
		match.CreatedAt = time.Now().UTC()
	}
	m.matches[match.ID] = match
	return nil
}

func (m *Memory) GetMatch(ctx context.Context, id string) (Match, error) {
	if err := ctx.Err(); err != nil {
		return Match{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	match, ok := m.matches[id]
	if !ok {
		return Match{}, ErrNotFound
	}
	return match, nil
}

func (m *Memory) Append(ctx context.Context, e Entry, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateAppend(e, snap); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.matches[e.MatchID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.entries[e.MatchID] {
		if existing.ActionID == e.ActionID || existing.TurnIndex == e.TurnIndex {
			return ErrAlreadyExists
		}
	}
	if e.CommittedAt.IsZero() {
		e.CommittedAt = time.Now().UTC()
	}
	e.Wire = append([]byte(nil), e.Wire...)
	snap.State = append([]byte(nil), snap.State...)
	m.entries[e.MatchID] = append(m.entries[e.MatchID], e)
	m.snapshots[e.MatchID] = snap
	return nil
}

func (m *Memory) Entries(ctx context.Context, matchID string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.matches[matchID]; !ok {
		return nil, ErrNotFound
	}
	return append([]Entry{}, m.entries[matchID]...), nil
}

func (m *Memory) LatestSnapshot(ctx context.Context, matchID string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snapshots[matchID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (m *Memory) Close() error {
	return nil
}
