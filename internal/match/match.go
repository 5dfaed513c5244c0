// Package match hosts live matches: one engine state, one random source and
// one event bus per match, with submissions serialised by the match lock.
package match

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/reversi-cards/reversi-server-go/internal/game"
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/rng"
	"github.com/reversi-cards/reversi-server-go/internal/game/rules"
)

// State is the lifecycle of a hosted match.
type State int

const (
	StateInProgress State = iota
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateInProgress:
		return "IN_PROGRESS"
	case StateFinished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "IN_PROGRESS":
		*s = StateInProgress
	case "FINISHED":
		*s = StateFinished
	default:
		return fmt.Errorf("unknown match state %q", text)
	}
	return nil
}

// Match is one hosted game. All fields behind mu change only while a
// submission holds the lock.
type Match struct {
	ID         string
	Seed       uint64
	Rules      game.Rules
	CreateTime time.Time

	mu      sync.Mutex
	state   State
	endTime *time.Time
	engine  *game.Engine
	game    game.Game
	src     *rng.PCG
	bus     *rules.EventBus
}

func newMatch(id string, seed uint64, engine *game.Engine, g game.Game, src *rng.PCG, created time.Time) *Match {
	m := &Match{
		ID:         id,
		Seed:       seed,
		Rules:      engine.Rules(),
		CreateTime: created,
		engine:     engine,
		game:       g,
		src:        src,
		bus:        rules.NewEventBus(),
	}
	if g.Board.Finished {
		m.finish(created)
	}
	return m
}

func (m *Match) finish(at time.Time) {
	m.state = StateFinished
	end := at
	m.endTime = &end
}

// Subscribe registers a listener for every event this match commits.
// Listeners run while the match lock is held and must not call back into the
// match.
func (m *Match) Subscribe(listener rules.Listener) int {
	return m.bus.Subscribe(listener)
}

// Unsubscribe removes a listener registered with Subscribe.
func (m *Match) Unsubscribe(handle int) {
	m.bus.Unsubscribe(handle)
}

// Game returns a copy of the committed state.
func (m *Match) Game() game.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.game.Clone()
}

// Score is the stone count of each side.
type Score struct {
	Black int `json:"black"`
	White int `json:"white"`
}

// Snapshot is an external view of a match.
type Snapshot struct {
	ID            string     `json:"id"`
	State         State      `json:"state"`
	Rules         game.Rules `json:"rules"`
	TurnIndex     int        `json:"turnIndex"`
	TurnNumber    int        `json:"turnNumber"`
	CurrentPlayer board.Cell `json:"currentPlayer"`
	Board         []string   `json:"board"`
	Score         Score      `json:"score"`
	Charge        Score      `json:"charge"`
	HandSizes     Score      `json:"handSizes"`
	DeckSize      int        `json:"deckSize"`
	Winner        board.Cell `json:"winner,omitempty"`
	Checksum      string     `json:"checksum"`
	CreateTime    time.Time  `json:"createTime"`
	EndTime       *time.Time `json:"endTime,omitempty"`
}

// Snapshot returns a consistent view of the match.
func (m *Match) Snapshot() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum, err := m.game.ComputeChecksum()
	if err != nil {
		return Snapshot{}, err
	}
	g := m.game
	snap := Snapshot{
		ID:            m.ID,
		State:         m.state,
		Rules:         m.Rules,
		TurnIndex:     g.Cards.TurnIndex,
		TurnNumber:    g.Board.TurnNumber,
		CurrentPlayer: g.Board.CurrentPlayer,
		Board:         strings.Split(g.Board.Grid.String(), "\n"),
		Score:         Score{Black: g.Board.Grid.Count(board.Black), White: g.Board.Grid.Count(board.White)},
		Charge:        Score{Black: g.Cards.Charge.Black, White: g.Cards.Charge.White},
		HandSizes:     Score{Black: len(g.Cards.Hands.Black), White: len(g.Cards.Hands.White)},
		DeckSize:      len(g.Cards.Deck),
		Checksum:      sum.Hash,
		CreateTime:    m.CreateTime,
		EndTime:       cloneTime(m.endTime),
	}
	if g.Board.Finished {
		snap.Winner = g.Board.Winner
	}
	return snap, nil
}

func cloneTime(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	cp := *src
	return &cp
}
