package game

import (
	"fmt"

	"github.com/reversi-cards/reversi-server-go/internal/game/action"
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/cards"
	"github.com/reversi-cards/reversi-server-go/internal/game/effects"
	"github.com/reversi-cards/reversi-server-go/internal/game/markers"
	"github.com/reversi-cards/reversi-server-go/internal/game/rng"
	"github.com/reversi-cards/reversi-server-go/internal/game/rules"
)

// PerPlayer holds one value per colour. Two named slots keep the serialised
// form independent of map ordering.
type PerPlayer[T any] struct {
	Black T `json:"black"`
	White T `json:"white"`
}

// Get returns the slot of c. Any non-player colour reads the zero value.
func (p PerPlayer[T]) Get(c board.Cell) T {
	switch c {
	case board.Black:
		return p.Black
	case board.White:
		return p.White
	default:
		var zero T
		return zero
	}
}

// Set stores v in the slot of c.
func (p *PerPlayer[T]) Set(c board.Cell, v T) {
	switch c {
	case board.Black:
		p.Black = v
	case board.White:
		p.White = v
	}
}

// PendingKind is the state of a player's multi-step card effect.
type PendingKind int

const (
	PendingIdle PendingKind = iota
	// PendingAwaitingTarget holds a targeted card until its target resolves.
	PendingAwaitingTarget
	// PendingAwaitingPlacement holds a card that modifies the next placement.
	PendingAwaitingPlacement
)

var pendingNames = map[PendingKind]string{
	PendingIdle:              "IDLE",
	PendingAwaitingTarget:    "AWAITING_TARGET",
	PendingAwaitingPlacement: "AWAITING_PLACEMENT",
}

func (k PendingKind) String() string {
	if name, ok := pendingNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PENDING_%d", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k PendingKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PendingKind) UnmarshalText(text []byte) error {
	for kind, name := range pendingNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown pending kind %q", text)
}

// Pending is a player's in-progress card effect.
type Pending struct {
	Kind   PendingKind `json:"kind"`
	Card   cards.Type  `json:"card,omitempty"`
	CardID string      `json:"cardId,omitempty"`
}

// Idle reports whether no effect is in progress.
func (p Pending) Idle() bool {
	return p.Kind == PendingIdle
}

// Modifier returns the card type waiting for the next placement, if any.
func (p Pending) Modifier() (cards.Type, bool) {
	if p.Kind != PendingAwaitingPlacement {
		return "", false
	}
	return p.Card, true
}

// BoardState is the grid and turn bookkeeping.
type BoardState struct {
	Grid              board.Grid `json:"grid"`
	CurrentPlayer     board.Cell `json:"currentPlayer"`
	TurnNumber        int        `json:"turnNumber"`
	ConsecutivePasses int        `json:"consecutivePasses"`
	Finished          bool       `json:"finished"`
	Winner            board.Cell `json:"winner"`
}

// CardState is hands, deck, resources and markers.
type CardState struct {
	Hands                PerPlayer[[]string]       `json:"hands"`
	Deck                 []string                  `json:"deck"`
	Discard              []string                  `json:"discard"`
	Charge               PerPlayer[int]            `json:"charge"`
	Markers              markers.Registry          `json:"markers"`
	Pending              PerPlayer[Pending]        `json:"pending"`
	ExtraPlacesRemaining PerPlayer[int]            `json:"extraPlacesRemaining"`
	TurnIndex            int                       `json:"turnIndex"`
	PresentationEvents   []rules.PresentationEvent `json:"presentationEvents"`
	NextMarkerSeq        int                       `json:"nextMarkerSeq"`
	TurnStartDone        bool                      `json:"turnStartDone"`
}

// CardCount is the conserved total of cards across deck, hands and discard.
func (c CardState) CardCount() int {
	return len(c.Deck) + len(c.Hands.Black) + len(c.Hands.White) + len(c.Discard)
}

// Game is the committed state of one match.
type Game struct {
	Board   BoardState     `json:"board"`
	Cards   CardState      `json:"cards"`
	Tracker action.Tracker `json:"tracker"`
}

// Clone returns a deep copy sharing no mutable memory with g. Nil slices
// come back empty, so equal states always serialise to equal bytes.
func (g Game) Clone() Game {
	out := g
	out.Cards.Hands.Black = cloneStrings(g.Cards.Hands.Black)
	out.Cards.Hands.White = cloneStrings(g.Cards.Hands.White)
	out.Cards.Deck = cloneStrings(g.Cards.Deck)
	out.Cards.Discard = cloneStrings(g.Cards.Discard)
	out.Cards.Markers = append(markers.Registry{}, g.Cards.Markers...)
	out.Cards.PresentationEvents = append([]rules.PresentationEvent{}, g.Cards.PresentationEvents...)
	return out
}

func cloneStrings(in []string) []string {
	return append([]string{}, in...)
}

// Rules are the tunable numbers of a match.
type Rules struct {
	HandLimit      int `json:"handLimit" mapstructure:"hand_limit"`
	OpeningHand    int `json:"openingHand" mapstructure:"opening_hand"`
	StartingCharge int `json:"startingCharge" mapstructure:"starting_charge"`
}

// DefaultRules returns the standard match rules.
func DefaultRules() Rules {
	return Rules{HandLimit: 5, OpeningHand: 3, StartingCharge: 0}
}

// Validate checks the rule numbers for consistency.
func (r Rules) Validate() error {
	switch {
	case r.HandLimit < 1:
		return fmt.Errorf("hand limit must be positive, got %d", r.HandLimit)
	case r.OpeningHand < 0 || r.OpeningHand > r.HandLimit:
		return fmt.Errorf("opening hand %d outside [0, %d]", r.OpeningHand, r.HandLimit)
	case r.StartingCharge != effects.ClampCharge(r.StartingCharge):
		return fmt.Errorf("starting charge %d outside [0, %d]", r.StartingCharge, effects.MaxCharge)
	}
	return nil
}

// NewGame creates the opening state of a match. The deck is shuffled with
// src and opening hands are dealt alternately, Black first.
func NewGame(src rng.Source, catalog *cards.Catalog, r Rules) (Game, error) {
	if catalog == nil {
		return Game{}, fmt.Errorf("new game: nil catalog")
	}
	if err := r.Validate(); err != nil {
		return Game{}, fmt.Errorf("new game: %w", err)
	}
	deck := cards.Shuffle(catalog.BuildDeck(), src)
	if len(deck) < 2*r.OpeningHand {
		return Game{}, fmt.Errorf("new game: deck of %d cannot deal two hands of %d", len(deck), r.OpeningHand)
	}

	g := Game{
		Board: BoardState{
			Grid:          board.NewGrid(),
			CurrentPlayer: board.Black,
			TurnNumber:    1,
		},
		Cards: CardState{
			Hands:              PerPlayer[[]string]{Black: []string{}, White: []string{}},
			Discard:            []string{},
			Charge:             PerPlayer[int]{Black: r.StartingCharge, White: r.StartingCharge},
			Markers:            markers.Registry{},
			PresentationEvents: []rules.PresentationEvent{},
			NextMarkerSeq:      1,
		},
		Tracker: action.NewTracker(),
	}
	for i := 0; i < r.OpeningHand; i++ {
		for _, p := range []board.Cell{board.Black, board.White} {
			g.Cards.Hands.Set(p, append(g.Cards.Hands.Get(p), deck[0]))
			deck = deck[1:]
		}
	}
	g.Cards.Deck = cloneStrings(deck)
	return g, nil
}
