// Package effects implements the card-effect state machines.
//
// Every function here is pure: it takes a grid and a marker registry by value,
// and returns an Outcome carrying the new grid, the new registry and the
// ordered list of changes it made. Missing anchors, off-board cells and empty
// candidate sets produce an Outcome with no changes.
package effects

import (
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/markers"
)

// ChangeKind classifies one entry of an Outcome's change list.
type ChangeKind string

const (
	ChangeSpawn         ChangeKind = "SPAWN"
	ChangeDestroy       ChangeKind = "DESTROY"
	ChangeFlip          ChangeKind = "FLIP"
	ChangeMove          ChangeKind = "MOVE"
	ChangeRevert        ChangeKind = "REVERT"
	ChangeMarkerAdded   ChangeKind = "MARKER_ADDED"
	ChangeMarkerRemoved ChangeKind = "MARKER_REMOVED"
	ChangeMarkerTicked  ChangeKind = "MARKER_TICKED"
	ChangeMarkerChanged ChangeKind = "MARKER_CHANGED"
)

// Change is one cell or marker mutation, in the order it happened.
type Change struct {
	Kind      ChangeKind     `json:"kind"`
	Pos       board.Pos      `json:"pos"`
	From      *board.Pos     `json:"from,omitempty"`
	Before    board.Cell     `json:"before"`
	After     board.Cell     `json:"after"`
	MarkerID  string         `json:"markerId,omitempty"`
	Effect    markers.Effect `json:"effect,omitempty"`
	Countdown int            `json:"countdown,omitempty"`
	// Cause names what produced the change; empty for plain captures.
	Cause Cause `json:"cause,omitempty"`
}

// Cause names the rule that produced a change.
type Cause string

const (
	CauseCapture     Cause = ""
	CauseRegen       Cause = "REGEN"
	CauseTimeBomb    Cause = "TIME_BOMB"
	CauseBreeding    Cause = "BREEDING"
	CauseDragon      Cause = "DRAGON"
	CauseDestroyGod  Cause = "ULTIMATE_DESTROY_GOD"
	CauseHyperactive Cause = "HYPERACTIVE"
	CauseChainWill   Cause = "CHAIN_WILL"
	CauseExpired     Cause = "EXPIRED"
	CauseDestroy     Cause = "DESTROY_ONE_STONE"
	CauseSwap        Cause = "SWAP_WITH_ENEMY"
	CauseTempt       Cause = "TEMPT_WILL"
	CauseInherit     Cause = "INHERIT_WILL"
)

func causeOf(e markers.Effect) Cause {
	return Cause(e)
}

// Outcome is the result of one effect application.
type Outcome struct {
	Grid    board.Grid
	Markers markers.Registry
	Changes []Change
}

// Start returns an Outcome with no changes over g and reg.
func Start(g board.Grid, reg markers.Registry) Outcome {
	return Outcome{Grid: g, Markers: reg}
}

// Append folds next into o: next must have been computed from o's grid and
// registry.
func (o Outcome) Append(next Outcome) Outcome {
	changes := make([]Change, 0, len(o.Changes)+len(next.Changes))
	changes = append(changes, o.Changes...)
	changes = append(changes, next.Changes...)
	return Outcome{Grid: next.Grid, Markers: next.Markers, Changes: changes}
}

// Count returns how many changes of kind k the outcome recorded.
func (o Outcome) Count(k ChangeKind) int {
	n := 0
	for _, c := range o.Changes {
		if c.Kind == k {
			n++
		}
	}
	return n
}

// work is the mutable scratch copy an effect operates on.
type work struct {
	grid    board.Grid
	reg     markers.Registry
	changes []Change
}

func begin(g board.Grid, reg markers.Registry) *work {
	return &work{grid: g, reg: reg}
}

func (w *work) outcome() Outcome {
	return Outcome{Grid: w.grid, Markers: w.reg, Changes: w.changes}
}

func (w *work) record(c Change) {
	w.changes = append(w.changes, c)
}

func (w *work) set(p board.Pos, c board.Cell, kind ChangeKind, cause Cause) {
	before := w.grid.At(p)
	w.grid.Set(p, c)
	w.record(Change{Kind: kind, Pos: p, Before: before, After: c, Cause: cause})
}

func (w *work) dropMarker(m markers.Marker, cause Cause) {
	w.reg = w.reg.Remove(m.ID)
	w.record(Change{
		Kind:     ChangeMarkerRemoved,
		Pos:      m.Pos(),
		MarkerID: m.ID,
		Effect:   m.Effect,
		Before:   w.grid.At(m.Pos()),
		After:    w.grid.At(m.Pos()),
		Cause:    cause,
	})
}

// destroy empties p and removes any marker standing on it.
func (w *work) destroy(p board.Pos, cause Cause) {
	if m, ok := w.reg.At(p); ok {
		w.dropMarker(m, cause)
	}
	if w.grid.At(p) != board.Empty {
		w.set(p, board.Empty, ChangeDestroy, cause)
	}
}

func (w *work) addMarker(m markers.Marker) bool {
	next, err := w.reg.Add(m)
	if err != nil {
		return false
	}
	w.reg = next
	w.record(Change{
		Kind:      ChangeMarkerAdded,
		Pos:       m.Pos(),
		MarkerID:  m.ID,
		Effect:    m.Effect,
		Before:    w.grid.At(m.Pos()),
		After:     w.grid.At(m.Pos()),
		Countdown: m.Payload.Countdown,
	})
	return true
}

func (w *work) tick(m markers.Marker) markers.Marker {
	w.reg = w.reg.Update(m.ID, func(cur markers.Marker) markers.Marker {
		cur.Payload.Countdown--
		return cur
	})
	m.Payload.Countdown--
	w.record(Change{
		Kind:      ChangeMarkerTicked,
		Pos:       m.Pos(),
		MarkerID:  m.ID,
		Effect:    m.Effect,
		Before:    w.grid.At(m.Pos()),
		After:     w.grid.At(m.Pos()),
		Countdown: m.Payload.Countdown,
	})
	return m
}

// prune drops markers left on cells that lost their expected colour.
func (w *work) prune() {
	kept, dropped := w.reg.Prune(&w.grid)
	for _, m := range dropped {
		w.record(Change{
			Kind:     ChangeMarkerRemoved,
			Pos:      m.Pos(),
			MarkerID: m.ID,
			Effect:   m.Effect,
			Before:   w.grid.At(m.Pos()),
			After:    w.grid.At(m.Pos()),
		})
	}
	w.reg = kept
}

// anchor looks up a live anchor with the given effect.
func (w *work) anchor(id string, effect markers.Effect) (markers.Marker, bool) {
	m, ok := w.reg.Get(id)
	if !ok || m.Effect != effect {
		return markers.Marker{}, false
	}
	if w.grid.At(m.Pos()) != m.Owner {
		return markers.Marker{}, false
	}
	return m, true
}

// expire removes a fired anchor at zero together with its stone.
func (w *work) expire(m markers.Marker) {
	w.destroy(m.Pos(), causeOf(m.Effect))
}
