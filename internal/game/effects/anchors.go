package effects

import (
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/markers"
	"github.com/reversi-cards/reversi-server-go/internal/game/rng"
)

// Trigger says how an anchor fire was caused.
type Trigger int

const (
	// TriggerTurnStart is the owner's turn-start fire; it decrements first.
	TriggerTurnStart Trigger = iota
	// TriggerPlacement is the immediate fire on placement; no decrement.
	TriggerPlacement
)

// arm applies the countdown rule: a turn-start fire decrements and fires when
// the new value is >= 0. The bool is false when the anchor must not fire.
func (w *work) arm(m markers.Marker, trigger Trigger) (markers.Marker, bool) {
	if trigger != TriggerTurnStart {
		return m, true
	}
	m = w.tick(m)
	if m.Payload.Countdown < 0 {
		w.expire(m)
		return m, false
	}
	return m, true
}

// settle removes an anchor whose decrementing fire reached zero.
func (w *work) settle(m markers.Marker, trigger Trigger) {
	if trigger != TriggerTurnStart || m.Payload.Countdown > 0 {
		return
	}
	if _, ok := w.reg.Get(m.ID); !ok {
		return
	}
	w.expire(m)
}

// Breed fires a breeding anchor: one owner stone is spawned on a uniformly
// chosen empty neighbour and captures from there.
func Breed(g board.Grid, reg markers.Registry, anchorID string, src rng.Source, trigger Trigger) Outcome {
	w := begin(g, reg)
	m, ok := w.anchor(anchorID, markers.EffectBreeding)
	if !ok {
		return Start(g, reg)
	}
	m, fire := w.arm(m, trigger)
	if !fire {
		return w.outcome()
	}

	empty := board.EmptyNeighbors(&w.grid, m.Pos())
	if idx := rng.Index(src, len(empty)); idx >= 0 {
		spawn := empty[idx]
		w.set(spawn, m.Owner, ChangeSpawn, CauseBreeding)
		w.captureFrom(spawn, m.Owner, CauseBreeding)
	}
	w.settle(m, trigger)
	return w.outcome()
}

// Dragon fires a dragon anchor: every adjacent opponent stone is converted
// unless a conversion blocker stands on it. Conversions never trigger regen
// captures.
func Dragon(g board.Grid, reg markers.Registry, anchorID string, trigger Trigger) Outcome {
	w := begin(g, reg)
	m, ok := w.anchor(anchorID, markers.EffectDragon)
	if !ok {
		return Start(g, reg)
	}
	m, fire := w.arm(m, trigger)
	if !fire {
		return w.outcome()
	}

	blockers := w.reg.ConversionBlockers()
	opponent := m.Owner.Opponent()
	var targets []board.Pos
	for _, n := range board.Neighbors(m.Pos()) {
		if w.grid.At(n) == opponent && !blockers.Has(n) {
			targets = append(targets, n)
		}
	}
	w.flipCells(targets, m.Owner, CauseDragon, true)
	w.settle(m, trigger)
	return w.outcome()
}

// DestroyGod fires an ultimate destroy god anchor: every occupied neighbour is
// destroyed regardless of colour or marker.
func DestroyGod(g board.Grid, reg markers.Registry, anchorID string, trigger Trigger) Outcome {
	w := begin(g, reg)
	m, ok := w.anchor(anchorID, markers.EffectUltimateDestroyGod)
	if !ok {
		return Start(g, reg)
	}
	m, fire := w.arm(m, trigger)
	if !fire {
		return w.outcome()
	}

	for _, n := range board.Neighbors(m.Pos()) {
		if w.grid.At(n) != board.Empty {
			w.destroy(n, CauseDestroyGod)
		}
	}
	w.settle(m, trigger)
	return w.outcome()
}

// Hyperactive moves a hyperactive anchor to a uniformly chosen empty
// neighbour and captures from its new cell. Boxed in, it is destroyed.
func Hyperactive(g board.Grid, reg markers.Registry, anchorID string, src rng.Source) Outcome {
	w := begin(g, reg)
	m, ok := w.anchor(anchorID, markers.EffectHyperactive)
	if !ok {
		return Start(g, reg)
	}

	from := m.Pos()
	empty := board.EmptyNeighbors(&w.grid, from)
	idx := rng.Index(src, len(empty))
	if idx < 0 {
		w.expire(m)
		return w.outcome()
	}

	to := empty[idx]
	next, err := w.reg.Move(m.ID, to)
	if err != nil {
		return Start(g, reg)
	}
	w.reg = next
	w.grid.Set(from, board.Empty)
	w.grid.Set(to, m.Owner)
	origin := from
	w.record(Change{
		Kind:     ChangeMove,
		Pos:      to,
		From:     &origin,
		Before:   board.Empty,
		After:    m.Owner,
		MarkerID: m.ID,
		Effect:   m.Effect,
		Cause:    CauseHyperactive,
	})
	w.captureFrom(to, m.Owner, CauseHyperactive)
	return w.outcome()
}
