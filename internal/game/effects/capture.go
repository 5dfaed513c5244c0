package effects

import (
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/markers"
)

type pendingCapture struct {
	from   board.Pos
	player board.Cell
}

// flipCells turns cells to player in order. A cell carrying an armed regen
// marker of another owner is reverted on the spot; unless suppressed, the
// regen owner then captures from that cell. Reversion captures are queued
// and may cascade. It returns the cells of the original list that still hold
// player once everything settled.
func (w *work) flipCells(cells []board.Pos, player board.Cell, cause Cause, suppressRegen bool) []board.Pos {
	var queue []pendingCapture

	apply := func(run []board.Pos, who board.Cell, why Cause) {
		for _, p := range run {
			if w.grid.At(p) == board.Empty || w.grid.At(p) == who {
				continue
			}
			w.set(p, who, ChangeFlip, why)
			m, ok := w.reg.At(p)
			if !ok || m.Effect != markers.EffectRegen || m.Owner == who || m.Payload.RegenRemaining <= 0 {
				continue
			}
			w.revert(m)
			if !suppressRegen {
				queue = append(queue, pendingCapture{from: p, player: m.Owner})
			}
		}
	}

	apply(cells, player, cause)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if w.grid.At(next.from) != next.player {
			continue
		}
		run := board.CapturesFrom(&w.grid, next.from, next.player, w.reg.FlipBlockers())
		apply(run, next.player, CauseRegen)
	}
	w.prune()

	var held []board.Pos
	for _, p := range cells {
		if w.grid.At(p) == player {
			held = append(held, p)
		}
	}
	return held
}

// revert restores a regen cell to its owner and spends one reversion.
func (w *work) revert(m markers.Marker) {
	p := m.Pos()
	before := w.grid.At(p)
	w.grid.Set(p, m.Owner)
	w.record(Change{Kind: ChangeRevert, Pos: p, Before: before, After: m.Owner, MarkerID: m.ID, Effect: m.Effect, Cause: CauseRegen})

	remaining := m.Payload.RegenRemaining - 1
	if remaining <= 0 {
		w.dropMarker(m, CauseRegen)
		return
	}
	w.reg = w.reg.Update(m.ID, func(cur markers.Marker) markers.Marker {
		cur.Payload.RegenRemaining = remaining
		return cur
	})
}

// captureFrom scans from an occupied cell and flips what player captures.
func (w *work) captureFrom(from board.Pos, player board.Cell, cause Cause) []board.Pos {
	run := board.CapturesFrom(&w.grid, from, player, w.reg.FlipBlockers())
	if len(run) == 0 {
		return nil
	}
	return w.flipCells(run, player, cause, false)
}

// Place puts a player stone on p and flips flips, which the caller computed
// with board.ChainFlips (or leaves empty for a free placement). The returned
// Outcome records the spawn followed by every flip, reversion and regen
// capture.
func Place(g board.Grid, reg markers.Registry, p board.Pos, player board.Cell, flips []board.Pos) (Outcome, []board.Pos) {
	if !p.InBounds() || g.At(p) != board.Empty || !player.IsPlayer() {
		return Start(g, reg), nil
	}
	w := begin(g, reg)
	w.set(p, player, ChangeSpawn, CauseCapture)
	held := w.flipCells(flips, player, CauseCapture, false)
	return w.outcome(), held
}

// Flip turns cells to player as a capture would, including regen handling.
func Flip(g board.Grid, reg markers.Registry, cells []board.Pos, player board.Cell, suppressRegen bool) (Outcome, []board.Pos) {
	w := begin(g, reg)
	held := w.flipCells(cells, player, CauseCapture, suppressRegen)
	return w.outcome(), held
}
