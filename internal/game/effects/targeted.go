package effects

import (
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/markers"
)

// The targeted resolutions below assume the target already passed
// validation; an empty or off-board cell still yields an empty Outcome.

// DestroyStone empties target and clears its marker.
func DestroyStone(g board.Grid, reg markers.Registry, target board.Pos) Outcome {
	if g.At(target) == board.Empty {
		return Start(g, reg)
	}
	w := begin(g, reg)
	w.destroy(target, CauseDestroy)
	return w.outcome()
}

// SwapStone turns an enemy stone into player's. The converted cell never
// triggers regen; any marker on it is dropped.
func SwapStone(g board.Grid, reg markers.Registry, target board.Pos, player board.Cell) Outcome {
	if g.At(target) != player.Opponent() || !player.IsPlayer() {
		return Start(g, reg)
	}
	w := begin(g, reg)
	w.set(target, player, ChangeFlip, CauseSwap)
	w.prune()
	return w.outcome()
}

// Tempt hands an enemy anchor and its stone to player. Countdown and
// priority carry over.
func Tempt(g board.Grid, reg markers.Registry, target board.Pos, player board.Cell) Outcome {
	m, ok := reg.At(target)
	if !ok || !m.IsTimedAnchor() || m.Owner != player.Opponent() || g.At(target) != m.Owner {
		return Start(g, reg)
	}
	w := begin(g, reg)
	w.set(target, player, ChangeFlip, CauseTempt)
	w.reg = w.reg.Update(m.ID, func(cur markers.Marker) markers.Marker {
		cur.Owner = player
		cur.Payload.OwnerColor = player
		return cur
	})
	w.record(Change{
		Kind:      ChangeMarkerChanged,
		Pos:       target,
		MarkerID:  m.ID,
		Effect:    m.Effect,
		Before:    m.Owner,
		After:     player,
		Countdown: m.Payload.Countdown,
		Cause:     CauseTempt,
	})
	return w.outcome()
}

// Inherit makes one of player's plain stones permanently protected.
func Inherit(g board.Grid, reg markers.Registry, id string, target board.Pos, player board.Cell, priority int) Outcome {
	if _, marked := reg.At(target); marked || g.At(target) != player {
		return Start(g, reg)
	}
	return Protect(g, reg, id, target, player, true, priority)
}
