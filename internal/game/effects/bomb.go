package effects

import (
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/markers"
)

// TickBombs advances owner's bombs by one. A bomb reaching zero destroys its
// own cell and all eight neighbours, clearing every marker there.
//
// The engine ticks at turn-start, before that turn's placement, so a new bomb
// first ticks at its owner's next turn-start. Skipping bombs planted on
// turnNumber only matters to callers that tick after placing.
func TickBombs(g board.Grid, reg markers.Registry, owner board.Cell, turnNumber int) Outcome {
	w := begin(g, reg)
	for _, b := range reg.Bombs() {
		if b.Owner != owner || b.PlacedTurn == turnNumber {
			continue
		}
		// An earlier explosion this phase may already have removed it.
		if _, ok := w.reg.Get(b.ID); !ok {
			continue
		}
		m := w.tick(b.Marker())
		if m.Payload.Countdown > 0 {
			continue
		}
		w.explode(m)
	}
	return w.outcome()
}

func (w *work) explode(m markers.Marker) {
	center := m.Pos()
	w.destroy(center, CauseTimeBomb)
	for _, n := range board.Neighbors(center) {
		w.destroy(n, CauseTimeBomb)
	}
}
