package effects

import (
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/markers"
)

// Attach registers a marker on its cell. The cell must hold the owner's
// stone and carry no other marker; otherwise nothing happens.
func Attach(g board.Grid, reg markers.Registry, m markers.Marker) Outcome {
	if !m.Owner.IsPlayer() || g.At(m.Pos()) != m.Owner {
		return Start(g, reg)
	}
	if m.Payload.OwnerColor == board.Empty {
		m.Payload.OwnerColor = m.Owner
	}
	w := begin(g, reg)
	w.addMarker(m)
	return w.outcome()
}

// Protect marks p with a temporary or permanent protection for owner.
// A temporary protection expires at owner's next turn-start.
func Protect(g board.Grid, reg markers.Registry, id string, p board.Pos, owner board.Cell, permanent bool, priority int) Outcome {
	m := markers.Marker{
		ID:      id,
		Row:     p.Row,
		Col:     p.Col,
		Effect:  markers.EffectProtected,
		Owner:   owner,
		Payload: markers.Payload{OwnerColor: owner, ChainPriority: priority, ExpiresFor: owner},
	}
	if permanent {
		m.Effect = markers.EffectPermaProtected
		m.Payload.ExpiresFor = board.Empty
	}
	return Attach(g, reg, m)
}

// ExpireProtections removes the temporary protections that expire at
// player's turn-start.
func ExpireProtections(g board.Grid, reg markers.Registry, player board.Cell) Outcome {
	w := begin(g, reg)
	for _, m := range reg {
		if m.Effect == markers.EffectProtected && m.Payload.ExpiresFor == player {
			w.dropMarker(m, CauseExpired)
		}
	}
	return w.outcome()
}
