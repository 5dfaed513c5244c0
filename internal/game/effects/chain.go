package effects

import (
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/markers"
	"github.com/reversi-cards/reversi-server-go/internal/game/rng"
)

// ChainCandidate is one extra run reachable from a primary flip.
type ChainCandidate struct {
	Origin    board.Pos
	Direction board.Direction
	Run       []board.Pos
}

// ChainCandidates enumerates, for every primary flip in order and every
// direction in scan order, the run player would capture from that cell.
// Runs through a flip blocker are not candidates.
func ChainCandidates(g board.Grid, reg markers.Registry, primary []board.Pos, player board.Cell) []ChainCandidate {
	blockers := reg.FlipBlockers()
	var out []ChainCandidate
	for _, origin := range primary {
		if g.At(origin) != player {
			continue
		}
		runs := board.DirectionalRuns(&g, origin, player, blockers)
		for i, run := range runs {
			if len(run) == 0 {
				continue
			}
			out = append(out, ChainCandidate{Origin: origin, Direction: board.Directions[i], Run: run})
		}
	}
	return out
}

// ChainWill extends a placement along the longest candidate run. Ties among
// equally long runs are broken by one draw over the tied list, in enumeration
// order; a single longest run consumes no randomness.
func ChainWill(g board.Grid, reg markers.Registry, primary []board.Pos, player board.Cell, src rng.Source) (Outcome, []board.Pos) {
	candidates := ChainCandidates(g, reg, primary, player)
	if len(candidates) == 0 {
		return Start(g, reg), nil
	}

	longest := 0
	for _, c := range candidates {
		if len(c.Run) > longest {
			longest = len(c.Run)
		}
	}
	var tied []ChainCandidate
	for _, c := range candidates {
		if len(c.Run) == longest {
			tied = append(tied, c)
		}
	}
	pick := 0
	if len(tied) > 1 {
		pick = rng.Index(src, len(tied))
	}

	w := begin(g, reg)
	held := w.flipCells(tied[pick].Run, player, CauseChainWill, false)
	return w.outcome(), held
}
