package board

// Blockers is a read-only set of cells that cannot be flipped or converted.
type Blockers map[Pos]struct{}

// NewBlockers builds a blocker set from positions.
func NewBlockers(positions ...Pos) Blockers {
	b := make(Blockers, len(positions))
	for _, p := range positions {
		b[p] = struct{}{}
	}
	return b
}

// Has reports whether p is blocked. A nil set blocks nothing.
func (b Blockers) Has(p Pos) bool {
	if b == nil {
		return false
	}
	_, ok := b[p]
	return ok
}

// DirectionalRuns returns, for each entry of Directions, the cells that a
// stone of colour player at from would capture in that direction. A direction
// yields nil when the run is not closed by a player stone or when any cell of
// the run is blocked. The cell at from itself is not inspected.
func DirectionalRuns(g *Grid, from Pos, player Cell, blockers Blockers) [8][]Pos {
	var runs [8][]Pos
	if !player.IsPlayer() || !from.InBounds() {
		return runs
	}
	opponent := player.Opponent()
	for i, d := range Directions {
		var run []Pos
		blocked := false
		cur := from.Add(d)
		for cur.InBounds() && g.At(cur) == opponent {
			if blockers.Has(cur) {
				blocked = true
			}
			run = append(run, cur)
			cur = cur.Add(d)
		}
		if blocked || len(run) == 0 || !cur.InBounds() || g.At(cur) != player {
			continue
		}
		runs[i] = run
	}
	return runs
}

// CapturesFrom returns every cell captured by a player stone standing at from,
// in direction order and outward within each direction. from may already be
// occupied; this is the scan used after regen, breeding and relocation.
func CapturesFrom(g *Grid, from Pos, player Cell, blockers Blockers) []Pos {
	runs := DirectionalRuns(g, from, player, blockers)
	var out []Pos
	for _, run := range runs {
		out = append(out, run...)
	}
	return out
}

// ChainFlips returns the cells flipped by placing a player stone at p. It
// returns nil when p is off the board or occupied.
func ChainFlips(g *Grid, p Pos, player Cell, blockers Blockers) []Pos {
	if !p.InBounds() || g.At(p) != Empty {
		return nil
	}
	return CapturesFrom(g, p, player, blockers)
}

// LegalMoves returns the empty cells where player would flip at least one
// stone, in row-major order.
func LegalMoves(g *Grid, player Cell, blockers Blockers) []Pos {
	var moves []Pos
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			p := Pos{Row: r, Col: c}
			if len(ChainFlips(g, p, player, blockers)) > 0 {
				moves = append(moves, p)
			}
		}
	}
	return moves
}

// HasLegalMove reports whether LegalMoves would be non-empty.
func HasLegalMove(g *Grid, player Cell, blockers Blockers) bool {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if len(ChainFlips(g, Pos{Row: r, Col: c}, player, blockers)) > 0 {
				return true
			}
		}
	}
	return false
}
