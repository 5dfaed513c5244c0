package board

import (
	"fmt"
	"strings"
)

// Size is the edge length of the board.
const Size = 8

// Cell is the content of a single board square. It doubles as the player
// colour: Black and White are both stone colours and player identities.
type Cell uint8

const (
	Empty Cell = iota
	Black
	White
)

var cellNames = map[Cell]string{
	Empty: "empty",
	Black: "black",
	White: "white",
}

func (c Cell) String() string {
	if name, ok := cellNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CELL_%d", int(c))
}

// Opponent returns the other player. Empty has no opponent.
func (c Cell) Opponent() Cell {
	switch c {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

// IsPlayer reports whether c names a player colour.
func (c Cell) IsPlayer() bool {
	return c == Black || c == White
}

// Valid reports whether c is one of the three cell values.
func (c Cell) Valid() bool {
	return c == Empty || c.IsPlayer()
}

// ParsePlayer converts a wire player key ("black" / "white") to a colour.
func ParsePlayer(key string) (Cell, error) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "black":
		return Black, nil
	case "white":
		return White, nil
	default:
		return Empty, fmt.Errorf("unknown player key %q", key)
	}
}

// MarshalText encodes the cell as its lowercase name.
func (c Cell) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid cell value %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a lowercase cell name.
func (c *Cell) UnmarshalText(text []byte) error {
	switch string(text) {
	case "empty", "":
		*c = Empty
	case "black":
		*c = Black
	case "white":
		*c = White
	default:
		return fmt.Errorf("invalid cell %q", string(text))
	}
	return nil
}

// Pos addresses a square by row and column.
type Pos struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// InBounds reports whether p lies on the board.
func (p Pos) InBounds() bool {
	return p.Row >= 0 && p.Row < Size && p.Col >= 0 && p.Col < Size
}

// Add offsets p by a direction.
func (p Pos) Add(d Direction) Pos {
	return Pos{Row: p.Row + d.DRow, Col: p.Col + d.DCol}
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

// Direction is one of the eight compass offsets.
type Direction struct {
	DRow int
	DCol int
}

// Directions lists the scan order used by every capture computation:
// NW, N, NE, W, E, SW, S, SE.
var Directions = [8]Direction{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Grid is the 8x8 board. It is a value type; copying a Grid copies the board.
type Grid [Size][Size]Cell

// NewGrid returns the standard four-stone opening position.
func NewGrid() Grid {
	var g Grid
	g[3][3] = White
	g[3][4] = Black
	g[4][3] = Black
	g[4][4] = White
	return g
}

// At returns the cell at p, or Empty when p is off the board.
func (g *Grid) At(p Pos) Cell {
	if !p.InBounds() {
		return Empty
	}
	return g[p.Row][p.Col]
}

// Set writes c at p. Off-board writes are ignored.
func (g *Grid) Set(p Pos, c Cell) {
	if !p.InBounds() {
		return
	}
	g[p.Row][p.Col] = c
}

// Count returns the number of cells holding c.
func (g *Grid) Count(c Cell) int {
	n := 0
	for r := 0; r < Size; r++ {
		for col := 0; col < Size; col++ {
			if g[r][col] == c {
				n++
			}
		}
	}
	return n
}

// Full reports whether no empty cell remains.
func (g *Grid) Full() bool {
	return g.Count(Empty) == 0
}

// Neighbors returns the on-board cells adjacent to p in direction order.
func Neighbors(p Pos) []Pos {
	out := make([]Pos, 0, 8)
	for _, d := range Directions {
		n := p.Add(d)
		if n.InBounds() {
			out = append(out, n)
		}
	}
	return out
}

// EmptyNeighbors returns the adjacent empty cells of p in direction order.
func EmptyNeighbors(g *Grid, p Pos) []Pos {
	out := make([]Pos, 0, 8)
	for _, n := range Neighbors(p) {
		if g.At(n) == Empty {
			out = append(out, n)
		}
	}
	return out
}

// String renders the grid with '.', 'B' and 'W', one row per line.
func (g Grid) String() string {
	var sb strings.Builder
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			switch g[r][c] {
			case Black:
				sb.WriteByte('B')
			case White:
				sb.WriteByte('W')
			default:
				sb.WriteByte('.')
			}
		}
		if r < Size-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// ParseGrid builds a grid from the String format. Rows may be separated by
// newlines or spaces; anything other than 'B' or 'W' is empty.
func ParseGrid(s string) (Grid, error) {
	var g Grid
	rows := strings.Fields(s)
	if len(rows) != Size {
		return g, fmt.Errorf("expected %d rows, got %d", Size, len(rows))
	}
	for r, row := range rows {
		if len(row) != Size {
			return g, fmt.Errorf("row %d: expected %d cells, got %d", r, Size, len(row))
		}
		for c := 0; c < Size; c++ {
			switch row[c] {
			case 'B':
				g[r][c] = Black
			case 'W':
				g[r][c] = White
			default:
				g[r][c] = Empty
			}
		}
	}
	return g, nil
}
