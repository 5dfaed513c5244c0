package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGridOpening(t *testing.T) {
	g := NewGrid()
	assert.Equal(t, White, g.At(Pos{3, 3}))
	assert.Equal(t, Black, g.At(Pos{3, 4}))
	assert.Equal(t, Black, g.At(Pos{4, 3}))
	assert.Equal(t, White, g.At(Pos{4, 4}))
	assert.Equal(t, 60, g.Count(Empty))
}

func TestLegalMovesOpening(t *testing.T) {
	g := NewGrid()
	moves := LegalMoves(&g, Black, nil)
	assert.Equal(t, []Pos{{2, 3}, {3, 2}, {4, 5}, {5, 4}}, moves)
}

func TestChainFlipsStandardOpening(t *testing.T) {
	g := NewGrid()
	flips := ChainFlips(&g, Pos{2, 3}, Black, nil)
	assert.Equal(t, []Pos{{3, 3}}, flips)

	// Occupied and off-board cells never flip anything.
	assert.Nil(t, ChainFlips(&g, Pos{3, 3}, Black, nil))
	assert.Nil(t, ChainFlips(&g, Pos{-1, 0}, Black, nil))
}

func TestChainFlipsMultipleDirections(t *testing.T) {
	g, err := ParseGrid(`
		........
		........
		..B.B...
		...W....
		..BW.WB.
		...W....
		...B....
		........`)
	require.NoError(t, err)

	flips := ChainFlips(&g, Pos{4, 4}, Black, nil)
	// NW (3,3)->(2,2) closes with B; W (4,3)->(4,2) closes; E (4,5)->(4,6) closes; SW none.
	assert.Equal(t, []Pos{{3, 3}, {4, 3}, {4, 5}}, flips)
}

func TestBlockedDirectionYieldsNothing(t *testing.T) {
	g, err := ParseGrid(`
		........
		........
		........
		.BWWW...
		........
		........
		........
		........`)
	require.NoError(t, err)

	flips := ChainFlips(&g, Pos{3, 5}, Black, nil)
	assert.Equal(t, []Pos{{3, 4}, {3, 3}, {3, 2}}, flips)

	// A single protected stone in the middle voids the whole direction.
	blocked := NewBlockers(Pos{3, 3})
	assert.Empty(t, ChainFlips(&g, Pos{3, 5}, Black, blocked))
	assert.False(t, HasLegalMove(&g, Black, blocked))
}

func TestCapturesFromOccupiedCell(t *testing.T) {
	g, err := ParseGrid(`
		........
		.BWB....
		........
		........
		........
		........
		........
		........`)
	require.NoError(t, err)

	assert.Equal(t, []Pos{{1, 2}}, CapturesFrom(&g, Pos{1, 1}, Black, nil))
	runs := DirectionalRuns(&g, Pos{1, 1}, Black, nil)
	assert.Equal(t, []Pos{{1, 2}}, runs[4])
	assert.Nil(t, runs[0])
}

func TestEmptyNeighborsAtCorner(t *testing.T) {
	g := NewGrid()
	assert.Equal(t, []Pos{{0, 1}, {1, 0}, {1, 1}}, EmptyNeighbors(&g, Pos{0, 0}))
}

func TestGridStringRoundTrip(t *testing.T) {
	g := NewGrid()
	parsed, err := ParseGrid(g.String())
	require.NoError(t, err)
	assert.Equal(t, g, parsed)
}

func TestParsePlayer(t *testing.T) {
	p, err := ParsePlayer(" Black ")
	require.NoError(t, err)
	assert.Equal(t, Black, p)
	assert.Equal(t, White, p.Opponent())

	_, err = ParsePlayer("red")
	assert.Error(t, err)
}
