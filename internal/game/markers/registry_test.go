package markers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reversi-cards/reversi-server-go/internal/game/board"
)

func anchor(id string, row, col int, effect Effect, owner board.Cell, countdown int) Marker {
	return Marker{
		ID:     id,
		Row:    row,
		Col:    col,
		Effect: effect,
		Owner:  owner,
		Payload: Payload{
			Countdown:  countdown,
			OwnerColor: owner,
		},
	}
}

func TestRegistryRejectsCoLocation(t *testing.T) {
	var r Registry
	r, err := r.Add(anchor("m1", 3, 3, EffectDragon, board.Black, 5))
	require.NoError(t, err)

	_, err = r.Add(Marker{ID: "m2", Row: 3, Col: 3, Effect: EffectTimeBomb, Owner: board.White})
	assert.ErrorIs(t, err, ErrCellOccupied)

	_, err = r.Add(anchor("m1", 0, 0, EffectBreeding, board.Black, 3))
	assert.ErrorIs(t, err, ErrDuplicateID)

	_, err = r.Add(anchor("m3", 8, 0, EffectBreeding, board.Black, 3))
	assert.ErrorIs(t, err, ErrOffBoard)

	assert.Len(t, r, 1)
	assert.Equal(t, KindAnchor, r[0].Kind)
}

func TestRegistryIsValueTyped(t *testing.T) {
	var r Registry
	r, err := r.Add(anchor("m1", 2, 2, EffectBreeding, board.Black, 3))
	require.NoError(t, err)

	next := r.Update("m1", func(m Marker) Marker {
		m.Payload.Countdown--
		return m
	})
	assert.Equal(t, 3, r[0].Payload.Countdown)
	assert.Equal(t, 2, next[0].Payload.Countdown)

	removed := r.Remove("m1")
	assert.Len(t, r, 1)
	assert.Empty(t, removed)
}

func TestRegistryKeepsCellOrder(t *testing.T) {
	var r Registry
	var err error
	r, err = r.Add(anchor("m1", 5, 5, EffectDragon, board.Black, 5))
	require.NoError(t, err)
	r, err = r.Add(anchor("m2", 1, 7, EffectBreeding, board.White, 3))
	require.NoError(t, err)
	r, err = r.Add(anchor("m3", 1, 2, EffectProtected, board.Black, 0))
	require.NoError(t, err)

	ids := []string{r[0].ID, r[1].ID, r[2].ID}
	assert.Equal(t, []string{"m3", "m2", "m1"}, ids)

	r, err = r.Move("m1", board.Pos{Row: 0, Col: 0})
	require.NoError(t, err)
	assert.Equal(t, "m1", r[0].ID)

	_, err = r.Move("m1", board.Pos{Row: 1, Col: 2})
	assert.ErrorIs(t, err, ErrCellOccupied)
	_, err = r.Move("nope", board.Pos{Row: 4, Col: 4})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOwnedOrdersByChainPriority(t *testing.T) {
	var r Registry
	var err error
	late := anchor("late", 0, 0, EffectDragon, board.Black, 5)
	late.Payload.ChainPriority = 9
	early := anchor("early", 7, 7, EffectBreeding, board.Black, 3)
	early.Payload.ChainPriority = 1
	other := anchor("other", 4, 4, EffectBreeding, board.White, 3)

	for _, m := range []Marker{late, early, other} {
		r, err = r.Add(m)
		require.NoError(t, err)
	}

	owned := r.Owned(board.Black)
	require.Len(t, owned, 2)
	assert.Equal(t, "early", owned[0].ID)
	assert.Equal(t, "late", owned[1].ID)

	assert.Len(t, r.Owned(board.Black, EffectDragon), 1)
	assert.Empty(t, r.Owned(board.White, EffectDragon))
}

func TestBlockerSets(t *testing.T) {
	var r Registry
	var err error
	for _, m := range []Marker{
		anchor("p", 0, 0, EffectProtected, board.Black, 0),
		anchor("pp", 0, 1, EffectPermaProtected, board.Black, 0),
		anchor("d", 0, 2, EffectDragon, board.Black, 5),
		anchor("b", 0, 3, EffectBreeding, board.Black, 3),
		anchor("u", 0, 4, EffectUltimateDestroyGod, board.Black, 3),
		anchor("h", 0, 5, EffectHyperactive, board.Black, 0),
		anchor("r", 0, 6, EffectRegen, board.Black, 0),
		{ID: "t", Row: 0, Col: 7, Effect: EffectTimeBomb, Owner: board.Black},
	} {
		r, err = r.Add(m)
		require.NoError(t, err)
	}

	flip := r.FlipBlockers()
	assert.Len(t, flip, 5)
	for col := 0; col <= 4; col++ {
		assert.True(t, flip.Has(board.Pos{Row: 0, Col: col}), "col %d", col)
	}

	conv := r.ConversionBlockers()
	assert.Len(t, conv, 5)
	for col := 0; col <= 4; col++ {
		assert.True(t, conv.Has(board.Pos{Row: 0, Col: col}), "col %d", col)
	}
}

func TestViewsRoundTripLosslessly(t *testing.T) {
	var r Registry
	var err error
	regen := anchor("r1", 1, 1, EffectRegen, board.Black, 0)
	regen.Payload.RegenRemaining = 1
	regen.Payload.ChainPriority = 4
	prot := anchor("p1", 2, 2, EffectProtected, board.White, 0)
	prot.Payload.ExpiresFor = board.White
	bomb := Marker{ID: "b1", Row: 6, Col: 6, Effect: EffectTimeBomb, Owner: board.Black,
		Payload: Payload{Countdown: 3, PlacedTurn: 7, OwnerColor: board.Black, ChainPriority: 2}}

	for _, m := range []Marker{regen, bomb, prot} {
		r, err = r.Add(m)
		require.NoError(t, err)
	}

	anchors := r.Anchors()
	bombs := r.Bombs()
	assert.Len(t, anchors, 2)
	require.Len(t, bombs, 1)
	assert.Equal(t, 7, bombs[0].PlacedTurn)

	back, err := FromViews(anchors, bombs)
	require.NoError(t, err)
	assert.Equal(t, r, back)
}

func TestPruneDropsStaleMarkers(t *testing.T) {
	g := board.NewGrid()
	var r Registry
	var err error
	for _, m := range []Marker{
		anchor("keep", 3, 4, EffectDragon, board.Black, 5),
		anchor("flipped", 3, 3, EffectBreeding, board.Black, 3),
		anchor("empty", 0, 0, EffectProtected, board.Black, 0),
	} {
		r, err = r.Add(m)
		require.NoError(t, err)
	}

	kept, dropped := r.Prune(&g)
	require.Len(t, kept, 1)
	assert.Equal(t, "keep", kept[0].ID)
	assert.Len(t, dropped, 2)
}
