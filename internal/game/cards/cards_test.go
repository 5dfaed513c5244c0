package cards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reversi-cards/reversi-server-go/internal/game/rng"
)

func TestDefaultCatalogCoversEveryType(t *testing.T) {
	c := Default()
	for typ := range knownTypes {
		_, ok := c.Definition(typ)
		assert.True(t, ok, "missing %s", typ)
	}
	assert.Equal(t, len(c.BuildDeck()), c.Size())
}

func TestCardIDs(t *testing.T) {
	id := ID(TimeBomb, 2)
	assert.Equal(t, "time_bomb#2", id)

	typ, ok := TypeOf(id)
	require.True(t, ok)
	assert.Equal(t, TimeBomb, typ)

	for _, bad := range []string{"", "time_bomb", "time_bomb#0", "time_bomb#x", "nuke#1"} {
		_, ok := TypeOf(bad)
		assert.False(t, ok, bad)
	}

	d, ok := Default().Lookup("gold_stone#1")
	require.True(t, ok)
	assert.Equal(t, 6, d.Cost)
}

func TestShuffleIsDeterministicPermutation(t *testing.T) {
	deck := Default().BuildDeck()

	a := Shuffle(deck, rng.New(99))
	b := Shuffle(deck, rng.New(99))
	assert.Equal(t, a, b)
	assert.ElementsMatch(t, deck, a)
	assert.NotEqual(t, deck, a)

	// Zero draws always swap with index 0, which rotates the deck.
	small := Shuffle([]string{"a", "b", "c"}, rng.NewSequence(0))
	assert.Equal(t, []string{"b", "c", "a"}, small)
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"empty":    "cards: []",
		"unknown":  "cards:\n  - {type: NUKE, cost: 1, copies: 1}",
		"copies":   "cards:\n  - {type: GOLD_STONE, cost: 1, copies: 0}",
		"cost":     "cards:\n  - {type: GOLD_STONE, cost: -1, copies: 1}",
		"twice":    "cards:\n  - {type: GOLD_STONE, cost: 1, copies: 1}\n  - {type: GOLD_STONE, cost: 2, copies: 1}",
		"not yaml": "cards: [",
	}
	for name, raw := range cases {
		_, err := Parse([]byte(raw))
		assert.Error(t, err, name)
	}

	c, err := Parse([]byte("cards:\n  - {type: CHAIN_WILL, cost: 5, copies: 3}"))
	require.NoError(t, err)
	assert.Equal(t, []string{"chain_will#1", "chain_will#2", "chain_will#3"}, c.BuildDeck())
}

func TestTypeTraits(t *testing.T) {
	assert.True(t, DestroyOneStone.Targeted())
	assert.True(t, DoublePlace.Immediate())
	assert.False(t, GoldStone.Immediate())
}
