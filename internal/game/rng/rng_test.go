package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCGIsDeterministic(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		va, vb := a.Float64(), b.Float64()
		require.Equal(t, va, vb)
		require.GreaterOrEqual(t, va, 0.0)
		require.Less(t, va, 1.0)
	}
	assert.NotEqual(t, New(1).Float64(), New(2).Float64())
}

func TestPCGRewind(t *testing.T) {
	p := New(7)
	p.Float64()
	cp := p.Checkpoint()
	first := []float64{p.Float64(), p.Float64(), p.Float64()}

	p.Rewind(cp)
	again := []float64{p.Float64(), p.Float64(), p.Float64()}
	assert.Equal(t, first, again)

	restored := Restore(cp)
	assert.Equal(t, first[0], restored.Float64())
}

func TestSequenceCyclesAndRewinds(t *testing.T) {
	s := NewSequence(0, 0.5)
	cp := s.Checkpoint()
	assert.Equal(t, 0.0, s.Float64())
	assert.Equal(t, 0.5, s.Float64())
	assert.Equal(t, 0.0, s.Float64())
	s.Rewind(cp)
	assert.Equal(t, 0.0, s.Float64())
}

func TestIndex(t *testing.T) {
	assert.Equal(t, 0, Index(NewSequence(0), 3))
	assert.Equal(t, 2, Index(NewSequence(0.99), 3))
	assert.Equal(t, 3, Index(NewSequence(0.999999), 4))

	s := NewSequence(0.5)
	assert.Equal(t, -1, Index(s, 0))
	assert.Equal(t, State{Draws: 0}, s.Checkpoint(), "no draw for an empty candidate set")
}

func TestNewSeed(t *testing.T) {
	a, err := NewSeed()
	require.NoError(t, err)
	b, err := NewSeed()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
