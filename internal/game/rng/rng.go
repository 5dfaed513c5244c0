// Package rng provides the seeded randomness threaded through rule resolution.
//
// Every random choice the engine makes goes through a Source passed in by the
// caller. A Source can be checkpointed and rewound so that a rejected action
// leaves the stream exactly where it was.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// Source yields floats in [0, 1) and supports checkpoint/rewind.
type Source interface {
	Float64() float64
	Checkpoint() State
	Rewind(State)
}

// State is a serialisable position in a Source's stream.
type State struct {
	Seed  uint64 `json:"seed"`
	Draws uint64 `json:"draws"`
}

// PCG is the production Source, backed by math/rand/v2's PCG generator.
type PCG struct {
	seed  uint64
	draws uint64
	pcg   *rand.PCG
}

const streamSalt = 0x9e3779b97f4a7c15

// New returns a PCG source seeded with seed.
func New(seed uint64) *PCG {
	return &PCG{seed: seed, pcg: rand.NewPCG(seed, seed^streamSalt)}
}

// Restore returns a PCG source positioned at st.
func Restore(st State) *PCG {
	p := New(st.Seed)
	p.skip(st.Draws)
	return p
}

// Float64 returns the next value using the top 53 bits of a 64-bit draw.
func (p *PCG) Float64() float64 {
	p.draws++
	return float64(p.pcg.Uint64()>>11) * 0x1p-53
}

// Checkpoint captures the current stream position.
func (p *PCG) Checkpoint() State {
	return State{Seed: p.seed, Draws: p.draws}
}

// Rewind moves the stream back (or forward) to st.
func (p *PCG) Rewind(st State) {
	if st.Seed == p.seed && st.Draws == p.draws {
		return
	}
	p.seed = st.Seed
	p.draws = 0
	p.pcg = rand.NewPCG(st.Seed, st.Seed^streamSalt)
	p.skip(st.Draws)
}

func (p *PCG) skip(n uint64) {
	for i := uint64(0); i < n; i++ {
		p.pcg.Uint64()
	}
	p.draws += n
}

// Sequence is a Source that replays fixed values, cycling when exhausted.
// It is used to pin random choices in tests.
type Sequence struct {
	values []float64
	next   uint64
}

// NewSequence returns a Source yielding values in order. With no values it
// always yields 0.
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: values}
}

// Float64 returns the next fixed value.
func (s *Sequence) Float64() float64 {
	if len(s.values) == 0 {
		s.next++
		return 0
	}
	v := s.values[s.next%uint64(len(s.values))]
	s.next++
	return v
}

// Checkpoint records how many values were consumed.
func (s *Sequence) Checkpoint() State {
	return State{Draws: s.next}
}

// Rewind restores the consumed count.
func (s *Sequence) Rewind(st State) {
	s.next = st.Draws
}

// Index maps a draw onto [0, n). It returns -1 when n <= 0 and never draws
// in that case.
func Index(src Source, n int) int {
	if n <= 0 || src == nil {
		return -1
	}
	idx := int(src.Float64() * float64(n))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

// NewSeed generates a random seed using crypto/rand. It is for choosing a
// match seed only; nothing inside rule resolution may call it.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
