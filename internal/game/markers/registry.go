package markers

import (
	"errors"
	"fmt"
	"sort"

	"github.com/reversi-cards/reversi-server-go/internal/game/board"
)

var (
	// ErrCellOccupied is returned when a marker would share a cell.
	ErrCellOccupied = errors.New("cell already holds a marker")
	// ErrDuplicateID is returned when a marker id is reused.
	ErrDuplicateID = errors.New("marker id already registered")
	// ErrNotFound is returned for an unknown marker id.
	ErrNotFound = errors.New("marker not found")
	// ErrOffBoard is returned for a position outside the grid.
	ErrOffBoard = errors.New("position off board")
)

// Registry is the single marker list of a game. It is kept sorted row-major
// by cell, which is a total order because no two markers share a cell.
//
// A Registry is treated as a value: every mutating operation returns a new
// registry and leaves the receiver untouched.
type Registry []Marker

func (r Registry) clone() Registry {
	if r == nil {
		return nil
	}
	out := make(Registry, len(r))
	copy(out, r)
	return out
}

func (r Registry) sorted() Registry {
	sort.SliceStable(r, func(i, j int) bool {
		if r[i].Row != r[j].Row {
			return r[i].Row < r[j].Row
		}
		return r[i].Col < r[j].Col
	})
	return r
}

func (r Registry) indexOf(id string) int {
	for i, m := range r {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (r Registry) indexAt(p board.Pos) int {
	for i, m := range r {
		if m.Row == p.Row && m.Col == p.Col {
			return i
		}
	}
	return -1
}

// Add registers m. The marker kind is derived from its effect.
func (r Registry) Add(m Marker) (Registry, error) {
	if !m.Pos().InBounds() {
		return r, fmt.Errorf("add %s at %s: %w", m.Effect, m.Pos(), ErrOffBoard)
	}
	if r.indexOf(m.ID) >= 0 {
		return r, fmt.Errorf("add %s: %w", m.ID, ErrDuplicateID)
	}
	if r.indexAt(m.Pos()) >= 0 {
		return r, fmt.Errorf("add %s at %s: %w", m.Effect, m.Pos(), ErrCellOccupied)
	}
	m.Kind = m.Effect.Kind()
	out := append(r.clone(), m)
	return out.sorted(), nil
}

// Remove drops the marker with the given id. Unknown ids are a no-op.
func (r Registry) Remove(id string) Registry {
	idx := r.indexOf(id)
	if idx < 0 {
		return r
	}
	out := make(Registry, 0, len(r)-1)
	out = append(out, r[:idx]...)
	return append(out, r[idx+1:]...)
}

// RemoveAt drops whatever marker sits on p.
func (r Registry) RemoveAt(p board.Pos) Registry {
	idx := r.indexAt(p)
	if idx < 0 {
		return r
	}
	return r.Remove(r[idx].ID)
}

// Move relocates a marker to an unoccupied cell.
func (r Registry) Move(id string, to board.Pos) (Registry, error) {
	idx := r.indexOf(id)
	if idx < 0 {
		return r, fmt.Errorf("move %s: %w", id, ErrNotFound)
	}
	if !to.InBounds() {
		return r, fmt.Errorf("move %s to %s: %w", id, to, ErrOffBoard)
	}
	if other := r.indexAt(to); other >= 0 && other != idx {
		return r, fmt.Errorf("move %s to %s: %w", id, to, ErrCellOccupied)
	}
	out := r.clone()
	out[idx].Row = to.Row
	out[idx].Col = to.Col
	return out.sorted(), nil
}

// Update replaces the marker with the result of fn. The position and id are
// preserved; use Move to relocate.
func (r Registry) Update(id string, fn func(Marker) Marker) Registry {
	idx := r.indexOf(id)
	if idx < 0 || fn == nil {
		return r
	}
	out := r.clone()
	prev := out[idx]
	next := fn(prev)
	next.ID, next.Row, next.Col = prev.ID, prev.Row, prev.Col
	next.Kind = next.Effect.Kind()
	out[idx] = next
	return out
}

// At returns the marker on p.
func (r Registry) At(p board.Pos) (Marker, bool) {
	idx := r.indexAt(p)
	if idx < 0 {
		return Marker{}, false
	}
	return r[idx], true
}

// Get returns the marker with the given id.
func (r Registry) Get(id string) (Marker, bool) {
	idx := r.indexOf(id)
	if idx < 0 {
		return Marker{}, false
	}
	return r[idx], true
}

// Owned returns the markers of owner, optionally restricted to effects, ordered
// by chain priority and then by cell.
func (r Registry) Owned(owner board.Cell, effects ...Effect) []Marker {
	want := make(map[Effect]bool, len(effects))
	for _, e := range effects {
		want[e] = true
	}
	var out []Marker
	for _, m := range r {
		if m.Owner != owner {
			continue
		}
		if len(want) > 0 && !want[m.Effect] {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Payload.ChainPriority < out[j].Payload.ChainPriority
	})
	return out
}

// FlipBlockers returns the cells that captures may not flip.
func (r Registry) FlipBlockers() board.Blockers {
	out := board.Blockers{}
	for _, m := range r {
		if m.BlocksFlip() {
			out[m.Pos()] = struct{}{}
		}
	}
	return out
}

// ConversionBlockers returns the cells a dragon may not convert.
func (r Registry) ConversionBlockers() board.Blockers {
	out := board.Blockers{}
	for _, m := range r {
		if m.BlocksConversion() {
			out[m.Pos()] = struct{}{}
		}
	}
	return out
}

// Prune drops markers whose cell no longer holds the colour they expect.
// Regen reversion has to run before Prune sees the flipped cell.
func (r Registry) Prune(g *board.Grid) (Registry, []Marker) {
	var kept Registry
	var dropped []Marker
	for _, m := range r {
		expect := m.Payload.OwnerColor
		if expect == board.Empty {
			expect = m.Owner
		}
		if g.At(m.Pos()) == expect {
			kept = append(kept, m)
		} else {
			dropped = append(dropped, m)
		}
	}
	return kept, dropped
}
