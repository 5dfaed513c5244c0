package markers

import "github.com/reversi-cards/reversi-server-go/internal/game/board"

// AnchorView is the anchor-shaped projection used by the effect modules.
type AnchorView struct {
	ID     string
	Pos    board.Pos
	Effect Effect
	Owner  board.Cell
	Payload
}

// BombView is the bomb-shaped projection used by the time bomb module.
type BombView struct {
	ID    string
	Pos   board.Pos
	Owner board.Cell
	Payload
}

// AnchorFrom projects m. The caller is responsible for m being an anchor.
func AnchorFrom(m Marker) AnchorView {
	return AnchorView{ID: m.ID, Pos: m.Pos(), Effect: m.Effect, Owner: m.Owner, Payload: m.Payload}
}

// BombFrom projects m. The caller is responsible for m being a bomb.
func BombFrom(m Marker) BombView {
	return BombView{ID: m.ID, Pos: m.Pos(), Owner: m.Owner, Payload: m.Payload}
}

// Marker converts the view back to the unified representation.
func (a AnchorView) Marker() Marker {
	return Marker{
		ID:      a.ID,
		Row:     a.Pos.Row,
		Col:     a.Pos.Col,
		Kind:    KindAnchor,
		Effect:  a.Effect,
		Owner:   a.Owner,
		Payload: a.Payload,
	}
}

// Marker converts the view back to the unified representation.
func (b BombView) Marker() Marker {
	return Marker{
		ID:      b.ID,
		Row:     b.Pos.Row,
		Col:     b.Pos.Col,
		Kind:    KindBomb,
		Effect:  EffectTimeBomb,
		Owner:   b.Owner,
		Payload: b.Payload,
	}
}

// Anchors returns every anchor-kind marker as a view, in registry order.
func (r Registry) Anchors() []AnchorView {
	var out []AnchorView
	for _, m := range r {
		if m.Kind == KindAnchor {
			out = append(out, AnchorFrom(m))
		}
	}
	return out
}

// Bombs returns every bomb as a view, in registry order.
func (r Registry) Bombs() []BombView {
	var out []BombView
	for _, m := range r {
		if m.Kind == KindBomb {
			out = append(out, BombFrom(m))
		}
	}
	return out
}

// FromViews rebuilds a registry from kind-specific views. Co-located or
// duplicate entries are reported as errors.
func FromViews(anchors []AnchorView, bombs []BombView) (Registry, error) {
	var r Registry
	var err error
	for _, a := range anchors {
		if r, err = r.Add(a.Marker()); err != nil {
			return nil, err
		}
	}
	for _, b := range bombs {
		if r, err = r.Add(b.Marker()); err != nil {
			return nil, err
		}
	}
	return r, nil
}
