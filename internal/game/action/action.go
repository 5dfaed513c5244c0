// Package action holds the wire-level action, its schema validation and the
// per-game tracker that guards against duplicate and out-of-order submissions.
package action

import (
	"fmt"

	"github.com/reversi-cards/reversi-server-go/internal/game/board"
)

// Type is the action kind on the wire.
type Type string

const (
	TypePlace Type = "place"
	TypePass  Type = "pass"
)

// Action is one player submission.
type Action struct {
	ActionID      string     `json:"actionId"`
	TurnIndex     int        `json:"turnIndex"`
	PlayerKey     string     `json:"playerKey"`
	Type          Type       `json:"type"`
	Row           *int       `json:"row,omitempty"`
	Col           *int       `json:"col,omitempty"`
	UseCardID     string     `json:"useCardId,omitempty"`
	DestroyTarget *board.Pos `json:"destroyTarget,omitempty"`
	TemptTarget   *board.Pos `json:"temptTarget,omitempty"`
	InheritTarget *board.Pos `json:"inheritTarget,omitempty"`
	SwapTarget    *board.Pos `json:"swapTarget,omitempty"`
	CancelPending bool       `json:"cancelPending,omitempty"`
}

// Place builds a placement action.
func Place(id string, turnIndex int, player board.Cell, row, col int) Action {
	return Action{
		ActionID:  id,
		TurnIndex: turnIndex,
		PlayerKey: player.String(),
		Type:      TypePlace,
		Row:       &row,
		Col:       &col,
	}
}

// Pass builds a pass action.
func Pass(id string, turnIndex int, player board.Cell) Action {
	return Action{ActionID: id, TurnIndex: turnIndex, PlayerKey: player.String(), Type: TypePass}
}

// WithCard returns a copy of a that uses cardID.
func (a Action) WithCard(cardID string) Action {
	a.UseCardID = cardID
	return a
}

// Player returns the acting colour. It is Empty for an unknown key.
func (a Action) Player() board.Cell {
	p, err := board.ParsePlayer(a.PlayerKey)
	if err != nil {
		return board.Empty
	}
	return p
}

// Pos returns the placement cell. ok is false for passes or missing coordinates.
func (a Action) Pos() (board.Pos, bool) {
	if a.Type != TypePlace || a.Row == nil || a.Col == nil {
		return board.Pos{}, false
	}
	return board.Pos{Row: *a.Row, Col: *a.Col}, true
}

// Target returns the target carried in the named wire field.
func (a Action) Target(field string) *board.Pos {
	switch field {
	case "destroyTarget":
		return a.DestroyTarget
	case "temptTarget":
		return a.TemptTarget
	case "inheritTarget":
		return a.InheritTarget
	case "swapTarget":
		return a.SwapTarget
	default:
		return nil
	}
}

func (a Action) String() string {
	if p, ok := a.Pos(); ok {
		return fmt.Sprintf("%s#%d %s %s %s", a.ActionID, a.TurnIndex, a.PlayerKey, a.Type, p)
	}
	return fmt.Sprintf("%s#%d %s %s", a.ActionID, a.TurnIndex, a.PlayerKey, a.Type)
}
