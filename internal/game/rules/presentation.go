package rules

import (
	"fmt"
	"strings"

	"github.com/reversi-cards/reversi-server-go/internal/game/board"
)

// PresentationType is the coarse event kind consumed by renderers.
type PresentationType string

const (
	PresentSpawn   PresentationType = "spawn"
	PresentDestroy PresentationType = "destroy"
	PresentChange  PresentationType = "change"
	PresentMove    PresentationType = "move"
	PresentLog     PresentationType = "log"
)

// PresentationEvent is a replay-safe description of one visible change.
type PresentationEvent struct {
	Type        PresentationType `json:"type"`
	Row         int              `json:"row"`
	Col         int              `json:"col"`
	From        *board.Pos       `json:"from,omitempty"`
	To          *board.Pos       `json:"to,omitempty"`
	OwnerBefore board.Cell       `json:"ownerBefore,omitempty"`
	OwnerAfter  board.Cell       `json:"ownerAfter,omitempty"`
	StoneID     string           `json:"stoneId,omitempty"`
	Message     string           `json:"message,omitempty"`
	ActionID    string           `json:"actionId"`
	TurnIndex   int              `json:"turnIndex"`
	PlyIndex    int              `json:"plyIndex"`
}

// Present derives presentation events from an action's event log, one per
// event, keeping the ply index of the source event.
func Present(events []Event) []PresentationEvent {
	out := make([]PresentationEvent, 0, len(events))
	for _, e := range events {
		out = append(out, present(e))
	}
	return out
}

// StoneID is the deterministic id of the stone created by an event.
func StoneID(actionID string, plyIndex int) string {
	return fmt.Sprintf("%s/%d", actionID, plyIndex)
}

func present(e Event) PresentationEvent {
	pe := PresentationEvent{
		ActionID:  e.ActionID,
		TurnIndex: e.TurnIndex,
		PlyIndex:  e.PlyIndex,
	}
	if e.Payload.Pos != nil {
		pe.Row, pe.Col = e.Payload.Pos.Row, e.Payload.Pos.Col
	}
	if !e.Type.IsStoneEvent() {
		pe.Type = PresentLog
		pe.Message = describe(e)
		return pe
	}
	pe.OwnerBefore = e.Payload.Before
	pe.OwnerAfter = e.Payload.After

	switch e.Type {
	case EventStonePlaced, EventStoneSpawned:
		pe.Type = PresentSpawn
		pe.StoneID = StoneID(e.ActionID, e.PlyIndex)
	case EventStoneDestroyed:
		pe.Type = PresentDestroy
	case EventStoneFlipped, EventStoneReverted:
		pe.Type = PresentChange
	case EventStoneMoved:
		pe.Type = PresentMove
		pe.From = e.Payload.From
		pe.To = e.Payload.Pos
		pe.StoneID = e.Payload.MarkerID
	}
	return pe
}

func describe(e Event) string {
	p := e.Payload
	parts := []string{strings.ToLower(string(e.Type))}
	if p.Player != board.Empty {
		parts = append(parts, p.Player.String())
	}
	if p.CardID != "" {
		parts = append(parts, p.CardID)
	}
	if p.Effect != "" {
		parts = append(parts, strings.ToLower(p.Effect))
	}
	if p.Pos != nil {
		parts = append(parts, p.Pos.String())
	}
	if p.Countdown != nil {
		parts = append(parts, fmt.Sprintf("countdown=%d", *p.Countdown))
	}
	if p.Amount != 0 {
		parts = append(parts, fmt.Sprintf("amount=%d", p.Amount))
	}
	if e.Type == EventGameEnded {
		parts = append(parts, fmt.Sprintf("winner=%s black=%d white=%d", p.Winner, p.Black, p.White))
	}
	return strings.Join(parts, " ")
}
