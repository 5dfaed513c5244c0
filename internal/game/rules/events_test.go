package rules

import (
	"errors"
	"fmt"
	"testing"

	"github.com/reversi-cards/reversi-server-go/internal/game/board"
)

func TestEventBusSubscribeTyped(t *testing.T) {
	bus := NewEventBus()

	flips := 0
	draws := 0

	handle1 := bus.SubscribeTyped(EventStoneFlipped, func(e Event) {
		flips++
	})
	bus.SubscribeTyped(EventCardDrawn, func(e Event) {
		draws++
	})

	bus.Publish(NewCellEvent(EventStoneFlipped, board.Pos{Row: 3, Col: 3}, board.White, board.Black))
	if flips != 1 {
		t.Fatalf("expected flip count 1, got %d", flips)
	}
	if draws != 0 {
		t.Fatalf("expected draw count 0, got %d", draws)
	}

	bus.Publish(NewEvent(EventCardDrawn, Payload{Player: board.Black, CardID: "gold_stone#1"}))
	if draws != 1 {
		t.Fatalf("expected draw count 1, got %d", draws)
	}

	bus.Unsubscribe(handle1)
	bus.Publish(NewCellEvent(EventStoneFlipped, board.Pos{Row: 3, Col: 3}, board.White, board.Black))
	if flips != 1 {
		t.Fatalf("expected flip count still 1 after unsubscribe, got %d", flips)
	}
}

func TestEventBusDeliversInHandleOrder(t *testing.T) {
	bus := NewEventBus()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		bus.Subscribe(func(e Event) { order = append(order, i) })
	}
	bus.PublishBatch([]Event{NewEvent(EventPassed, Payload{}), NewEvent(EventTurnEnded, Payload{})})

	want := []int{0, 1, 2, 3, 4, 0, 1, 2, 3, 4}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}

	if bus.Subscribe(nil) != -1 {
		t.Fatal("nil listener should be refused")
	}
}

func TestLogStampsPlyIndex(t *testing.T) {
	log := NewLog("a1", 4)
	log.Emit(NewEvent(EventTurnStarted, Payload{Player: board.Black}))
	log.Emit(NewCellEvent(EventStonePlaced, board.Pos{Row: 2, Col: 3}, board.Empty, board.Black))
	log.Emit(NewCellEvent(EventStoneFlipped, board.Pos{Row: 3, Col: 3}, board.White, board.Black))

	events := log.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, e := range events {
		if e.PlyIndex != i || e.ActionID != "a1" || e.TurnIndex != 4 {
			t.Fatalf("event %d stamped %s/%d/%d", i, e.ActionID, e.TurnIndex, e.PlyIndex)
		}
	}

	pres := Present(events)
	if pres[0].Type != PresentLog || pres[1].Type != PresentSpawn || pres[2].Type != PresentChange {
		t.Fatalf("unexpected presentation types %v %v %v", pres[0].Type, pres[1].Type, pres[2].Type)
	}
	if pres[1].StoneID != "a1/1" {
		t.Fatalf("expected stone id a1/1, got %q", pres[1].StoneID)
	}
	if pres[2].Row != 3 || pres[2].OwnerBefore != board.White || pres[2].OwnerAfter != board.Black {
		t.Fatalf("unexpected change event %+v", pres[2])
	}
}

func TestPresentMove(t *testing.T) {
	from := board.Pos{Row: 0, Col: 0}
	to := board.Pos{Row: 0, Col: 1}
	log := NewLog("a2", 0)
	log.Emit(NewEvent(EventStoneMoved, Payload{Pos: &to, From: &from, MarkerID: "m7", After: board.Black}))

	pe := Present(log.Events())[0]
	if pe.Type != PresentMove || *pe.From != from || *pe.To != to || pe.StoneID != "m7" {
		t.Fatalf("unexpected move event %+v", pe)
	}
}

func TestPresentNonStoneEventsAsLog(t *testing.T) {
	if EventMarkerChanged.IsStoneEvent() || !EventStoneReverted.IsStoneEvent() {
		t.Fatal("stone event classification mismatch")
	}
	pos := board.Pos{Row: 4, Col: 5}
	log := NewLog("a3", 2)
	log.Emit(NewEvent(EventMarkerChanged, Payload{Pos: &pos, Before: board.White, After: board.Black, Effect: "DRAGON"}))

	pe := Present(log.Events())[0]
	if pe.Type != PresentLog || pe.Row != 4 || pe.Col != 5 {
		t.Fatalf("unexpected log event %+v", pe)
	}
	if pe.OwnerBefore != board.Empty || pe.OwnerAfter != board.Empty {
		t.Fatalf("log events carry no stone owners, got %+v", pe)
	}
	if pe.Message != "marker_changed dragon (4,5)" {
		t.Fatalf("unexpected message %q", pe.Message)
	}
}

func TestRejectError(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("apply: %w", Wrap(ReasonCardUseFailed, cause, "charge too low"))

	if !errors.Is(err, &RejectError{Reason: ReasonCardUseFailed}) {
		t.Fatal("expected reason match")
	}
	if errors.Is(err, &RejectError{Reason: ReasonIllegalMove}) {
		t.Fatal("unexpected reason match")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to unwrap")
	}
	if ReasonOf(err) != ReasonCardUseFailed {
		t.Fatalf("expected CARD_USE_FAILED, got %s", ReasonOf(err))
	}
	if ReasonOf(cause) != ReasonUnknown {
		t.Fatal("plain errors map to UNKNOWN")
	}
	if !IsKnownReason(ReasonVersionMismatch) || IsKnownReason("NOPE") {
		t.Fatal("reason catalogue mismatch")
	}
}
