package rules

import (
	"sync"

	"github.com/reversi-cards/reversi-server-go/internal/game/board"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	// Turn events
	EventTurnStarted EventType = "TURN_STARTED"
	EventTurnEnded   EventType = "TURN_ENDED"
	EventPassed      EventType = "PASSED"
	EventGameEnded   EventType = "GAME_ENDED"

	// Card events
	EventCardDrawn       EventType = "CARD_DRAWN"
	EventCardUsed        EventType = "CARD_USED"
	EventChargeSpent     EventType = "CHARGE_SPENT"
	EventPendingSet      EventType = "PENDING_SET"
	EventPendingCleared  EventType = "PENDING_CLEARED"
	EventExtraPlaceGrant EventType = "EXTRA_PLACE_GRANTED"
	EventTargetResolved  EventType = "TARGET_RESOLVED"
	EventChargeGained    EventType = "CHARGE_GAINED"
	EventCardsStolen     EventType = "CARDS_STOLEN"
	EventChargePlundered EventType = "CHARGE_PLUNDERED"
	EventFreePlaceUsed   EventType = "FREE_PLACEMENT_USED"

	// Stone events
	EventStonePlaced    EventType = "STONE_PLACED"
	EventStoneSpawned   EventType = "STONE_SPAWNED"
	EventStoneFlipped   EventType = "STONE_FLIPPED"
	EventStoneReverted  EventType = "STONE_REVERTED"
	EventStoneDestroyed EventType = "STONE_DESTROYED"
	EventStoneMoved     EventType = "STONE_MOVED"

	// Marker events
	EventMarkerAdded   EventType = "MARKER_ADDED"
	EventMarkerRemoved EventType = "MARKER_REMOVED"
	EventMarkerTicked  EventType = "MARKER_TICKED"
	EventMarkerChanged EventType = "MARKER_CHANGED"
)

// IsStoneEvent reports whether the event changes a board cell.
func (et EventType) IsStoneEvent() bool {
	switch et {
	case EventStonePlaced, EventStoneSpawned, EventStoneFlipped,
		EventStoneReverted, EventStoneDestroyed, EventStoneMoved:
		return true
	default:
		return false
	}
}

// Payload carries the event-specific fields. Unused fields stay zero and are
// omitted on the wire.
type Payload struct {
	Player    board.Cell `json:"player,omitempty"`
	Pos       *board.Pos `json:"pos,omitempty"`
	From      *board.Pos `json:"from,omitempty"`
	Before    board.Cell `json:"before,omitempty"`
	After     board.Cell `json:"after,omitempty"`
	CardID    string     `json:"cardId,omitempty"`
	CardType  string     `json:"cardType,omitempty"`
	MarkerID  string     `json:"markerId,omitempty"`
	Effect    string     `json:"effect,omitempty"`
	Cause     string     `json:"cause,omitempty"`
	Countdown *int       `json:"countdown,omitempty"`
	Amount    int        `json:"amount,omitempty"`
	Cards     []string   `json:"cards,omitempty"`
	Winner    board.Cell `json:"winner,omitempty"`
	Black     int        `json:"black,omitempty"`
	White     int        `json:"white,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// Event represents one ordered state change within a committed action.
type Event struct {
	Type      EventType `json:"type"`
	Payload   Payload   `json:"payload"`
	ActionID  string    `json:"actionId"`
	TurnIndex int       `json:"turnIndex"`
	PlyIndex  int       `json:"plyIndex"`
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
// Subscribers only read; nothing they do reaches back into resolution.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle,
// whichever way it was registered.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
// Catch-all listeners run in handle order so delivery is reproducible.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for h := 0; h < bus.nextHandle; h++ {
		if listener, ok := bus.listeners[h]; ok {
			listener(event)
		}
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// NewEvent creates an event with the given payload. Stamping with action id,
// turn index and ply index is done by the event log.
func NewEvent(eventType EventType, payload Payload) Event {
	return Event{Type: eventType, Payload: payload}
}

// NewCellEvent creates a stone event for a single cell.
func NewCellEvent(eventType EventType, p board.Pos, before, after board.Cell) Event {
	return NewEvent(eventType, Payload{Pos: &p, Before: before, After: after})
}

// Log accumulates the events of one action, stamping each with the action id,
// turn index and a ply index that starts at zero.
type Log struct {
	actionID  string
	turnIndex int
	events    []Event
}

// NewLog starts an empty log for one action.
func NewLog(actionID string, turnIndex int) *Log {
	return &Log{actionID: actionID, turnIndex: turnIndex}
}

// Emit appends evt with the next ply index.
func (l *Log) Emit(evt Event) {
	evt.ActionID = l.actionID
	evt.TurnIndex = l.turnIndex
	evt.PlyIndex = len(l.events)
	l.events = append(l.events, evt)
}

// Events returns a copy of the accumulated events.
func (l *Log) Events() []Event {
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Len returns the number of emitted events.
func (l *Log) Len() int {
	return len(l.events)
}
