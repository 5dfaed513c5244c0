package action

import (
	"encoding/json"
	"sort"

	"github.com/reversi-cards/reversi-server-go/internal/game/rules"
)

// TrackerState is the persisted form of the tracker.
type TrackerState struct {
	AppliedActionIDs     []string `json:"appliedActionIds"`
	LastAppliedTurnIndex int      `json:"lastAppliedTurnIndex"`
	LastAppliedActionID  *string  `json:"lastAppliedActionId"`
}

// Tracker is the per-game ledger of applied actions. It is a value: Record
// returns a new tracker and leaves the receiver untouched. Applied ids are
// kept sorted so the serialised form is canonical.
type Tracker struct {
	applied  []string
	lastTurn int
	lastID   string
	hasLast  bool
}

// NewTracker returns a tracker that has applied nothing.
func NewTracker() Tracker {
	return Tracker{lastTurn: -1}
}

// FromState restores a tracker.
func FromState(st TrackerState) Tracker {
	t := Tracker{lastTurn: st.LastAppliedTurnIndex}
	t.applied = append([]string(nil), st.AppliedActionIDs...)
	sort.Strings(t.applied)
	if st.LastAppliedActionID != nil {
		t.lastID = *st.LastAppliedActionID
		t.hasLast = true
	}
	return t
}

// State returns the persisted form.
func (t Tracker) State() TrackerState {
	st := TrackerState{
		AppliedActionIDs:     append([]string{}, t.applied...),
		LastAppliedTurnIndex: t.lastTurn,
	}
	if t.hasLast {
		id := t.lastID
		st.LastAppliedActionID = &id
	}
	return st
}

// Applied reports whether id was already recorded.
func (t Tracker) Applied(id string) bool {
	i := sort.SearchStrings(t.applied, id)
	return i < len(t.applied) && t.applied[i] == id
}

// Len is the number of recorded actions.
func (t Tracker) Len() int {
	return len(t.applied)
}

// LastTurnIndex is the turn index of the last recorded action, or -1.
func (t Tracker) LastTurnIndex() int {
	return t.lastTurn
}

// Check rejects a duplicate id or a turn index behind the ledger.
func (t Tracker) Check(a Action) error {
	if t.Applied(a.ActionID) {
		return rules.Reject(rules.ReasonDuplicateAction, "action %q already applied", a.ActionID)
	}
	if a.TurnIndex < t.lastTurn {
		return rules.Reject(rules.ReasonOutOfOrder, "turn index %d is behind %d", a.TurnIndex, t.lastTurn)
	}
	return nil
}

// Record returns a tracker that also contains a.
func (t Tracker) Record(a Action) Tracker {
	next := Tracker{lastTurn: a.TurnIndex, lastID: a.ActionID, hasLast: true}
	i := sort.SearchStrings(t.applied, a.ActionID)
	next.applied = make([]string, 0, len(t.applied)+1)
	next.applied = append(next.applied, t.applied[:i]...)
	if i >= len(t.applied) || t.applied[i] != a.ActionID {
		next.applied = append(next.applied, a.ActionID)
	}
	next.applied = append(next.applied, t.applied[i:]...)
	return next
}

// MarshalJSON encodes the tracker as its TrackerState.
func (t Tracker) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.State())
}

// UnmarshalJSON decodes a TrackerState.
func (t *Tracker) UnmarshalJSON(data []byte) error {
	var st TrackerState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	*t = FromState(st)
	return nil
}
