package rules

import (
	"fmt"
)

// Stage is the lifecycle position of one action inside the pipeline.
type Stage int

const (
	StageReceived Stage = iota
	StageValidated
	StageTrackerChecked
	StageResolved
	StageCommitted
	StageRejected
)

var stageNames = map[Stage]string{
	StageReceived:       "RECEIVED",
	StageValidated:      "VALIDATED",
	StageTrackerChecked: "TRACKER_CHECKED",
	StageResolved:       "RESOLVED",
	StageCommitted:      "COMMITTED",
	StageRejected:       "REJECTED",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STAGE_%d", int(s))
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == StageCommitted || s == StageRejected
}

// Phase is one fixed step of resolving a committed action.
type Phase int

const (
	PhaseTurnStart Phase = iota
	PhaseSchema
	PhaseTracker
	PhaseCardUse
	PhasePlacement
	PhasePostFlip
	PhaseMarkerCreation
	PhaseEmission
	PhaseAdvance
)

var phaseNames = map[Phase]string{
	PhaseTurnStart:      "TURN_START",
	PhaseSchema:         "SCHEMA",
	PhaseTracker:        "TRACKER",
	PhaseCardUse:        "CARD_USE",
	PhasePlacement:      "PLACEMENT",
	PhasePostFlip:       "POST_FLIP",
	PhaseMarkerCreation: "MARKER_CREATION",
	PhaseEmission:       "EMISSION",
	PhaseAdvance:        "ADVANCE",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// PhaseSequence is the fixed order in which a commit runs its phases.
var PhaseSequence = []Phase{
	PhaseTurnStart,
	PhaseSchema,
	PhaseTracker,
	PhaseCardUse,
	PhasePlacement,
	PhasePostFlip,
	PhaseMarkerCreation,
	PhaseEmission,
	PhaseAdvance,
}

// StageTracker records the stage transitions of one action. Only forward
// moves along the happy path, or a move to Rejected, are accepted.
type StageTracker struct {
	stage Stage
	phase Phase
}

// NewStageTracker starts at Received.
func NewStageTracker() *StageTracker {
	return &StageTracker{stage: StageReceived, phase: PhaseTurnStart}
}

// Stage returns the current stage.
func (st *StageTracker) Stage() Stage {
	return st.stage
}

// Phase returns the phase last entered.
func (st *StageTracker) Phase() Phase {
	return st.phase
}

// Enter marks the start of phase p. Phases may only move forward.
func (st *StageTracker) Enter(p Phase) error {
	if p < st.phase {
		return fmt.Errorf("phase %s entered after %s", p, st.phase)
	}
	st.phase = p
	return nil
}

// Advance moves to the next stage.
func (st *StageTracker) Advance(next Stage) error {
	if st.stage.Terminal() {
		return fmt.Errorf("action already %s", st.stage)
	}
	if next != StageRejected && next != st.stage+1 {
		return fmt.Errorf("cannot move from %s to %s", st.stage, next)
	}
	st.stage = next
	return nil
}
