package game

import (
	"github.com/reversi-cards/reversi-server-go/internal/game/action"
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/effects"
	"github.com/reversi-cards/reversi-server-go/internal/game/markers"
	"github.com/reversi-cards/reversi-server-go/internal/game/rng"
	"github.com/reversi-cards/reversi-server-go/internal/game/rules"
)

// resolution is the scratch state of one Apply call. It owns a clone of the
// input game and is the only code that writes to it.
type resolution struct {
	e      *Engine
	g      Game
	a      action.Action
	src    rng.Source
	player board.Cell
	log    *rules.Log
	stages *rules.StageTracker

	schemaErrors []string
	presented    []rules.PresentationEvent
}

func newResolution(e *Engine, g Game, a action.Action, src rng.Source) *resolution {
	return &resolution{
		e:      e,
		g:      g,
		a:      a,
		src:    src,
		player: g.Board.CurrentPlayer,
		log:    rules.NewLog(a.ActionID, a.TurnIndex),
		stages: rules.NewStageTracker(),
	}
}

// run executes the phases in order and stops at the first rejection.
func (r *resolution) run() error {
	r.enter(rules.PhaseTurnStart)
	r.turnStart()

	r.enter(rules.PhaseSchema)
	if check := action.Validate(r.a); !check.Valid {
		r.schemaErrors = check.Errors
		return check.Err()
	}
	r.advance(rules.StageValidated)

	r.enter(rules.PhaseTracker)
	if err := r.checkOrder(); err != nil {
		return err
	}
	r.advance(rules.StageTrackerChecked)

	r.enter(rules.PhaseCardUse)
	if err := r.useCard(); err != nil {
		return err
	}

	r.enter(rules.PhasePlacement)
	switch r.a.Type {
	case action.TypePlace:
		if err := r.place(); err != nil {
			return err
		}
	case action.TypePass:
		if err := r.pass(); err != nil {
			return err
		}
	default:
		return rules.Reject(rules.ReasonUnknownActionType, "unknown action type %q", r.a.Type)
	}
	r.advance(rules.StageResolved)

	r.enter(rules.PhaseEmission)
	r.enter(rules.PhaseAdvance)
	r.advanceTurn()
	r.commit()
	r.advance(rules.StageCommitted)
	return nil
}

// Stage and phase moves along the fixed sequence cannot fail here; a failure
// would be a programming error and is surfaced as a panic (UNKNOWN).
func (r *resolution) enter(p rules.Phase) {
	if err := r.stages.Enter(p); err != nil {
		panic(err)
	}
}

func (r *resolution) advance(s rules.Stage) {
	if err := r.stages.Advance(s); err != nil {
		panic(err)
	}
}

func (r *resolution) checkOrder() error {
	if err := r.g.Tracker.Check(r.a); err != nil {
		return err
	}
	if r.a.TurnIndex != r.g.Cards.TurnIndex {
		return rules.Reject(rules.ReasonVersionMismatch, "action built for turn index %d, state is at %d", r.a.TurnIndex, r.g.Cards.TurnIndex)
	}
	if r.g.Board.Finished {
		return rules.Reject(rules.ReasonInvalidAction, "game is over")
	}
	if r.a.Player() != r.player {
		return rules.Reject(rules.ReasonInvalidAction, "%s acted on %s's turn", r.a.Player(), r.player)
	}
	return nil
}

func (r *resolution) commit() {
	r.g.Cards.TurnIndex++
	r.g.Tracker = r.g.Tracker.Record(r.a)
	r.presented = rules.Present(r.log.Events())
	r.g.Cards.PresentationEvents = append(r.g.Cards.PresentationEvents, r.presented...)
}

// emit appends an event to the action log.
func (r *resolution) emit(t rules.EventType, payload rules.Payload) {
	r.log.Emit(rules.NewEvent(t, payload))
}

var changeEvents = map[effects.ChangeKind]rules.EventType{
	effects.ChangeSpawn:         rules.EventStoneSpawned,
	effects.ChangeDestroy:       rules.EventStoneDestroyed,
	effects.ChangeFlip:          rules.EventStoneFlipped,
	effects.ChangeMove:          rules.EventStoneMoved,
	effects.ChangeRevert:        rules.EventStoneReverted,
	effects.ChangeMarkerAdded:   rules.EventMarkerAdded,
	effects.ChangeMarkerRemoved: rules.EventMarkerRemoved,
	effects.ChangeMarkerTicked:  rules.EventMarkerTicked,
	effects.ChangeMarkerChanged: rules.EventMarkerChanged,
}

// apply adopts an effect outcome and logs its changes in order.
func (r *resolution) apply(out effects.Outcome) {
	r.g.Board.Grid = out.Grid
	r.g.Cards.Markers = out.Markers
	for _, c := range out.Changes {
		et, ok := changeEvents[c.Kind]
		if !ok {
			continue
		}
		// The only uncaused spawn is the acting player's own placement.
		if c.Kind == effects.ChangeSpawn && c.Cause == effects.CauseCapture {
			et = rules.EventStonePlaced
		}
		pos := c.Pos
		payload := rules.Payload{
			Player:   r.player,
			Pos:      &pos,
			Before:   c.Before,
			After:    c.After,
			MarkerID: c.MarkerID,
			Effect:   string(c.Effect),
			Cause:    string(c.Cause),
		}
		if c.From != nil {
			from := *c.From
			payload.From = &from
		}
		switch c.Kind {
		case effects.ChangeMarkerAdded, effects.ChangeMarkerTicked, effects.ChangeMarkerChanged:
			cd := c.Countdown
			payload.Countdown = &cd
		}
		r.emit(et, payload)
	}
}

// CellAt and MarkerAt let the target validator read the working state.
func (r *resolution) CellAt(p board.Pos) board.Cell {
	return r.g.Board.Grid.At(p)
}

func (r *resolution) MarkerAt(p board.Pos) (markers.Marker, bool) {
	return r.g.Cards.Markers.At(p)
}

func (r *resolution) setPending(p Pending) {
	r.g.Cards.Pending.Set(r.player, p)
}

func (r *resolution) nextMarkerID() (string, int) {
	seq := r.g.Cards.NextMarkerSeq
	r.g.Cards.NextMarkerSeq++
	return r.e.markerID(seq), seq
}
