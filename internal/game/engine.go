package game

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/reversi-cards/reversi-server-go/internal/game/action"
	"github.com/reversi-cards/reversi-server-go/internal/game/cards"
	"github.com/reversi-cards/reversi-server-go/internal/game/rng"
	"github.com/reversi-cards/reversi-server-go/internal/game/rules"
)

// Engine resolves actions against a Game. It holds no match state: the
// catalog, rules and logger are fixed at construction and every call gets
// the state and the random source it works on.
type Engine struct {
	catalog  *cards.Catalog
	rules    Rules
	logger   *zap.Logger
	markerID func(seq int) string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRules overrides the default match rules.
func WithRules(r Rules) Option {
	return func(e *Engine) {
		e.rules = r
	}
}

// WithMarkerIDs overrides how marker ids are derived from the marker sequence.
func WithMarkerIDs(fn func(seq int) string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.markerID = fn
		}
	}
}

// New creates an engine over catalog. A nil catalog selects the embedded one.
func New(catalog *cards.Catalog, opts ...Option) *Engine {
	if catalog == nil {
		catalog = cards.Default()
	}
	e := &Engine{
		catalog:  catalog,
		rules:    DefaultRules(),
		logger:   zap.NewNop(),
		markerID: defaultMarkerID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultMarkerID(seq int) string {
	return fmt.Sprintf("m%d", seq)
}

// Catalog returns the engine's card catalog.
func (e *Engine) Catalog() *cards.Catalog {
	return e.catalog
}

// Rules returns the engine's match rules.
func (e *Engine) Rules() Rules {
	return e.rules
}

func (e *Engine) withRules(r Rules) *Engine {
	c := *e
	c.rules = r
	return &c
}

// NewGame creates an opening state with the engine's catalog and rules.
func (e *Engine) NewGame(src rng.Source) (Game, error) {
	return NewGame(src, e.catalog, e.rules)
}

// Result is the outcome of one Apply call. When OK is false, Game is the
// input state and the source has been rewound to where it was.
type Result struct {
	OK             bool
	Game           Game
	Events         []rules.Event
	Presentation   []rules.PresentationEvent
	Stage          rules.Stage
	RejectedReason rules.RejectReason
	SchemaErrors   []string
	Err            error
}

// Apply resolves one action. The input game is never modified.
func (e *Engine) Apply(g Game, a action.Action, src rng.Source) (res Result) {
	if src == nil {
		return Result{
			Game:           g,
			Stage:          rules.StageRejected,
			RejectedReason: rules.ReasonUnknown,
			Err:            rules.Reject(rules.ReasonUnknown, "no random source"),
		}
	}
	checkpoint := src.Checkpoint()
	r := newResolution(e, g.Clone(), action.Normalize(a), src)

	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if err, ok := rec.(error); ok && errors.Is(err, ErrNondeterministic) {
			panic(rec)
		}
		cause := fmt.Errorf("panic: %v", rec)
		res = e.reject(g, r, src, checkpoint, rules.Wrap(rules.ReasonUnknown, cause, "resolution failed"))
	}()

	if err := r.run(); err != nil {
		return e.reject(g, r, src, checkpoint, err)
	}

	events := r.log.Events()
	e.logger.Debug("action committed",
		zap.String("action_id", r.a.ActionID),
		zap.Int("turn_index", r.a.TurnIndex),
		zap.Stringer("player", r.player),
		zap.Int("events", len(events)),
	)
	return Result{
		OK:           true,
		Game:         r.g,
		Events:       events,
		Presentation: r.presented,
		Stage:        r.stages.Stage(),
	}
}

// ApplyJSON validates a wire action and applies it.
func (e *Engine) ApplyJSON(g Game, raw []byte, src rng.Source) Result {
	a, check := action.ValidateJSON(raw)
	if !check.Valid {
		err := check.Err()
		e.logger.Info("action rejected",
			zap.String("reason", string(check.Reason)),
			zap.Strings("errors", check.Errors),
		)
		return Result{
			Game:           g,
			Stage:          rules.StageRejected,
			RejectedReason: check.Reason,
			SchemaErrors:   check.Errors,
			Err:            err,
		}
	}
	return e.Apply(g, a, src)
}

func (e *Engine) reject(g Game, r *resolution, src rng.Source, checkpoint rng.State, err error) Result {
	src.Rewind(checkpoint)
	_ = r.stages.Advance(rules.StageRejected)

	reason := rules.ReasonOf(err)
	e.logger.Info("action rejected",
		zap.String("action_id", r.a.ActionID),
		zap.Int("turn_index", r.a.TurnIndex),
		zap.String("reason", string(reason)),
		zap.Stringer("phase", r.stages.Phase()),
		zap.Error(err),
	)
	return Result{
		Game:           g,
		Stage:          rules.StageRejected,
		RejectedReason: reason,
		SchemaErrors:   r.schemaErrors,
		Err:            err,
	}
}
