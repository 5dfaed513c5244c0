package targeting

import (
	"errors"
	"fmt"

	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/cards"
)

// TargetType represents what kind of cell a targeted card may choose.
type TargetType string

const (
	// TargetTypeAnyStone targets any unprotected stone
	TargetTypeAnyStone TargetType = "ANY_STONE"
	// TargetTypeEnemyStone targets an unprotected opponent stone
	TargetTypeEnemyStone TargetType = "ENEMY_STONE"
	// TargetTypeEnemyAnchor targets an opponent stone carrying an anchor
	TargetTypeEnemyAnchor TargetType = "ENEMY_ANCHOR"
	// TargetTypeOwnPlainStone targets an own stone with no marker
	TargetTypeOwnPlainStone TargetType = "OWN_PLAIN_STONE"
)

var (
	// ErrMissingTarget is returned when a required target was not supplied.
	ErrMissingTarget = errors.New("missing required target")
	// ErrInvalidTarget is returned when the supplied cell does not qualify.
	ErrInvalidTarget = errors.New("invalid target")
)

// TargetRequirement defines what target a card requires.
type TargetRequirement struct {
	// Type specifies what kind of cell is required
	Type TargetType
	// Field is the wire field that carries the target
	Field string
	// Description is a human-readable description of the requirement
	Description string
}

var requirements = map[cards.Type]TargetRequirement{
	cards.DestroyOneStone: {Type: TargetTypeAnyStone, Field: "destroyTarget", Description: "target unprotected stone"},
	cards.SwapWithEnemy:   {Type: TargetTypeEnemyStone, Field: "swapTarget", Description: "target unprotected enemy stone"},
	cards.TemptWill:       {Type: TargetTypeEnemyAnchor, Field: "temptTarget", Description: "target enemy special stone"},
	cards.InheritWill:     {Type: TargetTypeOwnPlainStone, Field: "inheritTarget", Description: "target own plain stone"},
}

// RequirementFor returns the target requirement of a card type, if any.
func RequirementFor(t cards.Type) (TargetRequirement, bool) {
	req, ok := requirements[t]
	return req, ok
}

// TargetSelection represents a player's target choice for a card.
type TargetSelection struct {
	Target      *board.Pos
	Requirement TargetRequirement
}

// IsComplete checks if the selection carries a target.
func (ts *TargetSelection) IsComplete() bool {
	return ts != nil && ts.Target != nil
}

// Validate checks the selection shape. Board legality is the validator's job.
func (ts *TargetSelection) Validate() error {
	if ts == nil {
		return fmt.Errorf("target selection is nil")
	}
	if ts.Target == nil {
		return fmt.Errorf("%s: %w", ts.Requirement.Field, ErrMissingTarget)
	}
	if !ts.Target.InBounds() {
		return fmt.Errorf("%s %s off board: %w", ts.Requirement.Field, ts.Target, ErrInvalidTarget)
	}
	return nil
}
