package targeting

import (
	"fmt"

	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/markers"
)

// TargetValidator validates that selected targets are legal.
type TargetValidator struct {
	gameState TargetGameStateAccessor
}

// TargetGameStateAccessor provides access to game state needed for target validation.
type TargetGameStateAccessor interface {
	// CellAt returns the stone on a cell
	CellAt(p board.Pos) board.Cell
	// MarkerAt returns the marker on a cell, if any
	MarkerAt(p board.Pos) (markers.Marker, bool)
}

// NewTargetValidator creates a new target validator.
func NewTargetValidator(gameState TargetGameStateAccessor) *TargetValidator {
	return &TargetValidator{
		gameState: gameState,
	}
}

// ValidateTarget checks if a cell is a legal target for player under requirement.
func (tv *TargetValidator) ValidateTarget(target board.Pos, requirement TargetRequirement, player board.Cell) error {
	if tv == nil || tv.gameState == nil {
		return fmt.Errorf("target validator not initialized")
	}
	if !target.InBounds() {
		return fmt.Errorf("%s off board: %w", target, ErrInvalidTarget)
	}

	cell := tv.gameState.CellAt(target)
	if cell == board.Empty {
		return fmt.Errorf("%s is empty: %w", target, ErrInvalidTarget)
	}
	marker, marked := tv.gameState.MarkerAt(target)

	switch requirement.Type {
	case TargetTypeAnyStone:
		if marked && marker.BlocksFlip() {
			return fmt.Errorf("%s is protected by %s: %w", target, marker.Effect, ErrInvalidTarget)
		}
	case TargetTypeEnemyStone:
		if cell != player.Opponent() {
			return fmt.Errorf("%s is not an enemy stone: %w", target, ErrInvalidTarget)
		}
		if marked && marker.BlocksFlip() {
			return fmt.Errorf("%s is protected by %s: %w", target, marker.Effect, ErrInvalidTarget)
		}
	case TargetTypeEnemyAnchor:
		if cell != player.Opponent() {
			return fmt.Errorf("%s is not an enemy stone: %w", target, ErrInvalidTarget)
		}
		if !marked || !marker.IsTimedAnchor() || marker.Owner != player.Opponent() {
			return fmt.Errorf("%s carries no enemy anchor: %w", target, ErrInvalidTarget)
		}
	case TargetTypeOwnPlainStone:
		if cell != player {
			return fmt.Errorf("%s is not your stone: %w", target, ErrInvalidTarget)
		}
		if marked {
			return fmt.Errorf("%s already carries %s: %w", target, marker.Effect, ErrInvalidTarget)
		}
	default:
		return fmt.Errorf("unknown target type %s: %w", requirement.Type, ErrInvalidTarget)
	}
	return nil
}

// ValidateTargetSelection validates a complete selection against its requirement.
func (tv *TargetValidator) ValidateTargetSelection(selection *TargetSelection, player board.Cell) error {
	if tv == nil {
		return fmt.Errorf("target validator not initialized")
	}
	if err := selection.Validate(); err != nil {
		return err
	}
	if err := tv.ValidateTarget(*selection.Target, selection.Requirement, player); err != nil {
		return fmt.Errorf("invalid %s: %w", selection.Requirement.Field, err)
	}
	return nil
}
