// Package markers holds the single positioned-marker space shared by timed
// anchors, protections and bombs.
package markers

import (
	"fmt"

	"github.com/reversi-cards/reversi-server-go/internal/game/board"
)

// Kind separates anchors from bombs. Both live in the same marker space.
type Kind uint8

const (
	KindAnchor Kind = iota + 1
	KindBomb
)

func (k Kind) String() string {
	switch k {
	case KindAnchor:
		return "ANCHOR"
	case KindBomb:
		return "BOMB"
	default:
		return fmt.Sprintf("KIND_%d", int(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ANCHOR":
		*k = KindAnchor
	case "BOMB":
		*k = KindBomb
	default:
		return fmt.Errorf("unknown marker kind %q", string(text))
	}
	return nil
}

// Effect identifies what a marker does.
type Effect string

const (
	EffectProtected          Effect = "PROTECTED"
	EffectPermaProtected     Effect = "PERMA_PROTECTED"
	EffectTimeBomb           Effect = "TIME_BOMB"
	EffectBreeding           Effect = "BREEDING"
	EffectRegen              Effect = "REGEN"
	EffectDragon             Effect = "DRAGON"
	EffectUltimateDestroyGod Effect = "ULTIMATE_DESTROY_GOD"
	EffectHyperactive        Effect = "HYPERACTIVE"
)

// Kind returns the marker kind an effect is stored under.
func (e Effect) Kind() Kind {
	if e == EffectTimeBomb {
		return KindBomb
	}
	return KindAnchor
}

// Payload carries the kind-specific fields. Unused fields stay zero.
type Payload struct {
	// Countdown is the remaining owner turns for bombs and timed anchors.
	Countdown int `json:"countdown,omitempty"`
	// ExpiresFor names the player whose turn-start removes a temporary
	// protection.
	ExpiresFor board.Cell `json:"expiresFor,omitempty"`
	// RegenRemaining counts the reversions a regen marker still grants.
	RegenRemaining int `json:"regenRemaining,omitempty"`
	// OwnerColor is the stone colour the marker expects under it.
	OwnerColor board.Cell `json:"ownerColor,omitempty"`
	// ChainPriority orders anchors of one owner that fire in the same phase.
	ChainPriority int `json:"chainPriority,omitempty"`
	// PlacedTurn is the board turn number on which a bomb was planted.
	PlacedTurn int `json:"placedTurn,omitempty"`
}

// Marker is one positioned, typed annotation on a cell.
type Marker struct {
	ID      string     `json:"id"`
	Row     int        `json:"row"`
	Col     int        `json:"col"`
	Kind    Kind       `json:"kind"`
	Effect  Effect     `json:"effect"`
	Owner   board.Cell `json:"owner"`
	Payload Payload    `json:"payload"`
}

// Pos returns the marker's cell.
func (m Marker) Pos() board.Pos {
	return board.Pos{Row: m.Row, Col: m.Col}
}

// IsTimedAnchor reports whether the marker fires at its owner's turn-start.
func (m Marker) IsTimedAnchor() bool {
	switch m.Effect {
	case EffectBreeding, EffectDragon, EffectUltimateDestroyGod, EffectHyperactive:
		return true
	default:
		return false
	}
}

// flipBlocking lists effects whose cells cannot be flipped by captures or
// chosen by destructive targets.
var flipBlocking = map[Effect]bool{
	EffectProtected:          true,
	EffectPermaProtected:     true,
	EffectDragon:             true,
	EffectBreeding:           true,
	EffectUltimateDestroyGod: true,
}

// conversionBlocking lists effects that stop a dragon conversion.
var conversionBlocking = map[Effect]bool{
	EffectProtected:          true,
	EffectPermaProtected:     true,
	EffectDragon:             true,
	EffectBreeding:           true,
	EffectUltimateDestroyGod: true,
}

// BlocksFlip reports whether the marker protects its cell from captures.
func (m Marker) BlocksFlip() bool {
	return flipBlocking[m.Effect]
}

// BlocksConversion reports whether the marker stops dragon conversion.
func (m Marker) BlocksConversion() bool {
	return conversionBlocking[m.Effect]
}
