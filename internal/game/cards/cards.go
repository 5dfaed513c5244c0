// Package cards defines the card catalog and deterministic deck construction.
package cards

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reversi-cards/reversi-server-go/internal/game/rng"
)

// Type identifies a card's effect family.
type Type string

const (
	FreePlacement         Type = "FREE_PLACEMENT"
	ProtectedNextStone    Type = "PROTECTED_NEXT_STONE"
	PermaProtectNextStone Type = "PERMA_PROTECT_NEXT_STONE"
	TimeBomb              Type = "TIME_BOMB"
	BreedingWill          Type = "BREEDING_WILL"
	RegenWill             Type = "REGEN_WILL"
	UltimateReverseDragon Type = "ULTIMATE_REVERSE_DRAGON"
	UltimateDestroyGod    Type = "ULTIMATE_DESTROY_GOD"
	HyperactiveWill       Type = "HYPERACTIVE_WILL"
	ChainWill             Type = "CHAIN_WILL"
	GoldStone             Type = "GOLD_STONE"
	SilverStone           Type = "SILVER_STONE"
	StealCard             Type = "STEAL_CARD"
	PlunderWill           Type = "PLUNDER_WILL"
	DoublePlace           Type = "DOUBLE_PLACE"
	DestroyOneStone       Type = "DESTROY_ONE_STONE"
	SwapWithEnemy         Type = "SWAP_WITH_ENEMY"
	TemptWill             Type = "TEMPT_WILL"
	InheritWill           Type = "INHERIT_WILL"
)

var knownTypes = map[Type]bool{
	FreePlacement: true, ProtectedNextStone: true, PermaProtectNextStone: true,
	TimeBomb: true, BreedingWill: true, RegenWill: true, UltimateReverseDragon: true,
	UltimateDestroyGod: true, HyperactiveWill: true, ChainWill: true, GoldStone: true,
	SilverStone: true, StealCard: true, PlunderWill: true, DoublePlace: true,
	DestroyOneStone: true, SwapWithEnemy: true, TemptWill: true, InheritWill: true,
}

// Known reports whether t is a catalog card type.
func (t Type) Known() bool {
	return knownTypes[t]
}

// Targeted reports whether the card resolves against a chosen cell.
func (t Type) Targeted() bool {
	switch t {
	case DestroyOneStone, SwapWithEnemy, TemptWill, InheritWill:
		return true
	default:
		return false
	}
}

// Immediate reports whether the card takes effect on use without waiting for
// a placement.
func (t Type) Immediate() bool {
	return t.Targeted() || t == DoublePlace
}

// Slug is the lowercase form used in card ids.
func (t Type) Slug() string {
	return strings.ToLower(string(t))
}

// Definition is one catalog entry.
type Definition struct {
	Type        Type   `yaml:"type" json:"type"`
	Name        string `yaml:"name" json:"name"`
	Cost        int    `yaml:"cost" json:"cost"`
	Copies      int    `yaml:"copies" json:"copies"`
	Countdown   int    `yaml:"countdown,omitempty" json:"countdown,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Catalog is the validated set of card definitions, in file order.
type Catalog struct {
	Cards []Definition `yaml:"cards"`

	byType map[Type]Definition
}

//go:embed catalog.yaml
var defaultCatalog []byte

// Default returns the catalog shipped with the server.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded card catalog: %v", err))
	}
	return c
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates catalog YAML.
func Parse(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) index() error {
	if len(c.Cards) == 0 {
		return fmt.Errorf("catalog has no cards")
	}
	c.byType = make(map[Type]Definition, len(c.Cards))
	for i, d := range c.Cards {
		switch {
		case !d.Type.Known():
			return fmt.Errorf("card %d: unknown type %q", i, d.Type)
		case d.Cost < 0:
			return fmt.Errorf("card %s: negative cost", d.Type)
		case d.Copies < 1:
			return fmt.Errorf("card %s: copies must be positive", d.Type)
		case d.Countdown < 0:
			return fmt.Errorf("card %s: negative countdown", d.Type)
		}
		if _, dup := c.byType[d.Type]; dup {
			return fmt.Errorf("card %s: listed twice", d.Type)
		}
		c.byType[d.Type] = d
	}
	return nil
}

// Definition returns the entry for t.
func (c *Catalog) Definition(t Type) (Definition, bool) {
	d, ok := c.byType[t]
	return d, ok
}

// Lookup resolves a card id such as "time_bomb#2".
func (c *Catalog) Lookup(id string) (Definition, bool) {
	t, ok := TypeOf(id)
	if !ok {
		return Definition{}, false
	}
	return c.Definition(t)
}

// Size is the number of cards in a full deck.
func (c *Catalog) Size() int {
	n := 0
	for _, d := range c.Cards {
		n += d.Copies
	}
	return n
}

// ID builds the deck id of the n-th copy (1-based) of t.
func ID(t Type, n int) string {
	return t.Slug() + "#" + strconv.Itoa(n)
}

// TypeOf parses the card type out of a deck id.
func TypeOf(id string) (Type, bool) {
	slug, num, ok := strings.Cut(id, "#")
	if !ok {
		return "", false
	}
	if n, err := strconv.Atoi(num); err != nil || n < 1 {
		return "", false
	}
	t := Type(strings.ToUpper(slug))
	return t, t.Known()
}

// BuildDeck lists every card id of the catalog in catalog order.
func (c *Catalog) BuildDeck() []string {
	deck := make([]string, 0, c.Size())
	for _, d := range c.Cards {
		for n := 1; n <= d.Copies; n++ {
			deck = append(deck, ID(d.Type, n))
		}
	}
	return deck
}

// Shuffle returns a Fisher-Yates permutation of deck driven by src.
func Shuffle(deck []string, src rng.Source) []string {
	out := make([]string, len(deck))
	copy(out, deck)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Index(src, i+1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
