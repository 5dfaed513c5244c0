package store

import (
	"context"
	"fmt"

	"github.com/reversi-cards/reversi-server-go/internal/game"
	"github.com/reversi-cards/reversi-server-go/internal/game/rng"
)

// ExportReplay rebuilds the replay of match id from its ledger. The opening
// checksum is recomputed from the stored seed and rules over catalog, so the
// result verifies only against the catalog the match was played with.
func ExportReplay(ctx context.Context, s Store, engine *game.Engine, id string) (*game.Replay, error) {
	m, err := s.GetMatch(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.Entries(ctx, id)
	if err != nil {
		return nil, err
	}

	opening, err := game.New(engine.Catalog(), game.WithRules(m.Rules)).NewGame(rng.New(m.Seed))
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", id, err)
	}
	sum, err := opening.ComputeChecksum()
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", id, err)
	}

	replay := game.NewReplay(m.ID, m.Seed, m.Rules, sum.Hash)
	for i, e := range entries {
		if e.TurnIndex != i {
			return nil, fmt.Errorf("export %s: ledger gap at turn %d", id, i)
		}
		replay.Entries = append(replay.Entries, game.ReplayEntry{Wire: e.Wire, Checksum: e.Checksum})
	}
	return replay, nil
}
