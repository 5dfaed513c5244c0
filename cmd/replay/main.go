// Command replay re-runs a recorded match and checks every checksum. The
// match comes from a replay file or, with -match, from the configured ledger.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/reversi-cards/reversi-server-go/internal/config"
	"github.com/reversi-cards/reversi-server-go/internal/game"
	"github.com/reversi-cards/reversi-server-go/internal/game/board"
	"github.com/reversi-cards/reversi-server-go/internal/game/cards"
	"github.com/reversi-cards/reversi-server-go/internal/store"
)

var (
	configPath  = flag.String("config", "config/config.yaml", "server configuration, used with -match")
	matchID     = flag.String("match", "", "export this match from the ledger instead of reading a file")
	outDir      = flag.String("out", "", "write the exported replay to this directory")
	catalogPath = flag.String("catalog", "", "card catalog YAML (default: embedded catalog)")
	steps       = flag.Bool("steps", false, "print every recorded action")
	verbose     = flag.Bool("v", false, "log engine decisions")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <file.replay>\n       %s -match <id> [flags]\n", os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if (*matchID == "") == (flag.NArg() != 1) {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	logger := zap.NewNop()
	if *verbose {
		var err error
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer logger.Sync()
	}

	catalog := cards.Default()
	if *catalogPath != "" {
		var err error
		if catalog, err = cards.Load(*catalogPath); err != nil {
			return err
		}
	}
	engine := game.New(catalog, game.WithLogger(logger))

	replay, err := load(ctx, engine, logger)
	if err != nil {
		return err
	}
	fmt.Printf("match %s  seed %d  actions %d\n", replay.MatchID, replay.Seed, replay.Size())

	if *steps {
		replay.Start()
		for i := 0; ; i++ {
			entry, ok := replay.Next()
			if !ok {
				break
			}
			a, err := entry.Action()
			if err != nil {
				return fmt.Errorf("entry %d: %w", i, err)
			}
			fmt.Printf("%4d  %-40s  %s\n", i, a, entry.Checksum[:12])
		}
	}

	final, err := replay.Verify(engine)
	if err != nil {
		return err
	}

	fmt.Println(final.Board.Grid.String())
	fmt.Printf("black %d  white %d", final.Board.Grid.Count(board.Black), final.Board.Grid.Count(board.White))
	switch {
	case !final.Board.Finished:
	case final.Board.Winner == board.Empty:
		fmt.Print("  draw")
	default:
		fmt.Printf("  winner %s", final.Board.Winner)
	}
	fmt.Println()
	fmt.Println("all checksums verified")

	if *outDir != "" {
		if err := replay.SaveToFile(*outDir); err != nil {
			return err
		}
		fmt.Printf("saved %s\n", game.ReplayPath(*outDir, replay.MatchID))
	}
	return nil
}

func load(ctx context.Context, engine *game.Engine, logger *zap.Logger) (*game.Replay, error) {
	if *matchID == "" {
		return game.LoadReplayFromFile(flag.Arg(0))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	replay, err := store.ExportReplay(ctx, st, engine, *matchID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("match %s is not in the %s ledger", *matchID, cfg.Database.Driver)
	}
	return replay, err
}
