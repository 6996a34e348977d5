package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pable/go-pbp-metrics/internal/engine"
	"github.com/pable/go-pbp-metrics/internal/model"
	"github.com/pable/go-pbp-metrics/internal/parser"
	"github.com/pable/go-pbp-metrics/internal/report"
)

var ingestShow bool

// ingestSignals cancel a running ingest. Games not yet committed are
// discarded; committed ones stay stored.
var ingestSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

var ingestCmd = &cobra.Command{
	Use:   "ingest <game.json> [<game.json>...]",
	Short: "Reconstruct games from play-by-play documents and store their snapshots",
	Long: `Parse one or more normalized game documents, reconstruct every game in
parallel (engine.workers at a time) and store the full snapshot sequence.

A game with a malformed event, or whose document cannot be decoded, is
recorded as failed; other games are unaffected. Re-ingesting a game replaces its snapshots and clears its
verification.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestShow, "show", false, "print the box score of each ingested game")
}

func runIngest(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	eng, release, err := newEngine(db)
	if err != nil {
		return err
	}
	defer release()

	rules := cfg.BoundaryRules()
	var games []model.Game
	var rejected []engine.Result
	for _, path := range args {
		g, err := parser.ParseGameFile(path, rules)
		if err != nil {
			if g.GameID == "" {
				// Nothing identifies the game, so there is nothing to store.
				rejected = append(rejected, engine.Result{
					Summary: model.GameSummary{GameID: path, Status: model.StatusFailed, Error: err.Error()},
					Err:     err,
				})
				continue
			}
			rejected = append(rejected, eng.Reject(g, err))
			continue
		}
		games = append(games, g)
	}

	ctx, stop := signal.NotifyContext(context.Background(), ingestSignals...)
	defer stop()
	var results []engine.Result
	if len(games) > 0 {
		fmt.Fprintf(os.Stdout, "Reconstructing %d games with %d workers...\n", len(games), cfg.Engine.Workers)
		results, err = eng.Process(ctx, games)
		if err != nil {
			return fmt.Errorf("ingest interrupted: %w", err)
		}
	}
	results = append(results, rejected...)

	summaries := make([]model.GameSummary, 0, len(results))
	failed := 0
	for _, r := range results {
		summaries = append(summaries, r.Summary)
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", r.Summary.GameID, r.Err)
		}
	}
	fmt.Fprintln(os.Stdout)
	report.PrintGameList(os.Stdout, summaries)

	if ingestShow {
		for _, r := range results {
			if r.Err != nil {
				continue
			}
			p, err := eng.Partition(r.Summary.GameID)
			if err != nil {
				return err
			}
			names, err := rosterNames(db, r.Summary.GameID)
			if err != nil {
				return err
			}
			report.PrintGameSummary(os.Stdout, r.Summary)
			report.PrintBoxScore(os.Stdout, finalSnapshots(p), names, "")
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d games failed", failed, len(args))
	}
	return nil
}
