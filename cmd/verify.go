package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-pbp-metrics/internal/logger"
	"github.com/pable/go-pbp-metrics/internal/parser"
	"github.com/pable/go-pbp-metrics/internal/report"
)

var (
	verifyAll  bool
	verifyGame string
)

var verifyCmd = &cobra.Command{
	Use:   "verify [<box.json>...]",
	Short: "Grade stored games against authoritative box scores",
	Long: `Compare each game's final snapshots with its authoritative box score and
store a graded verification record. Games graded below A are queued for
reprocessing when redis.url is configured.

With --game, print the stored verification of one game instead.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyAll, "all", false, "list every compared stat, not only mismatches")
	verifyCmd.Flags().StringVar(&verifyGame, "game", "", "show the stored verification of this game")
}

func runVerify(cmd *cobra.Command, args []string) error {
	if verifyGame == "" && len(args) == 0 {
		return fmt.Errorf("give box score files or --game")
	}
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

	if verifyGame != "" {
		game, err := lookupGame(db, verifyGame)
		if err != nil {
			return err
		}
		rec, ok, err := eng.Verification(game.GameID)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintf(os.Stdout, "Game %s has not been verified.\n", game.GameID)
			return nil
		}
		report.PrintVerification(os.Stdout, rec, verifyAll)
		return nil
	}

	var failed int
	for _, path := range args {
		box, err := parser.ParseBoxScoreFile(path)
		if err != nil {
			logger.Error("%v", err)
			failed++
			continue
		}
		rec, err := eng.Verify(context.Background(), box)
		if rec.GameID != "" {
			report.PrintVerification(os.Stdout, rec, verifyAll)
		}
		if err != nil {
			logger.Error("%v", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d box scores could not be verified", failed, len(args))
	}
	return nil
}
