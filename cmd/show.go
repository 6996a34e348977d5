package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-pbp-metrics/internal/engine"
	"github.com/pable/go-pbp-metrics/internal/report"
	"github.com/pable/go-pbp-metrics/internal/storage"
)

var showPlayerID string

var showCmd = &cobra.Command{
	Use:   "show <game>",
	Short: "Show a stored game's box score, team ratings and advanced stats",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().StringVar(&showPlayerID, "player", "", "highlight player id")
}

func runShow(cmd *cobra.Command, args []string) error {
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
	return showGame(db, eng, args[0], showPlayerID)
}

func showGame(db *storage.DB, eng *engine.Engine, idOrPrefix, focus string) error {
	game, err := lookupGame(db, idOrPrefix)
	if err != nil {
		return err
	}
	report.PrintGameSummary(os.Stdout, *game)
	if game.Error != "" {
		fmt.Fprintf(os.Stdout, "Reconstruction failed: %s\n", game.Error)
		return nil
	}

	p, err := eng.Partition(game.GameID)
	if err != nil {
		return err
	}
	names, err := rosterNames(db, game.GameID)
	if err != nil {
		return err
	}
	finals := finalSnapshots(p)
	report.PrintBoxScore(os.Stdout, finals, names, focus)
	fmt.Fprintln(os.Stdout)
	report.PrintTeamTable(os.Stdout, finals)
	fmt.Fprintln(os.Stdout)
	report.PrintAdvancedTable(os.Stdout, finals, names)

	rec, ok, err := eng.Verification(game.GameID)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintf(os.Stdout, "\nVerification grade: %s (%s)\n",
			report.GradeString(rec.Grade), rec.VerifiedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
