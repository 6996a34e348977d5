package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dropForce bool
	dropGame  string
)

// dropCmd deletes the metrics database file, or one game from it.
var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Delete the metrics database or one stored game",
	Long: `Permanently delete the SQLite metrics database. All stored games, verifications
and biographical records will be lost. Re-ingest your games afterwards to rebuild.

With --game, only that game's snapshots, roster and verification are removed.`,
	Args: cobra.NoArgs,
	RunE: runDrop,
}

func init() {
	dropCmd.Flags().BoolVarP(&dropForce, "force", "f", false, "skip confirmation prompt")
	dropCmd.Flags().StringVar(&dropGame, "game", "", "delete only this game")
}

func runDrop(cmd *cobra.Command, args []string) error {
	if dropGame != "" {
		return dropOneGame()
	}
	if !dropForce {
		fmt.Fprintf(os.Stderr, "This will permanently delete: %s\n", dbPath)
		fmt.Fprintf(os.Stderr, "Re-run with --force to confirm.\n")
		return nil
	}
	if err := os.Remove(dbPath); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(os.Stdout, "Database does not exist, nothing to drop.")
			return nil
		}
		return fmt.Errorf("remove database: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Deleted: %s\n", dbPath)
	return nil
}

func dropOneGame() error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	game, err := lookupGame(db, dropGame)
	if err != nil {
		return err
	}
	if !dropForce {
		fmt.Fprintf(os.Stderr, "This will permanently delete game %s (%s vs %s).\n",
			game.GameID, game.HomeTeamID, game.AwayTeamID)
		fmt.Fprintf(os.Stderr, "Re-run with --force to confirm.\n")
		return nil
	}
	if _, err := db.DeleteGame(game.GameID); err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Deleted game: %s\n", game.GameID)
	return nil
}
