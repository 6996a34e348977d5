package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-pbp-metrics/internal/model"
	"github.com/pable/go-pbp-metrics/internal/report"
	"github.com/pable/go-pbp-metrics/internal/snapshot"
)

var (
	snapPlayer    string
	snapTeam      string
	snapOrdinal   int
	snapElapsed   string
	snapPeriodEnd int
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <game>",
	Short: "Show an entity's cumulative state as of a point in a game",
	Long: `Show the latest snapshot of a player or team at or before the requested
point: an event ordinal, an elapsed game time (e.g. 18m30s) or the end of a
period. Without a point, the final snapshot is shown.

Player snapshots are joined with the biographical table when it holds the
player (see 'pbpmetrics bio import').`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVar(&snapPlayer, "player", "", "player id")
	snapshotCmd.Flags().StringVar(&snapTeam, "team", "", "team id")
	snapshotCmd.Flags().IntVar(&snapOrdinal, "ordinal", 0, "as of this event ordinal")
	snapshotCmd.Flags().StringVar(&snapElapsed, "elapsed", "", "as of this elapsed game time")
	snapshotCmd.Flags().IntVar(&snapPeriodEnd, "period-end", 0, "as of the end of this period")
}

func snapshotPoint(last int) (snapshot.Point, error) {
	set := 0
	at := snapshot.AtOrdinal(last)
	if snapOrdinal > 0 {
		set++
		at = snapshot.AtOrdinal(snapOrdinal)
	}
	if snapElapsed != "" {
		set++
		d, err := parseElapsed(snapElapsed)
		if err != nil {
			return at, err
		}
		at = snapshot.AtElapsed(d)
	}
	if snapPeriodEnd > 0 {
		set++
		at = snapshot.AtPeriodEnd(snapPeriodEnd)
	}
	if set > 1 {
		return at, fmt.Errorf("use only one of --ordinal, --elapsed, --period-end")
	}
	return at, nil
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ref, err := entityRef(snapPlayer, snapTeam)
	if err != nil {
		return err
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

	game, err := lookupGame(db, args[0])
	if err != nil {
		return err
	}
	at, err := snapshotPoint(game.LastOrdinal)
	if err != nil {
		return err
	}
	s, ok, err := eng.Snapshot(game.GameID, ref, at)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(os.Stdout, "No snapshot of %s at %s in game %s.\n", ref, at, game.GameID)
		return nil
	}

	names, err := rosterNames(db, game.GameID)
	if err != nil {
		return err
	}
	var bioCtx *model.BioContext
	if ref.Kind == model.EntityPlayer {
		bio, err := db.GetBio(ref.ID)
		if err != nil {
			return fmt.Errorf("get bio: %w", err)
		}
		if bio != nil {
			c := bio.At(game.Date)
			bioCtx = &c
		}
	}
	report.PrintSnapshot(os.Stdout, s, entityName(names, ref), bioCtx)
	return nil
}
