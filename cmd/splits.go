package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/go-pbp-metrics/internal/model"
	"github.com/pable/go-pbp-metrics/internal/report"
)

var (
	splitsPlayer string
	splitsTeam   string
	splitsBy     string
	splitsBucket time.Duration
)

var splitKinds = map[string]model.WindowKind{
	"quarter":   model.WindowQuarter,
	"half":      model.WindowHalf,
	"ot":        model.WindowOvertime,
	"ot-half":   model.WindowOvertimeHalf,
	"ot-minute": model.WindowOvertimeMinute,
	"bucket":    model.WindowBucket,
	"clutch":    model.WindowClutch,
}

var splitsCmd = &cobra.Command{
	Use:   "splits <game>",
	Short: "Show an entity's statistics for every window of one kind",
	Long: `Print one interval row per window the game reached.

--by accepts quarter, half, ot, ot-half, ot-minute, bucket and clutch. Bucket
splits use --bucket as their length and cover regulation only.`,
	Args: cobra.ExactArgs(1),
	RunE: runSplits,
}

func init() {
	splitsCmd.Flags().StringVar(&splitsPlayer, "player", "", "player id")
	splitsCmd.Flags().StringVar(&splitsTeam, "team", "", "team id")
	splitsCmd.Flags().StringVar(&splitsBy, "by", "quarter", "window kind")
	splitsCmd.Flags().DurationVar(&splitsBucket, "bucket", 6*time.Minute, "bucket length for --by bucket")
}

func runSplits(cmd *cobra.Command, args []string) error {
	ref, err := entityRef(splitsPlayer, splitsTeam)
	if err != nil {
		return err
	}
	kind, ok := splitKinds[splitsBy]
	if !ok {
		return fmt.Errorf("unknown split kind %q", splitsBy)
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
	splits, err := eng.Splits(game.GameID, ref, kind, splitsBucket)
	if err != nil {
		return err
	}
	names, err := rosterNames(db, game.GameID)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\n%s  |  %s splits  |  game %s\n\n", entityName(names, ref), splitsBy, game.GameID)
	report.PrintSplits(os.Stdout, splits)
	return nil
}
