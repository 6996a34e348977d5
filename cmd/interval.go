package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/go-pbp-metrics/internal/model"
	"github.com/pable/go-pbp-metrics/internal/report"
)

var (
	intervalPlayer string
	intervalTeam   string
)

var intervalCmd = &cobra.Command{
	Use:   "interval <game> <window>",
	Short: "Show an entity's statistics over one window of a game",
	Long: `Show the statistics a player or team produced inside one window only.
Counters are differenced between the window's boundary snapshots; rates are
re-derived from the differenced counters.

Windows:
  game          the whole game
  q1 .. q4      regulation quarters
  h1, h2        regulation halves
  ot1, ot2 ...  overtime periods
  ot1.h2        second half of the first overtime
  ot2.m3        third minute of the second overtime
  bucket:6m:4   fifth 6-minute bucket of regulation
  clutch        every clutch stretch of the game`,
	Args: cobra.ExactArgs(2),
	RunE: runInterval,
}

func init() {
	intervalCmd.Flags().StringVar(&intervalPlayer, "player", "", "player id")
	intervalCmd.Flags().StringVar(&intervalTeam, "team", "", "team id")
}

func runInterval(cmd *cobra.Command, args []string) error {
	ref, err := entityRef(intervalPlayer, intervalTeam)
	if err != nil {
		return err
	}
	w, err := model.ParseWindow(args[1])
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
	st, ok, err := eng.Interval(game.GameID, ref, w)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(os.Stdout, "Game %s has no %s window.\n", game.GameID, w)
		return nil
	}
	report.PrintInterval(os.Stdout, w.String(), st)
	return nil
}

// parseElapsed accepts a Go duration ("18m30s") or a clock-style "MM:SS".
func parseElapsed(s string) (time.Duration, error) {
	if mm, ss, ok := strings.Cut(s, ":"); ok {
		return time.ParseDuration(mm + "m" + ss + "s")
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("elapsed %q: %w", s, err)
	}
	return d, nil
}
