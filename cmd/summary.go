package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/pable/go-pbp-metrics/internal/model"
	"github.com/pable/go-pbp-metrics/internal/report"
)

// summaryCmd is the cobra command for displaying a high-level database overview.
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show a high-level overview of the database",
	Long: `Display aggregate statistics about all games stored in the database:
game count, date range, failed reconstructions, games stored without a
winner, snapshot volume and the distribution of verification grades.`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ov, err := db.GetDBOverview()
	if err != nil {
		return fmt.Errorf("get overview: %w", err)
	}
	if ov.TotalGames == 0 {
		fmt.Fprintln(os.Stdout, "No games stored yet. Run 'pbpmetrics ingest <game.json>' to add one.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "\n=== Database Summary ===\n\n")
	fmt.Fprintf(os.Stdout, "  Games stored  : %d (%d failed, %d undecided)\n",
		ov.TotalGames, ov.FailedGames, ov.UndecidedGames)
	fmt.Fprintf(os.Stdout, "  Date range    : %s → %s\n", ov.EarliestGame, ov.LatestGame)
	fmt.Fprintf(os.Stdout, "  Teams         : %d\n", ov.Teams)
	fmt.Fprintf(os.Stdout, "  Players seen  : %d\n", ov.Players)
	fmt.Fprintf(os.Stdout, "  Snapshots     : %d\n", ov.Snapshots)
	fmt.Fprintf(os.Stdout, "  Bio records   : %d\n", ov.Bios)
	fmt.Fprintf(os.Stdout, "  Verified      : %d\n", ov.VerifiedGames)

	grades, err := db.GradeCounts()
	if err != nil {
		return fmt.Errorf("get grades: %w", err)
	}
	if len(grades) == 0 {
		return nil
	}
	fmt.Fprintf(os.Stdout, "\n--- Verification Grades ---\n\n")
	gt := tablewriter.NewTable(os.Stdout, tablewriter.WithConfig(tablewriter.Config{
		Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignRight}},
		Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
	}))
	gt.Header("GRADE", "GAMES", "SHARE")
	for _, g := range grades {
		gt.Append(
			report.GradeString(model.ParseGrade(g.Grade)),
			fmt.Sprintf("%d", g.Games),
			fmt.Sprintf("%.0f%%", 100*float64(g.Games)/float64(ov.VerifiedGames)),
		)
	}
	gt.Render()
	return nil
}
