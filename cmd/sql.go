package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

var sqlCmd = &cobra.Command{
	Use:   "sql <query>",
	Short: "Run a raw SQL query against the metrics database",
	Long: `Run an arbitrary SQL query against the metrics database and print results as a table.

Schema overview:
  games(game_id, game_date, home_team_id, away_team_id, home_score, away_score,
    periods, events, last_ordinal, status, error, ingested_at)
  rosters(game_id, player_id, team_id, name, starter)
  snapshots(game_id, seq, entity_kind, entity_id, team_id, ordinal, period,
    elapsed_ms, on_court, pts, fgm, fga, fg3m, fg3a, ftm, fta, oreb, dreb, reb,
    ast, stl, blk, tov, pf, plus_minus, on_court_ms, period_points, unattributed, derived)
  verifications(game_id, grade, coverage, max_abs_error, worst_stat, entities,
    reprocess, from_ordinal, to_ordinal, verified_at)
  verification_errors(game_id, entity_kind, entity_id, stat, category,
    generated, authoritative, abs_error, missing)
  players(player_id, name, birth_date, height_in, weight_lb, career_start)

Note: derived, unattributed and period_points are JSON text. Use json_extract:
  SELECT entity_id, json_extract(derived, '$.ts_pct') FROM snapshots WHERE ...`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSQL,
}

func runSQL(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	cols, rows, err := db.QueryRaw(query)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Println("(no rows)")
		return nil
	}

	table := tablewriter.NewTable(os.Stdout, tablewriter.WithConfig(tablewriter.Config{
		Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignRight}},
		Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
	}))

	colsAny := make([]any, len(cols))
	for i, c := range cols {
		colsAny[i] = c
	}
	table.Header(colsAny...)

	for _, row := range rows {
		rowAny := make([]any, len(row))
		for i, v := range row {
			rowAny[i] = v
		}
		table.Append(rowAny...)
	}
	table.Render()
	fmt.Fprintf(os.Stdout, "\n(%d rows)\n", len(rows))
	return nil
}

