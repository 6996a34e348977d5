package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/pable/go-pbp-metrics/internal/derive"
	"github.com/pable/go-pbp-metrics/internal/engine"
	"github.com/pable/go-pbp-metrics/internal/interval"
	"github.com/pable/go-pbp-metrics/internal/model"
)

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignRight},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
}

// PrintGameSummary prints a one-line header for a game.
func PrintGameSummary(w io.Writer, s model.GameSummary) {
	fmt.Fprintf(w, "\nGame: %s  |  Date: %s  |  %s %d – %d %s  |  Periods: %d  |  Events: %d\n\n",
		s.GameID, dateString(s.Date), s.HomeTeamID, s.HomeScore, s.AwayScore, s.AwayTeamID, s.Periods, s.Events)
}

// PrintGameList prints one row per stored game.
func PrintGameList(w io.Writer, games []model.GameSummary) {
	table := newTable(w)
	table.Header("GAME", "DATE", "HOME", "SCORE", "AWAY", "PER", "EVENTS", "STATUS")
	for _, g := range games {
		status := g.Status
		switch g.Status {
		case model.StatusFailed:
			status = color.RedString(g.Status)
		case model.StatusUndecided:
			status = color.YellowString(g.Status)
		}
		table.Append(
			g.GameID,
			dateString(g.Date),
			g.HomeTeamID,
			fmt.Sprintf("%d-%d", g.HomeScore, g.AwayScore),
			g.AwayTeamID,
			strconv.Itoa(g.Periods),
			strconv.Itoa(g.Events),
			status,
		)
	}
	table.Render()
}

// PrintBoxScore prints the traditional box score from final snapshots: players
// of each team followed by the team totals row. names maps player ids to
// display names; focus marks one player's row with ">".
func PrintBoxScore(w io.Writer, finals []model.Snapshot, names map[string]string, focus string) {
	table := newTable(w)
	table.Header(" ", "PLAYER", "TEAM", "MIN", "PTS", "FG", "3P", "FT", "OREB", "DREB", "REB",
		"AST", "STL", "BLK", "TOV", "PF", "+/-")

	for _, team := range teamsOf(finals) {
		for _, s := range finals {
			if s.Entity.Kind != model.EntityPlayer || s.TeamID != team {
				continue
			}
			marker := " "
			if focus != "" && s.Entity.ID == focus {
				marker = ">"
			}
			table.Append(boxRow(marker, displayName(names, s.Entity.ID), s.TeamID, s.Totals())...)
		}
		for _, s := range finals {
			if s.Entity == model.Team(team) {
				table.Append(boxRow(" ", "TOTAL", team, s.Totals())...)
			}
		}
	}
	table.Render()
}

func boxRow(marker, name, team string, c model.Counters) []any {
	return []any{
		marker,
		name,
		team,
		minutes(c.OnCourt),
		strconv.Itoa(c.Points),
		fmt.Sprintf("%d-%d", c.FGM, c.FGA),
		fmt.Sprintf("%d-%d", c.FG3M, c.FG3A),
		fmt.Sprintf("%d-%d", c.FTM, c.FTA),
		strconv.Itoa(c.OREB),
		strconv.Itoa(c.DREB),
		strconv.Itoa(c.REB),
		strconv.Itoa(c.AST),
		strconv.Itoa(c.STL),
		strconv.Itoa(c.BLK),
		strconv.Itoa(c.TOV),
		strconv.Itoa(c.PF),
		signed(c.PlusMinus),
	}
}

// PrintAdvancedTable prints per-player derived statistics.
func PrintAdvancedTable(w io.Writer, finals []model.Snapshot, names map[string]string) {
	table := newTable(w)
	table.Header("PLAYER", "TEAM", "TS%", "EFG%", "USG%", "AST%", "STL%", "BLK%", "ORB%", "DRB%", "TRB%", "GMSC", "GMSC/100")
	for _, team := range teamsOf(finals) {
		for _, s := range finals {
			if s.Entity.Kind != model.EntityPlayer || s.TeamID != team || s.Counters.OnCourt == 0 {
				continue
			}
			d := s.Derived
			table.Append(
				displayName(names, s.Entity.ID),
				s.TeamID,
				pct(d.TSPct),
				pct(d.EFGPct),
				pct(d.UsagePct),
				pct(d.ASTPct),
				pct(d.STLPct),
				pct(d.BLKPct),
				pct(d.ORBPct),
				pct(d.DRBPct),
				pct(d.TRBPct),
				fmt.Sprintf("%.1f", d.GameScore),
				d.GameScorePer100.Text("%.1f"),
			)
		}
	}
	table.Render()
}

// PrintTeamTable prints Four Factors, pace and ratings for both teams.
func PrintTeamTable(w io.Writer, finals []model.Snapshot) {
	table := newTable(w)
	table.Header("TEAM", "PTS", "POSS", "PACE", "ORTG", "DRTG", "NET", "EFG%", "TOV%", "ORB%", "FTR", "TS%")
	for _, s := range finals {
		if s.Entity.Kind != model.EntityTeam {
			continue
		}
		d := s.Derived
		table.Append(
			s.Entity.ID,
			strconv.Itoa(s.Totals().Points),
			fmt.Sprintf("%.1f", d.Possessions),
			d.Pace.Text("%.1f"),
			d.OffRating.Text("%.1f"),
			d.DefRating.Text("%.1f"),
			d.NetRating.Text("%+.1f"),
			pct(d.EFGPct),
			pct(d.TOVPct),
			pct(d.ORBPct),
			d.FTRate.Text("%.3f"),
			pct(d.TSPct),
		)
	}
	table.Render()
}

// PrintSnapshot prints one entity's cumulative state. bio may be nil.
func PrintSnapshot(w io.Writer, s model.Snapshot, name string, bio *model.BioContext) {
	state := ""
	if s.Entity.Kind == model.EntityPlayer {
		state = "  |  off court"
		if s.OnCourt {
			state = "  |  on court"
		}
	}
	fmt.Fprintf(w, "\n%s (%s)  |  ordinal %d  |  period %d  |  elapsed %s%s\n",
		name, s.Entity, s.Ordinal, s.Period, minutes(s.Elapsed), state)
	if bio != nil {
		fmt.Fprintf(w, "age %.1f  |  %d in  |  %d lb  |  %.1f seasons\n",
			bio.AgeYears, bio.HeightIn, bio.WeightLb, bio.ExperienceYears)
	}
	fmt.Fprintln(w)
	PrintCounters(w, s.Totals(), s.Derived)
}

// PrintInterval prints an interval's counters and re-derived statistics.
func PrintInterval(w io.Writer, label string, st interval.Stats) {
	fmt.Fprintf(w, "\n%s  |  %s  |  ordinals %d–%d\n\n", st.Entity, label, st.FromOrdinal, st.ToOrdinal)
	PrintCounters(w, st.Counters, st.Derived)
}

// PrintCounters prints a single counters row followed by its shooting splits.
func PrintCounters(w io.Writer, c model.Counters, d model.Derived) {
	table := newTable(w)
	table.Header("MIN", "PTS", "FG", "3P", "FT", "REB", "AST", "STL", "BLK", "TOV", "PF", "+/-",
		"FG%", "3P%", "FT%", "TS%", "EFG%", "GMSC")
	table.Append(
		minutes(c.OnCourt),
		strconv.Itoa(c.Points),
		fmt.Sprintf("%d-%d", c.FGM, c.FGA),
		fmt.Sprintf("%d-%d", c.FG3M, c.FG3A),
		fmt.Sprintf("%d-%d", c.FTM, c.FTA),
		strconv.Itoa(c.REB),
		strconv.Itoa(c.AST),
		strconv.Itoa(c.STL),
		strconv.Itoa(c.BLK),
		strconv.Itoa(c.TOV),
		strconv.Itoa(c.PF),
		signed(c.PlusMinus),
		pct(d.FGPct),
		pct(d.FG3Pct),
		pct(d.FTPct),
		pct(d.TSPct),
		pct(d.EFGPct),
		fmt.Sprintf("%.1f", d.GameScore),
	)
	table.Render()
}

// PrintSplits prints one row per window and, for more than one window, a
// per-window average. Windows with no attempts do not count toward the
// averaged percentages.
func PrintSplits(w io.Writer, splits []engine.Split) {
	table := newTable(w)
	table.Header("WINDOW", "MIN", "PTS", "FG", "3P", "FT", "REB", "AST", "TOV", "+/-", "TS%", "EFG%")
	var ts, efg []model.Ratio
	var pts int
	for _, sp := range splits {
		c, d := sp.Stats.Counters, sp.Stats.Derived
		ts = append(ts, d.TSPct)
		efg = append(efg, d.EFGPct)
		pts += c.Points
		table.Append(
			sp.Window.String(),
			minutes(c.OnCourt),
			strconv.Itoa(c.Points),
			fmt.Sprintf("%d-%d", c.FGM, c.FGA),
			fmt.Sprintf("%d-%d", c.FG3M, c.FG3A),
			fmt.Sprintf("%d-%d", c.FTM, c.FTA),
			strconv.Itoa(c.REB),
			strconv.Itoa(c.AST),
			strconv.Itoa(c.TOV),
			signed(c.PlusMinus),
			pct(d.TSPct),
			pct(d.EFGPct),
		)
	}
	if len(splits) > 1 {
		table.Append("AVG", "", fmt.Sprintf("%.1f", float64(pts)/float64(len(splits))),
			"", "", "", "", "", "", "", pct(derive.MeanRatio(ts...)), pct(derive.MeanRatio(efg...)))
	}
	table.Render()
	if len(splits) == 0 {
		fmt.Fprintln(w, "(no windows)")
	}
}

// GradeString colours a grade for terminal output.
func GradeString(g model.Grade) string {
	switch g {
	case model.GradeExact:
		return color.GreenString(g.String())
	case model.GradeMinor:
		return color.YellowString(g.String())
	case model.GradeModerate:
		return color.MagentaString(g.String())
	default:
		return color.RedString(g.String())
	}
}

// PrintVerification prints a verification record. Unless all is set only the
// mismatched statistics are listed.
func PrintVerification(w io.Writer, rec model.VerificationRecord, all bool) {
	fmt.Fprintf(w, "\nGame: %s  |  Grade: %s  |  Entities: %d  |  Max error: %.3f",
		rec.GameID, GradeString(rec.Grade), rec.Entities, rec.MaxAbsError)
	if rec.WorstStat != "" {
		fmt.Fprintf(w, " (%s)", rec.WorstStat)
	}
	fmt.Fprintln(w)

	fmt.Fprint(w, "Coverage:")
	for _, c := range model.Categories {
		mark := color.RedString("✗")
		if rec.Coverage[c] {
			mark = color.GreenString("✓")
		}
		fmt.Fprintf(w, "  %s %s", c, mark)
	}
	fmt.Fprintln(w)
	if rec.Reprocess {
		fmt.Fprintf(w, "Reprocess: ordinals %d–%d\n", rec.FromOrdinal, rec.ToOrdinal)
	}
	fmt.Fprintln(w)

	rows := rec.Mismatches()
	if all {
		rows = rec.Errors
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "No mismatches.")
		return
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].AbsError > rows[j].AbsError })
	table := newTable(w)
	table.Header("ENTITY", "STAT", "CATEGORY", "GENERATED", "AUTHORITATIVE", "ABS ERR")
	for _, e := range rows {
		gen := strconv.FormatFloat(e.Generated, 'f', -1, 64)
		errStr := strconv.FormatFloat(e.AbsError, 'f', -1, 64)
		if e.Missing {
			gen, errStr = "—", color.RedString("missing")
		}
		table.Append(
			e.Entity.String(),
			e.Stat,
			e.Category.String(),
			gen,
			strconv.FormatFloat(e.Authoritative, 'f', -1, 64),
			errStr,
		)
	}
	table.Render()
}

func teamsOf(snaps []model.Snapshot) []string {
	var out []string
	for _, s := range snaps {
		if s.Entity.Kind == model.EntityTeam {
			out = append(out, s.Entity.ID)
		}
	}
	return out
}

func displayName(names map[string]string, id string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	return id
}

func pct(r model.Ratio) string {
	if !r.Valid {
		return "—"
	}
	return fmt.Sprintf("%.1f", 100*r.Value)
}

func signed(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// minutes renders a duration as M:SS.
func minutes(d time.Duration) string {
	s := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func dateString(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Format("2006-01-02")
}
