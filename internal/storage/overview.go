package storage

import (
	"database/sql"
	"fmt"
)

// DBOverview holds headline counts for the summary command.
type DBOverview struct {
	TotalGames    int
	FailedGames    int
	UndecidedGames int
	VerifiedGames  int
	Teams         int
	Players       int
	Snapshots     int
	Bios          int
	EarliestGame  string
	LatestGame    string
}

// GetDBOverview aggregates headline counts across all stored games.
func (db *DB) GetDBOverview() (DBOverview, error) {
	var ov DBOverview
	var earliest, latest sql.NullString
	err := db.conn.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(status = 'failed'), 0),
		       COALESCE(SUM(status = 'undecided'), 0),
		       MIN(NULLIF(game_date, '')), MAX(NULLIF(game_date, ''))
		FROM games`).Scan(&ov.TotalGames, &ov.FailedGames, &ov.UndecidedGames, &earliest, &latest)
	if err != nil {
		return ov, fmt.Errorf("count games: %w", err)
	}
	ov.EarliestGame, ov.LatestGame = earliest.String, latest.String

	for _, q := range []struct {
		dst   *int
		query string
	}{
		{&ov.VerifiedGames, "SELECT COUNT(*) FROM verifications"},
		{&ov.Teams, "SELECT COUNT(DISTINCT team_id) FROM rosters"},
		{&ov.Players, "SELECT COUNT(DISTINCT player_id) FROM rosters"},
		{&ov.Snapshots, "SELECT COUNT(*) FROM snapshots"},
		{&ov.Bios, "SELECT COUNT(*) FROM players"},
	} {
		if err := db.conn.QueryRow(q.query).Scan(q.dst); err != nil {
			return ov, fmt.Errorf("overview %q: %w", q.query, err)
		}
	}
	return ov, nil
}

// QueryRaw runs an arbitrary query and returns column names and stringified rows.
func (db *DB) QueryRaw(query string) ([]string, [][]string, error) {
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			switch x := v.(type) {
			case nil:
				row[i] = "NULL"
			case []byte:
				row[i] = string(x)
			default:
				row[i] = fmt.Sprint(x)
			}
		}
		out = append(out, row)
	}
	return cols, out, rows.Err()
}
