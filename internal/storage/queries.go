package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pable/go-pbp-metrics/internal/model"
)

const dateLayout = "2006-01-02"

// GameExists returns true if a game with the given id has been stored.
func (db *DB) GameExists(gameID string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(1) FROM games WHERE game_id = ?", gameID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SaveGame replaces everything stored for the game with one transaction: the
// summary row, the roster and the full snapshot sequence. A reconstructed game
// invalidates any earlier verification of it.
func (db *DB) SaveGame(summary model.GameSummary, roster []model.RosterEntry, snaps []model.Snapshot) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := clearGame(tx, summary.GameID); err != nil {
		return err
	}
	if err := upsertGame(tx, summary); err != nil {
		return err
	}

	rstmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO rosters(game_id, player_id, team_id, name, starter)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer rstmt.Close()
	for _, r := range roster {
		if _, err := rstmt.Exec(summary.GameID, r.PlayerID, r.TeamID, r.Name, boolInt(r.Starter)); err != nil {
			return fmt.Errorf("insert roster for %s: %w", r.PlayerID, err)
		}
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO snapshots(
			game_id, seq, entity_kind, entity_id, team_id,
			ordinal, period, elapsed_ms, on_court,
			pts, fgm, fga, fg3m, fg3a, ftm, fta,
			oreb, dreb, reb, ast, stl, blk, tov, pf,
			plus_minus, on_court_ms,
			period_points, unattributed, derived
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, s := range snaps {
		c := s.Counters
		pp, err := json.Marshal(nonNil(c.PeriodPoints))
		if err != nil {
			return err
		}
		un, err := json.Marshal(s.Unattributed)
		if err != nil {
			return err
		}
		dv, err := json.Marshal(s.Derived)
		if err != nil {
			return err
		}
		_, err = stmt.Exec(
			summary.GameID, i, s.Entity.Kind.String(), s.Entity.ID, s.TeamID,
			s.Ordinal, s.Period, s.Elapsed.Milliseconds(), boolInt(s.OnCourt),
			c.Points, c.FGM, c.FGA, c.FG3M, c.FG3A, c.FTM, c.FTA,
			c.OREB, c.DREB, c.REB, c.AST, c.STL, c.BLK, c.TOV, c.PF,
			c.PlusMinus, c.OnCourt.Milliseconds(),
			string(pp), string(un), string(dv),
		)
		if err != nil {
			return fmt.Errorf("insert snapshot for %s at %d: %w", s.Entity, s.Ordinal, err)
		}
	}
	return tx.Commit()
}

// MarkFailed records an aborted game. Any snapshots of an earlier successful
// run are removed so that the game reads as absent.
func (db *DB) MarkFailed(summary model.GameSummary) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := clearGame(tx, summary.GameID); err != nil {
		return err
	}
	summary.Status = model.StatusFailed
	if err := upsertGame(tx, summary); err != nil {
		return err
	}
	return tx.Commit()
}

func clearGame(tx *sql.Tx, gameID string) error {
	for _, q := range []string{
		"DELETE FROM verification_errors WHERE game_id = ?",
		"DELETE FROM verifications WHERE game_id = ?",
		"DELETE FROM snapshots WHERE game_id = ?",
		"DELETE FROM rosters WHERE game_id = ?",
	} {
		if _, err := tx.Exec(q, gameID); err != nil {
			return fmt.Errorf("clear game %s: %w", gameID, err)
		}
	}
	return nil
}

func upsertGame(tx *sql.Tx, s model.GameSummary) error {
	status := s.Status
	if status == "" {
		status = model.StatusComplete
	}
	_, err := tx.Exec(`
		INSERT INTO games(game_id, game_date, home_team_id, away_team_id, home_score, away_score,
			periods, events, last_ordinal, status, error, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			game_date = excluded.game_date, home_team_id = excluded.home_team_id,
			away_team_id = excluded.away_team_id, home_score = excluded.home_score,
			away_score = excluded.away_score, periods = excluded.periods,
			events = excluded.events, last_ordinal = excluded.last_ordinal,
			status = excluded.status, error = excluded.error, ingested_at = excluded.ingested_at`,
		s.GameID, formatDate(s.Date), s.HomeTeamID, s.AwayTeamID, s.HomeScore, s.AwayScore,
		s.Periods, s.Events, s.LastOrdinal, status, s.Error, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert game %s: %w", s.GameID, err)
	}
	return nil
}

const gameColumns = `game_id, game_date, home_team_id, away_team_id, home_score, away_score,
	periods, events, last_ordinal, status, error`

func scanGame(sc interface{ Scan(...any) error }) (model.GameSummary, error) {
	var s model.GameSummary
	var date string
	if err := sc.Scan(&s.GameID, &date, &s.HomeTeamID, &s.AwayTeamID, &s.HomeScore, &s.AwayScore,
		&s.Periods, &s.Events, &s.LastOrdinal, &s.Status, &s.Error); err != nil {
		return s, err
	}
	s.Date = parseDate(date)
	return s, nil
}

// ListGames returns all stored game summaries ordered by date desc.
func (db *DB) ListGames() ([]model.GameSummary, error) {
	rows, err := db.conn.Query(`SELECT ` + gameColumns + ` FROM games ORDER BY game_date DESC, game_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.GameSummary
	for rows.Next() {
		s, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetGame finds the game with the given id, or the first whose id starts with
// it. Returns nil when nothing matches.
func (db *DB) GetGame(idOrPrefix string) (*model.GameSummary, error) {
	row := db.conn.QueryRow(`SELECT `+gameColumns+` FROM games
		WHERE game_id = ? OR game_id LIKE ?
		ORDER BY game_id = ? DESC, game_id LIMIT 1`, idOrPrefix, idOrPrefix+"%", idOrPrefix)
	s, err := scanGame(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetRoster returns the roster stored with a game, home players first.
func (db *DB) GetRoster(gameID string) ([]model.RosterEntry, error) {
	rows, err := db.conn.Query(`
		SELECT r.player_id, r.team_id, r.name, r.starter
		FROM rosters r JOIN games g ON g.game_id = r.game_id
		WHERE r.game_id = ?
		ORDER BY r.team_id != g.home_team_id, r.starter DESC, r.player_id`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RosterEntry
	for rows.Next() {
		var r model.RosterEntry
		var starter int
		if err := rows.Scan(&r.PlayerID, &r.TeamID, &r.Name, &starter); err != nil {
			return nil, err
		}
		r.Starter = starter != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadSnapshots returns every snapshot of a game in emission order.
func (db *DB) LoadSnapshots(gameID string) ([]model.Snapshot, error) {
	rows, err := db.conn.Query(`
		SELECT entity_kind, entity_id, team_id, ordinal, period, elapsed_ms, on_court,
		       pts, fgm, fga, fg3m, fg3a, ftm, fta,
		       oreb, dreb, reb, ast, stl, blk, tov, pf,
		       plus_minus, on_court_ms,
		       period_points, unattributed, derived
		FROM snapshots WHERE game_id = ?
		ORDER BY seq`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		s := model.Snapshot{GameID: gameID}
		c := &s.Counters
		var kind, pp, un, dv string
		var elapsedMs, onCourtMs int64
		var onCourt int
		if err := rows.Scan(
			&kind, &s.Entity.ID, &s.TeamID, &s.Ordinal, &s.Period, &elapsedMs, &onCourt,
			&c.Points, &c.FGM, &c.FGA, &c.FG3M, &c.FG3A, &c.FTM, &c.FTA,
			&c.OREB, &c.DREB, &c.REB, &c.AST, &c.STL, &c.BLK, &c.TOV, &c.PF,
			&c.PlusMinus, &onCourtMs,
			&pp, &un, &dv,
		); err != nil {
			return nil, err
		}
		s.Entity.Kind = model.ParseEntityKind(kind)
		s.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		s.OnCourt = onCourt != 0
		c.OnCourt = time.Duration(onCourtMs) * time.Millisecond
		if err := json.Unmarshal([]byte(pp), &c.PeriodPoints); err != nil {
			return nil, fmt.Errorf("decode period points for %s at %d: %w", s.Entity, s.Ordinal, err)
		}
		if len(c.PeriodPoints) == 0 {
			c.PeriodPoints = nil
		}
		if err := json.Unmarshal([]byte(un), &s.Unattributed); err != nil {
			return nil, fmt.Errorf("decode unattributed for %s at %d: %w", s.Entity, s.Ordinal, err)
		}
		if err := json.Unmarshal([]byte(dv), &s.Derived); err != nil {
			return nil, fmt.Errorf("decode derived for %s at %d: %w", s.Entity, s.Ordinal, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteGame removes a game and everything stored for it. It reports whether
// the game existed.
func (db *DB) DeleteGame(gameID string) (bool, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if err := clearGame(tx, gameID); err != nil {
		return false, err
	}
	res, err := tx.Exec("DELETE FROM games WHERE game_id = ?", gameID)
	if err != nil {
		return false, fmt.Errorf("delete game %s: %w", gameID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(xs []int) []int {
	if xs == nil {
		return []int{}
	}
	return xs
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}
