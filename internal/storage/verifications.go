package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pable/go-pbp-metrics/internal/model"
)

// SaveVerification stores a verification record and its per-stat comparisons,
// replacing any earlier record of the same game.
func (db *DB) SaveVerification(rec model.VerificationRecord) error {
	coverage := make(map[string]bool, len(rec.Coverage))
	for c, ok := range rec.Coverage {
		coverage[c.String()] = ok
	}
	cov, err := json.Marshal(coverage)
	if err != nil {
		return err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM verification_errors WHERE game_id = ?", rec.GameID); err != nil {
		return fmt.Errorf("clear verification errors for %s: %w", rec.GameID, err)
	}
	_, err = tx.Exec(`
		INSERT INTO verifications(game_id, grade, coverage, max_abs_error, worst_stat, entities,
			reprocess, from_ordinal, to_ordinal, verified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(game_id) DO UPDATE SET
			grade = excluded.grade, coverage = excluded.coverage,
			max_abs_error = excluded.max_abs_error, worst_stat = excluded.worst_stat,
			entities = excluded.entities, reprocess = excluded.reprocess,
			from_ordinal = excluded.from_ordinal, to_ordinal = excluded.to_ordinal,
			verified_at = excluded.verified_at`,
		rec.GameID, rec.Grade.String(), string(cov), rec.MaxAbsError, rec.WorstStat, rec.Entities,
		boolInt(rec.Reprocess), rec.FromOrdinal, rec.ToOrdinal, rec.VerifiedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert verification for %s: %w", rec.GameID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO verification_errors(
			game_id, entity_kind, entity_id, stat, category,
			generated, authoritative, abs_error, missing
		) VALUES (?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range rec.Errors {
		_, err = stmt.Exec(
			rec.GameID, e.Entity.Kind.String(), e.Entity.ID, e.Stat, e.Category.String(),
			e.Generated, e.Authoritative, e.AbsError, boolInt(e.Missing),
		)
		if err != nil {
			return fmt.Errorf("insert verification error %s %s: %w", e.Entity, e.Stat, err)
		}
	}
	return tx.Commit()
}

// GetVerification returns the stored verification of a game, or nil.
func (db *DB) GetVerification(gameID string) (*model.VerificationRecord, error) {
	rec := model.VerificationRecord{GameID: gameID}
	var grade, cov, verifiedAt string
	var reprocess int
	err := db.conn.QueryRow(`
		SELECT grade, coverage, max_abs_error, worst_stat, entities,
		       reprocess, from_ordinal, to_ordinal, verified_at
		FROM verifications WHERE game_id = ?`, gameID).
		Scan(&grade, &cov, &rec.MaxAbsError, &rec.WorstStat, &rec.Entities,
			&reprocess, &rec.FromOrdinal, &rec.ToOrdinal, &verifiedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.Grade = model.ParseGrade(grade)
	rec.Reprocess = reprocess != 0
	rec.VerifiedAt, _ = time.Parse(time.RFC3339, verifiedAt)

	var coverage map[string]bool
	if err := json.Unmarshal([]byte(cov), &coverage); err != nil {
		return nil, fmt.Errorf("decode coverage for %s: %w", gameID, err)
	}
	rec.Coverage = make(map[model.Category]bool, len(coverage))
	for name, ok := range coverage {
		rec.Coverage[model.ParseCategory(name)] = ok
	}

	rows, err := db.conn.Query(`
		SELECT entity_kind, entity_id, stat, category, generated, authoritative, abs_error, missing
		FROM verification_errors WHERE game_id = ?
		ORDER BY abs_error DESC, entity_kind DESC, entity_id, stat`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e model.StatError
		var kind, category string
		var missing int
		if err := rows.Scan(&kind, &e.Entity.ID, &e.Stat, &category,
			&e.Generated, &e.Authoritative, &e.AbsError, &missing); err != nil {
			return nil, err
		}
		e.Entity.Kind = model.ParseEntityKind(kind)
		e.Category = model.ParseCategory(category)
		e.Missing = missing != 0
		rec.Errors = append(rec.Errors, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GradeCount is the number of verified games holding one grade.
type GradeCount struct {
	Grade string
	Games int
}

// GradeCounts returns verified-game counts per grade, best grade first.
func (db *DB) GradeCounts() ([]GradeCount, error) {
	rows, err := db.conn.Query(`SELECT grade, COUNT(*) FROM verifications GROUP BY grade ORDER BY grade`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GradeCount
	for rows.Next() {
		var g GradeCount
		if err := rows.Scan(&g.Grade, &g.Games); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
