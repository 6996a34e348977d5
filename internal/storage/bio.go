package storage

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pable/go-pbp-metrics/internal/model"
)

// bioColumns are the accepted CSV header names. player_id is required, the
// rest are optional and may appear in any order.
var bioColumns = []string{"player_id", "name", "birth_date", "height_in", "weight_lb", "career_start"}

// ImportBios loads biographical records from CSV with a header row and
// upserts them. It returns the number of records written.
func (db *DB) ImportBios(r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read bio header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx["player_id"]; !ok {
		return 0, fmt.Errorf("bio csv: missing player_id column (want %s)", strings.Join(bioColumns, ","))
	}

	var bios []model.Bio
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read bio line %d: %w", line, err)
		}
		field := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		b := model.Bio{PlayerID: field("player_id"), Name: field("name")}
		if b.PlayerID == "" {
			return 0, fmt.Errorf("bio line %d: empty player_id", line)
		}
		b.BirthDate = parseDate(field("birth_date"))
		b.CareerStart = parseDate(field("career_start"))
		if b.HeightIn, err = optionalInt(field("height_in")); err != nil {
			return 0, fmt.Errorf("bio line %d: height_in: %w", line, err)
		}
		if b.WeightLb, err = optionalInt(field("weight_lb")); err != nil {
			return 0, fmt.Errorf("bio line %d: weight_lb: %w", line, err)
		}
		bios = append(bios, b)
	}
	if err := db.UpsertBios(bios); err != nil {
		return 0, err
	}
	return len(bios), nil
}

// UpsertBios bulk-inserts biographical records in a transaction.
func (db *DB) UpsertBios(bios []model.Bio) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO players(player_id, name, birth_date, height_in, weight_lb, career_start)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bios {
		_, err = stmt.Exec(b.PlayerID, b.Name, formatDate(b.BirthDate), b.HeightIn, b.WeightLb, formatDate(b.CareerStart))
		if err != nil {
			return fmt.Errorf("insert bio for %s: %w", b.PlayerID, err)
		}
	}
	return tx.Commit()
}

// GetBio returns the biographical record of a player, or nil.
func (db *DB) GetBio(playerID string) (*model.Bio, error) {
	b := model.Bio{PlayerID: playerID}
	var birth, career string
	err := db.conn.QueryRow(`
		SELECT name, birth_date, height_in, weight_lb, career_start
		FROM players WHERE player_id = ?`, playerID).
		Scan(&b.Name, &birth, &b.HeightIn, &b.WeightLb, &career)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.BirthDate = parseDate(birth)
	b.CareerStart = parseDate(career)
	return &b, nil
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
