package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pable/go-pbp-metrics/internal/boundary"
	"github.com/pable/go-pbp-metrics/internal/model"
)

const gameDoc = `{
  "game_id": "0022300001",
  "date": "2023-10-24",
  "home": {"team_id": "DEN", "players": [
    {"id": "p1", "name": "One", "starter": true},
    {"id": "p2", "name": "Two", "starter": false}
  ]},
  "away": {"team_id": "LAL", "players": [{"player_id": "q1", "name": "Uno", "starter": true}]},
  "events": [
    {"ordinal": 1, "period": 1, "clock": "12:00", "kind": "period_boundary", "edge": "start",
     "lineups": {"DEN": ["p1"], "LAL": ["q1"]}},
    {"ordinal": 2, "period": 1, "clock": "11:24.5", "elapsed": 35.5, "kind": "made_shot", "team": "DEN",
     "player": "p1", "secondary": "p2", "value": 3, "distance": 25.1, "x": -22.0, "y": 8.5,
     "wall_clock": "2023-10-25T02:11:07Z"},
    {"ordinal": 3, "period": 1, "clock": 600, "kind": "missed_shot", "team_id": "LAL", "player_id": "q1", "fouled": true},
    {"ordinal": 4, "period": 1, "clock": "10:00", "kind": "foul", "team": "DEN", "player": "p2", "foul_type": "shooting", "secondary": "q1"},
    {"ordinal": 5, "period": 1, "clock": "10:00", "kind": "free_throw", "team": "LAL", "player": "q1", "made": true, "number": 1, "of": 2},
    {"ordinal": 6, "period": 1, "clock": "9:40", "kind": "rebound", "team": "DEN", "offensive": false},
    {"ordinal": 7, "period": 1, "clock": "9:30", "kind": "assist", "team": "DEN", "player": "p2", "shot_ordinal": 2},
    {"ordinal": 8, "period": 5, "clock": "0:00", "kind": "period_boundary", "edge": "end"}
  ]
}`

func TestParseGame(t *testing.T) {
	g, err := ParseGame([]byte(gameDoc), boundary.DefaultRules())
	if err != nil {
		t.Fatalf("ParseGame: %v", err)
	}
	if g.GameID != "0022300001" || g.HomeTeamID != "DEN" || g.AwayTeamID != "LAL" {
		t.Errorf("header = %s %s %s", g.GameID, g.HomeTeamID, g.AwayTeamID)
	}
	if !g.Date.Equal(time.Date(2023, 10, 24, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %s", g.Date)
	}
	if len(g.Roster) != 3 || g.Roster[2].PlayerID != "q1" || g.Roster[2].TeamID != "LAL" || !g.Roster[0].Starter || g.Roster[1].Starter {
		t.Errorf("roster = %+v", g.Roster)
	}
	if len(g.Events) != 8 {
		t.Fatalf("events = %d, want 8", len(g.Events))
	}

	start := g.Events[0].Payload.(model.PeriodBoundary)
	if start.Edge != model.EdgeStart || start.Lineups["DEN"][0] != "p1" || g.Events[0].Elapsed != 0 {
		t.Errorf("start = %+v elapsed %s", start, g.Events[0].Elapsed)
	}

	made := g.Events[1]
	shot := made.Payload.(model.MadeShot)
	if shot.Value != 3 || shot.Distance != 25.1 || shot.Location.X != -22 || made.SecondaryID != "p2" {
		t.Errorf("made shot = %+v", made)
	}
	if made.Elapsed != 35500*time.Millisecond || made.Clock != 11*time.Minute+24500*time.Millisecond {
		t.Errorf("made shot clock=%s elapsed=%s", made.Clock, made.Elapsed)
	}
	if made.WallClock.IsZero() {
		t.Error("wall clock not parsed")
	}

	miss := g.Events[2]
	if p := miss.Payload.(model.MissedShot); !p.Fouled || p.Value != 2 || miss.TeamID != "LAL" || miss.PlayerID != "q1" {
		t.Errorf("missed shot = %+v", miss)
	}
	if miss.Elapsed != 2*time.Minute {
		t.Errorf("elapsed from clock = %s, want 2m", miss.Elapsed)
	}
	if f := g.Events[3].Payload.(model.Foul); f.Type != model.FoulShooting {
		t.Errorf("foul = %+v", f)
	}
	if ft := g.Events[4].Payload.(model.FreeThrow); !ft.Made || ft.Number != 1 || ft.Of != 2 {
		t.Errorf("free throw = %+v", ft)
	}
	if g.Events[5].PlayerID != "" || g.Events[5].Payload.(model.Rebound).Offensive {
		t.Errorf("team rebound = %+v", g.Events[5])
	}
	if a := g.Events[6].Payload.(model.Assist); a.ShotOrdinal != 2 {
		t.Errorf("assist = %+v", a)
	}
	// First overtime ends 53 minutes in.
	if end := g.Events[7]; end.Payload.(model.PeriodBoundary).Edge != model.EdgeEnd || end.Elapsed != 53*time.Minute {
		t.Errorf("overtime end = %+v", end)
	}
}

func TestParseGameErrors(t *testing.T) {
	tests := []struct {
		name, doc, want string
	}{
		{"invalid json", `{"game_id":`, "not valid JSON"},
		{"no id", `{"events": []}`, "no game_id"},
		{"unknown kind", `{"game_id": "g", "events": [{"ordinal": 1, "period": 1, "kind": "jump_ball"}]}`, "unknown kind"},
		{"bad clock", `{"game_id": "g", "events": [{"ordinal": 1, "period": 1, "clock": "ab:cd", "kind": "steal"}]}`, "clock"},
		{"bad foul", `{"game_id": "g", "events": [{"ordinal": 1, "period": 1, "kind": "foul", "foul_type": "hand_check"}]}`, "foul_type"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGame([]byte(tc.doc), boundary.DefaultRules())
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestRejectedGameKeepsHeader(t *testing.T) {
	doc := `{"game_id": "g7", "date": "2024-02-19", "home": {"team_id": "DEN"}, "away": {"team_id": "LAL"},
	  "events": [{"ordinal": 1, "period": 1, "kind": "steal"}, {"ordinal": 2, "period": 1, "kind": "jump_ball"}]}`
	g, err := ParseGame([]byte(doc), boundary.DefaultRules())
	if err == nil {
		t.Fatal("expected unknown kind error")
	}
	if g.GameID != "g7" || g.HomeTeamID != "DEN" || g.AwayTeamID != "LAL" || g.Date.Day() != 19 {
		t.Errorf("header = %+v", g)
	}
	if len(g.Events) != 0 {
		t.Errorf("rejected game carries %d events", len(g.Events))
	}
}

const boxDoc = `{
  "game_id": "0022300001",
  "teams": [
    {"team_id": "DEN", "stats": {"pts": 119, "reb": 42, "ts_pct": 61.3, "ff_tov": 0.12, "note": "x"},
     "period_points": [29, 30, 31, 29]}
  ],
  "players": [
    {"player_id": "p1", "team_id": "DEN", "stats": {"pts": 29, "min": 36.5, "usg_pct": 0.31}}
  ]
}`

func TestParseBoxScore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box.json")
	if err := os.WriteFile(path, []byte(boxDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	box, err := ParseBoxScoreFile(path)
	if err != nil {
		t.Fatalf("ParseBoxScoreFile: %v", err)
	}
	if box.GameID != "0022300001" || len(box.Lines) != 2 {
		t.Fatalf("box = %+v", box)
	}
	team := box.Lines[0]
	if team.Entity != model.Team("DEN") || team.Stats["pts"] != 119 || len(team.PeriodPoints) != 4 {
		t.Errorf("team line = %+v", team)
	}
	if got := team.Stats["ts_pct"]; got < 0.6129 || got > 0.6131 {
		t.Errorf("ts_pct = %v, want 0.613", got)
	}
	if _, ok := team.Stats["note"]; ok {
		t.Error("non-numeric stat kept")
	}
	player := box.Lines[1]
	if player.Entity != model.Player("p1") || player.TeamID != "DEN" || player.Stats["min"] != 36.5 || player.Stats["usg_pct"] != 0.31 {
		t.Errorf("player line = %+v", player)
	}
}
