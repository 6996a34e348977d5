// Package parser decodes normalized game documents into typed events and
// authoritative box scores.
package parser

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/pable/go-pbp-metrics/internal/boundary"
	"github.com/pable/go-pbp-metrics/internal/model"
)

// ParseGameFile reads and decodes a game document.
func ParseGameFile(path string, rules boundary.Rules) (model.Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Game{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseGame(data, rules)
}

// ParseGame decodes a game document:
//
//	{"game_id", "date", "home": {"team_id", "players": [{"id", "name", "starter"}]},
//	 "away": {...}, "events": [{"ordinal", "period", "clock", "elapsed", "kind", ...}]}
//
// Event order is kept as given. When an event has no "elapsed", it is computed
// from the period and the clock under rules.
//
// Once the game id is known, a failed decode still returns the header fields
// read so far (id, date, teams) with no events, so the caller can record the
// game as failed.
func ParseGame(data []byte, rules boundary.Rules) (model.Game, error) {
	if !gjson.ValidBytes(data) {
		return model.Game{}, fmt.Errorf("game document is not valid JSON")
	}
	doc := gjson.ParseBytes(data)

	g := model.Game{
		GameID:     doc.Get("game_id").String(),
		HomeTeamID: doc.Get("home.team_id").String(),
		AwayTeamID: doc.Get("away.team_id").String(),
	}
	if g.GameID == "" {
		return model.Game{}, fmt.Errorf("game document has no game_id")
	}
	if d := doc.Get("date").String(); d != "" {
		t, err := parseDate(d)
		if err != nil {
			return g, fmt.Errorf("game %s: %w", g.GameID, err)
		}
		g.Date = t
	}
	for _, side := range []string{"home", "away"} {
		teamID := doc.Get(side + ".team_id").String()
		for _, p := range doc.Get(side + ".players").Array() {
			id := firstString(p, "id", "player_id")
			if id == "" {
				g.Roster = nil
				return g, fmt.Errorf("game %s: %s player without id", g.GameID, side)
			}
			g.Roster = append(g.Roster, model.RosterEntry{
				PlayerID: id,
				TeamID:   teamID,
				Name:     p.Get("name").String(),
				Starter:  p.Get("starter").Bool(),
			})
		}
	}

	for i, e := range doc.Get("events").Array() {
		ev, err := parseEvent(g.GameID, e, rules)
		if err != nil {
			g.Events = nil
			return g, fmt.Errorf("game %s event #%d: %w", g.GameID, i, err)
		}
		g.Events = append(g.Events, ev)
	}
	return g, nil
}

func parseEvent(gameID string, e gjson.Result, rules boundary.Rules) (model.Event, error) {
	ev := model.Event{
		GameID:      gameID,
		Ordinal:     int(e.Get("ordinal").Int()),
		Period:      int(e.Get("period").Int()),
		TeamID:      firstString(e, "team", "team_id"),
		PlayerID:    firstString(e, "player", "player_id"),
		SecondaryID: firstString(e, "secondary", "secondary_id"),
	}
	if g := e.Get("game_id"); g.Exists() {
		ev.GameID = g.String()
	}
	clock, err := parseClock(e.Get("clock"))
	if err != nil {
		return ev, err
	}
	ev.Clock = clock
	if el := e.Get("elapsed"); el.Exists() {
		ev.Elapsed = seconds(el.Float())
	} else if ev.Period > 0 {
		ev.Elapsed = rules.PeriodEnd(ev.Period) - clock
	}
	if wc := e.Get("wall_clock").String(); wc != "" {
		t, err := time.Parse(time.RFC3339, wc)
		if err != nil {
			return ev, fmt.Errorf("wall_clock: %w", err)
		}
		ev.WallClock = t
	}

	kindName := e.Get("kind").String()
	kind, ok := model.ParseKind(kindName)
	if !ok {
		return ev, fmt.Errorf("unknown kind %q", kindName)
	}
	loc := model.ShotLocation{X: e.Get("x").Float(), Y: e.Get("y").Float()}
	switch kind {
	case model.KindMadeShot:
		ev.Payload = model.MadeShot{Value: shotValue(e), Distance: e.Get("distance").Float(), Location: loc}
	case model.KindMissedShot:
		ev.Payload = model.MissedShot{Value: shotValue(e), Distance: e.Get("distance").Float(), Location: loc, Fouled: e.Get("fouled").Bool()}
	case model.KindFreeThrow:
		ev.Payload = model.FreeThrow{
			Made:      e.Get("made").Bool(),
			Number:    int(e.Get("number").Int()),
			Of:        int(e.Get("of").Int()),
			Technical: e.Get("technical").Bool(),
		}
	case model.KindRebound:
		ev.Payload = model.Rebound{Offensive: e.Get("offensive").Bool()}
	case model.KindAssist:
		ev.Payload = model.Assist{ShotOrdinal: int(e.Get("shot_ordinal").Int())}
	case model.KindTurnover:
		ev.Payload = model.Turnover{Type: e.Get("type").String()}
	case model.KindSteal:
		ev.Payload = model.Steal{}
	case model.KindBlock:
		ev.Payload = model.Block{}
	case model.KindFoul:
		ft, ok := model.ParseFoulType(e.Get("foul_type").String())
		if !ok {
			return ev, fmt.Errorf("unknown foul_type %q", e.Get("foul_type").String())
		}
		ev.Payload = model.Foul{Type: ft}
	case model.KindSubIn:
		ev.Payload = model.SubIn{}
	case model.KindSubOut:
		ev.Payload = model.SubOut{}
	case model.KindPeriodBoundary:
		pb := model.PeriodBoundary{Edge: model.EdgeStart}
		if e.Get("edge").String() == "end" {
			pb.Edge = model.EdgeEnd
		}
		if lu := e.Get("lineups"); lu.IsObject() {
			pb.Lineups = make(map[string][]string)
			lu.ForEach(func(team, ids gjson.Result) bool {
				for _, id := range ids.Array() {
					pb.Lineups[team.String()] = append(pb.Lineups[team.String()], id.String())
				}
				return true
			})
		}
		ev.Payload = pb
	}
	return ev, nil
}

func shotValue(e gjson.Result) int {
	if v := e.Get("value"); v.Exists() {
		return int(v.Int())
	}
	return 2
}

func firstString(r gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() {
			return v.String()
		}
	}
	return ""
}

func seconds(f float64) time.Duration {
	return time.Duration(math.Round(f * float64(time.Second)))
}

// parseClock accepts "MM:SS", "MM:SS.s" or a number of seconds.
func parseClock(r gjson.Result) (time.Duration, error) {
	if !r.Exists() {
		return 0, nil
	}
	if r.Type == gjson.Number {
		return seconds(r.Float()), nil
	}
	s := r.String()
	mm, ss, ok := strings.Cut(s, ":")
	if !ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("clock %q: %w", s, err)
		}
		return seconds(f), nil
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("clock %q: %w", s, err)
	}
	sec, err := strconv.ParseFloat(ss, 64)
	if err != nil {
		return 0, fmt.Errorf("clock %q: %w", s, err)
	}
	return time.Duration(m)*time.Minute + seconds(sec), nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseBoxScoreFile reads and decodes an authoritative box score.
func ParseBoxScoreFile(path string) (model.BoxScore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.BoxScore{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseBoxScore(data)
}

// ParseBoxScore decodes
//
//	{"game_id", "teams": [{"team_id", "stats": {...}, "period_points": [...]}],
//	 "players": [{"player_id", "team_id", "stats": {...}}]}
//
// Percentage keys (*_pct) given on a 0-100 scale are converted to fractions.
func ParseBoxScore(data []byte) (model.BoxScore, error) {
	if !gjson.ValidBytes(data) {
		return model.BoxScore{}, fmt.Errorf("box score is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	box := model.BoxScore{GameID: doc.Get("game_id").String()}
	if box.GameID == "" {
		return model.BoxScore{}, fmt.Errorf("box score has no game_id")
	}
	for _, t := range doc.Get("teams").Array() {
		id := firstString(t, "team_id", "id")
		line := model.BoxLine{Entity: model.Team(id), TeamID: id, Stats: statMap(t.Get("stats"))}
		for _, pp := range t.Get("period_points").Array() {
			line.PeriodPoints = append(line.PeriodPoints, int(pp.Int()))
		}
		box.Lines = append(box.Lines, line)
	}
	for _, p := range doc.Get("players").Array() {
		id := firstString(p, "player_id", "id")
		if id == "" {
			return model.BoxScore{}, fmt.Errorf("box score %s: player line without id", box.GameID)
		}
		box.Lines = append(box.Lines, model.BoxLine{
			Entity: model.Player(id),
			TeamID: p.Get("team_id").String(),
			Stats:  statMap(p.Get("stats")),
		})
	}
	return box, nil
}

func statMap(r gjson.Result) map[string]float64 {
	out := make(map[string]float64)
	r.ForEach(func(k, v gjson.Result) bool {
		if v.Type != gjson.Number {
			return true
		}
		val := v.Float()
		if strings.HasSuffix(k.String(), "_pct") && val > 1 {
			val /= 100
		}
		out[k.String()] = val
		return true
	})
	return out
}
