// Package testkit builds synthetic games for tests across packages.
package testkit

import (
	"fmt"
	"time"

	"github.com/pable/go-pbp-metrics/internal/model"
)

// Team and player ids used by NewGame. Players 1-5 start; 6-8 come off the bench.
const (
	Home = "HOM"
	Away = "AWY"
)

// Period lengths used to place events on the game clock.
const (
	PeriodLength   = 12 * time.Minute
	OvertimeLength = 5 * time.Minute
	Regulation     = 4
)

// HomePlayer returns the id of home player n (1-based).
func HomePlayer(n int) string { return fmt.Sprintf("h%d", n) }

// AwayPlayer returns the id of away player n (1-based).
func AwayPlayer(n int) string { return fmt.Sprintf("a%d", n) }

// PeriodStart returns the elapsed game time at which period p begins.
func PeriodStart(p int) time.Duration {
	if p <= Regulation {
		return time.Duration(p-1) * PeriodLength
	}
	return Regulation*PeriodLength + time.Duration(p-Regulation-1)*OvertimeLength
}

// PeriodLen returns the nominal length of period p.
func PeriodLen(p int) time.Duration {
	if p <= Regulation {
		return PeriodLength
	}
	return OvertimeLength
}

// GameBuilder appends events with increasing ordinals. Time only moves forward
// through At; the builder does not validate anything.
type GameBuilder struct {
	g       model.Game
	ordinal int
	period  int
	elapsed time.Duration
}

// NewGame returns a builder for a game between Home and Away with eight
// players per side.
func NewGame(id string) *GameBuilder {
	b := &GameBuilder{
		g: model.Game{
			GameID:     id,
			Date:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			HomeTeamID: Home,
			AwayTeamID: Away,
		},
	}
	for n := 1; n <= 8; n++ {
		b.g.Roster = append(b.g.Roster,
			model.RosterEntry{PlayerID: HomePlayer(n), TeamID: Home, Name: "Home " + HomePlayer(n), Starter: n <= 5})
	}
	for n := 1; n <= 8; n++ {
		b.g.Roster = append(b.g.Roster,
			model.RosterEntry{PlayerID: AwayPlayer(n), TeamID: Away, Name: "Away " + AwayPlayer(n), Starter: n <= 5})
	}
	return b
}

// Game returns the built game.
func (b *GameBuilder) Game() model.Game { return b.g }

// Last returns the ordinal of the most recently added event.
func (b *GameBuilder) Last() int { return b.ordinal }

// Period returns the current period.
func (b *GameBuilder) Period() int { return b.period }

// Start opens period p at its nominal start time.
func (b *GameBuilder) Start(p int) *GameBuilder {
	b.period = p
	b.elapsed = PeriodStart(p)
	return b.add("", "", "", model.PeriodBoundary{Edge: model.EdgeStart})
}

// StartWith opens period p with explicit lineups.
func (b *GameBuilder) StartWith(p int, lineups map[string][]string) *GameBuilder {
	b.period = p
	b.elapsed = PeriodStart(p)
	return b.add("", "", "", model.PeriodBoundary{Edge: model.EdgeStart, Lineups: lineups})
}

// End closes the current period at its nominal end time.
func (b *GameBuilder) End() *GameBuilder {
	b.elapsed = PeriodStart(b.period) + PeriodLen(b.period)
	return b.add("", "", "", model.PeriodBoundary{Edge: model.EdgeEnd})
}

// At moves the clock to d into the current period.
func (b *GameBuilder) At(d time.Duration) *GameBuilder {
	b.elapsed = PeriodStart(b.period) + d
	return b
}

// Make adds a made field goal; assister may be empty.
func (b *GameBuilder) Make(team, player string, value int, assister string) *GameBuilder {
	return b.add(team, player, assister, model.MadeShot{Value: value, Distance: 15})
}

// Miss adds a missed field goal.
func (b *GameBuilder) Miss(team, player string, value int) *GameBuilder {
	return b.add(team, player, "", model.MissedShot{Value: value, Distance: 15})
}

// FouledMiss adds a miss on which the shooter was fouled.
func (b *GameBuilder) FouledMiss(team, player string, value int) *GameBuilder {
	return b.add(team, player, "", model.MissedShot{Value: value, Fouled: true})
}

// FreeThrow adds free throw n of of.
func (b *GameBuilder) FreeThrow(team, player string, made bool, n, of int) *GameBuilder {
	return b.add(team, player, "", model.FreeThrow{Made: made, Number: n, Of: of})
}

// Rebound adds a rebound; an empty player is a team rebound.
func (b *GameBuilder) Rebound(team, player string, offensive bool) *GameBuilder {
	return b.add(team, player, "", model.Rebound{Offensive: offensive})
}

// Assist adds a standalone assist row for the made shot at shotOrdinal.
func (b *GameBuilder) Assist(team, player string, shotOrdinal int) *GameBuilder {
	return b.add(team, player, "", model.Assist{ShotOrdinal: shotOrdinal})
}

// Turnover adds a turnover; an empty player is a team turnover.
func (b *GameBuilder) Turnover(team, player string) *GameBuilder {
	return b.add(team, player, "", model.Turnover{Type: "bad_pass"})
}

// Steal adds a steal by player.
func (b *GameBuilder) Steal(team, player string) *GameBuilder {
	return b.add(team, player, "", model.Steal{})
}

// Block adds a block by player on shooter.
func (b *GameBuilder) Block(team, player, shooter string) *GameBuilder {
	return b.add(team, player, shooter, model.Block{})
}

// Foul adds a foul committed by player on fouled.
func (b *GameBuilder) Foul(team, player string, ft model.FoulType, fouled string) *GameBuilder {
	return b.add(team, player, fouled, model.Foul{Type: ft})
}

// Sub replaces out with in.
func (b *GameBuilder) Sub(team, in, out string) *GameBuilder {
	b.add(team, out, "", model.SubOut{})
	return b.add(team, in, "", model.SubIn{})
}

// Score adds points for player using made twos and threes, and a free
// throw for an odd remainder.
func (b *GameBuilder) Score(team, player string, points int) *GameBuilder {
	for points >= 3 {
		b.Make(team, player, 3, "")
		points -= 3
	}
	for points >= 2 {
		b.Make(team, player, 2, "")
		points -= 2
	}
	if points == 1 {
		b.FreeThrow(team, player, true, 1, 1)
	}
	return b
}

// Event appends a raw event at the current clock, for malformed-input cases.
func (b *GameBuilder) Event(ev model.Event) *GameBuilder {
	if ev.GameID == "" {
		ev.GameID = b.g.GameID
	}
	b.g.Events = append(b.g.Events, ev)
	if ev.Ordinal > b.ordinal {
		b.ordinal = ev.Ordinal
	}
	return b
}

func (b *GameBuilder) add(team, player, secondary string, p model.Payload) *GameBuilder {
	b.ordinal++
	b.g.Events = append(b.g.Events, model.Event{
		GameID:      b.g.GameID,
		Ordinal:     b.ordinal,
		Period:      b.period,
		Clock:       PeriodStart(b.period) + PeriodLen(b.period) - b.elapsed,
		Elapsed:     b.elapsed,
		TeamID:      team,
		PlayerID:    player,
		SecondaryID: secondary,
		Payload:     p,
	})
	return b
}
