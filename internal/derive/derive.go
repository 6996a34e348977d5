// Package derive computes advanced basketball statistics from raw counters.
// Every function is pure and recomputes from counters; nothing is derived
// from already-derived or rounded values.
package derive

import (
	"math"

	"github.com/pable/go-pbp-metrics/internal/model"
)

// TeamContext carries the simultaneous team and opponent totals an entity's
// rate statistics are measured against. Both are box-score totals
// (players plus unattributed team events).
type TeamContext struct {
	Team     model.Counters
	Opponent model.Counters
}

// Div returns num/den, or Undefined when den is zero.
func Div(num, den float64) model.Ratio {
	if den == 0 || math.IsNaN(den) {
		return model.Undefined()
	}
	return model.Defined(num / den)
}

// share is Div clamped to [0,1]; used for on-court share rates, which can
// overshoot on tiny samples.
func share(num, den float64) model.Ratio {
	r := Div(num, den)
	if !r.Valid {
		return r
	}
	r.Value = math.Max(0, math.Min(1, r.Value))
	return r
}

// TrueShootingPct = PTS / (2 × (FGA + 0.44 × FTA)).
func TrueShootingPct(c model.Counters) model.Ratio {
	return Div(float64(c.Points), 2*tsa(c))
}

// EffectiveFGPct = (FGM + 0.5 × 3PM) / FGA.
func EffectiveFGPct(c model.Counters) model.Ratio {
	return Div(float64(c.FGM)+0.5*float64(c.FG3M), float64(c.FGA))
}

// TurnoverPct = TOV / (FGA + 0.44 × FTA + TOV).
func TurnoverPct(c model.Counters) model.Ratio {
	return Div(float64(c.TOV), tsa(c)+float64(c.TOV))
}

// FreeThrowRate = FTA / FGA.
func FreeThrowRate(c model.Counters) model.Ratio {
	return Div(float64(c.FTA), float64(c.FGA))
}

// Possessions estimates possessions used: FGA + 0.44 × FTA − OREB + TOV,
// floored at zero.
func Possessions(c model.Counters) float64 {
	return math.Max(0, tsa(c)-float64(c.OREB)+float64(c.TOV))
}

// GameScore is Hollinger's Game Score.
func GameScore(c model.Counters) float64 {
	return float64(c.Points) +
		0.4*float64(c.FGM) -
		0.7*float64(c.FGA) -
		0.4*float64(c.FTA-c.FTM) +
		0.7*float64(c.OREB) +
		0.3*float64(c.DREB) +
		float64(c.STL) +
		0.7*float64(c.AST) +
		0.7*float64(c.BLK) -
		0.4*float64(c.PF) -
		float64(c.TOV)
}

func tsa(c model.Counters) float64 {
	return float64(c.FGA) + 0.44*float64(c.FTA)
}

func shooting(c model.Counters) model.Derived {
	return model.Derived{
		FGPct:     Div(float64(c.FGM), float64(c.FGA)),
		FG3Pct:    Div(float64(c.FG3M), float64(c.FG3A)),
		FTPct:     Div(float64(c.FTM), float64(c.FTA)),
		TSPct:     TrueShootingPct(c),
		EFGPct:    EffectiveFGPct(c),
		TOVPct:    TurnoverPct(c),
		FTRate:    FreeThrowRate(c),
		GameScore: GameScore(c),
	}
}

// Team derives team-level statistics, including the Four Factors, from the
// team's and opponent's box-score totals.
func Team(team, opp model.Counters) model.Derived {
	d := shooting(team)
	d.ORBPct = Div(float64(team.OREB), float64(team.OREB+opp.DREB))
	d.DRBPct = Div(float64(team.DREB), float64(team.DREB+opp.OREB))
	d.TRBPct = Div(float64(team.REB), float64(team.REB+opp.REB))

	d.Possessions = Possessions(team)
	poss := (d.Possessions + Possessions(opp)) / 2
	d.OffRating = Div(100*float64(team.Points), poss)
	d.DefRating = Div(100*float64(opp.Points), poss)
	if d.OffRating.Valid && d.DefRating.Valid {
		d.NetRating = model.Defined(d.OffRating.Value - d.DefRating.Value)
	}
	// Team OnCourt is five player-clocks; game minutes are a fifth of it.
	gameMin := team.Minutes() / 5
	if poss > 0 {
		d.Pace = Div(48*poss, gameMin)
	}
	return d
}

// Player derives individual statistics. Share statistics compare the player
// against the team and opponent totals scaled by the player's share of team
// minutes.
func Player(c model.Counters, ctx TeamContext) model.Derived {
	d := shooting(c)
	mp := c.Minutes()
	tmMP5 := ctx.Team.Minutes() / 5
	tm, opp := ctx.Team, ctx.Opponent

	if mp > 0 {
		d.UsagePct = share((tsa(c)+float64(c.TOV))*tmMP5, mp*(tsa(tm)+float64(tm.TOV)))
		d.STLPct = share(float64(c.STL)*tmMP5, mp*Possessions(opp))
		d.BLKPct = share(float64(c.BLK)*tmMP5, mp*float64(opp.FGA-opp.FG3A))
		d.ORBPct = share(float64(c.OREB)*tmMP5, mp*float64(tm.OREB+opp.DREB))
		d.DRBPct = share(float64(c.DREB)*tmMP5, mp*float64(tm.DREB+opp.OREB))
		d.TRBPct = share(float64(c.REB)*tmMP5, mp*float64(tm.REB+opp.REB))
	}
	if tmMP5 > 0 {
		d.ASTPct = share(float64(c.AST), mp/tmMP5*float64(tm.FGM)-float64(c.FGM))
		// Game Score is linear in the raw counters, so the per-100 rate is too.
		d.GameScorePer100 = Div(100*d.GameScore, Possessions(tm)*mp/tmMP5)
	}
	return d
}

// Frame derives the statistics of a frame's entity, dispatching on its kind.
// The frame's counters may be cumulative or interval-only.
func Frame(entity, team, opp model.Counters, kind model.EntityKind) model.Derived {
	if kind == model.EntityTeam {
		return Team(entity, opp)
	}
	return Player(entity, TeamContext{Team: team, Opponent: opp})
}

// MeanRatio averages the defined values and ignores undefined ones. The
// result is undefined when no value is defined.
func MeanRatio(rs ...model.Ratio) model.Ratio {
	var sum float64
	var n int
	for _, r := range rs {
		if !r.Valid {
			continue
		}
		sum += r.Value
		n++
	}
	return Div(sum, float64(n))
}
