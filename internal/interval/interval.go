// Package interval computes statistics for a slice of a game by differencing
// cumulative snapshots. Additive counters are subtracted; every rate is
// re-derived from the subtracted counters.
package interval

import (
	"github.com/pable/go-pbp-metrics/internal/boundary"
	"github.com/pable/go-pbp-metrics/internal/derive"
	"github.com/pable/go-pbp-metrics/internal/model"
	"github.com/pable/go-pbp-metrics/internal/snapshot"
)

// Stats is the interval-only line of one entity, with the team and opponent
// lines over the same interval that its rates were derived against.
type Stats struct {
	GameID string
	Entity model.EntityRef
	TeamID string

	// FromOrdinal is the last event excluded from the interval (0 for the
	// start of the game); ToOrdinal is the last event included.
	FromOrdinal int
	ToOrdinal   int

	Counters         model.Counters
	TeamCounters     model.Counters
	OpponentCounters model.Counters
	Derived          model.Derived
}

// Pair bounds one contiguous interval. A nil Start is the all-zero state.
type Pair struct {
	Start *model.Frame
	End   model.Frame
}

// Between returns the statistics accrued after start up to and including end.
func Between(start *model.Frame, end model.Frame) Stats {
	return Across([]Pair{{Start: start, End: end}})
}

// Across sums several disjoint intervals, then derives rates once over the
// summed counters. Clutch time is the typical caller.
func Across(pairs []Pair) Stats {
	var out Stats
	for i, p := range pairs {
		ent, team, opp := frameTotals(p.End)
		if p.Start != nil {
			se, st, so := frameTotals(*p.Start)
			ent, team, opp = ent.Sub(se), team.Sub(st), opp.Sub(so)
		}
		out.Counters = out.Counters.Add(ent)
		out.TeamCounters = out.TeamCounters.Add(team)
		out.OpponentCounters = out.OpponentCounters.Add(opp)

		if i == 0 {
			out.GameID = p.End.Entity.GameID
			out.Entity = p.End.Entity.Entity
			out.TeamID = p.End.Entity.TeamID
			if p.Start != nil {
				out.FromOrdinal = p.Start.Entity.Ordinal
			}
		}
		out.ToOrdinal = p.End.Entity.Ordinal
	}
	out.Derived = derive.Frame(out.Counters, out.TeamCounters, out.OpponentCounters, out.Entity.Kind)
	return out
}

func frameTotals(f model.Frame) (entity, team, opp model.Counters) {
	return f.Entity.Totals(), f.Team.Totals(), f.Opponent.Totals()
}

// Window resolves w for ref in p and returns its statistics. The second
// result is false when the window is absent from the game.
func Window(p *snapshot.Partition, rs *boundary.Resolver, ref model.EntityRef, w model.Window) (Stats, bool) {
	spans, ok := rs.Resolve(p, w)
	if !ok {
		return Stats{}, false
	}
	pairs := make([]Pair, 0, len(spans))
	for _, sp := range spans {
		end, ok := p.Frame(ref, sp.End)
		if !ok {
			return Stats{}, false
		}
		pair := Pair{End: end}
		if sp.Start != nil {
			if start, ok := p.Frame(ref, *sp.Start); ok {
				pair.Start = &start
			}
		}
		pairs = append(pairs, pair)
	}
	return Across(pairs), true
}
