// Package verify grades a reconstructed game against its authoritative final
// box score.
package verify

import (
	"math"
	"sort"
	"time"

	"github.com/pable/go-pbp-metrics/internal/model"
	"github.com/pable/go-pbp-metrics/internal/snapshot"
)

// Thresholds bound the grades. Counting errors are absolute stat units;
// Ratio and Minutes are tolerances below which a difference is rounding.
type Thresholds struct {
	Minor    float64
	Moderate float64
	Ratio    float64
	Minutes  float64
}

// DefaultThresholds: B allows one-off counts, C up to three.
func DefaultThresholds() Thresholds {
	return Thresholds{Minor: 1, Moderate: 3, Ratio: 0.005, Minutes: 1}
}

type kind int

const (
	counting kind = iota
	ratio
	minutes
)

// view is everything a stat reads: the entity's final totals, its derived
// line, and for teams the opponent's final points.
type view struct {
	snap    model.Snapshot
	totals  model.Counters
	oppPts  int
	derived model.Derived
}

type stat struct {
	name     string
	category model.Category
	kind     kind
	value    func(v view) (float64, bool)
}

func count(f func(c model.Counters) int) func(view) (float64, bool) {
	return func(v view) (float64, bool) { return float64(f(v.totals)), true }
}

func rate(f func(d model.Derived) model.Ratio) func(view) (float64, bool) {
	return func(v view) (float64, bool) {
		r := f(v.derived)
		return r.Value, r.Valid
	}
}

func teamOnly(f func(view) (float64, bool)) func(view) (float64, bool) {
	return func(v view) (float64, bool) {
		if v.snap.Entity.Kind != model.EntityTeam {
			return 0, false
		}
		return f(v)
	}
}

var stats = []stat{
	{"pts", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.Points })},
	{"fgm", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.FGM })},
	{"fga", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.FGA })},
	{"fg3m", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.FG3M })},
	{"fg3a", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.FG3A })},
	{"ftm", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.FTM })},
	{"fta", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.FTA })},
	{"oreb", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.OREB })},
	{"dreb", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.DREB })},
	{"reb", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.REB })},
	{"ast", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.AST })},
	{"stl", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.STL })},
	{"blk", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.BLK })},
	{"tov", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.TOV })},
	{"pf", model.CategoryBasic, counting, count(func(c model.Counters) int { return c.PF })},

	{"plus_minus", model.CategoryPlayByPlay, counting, func(v view) (float64, bool) {
		if v.snap.Entity.Kind == model.EntityTeam {
			return float64(v.totals.Points - v.oppPts), true
		}
		return float64(v.totals.PlusMinus), true
	}},
	{"min", model.CategoryPlayByPlay, minutes, func(v view) (float64, bool) { return v.totals.Minutes(), true }},

	{"ts_pct", model.CategoryAdvanced, ratio, rate(func(d model.Derived) model.Ratio { return d.TSPct })},
	{"efg_pct", model.CategoryAdvanced, ratio, rate(func(d model.Derived) model.Ratio { return d.EFGPct })},
	{"usg_pct", model.CategoryAdvanced, ratio, rate(func(d model.Derived) model.Ratio { return d.UsagePct })},

	{"ff_efg", model.CategoryFourFactors, ratio, teamOnly(rate(func(d model.Derived) model.Ratio { return d.EFGPct }))},
	{"ff_tov", model.CategoryFourFactors, ratio, teamOnly(rate(func(d model.Derived) model.Ratio { return d.TOVPct }))},
	{"ff_orb", model.CategoryFourFactors, ratio, teamOnly(rate(func(d model.Derived) model.Ratio { return d.ORBPct }))},
	{"ff_ftr", model.CategoryFourFactors, ratio, teamOnly(rate(func(d model.Derived) model.Ratio { return d.FTRate }))},
}

var byName = func() map[string]stat {
	m := make(map[string]stat, len(stats))
	for _, s := range stats {
		m[s.name] = s
	}
	return m
}()

// StatNames lists the recognized authoritative stat keys in report order.
func StatNames() []string {
	out := make([]string, len(stats))
	for i, s := range stats {
		out[i] = s.name
	}
	return out
}

// CategoryOf returns the category of a stat key.
func CategoryOf(name string) (model.Category, bool) {
	s, ok := byName[name]
	return s.category, ok
}

// Verifier grades games. Now stamps records and can be replaced in tests.
type Verifier struct {
	th  Thresholds
	Now func() time.Time
}

// New returns a verifier with the given thresholds.
func New(th Thresholds) *Verifier {
	return &Verifier{th: th, Now: time.Now}
}

// Verify compares the final snapshot of every entity in box against its
// authoritative line. It never repairs anything; a non-exact grade marks the
// game for reprocessing over the returned ordinal range. A category with no
// comparable stat, or with a stat missing on either side, fails the game.
func (v *Verifier) Verify(p *snapshot.Partition, box model.BoxScore) model.VerificationRecord {
	rec := model.VerificationRecord{
		GameID:      box.GameID,
		Coverage:    make(map[model.Category]bool, len(model.Categories)),
		Entities:    len(box.Lines),
		FromOrdinal: p.FirstOrdinal(),
		ToOrdinal:   p.LastOrdinal(),
		VerifiedAt:  v.Now().UTC(),
	}
	compared := make(map[model.Category]bool)
	missing := make(map[model.Category]bool)
	var maxCount float64
	pointsExact := true
	softMiss := false // ratio or minutes outside tolerance

	for _, line := range box.Lines {
		names := make([]string, 0, len(line.Stats))
		for name := range line.Stats {
			if _, ok := byName[name]; ok {
				names = append(names, name)
			}
		}
		sort.Slice(names, func(i, j int) bool { return order(names[i]) < order(names[j]) })

		vw, found := v.view(p, line.Entity)
		for _, name := range names {
			st := byName[name]
			want := line.Stats[name]
			e := model.StatError{Entity: line.Entity, Stat: name, Category: st.category, Authoritative: want}
			compared[st.category] = true

			got, ok := 0.0, false
			if found {
				got, ok = st.value(vw)
			}
			switch {
			case !ok && found && st.kind == ratio && want == 0:
				// Box scores print 0 for a rate with no attempts.
			case !ok:
				e.Missing = true
				missing[st.category] = true
			default:
				e.Generated = got
				e.AbsError = math.Abs(got - want)
			}
			rec.Errors = append(rec.Errors, e)
			if e.Missing {
				continue
			}
			if e.AbsError > rec.MaxAbsError {
				rec.MaxAbsError = e.AbsError
				rec.WorstStat = line.Entity.String() + " " + name
			}
			switch st.kind {
			case counting:
				maxCount = math.Max(maxCount, e.AbsError)
				if name == "pts" && e.AbsError != 0 {
					pointsExact = false
				}
			case ratio:
				softMiss = softMiss || e.AbsError > v.th.Ratio
			case minutes:
				softMiss = softMiss || e.AbsError > v.th.Minutes
			}
		}
	}

	covered := true
	for _, c := range model.Categories {
		rec.Coverage[c] = compared[c] && !missing[c]
		covered = covered && rec.Coverage[c]
	}

	switch {
	case !covered:
		rec.Grade = model.GradeFailed
	case maxCount == 0 && !softMiss:
		rec.Grade = model.GradeExact
	case pointsExact && maxCount <= v.th.Minor:
		rec.Grade = model.GradeMinor
	case maxCount <= v.th.Moderate:
		rec.Grade = model.GradeModerate
	default:
		rec.Grade = model.GradeFailed
	}
	rec.Reprocess = rec.Grade != model.GradeExact
	if rec.Reprocess {
		rec.FromOrdinal = v.firstDivergence(p, box)
	}
	return rec
}

func order(name string) int {
	for i, s := range stats {
		if s.name == name {
			return i
		}
	}
	return len(stats)
}

func (v *Verifier) view(p *snapshot.Partition, ref model.EntityRef) (view, bool) {
	s, ok := p.Last(ref)
	if !ok {
		return view{}, false
	}
	vw := view{snap: s, totals: s.Totals(), derived: s.Derived}
	if ref.Kind == model.EntityTeam {
		if opp, ok := p.Last(model.Team(p.Opponent(ref.ID))); ok {
			vw.oppPts = opp.Totals().Points
		}
	}
	return vw, true
}

// firstDivergence returns the ordinal re-ingestion should restart after: the
// end of the period before the first one whose team points disagree, or the
// start of the game when the box score carries no period breakdown.
func (v *Verifier) firstDivergence(p *snapshot.Partition, box model.BoxScore) int {
	first := 0
	for _, line := range box.Lines {
		if line.Entity.Kind != model.EntityTeam || len(line.PeriodPoints) == 0 {
			continue
		}
		s, ok := p.Last(line.Entity)
		if !ok {
			return p.FirstOrdinal()
		}
		got := s.Totals().PeriodPoints
		for i := 0; i < max(len(got), len(line.PeriodPoints)); i++ {
			if at(got, i) != at(line.PeriodPoints, i) {
				if first == 0 || i+1 < first {
					first = i + 1
				}
				break
			}
		}
	}
	if first <= 1 {
		return p.FirstOrdinal()
	}
	s, ok := p.Lookup(model.Team(p.Teams()[0]), snapshot.AtPeriodEnd(first-1))
	if !ok {
		return p.FirstOrdinal()
	}
	return s.Ordinal
}

func at(xs []int, i int) int {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}

// FromFinal builds an authoritative box score from a partition's own final
// snapshots. It is the identity input for a self-check and the starting point
// for tests that perturb one stat.
func FromFinal(p *snapshot.Partition) model.BoxScore {
	box := model.BoxScore{GameID: p.GameID()}
	v := New(DefaultThresholds())
	for _, ref := range p.Entities() {
		vw, _ := v.view(p, ref)
		line := model.BoxLine{Entity: ref, TeamID: vw.snap.TeamID, Stats: make(map[string]float64)}
		for _, st := range stats {
			if val, ok := st.value(vw); ok {
				line.Stats[st.name] = val
			}
		}
		if ref.Kind == model.EntityTeam {
			line.PeriodPoints = append([]int(nil), vw.totals.PeriodPoints...)
		}
		box.Lines = append(box.Lines, line)
	}
	return box
}
