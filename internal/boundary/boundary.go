// Package boundary maps logical windows (quarters, halves, overtime splits,
// fixed-length buckets, clutch time) onto pairs of snapshot lookups.
package boundary

import (
	"fmt"
	"time"

	"github.com/pable/go-pbp-metrics/internal/model"
	"github.com/pable/go-pbp-metrics/internal/snapshot"
)

// Rules describes the period structure of a rule era and the clutch
// predicate. None of it is assumed; callers load it from configuration.
type Rules struct {
	RegulationPeriods int
	PeriodLength      time.Duration
	OvertimeLength    time.Duration
	OvertimeMinute    time.Duration

	ClutchFromPeriod int
	ClutchWindow     time.Duration
	ClutchMargin     int
}

// DefaultRules returns the modern professional era.
func DefaultRules() Rules {
	return Rules{
		RegulationPeriods: 4,
		PeriodLength:      12 * time.Minute,
		OvertimeLength:    5 * time.Minute,
		OvertimeMinute:    time.Minute,
		ClutchFromPeriod:  4,
		ClutchWindow:      5 * time.Minute,
		ClutchMargin:      5,
	}
}

// Validate rejects rules that cannot partition a game.
func (r Rules) Validate() error {
	switch {
	case r.RegulationPeriods < 1:
		return fmt.Errorf("regulation periods must be positive, got %d", r.RegulationPeriods)
	case r.RegulationPeriods%2 != 0:
		return fmt.Errorf("regulation periods must split into halves, got %d", r.RegulationPeriods)
	case r.PeriodLength <= 0:
		return fmt.Errorf("period length must be positive, got %s", r.PeriodLength)
	case r.OvertimeLength <= 0:
		return fmt.Errorf("overtime length must be positive, got %s", r.OvertimeLength)
	case r.OvertimeMinute <= 0 || r.OvertimeMinute > r.OvertimeLength:
		return fmt.Errorf("overtime bucket must be in (0, %s], got %s", r.OvertimeLength, r.OvertimeMinute)
	case r.ClutchWindow < 0 || r.ClutchMargin < 0:
		return fmt.Errorf("clutch window and margin must not be negative")
	}
	return nil
}

// IsOvertime reports whether period p is an overtime period.
func (r Rules) IsOvertime(p int) bool { return p > r.RegulationPeriods }

// Length returns the nominal length of period p.
func (r Rules) Length(p int) time.Duration {
	if r.IsOvertime(p) {
		return r.OvertimeLength
	}
	return r.PeriodLength
}

// PeriodStart returns the elapsed game time at which period p begins.
func (r Rules) PeriodStart(p int) time.Duration {
	if !r.IsOvertime(p) {
		return time.Duration(p-1) * r.PeriodLength
	}
	return time.Duration(r.RegulationPeriods)*r.PeriodLength +
		time.Duration(p-r.RegulationPeriods-1)*r.OvertimeLength
}

// PeriodEnd returns the elapsed game time at which period p ends.
func (r Rules) PeriodEnd(p int) time.Duration { return r.PeriodStart(p) + r.Length(p) }

// Remaining returns the game clock left in period p at elapsed time e.
func (r Rules) Remaining(p int, e time.Duration) time.Duration {
	return max(0, r.PeriodEnd(p)-e)
}

// Label names period p the way box scores do: Q1..Q4, OT1, OT2, ...
func (r Rules) Label(p int) string {
	if r.IsOvertime(p) {
		return fmt.Sprintf("OT%d", p-r.RegulationPeriods)
	}
	return fmt.Sprintf("Q%d", p)
}

// Span is one (start, end] slice of a game. A nil Start is the zero state
// before tip-off.
type Span struct {
	Start *snapshot.Point
	End   snapshot.Point
}

func (s Span) String() string {
	if s.Start == nil {
		return "(start, " + s.End.String() + "]"
	}
	return "(" + s.Start.String() + ", " + s.End.String() + "]"
}

// Timeline is the part of a snapshot partition the resolver reads.
type Timeline interface {
	Periods() int
	Marks() []snapshot.Mark
	LastOrdinal() int
}

// Resolver turns windows into spans under one set of rules.
type Resolver struct {
	rules Rules
}

// New returns a resolver for r.
func New(r Rules) *Resolver { return &Resolver{rules: r} }

// Rules returns the resolver's rules.
func (rs *Resolver) Rules() Rules { return rs.rules }

// Resolve maps w onto the spans that cover it in t. The second result is false
// when the game never reached the window; that is an absent result, not an
// error. Windows that reach past the last event are clamped to it.
func (rs *Resolver) Resolve(t Timeline, w model.Window) ([]Span, bool) {
	r := rs.rules
	periods := t.Periods()
	if periods == 0 {
		return nil, false
	}
	switch w.Kind {
	case model.WindowGame:
		return []Span{{End: snapshot.AtOrdinal(t.LastOrdinal())}}, true

	case model.WindowQuarter:
		if w.Index < 1 || w.Index > r.RegulationPeriods || w.Index > periods {
			return nil, false
		}
		return one(rs.segment(w.Index, 0, r.PeriodLength)), true

	case model.WindowHalf:
		per := r.RegulationPeriods / 2
		first := (w.Index-1)*per + 1
		if w.Index < 1 || w.Index > 2 || first > periods {
			return nil, false
		}
		return one(Span{Start: periodEnd(first - 1), End: snapshot.AtPeriodEnd(w.Index * per)}), true

	case model.WindowOvertime:
		p := r.RegulationPeriods + w.Index
		if w.Index < 1 || p > periods {
			return nil, false
		}
		return one(rs.segment(p, 0, r.OvertimeLength)), true

	case model.WindowOvertimeHalf:
		p := r.RegulationPeriods + w.Index
		if w.Index < 1 || p > periods || w.Sub < 1 || w.Sub > 2 {
			return nil, false
		}
		half := r.OvertimeLength / 2
		from := time.Duration(w.Sub-1) * half
		return one(rs.segment(p, from, from+half)), true

	case model.WindowOvertimeMinute:
		p := r.RegulationPeriods + w.Index
		if w.Index < 1 || p > periods || w.Sub < 1 || w.Sub > rs.overtimeBuckets() {
			return nil, false
		}
		from := time.Duration(w.Sub-1) * r.OvertimeMinute
		return one(rs.segment(p, from, from+r.OvertimeMinute)), true

	case model.WindowBucket:
		if w.Length <= 0 || w.Index < 0 {
			return nil, false
		}
		per := bucketsPerPeriod(r.PeriodLength, w.Length)
		p := w.Index/per + 1
		if p > r.RegulationPeriods || p > periods {
			return nil, false
		}
		from := time.Duration(w.Index%per) * w.Length
		return one(rs.segment(p, from, from+w.Length)), true

	case model.WindowClutch:
		spans := rs.clutch(t.Marks())
		return spans, len(spans) > 0
	}
	return nil, false
}

// segment is the part of period p between offsets from and to. Offsets at
// the period edges use the period-end lookup so that adjacent periods share a
// boundary; to is clamped to the period length.
func (rs *Resolver) segment(p int, from, to time.Duration) Span {
	start := rs.rules.PeriodStart(p)
	s := Span{End: snapshot.AtPeriodEnd(p)}
	if to < rs.rules.Length(p) {
		s.End = snapshot.AtElapsed(start + to)
	}
	if from <= 0 {
		s.Start = periodEnd(p - 1)
	} else {
		pt := snapshot.AtElapsed(start + from)
		s.Start = &pt
	}
	return s
}

func periodEnd(p int) *snapshot.Point {
	if p < 1 {
		return nil
	}
	pt := snapshot.AtPeriodEnd(p)
	return &pt
}

func one(s Span) []Span { return []Span{s} }

func bucketsPerPeriod(period, length time.Duration) int {
	return int((period + length - 1) / length)
}

func (rs *Resolver) overtimeBuckets() int {
	return bucketsPerPeriod(rs.rules.OvertimeLength, rs.rules.OvertimeMinute)
}

// InClutch reports whether an event at elapsed e in period p, with the given
// absolute score differential before it, falls in clutch time.
func (rs *Resolver) InClutch(p int, e time.Duration, diff int) bool {
	r := rs.rules
	return p >= r.ClutchFromPeriod &&
		r.Remaining(p, e) <= r.ClutchWindow &&
		diff <= r.ClutchMargin
}

// clutch collects every event in clutch time and merges runs of consecutive
// clutch events into one span. The margin is judged on the score before the
// event, so the basket that breaks a close game still counts.
func (rs *Resolver) clutch(marks []snapshot.Mark) []Span {
	var out []Span
	open := false
	for i, m := range marks {
		var diff int
		if i > 0 {
			diff = marks[i-1].Diff()
		}
		if !rs.InClutch(m.Period, m.Elapsed, diff) {
			open = false
			continue
		}
		end := snapshot.AtOrdinal(m.Ordinal)
		if open {
			out[len(out)-1].End = end
			continue
		}
		s := Span{End: end}
		if i > 0 {
			pt := snapshot.AtOrdinal(marks[i-1].Ordinal)
			s.Start = &pt
		}
		out = append(out, s)
		open = true
	}
	return out
}

// Enumerate lists the windows of the given kind that the game reached, in
// order. length is only used for buckets.
func (rs *Resolver) Enumerate(t Timeline, kind model.WindowKind, length time.Duration) []model.Window {
	r := rs.rules
	periods := t.Periods()
	if periods == 0 {
		return nil
	}
	reg := min(periods, r.RegulationPeriods)
	ots := max(0, periods-r.RegulationPeriods)
	var out []model.Window
	switch kind {
	case model.WindowGame:
		out = append(out, model.FullGame())
	case model.WindowQuarter:
		for q := 1; q <= reg; q++ {
			out = append(out, model.Quarter(q))
		}
	case model.WindowHalf:
		for h := 1; h <= 2; h++ {
			if (h-1)*r.RegulationPeriods/2+1 <= periods {
				out = append(out, model.Half(h))
			}
		}
	case model.WindowOvertime:
		for k := 1; k <= ots; k++ {
			out = append(out, model.Overtime(k))
		}
	case model.WindowOvertimeHalf:
		for k := 1; k <= ots; k++ {
			out = append(out, model.OvertimeHalf(k, 1), model.OvertimeHalf(k, 2))
		}
	case model.WindowOvertimeMinute:
		for k := 1; k <= ots; k++ {
			for m := 1; m <= rs.overtimeBuckets(); m++ {
				out = append(out, model.OvertimeMinute(k, m))
			}
		}
	case model.WindowBucket:
		if length <= 0 {
			return nil
		}
		n := reg * bucketsPerPeriod(r.PeriodLength, length)
		for i := 0; i < n; i++ {
			out = append(out, model.Bucket(length, i))
		}
	case model.WindowClutch:
		if len(rs.clutch(t.Marks())) > 0 {
			out = append(out, model.Clutch())
		}
	}
	return out
}

// Decided reports whether the timeline ends a finished game: regulation is
// complete and the last period closed with a nonzero margin.
func (rs *Resolver) Decided(t Timeline) bool {
	marks := t.Marks()
	if len(marks) == 0 {
		return false
	}
	last := marks[len(marks)-1]
	return last.Period >= rs.rules.RegulationPeriods && last.Diff() != 0
}
