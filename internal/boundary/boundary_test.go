package boundary

import (
	"testing"
	"time"

	"github.com/pable/go-pbp-metrics/internal/accumulator"
	"github.com/pable/go-pbp-metrics/internal/model"
	"github.com/pable/go-pbp-metrics/internal/snapshot"
	"github.com/pable/go-pbp-metrics/internal/testkit"
)

var (
	h1 = testkit.HomePlayer(1)
	a1 = testkit.AwayPlayer(1)
)

func partition(t *testing.T, g model.Game) *snapshot.Partition {
	t.Helper()
	snaps, err := accumulator.All(g)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	p, err := snapshot.Build(g.GameID, snaps)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return p
}

// regulation plays four quarters with one home basket per quarter.
func regulation() *testkit.GameBuilder {
	b := testkit.NewGame("reg")
	for q := 1; q <= 4; q++ {
		b.Start(q)
		b.At(6*time.Minute).Make(testkit.Home, h1, 2, "")
		b.End()
	}
	return b
}

// doubleOvertime ties regulation, ties OT1 and wins OT2. Away leads by 3 with
// two minutes left in regulation.
func doubleOvertime() model.Game {
	b := testkit.NewGame("2ot").Start(1)
	b.At(time.Minute).Make(testkit.Home, h1, 2, "")
	b.End().Start(2).End().Start(3).End().Start(4)
	b.At(5*time.Minute).Make(testkit.Away, a1, 3, "")
	b.At(9*time.Minute).Make(testkit.Away, a1, 2, "")
	b.At(11*time.Minute).Make(testkit.Home, h1, 3, "")
	b.End().Start(5)
	b.At(time.Minute).Make(testkit.Home, h1, 2, "")
	b.At(4*time.Minute).Make(testkit.Away, a1, 2, "")
	b.End().Start(6)
	b.At(2*time.Minute).Make(testkit.Home, h1, 3, "")
	b.End()
	return b.Game()
}

func TestRulesPeriodArithmetic(t *testing.T) {
	r := DefaultRules()
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		p          int
		start, end time.Duration
		label      string
	}{
		{1, 0, 12 * time.Minute, "Q1"},
		{4, 36 * time.Minute, 48 * time.Minute, "Q4"},
		{5, 48 * time.Minute, 53 * time.Minute, "OT1"},
		{7, 58 * time.Minute, 63 * time.Minute, "OT3"},
	}
	for _, tc := range tests {
		if got := r.PeriodStart(tc.p); got != tc.start {
			t.Errorf("PeriodStart(%d) = %s, want %s", tc.p, got, tc.start)
		}
		if got := r.PeriodEnd(tc.p); got != tc.end {
			t.Errorf("PeriodEnd(%d) = %s, want %s", tc.p, got, tc.end)
		}
		if got := r.Label(tc.p); got != tc.label {
			t.Errorf("Label(%d) = %s, want %s", tc.p, got, tc.label)
		}
	}
	if got := r.Remaining(4, 45*time.Minute); got != 3*time.Minute {
		t.Errorf("Remaining = %s, want 3m", got)
	}

	bad := r
	bad.OvertimeMinute = 0
	if bad.Validate() == nil {
		t.Error("zero overtime bucket accepted")
	}
	bad = r
	bad.RegulationPeriods = 3
	if bad.Validate() == nil {
		t.Error("odd regulation accepted")
	}
}

func TestQuarterSpans(t *testing.T) {
	rs := New(DefaultRules())
	p := partition(t, regulation().Game())

	spans, ok := rs.Resolve(p, model.Quarter(1))
	if !ok || len(spans) != 1 || spans[0].Start != nil {
		t.Fatalf("Q1 = %v, %v", spans, ok)
	}
	spans, ok = rs.Resolve(p, model.Quarter(3))
	if !ok || spans[0].Start == nil || *spans[0].Start != snapshot.AtPeriodEnd(2) || spans[0].End != snapshot.AtPeriodEnd(3) {
		t.Errorf("Q3 = %v", spans)
	}
	if _, ok := rs.Resolve(p, model.Quarter(5)); ok {
		t.Error("Q5 resolved")
	}
	if _, ok := rs.Resolve(p, model.Overtime(1)); ok {
		t.Error("OT1 resolved in a regulation game")
	}
	if got := rs.Enumerate(p, model.WindowOvertimeHalf, 0); len(got) != 0 {
		t.Errorf("overtime halves in regulation game: %v", got)
	}
}

func TestHalfSpans(t *testing.T) {
	rs := New(DefaultRules())
	p := partition(t, doubleOvertime())
	spans, ok := rs.Resolve(p, model.Half(2))
	if !ok {
		t.Fatal("H2 absent")
	}
	// The second half stops at the end of regulation, not at the end of overtime.
	if *spans[0].Start != snapshot.AtPeriodEnd(2) || spans[0].End != snapshot.AtPeriodEnd(4) {
		t.Errorf("H2 = %v", spans[0])
	}
}

func TestDoubleOvertimeHasFourHalves(t *testing.T) {
	rs := New(DefaultRules())
	p := partition(t, doubleOvertime())

	got := rs.Enumerate(p, model.WindowOvertimeHalf, 0)
	want := []model.Window{
		model.OvertimeHalf(1, 1), model.OvertimeHalf(1, 2),
		model.OvertimeHalf(2, 1), model.OvertimeHalf(2, 2),
	}
	if len(got) != len(want) {
		t.Fatalf("got %d overtime halves %v, want 4", len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("half %d = %s, want %s", i, got[i], want[i])
		}
		if _, ok := rs.Resolve(p, got[i]); !ok {
			t.Errorf("%s did not resolve", got[i])
		}
	}

	spans, _ := rs.Resolve(p, model.OvertimeHalf(2, 1))
	mid := snapshot.AtElapsed(53*time.Minute + 150*time.Second)
	if *spans[0].Start != snapshot.AtPeriodEnd(5) || spans[0].End != mid {
		t.Errorf("OT2 first half = %v", spans[0])
	}
	if _, ok := rs.Resolve(p, model.OvertimeHalf(3, 1)); ok {
		t.Error("OT3 half resolved")
	}
	if got := rs.Enumerate(p, model.WindowOvertimeMinute, 0); len(got) != 10 {
		t.Errorf("overtime minutes = %d, want 10", len(got))
	}
	if !rs.Decided(p) {
		t.Error("double overtime game should be decided")
	}
}

func TestClutchSpansOvertime(t *testing.T) {
	rs := New(DefaultRules())
	p := partition(t, doubleOvertime())

	spans, ok := rs.Resolve(p, model.Clutch())
	if !ok {
		t.Fatal("no clutch time")
	}
	var periods = map[int]bool{}
	for _, m := range p.Marks() {
		for _, sp := range spans {
			lo := 0
			if sp.Start != nil {
				lo = ordinalOf(t, *sp.Start, p)
			}
			hi := ordinalOf(t, sp.End, p)
			if m.Ordinal > lo && m.Ordinal <= hi {
				periods[m.Period] = true
			}
		}
	}
	for _, want := range []int{4, 5, 6} {
		if !periods[want] {
			t.Errorf("clutch does not cover period %d (covered %v)", want, periods)
		}
	}
	// Regulation events before the last five minutes never qualify.
	for _, m := range p.Marks() {
		if m.Period < 4 && periods[m.Period] {
			t.Errorf("period %d counted as clutch", m.Period)
		}
	}
}

// ordinalOf resolves an ordinal point to its value through the home team.
func ordinalOf(t *testing.T, pt snapshot.Point, p *snapshot.Partition) int {
	t.Helper()
	s, ok := p.Lookup(model.Team(testkit.Home), pt)
	if !ok {
		t.Fatalf("point %s not found", pt)
	}
	return s.Ordinal
}

func TestClutchMarginJudgedBeforeEvent(t *testing.T) {
	rs := New(DefaultRules())
	b := testkit.NewGame("blowout").Start(4)
	b.At(time.Minute).Score(testkit.Home, h1, 12)
	b.At(4*time.Minute).Make(testkit.Away, a1, 3, "")
	b.At(5*time.Minute).Make(testkit.Away, a1, 3, "")
	b.At(10*time.Minute).Make(testkit.Away, a1, 2, "")
	b.At(11*time.Minute).Make(testkit.Away, a1, 2, "")
	p := partition(t, b.Game())

	spans, ok := rs.Resolve(p, model.Clutch())
	if !ok || len(spans) != 1 {
		t.Fatalf("clutch spans = %v, %v", spans, ok)
	}
	// At 12-6 with two minutes left the game is not close; the basket from 12-8 is.
	if got := ordinalOf(t, *spans[0].Start, p); got != b.Last()-1 {
		t.Errorf("clutch starts after ordinal %d, want %d", got, b.Last()-1)
	}
}

func TestBucketsClampToPeriod(t *testing.T) {
	rs := New(DefaultRules())
	p := partition(t, regulation().Game())

	if got := rs.Enumerate(p, model.WindowBucket, 5*time.Minute); len(got) != 12 {
		t.Fatalf("5m buckets = %d, want 12 (3 per quarter)", len(got))
	}
	spans, ok := rs.Resolve(p, model.Bucket(5*time.Minute, 2))
	if !ok {
		t.Fatal("bucket 2 absent")
	}
	if *spans[0].Start != snapshot.AtElapsed(10*time.Minute) || spans[0].End != snapshot.AtPeriodEnd(1) {
		t.Errorf("bucket 2 = %v, want (10m, end of Q1]", spans[0])
	}
	spans, _ = rs.Resolve(p, model.Bucket(5*time.Minute, 3))
	if *spans[0].Start != snapshot.AtPeriodEnd(1) || spans[0].End != snapshot.AtElapsed(17*time.Minute) {
		t.Errorf("bucket 3 = %v, want (end of Q1, 17m]", spans[0])
	}
	if _, ok := rs.Resolve(p, model.Bucket(5*time.Minute, 12)); ok {
		t.Error("bucket past regulation resolved")
	}
}

func TestTruncatedGameClamps(t *testing.T) {
	rs := New(DefaultRules())
	b := testkit.NewGame("short").Start(1)
	b.At(time.Minute).Make(testkit.Home, h1, 2, "")
	b.End().Start(2)
	b.At(3 * time.Minute).Make(testkit.Home, h1, 2, "")
	p := partition(t, b.Game())

	spans, ok := rs.Resolve(p, model.Quarter(2))
	if !ok {
		t.Fatal("partial Q2 should resolve")
	}
	s, ok := p.Lookup(model.Team(testkit.Home), spans[0].End)
	if !ok || s.Ordinal != p.LastOrdinal() {
		t.Errorf("Q2 end = %d, want last ordinal %d", s.Ordinal, p.LastOrdinal())
	}
	if _, ok := rs.Resolve(p, model.Quarter(3)); ok {
		t.Error("Q3 resolved in a game that stopped in Q2")
	}
	if rs.Decided(p) {
		t.Error("truncated game reported decided")
	}
}
