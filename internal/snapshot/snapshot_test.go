package snapshot

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/pable/go-pbp-metrics/internal/accumulator"
	"github.com/pable/go-pbp-metrics/internal/model"
	"github.com/pable/go-pbp-metrics/internal/testkit"
)

var (
	h1 = testkit.HomePlayer(1)
	a1 = testkit.AwayPlayer(1)
)

// twoQuarterGame: h1 scores 2 in Q1 at 1m and 3 in Q2 at 2m; a1 scores 2 in Q2 at 5m.
func twoQuarterGame(t *testing.T) []model.Snapshot {
	t.Helper()
	b := testkit.NewGame("g1").Start(1)
	b.At(time.Minute).Make(testkit.Home, h1, 2, "")
	b.End().Start(2)
	b.At(2*time.Minute).Make(testkit.Home, h1, 3, "")
	b.At(5*time.Minute).Make(testkit.Away, a1, 2, "")
	snaps, err := accumulator.All(b.Game())
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	return snaps
}

func build(t *testing.T) *Partition {
	t.Helper()
	p, err := Build("g1", twoQuarterGame(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return p
}

func TestLookup(t *testing.T) {
	p := build(t)
	ref := model.Player(h1)
	tests := []struct {
		name   string
		at     Point
		ok     bool
		points int
		ord    int
	}{
		{"before first", AtOrdinal(0), false, 0, 0},
		{"first event", AtOrdinal(1), true, 0, 1},
		{"after basket", AtOrdinal(2), true, 2, 2},
		{"past end", AtOrdinal(99), true, 5, 6},
		{"elapsed mid Q1", AtElapsed(6 * time.Minute), true, 2, 2},
		{"elapsed exact", AtElapsed(14 * time.Minute), true, 5, 5},
		{"elapsed at tip", AtElapsed(0), true, 0, 1},
		{"end of Q1", AtPeriodEnd(1), true, 2, 3},
		{"end of Q2 not reached", AtPeriodEnd(2), true, 5, 6},
		{"end of Q0", AtPeriodEnd(0), false, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, ok := p.Lookup(ref, tc.at)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}
			if s.Counters.Points != tc.points || s.Ordinal != tc.ord {
				t.Errorf("got %d pts at ordinal %d, want %d at %d", s.Counters.Points, s.Ordinal, tc.points, tc.ord)
			}
		})
	}
}

func TestPartitionSummary(t *testing.T) {
	p := build(t)
	if p.Teams() != [2]string{testkit.Home, testkit.Away} {
		t.Errorf("Teams = %v", p.Teams())
	}
	if p.FirstOrdinal() != 1 || p.LastOrdinal() != 6 || p.Len() != 6 || p.Periods() != 2 {
		t.Errorf("first=%d last=%d len=%d periods=%d", p.FirstOrdinal(), p.LastOrdinal(), p.Len(), p.Periods())
	}
	if got := len(p.Entities()); got != 18 {
		t.Errorf("entities = %d, want 18", got)
	}
	last := p.Marks()[len(p.Marks())-1]
	if last.Scores != [2]int{5, 2} || last.Diff() != 3 {
		t.Errorf("final mark = %+v", last)
	}
}

func TestFrameAlignsOrdinals(t *testing.T) {
	p := build(t)
	f, ok := p.Frame(model.Player(a1), AtElapsed(13*time.Minute))
	if !ok {
		t.Fatal("frame not found")
	}
	if f.Team.Ordinal != f.Entity.Ordinal || f.Opponent.Ordinal != f.Entity.Ordinal {
		t.Errorf("ordinals entity=%d team=%d opp=%d", f.Entity.Ordinal, f.Team.Ordinal, f.Opponent.Ordinal)
	}
	if f.Team.Entity != model.Team(testkit.Away) || f.Opponent.Entity != model.Team(testkit.Home) {
		t.Errorf("frame teams = %s / %s", f.Team.Entity, f.Opponent.Entity)
	}
}

func TestSnapshotsRoundTrip(t *testing.T) {
	snaps := twoQuarterGame(t)
	p, err := Build("g1", snaps)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.Snapshots(), snaps) {
		t.Error("Snapshots() does not reproduce emission order")
	}
}

func TestBatchVisibility(t *testing.T) {
	store := NewStore()
	snaps := twoQuarterGame(t)

	b := store.Begin("g1")
	if err := b.Append(snaps...); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Partition("g1"); ok {
		t.Fatal("uncommitted batch is visible")
	}
	if _, err := b.Commit(); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Partition("g1"); !ok {
		t.Fatal("committed batch not visible")
	}
	if err := b.Append(snaps[0]); !errors.Is(err, ErrBatchClosed) {
		t.Errorf("append after commit: %v", err)
	}

	// A discarded rebuild leaves the committed partition alone.
	rebuild := store.Begin("g1")
	if err := rebuild.Append(snaps[:18]...); err != nil {
		t.Fatal(err)
	}
	rebuild.Discard()
	p, _ := store.Partition("g1")
	if p.LastOrdinal() != 6 {
		t.Errorf("last ordinal after discard = %d, want 6", p.LastOrdinal())
	}
	if got := store.Games(); len(got) != 1 || got[0] != "g1" {
		t.Errorf("Games = %v", got)
	}
	store.Drop("g1")
	if _, ok := store.Partition("g1"); ok {
		t.Error("dropped game still visible")
	}
}

func TestBatchRejectsRewrites(t *testing.T) {
	snaps := twoQuarterGame(t)
	b := NewStore().Begin("g1")
	if err := b.Append(snaps[:18]...); err != nil {
		t.Fatal(err)
	}
	if err := b.Append(snaps[0]); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("rewrite err = %v, want ErrOutOfOrder", err)
	}
	other := snaps[18]
	other.GameID = "g2"
	if err := b.Append(other); err == nil {
		t.Error("foreign snapshot accepted")
	}
}

func TestSealIndexesWithoutPublishing(t *testing.T) {
	store := NewStore()
	snaps := twoQuarterGame(t)
	b := store.Begin("g1")
	if err := b.Append(snaps...); err != nil {
		t.Fatal(err)
	}
	sealed, err := b.Seal()
	if err != nil {
		t.Fatal(err)
	}
	if sealed.LastOrdinal() != 6 || sealed.Periods() != 2 {
		t.Errorf("sealed partition: last %d periods %d", sealed.LastOrdinal(), sealed.Periods())
	}
	if _, ok := store.Partition("g1"); ok {
		t.Fatal("sealed batch is visible")
	}
	committed, err := b.Commit()
	if err != nil {
		t.Fatal(err)
	}
	if committed != sealed {
		t.Error("commit rebuilt the sealed partition")
	}
	if _, err := b.Seal(); !errors.Is(err, ErrBatchClosed) {
		t.Errorf("seal after commit: %v", err)
	}
}
