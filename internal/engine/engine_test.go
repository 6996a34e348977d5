package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pable/go-pbp-metrics/internal/accumulator"
	"github.com/pable/go-pbp-metrics/internal/boundary"
	"github.com/pable/go-pbp-metrics/internal/model"
	"github.com/pable/go-pbp-metrics/internal/requeue"
	"github.com/pable/go-pbp-metrics/internal/snapshot"
	"github.com/pable/go-pbp-metrics/internal/storage"
	"github.com/pable/go-pbp-metrics/internal/testkit"
	"github.com/pable/go-pbp-metrics/internal/verify"
)

var (
	home, away = testkit.Home, testkit.Away
	h1, a1     = testkit.HomePlayer(1), testkit.AwayPlayer(1)
)

// quarters builds a regulation game where h1 scores pts[q] in quarter q+1 and
// a1 scores one basket per quarter.
func quarters(id string, pts [4]int) model.Game {
	b := testkit.NewGame(id)
	for q := 1; q <= 4; q++ {
		b.Start(q)
		b.At(3*time.Minute).Score(home, h1, pts[q-1])
		b.At(6*time.Minute).Make(away, a1, 2, "")
		b.End()
	}
	return b.Game()
}

func broken(id string) model.Game {
	b := testkit.NewGame(id).Start(1)
	b.At(time.Minute).Make(home, h1, 2, "")
	b.At(2*time.Minute).Make(home, "ghost", 2, "")
	b.End()
	return b.Game()
}

func openMemDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fakeQueue struct {
	mu   sync.Mutex
	reqs []requeue.Request
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, req requeue.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.reqs = append(q.reqs, req)
	return nil
}

func TestProcessParallelGames(t *testing.T) {
	e := New(boundary.DefaultRules(), WithWorkers(3))
	var games []model.Game
	for i := 0; i < 8; i++ {
		games = append(games, quarters(fmt.Sprintf("g%d", i), [4]int{10, 12, 8, 4}))
	}
	games = append(games, broken("bad"))

	results, err := e.Process(context.Background(), games)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(results) != len(games) {
		t.Fatalf("%d results for %d games", len(results), len(games))
	}
	for i, r := range results[:8] {
		if r.Err != nil {
			t.Errorf("game %d: %v", i, r.Err)
			continue
		}
		if r.Summary.GameID != games[i].GameID || r.Summary.HomeScore != 34 || r.Summary.AwayScore != 8 || r.Summary.Periods != 4 {
			t.Errorf("game %d summary = %+v", i, r.Summary)
		}
		if r.Snapshots == 0 {
			t.Errorf("game %d: no snapshots", i)
		}
	}

	bad := results[8]
	if !errors.Is(bad.Err, accumulator.ErrMalformedEvent) || bad.Summary.Status != model.StatusFailed {
		t.Errorf("broken game result = %+v", bad)
	}
	if _, err := e.Partition("bad"); !errors.Is(err, ErrUnknownGame) {
		t.Errorf("aborted game is queryable: %v", err)
	}

	st, ok, err := e.Interval("g5", model.Player(h1), model.Quarter(2))
	if err != nil || !ok || st.Counters.Points != 12 {
		t.Errorf("g5 q2 = %+v, %v, %v", st.Counters, ok, err)
	}
}

func TestFailedRerunDiscardsEarlierGame(t *testing.T) {
	db := openMemDB(t)
	e := New(boundary.DefaultRules(), WithPersister(db))
	if _, err := e.Process(context.Background(), []model.Game{quarters("g1", [4]int{2, 2, 2, 2})}); err != nil {
		t.Fatal(err)
	}
	bad := broken("g1")
	results, _ := e.Process(context.Background(), []model.Game{bad})
	if results[0].Err == nil {
		t.Fatal("expected malformed event")
	}
	if _, _, err := e.Snapshot("g1", model.Team(home), snapshot.AtOrdinal(1)); !errors.Is(err, ErrUnknownGame) {
		t.Errorf("snapshot after failed rerun: %v", err)
	}
	s, err := db.GetGame("g1")
	if err != nil || s == nil || s.Status != model.StatusFailed {
		t.Errorf("stored game = %+v, %v", s, err)
	}
}

func TestCanceledProcessKeepsEarlierGame(t *testing.T) {
	e := New(boundary.DefaultRules(), WithWorkers(1))
	if _, err := e.Process(context.Background(), []model.Game{quarters("g1", [4]int{2, 2, 2, 2})}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := e.Process(ctx, []model.Game{quarters("g1", [4]int{3, 3, 3, 3})})
	if !errors.Is(err, context.Canceled) || !errors.Is(results[0].Err, context.Canceled) {
		t.Fatalf("err = %v, result err = %v", err, results[0].Err)
	}
	s, ok, err := e.Snapshot("g1", model.Player(h1), snapshot.AtPeriodEnd(4))
	if err != nil || !ok || s.Counters.Points != 8 {
		t.Errorf("earlier run = %+v, %v, %v", s.Counters, ok, err)
	}
}

func TestLoadFromPersister(t *testing.T) {
	db := openMemDB(t)
	first := New(boundary.DefaultRules(), WithPersister(db))
	if _, err := first.Process(context.Background(), []model.Game{quarters("g1", [4]int{10, 12, 8, 4})}); err != nil {
		t.Fatal(err)
	}

	// A fresh engine over the same database serves the game without reprocessing it.
	second := New(boundary.DefaultRules(), WithPersister(db))
	s, ok, err := second.Snapshot("g1", model.Player(h1), snapshot.AtPeriodEnd(2))
	if err != nil || !ok || s.Counters.Points != 22 {
		t.Fatalf("snapshot = %+v, %v, %v", s.Counters, ok, err)
	}
	splits, err := second.Splits("g1", model.Player(h1), model.WindowQuarter, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{10, 12, 8, 4}
	if len(splits) != 4 {
		t.Fatalf("%d quarter splits", len(splits))
	}
	for i, sp := range splits {
		if sp.Stats.Counters.Points != want[i] {
			t.Errorf("%s = %d, want %d", sp.Window, sp.Stats.Counters.Points, want[i])
		}
	}
	if _, ok, _ := second.Interval("g1", model.Player(h1), model.Overtime(1)); ok {
		t.Error("overtime window resolved in a regulation game")
	}
	if _, _, err := second.Snapshot("g2", model.Player(h1), snapshot.AtOrdinal(1)); !errors.Is(err, ErrUnknownGame) {
		t.Errorf("unknown game err = %v", err)
	}
}

func TestVerifyQueuesMismatch(t *testing.T) {
	db := openMemDB(t)
	q := &fakeQueue{}
	e := New(boundary.DefaultRules(), WithPersister(db), WithQueue(q), WithThresholds(verify.DefaultThresholds()))
	if _, err := e.Process(context.Background(), []model.Game{quarters("g1", [4]int{10, 12, 8, 4})}); err != nil {
		t.Fatal(err)
	}
	p, err := e.Partition("g1")
	if err != nil {
		t.Fatal(err)
	}

	box := verify.FromFinal(p)
	rec, err := e.Verify(context.Background(), box)
	if err != nil || rec.Grade != model.GradeExact || len(q.reqs) != 0 {
		t.Fatalf("exact verify: grade %s, %d requests, %v", rec.Grade, len(q.reqs), err)
	}

	for i := range box.Lines {
		if box.Lines[i].Entity == model.Player(a1) {
			box.Lines[i].Stats["fgm"]++
		}
	}
	rec, err = e.Verify(context.Background(), box)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Grade == model.GradeExact || !rec.Reprocess {
		t.Errorf("altered verify = %+v", rec)
	}
	if len(q.reqs) != 1 || q.reqs[0].GameID != "g1" || q.reqs[0].Grade != rec.Grade.String() {
		t.Fatalf("requests = %+v", q.reqs)
	}

	got, ok, err := e.Verification("g1")
	if err != nil || !ok || got.Grade != rec.Grade {
		t.Errorf("Verification = %+v, %v, %v", got, ok, err)
	}
	stored, ok, err := New(boundary.DefaultRules(), WithPersister(db)).Verification("g1")
	if err != nil || !ok || stored.Grade != rec.Grade || stored.WorstStat != rec.WorstStat {
		t.Errorf("stored verification = %+v, %v, %v", stored, ok, err)
	}

	q.err = errors.New("broker down")
	if _, err := e.Verify(context.Background(), box); err == nil {
		t.Error("expected queue error to surface")
	}
}

func TestVerificationAbsent(t *testing.T) {
	e := New(boundary.DefaultRules())
	if _, ok, err := e.Verification("g1"); ok || err != nil {
		t.Errorf("Verification = %v, %v", ok, err)
	}
	if _, err := e.Verify(context.Background(), model.BoxScore{GameID: "g1"}); !errors.Is(err, ErrUnknownGame) {
		t.Errorf("verify unknown game: %v", err)
	}
}

func TestUndecidedGamesAreFlagged(t *testing.T) {
	db := openMemDB(t)
	e := New(boundary.DefaultRules(), WithPersister(db))
	short := testkit.NewGame("short").Start(1)
	short.At(time.Minute).Make(home, h1, 2, "")
	short.End()
	games := []model.Game{
		quarters("tied", [4]int{2, 2, 2, 2}),
		short.Game(),
		quarters("won", [4]int{10, 12, 8, 4}),
	}
	results, err := e.Process(context.Background(), games)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{model.StatusUndecided, model.StatusUndecided, model.StatusComplete}
	for i, r := range results {
		if r.Err != nil || r.Summary.Status != want[i] {
			t.Errorf("%s: status %q err %v, want %q", games[i].GameID, r.Summary.Status, r.Err, want[i])
		}
		s, err := db.GetGame(games[i].GameID)
		if err != nil || s == nil || s.Status != want[i] {
			t.Errorf("%s: stored %+v, %v", games[i].GameID, s, err)
		}
	}
	// Undecided games stay queryable.
	s, ok, err := e.Snapshot("tied", model.Team(home), snapshot.AtPeriodEnd(4))
	if err != nil || !ok || s.Counters.Points != 8 {
		t.Errorf("tied snapshot = %+v, %v, %v", s.Counters, ok, err)
	}
}

func TestPerPeriodElapsedFeed(t *testing.T) {
	g := quarters("pp", [4]int{10, 12, 8, 4})
	for i := range g.Events {
		g.Events[i].Elapsed -= testkit.PeriodStart(g.Events[i].Period)
	}
	e := New(boundary.DefaultRules())
	results, err := e.Process(context.Background(), []model.Game{g})
	if err != nil || results[0].Err != nil {
		t.Fatalf("Process: %v, %v", err, results[0].Err)
	}
	st, ok, err := e.Interval("pp", model.Player(h1), model.Quarter(2))
	if err != nil || !ok || st.Counters.Points != 12 {
		t.Errorf("q2 = %+v, %v, %v", st.Counters, ok, err)
	}
	s, ok, _ := e.Snapshot("pp", model.Player(h1), snapshot.AtElapsed(30*time.Minute))
	if !ok || s.Counters.Points != 30 {
		t.Errorf("at 30:00 = %d points, want 30", s.Counters.Points)
	}
}

func TestRejectRecordsUndecodableGame(t *testing.T) {
	db := openMemDB(t)
	e := New(boundary.DefaultRules(), WithPersister(db))
	if _, err := e.Process(context.Background(), []model.Game{quarters("g1", [4]int{10, 12, 8, 4})}); err != nil {
		t.Fatal(err)
	}

	header := model.Game{GameID: "g1", HomeTeamID: home, AwayTeamID: away}
	res := e.Reject(header, errors.New(`game g1 event #3: unknown kind "jump_ball"`))
	if res.Err == nil || res.Summary.Status != model.StatusFailed {
		t.Fatalf("result = %+v", res)
	}
	s, err := db.GetGame("g1")
	if err != nil || s == nil || s.Status != model.StatusFailed || !strings.Contains(s.Error, "jump_ball") {
		t.Errorf("stored game = %+v, %v", s, err)
	}
	if _, _, err := e.Snapshot("g1", model.Team(home), snapshot.AtOrdinal(1)); !errors.Is(err, ErrUnknownGame) {
		t.Errorf("snapshot of rejected game: %v", err)
	}
}
