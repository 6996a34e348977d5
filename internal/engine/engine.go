// Package engine runs game reconstruction one worker per game and answers
// snapshot, interval and verification queries over the results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pable/go-pbp-metrics/internal/accumulator"
	"github.com/pable/go-pbp-metrics/internal/boundary"
	"github.com/pable/go-pbp-metrics/internal/interval"
	"github.com/pable/go-pbp-metrics/internal/logger"
	"github.com/pable/go-pbp-metrics/internal/model"
	"github.com/pable/go-pbp-metrics/internal/requeue"
	"github.com/pable/go-pbp-metrics/internal/snapshot"
	"github.com/pable/go-pbp-metrics/internal/verify"
)

// ErrUnknownGame is returned by queries for a game that was never
// reconstructed, or whose reconstruction failed.
var ErrUnknownGame = errors.New("unknown game")

// Persister is the durable side of the snapshot store. *storage.DB satisfies it.
type Persister interface {
	SaveGame(summary model.GameSummary, roster []model.RosterEntry, snaps []model.Snapshot) error
	MarkFailed(summary model.GameSummary) error
	LoadSnapshots(gameID string) ([]model.Snapshot, error)
	SaveVerification(rec model.VerificationRecord) error
	GetVerification(gameID string) (*model.VerificationRecord, error)
}

// Engine owns the in-memory snapshot store. It is safe for concurrent use.
type Engine struct {
	store    *snapshot.Store
	resolver *boundary.Resolver
	verifier *verify.Verifier
	queue    requeue.Queue
	db       Persister
	workers  int

	mu      sync.Mutex
	writing map[string]*sync.Mutex
	records map[string]model.VerificationRecord
}

// Option configures an Engine.
type Option func(*Engine)

// WithPersister flushes every completed game to p and falls back to it for
// games not held in memory.
func WithPersister(p Persister) Option { return func(e *Engine) { e.db = p } }

// WithQueue sets where reprocessing requests go. The default drops them.
func WithQueue(q requeue.Queue) Option { return func(e *Engine) { e.queue = q } }

// WithWorkers bounds the number of games reconstructed at once.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithThresholds sets the verifier's grading thresholds.
func WithThresholds(th verify.Thresholds) Option {
	return func(e *Engine) { e.verifier = verify.New(th) }
}

// New returns an engine applying the given period rules.
func New(rules boundary.Rules, opts ...Option) *Engine {
	e := &Engine{
		store:    snapshot.NewStore(),
		resolver: boundary.New(rules),
		verifier: verify.New(verify.DefaultThresholds()),
		queue:    requeue.Discard{},
		workers:  runtime.GOMAXPROCS(0),
		writing:  make(map[string]*sync.Mutex),
		records:  make(map[string]model.VerificationRecord),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Resolver returns the engine's boundary resolver.
func (e *Engine) Resolver() *boundary.Resolver { return e.resolver }

// Result is the outcome of reconstructing one game.
type Result struct {
	Summary   model.GameSummary
	Snapshots int
	Duration  time.Duration
	Err       error
}

// Process reconstructs games in parallel, one worker per game. A game that
// fails is discarded and reported in its Result without affecting the others.
// Results are in input order. The returned error is non-nil only when ctx
// ends before every game was attempted.
func (e *Engine) Process(ctx context.Context, games []model.Game) ([]Result, error) {
	results := make([]Result, len(games))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, game := range games {
		g.Go(func() error {
			results[i] = e.processGame(gctx, game)
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}

func (e *Engine) processGame(ctx context.Context, g model.Game) Result {
	start := time.Now()
	lock := e.gameLock(g.GameID)
	lock.Lock()
	defer lock.Unlock()

	res := Result{Summary: summarize(g, nil)}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	logger.Debug("game %s: reconstructing %d events", g.GameID, len(g.Events))

	batch := e.store.Begin(g.GameID)
	st, err := accumulator.Reconstruct(ctx, g, func(snaps []model.Snapshot) error {
		return batch.Append(snaps...)
	}, accumulator.WithPeriodStarts(e.resolver.Rules().PeriodStart))
	var sealed *snapshot.Partition
	if err == nil {
		sealed, err = batch.Seal()
	}
	if err == nil {
		res.Summary = summarize(g, st)
		res.Snapshots = batch.Len()
		if !e.resolver.Decided(sealed) {
			res.Summary.Status = model.StatusUndecided
			logger.Warn("game %s: no winner after period %d", g.GameID, res.Summary.Periods)
		}
		if e.db != nil {
			if err = e.db.SaveGame(res.Summary, g.Roster, batch.Snapshots()); err != nil {
				err = fmt.Errorf("persist game %s: %w", g.GameID, err)
			} else {
				logger.Debug("game %s: flushed %d snapshots", g.GameID, res.Snapshots)
			}
		}
	}
	if err == nil {
		_, err = batch.Commit()
	}
	res.Duration = time.Since(start)

	if err != nil {
		batch.Discard()
		res.Snapshots = 0
		res.Err = err
		if ctx.Err() != nil {
			// Interrupted, not broken: an earlier committed run stays queryable.
			logger.Warn("game %s: interrupted: %v", g.GameID, err)
			return res
		}
		e.abort(res.Summary, err)
		res.Summary.Status = model.StatusFailed
		res.Summary.Error = err.Error()
		logger.Warn("game %s: aborted: %v", g.GameID, err)
		return res
	}

	e.mu.Lock()
	delete(e.records, g.GameID)
	e.mu.Unlock()
	logger.Info("game %s: %s %d - %d %s, %d snapshots in %s",
		g.GameID, g.HomeTeamID, res.Summary.HomeScore, res.Summary.AwayScore, g.AwayTeamID,
		res.Snapshots, res.Duration.Round(time.Millisecond))
	return res
}

// Reject records a game whose document could not be decoded. It is treated
// like a reconstruction that aborted: any earlier run of the game is dropped
// and the game is stored as failed with cause.
func (e *Engine) Reject(g model.Game, cause error) Result {
	lock := e.gameLock(g.GameID)
	lock.Lock()
	defer lock.Unlock()

	res := Result{Summary: summarize(g, nil), Err: cause}
	e.abort(res.Summary, cause)
	res.Summary.Status = model.StatusFailed
	res.Summary.Error = cause.Error()
	logger.Warn("game %s: rejected: %v", g.GameID, cause)
	return res
}

// abort removes every trace of a game whose reconstruction failed so that no
// truncated sequence stays queryable.
func (e *Engine) abort(summary model.GameSummary, cause error) {
	e.store.Drop(summary.GameID)
	e.mu.Lock()
	delete(e.records, summary.GameID)
	e.mu.Unlock()
	if e.db == nil {
		return
	}
	summary.Error = cause.Error()
	if err := e.db.MarkFailed(summary); err != nil {
		logger.Error("game %s: record failure: %v", summary.GameID, err)
	}
}

func (e *Engine) gameLock(gameID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.writing[gameID]
	if !ok {
		l = &sync.Mutex{}
		e.writing[gameID] = l
	}
	return l
}

func summarize(g model.Game, st *accumulator.State) model.GameSummary {
	s := model.GameSummary{
		GameID:     g.GameID,
		Date:       g.Date,
		HomeTeamID: g.HomeTeamID,
		AwayTeamID: g.AwayTeamID,
		Events:     len(g.Events),
		Status:     model.StatusComplete,
	}
	if st != nil {
		s.HomeScore = st.Score(g.HomeTeamID)
		s.AwayScore = st.Score(g.AwayTeamID)
		s.Periods = st.Period()
		s.LastOrdinal = st.Ordinal()
	}
	return s
}

// Partition returns the committed snapshots of a game, loading them from the
// persister when the game is not held in memory.
func (e *Engine) Partition(gameID string) (*snapshot.Partition, error) {
	if p, ok := e.store.Partition(gameID); ok {
		return p, nil
	}
	if e.db == nil {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrUnknownGame)
	}
	lock := e.gameLock(gameID)
	lock.Lock()
	defer lock.Unlock()
	if p, ok := e.store.Partition(gameID); ok {
		return p, nil
	}

	snaps, err := e.db.LoadSnapshots(gameID)
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", gameID, err)
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrUnknownGame)
	}
	b := e.store.Begin(gameID)
	if err := b.Append(snaps...); err != nil {
		return nil, fmt.Errorf("index game %s: %w", gameID, err)
	}
	return b.Commit()
}

// Snapshot returns the latest snapshot of ref at or before at. The bool is
// false when the entity has no snapshot by then.
func (e *Engine) Snapshot(gameID string, ref model.EntityRef, at snapshot.Point) (model.Snapshot, bool, error) {
	p, err := e.Partition(gameID)
	if err != nil {
		return model.Snapshot{}, false, err
	}
	s, ok := p.Lookup(ref, at)
	return s, ok, nil
}

// Interval returns ref's statistics over window w. The bool is false when the
// game never reached the window.
func (e *Engine) Interval(gameID string, ref model.EntityRef, w model.Window) (interval.Stats, bool, error) {
	p, err := e.Partition(gameID)
	if err != nil {
		return interval.Stats{}, false, err
	}
	st, ok := interval.Window(p, e.resolver, ref, w)
	return st, ok, nil
}

// Split is one window of a splits table.
type Split struct {
	Window model.Window
	Stats  interval.Stats
}

// Splits returns ref's statistics for every window of the given kind the game
// reached. length is the bucket length for bucket windows.
func (e *Engine) Splits(gameID string, ref model.EntityRef, kind model.WindowKind, length time.Duration) ([]Split, error) {
	p, err := e.Partition(gameID)
	if err != nil {
		return nil, err
	}
	var out []Split
	for _, w := range e.resolver.Enumerate(p, kind, length) {
		if st, ok := interval.Window(p, e.resolver, ref, w); ok {
			out = append(out, Split{Window: w, Stats: st})
		}
	}
	return out, nil
}

// Verify grades a game against its authoritative box score, stores the record
// and queues the game for reprocessing when the grade is below exact. A queue
// failure is returned alongside the record.
func (e *Engine) Verify(ctx context.Context, box model.BoxScore) (model.VerificationRecord, error) {
	p, err := e.Partition(box.GameID)
	if err != nil {
		return model.VerificationRecord{}, err
	}
	rec := e.verifier.Verify(p, box)
	logger.Info("game %s: verification grade %s (max error %.3f)", rec.GameID, rec.Grade, rec.MaxAbsError)

	e.mu.Lock()
	e.records[rec.GameID] = rec
	e.mu.Unlock()
	if e.db != nil {
		if err := e.db.SaveVerification(rec); err != nil {
			return rec, fmt.Errorf("save verification for %s: %w", rec.GameID, err)
		}
	}
	if rec.Reprocess {
		if err := e.queue.Enqueue(ctx, requeue.FromRecord(rec)); err != nil {
			return rec, fmt.Errorf("queue %s for reprocessing: %w", rec.GameID, err)
		}
		logger.Info("game %s: queued ordinals %d-%d for reprocessing", rec.GameID, rec.FromOrdinal, rec.ToOrdinal)
	}
	return rec, nil
}

// Verification returns the latest verification of a game. The bool is false
// when the game has not been verified.
func (e *Engine) Verification(gameID string) (model.VerificationRecord, bool, error) {
	e.mu.Lock()
	rec, ok := e.records[gameID]
	e.mu.Unlock()
	if ok || e.db == nil {
		return rec, ok, nil
	}
	stored, err := e.db.GetVerification(gameID)
	if err != nil {
		return model.VerificationRecord{}, false, fmt.Errorf("load verification for %s: %w", gameID, err)
	}
	if stored == nil {
		return model.VerificationRecord{}, false, nil
	}
	return *stored, true, nil
}
