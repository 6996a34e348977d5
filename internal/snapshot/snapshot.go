// Package snapshot stores per-game snapshot sequences and answers as-of
// lookups by ordinal, elapsed time or period end.
package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pable/go-pbp-metrics/internal/model"
)

var (
	// ErrOutOfOrder is returned when a snapshot does not advance its entity's ordinal.
	ErrOutOfOrder = errors.New("snapshot out of order")
	// ErrBatchClosed is returned by a batch that was already committed or discarded.
	ErrBatchClosed = errors.New("batch closed")
)

type pointKind int

const (
	byOrdinal pointKind = iota
	byElapsed
	byPeriodEnd
)

// Point addresses a position in a game for an as-of lookup.
type Point struct {
	kind    pointKind
	ordinal int
	elapsed time.Duration
	period  int
}

// AtOrdinal is the state after the event with the given ordinal.
func AtOrdinal(n int) Point { return Point{kind: byOrdinal, ordinal: n} }

// AtElapsed is the state after the last event at or before d of game time.
func AtElapsed(d time.Duration) Point { return Point{kind: byElapsed, elapsed: d} }

// AtPeriodEnd is the state after the last event of period p.
func AtPeriodEnd(p int) Point { return Point{kind: byPeriodEnd, period: p} }

func (p Point) String() string {
	switch p.kind {
	case byElapsed:
		return "elapsed " + p.elapsed.String()
	case byPeriodEnd:
		return fmt.Sprintf("end of period %d", p.period)
	default:
		return fmt.Sprintf("ordinal %d", p.ordinal)
	}
}

// Mark summarizes one event position: where it is on the clock and the score
// after it.
type Mark struct {
	Ordinal int
	Period  int
	Elapsed time.Duration
	Scores  [2]int // indexed like Partition.Teams
}

// Diff returns the absolute score differential.
func (m Mark) Diff() int {
	d := m.Scores[0] - m.Scores[1]
	if d < 0 {
		return -d
	}
	return d
}

// Partition is the complete, immutable snapshot sequence of one game.
type Partition struct {
	gameID   string
	teams    [2]string
	order    []model.EntityRef
	entities map[model.EntityRef][]model.Snapshot
	marks    []Mark
}

// Build indexes snaps, which must be in emission order, into a partition.
func Build(gameID string, snaps []model.Snapshot) (*Partition, error) {
	p := &Partition{gameID: gameID, entities: make(map[model.EntityRef][]model.Snapshot)}
	var nTeams int
	for _, s := range snaps {
		if s.GameID != gameID {
			return nil, fmt.Errorf("snapshot for game %q in partition %q", s.GameID, gameID)
		}
		seq, seen := p.entities[s.Entity]
		if !seen {
			p.order = append(p.order, s.Entity)
			if s.Entity.Kind == model.EntityTeam {
				if nTeams == 2 {
					return nil, fmt.Errorf("game %s: more than two teams", gameID)
				}
				p.teams[nTeams] = s.Entity.ID
				nTeams++
			}
		}
		if n := len(seq); n > 0 && s.Ordinal <= seq[n-1].Ordinal {
			return nil, fmt.Errorf("%s at ordinal %d after %d: %w", s.Entity, s.Ordinal, seq[n-1].Ordinal, ErrOutOfOrder)
		}
		p.entities[s.Entity] = append(seq, s)
	}
	if len(snaps) > 0 && nTeams != 2 {
		return nil, fmt.Errorf("game %s: want two teams, got %d", gameID, nTeams)
	}

	if nTeams == 2 {
		a, b := p.entities[model.Team(p.teams[0])], p.entities[model.Team(p.teams[1])]
		p.marks = make([]Mark, 0, len(a))
		for i, s := range a {
			m := Mark{Ordinal: s.Ordinal, Period: s.Period, Elapsed: s.Elapsed, Scores: [2]int{s.Totals().Points, 0}}
			if i < len(b) && b[i].Ordinal == s.Ordinal {
				m.Scores[1] = b[i].Totals().Points
			} else if o, ok := p.Lookup(model.Team(p.teams[1]), AtOrdinal(s.Ordinal)); ok {
				m.Scores[1] = o.Totals().Points
			}
			p.marks = append(p.marks, m)
		}
	}
	return p, nil
}

// GameID returns the partition's game.
func (p *Partition) GameID() string { return p.gameID }

// Teams returns the two team ids in first-seen order.
func (p *Partition) Teams() [2]string { return p.teams }

// Opponent returns the other team id.
func (p *Partition) Opponent(teamID string) string {
	if teamID == p.teams[0] {
		return p.teams[1]
	}
	return p.teams[0]
}

// Entities returns every entity in first-seen order.
func (p *Partition) Entities() []model.EntityRef { return p.order }

// Marks returns one mark per event in ordinal order.
func (p *Partition) Marks() []Mark { return p.marks }

// Len returns the number of events in the partition.
func (p *Partition) Len() int { return len(p.marks) }

// FirstOrdinal returns the ordinal of the first event, or 0 for an empty partition.
func (p *Partition) FirstOrdinal() int {
	if len(p.marks) == 0 {
		return 0
	}
	return p.marks[0].Ordinal
}

// LastOrdinal returns the ordinal of the last event, or 0 for an empty partition.
func (p *Partition) LastOrdinal() int {
	if len(p.marks) == 0 {
		return 0
	}
	return p.marks[len(p.marks)-1].Ordinal
}

// Periods returns the highest period reached.
func (p *Partition) Periods() int {
	if len(p.marks) == 0 {
		return 0
	}
	return p.marks[len(p.marks)-1].Period
}

// Lookup returns the latest snapshot of ref at or before at. The second
// result is false when at precedes the entity's first snapshot.
func (p *Partition) Lookup(ref model.EntityRef, at Point) (model.Snapshot, bool) {
	seq := p.entities[ref]
	var i int
	switch at.kind {
	case byElapsed:
		i = sort.Search(len(seq), func(i int) bool { return seq[i].Elapsed > at.elapsed })
	case byPeriodEnd:
		i = sort.Search(len(seq), func(i int) bool { return seq[i].Period > at.period })
	default:
		i = sort.Search(len(seq), func(i int) bool { return seq[i].Ordinal > at.ordinal })
	}
	if i == 0 {
		return model.Snapshot{}, false
	}
	return seq[i-1], true
}

// Last returns the final snapshot of ref.
func (p *Partition) Last(ref model.EntityRef) (model.Snapshot, bool) {
	seq := p.entities[ref]
	if len(seq) == 0 {
		return model.Snapshot{}, false
	}
	return seq[len(seq)-1], true
}

// Frame looks up ref at and pairs it with its team's and the opponent's
// snapshots at the same ordinal.
func (p *Partition) Frame(ref model.EntityRef, at Point) (model.Frame, bool) {
	s, ok := p.Lookup(ref, at)
	if !ok {
		return model.Frame{}, false
	}
	same := AtOrdinal(s.Ordinal)
	team, ok := p.Lookup(model.Team(s.TeamID), same)
	if !ok {
		return model.Frame{}, false
	}
	opp, ok := p.Lookup(model.Team(p.Opponent(s.TeamID)), same)
	if !ok {
		return model.Frame{}, false
	}
	return model.Frame{Entity: s, Team: team, Opponent: opp}, true
}

// Snapshots returns every snapshot in emission order: all entities for the
// first event, then the second, and so on.
func (p *Partition) Snapshots() []model.Snapshot {
	var out []model.Snapshot
	idx := make(map[model.EntityRef]int, len(p.order))
	for _, m := range p.marks {
		for _, ref := range p.order {
			seq := p.entities[ref]
			i := idx[ref]
			if i < len(seq) && seq[i].Ordinal == m.Ordinal {
				out = append(out, seq[i])
				idx[ref] = i + 1
			}
		}
	}
	return out
}

// Store holds committed partitions. Games are independent; a game's batch is
// invisible to readers until Commit swaps in the whole partition.
type Store struct {
	mu    sync.RWMutex
	parts map[string]*Partition
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{parts: make(map[string]*Partition)}
}

// Partition returns the committed partition of gameID.
func (s *Store) Partition(gameID string) (*Partition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parts[gameID]
	return p, ok
}

// Put installs an already-built partition, replacing any previous one.
func (s *Store) Put(p *Partition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parts[p.gameID] = p
}

// Drop removes a game.
func (s *Store) Drop(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.parts, gameID)
}

// Games returns the committed game ids, sorted.
func (s *Store) Games() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.parts))
	for id := range s.parts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Begin opens a write batch for gameID.
func (s *Store) Begin(gameID string) *Batch {
	return &Batch{store: s, gameID: gameID, last: make(map[model.EntityRef]int)}
}

// Batch accumulates one game's snapshots. Appends are write-once: each
// entity's ordinals must strictly increase.
type Batch struct {
	store  *Store
	gameID string
	snaps  []model.Snapshot
	last   map[model.EntityRef]int
	sealed *Partition
	closed bool
}

// Append adds snapshots to the batch.
func (b *Batch) Append(snaps ...model.Snapshot) error {
	if b.closed {
		return ErrBatchClosed
	}
	for _, s := range snaps {
		if s.GameID != b.gameID {
			return fmt.Errorf("snapshot for game %q in batch %q", s.GameID, b.gameID)
		}
		if last, ok := b.last[s.Entity]; ok && s.Ordinal <= last {
			return fmt.Errorf("%s at ordinal %d after %d: %w", s.Entity, s.Ordinal, last, ErrOutOfOrder)
		}
		b.last[s.Entity] = s.Ordinal
		b.snaps = append(b.snaps, s)
		b.sealed = nil
	}
	return nil
}

// Len returns the number of buffered snapshots.
func (b *Batch) Len() int { return len(b.snaps) }

// Snapshots returns the buffered snapshots.
func (b *Batch) Snapshots() []model.Snapshot { return b.snaps }

// Seal indexes the batch without publishing it. Readers keep seeing the
// earlier partition, if any, until Commit.
func (b *Batch) Seal() (*Partition, error) {
	if b.closed {
		return nil, ErrBatchClosed
	}
	if b.sealed == nil {
		p, err := Build(b.gameID, b.snaps)
		if err != nil {
			return nil, err
		}
		b.sealed = p
	}
	return b.sealed, nil
}

// Commit indexes the batch and publishes it, replacing any earlier partition
// of the same game.
func (b *Batch) Commit() (*Partition, error) {
	p, err := b.Seal()
	if err != nil {
		b.closed = true
		return nil, err
	}
	b.closed = true
	b.store.Put(p)
	b.snaps = nil
	b.sealed = nil
	return p, nil
}

// Discard drops the batch. A discarded game leaves any earlier committed
// partition untouched.
func (b *Batch) Discard() {
	b.closed = true
	b.snaps = nil
	b.sealed = nil
}
