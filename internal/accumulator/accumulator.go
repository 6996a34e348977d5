// Package accumulator folds an ordered play-by-play stream into cumulative
// per-entity state and emits one immutable snapshot per entity per event.
package accumulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pable/go-pbp-metrics/internal/derive"
	"github.com/pable/go-pbp-metrics/internal/model"
)

// ErrMalformedEvent matches every MalformedEventError via errors.Is.
var ErrMalformedEvent = errors.New("malformed event")

// MalformedEventError reports an event that cannot be applied: an unknown
// entity, a regressing ordinal or clock, or a foreign game id. It is fatal for
// the game being reconstructed.
type MalformedEventError struct {
	GameID  string
	Ordinal int
	Reason  string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("game %s event %d: %s", e.GameID, e.Ordinal, e.Reason)
}

func (e *MalformedEventError) Is(target error) bool { return target == ErrMalformedEvent }

type player struct {
	id       string
	teamID   string
	counters model.Counters
	onCourt  bool
	since    time.Duration // elapsed at check-in or at the last period end
}

// State is the running aggregate of one game. It is owned by a single
// goroutine; Step gives a value-semantics fold over it.
type State struct {
	gameID string
	home   string
	away   string

	players map[string]*player
	order   map[string][]string // team id -> player ids in roster order

	unattributed map[string]*model.Counters
	score        map[string]int

	started  bool
	ordinal  int
	period   int
	elapsed  time.Duration
	offset   time.Duration // added to feed elapsed values of the current period
	assisted map[int]bool  // made-shot ordinals already credited with an assist

	periodStart func(period int) time.Duration
}

// Option configures a State.
type Option func(*State)

// WithPeriodStarts supplies the game-clock start of each period. Feeds that
// restart elapsed time every period are placed on the game clock with it;
// without it a restarted period is assumed to begin at the last event seen.
func WithPeriodStarts(start func(period int) time.Duration) Option {
	return func(s *State) { s.periodStart = start }
}

// New returns the zero state of game g with the roster starters on court.
func New(g model.Game, opts ...Option) (*State, error) {
	if g.HomeTeamID == "" || g.AwayTeamID == "" || g.HomeTeamID == g.AwayTeamID {
		return nil, fmt.Errorf("game %s: need two distinct team ids", g.GameID)
	}
	s := &State{
		gameID:  g.GameID,
		home:    g.HomeTeamID,
		away:    g.AwayTeamID,
		players: make(map[string]*player, len(g.Roster)),
		order:   make(map[string][]string, 2),
		unattributed: map[string]*model.Counters{
			g.HomeTeamID: {},
			g.AwayTeamID: {},
		},
		score:    map[string]int{g.HomeTeamID: 0, g.AwayTeamID: 0},
		period:   1,
		assisted: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, r := range g.Roster {
		if r.TeamID != s.home && r.TeamID != s.away {
			return nil, fmt.Errorf("game %s: player %s on unknown team %q", g.GameID, r.PlayerID, r.TeamID)
		}
		if _, dup := s.players[r.PlayerID]; dup {
			return nil, fmt.Errorf("game %s: duplicate roster entry %s", g.GameID, r.PlayerID)
		}
		s.players[r.PlayerID] = &player{id: r.PlayerID, teamID: r.TeamID, onCourt: r.Starter}
		s.order[r.TeamID] = append(s.order[r.TeamID], r.PlayerID)
	}
	return s, nil
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := *s
	c.players = make(map[string]*player, len(s.players))
	for id, p := range s.players {
		cp := *p
		cp.counters = p.counters.Clone()
		c.players[id] = &cp
	}
	c.order = make(map[string][]string, len(s.order))
	for t, ids := range s.order {
		c.order[t] = append([]string(nil), ids...)
	}
	c.unattributed = make(map[string]*model.Counters, len(s.unattributed))
	for t, u := range s.unattributed {
		cu := u.Clone()
		c.unattributed[t] = &cu
	}
	c.score = map[string]int{s.home: s.score[s.home], s.away: s.score[s.away]}
	c.assisted = make(map[int]bool, len(s.assisted))
	for k, v := range s.assisted {
		c.assisted[k] = v
	}
	return &c
}

// Step applies ev to a copy of prior and returns the copy. prior is left
// untouched.
func Step(prior *State, ev model.Event) (*State, error) {
	next := prior.Clone()
	if err := next.Apply(ev); err != nil {
		return nil, err
	}
	return next, nil
}

// Ordinal returns the ordinal of the last applied event.
func (s *State) Ordinal() int { return s.ordinal }

// Period returns the current period.
func (s *State) Period() int { return s.period }

// Score returns the current score of a team.
func (s *State) Score(teamID string) int { return s.score[teamID] }

// OnCourt returns the ids of the players of teamID currently on court.
func (s *State) OnCourt(teamID string) []string {
	var out []string
	for _, id := range s.order[teamID] {
		if s.players[id].onCourt {
			out = append(out, id)
		}
	}
	return out
}

func (s *State) malformed(ev model.Event, format string, args ...any) error {
	return &MalformedEventError{GameID: s.gameID, Ordinal: ev.Ordinal, Reason: fmt.Sprintf(format, args...)}
}

func (s *State) opponent(teamID string) string {
	if teamID == s.home {
		return s.away
	}
	return s.home
}

// validate checks ordering and entity references, and fills in the team
// of a player event that omitted it.
func (s *State) validate(ev *model.Event) error {
	if ev.GameID != s.gameID {
		return s.malformed(*ev, "belongs to game %q", ev.GameID)
	}
	if s.started && ev.Ordinal <= s.ordinal {
		return s.malformed(*ev, "ordinal not after %d", s.ordinal)
	}
	if ev.Payload == nil {
		return s.malformed(*ev, "no payload")
	}
	if ev.Period < 1 || ev.Period < s.period {
		return s.malformed(*ev, "period %d after period %d", ev.Period, s.period)
	}
	if err := s.placeOnClock(ev); err != nil {
		return err
	}
	if ev.Kind() == model.KindPeriodBoundary {
		return s.validateLineups(*ev)
	}
	if ev.PlayerID != "" {
		p, ok := s.players[ev.PlayerID]
		if !ok {
			return s.malformed(*ev, "unknown player %q", ev.PlayerID)
		}
		if ev.TeamID == "" {
			ev.TeamID = p.teamID
		} else if ev.TeamID != p.teamID {
			return s.malformed(*ev, "player %s is not on team %s", ev.PlayerID, ev.TeamID)
		}
	}
	if ev.TeamID != s.home && ev.TeamID != s.away {
		return s.malformed(*ev, "unknown team %q", ev.TeamID)
	}
	if ev.SecondaryID != "" {
		if _, ok := s.players[ev.SecondaryID]; !ok {
			return s.malformed(*ev, "unknown secondary player %q", ev.SecondaryID)
		}
	}
	switch ev.Kind() {
	case model.KindSteal, model.KindBlock, model.KindAssist, model.KindSubIn, model.KindSubOut:
		if ev.PlayerID == "" {
			return s.malformed(*ev, "%s without a player", ev.Kind())
		}
	}
	return nil
}

// placeOnClock converts ev.Elapsed to game time. Only the first event of a new
// period may restart the feed's elapsed count.
func (s *State) placeOnClock(ev *model.Event) error {
	offset := s.offset
	if ev.Period > s.period {
		offset = 0
		if ev.Elapsed < s.elapsed {
			offset = s.elapsed
			if s.periodStart != nil {
				offset = s.periodStart(ev.Period)
			}
		}
	}
	elapsed := ev.Elapsed + offset
	if elapsed < s.elapsed {
		return s.malformed(*ev, "elapsed %s before %s", elapsed, s.elapsed)
	}
	ev.Elapsed = elapsed
	return nil
}

func (s *State) validateLineups(ev model.Event) error {
	pb := ev.Payload.(model.PeriodBoundary)
	for teamID, ids := range pb.Lineups {
		if teamID != s.home && teamID != s.away {
			return s.malformed(ev, "lineup for unknown team %q", teamID)
		}
		for _, id := range ids {
			p, ok := s.players[id]
			if !ok {
				return s.malformed(ev, "lineup names unknown player %q", id)
			}
			if p.teamID != teamID {
				return s.malformed(ev, "lineup puts %s on team %s", id, teamID)
			}
		}
	}
	return nil
}

// Apply folds ev into s. On error s is unchanged.
func (s *State) Apply(ev model.Event) error {
	fed := ev.Elapsed
	if err := s.validate(&ev); err != nil {
		return err
	}
	s.started = true
	s.ordinal = ev.Ordinal
	s.period = ev.Period
	s.elapsed = ev.Elapsed
	s.offset = ev.Elapsed - fed

	switch p := ev.Payload.(type) {
	case model.PeriodBoundary:
		s.boundary(ev, p)
	case model.MadeShot:
		c := s.actor(ev)
		c.FGM++
		c.FGA++
		if p.Value == 3 {
			c.FG3M++
			c.FG3A++
		}
		s.scorePoints(ev, p.Value)
		if ev.SecondaryID != "" {
			s.credit(ev, ev.SecondaryID).AST++
			s.assisted[ev.Ordinal] = true
		}
	case model.MissedShot:
		c := s.actor(ev)
		// A fouled miss is resolved at the line; it is not a field-goal attempt.
		if p.Fouled {
			break
		}
		c.FGA++
		if p.Value == 3 {
			c.FG3A++
		}
	case model.FreeThrow:
		c := s.actor(ev)
		c.FTA++
		if p.Made {
			c.FTM++
			s.scorePoints(ev, 1)
		}
	case model.Rebound:
		c := s.actor(ev)
		if p.Offensive {
			c.OREB++
		} else {
			c.DREB++
		}
		c.REB++
	case model.Assist:
		if p.ShotOrdinal > 0 && s.assisted[p.ShotOrdinal] {
			break
		}
		s.actor(ev).AST++
		if p.ShotOrdinal > 0 {
			s.assisted[p.ShotOrdinal] = true
		}
	case model.Turnover:
		s.actor(ev).TOV++
	case model.Steal:
		s.actor(ev).STL++
	case model.Block:
		s.actor(ev).BLK++
	case model.Foul:
		// Technicals are charged to the player but are not personal fouls,
		// and the bench can draw one without checking in.
		if p.Type == model.FoulTechnical {
			break
		}
		s.actor(ev).PF++
	case model.SubOut:
		s.checkOut(s.players[ev.PlayerID], ev.Elapsed)
	case model.SubIn:
		s.checkIn(s.players[ev.PlayerID], ev.Elapsed)
	}
	return nil
}

func (s *State) scorePoints(ev model.Event, pts int) {
	c := s.actor(ev)
	c.Points += pts
	c.AddPeriodPoints(ev.Period, pts)
	s.score[ev.TeamID] += pts
	for _, p := range s.players {
		if !p.onCourt {
			continue
		}
		if p.teamID == ev.TeamID {
			p.counters.PlusMinus += pts
		} else {
			p.counters.PlusMinus -= pts
		}
	}
}

// actor returns the counters the event's primary entity is credited to,
// checking an off-court player in. Team events with no player land in the
// team's unattributed block.
func (s *State) actor(ev model.Event) *model.Counters {
	if ev.PlayerID == "" {
		return s.unattributed[ev.TeamID]
	}
	return s.credit(ev, ev.PlayerID)
}

func (s *State) credit(ev model.Event, id string) *model.Counters {
	p := s.players[id]
	s.checkIn(p, ev.Elapsed)
	return &p.counters
}

func (s *State) checkIn(p *player, at time.Duration) {
	if p.onCourt {
		return
	}
	p.onCourt = true
	p.since = at
}

func (s *State) checkOut(p *player, at time.Duration) {
	if !p.onCourt {
		return
	}
	p.counters.OnCourt += at - p.since
	p.onCourt = false
	p.since = at
}

func (s *State) boundary(ev model.Event, pb model.PeriodBoundary) {
	switch pb.Edge {
	case model.EdgeEnd:
		// Bank the period's minutes and restart the stint clock; the closing
		// lineup stays on court for the next period unless replaced.
		for _, p := range s.players {
			if p.onCourt {
				p.counters.OnCourt += ev.Elapsed - p.since
				p.since = ev.Elapsed
			}
		}
	case model.EdgeStart:
		for teamID, ids := range pb.Lineups {
			in := make(map[string]bool, len(ids))
			for _, id := range ids {
				in[id] = true
			}
			for _, id := range s.order[teamID] {
				p := s.players[id]
				if in[id] {
					s.checkIn(p, ev.Elapsed)
				} else {
					s.checkOut(p, ev.Elapsed)
				}
			}
		}
	}
}

// playerCounters returns p's counters with the live stint included.
func (s *State) playerCounters(p *player) model.Counters {
	c := p.counters.Clone()
	if p.onCourt {
		c.OnCourt += s.elapsed - p.since
	}
	return c
}

// Snapshots returns the snapshot of every entity as of the last applied
// event: home team, away team, then players in roster order.
func (s *State) Snapshots() []model.Snapshot {
	type teamView struct {
		players model.Counters
		totals  model.Counters
	}
	views := make(map[string]teamView, 2)
	perPlayer := make(map[string]model.Counters, len(s.players))
	for _, teamID := range []string{s.home, s.away} {
		var sum model.Counters
		for _, id := range s.order[teamID] {
			c := s.playerCounters(s.players[id])
			perPlayer[id] = c
			sum = sum.Add(c)
		}
		views[teamID] = teamView{players: sum, totals: sum.Add(*s.unattributed[teamID])}
	}

	out := make([]model.Snapshot, 0, 2+len(s.players))
	for _, teamID := range []string{s.home, s.away} {
		v, opp := views[teamID], views[s.opponent(teamID)]
		out = append(out, model.Snapshot{
			GameID:       s.gameID,
			Entity:       model.Team(teamID),
			TeamID:       teamID,
			Ordinal:      s.ordinal,
			Period:       s.period,
			Elapsed:      s.elapsed,
			Counters:     v.players,
			Unattributed: s.unattributed[teamID].Clone(),
			Derived:      derive.Team(v.totals, opp.totals),
		})
	}
	for _, teamID := range []string{s.home, s.away} {
		ctx := derive.TeamContext{Team: views[teamID].totals, Opponent: views[s.opponent(teamID)].totals}
		for _, id := range s.order[teamID] {
			c := perPlayer[id]
			out = append(out, model.Snapshot{
				GameID:   s.gameID,
				Entity:   model.Player(id),
				TeamID:   teamID,
				Ordinal:  s.ordinal,
				Period:   s.period,
				Elapsed:  s.elapsed,
				OnCourt:  s.players[id].onCourt,
				Counters: c,
				Derived:  derive.Player(c, ctx),
			})
		}
	}
	return out
}

// Sink receives the snapshots produced by one event.
type Sink func(snaps []model.Snapshot) error

// Reconstruct folds the events of g in order, handing each event's snapshots
// to sink. Events must already be sorted by ordinal; a regression is a
// MalformedEventError and stops the fold.
func Reconstruct(ctx context.Context, g model.Game, sink Sink, opts ...Option) (*State, error) {
	s, err := New(g, opts...)
	if err != nil {
		return nil, err
	}
	for _, ev := range g.Events {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.Apply(ev); err != nil {
			return nil, err
		}
		if err := sink(s.Snapshots()); err != nil {
			return nil, fmt.Errorf("emit snapshots for event %d: %w", ev.Ordinal, err)
		}
	}
	return s, nil
}

// All reconstructs g and returns every snapshot in emission order.
func All(g model.Game, opts ...Option) ([]model.Snapshot, error) {
	var out []model.Snapshot
	_, err := Reconstruct(context.Background(), g, func(snaps []model.Snapshot) error {
		out = append(out, snaps...)
		return nil
	}, opts...)
	return out, err
}
