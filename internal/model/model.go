package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityKind distinguishes individual players from team aggregates.
type EntityKind int

const (
	EntityPlayer EntityKind = iota
	EntityTeam
)

func (k EntityKind) String() string {
	if k == EntityTeam {
		return "team"
	}
	return "player"
}

// ParseEntityKind is the inverse of EntityKind.String.
func ParseEntityKind(s string) EntityKind {
	if s == "team" {
		return EntityTeam
	}
	return EntityPlayer
}

// EntityRef names a player or a team. Player and team ids live in separate
// namespaces.
type EntityRef struct {
	Kind EntityKind
	ID   string
}

func Player(id string) EntityRef { return EntityRef{Kind: EntityPlayer, ID: id} }
func Team(id string) EntityRef   { return EntityRef{Kind: EntityTeam, ID: id} }

func (r EntityRef) String() string { return r.Kind.String() + ":" + r.ID }

// ---- Cumulative state ----

// Counters holds the additive box-score counters of one entity. Every field
// except PlusMinus is non-negative and never decreases across ordinals.
type Counters struct {
	Points int
	FGM    int
	FGA    int
	FG3M   int
	FG3A   int
	FTM    int
	FTA    int
	OREB   int
	DREB   int
	REB    int
	AST    int
	STL    int
	BLK    int
	TOV    int
	PF     int

	PlusMinus int

	// OnCourt is accumulated playing time. For a team it is the sum over its
	// players, so five times the game time elapsed.
	OnCourt time.Duration

	// PeriodPoints[i] is points scored in period i+1; overtime periods extend the slice.
	PeriodPoints []int
}

// Minutes returns playing time in fractional minutes.
func (c Counters) Minutes() float64 { return c.OnCourt.Minutes() }

// Clone returns a copy that shares no backing storage with c.
func (c Counters) Clone() Counters {
	out := c
	if c.PeriodPoints != nil {
		out.PeriodPoints = append([]int(nil), c.PeriodPoints...)
	}
	return out
}

// AddPeriodPoints credits pts to the given 1-based period.
func (c *Counters) AddPeriodPoints(period, pts int) {
	for len(c.PeriodPoints) < period {
		c.PeriodPoints = append(c.PeriodPoints, 0)
	}
	c.PeriodPoints[period-1] += pts
}

// Add returns c+o counter by counter.
func (c Counters) Add(o Counters) Counters {
	return combine(c, o, 1)
}

// Sub returns c-o counter by counter. It is only meaningful when o is an
// earlier snapshot of the same entity.
func (c Counters) Sub(o Counters) Counters {
	return combine(c, o, -1)
}

func combine(a, b Counters, sign int) Counters {
	out := Counters{
		Points:    a.Points + sign*b.Points,
		FGM:       a.FGM + sign*b.FGM,
		FGA:       a.FGA + sign*b.FGA,
		FG3M:      a.FG3M + sign*b.FG3M,
		FG3A:      a.FG3A + sign*b.FG3A,
		FTM:       a.FTM + sign*b.FTM,
		FTA:       a.FTA + sign*b.FTA,
		OREB:      a.OREB + sign*b.OREB,
		DREB:      a.DREB + sign*b.DREB,
		REB:       a.REB + sign*b.REB,
		AST:       a.AST + sign*b.AST,
		STL:       a.STL + sign*b.STL,
		BLK:       a.BLK + sign*b.BLK,
		TOV:       a.TOV + sign*b.TOV,
		PF:        a.PF + sign*b.PF,
		PlusMinus: a.PlusMinus + sign*b.PlusMinus,
		OnCourt:   a.OnCourt + time.Duration(sign)*b.OnCourt,
	}
	n := max(len(a.PeriodPoints), len(b.PeriodPoints))
	if n > 0 {
		out.PeriodPoints = make([]int, n)
		for i := range out.PeriodPoints {
			if i < len(a.PeriodPoints) {
				out.PeriodPoints[i] += a.PeriodPoints[i]
			}
			if i < len(b.PeriodPoints) {
				out.PeriodPoints[i] += sign * b.PeriodPoints[i]
			}
		}
	}
	return out
}

// ---- Derived statistics ----

// Ratio is a derived statistic that may be undefined (zero denominator).
// Undefined values marshal to JSON null and are skipped by averages.
type Ratio struct {
	Value float64
	Valid bool
}

// Defined wraps a computed value.
func Defined(v float64) Ratio { return Ratio{Value: v, Valid: true} }

// Undefined is the zero-denominator marker.
func Undefined() Ratio { return Ratio{} }

// Text renders the ratio with the given verb, or "—" when undefined.
func (r Ratio) Text(verb string) string {
	if !r.Valid {
		return "—"
	}
	return fmt.Sprintf(verb, r.Value)
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Ratio{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Defined(v)
	return nil
}

// Derived holds the advanced statistics computed from a cumulative (or
// interval) state. Percentages are fractions, not scaled by 100.
type Derived struct {
	FGPct  Ratio `json:"fg_pct"`
	FG3Pct Ratio `json:"fg3_pct"`
	FTPct  Ratio `json:"ft_pct"`
	TSPct  Ratio `json:"ts_pct"`
	EFGPct Ratio `json:"efg_pct"`

	// Four Factors (team) / individual shares (player).
	TOVPct Ratio `json:"tov_pct"`
	ORBPct Ratio `json:"orb_pct"`
	DRBPct Ratio `json:"drb_pct"`
	TRBPct Ratio `json:"trb_pct"`
	FTRate Ratio `json:"ft_rate"`

	UsagePct Ratio `json:"usg_pct"`
	ASTPct   Ratio `json:"ast_pct"`
	STLPct   Ratio `json:"stl_pct"`
	BLKPct   Ratio `json:"blk_pct"`

	GameScore float64 `json:"game_score"`
	// GameScorePer100 is Game Score per 100 possessions the player was on
	// court for, estimated from the team's possessions and minutes share.
	GameScorePer100 Ratio `json:"game_score_per100"`

	// Team only.
	Possessions float64 `json:"possessions"`
	Pace        Ratio   `json:"pace"`
	OffRating   Ratio   `json:"ortg"`
	DefRating   Ratio   `json:"drtg"`
	NetRating   Ratio   `json:"net_rtg"`
}

// ---- Snapshots ----

// Snapshot is the immutable cumulative state of one entity as of one event
// ordinal, plus the statistics derived from it at write time.
type Snapshot struct {
	GameID  string
	Entity  EntityRef
	TeamID  string
	Ordinal int
	Period  int
	Elapsed time.Duration
	OnCourt bool // players only

	// Counters is the player's own state, or for a team the sum of its players.
	Counters Counters
	// Unattributed holds team-credited events with no player (team rebounds,
	// shot-clock turnovers, bench technicals). Always zero for players.
	Unattributed Counters

	Derived Derived
}

// Totals returns the counters a box score reports: for a team, the player sum
// plus unattributed events.
func (s Snapshot) Totals() Counters {
	if s.Entity.Kind == EntityTeam {
		return s.Counters.Add(s.Unattributed)
	}
	return s.Counters.Clone()
}

// Frame pairs an entity's snapshot with its own team's and the opponent's
// snapshots at the same ordinal. Rate statistics need all three.
type Frame struct {
	Entity   Snapshot
	Team     Snapshot
	Opponent Snapshot
}

// GameSummary is a lightweight per-game record for list/show commands.
type GameSummary struct {
	GameID      string
	Date        time.Time
	HomeTeamID  string
	AwayTeamID  string
	HomeScore   int
	AwayScore   int
	Periods     int
	Events      int
	LastOrdinal int
	Status      string // "complete", "undecided" or "failed"
	Error       string
}

const (
	StatusComplete = "complete"
	// StatusUndecided marks a stored game that ended tied or stopped before
	// regulation was over.
	StatusUndecided = "undecided"
	StatusFailed    = "failed"
)

// Bio is a read-only biographical record joined at query time.
type Bio struct {
	PlayerID    string
	Name        string
	BirthDate   time.Time
	HeightIn    int
	WeightLb    int
	CareerStart time.Time
}

// BioContext is the physical/age context attached to a snapshot for a given game date.
type BioContext struct {
	AgeYears        float64
	HeightIn        int
	WeightLb        int
	ExperienceYears float64
}

// At computes the context of b on the given date. Zero dates yield zero fields.
func (b Bio) At(date time.Time) BioContext {
	const year = 365.2425 * 24 * float64(time.Hour)
	ctx := BioContext{HeightIn: b.HeightIn, WeightLb: b.WeightLb}
	if !b.BirthDate.IsZero() && date.After(b.BirthDate) {
		ctx.AgeYears = float64(date.Sub(b.BirthDate)) / year
	}
	if !b.CareerStart.IsZero() && date.After(b.CareerStart) {
		ctx.ExperienceYears = float64(date.Sub(b.CareerStart)) / year
	}
	return ctx
}
