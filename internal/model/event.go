package model

import (
	"fmt"
	"time"
)

// Kind identifies the variant carried by an Event's payload.
type Kind int

const (
	KindUnknown Kind = iota
	KindMadeShot
	KindMissedShot
	KindFreeThrow
	KindRebound
	KindAssist
	KindTurnover
	KindSteal
	KindBlock
	KindFoul
	KindSubIn
	KindSubOut
	KindPeriodBoundary
)

var kindNames = map[Kind]string{
	KindMadeShot:       "made_shot",
	KindMissedShot:     "missed_shot",
	KindFreeThrow:      "free_throw",
	KindRebound:        "rebound",
	KindAssist:         "assist",
	KindTurnover:       "turnover",
	KindSteal:          "steal",
	KindBlock:          "block",
	KindFoul:           "foul",
	KindSubIn:          "sub_in",
	KindSubOut:         "sub_out",
	KindPeriodBoundary: "period_boundary",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind maps a wire name back to its Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return KindUnknown, false
}

// Payload is implemented by exactly one struct per event kind. The unexported
// method closes the set to this package.
type Payload interface {
	Kind() Kind
	payload()
}

// ShotLocation is the court position of a shot in feet from the basket.
type ShotLocation struct{ X, Y float64 }

type MadeShot struct {
	Value    int // 2 or 3
	Distance float64
	Location ShotLocation
}

type MissedShot struct {
	Value    int
	Distance float64
	Location ShotLocation
	// Fouled marks a miss on which the shooter was fouled; it is not a field-goal attempt.
	Fouled bool
}

type FreeThrow struct {
	Made       bool
	Number, Of int
	Technical  bool
}

type Rebound struct {
	Offensive bool
}

// Assist is a standalone assist row. ShotOrdinal points at the made shot it
// belongs to; it is ignored when that shot already named its assister.
type Assist struct {
	ShotOrdinal int
}

type Turnover struct {
	Type string
}

type Steal struct{}

type Block struct{}

// FoulType classifies a foul.
type FoulType int

const (
	FoulPersonal FoulType = iota
	FoulShooting
	FoulOffensive
	FoulLooseBall
	FoulTechnical
	FoulFlagrant
)

var foulNames = map[FoulType]string{
	FoulPersonal:  "personal",
	FoulShooting:  "shooting",
	FoulOffensive: "offensive",
	FoulLooseBall: "loose_ball",
	FoulTechnical: "technical",
	FoulFlagrant:  "flagrant",
}

func (f FoulType) String() string { return foulNames[f] }

// ParseFoulType maps a wire name to a FoulType; empty means personal.
func ParseFoulType(s string) (FoulType, bool) {
	if s == "" {
		return FoulPersonal, true
	}
	for f, name := range foulNames {
		if name == s {
			return f, true
		}
	}
	return FoulPersonal, false
}

type Foul struct {
	Type FoulType
}

type SubIn struct{}

type SubOut struct{}

// Edge says whether a period boundary opens or closes a period.
type Edge int

const (
	EdgeStart Edge = iota
	EdgeEnd
)

func (e Edge) String() string {
	if e == EdgeEnd {
		return "end"
	}
	return "start"
}

type PeriodBoundary struct {
	Edge Edge
	// Lineups optionally lists the players on court per team id at a period start.
	Lineups map[string][]string
}

func (MadeShot) Kind() Kind       { return KindMadeShot }
func (MissedShot) Kind() Kind     { return KindMissedShot }
func (FreeThrow) Kind() Kind      { return KindFreeThrow }
func (Rebound) Kind() Kind        { return KindRebound }
func (Assist) Kind() Kind         { return KindAssist }
func (Turnover) Kind() Kind       { return KindTurnover }
func (Steal) Kind() Kind          { return KindSteal }
func (Block) Kind() Kind          { return KindBlock }
func (Foul) Kind() Kind           { return KindFoul }
func (SubIn) Kind() Kind          { return KindSubIn }
func (SubOut) Kind() Kind         { return KindSubOut }
func (PeriodBoundary) Kind() Kind { return KindPeriodBoundary }

func (MadeShot) payload()       {}
func (MissedShot) payload()     {}
func (FreeThrow) payload()      {}
func (Rebound) payload()        {}
func (Assist) payload()         {}
func (Turnover) payload()       {}
func (Steal) payload()          {}
func (Block) payload()          {}
func (Foul) payload()           {}
func (SubIn) payload()          {}
func (SubOut) payload()         {}
func (PeriodBoundary) payload() {}

// Event is one play-by-play occurrence. Ordinals are strictly increasing
// within a game; Elapsed is game time since tip-off and never decreases.
type Event struct {
	GameID      string
	Ordinal     int
	Period      int
	Clock       time.Duration // remaining in period
	Elapsed     time.Duration
	WallClock   time.Time
	TeamID      string
	PlayerID    string
	SecondaryID string // assister, fouled player, blocked shooter, ...
	Payload     Payload
}

// Kind returns the payload's kind, or KindUnknown for an empty event.
func (e Event) Kind() Kind {
	if e.Payload == nil {
		return KindUnknown
	}
	return e.Payload.Kind()
}

func (e Event) String() string {
	return fmt.Sprintf("%s#%d P%d %s %s/%s", e.GameID, e.Ordinal, e.Period, e.Kind(), e.TeamID, e.PlayerID)
}

// RosterEntry ties a player to a team for one game.
type RosterEntry struct {
	PlayerID string
	TeamID   string
	Name     string
	Starter  bool
}

// Game is the ordered event stream for one game plus the context needed to
// validate entity references.
type Game struct {
	GameID     string
	Date       time.Time
	HomeTeamID string
	AwayTeamID string
	Roster     []RosterEntry
	Events     []Event
}
