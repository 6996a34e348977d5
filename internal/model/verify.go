package model

import "time"

// Category groups verified statistics for coverage reporting.
type Category int

const (
	CategoryBasic Category = iota
	CategoryAdvanced
	CategoryFourFactors
	CategoryPlayByPlay
)

// Categories lists every category in report order.
var Categories = []Category{CategoryBasic, CategoryAdvanced, CategoryFourFactors, CategoryPlayByPlay}

func (c Category) String() string {
	switch c {
	case CategoryAdvanced:
		return "advanced"
	case CategoryFourFactors:
		return "four_factors"
	case CategoryPlayByPlay:
		return "pbp"
	default:
		return "basic"
	}
}

// ParseCategory is the inverse of Category.String.
func ParseCategory(s string) Category {
	for _, c := range Categories {
		if c.String() == s {
			return c
		}
	}
	return CategoryBasic
}

// Grade is the discrete quality grade of a verification. Lower is better.
type Grade int

const (
	GradeExact Grade = iota
	GradeMinor
	GradeModerate
	GradeFailed
)

func (g Grade) String() string {
	switch g {
	case GradeExact:
		return "A"
	case GradeMinor:
		return "B"
	case GradeModerate:
		return "C"
	default:
		return "F"
	}
}

// ParseGrade is the inverse of Grade.String.
func ParseGrade(s string) Grade {
	switch s {
	case "A":
		return GradeExact
	case "B":
		return GradeMinor
	case "C":
		return GradeModerate
	default:
		return GradeFailed
	}
}

// BoxLine is one entity's authoritative final statistics. Stats is keyed by
// the stat names in package verify; absent keys are simply not compared.
type BoxLine struct {
	Entity       EntityRef
	TeamID       string
	Stats        map[string]float64
	PeriodPoints []int // teams only, optional
}

// BoxScore is the authoritative final box score of one game.
type BoxScore struct {
	GameID string
	Lines  []BoxLine
}

// StatError is the comparison of one statistic for one entity.
type StatError struct {
	Entity        EntityRef
	Stat          string
	Category      Category
	Generated     float64
	Authoritative float64
	AbsError      float64
	Missing       bool // generated side has no value (entity absent or undefined ratio)
}

// VerificationRecord grades a reconstructed game against its authoritative box score.
type VerificationRecord struct {
	GameID      string
	Grade       Grade
	Coverage    map[Category]bool
	Errors      []StatError // every compared statistic, exact matches included
	MaxAbsError float64
	WorstStat   string
	Entities    int

	// Reprocess is set for any grade below exact; the ordinal range brackets
	// where re-ingestion should start and end.
	Reprocess   bool
	FromOrdinal int
	ToOrdinal   int
	VerifiedAt  time.Time
}

// Mismatches returns only the comparisons with a non-zero error or a missing value.
func (r VerificationRecord) Mismatches() []StatError {
	var out []StatError
	for _, e := range r.Errors {
		if e.Missing || e.AbsError > 0 {
			out = append(out, e)
		}
	}
	return out
}
