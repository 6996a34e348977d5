package model

import (
	"math"
	"testing"
	"time"
)

func TestBioAt(t *testing.T) {
	b := Bio{
		PlayerID:    "jokic",
		BirthDate:   time.Date(1995, 2, 19, 0, 0, 0, 0, time.UTC),
		CareerStart: time.Date(2015, 10, 28, 0, 0, 0, 0, time.UTC),
		HeightIn:    83,
		WeightLb:    284,
	}
	ctx := b.At(time.Date(2024, 2, 19, 0, 0, 0, 0, time.UTC))
	if math.Abs(ctx.AgeYears-29) > 0.01 {
		t.Errorf("age = %.3f, want 29", ctx.AgeYears)
	}
	if ctx.ExperienceYears < 8.3 || ctx.ExperienceYears > 8.4 {
		t.Errorf("experience = %.3f", ctx.ExperienceYears)
	}
	if ctx.HeightIn != 83 || ctx.WeightLb != 284 {
		t.Errorf("physical = %+v", ctx)
	}
	if got := (Bio{}).At(time.Now()); got.AgeYears != 0 || got.ExperienceYears != 0 {
		t.Errorf("zero bio = %+v", got)
	}
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in   string
		want Window
	}{
		{"game", FullGame()},
		{"clutch", Clutch()},
		{"q3", Quarter(3)},
		{"h1", Half(1)},
		{"ot2", Overtime(2)},
		{"ot1.h2", OvertimeHalf(1, 2)},
		{"ot2.m3", OvertimeMinute(2, 3)},
		{"bucket:6m:3", Bucket(6*time.Minute, 3)},
	}
	for _, tc := range tests {
		got, err := ParseWindow(tc.in)
		if err != nil {
			t.Errorf("%s: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s = %+v, want %+v", tc.in, got, tc.want)
		}
		if back, err := ParseWindow(got.String()); err != nil || back != got {
			t.Errorf("%s does not round-trip through %q", tc.in, got.String())
		}
	}
	for _, bad := range []string{"q", "bucket:6m", "bucket:x:1", "ot1.z2", "m3@6m"} {
		if _, err := ParseWindow(bad); err == nil {
			t.Errorf("%q parsed", bad)
		}
	}
}
