package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WindowKind names the shape of a time-windowed query.
type WindowKind int

const (
	WindowGame WindowKind = iota
	WindowQuarter
	WindowHalf
	WindowOvertime
	WindowOvertimeHalf
	WindowBucket
	WindowOvertimeMinute
	WindowClutch
)

// Window is a logical query scope. Index is 1-based for quarters, halves and
// overtime periods and 0-based for regulation buckets. Sub is the 1-based
// half or minute inside an overtime period.
type Window struct {
	Kind   WindowKind
	Index  int
	Sub    int
	Length time.Duration // bucket length
}

func Quarter(n int) Window  { return Window{Kind: WindowQuarter, Index: n} }
func Half(n int) Window     { return Window{Kind: WindowHalf, Index: n} }
func Overtime(n int) Window { return Window{Kind: WindowOvertime, Index: n} }
func FullGame() Window      { return Window{Kind: WindowGame} }
func Clutch() Window        { return Window{Kind: WindowClutch} }
func OvertimeHalf(n, h int) Window {
	return Window{Kind: WindowOvertimeHalf, Index: n, Sub: h}
}
func OvertimeMinute(n, m int) Window {
	return Window{Kind: WindowOvertimeMinute, Index: n, Sub: m}
}
func Bucket(length time.Duration, index int) Window {
	return Window{Kind: WindowBucket, Index: index, Length: length}
}

func (w Window) String() string {
	switch w.Kind {
	case WindowQuarter:
		return fmt.Sprintf("q%d", w.Index)
	case WindowHalf:
		return fmt.Sprintf("h%d", w.Index)
	case WindowOvertime:
		return fmt.Sprintf("ot%d", w.Index)
	case WindowOvertimeHalf:
		return fmt.Sprintf("ot%d.h%d", w.Index, w.Sub)
	case WindowOvertimeMinute:
		return fmt.Sprintf("ot%d.m%d", w.Index, w.Sub)
	case WindowBucket:
		return fmt.Sprintf("bucket:%s:%d", w.Length, w.Index)
	case WindowClutch:
		return "clutch"
	default:
		return "game"
	}
}

// ParseWindow parses the forms produced by Window.String:
// game, clutch, q3, h1, ot2, ot1.h2, ot2.m3, bucket:6m:4.
func ParseWindow(s string) (Window, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "game" || s == "":
		return FullGame(), nil
	case s == "clutch":
		return Clutch(), nil
	case strings.HasPrefix(s, "bucket:"):
		parts := strings.Split(s, ":")
		if len(parts) != 3 {
			return Window{}, fmt.Errorf("window %q: want bucket:<length>:<index>", s)
		}
		d, err := time.ParseDuration(parts[1])
		if err != nil || d <= 0 {
			return Window{}, fmt.Errorf("window %q: bad bucket length", s)
		}
		idx, err := strconv.Atoi(parts[2])
		if err != nil || idx < 0 {
			return Window{}, fmt.Errorf("window %q: bad bucket index", s)
		}
		return Bucket(d, idx), nil
	case strings.HasPrefix(s, "ot"):
		head, tail, hasSub := strings.Cut(s[2:], ".")
		n, err := strconv.Atoi(head)
		if err != nil || n < 1 {
			return Window{}, fmt.Errorf("window %q: bad overtime number", s)
		}
		if !hasSub {
			return Overtime(n), nil
		}
		if len(tail) < 2 {
			return Window{}, fmt.Errorf("window %q: bad overtime split", s)
		}
		sub, err := strconv.Atoi(tail[1:])
		if err != nil || sub < 1 {
			return Window{}, fmt.Errorf("window %q: bad overtime split", s)
		}
		switch tail[0] {
		case 'h':
			return OvertimeHalf(n, sub), nil
		case 'm':
			return OvertimeMinute(n, sub), nil
		}
		return Window{}, fmt.Errorf("window %q: bad overtime split", s)
	case strings.HasPrefix(s, "q"), strings.HasPrefix(s, "h"):
		n, err := strconv.Atoi(s[1:])
		if err != nil || n < 1 {
			return Window{}, fmt.Errorf("window %q: bad index", s)
		}
		if s[0] == 'q' {
			return Quarter(n), nil
		}
		return Half(n), nil
	}
	return Window{}, fmt.Errorf("unknown window %q", s)
}
