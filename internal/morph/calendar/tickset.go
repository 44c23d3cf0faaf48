package calendar

import (
	"time"

	"jupitor/internal/morph/shape"
)

// Session boundaries for the CN A-share market, local time.
var (
	morningStart   = hm(9, 30)
	morningEnd     = hm(11, 30)
	afternoonStart = hm(13, 0)
	afternoonEnd   = hm(15, 0)
)

type hourMin struct {
	hour, min int
}

func hm(h, m int) hourMin { return hourMin{hour: h, min: m} }

func timeOfDay(h hourMin) time.Duration {
	return time.Duration(h.hour)*time.Hour + time.Duration(h.min)*time.Minute
}

func clockOf(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

func atClock(day time.Time, h hourMin) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), h.hour, h.min, 0, 0, day.Location())
}

func permitTradeTime(t time.Time) bool {
	c := clockOf(t)
	ms, me := timeOfDay(morningStart), timeOfDay(morningEnd)
	as, ae := timeOfDay(afternoonStart), timeOfDay(afternoonEnd)
	return (c >= ms && c <= me) || (c >= as && c <= ae)
}

// Granularity identifies one of the four supported tick resolutions.
type Granularity string

const (
	Tick1Min  Granularity = "1m"
	Tick5Min  Granularity = "5m"
	Tick30Min Granularity = "30m"
	Tick1Day  Granularity = "1d"
)

func tickMinutes(g Granularity) (int, bool) {
	switch g {
	case Tick1Min:
		return 1, true
	case Tick5Min:
		return 5, true
	case Tick30Min:
		return 30, true
	default:
		return 0, false
	}
}

// TickSet answers next/previous/aligned tick questions at one granularity,
// composed over a shared DateSet rather than duplicating the day bitmap —
// every granularity's TickSet embeds the same *DateSet.
type TickSet struct {
	granularity Granularity
	minutes     int
	dates       *DateSet
}

// NewTickSet builds a TickSet for the given granularity ("1m", "5m", "30m"
// or "1d") over dates. For "1d" it returns the same set as NewDayTickSet.
func NewTickSet(g Granularity, dates *DateSet) (*TickSet, error) {
	if g == Tick1Day {
		return NewDayTickSet(dates), nil
	}
	m, ok := tickMinutes(g)
	if !ok {
		return nil, shape.ClientErrorf("calendar.NewTickSet", "granularity %q not supported for intraday ticks", g)
	}
	return &TickSet{granularity: g, minutes: m, dates: dates}, nil
}

// NewDayTickSet builds the degenerate "1d" TickSet whose tick is always the
// session close (15:00 local) of each trading day.
func NewDayTickSet(dates *DateSet) *TickSet {
	return &TickSet{granularity: Tick1Day, dates: dates}
}

func (ts *TickSet) Granularity() Granularity { return ts.granularity }

// IsMorningClose reports whether t falls exactly at the morning session
// close (11:30 local).
func IsMorningClose(t time.Time) bool { return clockOf(t) == timeOfDay(morningEnd) }

// IsAfternoonClose reports whether t falls exactly at the afternoon
// session close (15:00 local), the trading day's final tick.
func IsAfternoonClose(t time.Time) bool { return clockOf(t) == timeOfDay(afternoonEnd) }

func (ts *TickSet) ContainsDay(day time.Time) bool { return ts.dates.ContainsDay(day) }
func (ts *TickSet) NextDay(day time.Time) (time.Time, bool) { return ts.dates.NextDay(day) }
func (ts *TickSet) PrevDay(day time.Time) (time.Time, bool) { return ts.dates.PrevDay(day) }

// NextTick returns the next valid tick strictly after ts, or (zero,false)
// if ts is not itself tick-aligned or no further tick exists.
func (ts *TickSet) NextTick(t time.Time) (time.Time, bool) {
	if ts.granularity == Tick1Day {
		next, ok := ts.dates.NextDay(normalizeDay(t))
		if !ok {
			return time.Time{}, false
		}
		return atClock(next, afternoonEnd), true
	}
	if t.Minute()%ts.minutes != 0 || t.Second() != 0 {
		return time.Time{}, false
	}
	c := clockOf(t)
	ms, me := timeOfDay(morningStart), timeOfDay(morningEnd)
	as, ae := timeOfDay(afternoonStart), timeOfDay(afternoonEnd)
	if c < ms || c > ae || (c > me && c < as) {
		return time.Time{}, false
	}
	if c == me {
		start := atClock(t, afternoonStart)
		return start.Add(time.Duration(ts.minutes) * time.Minute), true
	}
	if c == ae {
		nextDay, ok := ts.dates.NextDay(normalizeDay(t))
		if !ok {
			return time.Time{}, false
		}
		start := atClock(nextDay, morningStart)
		return start.Add(time.Duration(ts.minutes) * time.Minute), true
	}
	return t.Add(time.Duration(ts.minutes) * time.Minute), true
}

// PrevTick returns the previous valid tick strictly before ts, or
// (zero,false) if ts is not itself tick-aligned or no earlier tick exists.
func (ts *TickSet) PrevTick(t time.Time) (time.Time, bool) {
	if ts.granularity == Tick1Day {
		prev, ok := ts.dates.PrevDay(normalizeDay(t))
		if !ok {
			return time.Time{}, false
		}
		return atClock(prev, afternoonEnd), true
	}
	if t.Minute()%ts.minutes != 0 || t.Second() != 0 {
		return time.Time{}, false
	}
	c := clockOf(t)
	ms, me := timeOfDay(morningStart), timeOfDay(morningEnd)
	as, ae := timeOfDay(afternoonStart), timeOfDay(afternoonEnd)
	if c < ms || c > ae || (c > me && c < as) {
		return time.Time{}, false
	}
	anchor := t
	switch {
	case c == ms:
		prevDay, ok := ts.dates.PrevDay(normalizeDay(t))
		if !ok {
			return time.Time{}, false
		}
		anchor = atClock(prevDay, afternoonEnd)
	case c == as:
		anchor = atClock(t, morningEnd)
	}
	prev := anchor.Add(-time.Duration(ts.minutes) * time.Minute)
	pc := clockOf(prev)
	if pc == ms {
		prevDay, ok := ts.dates.PrevDay(normalizeDay(prev))
		if !ok {
			return time.Time{}, false
		}
		return atClock(prevDay, afternoonEnd), true
	}
	if pc == as {
		return atClock(prev, morningEnd), true
	}
	return prev, true
}

// AlignedTick rounds t up to the next valid tick boundary (or returns t
// itself if already aligned), within the same trading day/session. It
// returns (zero,false) if t does not fall on a trading day or inside a
// session.
func (ts *TickSet) AlignedTick(t time.Time) (time.Time, bool) {
	if !ts.dates.ContainsDay(normalizeDay(t)) || !permitTradeTime(t) {
		return time.Time{}, false
	}
	if ts.granularity == Tick1Day {
		return atClock(t, afternoonEnd), true
	}
	rem := t.Minute() % ts.minutes
	if rem == 0 && t.Second() == 0 {
		return t, true
	}
	add := ts.minutes - rem
	return t.Truncate(time.Minute).Add(time.Duration(add) * time.Minute), true
}
