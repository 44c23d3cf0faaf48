// Package calendar implements the trading calendar (C0, §4.1): a day-set
// bitmap over 2010-01-01..2099-12-31 and intra-day tick sets at {1m, 5m,
// 30m, 1d} over the CN A-share sessions [09:30,11:30] and [13:00,15:00]
// local time. It is grounded on tanglism-utils' trading_date.rs and
// trading_timestamp.rs bitmap implementation.
package calendar

import (
	"time"

	"jupitor/internal/morph/shape"
)

var (
	firstDay = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	lastDay  = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)
)

const (
	bucketBits = 64
	dateLayout = "2006-01-02"
)

// DateSet is a bitmap of trading days indexed by days since 2010-01-01.
// It must be populated once at startup and treated as immutable afterward:
// AddDay and AddDayString are the only mutators and are safe only until the
// set is shared across goroutines (§9 "Global calendar").
type DateSet struct {
	bits []uint64
}

// NewDateSet returns an empty DateSet.
func NewDateSet() *DateSet {
	return &DateSet{}
}

// NewDateSetFromStrings builds a DateSet from a slice of "YYYY-MM-DD"
// strings, silently discarding any that fail to parse or fall outside
// [2010-01-01, 2099-12-31].
func NewDateSetFromStrings(days []string) *DateSet {
	ds := NewDateSet()
	for _, d := range days {
		ds.AddDayString(d)
	}
	return ds
}

// AddDayString parses s as "YYYY-MM-DD" and adds it, discarding invalid or
// out-of-range input rather than failing — matching the reference
// implementation's add_day_str.
func (ds *DateSet) AddDayString(s string) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return
	}
	idx, ok := dayToIdx(t)
	if !ok {
		return
	}
	ds.addIdx(idx)
}

// AddDay adds day to the set. It returns a ClientError if day falls
// outside the supported range.
func (ds *DateSet) AddDay(day time.Time) error {
	idx, ok := dayToIdx(day)
	if !ok {
		return shape.ClientErrorf("calendar.AddDay", "day %s out of supported range", day.Format(dateLayout))
	}
	ds.addIdx(idx)
	return nil
}

func (ds *DateSet) addIdx(idx int) {
	ds.ensureCapacity(idx)
	ds.bits[idx/bucketBits] |= 1 << uint(idx%bucketBits)
}

func (ds *DateSet) ensureCapacity(idx int) {
	need := idx/bucketBits + 1
	for len(ds.bits) < need {
		ds.bits = append(ds.bits, 0)
	}
}

func (ds *DateSet) containsIdx(idx int) bool {
	bucket := idx / bucketBits
	if bucket < 0 || bucket >= len(ds.bits) {
		return false
	}
	return ds.bits[bucket]&(1<<uint(idx%bucketBits)) != 0
}

// ContainsDay reports whether day is a trading day.
func (ds *DateSet) ContainsDay(day time.Time) bool {
	idx, ok := dayToIdx(day)
	if !ok {
		return false
	}
	return ds.containsIdx(idx)
}

// NextDay returns the next trading day strictly after day, or (zero,false)
// if none is tracked.
func (ds *DateSet) NextDay(day time.Time) (time.Time, bool) {
	idx, ok := dayToIdx(day)
	if !ok {
		return time.Time{}, false
	}
	if idx+1 >= ds.dates() {
		return time.Time{}, false
	}
	next, ok := ds.nextIdxInclusive(idx + 1)
	if !ok {
		return time.Time{}, false
	}
	return idxToDayUnchecked(next), true
}

// PrevDay returns the previous trading day strictly before day, or
// (zero,false) if none is tracked.
func (ds *DateSet) PrevDay(day time.Time) (time.Time, bool) {
	idx, ok := dayToIdx(day)
	if !ok {
		return time.Time{}, false
	}
	if idx == 0 {
		return time.Time{}, false
	}
	search := idx - 1
	if search >= ds.dates() {
		search = ds.dates() - 1
	}
	prev, ok := ds.prevIdxInclusive(search)
	if !ok {
		return time.Time{}, false
	}
	return idxToDayUnchecked(prev), true
}

// FirstDay returns the earliest tracked trading day.
func (ds *DateSet) FirstDay() (time.Time, bool) {
	if len(ds.bits) == 0 {
		return time.Time{}, false
	}
	idx, ok := ds.nextIdxInclusive(0)
	if !ok {
		return time.Time{}, false
	}
	return idxToDay(idx)
}

// LastDay returns the latest tracked trading day.
func (ds *DateSet) LastDay() (time.Time, bool) {
	if len(ds.bits) == 0 {
		return time.Time{}, false
	}
	idx, ok := ds.prevIdxInclusive(ds.dates() - 1)
	if !ok {
		return time.Time{}, false
	}
	return idxToDay(idx)
}

// AllDays returns every tracked trading day in order.
func (ds *DateSet) AllDays() []time.Time {
	var out []time.Time
	for bucket, word := range ds.bits {
		if word == 0 {
			continue
		}
		for bit := 0; bit < bucketBits; bit++ {
			if word&(1<<uint(bit)) != 0 {
				idx := bucket*bucketBits + bit
				if d, ok := idxToDay(idx); ok {
					out = append(out, d)
				}
			}
		}
	}
	return out
}

func (ds *DateSet) dates() int { return len(ds.bits) * bucketBits }

func (ds *DateSet) nextIdxInclusive(from int) (int, bool) {
	if from < 0 {
		from = 0
	}
	bucket := from / bucketBits
	bit := from % bucketBits
	for bucket < len(ds.bits) {
		word := ds.bits[bucket]
		if word != 0 {
			for bit < bucketBits {
				if word&(1<<uint(bit)) != 0 {
					return bucket*bucketBits + bit, true
				}
				bit++
			}
		}
		bucket++
		bit = 0
	}
	return 0, false
}

func (ds *DateSet) prevIdxInclusive(from int) (int, bool) {
	if from < 0 {
		return 0, false
	}
	bucket := from / bucketBits
	bit := from % bucketBits
	for bucket >= 0 {
		word := ds.bits[bucket]
		if word != 0 {
			for bit >= 0 {
				if word&(1<<uint(bit)) != 0 {
					return bucket*bucketBits + bit, true
				}
				bit--
			}
		}
		bucket--
		bit = bucketBits - 1
	}
	return 0, false
}

func dayToIdx(day time.Time) (int, bool) {
	d := normalizeDay(day)
	if d.Before(firstDay) || d.After(lastDay) {
		return 0, false
	}
	return int(d.Sub(firstDay).Hours() / 24), true
}

func idxToDayUnchecked(idx int) time.Time {
	return firstDay.AddDate(0, 0, idx)
}

func idxToDay(idx int) (time.Time, bool) {
	d := idxToDayUnchecked(idx)
	if d.Before(firstDay) || d.After(lastDay) {
		return time.Time{}, false
	}
	return d, true
}

func normalizeDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
