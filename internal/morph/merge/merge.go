// Package merge implements the merged-bar accumulator (C2, §4.2): it folds
// raw bars into merged bars (CK) under the inclusion rule, tracking a
// three-CK tail window and the current trend direction, with snapshot-based
// retraction when the latest raw bar is revised.
package merge

import (
	"github.com/shopspring/decimal"

	"jupitor/internal/morph/shape"
)

// Accumulator folds a stream of raw bar deltas into merged-bar deltas.
// It implements shape.Accumulator[shape.Delta[shape.Bar], shape.CK].
type Accumulator struct {
	window []shape.CK // tail window, oldest first, at most 3 entries
	upward bool
	haveDirection bool
	lastBar *shape.Bar // most recent raw bar accepted, for Update retraction
}

// New returns an empty merge accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

// Accumulate consumes one raw-bar delta and emits the resulting CK delta.
func (a *Accumulator) Accumulate(d shape.Delta[shape.Bar]) (shape.Delta[shape.CK], error) {
	switch d.Kind() {
	case shape.KindNone:
		return shape.None[shape.CK](), nil
	case shape.KindAdd:
		bar, _ := d.Add()
		return a.add(bar)
	case shape.KindUpdate:
		bar, _ := d.Update()
		return a.update(bar)
	default:
		return shape.None[shape.CK](), shape.ClientErrorf("merge.Accumulate", "unsupported delta kind %s", d.Kind())
	}
}

func (a *Accumulator) add(bar shape.Bar) (shape.Delta[shape.CK], error) {
	if bar.High.LessThan(bar.Low) {
		return shape.None[shape.CK](), shape.ClientErrorf("merge.add", "bar high %s < low %s", bar.High, bar.Low)
	}
	b := bar
	a.lastBar = &b

	if len(a.window) == 0 {
		ck := singleBarCK(bar)
		a.window = append(a.window, ck)
		return shape.AddDelta(ck), nil
	}

	tail := a.window[len(a.window)-1]
	if inclusive(tail.Low, tail.High, bar.Low, bar.High) {
		merged := a.mergeInclusive(tail, bar)
		a.window[len(a.window)-1] = merged
		return shape.UpdateDelta(merged), nil
	}

	// Non-inclusive: this pair establishes (or re-establishes) direction.
	a.upward = bar.High.GreaterThan(tail.High)
	a.haveDirection = true

	ck := singleBarCK(bar)
	a.window = append(a.window, ck)
	if len(a.window) > 3 {
		a.window = a.window[len(a.window)-3:]
	}
	return shape.AddDelta(ck), nil
}

func (a *Accumulator) update(bar shape.Bar) (shape.Delta[shape.CK], error) {
	if len(a.window) == 0 {
		return a.add(bar)
	}
	tail := a.window[len(a.window)-1]
	if tail.Prev != nil {
		// Undo the last merge, then reapply the revised bar on top of the
		// restored tail, exactly per §4.2's retraction rule.
		restored := *tail.Prev
		a.window[len(a.window)-1] = restored
		merged := a.mergeInclusive(restored, bar)
		a.window[len(a.window)-1] = merged
		return shape.UpdateDelta(merged), nil
	}
	// The tail was a fresh single-bar CK: the update simply replaces it.
	ck := singleBarCK(bar)
	a.window[len(a.window)-1] = ck
	b := bar
	a.lastBar = &b
	return shape.UpdateDelta(ck), nil
}

// mergeInclusive merges bar into tail per the current trend direction,
// stamping a Prev snapshot of tail for retraction.
func (a *Accumulator) mergeInclusive(tail shape.CK, bar shape.Bar) shape.CK {
	snapshot := tail
	snapshot.Prev = nil
	merged := tail
	merged.Prev = &snapshot

	var newLow, newHigh = tail.Low, tail.High
	if a.upward {
		if bar.Low.GreaterThan(newLow) {
			newLow = bar.Low
		}
		if bar.High.GreaterThan(newHigh) {
			newHigh = bar.High
		}
	} else {
		if bar.Low.LessThan(newLow) {
			newLow = bar.Low
		}
		if bar.High.LessThan(newHigh) {
			newHigh = bar.High
		}
	}

	if a.upward && newHigh.GreaterThan(tail.High) {
		merged.ExtremumTS = bar.Timestamp
	} else if !a.upward && newLow.LessThan(tail.Low) {
		merged.ExtremumTS = bar.Timestamp
	}

	merged.Low = newLow
	merged.High = newHigh
	merged.Count = tail.Count + 1
	merged.EndTS = bar.Timestamp
	merged.Range.EndLow = bar.Low
	merged.Range.EndHigh = bar.High
	return merged
}

func singleBarCK(bar shape.Bar) shape.CK {
	return shape.CK{
		StartTS:    bar.Timestamp,
		EndTS:      bar.Timestamp,
		ExtremumTS: bar.Timestamp,
		Low:        bar.Low,
		High:       bar.High,
		Count:      1,
		Range: shape.PriceRange{
			StartLow:  bar.Low,
			StartHigh: bar.High,
			EndLow:    bar.Low,
			EndHigh:   bar.High,
		},
	}
}

func inclusive(aLow, aHigh, bLow, bHigh decimal.Decimal) bool {
	aContainsB := !aLow.GreaterThan(bLow) && !aHigh.LessThan(bHigh)
	bContainsA := !bLow.GreaterThan(aLow) && !bHigh.LessThan(aHigh)
	return aContainsB || bContainsA
}

// Window returns a copy of the current tail window (oldest first).
func (a *Accumulator) Window() []shape.CK {
	out := make([]shape.CK, len(a.window))
	copy(out, a.window)
	return out
}
