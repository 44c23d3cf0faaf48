// Package parting implements the parting accumulator (C3, §4.3): it
// consumes merged-bar deltas and detects local three-merged-bar tops and
// bottoms, annotating them with left/right gaps for the stroke completion
// rules (§4.4).
package parting

import (
	"jupitor/internal/morph/shape"
)

// Accumulator folds a stream of merged-bar deltas into parting deltas.
// It implements shape.Accumulator[shape.Delta[shape.CK], shape.Parting].
type Accumulator struct {
	window []shape.CK       // up to 3 merged bars: a, b, c
	tail   *shape.Parting   // the currently live parting centered on b, if any
}

// New returns an empty parting accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

// Accumulate consumes one merged-bar delta and emits the resulting parting
// delta.
func (a *Accumulator) Accumulate(d shape.Delta[shape.CK]) (shape.Delta[shape.Parting], error) {
	switch d.Kind() {
	case shape.KindNone:
		return shape.None[shape.Parting](), nil
	case shape.KindAdd:
		ck, _ := d.Add()
		return a.add(ck)
	case shape.KindUpdate:
		ck, _ := d.Update()
		return a.update(ck)
	case shape.KindDelete:
		// A merged bar retracted entirely collapses back to whatever
		// parting the remaining window implies; treat as an update with
		// the window's prior tail restored is out of scope for this
		// layer's contract (merge never deletes, only updates its tail),
		// so surface this as a data error per §7.
		return shape.None[shape.Parting](), shape.DataErrorf("parting.Accumulate", "unexpected delete delta from merge layer")
	default:
		return shape.None[shape.Parting](), shape.ClientErrorf("parting.Accumulate", "unsupported delta kind %s", d.Kind())
	}
}

func (a *Accumulator) add(ck shape.CK) (shape.Delta[shape.Parting], error) {
	a.window = append(a.window, ck)
	if len(a.window) < 3 {
		return shape.None[shape.Parting](), nil
	}
	a.window = a.window[len(a.window)-3:]
	out, found := a.testWindow()
	// Shift the window by one regardless of outcome: drop 'a', keep 'b,c'
	// as the seed for the next cycle.
	a.window = a.window[1:]
	if found {
		a.tail = &out
		return shape.AddDelta(out), nil
	}
	a.tail = nil
	return shape.None[shape.Parting](), nil
}

func (a *Accumulator) update(ck shape.CK) (shape.Delta[shape.Parting], error) {
	if len(a.window) == 0 {
		return a.add(ck)
	}
	a.window[len(a.window)-1] = ck
	if len(a.window) < 3 {
		return shape.None[shape.Parting](), nil
	}
	out, found := a.testWindow()
	if found {
		prevTail := a.tail
		a.tail = &out
		if prevTail != nil {
			return shape.UpdateDelta(out), nil
		}
		return shape.AddDelta(out), nil
	}
	if a.tail != nil {
		old := *a.tail
		a.tail = nil
		return shape.DeleteDelta(old), nil
	}
	return shape.None[shape.Parting](), nil
}

// testWindow evaluates the current 3-element window for a top or bottom
// parting centered on the middle element.
func (a *Accumulator) testWindow() (shape.Parting, bool) {
	if len(a.window) != 3 {
		return shape.Parting{}, false
	}
	x, b, c := a.window[0], a.window[1], a.window[2]
	isTop := b.High.GreaterThan(x.High) && b.High.GreaterThan(c.High)
	isBottom := b.Low.LessThan(x.Low) && b.Low.LessThan(c.Low)
	if !isTop && !isBottom {
		return shape.Parting{}, false
	}
	return buildParting(x, b, c, isTop), true
}

func buildParting(x, b, c shape.CK, isTop bool) shape.Parting {
	p := shape.Parting{
		StartTS:    x.StartTS,
		EndTS:      c.EndTS,
		ExtremumTS: b.ExtremumTS,
		Count:      x.Count + b.Count + c.Count,
		IsTop:      isTop,
	}
	if isTop {
		p.ExtremumPrice = b.High
		if x.Range.EndHigh.LessThan(b.Range.StartLow) {
			p.LeftGap = &shape.Gap{Low: x.Range.EndHigh, High: b.Range.StartLow}
		}
		if b.Range.EndLow.GreaterThan(c.Range.StartHigh) {
			p.RightGap = &shape.Gap{Low: c.Range.StartHigh, High: b.Range.EndLow}
		}
	} else {
		p.ExtremumPrice = b.Low
		if x.Range.EndLow.GreaterThan(b.Range.StartHigh) {
			p.LeftGap = &shape.Gap{Low: b.Range.StartHigh, High: x.Range.EndLow}
		}
		if b.Range.EndHigh.LessThan(c.Range.StartLow) {
			p.RightGap = &shape.Gap{Low: b.Range.EndHigh, High: c.Range.StartLow}
		}
	}
	return p
}

// Window returns a copy of the current tail window (oldest first).
func (a *Accumulator) Window() []shape.CK {
	out := make([]shape.CK, len(a.window))
	copy(out, a.window)
	return out
}
