// Package center implements the center aggregator (C7, §4.7): a
// three-variant tentative-element walk over a complete sub-trend sequence
// that classifies every run of three overlapping sub-trends as either a
// standalone sub-trend, a consolidation Center, or a touching-only
// SemiCenter, materializing the final tagged sequence once the whole
// input has been folded.
package center

import (
	"jupitor/internal/morph/shape"
)

type tmpKind int

const (
	kindSubTrend tmpKind = iota
	kindCenter
	kindSemiCenter
)

type tmpSubTrendData struct {
	idx          int
	besideCenter bool
}

type tmpCenterData struct {
	startIdx, endIdx int
	extended         int
}

func (c tmpCenterData) lastEndIdx() int { return c.endIdx + c.extended }

type tmpSemiCenterData struct {
	startIdx, endIdx int
	extended         int
	sharedStart      bool
}

func (c tmpSemiCenterData) lastEndIdx() int { return c.endIdx + c.extended }

type tmpElement struct {
	kind tmpKind
	sub  tmpSubTrendData
	ctr  tmpCenterData
	semi tmpSemiCenterData
}

// Aggregator folds a complete sub-trend sequence into tentative elements
// and materializes them into the final Center/SemiCenter/SubTrend tagged
// sequence. The reference algorithm (Standard::aggregate) recomputes from
// a full `&[SubTrend]` slice rather than folding incrementally, so this is
// a batch shape.Aggregator like subtrend (C6) below it.
type Aggregator struct {
	tmp []tmpElement
}

// New returns an empty center Aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// Aggregate implements shape.Aggregator[[]shape.SubTrend, []shape.CenterElement].
func (a *Aggregator) Aggregate(subtrends []shape.SubTrend) ([]shape.CenterElement, error) {
	a.tmp = a.tmp[:0]
	for idx := range subtrends {
		if err := a.accumulate(subtrends, idx); err != nil {
			return nil, err
		}
	}
	return a.materialize(subtrends)
}

func (a *Aggregator) accumulate(subtrends []shape.SubTrend, idx int) error {
	if len(a.tmp) == 0 {
		a.pushSubTrend(idx, false)
		return nil
	}
	switch last := a.tmp[len(a.tmp)-1]; last.kind {
	case kindCenter:
		return a.accumulateAfterCenter(subtrends, idx, last.ctr)
	case kindSemiCenter:
		return a.accumulateAfterSemiCenter(subtrends, idx, last.semi)
	default:
		return a.accumulateAfterSubTrend(subtrends, idx)
	}
}

// accumulateAfterCenter classifies subtrends[idx] against the tentative
// center tc's shared band: if it starts and ends outside the band without
// crossing through it, it stands alone (often a signal point); in every
// other case (both ends inside, one end inside, or a full crossing) it
// extends the center.
func (a *Aggregator) accumulateAfterCenter(subtrends []shape.SubTrend, idx int, tc tmpCenterData) error {
	st := subtrends[idx]
	c, ok := center3(subtrends[tc.startIdx], subtrends[tc.startIdx+1], subtrends[tc.endIdx])
	if !ok {
		return shape.DataErrorf("center.accumulateAfterCenter", "committed center [%d,%d] no longer overlaps", tc.startIdx, tc.endIdx)
	}
	startsIn := c.ContainsPrice(st.Start.Value)
	endsIn := c.ContainsPrice(st.End.Value)
	if !startsIn && !endsIn && !c.SplitPrices(st.Start.Value, st.End.Value) {
		a.pushSubTrend(idx, true)
		return nil
	}
	a.modifyLastCenter(func(t *tmpCenterData) { t.extended = idx - t.endIdx })
	return nil
}

// accumulateAfterSubTrend is the busy branch: the previous tentative
// element is a lone sub-trend, so the last two tentative elements (the
// trailing sub-trend plus whatever precedes it) together with the
// incoming one are tested as a three-sub-trend window.
func (a *Aggregator) accumulateAfterSubTrend(subtrends []shape.SubTrend, idx int) error {
	st := subtrends[idx]
	n := len(a.tmp)
	if n < 2 {
		a.pushSubTrend(idx, false)
		return nil
	}
	e1, e2 := a.tmp[n-2], a.tmp[n-1]

	switch {
	case e1.kind == kindSubTrend && e2.kind == kindSubTrend:
		s1, s2 := subtrends[e1.sub.idx], subtrends[e2.sub.idx]
		c, ok := center3(s1, s2, st)
		if !ok {
			a.pushSubTrend(idx, false)
			return nil
		}
		a.removeLastN(2)
		if semi(c) {
			a.pushSemiCenter(tmpSemiCenterData{startIdx: e1.sub.idx, endIdx: idx})
		} else {
			a.pushCenter(tmpCenterData{startIdx: e1.sub.idx, endIdx: idx})
		}
		return nil

	case e1.kind == kindCenter && e2.kind == kindSubTrend:
		st1Idx := e1.ctr.lastEndIdx()
		s1, s2 := subtrends[st1Idx], subtrends[e2.sub.idx]
		c, ok := center3(s1, s2, st)
		if !ok {
			a.pushSubTrend(idx, false)
			return nil
		}
		if !semi(c) {
			// A center cannot share a sub-trend with another center.
			a.pushSubTrend(idx, false)
			return nil
		}
		a.removeLastN(1)
		a.pushSemiCenter(tmpSemiCenterData{startIdx: st1Idx, endIdx: idx, sharedStart: e1.ctr.extended == 0})
		return nil

	case e1.kind == kindSemiCenter && e2.kind == kindSubTrend:
		st1Idx := e1.semi.lastEndIdx()
		s1, s2 := subtrends[st1Idx], subtrends[e2.sub.idx]
		c, ok := center3(s1, s2, st)
		if !ok || !semi(c) {
			a.pushSubTrend(idx, false)
			return nil
		}
		// Extend the semi-center, absorbing the stray trailing sub-trend
		// e2 that was provisionally pushed between it and idx.
		a.removeLastN(1)
		a.modifyLastSemiCenter(func(sc *tmpSemiCenterData) { sc.extended = idx - sc.endIdx })
		return nil

	default:
		return shape.DataErrorf("center.accumulateAfterSubTrend", "unexpected tentative element pair preceding a lone sub-trend")
	}
}

// accumulateAfterSemiCenter classifies subtrends[idx] against the
// tentative semi-center tsc's last two absorbed sub-trends: if the triple
// now forms a strict center, the semi-center either yields its last two
// sub-trends to a fresh Center (when it has room to spare) or is entirely
// replaced by one, re-exposing its original head as a standalone
// sub-trend unless that head is itself shared with a preceding center.
func (a *Aggregator) accumulateAfterSemiCenter(subtrends []shape.SubTrend, idx int, tsc tmpSemiCenterData) error {
	st := subtrends[idx]
	st2Idx := tsc.lastEndIdx()
	st1Idx := st2Idx - 1
	s1, s2 := subtrends[st1Idx], subtrends[st2Idx]

	c, ok := center3(s1, s2, st)
	if !ok {
		a.pushSubTrend(idx, false)
		return nil
	}
	if semi(c) {
		return shape.DataErrorf("center.accumulateAfterSemiCenter", "three-sub-trend test against an existing semi-center's tail unexpectedly stayed a semi-center")
	}
	if tsc.extended >= 2 {
		a.modifyLastSemiCenter(func(sc *tmpSemiCenterData) { sc.extended -= 2 })
		a.pushCenter(tmpCenterData{startIdx: st1Idx, endIdx: idx})
		return nil
	}
	a.removeLastN(1)
	if !tsc.sharedStart {
		a.pushSubTrend(tsc.startIdx, false)
	}
	a.pushCenter(tmpCenterData{startIdx: st1Idx, endIdx: idx})
	return nil
}

func (a *Aggregator) pushSubTrend(idx int, besideCenter bool) {
	a.tmp = append(a.tmp, tmpElement{kind: kindSubTrend, sub: tmpSubTrendData{idx: idx, besideCenter: besideCenter}})
}

func (a *Aggregator) pushCenter(c tmpCenterData) {
	a.tmp = append(a.tmp, tmpElement{kind: kindCenter, ctr: c})
}

func (a *Aggregator) pushSemiCenter(sc tmpSemiCenterData) {
	a.tmp = append(a.tmp, tmpElement{kind: kindSemiCenter, semi: sc})
}

func (a *Aggregator) removeLastN(n int) {
	a.tmp = a.tmp[:len(a.tmp)-n]
}

func (a *Aggregator) modifyLastCenter(f func(*tmpCenterData)) {
	if n := len(a.tmp); n > 0 && a.tmp[n-1].kind == kindCenter {
		f(&a.tmp[n-1].ctr)
	}
}

func (a *Aggregator) modifyLastSemiCenter(f func(*tmpSemiCenterData)) {
	if n := len(a.tmp); n > 0 && a.tmp[n-1].kind == kindSemiCenter {
		f(&a.tmp[n-1].semi)
	}
}

func (a *Aggregator) materialize(subtrends []shape.SubTrend) ([]shape.CenterElement, error) {
	out := make([]shape.CenterElement, 0, len(a.tmp))
	for _, te := range a.tmp {
		switch te.kind {
		case kindCenter:
			c, ok := center3(subtrends[te.ctr.startIdx], subtrends[te.ctr.startIdx+1], subtrends[te.ctr.endIdx])
			if !ok {
				return nil, shape.DataErrorf("center.materialize", "committed center [%d,%d] no longer overlaps", te.ctr.startIdx, te.ctr.endIdx)
			}
			if te.ctr.extended > 0 {
				c.End = subtrends[te.ctr.endIdx+te.ctr.extended].End
				c.N += te.ctr.extended
			}
			out = append(out, shape.CenterElement{Kind: shape.ElementCenter, Center: c})
		case kindSemiCenter:
			sc, err := buildSemiCenter(subtrends[te.semi.startIdx:te.semi.lastEndIdx()+1], te.semi.sharedStart)
			if err != nil {
				return nil, err
			}
			out = append(out, shape.CenterElement{Kind: shape.ElementSemiCenter, SemiCenter: sc})
		default:
			out = append(out, shape.CenterElement{Kind: shape.ElementSubTrend, SubTrend: subtrends[te.sub.idx]})
		}
	}
	return out, nil
}

// center3 forms a consolidation band from s1 and s3's overlap (s2 only
// contributes its level), reporting false if they don't overlap at all.
func center3(s1, s2, s3 shape.SubTrend) (shape.Center, bool) {
	level := s1.Level
	if s2.Level > level {
		level = s2.Level
	}
	if s3.Level > level {
		level = s3.Level
	}

	s1Min, s1Max := s1.SortedPoints()
	s3Min, s3Max := s3.SortedPoints()

	if s1Max.Value.LessThan(s3Min.Value) || s1Min.Value.GreaterThan(s3Max.Value) {
		return shape.Center{}, false
	}

	outerLow, sharedLow := s3Min.Value, s1Min.Value
	if s1Min.Value.LessThan(s3Min.Value) {
		outerLow, sharedLow = s1Min.Value, s3Min.Value
	}
	outerHigh, sharedHigh := s3Max.Value, s1Max.Value
	if s1Max.Value.GreaterThan(s3Max.Value) {
		outerHigh, sharedHigh = s1Max.Value, s3Max.Value
	}

	return shape.Center{
		Start:      s1.Start,
		End:        s3.End,
		SharedLow:  sharedLow,
		SharedHigh: sharedHigh,
		OuterLow:   outerLow,
		OuterHigh:  outerHigh,
		Level:      level,
		Upward:     s1.End.Value.GreaterThan(s1.Start.Value),
		N:          3,
	}, true
}

// semi reports whether c only touches (a zero-width shared band) rather
// than genuinely overlapping — the dividing line between a SemiCenter and
// a strict Center per the three-sub-trend test.
func semi(c shape.Center) bool {
	return c.SharedLow.Equal(c.SharedHigh)
}

func buildSemiCenter(subtrends []shape.SubTrend, sharedStart bool) (shape.SemiCenter, error) {
	if len(subtrends) < 3 {
		return shape.SemiCenter{}, shape.DataErrorf("center.buildSemiCenter", "need at least 3 sub-trends, got %d", len(subtrends))
	}
	level := subtrends[0].Level
	for _, st := range subtrends[1:] {
		if st.Level > level {
			level = st.Level
		}
	}
	start := subtrends[0].Start
	end := subtrends[len(subtrends)-1].End
	return shape.SemiCenter{
		Start:       start,
		End:         end,
		Level:       level,
		Upward:      end.Value.GreaterThan(start.Value),
		N:           len(subtrends),
		SharedStart: sharedStart,
	}, nil
}
