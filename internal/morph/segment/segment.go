// Package segment implements the segment accumulator (C5, §4.5): a
// six-stage state machine that tiles a stroke stream into directional
// segments, tracking a characteristic (feature) sequence of counter-trend
// strokes to detect reversal partings, with a gap-aware variant of the
// same test when the counter-trend run opens with a price gap.
package segment

import (
	"github.com/shopspring/decimal"

	"jupitor/internal/morph/shape"
)

type stageKind int

const (
	stageEmpty stageKind = iota
	stageFirstStroke
	stageFirstInverse
	stageContinue
	stageInverse
	stageGapInverse
)

type stage struct {
	kind       stageKind
	inverseIdx int // valid only when kind == stageInverse
}

// cStroke is a feature-sequence stroke: once two adjacent feature strokes
// are found to be in an inclusion relationship, they collapse into one
// merged, non-directional cStroke, retaining the original for reference.
type cStroke struct {
	sk   shape.Stroke
	orig *cStroke
}

// cSegment is a committed segment together with the segment it superseded
// in place (its extremum moved without its start changing).
type cSegment struct {
	sg   shape.Segment
	orig *cSegment
}

// state is the accumulator's mutable working set for the segment
// currently under construction.
type state struct {
	st stage
	// extremumIdx is the index into ms of the stroke ending at the
	// segment's current high (upward) or low (downward) extremum.
	extremumIdx int
	// ms is the main sequence: every stroke composing the segment so far.
	ms []shape.Stroke
	// cs is the feature sequence: the counter-trend strokes, with adjacent
	// left-inclusive pairs collapsed.
	cs []cStroke
	// gapCs is the feature sequence accumulated after a gap-inverse
	// transition, now tested with full (non-directional) inclusion.
	gapCs []cStroke
	// firstInvCs holds the trend-following strokes seen during the first
	// counter-trend run, to detect a same-direction two-stroke advance.
	firstInvCs []shape.Stroke
}

func newState() state {
	return state{st: stage{kind: stageEmpty}}
}

func (s *state) upward() (bool, error) {
	if len(s.ms) == 0 {
		return false, shape.DataErrorf("segment.upward", "empty stroke list")
	}
	first := s.ms[0]
	return first.EndPrice().GreaterThan(first.StartPrice()), nil
}

func (s *state) extremumPrice() (decimal.Decimal, error) {
	if s.extremumIdx < 0 || s.extremumIdx >= len(s.ms) {
		return decimal.Decimal{}, shape.DataErrorf("segment.extremumPrice", "extremum index %d not mapped to stroke", s.extremumIdx)
	}
	return s.ms[s.extremumIdx].EndPrice(), nil
}

func (s *state) startPrice() (decimal.Decimal, error) {
	if len(s.ms) == 0 {
		return decimal.Decimal{}, shape.DataErrorf("segment.startPrice", "no stroke in state")
	}
	return s.ms[0].StartPrice(), nil
}

func (s *state) resetEmpty() {
	s.st = stage{kind: stageEmpty}
	s.extremumIdx = 0
	s.ms = nil
	s.cs = nil
	s.gapCs = nil
	s.firstInvCs = nil
}

func (s *state) switchInverseToContinue(item shape.Stroke) shape.Segment {
	s.addMainStroke(item)
	s.st = stage{kind: stageContinue}
	s.extremumIdx = len(s.ms) - 1
	s.gapCs = nil
	s.firstInvCs = nil
	return shape.Segment{Start: s.ms[0].Start, End: item.End}
}

func (s *state) switchInverseToNextContinue(item shape.Stroke) shape.Segment {
	carried := cloneStrokes(s.ms[s.extremumIdx+1:])
	s.resetEmpty()
	for idx, sk := range carried {
		s.addMainStroke(sk)
		if idx%2 == 0 {
			s.addCsStroke(sk, true)
		}
	}
	s.addMainStroke(item)
	s.st = stage{kind: stageContinue}
	s.extremumIdx = len(s.ms) - 1
	return shape.Segment{Start: s.ms[0].Start, End: item.End}
}

func (s *state) switchGapInverseToNextContinue(item shape.Stroke) shape.Segment {
	return s.switchInverseToNextContinue(item)
}

func (s *state) switchEmptyToFirstStroke(item shape.Stroke) {
	s.addMainStroke(item)
	s.st = stage{kind: stageFirstStroke}
}

func (s *state) switchFirstStrokeToFirstInverse(item shape.Stroke) {
	s.addMainStroke(item)
	s.addCsStroke(item, false)
	s.st = stage{kind: stageFirstInverse}
}

func (s *state) switchFirstInverseToGapInverse(item shape.Stroke) shape.Segment {
	s.addMainStroke(item)
	s.addCsStroke(item, false)
	s.st = stage{kind: stageGapInverse}
	s.extremumIdx = len(s.ms) - 2
	return shape.Segment{Start: s.ms[0].Start, End: item.Start}
}

func (s *state) switchFirstInverseToCurrContinue(item shape.Stroke) shape.Segment {
	s.addMainStroke(item)
	s.st = stage{kind: stageContinue}
	s.extremumIdx = len(s.ms) - 1
	return shape.Segment{Start: s.ms[0].Start, End: item.End}
}

func (s *state) switchFirstInverseToNextContinue(item shape.Stroke) shape.Segment {
	carried := cloneStrokes(s.ms[1:])
	s.resetEmpty()
	for idx, sk := range carried {
		s.addMainStroke(sk)
		if idx%2 == 0 {
			s.addCsStroke(sk, true)
		}
	}
	s.addMainStroke(item)
	s.st = stage{kind: stageContinue}
	s.extremumIdx = len(s.ms) - 1
	s.firstInvCs = nil
	return shape.Segment{Start: s.ms[0].Start, End: s.ms[len(s.ms)-1].End}
}

func (s *state) switchFirstInverseToNextFirstStroke(item shape.Stroke) {
	s.resetEmpty()
	s.addMainStroke(item)
	s.st = stage{kind: stageFirstStroke}
}

func (s *state) keepFirstInverseInv(item shape.Stroke) {
	s.addMainStroke(item)
	// A lone first-inverse stroke is never left-inclusion-tested; once a
	// second counter-trend stroke exists, left inclusion applies.
	s.addCsStroke(item, len(s.cs) > 1)
}

func (s *state) keepFirstInverseCont(item shape.Stroke) {
	s.addMainStroke(item)
	s.addFirstInvCsStroke(item)
}

func (s *state) switchContinueToGapInverse(item shape.Stroke) {
	s.addMainStroke(item)
	s.addCsStroke(item, false)
	s.st = stage{kind: stageGapInverse}
}

func (s *state) switchContinueToInverse(item shape.Stroke) {
	s.addMainStroke(item)
	s.addCsStroke(item, false)
	s.st = stage{kind: stageInverse, inverseIdx: len(s.ms) - 1}
}

func (s *state) switchGapInverseToNextInverse(item shape.Stroke) shape.Segment {
	carried := cloneStrokes(s.ms[s.extremumIdx+1:])
	s.resetEmpty()
	for idx, sk := range carried {
		s.addMainStroke(sk)
		if idx%2 == 0 {
			s.addCsStroke(sk, true)
		}
	}
	s.addMainStroke(item)
	s.addCsStroke(item, true)
	s.extremumIdx = len(s.ms) - 2
	s.st = stage{kind: stageInverse, inverseIdx: len(s.ms) - 1}
	return shape.Segment{Start: s.ms[0].Start, End: item.Start}
}

func (s *state) keepInverseCont(item shape.Stroke) {
	s.addMainStroke(item)
}

func (s *state) keepInverseInv(item shape.Stroke) {
	s.addMainStroke(item)
	s.addCsStroke(item, true)
}

func (s *state) keepGapInverseCont(item shape.Stroke) {
	s.addMainStroke(item)
	s.addGapCsStroke(item)
}

func (s *state) keepGapInverseInv(item shape.Stroke) {
	s.addMainStroke(item)
	s.addCsStroke(item, true)
}

func (s *state) addMainStroke(item shape.Stroke) {
	s.ms = append(s.ms, item)
}

// addCsStroke appends item to the feature sequence, collapsing it into the
// tail entry when inclusiveLeft is set and the tail (non-directionally)
// contains it on its left side. The feature sequence only ever applies
// left inclusion, never right.
func (s *state) addCsStroke(item shape.Stroke, inclusiveLeft bool) {
	if !inclusiveLeft {
		s.cs = append(s.cs, cStroke{sk: item})
		return
	}
	if n := len(s.cs); n > 0 {
		if _, ok := nondirectionalInclusiveLeft(s.cs[n-1].sk, item); ok {
			return
		}
	}
	s.cs = append(s.cs, cStroke{sk: item})
}

func (s *state) addFirstInvCsStroke(item shape.Stroke) {
	s.firstInvCs = append(s.firstInvCs, item)
}

// addGapCsStroke appends item to the gap feature sequence, merging it with
// the tail entry under full (non-directional) inclusion. If the tail does
// not merge, it is dropped in favor of item rather than kept alongside it —
// this mirrors the upstream gap-inverse feature sequence exactly, which
// only ever compares the newest item against one prior entry.
func (s *state) addGapCsStroke(item shape.Stroke) {
	if n := len(s.gapCs); n > 0 {
		last := s.gapCs[n-1]
		s.gapCs = s.gapCs[:n-1]
		if inc, ok := nondirectionalInclusive(last.sk, item); ok {
			last.orig = nil
			s.gapCs = append(s.gapCs, cStroke{sk: inc, orig: &last})
			return
		}
	}
	s.gapCs = append(s.gapCs, cStroke{sk: item})
}

func cloneStrokes(s []shape.Stroke) []shape.Stroke {
	out := make([]shape.Stroke, len(s))
	copy(out, s)
	return out
}

func cloneCStrokes(s []cStroke) []cStroke {
	out := make([]cStroke, len(s))
	copy(out, s)
	return out
}

// nondirectionalInclusive tests inclusion in either order and returns
// whichever stroke contains the other, ignoring trend direction.
func nondirectionalInclusive(left, right shape.Stroke) (shape.Stroke, bool) {
	if sk, ok := nondirectionalInclusiveLeft(left, right); ok {
		return sk, true
	}
	return nondirectionalInclusiveRight(left, right)
}

// nondirectionalInclusiveLeft reports whether left contains right.
func nondirectionalInclusiveLeft(left, right shape.Stroke) (shape.Stroke, bool) {
	upward := left.StartPrice().LessThan(left.EndPrice())
	if cmpPrices(left.StartPrice(), right.StartPrice(), upward) && cmpPrices(left.EndPrice(), right.EndPrice(), !upward) {
		return left, true
	}
	return shape.Stroke{}, false
}

// nondirectionalInclusiveRight reports whether right contains left.
func nondirectionalInclusiveRight(left, right shape.Stroke) (shape.Stroke, bool) {
	upward := left.StartPrice().LessThan(left.EndPrice())
	if cmpPrices(left.StartPrice(), right.StartPrice(), !upward) && cmpPrices(left.EndPrice(), right.EndPrice(), upward) {
		return right, true
	}
	return shape.Stroke{}, false
}

// cmpPrices reports whether p1 precedes p2 in the direction upward implies.
func cmpPrices(p1, p2 decimal.Decimal, upward bool) bool {
	if upward {
		return p1.LessThan(p2)
	}
	return p1.GreaterThan(p2)
}

// Accumulator folds a stream of stroke deltas into segment deltas.
// It implements shape.Accumulator[shape.Delta[shape.Stroke], shape.Segment].
type Accumulator struct {
	state       []cSegment
	stateChange []shape.Delta[shape.Segment]
	prev        *state // last snapshot, kept for parity with the reference design; retraction is not yet supported (see Accumulate)
	curr        state
}

// New returns an empty segment accumulator.
func New() *Accumulator {
	return &Accumulator{curr: newState()}
}

func (a *Accumulator) makeSnapshot() {
	snap := state{
		st:          a.curr.st,
		extremumIdx: a.curr.extremumIdx,
		ms:          cloneStrokes(a.curr.ms),
		cs:          cloneCStrokes(a.curr.cs),
		gapCs:       cloneCStrokes(a.curr.gapCs),
		firstInvCs:  cloneStrokes(a.curr.firstInvCs),
	}
	a.prev = &snap
}

func (a *Accumulator) addSegment(sg shape.Segment) {
	if n := len(a.state); n > 0 {
		last := a.state[n-1]
		if last.sg.Start.ExtremumTS.Equal(sg.Start.ExtremumTS) {
			last.orig = nil
			a.state[n-1] = cSegment{sg: sg, orig: &last}
			a.stateChange = append(a.stateChange, shape.UpdateDelta(sg))
			return
		}
	}
	a.state = append(a.state, cSegment{sg: sg})
	a.stateChange = append(a.stateChange, shape.AddDelta(sg))
}

func (a *Accumulator) popDelta() shape.Delta[shape.Segment] {
	if n := len(a.stateChange); n > 0 {
		d := a.stateChange[n-1]
		a.stateChange = a.stateChange[:n-1]
		return d
	}
	return shape.None[shape.Segment]()
}

// Accumulate consumes one stroke delta and emits the resulting segment
// delta, if the stroke stream's Add caused a segment to be started,
// extended, or completed.
func (a *Accumulator) Accumulate(d shape.Delta[shape.Stroke]) (shape.Delta[shape.Segment], error) {
	switch d.Kind() {
	case shape.KindNone:
		return shape.None[shape.Segment](), nil
	case shape.KindAdd:
		sk, _ := d.Add()
		if err := a.accAdd(sk); err != nil {
			if a.prev != nil {
				a.curr = *a.prev
			}
			return shape.None[shape.Segment](), err
		}
		return a.popDelta(), nil
	case shape.KindUpdate, shape.KindDelete:
		return shape.None[shape.Segment](), shape.DataErrorf("segment.Accumulate", "stroke %s retraction is not supported at the segment layer", d.Kind())
	default:
		return shape.None[shape.Segment](), shape.ClientErrorf("segment.Accumulate", "unsupported delta kind %s", d.Kind())
	}
}

// Aggregate folds a full stroke slice into its segment sequence in one
// batch call, matching the layer's batch entry point for offline replay.
func (a *Accumulator) Aggregate(strokes []shape.Stroke) ([]shape.Segment, error) {
	for _, sk := range strokes {
		if err := a.accAdd(sk); err != nil {
			return nil, err
		}
	}
	return a.Segments(), nil
}

// Segments returns a copy of the committed segment list.
func (a *Accumulator) Segments() []shape.Segment {
	out := make([]shape.Segment, len(a.state))
	for i, cs := range a.state {
		out[i] = cs.sg
	}
	return out
}

func (a *Accumulator) accAdd(item shape.Stroke) error {
	switch a.curr.st.kind {
	case stageEmpty:
		a.makeSnapshot()
		a.curr.switchEmptyToFirstStroke(item)
		return nil

	case stageFirstStroke:
		upward, err := a.curr.upward()
		if err != nil {
			return err
		}
		startPrice, err := a.curr.startPrice()
		if err != nil {
			return err
		}
		if cmpPrices(startPrice, item.EndPrice(), !upward) {
			// The second stroke broke the first stroke's own start: the
			// segment's start moves, and the second stroke is replayed as
			// if it were the first.
			a.makeSnapshot()
			a.curr.resetEmpty()
			return a.accAdd(item)
		}
		a.makeSnapshot()
		a.curr.switchFirstStrokeToFirstInverse(item)
		return nil

	case stageFirstInverse:
		upward, err := a.curr.upward()
		if err != nil {
			return err
		}
		extremumPrice, err := a.curr.extremumPrice()
		if err != nil {
			return err
		}
		if cmpPrices(extremumPrice, item.EndPrice(), upward) {
			a.makeSnapshot()
			a.addSegment(a.curr.switchInverseToContinue(item))
			return nil
		}
		if cmpPrices(item.StartPrice(), item.EndPrice(), upward) {
			if n := len(a.curr.firstInvCs); n > 0 {
				lastInv := a.curr.firstInvCs[n-1]
				if cmpPrices(lastInv.StartPrice(), item.StartPrice(), upward) &&
					cmpPrices(lastInv.EndPrice(), item.EndPrice(), upward) {
					a.makeSnapshot()
					a.addSegment(a.curr.switchFirstInverseToCurrContinue(item))
					return nil
				}
			}
			a.curr.keepFirstInverseCont(item)
			return nil
		}
		startPrice, err := a.curr.startPrice()
		if err != nil {
			return err
		}
		if cmpPrices(startPrice, item.EndPrice(), !upward) {
			a.makeSnapshot()
			if len(a.curr.ms) == 1 {
				a.curr.switchFirstInverseToNextFirstStroke(item)
			} else {
				a.addSegment(a.curr.switchFirstInverseToNextContinue(item))
			}
			return nil
		}
		a.curr.keepFirstInverseInv(item)
		return nil

	case stageContinue:
		upward, err := a.curr.upward()
		if err != nil {
			return err
		}
		last := a.curr.ms[len(a.curr.ms)-1]
		if cmpPrices(last.EndPrice(), item.EndPrice(), upward) {
			return shape.DataErrorf("segment.accAdd", "not an inverse stroke")
		}
		if n := len(a.curr.cs); n > 0 {
			lastCs := a.curr.cs[n-1]
			if cmpPrices(lastCs.sk.StartPrice(), item.EndPrice(), upward) {
				a.makeSnapshot()
				a.curr.switchContinueToGapInverse(item)
				return nil
			}
		}
		a.makeSnapshot()
		a.curr.switchContinueToInverse(item)
		return nil

	case stageInverse:
		idx := a.curr.st.inverseIdx
		upward, err := a.curr.upward()
		if err != nil {
			return err
		}
		extremumPrice, err := a.curr.extremumPrice()
		if err != nil {
			return err
		}
		if cmpPrices(extremumPrice, item.EndPrice(), upward) {
			a.makeSnapshot()
			a.addSegment(a.curr.switchInverseToContinue(item))
			return nil
		}
		if cmpPrices(item.StartPrice(), item.EndPrice(), upward) {
			a.curr.keepInverseCont(item)
			return nil
		}
		sk1 := a.curr.ms[idx]
		if cmpPrices(sk1.StartPrice(), item.StartPrice(), !upward) &&
			cmpPrices(sk1.EndPrice(), item.EndPrice(), !upward) {
			a.makeSnapshot()
			a.addSegment(a.curr.switchInverseToNextContinue(item))
			return nil
		}
		if idx >= 2 && len(a.curr.ms) >= 2 {
			preSk1 := a.curr.ms[idx-2]
			preItem := a.curr.ms[len(a.curr.ms)-2]
			if cmpPrices(preSk1.StartPrice(), preItem.StartPrice(), upward) &&
				cmpPrices(preItem.StartPrice(), item.StartPrice(), !upward) &&
				cmpPrices(preItem.EndPrice(), item.EndPrice(), !upward) {
				a.makeSnapshot()
				a.addSegment(a.curr.switchInverseToNextContinue(item))
				return nil
			}
		}
		a.curr.keepInverseInv(item)
		return nil

	case stageGapInverse:
		upward, err := a.curr.upward()
		if err != nil {
			return err
		}
		extremumPrice, err := a.curr.extremumPrice()
		if err != nil {
			return err
		}
		if cmpPrices(extremumPrice, item.EndPrice(), upward) {
			a.makeSnapshot()
			a.addSegment(a.curr.switchInverseToContinue(item))
			return nil
		}
		if cmpPrices(item.StartPrice(), item.EndPrice(), upward) {
			if n := len(a.curr.gapCs); n > 0 {
				lastGap := a.curr.gapCs[n-1]
				if cmpPrices(lastGap.sk.StartPrice(), item.StartPrice(), !upward) &&
					cmpPrices(lastGap.sk.EndPrice(), item.EndPrice(), !upward) {
					a.makeSnapshot()
					a.addSegment(a.curr.switchGapInverseToNextInverse(item))
					return nil
				}
			}
			a.curr.keepGapInverseCont(item)
			return nil
		}
		startPrice, err := a.curr.startPrice()
		if err != nil {
			return err
		}
		if cmpPrices(startPrice, item.EndPrice(), !upward) {
			a.makeSnapshot()
			a.addSegment(a.curr.switchGapInverseToNextContinue(item))
			return nil
		}
		a.curr.keepGapInverseInv(item)
		return nil

	default:
		return shape.ClientErrorf("segment.accAdd", "unknown stage")
	}
}
