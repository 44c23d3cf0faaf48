// Package subtrend implements the sub-trend aligner (C6, §4.6): it
// restates a segment/stroke sequence at a target display granularity,
// treating every segment as a sub-trend outright and folding the stray
// strokes that fall between segments into sub-trends of their own —
// gap strokes, dividers, or merges into the neighboring segment.
package subtrend

import (
	"time"

	"jupitor/internal/morph/calendar"
	"jupitor/internal/morph/shape"
)

// Input bundles the complete segment and stroke sequences that Aggregate
// aligns to one target granularity.
type Input struct {
	Segments []shape.Segment
	Strokes  []shape.Stroke
}

// Aggregator restates a full (Segments, Strokes) input as a sub-trend
// sequence at one target granularity. The reference algorithm recomputes
// from the complete input rather than folding incrementally, so this is a
// batch shape.Aggregator, like the center layer (C7) above it.
type Aggregator struct {
	ticks *calendar.TickSet
}

// New returns an Aggregator that aligns timestamps to ticks's granularity.
func New(ticks *calendar.TickSet) *Aggregator {
	return &Aggregator{ticks: ticks}
}

// Aggregate implements shape.Aggregator[Input, []shape.SubTrend].
func (a *Aggregator) Aggregate(in Input) ([]shape.SubTrend, error) {
	sgs, sks := in.Segments, in.Strokes
	var subtrends []shape.SubTrend
	var pending []shape.Stroke
	sgi, ski := 0, 0

	for sgi < len(sgs) {
		sg := sgs[sgi]
		pending = pending[:0]

		for ski < len(sks) && sks[ski].Start.ExtremumTS.Before(sg.Start.ExtremumTS) {
			sk := sks[ski]
			pending = append(pending, sk)
			merged, err := a.accumulateStrokes(&subtrends, pending)
			if err != nil {
				return nil, err
			}
			if merged {
				pending = pending[:0]
			}
			ski++
		}

		switch len(pending) {
		case 0:
			st, err := a.segmentAsSubTrend(sg)
			if err != nil {
				return nil, err
			}
			subtrends = append(subtrends, st)
		case 1:
			sk := pending[0]
			divider, err := a.strokeAsSubTrend(sk, shape.SubTrendDivider)
			if err != nil {
				return nil, err
			}
			subtrends = append(subtrends, divider)
			st, err := a.segmentAsSubTrend(sg)
			if err != nil {
				return nil, err
			}
			subtrends = append(subtrends, st)
		default:
			sk := pending[0]
			upward := sk.EndPrice().GreaterThan(sk.StartPrice()) &&
				sg.End.ExtremumPrice.GreaterThan(sg.Start.ExtremumPrice) &&
				sg.End.ExtremumPrice.GreaterThan(sk.StartPrice())
			downward := sk.EndPrice().LessThan(sk.StartPrice()) &&
				sg.End.ExtremumPrice.LessThan(sg.Start.ExtremumPrice) &&
				sg.End.ExtremumPrice.LessThan(sk.StartPrice())
			if upward || downward {
				startTS, err := a.alignTick(sk.Start.ExtremumTS)
				if err != nil {
					return nil, err
				}
				endTS, err := a.alignTick(sg.End.ExtremumTS)
				if err != nil {
					return nil, err
				}
				subtrends = append(subtrends, shape.SubTrend{
					Start: shape.ValuePoint{TS: startTS, Value: sk.StartPrice()},
					End:   shape.ValuePoint{TS: endTS, Value: sg.End.ExtremumPrice},
					Level: 1,
					Kind:  shape.SubTrendCombination,
				})
			} else {
				st, err := a.segmentAsSubTrend(sg)
				if err != nil {
					return nil, err
				}
				subtrends = append(subtrends, st)
			}
		}

		sgi++
		for ski < len(sks) && sks[ski].Start.ExtremumTS.Before(sg.End.ExtremumTS) {
			ski++
		}
	}
	return subtrends, nil
}

// accumulateStrokes tries to fold the just-appended stroke into the
// previously emitted sub-trend: a lone stroke with a gap on either flank
// becomes its own gap sub-trend; a second stroke extending the prior
// sub-trend's own direction past its start is merged into it. Anything
// else is left to the caller: a single stroke becomes a divider, and two
// or more strokes are combined with the following segment when their
// directions cohere.
func (a *Aggregator) accumulateStrokes(subtrends *[]shape.SubTrend, strokes []shape.Stroke) (bool, error) {
	if len(strokes) == 0 {
		return false, nil
	}
	if len(strokes) == 1 {
		sk := strokes[len(strokes)-1]
		if sk.Start.RightGap != nil || sk.End.LeftGap != nil {
			st, err := a.strokeAsSubTrend(sk, shape.SubTrendGap)
			if err != nil {
				return false, err
			}
			*subtrends = append(*subtrends, st)
			return true, nil
		}
	}
	if len(strokes) == 2 {
		sk := strokes[len(strokes)-1]
		if n := len(*subtrends); n > 0 {
			prev := (*subtrends)[n-1]
			upward := prev.End.Value.GreaterThan(prev.Start.Value) && sk.EndPrice().GreaterThan(prev.Start.Value)
			downward := prev.End.Value.LessThan(prev.Start.Value) && sk.EndPrice().LessThan(prev.Start.Value)
			if upward || downward {
				endTS, err := a.alignTick(sk.End.ExtremumTS)
				if err != nil {
					return false, err
				}
				(*subtrends)[n-1].End = shape.ValuePoint{TS: endTS, Value: sk.EndPrice()}
				(*subtrends)[n-1].Kind = shape.SubTrendCombination
				return true, nil
			}
		}
	}
	return false, nil
}

func (a *Aggregator) segmentAsSubTrend(sg shape.Segment) (shape.SubTrend, error) {
	startTS, err := a.alignTick(sg.Start.ExtremumTS)
	if err != nil {
		return shape.SubTrend{}, err
	}
	endTS, err := a.alignTick(sg.End.ExtremumTS)
	if err != nil {
		return shape.SubTrend{}, err
	}
	return shape.SubTrend{
		Start: shape.ValuePoint{TS: startTS, Value: sg.Start.ExtremumPrice},
		End:   shape.ValuePoint{TS: endTS, Value: sg.End.ExtremumPrice},
		Level: 1,
		Kind:  shape.SubTrendNormal,
	}, nil
}

func (a *Aggregator) strokeAsSubTrend(sk shape.Stroke, kind shape.SubTrendKind) (shape.SubTrend, error) {
	startTS, err := a.alignTick(sk.Start.ExtremumTS)
	if err != nil {
		return shape.SubTrend{}, err
	}
	endTS, err := a.alignTick(sk.End.ExtremumTS)
	if err != nil {
		return shape.SubTrend{}, err
	}
	return shape.SubTrend{
		Start: shape.ValuePoint{TS: startTS, Value: sk.StartPrice()},
		End:   shape.ValuePoint{TS: endTS, Value: sk.EndPrice()},
		Level: 1,
		Kind:  kind,
	}, nil
}

func (a *Aggregator) alignTick(t time.Time) (time.Time, error) {
	aligned, ok := a.ticks.AlignedTick(t)
	if !ok {
		return time.Time{}, shape.ClientErrorf("subtrend.alignTick", "timestamp %v does not align to a %s tick", t, a.ticks.Granularity())
	}
	return aligned, nil
}
