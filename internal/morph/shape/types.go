package shape

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar (K) is one raw price observation: an instant and a [Low, High] range.
// Open/Close/Volume may be carried by callers but are ignored by the core.
type Bar struct {
	Timestamp time.Time
	Low       decimal.Decimal
	High      decimal.Decimal
}

// PriceRange is the boundary box of a merged bar: the first and last raw
// bar's [low, high] that were folded into it. Gap detection inspects these
// boundaries rather than the merged extremum.
type PriceRange struct {
	StartLow  decimal.Decimal
	StartHigh decimal.Decimal
	EndLow    decimal.Decimal
	EndHigh   decimal.Decimal
}

// CK is a merged bar: the result of applying the inclusion rule (§4.2) to a
// run of raw bars.
type CK struct {
	StartTS    time.Time
	EndTS      time.Time
	ExtremumTS time.Time
	Low        decimal.Decimal
	High       decimal.Decimal
	Count      int
	Range      PriceRange
	// Prev is the pre-merge snapshot of this CK, populated only while it
	// sits at the tail of the merge window, to support retraction.
	Prev *CK
}

// Gap is a disjoint price interval between two adjacent bars or merged
// bars, consumed by the stroke completion rules (§4.4).
type Gap struct {
	Low  decimal.Decimal
	High decimal.Decimal
}

// Parting (P) is a local top or bottom formed by three merged bars.
type Parting struct {
	StartTS       time.Time
	EndTS         time.Time
	ExtremumTS    time.Time
	ExtremumPrice decimal.Decimal
	Count         int
	IsTop         bool
	LeftGap       *Gap
	RightGap      *Gap
}

// Stroke (S) is a directed leg between two partings of opposite type.
type Stroke struct {
	Start Parting
	End   Parting
}

// Upward reports whether the stroke's price runs from low to high.
func (s Stroke) Upward() bool {
	return s.End.ExtremumPrice.GreaterThan(s.Start.ExtremumPrice)
}

// StartPrice and EndPrice expose the stroke's two endpoint prices, used
// throughout the segment state machine's comparisons.
func (s Stroke) StartPrice() decimal.Decimal { return s.Start.ExtremumPrice }
func (s Stroke) EndPrice() decimal.Decimal   { return s.End.ExtremumPrice }

// Segment (G) is a directional run of strokes, tiling the stroke stream.
type Segment struct {
	Start Parting
	End   Parting
}

// Upward reports whether the segment's price runs from low to high.
func (g Segment) Upward() bool {
	return g.End.ExtremumPrice.GreaterThan(g.Start.ExtremumPrice)
}

// SubTrendKind tags how a sub-trend relates to its constituent segment or
// strokes, per §4.6.
type SubTrendKind int

const (
	SubTrendNormal SubTrendKind = iota
	SubTrendGap
	SubTrendDivider
	SubTrendCombination
)

func (k SubTrendKind) String() string {
	switch k {
	case SubTrendGap:
		return "gap"
	case SubTrendDivider:
		return "divider"
	case SubTrendCombination:
		return "combination"
	default:
		return "normal"
	}
}

// ValuePoint is an (instant, value) pair aligned to a target granularity.
type ValuePoint struct {
	TS    time.Time
	Value decimal.Decimal
}

// SubTrend (T) is a segment or stroke viewed at a target granularity.
type SubTrend struct {
	Start ValuePoint
	End   ValuePoint
	Level int
	Kind  SubTrendKind
}

// Upward reports whether the sub-trend's price runs from low to high.
func (t SubTrend) Upward() bool {
	return t.End.Value.GreaterThan(t.Start.Value)
}

// SortedPoints returns (min, max) of the sub-trend's two endpoints by value.
func (t SubTrend) SortedPoints() (min, max ValuePoint) {
	if t.Start.Value.LessThan(t.End.Value) {
		return t.Start, t.End
	}
	return t.End, t.Start
}

// Center (Z) is a consolidation zone backed by >=3 overlapping sub-trends.
type Center struct {
	Start      ValuePoint
	End        ValuePoint
	SharedLow  decimal.Decimal
	SharedHigh decimal.Decimal
	OuterLow   decimal.Decimal
	OuterHigh  decimal.Decimal
	Level      int
	Upward     bool
	N          int
}

// ContainsPrice reports whether p lies within the shared (consolidation) band.
func (c Center) ContainsPrice(p decimal.Decimal) bool {
	return !p.LessThan(c.SharedLow) && !p.GreaterThan(c.SharedHigh)
}

// SplitPrices reports whether the segment [a,b] straddles the shared band
// entirely (a on one side, b on the other), i.e. it crosses through.
func (c Center) SplitPrices(a, b decimal.Decimal) bool {
	lo, hi := a, b
	if hi.LessThan(lo) {
		lo, hi = hi, lo
	}
	return lo.LessThan(c.SharedLow) && hi.GreaterThan(c.SharedHigh)
}

// SemiCenter (Zs) is a tentative center that fails the strict three-sub-trend
// overlap test but still touches, per §4.7.
type SemiCenter struct {
	Start       ValuePoint
	End         ValuePoint
	Level       int
	Upward      bool
	N           int
	SharedStart bool
}

// CenterElementKind tags which variant a tentative center-aggregator
// element currently is.
type CenterElementKind int

const (
	ElementSubTrend CenterElementKind = iota
	ElementCenter
	ElementSemiCenter
)

// CenterElement is the tagged union materialized by the center aggregator
// (§4.7): either a standalone sub-trend, a Center, or a SemiCenter.
type CenterElement struct {
	Kind       CenterElementKind
	SubTrend   SubTrend
	Center     Center
	SemiCenter SemiCenter
}
