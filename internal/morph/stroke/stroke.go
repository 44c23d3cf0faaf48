// Package stroke implements the stroke shaper (C4, §4.4): it links
// compatible partings into directed strokes under a configurable
// completion rule, with an optional backtrack rule that retroactively
// merges two strokes under a large enough price excursion.
package stroke

import (
	"github.com/shopspring/decimal"

	"jupitor/internal/morph/calendar"
	"jupitor/internal/morph/shape"
)

// JudgeKind selects the stroke completion predicate.
type JudgeKind int

const (
	JudgeIndepK JudgeKind = iota
	JudgeNonIndepK
	JudgeGapOpening
	JudgeGapRatio
)

// Judge configures the completion predicate (§4.4).
type Judge struct {
	Kind JudgeKind
	// IncludeAfternoon, for JudgeGapOpening, additionally qualifies a
	// morning-close boundary gap (the afternoon close always qualifies).
	IncludeAfternoon bool
	// Ratio, for JudgeGapRatio, is the minimum |end-start|/start gap ratio.
	Ratio decimal.Decimal
}

// Backtrack configures the optional stroke-merging rule (§4.4).
type Backtrack struct {
	Enabled bool
	Diff    decimal.Decimal
}

// Config bundles a completion Judge and a Backtrack rule.
type Config struct {
	Judge     Judge
	Backtrack Backtrack
}

// DefaultConfig returns the spec's default: IndepK completion, no backtrack.
func DefaultConfig() Config {
	return Config{Judge: Judge{Kind: JudgeIndepK}}
}

// Shaper folds a stream of parting deltas into stroke deltas.
// It implements shape.Accumulator[shape.Delta[shape.Parting], shape.Stroke].
type Shaper struct {
	cfg     Config
	ticks   *calendar.TickSet
	strokes []shape.Stroke
	pending []shape.Parting
}

// New returns a Shaper using ticks for the completion predicate's tick
// lookups (IndepK / NonIndepK).
func New(cfg Config, ticks *calendar.TickSet) *Shaper {
	return &Shaper{cfg: cfg, ticks: ticks}
}

// Accumulate consumes one parting delta and emits the resulting stroke
// delta.
func (s *Shaper) Accumulate(d shape.Delta[shape.Parting]) (shape.Delta[shape.Stroke], error) {
	switch d.Kind() {
	case shape.KindNone:
		return shape.None[shape.Stroke](), nil
	case shape.KindAdd:
		q, _ := d.Add()
		return s.consume(q)
	case shape.KindUpdate:
		q, _ := d.Update()
		return s.consumeUpdate(q)
	case shape.KindDelete:
		q, _ := d.Delete()
		return s.consumeDelete(q)
	default:
		return shape.None[shape.Stroke](), shape.ClientErrorf("stroke.Accumulate", "unsupported delta kind %s", d.Kind())
	}
}

func (s *Shaper) consume(q shape.Parting) (shape.Delta[shape.Stroke], error) {
	if len(s.strokes) > 0 {
		last := s.strokes[len(s.strokes)-1]
		if q.IsTop == last.End.IsTop {
			if extends(last.End, q) {
				last.End = q
				s.strokes[len(s.strokes)-1] = last
				return shape.UpdateDelta(last), nil
			}
			return shape.None[shape.Stroke](), nil
		}
		// Opposite type: only a genuinely further extremum is eligible to
		// complete or backtrack a stroke; anything else is discarded.
		if !extends(last.End, q) {
			return shape.None[shape.Stroke](), nil
		}
		if s.completes(last.End, q) {
			next := shape.Stroke{Start: last.End, End: q}
			s.strokes = append(s.strokes, next)
			return shape.AddDelta(next), nil
		}
		if s.canBacktrack(last, q) {
			return s.backtrack(q)
		}
		return shape.None[shape.Stroke](), nil
	}
	return s.tryFirstStroke(q)
}

func (s *Shaper) tryFirstStroke(q shape.Parting) (shape.Delta[shape.Stroke], error) {
	var best *shape.Stroke
	var bestDiff decimal.Decimal
	for _, p := range s.pending {
		if p.IsTop == q.IsTop || !extends(p, q) {
			continue
		}
		if !s.completes(p, q) {
			continue
		}
		diff := q.ExtremumPrice.Sub(p.ExtremumPrice).Abs()
		if best == nil || diff.GreaterThan(bestDiff) {
			start, end := p, q
			candidate := shape.Stroke{Start: start, End: end}
			best = &candidate
			bestDiff = diff
		}
	}
	if best != nil {
		s.strokes = append(s.strokes, *best)
		s.pending = nil
		return shape.AddDelta(*best), nil
	}
	s.pending = append(s.pending, q)
	return shape.None[shape.Stroke](), nil
}

func (s *Shaper) consumeUpdate(q shape.Parting) (shape.Delta[shape.Stroke], error) {
	if len(s.strokes) > 0 {
		last := s.strokes[len(s.strokes)-1]
		if sameParting(last.End, q) {
			last.End = q
			s.strokes[len(s.strokes)-1] = last
			return shape.UpdateDelta(last), nil
		}
	}
	for i, p := range s.pending {
		if sameParting(p, q) {
			s.pending[i] = q
			return s.retryPendingAfterUpdate()
		}
	}
	// Unknown parting revised: treat as a fresh arrival.
	return s.consume(q)
}

func (s *Shaper) retryPendingAfterUpdate() (shape.Delta[shape.Stroke], error) {
	if len(s.pending) == 0 {
		return shape.None[shape.Stroke](), nil
	}
	latest := s.pending[len(s.pending)-1]
	s.pending = s.pending[:len(s.pending)-1]
	return s.tryFirstStroke(latest)
}

func (s *Shaper) consumeDelete(q shape.Parting) (shape.Delta[shape.Stroke], error) {
	if len(s.strokes) > 0 {
		last := s.strokes[len(s.strokes)-1]
		if sameParting(last.End, q) {
			s.strokes = s.strokes[:len(s.strokes)-1]
			s.pending = append(s.pending, last.Start)
			return shape.DeleteDelta(last), nil
		}
	}
	for i, p := range s.pending {
		if sameParting(p, q) {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return shape.None[shape.Stroke](), nil
		}
	}
	return shape.None[shape.Stroke](), nil
}

func sameParting(a, b shape.Parting) bool {
	return a.ExtremumTS.Equal(b.ExtremumTS) && a.IsTop == b.IsTop
}

// extends reports whether q is strictly more extreme than cur in the
// direction q's own type implies: a top must be higher, a bottom lower.
// Used both to extend a same-type tail and to validate an opposite-type
// candidate before testing stroke completion.
func extends(cur, q shape.Parting) bool {
	if q.IsTop {
		return q.ExtremumPrice.GreaterThan(cur.ExtremumPrice)
	}
	return q.ExtremumPrice.LessThan(cur.ExtremumPrice)
}

// canBacktrack reports whether backtrack should fire on the pair
// (last stroke, incoming opposite-type parting q): q's excursion past the
// current stroke's own start must exceed q's price scaled by the
// configured diff ratio.
func (s *Shaper) canBacktrack(last shape.Stroke, q shape.Parting) bool {
	if !s.cfg.Backtrack.Enabled || len(s.strokes) < 2 || last.Start.ExtremumPrice.IsZero() {
		return false
	}
	threshold := q.ExtremumPrice.Mul(s.cfg.Backtrack.Diff)
	if q.IsTop {
		return q.ExtremumPrice.Sub(last.Start.ExtremumPrice).GreaterThan(threshold)
	}
	return last.Start.ExtremumPrice.Sub(q.ExtremumPrice).GreaterThan(threshold)
}

// backtrack pops the current last stroke and extends the new tail stroke
// to q instead, merging two strokes into one under a large price
// excursion. Per §2's "at most one delta per input" contract, this emits
// the Delete of the popped stroke; the new tail's Update is an internal
// bookkeeping side effect a caller can observe via Strokes().
func (s *Shaper) backtrack(q shape.Parting) (shape.Delta[shape.Stroke], error) {
	popped := s.strokes[len(s.strokes)-1]
	s.strokes = s.strokes[:len(s.strokes)-1]
	newTail := s.strokes[len(s.strokes)-1]
	newTail.End = q
	s.strokes[len(s.strokes)-1] = newTail
	return shape.DeleteDelta(popped), nil
}

// completes evaluates the configured Judge against (p1, p2), with IndepK
// always applied as a fallback per §4.4.
func (s *Shaper) completes(p1, p2 shape.Parting) bool {
	switch s.cfg.Judge.Kind {
	case JudgeNonIndepK:
		return s.nonIndepK(p1, p2) || s.indepK(p1, p2)
	case JudgeGapOpening:
		return s.gapOpening(p1, p2) || s.indepK(p1, p2)
	case JudgeGapRatio:
		return s.gapRatio(p1, p2) || s.indepK(p1, p2)
	default:
		return s.indepK(p1, p2)
	}
}

func (s *Shaper) indepK(p1, p2 shape.Parting) bool {
	if s.ticks == nil {
		return true
	}
	next, ok := s.ticks.NextTick(p1.EndTS)
	if !ok {
		return false
	}
	return next.Before(p2.StartTS)
}

func (s *Shaper) nonIndepK(p1, p2 shape.Parting) bool {
	if s.ticks == nil {
		return true
	}
	next, ok := s.ticks.NextTick(p1.EndTS)
	if !ok {
		return false
	}
	return !next.After(p2.StartTS)
}

// gapOpening matches a stroke completion against an opening-gap boundary:
// p1's right gap ending exactly at a session close, or p2's left gap
// originating exactly at the prior session close. The afternoon close
// always qualifies; IncludeAfternoon additionally admits the midday
// (morning) close.
func (s *Shaper) gapOpening(p1, p2 shape.Parting) bool {
	if p1.RightGap != nil {
		if calendar.IsAfternoonClose(p1.ExtremumTS) {
			return true
		}
		if s.cfg.Judge.IncludeAfternoon && calendar.IsMorningClose(p1.ExtremumTS) {
			return true
		}
	}
	if p2.LeftGap != nil && s.ticks != nil {
		if prev, ok := s.ticks.PrevTick(p2.ExtremumTS); ok {
			if calendar.IsAfternoonClose(prev) {
				return true
			}
			if s.cfg.Judge.IncludeAfternoon && calendar.IsMorningClose(prev) {
				return true
			}
		}
	}
	return false
}

func (s *Shaper) gapRatio(p1, _ shape.Parting) bool {
	if p1.RightGap == nil {
		return false
	}
	start := p1.RightGap.Low
	diff := p1.RightGap.High.Sub(p1.RightGap.Low).Abs()
	if start.IsZero() {
		return !diff.Div(decimal.NewFromFloat(0.01)).LessThan(s.cfg.Judge.Ratio)
	}
	return !diff.Div(start).LessThan(s.cfg.Judge.Ratio)
}

// Strokes returns a copy of the committed stroke list.
func (s *Shaper) Strokes() []shape.Stroke {
	out := make([]shape.Stroke, len(s.strokes))
	copy(out, s.strokes)
	return out
}
