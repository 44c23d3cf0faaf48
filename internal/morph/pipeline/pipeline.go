// Package pipeline wires the morphology layers (C2-C7, §4) into one
// facade: a bar delta flows through merge, parting, stroke, and segment
// in series, each producing the delta its neighbor consumes (§2's pure
// dataflow model); the sub-trend and center layers recompute from their
// buffered inputs on every step (they are batch aggregators, §4.6-4.7,
// not streaming accumulators) and their outputs are diffed against the
// previous call to synthesize the same Add/Update/Delete delta shape the
// rest of the pipeline exposes, per SPEC_FULL.md §3's streaming-delta
// compromise for C7 (applied uniformly to C6 as well, since it shares
// the same batch-recompute shape).
package pipeline

import (
	"jupitor/internal/morph/calendar"
	"jupitor/internal/morph/center"
	"jupitor/internal/morph/merge"
	"jupitor/internal/morph/parting"
	"jupitor/internal/morph/segment"
	"jupitor/internal/morph/shape"
	"jupitor/internal/morph/stroke"
	"jupitor/internal/morph/subtrend"
)

// Config bundles everything a Pipeline needs beyond the bar stream
// itself: the stroke completion/backtrack rule, the tick set the source
// bars align to (consumed by the stroke judge), and the tick set the
// sub-trend layer aligns its output to (the caller-chosen display
// granularity, §6 "target granularity string").
type Config struct {
	Stroke      stroke.Config
	SourceTicks *calendar.TickSet
	TargetTicks *calendar.TickSet
}

// Pipeline is a single (instrument, granularity) morphology stream. It
// owns no I/O and does no concurrency of its own, per spec §5: callers
// serialize Step calls for one instrument themselves.
type Pipeline struct {
	mergeAcc   *merge.Accumulator
	partingAcc *parting.Accumulator
	strokeAcc  *stroke.Shaper
	segmentAcc *segment.Accumulator
	subAgg     *subtrend.Aggregator
	centerAgg  *center.Aggregator

	cks      sliceReplicator[shape.CK]
	partings sliceReplicator[shape.Parting]
	strokes  sliceReplicator[shape.Stroke]
	segments sliceReplicator[shape.Segment]

	lastSubTrends []shape.SubTrend
	lastCenters   []shape.CenterElement
}

// New returns an empty Pipeline ready to consume a bar delta stream.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		mergeAcc:   merge.New(),
		partingAcc: parting.New(),
		strokeAcc:  stroke.New(cfg.Stroke, cfg.SourceTicks),
		segmentAcc: segment.New(),
		subAgg:     subtrend.New(cfg.TargetTicks),
		centerAgg:  center.New(),
	}
}

// StepResult carries the delta each layer produced for one Step call,
// each possibly None if the input didn't propagate that far. SubTrends
// and Centers may carry more than one delta: a single upstream change can
// retroactively rewrite several tentative elements at once (e.g. a
// semi-center being promoted to a strict Center pops two prior
// sub-trends), so these are replayed in emission order.
type StepResult struct {
	CK        shape.Delta[shape.CK]
	Parting   shape.Delta[shape.Parting]
	Stroke    shape.Delta[shape.Stroke]
	Segment   shape.Delta[shape.Segment]
	SubTrends []shape.Delta[shape.SubTrend]
	Centers   []shape.Delta[shape.CenterElement]
}

// Step feeds one raw-bar delta through the whole pipeline.
func (p *Pipeline) Step(bar shape.Delta[shape.Bar]) (StepResult, error) {
	var res StepResult

	ckD, err := p.mergeAcc.Accumulate(bar)
	if err != nil {
		return res, err
	}
	res.CK = ckD
	if ckD.IsNone() {
		return res, nil
	}
	if err := p.cks.Replicate(ckD); err != nil {
		return res, err
	}

	partD, err := p.partingAcc.Accumulate(ckD)
	if err != nil {
		return res, err
	}
	res.Parting = partD
	if partD.IsNone() {
		return res, nil
	}
	if err := p.partings.Replicate(partD); err != nil {
		return res, err
	}

	skD, err := p.strokeAcc.Accumulate(partD)
	if err != nil {
		return res, err
	}
	res.Stroke = skD
	if skD.IsNone() {
		return res, nil
	}

	// segmentAcc.Accumulate may reject this delta (it only supports Add,
	// per §4.5) and leave its own state untouched; don't commit it to the
	// stroke buffer until it's confirmed consumed.
	sgD, err := p.segmentAcc.Accumulate(skD)
	if err != nil {
		return res, err
	}
	if err := p.strokes.Replicate(skD); err != nil {
		return res, err
	}
	res.Segment = sgD
	if !sgD.IsNone() {
		if err := p.segments.Replicate(sgD); err != nil {
			return res, err
		}
	}

	subOut, err := p.subAgg.Aggregate(subtrend.Input{
		Segments: p.segments.State(),
		Strokes:  p.strokes.State(),
	})
	if err != nil {
		return res, err
	}
	res.SubTrends = diffSlice(p.lastSubTrends, subOut, subTrendsEqual)
	p.lastSubTrends = subOut

	ctrOut, err := p.centerAgg.Aggregate(subOut)
	if err != nil {
		return res, err
	}
	res.Centers = diffSlice(p.lastCenters, ctrOut, centerElementsEqual)
	p.lastCenters = ctrOut

	return res, nil
}

// Snapshot returns the current state list of every layer, per spec §6's
// "synchronous: a current snapshot of each layer's state list".
type Snapshot struct {
	CKs       []shape.CK
	Partings  []shape.Parting
	Strokes   []shape.Stroke
	Segments  []shape.Segment
	SubTrends []shape.SubTrend
	Centers   []shape.CenterElement
}

func (p *Pipeline) Snapshot() Snapshot {
	return Snapshot{
		CKs:       p.cks.State(),
		Partings:  p.partings.State(),
		Strokes:   p.strokeAcc.Strokes(),
		Segments:  p.segmentAcc.Segments(),
		SubTrends: append([]shape.SubTrend(nil), p.lastSubTrends...),
		Centers:   append([]shape.CenterElement(nil), p.lastCenters...),
	}
}

// sliceReplicator implements shape.Replicator[T, []T]: it rebuilds a tail
// list purely from a delta stream, buffering the full stroke/segment
// history the batch sub-trend/center layers need to recompute from.
type sliceReplicator[T any] struct {
	items []T
}

func (r *sliceReplicator[T]) Replicate(d shape.Delta[T]) error {
	switch d.Kind() {
	case shape.KindNone:
		return nil
	case shape.KindAdd:
		v, _ := d.Add()
		r.items = append(r.items, v)
		return nil
	case shape.KindUpdate:
		v, _ := d.Update()
		if len(r.items) == 0 {
			return shape.DataErrorf("pipeline.sliceReplicator", "update delta with no prior tail")
		}
		r.items[len(r.items)-1] = v
		return nil
	case shape.KindDelete:
		if len(r.items) == 0 {
			return shape.DataErrorf("pipeline.sliceReplicator", "delete delta with no prior tail")
		}
		r.items = r.items[:len(r.items)-1]
		return nil
	default:
		return shape.ClientErrorf("pipeline.sliceReplicator", "unsupported delta kind %s", d.Kind())
	}
}

func (r *sliceReplicator[T]) State() []T { return r.items }

// diffSlice turns a before/after pair of recomputed layer states into the
// same None/Add/Update/Delete delta shape the rest of the pipeline emits:
// the common prefix is left untouched, a lone differing tail element
// becomes an Update, and any wider divergence is a Delete of the stale
// tail followed by an Add of the new one, oldest-first.
func diffSlice[T any](old, new []T, eq func(a, b T) bool) []shape.Delta[T] {
	i := 0
	for i < len(old) && i < len(new) && eq(old[i], new[i]) {
		i++
	}
	if i == len(old) && i == len(new) {
		return nil
	}
	if i == len(old)-1 && i == len(new)-1 {
		return []shape.Delta[T]{shape.UpdateDelta(new[i])}
	}
	var deltas []shape.Delta[T]
	for j := len(old) - 1; j >= i; j-- {
		deltas = append(deltas, shape.DeleteDelta(old[j]))
	}
	for j := i; j < len(new); j++ {
		deltas = append(deltas, shape.AddDelta(new[j]))
	}
	return deltas
}

func subTrendsEqual(a, b shape.SubTrend) bool {
	return a.Start.TS.Equal(b.Start.TS) && a.Start.Value.Equal(b.Start.Value) &&
		a.End.TS.Equal(b.End.TS) && a.End.Value.Equal(b.End.Value) &&
		a.Level == b.Level && a.Kind == b.Kind
}

func centerElementsEqual(a, b shape.CenterElement) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case shape.ElementSubTrend:
		return subTrendsEqual(a.SubTrend, b.SubTrend)
	case shape.ElementCenter:
		return centersEqual(a.Center, b.Center)
	default:
		return semiCentersEqual(a.SemiCenter, b.SemiCenter)
	}
}

func centersEqual(a, b shape.Center) bool {
	return a.Start.TS.Equal(b.Start.TS) && a.Start.Value.Equal(b.Start.Value) &&
		a.End.TS.Equal(b.End.TS) && a.End.Value.Equal(b.End.Value) &&
		a.SharedLow.Equal(b.SharedLow) && a.SharedHigh.Equal(b.SharedHigh) &&
		a.OuterLow.Equal(b.OuterLow) && a.OuterHigh.Equal(b.OuterHigh) &&
		a.Level == b.Level && a.Upward == b.Upward && a.N == b.N
}

func semiCentersEqual(a, b shape.SemiCenter) bool {
	return a.Start.TS.Equal(b.Start.TS) && a.Start.Value.Equal(b.Start.Value) &&
		a.End.TS.Equal(b.End.TS) && a.End.Value.Equal(b.End.Value) &&
		a.Level == b.Level && a.Upward == b.Upward && a.N == b.N && a.SharedStart == b.SharedStart
}
