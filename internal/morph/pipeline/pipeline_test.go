package pipeline

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"jupitor/internal/morph/calendar"
	"jupitor/internal/morph/shape"
	"jupitor/internal/morph/stroke"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func testConfig(t *testing.T) Config {
	t.Helper()
	dates := calendar.NewDateSetFromStrings([]string{"2020-02-10"})
	ticks, err := calendar.NewTickSet(calendar.Tick1Min, dates)
	if err != nil {
		t.Fatal(err)
	}
	return Config{
		Stroke:      stroke.DefaultConfig(),
		SourceTicks: ticks,
		TargetTicks: ticks,
	}
}

// zigzagBars builds a sequence of non-inclusive, alternately rising and
// falling bars: up for `legLen` minutes, down for `legLen` minutes,
// repeated `legs` times, each leg offset so a turning point never exactly
// repeats the adjacent bar's range (which would be mutually inclusive).
func zigzagBars(legs, legLen int) []shape.Bar {
	var bars []shape.Bar
	minute := 0
	base := 0.0
	up := true
	for l := 0; l < legs*2; l++ {
		for i := 0; i < legLen; i++ {
			if up {
				base += 1.0
			} else {
				base -= 1.0
			}
			bars = append(bars, shape.Bar{
				Timestamp: time.Date(2020, 2, 10, 10, minute, 0, 0, time.UTC),
				Low:       d(base),
				High:      d(base + 0.5),
			})
			minute++
		}
		// Nudge the next leg's starting range so the turning bar isn't an
		// exact repeat of its neighbor (which would merge inclusively
		// instead of reversing direction).
		base -= 0.25
		up = !up
	}
	return bars
}

func TestStepRunsFullZigzagWithoutError(t *testing.T) {
	p := New(testConfig(t))
	bars := zigzagBars(4, 5)

	var partings, strokes, segments int
	for _, bar := range bars {
		res, err := p.Step(shape.AddDelta(bar))
		if err != nil {
			t.Fatalf("Step(%v) error: %v", bar.Timestamp, err)
		}
		if !res.Parting.IsNone() {
			partings++
		}
		if !res.Stroke.IsNone() {
			strokes++
		}
		if !res.Segment.IsNone() {
			segments++
		}
	}

	if partings == 0 {
		t.Error("expected at least one parting delta across the zigzag")
	}
	if strokes == 0 {
		t.Error("expected at least one stroke delta across the zigzag")
	}

	snap := p.Snapshot()
	if len(snap.CKs) == 0 {
		t.Error("expected a non-empty CK snapshot")
	}
	if len(snap.Partings) == 0 {
		t.Error("expected a non-empty parting snapshot")
	}
	if len(snap.Strokes) == 0 {
		t.Error("expected a non-empty stroke snapshot")
	}
	t.Logf("partings=%d strokes=%d segments=%d snapshot(cks=%d partings=%d strokes=%d segments=%d subtrends=%d centers=%d)",
		partings, strokes, segments,
		len(snap.CKs), len(snap.Partings), len(snap.Strokes), len(snap.Segments), len(snap.SubTrends), len(snap.Centers))
}

func TestStepStopsCleanlyOnClientError(t *testing.T) {
	p := New(testConfig(t))
	bad := shape.Bar{
		Timestamp: time.Date(2020, 2, 10, 10, 0, 0, 0, time.UTC),
		Low:       d(10),
		High:      d(9), // high < low: invalid
	}
	if _, err := p.Step(shape.AddDelta(bad)); err == nil {
		t.Fatal("expected an error for an invalid bar")
	}
	// State must be untouched: the next, valid bar starts fresh.
	good := shape.Bar{Timestamp: bad.Timestamp, Low: d(10), High: d(10.5)}
	res, err := p.Step(shape.AddDelta(good))
	if err != nil {
		t.Fatalf("Step after a rejected bar should succeed, got %v", err)
	}
	ck, ok := res.CK.Add()
	if !ok {
		t.Fatalf("expected an Add CK delta, got %s", res.CK.Kind())
	}
	if ck.Count != 1 {
		t.Errorf("count = %d, want 1 (fresh start)", ck.Count)
	}
}

func TestDiffSliceNoChange(t *testing.T) {
	old := []int{1, 2, 3}
	deltas := diffSlice(old, old, func(a, b int) bool { return a == b })
	if deltas != nil {
		t.Fatalf("expected no deltas, got %+v", deltas)
	}
}

func TestDiffSliceAppend(t *testing.T) {
	old := []int{1, 2}
	new := []int{1, 2, 3}
	deltas := diffSlice(old, new, func(a, b int) bool { return a == b })
	if len(deltas) != 1 || deltas[0].Kind() != shape.KindAdd {
		t.Fatalf("deltas = %+v, want one Add", deltas)
	}
	v, _ := deltas[0].Add()
	if v != 3 {
		t.Errorf("added value = %d, want 3", v)
	}
}

func TestDiffSliceTailUpdate(t *testing.T) {
	old := []int{1, 2, 3}
	new := []int{1, 2, 30}
	deltas := diffSlice(old, new, func(a, b int) bool { return a == b })
	if len(deltas) != 1 || deltas[0].Kind() != shape.KindUpdate {
		t.Fatalf("deltas = %+v, want one Update", deltas)
	}
}

func TestDiffSliceShrinkAndReplace(t *testing.T) {
	// A semi-center promotion: the tail two elements are popped and
	// replaced by one Center, net shorter and diverging two back.
	old := []int{1, 2, 3, 4}
	new := []int{1, 2, 99}
	deltas := diffSlice(old, new, func(a, b int) bool { return a == b })
	if len(deltas) != 3 {
		t.Fatalf("deltas = %+v, want 3 (2 deletes + 1 add)", deltas)
	}
	if deltas[0].Kind() != shape.KindDelete || deltas[1].Kind() != shape.KindDelete {
		t.Fatalf("deltas[0:2] = %+v, want Deletes", deltas[:2])
	}
	if deltas[2].Kind() != shape.KindAdd {
		t.Fatalf("deltas[2] = %+v, want Add", deltas[2])
	}
}

func TestSliceReplicatorRebuildsFromDeltas(t *testing.T) {
	var r sliceReplicator[int]
	if err := r.Replicate(shape.AddDelta(1)); err != nil {
		t.Fatal(err)
	}
	if err := r.Replicate(shape.AddDelta(2)); err != nil {
		t.Fatal(err)
	}
	if err := r.Replicate(shape.UpdateDelta(20)); err != nil {
		t.Fatal(err)
	}
	if got := r.State(); len(got) != 2 || got[1] != 20 {
		t.Fatalf("state = %+v, want [1 20]", got)
	}
	if err := r.Replicate(shape.DeleteDelta(20)); err != nil {
		t.Fatal(err)
	}
	if got := r.State(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("state after delete = %+v, want [1]", got)
	}
}

func TestSliceReplicatorDeleteWithNoTailErrors(t *testing.T) {
	var r sliceReplicator[int]
	if err := r.Replicate(shape.DeleteDelta(1)); err == nil {
		t.Fatal("expected an error deleting from an empty replicator")
	}
}
