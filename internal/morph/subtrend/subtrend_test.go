package subtrend

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"jupitor/internal/morph/calendar"
	"jupitor/internal/morph/shape"
)

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func testTicks(t *testing.T) *calendar.TickSet {
	t.Helper()
	dates := calendar.NewDateSetFromStrings([]string{"2020-02-02", "2020-02-03"})
	tick, err := calendar.NewTickSet(calendar.Tick1Min, dates)
	if err != nil {
		t.Fatal(err)
	}
	return tick
}

func parting(tsStr string, price float64, isTop bool) shape.Parting {
	t := ts(tsStr)
	return shape.Parting{StartTS: t, EndTS: t, ExtremumTS: t, ExtremumPrice: d(price), IsTop: isTop}
}

func partingGap(tsStr string, price float64, isTop bool, leftGap, rightGap *shape.Gap) shape.Parting {
	p := parting(tsStr, price, isTop)
	p.LeftGap = leftGap
	p.RightGap = rightGap
	return p
}

func stroke(start shape.Parting, end shape.Parting) shape.Stroke {
	return shape.Stroke{Start: start, End: end}
}

func segment(start, end shape.Parting) shape.Segment {
	return shape.Segment{Start: start, End: end}
}

func TestAggregateSegmentOnlyNoStrokes(t *testing.T) {
	sg := segment(parting("2020-02-02 10:00", 10, false), parting("2020-02-02 11:00", 12, true))
	out, err := New(testTicks(t)).Aggregate(Input{Segments: []shape.Segment{sg}})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Kind != shape.SubTrendNormal {
		t.Errorf("kind = %v, want Normal", out[0].Kind)
	}
	if !out[0].Start.Value.Equal(d(10)) || !out[0].End.Value.Equal(d(12)) {
		t.Errorf("values = (%v,%v), want (10,12)", out[0].Start.Value, out[0].End.Value)
	}
}

func TestAggregateLoneGapStrokeBecomesGapSubTrend(t *testing.T) {
	gap := &shape.Gap{Low: d(12), High: d(12.5)}
	sg0 := segment(parting("2020-02-02 10:00", 10, false), parting("2020-02-02 10:30", 12, true))
	skGap := stroke(
		partingGap("2020-02-02 10:30", 12, true, nil, gap),
		parting("2020-02-02 10:40", 11.8, false),
	)
	sg1 := segment(parting("2020-02-02 10:50", 13, false), parting("2020-02-02 11:10", 14, true))

	out, err := New(testTicks(t)).Aggregate(Input{
		Segments: []shape.Segment{sg0, sg1},
		Strokes:  []shape.Stroke{skGap},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3 (sg0, gap-stroke, sg1); got %+v", len(out), out)
	}
	if out[1].Kind != shape.SubTrendGap {
		t.Errorf("out[1].Kind = %v, want Gap", out[1].Kind)
	}
}

func TestAggregateLoneNonGapStrokeBecomesDivider(t *testing.T) {
	sg0 := segment(parting("2020-02-02 10:00", 10, false), parting("2020-02-02 10:30", 12, true))
	sk := stroke(
		parting("2020-02-02 10:30", 12, true),
		parting("2020-02-02 10:40", 11.8, false),
	)
	sg1 := segment(parting("2020-02-02 10:50", 13, false), parting("2020-02-02 11:10", 14, true))

	out, err := New(testTicks(t)).Aggregate(Input{
		Segments: []shape.Segment{sg0, sg1},
		Strokes:  []shape.Stroke{sk},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("len(out) = %d, want 3 (sg0, divider, sg1); got %+v", len(out), out)
	}
	if out[1].Kind != shape.SubTrendDivider {
		t.Errorf("out[1].Kind = %v, want Divider", out[1].Kind)
	}
}

func TestAggregateTwoStrokesMergeIntoPriorSubTrend(t *testing.T) {
	sg0 := segment(parting("2020-02-02 10:00", 10, false), parting("2020-02-02 10:30", 12, true))
	skA := stroke(
		parting("2020-02-02 10:30", 12, true),
		parting("2020-02-02 10:40", 11, false),
	)
	skB := stroke(
		parting("2020-02-02 10:40", 11, false),
		parting("2020-02-02 10:50", 13, true),
	)
	sg1 := segment(parting("2020-02-02 11:00", 9, false), parting("2020-02-02 11:20", 8, true))

	out, err := New(testTicks(t)).Aggregate(Input{
		Segments: []shape.Segment{sg0, sg1},
		Strokes:  []shape.Stroke{skA, skB},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (sg0 extended, sg1); got %+v", len(out), out)
	}
	if out[0].Kind != shape.SubTrendCombination {
		t.Errorf("out[0].Kind = %v, want Combination", out[0].Kind)
	}
	if !out[0].End.Value.Equal(d(13)) {
		t.Errorf("out[0].End.Value = %v, want 13 (extended by skB)", out[0].End.Value)
	}
	if !out[0].End.TS.Equal(ts("2020-02-02 10:50")) {
		t.Errorf("out[0].End.TS = %v, want 10:50", out[0].End.TS)
	}
}

func TestAccumulateStrokesEmptyReturnsNoMerge(t *testing.T) {
	a := New(testTicks(t))
	var subtrends []shape.SubTrend
	merged, err := a.accumulateStrokes(&subtrends, nil)
	if err != nil {
		t.Fatal(err)
	}
	if merged {
		t.Error("expected no merge for an empty stroke run")
	}
}
