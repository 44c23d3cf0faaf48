package center

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"jupitor/internal/morph/shape"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func ts(minute int) time.Time {
	return time.Date(2020, 2, 2, 10, 0, 0, 0, time.UTC).Add(time.Duration(minute) * time.Minute)
}

func sub(startMin int, startVal float64, endMin int, endVal float64) shape.SubTrend {
	return shape.SubTrend{
		Start: shape.ValuePoint{TS: ts(startMin), Value: d(startVal)},
		End:   shape.ValuePoint{TS: ts(endMin), Value: d(endVal)},
		Level: 1,
		Kind:  shape.SubTrendNormal,
	}
}

// TestAggregateThreeOverlappingSubTrendsFormOneCenter covers spec.md's S6
// scenario: prices alternating 10 -> 11 -> 10.5 -> 11.5 all share band
// [10.5, 11], forming one center of n=3.
func TestAggregateThreeOverlappingSubTrendsFormOneCenter(t *testing.T) {
	subtrends := []shape.SubTrend{
		sub(0, 10, 10, 11),
		sub(10, 11, 20, 10.5),
		sub(20, 10.5, 30, 11.5),
	}
	out, err := New().Aggregate(subtrends)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1; got %+v", len(out), out)
	}
	el := out[0]
	if el.Kind != shape.ElementCenter {
		t.Fatalf("kind = %v, want Center", el.Kind)
	}
	if el.Center.N != 3 {
		t.Errorf("N = %d, want 3", el.Center.N)
	}
	if !el.Center.SharedLow.Equal(d(10.5)) || !el.Center.SharedHigh.Equal(d(11)) {
		t.Errorf("shared band = [%v,%v], want [10.5,11]", el.Center.SharedLow, el.Center.SharedHigh)
	}
}

func TestAggregateTwoSubTrendsStayUnmerged(t *testing.T) {
	subtrends := []shape.SubTrend{
		sub(0, 10, 10, 11),
		sub(10, 11, 20, 10.5),
	}
	out, err := New().Aggregate(subtrends)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2; got %+v", len(out), out)
	}
	for i, el := range out {
		if el.Kind != shape.ElementSubTrend {
			t.Errorf("out[%d].Kind = %v, want SubTrend", i, el.Kind)
		}
	}
}

// TestAggregateTouchingOnlyFormsSemiCenter covers the boundary case where
// s1 and s3 only touch at a single price (a zero-width shared band),
// which the three-sub-trend test classifies as a semi-center rather than
// a strict center.
func TestAggregateTouchingOnlyFormsSemiCenter(t *testing.T) {
	subtrends := []shape.SubTrend{
		sub(0, 10, 10, 11),
		sub(10, 11, 20, 9),
		sub(20, 9, 30, 10),
	}
	out, err := New().Aggregate(subtrends)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1; got %+v", len(out), out)
	}
	el := out[0]
	if el.Kind != shape.ElementSemiCenter {
		t.Fatalf("kind = %v, want SemiCenter", el.Kind)
	}
	if el.SemiCenter.N != 3 {
		t.Errorf("N = %d, want 3", el.SemiCenter.N)
	}
}

// TestAggregateFourthSubTrendExtendsCenter checks that a sub-trend whose
// end falls inside an already-formed center's shared band (its start lies
// above the band) extends that center instead of standing alone.
func TestAggregateFourthSubTrendExtendsCenter(t *testing.T) {
	subtrends := []shape.SubTrend{
		sub(0, 10, 10, 11),
		sub(10, 11, 20, 10.5),
		sub(20, 10.5, 30, 11.5),
		sub(30, 11.5, 40, 10.6),
	}
	out, err := New().Aggregate(subtrends)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1; got %+v", len(out), out)
	}
	el := out[0]
	if el.Kind != shape.ElementCenter {
		t.Fatalf("kind = %v, want Center", el.Kind)
	}
	if el.Center.N != 4 {
		t.Errorf("N = %d, want 4 (extended)", el.Center.N)
	}
	if !el.Center.End.Value.Equal(d(10.6)) {
		t.Errorf("End.Value = %v, want 10.6", el.Center.End.Value)
	}
}

// TestAggregateDisjointSubTrendStandsAlone checks that a sub-trend whose
// endpoints both fall outside a formed center's shared band, without
// crossing through it, is emitted as its own standalone sub-trend.
func TestAggregateDisjointSubTrendStandsAlone(t *testing.T) {
	subtrends := []shape.SubTrend{
		sub(0, 10, 10, 11),
		sub(10, 11, 20, 10.5),
		sub(20, 10.5, 30, 11.5),
		sub(30, 11.5, 40, 20),
	}
	out, err := New().Aggregate(subtrends)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (center, standalone); got %+v", len(out), out)
	}
	if out[0].Kind != shape.ElementCenter {
		t.Errorf("out[0].Kind = %v, want Center", out[0].Kind)
	}
	if out[1].Kind != shape.ElementSubTrend {
		t.Errorf("out[1].Kind = %v, want SubTrend", out[1].Kind)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	out, err := New().Aggregate(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Errorf("len(out) = %d, want 0", len(out))
	}
}
