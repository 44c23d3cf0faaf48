package merge

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"jupitor/internal/morph/shape"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func bar(minute int, low, high string) shape.Bar {
	return shape.Bar{
		Timestamp: time.Date(2020, 2, 10, 10, minute, 0, 0, time.UTC),
		Low:       d(low),
		High:      d(high),
	}
}

func TestAddFirstBarEmitsAdd(t *testing.T) {
	a := New()
	delta, err := a.Accumulate(shape.AddDelta(bar(0, "10.00", "10.10")))
	if err != nil {
		t.Fatal(err)
	}
	ck, ok := delta.Add()
	if !ok {
		t.Fatalf("expected Add delta, got %s", delta.Kind())
	}
	if ck.Count != 1 {
		t.Errorf("count = %d, want 1", ck.Count)
	}
}

func TestInclusiveMergeEmitsUpdate(t *testing.T) {
	a := New()
	if _, err := a.Accumulate(shape.AddDelta(bar(0, "10.00", "10.20"))); err != nil {
		t.Fatal(err)
	}
	// Second bar's range is fully contained in the first — inclusive.
	delta, err := a.Accumulate(shape.AddDelta(bar(1, "10.05", "10.15")))
	if err != nil {
		t.Fatal(err)
	}
	ck, ok := delta.Update()
	if !ok {
		t.Fatalf("expected Update delta, got %s", delta.Kind())
	}
	if ck.Count != 2 {
		t.Errorf("count = %d, want 2", ck.Count)
	}
}

func TestNonInclusiveEmitsAdd(t *testing.T) {
	a := New()
	if _, err := a.Accumulate(shape.AddDelta(bar(0, "10.00", "10.10"))); err != nil {
		t.Fatal(err)
	}
	delta, err := a.Accumulate(shape.AddDelta(bar(1, "10.05", "10.20")))
	if err != nil {
		t.Fatal(err)
	}
	if delta.Kind() != shape.KindAdd {
		t.Fatalf("expected Add delta, got %s", delta.Kind())
	}
	if len(a.Window()) != 2 {
		t.Errorf("window length = %d, want 2", len(a.Window()))
	}
}

func TestWindowCapAtThree(t *testing.T) {
	a := New()
	bars := []shape.Bar{
		bar(0, "10.00", "10.10"),
		bar(1, "10.20", "10.30"),
		bar(2, "10.40", "10.50"),
		bar(3, "10.60", "10.70"),
	}
	for _, b := range bars {
		if _, err := a.Accumulate(shape.AddDelta(b)); err != nil {
			t.Fatal(err)
		}
	}
	if len(a.Window()) != 3 {
		t.Errorf("window length = %d, want 3", len(a.Window()))
	}
}

func TestUpdateRetractsAndReapplies(t *testing.T) {
	a := New()
	if _, err := a.Accumulate(shape.AddDelta(bar(0, "10.00", "10.20"))); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Accumulate(shape.AddDelta(bar(1, "10.05", "10.15"))); err != nil {
		t.Fatal(err)
	}
	// Revise the latest bar with a wider range.
	delta, err := a.Accumulate(shape.UpdateDelta(bar(1, "9.90", "10.25")))
	if err != nil {
		t.Fatal(err)
	}
	ck, ok := delta.Update()
	if !ok {
		t.Fatalf("expected Update delta, got %s", delta.Kind())
	}
	if !ck.High.Equal(d("10.25")) {
		t.Errorf("high = %s, want 10.25", ck.High)
	}
}
