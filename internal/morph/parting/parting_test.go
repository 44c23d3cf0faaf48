package parting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"jupitor/internal/morph/merge"
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

// feed pushes bars through a merge accumulator and returns every CK delta.
func feed(t *testing.T, bars []shape.Bar) []shape.Delta[shape.CK] {
	t.Helper()
	m := merge.New()
	var deltas []shape.Delta[shape.CK]
	for _, b := range bars {
		dl, err := m.Accumulate(shape.AddDelta(b))
		if err != nil {
			t.Fatal(err)
		}
		deltas = append(deltas, dl)
	}
	return deltas
}

func TestS1NoParting(t *testing.T) {
	bars := []shape.Bar{
		bar(0, "10.00", "10.10"),
		bar(1, "10.05", "10.15"),
		bar(2, "10.10", "10.20"),
		bar(3, "10.15", "10.25"),
		bar(4, "10.20", "10.30"),
	}
	ckDeltas := feed(t, bars)
	p := New()
	var partings []shape.Parting
	for _, cd := range ckDeltas {
		pd, err := p.Accumulate(cd)
		if err != nil {
			t.Fatal(err)
		}
		if v, ok := pd.Add(); ok {
			partings = append(partings, v)
		}
	}
	if len(partings) != 0 {
		t.Fatalf("expected 0 partings, got %d", len(partings))
	}
}

func TestS2OneTopParting(t *testing.T) {
	bars := []shape.Bar{
		bar(0, "10.00", "10.10"),
		bar(1, "10.05", "10.15"),
		bar(2, "10.10", "10.20"),
		bar(3, "10.05", "10.15"),
		bar(4, "10.00", "10.10"),
	}
	ckDeltas := feed(t, bars)
	p := New()
	var partings []shape.Parting
	for _, cd := range ckDeltas {
		pd, err := p.Accumulate(cd)
		if err != nil {
			t.Fatal(err)
		}
		if v, ok := pd.Add(); ok {
			partings = append(partings, v)
		}
	}
	if len(partings) != 1 {
		t.Fatalf("expected 1 parting, got %d", len(partings))
	}
	got := partings[0]
	if !got.IsTop {
		t.Error("expected top parting")
	}
	wantTS := time.Date(2020, 2, 10, 10, 2, 0, 0, time.UTC)
	if !got.ExtremumTS.Equal(wantTS) {
		t.Errorf("extremum ts = %v, want %v", got.ExtremumTS, wantTS)
	}
	if !got.ExtremumPrice.Equal(d("10.20")) {
		t.Errorf("extremum price = %s, want 10.20", got.ExtremumPrice)
	}
}

func TestTwoEqualExtremaNeverParting(t *testing.T) {
	x := shape.CK{Low: d("10.00"), High: d("10.20")}
	b := shape.CK{Low: d("10.00"), High: d("10.20")}
	c := shape.CK{Low: d("10.00"), High: d("10.20")}
	p := New()
	p.window = []shape.CK{x, b, c}
	_, found := p.testWindow()
	if found {
		t.Error("equal extrema must never produce a parting")
	}
}
