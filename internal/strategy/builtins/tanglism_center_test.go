package builtins

import (
	"context"
	"testing"
	"time"

	"jupitor/internal/domain"
	"jupitor/internal/morph/calendar"
	"jupitor/internal/morph/pipeline"
	"jupitor/internal/morph/stroke"
)

func testPipelineConfig(t *testing.T) pipeline.Config {
	t.Helper()
	dates := calendar.NewDateSetFromStrings([]string{"2020-02-10"})
	ticks, err := calendar.NewTickSet(calendar.Tick1Min, dates)
	if err != nil {
		t.Fatal(err)
	}
	return pipeline.Config{
		Stroke:      stroke.DefaultConfig(),
		SourceTicks: ticks,
		TargetTicks: ticks,
	}
}

// zigzagDomainBars mirrors the pipeline package's own zigzag test
// helper but emits domain.Bar, adding a Close at the bar's midpoint so
// TanglismCenter has a price to test against the center band.
func zigzagDomainBars(symbol string, legs, legLen int) []domain.Bar {
	var bars []domain.Bar
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
			low, high := base, base+0.5
			bars = append(bars, domain.Bar{
				Symbol:    symbol,
				Timestamp: time.Date(2020, 2, 10, 10, minute, 0, 0, time.UTC),
				Low:       low,
				High:      high,
				Close:     (low + high) / 2,
			})
			minute++
		}
		base -= 0.25
		up = !up
	}
	return bars
}

func TestTanglismCenterNameAndInterface(t *testing.T) {
	s := NewTanglismCenter(testPipelineConfig(t))
	if s.Name() != "tanglism-center" {
		t.Errorf("Name() = %q, want tanglism-center", s.Name())
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
}

func TestTanglismCenterOnTradeIsNoOp(t *testing.T) {
	s := NewTanglismCenter(testPipelineConfig(t))
	sigs, err := s.OnTrade(context.Background(), domain.Trade{Symbol: "AAPL"})
	if err != nil {
		t.Fatalf("OnTrade() error: %v", err)
	}
	if len(sigs) != 0 {
		t.Errorf("OnTrade() signals = %+v, want none", sigs)
	}
}

func TestTanglismCenterRunsFullZigzagWithoutError(t *testing.T) {
	s := NewTanglismCenter(testPipelineConfig(t))
	ctx := context.Background()

	var signals []domain.Signal
	for _, b := range zigzagDomainBars("AAPL", 4, 5) {
		sigs, err := s.OnBar(ctx, b)
		if err != nil {
			t.Fatalf("OnBar(%v) error: %v", b.Timestamp, err)
		}
		signals = append(signals, sigs...)
	}

	for _, sig := range signals {
		if sig.StrategyID != "tanglism-center" {
			t.Errorf("signal.StrategyID = %q, want tanglism-center", sig.StrategyID)
		}
		if sig.Type != domain.SignalTypeBuy && sig.Type != domain.SignalTypeSell {
			t.Errorf("signal.Type = %q, want Buy or Sell", sig.Type)
		}
	}
}

func TestTanglismCenterFirstBarNeverSignals(t *testing.T) {
	s := NewTanglismCenter(testPipelineConfig(t))
	bars := zigzagDomainBars("AAPL", 4, 5)
	sigs, err := s.OnBar(context.Background(), bars[0])
	if err != nil {
		t.Fatalf("OnBar() error: %v", err)
	}
	if len(sigs) != 0 {
		t.Errorf("first bar signals = %+v, want none (no previous close to compare)", sigs)
	}
}
