package strategy

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"jupitor/internal/broker"
	"jupitor/internal/domain"
	"jupitor/internal/engine"
	"jupitor/internal/store"
)

// memBarStore is a minimal in-memory store.BarStore for exercising the
// Backtester without touching disk.
type memBarStore struct {
	bars []domain.Bar
}

func (m *memBarStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	m.bars = append(m.bars, bars...)
	return nil
}

func (m *memBarStore) ReadBars(_ context.Context, symbol, _ string, _, _ time.Time) ([]domain.Bar, error) {
	var out []domain.Bar
	for _, b := range m.bars {
		if b.Symbol == symbol {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBarStore) ListSymbols(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

// sawtoothStrategy emits alternating buy/sell signals, one per bar,
// independent of any morphology computation — enough to exercise the
// Backtester's signal-routing loop without depending on a specific
// morphology outcome.
type sawtoothStrategy struct {
	next domain.SignalType
}

func (s *sawtoothStrategy) Name() string                 { return "sawtooth" }
func (s *sawtoothStrategy) Init(_ context.Context) error { s.next = domain.SignalTypeBuy; return nil }

func (s *sawtoothStrategy) OnBar(_ context.Context, bar domain.Bar) ([]domain.Signal, error) {
	sig := domain.Signal{StrategyID: s.Name(), Symbol: bar.Symbol, Type: s.next, CreatedAt: bar.Timestamp}
	if s.next == domain.SignalTypeBuy {
		s.next = domain.SignalTypeSell
	} else {
		s.next = domain.SignalTypeBuy
	}
	return []domain.Signal{sig}, nil
}

func (s *sawtoothStrategy) OnTrade(_ context.Context, _ domain.Trade) ([]domain.Signal, error) {
	return nil, nil
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "backtest.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	b := broker.NewSimulatorBroker(100000)
	rm := engine.NewRiskManager(0.5, 1.0)
	return engine.NewEngine(b, db, db, rm)
}

func TestBacktesterRunRoutesSignalsThroughEngine(t *testing.T) {
	barStore := &memBarStore{}
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	prices := []float64{100, 102, 101, 105, 103}
	for i, p := range prices {
		barStore.WriteBars(context.Background(), []domain.Bar{{
			Symbol:    "AAPL",
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Open:      p, High: p + 1, Low: p - 1, Close: p,
			Volume: 1000,
		}})
	}

	reg := NewRegistry()
	reg.Register(&sawtoothStrategy{})

	eng := newTestEngine(t)
	bt := NewBacktester(barStore, reg, eng)

	result, err := bt.Run(context.Background(), "sawtooth", []string{"AAPL"}, base, base.Add(10*24*time.Hour), 100000)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.TotalTrades == 0 {
		t.Fatal("expected at least one completed round-trip trade")
	}

	account, err := eng.GetAccount(context.Background())
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	if account.Equity <= 0 {
		t.Errorf("final equity = %v, want positive", account.Equity)
	}
}

func TestBacktesterRunUnknownStrategy(t *testing.T) {
	bt := NewBacktester(&memBarStore{}, NewRegistry(), newTestEngine(t))
	if _, err := bt.Run(context.Background(), "does-not-exist", nil, time.Time{}, time.Time{}, 1000); err == nil {
		t.Fatal("Run with an unregistered strategy should fail")
	}
}
