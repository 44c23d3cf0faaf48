package engine

import (
	"context"
	"path/filepath"
	"testing"

	"jupitor/internal/broker"
	"jupitor/internal/domain"
	"jupitor/internal/store"
)

func TestNewEngine(t *testing.T) {
	e := NewEngine(nil, nil, nil, nil)
	if e == nil {
		t.Fatal("NewEngine returned nil")
	}
}

func TestRiskManagerCheckOrderAllows(t *testing.T) {
	rm := NewRiskManager(0.10, 0.02)

	order := &domain.Order{
		ID:     "test-order-1",
		Symbol: "AAPL",
		Side:   domain.OrderSideBuy,
		Type:   domain.OrderTypeMarket,
		Qty:    10,
		Price:  100,
	}
	account := &domain.AccountInfo{
		Equity:      100000,
		Cash:        50000,
		BuyingPower: 200000,
	}

	if err := rm.CheckOrder(context.Background(), order, account); err != nil {
		t.Fatalf("CheckOrder returned unexpected error: %v", err)
	}
}

func TestRiskManagerCheckOrderRejectsOversizedPosition(t *testing.T) {
	rm := NewRiskManager(0.10, 0.02)

	order := &domain.Order{ID: "big", Symbol: "AAPL", Side: domain.OrderSideBuy, Qty: 1000, Price: 100}
	account := &domain.AccountInfo{Equity: 100000}

	if err := rm.CheckOrder(context.Background(), order, account); err == nil {
		t.Fatal("CheckOrder should reject an order exceeding the max position size")
	}
}

func TestRiskManagerCheckOrderRejectsDailyLossBreach(t *testing.T) {
	rm := NewRiskManager(0.50, 0.02)
	rm.RecordPnL(-3000) // a 3% loss against a 100000 equity account

	order := &domain.Order{ID: "small", Symbol: "AAPL", Side: domain.OrderSideBuy, Qty: 1, Price: 100}
	account := &domain.AccountInfo{Equity: 100000}

	if err := rm.CheckOrder(context.Background(), order, account); err == nil {
		t.Fatal("CheckOrder should reject once the daily loss limit is breached")
	}

	rm.ResetDaily()
	if err := rm.CheckOrder(context.Background(), order, account); err != nil {
		t.Fatalf("CheckOrder after ResetDaily returned unexpected error: %v", err)
	}
}

func newTestEngine(t *testing.T) (*Engine, *store.SQLiteStore) {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "engine-test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	b := broker.NewSimulatorBroker(100000)
	rm := NewRiskManager(0.50, 1.0)
	return NewEngine(b, db, db, rm), db
}

func TestEngineSubmitSignalEndToEnd(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	sig := domain.Signal{StrategyID: "tanglism-center", Symbol: "AAPL", Type: domain.SignalTypeBuy}
	order, err := e.SubmitSignal(ctx, sig, 10, 100)
	if err != nil {
		t.Fatalf("SubmitSignal returned error: %v", err)
	}
	if order.Status != domain.OrderStatusFilled {
		t.Errorf("order status = %q, want %q", order.Status, domain.OrderStatusFilled)
	}

	positions, err := e.GetPositions(ctx)
	if err != nil {
		t.Fatalf("GetPositions returned error: %v", err)
	}
	if len(positions) != 0 {
		// The engine's own positions store is separate from the broker's
		// simulated book: nothing writes through SavePosition yet, so this
		// documents the current persistence boundary rather than asserting
		// broker-side state.
		t.Errorf("positions from store = %+v, want none (broker state is separate)", positions)
	}

	stored, err := e.orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder returned error: %v", err)
	}
	if stored == nil || stored.Status != domain.OrderStatusFilled {
		t.Fatalf("stored order = %+v, want a persisted filled order", stored)
	}
}

func TestEngineSubmitSignalRejectsHold(t *testing.T) {
	e, _ := newTestEngine(t)
	sig := domain.Signal{StrategyID: "tanglism-center", Symbol: "AAPL", Type: domain.SignalTypeHold}
	if _, err := e.SubmitSignal(context.Background(), sig, 10, 100); err == nil {
		t.Fatal("SubmitSignal with a hold signal should fail")
	}
}

func TestEngineCancelOrder(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	order, err := e.SubmitOrder(ctx, &domain.Order{ID: "cancel-me", Symbol: "AAPL", Side: domain.OrderSideBuy, Qty: 1, Price: 100})
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}
	// The simulator fills immediately, so cancellation of an already-filled
	// order should fail; this documents that boundary.
	if err := e.CancelOrder(ctx, order.ID); err == nil {
		t.Fatal("CancelOrder on an already-filled order should fail")
	}

	if err := e.CancelOrder(ctx, "does-not-exist"); err == nil {
		t.Fatal("CancelOrder on an unknown order should fail")
	}
}
