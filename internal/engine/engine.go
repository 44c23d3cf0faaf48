// Package engine coordinates order management, position tracking, and risk
// checking across the trading system.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jupitor/internal/broker"
	"jupitor/internal/domain"
	"jupitor/internal/store"
)

// Engine orchestrates the trading lifecycle by delegating to a broker for
// execution, stores for persistence, and a risk manager for pre-trade checks.
type Engine struct {
	broker      broker.Broker
	orders      store.OrderStore
	positions   store.PositionStore
	riskChecker *RiskManager
}

// NewEngine creates a new Engine wired with the given dependencies.
func NewEngine(
	b broker.Broker,
	orders store.OrderStore,
	positions store.PositionStore,
	riskChecker *RiskManager,
) *Engine {
	return &Engine{
		broker:      b,
		orders:      orders,
		positions:   positions,
		riskChecker: riskChecker,
	}
}

// SubmitSignal converts a strategy's trading signal into a market order
// sized at qty shares, priced at price for risk sizing, and routes it
// through SubmitOrder. Hold signals are rejected: callers are expected to
// filter them out before reaching the engine.
func (e *Engine) SubmitSignal(ctx context.Context, sig domain.Signal, qty, price float64) (*domain.Order, error) {
	side, err := signalSide(sig.Type)
	if err != nil {
		return nil, fmt.Errorf("engine: signal %s/%s: %w", sig.StrategyID, sig.Symbol, err)
	}

	return e.SubmitOrder(ctx, &domain.Order{
		ID:     uuid.NewString(),
		Symbol: sig.Symbol,
		Side:   side,
		Type:   domain.OrderTypeMarket,
		Qty:    qty,
		Price:  price,
	})
}

// SubmitOrder validates the order against risk rules and then forwards it to
// the broker for execution.
func (e *Engine) SubmitOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	account, err := e.broker.GetAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: get account: %w", err)
	}
	if err := e.riskChecker.CheckOrder(ctx, order, account); err != nil {
		return nil, err
	}

	if order.Status == "" {
		order.Status = domain.OrderStatusNew
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	if err := e.orders.SaveOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("engine: save order: %w", err)
	}

	submitted, err := e.broker.SubmitOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("engine: submit order: %w", err)
	}
	submitted.UpdatedAt = time.Now()
	if err := e.orders.UpdateOrder(ctx, submitted); err != nil {
		return nil, fmt.Errorf("engine: update order: %w", err)
	}
	return submitted, nil
}

// CancelOrder requests cancellation of an open order.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) error {
	order, err := e.orders.GetOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("engine: get order %s: %w", orderID, err)
	}
	if order == nil {
		return fmt.Errorf("engine: order %s not found", orderID)
	}

	if err := e.broker.CancelOrder(ctx, orderID); err != nil {
		return fmt.Errorf("engine: cancel order %s: %w", orderID, err)
	}

	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = time.Now()
	return e.orders.UpdateOrder(ctx, order)
}

// GetPositions returns all currently open positions.
func (e *Engine) GetPositions(ctx context.Context) ([]domain.Position, error) {
	return e.positions.ListPositions(ctx)
}

// GetAccount returns the current account snapshot from the underlying
// broker.
func (e *Engine) GetAccount(ctx context.Context) (*domain.AccountInfo, error) {
	return e.broker.GetAccount(ctx)
}

func signalSide(t domain.SignalType) (domain.OrderSide, error) {
	switch t {
	case domain.SignalTypeBuy:
		return domain.OrderSideBuy, nil
	case domain.SignalTypeSell:
		return domain.OrderSideSell, nil
	default:
		return "", fmt.Errorf("signal type %q has no corresponding order side", t)
	}
}
