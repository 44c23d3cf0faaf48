package broker

import (
	"context"
	"fmt"
	"time"

	"jupitor/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*SimulatorBroker)(nil)

// SimulatorBroker implements the Broker interface for paper trading and
// backtesting. It fills every submitted order immediately at its reference
// price and tracks positions and cash in memory without making external
// API calls.
type SimulatorBroker struct {
	cash      float64
	positions map[string]*domain.Position
	orders    map[string]*domain.Order
}

// NewSimulatorBroker creates a new SimulatorBroker seeded with startingCash
// and empty position and order books.
func NewSimulatorBroker(startingCash float64) *SimulatorBroker {
	return &SimulatorBroker{
		cash:      startingCash,
		positions: make(map[string]*domain.Position),
		orders:    make(map[string]*domain.Order),
	}
}

// Name returns "simulator".
func (b *SimulatorBroker) Name() string {
	return "simulator"
}

// SubmitOrder fills order immediately at its reference Price, updates the
// simulated cash balance and position book, and records it as filled.
func (b *SimulatorBroker) SubmitOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	if order.Price <= 0 {
		order.Status = domain.OrderStatusRejected
		b.orders[order.ID] = order
		return order, fmt.Errorf("simulator: order %s has no reference price to fill against", order.ID)
	}

	signedQty := order.Qty
	if order.Side == domain.OrderSideSell {
		signedQty = -signedQty
	}
	b.cash -= signedQty * order.Price
	b.applyFill(order.Symbol, signedQty, order.Price)

	order.Status = domain.OrderStatusFilled
	order.FilledQty = order.Qty
	order.FilledAvgPrice = order.Price
	b.orders[order.ID] = order
	return order, nil
}

// applyFill folds a signed quantity (positive for buys, negative for sells)
// at fillPrice into the position for symbol, rolling the average entry
// price forward on adds to the same side and netting down (closing, or
// flipping side) otherwise.
func (b *SimulatorBroker) applyFill(symbol string, signedQty, fillPrice float64) {
	pos, ok := b.positions[symbol]
	if !ok {
		pos = &domain.Position{Symbol: symbol}
		b.positions[symbol] = pos
	}

	existingSigned := pos.Qty
	if pos.Side == domain.PositionSideShort {
		existingSigned = -existingSigned
	}

	newSigned := existingSigned + signedQty
	switch {
	case existingSigned == 0 || sign(existingSigned) == sign(signedQty):
		// Opening or adding to a position: roll the average entry price.
		totalCost := absf(existingSigned)*pos.AvgEntryPrice + absf(signedQty)*fillPrice
		pos.AvgEntryPrice = totalCost / absf(newSigned)
	default:
		// Reducing, closing, or flipping: entry price only changes for the
		// portion that flips to the opposite side.
		if sign(newSigned) != sign(existingSigned) && newSigned != 0 {
			pos.AvgEntryPrice = fillPrice
		}
	}

	if newSigned == 0 {
		delete(b.positions, symbol)
		return
	}

	pos.Qty = absf(newSigned)
	if newSigned > 0 {
		pos.Side = domain.PositionSideLong
	} else {
		pos.Side = domain.PositionSideShort
	}
	pos.MarketValue = pos.Qty * fillPrice
	if pos.Side == domain.PositionSideLong {
		pos.UnrealizedPL = (fillPrice - pos.AvgEntryPrice) * pos.Qty
	} else {
		pos.UnrealizedPL = (pos.AvgEntryPrice - fillPrice) * pos.Qty
	}
}

func sign(f float64) int {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	default:
		return 0
	}
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// CancelOrder marks the specified order as cancelled in the in-memory store.
// Filled orders cannot be cancelled.
func (b *SimulatorBroker) CancelOrder(_ context.Context, orderID string) error {
	o, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("simulator: order %s not found", orderID)
	}
	if o.Status == domain.OrderStatusFilled {
		return fmt.Errorf("simulator: order %s is already filled", orderID)
	}
	o.Status = domain.OrderStatusCancelled
	o.UpdatedAt = time.Now()
	return nil
}

// GetPositions returns all simulated positions.
func (b *SimulatorBroker) GetPositions(_ context.Context) ([]domain.Position, error) {
	positions := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		positions = append(positions, *p)
	}
	return positions, nil
}

// GetAccount returns simulated account information: cash plus the market
// value of every open position as equity, and cash as buying power.
func (b *SimulatorBroker) GetAccount(_ context.Context) (*domain.AccountInfo, error) {
	equity := b.cash
	for _, p := range b.positions {
		equity += p.MarketValue
	}
	return &domain.AccountInfo{
		Equity:      equity,
		Cash:        b.cash,
		BuyingPower: b.cash,
	}, nil
}
