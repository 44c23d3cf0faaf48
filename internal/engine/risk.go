package engine

import (
	"context"
	"fmt"
	"sync"

	"jupitor/internal/domain"
)

// RiskManager enforces pre-trade risk rules such as position sizing limits
// and maximum daily loss constraints.
type RiskManager struct {
	maxPositionPct  float64
	maxDailyLossPct float64

	mu                sync.Mutex
	realizedLossToday float64
}

// NewRiskManager creates a RiskManager with the specified risk thresholds.
//
//   - maxPositionPct: maximum fraction of equity allowed in a single position
//     (e.g. 0.10 for 10%).
//   - maxDailyLossPct: maximum fraction of equity that may be lost in a single
//     trading day (e.g. 0.02 for 2%).
func NewRiskManager(maxPositionPct, maxDailyLossPct float64) *RiskManager {
	return &RiskManager{
		maxPositionPct:  maxPositionPct,
		maxDailyLossPct: maxDailyLossPct,
	}
}

// RecordPnL accumulates a realized gain/loss into the day's running total,
// which CheckOrder guards against. Call it when a fill closes or reduces a
// position. A gain offsets a prior loss but never pushes the running total
// negative.
func (rm *RiskManager) RecordPnL(delta float64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.realizedLossToday -= delta
	if rm.realizedLossToday < 0 {
		rm.realizedLossToday = 0
	}
}

// ResetDaily clears the running daily-loss counter; call at the start of
// each trading session.
func (rm *RiskManager) ResetDaily() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.realizedLossToday = 0
}

// CheckOrder evaluates whether the proposed order complies with the
// configured risk limits given the current account state. order.Price is
// the reference price used to size the order's notional value.
func (rm *RiskManager) CheckOrder(_ context.Context, order *domain.Order, account *domain.AccountInfo) error {
	if account == nil {
		return fmt.Errorf("risk: account snapshot is required")
	}

	notional := order.Qty * order.Price
	if maxNotional := account.Equity * rm.maxPositionPct; notional > maxNotional {
		return fmt.Errorf("risk: order notional %.2f exceeds max position size %.2f (%.0f%% of equity %.2f)",
			notional, maxNotional, rm.maxPositionPct*100, account.Equity)
	}

	rm.mu.Lock()
	lossToday := rm.realizedLossToday
	rm.mu.Unlock()
	if maxLoss := account.Equity * rm.maxDailyLossPct; lossToday > maxLoss {
		return fmt.Errorf("risk: daily loss %.2f exceeds limit %.2f (%.0f%% of equity %.2f)",
			lossToday, maxLoss, rm.maxDailyLossPct*100, account.Equity)
	}
	return nil
}
