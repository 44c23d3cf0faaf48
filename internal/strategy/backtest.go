package strategy

import (
	"context"
	"fmt"
	"math"
	"time"

	"jupitor/internal/domain"
	"jupitor/internal/engine"
	"jupitor/internal/store"
)

// BacktestResult holds the summary metrics produced by a backtest run.
type BacktestResult struct {
	TotalReturn  float64
	SharpeRatio  float64
	MaxDrawdown  float64
	TotalTrades  int
	WinRate      float64
	ProfitFactor float64
}

// Backtester replays historical bar data through a strategy, routing every
// emitted signal through an Engine (and from there to a broker, typically
// a simulator) so the backtest exercises the same submit/risk-check path a
// live run would, and computes performance metrics from the resulting
// equity curve.
type Backtester struct {
	store    store.BarStore
	registry *Registry
	engine   *engine.Engine
}

// NewBacktester creates a Backtester that reads bars from the given store,
// looks up strategies in the provided registry, and routes signals through
// eng.
func NewBacktester(barStore store.BarStore, registry *Registry, eng *engine.Engine) *Backtester {
	return &Backtester{
		store:    barStore,
		registry: registry,
		engine:   eng,
	}
}

// completedTrade records the realized P&L of one closed round-trip.
type completedTrade struct {
	pnl float64
}

// Run executes a backtest for the named strategy over the specified symbols
// and date range. initialCapital is informational only — the broker behind
// bt.engine determines the account's actual starting cash; Run fails if the
// account's equity curve can't be read back from it.
func (bt *Backtester) Run(
	ctx context.Context,
	strategyName string,
	symbols []string,
	start, end time.Time,
	initialCapital float64,
) (*BacktestResult, error) {
	strat, ok := bt.registry.Get(strategyName)
	if !ok {
		return nil, fmt.Errorf("backtest: strategy %q not registered", strategyName)
	}
	if err := strat.Init(ctx); err != nil {
		return nil, fmt.Errorf("backtest: init strategy %q: %w", strategyName, err)
	}

	var equityCurve []float64
	var trades []completedTrade
	entryPrice := make(map[string]float64)
	qtyHeld := make(map[string]float64)

	for _, symbol := range symbols {
		bars, err := bt.store.ReadBars(ctx, symbol, "", start, end)
		if err != nil {
			return nil, fmt.Errorf("backtest: read bars for %s: %w", symbol, err)
		}

		for _, bar := range bars {
			signals, err := strat.OnBar(ctx, bar)
			if err != nil {
				return nil, fmt.Errorf("backtest: %s OnBar: %w", symbol, err)
			}

			for _, sig := range signals {
				account, err := bt.engine.GetAccount(ctx)
				if err != nil {
					return nil, fmt.Errorf("backtest: get account: %w", err)
				}

				switch sig.Type {
				case domain.SignalTypeBuy:
					if qtyHeld[symbol] > 0 {
						continue // already long this symbol; no pyramiding
					}
					qty := math.Floor(account.Equity * 0.10 / bar.Close)
					if qty <= 0 {
						continue
					}
					if _, err := bt.engine.SubmitSignal(ctx, sig, qty, bar.Close); err != nil {
						return nil, fmt.Errorf("backtest: submit buy signal for %s: %w", symbol, err)
					}
					qtyHeld[symbol] = qty
					entryPrice[symbol] = bar.Close

				case domain.SignalTypeSell:
					qty := qtyHeld[symbol]
					if qty <= 0 {
						continue // nothing open to close; this model does not short
					}
					if _, err := bt.engine.SubmitSignal(ctx, sig, qty, bar.Close); err != nil {
						return nil, fmt.Errorf("backtest: submit sell signal for %s: %w", symbol, err)
					}
					trades = append(trades, completedTrade{pnl: (bar.Close - entryPrice[symbol]) * qty})
					qtyHeld[symbol] = 0
					delete(entryPrice, symbol)
				}
			}

			account, err := bt.engine.GetAccount(ctx)
			if err != nil {
				return nil, fmt.Errorf("backtest: get account: %w", err)
			}
			equityCurve = append(equityCurve, account.Equity)
		}
	}

	return summarize(initialCapital, equityCurve, trades), nil
}

func summarize(initialCapital float64, equityCurve []float64, trades []completedTrade) *BacktestResult {
	result := &BacktestResult{TotalTrades: len(trades)}
	if len(equityCurve) == 0 {
		return result
	}

	finalEquity := equityCurve[len(equityCurve)-1]
	if initialCapital > 0 {
		result.TotalReturn = (finalEquity - initialCapital) / initialCapital
	}
	result.MaxDrawdown = maxDrawdown(equityCurve)
	result.SharpeRatio = sharpeRatio(equityCurve)

	var wins int
	var grossProfit, grossLoss float64
	for _, tr := range trades {
		switch {
		case tr.pnl > 0:
			wins++
			grossProfit += tr.pnl
		case tr.pnl < 0:
			grossLoss += -tr.pnl
		}
	}
	if len(trades) > 0 {
		result.WinRate = float64(wins) / float64(len(trades))
	}
	if grossLoss > 0 {
		result.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		result.ProfitFactor = math.Inf(1)
	}
	return result
}

// maxDrawdown returns the largest peak-to-trough decline in curve, as a
// fraction of the peak.
func maxDrawdown(curve []float64) float64 {
	var peak, worst float64
	peak = curve[0]
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

// sharpeRatio computes an annualization-free Sharpe ratio (mean return over
// return stddev) from bar-to-bar equity returns. It returns 0 when there are
// fewer than two returns or the return series has no variance.
func sharpeRatio(curve []float64) float64 {
	if len(curve) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		if curve[i-1] == 0 {
			continue
		}
		returns = append(returns, (curve[i]-curve[i-1])/curve[i-1])
	}
	if len(returns) < 2 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return 0
	}
	return mean / stddev
}
