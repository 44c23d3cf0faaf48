// Package builtins provides built-in strategy implementations that ship with
// the jupitor platform.
package builtins

import (
	"context"
	"strconv"

	"jupitor/internal/domain"
	"jupitor/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy, kept
// alongside TanglismCenter as a non-Tanglism reference Strategy: it
// generates a buy signal when the short-period SMA crosses above the
// long-period SMA, and a sell signal when it crosses below. State is
// kept per symbol so one SMACross instance can replay several series.
type SMACross struct {
	shortPeriod int
	longPeriod  int
	series      map[string]*smaSeries
}

type smaSeries struct {
	closes    []float64
	prevShort float64
	prevLong  float64
	havePrev  bool
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods.
func NewSMACross(short, long int) *SMACross {
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
		series:      make(map[string]*smaSeries),
	}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Init resets all per-symbol moving-average state.
func (s *SMACross) Init(_ context.Context) error {
	s.series = make(map[string]*smaSeries)
	return nil
}

// OnBar appends bar.Close to that symbol's price history and emits a
// signal the bar a short/long SMA crossover completes on.
func (s *SMACross) OnBar(_ context.Context, bar domain.Bar) ([]domain.Signal, error) {
	ser, ok := s.series[bar.Symbol]
	if !ok {
		ser = &smaSeries{}
		s.series[bar.Symbol] = ser
	}
	ser.closes = append(ser.closes, bar.Close)
	if len(ser.closes) < s.longPeriod {
		return nil, nil
	}

	shortAvg := sma(ser.closes, s.shortPeriod)
	longAvg := sma(ser.closes, s.longPeriod)

	var signals []domain.Signal
	if ser.havePrev {
		crossedUp := ser.prevShort <= ser.prevLong && shortAvg > longAvg
		crossedDown := ser.prevShort >= ser.prevLong && shortAvg < longAvg
		switch {
		case crossedUp:
			signals = append(signals, s.signal(bar, domain.SignalTypeBuy, shortAvg, longAvg))
		case crossedDown:
			signals = append(signals, s.signal(bar, domain.SignalTypeSell, shortAvg, longAvg))
		}
	}
	ser.prevShort, ser.prevLong, ser.havePrev = shortAvg, longAvg, true
	return signals, nil
}

func (s *SMACross) signal(bar domain.Bar, t domain.SignalType, shortAvg, longAvg float64) domain.Signal {
	return domain.Signal{
		StrategyID: s.Name(),
		Symbol:     bar.Symbol,
		Type:       t,
		Strength:   1,
		Metadata: map[string]string{
			"short_sma": strconv.FormatFloat(shortAvg, 'f', -1, 64),
			"long_sma":  strconv.FormatFloat(longAvg, 'f', -1, 64),
		},
		CreatedAt: bar.Timestamp,
	}
}

// sma returns the mean of the last period closes.
func sma(closes []float64, period int) float64 {
	sum := 0.0
	start := len(closes) - period
	for _, c := range closes[start:] {
		sum += c
	}
	return sum / float64(period)
}

// OnTrade processes a new trade tick. The SMA crossover strategy operates on
// bars only; trade-level ticks produce no signals.
func (s *SMACross) OnTrade(_ context.Context, _ domain.Trade) ([]domain.Signal, error) {
	return nil, nil
}
