package builtins

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"jupitor/internal/domain"
	"jupitor/internal/morph/pipeline"
	"jupitor/internal/morph/shape"
	"jupitor/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*TanglismCenter)(nil)

// TanglismCenter turns center-boundary crossings (C7, §4.7) into trading
// signals: a close breaking above the most recently formed center's
// shared-high band is a buy signal, a close breaking below its
// shared-low band is a sell signal. It holds no state beyond the
// morphology pipeline itself and the previous bar's close — signals
// come from price action relative to what the pipeline has already
// computed, not from a separate indicator.
type TanglismCenter struct {
	pipe *pipeline.Pipeline

	lastClose     decimal.Decimal
	haveLastClose bool
}

// NewTanglismCenter creates a TanglismCenter strategy driven by cfg.
func NewTanglismCenter(cfg pipeline.Config) *TanglismCenter {
	return &TanglismCenter{pipe: pipeline.New(cfg)}
}

// Name returns "tanglism-center".
func (t *TanglismCenter) Name() string {
	return "tanglism-center"
}

// Init performs no setup; the pipeline is already ready to consume bars.
func (t *TanglismCenter) Init(_ context.Context) error {
	return nil
}

// OnBar feeds bar through the morphology pipeline and emits a signal
// when the close crosses the latest center's shared band.
func (t *TanglismCenter) OnBar(_ context.Context, bar domain.Bar) ([]domain.Signal, error) {
	close := decimal.NewFromFloat(bar.Close)
	mbar := shape.Bar{
		Timestamp: bar.Timestamp,
		Low:       decimal.NewFromFloat(bar.Low),
		High:      decimal.NewFromFloat(bar.High),
	}

	if _, err := t.pipe.Step(shape.AddDelta(mbar)); err != nil {
		return nil, fmt.Errorf("tanglism-center: %w", err)
	}

	prevClose, havePrev := t.lastClose, t.haveLastClose
	t.lastClose, t.haveLastClose = close, true
	if !havePrev {
		return nil, nil
	}

	center, ok := latestCenter(t.pipe.Snapshot().Centers)
	if !ok {
		return nil, nil
	}

	var sigType domain.SignalType
	switch {
	case prevClose.LessThanOrEqual(center.SharedHigh) && close.GreaterThan(center.SharedHigh):
		sigType = domain.SignalTypeBuy
	case prevClose.GreaterThanOrEqual(center.SharedLow) && close.LessThan(center.SharedLow):
		sigType = domain.SignalTypeSell
	default:
		return nil, nil
	}

	return []domain.Signal{{
		StrategyID: t.Name(),
		Symbol:     bar.Symbol,
		Type:       sigType,
		CreatedAt:  bar.Timestamp,
	}}, nil
}

// OnTrade generates no signals: TanglismCenter operates on bars only.
func (t *TanglismCenter) OnTrade(_ context.Context, _ domain.Trade) ([]domain.Signal, error) {
	return nil, nil
}

// latestCenter returns the most recently formed strict Center among
// elements, scanning from the tail since later centers supersede
// earlier ones as the tentative-element sequence is rewritten.
func latestCenter(elements []shape.CenterElement) (shape.Center, bool) {
	for i := len(elements) - 1; i >= 0; i-- {
		if elements[i].Kind == shape.ElementCenter {
			return elements[i].Center, true
		}
	}
	return shape.Center{}, false
}
