package broker

import (
	"context"
	"fmt"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"jupitor/internal/domain"
)

// Compile-time interface check.
var _ Broker = (*AlpacaBroker)(nil)

// AlpacaBroker implements the Broker interface using the Alpaca brokerage API.
type AlpacaBroker struct {
	client *alpacaapi.Client
}

// NewAlpacaBroker creates a new AlpacaBroker configured with the given
// credentials and API endpoint.
func NewAlpacaBroker(apiKey, apiSecret, baseURL string) *AlpacaBroker {
	return &AlpacaBroker{
		client: alpacaapi.NewClient(alpacaapi.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
	}
}

// Name returns "alpaca".
func (b *AlpacaBroker) Name() string {
	return "alpaca"
}

// SubmitOrder sends an order to the Alpaca API for execution.
func (b *AlpacaBroker) SubmitOrder(_ context.Context, order *domain.Order) (*domain.Order, error) {
	side, err := alpacaSide(order.Side)
	if err != nil {
		return nil, err
	}
	otype, err := alpacaOrderType(order.Type)
	if err != nil {
		return nil, err
	}

	qty := decimal.NewFromFloat(order.Qty)
	req := alpacaapi.PlaceOrderRequest{
		Symbol:      order.Symbol,
		Qty:         &qty,
		Side:        side,
		Type:        otype,
		TimeInForce: alpacaapi.Day,
	}
	if order.Type == domain.OrderTypeLimit || order.Type == domain.OrderTypeStop {
		price := decimal.NewFromFloat(order.Price)
		if order.Type == domain.OrderTypeLimit {
			req.LimitPrice = &price
		} else {
			req.StopPrice = &price
		}
	}

	placed, err := b.client.PlaceOrder(req)
	if err != nil {
		return nil, fmt.Errorf("alpaca: place order: %w", err)
	}
	return fromAlpacaOrder(placed, order), nil
}

// CancelOrder requests cancellation of an open order via the Alpaca API.
func (b *AlpacaBroker) CancelOrder(_ context.Context, orderID string) error {
	if err := b.client.CancelOrder(orderID); err != nil {
		return fmt.Errorf("alpaca: cancel order %s: %w", orderID, err)
	}
	return nil
}

// GetPositions returns all current positions from the Alpaca account.
func (b *AlpacaBroker) GetPositions(_ context.Context) ([]domain.Position, error) {
	positions, err := b.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("alpaca: get positions: %w", err)
	}
	out := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		out = append(out, fromAlpacaPosition(p))
	}
	return out, nil
}

// GetAccount returns the current account information from the Alpaca API.
func (b *AlpacaBroker) GetAccount(_ context.Context) (*domain.AccountInfo, error) {
	acct, err := b.client.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("alpaca: get account: %w", err)
	}
	return &domain.AccountInfo{
		Equity:      acct.Equity.InexactFloat64(),
		Cash:        acct.Cash.InexactFloat64(),
		BuyingPower: acct.BuyingPower.InexactFloat64(),
	}, nil
}

func alpacaSide(side domain.OrderSide) (alpacaapi.Side, error) {
	switch side {
	case domain.OrderSideBuy:
		return alpacaapi.Buy, nil
	case domain.OrderSideSell:
		return alpacaapi.Sell, nil
	default:
		return "", fmt.Errorf("alpaca: unsupported order side %q", side)
	}
}

func alpacaOrderType(t domain.OrderType) (alpacaapi.OrderType, error) {
	switch t {
	case domain.OrderTypeMarket:
		return alpacaapi.Market, nil
	case domain.OrderTypeLimit:
		return alpacaapi.Limit, nil
	case domain.OrderTypeStop:
		return alpacaapi.Stop, nil
	default:
		return "", fmt.Errorf("alpaca: unsupported order type %q", t)
	}
}

func fromAlpacaOrder(a *alpacaapi.Order, submitted *domain.Order) *domain.Order {
	o := *submitted
	o.ID = a.ID
	o.Status = domain.OrderStatus(a.Status)
	if a.FilledQty != "" {
		if q, err := decimal.NewFromString(a.FilledQty); err == nil {
			o.FilledQty = q.InexactFloat64()
		}
	}
	if a.FilledAvgPrice != nil {
		o.FilledAvgPrice = a.FilledAvgPrice.InexactFloat64()
	}
	o.CreatedAt = a.CreatedAt
	o.UpdatedAt = a.UpdatedAt
	return &o
}

func fromAlpacaPosition(p alpacaapi.Position) domain.Position {
	side := domain.PositionSideLong
	if p.Side == alpacaapi.Short {
		side = domain.PositionSideShort
	}
	return domain.Position{
		Symbol:        p.Symbol,
		Qty:           p.Qty.InexactFloat64(),
		Side:          side,
		AvgEntryPrice: p.AvgEntryPrice.InexactFloat64(),
		MarketValue:   p.MarketValue.InexactFloat64(),
		UnrealizedPL:  p.UnrealizedPL.InexactFloat64(),
	}
}
