// Package domain holds the shared data types passed between the gather,
// store, broker, strategy, and engine packages: bars and trades ingested
// from a data source, and the orders, positions, and signals that flow
// through the trading lifecycle.
package domain

import "time"

// Market identifies which exchange/venue a symbol trades on.
type Market string

const (
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// Bar is a single OHLCV candle for a symbol at a point in time.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// Trade is a single executed print for a symbol.
type Trade struct {
	Symbol     string
	Timestamp  time.Time
	Price      float64
	Size       int64
	Exchange   string
	ID         string
	Conditions string
	// Update marks a trade print that corrects or supersedes an earlier
	// one (a late or corrected tape print), mirroring the upstream feed's
	// own update flag.
	Update bool
}

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType selects how an order is priced.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeStop   OrderType = "stop"
)

// OrderStatus tracks an order through its lifecycle.
type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusPartial   OrderStatus = "partially_filled"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order is a request to buy or sell a quantity of a symbol, and its
// current execution state.
type Order struct {
	ID     string
	Symbol string
	Side   OrderSide
	Type   OrderType
	Status OrderStatus
	Qty    float64
	// Price is the reference price the order was sized against at
	// submission time, used for pre-trade notional risk checks. It is
	// distinct from FilledAvgPrice, the realized fill price reported
	// back by the broker.
	Price          float64
	FilledQty      float64
	FilledAvgPrice float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PositionSide is the direction of an open position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// Position is a currently held quantity of a symbol.
type Position struct {
	Symbol        string
	Qty           float64
	Side          PositionSide
	AvgEntryPrice float64
	MarketValue   float64
	UnrealizedPL  float64
}

// SignalType is the action a strategy recommends.
type SignalType string

const (
	SignalTypeBuy  SignalType = "buy"
	SignalTypeSell SignalType = "sell"
	SignalTypeHold SignalType = "hold"
)

// Signal is a recommendation emitted by a strategy in response to a bar
// or trade, for the engine to risk-check and route to a broker.
type Signal struct {
	ID         int64
	StrategyID string
	Symbol     string
	Type       SignalType
	Strength   float64
	Metadata   map[string]string
	CreatedAt  time.Time
}

// AccountInfo is a snapshot of a broker account's financial state.
type AccountInfo struct {
	Equity      float64
	Cash        float64
	BuyingPower float64
}
