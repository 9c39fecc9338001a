package common

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the closing side for an order side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// TradeSide distinguishes position-opening from position-closing orders.
type TradeSide string

const (
	TradeOpen  TradeSide = "open"
	TradeClose TradeSide = "close"
)

// HoldSide is the direction of a held futures position.
type HoldSide string

const (
	HoldLong  HoldSide = "long"
	HoldShort HoldSide = "short"
)

// SideFor maps a holding direction to the order side that opens it.
func SideFor(h HoldSide) Side {
	if h == HoldLong {
		return SideBuy
	}
	return SideSell
}

// OrderType denotes supported order types.
type OrderType string

const (
	OrderTypeLimit   OrderType = "limit"
	OrderTypeMarket  OrderType = "market"
	OrderTypeTrigger OrderType = "trigger"
)

// PlanType selects the protective plan order kind.
type PlanType string

const (
	PlanStopLoss   PlanType = "pos_loss"
	PlanTakeProfit PlanType = "pos_profit"
)

// OrderStatus normalizes exchange order state into a small set.
type OrderStatus string

const (
	StatusLive      OrderStatus = "live"
	StatusPartial   OrderStatus = "partially_filled"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusUnknown   OrderStatus = "unknown"
)

// NormalizeStatus folds exchange spellings into OrderStatus values.
func NormalizeStatus(raw string) OrderStatus {
	switch raw {
	case "live", "new", "init":
		return StatusLive
	case "partially_filled", "partial_fill":
		return StatusPartial
	case "filled", "full_fill":
		return StatusFilled
	case "cancelled", "canceled":
		return StatusCancelled
	default:
		return StatusUnknown
	}
}

// OrderRequest captures an order intent to be sent to the exchange.
type OrderRequest struct {
	Symbol       string
	MarginCoin   string
	Side         Side
	TradeSide    TradeSide
	Size         float64
	OrderType    OrderType
	Price        float64 // required for limit
	TriggerPrice float64 // required for trigger orders
	ClientOID    string
	ReduceOnly   bool
}

// TpslRequest places a position-level protective plan order.
type TpslRequest struct {
	Symbol       string
	MarginCoin   string
	PlanType     PlanType
	TriggerPrice float64
	HoldSide     HoldSide
	Size         float64
}

// OrderResult returns the exchange ack.
type OrderResult struct {
	OrderID   string
	ClientOID string
}

// OrderDetail is the exchange view of a single order.
type OrderDetail struct {
	OrderID   string
	State     OrderStatus
	PriceAvg  float64
	Size      float64
	FilledQty float64
}

// Balance is the futures account margin balance.
type Balance struct {
	Available    float64
	Equity       float64
	UnrealizedPL float64
}

// Position is the exchange-reported futures position for one symbol.
type Position struct {
	Symbol           string
	HoldSide         HoldSide
	Size             float64
	EntryPrice       float64
	BreakEvenPrice   float64
	MarkPrice        float64
	Leverage         int
	UnrealizedPL     float64
	MarginSize       float64
	LiquidationPrice float64
	AchievedProfits  float64
	MarginMode       string // isolated or crossed
	CreatedAt        int64  // ms
}

// PendingOrder is an order submitted but not yet filled or cancelled.
type PendingOrder struct {
	OrderID   string
	Symbol    string
	Side      Side
	TradeSide TradeSide
	Size      float64
	Price     float64
	OrderType OrderType
	CreatedAt int64 // ms
}

// CancelResult reports the outcome of one cancellation in a batch.
type CancelResult struct {
	OrderID string
	Err     error
}
