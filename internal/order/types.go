package order

import (
	"time"

	exchange "bitget-trader/pkg/exchanges/common"
)

// Position is the local read-through snapshot of an open position. The
// authoritative copy lives at the exchange and is reconciled every cycle.
type Position struct {
	Symbol          string
	Side            exchange.HoldSide
	Size            float64
	EntryPrice      float64
	StopLossPrice   float64
	TakeProfitPrice float64
	Leverage        int
	Timestamp       int64 // ms
	BreakEvenPrice  float64
}

// IsLong reports whether the position profits from rising prices.
func (p *Position) IsLong() bool {
	return p.Side == exchange.HoldLong
}

// PendingOrder tracks an order submitted but not yet resolved. Entry orders
// are cancelled after EntryTimeout unfilled; close orders are converted to
// market orders after CloseTimeout.
type PendingOrder struct {
	OrderID   string
	Symbol    string
	Side      exchange.Side
	Size      float64
	IsClose   bool
	OrderType exchange.OrderType
	CreatedAt time.Time
}

// Age returns how long the order has been pending.
func (o *PendingOrder) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}
