package common

import "context"

// Gateway abstracts the futures venue consumed by the trading core.
// All calls are synchronous REST round-trips; implementations own signing,
// transport and rate limiting.
type Gateway interface {
	GetAccountBalance(ctx context.Context) (Balance, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	PlaceTpslOrder(ctx context.Context, req TpslRequest) error
	CancelOrder(ctx context.Context, symbol, orderID string) error
	CancelAllPendingOrders(ctx context.Context, symbol string) ([]CancelResult, error)
	GetOrderDetail(ctx context.Context, symbol, orderID string) (OrderDetail, error)
	GetPosition(ctx context.Context, symbol string) (*Position, error)
	GetPendingOrders(ctx context.Context, symbol string) ([]PendingOrder, error)
	ClosePosition(ctx context.Context, symbol string) error
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}
