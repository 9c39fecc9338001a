package order

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"bitget-trader/internal/events"
	"bitget-trader/pkg/db"
	exchange "bitget-trader/pkg/exchanges/common"
)

// errOrderCancelled signals that a polled order was cancelled at the
// exchange, as opposed to timing out unfilled.
var errOrderCancelled = errors.New("order cancelled at exchange")

// Config bounds the executor's timing behavior for one symbol.
type Config struct {
	Symbol      string
	MarginCoin  string
	FillWait    RetryPolicy // limit order fill polling
	ConfirmWait RetryPolicy // position materialization polling
	Protect     RetryPolicy // protective order placement
	SettleDelay time.Duration // market order settle before confirm

	EntryTimeout  time.Duration // pending entry orders cancelled past this
	CloseTimeout  time.Duration // pending close orders converted past this
	CheckInterval time.Duration // reconciliation pass interval
}

// DefaultConfig returns production timings for a symbol.
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:        symbol,
		MarginCoin:    "USDT",
		FillWait:      RetryPolicy{MaxAttempts: 30, Interval: time.Second},
		ConfirmWait:   RetryPolicy{MaxAttempts: 5, Interval: time.Second},
		Protect:       RetryPolicy{MaxAttempts: 3, Interval: time.Second},
		SettleDelay:   2 * time.Second,
		EntryTimeout:  30 * time.Second,
		CloseTimeout:  20 * time.Second,
		CheckInterval: 10 * time.Second,
	}
}

// Executor drives the position lifecycle against the exchange: entry,
// protective orders, pending-order reconciliation and closes. Position and
// pending maps are shared with the strategy and reconciliation tasks and
// guarded by a single mutex.
type Executor struct {
	gateway  exchange.Gateway
	bus      *events.Bus
	database *db.Database // optional trade log
	cfg      Config

	mu        sync.Mutex
	positions map[string]*Position
	pending   map[string]*PendingOrder

	now func() time.Time // injectable clock for aging tests
}

// NewExecutor wires an executor to its gateway and collaborators.
func NewExecutor(gw exchange.Gateway, bus *events.Bus, database *db.Database, cfg Config) *Executor {
	return &Executor{
		gateway:   gw,
		bus:       bus,
		database:  database,
		cfg:       cfg,
		positions: make(map[string]*Position),
		pending:   make(map[string]*PendingOrder),
		now:       time.Now,
	}
}

// Position returns the local snapshot for a symbol, or nil when flat.
func (e *Executor) Position(symbol string) *Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.positions[symbol]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// MarkPositionClosed drops the local position record, typically after the
// exchange reports the position gone.
func (e *Executor) MarkPositionClosed(symbol string) {
	e.mu.Lock()
	_, existed := e.positions[symbol]
	delete(e.positions, symbol)
	e.mu.Unlock()
	if existed && e.bus != nil {
		e.bus.Publish(events.EventPositionClosed, symbol)
	}
}

// PendingCount reports how many orders are tracked locally.
func (e *Executor) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *Executor) track(o *PendingOrder) {
	e.mu.Lock()
	e.pending[o.OrderID] = o
	e.mu.Unlock()
}

func (e *Executor) untrack(orderID string) {
	e.mu.Lock()
	delete(e.pending, orderID)
	e.mu.Unlock()
}

// OpenPosition runs the entry state machine. It returns true only when the
// entry filled, the position materialized and both protective orders are in
// place; any protective failure rolls the position back with a market close.
func (e *Executor) OpenPosition(ctx context.Context, symbol string, side exchange.HoldSide,
	size float64, leverage int, stopLossPrice, takeProfitPrice float64,
	orderType exchange.OrderType, price float64) bool {

	// Precondition: never stack onto an existing exchange position.
	if pos, err := e.gateway.GetPosition(ctx, symbol); err != nil {
		log.Printf("executor: precondition position check failed: %v", err)
		return false
	} else if pos != nil {
		log.Printf("executor: position already exists for %s, skipping entry", symbol)
		return false
	}

	// Leverage is best-effort; a failure is logged but does not abort.
	if err := e.gateway.SetLeverage(ctx, symbol, leverage); err != nil {
		log.Printf("executor: set leverage %dx failed: %v", leverage, err)
	}

	req := exchange.OrderRequest{
		Symbol:     symbol,
		MarginCoin: e.cfg.MarginCoin,
		Side:       exchange.SideFor(side),
		TradeSide:  exchange.TradeOpen,
		Size:       size,
		OrderType:  orderType,
		ClientOID:  uuid.NewString(),
	}
	if orderType == exchange.OrderTypeLimit {
		req.Price = price
	}

	res, err := e.gateway.PlaceOrder(ctx, req)
	if err != nil {
		log.Printf("executor: entry order rejected: %v", err)
		e.publish(events.EventOrderRejected, err.Error())
		return false
	}
	e.publish(events.EventOrderSubmitted, res.OrderID)

	entryPrice := price
	if orderType == exchange.OrderTypeLimit {
		e.track(&PendingOrder{
			OrderID:   res.OrderID,
			Symbol:    symbol,
			Side:      req.Side,
			Size:      size,
			IsClose:   false,
			OrderType: orderType,
			CreatedAt: e.now(),
		})
		avg, ok := e.awaitFill(ctx, symbol, res.OrderID)
		e.untrack(res.OrderID)
		if !ok {
			return false
		}
		if avg > 0 {
			entryPrice = avg
		}
	} else {
		// Market orders fill immediately; give the venue a moment to settle.
		select {
		case <-ctx.Done():
			return false
		case <-time.After(e.cfg.SettleDelay):
		}
	}
	e.publish(events.EventOrderFilled, res.OrderID)

	pos := e.confirmPosition(ctx, symbol)
	if pos == nil {
		log.Printf("executor: position for %s never materialized, aborting", symbol)
		return false
	}
	if entryPrice == 0 {
		entryPrice = pos.EntryPrice
	}

	if !e.placeProtections(ctx, symbol, side, pos.Size, stopLossPrice, takeProfitPrice) {
		// A position without both protections is never left open.
		log.Printf("executor: protective orders failed for %s, rolling back with market close", symbol)
		if err := e.gateway.ClosePosition(ctx, symbol); err != nil {
			log.Printf("executor: CRITICAL rollback close failed for %s: %v", symbol, err)
			e.publish(events.EventRiskAlert, map[string]any{
				"type":   "ROLLBACK_CLOSE_FAILED",
				"symbol": symbol,
				"error":  err.Error(),
			})
		}
		return false
	}

	record := &Position{
		Symbol:          symbol,
		Side:            side,
		Size:            pos.Size,
		EntryPrice:      entryPrice,
		StopLossPrice:   stopLossPrice,
		TakeProfitPrice: takeProfitPrice,
		Leverage:        leverage,
		Timestamp:       e.now().UnixMilli(),
		BreakEvenPrice:  pos.BreakEvenPrice,
	}
	e.mu.Lock()
	e.positions[symbol] = record
	e.mu.Unlock()
	e.publish(events.EventPositionOpened, *record)

	if e.database != nil {
		if err := e.database.RecordTrade(ctx, uuid.NewString(), symbol, string(side),
			pos.Size, entryPrice, stopLossPrice, takeProfitPrice, leverage); err != nil {
			log.Printf("executor: trade log write failed: %v", err)
		}
	}

	log.Printf("executor: opened %s %s size=%.3f entry=%.2f sl=%.2f tp=%.2f",
		symbol, side, pos.Size, entryPrice, stopLossPrice, takeProfitPrice)
	return true
}

// awaitFill polls a limit order until it fills, is cancelled, or the fill
// window lapses. A timeout cancels the outstanding order before returning.
func (e *Executor) awaitFill(ctx context.Context, symbol, orderID string) (float64, bool) {
	var priceAvg float64
	filled, err := e.cfg.FillWait.Poll(ctx, func() (bool, error) {
		detail, err := e.gateway.GetOrderDetail(ctx, symbol, orderID)
		if err != nil {
			// Transient lookup failures keep polling.
			log.Printf("executor: order detail %s: %v", orderID, err)
			return false, nil
		}
		switch detail.State {
		case exchange.StatusFilled:
			priceAvg = detail.PriceAvg
			return true, nil
		case exchange.StatusCancelled:
			return false, errOrderCancelled
		default:
			return false, nil
		}
	})
	if err == errOrderCancelled {
		log.Printf("executor: entry order %s cancelled at exchange", orderID)
		e.publish(events.EventOrderCancelled, orderID)
		return 0, false
	}
	if err != nil {
		return 0, false
	}
	if !filled {
		log.Printf("executor: entry order %s unfilled after wait, cancelling", orderID)
		if cerr := e.gateway.CancelOrder(ctx, symbol, orderID); cerr != nil {
			log.Printf("executor: cancel after fill timeout failed: %v", cerr)
		}
		e.publish(events.EventOrderCancelled, orderID)
		return 0, false
	}
	return priceAvg, true
}

// confirmPosition waits for the exchange to report the opened position.
func (e *Executor) confirmPosition(ctx context.Context, symbol string) *exchange.Position {
	var found *exchange.Position
	_, _ = e.cfg.ConfirmWait.Poll(ctx, func() (bool, error) {
		pos, err := e.gateway.GetPosition(ctx, symbol)
		if err != nil {
			log.Printf("executor: position confirm %s: %v", symbol, err)
			return false, nil
		}
		if pos != nil {
			found = pos
			return true, nil
		}
		return false, nil
	})
	return found
}

// placeProtections places stop-loss and take-profit trigger orders, each
// with its own retry budget.
func (e *Executor) placeProtections(ctx context.Context, symbol string, side exchange.HoldSide,
	size, stopLossPrice, takeProfitPrice float64) bool {

	slErr := e.cfg.Protect.Do(ctx, func() error {
		return e.gateway.PlaceTpslOrder(ctx, exchange.TpslRequest{
			Symbol:       symbol,
			MarginCoin:   e.cfg.MarginCoin,
			PlanType:     exchange.PlanStopLoss,
			TriggerPrice: stopLossPrice,
			HoldSide:     side,
			Size:         size,
		})
	})
	if slErr != nil {
		log.Printf("executor: stop-loss placement exhausted retries: %v", slErr)
		return false
	}

	tpErr := e.cfg.Protect.Do(ctx, func() error {
		return e.gateway.PlaceTpslOrder(ctx, exchange.TpslRequest{
			Symbol:       symbol,
			MarginCoin:   e.cfg.MarginCoin,
			PlanType:     exchange.PlanTakeProfit,
			TriggerPrice: takeProfitPrice,
			HoldSide:     side,
			Size:         size,
		})
	})
	if tpErr != nil {
		log.Printf("executor: take-profit placement exhausted retries: %v", tpErr)
		return false
	}
	return true
}

// ExecuteMarketClose closes size of the position at market.
func (e *Executor) ExecuteMarketClose(ctx context.Context, symbol string, side exchange.HoldSide, size float64) bool {
	_, err := e.gateway.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:     symbol,
		MarginCoin: e.cfg.MarginCoin,
		Side:       exchange.SideFor(side).Opposite(),
		TradeSide:  exchange.TradeClose,
		Size:       size,
		OrderType:  exchange.OrderTypeMarket,
		ClientOID:  uuid.NewString(),
	})
	if err != nil {
		log.Printf("executor: market close %s failed: %v", symbol, err)
		return false
	}
	e.MarkPositionClosed(symbol)
	return true
}

// ExecuteLimitClose submits a limit close and tracks it for timeout
// conversion. A rejected limit close falls back to a market close so the
// exit is never left unresolved.
func (e *Executor) ExecuteLimitClose(ctx context.Context, symbol string, side exchange.HoldSide, size, price float64) bool {
	closeSide := exchange.SideFor(side).Opposite()
	res, err := e.gateway.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:     symbol,
		MarginCoin: e.cfg.MarginCoin,
		Side:       closeSide,
		TradeSide:  exchange.TradeClose,
		Size:       size,
		OrderType:  exchange.OrderTypeLimit,
		Price:      price,
		ClientOID:  uuid.NewString(),
	})
	if err != nil {
		log.Printf("executor: limit close %s rejected (%v), falling back to market", symbol, err)
		return e.ExecuteMarketClose(ctx, symbol, side, size)
	}
	e.track(&PendingOrder{
		OrderID:   res.OrderID,
		Symbol:    symbol,
		Side:      closeSide,
		Size:      size,
		IsClose:   true,
		OrderType: exchange.OrderTypeLimit,
		CreatedAt: e.now(),
	})
	e.publish(events.EventOrderSubmitted, res.OrderID)
	return true
}

// CancelAllSymbolOrders cancels every pending order for the symbol. It
// succeeds only when all cancellations succeed, and purges local tracking
// on success.
func (e *Executor) CancelAllSymbolOrders(ctx context.Context, symbol string) bool {
	results, err := e.gateway.CancelAllPendingOrders(ctx, symbol)
	if err != nil {
		log.Printf("executor: cancel-all for %s failed: %v", symbol, err)
		return false
	}
	ok := true
	for _, r := range results {
		if r.Err != nil {
			log.Printf("executor: cancel %s failed: %v", r.OrderID, r.Err)
			ok = false
		}
	}
	if !ok {
		return false
	}

	e.mu.Lock()
	for id, o := range e.pending {
		if o.Symbol == symbol {
			delete(e.pending, id)
		}
	}
	e.mu.Unlock()
	return true
}

func (e *Executor) publish(ev events.Event, payload any) {
	if e.bus != nil {
		e.bus.Publish(ev, payload)
	}
}
