package strategy

import (
	"context"
	"log"
	"time"

	"bitget-trader/internal/market"
	"bitget-trader/internal/order"
	"bitget-trader/pkg/config"
	exchange "bitget-trader/pkg/exchanges/common"
)

// Lookback is the candle window required before the engine starts trading.
const Lookback = market.DefaultMaxCandles

// Engine runs the trading decision loop for a single symbol. Per tick it
// reconciles local position state against the exchange, evaluates the close
// predicate when positioned, and otherwise looks for an entry once the
// minimum trade interval has passed.
type Engine struct {
	cache    *market.Cache
	executor *order.Executor
	gateway  exchange.Gateway
	symbol   string
	params   config.TradingConfig

	tick          time.Duration
	lastTradeTime time.Time
	now           func() time.Time
}

// NewEngine wires a strategy engine to its collaborators.
func NewEngine(cache *market.Cache, ex *order.Executor, gw exchange.Gateway, symbol string, params config.TradingConfig) *Engine {
	return &Engine{
		cache:    cache,
		executor: ex,
		gateway:  gw,
		symbol:   symbol,
		params:   params,
		tick:     time.Second,
		now:      time.Now,
	}
}

// Run executes the tick loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	log.Printf("strategy: engine started for %s (leverage %dx, size %.0f%%)",
		e.symbol, e.params.Leverage, e.params.PositionSizePct)
	for {
		select {
		case <-ctx.Done():
			log.Printf("strategy: engine stopped for %s", e.symbol)
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one evaluation cycle. Exposed for tests.
func (e *Engine) Tick(ctx context.Context) {
	pos := e.executor.Position(e.symbol)

	// Exchange truth wins: a position we believe in but the exchange no
	// longer reports was closed externally (stop triggered, manual close).
	if pos != nil {
		remote, err := e.gateway.GetPosition(ctx, e.symbol)
		if err != nil {
			log.Printf("strategy: position check failed: %v", err)
			return
		}
		if remote == nil {
			log.Printf("strategy: position for %s closed externally", e.symbol)
			e.executor.MarkPositionClosed(e.symbol)
			e.lastTradeTime = e.now()
			if !e.executor.CancelAllSymbolOrders(ctx, e.symbol) {
				log.Printf("strategy: residual order cleanup incomplete for %s", e.symbol)
			}
			return
		}
	}

	snap, ok := e.cache.Snapshot(Lookback)
	if !ok {
		return
	}

	if pos != nil {
		e.evaluateExit(ctx, pos, snap)
		return
	}

	if e.now().Sub(e.lastTradeTime) < time.Duration(e.params.MinTradeIntervalSec)*time.Second {
		return
	}
	e.evaluateEntry(ctx, snap)
}

func (e *Engine) evaluateExit(ctx context.Context, pos *order.Position, snap market.Snapshot) {
	switch EvaluateClose(pos, snap, e.params) {
	case SignalStopLoss:
		log.Printf("strategy: stop loss hit for %s at %.2f (pnl %.2f%%)",
			e.symbol, snap.LastClose, ProfitPct(pos, snap.LastClose))
		if e.executor.ExecuteMarketClose(ctx, e.symbol, pos.Side, pos.Size) {
			e.lastTradeTime = e.now()
		}
	case SignalTakeProfit:
		log.Printf("strategy: take profit for %s at %.2f (pnl %.2f%%)",
			e.symbol, snap.LastClose, ProfitPct(pos, snap.LastClose))
		if e.executor.ExecuteLimitClose(ctx, e.symbol, pos.Side, pos.Size, snap.LastClose) {
			e.lastTradeTime = e.now()
		}
	}
}

func (e *Engine) evaluateEntry(ctx context.Context, snap market.Snapshot) {
	var signal Signal
	switch {
	case ShouldOpenLong(snap, e.params, false):
		signal = SignalOpenLong
	case ShouldOpenShort(snap, e.params, false):
		signal = SignalOpenShort
	default:
		return
	}

	balance, err := e.gateway.GetAccountBalance(ctx)
	if err != nil {
		log.Printf("strategy: balance fetch failed: %v", err)
		return
	}

	entry, stopLoss, takeProfit := EntryPrices(signal, snap.LastClose, e.params)
	size := PositionSize(balance.Available, e.params.PositionSizePct, e.params.Leverage, entry)
	if size <= 0 {
		log.Printf("strategy: computed size is zero (available %.2f), skipping entry", balance.Available)
		return
	}

	side := exchange.HoldLong
	if signal == SignalOpenShort {
		side = exchange.HoldShort
	}
	log.Printf("strategy: %s entry signal for %s: size=%.3f entry=%.2f sl=%.2f tp=%.2f stochK=%.1f vol=%.1f",
		side, e.symbol, size, entry, stopLoss, takeProfit, snap.StochK, snap.LastVolume)

	// The interval gate stamps on the attempt, not the outcome, so a
	// rejected entry does not retrigger every second.
	e.lastTradeTime = e.now()
	if !e.executor.OpenPosition(ctx, e.symbol, side, size, e.params.Leverage,
		stopLoss, takeProfit, exchange.OrderTypeLimit, entry) {
		log.Printf("strategy: entry attempt for %s failed", e.symbol)
	}
}
