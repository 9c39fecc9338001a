package order

import (
	"context"
	"log"
	"time"

	exchange "bitget-trader/pkg/exchanges/common"
)

// RunPendingReconciler runs ReconcilePendingOrders every CheckInterval
// until ctx ends.
func (e *Executor) RunPendingReconciler(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.ReconcilePendingOrders(ctx)
		}
	}
}

// ReconcilePendingOrders runs one reconciliation pass against the exchange:
// orders tracked locally but gone at the exchange are dropped as filled,
// stale close orders are converted to market closes, stale entry orders are
// cancelled, and exchange orders not tracked locally are adopted.
func (e *Executor) ReconcilePendingOrders(ctx context.Context) {
	remote, err := e.gateway.GetPendingOrders(ctx, e.cfg.Symbol)
	if err != nil {
		log.Printf("reconciler: pending order fetch failed: %v", err)
		return
	}

	remoteByID := make(map[string]exchange.PendingOrder, len(remote))
	for _, o := range remote {
		remoteByID[o.OrderID] = o
	}

	now := e.now()

	e.mu.Lock()
	local := make([]*PendingOrder, 0, len(e.pending))
	for _, o := range e.pending {
		local = append(local, o)
	}
	e.mu.Unlock()

	// Orders resolved during this pass must not be re-adopted from the
	// snapshot taken above.
	handled := make(map[string]bool)

	for _, o := range local {
		handled[o.OrderID] = true
		if _, exists := remoteByID[o.OrderID]; !exists {
			// Gone at the exchange means it filled or was cancelled
			// externally; either way local tracking is done.
			log.Printf("reconciler: order %s no longer pending at exchange, dropping", o.OrderID)
			e.untrack(o.OrderID)
			continue
		}

		age := o.Age(now)
		switch {
		case o.IsClose && age > e.cfg.CloseTimeout:
			log.Printf("reconciler: close order %s pending %s, converting to market close", o.OrderID, age.Round(time.Second))
			if err := e.gateway.CancelOrder(ctx, o.Symbol, o.OrderID); err != nil {
				log.Printf("reconciler: cancel stale close %s failed: %v", o.OrderID, err)
				continue
			}
			e.untrack(o.OrderID)
			hold := exchange.HoldLong
			if o.Side == exchange.SideBuy {
				// Closing a short buys back; invert to recover the hold side.
				hold = exchange.HoldShort
			}
			if !e.ExecuteMarketClose(ctx, o.Symbol, hold, o.Size) {
				log.Printf("reconciler: market close fallback for %s failed", o.OrderID)
			}

		case !o.IsClose && age > e.cfg.EntryTimeout:
			log.Printf("reconciler: entry order %s pending %s, cancelling", o.OrderID, age.Round(time.Second))
			if err := e.gateway.CancelOrder(ctx, o.Symbol, o.OrderID); err != nil {
				log.Printf("reconciler: cancel stale entry %s failed: %v", o.OrderID, err)
				continue
			}
			e.untrack(o.OrderID)
			e.mu.Lock()
			_, hadPos := e.positions[o.Symbol]
			e.mu.Unlock()
			if hadPos {
				e.MarkPositionClosed(o.Symbol)
			}
		}
	}

	// Adopt exchange orders this process does not know about, e.g. after a
	// restart, so they age out under the same timeouts.
	e.mu.Lock()
	for id, ro := range remoteByID {
		if handled[id] {
			continue
		}
		if _, tracked := e.pending[id]; tracked {
			continue
		}
		created := now
		if ro.CreatedAt > 0 {
			created = time.UnixMilli(ro.CreatedAt)
		}
		e.pending[id] = &PendingOrder{
			OrderID:   id,
			Symbol:    ro.Symbol,
			Side:      ro.Side,
			Size:      ro.Size,
			IsClose:   ro.TradeSide == exchange.TradeClose,
			OrderType: ro.OrderType,
			CreatedAt: created,
		}
		log.Printf("reconciler: adopted untracked order %s (%s %s)", id, ro.TradeSide, ro.OrderType)
	}
	e.mu.Unlock()
}
