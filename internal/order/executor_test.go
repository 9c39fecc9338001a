package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bitget-trader/internal/events"
	exchange "bitget-trader/pkg/exchanges/common"
)

// fakeGateway scripts exchange behavior per method and records calls.
type fakeGateway struct {
	mu sync.Mutex

	position *exchange.Position
	// positionOnceOrdered is reported by GetPosition only after PlaceOrder
	// has been called, so the entry precondition sees a flat account while
	// the confirm loop sees the opened position.
	positionOnceOrdered *exchange.Position
	positionErr         error
	placeOrderErr  error
	tpslErrs       map[exchange.PlanType]error
	orderDetail    exchange.OrderDetail
	orderDetailErr error
	pendingOrders  []exchange.PendingOrder
	pendingErr     error
	cancelErr      error
	closeErr       error
	cancelAll      []exchange.CancelResult
	cancelAllErr   error

	placed       []exchange.OrderRequest
	tpslPlaced   []exchange.TpslRequest
	cancelled    []string
	closedCalls  int
	leverageSets []int
}

func (g *fakeGateway) GetAccountBalance(ctx context.Context) (exchange.Balance, error) {
	return exchange.Balance{Available: 1000}, nil
}

func (g *fakeGateway) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.placeOrderErr != nil {
		return exchange.OrderResult{}, g.placeOrderErr
	}
	g.placed = append(g.placed, req)
	return exchange.OrderResult{OrderID: "order-1", ClientOID: req.ClientOID}, nil
}

func (g *fakeGateway) PlaceTpslOrder(ctx context.Context, req exchange.TpslRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tpslPlaced = append(g.tpslPlaced, req)
	if err, ok := g.tpslErrs[req.PlanType]; ok {
		return err
	}
	return nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.cancelled = append(g.cancelled, orderID)
	return nil
}

func (g *fakeGateway) CancelAllPendingOrders(ctx context.Context, symbol string) ([]exchange.CancelResult, error) {
	return g.cancelAll, g.cancelAllErr
}

func (g *fakeGateway) GetOrderDetail(ctx context.Context, symbol, orderID string) (exchange.OrderDetail, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.orderDetail, g.orderDetailErr
}

func (g *fakeGateway) GetPosition(ctx context.Context, symbol string) (*exchange.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.positionErr != nil {
		return nil, g.positionErr
	}
	pos := g.position
	if pos == nil && g.positionOnceOrdered != nil && len(g.placed) > 0 {
		pos = g.positionOnceOrdered
	}
	if pos == nil {
		return nil, nil
	}
	cp := *pos
	return &cp, nil
}

func (g *fakeGateway) GetPendingOrders(ctx context.Context, symbol string) ([]exchange.PendingOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pendingOrders, g.pendingErr
}

func (g *fakeGateway) ClosePosition(ctx context.Context, symbol string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closedCalls++
	if g.closeErr != nil {
		return g.closeErr
	}
	g.position = nil
	g.positionOnceOrdered = nil
	return nil
}

func (g *fakeGateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leverageSets = append(g.leverageSets, leverage)
	return nil
}

// fastConfig mirrors production structure with millisecond timings.
func fastConfig() Config {
	return Config{
		Symbol:        "BTCUSDT",
		MarginCoin:    "USDT",
		FillWait:      RetryPolicy{MaxAttempts: 3, Interval: time.Millisecond},
		ConfirmWait:   RetryPolicy{MaxAttempts: 3, Interval: time.Millisecond},
		Protect:       RetryPolicy{MaxAttempts: 3, Interval: time.Millisecond},
		SettleDelay:   time.Millisecond,
		EntryTimeout:  30 * time.Second,
		CloseTimeout:  20 * time.Second,
		CheckInterval: 10 * time.Second,
	}
}

func newTestExecutor(gw *fakeGateway) *Executor {
	return NewExecutor(gw, events.NewBus(), nil, fastConfig())
}

func TestOpenPositionMarketHappyPath(t *testing.T) {
	gw := &fakeGateway{
		positionOnceOrdered: &exchange.Position{Symbol: "BTCUSDT", HoldSide: exchange.HoldLong, Size: 0.5, EntryPrice: 50000, BreakEvenPrice: 50010},
	}
	ex := newTestExecutor(gw)

	ok := ex.OpenPosition(context.Background(), "BTCUSDT", exchange.HoldLong,
		0.5, 5, 49000, 52500, exchange.OrderTypeMarket, 50000)
	if !ok {
		t.Fatal("expected market entry to succeed")
	}

	pos := ex.Position("BTCUSDT")
	if pos == nil {
		t.Fatal("expected local position record")
	}
	if pos.BreakEvenPrice != 50010 {
		t.Fatalf("break-even not carried from exchange: %v", pos.BreakEvenPrice)
	}
	if pos.StopLossPrice != 49000 || pos.TakeProfitPrice != 52500 {
		t.Fatalf("protective prices not recorded: %+v", pos)
	}
	if len(gw.tpslPlaced) != 2 {
		t.Fatalf("expected stop-loss and take-profit orders, got %d", len(gw.tpslPlaced))
	}
	if gw.tpslPlaced[0].PlanType != exchange.PlanStopLoss || gw.tpslPlaced[1].PlanType != exchange.PlanTakeProfit {
		t.Fatalf("protective order ordering wrong: %+v", gw.tpslPlaced)
	}
}

func TestOpenPositionSkipsWhenPositionExists(t *testing.T) {
	gw := &fakeGateway{position: &exchange.Position{Symbol: "BTCUSDT", HoldSide: exchange.HoldLong, Size: 1}}
	ex := newTestExecutor(gw)

	ok := ex.OpenPosition(context.Background(), "BTCUSDT", exchange.HoldLong,
		0.5, 5, 49000, 52500, exchange.OrderTypeMarket, 50000)
	if ok {
		t.Fatal("entry must be refused while a position exists")
	}
	if len(gw.placed) != 0 {
		t.Fatal("no order should be placed when a position exists")
	}
}

func TestOpenPositionRejectedOrderReturnsFalse(t *testing.T) {
	gw := &fakeGateway{placeOrderErr: errors.New("insufficient margin")}
	ex := newTestExecutor(gw)

	ok := ex.OpenPosition(context.Background(), "BTCUSDT", exchange.HoldShort,
		0.5, 5, 51000, 47500, exchange.OrderTypeMarket, 50000)
	if ok {
		t.Fatal("rejected entry must return false")
	}
	if ex.Position("BTCUSDT") != nil {
		t.Fatal("no local position after rejection")
	}
}

func TestOpenPositionRollsBackWhenTakeProfitFails(t *testing.T) {
	gw := &fakeGateway{
		tpslErrs:            map[exchange.PlanType]error{exchange.PlanTakeProfit: errors.New("plan order rejected")},
		positionOnceOrdered: &exchange.Position{Symbol: "BTCUSDT", HoldSide: exchange.HoldLong, Size: 0.5, EntryPrice: 50000},
	}
	ex := newTestExecutor(gw)

	ok := ex.OpenPosition(context.Background(), "BTCUSDT", exchange.HoldLong,
		0.5, 5, 49000, 52500, exchange.OrderTypeMarket, 50000)
	if ok {
		t.Fatal("entry must fail when take-profit cannot be placed")
	}

	gw.mu.Lock()
	tpAttempts := 0
	for _, req := range gw.tpslPlaced {
		if req.PlanType == exchange.PlanTakeProfit {
			tpAttempts++
		}
	}
	closed := gw.closedCalls
	gw.mu.Unlock()

	if tpAttempts != 3 {
		t.Fatalf("take-profit should be retried 3 times, got %d", tpAttempts)
	}
	if closed != 1 {
		t.Fatalf("rollback must market-close exactly once, got %d calls", closed)
	}
	if ex.Position("BTCUSDT") != nil {
		t.Fatal("no local position may survive a rollback")
	}
}

func TestOpenPositionLimitFillTimeoutCancels(t *testing.T) {
	gw := &fakeGateway{
		orderDetail: exchange.OrderDetail{OrderID: "order-1", State: exchange.StatusLive},
	}
	ex := newTestExecutor(gw)

	ok := ex.OpenPosition(context.Background(), "BTCUSDT", exchange.HoldLong,
		0.5, 5, 49000, 52500, exchange.OrderTypeLimit, 49980)
	if ok {
		t.Fatal("unfilled limit entry must return false")
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.cancelled) != 1 || gw.cancelled[0] != "order-1" {
		t.Fatalf("timed out limit order must be cancelled, got %v", gw.cancelled)
	}
	if ex.PendingCount() != 0 {
		t.Fatal("pending tracking must be cleared after fill timeout")
	}
}

func TestOpenPositionLimitCancelledAtExchange(t *testing.T) {
	gw := &fakeGateway{
		orderDetail: exchange.OrderDetail{OrderID: "order-1", State: exchange.StatusCancelled},
	}
	ex := newTestExecutor(gw)

	ok := ex.OpenPosition(context.Background(), "BTCUSDT", exchange.HoldLong,
		0.5, 5, 49000, 52500, exchange.OrderTypeLimit, 49980)
	if ok {
		t.Fatal("cancelled limit entry must return false")
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.cancelled) != 0 {
		t.Fatal("an already-cancelled order must not be cancelled again")
	}
}

func TestOpenPositionLimitUsesFillPrice(t *testing.T) {
	gw := &fakeGateway{
		orderDetail:         exchange.OrderDetail{OrderID: "order-1", State: exchange.StatusFilled, PriceAvg: 49975.5},
		positionOnceOrdered: &exchange.Position{Symbol: "BTCUSDT", HoldSide: exchange.HoldLong, Size: 0.5, EntryPrice: 49975.5},
	}
	ex := newTestExecutor(gw)

	ok := ex.OpenPosition(context.Background(), "BTCUSDT", exchange.HoldLong,
		0.5, 5, 49000, 52500, exchange.OrderTypeLimit, 49980)
	if !ok {
		t.Fatal("filled limit entry should succeed")
	}
	pos := ex.Position("BTCUSDT")
	if pos == nil || pos.EntryPrice != 49975.5 {
		t.Fatalf("entry price should come from the fill, got %+v", pos)
	}
}

func TestExecuteLimitCloseFallsBackToMarket(t *testing.T) {
	gw := &fakeGateway{placeOrderErr: errors.New("price out of range")}
	ex := newTestExecutor(gw)

	// Both the limit close and its market fallback are rejected.
	ok := ex.ExecuteLimitClose(context.Background(), "BTCUSDT", exchange.HoldLong, 0.5, 52500)
	if ok {
		t.Fatal("both limit and market close failed, must report false")
	}

	gw.mu.Lock()
	gw.placeOrderErr = nil
	gw.mu.Unlock()
	ok = ex.ExecuteLimitClose(context.Background(), "BTCUSDT", exchange.HoldLong, 0.5, 52500)
	if !ok {
		t.Fatal("limit close should succeed once orders are accepted")
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	last := gw.placed[len(gw.placed)-1]
	if last.TradeSide != exchange.TradeClose || last.Side != exchange.SideSell || last.OrderType != exchange.OrderTypeLimit {
		t.Fatalf("limit close request malformed: %+v", last)
	}
	if ex.PendingCount() != 1 {
		t.Fatal("limit close must be tracked for timeout conversion")
	}
}

func TestExecuteMarketCloseClearsLocalState(t *testing.T) {
	gw := &fakeGateway{}
	ex := newTestExecutor(gw)
	ex.mu.Lock()
	ex.positions["BTCUSDT"] = &Position{Symbol: "BTCUSDT", Side: exchange.HoldShort, Size: 0.5}
	ex.mu.Unlock()

	if !ex.ExecuteMarketClose(context.Background(), "BTCUSDT", exchange.HoldShort, 0.5) {
		t.Fatal("market close should succeed")
	}
	if ex.Position("BTCUSDT") != nil {
		t.Fatal("local position must be cleared after market close")
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	last := gw.placed[len(gw.placed)-1]
	if last.Side != exchange.SideBuy || last.TradeSide != exchange.TradeClose {
		t.Fatalf("closing a short must buy back: %+v", last)
	}
}

func TestCancelAllSymbolOrdersRequiresFullSuccess(t *testing.T) {
	gw := &fakeGateway{cancelAll: []exchange.CancelResult{
		{OrderID: "1"},
		{OrderID: "2", Err: errors.New("already filled")},
	}}
	ex := newTestExecutor(gw)
	ex.track(&PendingOrder{OrderID: "1", Symbol: "BTCUSDT", CreatedAt: time.Now()})
	ex.track(&PendingOrder{OrderID: "2", Symbol: "BTCUSDT", CreatedAt: time.Now()})

	if ex.CancelAllSymbolOrders(context.Background(), "BTCUSDT") {
		t.Fatal("partial cancellation must report failure")
	}
	if ex.PendingCount() != 2 {
		t.Fatal("tracking must be kept when cancellation is partial")
	}

	gw.cancelAll = []exchange.CancelResult{{OrderID: "1"}, {OrderID: "2"}}
	if !ex.CancelAllSymbolOrders(context.Background(), "BTCUSDT") {
		t.Fatal("full cancellation must report success")
	}
	if ex.PendingCount() != 0 {
		t.Fatal("tracking must be purged after full cancellation")
	}
}
