package bitget

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"bitget-trader/pkg/exchanges/common"
)

// Config holds Bitget API credentials and venue settings.
type Config struct {
	APIKey      string
	SecretKey   string
	Passphrase  string
	ProductType string // USDT-FUTURES
	MarginCoin  string // USDT
	BaseURL     string // override for tests
}

// Client is a signed REST client for the Bitget v2 mix (futures) API.
// It implements common.Gateway.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	pacer      *rate.Limiter
	usage      *common.RateLimiter
}

// NewClient builds a futures REST client.
func NewClient(cfg Config) *Client {
	base := "https://api.bitget.com"
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	if cfg.ProductType == "" {
		cfg.ProductType = "USDT-FUTURES"
	}
	if cfg.MarginCoin == "" {
		cfg.MarginCoin = "USDT"
	}
	return &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		pacer:      rate.NewLimiter(rate.Limit(10), 10), // 10 req/s per endpoint group
		usage:      common.NewRateLimiter(600, time.Minute),
	}
}

// GetAccountBalance returns the futures margin account for the margin coin.
func (c *Client) GetAccountBalance(ctx context.Context) (common.Balance, error) {
	q := url.Values{}
	q.Set("productType", c.cfg.ProductType)

	var data []accountData
	if err := c.doGet(ctx, "/api/v2/mix/account/accounts", q, &data); err != nil {
		return common.Balance{}, err
	}
	for _, a := range data {
		if a.MarginCoin != c.cfg.MarginCoin {
			continue
		}
		return common.Balance{
			Available:    toFloat(a.Available),
			Equity:       toFloat(a.AccountEquity),
			UnrealizedPL: toFloat(a.UnrealizedPL),
		}, nil
	}
	return common.Balance{}, fmt.Errorf("bitget: no %s account in response", c.cfg.MarginCoin)
}

// PlaceOrder submits a futures order.
func (c *Client) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	body := map[string]string{
		"symbol":      req.Symbol,
		"productType": c.cfg.ProductType,
		"marginCoin":  c.marginCoin(req.MarginCoin),
		"marginMode":  "isolated",
		"side":        string(req.Side),
		"tradeSide":   string(req.TradeSide),
		"size":        formatFloat(req.Size),
		"orderType":   string(req.OrderType),
	}
	if req.OrderType == common.OrderTypeLimit && req.Price > 0 {
		body["price"] = formatFloat(req.Price)
		body["force"] = "gtc"
	}
	if req.TriggerPrice > 0 {
		body["triggerPrice"] = formatFloat(req.TriggerPrice)
	}
	if req.ClientOID != "" {
		body["clientOid"] = req.ClientOID
	}
	if req.ReduceOnly {
		body["reduceOnly"] = "YES"
	}

	var data orderData
	if err := c.doPost(ctx, "/api/v2/mix/order/place-order", body, &data); err != nil {
		return common.OrderResult{}, err
	}
	return common.OrderResult{OrderID: data.OrderID, ClientOID: data.ClientOID}, nil
}

// PlaceTpslOrder places a position-level stop-loss or take-profit plan order.
func (c *Client) PlaceTpslOrder(ctx context.Context, req common.TpslRequest) error {
	body := map[string]string{
		"symbol":       req.Symbol,
		"productType":  c.cfg.ProductType,
		"marginCoin":   c.marginCoin(req.MarginCoin),
		"planType":     string(req.PlanType),
		"triggerPrice": formatFloat(req.TriggerPrice),
		"triggerType":  "mark_price",
		"holdSide":     string(req.HoldSide),
		"size":         formatFloat(req.Size),
	}
	return c.doPost(ctx, "/api/v2/mix/order/place-tpsl-order", body, nil)
}

// CancelOrder cancels a single pending order.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	body := map[string]string{
		"symbol":      symbol,
		"productType": c.cfg.ProductType,
		"orderId":     orderID,
	}
	return c.doPost(ctx, "/api/v2/mix/order/cancel-order", body, nil)
}

// CancelAllPendingOrders cancels every pending order for the symbol and
// reports per-order outcomes.
func (c *Client) CancelAllPendingOrders(ctx context.Context, symbol string) ([]common.CancelResult, error) {
	body := map[string]string{
		"symbol":      symbol,
		"productType": c.cfg.ProductType,
		"marginCoin":  c.cfg.MarginCoin,
	}
	var data cancelBatchData
	if err := c.doPost(ctx, "/api/v2/mix/order/cancel-all-orders", body, &data); err != nil {
		return nil, err
	}

	results := make([]common.CancelResult, 0, len(data.SuccessList)+len(data.FailureList))
	for _, s := range data.SuccessList {
		results = append(results, common.CancelResult{OrderID: s.OrderID})
	}
	for _, f := range data.FailureList {
		results = append(results, common.CancelResult{OrderID: f.OrderID, Err: errors.New(f.ErrMsg)})
	}
	return results, nil
}

// GetOrderDetail fetches order state by ID.
func (c *Client) GetOrderDetail(ctx context.Context, symbol, orderID string) (common.OrderDetail, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("productType", c.cfg.ProductType)
	q.Set("orderId", orderID)

	var data orderDetailData
	if err := c.doGet(ctx, "/api/v2/mix/order/detail", q, &data); err != nil {
		return common.OrderDetail{}, err
	}
	return common.OrderDetail{
		OrderID:   data.OrderID,
		State:     common.NormalizeStatus(data.State),
		PriceAvg:  toFloat(data.PriceAvg),
		Size:      toFloat(data.Size),
		FilledQty: toFloat(data.BaseVolume),
	}, nil
}

// GetPosition returns the current position for the symbol, or nil when flat.
func (c *Client) GetPosition(ctx context.Context, symbol string) (*common.Position, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("productType", c.cfg.ProductType)
	q.Set("marginCoin", c.cfg.MarginCoin)

	var data []positionData
	if err := c.doGet(ctx, "/api/v2/mix/position/single-position", q, &data); err != nil {
		return nil, err
	}
	for _, p := range data {
		size := toFloat(p.Total)
		if size == 0 {
			continue
		}
		return &common.Position{
			Symbol:           p.Symbol,
			HoldSide:         common.HoldSide(p.HoldSide),
			Size:             size,
			EntryPrice:       toFloat(p.OpenPriceAvg),
			BreakEvenPrice:   toFloat(p.BreakEvenPrice),
			MarkPrice:        toFloat(p.MarkPrice),
			Leverage:         int(toFloat(p.Leverage)),
			UnrealizedPL:     toFloat(p.UnrealizedPL),
			MarginSize:       toFloat(p.MarginSize),
			LiquidationPrice: toFloat(p.LiquidationPrice),
			AchievedProfits:  toFloat(p.AchievedProfits),
			MarginMode:       p.MarginMode,
			CreatedAt:        toInt64(p.CTime),
		}, nil
	}
	return nil, nil
}

// GetPendingOrders lists unfilled orders for the symbol.
func (c *Client) GetPendingOrders(ctx context.Context, symbol string) ([]common.PendingOrder, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("productType", c.cfg.ProductType)

	var data pendingOrdersData
	if err := c.doGet(ctx, "/api/v2/mix/order/orders-pending", q, &data); err != nil {
		return nil, err
	}
	orders := make([]common.PendingOrder, 0, len(data.EntrustedList))
	for _, o := range data.EntrustedList {
		orders = append(orders, common.PendingOrder{
			OrderID:   o.OrderID,
			Symbol:    o.Symbol,
			Side:      common.Side(o.Side),
			TradeSide: common.TradeSide(o.TradeSide),
			Size:      toFloat(o.Size),
			Price:     toFloat(o.Price),
			OrderType: common.OrderType(o.OrderType),
			CreatedAt: toInt64(o.CTime),
		})
	}
	return orders, nil
}

// ClosePosition flash-closes all positions for the symbol at market.
func (c *Client) ClosePosition(ctx context.Context, symbol string) error {
	body := map[string]string{
		"symbol":      symbol,
		"productType": c.cfg.ProductType,
	}
	return c.doPost(ctx, "/api/v2/mix/order/close-positions", body, nil)
}

// SetLeverage sets position leverage for the symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	body := map[string]string{
		"symbol":      symbol,
		"productType": c.cfg.ProductType,
		"marginCoin":  c.cfg.MarginCoin,
		"leverage":    strconv.Itoa(leverage),
	}
	return c.doPost(ctx, "/api/v2/mix/account/set-leverage", body, nil)
}

func (c *Client) marginCoin(override string) string {
	if override != "" {
		return override
	}
	return c.cfg.MarginCoin
}

func (c *Client) doGet(ctx context.Context, path string, query url.Values, out any) error {
	requestPath := path
	if enc := query.Encode(); enc != "" {
		requestPath += "?" + enc
	}
	return c.do(ctx, http.MethodGet, requestPath, nil, out)
}

func (c *Client) doPost(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, payload, out)
}

// do signs and sends one request, decoding the envelope and the data field.
func (c *Client) do(ctx context.Context, method, requestPath string, body []byte, out any) error {
	if c.cfg.APIKey == "" || c.cfg.SecretKey == "" || c.cfg.Passphrase == "" {
		return errors.New("bitget: API key, secret and passphrase required")
	}
	if err := c.pacer.Wait(ctx); err != nil {
		return err
	}
	c.usage.Record()

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, reader)
	if err != nil {
		return err
	}
	req.Header.Set("ACCESS-KEY", c.cfg.APIKey)
	req.Header.Set("ACCESS-SIGN", sign(timestamp, method, requestPath, string(body), c.cfg.SecretKey))
	req.Header.Set("ACCESS-TIMESTAMP", timestamp)
	req.Header.Set("ACCESS-PASSPHRASE", c.cfg.Passphrase)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("locale", "en-US")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		return fmt.Errorf("bitget %s %s status %d: %s", method, requestPath, res.StatusCode, string(raw))
	}

	var envelope struct {
		apiResponse
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Code != codeOK {
		return &APIError{Code: envelope.Code, Msg: envelope.Msg}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// sign builds the ACCESS-SIGN header: base64(hmac-sha256(ts+method+path+body)).
func sign(timestamp, method, requestPath, body, secret string) string {
	message := timestamp + strings.ToUpper(method) + requestPath + body
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
