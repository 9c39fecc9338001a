package bitget

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval     = 20 * time.Second
	reconnectBackoff = 5 * time.Second
)

// StreamClient manages candle streaming from the Bitget public websocket.
// Reconnection and resubscription live here; consumers only see a channel
// that keeps delivering after transport interruptions.
type StreamClient struct {
	StreamURL string
	dialer    *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewStreamClient builds a websocket client for the public mix feed.
func NewStreamClient() *StreamClient {
	return &StreamClient{
		StreamURL: "wss://ws.bitget.com/v2/ws/public",
		dialer:    websocket.DefaultDialer,
	}
}

type subscribeArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstID   string `json:"instId"`
}

type subscribeMsg struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type candleMsg struct {
	Action string          `json:"action"`
	Arg    subscribeArg    `json:"arg"`
	Data   [][]json.Number `json:"data"`
}

// SubscribeCandles streams 1m candles for the symbol until ctx is cancelled.
// The returned channel stays open across reconnects and closes only when the
// context ends.
func (c *StreamClient) SubscribeCandles(ctx context.Context, symbol string) <-chan Candle {
	out := make(chan Candle, 100)

	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}
			if err := c.streamOnce(ctx, symbol, out); err != nil {
				log.Printf("bitget ws: stream interrupted: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectBackoff):
			}
		}
	}()

	return out
}

// streamOnce dials, subscribes and pumps messages until the connection drops.
func (c *StreamClient) streamOnce(ctx context.Context, symbol string, out chan<- Candle) error {
	conn, _, err := c.dialer.DialContext(ctx, c.StreamURL, nil)
	if err != nil {
		return fmt.Errorf("dial bitget ws: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer conn.Close()

	sub := subscribeMsg{
		Op: "subscribe",
		Args: []subscribeArg{{
			InstType: "USDT-FUTURES",
			Channel:  "candle1m",
			InstID:   symbol,
		}},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Printf("bitget ws: subscribed candle1m %s", symbol)

	// Keep-alive pings; the server answers with a literal "pong".
	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				err := conn.WriteMessage(websocket.TextMessage, []byte("ping"))
				c.mu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if string(msg) == "pong" {
			continue
		}

		candles, err := ParseCandleMessage(msg)
		if err != nil {
			log.Printf("bitget ws: parse error: %v", err)
			continue
		}
		for _, k := range candles {
			select {
			case out <- k:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Close tears down the active connection, if any.
func (c *StreamClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = c.conn.Close()
		c.conn = nil
	}
}

// ParseCandleMessage decodes a candle push. Non-candle frames (subscription
// acks, other channels) yield no candles and no error.
func ParseCandleMessage(msg []byte) ([]Candle, error) {
	var parsed candleMsg
	if err := json.Unmarshal(msg, &parsed); err != nil {
		return nil, fmt.Errorf("decode candle frame: %w", err)
	}
	if parsed.Arg.Channel != "candle1m" || len(parsed.Data) == 0 {
		return nil, nil
	}

	candles := make([]Candle, 0, len(parsed.Data))
	for _, row := range parsed.Data {
		if len(row) < 6 {
			continue
		}
		ts, err := strconv.ParseInt(row[0].String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("candle timestamp %q: %w", row[0], err)
		}
		k := Candle{
			Timestamp: ts,
			Open:      num(row[1]),
			High:      num(row[2]),
			Low:       num(row[3]),
			Close:     num(row[4]),
			Volume:    num(row[5]),
		}
		if len(row) >= 7 {
			k.QuoteVolume = num(row[6])
		}
		candles = append(candles, k)
	}
	return candles, nil
}

func num(n json.Number) float64 {
	f, _ := n.Float64()
	return f
}
