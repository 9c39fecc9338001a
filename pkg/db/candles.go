package db

import (
	"context"
	"database/sql"
	"fmt"

	market "bitget-trader/pkg/market/bitget"
)

const upsertCandleQuery = `
INSERT INTO kline_1m (timestamp, open, high, low, close, volume, quote_volume)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(timestamp) DO UPDATE SET
    open = excluded.open,
    high = excluded.high,
    low = excluded.low,
    close = excluded.close,
    volume = excluded.volume,
    quote_volume = excluded.quote_volume`

// StoreCandle upserts one candle by timestamp.
func (d *Database) StoreCandle(ctx context.Context, k market.Candle) error {
	_, err := d.DB.ExecContext(ctx, upsertCandleQuery,
		k.Timestamp, k.Open, k.High, k.Low, k.Close, k.Volume, k.QuoteVolume)
	if err != nil {
		return fmt.Errorf("store candle %d: %w", k.Timestamp, err)
	}
	return nil
}

// UpsertCandleOp returns the query and args for batched candle writes.
func UpsertCandleOp(k market.Candle) (string, []any) {
	return upsertCandleQuery,
		[]any{k.Timestamp, k.Open, k.High, k.Low, k.Close, k.Volume, k.QuoteVolume}
}

// RecentCandles returns up to limit most-recent candles in ascending
// timestamp order. Used only to seed the in-memory cache at startup.
func (d *Database) RecentCandles(ctx context.Context, limit int) ([]market.Candle, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume, COALESCE(quote_volume, 0)
		FROM kline_1m
		ORDER BY timestamp DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent candles: %w", err)
	}
	defer rows.Close()

	var out []market.Candle
	for rows.Next() {
		var k market.Candle
		if err := rows.Scan(&k.Timestamp, &k.Open, &k.High, &k.Low, &k.Close, &k.Volume, &k.QuoteVolume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows arrive newest-first; callers want ascending time.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

// RecordTrade appends an opened-position row to the trade log.
func (d *Database) RecordTrade(ctx context.Context, id, symbol, side string, size, entry, stopLoss, takeProfit float64, leverage int) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trade_log (id, symbol, side, size, entry_price, stop_loss_price, take_profit_price, leverage)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, symbol, side, size, entry, stopLoss, takeProfit, leverage)
	if err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	return nil
}

// CandleCount reports how many candles are stored.
func (d *Database) CandleCount(ctx context.Context) (int, error) {
	var n int
	err := d.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM kline_1m").Scan(&n)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return n, err
}
