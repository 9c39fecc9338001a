package market

import (
	"context"
	"log"

	"bitget-trader/internal/events"
	"bitget-trader/internal/persistence"
	"bitget-trader/pkg/db"
	market "bitget-trader/pkg/market/bitget"
)

// Feed is the ingestion adapter: it consumes streamed candle updates,
// upserts them into the cache (single writer path), archives them through
// the batch writer and publishes updates on the bus. Reconnection lives in
// the stream client, not here.
type Feed struct {
	Stream *market.StreamClient
	Cache  *Cache
	Bus    *events.Bus
	Writer *persistence.BatchWriter
	Symbol string
}

// Start begins streaming candles for the configured symbol.
func (f *Feed) Start(ctx context.Context) {
	if f.Stream == nil || f.Cache == nil {
		log.Println("market feed not fully configured; skipping start")
		return
	}

	ch := f.Stream.SubscribeCandles(ctx, f.Symbol)
	go func() {
		for k := range ch {
			f.Cache.Upsert(k)
			if f.Writer != nil {
				query, args := db.UpsertCandleOp(k)
				f.Writer.WriteQuery(query, args...)
			}
			if f.Bus != nil {
				f.Bus.Publish(events.EventCandleUpdate, k)
			}
		}
	}()
}

// SeedFromStore loads the most recent stored candles into the cache so
// indicators are available shortly after startup.
func (f *Feed) SeedFromStore(ctx context.Context, database *db.Database, limit int) {
	if database == nil {
		return
	}
	candles, err := database.RecentCandles(ctx, limit)
	if err != nil {
		log.Printf("market feed: seed from store failed: %v", err)
		return
	}
	f.Cache.Seed(candles)
	log.Printf("market feed: seeded cache with %d candles", len(candles))
}
