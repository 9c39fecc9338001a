package market

import (
	"testing"

	market "bitget-trader/pkg/market/bitget"
)

func candleAt(ts int64, close float64) market.Candle {
	return market.Candle{Timestamp: ts, Open: close, High: close, Low: close, Close: close, Volume: 1}
}

func TestUpsertEvictsOldestAtCapacity(t *testing.T) {
	c := NewCache(200)
	for ts := int64(1); ts <= 250; ts++ {
		c.Upsert(candleAt(ts*60000, float64(ts)))
		if c.Len() > 200 {
			t.Fatalf("cache exceeded capacity at ts=%d: len=%d", ts, c.Len())
		}
	}
	if c.Len() != 200 {
		t.Fatalf("expected 200 candles, got %d", c.Len())
	}

	// The 50 oldest must be gone; exactly the minimum-timestamp entries.
	recent := c.Recent(200)
	if recent[0].Timestamp != 51*60000 {
		t.Fatalf("oldest surviving timestamp=%d, expected %d", recent[0].Timestamp, 51*60000)
	}
	if recent[len(recent)-1].Timestamp != 250*60000 {
		t.Fatalf("newest timestamp=%d", recent[len(recent)-1].Timestamp)
	}
}

func TestUpsertSameTimestampOverwritesInPlace(t *testing.T) {
	c := NewCache(200)
	c.Upsert(candleAt(60000, 100))
	c.Upsert(candleAt(120000, 101))

	updated := candleAt(120000, 105)
	updated.Volume = 42
	c.Upsert(updated)

	if c.Len() != 2 {
		t.Fatalf("upsert changed cache size: %d", c.Len())
	}
	if got := c.LatestPrice(); got != 105 {
		t.Fatalf("LatestPrice=%v, expected 105", got)
	}
	latest, ok := c.Latest()
	if !ok || latest.Volume != 42 {
		t.Fatalf("latest candle not overwritten: %+v", latest)
	}
}

func TestLatestTracksMaxTimestamp(t *testing.T) {
	c := NewCache(200)
	c.Upsert(candleAt(180000, 3))
	c.Upsert(candleAt(60000, 1)) // out-of-order arrival
	c.Upsert(candleAt(120000, 2))

	if got := c.LatestPrice(); got != 3 {
		t.Fatalf("LatestPrice=%v, expected close of max-timestamp candle", got)
	}
}

func TestLatestPriceEmptyCache(t *testing.T) {
	c := NewCache(200)
	if got := c.LatestPrice(); got != 0.0 {
		t.Fatalf("LatestPrice on empty cache=%v, expected 0.0", got)
	}
}

func TestRecentReturnsAllWhenShort(t *testing.T) {
	c := NewCache(200)
	c.Upsert(candleAt(60000, 1))
	c.Upsert(candleAt(120000, 2))

	got := c.Recent(20)
	if len(got) != 2 {
		t.Fatalf("expected 2 candles without padding, got %d", len(got))
	}
	if got[0].Timestamp > got[1].Timestamp {
		t.Fatal("Recent must be ascending by timestamp")
	}
}

func TestSeedRespectsCapacity(t *testing.T) {
	c := NewCache(5)
	seed := make([]market.Candle, 10)
	for i := range seed {
		seed[i] = candleAt(int64(i+1)*60000, float64(i))
	}
	c.Seed(seed)
	if c.Len() != 5 {
		t.Fatalf("seed overflowed capacity: %d", c.Len())
	}
	recent := c.Recent(5)
	if recent[0].Timestamp != 6*60000 {
		t.Fatalf("seed kept wrong window, oldest=%d", recent[0].Timestamp)
	}
}
