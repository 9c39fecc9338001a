package bitget

// Candle is a single 1-minute OHLCV bar keyed by its open timestamp.
type Candle struct {
	Timestamp   int64 // ms, unique key
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      float64 // base asset volume
	QuoteVolume float64 // optional, 0 when the feed omits it
}
