package market

import (
	"math"

	market "bitget-trader/pkg/market/bitget"
)

// Snapshot is the derived indicator view of the current window. It is
// recomputed on every call and never stored.
type Snapshot struct {
	EMA7        float64
	EMA25       float64
	EMA200      float64
	PriceChange float64
	StochK      float64
	StochD      float64
	LastClose   float64
	LastVolume  float64
}

// EMA returns the last value of a recursive exponential moving average with
// smoothing 2/(period+1), seeded with the first value of the series.
func EMA(values []float64, period int) float64 {
	if len(values) == 0 || period <= 0 {
		return 0
	}
	alpha := 2.0 / (float64(period) + 1.0)
	ema := values[0]
	for _, v := range values[1:] {
		ema = alpha*v + (1-alpha)*ema
	}
	return ema
}

// rsiSeries computes a rolling-mean RSI per index. Entries without a full
// window of price changes are NaN; a window with zero gains and zero losses
// is NaN as well (undefined ratio).
func rsiSeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	for i := period; i < len(closes); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - closes[j-1]
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
		}
		gain /= float64(period)
		loss /= float64(period)

		switch {
		case loss == 0 && gain == 0:
			// flat window, leave NaN
		case loss == 0:
			out[i] = 100
		default:
			rs := gain / loss
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// rollingMean is a simple moving average with NaN propagation: any NaN in
// the window makes the result NaN, as does an incomplete window.
func rollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	for i := window - 1; i < len(values); i++ {
		sum := 0.0
		ok := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(values[j]) {
				ok = false
				break
			}
			sum += values[j]
		}
		if ok {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// StochRSI computes the smoothed Stochastic RSI (K, D) over the tail of the
// close series. With fewer than 2×period closes, or when the window is
// numerically undefined (flat RSI range), it degrades to the neutral
// midpoint (50, 50) so callers can skip the cycle instead of failing.
func StochRSI(closes []float64, period, smoothK, smoothD int) (float64, float64) {
	if len(closes) < 2*period {
		return 50.0, 50.0
	}

	rsi := rsiSeries(closes, period)

	stoch := make([]float64, len(rsi))
	for i := range stoch {
		stoch[i] = math.NaN()
		if i < period-1 {
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		ok := true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(rsi[j]) {
				ok = false
				break
			}
			lo = math.Min(lo, rsi[j])
			hi = math.Max(hi, rsi[j])
		}
		if !ok || hi == lo {
			continue
		}
		stoch[i] = 100 * (rsi[i] - lo) / (hi - lo)
	}

	k := rollingMean(stoch, smoothK)
	d := rollingMean(k, smoothD)

	lastK, lastD := k[len(k)-1], d[len(d)-1]
	if math.IsNaN(lastK) || math.IsNaN(lastD) {
		return 50.0, 50.0
	}
	return lastK, lastD
}

// ATR is the rolling mean of the True Range over period. Returns 0 when
// fewer than period+1 candles are available.
func ATR(candles []market.Candle, period int) float64 {
	if period <= 0 || len(candles) < period+1 {
		return 0.0
	}
	sum := 0.0
	for i := len(candles) - period; i < len(candles); i++ {
		prevClose := candles[i-1].Close
		tr := candles[i].High - candles[i].Low
		tr = math.Max(tr, math.Abs(candles[i].High-prevClose))
		tr = math.Max(tr, math.Abs(candles[i].Low-prevClose))
		sum += tr
	}
	return sum / float64(period)
}

// Snapshot assembles the technical indicator view over the lookback window.
// The second return is false while the cache holds fewer than lookback
// candles; callers treat that as "not ready", not as an error.
func (c *Cache) Snapshot(lookback int) (Snapshot, bool) {
	candles := c.Recent(lookback)
	if len(candles) < lookback {
		return Snapshot{}, false
	}

	closes := make([]float64, len(candles))
	for i, k := range candles {
		closes[i] = k.Close
	}

	stochK, stochD := StochRSI(closes, 14, 3, 3)
	last := candles[len(candles)-1]

	return Snapshot{
		EMA7:        EMA(closes, 7),
		EMA25:       EMA(closes, 25),
		EMA200:      EMA(closes, 200),
		PriceChange: closes[len(closes)-1] - closes[len(closes)-2],
		StochK:      stochK,
		StochD:      stochD,
		LastClose:   last.Close,
		LastVolume:  last.Volume,
	}, true
}
