package strategy

import (
	"math"

	"bitget-trader/internal/market"
	"bitget-trader/internal/order"
	"bitget-trader/pkg/config"
)

// Signal names the action the rules produced for one evaluation.
type Signal int

const (
	SignalNone Signal = iota
	SignalOpenLong
	SignalOpenShort
	SignalStopLoss
	SignalTakeProfit
)

// ShouldOpenLong reports whether entry conditions for a long hold: volume
// spike, oversold stochastic, price above the long EMA and rising on the
// last candle, with no position held.
func ShouldOpenLong(s market.Snapshot, params config.TradingConfig, inPosition bool) bool {
	if inPosition {
		return false
	}
	return s.LastVolume > params.VolumeThreshold &&
		s.StochK < params.StochRSILow &&
		s.LastClose > s.EMA200 &&
		s.PriceChange > 0
}

// ShouldOpenShort mirrors the long rule: overbought stochastic, price below
// the long EMA and falling on the last candle.
func ShouldOpenShort(s market.Snapshot, params config.TradingConfig, inPosition bool) bool {
	if inPosition {
		return false
	}
	return s.LastVolume > params.VolumeThreshold &&
		s.StochK > params.StochRSIHigh &&
		s.LastClose < s.EMA200 &&
		s.PriceChange < 0
}

// ProfitPct computes the PnL percentage of a position at the current
// price, measured from the exchange break-even price so fees are already
// accounted for, relative to the entry price. A zero entry price yields
// zero.
func ProfitPct(pos *order.Position, currentPrice float64) float64 {
	if pos == nil || pos.EntryPrice == 0 {
		return 0
	}
	base := pos.BreakEvenPrice
	if base == 0 {
		base = pos.EntryPrice
	}
	if pos.IsLong() {
		return (currentPrice - base) / pos.EntryPrice * 100
	}
	return (base - currentPrice) / pos.EntryPrice * 100
}

// EvaluateClose decides whether the open position should be exited:
// SignalStopLoss at or past the loss limit, SignalTakeProfit once the
// profit target is reached and the last candle moves against the position.
func EvaluateClose(pos *order.Position, s market.Snapshot, params config.TradingConfig) Signal {
	pnl := ProfitPct(pos, s.LastClose)
	if pnl <= -params.StopLossPct {
		return SignalStopLoss
	}
	if pnl >= params.TakeProfitPct {
		opposing := (pos.IsLong() && s.PriceChange < 0) || (!pos.IsLong() && s.PriceChange > 0)
		if opposing {
			return SignalTakeProfit
		}
	}
	return SignalNone
}

// PositionSize converts available balance into contract size at the given
// price, floored to three decimals as the venue requires.
func PositionSize(available, sizePct float64, leverage int, price float64) float64 {
	if price <= 0 || available <= 0 {
		return 0
	}
	notional := available * sizePct / 100 * float64(leverage)
	size := notional / price
	return math.Floor(size*1000) / 1000
}

// EntryPrices derives limit entry, stop-loss and take-profit prices from
// the last close. Long entries bid below the close, shorts offer above it,
// and the take-profit target carries a fixed offset past the percentage
// move.
func EntryPrices(side Signal, lastClose float64, params config.TradingConfig) (entry, stopLoss, takeProfit float64) {
	if side == SignalOpenLong {
		entry = lastClose - params.EntryOffset
		stopLoss = entry * (1 - params.StopLossPct/100)
		takeProfit = entry*(1+params.TakeProfitPct/100) + params.TakeProfitOffset
		return entry, stopLoss, takeProfit
	}
	entry = lastClose + params.EntryOffset
	stopLoss = entry * (1 + params.StopLossPct/100)
	takeProfit = entry*(1-params.TakeProfitPct/100) - params.TakeProfitOffset
	return entry, stopLoss, takeProfit
}
