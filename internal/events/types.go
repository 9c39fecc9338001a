package events

// Event enumerates high-level topics inside the trading engine.
type Event string

const (
	EventCandleUpdate   Event = "candle_update"
	EventOrderSubmitted Event = "order.submitted"
	EventOrderFilled    Event = "order.filled"
	EventOrderRejected  Event = "order.rejected"
	EventOrderCancelled Event = "order.cancelled"
	EventPositionOpened Event = "position.opened"
	EventPositionClosed Event = "position.closed"
	EventRiskAlert      Event = "risk_alert"
)
