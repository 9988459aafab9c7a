package engine

import "github.com/ethereum/go-ethereum/common"

// EventType names one observable state transition.
type EventType string

const (
	EventOrderCreated     EventType = "order_created"
	EventOrderCancelled   EventType = "order_cancelled"
	EventOrderFilled      EventType = "order_filled"
	EventTradeExecuted    EventType = "trade_executed"
	EventTokenWhitelisted EventType = "token_whitelisted"
	EventTokenRemoved     EventType = "token_removed_from_whitelist"
	EventTradingStatus    EventType = "trading_status_changed"
	EventFeeRateUpdated   EventType = "fee_rate_updated"
	EventFeeCollectorSet  EventType = "fee_collector_updated"
)

// Event is an append-only record for external indexers and UIs, one per
// state transition. Events for a call are buffered and published only after
// the whole call commits; a failed call emits nothing.
//
// Order carries a value copy taken at emission time, so later fills never
// rewrite history; Trade records are immutable and shared directly.
type Event struct {
	Type EventType `json:"type"`
	Time int64     `json:"ts"` // unix milliseconds

	Order *Order `json:"order,omitempty"`
	Trade *Trade `json:"trade,omitempty"`

	Asset          *common.Address `json:"asset,omitempty"`
	TradingEnabled *bool           `json:"tradingEnabled,omitempty"`
	FeeRateBps     *int64          `json:"feeRateBps,omitempty"`
	FeeCollector   *common.Address `json:"feeCollector,omitempty"`
}

// EventSink receives committed events. Publish must not block the engine;
// implementations buffer or drop.
type EventSink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(ev Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }
