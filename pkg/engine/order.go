package engine

import "github.com/ethereum/go-ethereum/common"

// Side of an order: Buy acquires the asset, Sell disposes of it.
type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Valid reports whether s is one of the two defined sides.
func (s Side) Valid() bool { return s == Buy || s == Sell }

// Opposite returns the counter side.
func (s Side) Opposite() Side { return -s }

// Order is a buy or sell intent resting in the engine's arena. Amount is the
// remaining unfilled quantity and only ever decreases while the order is
// active; once Active flips to false it never comes back.
type Order struct {
	ID         uint64         `json:"id"`
	Maker      common.Address `json:"maker"`
	Asset      common.Address `json:"asset"`
	Amount     int64          `json:"amount"`     // remaining quantity, in lots
	LimitPrice int64          `json:"limitPrice"` // per-unit price, in minor currency units
	Side       Side           `json:"side"`
	CreatedAt  int64          `json:"createdAt"` // unix milliseconds, record-keeping only
	Active     bool           `json:"active"`
}

// crosses reports whether o (the triggering order) is price-compatible with
// a resting counter-side order. A buy crosses any sell at or below its
// limit; a sell crosses any buy at or above its limit.
func (o *Order) crosses(resting *Order) bool {
	if o.Side == Buy {
		return o.LimitPrice >= resting.LimitPrice
	}
	return o.LimitPrice <= resting.LimitPrice
}
