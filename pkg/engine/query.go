package engine

import "github.com/ethereum/go-ethereum/common"

// The query surface is read-only and tolerant: arbitrary pagination
// arguments, including out-of-range ones, yield an empty result rather than
// an error. Returned slices are copies; callers cannot reach the arena.

// Order returns a copy of the order with the given id.
func (e *Engine) Order(id uint64) (Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ord, ok := e.orders[id]
	if !ok {
		return Order{}, false
	}
	return *ord, true
}

// Trade returns a copy of the trade with the given id.
func (e *Engine) Trade(id uint64) (Trade, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.trades[id]
	if !ok {
		return Trade{}, false
	}
	return *t, true
}

// UserBuyOrders returns the ids of every buy order the account ever
// submitted, in submission order.
func (e *Engine) UserBuyOrders(maker common.Address) []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uint64(nil), e.buyOrders[maker]...)
}

// UserSellOrders returns the ids of every sell order the account ever
// submitted, in submission order.
func (e *Engine) UserSellOrders(maker common.Address) []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uint64(nil), e.sellOrders[maker]...)
}

// UserTrades returns the ids of every trade the account participated in,
// in execution order.
func (e *Engine) UserTrades(acct common.Address) []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uint64(nil), e.userTrades[acct]...)
}

// ActiveOrders returns up to count active orders for the asset and side,
// skipping the first start matches, in id order.
func (e *Engine) ActiveOrders(asset common.Address, side Side, start, count int) []Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	if start < 0 || count <= 0 {
		return nil
	}

	var out []Order
	skipped := 0
	for id := uint64(1); id <= e.lastOrderID; id++ {
		ord, ok := e.orders[id]
		if !ok || !ord.Active || ord.Asset != asset || ord.Side != side {
			continue
		}
		if skipped < start {
			skipped++
			continue
		}
		out = append(out, *ord)
		if len(out) == count {
			break
		}
	}
	return out
}

// IsWhitelisted reports whether an asset is currently eligible for orders.
func (e *Engine) IsWhitelisted(asset common.Address) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.whitelist[asset]
}

// Whitelist returns the currently eligible assets, unordered.
func (e *Engine) Whitelist() []common.Address {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]common.Address, 0, len(e.whitelist))
	for asset := range e.whitelist {
		out = append(out, asset)
	}
	return out
}

// AccruedFees returns the total fee computed to date for an asset.
func (e *Engine) AccruedFees(asset common.Address) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accrued[asset]
}

// AdminConfig is the externally visible admin configuration.
type AdminConfig struct {
	Owner          common.Address `json:"owner"`
	Exchange       common.Address `json:"exchange"`
	FeeCollector   common.Address `json:"feeCollector"`
	FeeRateBps     int64          `json:"feeRateBps"`
	TradingEnabled bool           `json:"tradingEnabled"`
}

// Admin returns the current admin configuration.
func (e *Engine) Admin() AdminConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return AdminConfig{
		Owner:          e.owner,
		Exchange:       e.exchange,
		FeeCollector:   e.feeCollector,
		FeeRateBps:     e.feeRateBps,
		TradingEnabled: e.tradingEnabled,
	}
}
