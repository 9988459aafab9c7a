package engine

import "context"

// match runs the matching pass for a freshly stored order: a linear scan
// over all order ids from 1 to the current counter, settling against the
// first compatible counter-side order and continuing until the trigger is
// filled or the scan is exhausted.
//
// This is deliberately not price-time priority and deliberately O(n) over
// historical ids, inactive ones included. Which counterparty matches first
// is economic behavior users can observe, so the scan order must not change
// without sign-off.
func (e *Engine) match(ctx context.Context, tx *txn, trigger *Order) error {
	if !trigger.Active {
		// Cannot happen for a newly created order; checked anyway.
		return nil
	}

	for id := uint64(1); id <= e.lastOrderID; id++ {
		if id == trigger.ID {
			continue
		}
		cand, ok := e.orders[id]
		if !ok || !cand.Active {
			continue
		}
		if cand.Asset != trigger.Asset || cand.Side == trigger.Side {
			continue
		}
		if !trigger.crosses(cand) {
			continue
		}

		buy, sell := trigger, cand
		if trigger.Side == Sell {
			buy, sell = cand, trigger
		}
		if err := e.settle(ctx, tx, buy, sell); err != nil {
			return err
		}
		if !trigger.Active {
			return nil
		}
	}
	return nil
}
