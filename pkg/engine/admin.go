package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// The admin surface: owner-gated configuration. Each operation checks the
// caller against the configured owner, is idempotency-checked, and emits a
// change event on success. Admin mutations persist through the same commit
// path as trading mutations.

func (e *Engine) requireOwner(caller common.Address) error {
	if caller != e.owner {
		return ErrNotOwner
	}
	return nil
}

// WhitelistToken marks an asset as eligible for trading.
func (e *Engine) WhitelistToken(caller, asset common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if e.whitelist[asset] {
		return ErrAlreadyWhitelisted
	}

	e.whitelist[asset] = true
	if e.store != nil {
		if err := e.store.PutWhitelist(asset); err != nil {
			delete(e.whitelist, asset)
			return err
		}
	}
	e.publish(Event{Type: EventTokenWhitelisted, Time: e.clock.Now().UnixMilli(), Asset: &asset})
	e.log.Info("token_whitelisted", zap.String("asset", asset.Hex()))
	return nil
}

// RemoveFromWhitelist marks an asset ineligible for new orders. Existing
// orders in the asset are left untouched and remain matchable.
func (e *Engine) RemoveFromWhitelist(caller, asset common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if !e.whitelist[asset] {
		return ErrNotWhitelisted
	}

	delete(e.whitelist, asset)
	if e.store != nil {
		if err := e.store.DeleteWhitelist(asset); err != nil {
			e.whitelist[asset] = true
			return err
		}
	}
	e.publish(Event{Type: EventTokenRemoved, Time: e.clock.Now().UnixMilli(), Asset: &asset})
	e.log.Info("token_removed_from_whitelist", zap.String("asset", asset.Hex()))
	return nil
}

// SetTradingEnabled flips the global gate on order submission.
func (e *Engine) SetTradingEnabled(caller common.Address, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err := e.requireOwner(caller); err != nil {
		return err
	}

	prev := e.tradingEnabled
	e.tradingEnabled = enabled
	if err := e.saveAdmin(); err != nil {
		e.tradingEnabled = prev
		return err
	}
	e.publish(Event{Type: EventTradingStatus, Time: e.clock.Now().UnixMilli(), TradingEnabled: &enabled})
	e.log.Info("trading_status_changed", zap.Bool("enabled", enabled))
	return nil
}

// SetFeeRate updates the fee rate. Rates above 100 basis points (1%) are
// rejected and the prior rate stays in force.
func (e *Engine) SetFeeRate(caller common.Address, bps int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if bps < 0 || bps > MaxFeeRateBps {
		return ErrFeeTooHigh
	}

	prev := e.feeRateBps
	e.feeRateBps = bps
	if err := e.saveAdmin(); err != nil {
		e.feeRateBps = prev
		return err
	}
	e.publish(Event{Type: EventFeeRateUpdated, Time: e.clock.Now().UnixMilli(), FeeRateBps: &bps})
	e.log.Info("fee_rate_updated", zap.Int64("bps", bps))
	return nil
}

// SetFeeCollector designates the account receiving routed fees.
func (e *Engine) SetFeeCollector(caller, collector common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if collector == (common.Address{}) {
		return ErrInvalidFeeCollector
	}

	prev := e.feeCollector
	e.feeCollector = collector
	if err := e.saveAdmin(); err != nil {
		e.feeCollector = prev
		return err
	}
	e.publish(Event{Type: EventFeeCollectorSet, Time: e.clock.Now().UnixMilli(), FeeCollector: &collector})
	e.log.Info("fee_collector_updated", zap.String("collector", collector.Hex()))
	return nil
}

func (e *Engine) saveAdmin() error {
	if e.store == nil {
		return nil
	}
	return e.store.SaveAdmin(e.adminState())
}

// publish sends a single committed event straight to the sink.
func (e *Engine) publish(ev Event) {
	if e.sink != nil {
		e.sink.Publish(ev)
	}
}
