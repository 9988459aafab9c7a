package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyuho-lee/tokendex/pkg/token"
)

// txn journals one mutating call so it can commit or revert as a unit:
// undo closures for every in-memory mutation, a ledger snapshot when the
// ledger is revertible, buffered events, and the records to persist.
type txn struct {
	undo []func()

	snap    int
	hasSnap bool

	events  []Event
	touched []*Order // orders whose state changed, in touch order
	trades  []*Trade

	adminDirty bool // fee/whitelist/admin state changed
}

func (e *Engine) begin() *txn {
	tx := &txn{}
	if r, ok := e.ledger.(token.Reverter); ok {
		tx.snap = r.Snapshot()
		tx.hasSnap = true
	}
	return tx
}

// record registers an undo closure. Closures run in reverse order on
// rollback.
func (tx *txn) record(fn func()) { tx.undo = append(tx.undo, fn) }

// emit buffers an event; it is published only if the call commits.
func (tx *txn) emit(ev Event) { tx.events = append(tx.events, ev) }

// touch marks an order for persistence. Duplicates are fine; the store
// writes the final state either way.
func (tx *txn) touch(ord *Order) { tx.touched = append(tx.touched, ord) }

// rollback unwinds every in-memory mutation and, when possible, the token
// transfers made earlier in the same call.
func (e *Engine) rollback(tx *txn) {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	if tx.hasSnap {
		e.ledger.(token.Reverter).RevertTo(tx.snap)
	}
}

// commit persists the call's effects (when a store is attached) and then
// publishes the buffered events. A persistence failure aborts the call the
// same way a settlement failure does.
func (e *Engine) commit(tx *txn) error {
	if e.store != nil && (len(tx.touched) > 0 || len(tx.trades) > 0 || tx.adminDirty) {
		if err := e.store.Commit(tx.touched, tx.trades, e.adminState()); err != nil {
			return fmt.Errorf("engine: persist: %w", err)
		}
	}
	for _, ev := range tx.events {
		if e.sink != nil {
			e.sink.Publish(ev)
		}
	}
	return nil
}

func (e *Engine) adminState() AdminState {
	accrued := make(map[common.Address]int64, len(e.accrued))
	for asset, fee := range e.accrued {
		accrued[asset] = fee
	}
	return AdminState{
		FeeRateBps:     e.feeRateBps,
		FeeCollector:   e.feeCollector,
		TradingEnabled: e.tradingEnabled,
		AccruedFees:    accrued,
	}
}
