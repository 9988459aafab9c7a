package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// settle executes one matched (buy, sell) pair: asset transfer, fee
// computation, order bookkeeping and the trade record. All of it is part of
// the caller's transaction; any failure aborts the enclosing submit.
//
// The preconditions are internal invariants, not user errors: the matcher
// only hands settle active, same-asset, opposite-side pairs.
func (e *Engine) settle(ctx context.Context, tx *txn, buy, sell *Order) error {
	switch {
	case !buy.Active || !sell.Active:
		return fmt.Errorf("engine: settle invariant: inactive order (buy=%d sell=%d)", buy.ID, sell.ID)
	case buy.Side != Buy || sell.Side != Sell:
		return fmt.Errorf("engine: settle invariant: side mismatch (buy=%d sell=%d)", buy.ID, sell.ID)
	case buy.Asset != sell.Asset:
		return fmt.Errorf("engine: settle invariant: asset mismatch (buy=%d sell=%d)", buy.ID, sell.ID)
	}

	amount := min(buy.Amount, sell.Amount)
	// The resting sell limit is always the execution price: price
	// improvement accrues to the buyer, never the seller.
	price := sell.LimitPrice
	fee := amount * price * e.feeRateBps / feeDenominator

	// The transfer goes first so a ledger refusal leaves nothing to unwind
	// for this pair.
	if err := e.ledger.TransferFrom(ctx, buy.Asset, sell.Maker, buy.Maker, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if fee > 0 {
		if err := e.fees.Collect(ctx, e.ledger, buy.Asset, buy.Maker, sell.Maker, e.feeCollector, fee); err != nil {
			return fmt.Errorf("%w: fee routing: %v", ErrTransferFailed, err)
		}
		e.addAccrued(tx, buy.Asset, fee)
	}

	e.fill(tx, buy, amount)
	e.fill(tx, sell, amount)

	now := e.clock.Now().UnixMilli()
	trade := &Trade{
		ID:          e.lastTradeID + 1,
		BuyOrderID:  buy.ID,
		SellOrderID: sell.ID,
		Buyer:       buy.Maker,
		Seller:      sell.Maker,
		Asset:       buy.Asset,
		Amount:      amount,
		Price:       price,
		Fee:         fee,
		Timestamp:   now,
	}
	e.addTrade(tx, trade)

	tx.emit(Event{Type: EventTradeExecuted, Time: now, Trade: trade})
	tx.emit(Event{Type: EventOrderFilled, Time: now, Order: copyOrder(buy), Trade: trade})
	tx.emit(Event{Type: EventOrderFilled, Time: now, Order: copyOrder(sell), Trade: trade})

	e.log.Info("trade_executed",
		zap.Uint64("trade", trade.ID),
		zap.Uint64("buy_order", buy.ID),
		zap.Uint64("sell_order", sell.ID),
		zap.String("asset", trade.Asset.Hex()),
		zap.Int64("amount", amount),
		zap.Int64("price", price),
		zap.Int64("fee", fee))
	return nil
}

// fill decrements an order's remaining amount and deactivates it when it
// reaches zero, journaled. amount never exceeds ord.Amount here.
func (e *Engine) fill(tx *txn, ord *Order, amount int64) {
	prevAmount, prevActive := ord.Amount, ord.Active
	tx.record(func() { ord.Amount, ord.Active = prevAmount, prevActive })

	ord.Amount -= amount
	if ord.Amount == 0 {
		ord.Active = false
	}
	tx.touch(ord)
}

// addTrade appends the trade record and both participants' trade indices,
// journaled.
func (e *Engine) addTrade(tx *txn, trade *Trade) {
	prev := e.lastTradeID
	tx.record(func() { e.lastTradeID = prev })
	e.lastTradeID = trade.ID

	e.trades[trade.ID] = trade
	tx.record(func() { delete(e.trades, trade.ID) })
	tx.trades = append(tx.trades, trade)

	e.appendUserTrade(tx, trade.Buyer, trade.ID)
	if trade.Seller != trade.Buyer {
		e.appendUserTrade(tx, trade.Seller, trade.ID)
	}
}

func (e *Engine) appendUserTrade(tx *txn, acct common.Address, id uint64) {
	n := len(e.userTrades[acct])
	tx.record(func() { e.userTrades[acct] = e.userTrades[acct][:n] })
	e.userTrades[acct] = append(e.userTrades[acct], id)
}

func (e *Engine) addAccrued(tx *txn, asset common.Address, fee int64) {
	prev, had := e.accrued[asset]
	tx.record(func() {
		if had {
			e.accrued[asset] = prev
		} else {
			delete(e.accrued, asset)
		}
	})
	e.accrued[asset] += fee
	tx.adminDirty = true
}
