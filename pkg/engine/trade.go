package engine

import "github.com/ethereum/go-ethereum/common"

// Trade is one executed settlement between a buy and a sell order. Trades
// are immutable once created; together they form the append-only audit log
// of the exchange. Buyer and seller are denormalized from the two orders at
// execution time so the record stands on its own.
type Trade struct {
	ID          uint64         `json:"id"`
	BuyOrderID  uint64         `json:"buyOrderId"`
	SellOrderID uint64         `json:"sellOrderId"`
	Buyer       common.Address `json:"buyer"`
	Seller      common.Address `json:"seller"`
	Asset       common.Address `json:"asset"`
	Amount      int64          `json:"amount"`
	Price       int64          `json:"price"` // the seller's limit price
	Fee         int64          `json:"fee"`   // computed fee in minor currency units
	Timestamp   int64          `json:"timestamp"`
}

// Notional returns the quote value of the trade (amount × price).
func (t *Trade) Notional() int64 { return t.Amount * t.Price }
