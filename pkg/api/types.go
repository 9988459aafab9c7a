package api

// Request/response types for the REST surface. Signed requests carry a
// client-chosen nonce and a 65-byte hex signature over the canonical digest
// of the payload; the recovered address is the caller.

// CreateOrderRequest submits a new order.
type CreateOrderRequest struct {
	Asset     string `json:"asset"`
	Amount    int64  `json:"amount"`
	Price     int64  `json:"price"`
	IsBuy     bool   `json:"isBuy"`
	Nonce     int64  `json:"nonce"`
	Signature string `json:"signature"`
}

// CreateOrderResponse returns the id assigned to a stored order.
type CreateOrderResponse struct {
	OrderID uint64 `json:"orderId"`
}

// CancelOrderRequest deactivates an order; only its maker's signature is
// accepted.
type CancelOrderRequest struct {
	OrderID   uint64 `json:"orderId"`
	Nonce     int64  `json:"nonce"`
	Signature string `json:"signature"`
}

// WhitelistRequest adds or removes an asset from the whitelist.
type WhitelistRequest struct {
	Asset     string `json:"asset"`
	Nonce     int64  `json:"nonce"`
	Signature string `json:"signature"`
}

// TradingStatusRequest flips the global order-submission gate.
type TradingStatusRequest struct {
	Enabled   bool   `json:"enabled"`
	Nonce     int64  `json:"nonce"`
	Signature string `json:"signature"`
}

// FeeRateRequest updates the fee rate in basis points.
type FeeRateRequest struct {
	Bps       int64  `json:"bps"`
	Nonce     int64  `json:"nonce"`
	Signature string `json:"signature"`
}

// FeeCollectorRequest designates the fee-collector account.
type FeeCollectorRequest struct {
	Collector string `json:"collector"`
	Nonce     int64  `json:"nonce"`
	Signature string `json:"signature"`
}

// UserOrdersResponse lists an account's order ids by side.
type UserOrdersResponse struct {
	Address string   `json:"address"`
	Buys    []uint64 `json:"buys"`
	Sells   []uint64 `json:"sells"`
}

// UserTradesResponse lists the ids of trades an account participated in.
type UserTradesResponse struct {
	Address string   `json:"address"`
	Trades  []uint64 `json:"trades"`
}

// ErrorResponse carries a machine-readable code alongside the message so
// clients can react to the specific failure.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WSSubscribeRequest is the client → server control message on the event
// socket. Channels are event type names; an empty subscription set means
// everything.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" | "unsubscribe"
	Channels []string `json:"channels"`
}
