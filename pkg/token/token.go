// Package token abstracts the external fungible-asset ledger the exchange
// settles through. The engine only needs balance/allowance reads and an
// all-or-nothing transfer-from; it never owns token state.
package token

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientBalance is returned when the source account does not
	// hold enough of the asset.
	ErrInsufficientBalance = errors.New("token: insufficient balance")

	// ErrInsufficientAllowance is returned when the spender has not been
	// authorized to move the requested amount.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("token: amount must be positive")
)

// Ledger is the capability the engine consumes from a fungible-asset ledger.
// An asset is identified by its token contract address. TransferFrom must be
// all-or-nothing: on error, no balance may have changed.
type Ledger interface {
	BalanceOf(ctx context.Context, asset, account common.Address) (int64, error)
	Allowance(ctx context.Context, asset, owner, spender common.Address) (int64, error)
	TransferFrom(ctx context.Context, asset, from, to common.Address, amount int64) error
}

// Reverter is an optional capability of a Ledger: the ability to roll back
// to an earlier snapshot. The engine uses it to unwind transfers from
// earlier settlements when a later step of the same submit fails.
type Reverter interface {
	Snapshot() int
	RevertTo(id int)
}
