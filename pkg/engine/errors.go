package engine

import "errors"

// Every failure below aborts the whole enclosing call with no partial
// effect. Nothing is retried; callers resubmit. Each condition is a distinct
// value so clients can react specifically (prompt for an allowance increase
// vs. show "asset not tradable").
var (
	// Configuration errors.
	ErrTradingDisabled     = errors.New("trading is disabled")
	ErrAssetNotWhitelisted = errors.New("asset is not whitelisted")
	ErrFeeTooHigh          = errors.New("fee rate exceeds 100 basis points")
	ErrInvalidFeeCollector = errors.New("fee collector must be a non-zero address")

	// Input errors.
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrInvalidPrice  = errors.New("limit price must be positive")

	// Authorization errors.
	ErrNotOrderMaker = errors.New("caller is not the order maker")
	ErrNotOwner      = errors.New("caller is not the owner")

	// State errors.
	ErrOrderNotFound      = errors.New("order does not exist")
	ErrOrderNotActive     = errors.New("order is not active")
	ErrAlreadyWhitelisted = errors.New("asset is already whitelisted")
	ErrNotWhitelisted     = errors.New("asset is not on the whitelist")

	// External-dependency errors.
	ErrInsufficientBalance   = errors.New("insufficient asset balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance for the exchange")
	ErrTransferFailed        = errors.New("token transfer failed")

	// ErrReentrantCall guards the mutating surface: while a settlement's
	// external transfer is in flight no other mutating call may observe or
	// alter the state being updated by that same call stack.
	ErrReentrantCall = errors.New("reentrant call rejected")
)
