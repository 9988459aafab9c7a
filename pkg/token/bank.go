package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Bank is an in-memory Ledger for devnet and tests. Balances and allowances
// are kept per (asset, account) pair. Bank implements Reverter via an undo
// journal so the engine can unwind a partially settled submit.
//
// TransferFrom acts on behalf of a single spender, the exchange address the
// Bank was constructed with, mirroring a token contract that is called by
// the exchange contract.
type Bank struct {
	mu         sync.Mutex
	spender    common.Address
	balances   map[common.Address]map[common.Address]int64 // asset -> account -> balance
	allowances map[common.Address]map[allowanceKey]int64   // asset -> (owner,spender) -> amount
	undo       []func()
}

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// NewBank creates an empty ledger whose TransferFrom spends the allowance
// granted to spender (the exchange address).
func NewBank(spender common.Address) *Bank {
	return &Bank{
		spender:    spender,
		balances:   make(map[common.Address]map[common.Address]int64),
		allowances: make(map[common.Address]map[allowanceKey]int64),
	}
}

// Mint credits freshly issued units of asset to an account.
func (b *Bank) Mint(asset, account common.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setBalance(asset, account, b.balance(asset, account)+amount)
	return nil
}

// Transfer moves an account's own funds without touching allowances.
func (b *Bank) Transfer(asset, from, to common.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	fromBal := b.balance(asset, from)
	if fromBal < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, fromBal, amount)
	}
	b.setBalance(asset, from, fromBal-amount)
	b.setBalance(asset, to, b.balance(asset, to)+amount)
	return nil
}

// Approve authorizes spender to move up to amount of owner's asset.
// Mirrors ERC-20 approve: the value replaces any prior allowance.
func (b *Bank) Approve(asset, owner, spender common.Address, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setAllowance(asset, owner, spender, amount)
	return nil
}

// BalanceOf implements Ledger.
func (b *Bank) BalanceOf(_ context.Context, asset, account common.Address) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance(asset, account), nil
}

// Allowance implements Ledger.
func (b *Bank) Allowance(_ context.Context, asset, owner, spender common.Address) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowance(asset, owner, spender), nil
}

// TransferFrom implements Ledger. Like ERC-20 transferFrom it both moves
// the balance and burns allowance, and fails without any state change when
// funds or allowance are short.
func (b *Bank) TransferFrom(_ context.Context, asset, from, to common.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	fromBal := b.balance(asset, from)
	if fromBal < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, fromBal, amount)
	}
	allowed := b.allowance(asset, from, b.spender)
	if allowed < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientAllowance, allowed, amount)
	}

	b.setBalance(asset, from, fromBal-amount)
	b.setBalance(asset, to, b.balance(asset, to)+amount)
	b.setAllowance(asset, from, b.spender, allowed-amount)
	return nil
}

// Snapshot implements Reverter. It returns a journal position; RevertTo
// with that position undoes every mutation made since.
func (b *Bank) Snapshot() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.undo)
}

// RevertTo implements Reverter.
func (b *Bank) RevertTo(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.undo) > id {
		fn := b.undo[len(b.undo)-1]
		b.undo = b.undo[:len(b.undo)-1]
		fn()
	}
}

func (b *Bank) balance(asset, account common.Address) int64 {
	return b.balances[asset][account]
}

func (b *Bank) setBalance(asset, account common.Address, v int64) {
	accounts, ok := b.balances[asset]
	if !ok {
		accounts = make(map[common.Address]int64)
		b.balances[asset] = accounts
	}
	prev, had := accounts[account]
	b.undo = append(b.undo, func() {
		if had {
			accounts[account] = prev
		} else {
			delete(accounts, account)
		}
	})
	accounts[account] = v
}

func (b *Bank) allowance(asset, owner, spender common.Address) int64 {
	return b.allowances[asset][allowanceKey{owner, spender}]
}

func (b *Bank) setAllowance(asset, owner, spender common.Address, v int64) {
	grants, ok := b.allowances[asset]
	if !ok {
		grants = make(map[allowanceKey]int64)
		b.allowances[asset] = grants
	}
	key := allowanceKey{owner, spender}
	prev, had := grants[key]
	b.undo = append(b.undo, func() {
		if had {
			grants[key] = prev
		} else {
			delete(grants, key)
		}
	})
	grants[key] = v
}

var _ Ledger = (*Bank)(nil)
var _ Reverter = (*Bank)(nil)
