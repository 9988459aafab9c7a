package token

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// erc20ABI is the minimal surface the exchange needs from a token contract.
const erc20ABI = `[
	{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"transferFrom","type":"function","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

// Backend is the subset of an Ethereum client the adapter needs: contract
// calls for the read path and transaction submission + receipt lookup for
// transfers. *ethclient.Client satisfies it, as does a simulated backend in
// tests.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// ERC20Ledger settles against real ERC-20 contracts through an Ethereum
// node. Each whitelisted asset address is treated as a token contract.
//
// Transfers are synchronous from the engine's point of view: TransferFrom
// submits the transaction and blocks until it is mined, so a reverted
// transfer surfaces as an error before settlement bookkeeping proceeds.
type ERC20Ledger struct {
	backend Backend
	abi     abi.ABI
	opts    *bind.TransactOpts // exchange account, pays gas and is the spender
}

// NewERC20Ledger creates an adapter transacting as opts.From.
func NewERC20Ledger(backend Backend, opts *bind.TransactOpts) (*ERC20Ledger, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &ERC20Ledger{backend: backend, abi: parsed, opts: opts}, nil
}

// BalanceOf implements Ledger.
func (l *ERC20Ledger) BalanceOf(ctx context.Context, asset, account common.Address) (int64, error) {
	return l.callUint(ctx, asset, "balanceOf", account)
}

// Allowance implements Ledger.
func (l *ERC20Ledger) Allowance(ctx context.Context, asset, owner, spender common.Address) (int64, error) {
	return l.callUint(ctx, asset, "allowance", owner, spender)
}

// TransferFrom implements Ledger. The transaction is mined before returning;
// a reverted execution is reported as an error.
func (l *ERC20Ledger) TransferFrom(ctx context.Context, asset, from, to common.Address, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	contract := bind.NewBoundContract(asset, l.abi, l.backend, l.backend, l.backend)

	opts := *l.opts
	opts.Context = ctx
	tx, err := contract.Transact(&opts, "transferFrom", from, to, big.NewInt(amount))
	if err != nil {
		return fmt.Errorf("transferFrom %s: %w", asset.Hex(), err)
	}
	receipt, err := bind.WaitMined(ctx, l.backend, tx)
	if err != nil {
		return fmt.Errorf("transferFrom %s: wait mined: %w", asset.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transferFrom %s: reverted (tx %s)", asset.Hex(), tx.Hash().Hex())
	}
	return nil
}

func (l *ERC20Ledger) callUint(ctx context.Context, asset common.Address, method string, args ...interface{}) (int64, error) {
	contract := bind.NewBoundContract(asset, l.abi, l.backend, l.backend, l.backend)

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, asset.Hex(), err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("%s %s: unexpected output arity %d", method, asset.Hex(), len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%s %s: unexpected output type %T", method, asset.Hex(), out[0])
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("%s %s: value %s overflows int64 minor units", method, asset.Hex(), v)
	}
	return v.Int64(), nil
}

var _ Ledger = (*ERC20Ledger)(nil)
