package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyuho-lee/tokendex/pkg/token"
)

// FeePolicy is the pluggable post-transfer fee-routing step. The engine
// computes the fee and tallies it per asset regardless of policy; only
// where the value actually goes varies by deployment.
type FeePolicy interface {
	Collect(ctx context.Context, ledger token.Ledger, asset, buyer, seller, collector common.Address, fee int64) error
}

// AccrueOnly is the default policy: the fee is computed and recorded but no
// second transfer happens.
type AccrueOnly struct{}

func (AccrueOnly) Collect(context.Context, token.Ledger, common.Address, common.Address, common.Address, common.Address, int64) error {
	return nil
}

// CollectorTransfer routes the fee to the fee collector with a second
// transfer denominated in the settlement asset, drawn from the buyer who
// just received it. The buyer needs an exchange allowance covering the fee;
// the main leg was paid out of the seller's allowance.
type CollectorTransfer struct{}

func (CollectorTransfer) Collect(ctx context.Context, ledger token.Ledger, asset, buyer, _, collector common.Address, fee int64) error {
	return ledger.TransferFrom(ctx, asset, buyer, collector, fee)
}

var (
	_ FeePolicy = AccrueOnly{}
	_ FeePolicy = CollectorTransfer{}
)
