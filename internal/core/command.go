package core

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Command is a state-changing request in transport-neutral form. Which
// fields are read depends on Operation:
//
//	depositCollateral, redeemCollateral      Token, AmountCollateral
//	mintDsc, burnDsc                         AmountDsc
//	depositCollateralAndMintDsc,
//	redeemCollateralForDsc                   Token, AmountCollateral, AmountDsc
//	liquidate                                Token, User, AmountDsc (debt to cover)
type Command struct {
	ID        string
	Operation Operation
	Sender    common.Address

	Token            common.Address
	User             common.Address
	AmountCollateral *uint256.Int
	AmountDsc        *uint256.Int
}

// Execute dispatches cmd to the matching engine operation. A non-empty ID
// makes the command idempotent.
func (e *Engine) Execute(ctx context.Context, cmd Command) (*Output, error) {
	if cmd.ID != "" {
		ctx = WithCommandID(ctx, cmd.ID)
	}

	switch cmd.Operation {
	case OpDepositCollateral:
		return e.DepositCollateral(ctx, cmd.Sender, cmd.Token, cmd.AmountCollateral)
	case OpRedeemCollateral:
		return e.RedeemCollateral(ctx, cmd.Sender, cmd.Token, cmd.AmountCollateral)
	case OpMintDsc:
		return e.MintDsc(ctx, cmd.Sender, cmd.AmountDsc)
	case OpBurnDsc:
		return e.BurnDsc(ctx, cmd.Sender, cmd.AmountDsc)
	case OpDepositCollateralAndMintDsc:
		return e.DepositCollateralAndMintDsc(ctx, cmd.Sender, cmd.Token, cmd.AmountCollateral, cmd.AmountDsc)
	case OpRedeemCollateralForDsc:
		return e.RedeemCollateralForDsc(ctx, cmd.Sender, cmd.Token, cmd.AmountCollateral, cmd.AmountDsc)
	case OpLiquidate:
		return e.Liquidate(ctx, cmd.Sender, cmd.Token, cmd.User, cmd.AmountDsc)
	default:
		return nil, fmt.Errorf("unsupported operation %s", cmd.Operation)
	}
}
