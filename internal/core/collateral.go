package core

import (
	"DSCEngine/internal/dscerr"
	"DSCEngine/internal/event"
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DepositCollateral moves amount of token from user's wallet into custody and
// credits user's position.
func (e *Engine) DepositCollateral(ctx context.Context, user, token common.Address, amount *uint256.Int) (*Output, error) {
	return e.execute(ctx, OpDepositCollateral, user, func(o *op) error {
		return o.deposit(user, token, amount)
	})
}

// RedeemCollateral returns collateral to user. The remaining position must
// stay healthy.
func (e *Engine) RedeemCollateral(ctx context.Context, user, token common.Address, amount *uint256.Int) (*Output, error) {
	return e.execute(ctx, OpRedeemCollateral, user, func(o *op) error {
		if err := o.redeem(token, amount, user, user); err != nil {
			return err
		}
		return o.requireHealthy(user)
	})
}

// MintDsc increases user's debt and mints the same amount of DSC to them.
func (e *Engine) MintDsc(ctx context.Context, user common.Address, amount *uint256.Int) (*Output, error) {
	return e.execute(ctx, OpMintDsc, user, func(o *op) error {
		return o.mint(user, amount)
	})
}

// BurnDsc repays user's debt with DSC from user's wallet. Repaying never
// lowers the health factor, so there is no post-check.
func (e *Engine) BurnDsc(ctx context.Context, user common.Address, amount *uint256.Int) (*Output, error) {
	return e.execute(ctx, OpBurnDsc, user, func(o *op) error {
		return o.burn(amount, user, user)
	})
}

func (e *Engine) DepositCollateralAndMintDsc(ctx context.Context, user, token common.Address, amountCollateral, amountDscToMint *uint256.Int) (*Output, error) {
	return e.execute(ctx, OpDepositCollateralAndMintDsc, user, func(o *op) error {
		if err := o.deposit(user, token, amountCollateral); err != nil {
			return err
		}
		return o.mint(user, amountDscToMint)
	})
}

// RedeemCollateralForDsc burns DSC and then redeems collateral in one step.
func (e *Engine) RedeemCollateralForDsc(ctx context.Context, user, token common.Address, amountCollateral, amountDscToBurn *uint256.Int) (*Output, error) {
	return e.execute(ctx, OpRedeemCollateralForDsc, user, func(o *op) error {
		if err := o.burn(amountDscToBurn, user, user); err != nil {
			return err
		}
		if err := o.redeem(token, amountCollateral, user, user); err != nil {
			return err
		}
		return o.requireHealthy(user)
	})
}

func requirePositive(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return dscerr.ErrNeedsMoreThanZero
	}
	return nil
}

func (o *op) deposit(user, token common.Address, amount *uint256.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if err := o.engine.registry.Require(token); err != nil {
		return err
	}
	if err := o.tx.Credit(user, token, amount); err != nil {
		return err
	}

	custody := o.engine.custody
	vault := o.engine.collateral
	amt := new(uint256.Int).Set(amount)
	o.queue(hook{
		name: "collateral_transfer_in",
		do: func() error {
			if err := vault.Transfer(token, user, custody, amt); err != nil {
				return dscerr.TransferFailed(err)
			}
			return nil
		},
		undo: func() error { return vault.Transfer(token, custody, user, amt) },
	})
	o.emit(&event.CollateralDeposited{User: user, Token: token, Amount: amt})
	return nil
}

// redeem debits from's position and sends the collateral to to's wallet.
// Liquidation is the only caller where from and to differ.
func (o *op) redeem(token common.Address, amount *uint256.Int, from, to common.Address) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if err := o.engine.registry.Require(token); err != nil {
		return err
	}
	if err := o.tx.Debit(from, token, amount); err != nil {
		return err
	}

	custody := o.engine.custody
	vault := o.engine.collateral
	amt := new(uint256.Int).Set(amount)
	o.queue(hook{
		name: "collateral_transfer_out",
		do: func() error {
			if err := vault.Transfer(token, custody, to, amt); err != nil {
				return dscerr.TransferFailed(err)
			}
			return nil
		},
		undo: func() error { return vault.Transfer(token, to, custody, amt) },
	})
	o.emit(&event.CollateralRedeemed{RedeemFrom: from, RedeemTo: to, Token: token, Amount: amt})
	return nil
}

func (o *op) mint(user common.Address, amount *uint256.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if err := o.tx.IncreaseDebt(user, amount); err != nil {
		return err
	}
	if err := o.requireHealthy(user); err != nil {
		return err
	}

	dsc := o.engine.dsc
	amt := new(uint256.Int).Set(amount)
	o.queue(hook{
		name: "dsc_mint",
		do: func() error {
			if err := dsc.Mint(user, amt); err != nil {
				return dscerr.MintFailed(err)
			}
			return nil
		},
		undo: func() error { return dsc.Burn(user, amt) },
	})
	return nil
}

// burn reduces onBehalfOf's debt and destroys DSC held by dscFrom.
func (o *op) burn(amount *uint256.Int, onBehalfOf, dscFrom common.Address) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if err := o.tx.DecreaseDebt(onBehalfOf, amount); err != nil {
		return err
	}

	dsc := o.engine.dsc
	amt := new(uint256.Int).Set(amount)
	o.queue(hook{
		name: "dsc_burn",
		do: func() error {
			if err := dsc.Burn(dscFrom, amt); err != nil {
				return dscerr.TransferFailed(err)
			}
			return nil
		},
		undo: func() error { return dsc.Mint(dscFrom, amt) },
	})
	return nil
}
