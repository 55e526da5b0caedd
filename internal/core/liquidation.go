package core

import (
	"DSCEngine/internal/dscerr"
	"DSCEngine/internal/event"
	"DSCEngine/internal/math"
	"DSCEngine/internal/risk"
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Liquidate repays debtToCover of user's debt with the liquidator's DSC and
// pays the liquidator the equivalent collateral plus a 10% bonus.
//
// Only unsafe positions can be liquidated, the liquidation must strictly
// raise user's health factor, and the liquidator's own position must be
// healthy afterwards.
func (e *Engine) Liquidate(ctx context.Context, liquidator, collateral, user common.Address, debtToCover *uint256.Int) (*Output, error) {
	out, err := e.execute(ctx, OpLiquidate, liquidator, func(o *op) error {
		return o.liquidate(liquidator, collateral, user, debtToCover)
	})
	if err != nil {
		outcome := "error"
		if kind := dscerr.Kind(err); kind != nil {
			outcome = kind.Error()
		}
		e.metrics.Liquidations.WithLabelValues(outcome).Inc()
		return nil, err
	}

	e.metrics.Liquidations.WithLabelValues("executed").Inc()
	e.metrics.LiquidationDebt.Add(math.WholeUnits(debtToCover))
	for _, ev := range out.Events {
		if r, ok := ev.(*event.CollateralRedeemed); ok {
			e.metrics.CollateralSeized.WithLabelValues(r.Token.Hex()).Add(math.WholeUnits(r.Amount))
		}
	}
	return out, nil
}

func (o *op) liquidate(liquidator, collateral, user common.Address, debtToCover *uint256.Int) error {
	if err := requirePositive(debtToCover); err != nil {
		return err
	}
	if err := o.engine.registry.Require(collateral); err != nil {
		return err
	}

	starting, err := o.healthFactor(user)
	if err != nil {
		return err
	}
	if risk.StatusOf(starting) == risk.StatusSafe {
		return dscerr.ErrHealthFactorOk
	}

	tokenAmount, err := o.engine.oracle.GetTokenAmountFromUsd(collateral, debtToCover)
	if err != nil {
		return err
	}
	seize, err := risk.CollateralToSeize(tokenAmount)
	if err != nil {
		return err
	}

	if err := o.redeem(collateral, seize, user, liquidator); err != nil {
		return err
	}
	if err := o.burn(debtToCover, user, liquidator); err != nil {
		return err
	}

	ending, err := o.healthFactor(user)
	if err != nil {
		return err
	}
	if !risk.Improved(starting, ending) {
		return dscerr.ErrHealthFactorNotImproved
	}
	return o.requireHealthy(liquidator)
}
