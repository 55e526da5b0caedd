// Package risk computes health factors and liquidation amounts. Everything
// here is a pure function of its inputs.
package risk

import (
	"DSCEngine/internal/math"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Status classifies a position by its health factor.
type Status int32

const (
	StatusSafe Status = iota
	StatusUnsafe
)

func (s Status) String() string {
	switch s {
	case StatusSafe:
		return "SAFE"
	case StatusUnsafe:
		return "UNSAFE"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// StatusOf reports Unsafe strictly below MIN_HEALTH_FACTOR; the boundary is
// safe.
func StatusOf(healthFactor *uint256.Int) Status {
	if healthFactor.Lt(math.U(math.MinHealthFactor)) {
		return StatusUnsafe
	}
	return StatusSafe
}

// CalculateHealthFactor returns the 1e18-scaled ratio of threshold-adjusted
// collateral to debt. No debt yields the maximum value. Both divisions floor.
func CalculateHealthFactor(totalDebtMinted, collateralValueUsd *uint256.Int) (*uint256.Int, error) {
	if totalDebtMinted.IsZero() {
		return math.Max(), nil
	}
	adjusted, err := math.MulDiv(collateralValueUsd, math.U(math.LiquidationThreshold), math.U(math.LiquidationPrecision))
	if err != nil {
		return nil, err
	}
	return math.MulDiv(adjusted, math.U(math.Precision), totalDebtMinted)
}

// Balances is the read side of the position ledger. Both the committed
// ledger and an open transaction satisfy it.
type Balances interface {
	GetCollateralBalance(user, asset common.Address) *uint256.Int
	GetDebt(user common.Address) *uint256.Int
}

// Valuer converts a token amount to USD (18 decimals).
type Valuer interface {
	GetUsdValue(token common.Address, amount *uint256.Int) (*uint256.Int, error)
}

// Calculator values positions across every registered collateral token.
type Calculator struct {
	tokens []common.Address
	valuer Valuer
}

func NewCalculator(tokens []common.Address, valuer Valuer) *Calculator {
	ts := make([]common.Address, len(tokens))
	copy(ts, tokens)
	return &Calculator{tokens: ts, valuer: valuer}
}

// AccountCollateralValue sums the USD value of every collateral balance.
// Zero balances are skipped, so a missing price only matters for tokens the
// user actually holds.
func (c *Calculator) AccountCollateralValue(b Balances, user common.Address) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, token := range c.tokens {
		amount := b.GetCollateralBalance(user, token)
		if amount.IsZero() {
			continue
		}
		usd, err := c.valuer.GetUsdValue(token, amount)
		if err != nil {
			return nil, err
		}
		if total, err = math.Add(total, usd); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// AccountInformation returns (debtMinted, collateralValueUsd).
func (c *Calculator) AccountInformation(b Balances, user common.Address) (*uint256.Int, *uint256.Int, error) {
	collateral, err := c.AccountCollateralValue(b, user)
	if err != nil {
		return nil, nil, err
	}
	return b.GetDebt(user), collateral, nil
}

func (c *Calculator) HealthFactor(b Balances, user common.Address) (*uint256.Int, error) {
	debt, collateral, err := c.AccountInformation(b, user)
	if err != nil {
		return nil, err
	}
	return CalculateHealthFactor(debt, collateral)
}
