package risk

import (
	"DSCEngine/internal/math"

	"github.com/holiman/uint256"
)

// Bonus returns the liquidator's bonus on tokenAmount, floored.
func Bonus(tokenAmount *uint256.Int) (*uint256.Int, error) {
	return math.MulDiv(tokenAmount, math.U(math.LiquidationBonus), math.U(math.LiquidationPrecision))
}

// CollateralToSeize is tokenAmount plus the liquidation bonus.
func CollateralToSeize(tokenAmount *uint256.Int) (*uint256.Int, error) {
	bonus, err := Bonus(tokenAmount)
	if err != nil {
		return nil, err
	}
	return math.Add(tokenAmount, bonus)
}

// Improved reports whether a liquidation strictly raised the health factor.
func Improved(starting, ending *uint256.Int) bool {
	return ending.Gt(starting)
}
