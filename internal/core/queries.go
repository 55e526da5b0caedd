package core

import (
	"DSCEngine/internal/ledger"
	"DSCEngine/internal/math"
	"DSCEngine/internal/risk"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Read-only views. All of them run against committed state under the read
// lock.

// GetAccountInformation returns (totalDscMinted, collateralValueInUsd).
func (e *Engine) GetAccountInformation(user common.Address) (*uint256.Int, *uint256.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.calc.AccountInformation(e.ledger, user)
}

func (e *Engine) GetAccountCollateralValue(user common.Address) (*uint256.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.calc.AccountCollateralValue(e.ledger, user)
}

func (e *Engine) GetCollateralBalanceOfUser(user, token common.Address) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.GetCollateralBalance(user, token)
}

func (e *Engine) GetHealthFactor(user common.Address) (*uint256.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.calc.HealthFactor(e.ledger, user)
}

// Position returns a copy of user's committed position.
func (e *Engine) Position(user common.Address) ledger.Position {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Position(user)
}

// Users lists every user with a position, in address order.
func (e *Engine) Users() []common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Users()
}

func (e *Engine) CalculateHealthFactor(totalDscMinted, collateralValueInUsd *uint256.Int) (*uint256.Int, error) {
	return risk.CalculateHealthFactor(totalDscMinted, collateralValueInUsd)
}

func (e *Engine) GetTokenAmountFromUsd(token common.Address, usdAmountInWei *uint256.Int) (*uint256.Int, error) {
	return e.oracle.GetTokenAmountFromUsd(token, usdAmountInWei)
}

func (e *Engine) GetUsdValue(token common.Address, amount *uint256.Int) (*uint256.Int, error) {
	return e.oracle.GetUsdValue(token, amount)
}

// --- registry ---

func (e *Engine) GetCollateralTokens() []common.Address {
	return e.registry.CollateralTokens()
}

// GetCollateralTokenPriceFeed returns the zero address for unregistered
// tokens.
func (e *Engine) GetCollateralTokenPriceFeed(token common.Address) common.Address {
	return e.registry.PriceFeed(token)
}

func (e *Engine) GetDsc() common.Address {
	return e.registry.Dsc()
}

// --- constants ---

func (e *Engine) GetPrecision() *uint256.Int {
	return math.U(math.Precision)
}

func (e *Engine) GetAdditionalFeedPrecision() *uint256.Int {
	return math.U(math.AdditionalFeedPrecision)
}

func (e *Engine) GetLiquidationThreshold() *uint256.Int {
	return math.U(math.LiquidationThreshold)
}

func (e *Engine) GetLiquidationBonus() *uint256.Int {
	return math.U(math.LiquidationBonus)
}

func (e *Engine) GetLiquidationPrecision() *uint256.Int {
	return math.U(math.LiquidationPrecision)
}

func (e *Engine) GetMinHealthFactor() *uint256.Int {
	return math.U(math.MinHealthFactor)
}
