package oracle

import (
	"DSCEngine/internal/math"
	"DSCEngine/internal/registry"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Adapter values collateral in USD with 18 decimals. The arithmetic order
// matches the on-chain engine so results agree to the wei, including where
// an intermediate product overflows.
type Adapter struct {
	registry *registry.Registry
	prices   Reader
}

func NewAdapter(reg *registry.Registry, prices Reader) *Adapter {
	return &Adapter{registry: reg, prices: prices}
}

// GetUsdValue returns price * ADDITIONAL_FEED_PRECISION * amount / PRECISION.
func (a *Adapter) GetUsdValue(token common.Address, amount *uint256.Int) (*uint256.Int, error) {
	price, err := a.scaledPrice(token)
	if err != nil {
		return nil, err
	}
	product, err := math.Mul(price, amount)
	if err != nil {
		return nil, err
	}
	return product.Div(product, math.U(math.Precision)), nil
}

// GetTokenAmountFromUsd returns usdAmountInWei * PRECISION /
// (price * ADDITIONAL_FEED_PRECISION).
func (a *Adapter) GetTokenAmountFromUsd(token common.Address, usdAmountInWei *uint256.Int) (*uint256.Int, error) {
	price, err := a.scaledPrice(token)
	if err != nil {
		return nil, err
	}
	return math.MulDiv(usdAmountInWei, math.U(math.Precision), price)
}

// scaledPrice lifts the 8-decimal answer to 18 decimals.
func (a *Adapter) scaledPrice(token common.Address) (*uint256.Int, error) {
	if err := a.registry.Require(token); err != nil {
		return nil, err
	}
	p, err := a.prices.Price(a.registry.PriceFeed(token))
	if err != nil {
		return nil, err
	}
	return math.Mul(p.Answer, math.U(math.AdditionalFeedPrecision))
}
