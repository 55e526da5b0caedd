// internal/math/fixedpoint.go
package math

import (
	"DSCEngine/internal/dscerr"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Protocol constants. Percentages are expressed against LiquidationPrecision,
// ratios and USD values against Precision (1e18).
const (
	LiquidationThreshold    uint64 = 50
	LiquidationBonus        uint64 = 10
	LiquidationPrecision    uint64 = 100
	Precision               uint64 = 1_000_000_000_000_000_000
	MinHealthFactor         uint64 = 1_000_000_000_000_000_000
	AdditionalFeedPrecision uint64 = 10_000_000_000

	// FeedDecimals is the number of decimals a price answer must carry for
	// AdditionalFeedPrecision to lift it to 1e18.
	FeedDecimals uint8 = 8
)

// U is shorthand for a fresh uint256 holding v.
func U(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

// Max returns 2^256 - 1.
func Max() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

// Zero returns a fresh zero value.
func Zero() *uint256.Int {
	return new(uint256.Int)
}

// Copy returns an independent copy of v, treating nil as zero.
func Copy(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

// MulDiv computes floor(x * y / d). The product is overflow-checked before
// dividing, the same order of operations as checked 256-bit arithmetic on
// chain, so an intermediate that does not fit fails even if the quotient
// would.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, dscerr.ErrDivideByZero
	}
	z, err := Mul(x, y)
	if err != nil {
		return nil, err
	}
	return z.Div(z, d), nil
}

// Mul returns x * y or ErrAmountOverflow.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, dscerr.ErrAmountOverflow
	}
	return z, nil
}

// Add returns x + y or ErrAmountOverflow.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(x, y)
	if overflow {
		return nil, dscerr.ErrAmountOverflow
	}
	return z, nil
}

// Sub returns x - y and false when y > x; it never wraps.
func Sub(x, y *uint256.Int) (*uint256.Int, bool) {
	if x.Lt(y) {
		return nil, false
	}
	return new(uint256.Int).Sub(x, y), true
}

// Pow10 returns 10^n for n <= 77.
func Pow10(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}

// Rescale converts v from `from` decimals to `to` decimals, flooring when
// precision is dropped.
func Rescale(v *uint256.Int, from, to uint8) (*uint256.Int, error) {
	switch {
	case from == to:
		return Copy(v), nil
	case from < to:
		return Mul(v, Pow10(to-from))
	default:
		return new(uint256.Int).Div(v, Pow10(from-to)), nil
	}
}

// FromBig converts a non-negative big.Int, rejecting negatives and values
// wider than 256 bits.
func FromBig(b *big.Int) (*uint256.Int, error) {
	if b == nil || b.Sign() < 0 {
		return nil, dscerr.ErrAmountOverflow
	}
	z, overflow := uint256.FromBig(b)
	if overflow {
		return nil, dscerr.ErrAmountOverflow
	}
	return z, nil
}

// Parse reads a base-10 amount string.
func Parse(s string) (*uint256.Int, error) {
	z, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, err
	}
	return z, nil
}

// ToDecimal shifts a base-unit amount by decimals, e.g. 1.5e18 wei with 18
// decimals becomes 1.5.
func ToDecimal(v *uint256.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(v.ToBig(), -decimals)
}

// FromDecimal is the inverse of ToDecimal. Digits beyond decimals are
// truncated; negative values are rejected.
func FromDecimal(d decimal.Decimal, decimals int32) (*uint256.Int, error) {
	if d.IsNegative() {
		return nil, dscerr.ErrAmountOverflow
	}
	return FromBig(d.Shift(decimals).Truncate(0).BigInt())
}

// WholeUnits approximates an 18-decimal amount as a float, for metrics.
func WholeUnits(v *uint256.Int) float64 {
	return ToDecimal(v, 18).InexactFloat64()
}
