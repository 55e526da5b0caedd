package math_test

import (
	"DSCEngine/internal/dscerr"
	"DSCEngine/internal/math"
	"errors"
	"math/big"
	"testing"
)

func TestMulDiv_Floors(t *testing.T) {
	got, err := math.MulDiv(math.U(7), math.U(3), math.U(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Uint64() != 10 {
		t.Errorf("got %s, want 10", got.Dec())
	}
}

func TestMulDiv_IntermediateOverflowFails(t *testing.T) {
	// (2^256-1) * 2 / 4 would fit, but the product does not.
	_, err := math.MulDiv(math.Max(), math.U(2), math.U(4))
	if !errors.Is(err, dscerr.ErrAmountOverflow) {
		t.Errorf("got %v, want ErrAmountOverflow", err)
	}
}

func TestMulDiv_Overflow(t *testing.T) {
	_, err := math.MulDiv(math.Max(), math.U(2), math.U(1))
	if !errors.Is(err, dscerr.ErrAmountOverflow) {
		t.Errorf("got %v, want ErrAmountOverflow", err)
	}
}

func TestMulDiv_DivideByZero(t *testing.T) {
	_, err := math.MulDiv(math.U(1), math.U(1), math.U(0))
	if !errors.Is(err, dscerr.ErrDivideByZero) {
		t.Errorf("got %v, want ErrDivideByZero", err)
	}
}

func TestSub_NeverWraps(t *testing.T) {
	if _, ok := math.Sub(math.U(1), math.U(2)); ok {
		t.Error("1 - 2 should report underflow")
	}
	got, ok := math.Sub(math.U(5), math.U(2))
	if !ok || got.Uint64() != 3 {
		t.Errorf("got %v/%v, want 3/true", got, ok)
	}
}

func TestAdd_Overflow(t *testing.T) {
	if _, err := math.Add(math.Max(), math.U(1)); !errors.Is(err, dscerr.ErrAmountOverflow) {
		t.Errorf("got %v, want ErrAmountOverflow", err)
	}
}

func TestRescale(t *testing.T) {
	cases := []struct {
		name     string
		value    uint64
		from, to uint8
		want     uint64
	}{
		{"same", 123, 8, 8, 123},
		{"up", 2000, 0, 8, 2000_0000_0000},
		{"down floors", 199_999_999, 18, 10, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := math.Rescale(math.U(tc.value), tc.from, tc.to)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Uint64() != tc.want {
				t.Errorf("got %d, want %d", got.Uint64(), tc.want)
			}
		})
	}
}

func TestFromBig_RejectsNegative(t *testing.T) {
	if _, err := math.FromBig(big.NewInt(-1)); err == nil {
		t.Error("negative value should be rejected")
	}
}

func TestConstantsScale(t *testing.T) {
	// An 8-decimal feed answer lifted by the feed precision lands on 1e18.
	lifted := math.Pow10(math.FeedDecimals).Uint64() * math.AdditionalFeedPrecision
	if lifted != math.Precision {
		t.Errorf("got %d, want %d", lifted, math.Precision)
	}
}
