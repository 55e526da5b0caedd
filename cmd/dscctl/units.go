package main

import (
	"DSCEngine/internal/math"
	"DSCEngine/internal/server"
	"fmt"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/status"
)

const tokenDecimals = 18

// toWei converts a human amount ("1.5") to base units.
func toWei(s string) (string, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return "", fmt.Errorf("amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("amount %q is negative", s)
	}
	v, err := math.FromDecimal(d, tokenDecimals)
	if err != nil {
		return "", fmt.Errorf("amount %q: %w", s, err)
	}
	return v.Dec(), nil
}

// fromWei renders base units in whole tokens.
func fromWei(s string) string {
	v, err := math.Parse(s)
	if err != nil {
		return s
	}
	return math.ToDecimal(v, tokenDecimals).String()
}

// healthFactor renders a 1e18-scaled health factor; no debt shows as "inf".
func healthFactor(s string) string {
	v, err := math.Parse(s)
	if err != nil {
		return s
	}
	if v.Eq(math.Max()) {
		return "inf"
	}
	return math.ToDecimal(v, tokenDecimals).StringFixed(4)
}

// describe adds the revert reason of engine rejections.
func describe(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return err.Error()
	}
	if info, ok := server.ErrorInfo(err); ok {
		return fmt.Sprintf("%s: %s (%s)", st.Code(), info.Reason, st.Message())
	}
	return fmt.Sprintf("%s: %s", st.Code(), st.Message())
}
