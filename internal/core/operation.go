package core

import "fmt"

// Operation identifies a state-changing engine call. String returns the
// contract function name, which is also what the operation log stores.
type Operation int32

const (
	OpUnknown Operation = iota
	OpDepositCollateral
	OpDepositCollateralAndMintDsc
	OpRedeemCollateral
	OpRedeemCollateralForDsc
	OpMintDsc
	OpBurnDsc
	OpLiquidate
)

var operationNames = map[Operation]string{
	OpDepositCollateral:           "depositCollateral",
	OpDepositCollateralAndMintDsc: "depositCollateralAndMintDsc",
	OpRedeemCollateral:            "redeemCollateral",
	OpRedeemCollateralForDsc:      "redeemCollateralForDsc",
	OpMintDsc:                     "mintDsc",
	OpBurnDsc:                     "burnDsc",
	OpLiquidate:                   "liquidate",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return "unknown"
}

// ParseOperation is the inverse of String.
func ParseOperation(name string) (Operation, error) {
	for op, n := range operationNames {
		if n == name {
			return op, nil
		}
	}
	return OpUnknown, fmt.Errorf("unknown operation %q", name)
}
