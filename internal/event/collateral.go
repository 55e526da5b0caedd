// internal/event/collateral.go
package event

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// CollateralDeposited is emitted when user adds collateral.
type CollateralDeposited struct {
	User   common.Address `json:"user"`
	Token  common.Address `json:"token"`
	Amount *uint256.Int   `json:"amount"`
}

func (e *CollateralDeposited) EventType() EventType {
	return EventTypeCollateralDeposited
}

// CollateralRedeemed is emitted when collateral leaves RedeemFrom's position
// for RedeemTo's wallet. The two differ only for liquidations.
type CollateralRedeemed struct {
	RedeemFrom common.Address `json:"redeemFrom"`
	RedeemTo   common.Address `json:"redeemTo"`
	Token      common.Address `json:"token"`
	Amount     *uint256.Int   `json:"amount"`
}

func (e *CollateralRedeemed) EventType() EventType {
	return EventTypeCollateralRedeemed
}
