package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// CollateralTransfer moves collateral tokens between wallets and the
// engine's custody account. *token.Vault implements it.
type CollateralTransfer interface {
	Transfer(token, from, to common.Address, amount *uint256.Int) error
}

// DebtToken is the DSC mint/burn hook. *token.DSC implements it.
type DebtToken interface {
	Mint(to common.Address, amount *uint256.Int) error
	Burn(from common.Address, amount *uint256.Int) error
}

// hook is an external side effect queued by an operation. Hooks run only
// after every ledger check has passed; if one fails, the ones before it are
// undone in reverse order.
type hook struct {
	name string
	do   func() error
	undo func() error
}
