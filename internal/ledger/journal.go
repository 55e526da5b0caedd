package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EntryKind is the ledger mutation an Entry records.
type EntryKind int32

const (
	EntryCollateralCredit EntryKind = iota
	EntryCollateralDebit
	EntryDebtIncrease
	EntryDebtDecrease
)

func (k EntryKind) String() string {
	switch k {
	case EntryCollateralCredit:
		return "collateral_credit"
	case EntryCollateralDebit:
		return "collateral_debit"
	case EntryDebtIncrease:
		return "debt_increase"
	case EntryDebtDecrease:
		return "debt_decrease"
	default:
		return fmt.Sprintf("EntryKind(%d)", int32(k))
	}
}

// Entry is one journal line. Debt entries carry the zero Asset.
type Entry struct {
	User   common.Address `json:"user"`
	Asset  common.Address `json:"asset"`
	Kind   EntryKind      `json:"kind"`
	Amount *uint256.Int   `json:"amount"`
}

// Validate rejects entries that could not have been produced by a Tx.
func (e Entry) Validate() error {
	if e.Amount == nil || e.Amount.IsZero() {
		return fmt.Errorf("%s entry for %s has zero amount", e.Kind, e.User.Hex())
	}
	switch e.Kind {
	case EntryCollateralCredit, EntryCollateralDebit:
		if e.Asset == (common.Address{}) {
			return fmt.Errorf("%s entry for %s has no asset", e.Kind, e.User.Hex())
		}
	case EntryDebtIncrease, EntryDebtDecrease:
		if e.Asset != (common.Address{}) {
			return fmt.Errorf("%s entry for %s carries asset %s", e.Kind, e.User.Hex(), e.Asset.Hex())
		}
	default:
		return fmt.Errorf("unknown entry kind %d", e.Kind)
	}
	return nil
}

// Journal is the ordered list of entries committed by one operation.
type Journal []Entry

func (j Journal) Validate() error {
	for i, e := range j {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}
