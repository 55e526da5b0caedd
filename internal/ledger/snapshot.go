package ledger

import (
	"DSCEngine/internal/math"
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// CollateralBalance is one asset balance inside a PositionSnapshot.
type CollateralBalance struct {
	Asset  common.Address `json:"asset"`
	Amount *uint256.Int   `json:"amount"`
}

type PositionSnapshot struct {
	User       common.Address      `json:"user"`
	DebtMinted *uint256.Int        `json:"debt_minted"`
	Collateral []CollateralBalance `json:"collateral"`
}

// Snapshot is the full ledger in a deterministic order (users, then assets,
// by address), so equal ledgers serialize to equal bytes.
type Snapshot struct {
	Positions []PositionSnapshot `json:"positions"`
}

func (l *Ledger) Snapshot() Snapshot {
	users := l.Users()
	snap := Snapshot{Positions: make([]PositionSnapshot, 0, len(users))}
	for _, user := range users {
		p := l.positions[user]
		ps := PositionSnapshot{
			User:       user,
			DebtMinted: math.Copy(p.DebtMinted),
			Collateral: make([]CollateralBalance, 0, len(p.Collateral)),
		}
		for asset, amount := range p.Collateral {
			ps.Collateral = append(ps.Collateral, CollateralBalance{Asset: asset, Amount: math.Copy(amount)})
		}
		sort.Slice(ps.Collateral, func(i, j int) bool {
			return bytes.Compare(ps.Collateral[i].Asset[:], ps.Collateral[j].Asset[:]) < 0
		})
		snap.Positions = append(snap.Positions, ps)
	}
	return snap
}

// Restore replaces the ledger contents with snap.
func (l *Ledger) Restore(snap Snapshot) error {
	positions := make(map[common.Address]*Position, len(snap.Positions))
	for _, ps := range snap.Positions {
		if _, dup := positions[ps.User]; dup {
			return fmt.Errorf("snapshot lists user %s twice", ps.User.Hex())
		}
		p := newPosition()
		p.DebtMinted = math.Copy(ps.DebtMinted)
		for _, cb := range ps.Collateral {
			p.Collateral[cb.Asset] = math.Copy(cb.Amount)
		}
		positions[ps.User] = p
	}
	l.positions = positions
	return nil
}
