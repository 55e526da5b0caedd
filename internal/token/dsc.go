package token

import (
	"DSCEngine/internal/math"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DSC is the debt token ledger: holder balances plus total supply.
type DSC struct {
	mu       sync.RWMutex
	balances map[common.Address]*uint256.Int
	supply   *uint256.Int
}

func NewDSC() *DSC {
	return &DSC{
		balances: make(map[common.Address]*uint256.Int),
		supply:   new(uint256.Int),
	}
}

func (d *DSC) BalanceOf(holder common.Address) *uint256.Int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return math.Copy(d.balances[holder])
}

func (d *DSC) TotalSupply() *uint256.Int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return math.Copy(d.supply)
}

// Mint credits to and grows supply.
func (d *DSC) Mint(to common.Address, amount *uint256.Int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	supply, err := math.Add(d.supply, amount)
	if err != nil {
		return err
	}
	balance, err := math.Add(math.Copy(d.balances[to]), amount)
	if err != nil {
		return err
	}
	d.supply = supply
	d.balances[to] = balance
	return nil
}

// Burn destroys amount held by from.
func (d *DSC) Burn(from common.Address, amount *uint256.Int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	have := math.Copy(d.balances[from])
	remaining, ok := math.Sub(have, amount)
	if !ok {
		return fmt.Errorf("%w: %s holds %s DSC, burn %s", ErrInsufficientBalance, from.Hex(), have.Dec(), amount.Dec())
	}
	d.balances[from] = remaining
	d.supply, _ = math.Sub(d.supply, amount)
	return nil
}

// Transfer moves DSC between holders, e.g. to fund a liquidator.
func (d *DSC) Transfer(from, to common.Address, amount *uint256.Int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	have := math.Copy(d.balances[from])
	remaining, ok := math.Sub(have, amount)
	if !ok {
		return fmt.Errorf("%w: %s holds %s DSC, transfer %s", ErrInsufficientBalance, from.Hex(), have.Dec(), amount.Dec())
	}
	if from == to {
		return nil
	}
	credited, err := math.Add(math.Copy(d.balances[to]), amount)
	if err != nil {
		return err
	}
	d.balances[from] = remaining
	d.balances[to] = credited
	return nil
}
