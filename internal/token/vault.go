// Package token provides in-memory ERC20-style balances for collateral
// tokens and the DSC debt token. The engine reaches them only through its
// hook interfaces.
package token

import (
	"DSCEngine/internal/math"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

// Vault holds balances for any number of collateral tokens.
type Vault struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*uint256.Int // token -> holder -> amount
}

func NewVault() *Vault {
	return &Vault{balances: make(map[common.Address]map[common.Address]*uint256.Int)}
}

func (v *Vault) BalanceOf(token, holder common.Address) *uint256.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return math.Copy(v.balances[token][holder])
}

// Fund mints wallet balance out of thin air. Only wired in dev mode.
func (v *Vault) Fund(token, to common.Address, amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	next, err := math.Add(v.get(token, to), amount)
	if err != nil {
		return err
	}
	v.set(token, to, next)
	return nil
}

// Transfer moves amount of token between holders.
func (v *Vault) Transfer(token, from, to common.Address, amount *uint256.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	have := v.get(token, from)
	remaining, ok := math.Sub(have, amount)
	if !ok {
		return fmt.Errorf("%w: %s holds %s of %s, transfer %s",
			ErrInsufficientBalance, from.Hex(), have.Dec(), token.Hex(), amount.Dec())
	}
	if from == to {
		return nil
	}
	credited, err := math.Add(v.get(token, to), amount)
	if err != nil {
		return err
	}
	v.set(token, from, remaining)
	v.set(token, to, credited)
	return nil
}

func (v *Vault) get(token, holder common.Address) *uint256.Int {
	return math.Copy(v.balances[token][holder])
}

func (v *Vault) set(token, holder common.Address, amount *uint256.Int) {
	m, ok := v.balances[token]
	if !ok {
		m = make(map[common.Address]*uint256.Int)
		v.balances[token] = m
	}
	m[holder] = amount
}
