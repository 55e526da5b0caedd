package token_test

import (
	"DSCEngine/internal/token"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	alice = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	weth  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

func TestVault_Transfer(t *testing.T) {
	v := token.NewVault()
	if err := v.Fund(weth, alice, uint256.NewInt(10)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := v.Transfer(weth, alice, bob, uint256.NewInt(4)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := v.BalanceOf(weth, alice).Uint64(); got != 6 {
		t.Errorf("alice: got %d, want 6", got)
	}
	if got := v.BalanceOf(weth, bob).Uint64(); got != 4 {
		t.Errorf("bob: got %d, want 4", got)
	}
}

func TestVault_TransferInsufficient(t *testing.T) {
	v := token.NewVault()
	v.Fund(weth, alice, uint256.NewInt(1))

	err := v.Transfer(weth, alice, bob, uint256.NewInt(2))
	if !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}
	if got := v.BalanceOf(weth, alice).Uint64(); got != 1 {
		t.Errorf("alice: got %d, want 1", got)
	}
}

func TestDSC_MintBurnSupply(t *testing.T) {
	d := token.NewDSC()
	if err := d.Mint(alice, uint256.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := d.Burn(alice, uint256.NewInt(30)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := d.TotalSupply().Uint64(); got != 70 {
		t.Errorf("supply: got %d, want 70", got)
	}
	if err := d.Burn(alice, uint256.NewInt(71)); !errors.Is(err, token.ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
}

func TestDSC_Transfer(t *testing.T) {
	d := token.NewDSC()
	d.Mint(alice, uint256.NewInt(5))
	if err := d.Transfer(alice, bob, uint256.NewInt(5)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if d.BalanceOf(bob).Uint64() != 5 || !d.BalanceOf(alice).IsZero() {
		t.Errorf("balances: alice=%s bob=%s", d.BalanceOf(alice).Dec(), d.BalanceOf(bob).Dec())
	}
}
