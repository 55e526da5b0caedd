package event_test

import (
	"DSCEngine/internal/event"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestMarshalEvents_PreservesTypes(t *testing.T) {
	user := common.HexToAddress("0x000000000000000000000000000000000000a11c")
	liquidator := common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	weth := common.HexToAddress("0x00000000000000000000000000000000000000e1")

	in := []event.Event{
		&event.CollateralDeposited{User: user, Token: weth, Amount: uint256.NewInt(10)},
		&event.CollateralRedeemed{RedeemFrom: user, RedeemTo: liquidator, Token: weth, Amount: uint256.NewInt(3)},
	}
	data, err := event.MarshalEvents(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	out, err := event.UnmarshalEvents(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d events, want 2", len(out))
	}
	redeemed, ok := out[1].(*event.CollateralRedeemed)
	if !ok {
		t.Fatalf("expected *event.CollateralRedeemed, got %T", out[1])
	}
	if redeemed.RedeemTo != liquidator || redeemed.Amount.Uint64() != 3 {
		t.Errorf("got %+v", redeemed)
	}
}

func TestParseEventType_Unknown(t *testing.T) {
	if _, err := event.ParseEventType("Transfer"); err == nil {
		t.Error("unknown event name should fail")
	}
}

func TestEventType_Subject(t *testing.T) {
	if got := event.EventTypeCollateralRedeemed.Subject(); got != "collateral_redeemed" {
		t.Errorf("got %q, want %q", got, "collateral_redeemed")
	}
}
