package ingestion_test

import (
	"DSCEngine/internal/core"
	"DSCEngine/internal/ingestion"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	commandID = "550e8400-e29b-41d4-a716-446655440000"
	aliceHex  = "0x000000000000000000000000000000000000a11c"
	bobHex    = "0x0000000000000000000000000000000000000b0b"
	wethHex   = "0x00000000000000000000000000000000000000e1"
)

func rawFromJSON(t *testing.T, subject string, v interface{}) ingestion.RawCommand {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawCommand{
		Subject:   subject,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// ============================================================================
// Test: ParseRawCommand
// ============================================================================

func TestParseDepositCollateralAndMintDsc(t *testing.T) {
	raw := rawFromJSON(t, "dsc.commands.any", map[string]interface{}{
		"command_id":        commandID,
		"type":              "depositCollateralAndMintDsc",
		"sender":            aliceHex,
		"token":             wethHex,
		"amount_collateral": "10000000000000000000",
		"amount_dsc":        "4000000000000000000000",
	})

	cmd, err := ingestion.ParseRawCommand(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cmd.ID != commandID {
		t.Errorf("id: got %s, want %s", cmd.ID, commandID)
	}
	if cmd.Operation != core.OpDepositCollateralAndMintDsc {
		t.Errorf("operation: got %s", cmd.Operation)
	}
	if cmd.Sender != common.HexToAddress(aliceHex) || cmd.Token != common.HexToAddress(wethHex) {
		t.Errorf("addresses: got %s %s", cmd.Sender.Hex(), cmd.Token.Hex())
	}
	if cmd.AmountCollateral.Dec() != "10000000000000000000" {
		t.Errorf("amount_collateral: got %s", cmd.AmountCollateral.Dec())
	}
	if cmd.AmountDsc.Dec() != "4000000000000000000000" {
		t.Errorf("amount_dsc: got %s", cmd.AmountDsc.Dec())
	}
}

func TestParseTypeFromSubject(t *testing.T) {
	raw := rawFromJSON(t, "dsc.commands.mintDsc", map[string]interface{}{
		"command_id": commandID,
		"sender":     aliceHex,
		"amount_dsc": "1",
	})

	cmd, err := ingestion.ParseRawCommand(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cmd.Operation != core.OpMintDsc {
		t.Errorf("operation: got %s, want mintDsc", cmd.Operation)
	}
	if cmd.AmountCollateral != nil {
		t.Errorf("mintDsc should not read amount_collateral")
	}
}

func TestParseLiquidate(t *testing.T) {
	raw := rawFromJSON(t, "dsc.commands.liquidate", map[string]interface{}{
		"command_id": commandID,
		"sender":     bobHex,
		"token":      wethHex,
		"user":       aliceHex,
		"amount_dsc": "2000000000000000000000",
	})

	cmd, err := ingestion.ParseRawCommand(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cmd.User != common.HexToAddress(aliceHex) || cmd.Sender != common.HexToAddress(bobHex) {
		t.Errorf("liquidate: got user %s sender %s", cmd.User.Hex(), cmd.Sender.Hex())
	}
}

func TestParseZeroAmountIsLeftToEngine(t *testing.T) {
	raw := rawFromJSON(t, "dsc.commands.burnDsc", map[string]interface{}{
		"command_id": commandID,
		"sender":     aliceHex,
		"amount_dsc": "0",
	})
	cmd, err := ingestion.ParseRawCommand(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !cmd.AmountDsc.IsZero() {
		t.Errorf("amount: got %s, want 0", cmd.AmountDsc.Dec())
	}
}

func TestParseRejections(t *testing.T) {
	base := func() map[string]interface{} {
		return map[string]interface{}{
			"command_id":        commandID,
			"type":              "depositCollateral",
			"sender":            aliceHex,
			"token":             wethHex,
			"amount_collateral": "5",
		}
	}
	cases := map[string]func(m map[string]interface{}){
		"bad command id":  func(m map[string]interface{}) { m["command_id"] = "not-a-uuid" },
		"unknown type":    func(m map[string]interface{}) { m["type"] = "withdraw" },
		"bad sender":      func(m map[string]interface{}) { m["sender"] = "0x1234" },
		"missing token":   func(m map[string]interface{}) { delete(m, "token") },
		"missing amount":  func(m map[string]interface{}) { delete(m, "amount_collateral") },
		"negative amount": func(m map[string]interface{}) { m["amount_collateral"] = "-5" },
		"hex amount":      func(m map[string]interface{}) { m["amount_collateral"] = "0x05" },
	}

	for name, mutate := range cases {
		m := base()
		mutate(m)
		_, err := ingestion.ParseRawCommand(rawFromJSON(t, "dsc.commands.x", m))
		if !errors.Is(err, ingestion.ErrMalformedCommand) {
			t.Errorf("%s: got %v, want ErrMalformedCommand", name, err)
		}
	}
}

func TestParseInvalidJSON(t *testing.T) {
	raw := ingestion.RawCommand{Subject: "dsc.commands.mintDsc", Data: []byte("{not json")}
	if _, err := ingestion.ParseRawCommand(raw); !errors.Is(err, ingestion.ErrMalformedCommand) {
		t.Fatalf("got %v, want ErrMalformedCommand", err)
	}
}
