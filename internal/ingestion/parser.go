package ingestion

import (
	"DSCEngine/internal/core"
	"DSCEngine/internal/math"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// ErrMalformedCommand marks messages that can never succeed; they are
// terminated instead of redelivered.
var ErrMalformedCommand = errors.New("malformed command")

// --- JSON wire format ---
// Field names use snake_case to match upstream producers. Amounts are
// base-10 strings of base units (18 decimals).

// CommandJSON is the command envelope shared by NATS and the gRPC API.
type CommandJSON struct {
	CommandID        string `json:"command_id"`
	Type             string `json:"type"`
	Sender           string `json:"sender"`
	Token            string `json:"token,omitempty"`
	User             string `json:"user,omitempty"`
	AmountCollateral string `json:"amount_collateral,omitempty"`
	AmountDsc        string `json:"amount_dsc,omitempty"`
}

// ParseRawCommand converts a RawCommand into a core.Command. When the body
// carries no type, the last subject token names the operation
// (dsc.commands.depositCollateral).
func ParseRawCommand(raw RawCommand) (core.Command, error) {
	cmd, err := ParseCommand(raw.Data, subjectOperation(raw.Subject))
	if err != nil {
		return core.Command{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	return cmd, nil
}

// ParseCommand decodes one JSON command. fallbackType is used when the
// body's type field is empty.
func ParseCommand(data []byte, fallbackType string) (core.Command, error) {
	var j CommandJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return core.Command{}, fmt.Errorf("parse command: %w", err)
	}
	return j.Command(fallbackType)
}

// Command validates j and converts it. fallbackType is used when j.Type is
// empty.
func (j CommandJSON) Command(fallbackType string) (core.Command, error) {
	if _, err := uuid.Parse(j.CommandID); err != nil {
		return core.Command{}, fmt.Errorf("parse command_id: %w", err)
	}

	typ := strings.TrimSpace(j.Type)
	if typ == "" {
		typ = fallbackType
	}
	op, err := core.ParseOperation(typ)
	if err != nil {
		return core.Command{}, fmt.Errorf("parse type: %w", err)
	}

	sender, err := parseAddress("sender", j.Sender)
	if err != nil {
		return core.Command{}, err
	}
	cmd := core.Command{ID: j.CommandID, Operation: op, Sender: sender}

	needToken := op != core.OpMintDsc && op != core.OpBurnDsc
	needCollateral := op == core.OpDepositCollateral || op == core.OpRedeemCollateral ||
		op == core.OpDepositCollateralAndMintDsc || op == core.OpRedeemCollateralForDsc
	needDsc := op != core.OpDepositCollateral && op != core.OpRedeemCollateral

	if needToken {
		if cmd.Token, err = parseAddress("token", j.Token); err != nil {
			return core.Command{}, err
		}
	}
	if op == core.OpLiquidate {
		if cmd.User, err = parseAddress("user", j.User); err != nil {
			return core.Command{}, err
		}
	}
	if needCollateral {
		if cmd.AmountCollateral, err = parseAmount("amount_collateral", j.AmountCollateral); err != nil {
			return core.Command{}, err
		}
	}
	if needDsc {
		if cmd.AmountDsc, err = parseAmount("amount_dsc", j.AmountDsc); err != nil {
			return core.Command{}, err
		}
	}
	return cmd, nil
}

func parseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("parse %s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

// parseAmount accepts zero; the engine rejects it with NeedsMoreThanZero so
// the rejection is recorded like any other.
func parseAmount(field, s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("parse %s: missing", field)
	}
	v, err := math.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", field, err)
	}
	return v, nil
}

func subjectOperation(subject string) string {
	if i := strings.LastIndexByte(subject, '.'); i >= 0 {
		return subject[i+1:]
	}
	return ""
}
