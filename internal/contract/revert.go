package contract

import (
	"DSCEngine/internal/dscerr"
	"DSCEngine/internal/math"
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Solidity panic codes the engine can produce.
const (
	PanicArithmetic   uint64 = 0x11
	PanicDivideByZero uint64 = 0x12
)

var (
	errorStringSelector = crypto.Keccak256([]byte("Error(string)"))[:4]
	panicSelector       = crypto.Keccak256([]byte("Panic(uint256)"))[:4]

	uint256Args = abi.Arguments{{Type: mustType("uint256")}}
	stringArgs  = abi.Arguments{{Type: mustType("string")}}
)

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// errorNames maps the payload-free engine error kinds to their ABI custom
// errors.
var errorNames = []struct {
	kind error
	name string
}{
	{dscerr.ErrNeedsMoreThanZero, "DSCEngine__NeedsMoreThanZero"},
	{dscerr.ErrTransferFailed, "DSCEngine__TransferFailed"},
	{dscerr.ErrMintFailed, "DSCEngine__MintFailed"},
	{dscerr.ErrHealthFactorOk, "DSCEngine__HealthFactorOk"},
	{dscerr.ErrHealthFactorNotImproved, "DSCEngine__HealthFactorNotImproved"},
	{dscerr.ErrTokenAddressesAndPriceFeedAddressesAmountsDontMatch, "DSCEngine__TokenAddressesAndPriceFeedAddressesAmountsDontMatch"},
}

// RevertError is an engine rejection in contract form. Data is what an EVM
// call would have returned as revert data.
type RevertError struct {
	// Name is the custom error name, "Panic" or "Error".
	Name string
	Data []byte
	Err  error
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("execution reverted: %s: %v", e.Name, e.Err)
}

func (e *RevertError) Unwrap() error {
	return e.Err
}

// ErrorData returns the revert data as 0x-prefixed hex, the form JSON-RPC
// clients expect.
func (e *RevertError) ErrorData() interface{} {
	return hexutil.Encode(e.Data)
}

// PanicError is a decoded Panic(uint256).
type PanicError struct {
	Code uint64
}

func (e *PanicError) Error() string {
	switch e.Code {
	case PanicArithmetic:
		return "panic: arithmetic underflow or overflow (0x11)"
	case PanicDivideByZero:
		return "panic: division or modulo by zero (0x12)"
	default:
		return fmt.Sprintf("panic: code 0x%x", e.Code)
	}
}

// NewRevert converts an engine error into revert data. Errors that are not
// engine rejections (a cancelled context, a broken hook wiring) return nil
// and should be reported as infrastructure failures.
func NewRevert(err error) *RevertError {
	if err == nil {
		return nil
	}

	var notAllowed *dscerr.TokenNotAllowedError
	var breaks *dscerr.BreaksHealthFactorError
	switch {
	case errors.As(err, &notAllowed):
		return customRevert("DSCEngine__TokenNotAllowed", err, notAllowed.Token)
	case errors.As(err, &breaks):
		return customRevert("DSCEngine__BreaksHealthFactor", err, breaks.HealthFactor.ToBig())
	case errors.Is(err, dscerr.ErrTokenNotAllowed):
		return customRevert("DSCEngine__TokenNotAllowed", err, common.Address{})
	case errors.Is(err, dscerr.ErrBreaksHealthFactor):
		return customRevert("DSCEngine__BreaksHealthFactor", err, new(big.Int))
	case errors.Is(err, dscerr.ErrInsufficientCollateral),
		errors.Is(err, dscerr.ErrInsufficientDebt),
		errors.Is(err, dscerr.ErrAmountOverflow):
		return panicRevert(PanicArithmetic, err)
	case errors.Is(err, dscerr.ErrDivideByZero):
		return panicRevert(PanicDivideByZero, err)
	case errors.Is(err, dscerr.ErrPriceUnavailable):
		data, _ := stringArgs.Pack(err.Error())
		return &RevertError{Name: "Error", Data: append(bytes.Clone(errorStringSelector), data...), Err: err}
	}

	for _, e := range errorNames {
		if errors.Is(err, e.kind) {
			return customRevert(e.name, err)
		}
	}
	return nil
}

func customRevert(name string, err error, args ...interface{}) *RevertError {
	abiErr, ok := parsedABI.Errors[name]
	if !ok {
		panic("missing ABI error " + name)
	}
	payload, packErr := abiErr.Inputs.Pack(args...)
	if packErr != nil {
		panic(fmt.Sprintf("pack %s: %v", name, packErr))
	}
	data := append(bytes.Clone(abiErr.ID[:4]), payload...)
	return &RevertError{Name: name, Data: data, Err: err}
}

func panicRevert(code uint64, err error) *RevertError {
	payload, _ := uint256Args.Pack(new(big.Int).SetUint64(code))
	return &RevertError{Name: "Panic", Data: append(bytes.Clone(panicSelector), payload...), Err: err}
}

// DecodeRevert maps revert data back to engine errors. Custom errors come
// back as the same typed errors the engine returns, panics as *PanicError.
func DecodeRevert(data []byte) (error, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("revert data too short: %d bytes", len(data))
	}
	selector, payload := data[:4], data[4:]

	switch {
	case bytes.Equal(selector, panicSelector):
		vals, err := uint256Args.Unpack(payload)
		if err != nil {
			return nil, fmt.Errorf("decode panic: %w", err)
		}
		return &PanicError{Code: vals[0].(*big.Int).Uint64()}, nil
	case bytes.Equal(selector, errorStringSelector):
		vals, err := stringArgs.Unpack(payload)
		if err != nil {
			return nil, fmt.Errorf("decode error string: %w", err)
		}
		return errors.New(vals[0].(string)), nil
	}

	for name, abiErr := range parsedABI.Errors {
		if !bytes.Equal(abiErr.ID[:4], selector) {
			continue
		}
		vals, err := abiErr.Inputs.Unpack(payload)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		switch name {
		case "DSCEngine__TokenNotAllowed":
			return dscerr.TokenNotAllowed(vals[0].(common.Address)), nil
		case "DSCEngine__BreaksHealthFactor":
			hf, err := math.FromBig(vals[0].(*big.Int))
			if err != nil {
				return nil, err
			}
			return dscerr.BreaksHealthFactor(hf), nil
		}
		for _, e := range errorNames {
			if e.name == name {
				return e.kind, nil
			}
		}
	}
	return nil, fmt.Errorf("unknown revert selector 0x%x", selector)
}
