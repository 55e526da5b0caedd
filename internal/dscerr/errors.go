// Package dscerr defines the failure kinds returned by the engine.
//
// Every kind is a sentinel so callers can match with errors.Is. Kinds that
// carry a payload (the offending token, the computed health factor) are
// returned as typed errors that also satisfy errors.Is against the sentinel.
package dscerr

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrNeedsMoreThanZero       = errors.New("needs more than zero")
	ErrTokenNotAllowed         = errors.New("token not allowed")
	ErrTransferFailed          = errors.New("transfer failed")
	ErrMintFailed              = errors.New("mint failed")
	ErrBreaksHealthFactor      = errors.New("breaks health factor")
	ErrHealthFactorOk          = errors.New("health factor ok")
	ErrHealthFactorNotImproved = errors.New("health factor not improved")
	ErrInsufficientCollateral  = errors.New("insufficient collateral")
	ErrInsufficientDebt        = errors.New("insufficient debt")

	// ErrTokenAddressesAndPriceFeedAddressesAmountsDontMatch is only returned
	// while building the asset registry.
	ErrTokenAddressesAndPriceFeedAddressesAmountsDontMatch = errors.New("token addresses and price feed addresses amounts don't match")

	ErrAmountOverflow   = errors.New("amount overflow")
	ErrDivideByZero     = errors.New("division by zero")
	ErrPriceUnavailable = errors.New("price unavailable")
)

// TokenNotAllowedError reports a collateral asset missing from the registry.
type TokenNotAllowedError struct {
	Token common.Address
}

func (e *TokenNotAllowedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrTokenNotAllowed, e.Token.Hex())
}

func (e *TokenNotAllowedError) Is(target error) bool {
	return target == ErrTokenNotAllowed
}

// BreaksHealthFactorError carries the health factor the rejected mutation
// would have produced.
type BreaksHealthFactorError struct {
	HealthFactor *uint256.Int
}

func (e *BreaksHealthFactorError) Error() string {
	return fmt.Sprintf("%s: %s", ErrBreaksHealthFactor, e.HealthFactor.Dec())
}

func (e *BreaksHealthFactorError) Is(target error) bool {
	return target == ErrBreaksHealthFactor
}

func TokenNotAllowed(token common.Address) error {
	return &TokenNotAllowedError{Token: token}
}

func BreaksHealthFactor(hf *uint256.Int) error {
	return &BreaksHealthFactorError{HealthFactor: new(uint256.Int).Set(hf)}
}

// TransferFailed wraps the hook failure so both the kind and its cause are
// visible to callers.
func TransferFailed(cause error) error {
	if cause == nil {
		return ErrTransferFailed
	}
	return fmt.Errorf("%w: %w", ErrTransferFailed, cause)
}

func MintFailed(cause error) error {
	if cause == nil {
		return ErrMintFailed
	}
	return fmt.Errorf("%w: %w", ErrMintFailed, cause)
}

// IsDomain reports whether err is one of the engine's business rejections as
// opposed to an infrastructure failure.
func IsDomain(err error) bool {
	for _, kind := range domainKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

var domainKinds = []error{
	ErrNeedsMoreThanZero,
	ErrTokenNotAllowed,
	ErrTransferFailed,
	ErrMintFailed,
	ErrBreaksHealthFactor,
	ErrHealthFactorOk,
	ErrHealthFactorNotImproved,
	ErrInsufficientCollateral,
	ErrInsufficientDebt,
	ErrTokenAddressesAndPriceFeedAddressesAmountsDontMatch,
	ErrAmountOverflow,
	ErrDivideByZero,
	ErrPriceUnavailable,
}

// Kind returns the sentinel err matches, or nil.
func Kind(err error) error {
	for _, kind := range domainKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
