package registry

import (
	"DSCEngine/internal/dscerr"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Registry maps approved collateral tokens to their price feeds. It is built
// once at startup and never mutated, so it is safe for concurrent readers
// without locking.
type Registry struct {
	feeds  map[common.Address]common.Address
	tokens []common.Address // registration order
	dsc    common.Address
}

// New pairs tokens[i] with priceFeeds[i]. A length mismatch is fatal.
func New(tokens, priceFeeds []common.Address, dsc common.Address) (*Registry, error) {
	if len(tokens) != len(priceFeeds) {
		return nil, dscerr.ErrTokenAddressesAndPriceFeedAddressesAmountsDontMatch
	}

	r := &Registry{
		feeds:  make(map[common.Address]common.Address, len(tokens)),
		tokens: make([]common.Address, 0, len(tokens)),
		dsc:    dsc,
	}
	for i, token := range tokens {
		if _, dup := r.feeds[token]; dup {
			// A repeated token would be counted twice when valuing collateral.
			return nil, fmt.Errorf("registry: duplicate collateral token %s", token.Hex())
		}
		r.feeds[token] = priceFeeds[i]
		r.tokens = append(r.tokens, token)
	}
	return r, nil
}

// IsAllowed reports whether token is approved collateral.
func (r *Registry) IsAllowed(token common.Address) bool {
	_, ok := r.feeds[token]
	return ok
}

// Require returns TokenNotAllowed(token) for unregistered tokens.
func (r *Registry) Require(token common.Address) error {
	if !r.IsAllowed(token) {
		return dscerr.TokenNotAllowed(token)
	}
	return nil
}

// PriceFeed returns the feed registered for token. Unregistered tokens yield
// the zero address, mirroring an unset mapping slot.
func (r *Registry) PriceFeed(token common.Address) common.Address {
	return r.feeds[token]
}

// CollateralTokens returns the approved tokens in registration order.
func (r *Registry) CollateralTokens() []common.Address {
	out := make([]common.Address, len(r.tokens))
	copy(out, r.tokens)
	return out
}

// PriceFeeds returns the feeds in the same order as CollateralTokens.
func (r *Registry) PriceFeeds() []common.Address {
	out := make([]common.Address, len(r.tokens))
	for i, token := range r.tokens {
		out[i] = r.feeds[token]
	}
	return out
}

func (r *Registry) Dsc() common.Address {
	return r.dsc
}

func (r *Registry) Len() int {
	return len(r.tokens)
}
