// Package oracle reads USD prices for collateral tokens and converts between
// token amounts and USD values.
package oracle

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Price is a feed answer normalized to math.FeedDecimals.
type Price struct {
	Feed      common.Address
	Answer    *uint256.Int
	RoundID   uint64
	UpdatedAt time.Time
}

// Source fetches the latest answer from a feed. Implementations may block on
// network I/O and are only called outside the engine's write lock.
type Source interface {
	Latest(ctx context.Context, feed common.Address) (Price, error)
}

// Reader returns an already-resolved price without blocking. The engine only
// reads prices through this interface.
type Reader interface {
	Price(feed common.Address) (Price, error)
}
