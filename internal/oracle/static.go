package oracle

import (
	"DSCEngine/internal/dscerr"
	"DSCEngine/internal/math"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// StaticSource serves fixed prices, configured from the registry file for
// local runs or set directly by tests. It is both a Source and a Reader.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[common.Address]Price
	round  uint64
}

func NewStaticSource() *StaticSource {
	return &StaticSource{prices: make(map[common.Address]Price)}
}

// Set stores an answer already expressed with FeedDecimals.
func (s *StaticSource) Set(feed common.Address, answer *uint256.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.round++
	s.prices[feed] = Price{
		Feed:      feed,
		Answer:    math.Copy(answer),
		RoundID:   s.round,
		UpdatedAt: time.Now().UTC(),
	}
}

// SetUSD stores a human-readable USD price such as "2000" or "0.9998".
// Digits beyond FeedDecimals are truncated.
func (s *StaticSource) SetUSD(feed common.Address, usd string) error {
	d, err := decimal.NewFromString(usd)
	if err != nil {
		return fmt.Errorf("price %q: %w", usd, err)
	}
	if !d.IsPositive() {
		return fmt.Errorf("price %q must be positive", usd)
	}
	scaled := d.Shift(int32(math.FeedDecimals)).Truncate(0)
	answer, err := math.FromBig(scaled.BigInt())
	if err != nil {
		return fmt.Errorf("price %q: %w", usd, err)
	}
	if answer.IsZero() {
		return fmt.Errorf("price %q is below feed resolution", usd)
	}
	s.Set(feed, answer)
	return nil
}

func (s *StaticSource) Latest(_ context.Context, feed common.Address) (Price, error) {
	return s.Price(feed)
}

func (s *StaticSource) Price(feed common.Address) (Price, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[feed]
	if !ok {
		return Price{}, fmt.Errorf("%w: no static price for feed %s", dscerr.ErrPriceUnavailable, feed.Hex())
	}
	p.Answer = math.Copy(p.Answer)
	return p, nil
}
