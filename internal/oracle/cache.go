package oracle

import (
	"DSCEngine/internal/dscerr"
	"DSCEngine/internal/math"
	"DSCEngine/internal/observability"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Cache holds the last good answer per feed. A background loop refreshes it
// from a Source so the engine never performs network I/O while holding its
// write lock.
type Cache struct {
	source  Source
	feeds   []common.Address
	metrics *observability.Metrics
	logger  zerolog.Logger

	mu     sync.RWMutex
	prices map[common.Address]Price
}

func NewCache(source Source, feeds []common.Address, metrics *observability.Metrics, logger zerolog.Logger) *Cache {
	fs := make([]common.Address, len(feeds))
	copy(fs, feeds)
	return &Cache{
		source:  source,
		feeds:   fs,
		metrics: metrics,
		logger:  logger,
		prices:  make(map[common.Address]Price, len(feeds)),
	}
}

// Price returns the cached answer for feed.
func (c *Cache) Price(feed common.Address) (Price, error) {
	c.mu.RLock()
	p, ok := c.prices[feed]
	c.mu.RUnlock()
	if !ok {
		return Price{}, fmt.Errorf("%w: feed %s not loaded", dscerr.ErrPriceUnavailable, feed.Hex())
	}
	p.Answer = math.Copy(p.Answer)
	return p, nil
}

// Refresh reads every feed once. Feeds that fail keep their previous answer;
// the joined error lists the failures.
func (c *Cache) Refresh(ctx context.Context) error {
	var errs []error
	for _, feed := range c.feeds {
		p, err := c.source.Latest(ctx, feed)
		if err != nil {
			c.metrics.PriceRefreshFailure.WithLabelValues(feed.Hex()).Inc()
			c.logger.Warn().Err(err).Str("feed", feed.Hex()).Msg("price refresh failed")
			errs = append(errs, err)
			continue
		}
		c.metrics.PriceRefreshes.WithLabelValues(feed.Hex()).Inc()
		if !p.UpdatedAt.IsZero() {
			c.metrics.PriceAge.WithLabelValues(feed.Hex()).Set(time.Since(p.UpdatedAt).Seconds())
		}

		c.mu.Lock()
		c.prices[feed] = p
		c.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Loaded reports whether every feed has at least one answer.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, feed := range c.feeds {
		if _, ok := c.prices[feed]; !ok {
			return false
		}
	}
	return true
}

// Run refreshes on every tick until ctx is cancelled.
func (c *Cache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Refresh(ctx)
		}
	}
}
