package core

import (
	"DSCEngine/internal/observability"
	"container/list"
	"fmt"

	"github.com/rs/zerolog"
)

// IdempotencyChecker deduplicates command ids against recently committed
// ids and, on a miss, the operation log. Only used under the engine's
// write lock.
type IdempotencyChecker struct {
	recent    *recentCommands
	dbChecker DBIdempotencyChecker

	metrics *observability.Metrics
	logger  zerolog.Logger
}

// DBIdempotencyChecker looks a command id up in the operation log.
type DBIdempotencyChecker interface {
	IsProcessed(commandID string) (bool, error)
}

func NewIdempotencyChecker(capacity int, dbChecker DBIdempotencyChecker, metrics *observability.Metrics, logger zerolog.Logger) *IdempotencyChecker {
	return &IdempotencyChecker{
		recent:    newRecentCommands(capacity),
		dbChecker: dbChecker,
		metrics:   metrics,
		logger:    logger,
	}
}

// IsDuplicate checks both tiers. An empty id is never a duplicate. A failed
// tier-2 lookup is returned as an error; committing anyway could put a
// second row with the same command id into the operation log.
func (ic *IdempotencyChecker) IsDuplicate(commandID string) (bool, error) {
	if commandID == "" {
		return false, nil
	}

	if ic.recent.seen(commandID) {
		ic.metrics.IdempotencyDuplicates.WithLabelValues("lru").Inc()
		return true, nil
	}
	if ic.dbChecker == nil {
		return false, nil
	}

	logged, err := ic.dbChecker.IsProcessed(commandID)
	if err != nil {
		ic.logger.Warn().Err(err).Str("command_id", commandID).Msg("tier-2 dedup lookup failed")
		return false, fmt.Errorf("dedup lookup %s: %w", commandID, err)
	}
	if logged {
		ic.metrics.IdempotencyDuplicates.WithLabelValues("postgres").Inc()
		ic.remember(commandID)
	}
	return logged, nil
}

// MarkProcessed records a committed command id.
func (ic *IdempotencyChecker) MarkProcessed(commandID string) {
	if commandID != "" {
		ic.remember(commandID)
	}
}

// Warm preloads ids oldest first, so the newest end up most recent.
func (ic *IdempotencyChecker) Warm(commandIDs []string) {
	for _, id := range commandIDs {
		ic.remember(id)
	}
}

func (ic *IdempotencyChecker) remember(commandID string) {
	if ic.recent.add(commandID) {
		ic.metrics.DedupLRUEvictions.Inc()
	}
	ic.metrics.DedupLRUSize.Set(float64(ic.recent.len()))
}

// recentCommands is a bounded set of command ids with least-recently-seen
// eviction.
type recentCommands struct {
	limit int
	order *list.List // front is most recent
	index map[string]*list.Element
}

func newRecentCommands(limit int) *recentCommands {
	if limit < 1 {
		limit = 1
	}
	return &recentCommands{
		limit: limit,
		order: list.New(),
		index: make(map[string]*list.Element, limit),
	}
}

func (r *recentCommands) seen(id string) bool {
	el, ok := r.index[id]
	if ok {
		r.order.MoveToFront(el)
	}
	return ok
}

// add reports whether an older id was evicted to make room.
func (r *recentCommands) add(id string) bool {
	if r.seen(id) {
		return false
	}
	r.index[id] = r.order.PushFront(id)
	if r.order.Len() <= r.limit {
		return false
	}
	oldest := r.order.Back()
	r.order.Remove(oldest)
	delete(r.index, oldest.Value.(string))
	return true
}

func (r *recentCommands) len() int {
	return r.order.Len()
}
