package core

import (
	"DSCEngine/internal/dscerr"
	"DSCEngine/internal/event"
	"DSCEngine/internal/ledger"
	"DSCEngine/internal/observability"
	"DSCEngine/internal/oracle"
	"DSCEngine/internal/registry"
	"DSCEngine/internal/risk"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// ErrDuplicateCommand is returned when a command id was already committed.
var ErrDuplicateCommand = errors.New("duplicate command")

// Engine owns the position ledger. Mutations are serialized behind a single
// write lock and run against a working copy that is committed only when
// every check and hook succeeds. Readers share the read lock and always see
// a committed state.
type Engine struct {
	mu sync.RWMutex

	ledger     *ledger.Ledger
	registry   *registry.Registry
	oracle     *oracle.Adapter
	calc       *risk.Calculator
	collateral CollateralTransfer
	dsc        DebtToken
	custody    common.Address

	sequence    int64
	hasher      *StateHasher
	idempotency *IdempotencyChecker

	metrics *observability.Metrics
	logger  zerolog.Logger
	clock   func() time.Time

	persistChan    chan<- Output
	projectionChan chan<- Output
	publishChan    chan<- Output
}

// Config wires an Engine. Nil channels are skipped.
type Config struct {
	Registry   *registry.Registry
	Prices     oracle.Reader
	Collateral CollateralTransfer
	Debt       DebtToken

	// Custody is the account that holds deposited collateral.
	Custody common.Address

	DedupCapacity int
	DedupDB       DBIdempotencyChecker

	Metrics *observability.Metrics
	Logger  zerolog.Logger
	Clock   func() time.Time

	PersistChan    chan<- Output
	ProjectionChan chan<- Output
	PublishChan    chan<- Output
}

// Output is emitted once per committed operation.
type Output struct {
	Sequence  int64
	CommandID string
	Operation Operation
	Caller    common.Address
	Events    []event.Event
	Journal   ledger.Journal
	StateHash common.Hash
	PrevHash  common.Hash
	Timestamp time.Time
}

func NewEngine(cfg Config) *Engine {
	adapter := oracle.NewAdapter(cfg.Registry, cfg.Prices)
	capacity := cfg.DedupCapacity
	if capacity <= 0 {
		capacity = 100_000
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		ledger:         ledger.New(),
		registry:       cfg.Registry,
		oracle:         adapter,
		calc:           risk.NewCalculator(cfg.Registry.CollateralTokens(), adapter),
		collateral:     cfg.Collateral,
		dsc:            cfg.Debt,
		custody:        cfg.Custody,
		hasher:         NewStateHasher(),
		idempotency:    NewIdempotencyChecker(capacity, cfg.DedupDB, cfg.Metrics, cfg.Logger),
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		clock:          clock,
		persistChan:    cfg.PersistChan,
		projectionChan: cfg.ProjectionChan,
		publishChan:    cfg.PublishChan,
	}
}

type commandIDKey struct{}

// WithCommandID tags ctx with an idempotency key for the next mutation.
func WithCommandID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, commandIDKey{}, id)
}

func commandID(ctx context.Context) string {
	id, _ := ctx.Value(commandIDKey{}).(string)
	return id
}

// execute is the mutation pipeline: dedup, build the working copy, run
// hooks, commit, hash, emit.
func (e *Engine) execute(ctx context.Context, operation Operation, caller common.Address, fn func(o *op) error) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := commandID(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	start := time.Now()

	dup, err := e.idempotency.IsDuplicate(id)
	if err != nil {
		e.reject(operation, err)
		return nil, err
	}
	if dup {
		e.metrics.OperationsRejected.WithLabelValues(operation.String(), "duplicate").Inc()
		return nil, ErrDuplicateCommand
	}

	o := &op{engine: e, tx: e.ledger.Begin()}
	if err := fn(o); err != nil {
		o.tx.Discard()
		e.reject(operation, err)
		return nil, err
	}
	if err := o.runHooks(); err != nil {
		o.tx.Discard()
		e.reject(operation, err)
		return nil, err
	}

	journal := o.tx.Commit()
	e.sequence++

	hashStart := time.Now()
	prev := e.hasher.GetPrevHash()
	hash := e.hasher.ComputeHash(e.sequence, OperationDigest(operation.String(), journal))
	e.metrics.StateHashDur.Observe(time.Since(hashStart).Seconds())

	out := Output{
		Sequence:  e.sequence,
		CommandID: id,
		Operation: operation,
		Caller:    caller,
		Events:    o.events,
		Journal:   journal,
		StateHash: hash,
		PrevHash:  prev,
		Timestamp: e.clock().UTC(),
	}
	e.emit(out)
	e.idempotency.MarkProcessed(id)

	e.metrics.OperationsApplied.WithLabelValues(operation.String()).Inc()
	e.metrics.OperationDuration.WithLabelValues(operation.String()).Observe(time.Since(start).Seconds())
	e.metrics.Sequence.Set(float64(e.sequence))
	for _, entry := range journal {
		e.metrics.JournalEntries.WithLabelValues(entry.Kind.String()).Inc()
	}

	e.logger.Debug().
		Int64("sequence", out.Sequence).
		Str("operation", operation.String()).
		Str("caller", caller.Hex()).
		Int("entries", len(journal)).
		Msg("operation committed")

	return &out, nil
}

// emit hands the output to downstream workers. Persistence blocks so no
// committed operation is lost; projections and publishing drop when full
// and catch up from the log.
func (e *Engine) emit(out Output) {
	if e.persistChan != nil {
		select {
		case e.persistChan <- out:
		default:
			e.metrics.PersistBackpressure.Inc()
			e.persistChan <- out
		}
	}
	if e.projectionChan != nil {
		select {
		case e.projectionChan <- out:
		default:
			e.metrics.ProjectionDrops.Inc()
		}
	}
	if e.publishChan != nil && len(out.Events) > 0 {
		select {
		case e.publishChan <- out:
		default:
			e.metrics.PublishDrops.Inc()
		}
	}
}

func (e *Engine) reject(operation Operation, err error) {
	reason := "internal"
	if kind := dscerr.Kind(err); kind != nil {
		reason = kind.Error()
	}
	e.metrics.OperationsRejected.WithLabelValues(operation.String(), reason).Inc()
	if errors.Is(err, dscerr.ErrBreaksHealthFactor) {
		e.metrics.HealthFactorBreaks.WithLabelValues(operation.String()).Inc()
	}
	e.logger.Debug().Err(err).Str("operation", operation.String()).Msg("operation rejected")
}

// GetSequence returns the last committed sequence.
func (e *Engine) GetSequence() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sequence
}

// StateHash returns the chain tip.
func (e *Engine) StateHash() common.Hash {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hasher.GetPrevHash()
}

// Custody is the account holding deposited collateral.
func (e *Engine) Custody() common.Address {
	return e.custody
}

// --- snapshots and replay ---

// SnapshotState is everything needed to resume the engine.
type SnapshotState struct {
	Sequence  int64           `json:"sequence"`
	StateHash common.Hash     `json:"state_hash"`
	Ledger    ledger.Snapshot `json:"ledger"`
}

func (e *Engine) CreateSnapshotState() SnapshotState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return SnapshotState{
		Sequence:  e.sequence,
		StateHash: e.hasher.GetPrevHash(),
		Ledger:    e.ledger.Snapshot(),
	}
}

// RestoreFromSnapshot replaces the ledger and chain position.
func (e *Engine) RestoreFromSnapshot(s SnapshotState) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ledger.Restore(s.Ledger); err != nil {
		return fmt.Errorf("restore ledger: %w", err)
	}
	e.sequence = s.Sequence
	e.hasher.Reset(s.StateHash)
	e.metrics.Sequence.Set(float64(e.sequence))
	return nil
}

// ReplayRecord is one persisted operation.
type ReplayRecord struct {
	Sequence  int64
	CommandID string
	Operation string
	Journal   ledger.Journal
	StateHash common.Hash
}

// Replay reapplies persisted operations after a snapshot. Records must be
// contiguous and each recomputed hash must match the stored one.
func (e *Engine) Replay(records []ReplayRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range records {
		if r.Sequence != e.sequence+1 {
			return fmt.Errorf("replay gap: at %d, next record is %d", e.sequence, r.Sequence)
		}
		if err := e.ledger.Apply(r.Journal); err != nil {
			return fmt.Errorf("replay sequence %d: %w", r.Sequence, err)
		}
		hash := e.hasher.ComputeHash(r.Sequence, OperationDigest(r.Operation, r.Journal))
		if hash != r.StateHash {
			return fmt.Errorf("replay sequence %d: state hash %s, log has %s", r.Sequence, hash.Hex(), r.StateHash.Hex())
		}
		e.sequence = r.Sequence
		e.idempotency.MarkProcessed(r.CommandID)
		e.metrics.ReplayOpsTotal.Inc()
	}
	e.metrics.Sequence.Set(float64(e.sequence))
	return nil
}

// WarmLRU preloads recent command ids.
func (e *Engine) WarmLRU(commandIDs []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idempotency.Warm(commandIDs)
}

// op is the working state of one mutation.
type op struct {
	engine *Engine
	tx     *ledger.Tx
	hooks  []hook
	events []event.Event
}

// requireHealthy fails with BreaksHealthFactor when user's position in the
// working copy is below the minimum.
func (o *op) requireHealthy(user common.Address) error {
	hf, err := o.engine.calc.HealthFactor(o.tx, user)
	if err != nil {
		return err
	}
	if risk.StatusOf(hf) == risk.StatusUnsafe {
		return dscerr.BreaksHealthFactor(hf)
	}
	return nil
}

func (o *op) healthFactor(user common.Address) (*uint256.Int, error) {
	return o.engine.calc.HealthFactor(o.tx, user)
}

func (o *op) queue(h hook) {
	o.hooks = append(o.hooks, h)
}

func (o *op) emit(ev event.Event) {
	o.events = append(o.events, ev)
}

// runHooks executes queued hooks in order, undoing completed ones in
// reverse if any fails.
func (o *op) runHooks() error {
	for i, h := range o.hooks {
		if err := h.do(); err != nil {
			for j := i - 1; j >= 0; j-- {
				done := o.hooks[j]
				o.engine.metrics.HookCompensations.WithLabelValues(done.name).Inc()
				if undoErr := done.undo(); undoErr != nil {
					o.engine.logger.Error().Err(undoErr).Str("hook", done.name).
						Msg("hook compensation failed; external balances diverge from ledger")
				}
			}
			return err
		}
	}
	return nil
}
