package persistence

import (
	"DSCEngine/internal/core"
	"DSCEngine/internal/observability"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// BatchWriter durably stores a batch of operation rows. Implemented by
// OperationLogWriter.
type BatchWriter interface {
	WriteBatch(ctx context.Context, rows []OperationRow) error
}

// PersistenceWorker drains the persist channel and batch-writes to Postgres.
// The engine sends on that channel with a blocking send, so if this worker
// falls behind the engine stalls and no committed operation is lost.
type PersistenceWorker struct {
	writer       BatchWriter
	inputChan    <-chan core.Output
	batchSize    int
	flushTimeout time.Duration
	maxBackoff   time.Duration
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

func NewPersistenceWorker(
	writer BatchWriter,
	inputChan <-chan core.Output,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *PersistenceWorker {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &PersistenceWorker{
		writer:       writer,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		maxBackoff:   30 * time.Second,
		metrics:      metrics,
		logger:       logger,
	}
}

// Run batches incoming outputs and flushes either when the batch is full or
// the flush timeout expires. It returns when the channel is closed (after a
// final flush) or ctx is cancelled.
func (pw *PersistenceWorker) Run(ctx context.Context) error {
	batch := make([]OperationRow, 0, pw.batchSize)

	timer := time.NewTimer(pw.flushTimeout)
	defer timer.Stop()

	flush := func(ctx context.Context, reason string) {
		if len(batch) == 0 {
			return
		}
		if err := pw.flushWithRetry(ctx, batch); err != nil {
			pw.logger.Error().Err(err).Str("reason", reason).Int("operations", len(batch)).Msg("batch flush failed")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush(context.Background(), "shutdown")
			return ctx.Err()

		case out, ok := <-pw.inputChan:
			if !ok {
				flush(context.Background(), "closed")
				return nil
			}

			row, err := NewOperationRow(out)
			if err != nil {
				// Unreachable for engine outputs; a row we cannot encode
				// would also fail on every retry.
				pw.metrics.PersistErrors.WithLabelValues("encode").Inc()
				pw.logger.Error().Err(err).Int64("sequence", out.Sequence).Msg("encode operation")
				continue
			}
			batch = append(batch, row)

			if len(batch) >= pw.batchSize {
				flush(ctx, "full")
				timer.Reset(pw.flushTimeout)
			}

		case <-timer.C:
			flush(ctx, "timeout")
			timer.Reset(pw.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write succeeds
// or ctx is cancelled, in which case one last attempt is made with a
// background context.
func (pw *PersistenceWorker) flushWithRetry(ctx context.Context, rows []OperationRow) error {
	backoff := 100 * time.Millisecond

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			pw.metrics.PersistRetry.Inc()
			pw.logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("operations", len(rows)).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				if err := pw.flush(context.Background(), rows); err != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", err)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > pw.maxBackoff {
				backoff = pw.maxBackoff
			}
		}

		err := pw.flush(ctx, rows)
		if err == nil {
			if attempt > 0 {
				pw.logger.Info().Int("retries", attempt).Msg("persistence flush succeeded")
			}
			return nil
		}
		pw.logger.Warn().Err(err).Msg("persistence flush failed")
	}
}

func (pw *PersistenceWorker) flush(ctx context.Context, rows []OperationRow) error {
	start := time.Now()

	if err := pw.writer.WriteBatch(ctx, rows); err != nil {
		pw.metrics.PersistErrors.WithLabelValues("write").Inc()
		return err
	}

	pw.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
	pw.metrics.PersistBatchSize.Observe(float64(len(rows)))
	pw.metrics.PersistOpsWritten.Add(float64(len(rows)))
	pw.metrics.PersistLastSequence.Set(float64(rows[len(rows)-1].Sequence))
	return nil
}
