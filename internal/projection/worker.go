package projection

import (
	"DSCEngine/internal/core"
	"DSCEngine/internal/ledger"
	"DSCEngine/internal/observability"
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Change is the net effect of one operation on one read-model row. Token
// is the zero address for the debt row.
type Change struct {
	User  common.Address
	Token common.Address
	Delta *big.Int
}

// NetChanges folds a journal into signed per-row deltas, ordered by user
// then token. Rows whose entries cancel out are dropped.
func NetChanges(j ledger.Journal) []Change {
	type key struct{ user, token common.Address }
	sums := make(map[key]*big.Int)
	for _, e := range j {
		k := key{user: e.User, token: e.Asset}
		if sums[k] == nil {
			sums[k] = new(big.Int)
		}
		switch e.Kind {
		case ledger.EntryCollateralCredit, ledger.EntryDebtIncrease:
			sums[k].Add(sums[k], e.Amount.ToBig())
		case ledger.EntryCollateralDebit, ledger.EntryDebtDecrease:
			sums[k].Sub(sums[k], e.Amount.ToBig())
		}
	}

	changes := make([]Change, 0, len(sums))
	for k, d := range sums {
		if d.Sign() != 0 {
			changes = append(changes, Change{User: k.user, Token: k.token, Delta: d})
		}
	}
	sort.Slice(changes, func(a, b int) bool {
		if c := changes[a].User.Cmp(changes[b].User); c != 0 {
			return c < 0
		}
		return changes[a].Token.Cmp(changes[b].Token) < 0
	})
	return changes
}

// ProjectionWorker maintains read_model.positions and read_model.collateral.
// The projection channel is non-blocking with drop, so the read model can
// fall behind; Rebuild restores it from the operation log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan core.Output
	metrics   *observability.Metrics
	logger    zerolog.Logger
	lastSeq   int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan core.Output, metrics *observability.Metrics, logger zerolog.Logger) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled or the channel is closed.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	seq, err := Watermark(ctx, pw.db)
	if err != nil {
		return fmt.Errorf("load watermark: %w", err)
	}
	pw.lastSeq = seq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-pw.inputChan:
			if !ok {
				return nil
			}
			if out.Sequence <= pw.lastSeq {
				continue
			}
			if out.Sequence != pw.lastSeq+1 {
				// Outputs were dropped; the read model is stale until rebuilt.
				pw.logger.Warn().Int64("watermark", pw.lastSeq).Int64("sequence", out.Sequence).Msg("projection gap")
			}
			if err := pw.Apply(ctx, out.Sequence, out.Journal, out.Timestamp); err != nil {
				pw.metrics.ProjectionErrors.Inc()
				pw.logger.Warn().Err(err).Int64("sequence", out.Sequence).Msg("projection update failed")
				continue
			}
			pw.lastSeq = out.Sequence
			pw.metrics.ProjectionLastSequence.Set(float64(out.Sequence))
		}
	}
}

// Apply writes one operation's changes and advances the watermark in a
// single transaction.
func (pw *ProjectionWorker) Apply(ctx context.Context, seq int64, j ledger.Journal, at time.Time) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := applyChanges(ctx, tx, seq, NetChanges(j), at); err != nil {
		return err
	}
	if err := setWatermark(ctx, tx, seq); err != nil {
		return err
	}
	return tx.Commit()
}

func applyChanges(ctx context.Context, tx *sql.Tx, seq int64, changes []Change, at time.Time) error {
	for _, c := range changes {
		var err error
		if c.Token == (common.Address{}) {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO read_model.positions (user_addr, dsc_minted, last_sequence, updated_at)
				VALUES ($1, $2::numeric, $3, $4)
				ON CONFLICT (user_addr)
				DO UPDATE SET dsc_minted = read_model.positions.dsc_minted + $2::numeric,
				              last_sequence = $3, updated_at = $4
			`, c.User.Bytes(), c.Delta.String(), seq, at)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO read_model.collateral (user_addr, token, amount, last_sequence, updated_at)
				VALUES ($1, $2, $3::numeric, $4, $5)
				ON CONFLICT (user_addr, token)
				DO UPDATE SET amount = read_model.collateral.amount + $3::numeric,
				              last_sequence = $4, updated_at = $5
			`, c.User.Bytes(), c.Token.Bytes(), c.Delta.String(), seq, at)
		}
		if err != nil {
			return fmt.Errorf("apply %s/%s: %w", c.User.Hex(), c.Token.Hex(), err)
		}
	}
	return nil
}

func setWatermark(ctx context.Context, tx *sql.Tx, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO read_model.watermark (id, last_sequence) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_sequence = $1
	`, seq)
	if err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}
	return nil
}

// Watermark returns the highest sequence applied to the read model.
func Watermark(ctx context.Context, db *sql.DB) (int64, error) {
	var seq int64
	err := db.QueryRowContext(ctx, `SELECT last_sequence FROM read_model.watermark WHERE id = 1`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
