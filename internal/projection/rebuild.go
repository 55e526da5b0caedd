package projection

import (
	"DSCEngine/internal/core"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// OperationSource pages through the operation log. Implemented by
// persistence.SnapshotManager.
type OperationSource interface {
	LoadOperationsFrom(ctx context.Context, from int64, limit int) ([]core.ReplayRecord, error)
}

const rebuildPage = 1000

// Rebuild truncates the read model and replays every logged journal into
// it. It returns the sequence the read model ends at.
func Rebuild(ctx context.Context, db *sql.DB, src OperationSource, logger zerolog.Logger) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`TRUNCATE read_model.positions`,
		`TRUNCATE read_model.collateral`,
		`DELETE FROM read_model.watermark`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("truncate failed: %w", err)
		}
	}

	var last int64
	now := time.Now().UTC()
	for {
		records, err := src.LoadOperationsFrom(ctx, last+1, rebuildPage)
		if err != nil {
			return 0, fmt.Errorf("load operations after %d: %w", last, err)
		}
		for _, r := range records {
			if err := applyChanges(ctx, tx, r.Sequence, NetChanges(r.Journal), now); err != nil {
				return 0, fmt.Errorf("sequence %d: %w", r.Sequence, err)
			}
			last = r.Sequence
		}
		if len(records) < rebuildPage {
			break
		}
	}

	if last > 0 {
		if err := setWatermark(ctx, tx, last); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	logger.Info().Int64("sequence", last).Msg("projection rebuild complete")
	return last, nil
}
