package main

import (
	"DSCEngine/internal/core"
	"DSCEngine/internal/observability"
	"DSCEngine/internal/persistence"
	"DSCEngine/internal/token"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const replayPage = 1000

// recoverEngine restores the latest verified snapshot and replays the
// operation log after it. Replay stops on the first hash mismatch.
func recoverEngine(ctx context.Context, engine *core.Engine, snapMgr *persistence.SnapshotManager, logger zerolog.Logger) error {
	if n, err := snapMgr.VerifyPending(ctx); err != nil {
		return fmt.Errorf("verify snapshots: %w", err)
	} else if n > 0 {
		logger.Info().Int64("count", n).Msg("snapshots verified against the operation log")
	}

	snap, err := snapMgr.LoadLatestSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap != nil {
		if err := engine.RestoreFromSnapshot(snap.State); err != nil {
			return err
		}
		logger.Info().Int64("sequence", snap.State.Sequence).Msg("restored snapshot")
	} else {
		logger.Info().Msg("no snapshot found, replaying from sequence 1")
	}

	start := time.Now()
	var replayed int
	for {
		records, err := snapMgr.LoadOperationsFrom(ctx, engine.GetSequence()+1, replayPage)
		if err != nil {
			return fmt.Errorf("load operations after %d: %w", engine.GetSequence(), err)
		}
		if err := engine.Replay(records); err != nil {
			return err
		}
		replayed += len(records)
		if len(records) < replayPage {
			break
		}
	}

	logger.Info().
		Int("replayed", replayed).
		Int64("sequence", engine.GetSequence()).
		Str("state_hash", engine.StateHash().Hex()).
		Dur("took", time.Since(start)).
		Msg("ledger recovered")
	return nil
}

// seedTokens rebuilds the in-memory token balances from the recovered
// ledger: custody holds all deposited collateral and every user holds DSC
// equal to their debt. Wallet balances that were never deposited are lost
// across restarts.
func seedTokens(engine *core.Engine, vault *token.Vault, dsc *token.DSC) error {
	custody := engine.Custody()
	for _, user := range engine.Users() {
		pos := engine.Position(user)
		for tok, amount := range pos.Collateral {
			if err := vault.Fund(tok, custody, amount); err != nil {
				return fmt.Errorf("seed collateral %s: %w", tok.Hex(), err)
			}
		}
		if !pos.DebtMinted.IsZero() {
			if err := dsc.Mint(user, pos.DebtMinted); err != nil {
				return fmt.Errorf("seed dsc for %s: %w", user.Hex(), err)
			}
		}
	}
	return nil
}

// runPeriodicSnapshots saves a snapshot every interval operations and
// verifies pending snapshots once the log has caught up with them.
func runPeriodicSnapshots(
	ctx context.Context,
	engine *core.Engine,
	snapMgr *persistence.SnapshotManager,
	interval int64,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) {
	if interval <= 0 {
		interval = 10_000
	}

	lastSnapshotSeq := engine.GetSequence()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := snapMgr.VerifyPending(ctx); err != nil {
				logger.Warn().Err(err).Msg("verify snapshots failed")
			} else if n > 0 {
				logger.Debug().Int64("count", n).Msg("snapshots verified")
			}

			currentSeq := engine.GetSequence()
			if currentSeq-lastSnapshotSeq < interval {
				continue
			}
			if err := takeSnapshot(ctx, engine, snapMgr, metrics); err != nil {
				logger.Warn().Err(err).Msg("periodic snapshot failed")
				continue
			}
			lastSnapshotSeq = currentSeq
			logger.Info().Int64("sequence", currentSeq).Msg("periodic snapshot")
		}
	}
}

// takeSnapshot captures the ledger and saves it unverified.
func takeSnapshot(ctx context.Context, engine *core.Engine, snapMgr *persistence.SnapshotManager, metrics *observability.Metrics) error {
	start := time.Now()
	state := engine.CreateSnapshotState()
	if state.Sequence == 0 {
		return nil
	}

	size, err := snapMgr.SaveSnapshot(ctx, persistence.SnapshotData{State: state, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	metrics.SnapshotTaken.Inc()
	metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	metrics.SnapshotSizeBytes.Set(float64(size))
	return nil
}
