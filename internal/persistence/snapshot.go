package persistence

import (
	"DSCEngine/internal/core"
	"DSCEngine/internal/ledger"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// formatVersion 1: JSON-encoded SnapshotData.
const formatVersion = 1

// SnapshotManager handles creating and loading ledger snapshots for
// recovery, and reading the operation log for replay.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is one stored snapshot.
type SnapshotData struct {
	State     core.SnapshotState `json:"state"`
	CreatedAt time.Time          `json:"created_at"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot stores an unverified snapshot and returns its encoded size.
// It becomes loadable once VerifyPending has matched it against the log.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap SnapshotData) (int, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6
	`, uuid.New(), snap.State.Sequence, string(data), snap.State.StateHash.Bytes(), formatVersion, len(data), snap.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("save snapshot %d: %w", snap.State.Sequence, err)
	}
	return len(data), nil
}

// VerifyPending marks snapshots verified whose state hash matches the
// persisted operation at the same sequence. Snapshots taken ahead of the
// persistence worker stay pending until their operation is written.
func (sm *SnapshotManager) VerifyPending(ctx context.Context) (int64, error) {
	res, err := sm.db.ExecContext(ctx, `
		UPDATE event_log.snapshots s SET verified = TRUE
		FROM event_log.operations o
		WHERE s.verified = FALSE
		  AND o.sequence = s.sequence
		  AND o.state_hash = s.state_hash
	`)
	if err != nil {
		return 0, fmt.Errorf("verify snapshots: %w", err)
	}
	return res.RowsAffected()
}

// LoadLatestSnapshot loads the most recent verified snapshot, or nil when
// there is none (cold start).
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// LoadOperationsFrom loads up to limit operations with sequence >= from,
// in order, for replay.
func (sm *SnapshotManager) LoadOperationsFrom(ctx context.Context, from int64, limit int) ([]core.ReplayRecord, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, COALESCE(command_id, ''), operation, journal, state_hash
		FROM event_log.operations
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, from, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []core.ReplayRecord
	for rows.Next() {
		var (
			r       core.ReplayRecord
			journal []byte
			hash    []byte
		)
		if err := rows.Scan(&r.Sequence, &r.CommandID, &r.Operation, &journal, &hash); err != nil {
			return nil, err
		}
		var j ledger.Journal
		if err := json.Unmarshal(journal, &j); err != nil {
			return nil, fmt.Errorf("sequence %d: unmarshal journal: %w", r.Sequence, err)
		}
		r.Journal = j
		r.StateHash = common.BytesToHash(hash)
		records = append(records, r)
	}
	return records, rows.Err()
}

// RecentCommandIDs returns up to limit command ids, oldest first, for
// warming the dedup LRU.
func (sm *SnapshotManager) RecentCommandIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT command_id FROM (
			SELECT sequence, command_id FROM event_log.operations
			WHERE command_id IS NOT NULL
			ORDER BY sequence DESC
			LIMIT $1
		) recent ORDER BY sequence ASC
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetLatestSequence returns the highest sequence in the operation log.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.operations
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
