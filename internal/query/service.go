package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNoPosition is returned for users the read model has never seen.
var ErrNoPosition = errors.New("no position")

// QueryService provides read-only access to the read model and the
// operation log. Responses carry as_of_sequence for freshness; live values
// come from the engine instead.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetPosition returns the projected debt and collateral of user.
func (qs *QueryService) GetPosition(ctx context.Context, user common.Address) (*PositionView, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	view := &PositionView{User: user, DscMinted: "0", AsOfSequence: asOfSeq}
	found := false

	err = qs.db.QueryRowContext(ctx, `
		SELECT dsc_minted::text FROM read_model.positions WHERE user_addr = $1
	`, user.Bytes()).Scan(&view.DscMinted)
	switch {
	case err == nil:
		found = true
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT token, amount::text FROM read_model.collateral
		WHERE user_addr = $1 AND amount > 0
		ORDER BY token
	`, user.Bytes())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			token []byte
			c     CollateralView
		)
		if err := rows.Scan(&token, &c.Amount); err != nil {
			return nil, err
		}
		c.Token = common.BytesToAddress(token)
		view.Collateral = append(view.Collateral, c)
		found = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if !found {
		return nil, fmt.Errorf("%w for %s", ErrNoPosition, user.Hex())
	}
	return view, nil
}

// GetOperationHistory returns operations touching user, newest first,
// paginated by beforeSequence (exclusive).
func (qs *QueryService) GetOperationHistory(
	ctx context.Context,
	user common.Address,
	limit int,
	beforeSequence *int64,
) ([]OperationRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT o.sequence, COALESCE(o.command_id, ''), o.operation, o.caller,
		       o.events, o.journal, o.state_hash, o.timestamp
		FROM event_log.operation_users u
		JOIN event_log.operations o ON o.sequence = u.sequence
		WHERE u.user_addr = $1
	`
	args := []interface{}{user.Bytes()}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND u.sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY u.sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []OperationRecord
	for rows.Next() {
		var (
			r       OperationRecord
			caller  []byte
			hash    []byte
			events  []byte
			journal []byte
		)
		if err := rows.Scan(
			&r.Sequence, &r.CommandID, &r.Operation, &caller,
			&events, &journal, &hash, &r.Timestamp,
		); err != nil {
			return nil, err
		}
		r.Caller = common.BytesToAddress(caller)
		r.StateHash = common.BytesToHash(hash)
		r.Events = events
		r.Journal = journal
		history = append(history, r)
	}
	return history, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks that the operation log is gap-free and that each
// prev_hash links to the previous state_hash. It reports up to ten
// offenders of each kind.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	var last sql.NullInt64
	if err := qs.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM event_log.operations`).Scan(&last); err != nil {
		return nil, err
	}
	report.LastSequence = last.Int64

	gaps, err := qs.sequences(ctx, `
		SELECT o.sequence FROM event_log.operations o
		WHERE o.sequence > 1
		  AND NOT EXISTS (SELECT 1 FROM event_log.operations p WHERE p.sequence = o.sequence - 1)
		ORDER BY o.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("gap check: %w", err)
	}
	report.SequenceGaps = gaps

	breaks, err := qs.sequences(ctx, `
		SELECT o.sequence FROM event_log.operations o
		JOIN event_log.operations p ON p.sequence = o.sequence - 1
		WHERE o.prev_hash <> p.state_hash
		ORDER BY o.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("hash chain check: %w", err)
	}
	report.HashChainBreaks = breaks

	watermark, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}
	report.ReadModelLag = report.LastSequence - watermark

	report.IsHealthy = len(report.SequenceGaps) == 0 && len(report.HashChainBreaks) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) sequences(ctx context.Context, query string) ([]int64, error) {
	rows, err := qs.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seqs []int64
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	return seqs, rows.Err()
}

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM read_model.watermark WHERE id = 1
	`).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return seq, err
}
