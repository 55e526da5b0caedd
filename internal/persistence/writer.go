package persistence

import (
	"DSCEngine/internal/core"
	"DSCEngine/internal/event"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// OperationRow represents a row in event_log.operations
type OperationRow struct {
	Sequence  int64
	CommandID *string
	Operation string
	Caller    common.Address
	Events    []byte // JSON, see event.MarshalEvents
	Journal   []byte // JSON-encoded ledger.Journal
	StateHash common.Hash
	PrevHash  common.Hash
	Timestamp time.Time

	// Users whose position the operation touched, for history lookups.
	Users []common.Address
}

// NewOperationRow converts a committed engine output into its log row.
func NewOperationRow(out core.Output) (OperationRow, error) {
	events, err := event.MarshalEvents(out.Events)
	if err != nil {
		return OperationRow{}, fmt.Errorf("sequence %d: %w", out.Sequence, err)
	}
	journal, err := json.Marshal(out.Journal)
	if err != nil {
		return OperationRow{}, fmt.Errorf("sequence %d: marshal journal: %w", out.Sequence, err)
	}

	row := OperationRow{
		Sequence:  out.Sequence,
		Operation: out.Operation.String(),
		Caller:    out.Caller,
		Events:    events,
		Journal:   journal,
		StateHash: out.StateHash,
		PrevHash:  out.PrevHash,
		Timestamp: out.Timestamp,
	}
	if out.CommandID != "" {
		id := out.CommandID
		row.CommandID = &id
	}

	seen := map[common.Address]struct{}{out.Caller: {}}
	row.Users = append(row.Users, out.Caller)
	for _, e := range out.Journal {
		if _, ok := seen[e.User]; !ok {
			seen[e.User] = struct{}{}
			row.Users = append(row.Users, e.User)
		}
	}
	return row, nil
}

// OperationLogWriter writes operation rows to Postgres using multi-row
// INSERTs inside the caller's transaction.
type OperationLogWriter struct {
	db *sql.DB
}

func NewOperationLogWriter(db *sql.DB) *OperationLogWriter {
	return &OperationLogWriter{db: db}
}

// WriteBatch writes rows and their user index in one transaction.
func (w *OperationLogWriter) WriteBatch(ctx context.Context, rows []OperationRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := writeOperations(ctx, tx, rows); err != nil {
		return fmt.Errorf("write operations: %w", err)
	}
	if err := writeOperationUsers(ctx, tx, rows); err != nil {
		return fmt.Errorf("write operation users: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func writeOperations(ctx context.Context, tx *sql.Tx, rows []OperationRow) error {
	const cols = 9
	query := `INSERT INTO event_log.operations
		(sequence, command_id, operation, caller, events, journal, state_hash, prev_hash, timestamp)
		VALUES `

	// JSONB columns take strings: lib/pq sends []byte as bytea.
	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*cols)
	for i, r := range rows {
		values = append(values, placeholders(i*cols, cols))
		args = append(args,
			r.Sequence, r.CommandID, r.Operation, r.Caller.Bytes(),
			string(r.Events), string(r.Journal), r.StateHash.Bytes(), r.PrevHash.Bytes(), r.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // Idempotent writes

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

func writeOperationUsers(ctx context.Context, tx *sql.Tx, rows []OperationRow) error {
	var values []string
	var args []interface{}
	for _, r := range rows {
		for _, u := range r.Users {
			values = append(values, placeholders(len(args), 2))
			args = append(args, r.Sequence, u.Bytes())
		}
	}
	if len(values) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.operation_users (sequence, user_addr) VALUES ` +
		strings.Join(values, ", ") +
		" ON CONFLICT DO NOTHING"
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// placeholders renders "($base+1, ..., $base+n)".
func placeholders(base, n int) string {
	var b strings.Builder
	b.WriteByte('(')
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", base+i)
	}
	b.WriteByte(')')
	return b.String()
}
