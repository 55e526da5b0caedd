package query

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PositionView is a user's position as projected into the read model.
// Amounts are base-10 strings of base units.
type PositionView struct {
	User         common.Address   `json:"user"`
	DscMinted    string           `json:"dsc_minted"`
	Collateral   []CollateralView `json:"collateral"`
	AsOfSequence int64            `json:"as_of_sequence"`
}

type CollateralView struct {
	Token  common.Address `json:"token"`
	Amount string         `json:"amount"`
}

// OperationRecord is one operation from the log, as returned by history
// queries.
type OperationRecord struct {
	Sequence  int64           `json:"sequence"`
	CommandID string          `json:"command_id,omitempty"`
	Operation string          `json:"operation"`
	Caller    common.Address  `json:"caller"`
	Events    json.RawMessage `json:"events"`
	Journal   json.RawMessage `json:"journal"`
	StateHash common.Hash     `json:"state_hash"`
	Timestamp time.Time       `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	LastSequence    int64   `json:"last_sequence"`
	SequenceGaps    []int64 `json:"sequence_gaps,omitempty"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
	ReadModelLag    int64   `json:"read_model_lag"`
}
