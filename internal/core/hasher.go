package core

import (
	"DSCEngine/internal/ledger"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const GenesisHashSeed = "DSCEngine:genesis:v1"

// GenesisHash is the chain tip before the first operation.
func GenesisHash() common.Hash {
	return crypto.Keccak256Hash([]byte(GenesisHashSeed))
}

// StateHasher chains operation digests: hash[N] = keccak256(hash[N-1] ||
// sequence (8 bytes BE) || digest[N]).
type StateHasher struct {
	prevHash common.Hash
}

func NewStateHasher() *StateHasher {
	return &StateHasher{prevHash: GenesisHash()}
}

// ComputeHash extends the chain and returns the new tip.
func (h *StateHasher) ComputeHash(sequence int64, digest []byte) common.Hash {
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], uint64(sequence))

	hash := crypto.Keccak256Hash(h.prevHash[:], seqBuf[:], digest)
	h.prevHash = hash
	return hash
}

// GetPrevHash returns current chain tip
func (h *StateHasher) GetPrevHash() common.Hash {
	return h.prevHash
}

// Reset moves the tip, used when restoring from a snapshot.
func (h *StateHasher) Reset(tip common.Hash) {
	h.prevHash = tip
}

// OperationDigest is the canonical encoding of a committed operation: the
// operation name followed by each journal entry as user(20) || asset(20) ||
// kind(1) || amount(32).
func OperationDigest(operation string, journal ledger.Journal) []byte {
	buf := make([]byte, 0, 1+len(operation)+len(journal)*73)
	buf = append(buf, byte(len(operation)))
	buf = append(buf, operation...)
	for _, e := range journal {
		buf = append(buf, e.User[:]...)
		buf = append(buf, e.Asset[:]...)
		buf = append(buf, byte(e.Kind))
		amount := e.Amount.Bytes32()
		buf = append(buf, amount[:]...)
	}
	return buf
}
