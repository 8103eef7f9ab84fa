package gossip

import (
	"github.com/pkg/errors"
)

// ErrInvalidTransactionRequest is returned when a transaction-request payload is malformed.
var ErrInvalidTransactionRequest = errors.New("gossip: invalid transaction-request payload")

// EncodeTransactionRequest serializes a compressed 49-byte transaction hash
// request. The caller supplies the already-compressed bytes; compression
// itself is handled by pkg/model/tangle.
func EncodeTransactionRequest(compressedHash []byte) []byte {
	out := make([]byte, HashLength)
	copy(out, compressedHash)
	return out
}

// DecodeTransactionRequest validates the payload length and returns the raw
// compressed hash bytes for the caller to decompress.
func DecodeTransactionRequest(data []byte) ([]byte, error) {
	if len(data) != HashLength {
		return nil, errors.Wrap(ErrInvalidTransactionRequest, "unexpected length")
	}
	return data, nil
}

// TransactionBroadcast payloads carry compressed transaction bytes directly
// with no further wrapping (spec.md §6); these helpers exist only to name
// the concept at call sites.

// EncodeTransactionBroadcast returns compressed unchanged: the wire payload
// of a transaction broadcast IS the compressed transaction bytes.
func EncodeTransactionBroadcast(compressed []byte) []byte { return compressed }

// DecodeTransactionBroadcast returns data unchanged; present for symmetry
// and so call sites read the same whether encoding or decoding.
func DecodeTransactionBroadcast(data []byte) []byte { return data }
