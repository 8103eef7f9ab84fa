// Package milestone defines the coordinator-issued checkpoint type shared
// by the tangle, the milestone validator and the solidifier.
package milestone

import (
	"github.com/iotaledger/iota.go/trinary"
)

// Index is a monotonically increasing milestone index.
type Index uint32

// Milestone is a validated coordinator checkpoint: the index it certifies
// and the hash of its tail transaction.
type Milestone struct {
	Index Index
	Hash  trinary.Hash
}
