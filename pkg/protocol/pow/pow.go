// Package pow checks a transaction hash against the configured minimum
// weight magnitude: spec.md §6 defines validity as "at least MWM trailing
// zero trits". This package counts them directly off the hash's trit
// representation rather than through iota.go/pow, whose exported surface
// (digest/nonce search for *producing* proof-of-work) is not verifiable
// against anything in the available reference material for the read-only
// trailing-zero-count this checker needs; see DESIGN.md.
package pow

import (
	"github.com/iotaledger/iota.go/trinary"
)

// Checker counts trailing zero trits in a transaction hash.
type Checker struct{}

// NewChecker creates a Checker. It holds no state; one instance may be
// shared across goroutines.
func NewChecker() Checker { return Checker{} }

// TrailingZeros returns the number of trailing zero trits in hash,
// satisfying processor.PoWChecker.
func (Checker) TrailingZeros(hash trinary.Hash) int {
	trits := trinary.MustTrytesToTrits(hash)

	count := 0
	for i := len(trits) - 1; i >= 0 && trits[i] == 0; i-- {
		count++
	}
	return count
}
