// Package bundle implements the Bundle Validator (spec.md §4.5): given a
// tail hash, walk trunk links to reconstruct the full bundle, then check
// index contiguity, value conservation and signature validity.
package bundle

import (
	"github.com/pkg/errors"

	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/signing"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
)

// ErrInvalidBundle is wrapped with context describing which check failed.
var ErrInvalidBundle = errors.New("invalid bundle")

// Bundle is the ordered, fully-reconstructed set of transactions sharing one
// bundle hash, indexed 0..LastIndex.
type Bundle struct {
	Hash         trinary.Hash
	Transactions []*tangle.Transaction
}

// TailTransaction returns the bundle's tail (index 0).
func (b *Bundle) TailTransaction() *tangle.Transaction { return b.Transactions[0] }

// reachTangle is the narrow lookup surface the validator needs from the
// tangle index; satisfied by *tangle.Tangle.
type reachTangle interface {
	GetTransaction(hash trinary.Hash) (*tangle.Transaction, bool)
}

// Validate walks trunk links from tailHash, collecting every transaction
// sharing its bundle hash, and checks the invariants of spec.md §4.5. It
// reports the reconstructed Bundle on success.
func Validate(t reachTangle, tailHash trinary.Hash) (*Bundle, error) {
	tail, ok := t.GetTransaction(tailHash)
	if !ok {
		return nil, errors.Wrap(ErrInvalidBundle, "tail not found")
	}
	if !tail.IsTail() {
		return nil, errors.Wrap(ErrInvalidBundle, "hash is not a bundle tail")
	}

	bundleHash := tail.Bundle()
	lastIndex := tail.LastIndex()

	txs := make([]*tangle.Transaction, lastIndex+1)
	txs[0] = tail

	cursor := tail
	seen := map[uint64]bool{0: true}
	for cursor.CurrentIndex() < lastIndex {
		next, ok := t.GetTransaction(cursor.Trunk())
		if !ok {
			return nil, errors.Wrap(ErrInvalidBundle, "incomplete: trunk not found")
		}
		if next.Bundle() != bundleHash {
			return nil, errors.Wrap(ErrInvalidBundle, "trunk walk left the bundle")
		}
		idx := next.CurrentIndex()
		if idx > lastIndex || seen[idx] {
			return nil, errors.Wrap(ErrInvalidBundle, "duplicate or out-of-range index")
		}
		if idx != cursor.CurrentIndex()+1 {
			return nil, errors.Wrap(ErrInvalidBundle, "index gap in trunk walk")
		}
		seen[idx] = true
		txs[idx] = next
		cursor = next
	}
	for i, tx := range txs {
		if tx == nil {
			return nil, errors.Wrapf(ErrInvalidBundle, "missing index %d", i)
		}
	}

	if err := validateValueConservation(txs); err != nil {
		return nil, err
	}
	if err := validateSignatures(txs, bundleHash); err != nil {
		return nil, err
	}
	if hasMBug(bundleHash) {
		return nil, errors.Wrap(ErrInvalidBundle, "bundle hash has the M-bug")
	}

	return &Bundle{Hash: bundleHash, Transactions: txs}, nil
}

// validateValueConservation checks that the running sum of transaction
// values never exceeds the network supply in absolute value and that the
// bundle as a whole sums to zero.
func validateValueConservation(txs []*tangle.Transaction) error {
	var sum int64
	for _, tx := range txs {
		sum += tx.Value()
		if sum > consts.TotalSupply || sum < -consts.TotalSupply {
			return errors.Wrap(ErrInvalidBundle, "partial sum exceeds total supply")
		}
	}
	if sum != 0 {
		return errors.Wrap(ErrInvalidBundle, "bundle value does not sum to zero")
	}
	return nil
}

// validateSignatures verifies, for each contiguous run of transactions
// sharing a negative-value (input) address, that the concatenated signature
// message fragments validate against that address under the bundle hash.
func validateSignatures(txs []*tangle.Transaction, bundleHash trinary.Hash) error {
	for i := 0; i < len(txs); {
		tx := txs[i]
		if tx.Value() >= 0 {
			i++
			continue
		}

		addr := tx.Address()
		var fragments []trinary.Trytes
		j := i
		for j < len(txs) && txs[j].Address() == addr && (j == i || txs[j].Value() == 0) {
			fragments = append(fragments, txs[j].Tx.SignatureMessageFragment)
			j++
		}

		valid, err := signing.ValidateSignatures(addr, fragments, bundleHash)
		if err != nil {
			return errors.Wrap(ErrInvalidBundle, err.Error())
		}
		if !valid {
			return errors.Wrapf(ErrInvalidBundle, "signature verification failed for address %s", addr)
		}
		i = j
	}
	return nil
}

// hasMBug reports whether hash contains a group of three consecutive trits
// that are all +1 — the historical Curl-P "M-bug" that a correctly
// constructed bundle hash must avoid (spec.md §4.5, §4.16).
func hasMBug(hash trinary.Hash) bool {
	trits := trinary.MustTrytesToTrits(hash)
	for i := 0; i+3 <= len(trits); i += 3 {
		if trits[i] == 1 && trits[i+1] == 1 && trits[i+2] == 1 {
			return true
		}
	}
	return false
}
