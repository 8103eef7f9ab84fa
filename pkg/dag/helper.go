// Package dag provides a cone-traversal helper over the tangle
// (SPEC_FULL.md §4.15), grounded on the teacher lineage's own
// dag.FindAllTails.
package dag

import (
	"github.com/pkg/errors"

	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
)

// ErrFindAllTailsFailed is wrapped with the hash that could not be found
// while walking the cone below txHash.
var ErrFindAllTailsFailed = errors.New("unable to find all tails")

// FindAllTails walks the trunk/branch links below txHash, collecting the
// hash of every bundle tail reachable from it, short-circuiting at solid
// entry points. It fails with ErrFindAllTailsFailed when a transaction in
// the cone is not in the tangle. Only this package's tests call it; the
// solidifier and the validators do not.
func FindAllTails(t *tangle.Tangle, txHash trinary.Hash) (map[trinary.Hash]struct{}, error) {
	toTraverse := map[trinary.Hash]struct{}{txHash: {}}
	checked := make(map[trinary.Hash]struct{})
	tails := make(map[trinary.Hash]struct{})

	for len(toTraverse) != 0 {
		for hash := range toTraverse {
			delete(toTraverse, hash)

			if _, seen := checked[hash]; seen {
				continue
			}
			checked[hash] = struct{}{}

			if t.IsSolidEntryPoint(hash) {
				continue
			}

			tx, ok := t.GetTransaction(hash)
			if !ok {
				return nil, errors.Wrapf(ErrFindAllTailsFailed, "transaction not found: %v", hash)
			}

			if tx.IsTail() {
				tails[hash] = struct{}{}
				continue
			}

			toTraverse[tx.Trunk()] = struct{}{}
			toTraverse[tx.Branch()] = struct{}{}
		}
	}

	return tails, nil
}
