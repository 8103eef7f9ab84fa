// Package confirmation implements the milestone confirmation walk of
// spec.md §4.5: "mark each constituent confirmed when (and only when) a
// future milestone confirms its tail". It is the counterpart, on the
// confirmed side, of the Milestone Solidifier's solidity cone walk
// (pkg/protocol/solidifier.attemptSolidify) — same trunk/branch DFS, same
// solid-entry-point terminator, but marking confirmed-by-index instead of
// scheduling requests for missing parents.
package confirmation

import (
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
)

// Walker confirms a milestone's past cone once the milestone transaction
// itself is known to the tangle.
type Walker struct {
	tangle *tangle.Tangle
}

// New creates a Walker bound to t.
func New(t *tangle.Tangle) *Walker {
	return &Walker{tangle: t}
}

// OnLatestMilestoneChanged is attached to milestonevalidator.Validator's
// LatestMilestoneChanged event and confirms the newly registered milestone's
// cone.
func (w *Walker) OnLatestMilestoneChanged(index milestone.Index) {
	ms, ok := w.tangle.GetMilestone(index)
	if !ok {
		return
	}
	w.Confirm(index, ms.Hash)
}

// Confirm walks trunk/branch from hash, confirming every reachable
// transaction that is not already confirmed, not flagged invalid by the
// Bundle Validator, and not a solid entry point. The walk stops at any
// transaction missing locally or already confirmed: an earlier milestone's
// walk already covered everything behind an already-confirmed transaction,
// and a transaction that never arrived has nothing to confirm yet.
func (w *Walker) Confirm(index milestone.Index, hash trinary.Hash) {
	visited := make(map[trinary.Hash]bool)

	var walk func(hash trinary.Hash)
	walk = func(hash trinary.Hash) {
		if visited[hash] {
			return
		}
		visited[hash] = true

		if w.tangle.IsSolidEntryPoint(hash) {
			return
		}

		meta, ok := w.tangle.GetTransactionMetadata(hash)
		if !ok || meta.IsInvalid() {
			return
		}
		if confirmed, _ := meta.IsConfirmed(); confirmed {
			return
		}

		tx, ok := w.tangle.GetTransaction(hash)
		if !ok {
			return
		}

		meta.SetConfirmed(index)

		walk(tx.Trunk())
		if tx.Branch() != tx.Trunk() {
			walk(tx.Branch())
		}
	}

	walk(hash)
}
