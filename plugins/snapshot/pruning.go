// Package snapshot runs the snapshot-aware pruner (SPEC_FULL.md §4.14):
// as the solid milestone watermark advances, delete transactions and
// milestones the node no longer needs to keep solid, while preserving a
// safety margin so an in-flight solidification never races the deleter.
// Grounded 1:1 on the teacher's pruneDatabase/pruneUnconfirmedTransactions/
// pruneTransactions/pruneMilestone functions, generalized off the
// package-level tangle singleton onto an injected *tangle.Tangle.
package snapshot

import (
	"time"

	"github.com/iotaledger/hive.go/logger"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
)

var log = logger.NewLogger("Snapshot")

// AdditionalPruningThreshold is how far the solid milestone index has to
// clear pruningDelay before any pruning runs: pruneDatabase does nothing
// while the solid index is at or below pruningDelay +
// AdditionalPruningThreshold. It is not kept as a gap afterwards; each run
// prunes up to solidIndex - pruningDelay.
const AdditionalPruningThreshold milestone.Index = 50

// Pruner deletes confirmed-and-superseded transactions/milestones once the
// solid milestone watermark has advanced far enough past them, plus any
// transaction that never got confirmed and has aged past unconfirmedTTL.
type Pruner struct {
	tangle         *tangle.Tangle
	pruningDelay   milestone.Index
	unconfirmedTTL time.Duration
}

// NewPruner creates a Pruner bound to t. pruningDelay is the number of
// milestones to retain behind the solid milestone watermark before a
// milestone becomes eligible for pruning; unconfirmedTTL bounds how long an
// unconfirmed transaction is kept before being swept regardless of
// milestone index (SPEC_FULL.md §4.14's simplification: this in-memory
// tangle has no first-seen-by-milestone index to key unconfirmed pruning
// on, unlike the teacher's LevelDB-backed ReadFirstSeenTxHashOperations).
func NewPruner(t *tangle.Tangle, pruningDelay milestone.Index, unconfirmedTTL time.Duration) *Pruner {
	return &Pruner{tangle: t, pruningDelay: pruningDelay, unconfirmedTTL: unconfirmedTTL}
}

// OnSolidMilestoneChanged is attached to the Milestone Solidifier's
// LatestSolidMilestoneChanged event.
func (p *Pruner) OnSolidMilestoneChanged(solidIndex milestone.Index) {
	p.pruneDatabase(solidIndex)
}

func (p *Pruner) pruneDatabase(solidIndex milestone.Index) {
	if solidIndex <= p.pruningDelay+AdditionalPruningThreshold {
		return
	}
	target := solidIndex - p.pruningDelay

	pruningIndex := p.tangle.PruningIndex()
	if target <= pruningIndex {
		return
	}

	for index := pruningIndex + 1; index <= target; index++ {
		ts := time.Now()
		txCount := p.pruneMilestone(index)
		log.Infof("pruned milestone %d in %v, removed %d transactions", index, time.Since(ts), txCount)
	}

	p.tangle.SetPruningIndex(target)
	p.sweepUnconfirmed()
}

// pruneMilestone removes every transaction confirmed at or before index
// (skipping solid entry points) and the milestone's own metadata. It
// reports how many transactions were removed.
func (p *Pruner) pruneMilestone(index milestone.Index) int {
	if _, ok := p.tangle.GetMilestone(index); !ok {
		return 0
	}

	var toRemove []trinary.Hash
	p.tangle.ForEachTransaction(func(tx *tangle.Transaction, meta *tangle.Metadata) {
		if p.tangle.IsSolidEntryPoint(tx.Hash) {
			return
		}
		if confirmed, by := meta.IsConfirmed(); confirmed && by <= index {
			toRemove = append(toRemove, tx.Hash)
		}
	})

	for _, hash := range toRemove {
		p.tangle.DeleteTransaction(hash)
	}
	p.tangle.DeleteMilestone(index)

	return len(toRemove)
}

// sweepUnconfirmed removes unconfirmed transactions that have aged past
// unconfirmedTTL, run once per pruneDatabase pass after the per-milestone
// sweep above.
func (p *Pruner) sweepUnconfirmed() {
	if p.unconfirmedTTL <= 0 {
		return
	}
	cutoff := time.Now().Add(-p.unconfirmedTTL)

	var toRemove []trinary.Hash
	p.tangle.ForEachTransaction(func(tx *tangle.Transaction, meta *tangle.Metadata) {
		if p.tangle.IsSolidEntryPoint(tx.Hash) {
			return
		}
		if confirmed, _ := meta.IsConfirmed(); confirmed {
			return
		}
		if meta.ArrivalTime().Before(cutoff) {
			toRemove = append(toRemove, tx.Hash)
		}
	})

	for _, hash := range toRemove {
		p.tangle.DeleteTransaction(hash)
	}
	if len(toRemove) > 0 {
		log.Infof("swept %d stale unconfirmed transactions", len(toRemove))
	}
}
