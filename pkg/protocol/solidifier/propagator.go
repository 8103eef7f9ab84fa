// Package solidifier implements the Solid Propagator (spec.md §4.7) and the
// Milestone Solidifier (spec.md §4.8), adapted from the teacher's
// solidQueueCheck/solidifyMilestone traversal idiom onto an injected
// *tangle.Tangle instead of a package-level singleton.
package solidifier

import (
	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
)

func hashCaller(handler interface{}, params ...interface{}) {
	handler.(func(trinary.Hash))(params[0].(trinary.Hash))
}

func milestoneCaller(handler interface{}, params ...interface{}) {
	handler.(func(milestone.Index))(params[0].(milestone.Index))
}

// PropagatorEvents fired by the Propagator.
type PropagatorEvents struct {
	TransactionSolid            *events.Event
	LatestSolidMilestoneChanged *events.Event
}

// Propagator performs the bounded DAG walk of spec.md §4.7: a node is solid
// iff both parents are solid or are solid entry points; becoming solid
// re-checks direct children, bounded by the already-solid early exit.
type Propagator struct {
	Events PropagatorEvents

	tangle *tangle.Tangle
}

// NewPropagator creates a Propagator over t.
func NewPropagator(t *tangle.Tangle) *Propagator {
	return &Propagator{
		Events: PropagatorEvents{
			TransactionSolid:            events.NewEvent(hashCaller),
			LatestSolidMilestoneChanged: events.NewEvent(milestoneCaller),
		},
		tangle: t,
	}
}

// Propagate checks hash and, if it becomes newly solid, walks its direct
// approvers (children), re-checking each in turn; the walk terminates
// because a transaction's parents strictly precede it and "already solid"
// is an immediate exit for every node visited more than once.
func (p *Propagator) Propagate(hash trinary.Hash) {
	queue := []trinary.Hash{hash}

	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]

		solid, newlySolid := p.checkSolidity(h)
		if !solid {
			continue
		}
		if newlySolid {
			p.Events.TransactionSolid.Trigger(h)
			p.onTransactionSolid(h)
			queue = append(queue, p.tangle.Approvers(h)...)
		}
	}
}

// checkSolidity reports whether h is solid (both parents solid or solid
// entry points) and whether this call is what newly marked it so.
func (p *Propagator) checkSolidity(h trinary.Hash) (solid bool, newlySolid bool) {
	meta, ok := p.tangle.GetTransactionMetadata(h)
	if !ok {
		return false, false
	}
	if meta.IsSolid() {
		return true, false
	}

	tx, ok := p.tangle.GetTransaction(h)
	if !ok {
		return false, false
	}

	parents := []trinary.Hash{tx.Trunk()}
	if tx.Branch() != tx.Trunk() {
		parents = append(parents, tx.Branch())
	}

	for _, parent := range parents {
		if p.tangle.IsSolidEntryPoint(parent) {
			continue
		}
		parentMeta, ok := p.tangle.GetTransactionMetadata(parent)
		if !ok || !parentMeta.IsSolid() {
			return false, false
		}
	}

	newlySolid = meta.SetSolid(true)
	return true, newlySolid
}

// onTransactionSolid checks whether h's milestone bundle (if it belongs to
// one) is now fully solid, advancing the solid-milestone watermark and
// publishing LatestSolidMilestoneChanged.
func (p *Propagator) onTransactionSolid(h trinary.Hash) {
	index, ok := p.tangle.GetMilestoneIndexByHash(h)
	if !ok {
		return
	}
	if p.tangle.SetSolidMilestoneIndex(index) {
		p.Events.LatestSolidMilestoneChanged.Trigger(index)
	}
}
