// Package tangle wires the Solid Propagator and Milestone Solidifier
// (pkg/protocol/solidifier) onto the node's event bus. Adapted from the
// teacher's checkSolidity/solidQueueCheck/solidifyMilestone idiom: the
// "newly solid propagates to its approvers" walk survives inside
// pkg/protocol/solidifier itself, generalized off the package-level
// tangle/gossip singletons onto injected dependencies. Milestone
// solidification there runs from one mutex-guarded sorted queue; a newer
// request does not abort an older one. What remains here
// is the thin glue that subscribes those workers to the events the rest
// of the node publishes.
package tangle

import (
	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/hive.go/logger"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/protocol/solidifier"
)

var log = logger.NewLogger("Solidifier")

// Dependencies are the already-constructed workers this plugin wires
// together; assembled by the node's dependency container (cmd/tanglenode),
// never by a package-level singleton here.
type Dependencies struct {
	Propagator *solidifier.Propagator
	Solidifier *solidifier.MilestoneSolidifier
}

// Configure subscribes the wiring this plugin is responsible for: the
// Processor's TransactionSolidifiable feeds the Propagator, and the
// Milestone Validator's LatestMilestoneChanged feeds the
// MilestoneSolidifier's ordered queue.
func Configure(deps Dependencies, transactionSolidifiable *events.Event, latestMilestoneChanged *events.Event) {
	transactionSolidifiable.Attach(events.NewClosure(func(hash trinary.Hash) {
		deps.Propagator.Propagate(hash)
	}))

	latestMilestoneChanged.Attach(events.NewClosure(func(index milestone.Index) {
		log.Infof("milestone %d scheduled for solidification", index)
		deps.Solidifier.Schedule(index)
	}))

	deps.Solidifier.Events.LatestSolidMilestoneChanged.Attach(events.NewClosure(func(index milestone.Index) {
		log.Infof("new solid milestone: %d", index)
	}))

	deps.Propagator.Events.LatestSolidMilestoneChanged.Attach(events.NewClosure(func(index milestone.Index) {
		log.Infof("solid milestone advanced by propagation: %d", index)
	}))
}
