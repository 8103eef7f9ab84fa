// Package shutdown names the deterministic reverse-dependency shutdown
// order (spec.md §5 "Global shutdown is a deterministic reverse-dependency
// sweep") as priority constants for hive.go's daemon.BackgroundWorker: a
// lower priority starts first and is shut down last, so a worker never
// outlives something it depends on.
package shutdown

import (
	"github.com/iotaledger/hive.go/daemon"
)

// Priorities, lowest first: the tangle/metrics foundation starts before the
// protocol workers that read it, which start before the gossip layer that
// feeds them, which starts before the snapshot pruner that trims behind
// the solid milestone watermark it is the last to observe advancing.
const (
	PriorityMetrics = iota
	PriorityTangle
	PriorityHasher
	PriorityProcessor
	PriorityRequester
	PriorityResponder
	PrioritySolidifier
	PriorityGossip
	PriorityKickstart
	PriorityBroadcaster
	PriorityStatus
	PrioritySnapshot
)

// Register schedules fn to run as a named background worker at priority.
// fn receives the one-shot shutdown signal daemon.ShutdownAndWait closes
// when the reverse sweep reaches this worker's priority.
func Register(name string, priority int, fn func(shutdownSignal <-chan struct{})) error {
	return daemon.BackgroundWorker(name, fn, priority)
}

// Run starts every registered worker and blocks until the process receives
// an interrupt or ShutdownAndWait is called from elsewhere.
func Run() error {
	return daemon.Run()
}

// Shutdown triggers the reverse-dependency sweep and waits for every
// worker to exit.
func Shutdown() {
	daemon.ShutdownAndWait()
}
