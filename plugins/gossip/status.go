package gossip

import (
	"time"

	"go.uber.org/atomic"

	"github.com/iotaledger/hive.go/logger"

	"github.com/trinarytangle/tanglenode/pkg/metrics"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
	"github.com/trinarytangle/tanglenode/pkg/peering"
)

var statusLog = logger.NewLogger("Status")

// Status periodically logs the node's tangle watermarks, handshaked peer
// count and transactions-per-second rate (spec.md §2 item 15). It only
// logs them, and it does not count synced peers.
type Status struct {
	tangle   *tangle.Tangle
	manager  *peering.Manager
	metrics  *metrics.ServerMetrics
	interval time.Duration

	lastNewTransactions atomic.Uint32
}

// NewStatus creates a Status reporter polling at interval.
func NewStatus(t *tangle.Tangle, manager *peering.Manager, m *metrics.ServerMetrics, interval time.Duration) *Status {
	return &Status{tangle: t, manager: manager, metrics: m, interval: interval}
}

// Run logs a status line every interval until shutdownSignal fires.
func (s *Status) Run(shutdownSignal <-chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.report()
		case <-shutdownSignal:
			return
		}
	}
}

func (s *Status) report() {
	current := s.metrics.NewTransactions.Load()
	previous := s.lastNewTransactions.Swap(current)
	tps := float64(current-previous) / s.interval.Seconds()

	statusLog.Infof(
		"%.2f tps, solid milestone %d, latest milestone %d, pruned below %d, peers %d",
		tps,
		s.tangle.SolidMilestoneIndex(),
		s.tangle.LatestMilestoneIndex(),
		s.tangle.PruningIndex(),
		s.manager.HandshakedCount(),
	)
}
