// Package metrics holds the atomic counters incremented across the
// pipeline (Hasher, Processor, Responders, …) and exposes them both as
// plain in-process counters and as Prometheus collectors for the
// Status/TPS component to publish (SPEC_FULL.md §2.1).
package metrics

import (
	"go.uber.org/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ServerMetrics aggregates every counter named in spec.md's error-handling
// and component sections: invalid/known/new/stale transactions, invalid
// messages, invalid requests and sent/dropped packets.
type ServerMetrics struct {
	KnownTransactions   atomic.Uint32
	InvalidTransactions atomic.Uint32
	NewTransactions     atomic.Uint32
	StaleTransactions   atomic.Uint32
	InvalidMessages     atomic.Uint32
	InvalidRequests     atomic.Uint32
	InvalidMilestones   atomic.Uint32
	SentPackets         atomic.Uint32
	DroppedSentPackets  atomic.Uint32
	ReceivedHeartbeats  atomic.Uint32
}

// NewServerMetrics creates a fresh, zeroed counter set. Each node instance
// owns one — there is no package-level singleton (Design Notes §9).
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{}
}

// Collectors returns one GaugeFunc per counter, ready for
// prometheus.Registry.MustRegister.
func (m *ServerMetrics) Collectors() []prometheus.Collector {
	gauge := func(name string, read func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "tanglenode",
			Subsystem: "gossip",
			Name:      name,
		}, read)
	}

	return []prometheus.Collector{
		gauge("known_transactions_total", func() float64 { return float64(m.KnownTransactions.Load()) }),
		gauge("invalid_transactions_total", func() float64 { return float64(m.InvalidTransactions.Load()) }),
		gauge("new_transactions_total", func() float64 { return float64(m.NewTransactions.Load()) }),
		gauge("stale_transactions_total", func() float64 { return float64(m.StaleTransactions.Load()) }),
		gauge("invalid_messages_total", func() float64 { return float64(m.InvalidMessages.Load()) }),
		gauge("invalid_requests_total", func() float64 { return float64(m.InvalidRequests.Load()) }),
		gauge("invalid_milestones_total", func() float64 { return float64(m.InvalidMilestones.Load()) }),
		gauge("sent_packets_total", func() float64 { return float64(m.SentPackets.Load()) }),
		gauge("dropped_sent_packets_total", func() float64 { return float64(m.DroppedSentPackets.Load()) }),
		gauge("received_heartbeats_total", func() float64 { return float64(m.ReceivedHeartbeats.Load()) }),
	}
}
