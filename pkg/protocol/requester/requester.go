// Package requester implements the transaction and milestone requesters
// (spec.md §4.3): each owns an rqueue.Queue, runs a take-pick-peer-dispatch
// loop, and is re-driven periodically by a stale-request timer.
package requester

import (
	"strconv"
	"time"

	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/metrics"
	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
	"github.com/trinarytangle/tanglenode/pkg/peering"
	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
	"github.com/trinarytangle/tanglenode/pkg/protocol/gossip"
	"github.com/trinarytangle/tanglenode/pkg/protocol/rqueue"
)

// RetryInterval is how often the background timer re-drives unfulfilled
// requests that have waited longer than StaleAfter (spec.md §4.3, §8
// scenario S4).
const RetryInterval = 5 * time.Second

// StaleAfter is how long a dispatched-but-unanswered request waits before
// RequeueStale re-drives it.
const StaleAfter = 10 * time.Second

// TransactionRequester drives rqueue.Queue entries keyed by transaction hash.
type TransactionRequester struct {
	queue   *rqueue.Queue
	peers   *peering.Manager
	metrics *metrics.ServerMetrics
}

// NewTransactionRequester creates a requester atop the given queue and peer
// registry.
func NewTransactionRequester(queue *rqueue.Queue, peers *peering.Manager, m *metrics.ServerMetrics) *TransactionRequester {
	return &TransactionRequester{queue: queue, peers: peers, metrics: m}
}

// Request enqueues hash as outstanding at the given milestone-index
// priority. A no-op if hash is already tracked (spec.md §8 property 2).
func (r *TransactionRequester) Request(hash trinary.Hash, msIndex milestone.Index) {
	r.queue.Insert(hash, msIndex)
}

// Run drives the take-pick-peer-dispatch loop until shutdownSignal fires.
func (r *TransactionRequester) Run(shutdownSignal <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		<-shutdownSignal
		r.queue.Shutdown()
		close(done)
	}()

	for {
		req, ok := r.queue.Take()
		if !ok {
			<-done
			return
		}
		r.dispatch(req)
	}
}

func (r *TransactionRequester) dispatch(req *rqueue.Request) {
	p, ok := r.peers.PeerForMilestone(req.MilestoneIndex)
	if !ok {
		r.metrics.DroppedSentPackets.Inc()
		return
	}
	payload := gossip.EncodeTransactionRequest(tangle.Compress(trinary.Trytes(req.Hash)))
	p.EnqueueForSending(peer.SenderTransactionRequest, payload)
}

// RunRetryTimer periodically re-queues stale dispatched requests until
// shutdownSignal fires.
func (r *TransactionRequester) RunRetryTimer(shutdownSignal <-chan struct{}) {
	ticker := time.NewTicker(RetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.queue.RequeueStale(time.Now().Add(-StaleAfter))
		case <-shutdownSignal:
			return
		}
	}
}

// MilestoneRequester drives rqueue.Queue entries keyed by a milestone
// index's textual hash encoding (the milestone request wire message carries
// an index directly, so the queue tracks indices stringified into the
// Request.Hash slot to reuse the same set+heap machinery).
type MilestoneRequester struct {
	queue   *rqueue.Queue
	peers   *peering.Manager
	metrics *metrics.ServerMetrics
}

// NewMilestoneRequester creates a milestone requester atop queue.
func NewMilestoneRequester(queue *rqueue.Queue, peers *peering.Manager, m *metrics.ServerMetrics) *MilestoneRequester {
	return &MilestoneRequester{queue: queue, peers: peers, metrics: m}
}

// Request enqueues index as an outstanding milestone request.
func (r *MilestoneRequester) Request(index milestone.Index) {
	r.queue.Insert(indexKey(index), index)
}

// Run drives the take-pick-peer-dispatch loop until shutdownSignal fires.
func (r *MilestoneRequester) Run(shutdownSignal <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		<-shutdownSignal
		r.queue.Shutdown()
		close(done)
	}()

	for {
		req, ok := r.queue.Take()
		if !ok {
			<-done
			return
		}
		r.dispatch(req)
	}
}

func (r *MilestoneRequester) dispatch(req *rqueue.Request) {
	p, ok := r.peers.PeerForMilestone(req.MilestoneIndex)
	if !ok {
		r.metrics.DroppedSentPackets.Inc()
		return
	}
	payload := gossip.EncodeMilestoneRequest(req.MilestoneIndex)
	p.EnqueueForSending(peer.SenderMilestoneRequest, payload)
}

// RunRetryTimer periodically re-queues stale dispatched milestone requests
// until shutdownSignal fires.
func (r *MilestoneRequester) RunRetryTimer(shutdownSignal <-chan struct{}) {
	ticker := time.NewTicker(RetryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.queue.RequeueStale(time.Now().Add(-StaleAfter))
		case <-shutdownSignal:
			return
		}
	}
}

// indexKey gives a milestone index a trinary.Hash-shaped key so it can share
// rqueue.Queue's hash-keyed set with the transaction requester's usage.
func indexKey(index milestone.Index) trinary.Hash {
	return trinary.Hash("milestone:" + strconv.FormatUint(uint64(index), 10))
}
