// Package responder implements the transaction and milestone responders
// (spec.md §4.4): on a peer request, fetch the item and enqueue its wire
// form on the requesting peer's sender, or drop silently on a miss.
package responder

import (
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/metrics"
	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
	"github.com/trinarytangle/tanglenode/pkg/protocol/gossip"
)

// Request is a {peer, target} event consumed by a responder.
type Request struct {
	Peer *peer.Peer
}

// TransactionRequest carries a requested transaction hash.
type TransactionRequest struct {
	Request
	Hash trinary.Hash
}

// MilestoneRequest carries a requested milestone index.
type MilestoneRequest struct {
	Request
	Index milestone.Index
}

// TransactionResponder answers transaction-request events from storage.
type TransactionResponder struct {
	tangle  *tangle.Tangle
	metrics *metrics.ServerMetrics
}

// NewTransactionResponder creates a responder reading from t.
func NewTransactionResponder(t *tangle.Tangle, m *metrics.ServerMetrics) *TransactionResponder {
	return &TransactionResponder{tangle: t, metrics: m}
}

// Respond fetches req.Hash and, on a hit, enqueues the compressed wire bytes
// for sending back to req.Peer; on a miss, increments InvalidRequests and
// drops the request silently. The cached handle is retained for the
// duration of the encode so the entry can't be pruned out from under it.
func (r *TransactionResponder) Respond(req TransactionRequest) {
	cached := r.tangle.GetCachedTransaction(req.Hash).Retain()
	defer cached.Release()
	if !cached.Exists() {
		r.metrics.InvalidRequests.Inc()
		return
	}
	payload := gossip.EncodeTransactionBroadcast(tangle.Compress(cached.GetTransaction().RawTrytes))
	req.Peer.EnqueueForSending(peer.SenderTransactionBroadcast, payload)
}

// MilestoneResponder answers milestone-request events from the tangle's
// milestone map.
type MilestoneResponder struct {
	tangle  *tangle.Tangle
	metrics *metrics.ServerMetrics
}

// NewMilestoneResponder creates a responder reading from t.
func NewMilestoneResponder(t *tangle.Tangle, m *metrics.ServerMetrics) *MilestoneResponder {
	return &MilestoneResponder{tangle: t, metrics: m}
}

// Respond fetches the milestone bundle tail at req.Index and, on a hit,
// enqueues its compressed transaction bytes for sending back to req.Peer;
// on a miss, increments InvalidRequests and drops the request silently.
func (r *MilestoneResponder) Respond(req MilestoneRequest) {
	ms, ok := r.tangle.GetMilestone(req.Index)
	if !ok {
		r.metrics.InvalidRequests.Inc()
		return
	}
	cached := r.tangle.GetCachedTransaction(ms.Hash).Retain()
	defer cached.Release()
	if !cached.Exists() {
		r.metrics.InvalidRequests.Inc()
		return
	}
	payload := gossip.EncodeTransactionBroadcast(tangle.Compress(cached.GetTransaction().RawTrytes))
	req.Peer.EnqueueForSending(peer.SenderTransactionBroadcast, payload)
}
