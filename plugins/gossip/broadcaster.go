package gossip

import (
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
	"github.com/trinarytangle/tanglenode/pkg/peering"
	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
)

// Broadcaster fans a newly stored transaction out to every handshaked peer's
// broadcast sender, excluding the peer it arrived from (spec.md §4.12).
type Broadcaster struct {
	manager *peering.Manager
}

// NewBroadcaster creates a Broadcaster bound to the node's peer manager.
func NewBroadcaster(manager *peering.Manager) *Broadcaster {
	return &Broadcaster{manager: manager}
}

// OnTransactionStored is attached to processor.Events.TransactionStored; tx
// arrived locally and was just inserted, origin is nil for self-attached
// transactions.
func (b *Broadcaster) OnTransactionStored(tx *tangle.Transaction, origin *peer.Peer) {
	payload := tangle.Compress(tx.RawTrytes)

	b.manager.ForEachHandshaked(func(p *peer.Peer) bool {
		if origin != nil && p.ID == origin.ID {
			return true
		}
		p.EnqueueForSending(peer.SenderTransactionBroadcast, payload)
		return true
	})
}
