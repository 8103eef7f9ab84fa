// Package peer defines the connected-peer handle: its stable identity,
// connection metadata, per-message-kind outbound senders and heartbeat
// state, plus its traffic metrics.
package peer

import (
	"net"
	"time"

	"github.com/iotaledger/hive.go/syncutils"
	"go.uber.org/atomic"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
)

// Origin records which side initiated the connection.
type Origin byte

const (
	// Inbound means the remote end dialled us.
	Inbound Origin = iota
	// Outbound means we dialled the remote end.
	Outbound
)

// SenderKind identifies one of the four per-peer outbound queues.
type SenderKind int

const (
	SenderMilestoneRequest SenderKind = iota
	SenderTransactionBroadcast
	SenderTransactionRequest
	SenderHeartbeat
	senderKindCount
)

// Sender is the narrow interface a per-peer outbound fan-out queue exposes
// to the rest of the protocol: enqueue a wire-ready payload, or signal
// shutdown. Implemented by pkg/protocol/sender.
type Sender interface {
	Enqueue(data []byte) bool
	Shutdown()
}

// Metrics are the atomic traffic counters accumulated per peer, consulted
// by the Status/TPS component and available as a peer-scoring hook
// (SPEC_FULL.md §4.17) even though no scoring policy acts on them here.
type Metrics struct {
	SentPackets         atomic.Uint32
	DroppedSentPackets  atomic.Uint32
	NewTransactions     atomic.Uint32
	KnownTransactions   atomic.Uint32
	InvalidTransactions atomic.Uint32
	StaleTransactions   atomic.Uint32
	ReceivedHeartbeats  atomic.Uint32
	SentHeartbeats      atomic.Uint32
}

// Heartbeat is the most recently received heartbeat payload from this peer.
type Heartbeat struct {
	SolidMilestoneIndex milestone.Index
	PrunedIndex         milestone.Index
	LatestMilestoneIndex milestone.Index
	ConnectedPeers      byte
	SyncedPeers         byte
}

// Covers reports whether the peer's retained milestone range covers index:
// it has pruned no later than index and has synced at least that far.
func (h Heartbeat) Covers(index milestone.Index) bool {
	return index > h.PrunedIndex && index <= h.LatestMilestoneIndex
}

// Peer is a single connection promoted to full peer status after a
// successful handshake. At most one active Peer exists per resolved remote
// address (duplicate detection happens in the handshaker, not here).
type Peer struct {
	ID      string // stable endpoint id, e.g. "host:port"
	Addr    *net.TCPAddr
	Origin  Origin

	Metrics Metrics

	handshaked atomic.Bool

	mu        syncutils.RWMutex
	heartbeat *Heartbeat
	senders   [senderKindCount]Sender

	connectedAt time.Time
}

// New creates a not-yet-handshaked peer for the given resolved address.
func New(id string, addr *net.TCPAddr, origin Origin) *Peer {
	return &Peer{
		ID:          id,
		Addr:        addr,
		Origin:      origin,
		connectedAt: time.Now(),
	}
}

// IsHandshaked reports whether the handshake completed and this peer is
// promoted/active.
func (p *Peer) IsHandshaked() bool { return p.handshaked.Load() }

// MarkHandshaked flips the peer to active. Idempotent.
func (p *Peer) MarkHandshaked() { p.handshaked.Store(true) }

// SetSender installs the sender for the given kind. Called once by the
// handshaker when it spawns the peer's four sender workers.
func (p *Peer) SetSender(kind SenderKind, s Sender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.senders[kind] = s
}

// EnqueueForSending hands data to the peer's sender for kind. It reports
// false (and increments DroppedSentPackets) if the sender is absent or its
// queue is shut down/full-and-nonblocking.
func (p *Peer) EnqueueForSending(kind SenderKind, data []byte) bool {
	p.mu.RLock()
	s := p.senders[kind]
	p.mu.RUnlock()

	if s == nil {
		p.Metrics.DroppedSentPackets.Inc()
		return false
	}
	if !s.Enqueue(data) {
		p.Metrics.DroppedSentPackets.Inc()
		return false
	}
	p.Metrics.SentPackets.Inc()
	return true
}

// SetHeartbeat stores the most recently received heartbeat from this peer.
func (p *Peer) SetHeartbeat(h Heartbeat) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heartbeat = &h
	p.Metrics.ReceivedHeartbeats.Inc()
}

// HeartbeatState returns the most recently received heartbeat, or nil if none
// has arrived yet.
func (p *Peer) HeartbeatState() *Heartbeat {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.heartbeat
}

// Shutdown tears down all four per-peer sender workers.
func (p *Peer) Shutdown() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.senders {
		if s != nil {
			s.Shutdown()
		}
	}
}
