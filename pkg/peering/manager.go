// Package peering implements the peer registry: connection bookkeeping,
// duplicate-address rejection and handshaked-peer iteration for the
// broadcaster, requesters and responders.
package peering

import (
	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/hive.go/syncutils"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
)

// Events fired by the Manager.
type Events struct {
	PeerHandshaked *events.Event
	PeerRemoved    *events.Event
}

// Manager is the concurrent registry of connected peers, keyed by stable
// endpoint id. It enforces at-most-one active (handshaked) peer per
// resolved remote address.
type Manager struct {
	Events Events

	mu          syncutils.RWMutex
	peers       map[string]*peer.Peer
	byAddress   map[string]*peer.Peer // only handshaked peers
}

// PeerHandshakedCaller adapts a func(*peer.Peer) to the events.Event closure
// signature.
func PeerHandshakedCaller(handler interface{}, params ...interface{}) {
	handler.(func(*peer.Peer))(params[0].(*peer.Peer))
}

// New creates an empty peer manager.
func New() *Manager {
	return &Manager{
		Events: Events{
			PeerHandshaked: events.NewEvent(PeerHandshakedCaller),
			PeerRemoved:    events.NewEvent(PeerHandshakedCaller),
		},
		peers:     make(map[string]*peer.Peer),
		byAddress: make(map[string]*peer.Peer),
	}
}

// Add registers a freshly connected (not yet handshaked) peer.
func (m *Manager) Add(p *peer.Peer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.peers[p.ID] = p
}

// HasActivePeerForAddress reports whether a handshaked peer already exists
// for the given resolved address — the duplicate check the handshaker
// consults before promoting a connection to Done (spec.md §4.10).
func (m *Manager) HasActivePeerForAddress(addr string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.byAddress[addr]
	return exists
}

// Promote marks p as handshaked/active and registers it under its resolved
// address, firing PeerHandshaked. Callers must have already verified
// HasActivePeerForAddress is false; Promote re-checks under the same lock
// to close the race and returns false (without promoting) if another
// connection won the race in between.
func (m *Manager) Promote(p *peer.Peer) bool {
	addr := p.Addr.String()

	m.mu.Lock()
	if _, exists := m.byAddress[addr]; exists {
		m.mu.Unlock()
		return false
	}
	p.MarkHandshaked()
	m.byAddress[addr] = p
	m.mu.Unlock()

	m.Events.PeerHandshaked.Trigger(p)
	return true
}

// Remove unregisters a peer (on disconnect) and tears down its senders.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	p, ok := m.peers[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.peers, id)
	if p.IsHandshaked() {
		delete(m.byAddress, p.Addr.String())
	}
	m.mu.Unlock()

	p.Shutdown()
	m.Events.PeerRemoved.Trigger(p)
}

// Get returns the peer for id, if connected.
func (m *Manager) Get(id string) (*peer.Peer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peers[id]
	return p, ok
}

// ForEachHandshaked calls fn for every currently handshaked peer, stopping
// early if fn returns false.
func (m *Manager) ForEachHandshaked(fn func(*peer.Peer) bool) {
	m.mu.RLock()
	peers := make([]*peer.Peer, 0, len(m.byAddress))
	for _, p := range m.byAddress {
		peers = append(peers, p)
	}
	m.mu.RUnlock()

	for _, p := range peers {
		if !fn(p) {
			return
		}
	}
}

// HandshakedCount returns the number of currently active peers.
func (m *Manager) HandshakedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byAddress)
}

// PeerForMilestone returns a handshaked peer whose heartbeat range covers
// the given milestone index, preferring such a peer over any other
// handshaked peer (spec.md §4.3, §8 scenario S6). Falls back to any
// handshaked peer if none covers the index, and returns false if there are
// none at all.
func (m *Manager) PeerForMilestone(index milestone.Index) (*peer.Peer, bool) {
	m.mu.RLock()
	candidates := make([]*peer.Peer, 0, len(m.byAddress))
	for _, p := range m.byAddress {
		candidates = append(candidates, p)
	}
	m.mu.RUnlock()

	var fallback *peer.Peer
	for _, p := range candidates {
		fallback = p
		if hb := p.HeartbeatState(); hb != nil && hb.Covers(index) {
			return p, true
		}
	}
	if fallback != nil {
		return fallback, true
	}
	return nil, false
}
