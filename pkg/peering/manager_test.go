package peering

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
)

func addr(t *testing.T, s string) *net.TCPAddr {
	t.Helper()
	a, err := net.ResolveTCPAddr("tcp", s)
	require.NoError(t, err)
	return a
}

func TestDuplicatePeerOnlyOnePromoted(t *testing.T) {
	m := New()

	a := peer.New("conn-a", addr(t, "10.0.0.1:15600"), peer.Inbound)
	b := peer.New("conn-b", addr(t, "10.0.0.1:15600"), peer.Inbound)
	m.Add(a)
	m.Add(b)

	assert.False(t, m.HasActivePeerForAddress(a.Addr.String()))
	require.True(t, m.Promote(a))

	assert.True(t, m.HasActivePeerForAddress(b.Addr.String()))
	require.False(t, m.Promote(b))

	assert.Equal(t, 1, m.HandshakedCount())
}

func TestPeerForMilestonePrefersCoveringHeartbeat(t *testing.T) {
	m := New()

	p1 := peer.New("p1", addr(t, "10.0.0.1:15600"), peer.Outbound)
	p1.SetHeartbeat(peer.Heartbeat{PrunedIndex: 0, LatestMilestoneIndex: 200})
	m.Add(p1)
	require.True(t, m.Promote(p1))

	p2 := peer.New("p2", addr(t, "10.0.0.2:15600"), peer.Outbound)
	p2.SetHeartbeat(peer.Heartbeat{PrunedIndex: 149, LatestMilestoneIndex: 300})
	m.Add(p2)
	require.True(t, m.Promote(p2))

	chosen, ok := m.PeerForMilestone(120)
	require.True(t, ok)
	assert.Equal(t, "p1", chosen.ID)
}

func TestRemoveClearsAddressSlot(t *testing.T) {
	m := New()
	p := peer.New("p1", addr(t, "10.0.0.1:15600"), peer.Outbound)
	m.Add(p)
	require.True(t, m.Promote(p))

	m.Remove(p.ID)

	assert.False(t, m.HasActivePeerForAddress(p.Addr.String()))
	assert.Equal(t, 0, m.HandshakedCount())
}
