package gossip

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trinarytangle/tanglenode/pkg/metrics"
	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
	"github.com/trinarytangle/tanglenode/pkg/peering"
	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
	"github.com/trinarytangle/tanglenode/pkg/protocol/requester"
	"github.com/trinarytangle/tanglenode/pkg/protocol/rqueue"
	"github.com/trinarytangle/tanglenode/pkg/protocol/solidifier"
)

func addHandshakedPeer(t *testing.T, manager *peering.Manager) {
	t.Helper()
	p := peer.New("p1", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 15600}, peer.Inbound)
	manager.Add(p)
	require.True(t, manager.Promote(p))
}

func newKickstart(t *testing.T, tg *tangle.Tangle, manager *peering.Manager, batchSize milestone.Index) *Kickstart {
	t.Helper()
	m := metrics.NewServerMetrics()
	sol := solidifier.NewMilestoneSolidifier(tg, solidifier.NewPropagator(tg),
		requester.NewTransactionRequester(rqueue.New(), manager, m),
		requester.NewMilestoneRequester(rqueue.New(), manager, m), 1)
	msReq := requester.NewMilestoneRequester(rqueue.New(), manager, m)
	return NewKickstart(tg, manager, sol, msReq, batchSize, time.Second)
}

func TestKickstartNotReadyWithoutPeers(t *testing.T) {
	tg := tangle.New(nil)
	manager := peering.New()
	k := newKickstart(t, tg, manager, 5)

	assert.False(t, k.ready())
}

func TestKickstartNotReadyWithinBatchSize(t *testing.T) {
	tg := tangle.New(nil)
	manager := peering.New()
	addHandshakedPeer(t, manager)
	tg.SetLatestMilestoneIndex(3)
	tg.SetSolidMilestoneIndex(1)

	k := newKickstart(t, tg, manager, 5)
	assert.False(t, k.ready())
}

func TestKickstartReadyBeyondBatchSize(t *testing.T) {
	tg := tangle.New(nil)
	manager := peering.New()
	addHandshakedPeer(t, manager)
	tg.SetLatestMilestoneIndex(10)
	tg.SetSolidMilestoneIndex(1)

	k := newKickstart(t, tg, manager, 5)
	assert.True(t, k.ready())
}

func TestKickstartFireRequestsConsecutiveMilestonesFromSolidPlusOne(t *testing.T) {
	tg := tangle.New(nil)
	manager := peering.New()
	tg.SetSolidMilestoneIndex(10)

	m := metrics.NewServerMetrics()
	sol := solidifier.NewMilestoneSolidifier(tg, solidifier.NewPropagator(tg),
		requester.NewTransactionRequester(rqueue.New(), manager, m),
		requester.NewMilestoneRequester(rqueue.New(), manager, m), 1)
	queue := rqueue.New()
	msReq := requester.NewMilestoneRequester(queue, manager, m)
	k := NewKickstart(tg, manager, sol, msReq, 3, time.Second)

	k.fire()

	var requested []milestone.Index
	for i := 0; i < 3; i++ {
		req, ok := queue.Take()
		require.True(t, ok)
		requested = append(requested, req.MilestoneIndex)
	}
	assert.ElementsMatch(t, []milestone.Index{11, 12, 13}, requested)
}
