package requester

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/metrics"
	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/peering"
	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
	"github.com/trinarytangle/tanglenode/pkg/protocol/rqueue"
)

type recordingSender struct {
	sent [][]byte
}

func (s *recordingSender) Enqueue(data []byte) bool {
	s.sent = append(s.sent, data)
	return true
}

func (s *recordingSender) Shutdown() {}

func newHandshakedPeer(t *testing.T, id string, kind peer.SenderKind) (*peer.Peer, *recordingSender) {
	t.Helper()
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	p := peer.New(id, addr, peer.Outbound)
	sender := &recordingSender{}
	p.SetSender(kind, sender)
	return p, sender
}

func TestTransactionRequesterDispatchesToHandshakedPeer(t *testing.T) {
	queue := rqueue.New()
	manager := peering.New()
	m := metrics.NewServerMetrics()

	p, sender := newHandshakedPeer(t, "peerA", peer.SenderTransactionRequest)
	manager.Add(p)
	require.True(t, manager.Promote(p))

	r := NewTransactionRequester(queue, manager, m)
	hash := trinary.Hash("A" + string(make([]byte, 80)))
	r.Request(hash, milestone.Index(5))

	shutdown := make(chan struct{})
	go r.Run(shutdown)
	defer close(shutdown)

	require.Eventually(t, func() bool {
		return len(sender.sent) == 1
	}, time.Second, time.Millisecond)
}

func TestMilestoneRequesterDispatchesToHandshakedPeer(t *testing.T) {
	queue := rqueue.New()
	manager := peering.New()
	m := metrics.NewServerMetrics()

	p, sender := newHandshakedPeer(t, "peerB", peer.SenderMilestoneRequest)
	manager.Add(p)
	require.True(t, manager.Promote(p))

	r := NewMilestoneRequester(queue, manager, m)
	r.Request(milestone.Index(7))

	shutdown := make(chan struct{})
	go r.Run(shutdown)
	defer close(shutdown)

	require.Eventually(t, func() bool {
		return len(sender.sent) == 1
	}, time.Second, time.Millisecond)
}

func TestDispatchDropsWhenNoPeerAvailable(t *testing.T) {
	queue := rqueue.New()
	manager := peering.New()
	m := metrics.NewServerMetrics()

	r := NewTransactionRequester(queue, manager, m)
	r.Request(trinary.Hash("B"+string(make([]byte, 80))), milestone.Index(1))

	shutdown := make(chan struct{})
	go r.Run(shutdown)
	defer close(shutdown)

	require.Eventually(t, func() bool {
		return m.DroppedSentPackets.Load() >= 1
	}, time.Second, time.Millisecond)
}

func TestRetryTimerRequeuesStaleRequests(t *testing.T) {
	queue := rqueue.New()

	hash := trinary.Hash("C" + string(make([]byte, 80)))
	queue.Insert(hash, milestone.Index(1))
	taken, ok := queue.Take()
	require.True(t, ok)
	require.Equal(t, hash, taken.Hash)

	assert.Equal(t, 1, queue.Len())
	n := queue.RequeueStale(time.Now().Add(time.Hour))
	assert.Equal(t, 1, n)

	retaken, ok := queue.Take()
	require.True(t, ok)
	assert.Equal(t, hash, retaken.Hash)
}
