package gossip

import (
	"time"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
	"github.com/trinarytangle/tanglenode/pkg/peering"
	"github.com/trinarytangle/tanglenode/pkg/protocol/requester"
	"github.com/trinarytangle/tanglenode/pkg/protocol/solidifier"
)

// Kickstart polls until the node is far enough behind a connected network to
// be worth jump-starting, then schedules the solidifier past the gap and
// requests the intervening milestones, exiting permanently (spec.md §4.9).
type Kickstart struct {
	tangle      *tangle.Tangle
	manager     *peering.Manager
	solidifier  *solidifier.MilestoneSolidifier
	msRequester *requester.MilestoneRequester

	batchSize    milestone.Index
	pollInterval time.Duration
}

// NewKickstart creates a Kickstart bound to the tangle's watermarks, the
// peer manager's handshaked-peer count and the two downstream workers it
// jump-starts.
func NewKickstart(t *tangle.Tangle, manager *peering.Manager, s *solidifier.MilestoneSolidifier, msRequester *requester.MilestoneRequester, batchSize milestone.Index, pollInterval time.Duration) *Kickstart {
	return &Kickstart{
		tangle:       t,
		manager:      manager,
		solidifier:   s,
		msRequester:  msRequester,
		batchSize:    batchSize,
		pollInterval: pollInterval,
	}
}

// Run polls until the kickstart condition holds or shutdownSignal fires,
// then performs the one-shot jump and returns. It never runs twice.
func (k *Kickstart) Run(shutdownSignal <-chan struct{}) {
	ticker := time.NewTicker(k.pollInterval)
	defer ticker.Stop()

	for {
		if k.ready() {
			k.fire()
			return
		}
		select {
		case <-ticker.C:
		case <-shutdownSignal:
			return
		}
	}
}

func (k *Kickstart) ready() bool {
	if k.manager.HandshakedCount() == 0 {
		return false
	}
	return k.tangle.LatestMilestoneIndex()-k.tangle.SolidMilestoneIndex() > k.batchSize
}

func (k *Kickstart) fire() {
	solid := k.tangle.SolidMilestoneIndex()
	next := solid + 1

	k.solidifier.SetNextExpected(next)
	for index := next; index < next+k.batchSize; index++ {
		k.msRequester.Request(index)
	}
}
