package solidifier

import (
	"sort"

	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/hive.go/syncutils"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
)

// transactionRequester is the narrow surface the solidifier needs from the
// transaction requester: schedule a hash for fetching at a given priority.
type transactionRequester interface {
	Request(hash trinary.Hash, msIndex milestone.Index)
}

// milestoneRequester is the narrow surface needed from the milestone
// requester: schedule an index for fetching.
type milestoneRequester interface {
	Request(index milestone.Index)
}

// MilestoneSolidifierEvents fired by the MilestoneSolidifier.
type MilestoneSolidifierEvents struct {
	LatestSolidMilestoneChanged *events.Event
}

// MilestoneSolidifier holds the sorted queue of milestone indices awaiting
// solidification plus the next-expected index (spec.md §4.8), adapted from
// the teacher's solidifyMilestone/solidQueueCheck idiom onto an injected
// *tangle.Tangle and the pkg/protocol/requester workers in place of the
// package-level gossip.RequestMulti call.
type MilestoneSolidifier struct {
	Events MilestoneSolidifierEvents

	tangle      *tangle.Tangle
	propagator  *Propagator
	txRequester transactionRequester
	msRequester milestoneRequester

	mu           syncutils.Mutex
	queue        []milestone.Index
	nextExpected milestone.Index
}

// NewMilestoneSolidifier creates a solidifier bound to t, the Propagator
// that re-derives solidity flags once a missing transaction arrives, and
// the two requester workers that fetch missing transactions/milestones.
func NewMilestoneSolidifier(t *tangle.Tangle, propagator *Propagator, txRequester transactionRequester, msRequester milestoneRequester, nextExpected milestone.Index) *MilestoneSolidifier {
	return &MilestoneSolidifier{
		Events: MilestoneSolidifierEvents{
			LatestSolidMilestoneChanged: events.NewEvent(milestoneCaller),
		},
		tangle:       t,
		propagator:   propagator,
		txRequester:  txRequester,
		msRequester:  msRequester,
		nextExpected: nextExpected,
	}
}

// Schedule inserts index into the sorted queue (idempotent) and, while the
// head equals next-expected, attempts solidification in order.
func (s *MilestoneSolidifier) Schedule(index milestone.Index) {
	s.mu.Lock()
	s.insertSorted(index)
	s.drain()
	s.mu.Unlock()
}

// SetNextExpected jumps next-expected forward, discarding any queued index
// below it. Used once by Kickstart (spec.md §4.9) to skip the cold-start gap
// between the solid entry point and the first milestone worth solidifying
// from scratch.
func (s *MilestoneSolidifier) SetNextExpected(index milestone.Index) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index <= s.nextExpected {
		return
	}
	s.nextExpected = index

	kept := s.queue[:0]
	for _, i := range s.queue {
		if i >= index {
			kept = append(kept, i)
		}
	}
	s.queue = kept
	s.drain()
}

func (s *MilestoneSolidifier) insertSorted(index milestone.Index) {
	pos := sort.Search(len(s.queue), func(i int) bool { return s.queue[i] >= index })
	if pos < len(s.queue) && s.queue[pos] == index {
		return
	}
	s.queue = append(s.queue, 0)
	copy(s.queue[pos+1:], s.queue[pos:])
	s.queue[pos] = index
}

// drain must be called with s.mu held.
func (s *MilestoneSolidifier) drain() {
	for len(s.queue) > 0 && s.queue[0] == s.nextExpected {
		index := s.queue[0]
		s.queue = s.queue[1:]

		if !s.attemptSolidify(index) {
			s.insertSorted(index)
			return
		}
		s.nextExpected = index + 1
		if s.tangle.SetSolidMilestoneIndex(index) {
			s.Events.LatestSolidMilestoneChanged.Trigger(index)
		}
	}
}

// attemptSolidify runs the depth-first parent walk from index's milestone
// hash, scheduling a transaction request for every missing leaf. It reports
// whether the milestone is now fully solid.
func (s *MilestoneSolidifier) attemptSolidify(index milestone.Index) bool {
	ms, ok := s.tangle.GetMilestone(index)
	if !ok {
		if s.msRequester != nil {
			s.msRequester.Request(index)
		}
		return false
	}

	visited := make(map[trinary.Hash]bool)
	missing := false
	var unflagged []trinary.Hash

	var walk func(hash trinary.Hash)
	walk = func(hash trinary.Hash) {
		if visited[hash] {
			return
		}
		visited[hash] = true

		if s.tangle.IsSolidEntryPoint(hash) {
			return
		}

		meta, ok := s.tangle.GetTransactionMetadata(hash)
		if !ok {
			missing = true
			if s.txRequester != nil {
				s.txRequester.Request(hash, index)
			}
			return
		}
		if meta.IsSolid() {
			return
		}

		tx, ok := s.tangle.GetTransaction(hash)
		if !ok {
			missing = true
			return
		}
		walk(tx.Trunk())
		if tx.Branch() != tx.Trunk() {
			walk(tx.Branch())
		}
		unflagged = append(unflagged, hash)
	}

	walk(ms.Hash)

	if missing {
		return false
	}
	// Parents are appended before their children, so each Propagate call
	// finds its parents already marked solid.
	for _, hash := range unflagged {
		s.propagator.Propagate(hash)
	}
	return true
}
