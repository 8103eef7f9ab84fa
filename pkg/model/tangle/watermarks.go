package tangle

import (
	"go.uber.org/atomic"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
)

// watermarks holds the four monotonically-tracked indices described in
// spec.md §3: latest, latest-solid, snapshot and pruning. Each is an
// independent atomic so readers never block writers.
type watermarks struct {
	latest       atomic.Uint32
	latestSolid  atomic.Uint32
	snapshot     atomic.Uint32
	pruningIndex atomic.Uint32
}

// LatestMilestoneIndex returns the highest milestone index seen so far.
func (t *Tangle) LatestMilestoneIndex() milestone.Index {
	return milestone.Index(t.watermarks.latest.Load())
}

// SetLatestMilestoneIndex advances the latest-milestone watermark if index
// is greater than the current value. It reports whether it advanced, so
// callers can decide whether to publish LatestMilestoneChanged.
func (t *Tangle) SetLatestMilestoneIndex(index milestone.Index) bool {
	for {
		cur := t.watermarks.latest.Load()
		if uint32(index) <= cur {
			return false
		}
		if t.watermarks.latest.CAS(cur, uint32(index)) {
			return true
		}
	}
}

// SolidMilestoneIndex returns the latest-solid-milestone watermark.
func (t *Tangle) SolidMilestoneIndex() milestone.Index {
	return milestone.Index(t.watermarks.latestSolid.Load())
}

// SetSolidMilestoneIndex advances the latest-solid-milestone watermark if
// index is greater than the current value. It reports whether it advanced.
//
// Invariant (spec.md §3): latest-solid-milestone <= latest-milestone; both
// are non-decreasing. This method does not enforce the first half: index is
// stored whenever it is greater than the current value, without comparing
// it against latest-milestone.
func (t *Tangle) SetSolidMilestoneIndex(index milestone.Index) bool {
	for {
		cur := t.watermarks.latestSolid.Load()
		if uint32(index) <= cur {
			return false
		}
		if t.watermarks.latestSolid.CAS(cur, uint32(index)) {
			return true
		}
	}
}

// SnapshotIndex returns the index of the milestone the current local
// snapshot was taken at.
func (t *Tangle) SnapshotIndex() milestone.Index {
	return milestone.Index(t.watermarks.snapshot.Load())
}

// SetSnapshotIndex sets the snapshot watermark. Called once by the snapshot
// loader at startup; out of scope beyond this setter.
func (t *Tangle) SetSnapshotIndex(index milestone.Index) {
	t.watermarks.snapshot.Store(uint32(index))
}

// PruningIndex returns the highest milestone index pruned from storage.
func (t *Tangle) PruningIndex() milestone.Index {
	return milestone.Index(t.watermarks.pruningIndex.Load())
}

// SetPruningIndex advances the pruning watermark.
func (t *Tangle) SetPruningIndex(index milestone.Index) {
	t.watermarks.pruningIndex.Store(uint32(index))
}
