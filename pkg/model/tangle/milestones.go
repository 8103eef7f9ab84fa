package tangle

import (
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
)

// AddMilestone registers a validated {index, hash} pair. It reports whether
// the index was newly registered (re-registering the same index is a
// no-op, matching the milestone validator's idempotent registration on
// re-delivery of an already-known milestone).
func (t *Tangle) AddMilestone(ms *milestone.Milestone) bool {
	t.milestonesMu.Lock()
	defer t.milestonesMu.Unlock()

	if _, exists := t.milestones[ms.Index]; exists {
		return false
	}
	t.milestones[ms.Index] = ms
	t.msHashIndex[ms.Hash] = ms.Index
	return true
}

// GetMilestone returns the registered milestone for index, if any.
func (t *Tangle) GetMilestone(index milestone.Index) (*milestone.Milestone, bool) {
	t.milestonesMu.RLock()
	defer t.milestonesMu.RUnlock()
	ms, ok := t.milestones[index]
	return ms, ok
}

// GetMilestoneIndexByHash returns the milestone index for a known milestone
// tail hash.
func (t *Tangle) GetMilestoneIndexByHash(hash trinary.Hash) (milestone.Index, bool) {
	t.milestonesMu.RLock()
	defer t.milestonesMu.RUnlock()
	idx, ok := t.msHashIndex[hash]
	return idx, ok
}

// DeleteMilestone removes a milestone's in-memory record. Used by the
// pruner once a milestone falls behind the pruning watermark.
func (t *Tangle) DeleteMilestone(index milestone.Index) {
	t.milestonesMu.Lock()
	defer t.milestonesMu.Unlock()
	ms, ok := t.milestones[index]
	if !ok {
		return
	}
	delete(t.msHashIndex, ms.Hash)
	delete(t.milestones, index)
}

// IsSolidEntryPoint reports whether hash is a solid entry point: a
// pruned-history boundary hash treated as a solidity terminator.
func (t *Tangle) IsSolidEntryPoint(hash trinary.Hash) bool {
	t.solidEntryPointsMu.RLock()
	defer t.solidEntryPointsMu.RUnlock()
	_, ok := t.solidEntryPoints[hash]
	return ok
}

// AddSolidEntryPoint registers hash as a solid entry point pinned at the
// given milestone index. Populated by the snapshot loader at startup and by
// the pruner as the pruning watermark advances.
func (t *Tangle) AddSolidEntryPoint(hash trinary.Hash, index milestone.Index) {
	t.solidEntryPointsMu.Lock()
	defer t.solidEntryPointsMu.Unlock()
	t.solidEntryPoints[hash] = index
}

// SolidEntryPoints returns a snapshot copy of the current solid entry point set.
func (t *Tangle) SolidEntryPoints() map[trinary.Hash]milestone.Index {
	t.solidEntryPointsMu.RLock()
	defer t.solidEntryPointsMu.RUnlock()
	out := make(map[trinary.Hash]milestone.Index, len(t.solidEntryPoints))
	for h, idx := range t.solidEntryPoints {
		out[h] = idx
	}
	return out
}
