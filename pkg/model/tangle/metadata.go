package tangle

import (
	"time"

	"go.uber.org/atomic"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
)

// Metadata holds the mutable, node-local state attached to a Transaction:
// solidity/confirmation flags, arrival time and the milestone that
// eventually confirms it. It is created alongside the Transaction and
// mutated by the Processor, the Solid Propagator and the Milestone
// Solidifier.
type Metadata struct {
	requested atomic.Bool
	solid     atomic.Bool
	confirmed atomic.Bool
	invalid   atomic.Bool

	arrivalTime time.Time

	confirmationMilestoneIndex atomic.Uint32
}

// NewMetadata creates fresh metadata for a transaction observed right now.
func NewMetadata() *Metadata {
	return &Metadata{arrivalTime: time.Now()}
}

// ArrivalTime returns when the transaction was first inserted into the tangle.
func (m *Metadata) ArrivalTime() time.Time { return m.arrivalTime }

// IsRequested reports whether this transaction was explicitly requested
// rather than received unsolicited.
func (m *Metadata) IsRequested() bool { return m.requested.Load() }

// SetRequested marks the transaction as having been explicitly requested.
func (m *Metadata) SetRequested(v bool) { m.requested.Store(v) }

// IsSolid reports whether both parents are solid (or solid entry points).
// Once set, it is never cleared (invariant: testable property 3).
func (m *Metadata) IsSolid() bool { return m.solid.Load() }

// SetSolid marks the transaction solid. It is a programmer error to call
// this with false after it was previously set true; callers rely on the
// monotonicity invariant and never attempt to do so.
func (m *Metadata) SetSolid(v bool) bool {
	return m.solid.CAS(false, v) && v
}

// IsConfirmed reports whether a milestone has confirmed this transaction.
func (m *Metadata) IsConfirmed() (bool, milestone.Index) {
	confirmed := m.confirmed.Load()
	return confirmed, milestone.Index(m.confirmationMilestoneIndex.Load())
}

// SetConfirmed marks the transaction confirmed by the given milestone index.
func (m *Metadata) SetConfirmed(by milestone.Index) {
	m.confirmationMilestoneIndex.Store(uint32(by))
	m.confirmed.Store(true)
}

// IsInvalid reports whether the Bundle Validator rejected this
// transaction's bundle (spec.md §4.5: "on failure, mark the bundle
// invalid, do not confirm").
func (m *Metadata) IsInvalid() bool { return m.invalid.Load() }

// SetInvalid marks the transaction's bundle invalid.
func (m *Metadata) SetInvalid() { m.invalid.Store(true) }
