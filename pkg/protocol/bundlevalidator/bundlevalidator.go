// Package bundlevalidator wires bundle.Validate (spec.md §4.5) onto the
// Processor's BundleValidate event: on every bundle tail arrival,
// reconstruct and check the bundle, marking every constituent transaction
// invalid on failure so the Milestone Validator and confirmation logic
// never act on it.
package bundlevalidator

import (
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/metrics"
	"github.com/trinarytangle/tanglenode/pkg/model/bundle"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
)

// Validator reconstructs and checks a bundle on tail arrival.
type Validator struct {
	tangle  *tangle.Tangle
	metrics *metrics.ServerMetrics
}

// New creates a Validator bound to t.
func New(t *tangle.Tangle, m *metrics.ServerMetrics) *Validator {
	return &Validator{tangle: t, metrics: m}
}

// OnBundleValidate is attached to processor.Events.BundleValidate. On
// failure it marks every constituent transaction invalid so the Milestone
// Validator and pkg/protocol/confirmation's cone walk never act on it; on
// success it leaves the bundle as-is, since confirming it is not this
// worker's job (spec.md §4.5: "mark each constituent confirmed when (and
// only when) a future milestone confirms its tail") — that happens later,
// from pkg/protocol/confirmation.Walker once such a milestone arrives.
func (v *Validator) OnBundleValidate(tailHash trinary.Hash) {
	if _, err := bundle.Validate(v.tangle, tailHash); err != nil {
		v.markInvalid(tailHash)
		v.metrics.InvalidTransactions.Inc()
		return
	}
}

// markInvalid flags every transaction reachable by trunk walk from tailHash
// that shares its bundle hash, stopping at the first missing link (the walk
// that failed validation may itself be incomplete).
func (v *Validator) markInvalid(tailHash trinary.Hash) {
	tail, ok := v.tangle.GetTransaction(tailHash)
	if !ok {
		return
	}
	if meta, ok := v.tangle.GetTransactionMetadata(tailHash); ok {
		meta.SetInvalid()
	}

	bundleHash := tail.Bundle()
	cursor := tail
	for cursor.CurrentIndex() < cursor.LastIndex() {
		next, ok := v.tangle.GetTransaction(cursor.Trunk())
		if !ok || next.Bundle() != bundleHash {
			return
		}
		if meta, ok := v.tangle.GetTransactionMetadata(next.Hash); ok {
			meta.SetInvalid()
		}
		cursor = next
	}
}
