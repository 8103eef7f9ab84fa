package tangle

import (
	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/protocol/bundlevalidator"
	"github.com/trinarytangle/tanglenode/pkg/protocol/milestonevalidator"
)

// ConfigureBundleValidator subscribes the Bundle Validator (spec.md §4.5)
// to the Processor's BundleValidate event, which fires once per tail
// transaction arrival.
func ConfigureBundleValidator(validator *bundlevalidator.Validator, bundleValidate *events.Event) {
	bundleValidate.Attach(events.NewClosure(func(tailHash trinary.Hash) {
		validator.OnBundleValidate(tailHash)
	}))
}

// ConfigureMilestoneValidator subscribes the Milestone Validator (spec.md
// §4.6) to the Processor's MilestoneCandidate event, which fires once per
// tail transaction issued by the coordinator address.
func ConfigureMilestoneValidator(validator *milestonevalidator.Validator, milestoneCandidate *events.Event) {
	milestoneCandidate.Attach(events.NewClosure(func(tailHash trinary.Hash) {
		if _, err := validator.Validate(tailHash); err != nil {
			log.Infof("milestone candidate %s rejected: %v", tailHash, err)
		}
	}))
}
