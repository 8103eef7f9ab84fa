// Package milestonevalidator implements the Milestone Validator (spec.md
// §4.6): verify a coordinator-issued bundle's Winternitz signature and
// Merkle audit path, derive its milestone index, and register it.
package milestonevalidator

import (
	"strconv"

	"github.com/iotaledger/hive.go/events"
	"github.com/pkg/errors"

	"github.com/iotaledger/iota.go/signing"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/metrics"
	"github.com/trinarytangle/tanglenode/pkg/model/bundle"
	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
	"github.com/trinarytangle/tanglenode/pkg/protocol/hasher"
	"github.com/trinarytangle/tanglenode/pkg/protocol/rqueue"
)

// ErrInvalidMilestone is wrapped with context describing which check failed.
var ErrInvalidMilestone = errors.New("invalid milestone")

func milestoneCaller(handler interface{}, params ...interface{}) {
	handler.(func(milestone.Index))(params[0].(milestone.Index))
}

// Events fired by the Validator.
type Events struct {
	LatestMilestoneChanged *events.Event
}

// Validator reconstructs and verifies coordinator-issued milestone bundles.
type Validator struct {
	Events Events

	tangle      *tangle.Tangle
	msRequester *rqueue.Queue
	m           *metrics.ServerMetrics

	coordinatorAddress       trinary.Hash
	coordinatorSecurityLevel int
	merkleTreeDepth          int
	sponge                   hasher.Sponge
}

// New creates a Validator bound to the coordinator's configured address,
// Winternitz security level and Merkle tree depth (spec.md §6 config keys),
// using sponge to recompute the Merkle audit path root.
func New(t *tangle.Tangle, msRequester *rqueue.Queue, m *metrics.ServerMetrics, sponge hasher.Sponge, coordinatorAddress trinary.Hash, securityLevel, merkleTreeDepth int) *Validator {
	return &Validator{
		Events: Events{
			LatestMilestoneChanged: events.NewEvent(milestoneCaller),
		},
		tangle:                   t,
		msRequester:              msRequester,
		m:                        m,
		coordinatorAddress:       coordinatorAddress,
		coordinatorSecurityLevel: securityLevel,
		merkleTreeDepth:          merkleTreeDepth,
		sponge:                   sponge,
	}
}

// Validate reconstructs the bundle at tailHash, verifies it was produced by
// the coordinator and, on success, registers it as the milestone for the
// index encoded in its tag, firing LatestMilestoneChanged if it advances the
// watermark.
func (v *Validator) Validate(tailHash trinary.Hash) (milestone.Index, error) {
	b, err := bundle.Validate(v.tangle, tailHash)
	if err != nil {
		v.m.InvalidMilestones.Inc()
		return 0, errors.Wrap(err, "bundle reconstruction failed")
	}

	tail := b.TailTransaction()
	if tail.Address() != v.coordinatorAddress {
		v.m.InvalidMilestones.Inc()
		return 0, errors.Wrap(ErrInvalidMilestone, "tail address is not the coordinator address")
	}

	index, err := milestoneIndex(tail.Tag())
	if err != nil {
		v.m.InvalidMilestones.Inc()
		return 0, errors.Wrap(err, "cannot derive milestone index from tag")
	}

	// The signature occupies the first `coordinatorSecurityLevel`
	// transactions' signature-message fragments; the fragment of the
	// transaction right after them holds the Merkle audit path siblings.
	fragmentCount := v.coordinatorSecurityLevel
	if fragmentCount >= len(b.Transactions) {
		v.m.InvalidMilestones.Inc()
		return 0, errors.Wrap(ErrInvalidMilestone, "bundle too short for configured security level")
	}

	var signatureFragments []trinary.Trytes
	for i := 0; i < fragmentCount; i++ {
		signatureFragments = append(signatureFragments, b.Transactions[i].Tx.SignatureMessageFragment)
	}

	siblingsHolder := b.Transactions[fragmentCount]
	siblings, err := merkleSiblings(siblingsHolder.Tx.SignatureMessageFragment, v.merkleTreeDepth)
	if err != nil {
		v.m.InvalidMilestones.Inc()
		return 0, errors.Wrap(err, "cannot parse Merkle siblings")
	}

	leafAddress, err := applicationAddress(signatureFragments)
	if err != nil {
		v.m.InvalidMilestones.Inc()
		return 0, errors.Wrap(err, "cannot derive one-time public key from signature")
	}

	valid, err := signing.ValidateSignatures(leafAddress, signatureFragments, b.Hash)
	if err != nil {
		v.m.InvalidMilestones.Inc()
		return 0, errors.Wrap(err, "signature verification failed")
	}
	if !valid {
		v.m.InvalidMilestones.Inc()
		return 0, errors.Wrap(ErrInvalidMilestone, "signature does not verify against derived address")
	}

	root, err := merkleRoot(leafAddress, siblings, index, v.sponge)
	if err != nil {
		v.m.InvalidMilestones.Inc()
		return 0, errors.Wrap(err, "merkle root computation failed")
	}
	if root != v.coordinatorAddress {
		v.m.InvalidMilestones.Inc()
		return 0, errors.Wrap(ErrInvalidMilestone, "merkle audit path does not resolve to the coordinator address")
	}

	if existing, ok := v.tangle.GetMilestone(index); ok && existing.Hash != tailHash {
		v.m.InvalidMilestones.Inc()
		return 0, errors.Wrap(ErrInvalidMilestone, "conflicting milestone for the same index")
	}

	v.tangle.AddMilestone(&milestone.Milestone{Index: index, Hash: tailHash})
	if v.msRequester != nil {
		// The milestone requester keys its queue by index, not by hash.
		v.msRequester.Received(trinary.Hash("milestone:" + strconv.FormatUint(uint64(index), 10)))
	}

	if v.tangle.SetLatestMilestoneIndex(index) {
		v.Events.LatestMilestoneChanged.Trigger(index)
	}

	return index, nil
}

// milestoneIndex decodes the milestone index the coordinator encodes into
// the tail transaction's tag as a base-10 numeral padded with trailing
// zero-trytes ('9').
func milestoneIndex(tag trinary.Trytes) (milestone.Index, error) {
	trimmed := trinary.Trytes(trinaryTrimRight(string(tag), '9'))
	if trimmed == "" {
		return 0, errors.New("empty milestone index tag")
	}
	n, err := strconv.ParseUint(string(trimmed), 10, 32)
	if err != nil {
		return 0, err
	}
	return milestone.Index(n), nil
}

func trinaryTrimRight(s string, pad byte) string {
	end := len(s)
	for end > 0 && s[end-1] == pad {
		end--
	}
	return s[:end]
}

// merkleSiblings splits the Merkle-audit-path carrier fragment into `depth`
// hash-sized (81-tryte) sibling values.
func merkleSiblings(fragment trinary.Trytes, depth int) ([]trinary.Hash, error) {
	const hashTrytes = 81
	if len(fragment) < depth*hashTrytes {
		return nil, errors.New("fragment too short to hold the configured Merkle tree depth")
	}
	siblings := make([]trinary.Hash, depth)
	for i := 0; i < depth; i++ {
		siblings[i] = trinary.Hash(fragment[i*hashTrytes : (i+1)*hashTrytes])
	}
	return siblings, nil
}

// applicationAddress derives the leaf address of the signature key from the
// signature fragments themselves: the coordinator's one-time public key for
// this milestone, prior to folding it up the Merkle tree.
func applicationAddress(fragments []trinary.Trytes) (trinary.Hash, error) {
	digest, err := signing.Digests(joinFragments(fragments))
	if err != nil {
		return "", err
	}
	return signing.Address(digest)
}

func joinFragments(fragments []trinary.Trytes) trinary.Trytes {
	var joined trinary.Trytes
	for _, f := range fragments {
		joined += f
	}
	return joined
}

// merkleRoot folds leaf up through siblings, ordering each hash pair by the
// corresponding bit of index (spec.md §4.6's "Merkle proof").
func merkleRoot(leaf trinary.Hash, siblings []trinary.Hash, index milestone.Index, sponge hasher.Sponge) (trinary.Hash, error) {
	current := leaf
	i := uint32(index)
	for _, sibling := range siblings {
		var combined trinary.Trytes
		if i&1 == 0 {
			combined = trinary.Trytes(current) + trinary.Trytes(sibling)
		} else {
			combined = trinary.Trytes(sibling) + trinary.Trytes(current)
		}
		h, err := sponge.Hash(combined)
		if err != nil {
			return "", err
		}
		current = h
		i >>= 1
	}
	return current, nil
}
