// Package sponge selects the coordinator's configured sponge construction
// (kerl, curl-p-27 or curl-p-81) behind the single hasher.Sponge interface
// both the Hasher and the Milestone Validator hash against (Design Notes
// §9: "coordinator sponge variant as a tagged enum threaded into the
// Milestone Validator").
package sponge

import (
	"github.com/pkg/errors"

	"github.com/iotaledger/iota.go/curl"
	"github.com/iotaledger/iota.go/kerl"
	"github.com/iotaledger/iota.go/trinary"
)

// ErrUnknownSpongeType is wrapped with the offending configuration value.
var ErrUnknownSpongeType = errors.New("sponge: unknown sponge type")

// hashTrits is the trit length of an 81-tryte hash (81 * 3).
const hashTrits = 243

// function is the low-level trit sponge both curl and kerl implement.
type function interface {
	Absorb(trits trinary.Trits) error
	Squeeze(length int) (trinary.Trits, error)
	Reset()
}

// Sponge adapts a trit-level sponge construction to hasher.Sponge's
// trytes-in/hash-out contract, creating a fresh sponge state for every
// call since the underlying state machine is not safe for concurrent use.
type Sponge struct {
	new func() function
}

// New selects a Sponge for spongeType, one of "kerl", "curl-p-27" or
// "curl-p-81".
func New(spongeType string) (*Sponge, error) {
	switch spongeType {
	case "kerl":
		return &Sponge{new: func() function { return kerl.NewKerl() }}, nil
	case "curl-p-27":
		return &Sponge{new: func() function { return curl.NewCurlP27() }}, nil
	case "curl-p-81":
		return &Sponge{new: func() function { return curl.NewCurlP81() }}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownSpongeType, "%q", spongeType)
	}
}

// Hash absorbs trytes and squeezes one hash's worth of trits back out.
func (s *Sponge) Hash(trytes trinary.Trytes) (trinary.Hash, error) {
	f := s.new()
	trits, err := trinary.TrytesToTrits(trytes)
	if err != nil {
		return "", errors.Wrap(err, "converting trytes to trits")
	}
	if err := f.Absorb(trits); err != nil {
		return "", errors.Wrap(err, "absorbing trits")
	}
	out, err := f.Squeeze(hashTrits)
	if err != nil {
		return "", errors.Wrap(err, "squeezing hash")
	}
	return trinary.MustTritsToTrytes(out), nil
}

// HashBatch hashes each element of trytesBatch independently; callers needing
// genuine batched throughput should prefer per-item Hash calls run across a
// worker pool, since the underlying sponge carries no cross-item batching.
func (s *Sponge) HashBatch(trytesBatch []trinary.Trytes) ([]trinary.Hash, error) {
	out := make([]trinary.Hash, len(trytesBatch))
	for i, t := range trytesBatch {
		h, err := s.Hash(t)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}
