package bundle

import (
	"github.com/pkg/errors"

	"github.com/iotaledger/iota.go/consts"
	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/protocol/hasher"
)

// Field widths of the bundle essence, in trytes — fixed by the ternary
// transaction layout and independent of security level.
const (
	valueTrytes        = 27
	obsoleteTagTrytes  = 27
	timestampTrytes    = 9
	currentIndexTrytes = 9
)

// fragmentTrytes is the width of one signature/key fragment: one Winternitz
// hash (81 trytes) per security level.
const fragmentTrytes = 81

// ErrBundleTooLarge is returned by Seal when more transactions were produced
// than the ledger's supply bound can sanely account for.
var ErrBundleTooLarge = errors.New("bundle has too many entries")

// Signer derives a Winternitz private key for an address index and security
// level, and signs one normalized-bundle-hash fragment under a slice of that
// key. Satisfied in production by an adapter over
// github.com/iotaledger/iota.go/signing; swapped for a deterministic fake in
// tests that don't need real key material.
type Signer interface {
	Key(addressIndex uint64, securityLevel int) (trinary.Trits, error)
	SignatureFragment(normalizedBundleFragment trinary.Trits, keyFragment trinary.Trits) (trinary.Trits, error)
}

// entry is one transfer added to a Raw builder before sealing.
type entry struct {
	address      trinary.Hash
	value        int64
	tag          trinary.Trytes
	addressIndex uint64
	security     int
}

// Raw is the first stage of the builder: an unordered bag of transfers, none
// of which has been assigned a bundle index or hash yet. Grounded on the
// StagedOutgoingBundleBuilder<OutgoingRaw, _> stage of
// outgoing_bundle_builder.rs, realized here as a distinct Go type per stage
// rather than a phantom type parameter, so a half-built bundle cannot
// type-check as an input to Attach.
type Raw struct {
	entries []entry
}

// NewRaw starts an empty bundle builder.
func NewRaw() *Raw {
	return &Raw{}
}

// AddEntry appends one transfer. A negative value marks an input: it will
// occupy `security` consecutive transactions to carry the full Winternitz
// signature once Sign runs.
func (r *Raw) AddEntry(address trinary.Hash, value int64, tag trinary.Trytes, addressIndex uint64, security int) *Raw {
	r.entries = append(r.entries, entry{
		address:      address,
		value:        value,
		tag:          tag,
		addressIndex: addressIndex,
		security:     security,
	})
	return r
}

// Sealed is the second stage: bundle hash and per-transaction index have
// been assigned and the anti-M-bug constraint holds.
type Sealed struct {
	hash         trinary.Hash
	transactions []*transaction.Transaction
	entries      []entry
}

// Seal expands every entry into one transaction per unit of security (inputs
// occupy `security` consecutive transactions, spec.md §4.5), computes the
// bundle hash with obsolete-tag incrementing to dodge the M-bug (mirroring
// calculate_bundle_hash in outgoing_bundle_builder.rs), and checks that the
// transfers sum to zero.
func (r *Raw) Seal(sponge hasher.Sponge, timestamp uint64) (*Sealed, error) {
	var sum int64
	var txs []*transaction.Transaction

	for _, e := range r.entries {
		sum += e.value

		count := 1
		if e.value < 0 {
			count = e.security
		}
		for i := 0; i < count; i++ {
			value := int64(0)
			if i == 0 {
				value = e.value
			}
			txs = append(txs, &transaction.Transaction{
				Address:                  e.address,
				Value:                    value,
				ObsoleteTag:              e.tag,
				Timestamp:                timestamp,
				SignatureMessageFragment: blankFragment(),
				Tag:                      e.tag,
			})
		}
	}

	if sum != 0 {
		return nil, errors.Wrap(ErrInvalidBundle, "transfers do not sum to zero")
	}
	if len(txs) == 0 {
		return nil, errors.Wrap(ErrInvalidBundle, "bundle has no entries")
	}
	if len(txs) > int(consts.TotalSupply) {
		return nil, ErrBundleTooLarge
	}

	last := len(txs) - 1
	for i, tx := range txs {
		tx.CurrentIndex = uint64(i)
		tx.LastIndex = uint64(last)
	}

	hash, err := sealHash(sponge, txs)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		tx.Bundle = hash
	}

	return &Sealed{hash: hash, transactions: txs, entries: r.entries}, nil
}

func blankFragment() trinary.Trytes {
	out := make([]byte, consts.SignatureMessageFragmentSizeInTrytes)
	for i := range out {
		out[i] = '9'
	}
	return trinary.Trytes(out)
}

// sealHash computes the bundle hash by hashing the concatenated bundle
// essence of every transaction in order, incrementing the tail's obsolete
// tag on an M-bug hit (three consecutive +1 trits), matching the
// construction-side retry loop in calculate_bundle_hash.
func sealHash(sponge hasher.Sponge, txs []*transaction.Transaction) (trinary.Hash, error) {
	for {
		var essence trinary.Trytes
		for _, tx := range txs {
			essence += trinary.Trytes(tx.Address) +
				padTrytes(intToTrytes(tx.Value, valueTrytes), valueTrytes) +
				padTrytes(tx.ObsoleteTag, obsoleteTagTrytes) +
				padTrytes(intToTrytes(int64(tx.Timestamp), timestampTrytes), timestampTrytes) +
				padTrytes(intToTrytes(int64(tx.CurrentIndex), currentIndexTrytes), currentIndexTrytes) +
				padTrytes(intToTrytes(int64(tx.LastIndex), currentIndexTrytes), currentIndexTrytes)
		}

		hash, err := sponge.Hash(essence)
		if err != nil {
			return "", errors.Wrap(err, "bundle hash")
		}

		if !hasMBug(hash) {
			return hash, nil
		}

		txs[0].ObsoleteTag = incrementTrytes(txs[0].ObsoleteTag)
	}
}

// intToTrytes balanced-ternary encodes v into size trytes via repeated
// division, independent of any library helper since the exact bundle-essence
// packing routine isn't pinned down in the reference material available
// here.
func intToTrytes(v int64, size int) trinary.Trytes {
	trits := make(trinary.Trits, size*3)
	negative := v < 0
	if negative {
		v = -v
	}
	for i := range trits {
		r := v % 3
		v /= 3
		if r == 2 {
			r = -1
			v++
		}
		trits[i] = r
	}
	if negative {
		for i := range trits {
			trits[i] = -trits[i]
		}
	}
	return trinary.MustTritsToTrytes(trits)
}

func padTrytes(t trinary.Trytes, size int) trinary.Trytes {
	if len(t) >= size {
		return t[:size]
	}
	out := []byte(t)
	for len(out) < size {
		out = append(out, '9')
	}
	return trinary.Trytes(out)
}

func incrementTrytes(t trinary.Trytes) trinary.Trytes {
	trits := trinary.MustTrytesToTrits(t)
	for i := range trits {
		trits[i]++
		if trits[i] > 1 {
			trits[i] = -1
			continue
		}
		break
	}
	return trinary.MustTritsToTrytes(trits)
}

// Signed is the third stage: every negative-value entry's signature
// fragments have been filled in over the sealed bundle hash.
type Signed struct {
	hash         trinary.Hash
	transactions []*transaction.Transaction
}

// Sign derives a Winternitz private key per input entry and fills its
// signature fragments from the normalized bundle hash, mirroring sign() in
// outgoing_bundle_builder.rs.
func (s *Sealed) Sign(signer Signer) (*Signed, error) {
	normalized := trinary.MustTrytesToTrits(s.hash)

	txIndex := 0
	for _, e := range s.entries {
		if e.value >= 0 {
			txIndex++
			continue
		}

		key, err := signer.Key(e.addressIndex, e.security)
		if err != nil {
			return nil, errors.Wrap(err, "derive signing key")
		}

		keyFragmentTrits := len(key) / e.security
		for i := 0; i < e.security; i++ {
			fragmentStart := (i * fragmentTrytes * 3) % len(normalized)
			fragmentEnd := fragmentStart + fragmentTrytes
			if fragmentEnd > len(normalized) {
				fragmentEnd = len(normalized)
			}
			keyStart := i * keyFragmentTrits
			keyEnd := keyStart + keyFragmentTrits

			sigTrits, err := signer.SignatureFragment(normalized[fragmentStart:fragmentEnd], key[keyStart:keyEnd])
			if err != nil {
				return nil, errors.Wrap(err, "sign fragment")
			}
			s.transactions[txIndex].SignatureMessageFragment = trinary.MustTritsToTrytes(sigTrits)
			txIndex++
		}
	}

	return &Signed{hash: s.hash, transactions: s.transactions}, nil
}

// Attach performs local proof-of-work against mwm and returns the
// ready-to-broadcast transaction trytes, tail first, matching attach_local
// in outgoing_bundle_builder.rs. pow computes the nonce whose resulting hash
// has at least mwm trailing zero trits.
func (s *Signed) Attach(pow func(trytes trinary.Trytes, mwm int) (trinary.Trytes, error), mwm int) ([]trinary.Trytes, error) {
	out := make([]trinary.Trytes, len(s.transactions))

	var previousHash trinary.Hash
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		tx.TrunkTransaction = previousHash
		tx.BranchTransaction = previousHash

		trytes, err := transaction.TransactionToTrytes(tx)
		if err != nil {
			return nil, errors.Wrap(err, "encode transaction")
		}

		attached, err := pow(trytes, mwm)
		if err != nil {
			return nil, errors.Wrap(err, "attach")
		}

		out[i] = attached
		parsed, err := transaction.ParseTransaction(trinary.MustTrytesToTrits(attached), true)
		if err != nil {
			return nil, errors.Wrap(err, "reparse attached transaction")
		}
		previousHash = parsed.Hash
	}

	return out, nil
}
