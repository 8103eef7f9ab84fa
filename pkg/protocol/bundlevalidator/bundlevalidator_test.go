package bundlevalidator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/metrics"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
)

func pad(s string, n int) trinary.Trytes {
	return trinary.Trytes(s + strings.Repeat("9", n-len(s)))
}

func hash(tag string) trinary.Hash {
	return trinary.Hash(pad(tag, 81))
}

// zeroValueBundle inserts a well-formed, zero-input three-transaction bundle
// directly into t, bypassing wire decode.
func zeroValueBundle(tg *tangle.Tangle, bundleHash trinary.Hash) []trinary.Hash {
	hashes := []trinary.Hash{hash("TAIL"), hash("MID"), hash("HEAD")}
	for i, h := range hashes {
		trunk := hash("SEP")
		if i < len(hashes)-1 {
			trunk = hashes[i+1]
		}
		tx := &tangle.Transaction{
			Hash: h,
			Tx: &transaction.Transaction{
				Address:                  pad("ADDR", 81),
				Value:                    0,
				Bundle:                   bundleHash,
				TrunkTransaction:         trunk,
				BranchTransaction:        trunk,
				CurrentIndex:             uint64(i),
				LastIndex:                uint64(len(hashes) - 1),
				SignatureMessageFragment: pad("", 2187),
			},
			RawTrytes: pad("", 2673),
		}
		tg.AddTransaction(tx)
	}
	return hashes
}

func TestOnBundleValidateAcceptsWellFormedBundle(t *testing.T) {
	tg := tangle.New(nil)
	bundleHash := hash("BUNDLE")
	hashes := zeroValueBundle(tg, bundleHash)

	v := New(tg, metrics.NewServerMetrics())
	v.OnBundleValidate(hashes[0])

	for _, h := range hashes {
		meta, ok := tg.GetTransactionMetadata(h)
		require.True(t, ok)
		assert.False(t, meta.IsInvalid())
	}
	assert.EqualValues(t, 0, v.metrics.InvalidTransactions.Load())
}

func TestOnBundleValidateMarksIncompleteBundleInvalid(t *testing.T) {
	tg := tangle.New(nil)
	bundleHash := hash("BUNDLE2")
	hashes := zeroValueBundle(tg, bundleHash)
	tg.DeleteTransaction(hashes[1]) // break the trunk walk

	v := New(tg, metrics.NewServerMetrics())
	v.OnBundleValidate(hashes[0])

	tailMeta, ok := tg.GetTransactionMetadata(hashes[0])
	require.True(t, ok)
	assert.True(t, tailMeta.IsInvalid())
	assert.EqualValues(t, 1, v.metrics.InvalidTransactions.Load())
}

func TestOnBundleValidateMarksEntireWalkedChainInvalid(t *testing.T) {
	tg := tangle.New(nil)
	bundleHash := hash("BUNDLE3")
	hashes := zeroValueBundle(tg, bundleHash)
	// make the bundle invalid (non-zero sum) without breaking the trunk walk
	tailTx, _ := tg.GetTransaction(hashes[0])
	tailTx.Tx.Value = 1

	v := New(tg, metrics.NewServerMetrics())
	v.OnBundleValidate(hashes[0])

	for _, h := range hashes {
		meta, ok := tg.GetTransactionMetadata(h)
		require.True(t, ok)
		assert.True(t, meta.IsInvalid())
	}
}

func TestOnBundleValidateIgnoresUnknownTailHash(t *testing.T) {
	tg := tangle.New(nil)
	v := New(tg, metrics.NewServerMetrics())

	require.NotPanics(t, func() {
		v.OnBundleValidate(hash("MISSING"))
	})
	assert.EqualValues(t, 1, v.metrics.InvalidTransactions.Load())
}
