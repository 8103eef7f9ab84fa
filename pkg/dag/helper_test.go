package dag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
)

func h(tag string) trinary.Hash {
	return trinary.Hash(tag + strings.Repeat("9", 81-len(tag)))
}

func addTx(t *testing.T, tg *tangle.Tangle, hash, trunk, branch trinary.Hash) {
	t.Helper()
	_, inserted := tg.AddTransaction(&tangle.Transaction{
		Hash: hash,
		Tx: &transaction.Transaction{
			TrunkTransaction:  trunk,
			BranchTransaction: branch,
		},
	})
	require.True(t, inserted)
}

// addNonTail is like addTx but marks the transaction as a non-tail bundle
// member (CurrentIndex != 0), so FindAllTails keeps walking through it.
func addNonTail(t *testing.T, tg *tangle.Tangle, hash, trunk, branch trinary.Hash) {
	t.Helper()
	_, inserted := tg.AddTransaction(&tangle.Transaction{
		Hash: hash,
		Tx: &transaction.Transaction{
			TrunkTransaction:  trunk,
			BranchTransaction: branch,
			CurrentIndex:      1,
			LastIndex:         1,
		},
	})
	require.True(t, inserted)
}

func TestFindAllTailsCollectsEveryReachableTail(t *testing.T) {
	tg := tangle.New(nil)
	tg.AddSolidEntryPoint(h("SEP"), 0)

	addTx(t, tg, h("TAIL1"), h("SEP"), h("SEP"))
	addTx(t, tg, h("TAIL2"), h("SEP"), h("SEP"))
	addNonTail(t, tg, h("MID"), h("TAIL1"), h("TAIL2"))

	tails, err := FindAllTails(tg, h("MID"))
	require.NoError(t, err)
	assert.Len(t, tails, 2)
	assert.Contains(t, tails, h("TAIL1"))
	assert.Contains(t, tails, h("TAIL2"))
}

func TestFindAllTailsStopsAtSolidEntryPoint(t *testing.T) {
	tg := tangle.New(nil)
	tg.AddSolidEntryPoint(h("SEP"), 0)

	addTx(t, tg, h("ONLY"), h("SEP"), h("SEP"))
	addNonTail(t, tg, h("HEAD"), h("ONLY"), h("SEP"))

	tails, err := FindAllTails(tg, h("HEAD"))
	require.NoError(t, err)
	assert.Len(t, tails, 1)
	assert.Contains(t, tails, h("ONLY"))
}

func TestFindAllTailsFailsOnMissingTransaction(t *testing.T) {
	tg := tangle.New(nil)

	_, err := FindAllTails(tg, h("MISSING"))
	require.Error(t, err)
}
