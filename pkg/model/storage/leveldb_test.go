package storage

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/iota.go/transaction"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
)

func h(tag string) trinary.Hash {
	return trinary.Hash(tag + strings.Repeat("9", 81-len(tag)))
}

func openTestDB(t *testing.T) *LevelDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "tangle"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadTransactionMissingReturnsFalseNoError(t *testing.T) {
	db := openTestDB(t)

	tx, ok, err := db.LoadTransaction(h("MISSING"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, tx)
}

func TestStoreLoadDeleteTransactionRoundTrips(t *testing.T) {
	db := openTestDB(t)

	hash := h("TX")
	rawTrytes := trinary.Trytes(strings.Repeat("9", transaction.TransactionTrytesSize))

	require.NoError(t, db.StoreTransaction(&tangle.Transaction{Hash: hash, RawTrytes: rawTrytes}))

	loaded, ok, err := db.LoadTransaction(hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, hash, loaded.Hash)
	assert.Equal(t, rawTrytes, loaded.RawTrytes)

	require.NoError(t, db.DeleteTransaction(hash))

	_, ok, err = db.LoadTransaction(hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreLoadDeleteMilestoneRoundTrips(t *testing.T) {
	db := openTestDB(t)

	ms := &milestone.Milestone{Index: 42, Hash: h("MS")}
	require.NoError(t, db.StoreMilestone(ms))

	loaded, ok, err := db.LoadMilestone(42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ms.Hash, loaded.Hash)
	assert.Equal(t, ms.Index, loaded.Index)

	require.NoError(t, db.DeleteMilestone(42))

	_, ok, err = db.LoadMilestone(42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMilestoneKeysOrderedByIndex(t *testing.T) {
	lower := milestoneKey(1)
	higher := milestoneKey(2)
	assert.Less(t, string(lower), string(higher))
}
