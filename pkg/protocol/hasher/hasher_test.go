package hasher

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/metrics"
)

// fakeSponge hashes deterministically by reversing the trytes, so batch and
// individual hashing are trivially checkable for equality (spec.md §8
// property 5) without pulling in a real Curl/Kerl implementation.
type fakeSponge struct{}

func (fakeSponge) Hash(trytes trinary.Trytes) (trinary.Hash, error) {
	runes := []rune(string(trytes))
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return trinary.Hash(string(runes)), nil
}

func (f fakeSponge) HashBatch(batch []trinary.Trytes) ([]trinary.Hash, error) {
	out := make([]trinary.Hash, len(batch))
	for i, t := range batch {
		h, _ := f.Hash(t)
		out[i] = h
	}
	return out, nil
}

func validTrytes(tag string) string {
	body := strings.Repeat("A", 2673-len(tag))
	return tag + body
}

func TestBatchAndIndividualHashesAgree(t *testing.T) {
	m := metrics.NewServerMetrics()
	h, err := New(fakeSponge{}, m, 1000, 100, 100)
	require.NoError(t, err)

	// At BatchSizeThreshold: submitted before Run starts, so the first pull
	// takes them as one batch and hashes them with HashBatch.
	batchTrytes := make([]string, BatchSizeThreshold)
	for i := range batchTrytes {
		batchTrytes[i] = validTrytes("BATCH" + string(rune('A'+i)))
		h.Submit(Incoming{RawData: []byte(batchTrytes[i])})
	}

	shutdown := make(chan struct{})
	go h.Run(shutdown)
	defer close(shutdown)

	for _, tr := range batchTrytes {
		var got Hashed
		select {
		case got = <-h.Out():
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for batched hash")
		}
		want, _ := fakeSponge{}.Hash(trinary.Trytes(tr))
		assert.Equal(t, want, got.Hash)
	}

	// Below BatchSizeThreshold: hashed individually.
	smallTrytes := validTrytes("SMALL")
	h.Submit(Incoming{RawData: []byte(smallTrytes)})

	var smallResult Hashed
	select {
	case smallResult = <-h.Out():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for individual hash")
	}

	expected, _ := fakeSponge{}.Hash(trinary.Trytes(smallTrytes))
	assert.Equal(t, expected, smallResult.Hash)
}

func TestKnownTransactionIsDroppedBeforeHashing(t *testing.T) {
	m := metrics.NewServerMetrics()
	h, err := New(fakeSponge{}, m, 1000, 100, 100)
	require.NoError(t, err)

	shutdown := make(chan struct{})
	go h.Run(shutdown)
	defer close(shutdown)

	raw := []byte(validTrytes("DUP"))
	h.Submit(Incoming{RawData: raw})
	<-h.Out()

	h.Submit(Incoming{RawData: raw})
	// second submit of identical raw bytes must be short-circuited by the
	// LRU cache and never reach Out().
	select {
	case <-h.Out():
		t.Fatal("duplicate transaction bytes were hashed again")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, uint32(1), m.KnownTransactions.Load())
}

func TestInvalidTernaryEncodingDoesNotFailBatch(t *testing.T) {
	m := metrics.NewServerMetrics()
	h, err := New(fakeSponge{}, m, 1000, 100, 100)
	require.NoError(t, err)

	shutdown := make(chan struct{})
	go h.Run(shutdown)
	defer close(shutdown)

	h.Submit(Incoming{RawData: []byte("not valid trytes!!! 000")})
	h.Submit(Incoming{RawData: []byte(validTrytes("OK"))})

	var got Hashed
	select {
	case got = <-h.Out():
	case <-time.After(time.Second):
		t.Fatal("valid item in batch with an invalid sibling was never hashed")
	}
	assert.NotEmpty(t, got.Hash)
	assert.Equal(t, uint32(1), m.InvalidTransactions.Load())
}
