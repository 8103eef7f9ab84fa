// Package hasher implements the batched transaction-hashing worker
// (spec.md §4.1): pull up to BatchSize items from the input channel,
// flushing whenever the stream would block or the batch fills, hash the
// batch with the batched sponge when it crosses BatchSizeThreshold
// (otherwise hash items individually — both paths must produce identical
// hashes, spec.md §8 property 5), drop duplicates via a bounded LRU before
// hashing, and forward {hash, origin, bytes} to the Processor.
//
// The adaptive batching here is the "Future-pinned batch stream" of Design
// Notes §9: described there as a stream adapter yielding the larger of
// {accumulated batch, any non-pending item} on each poll, never emitting an
// empty batch. The goroutine loop below is that adapter's concrete form.
package hasher

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/iotaledger/iota.go/guards"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/metrics"
	"github.com/trinarytangle/tanglenode/pkg/model/tangle"
	"github.com/trinarytangle/tanglenode/pkg/peering/peer"
)

// BatchSize is the maximum number of items pulled into one batch.
const BatchSize = 64

// BatchSizeThreshold is the minimum batch occupancy required to use the
// batched sponge; smaller batches are hashed item-by-item since the
// batching overhead would not be recovered.
const BatchSizeThreshold = 8

// Sponge computes transaction hashes, singly or in a batch. A single
// implementation (Curl-P-81, Curl-P-27 or Kerl, selected at startup per
// Design Notes §9) backs both methods so both paths agree bit-for-bit.
type Sponge interface {
	Hash(trytes trinary.Trytes) (trinary.Hash, error)
	HashBatch(trytesBatch []trinary.Trytes) ([]trinary.Hash, error)
}

// Incoming is one unit of work submitted to the Hasher: compressed wire
// bytes received from a peer (or from ourselves, for locally-attached
// transactions, in which case Origin is nil).
type Incoming struct {
	Origin  *peer.Peer
	RawData []byte
}

// Hashed is the Hasher's output: the computed hash alongside the original
// origin/bytes, ready for the Processor.
type Hashed struct {
	Hash    trinary.Hash
	Origin  *peer.Peer
	RawData []byte
}

// Hasher is the batched hashing worker.
type Hasher struct {
	sponge  Sponge
	metrics *metrics.ServerMetrics
	cache   *lru.Cache

	in  chan Incoming
	out chan Hashed
}

// New creates a Hasher with the given sponge, metrics sink and LRU cache
// size (workers.transaction_worker_cache, spec.md §6).
func New(sponge Sponge, m *metrics.ServerMetrics, cacheSize int, inCapacity, outCapacity int) (*Hasher, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	return &Hasher{
		sponge:  sponge,
		metrics: m,
		cache:   cache,
		in:      make(chan Incoming, inCapacity),
		out:     make(chan Hashed, outCapacity),
	}, nil
}

// Submit enqueues an incoming item for hashing. Blocks if the input
// channel is full.
func (h *Hasher) Submit(item Incoming) {
	h.in <- item
}

// Out returns the channel of hashed results for the Processor to consume.
func (h *Hasher) Out() <-chan Hashed {
	return h.out
}

// Run drives the batch-pull loop until shutdownSignal fires, then drains
// any buffered input one final time before returning.
func (h *Hasher) Run(shutdownSignal <-chan struct{}) {
	for {
		batch, ok := h.nextBatch(shutdownSignal)
		if len(batch) > 0 {
			h.processBatch(batch)
		}
		if !ok {
			return
		}
	}
}

// nextBatch pulls up to BatchSize items, blocking for at least the first
// one, then draining non-blockingly until the channel would block or the
// batch is full — "never emitting an empty batch" unless shutdown fires
// with nothing pending.
func (h *Hasher) nextBatch(shutdownSignal <-chan struct{}) ([]Incoming, bool) {
	var first Incoming
	select {
	case item, ok := <-h.in:
		if !ok {
			return nil, false
		}
		first = item
	case <-shutdownSignal:
		// Drain whatever is already queued before stopping.
		return h.drainNonBlocking(), false
	}

	batch := make([]Incoming, 0, BatchSize)
	batch = append(batch, first)

	for len(batch) < BatchSize {
		select {
		case item, ok := <-h.in:
			if !ok {
				return batch, true
			}
			batch = append(batch, item)
		default:
			return batch, true
		}
	}
	return batch, true
}

func (h *Hasher) drainNonBlocking() []Incoming {
	var batch []Incoming
	for len(batch) < BatchSize {
		select {
		case item, ok := <-h.in:
			if !ok {
				return batch
			}
			batch = append(batch, item)
		default:
			return batch
		}
	}
	return batch
}

// pending is a batch item that survived dedup/decode and is ready to hash.
type pending struct {
	item   Incoming
	trytes trinary.Trytes
}

func (h *Hasher) processBatch(batch []Incoming) {
	toHash := make([]pending, 0, len(batch))

	for _, item := range batch {
		if _, known := h.cache.Get(string(item.RawData)); known {
			h.metrics.KnownTransactions.Inc()
			continue
		}

		trytes := tangle.Decompress(item.RawData)
		if !guards.IsTrytes(trytes) {
			h.metrics.InvalidTransactions.Inc()
			continue
		}

		h.cache.Add(string(item.RawData), struct{}{})
		toHash = append(toHash, pending{item: item, trytes: trytes})
	}

	if len(toHash) == 0 {
		return
	}

	if len(toHash) >= BatchSizeThreshold {
		trytesBatch := make([]trinary.Trytes, len(toHash))
		for i, p := range toHash {
			trytesBatch[i] = p.trytes
		}
		hashes, err := h.sponge.HashBatch(trytesBatch)
		if err != nil {
			// Fall back to per-item hashing: a single malformed element
			// must not fail the whole batch.
			h.hashIndividually(toHash)
			return
		}
		for i, p := range toHash {
			h.out <- Hashed{Hash: hashes[i], Origin: p.item.Origin, RawData: p.item.RawData}
		}
		return
	}

	h.hashIndividually(toHash)
}

func (h *Hasher) hashIndividually(toHash []pending) {
	for _, p := range toHash {
		hash, err := h.sponge.Hash(p.trytes)
		if err != nil {
			h.metrics.InvalidTransactions.Inc()
			continue
		}
		h.out <- Hashed{Hash: hash, Origin: p.item.Origin, RawData: p.item.RawData}
	}
}
