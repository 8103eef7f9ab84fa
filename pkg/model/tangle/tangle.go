// Package tangle implements the in-memory DAG index over stored
// transactions: solidity/confirmation flags, milestone index, solid entry
// points and the watermark indices (latest, latest-solid, snapshot,
// pruning). It favours an arena-style, stable-hash-keyed concurrent map
// over a pointer graph; child (approver) links are outgoing edges keyed by
// hash, never owning references, so the arena can be pruned without
// chasing pointers.
package tangle

import (
	"github.com/iotaledger/hive.go/syncutils"
	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
)

const shardCount = 256

// Storage is the opaque persistent key/value backend the tangle is layered
// over. It is specified only at this interface; the on-disk format and
// engine (e.g. an LSM-tree key/value store) are out of scope.
type Storage interface {
	LoadTransaction(hash trinary.Hash) (*Transaction, bool, error)
	StoreTransaction(tx *Transaction) error
	DeleteTransaction(hash trinary.Hash) error

	LoadMilestone(index milestone.Index) (*milestone.Milestone, bool, error)
	StoreMilestone(ms *milestone.Milestone) error
	DeleteMilestone(index milestone.Index) error
}

type entry struct {
	mu   syncutils.RWMutex
	tx   *Transaction
	meta *Metadata
}

type shard struct {
	mu      syncutils.RWMutex
	entries map[trinary.Hash]*entry
}

// Tangle is the concurrent, sharded DAG index. One instance is threaded
// through every worker constructor; there is no mutable package-level
// singleton (Design Notes §9).
type Tangle struct {
	storage Storage
	shards  [shardCount]*shard

	approverShards [shardCount]*approverShard

	milestonesMu syncutils.RWMutex
	milestones   map[milestone.Index]*milestone.Milestone
	msHashIndex  map[trinary.Hash]milestone.Index

	solidEntryPointsMu syncutils.RWMutex
	solidEntryPoints   map[trinary.Hash]milestone.Index

	watermarks watermarks
}

type approverShard struct {
	mu        syncutils.RWMutex
	approvers map[trinary.Hash]map[trinary.Hash]struct{}
}

// New creates an empty tangle index backed by the given storage.
func New(storage Storage) *Tangle {
	t := &Tangle{
		storage:          storage,
		milestones:       make(map[milestone.Index]*milestone.Milestone),
		msHashIndex:      make(map[trinary.Hash]milestone.Index),
		solidEntryPoints: make(map[trinary.Hash]milestone.Index),
	}
	for i := range t.shards {
		t.shards[i] = &shard{entries: make(map[trinary.Hash]*entry)}
	}
	for i := range t.approverShards {
		t.approverShards[i] = &approverShard{approvers: make(map[trinary.Hash]map[trinary.Hash]struct{})}
	}
	return t
}

func shardFor(shards [shardCount]*shard, hash trinary.Hash) *shard {
	if len(hash) == 0 {
		return shards[0]
	}
	return shards[hash[0]%shardCount]
}

func approverShardFor(shards [shardCount]*approverShard, hash trinary.Hash) *approverShard {
	if len(hash) == 0 {
		return shards[0]
	}
	return shards[hash[0]%shardCount]
}

// ContainsTransaction reports whether the given hash is present in the
// in-memory index.
func (t *Tangle) ContainsTransaction(hash trinary.Hash) bool {
	s := shardFor(t.shards, hash)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[hash]
	return ok
}

// GetTransactionMetadata returns the metadata for hash, if present.
func (t *Tangle) GetTransactionMetadata(hash trinary.Hash) (*Metadata, bool) {
	s := shardFor(t.shards, hash)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[hash]
	if !ok {
		return nil, false
	}
	return e.meta, true
}

// GetTransaction returns the decoded transaction for hash, if present.
func (t *Tangle) GetTransaction(hash trinary.Hash) (*Transaction, bool) {
	s := shardFor(t.shards, hash)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[hash]
	if !ok {
		return nil, false
	}
	return e.tx, true
}

// AddTransaction inserts tx with fresh metadata if it isn't already present.
// It returns the (possibly pre-existing) metadata and whether this call
// performed the insertion.
func (t *Tangle) AddTransaction(tx *Transaction) (*Metadata, bool) {
	s := shardFor(t.shards, tx.Hash)

	s.mu.Lock()
	if e, exists := s.entries[tx.Hash]; exists {
		s.mu.Unlock()
		return e.meta, false
	}
	e := &entry{tx: tx, meta: NewMetadata()}
	s.entries[tx.Hash] = e
	s.mu.Unlock()

	t.addApprover(tx.Trunk(), tx.Hash)
	if tx.Branch() != tx.Trunk() {
		t.addApprover(tx.Branch(), tx.Hash)
	}

	return e.meta, true
}

// DeleteTransaction removes a transaction (and its approver-edge entries)
// from the in-memory index. Used only by the pruner.
func (t *Tangle) DeleteTransaction(hash trinary.Hash) {
	s := shardFor(t.shards, hash)
	s.mu.Lock()
	delete(s.entries, hash)
	s.mu.Unlock()

	as := approverShardFor(t.approverShards, hash)
	as.mu.Lock()
	delete(as.approvers, hash)
	as.mu.Unlock()
}

// ForEachTransaction calls fn for every transaction currently held in the
// in-memory index, in unspecified order. fn is called after the shard's
// read lock has been released, so it may call back into the tangle; used
// by the pruner to find confirmation-stale and unconfirmed candidates without a
// dedicated secondary index.
func (t *Tangle) ForEachTransaction(fn func(tx *Transaction, meta *Metadata)) {
	for _, s := range t.shards {
		s.mu.RLock()
		snapshot := make([]*entry, 0, len(s.entries))
		for _, e := range s.entries {
			snapshot = append(snapshot, e)
		}
		s.mu.RUnlock()

		for _, e := range snapshot {
			fn(e.tx, e.meta)
		}
	}
}

func (t *Tangle) addApprover(approveeHash, approverHash trinary.Hash) {
	as := approverShardFor(t.approverShards, approveeHash)
	as.mu.Lock()
	defer as.mu.Unlock()
	set, ok := as.approvers[approveeHash]
	if !ok {
		set = make(map[trinary.Hash]struct{})
		as.approvers[approveeHash] = set
	}
	set[approverHash] = struct{}{}
}

// Approvers returns the set of transaction hashes that directly reference
// (trunk or branch) the given hash.
func (t *Tangle) Approvers(hash trinary.Hash) []trinary.Hash {
	as := approverShardFor(t.approverShards, hash)
	as.mu.RLock()
	defer as.mu.RUnlock()
	set, ok := as.approvers[hash]
	if !ok {
		return nil
	}
	out := make([]trinary.Hash, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	return out
}
