package tangle

import (
	"go.uber.org/atomic"

	"github.com/iotaledger/iota.go/trinary"
)

// CachedTransaction is a reference-counted handle to a tangle entry,
// mirroring the retain/release discipline of the teacher's cache layer.
// The underlying arena entry is not evicted by this package (eviction is
// the pruner's job, §4.14); the counter exists so call sites can be
// written, and reviewed, exactly like code against a real object cache.
type CachedTransaction struct {
	hash    trinary.Hash
	e       *entry
	refs    *atomic.Int32
}

// GetCachedTransaction returns a retained handle to hash's tangle entry, or
// a handle whose Exists() is false if the hash is unknown.
func (t *Tangle) GetCachedTransaction(hash trinary.Hash) *CachedTransaction {
	s := shardFor(t.shards, hash)
	s.mu.RLock()
	e, ok := s.entries[hash]
	s.mu.RUnlock()

	ct := &CachedTransaction{hash: hash, refs: atomic.NewInt32(1)}
	if ok {
		ct.e = e
	}
	return ct
}

// Exists reports whether the handle refers to a known transaction.
func (c *CachedTransaction) Exists() bool { return c.e != nil }

// GetTransaction returns the wrapped transaction. Calling it on a handle
// for which Exists() is false panics, matching the teacher's "tx not found"
// invariant violations, which are always guarded by an Exists() check.
func (c *CachedTransaction) GetTransaction() *Transaction { return c.e.tx }

// GetMetadata returns the wrapped metadata.
func (c *CachedTransaction) GetMetadata() *Metadata { return c.e.meta }

// Retain increments the reference count and returns the same handle,
// matching the teacher's `cachedX.Retain()` chaining idiom.
func (c *CachedTransaction) Retain() *CachedTransaction {
	c.refs.Inc()
	return c
}

// Release decrements the reference count.
func (c *CachedTransaction) Release() {
	c.refs.Dec()
}
