// Package rqueue implements the wait-priority-queue shared by the
// transaction and milestone requesters: a data structure that is both a
// set (keyed by target identifier) and a min-priority queue (ordered by
// milestone index, earlier insertion breaking ties), with insert being
// idempotent so a re-request never double-enqueues or resets the entry's
// first-request timestamp (spec.md §3, §8 property 2).
//
// An entry's life cycle: Insert adds it to both the set and the heap.
// Take pops it off the heap (but keeps it in the set) and hands it to the
// caller for dispatch to a peer — this is what lets the requester loop
// "take the minimum entry" without different goroutines racing the same
// entry to the same peer twice. It stays merely "in the set" until either
// Received removes it (the item arrived) or the background retry timer
// decides it has waited long enough and re-pushes it onto the heap so a
// later Take call can re-dispatch it to a(nother) peer.
package rqueue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/iotaledger/hive.go/syncutils"

	"github.com/iotaledger/iota.go/trinary"

	"github.com/trinarytangle/tanglenode/pkg/model/milestone"
)

// Request is a single outstanding request for a transaction hash, scoped to
// the milestone index that caused it to be requested.
type Request struct {
	Hash           trinary.Hash
	MilestoneIndex milestone.Index

	firstRequestTime time.Time
	lastRequestTime  time.Time
	index            int // heap index; -1 while dispatched and not on the heap
}

// FirstRequestTime returns when this entry was first enqueued. Re-inserts
// of an already-tracked hash never change it (idempotence).
func (r *Request) FirstRequestTime() time.Time { return r.firstRequestTime }

type requestHeap []*Request

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].MilestoneIndex != h[j].MilestoneIndex {
		return h[i].MilestoneIndex < h[j].MilestoneIndex
	}
	return h[i].firstRequestTime.Before(h[j].firstRequestTime)
}

func (h requestHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *requestHeap) Push(x interface{}) {
	r := x.(*Request)
	r.index = len(*h)
	*h = append(*h, r)
}

func (h *requestHeap) Pop() interface{} {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.index = -1
	*h = old[:n-1]
	return r
}

// Queue is the set+min-heap of outstanding transaction requests. It is safe
// for concurrent use; Take blocks until an entry is available or the queue
// is shut down.
type Queue struct {
	mu     syncutils.Mutex
	cond   *sync.Cond
	byHash map[trinary.Hash]*Request
	heap   requestHeap
	closed bool
}

// New creates an empty queue.
func New() *Queue {
	q := &Queue{byHash: make(map[trinary.Hash]*Request)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Insert adds hash as outstanding at the given milestone-index priority. If
// hash is already tracked — whether still queued or already dispatched and
// awaiting arrival — the call is a no-op: the existing entry's priority and
// first-request timestamp are left untouched (spec.md §8 property 2). It
// reports whether a new entry was created.
func (q *Queue) Insert(hash trinary.Hash, msIndex milestone.Index) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if _, exists := q.byHash[hash]; exists {
		return false
	}

	now := time.Now()
	r := &Request{
		Hash:             hash,
		MilestoneIndex:   msIndex,
		firstRequestTime: now,
		lastRequestTime:  now,
	}
	q.byHash[hash] = r
	heap.Push(&q.heap, r)
	q.cond.Signal()
	return true
}

// Contains reports whether hash is currently tracked as outstanding,
// whether or not it has already been dispatched to a peer.
func (q *Queue) Contains(hash trinary.Hash) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byHash[hash]
	return ok
}

// Take blocks until the lowest-priority queued request is available, pops
// it off the heap and returns it. The entry remains tracked in the set
// (Contains still reports true) until Received or a later re-queue. Returns
// false if the queue was shut down while waiting.
func (q *Queue) Take() (*Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.heap) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.heap) == 0 {
		return nil, false
	}

	r := heap.Pop(&q.heap).(*Request)
	r.lastRequestTime = time.Now()
	return r, true
}

// Received removes hash from the queue because the requested item arrived.
// It reports the Request that was outstanding, or nil if hash was not
// tracked (e.g. it arrived unsolicited).
func (q *Queue) Received(hash trinary.Hash) *Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	r, ok := q.byHash[hash]
	if !ok {
		return nil
	}
	delete(q.byHash, hash)
	if r.index >= 0 && r.index < len(q.heap) {
		heap.Remove(&q.heap, r.index)
	}
	return r
}

// Len returns the number of outstanding requests, queued or dispatched.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byHash)
}

// RequeueStale re-pushes onto the heap every dispatched (off-heap) entry
// whose last request time precedes the cutoff, so the requester loop will
// re-drive it to a(nother) peer. This is the background retry timer of
// spec.md §4.3 / §5 "request retry" and §8 scenario S4.
func (q *Queue) RequeueStale(cutoff time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, r := range q.byHash {
		if r.index != -1 {
			continue // already queued, will be Take()n in due course
		}
		if r.lastRequestTime.Before(cutoff) {
			heap.Push(&q.heap, r)
			n++
		}
	}
	if n > 0 {
		q.cond.Broadcast()
	}
	return n
}

// Shutdown drains the queue and wakes any blocked Take callers. In-flight
// requests simply time out; no cancellation signal is sent to peers.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.byHash = make(map[trinary.Hash]*Request)
	q.heap = nil
	q.cond.Broadcast()
}
