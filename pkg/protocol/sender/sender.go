// Package sender implements the per-(peer, message-kind) outbound fan-out
// queue (spec.md §4.11): one bounded channel per queue, each with its own
// shutdown signal, serializing payloads and handing them to the transport
// endpoint for that peer. A full channel blocks the producer (back
// pressure); per-kind ordering is preserved, cross-kind ordering is not.
package sender

import (
	"sync"

	"github.com/iotaledger/hive.go/logger"
)

// Endpoint is the opaque, already-addressed byte channel a sender writes
// serialized wire frames to. The network transport itself is out of scope
// (spec.md §1); this is its interface.
type Endpoint interface {
	Send(frame []byte) error
}

// Queue is a single bounded outbound queue for one (peer, message-kind) pair.
type Queue struct {
	log      *logger.Logger
	endpoint Endpoint

	data chan []byte
	done chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates and starts a sender queue of the given capacity, draining into
// endpoint until Shutdown is called.
func New(label string, capacity int, endpoint Endpoint) *Queue {
	q := &Queue{
		log:      logger.NewLogger(label),
		endpoint: endpoint,
		data:     make(chan []byte, capacity),
		done:     make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for {
		select {
		case frame, ok := <-q.data:
			if !ok {
				return
			}
			if err := q.endpoint.Send(frame); err != nil {
				q.log.Warnf("send failed: %v", err)
			}
		case <-q.done:
			// Drain whatever is already buffered before exiting so
			// in-flight enqueues from the instant before shutdown are not
			// silently lost mid-frame.
			for {
				select {
				case frame, ok := <-q.data:
					if !ok {
						return
					}
					if err := q.endpoint.Send(frame); err != nil {
						q.log.Warnf("send failed during drain: %v", err)
					}
				default:
					return
				}
			}
		}
	}
}

// Enqueue hands frame to the queue. It blocks if the queue is full
// (back-pressure, spec.md §4.11) and reports false if the queue has already
// been shut down.
func (q *Queue) Enqueue(frame []byte) bool {
	select {
	case <-q.done:
		return false
	default:
	}

	select {
	case q.data <- frame:
		return true
	case <-q.done:
		return false
	}
}

// Shutdown signals the queue to drain and stop. Safe to call more than once.
func (q *Queue) Shutdown() {
	q.closeOnce.Do(func() {
		close(q.done)
	})
}

// Wait blocks until the queue's goroutine has exited.
func (q *Queue) Wait() {
	q.wg.Wait()
}
