// Package queue implements the bounded, byte-accounted SDU queue the Tx
// engine reads from and the upper layer (PDCP) writes into.
//
// Push and pop serialize under a single mutex, and bytesPending is updated
// inside that same critical section, so callers always observe a
// consistent view of count and byte total together — splitting the two
// across separate locks would invite exactly the kind of race this queue
// exists to avoid (§9 design note).
package queue

import (
	"sync"

	"github.com/marmos91/rlcam/pkg/rlc/rlcerr"
)

// DefaultCapacity is the default PDU-count capacity (§6).
const DefaultCapacity = 128

// SDU is one upper-layer service data unit buffered in the queue.
type SDU struct {
	Bytes []byte
}

// Queue is a FIFO of SDUs bounded by PDU count, with a running byte total.
// Safe for concurrent use; push/pop may be called from different
// goroutines simultaneously (the upper-layer thread and the MAC thread,
// per §5).
type Queue struct {
	mu       sync.Mutex
	notEmpty sync.Cond
	notFull  sync.Cond

	items        []SDU
	capacity     int
	bytesPending uint64
	closed       bool
}

// New creates a queue bounded to capacity SDUs. capacity <= 0 uses
// DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{capacity: capacity}
	q.notEmpty = *sync.NewCond(&q.mu)
	q.notFull = *sync.NewCond(&q.mu)
	return q
}

// Push enqueues buf, blocking the caller while the queue is full. A Reset
// frees capacity and wakes a blocked caller, which then enqueues; a Close
// wakes it and it returns an error without enqueuing.
func (q *Queue) Push(buf []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) >= q.capacity && !q.closed {
		q.notFull.Wait()
	}
	if q.closed {
		return rlcerr.Newf(rlcerr.QueueFull, "queue closed while blocked on push")
	}

	q.items = append(q.items, SDU{Bytes: buf})
	q.bytesPending += uint64(len(buf))
	q.notEmpty.Signal()
	return nil
}

// TryPush enqueues buf without blocking, returning ErrQueueFull if the
// queue is at capacity.
func (q *Queue) TryPush(buf []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return rlcerr.Newf(rlcerr.QueueFull, "queue is closed")
	}
	if len(q.items) >= q.capacity {
		return rlcerr.ErrQueueFull
	}
	q.items = append(q.items, SDU{Bytes: buf})
	q.bytesPending += uint64(len(buf))
	q.notEmpty.Signal()
	return nil
}

// Pop dequeues the head SDU, blocking until one is available or the
// queue is closed. SDUs still queued at Close are returned first; ok is
// false only once the queue is closed and empty.
func (q *Queue) Pop() (SDU, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return SDU{}, false
	}
	return q.popLocked(), true
}

// TryPop dequeues the head SDU without blocking.
func (q *Queue) TryPop() (SDU, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return SDU{}, false
	}
	return q.popLocked(), true
}

func (q *Queue) popLocked() SDU {
	s := q.items[0]
	q.items = q.items[1:]
	q.bytesPending -= uint64(len(s.Bytes))
	q.notFull.Signal()
	return s
}

// FrontBytes returns the size of the head element without dequeuing it,
// used by the Tx engine to check whether a MAC grant can fit the next
// SDU without popping it speculatively.
func (q *Queue) FrontBytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return 0
	}
	return len(q.items[0].Bytes)
}

// BytesPending returns the current sum of enqueued SDU lengths.
func (q *Queue) BytesPending() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytesPending
}

// Len returns the current number of enqueued SDUs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Reset drops all queued SDUs and zeroes bytesPending, for reestablish /
// corruption recovery. It does not close the queue.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.bytesPending = 0
	q.notFull.Broadcast()
}

// Close wakes every blocked Push/Pop caller so they return without
// completing, then marks the queue permanently closed. Used by stop()
// per §5's cancellation contract.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}
