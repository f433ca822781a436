// ring.go
//
// Lock-free single-producer/single-consumer hand-off queue. The producer
// owns the head cursor, the consumer owns the tail cursor, and each only
// ever reads the other's. Cursors sit on separate cache lines so the two
// cores never bounce a line between them on the fast path.
//
// One slot is always left empty so that head == tail means empty and
// head+1 == tail means full; a ring of size N holds N-1 entries.
//
// Ordering: the producer fills a slot and then stores head; the consumer
// loads head before reading the slot. The consumer resets a slot and then
// stores tail; the producer loads tail before writing into it. Go's atomics
// are sequentially consistent, a superset of the acquire/release pairing
// this needs.

package ring

import (
	"sync/atomic"

	"netlatlab/sched"
)

// Queue is a fixed-capacity SPSC ring of T. Storage is allocated once in
// New; no operation allocates afterwards.
type Queue[T any] struct {
	_    [64]byte      // producer head isolated on its own cache line
	head atomic.Uint64 // next slot the producer writes (masked index)
	_    [56]byte
	tail atomic.Uint64 // next slot the consumer reads (masked index)
	_    [56]byte
	mask uint64
	buf  []T
}

// New allocates a ring of size slots. size must be a power of two and at
// least 2, otherwise New panics so the mask arithmetic stays valid.
func New[T any](size int) *Queue[T] {
	if size < 2 || size&(size-1) != 0 {
		panic("ring: size must be >=2 and a power of two")
	}
	return &Queue[T]{
		mask: uint64(size - 1),
		buf:  make([]T, size),
	}
}

// ============================================================================
// PRODUCER OPERATIONS
// ============================================================================

// TryAlloc returns the slot the next Commit will publish, or false when the
// ring is full. The slot may hold stale data; the caller overwrites it.
// Never blocks.
func (q *Queue[T]) TryAlloc() (*T, bool) {
	h := q.head.Load()
	if (h+1)&q.mask == q.tail.Load() {
		return nil, false
	}
	return &q.buf[h], true
}

// Commit publishes the slot returned by the preceding TryAlloc. Calling it
// without an outstanding TryAlloc, or twice for one allocation, corrupts
// the ring.
func (q *Queue[T]) Commit() {
	h := q.head.Load()
	q.head.Store((h + 1) & q.mask)
}

// Push copies v into the ring. False means full; the value is not queued.
func (q *Queue[T]) Push(v T) bool {
	s, ok := q.TryAlloc()
	if !ok {
		return false
	}
	*s = v
	q.Commit()
	return true
}

// ============================================================================
// CONSUMER OPERATIONS
// ============================================================================

// Front returns the oldest unread entry, or false when the ring is empty.
// The pointer is valid until the matching Pop.
func (q *Queue[T]) Front() (*T, bool) {
	t := q.tail.Load()
	if q.head.Load() == t {
		return nil, false
	}
	return &q.buf[t], true
}

// Pop retires the entry last returned by Front. The slot is reset to the
// zero value so it does not pin anything T references. Calling Pop on an
// empty ring corrupts it.
func (q *Queue[T]) Pop() {
	t := q.tail.Load()
	var zero T
	q.buf[t] = zero
	q.tail.Store((t + 1) & q.mask)
}

// PopWait spins until an entry is available, copies it out and retires it.
func (q *Queue[T]) PopWait() T {
	for {
		if p, ok := q.Front(); ok {
			v := *p
			q.Pop()
			return v
		}
		sched.Relax()
	}
}

// ============================================================================
// INTROSPECTION
// ============================================================================

// Len is the number of committed, unretired entries. From a third goroutine
// it is only an estimate.
func (q *Queue[T]) Len() int {
	return int((q.head.Load() - q.tail.Load()) & q.mask)
}

// Cap is the number of usable slots (size - 1).
func (q *Queue[T]) Cap() int {
	return int(q.mask)
}
