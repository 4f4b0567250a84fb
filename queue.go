// FILE: queue.go
package log

import (
	"runtime"
	"sort"
	"sync/atomic"
)

// DrainMode selects how the dispatcher consumer drains the staging
// queue, chosen once at Init and never changed afterward.
type DrainMode int

const (
	// DrainOrdered recovers strict insertion-index order per batch at
	// the cost of an atomic generation swap plus a sort.
	DrainOrdered DrainMode = iota
	// DrainUnordered bulk-dequeues without any ordering guarantee, for
	// higher throughput.
	DrainUnordered
)

// generation is one swappable instance of the staging queue: a
// buffered channel standing in for the source's lock-free MPMC queue,
// an atomic insertion-index counter local to this generation, and an
// in-flight writer count that lets an ordered drain wait out any
// producer still mid-publish before it reads the counter as final.
type generation struct {
	ch      chan Record
	counter atomic.Uint64
	writers atomic.Int32
}

func newGeneration(capacity int) *generation {
	return &generation{ch: make(chan Record, capacity)}
}

// Queue is the MPSC staging structure between producers and the
// dispatcher. Producers call Enqueue concurrently and never block; the
// single consumer calls DrainOrdered or DrainUnordered.
type Queue struct {
	active            atomic.Pointer[generation]
	genCapacity       int
	requestsRemaining atomic.Int64
	dropped           atomic.Uint64
}

// NewQueue constructs a Queue whose generations buffer up to capacity
// records each. capacity stands in for the source's logically
// unbounded queue: producers never block on it by design, but a Go
// channel needs a concrete bound, so a full generation drops the
// incoming record and counts it in Dropped rather than growing
// without limit.
func NewQueue(capacity int) *Queue {
	q := &Queue{genCapacity: capacity}
	q.active.Store(newGeneration(capacity))
	return q
}

// Enqueue assigns r an insertion index from the active generation and
// publishes it. Non-blocking: multiple producers may call concurrently.
func (q *Queue) Enqueue(r Record) {
	// Register as a writer, then confirm gen is still active; if an
	// ordered drain swapped it out in between, retry on the new one so
	// the drain's writer wait always covers this publish.
	var gen *generation
	for {
		gen = q.active.Load()
		gen.writers.Add(1)
		if q.active.Load() == gen {
			break
		}
		gen.writers.Add(-1)
	}
	r.InsertionIndex = gen.counter.Add(1) - 1

	select {
	case gen.ch <- r:
		q.requestsRemaining.Add(1)
	default:
		q.dropped.Add(1)
	}
	gen.writers.Add(-1)
}

// RequestsRemaining reports how many enqueued records have not yet
// been drained. Shutdown polls this until it reaches zero.
func (q *Queue) RequestsRemaining() int64 {
	return q.requestsRemaining.Load()
}

// Dropped reports how many records were discarded because a
// generation's buffer was full at Enqueue time.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// DrainUnordered bulk-dequeues up to dequeBatch records into out
// (reusing its backing array) without sorting, and returns the
// extended slice.
func (q *Queue) DrainUnordered(out []Record) []Record {
	gen := q.active.Load()
	out = out[:0]
	for len(out) < dequeBatch {
		select {
		case r := <-gen.ch:
			out = append(out, r)
		default:
			goto done
		}
	}
done:
	if n := len(out); n > 0 {
		q.requestsRemaining.Add(-int64(n))
	}
	return out
}

// DrainOrdered performs the atomic swap-then-sort sequence described
// in spec.md §4.2: a fresh standby generation takes over as active,
// the detached generation is waited out until no producer is still
// mid-publish against it, then its full contents are dequeued and
// sorted by InsertionIndex.
func (q *Queue) DrainOrdered(out []Record) []Record {
	out = out[:0]

	standby := newGeneration(q.genCapacity)
	old := q.active.Swap(standby)

	for old.writers.Load() != 0 {
		runtime.Gosched()
	}

	maxSize := old.counter.Load()
	if maxSize == 0 {
		return out
	}

	for i := uint64(0); i < maxSize; i++ {
		select {
		case r := <-old.ch:
			out = append(out, r)
		default:
			goto sorted
		}
	}
sorted:
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].InsertionIndex < out[j].InsertionIndex
	})

	if n := len(out); n > 0 {
		q.requestsRemaining.Add(-int64(n))
	}
	return out
}

// Drain dispatches to DrainOrdered or DrainUnordered according to mode.
func (q *Queue) Drain(mode DrainMode, out []Record) []Record {
	if mode == DrainOrdered {
		return q.DrainOrdered(out)
	}
	return q.DrainUnordered(out)
}
