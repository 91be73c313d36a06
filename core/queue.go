package core

import "sync"

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// routineQueue is the ingress queue of a runner: any goroutine pushes,
// only the runner goroutine drains.
type routineQueue struct {
	mu       sync.Mutex
	routines []*Routine
	closed   bool
	// flushing holds queued routines back from drainInto.
	flushing bool
}

func newRoutineQueue() *routineQueue {
	return &routineQueue{routines: make([]*Routine, 0, defaultQueueCap)}
}

// push appends r. It reports false once the queue is closed.
func (q *routineQueue) push(r *Routine) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.routines = append(q.routines, r)
	return true
}

// drainInto moves every queued routine to the end of dst in FIFO order.
// It moves nothing while a flush is in progress.
func (q *routineQueue) drainInto(dst []*Routine) []*Routine {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.flushing {
		return dst
	}
	return q.takeLocked(dst)
}

// beginFlush returns the queued routines and holds back every routine
// pushed afterwards until endFlush.
func (q *routineQueue) beginFlush(dst []*Routine) []*Routine {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.flushing = true
	return q.takeLocked(dst)
}

func (q *routineQueue) endFlush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.flushing = false
}

func (q *routineQueue) takeLocked(dst []*Routine) []*Routine {
	if len(q.routines) == 0 {
		return dst
	}
	dst = append(dst, q.routines...)
	clear(q.routines)
	q.routines = q.routines[:0]
	q.maybeCompactLocked()
	return dst
}

// maybeCompactLocked drops an oversized backing array left behind by a
// burst of starts.
func (q *routineQueue) maybeCompactLocked() {
	n := len(q.routines)
	c := cap(q.routines)

	if c < compactMinCap || n*compactShrinkFactor >= c {
		return
	}
	newCap := max(max(c/2, defaultQueueCap), n)
	next := make([]*Routine, n, newCap)
	copy(next, q.routines)
	q.routines = next
}

func (q *routineQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.routines)
}

// close drops every queued routine and refuses later pushes. It returns
// the number of routines dropped.
func (q *routineQueue) close() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.routines)
	q.routines = nil
	q.closed = true
	return n
}
