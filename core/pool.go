package core

import "sync/atomic"

// Pool is a lock-free object pool backed by a Michael–Scott queue. Any
// number of goroutines may Acquire and Release concurrently.
//
// The pool never resets values; callers hand back objects ready for reuse.
type Pool[T any] struct {
	head atomic.Pointer[poolNode[T]]
	tail atomic.Pointer[poolNode[T]]
	size atomic.Int64

	// New builds a value when the pool is empty.
	New func() T
}

type poolNode[T any] struct {
	value T
	next  atomic.Pointer[poolNode[T]]
}

// NewPool creates a pool that builds missing values with newFn.
func NewPool[T any](newFn func() T) *Pool[T] {
	p := &Pool[T]{New: newFn}
	p.init()
	return p
}

func (p *Pool[T]) init() {
	if p.head.Load() != nil {
		return
	}
	sentinel := &poolNode[T]{}
	if p.head.CompareAndSwap(nil, sentinel) {
		p.tail.Store(sentinel)
		return
	}
	// Lost the race: wait for the winner to publish the tail.
	for p.tail.Load() == nil {
	}
}

// Acquire returns a pooled value or a new one.
func (p *Pool[T]) Acquire() T {
	if v, ok := p.dequeue(); ok {
		return v
	}
	if p.New == nil {
		var zero T
		return zero
	}
	return p.New()
}

// Release returns v to the pool.
func (p *Pool[T]) Release(v T) {
	p.init()
	n := &poolNode[T]{value: v}
	for {
		tail := p.tail.Load()
		next := tail.next.Load()
		if tail != p.tail.Load() {
			continue
		}
		if next != nil {
			// Tail is lagging behind, help it forward.
			p.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			p.tail.CompareAndSwap(tail, n)
			p.size.Add(1)
			return
		}
	}
}

func (p *Pool[T]) dequeue() (T, bool) {
	p.init()
	var zero T
	for {
		head := p.head.Load()
		tail := p.tail.Load()
		next := head.next.Load()
		if head != p.head.Load() {
			continue
		}
		if next == nil {
			return zero, false
		}
		if head == tail {
			p.tail.CompareAndSwap(tail, next)
			continue
		}
		if p.head.CompareAndSwap(head, next) {
			v := next.value
			// next is the new sentinel; drop its reference to v.
			next.value = zero
			p.size.Add(-1)
			return v, true
		}
	}
}

// Len returns the number of values available in the pool. It is exact
// whenever no Acquire or Release is in flight.
func (p *Pool[T]) Len() int { return max(int(p.size.Load()), 0) }

// =============================================================================
// RoutinePool
// =============================================================================

// RoutinePool hands out fire-and-forget routines. A pooled routine returns
// to its pool by itself when its run completes, so callers must not keep
// it once started and must not restart it.
type RoutinePool struct {
	pool *Pool[*Routine]
}

// NewRoutinePool creates an empty routine pool.
func NewRoutinePool() *RoutinePool {
	rp := &RoutinePool{}
	rp.pool = NewPool(func() *Routine { return newRoutine(rp) })
	return rp
}

// Acquire returns an idle routine bound to runner.
func (p *RoutinePool) Acquire(runner Runner) *Routine {
	r := p.pool.Acquire()
	r.SetScheduler(runner)
	return r
}

// Len returns the number of idle routines in the pool.
func (p *RoutinePool) Len() int { return p.pool.Len() }

func (p *RoutinePool) release(r *Routine) { p.pool.Release(r) }
