package core

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPool_FIFOReuse verifies released values come back in release order
func TestPool_FIFOReuse(t *testing.T) {
	created := 0
	p := NewPool(func() int {
		created++
		return -created
	})

	p.Release(1)
	p.Release(2)
	assert.Equal(t, 2, p.Len())

	assert.Equal(t, 1, p.Acquire())
	assert.Equal(t, 2, p.Acquire())
	assert.Equal(t, -1, p.Acquire(), "an empty pool builds a new value")
	assert.Equal(t, 0, p.Len())
}

// TestPool_ZeroValue verifies a zero Pool is usable and returns zero values when empty
func TestPool_ZeroValue(t *testing.T) {
	var p Pool[*int]

	assert.Nil(t, p.Acquire())

	v := 7
	p.Release(&v)
	assert.Same(t, &v, p.Acquire())
}

// TestPool_Concurrent verifies no value is lost or handed out twice under contention
// Given: A pool shared by many goroutines
// When: Each goroutine repeatedly acquires and releases values
// Then: Every value ends up back in the pool exactly once
func TestPool_Concurrent(t *testing.T) {
	var created atomic.Int64
	p := NewPool(func() *int64 {
		v := created.Add(1)
		return &v
	})

	const goroutines = 16
	const rounds = 1000

	var inUse sync.Map
	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				v := p.Acquire()
				_, loaded := inUse.LoadOrStore(v, struct{}{})
				assert.False(t, loaded, "value handed out twice")
				inUse.Delete(v)
				p.Release(v)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int(created.Load()), p.Len())
	assert.LessOrEqual(t, created.Load(), int64(goroutines))

	seen := map[*int64]bool{}
	for range p.Len() {
		v := p.Acquire()
		require.False(t, seen[v])
		seen[v] = true
	}
	assert.Equal(t, 0, p.Len())
}

// TestRoutinePool_NoLeak verifies pooled routines come back clean
// Given: N routines acquired from a pool
// When: Each runs a task to completion
// Then: The pool holds exactly N routines and none of them keeps a task, callback or continuation
func TestRoutinePool_NoLeak(t *testing.T) {
	pool := NewRoutinePool()
	runner := NewSyncRunner("sync")

	const n = 5
	routines := make([]*Routine, n)
	for i := range routines {
		routines[i] = pool.Acquire(runner)
	}
	assert.Equal(t, 0, pool.Len())

	for i, rt := range routines {
		var steps atomic.Int64
		cont := rt.SetName("pooled").SetTask(finiteTask(&steps, i+1)).
			Start(func(*RoutineFailure) {}, func() {})
		require.True(t, cont.Completed())
	}

	assert.Equal(t, n, pool.Len())
	for _, rt := range routines {
		assert.Nil(t, rt.task)
		assert.Nil(t, rt.provider)
		assert.Nil(t, rt.runner)
		assert.Nil(t, rt.onFail)
		assert.Nil(t, rt.onStop)
		assert.Nil(t, rt.continuation)
		assert.Nil(t, rt.coroutine)
		assert.Equal(t, 0, rt.wrapper.Len())
		assert.Equal(t, routineFlag(0), rt.state.load())
	}

	again := pool.Acquire(runner)
	assert.Contains(t, routines, again)
	assert.Equal(t, n-1, pool.Len())
}

// TestRoutinePool_RestartRefused verifies a running pooled routine cannot be restarted
func TestRoutinePool_RestartRefused(t *testing.T) {
	pool := NewRoutinePool()
	m := newManualRunner("m")

	rt := pool.Acquire(m).SetTask(counterTask(new(atomic.Int64)))
	rt.Start(nil, nil)
	m.tick()

	assert.Panics(t, func() { rt.Start(nil, nil) })

	rt.Stop()
	m.tick()
	assert.Equal(t, 1, pool.Len())
}
