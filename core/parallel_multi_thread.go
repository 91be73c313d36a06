package core

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ParallelJob is a homogeneous workload split over index ranges by
// MultiThreadedParallelCollection.AddJob. Update is called once per index,
// concurrently from several runner goroutines.
type ParallelJob interface {
	Update(i int)
}

// ParallelJobFunc adapts a function to ParallelJob.
type ParallelJobFunc func(i int)

func (f ParallelJobFunc) Update(i int) { f(i) }

// jobRange runs job.Update over [start, start+count) in a single step.
type jobRange struct {
	job   ParallelJob
	start int
	count int
}

func (r *jobRange) Advance() bool {
	for i := r.start; i < r.start+r.count; i++ {
		r.job.Update(i)
	}
	return false
}

func (r *jobRange) Current() Signal { return Signal{} }

// Reset is a no-op: every Advance runs the full range.
func (r *jobRange) Reset() {}

// ParallelConfig configures a MultiThreadedParallelCollection.
type ParallelConfig struct {
	Name string
	// Workers is the number of runners; defaults to runtime.NumCPU().
	Workers int
	// Runner is the template for every worker runner. Its Name is replaced
	// by "<Name> #<i>".
	Runner RunnerConfig
}

// MultiThreadedParallelCollection runs tasks in parallel across several
// MultiThreadRunners. Tasks are dealt round-robin to one ParallelCollection
// per runner; the collection completes when every started worker has
// completed or failed.
//
// Like a ParallelCollection driven by a single runner it is a Task, so it
// can be yielded from a routine running anywhere, including on a runner
// that is not one of its workers.
type MultiThreadedParallelCollection struct {
	name        string
	runners     []*MultiThreadRunner
	collections []*ParallelCollection
	routines    []*Routine

	added      int
	concurrent int

	counter  atomic.Int32
	running  atomic.Bool
	disposed atomic.Bool
	failure  atomic.Pointer[RoutineFailure]

	onComplete  func()
	onFailure   func(err error) bool
	disposeOnce sync.Once
}

var _ Collection = (*MultiThreadedParallelCollection)(nil)

// NewMultiThreadedParallelCollection creates the collection and starts one
// runner goroutine per worker.
func NewMultiThreadedParallelCollection(cfg ParallelConfig) *MultiThreadedParallelCollection {
	if cfg.Name == "" {
		cfg.Name = "MultiThreadedParallelCollection"
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	c := &MultiThreadedParallelCollection{
		name:        cfg.Name,
		runners:     make([]*MultiThreadRunner, workers),
		collections: make([]*ParallelCollection, workers),
		routines:    make([]*Routine, workers),
	}

	for i := range workers {
		rc := cfg.Runner
		rc.Name = fmt.Sprintf("%s #%d", cfg.Name, i)
		c.runners[i] = NewMultiThreadRunner(rc)

		pc := NewParallelCollection()
		pc.SetName(fmt.Sprintf("ParallelCollection #%d", i))
		pc.OnComplete(c.workerDone)
		pc.OnFailure(func(err error) bool {
			c.workerFailed(&RoutineFailure{Routine: rc.Name, Err: err})
			return false
		})
		c.collections[i] = pc

		c.routines[i] = NewRoutine(c.runners[i]).
			SetTask(pc).
			SetName(rc.Name).
			SetLogger(c.runners[i].cfg.Logger)
	}
	return c
}

func (c *MultiThreadedParallelCollection) workerDone() { c.counter.Add(-1) }

// workerFailed records the failure before counting the worker as done, so
// Err is set by the time the collection completes.
func (c *MultiThreadedParallelCollection) workerFailed(f *RoutineFailure) {
	c.failure.CompareAndSwap(nil, f)
	if c.onFailure != nil {
		c.onFailure(f)
	}
	c.workerDone()
}

// Add deals tasks round-robin to the worker collections. It panics while
// the collection is running or once it has been disposed.
func (c *MultiThreadedParallelCollection) Add(tasks ...Task) {
	c.checkIdle("add tasks to")
	for _, t := range tasks {
		c.collections[c.added%len(c.collections)].Add(t)
		c.added++
	}
	c.concurrent = min(len(c.collections), c.added)
}

// AddJob splits [0, iterations) into one range per worker plus a range for
// the remainder, each calling job.Update for its indexes.
func (c *MultiThreadedParallelCollection) AddJob(job ParallelJob, iterations int) {
	c.checkIdle("add a job to")
	n := len(c.runners)
	perWorker := iterations / n
	remainder := iterations % n

	for i := range n {
		c.Add(&jobRange{job: job, start: perWorker * i, count: perWorker})
	}
	if remainder > 0 {
		c.Add(&jobRange{job: job, start: perWorker * n, count: remainder})
	}
}

func (c *MultiThreadedParallelCollection) checkIdle(op string) {
	if c.disposed.Load() {
		usage("cannot %s %s once disposed", op, c.name)
	}
	if c.running.Load() {
		usage("cannot %s %s while it is running", op, c.name)
	}
}

// Advance starts the workers on the first call of a run and reports true
// until all of them are done. It does not block: the caller polls it like
// any other task.
func (c *MultiThreadedParallelCollection) Advance() bool {
	if c.disposed.Load() {
		usage("cannot run %s once disposed", c.name)
	}

	if !c.running.Load() {
		c.failure.Store(nil)
		c.counter.Store(int32(c.concurrent))
		c.running.Store(true)
		for i := range c.concurrent {
			c.routines[i].Start(nil, nil)
		}
	}

	if c.counter.Load() > 0 {
		return true
	}

	if c.onComplete != nil {
		c.onComplete()
	}
	c.running.Store(false)
	return false
}

func (c *MultiThreadedParallelCollection) Current() Signal { return Signal{} }

// Reset rewinds every worker collection.
func (c *MultiThreadedParallelCollection) Reset() {
	for _, pc := range c.collections {
		pc.Reset()
	}
}

// Clear removes every task. It panics while running.
func (c *MultiThreadedParallelCollection) Clear() {
	c.checkIdle("clear")
	for _, pc := range c.collections {
		pc.Clear()
	}
	c.added = 0
	c.concurrent = 0
}

// Len returns the number of tasks added.
func (c *MultiThreadedParallelCollection) Len() int { return c.added }

func (c *MultiThreadedParallelCollection) IsRunning() bool { return c.running.Load() }

// OnComplete sets the callback invoked when every worker has completed.
func (c *MultiThreadedParallelCollection) OnComplete(fn func()) { c.onComplete = fn }

// OnFailure sets the callback invoked, from a worker goroutine, with the
// failure of a worker. Its result is ignored: a failed worker counts as
// done.
func (c *MultiThreadedParallelCollection) OnFailure(fn func(err error) bool) { c.onFailure = fn }

// Err returns the first worker failure of the last run, or nil.
func (c *MultiThreadedParallelCollection) Err() error {
	if f := c.failure.Load(); f != nil {
		return f
	}
	return nil
}

// Stop stops every worker and waits until each of them has acknowledged.
// The next Advance starts a new run.
func (c *MultiThreadedParallelCollection) Stop() {
	for i, rt := range c.routines {
		rt.Stop()
		c.runners[i].StopAllRoutines()
	}

	var w spinWait
	for _, rt := range c.routines {
		for rt.IsRunning() {
			w.wait()
		}
	}
	c.running.Store(false)
}

// Dispose kills every worker runner and waits for their goroutines to
// exit. It is idempotent; the collection cannot be used afterwards.
func (c *MultiThreadedParallelCollection) Dispose() {
	c.disposeOnce.Do(func() {
		c.disposed.Store(true)

		// Kill returns once the runner goroutine has exited.
		for _, r := range c.runners {
			r.Kill(nil)
		}

		c.runners = nil
		c.collections = nil
		c.routines = nil
		c.onComplete = nil
		c.onFailure = nil
		c.added = 0
		c.concurrent = 0
		c.running.Store(false)
	})
}

// Runners returns the worker runners, for stats polling.
func (c *MultiThreadedParallelCollection) Runners() []*MultiThreadRunner {
	return c.runners
}

// Stats returns a snapshot of the collection.
func (c *MultiThreadedParallelCollection) Stats() ParallelStats {
	return ParallelStats{
		Name:     c.name,
		Runners:  len(c.runners),
		Tasks:    c.added,
		Pending:  c.counter.Load(),
		Running:  c.running.Load(),
		Disposed: c.disposed.Load(),
	}
}

func (c *MultiThreadedParallelCollection) String() string { return c.name }
