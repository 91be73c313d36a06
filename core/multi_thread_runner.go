package core

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// quickSpinIterations bounds the busy wait of WakeQuick before it parks.
	quickSpinIterations = 5000
	// quickYieldAfter is the spin count after which WakeQuick starts yielding.
	quickYieldAfter = 1000
	// pausedPollInterval bounds how long a paused runner sleeps before it
	// looks at its routines again.
	pausedPollInterval = time.Millisecond
)

// MultiThreadRunner advances its routines on one dedicated goroutine.
// Every routine started on it runs on that goroutine only, so tasks never
// need to synchronize with each other.
//
// The loop drains the ingress queue into its active list, advances every
// active routine once, then paces or waits for work according to its
// RunnerConfig. Kill terminates the goroutine.
type MultiThreadRunner struct {
	cfg RunnerConfig

	queue    *routineQueue
	active   []activeRoutine // runner goroutine only
	incoming []*Routine      // runner goroutine only
	pace     *time.Timer     // runner goroutine only

	paused   atomic.Bool
	stopping atomic.Bool
	killed   atomic.Bool

	// wake is the manual-reset event of WakeRelaxed; quick is the flag
	// WakeQuick spins on.
	wake  chan struct{}
	quick atomic.Bool

	// scheduled counts routines queued or active; it is raised before the
	// push so it never lags behind the queue.
	scheduled   atomic.Int32
	activeCount atomic.Int32
	started     atomic.Int64
	completed   atomic.Int64
	panicked    atomic.Int64
	rejected    atomic.Int64

	history *runHistory

	// Lifecycle control
	ctx      context.Context
	cancel   context.CancelFunc
	stopped  chan struct{}
	killOnce sync.Once
	onKilled func()
}

type activeRoutine struct {
	routine   *Routine
	name      string
	startedAt time.Time
	steps     int
}

var _ Runner = (*MultiThreadRunner)(nil)

// NewMultiThreadRunner creates a runner and starts its goroutine.
func NewMultiThreadRunner(cfg RunnerConfig) *MultiThreadRunner {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	r := &MultiThreadRunner{
		cfg:     cfg,
		queue:   newRoutineQueue(),
		wake:    make(chan struct{}, 1),
		history: newRunHistory(cfg.HistoryCapacity),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}

	go r.runLoop()
	return r
}

// Name returns the runner name.
func (r *MultiThreadRunner) Name() string { return r.cfg.Name }

// StartRoutine queues a started routine. It runs on the runner goroutine
// from the next loop iteration. A killed runner rejects the routine: it is
// reported to the RejectedRoutineHandler and completed as stopped on the
// calling goroutine, so waiters on its continuation are released.
func (r *MultiThreadRunner) StartRoutine(rt *Routine) {
	if r.killed.Load() {
		r.reject(rt, "killed")
		return
	}
	r.scheduled.Add(1)
	if !r.queue.push(rt) {
		// Killed after the check above; the queue is closed for good.
		r.scheduled.Add(-1)
		r.reject(rt, "killed")
		return
	}
	r.started.Add(1)
	r.signal()
}

func (r *MultiThreadRunner) reject(rt *Routine, reason string) {
	r.rejected.Add(1)
	r.cfg.Metrics.RecordRoutineRejected(r.cfg.Name, reason)
	r.cfg.RejectedHandler.HandleRejectedRoutine(r.cfg.Name, rt.Name(), reason)
	for rt.Advance() {
	}
}

// StopAllRoutines stops every routine scheduled on the runner. Active
// routines complete as stopped on their next Advance on the runner
// goroutine; routines still queued are completed as stopped right away on
// the calling goroutine. Routines started afterwards stay queued until the
// active ones are flushed. It does not wait; poll RunningTaskCount or use
// WaitIdle for that.
func (r *MultiThreadRunner) StopAllRoutines() {
	r.stopping.Store(true)
	r.flushQueued()
	r.signal()
}

// flushQueued completes the queued routines as stopped. A routine with a
// parked restart goes back to the queue and starts after the flush.
func (r *MultiThreadRunner) flushQueued() {
	queued := r.queue.beginFlush(nil)
	if len(queued) == 0 {
		return
	}
	now := time.Now()
	for _, rt := range queued {
		rt.Stop()
		a := activeRoutine{routine: rt, name: rt.Name(), startedAt: now}
		if r.advanceOne(&a) && r.queue.push(rt) {
			continue
		}
		r.scheduled.Add(-1)
	}
}

func (r *MultiThreadRunner) Paused() bool { return r.paused.Load() }

func (r *MultiThreadRunner) SetPaused(paused bool) {
	r.paused.Store(paused)
	if !paused {
		r.signal()
	}
}

func (r *MultiThreadRunner) IsStopping() bool {
	return r.stopping.Load() || r.killed.Load()
}

// IsKilled reports whether Kill or Dispose has been called.
func (r *MultiThreadRunner) IsKilled() bool { return r.killed.Load() }

func (r *MultiThreadRunner) RunningTaskCount() int {
	return int(r.scheduled.Load())
}

// Kill terminates the runner goroutine and waits for it to exit. onKilled,
// if not nil, runs on the runner goroutine right before it exits. Routines
// still scheduled are abandoned and later starts are rejected. Only the first call has an effect; Kill
// must not be called from a routine running on r.
func (r *MultiThreadRunner) Kill(onKilled func()) {
	r.killOnce.Do(func() {
		r.onKilled = onKilled
		r.killed.Store(true)
		r.cancel()
		r.signal()
	})
	<-r.stopped
}

// Dispose kills the runner. It is idempotent.
func (r *MultiThreadRunner) Dispose() { r.Kill(nil) }

// WaitIdle blocks until no routine is scheduled on the runner. It returns
// ErrRunnerKilled if the runner is killed first.
func (r *MultiThreadRunner) WaitIdle(ctx context.Context) error {
	var w spinWait
	for r.RunningTaskCount() > 0 {
		if r.killed.Load() {
			return ErrRunnerKilled
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		w.wait()
	}
	return nil
}

// Stats returns a snapshot of the runner.
func (r *MultiThreadRunner) Stats() RunnerStats {
	stats := RunnerStats{
		Name:         r.cfg.Name,
		WakeStrategy: r.cfg.WakeStrategy.String(),
		Queued:       r.queue.len(),
		Active:       int(r.activeCount.Load()),
		Started:      r.started.Load(),
		Completed:    r.completed.Load(),
		Panicked:     r.panicked.Load(),
		Rejected:     r.rejected.Load(),
		Paused:       r.paused.Load(),
		Stopping:     r.stopping.Load(),
		Killed:       r.killed.Load(),
	}
	if last, ok := r.history.last(); ok {
		stats.LastRoutine = last.Name
		stats.LastFinished = last.FinishedAt
	}
	return stats
}

// RecentRoutines returns up to limit records of routines that left the
// runner, newest first.
func (r *MultiThreadRunner) RecentRoutines(limit int) []RoutineRecord {
	return r.history.recent(limit)
}

func (r *MultiThreadRunner) String() string {
	return fmt.Sprintf("MultiThreadRunner(%s)", r.cfg.Name)
}

// signal sets the wake event of both strategies.
func (r *MultiThreadRunner) signal() {
	r.quick.Store(true)
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// =============================================================================
// Run loop
// =============================================================================

// runLoop is the core of the runner, it occupies the dedicated goroutine.
func (r *MultiThreadRunner) runLoop() {
	defer close(r.stopped)

	if r.cfg.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	r.cfg.Logger.Debug("runner started", F("runner", r.cfg.Name), F("wake", r.cfg.WakeStrategy))

	depth := -1
	for !r.killed.Load() {
		// Nothing new starts while a stop is being flushed.
		if !r.stopping.Load() {
			r.ingest()
		}

		hadWork := len(r.active) > 0
		r.advanceAll()

		if n := len(r.active) + r.queue.len(); n != depth {
			depth = n
			r.cfg.Metrics.RecordQueueDepth(r.cfg.Name, n)
		}

		switch {
		case hadWork && r.paused.Load():
			r.waitWhilePaused()
		case hadWork:
			if r.cfg.Interval > 0 && !r.stopping.Load() {
				r.sleep(r.cfg.Interval)
			}
			if r.cfg.TightTasks {
				runtime.Gosched()
			}
		}

		if len(r.active) == 0 {
			r.stopping.Store(false)
			r.queue.endFlush()
			if r.queue.len() == 0 {
				r.waitForWork()
			}
		}
	}

	r.exit()
}

// ingest moves queued routines to the active list.
func (r *MultiThreadRunner) ingest() {
	r.incoming = r.queue.drainInto(r.incoming[:0])
	if len(r.incoming) == 0 {
		return
	}
	now := time.Now()
	for _, rt := range r.incoming {
		r.active = append(r.active, activeRoutine{routine: rt, name: rt.Name(), startedAt: now})
	}
	clear(r.incoming)
	r.activeCount.Store(int32(len(r.active)))
}

// advanceAll advances every active routine once, removing the finished
// ones by swapping the last active routine into their place.
func (r *MultiThreadRunner) advanceAll() {
	for i := 0; i < len(r.active); {
		if r.advanceOne(&r.active[i]) {
			i++
			continue
		}
		last := len(r.active) - 1
		r.active[i] = r.active[last]
		r.active[last] = activeRoutine{}
		r.active = r.active[:last]
		r.activeCount.Store(int32(len(r.active)))
		r.scheduled.Add(-1)
	}
}

// advanceOne advances a routine, isolating the runner from any panic that
// escapes it. It reports whether the routine stays active.
func (r *MultiThreadRunner) advanceOne(a *activeRoutine) (more bool) {
	start := time.Now()
	outcome := ""

	defer func() {
		if rec := recover(); rec != nil {
			more = false
			outcome = OutcomePanicked
			r.panicked.Add(1)
			stack := debug.Stack()
			r.cfg.Metrics.RecordRoutinePanic(r.cfg.Name, rec)
			r.cfg.PanicHandler.HandlePanic(r.ctx, r.cfg.Name, a.name, rec, stack)
			r.cfg.Logger.Error("routine panicked, dropping it",
				F("runner", r.cfg.Name), F("routine", a.name), F("panic", rec))
		}
		if !more {
			r.finished(a, outcome)
		}
	}()

	a.steps++
	more, outcome = a.routine.advance()
	r.cfg.Metrics.RecordRoutineStep(r.cfg.Name, time.Since(start))
	return more
}

func (r *MultiThreadRunner) finished(a *activeRoutine, outcome string) {
	now := time.Now()
	r.completed.Add(1)
	r.cfg.Metrics.RecordRoutineCompleted(r.cfg.Name, outcome)
	r.history.add(RoutineRecord{
		RoutineID:  a.routine.ID(),
		Name:       a.name,
		RunnerName: r.cfg.Name,
		Outcome:    outcome,
		StartedAt:  a.startedAt,
		FinishedAt: now,
		Duration:   now.Sub(a.startedAt),
		Steps:      a.steps,
	})
}

// waitForWork parks the goroutine until a routine is queued or the runner
// is killed.
func (r *MultiThreadRunner) waitForWork() {
	if r.cfg.WakeStrategy == WakeQuick {
		for i := 0; i < quickSpinIterations; i++ {
			if r.quick.CompareAndSwap(true, false) || r.killed.Load() {
				return
			}
			if i > quickYieldAfter {
				runtime.Gosched()
			}
		}
	}

	select {
	case <-r.wake:
	case <-r.ctx.Done():
	}
	r.quick.Store(false)
}

// waitWhilePaused sleeps for a short poll interval, returning early when
// the runner is signalled. Routines stopped during a pause are still
// observed on the next poll.
func (r *MultiThreadRunner) waitWhilePaused() {
	r.resetPace(pausedPollInterval)
	select {
	case <-r.pace.C:
	case <-r.wake:
		r.pace.Stop()
	case <-r.ctx.Done():
		r.pace.Stop()
	}
}

func (r *MultiThreadRunner) resetPace(d time.Duration) {
	if r.pace == nil {
		r.pace = time.NewTimer(d)
	} else {
		r.pace.Reset(d)
	}
}

func (r *MultiThreadRunner) sleep(d time.Duration) {
	r.resetPace(d)
	select {
	case <-r.pace.C:
	case <-r.ctx.Done():
		r.pace.Stop()
	}
}

func (r *MultiThreadRunner) exit() {
	abandoned := len(r.active) + r.queue.close()
	clear(r.active)
	r.active = r.active[:0]
	r.activeCount.Store(0)
	r.scheduled.Add(-int32(abandoned))

	r.cfg.Logger.Debug("runner killed", F("runner", r.cfg.Name), F("abandoned", abandoned))
	if r.onKilled != nil {
		r.onKilled()
	}
}
