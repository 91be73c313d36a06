package core

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"github.com/google/uuid"
)

// Routine is the externally controllable handle around one task graph.
//
// A Routine is bound to a Runner, started with Start and then advanced by
// that runner once per tick. Pause, Resume and Stop may be called from any
// goroutine; Stop only takes effect on the goroutine driving Advance.
//
// Routines created with NewRoutine can be restarted at any time, including
// while a previous run is still in flight (see Start). Routines handed out
// by a RoutinePool return to it when they complete and are never restarted.
type Routine struct {
	id    uuid.UUID
	state routineState

	// mu guards everything below and serializes Start against the
	// completion hand-off in Advance.
	mu       sync.Mutex
	name     string
	task     Task
	provider func() Task
	runner   Runner
	logger   Logger

	// Owned by the run in flight; only replaced while the routine is not
	// scheduled.
	active       Runner
	wrapper      *SerialCollection
	coroutine    Task
	continuation *Continuation
	onFail       func(*RoutineFailure)
	onStop       func()

	pending pendingStart
	pool    *RoutinePool
}

type pendingStart struct {
	task         Task
	rewind       bool
	continuation *Continuation
	onFail       func(*RoutineFailure)
	onStop       func()
}

var _ Task = (*Routine)(nil)

// NewRoutine creates an idle, externally held routine bound to runner.
func NewRoutine(runner Runner) *Routine {
	r := newRoutine(nil)
	r.runner = runner
	return r
}

func newRoutine(pool *RoutinePool) *Routine {
	return &Routine{
		id:      uuid.New(),
		wrapper: NewSerialCollectionWithCapacity(1),
		pool:    pool,
	}
}

// =============================================================================
// Configuration
// =============================================================================

// SetTask sets the task run by the next Start. It clears any provider set
// before and does not affect a run already in flight.
func (r *Routine) SetTask(t Task) *Routine {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.provider = nil
	if !sameTask(r.task, t) {
		r.state.set(flagTaskJustSet)
	}
	r.task = t
	return r
}

// SetTaskProvider sets a factory called on every Start to build a fresh
// task. It clears any task set before.
func (r *Routine) SetTaskProvider(provider func() Task) *Routine {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.task = nil
	r.provider = provider
	return r
}

// SetScheduler binds the runner used by the next Start.
func (r *Routine) SetScheduler(runner Runner) *Routine {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runner = runner
	return r
}

// SetLogger sets the logger used for failures without a failure callback.
func (r *Routine) SetLogger(logger Logger) *Routine {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
	return r
}

// SetName sets the name used in logs, stats and String.
func (r *Routine) SetName(name string) *Routine {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
	return r
}

// ID returns the routine identifier.
func (r *Routine) ID() uuid.UUID { return r.id }

// Name returns the routine name, derived from its task when unset.
func (r *Routine) Name() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nameLocked()
}

func (r *Routine) String() string { return r.Name() }

func (r *Routine) nameLocked() string {
	switch {
	case r.name != "":
		return r.name
	case r.task != nil:
		return fmt.Sprintf("%T", r.task)
	case r.provider != nil:
		return funcName(r.provider)
	default:
		return "routine-" + r.id.String()
	}
}

// =============================================================================
// Control
// =============================================================================

// Pause suspends the routine; Advance becomes a no-op until Resume.
func (r *Routine) Pause() { r.state.set(flagPaused) }

// Resume lifts a Pause.
func (r *Routine) Resume() { r.state.unset(flagPaused) }

// Stop asks the routine to stop. The driving goroutine observes the
// request on its next Advance, marks the routine completed and invokes the
// stop callback.
func (r *Routine) Stop() { r.state.set(flagExplicitlyStopped) }

// IsRunning reports whether the routine has started and not yet completed.
func (r *Routine) IsRunning() bool {
	st := r.state.load()
	return st&flagStarted != 0 && st&flagCompleted == 0
}

// Current returns the last signal of the routine's task graph. It must be
// called from the goroutine driving the routine, such as a task running on
// the same runner or the host ticking a cooperative runner.
func (r *Routine) Current() Signal {
	if c := r.coroutine; c != nil {
		return c.Current()
	}
	return Signal{}
}

// IsPaused reports whether Pause is in effect.
func (r *Routine) IsPaused() bool { return r.state.has(flagPaused) }

// Continuation returns the completion token of the current run, or nil
// before the first Start.
func (r *Routine) Continuation() *Continuation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.continuation
}

// Start runs the configured task on the bound runner and returns a token
// tracking that run. onFail receives task failures; onStop is invoked when
// the run is stopped by Stop, by its runner or by a BreakAndStop signal.
//
// Starting a routine whose previous run has not been observed complete by
// its runner does not touch that run. The new task is parked, the live run
// is wound down on its next Advance, its continuation completes and the
// routine restarts in place with the parked task. The returned
// continuation tracks the new run.
func (r *Routine) Start(onFail func(*RoutineFailure), onStop func()) *Continuation {
	r.mu.Lock()

	name := r.nameLocked()
	task := r.resolveTaskLocked(name)
	if r.runner == nil {
		r.mu.Unlock()
		usage("routine %s started without a scheduler, call SetScheduler first", name)
	}

	// A fixed task started again must be rewound before it runs.
	st := r.state.load()
	rewind := r.provider == nil && st&flagTaskJustSet == 0
	if rewind {
		if _, ok := task.(Resetter); !ok {
			r.mu.Unlock()
			usage("cannot restart one-shot task %T of routine %s, use SetTaskProvider instead", task, name)
		}
	}

	if st&flagStarted != 0 && st&flagCompleted == 0 {
		if r.pool != nil {
			r.mu.Unlock()
			usage("pooled routine %s started while still running", name)
		}
		superseded := r.pending.continuation
		cont := newContinuation()
		r.pending = pendingStart{task: task, rewind: rewind, continuation: cont, onFail: onFail, onStop: onStop}
		r.state.set(flagPendingRestart)
		r.mu.Unlock()

		if superseded != nil {
			superseded.complete()
		}
		return cont
	}

	r.onFail = onFail
	r.onStop = onStop
	// Each run gets its own token: a pooled routine may be reused while a
	// caller still holds the continuation of its previous run.
	cont := newContinuation()
	r.continuation = cont
	r.prepareLocked(task, rewind)
	runner := r.active
	r.mu.Unlock()

	runner.StartRoutine(r)
	return cont
}

func (r *Routine) resolveTaskLocked(name string) Task {
	if r.provider != nil {
		t := r.provider()
		if t == nil {
			r.mu.Unlock()
			usage("task provider of routine %s returned nil", name)
		}
		return t
	}
	if r.task == nil {
		r.mu.Unlock()
		usage("routine %s has no task, call SetTask or SetTaskProvider before Start", name)
	}
	return r.task
}

// prepareLocked readies the routine for a run of task on the bound runner.
func (r *Routine) prepareLocked(task Task, rewind bool) {
	if rewind {
		task.(Resetter).Reset()
	}

	r.wrapper.Clear()
	if c, ok := task.(Collection); ok {
		r.coroutine = c
	} else {
		r.wrapper.Add(task)
		r.coroutine = r.wrapper
	}
	r.active = r.runner

	r.state.transition(flagStarted,
		flagPaused|flagTaskJustSet|flagCompleted|flagExplicitlyStopped|flagPendingRestart)
}

// =============================================================================
// Execution
// =============================================================================

// Advance runs one step of the routine. It is called by the routine's
// runner on every tick and reports whether the routine must be advanced
// again. Calling it before Start is a programming error.
func (r *Routine) Advance() bool {
	more, _ := r.advance()
	return more
}

// advance is Advance reporting, once the run is over, how it ended as one
// of the Outcome constants.
func (r *Routine) advance() (bool, string) {
	st := r.state.load()
	if st&flagStarted == 0 {
		usage("routine %s advanced before Start, a routine must be run through Start", r.Name())
	}
	if r.state.set(flagSyncPoint)&flagSyncPoint != 0 {
		usage("routine %s advanced concurrently, it is scheduled twice", r.Name())
	}
	held := true
	defer func() {
		if held {
			r.state.unset(flagSyncPoint)
		}
	}()

	var (
		done    bool
		stopped bool
		failure error
	)

	st = r.state.load()
	switch {
	case st&(flagExplicitlyStopped|flagPendingRestart) != 0:
		done = true
		stopped = st&flagExplicitlyStopped != 0
	case r.active.IsStopping():
		done, stopped = true, true
	case st&flagPaused != 0 || r.active.Paused():
		return true, ""
	default:
		done, stopped, failure = r.step()
	}

	if !done {
		return true, ""
	}

	held = false
	return r.finish(stopped, failure)
}

// step advances the coroutine once, converting a task panic into failure.
func (r *Routine) step() (done, stopped bool, failure error) {
	defer func() {
		if rec := recover(); rec != nil {
			done = true
			failure = asTaskPanic(rec)
		}
	}()

	done = !r.coroutine.Advance()
	if r.coroutine.Current().kind == SignalBreakAndStop {
		done, stopped = true, true
	}
	return done, stopped, failure
}

// finish completes the current run. It either hands the routine over to a
// parked restart, returns it to its pool or marks it completed. It reports
// whether the runner must keep advancing the routine.
func (r *Routine) finish(stopped bool, failure error) (bool, string) {
	r.mu.Lock()

	onStop, onFail := r.onStop, r.onFail
	name := r.nameLocked()
	logger := r.logger
	finished := r.continuation
	previous := r.active

	var restartOn Runner
	if r.state.has(flagPendingRestart) {
		next := r.pending
		r.pending = pendingStart{}
		r.continuation = next.continuation
		r.onFail, r.onStop = next.onFail, next.onStop
		r.prepareLocked(next.task, next.rewind)
		r.state.unset(flagSyncPoint)
		restartOn = r.active
	} else {
		// Completed and released in one step: a routine observed completed
		// can be started and advanced elsewhere right away.
		r.state.transition(flagCompleted, flagSyncPoint)
	}
	r.mu.Unlock()

	// Waiters are released even when a callback panics.
	defer finished.complete()

	if stopped && onStop != nil {
		onStop()
	}
	if failure != nil {
		r.reportFailure(name, failure, onFail, logger)
	}
	finished.complete()

	outcome := OutcomeCompleted
	switch {
	case failure != nil:
		outcome = OutcomeFailed
	case stopped:
		outcome = OutcomeStopped
	}

	if restartOn != nil {
		if restartOn == previous {
			return true, ""
		}
		restartOn.StartRoutine(r)
		return false, outcome
	}

	if pool := r.pool; pool != nil {
		r.resetForPool()
		pool.release(r)
	}

	if debugBuild && failure != nil {
		panic(failure)
	}
	return false, outcome
}

func (r *Routine) reportFailure(name string, failure error, onFail func(*RoutineFailure), logger Logger) {
	if onFail != nil {
		onFail(&RoutineFailure{Routine: name, Err: failure})
		return
	}
	if logger == nil {
		logger = defaultLogger
	}
	logger.Error("routine failed", F("routine", name), F("error", failure))
}

// awaitable returns the continuation a collection waits on when a task
// yields Await(r), starting r if it is idle.
func (r *Routine) awaitable() *Continuation {
	r.mu.Lock()
	st := r.state.load()
	if st&flagStarted != 0 && st&flagCompleted == 0 {
		c := r.continuation
		if st&flagPendingRestart != 0 {
			c = r.pending.continuation
		}
		r.mu.Unlock()
		return c
	}
	r.mu.Unlock()
	return r.Start(nil, nil)
}

// resetForPool drops every reference held by a finished pooled routine so
// nothing outlives its run while it sits in the pool.
func (r *Routine) resetForPool() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.name = ""
	r.task = nil
	r.provider = nil
	r.runner = nil
	r.active = nil
	r.logger = nil
	r.coroutine = nil
	r.onFail = nil
	r.onStop = nil
	r.pending = pendingStart{}
	r.continuation = nil
	r.wrapper.Clear()
	r.state.store(0)
}

// =============================================================================
// Helpers
// =============================================================================

// sameTask compares task identities without panicking on uncomparable
// dynamic types.
func sameTask(a, b Task) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "anonymous"
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil || f.Name() == "" {
		return "anonymous"
	}
	return f.Name()
}
