// Package tasks is a cooperative multitasking runtime for Go.
//
// Work is written as resumable tasks: step functions that advance a little
// on every call and tell their composer what to do next through a Signal.
// Tasks compose serially or in parallel, run on pluggable runners and are
// controlled through Routines, which can be paused, stopped and restarted
// from any goroutine.
//
// # Quick Start
//
// Run a task on the process-wide default runner:
//
//	defer tasks.StopAndCleanupAllDefaultSchedulers()
//
//	cont := tasks.Run(core.Steps(func(step int) (core.Signal, bool) {
//		fmt.Println("step", step)
//		return core.Yield(), step < 2
//	}))
//	_ = cont.Wait(context.Background())
//
// # Key Concepts
//
// Task: anything with Advance() bool and Current() Signal. Returning true
// from Advance means more work is pending; Current tells the composer to
// yield until the next tick, run a nested task inline, break out of the
// enclosing collection, or await another routine.
//
// SerialCollection and ParallelCollection: composite tasks. Nested tasks
// are pushed on a per-slot stack instead of recursing, so arbitrarily deep
// graphs run in constant Go stack space.
//
// Routine: the handle that owns a task graph. Start returns a Continuation
// that completes with the run. Starting a routine again while it is still
// running parks the new task and hands over once the live run winds down.
//
// Runner: where routines are advanced. MultiThreadRunner owns one
// goroutine, SyncRunner drives a routine to completion on the caller.
//
// # Thread Safety
//
// Every routine started on a MultiThreadRunner is advanced on that
// runner's goroutine only, so tasks sharing a runner never race with each
// other. Pause, Resume, Stop and Start may be called from any goroutine.
//
// For more details, see https://github.com/Swind/go-tasks
package tasks
