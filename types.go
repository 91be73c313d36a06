package tasks

import "github.com/Swind/go-tasks/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the tasks package for most use cases.

// Task is a resumable computation.
type Task = core.Task

// Signal is what a task communicates to its composer.
type Signal = core.Signal

// Routine controls one running task graph.
type Routine = core.Routine

// Continuation tracks one run of a routine.
type Continuation = core.Continuation

// Runner advances routines.
type Runner = core.Runner

// RunnerConfig configures a MultiThreadRunner.
type RunnerConfig = core.RunnerConfig

// RoutineFailure is handed to failure callbacks.
type RoutineFailure = core.RoutineFailure

// Signal constructors
var (
	Yield        = core.Yield
	Value        = core.Value
	Nested       = core.Nested
	BreakLocal   = core.BreakLocal
	BreakAndStop = core.BreakAndStop
	Await        = core.Await
)

// Task adapters
var (
	Func     = core.Func
	Steps    = core.Steps
	FromSeq  = core.FromSeq
	Complete = core.Complete
)

// NewSerialCollection creates a collection running tasks one after the other.
func NewSerialCollection(tasks ...Task) *core.SerialCollection {
	return core.NewSerialCollection(tasks...)
}

// NewParallelCollection creates a collection advancing every task once per tick.
func NewParallelCollection(tasks ...Task) *core.ParallelCollection {
	return core.NewParallelCollection(tasks...)
}

// NewMultiThreadRunner creates a runner with a dedicated goroutine.
func NewMultiThreadRunner(cfg RunnerConfig) *core.MultiThreadRunner {
	return core.NewMultiThreadRunner(cfg)
}
