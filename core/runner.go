package core

// Runner is an execution context that repeatedly advances routines.
//
// StartRoutine may be called from any goroutine. How and where the routine
// is advanced is up to the implementation: SyncRunner drives it on the
// caller, MultiThreadRunner on its own goroutine, and a host tick source can
// implement Runner to step routines from its frame loop.
type Runner interface {
	Name() string

	// StartRoutine schedules a started routine.
	StartRoutine(r *Routine)

	// StopAllRoutines makes every routine scheduled on the runner complete
	// with its stop callback on its next Advance. It does not wait.
	StopAllRoutines()

	Paused() bool
	SetPaused(paused bool)

	// IsStopping reports whether routines advanced now must stop.
	IsStopping() bool

	// RunningTaskCount returns the number of routines scheduled on the
	// runner, queued or active.
	RunningTaskCount() int

	Dispose()
}
