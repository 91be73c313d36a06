package core

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrRunnerKilled is returned by blocking helpers when the runner they wait
// on has been killed.
var ErrRunnerKilled = errors.New("tasks: runner killed")

// TaskPanicError is the error a collection re-panics with when a task
// panics while being advanced.
type TaskPanicError struct {
	Value any
	Stack []byte
}

func (e *TaskPanicError) Error() string {
	return fmt.Sprintf("tasks: task panicked: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *TaskPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// asTaskPanic converts a recovered value into a *TaskPanicError, keeping an
// existing one intact so nested collections do not wrap twice.
func asTaskPanic(r any) *TaskPanicError {
	if e, ok := r.(*TaskPanicError); ok {
		return e
	}
	return &TaskPanicError{Value: r, Stack: debug.Stack()}
}

// RoutineFailure is handed to a routine's failure callback.
type RoutineFailure struct {
	Routine string
	Err     error
}

func (f *RoutineFailure) Error() string {
	return fmt.Sprintf("tasks: routine %s failed: %v", f.Routine, f.Err)
}

func (f *RoutineFailure) Unwrap() error { return f.Err }

// usage panics for programmer errors; they are never recovered by the
// runtime itself.
func usage(format string, args ...any) {
	panic("tasks: " + fmt.Sprintf(format, args...))
}
