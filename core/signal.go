package core

import "fmt"

// SignalKind identifies what a Task communicated to its composer through Current.
type SignalKind uint8

const (
	// SignalYield suspends the running collection until the next tick.
	// It is the zero value, so a Task that has nothing to say yields.
	SignalYield SignalKind = iota

	// SignalValue carries an opaque value the engine passes through untouched.
	SignalValue

	// SignalNested asks the collection to push a Task and run it inline.
	SignalNested

	// SignalBreakLocal terminates the innermost running collection only.
	SignalBreakLocal

	// SignalBreakAndStop bubbles up to the owning Routine and stops it.
	SignalBreakAndStop

	// SignalRoutine starts a Routine (if idle) and waits on its Continuation.
	SignalRoutine
)

func (k SignalKind) String() string {
	switch k {
	case SignalYield:
		return "yield"
	case SignalValue:
		return "value"
	case SignalNested:
		return "nested"
	case SignalBreakLocal:
		return "break_local"
	case SignalBreakAndStop:
		return "break_and_stop"
	case SignalRoutine:
		return "routine"
	default:
		return fmt.Sprintf("signal(%d)", uint8(k))
	}
}

// Signal is the control value a Task exposes on Current after each Advance.
type Signal struct {
	kind    SignalKind
	value   any
	task    Task
	routine *Routine
}

// Yield returns the signal that suspends execution until the next tick.
func Yield() Signal { return Signal{} }

// Value wraps an opaque value. Collections expose it on their own Current.
func Value(v any) Signal { return Signal{kind: SignalValue, value: v} }

// Nested returns a signal asking the collection to run t inline before
// resuming the yielding task.
func Nested(t Task) Signal {
	if t == nil {
		panic("tasks: Nested requires a non-nil task")
	}
	return Signal{kind: SignalNested, task: t}
}

// BreakLocal returns the signal that terminates the innermost collection.
func BreakLocal() Signal { return Signal{kind: SignalBreakLocal} }

// BreakAndStop returns the signal that stops the owning Routine.
func BreakAndStop() Signal { return Signal{kind: SignalBreakAndStop} }

// Await returns a signal that starts r when it is idle and suspends the
// yielding task until r completes.
func Await(r *Routine) Signal {
	if r == nil {
		panic("tasks: Await requires a non-nil routine")
	}
	return Signal{kind: SignalRoutine, routine: r}
}

// Kind reports the variant of s.
func (s Signal) Kind() SignalKind { return s.kind }

// Value returns the payload of a SignalValue, nil otherwise.
func (s Signal) Value() any { return s.value }

// Task returns the task of a SignalNested, nil otherwise.
func (s Signal) Task() Task { return s.task }

// Routine returns the routine of a SignalRoutine, nil otherwise.
func (s Signal) Routine() *Routine { return s.routine }

// IsBreak reports whether s is one of the two break signals.
func (s Signal) IsBreak() bool {
	return s.kind == SignalBreakLocal || s.kind == SignalBreakAndStop
}

func (s Signal) String() string {
	if s.kind == SignalValue {
		return fmt.Sprintf("value(%v)", s.value)
	}
	return s.kind.String()
}
