package core

import (
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFunc_OneShot verifies the closure adapter
// Given: A Func task that finishes on its second call
// When: It is advanced twice
// Then: The signal of each step is exposed on Current
func TestFunc_OneShot(t *testing.T) {
	calls := 0
	task := Func(func() (Signal, bool) {
		calls++
		if calls == 1 {
			return Value("first"), true
		}
		return Yield(), false
	})

	require.True(t, task.Advance())
	assert.Equal(t, SignalValue, task.Current().Kind())
	assert.Equal(t, "first", task.Current().Value())

	require.False(t, task.Advance())
	assert.Equal(t, SignalYield, task.Current().Kind())

	_, ok := task.(Resetter)
	assert.False(t, ok, "Func tasks are one-shot")
}

// TestSteps_ResetRewindsCounter verifies StepTask reuse
// Given: A three-step StepTask run to completion
// When: Reset is called and the task runs again
// Then: The step indexes seen by the function repeat from zero
func TestSteps_ResetRewindsCounter(t *testing.T) {
	var seen []int
	task := Steps(func(step int) (Signal, bool) {
		seen = append(seen, step)
		return Yield(), step < 2
	})

	Complete(task)
	assert.Equal(t, 3, task.Step())

	task.Reset()
	assert.Equal(t, 0, task.Step())
	Complete(task)

	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, seen)
}

// TestFromSeq_PullsLazily verifies the iterator adapter
// Given: A sequence yielding two signals
// When: The task is advanced until done, reset and advanced again
// Then: Each signal is one step and the sequence restarts after Reset
func TestFromSeq_PullsLazily(t *testing.T) {
	runs := 0
	var seq iter.Seq[Signal] = func(yield func(Signal) bool) {
		runs++
		if !yield(Value(1)) {
			return
		}
		yield(Value(2))
	}
	task := FromSeq(seq)

	assert.Equal(t, 0, runs, "nothing runs before the first Advance")

	require.True(t, task.Advance())
	assert.Equal(t, 1, task.Current().Value())
	require.True(t, task.Advance())
	assert.Equal(t, 2, task.Current().Value())
	require.False(t, task.Advance())

	// Reset in the middle of a run stops the pending iterator.
	task.Reset()
	require.True(t, task.Advance())
	task.Reset()

	require.True(t, task.Advance())
	assert.Equal(t, 1, task.Current().Value())
	assert.Equal(t, 3, runs)
	task.Reset()
}

// TestSignal_Constructors verifies the signal variants
func TestSignal_Constructors(t *testing.T) {
	inner := Func(func() (Signal, bool) { return Yield(), false })
	rt := NewRoutine(NewSyncRunner(""))

	tests := []struct {
		name    string
		signal  Signal
		kind    SignalKind
		isBreak bool
	}{
		{"yield", Yield(), SignalYield, false},
		{"zero value", Signal{}, SignalYield, false},
		{"value", Value(42), SignalValue, false},
		{"nested", Nested(inner), SignalNested, false},
		{"break local", BreakLocal(), SignalBreakLocal, true},
		{"break and stop", BreakAndStop(), SignalBreakAndStop, true},
		{"await", Await(rt), SignalRoutine, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.signal.Kind())
			assert.Equal(t, tt.isBreak, tt.signal.IsBreak())
			assert.Equal(t, tt.kind.String(), tt.signal.Kind().String())
		})
	}

	assert.Same(t, rt, Await(rt).Routine())
	assert.Equal(t, "value(42)", Value(42).String())
	assert.Panics(t, func() { Nested(nil) })
	assert.Panics(t, func() { Await(nil) })
}
