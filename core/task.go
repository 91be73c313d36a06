package core

import (
	"iter"
	"runtime"
	"time"
)

// Task is a resumable computation. Advance runs one step and reports
// whether more work is pending; Current exposes the Signal produced by
// the last step.
//
// A Task is owned by whichever collection slot currently holds it and is
// never advanced concurrently.
type Task interface {
	Advance() bool
	Current() Signal
}

// Resetter is implemented by tasks that can be rewound and run again.
// Tasks without it are one-shot: a Routine refuses to restart them.
type Resetter interface {
	Reset()
}

// =============================================================================
// Task adapters
// =============================================================================

type funcTask struct {
	fn      func() (Signal, bool)
	current Signal
}

// Func adapts a closure into a one-shot Task. fn returns the signal for
// the step and whether more work is pending.
func Func(fn func() (Signal, bool)) Task {
	return &funcTask{fn: fn}
}

func (t *funcTask) Advance() bool {
	s, more := t.fn()
	t.current = s
	return more
}

func (t *funcTask) Current() Signal { return t.current }

// StepTask is a resettable Task driven by a step counter. The step
// function receives the zero-based step index.
type StepTask struct {
	fn      func(step int) (Signal, bool)
	step    int
	current Signal
}

// Steps creates a StepTask. Reset rewinds the counter to zero, so fn must
// derive all of its state from the step index to be safely restartable.
func Steps(fn func(step int) (Signal, bool)) *StepTask {
	return &StepTask{fn: fn}
}

func (t *StepTask) Advance() bool {
	s, more := t.fn(t.step)
	t.step++
	t.current = s
	return more
}

func (t *StepTask) Current() Signal { return t.current }

func (t *StepTask) Reset() {
	t.step = 0
	t.current = Signal{}
}

// Step returns how many times the task has been advanced since the last reset.
func (t *StepTask) Step() int { return t.step }

// SeqTask runs an iter.Seq of signals as a Task. Each yielded signal is
// one step. The sequence is pulled lazily and restarted from the beginning
// on Reset.
type SeqTask struct {
	seq     iter.Seq[Signal]
	next    func() (Signal, bool)
	stop    func()
	current Signal
}

// FromSeq wraps seq as a resettable Task.
func FromSeq(seq iter.Seq[Signal]) *SeqTask {
	return &SeqTask{seq: seq}
}

func (t *SeqTask) Advance() bool {
	if t.next == nil {
		t.next, t.stop = iter.Pull(t.seq)
	}
	s, ok := t.next()
	if !ok {
		t.release()
		t.current = Signal{}
		return false
	}
	t.current = s
	return true
}

func (t *SeqTask) Current() Signal { return t.current }

func (t *SeqTask) Reset() {
	t.release()
	t.current = Signal{}
}

func (t *SeqTask) release() {
	if t.stop != nil {
		t.stop()
	}
	t.next = nil
	t.stop = nil
}

// Complete drives t to completion on the calling goroutine, backing off
// between steps. It is meant for tests and for hosts that own no runner.
func Complete(t Task) {
	var w spinWait
	for t.Advance() {
		w.wait()
	}
}

// spinWait yields the processor for the first iterations and then sleeps
// with a growing, capped delay.
type spinWait struct {
	n int
}

const (
	spinYieldIterations = 64
	spinMaxSleep        = time.Millisecond
)

func (w *spinWait) wait() {
	w.n++
	if w.n < spinYieldIterations {
		runtime.Gosched()
		return
	}
	d := time.Duration(w.n-spinYieldIterations+1) * 10 * time.Microsecond
	time.Sleep(min(d, spinMaxSleep))
}

