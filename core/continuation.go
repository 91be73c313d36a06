package core

import (
	"context"
	"sync/atomic"
)

// Continuation is the completion token returned by Routine.Start.
//
// It implements Task so a running task can wait on it by yielding
// Nested(cont), but it is never scheduled on its own: advancing it only
// reads the completion state of the routine it belongs to.
type Continuation struct {
	completed atomic.Bool
	condition atomic.Pointer[func() bool]
}

var _ Task = (*Continuation)(nil)

func newContinuation() *Continuation {
	return &Continuation{}
}

// Advance reports true while the routine is still running and the break
// condition, if any, does not hold.
func (c *Continuation) Advance() bool {
	if c.completed.Load() {
		return false
	}
	if fn := c.condition.Load(); fn != nil && (*fn)() {
		c.condition.Store(nil)
		return false
	}
	return true
}

// Current is always Yield: waiting on a continuation suspends until the
// next tick.
func (c *Continuation) Current() Signal { return Signal{} }

// IsRunning reports whether the routine run tracked by c has not completed.
func (c *Continuation) IsRunning() bool { return !c.completed.Load() }

// Completed reports whether the tracked run finished, was stopped or was
// superseded by a restart.
func (c *Continuation) Completed() bool { return c.completed.Load() }

// BreakOnCondition installs a predicate that makes Advance report done as
// soon as it returns true, letting a waiting task stop waiting early. The
// predicate is consumed the first time it fires.
func (c *Continuation) BreakOnCondition(fn func() bool) {
	if fn == nil {
		c.condition.Store(nil)
		return
	}
	c.condition.Store(&fn)
}

// Wait polls c until the tracked run completes or ctx is done.
func (c *Continuation) Wait(ctx context.Context) error {
	var w spinWait
	for !c.completed.Load() {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.wait()
	}
	return nil
}

func (c *Continuation) complete() {
	c.completed.Store(true)
}
