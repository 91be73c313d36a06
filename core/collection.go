package core

import (
	"fmt"
	"sync/atomic"
)

// Collection is a composite Task that drives a list of slots. Collections
// are reusable: Reset rewinds them in place, Clear empties them.
type Collection interface {
	Task
	Resetter

	Add(tasks ...Task)
	Clear()
	Len() int
	IsRunning() bool
	OnComplete(fn func())
	OnFailure(fn func(err error) bool)
}

type taskState uint8

const (
	stateDone taskState = iota
	stateBreak
	stateContinue
	stateYield
)

// collection holds the state shared by the serial and parallel engines.
type collection struct {
	slots   []*slot
	current Signal
	name    string
	running atomic.Bool

	onComplete func()
	onFailure  func(err error) bool
}

func (c *collection) add(t Task) int {
	if t == nil {
		usage("cannot add a nil task to %s", c.String())
	}
	n := len(c.slots)
	if n < cap(c.slots) {
		// Reuse a slot left behind by Clear.
		c.slots = c.slots[:n+1]
		if s := c.slots[n]; s != nil {
			s.clear()
			s.push(t)
			return n
		}
		c.slots[n] = newSlot(t)
		return n
	}
	c.slots = append(c.slots, newSlot(t))
	return n
}

// processSlot advances the top task of s once and classifies the outcome.
func (c *collection) processSlot(s *slot) taskState {
	t := s.top()
	done := !t.Advance()
	sig := t.Current()
	c.current = sig

	if done {
		// A finished nested collection that broke with AndStop keeps bubbling.
		switch sig.kind {
		case SignalBreakAndStop:
			return stateBreak
		case SignalNested, SignalRoutine:
			// Requests from a finished task are dropped.
			c.current = Yield()
		}
		return stateDone
	}

	switch sig.kind {
	case SignalBreakLocal, SignalBreakAndStop:
		return stateBreak
	case SignalYield:
		return stateYield
	case SignalNested:
		s.push(sig.task)
		c.current = Yield()
	case SignalRoutine:
		s.push(sig.routine.awaitable())
		c.current = Yield()
	}
	// A pushed task belongs to s alone, so the request is not exposed to
	// an enclosing collection.
	return stateContinue
}

// advance wraps one engine step with the completion and failure protocol.
func (c *collection) advance(run func() bool) bool {
	c.running.Store(true)

	defer func() {
		if r := recover(); r != nil {
			err := asTaskPanic(r)
			if c.onFailure != nil && c.onFailure(err) {
				c.running.Store(false)
			}
			panic(err)
		}
	}()

	if !run() {
		return true
	}

	if c.onComplete != nil {
		c.onComplete()
	}
	c.running.Store(false)
	return false
}

func (c *collection) rewind() {
	for _, s := range c.slots {
		s.rewind()
	}
	c.current = Signal{}
}

func (c *collection) clearSlots() {
	for _, s := range c.slots {
		s.clear()
	}
	c.slots = c.slots[:0]
	c.current = Signal{}
}

// Current returns the last signal observed by the collection.
func (c *collection) Current() Signal { return c.current }

// Len returns the number of slots.
func (c *collection) Len() int { return len(c.slots) }

// IsRunning reports whether a run is in progress.
func (c *collection) IsRunning() bool { return c.running.Load() }

// OnComplete sets the callback invoked when a run completes.
func (c *collection) OnComplete(fn func()) { c.onComplete = fn }

// OnFailure sets the callback invoked with the error of a panicking task.
// Returning true forces IsRunning to false before the error is re-raised.
func (c *collection) OnFailure(fn func(err error) bool) { c.onFailure = fn }

// SetName sets the name reported by String.
func (c *collection) SetName(name string) { c.name = name }

func (c *collection) String() string {
	if c.name != "" {
		return c.name
	}
	return fmt.Sprintf("collection(%p)", c)
}

// =============================================================================
// SerialCollection
// =============================================================================

const defaultCollectionCapacity = 3

// SerialCollection runs its slots one after the other. A slot runs until
// its root task finishes, inlining any nested tasks, before the next slot
// starts. A Yield suspends the collection exactly where it happened.
type SerialCollection struct {
	collection
	index int
}

var _ Collection = (*SerialCollection)(nil)

// NewSerialCollection creates a serial collection holding tasks.
func NewSerialCollection(tasks ...Task) *SerialCollection {
	c := NewSerialCollectionWithCapacity(max(len(tasks), defaultCollectionCapacity))
	c.Add(tasks...)
	return c
}

// NewSerialCollectionWithCapacity creates an empty serial collection with
// room for n slots.
func NewSerialCollectionWithCapacity(n int) *SerialCollection {
	return &SerialCollection{collection: collection{slots: make([]*slot, 0, n)}}
}

// Add appends tasks. Adding while running is allowed from the driving
// goroutine; the new slots run after the existing ones.
func (c *SerialCollection) Add(tasks ...Task) {
	for _, t := range tasks {
		c.add(t)
	}
}

// Advance runs slots until one yields, a break is observed or every slot
// has drained to its root.
func (c *SerialCollection) Advance() bool {
	return c.advance(c.run)
}

func (c *SerialCollection) run() bool {
	for c.index < len(c.slots) {
		s := c.slots[c.index]
	drain:
		for {
			switch c.processSlot(s) {
			case stateDone:
				if s.depth() > 1 {
					s.pop()
					continue
				}
				c.index++
				break drain
			case stateBreak:
				return true
			case stateYield:
				return false
			}
		}
	}
	return true
}

// Reset rewinds every slot to its root task and moves the cursor back to
// the first slot.
func (c *SerialCollection) Reset() {
	c.rewind()
	c.index = 0
}

// Clear removes every slot. Backing storage is kept for reuse.
func (c *SerialCollection) Clear() {
	c.clearSlots()
	c.index = 0
}

// =============================================================================
// ParallelCollection
// =============================================================================

// ParallelCollection advances every active slot once per Advance call, in
// insertion order. Finished slots are moved behind the active region, so the
// active slots stay contiguous and the finished ones stay intact for Reset.
type ParallelCollection struct {
	collection
	// order is a permutation of slot indexes; the first len-removed
	// entries are the active slots.
	order   []int
	removed int
}

var _ Collection = (*ParallelCollection)(nil)

// NewParallelCollection creates a parallel collection holding tasks.
func NewParallelCollection(tasks ...Task) *ParallelCollection {
	c := NewParallelCollectionWithCapacity(max(len(tasks), defaultCollectionCapacity))
	c.Add(tasks...)
	return c
}

// NewParallelCollectionWithCapacity creates an empty parallel collection
// with room for n slots.
func NewParallelCollectionWithCapacity(n int) *ParallelCollection {
	return &ParallelCollection{
		collection: collection{slots: make([]*slot, 0, n)},
		order:      make([]int, 0, n),
	}
}

// Add appends tasks to the active set.
func (c *ParallelCollection) Add(tasks ...Task) {
	for _, t := range tasks {
		idx := c.add(t)
		c.order = append(c.order, idx)
		// Keep the new slot inside the active region.
		last := len(c.order) - 1
		first := last - c.removed
		c.order[first], c.order[last] = c.order[last], c.order[first]
	}
}

// Advance performs one round over the active slots.
func (c *ParallelCollection) Advance() bool {
	return c.advance(c.run)
}

func (c *ParallelCollection) run() bool {
	for i := 0; i < c.activeCount(); i++ {
		s := c.slots[c.order[i]]
		switch c.processSlot(s) {
		case stateDone:
			if s.depth() > 1 {
				// The parent resumes next round.
				s.pop()
			} else {
				i = c.deactivate(i)
			}
		case stateBreak:
			return true
		}
	}
	return c.activeCount() == 0
}

// deactivate moves the finished slot at position i behind the active
// region, keeping the remaining active slots in list order, and returns the
// index the loop must continue from.
func (c *ParallelCollection) deactivate(i int) int {
	last := c.activeCount() - 1
	done := c.order[i]
	copy(c.order[i:last], c.order[i+1:last+1])
	c.order[last] = done
	c.removed++
	return i - 1
}

func (c *ParallelCollection) activeCount() int {
	return len(c.order) - c.removed
}

// ActiveCount returns the number of slots that still have work this run.
func (c *ParallelCollection) ActiveCount() int { return c.activeCount() }

// Reset rewinds every slot and restores insertion order.
func (c *ParallelCollection) Reset() {
	c.rewind()
	for i := range c.order {
		c.order[i] = i
	}
	c.removed = 0
}

// Clear removes every slot. Backing storage is kept for reuse.
func (c *ParallelCollection) Clear() {
	c.clearSlots()
	c.order = c.order[:0]
	c.removed = 0
}
