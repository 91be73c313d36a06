package core

// slot is the stack of tasks behind one collection entry. The root task
// is never popped by the engine, so a finished collection can be reset and
// run again without reallocating.
type slot struct {
	stack []Task
}

const initialSlotDepth = 1

func newSlot(root Task) *slot {
	s := &slot{stack: make([]Task, 0, initialSlotDepth)}
	s.stack = append(s.stack, root)
	return s
}

func (s *slot) push(t Task) {
	s.stack = append(s.stack, t)
}

func (s *slot) pop() Task {
	n := len(s.stack)
	if n == 0 {
		usage("pop on an empty slot")
	}
	t := s.stack[n-1]
	s.stack[n-1] = nil
	s.stack = s.stack[:n-1]
	return t
}

func (s *slot) top() Task {
	return s.stack[len(s.stack)-1]
}

func (s *slot) depth() int { return len(s.stack) }

// rewind pops every inlined task and resets the root when it supports it.
func (s *slot) rewind() {
	for len(s.stack) > 1 {
		s.pop()
	}
	if len(s.stack) == 1 {
		if r, ok := s.stack[0].(Resetter); ok {
			r.Reset()
		}
	}
}

// clear drops every reference but keeps the backing array.
func (s *slot) clear() {
	clear(s.stack)
	s.stack = s.stack[:0]
}
