package core

import (
	"strings"
	"sync/atomic"
)

// routineFlag is one bit of a routine's packed state word.
type routineFlag uint32

const (
	flagStarted routineFlag = 1 << iota
	flagPaused
	flagCompleted
	flagExplicitlyStopped
	flagTaskJustSet
	// flagSyncPoint is held while a goroutine is inside Advance.
	flagSyncPoint
	flagPendingRestart
)

var routineFlagNames = [...]string{
	"started",
	"paused",
	"completed",
	"explicitly_stopped",
	"task_just_set",
	"sync_point",
	"pending_restart",
}

func (f routineFlag) String() string {
	if f == 0 {
		return "idle"
	}
	var parts []string
	for i, name := range routineFlagNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// routineState is the atomic flag word. Every transition is a single CAS
// so a foreign goroutine always observes a consistent group of flags.
type routineState struct {
	v atomic.Uint32
}

func (s *routineState) load() routineFlag {
	return routineFlag(s.v.Load())
}

func (s *routineState) has(f routineFlag) bool {
	return s.load()&f != 0
}

// transition sets and clears flags atomically and returns the previous word.
func (s *routineState) transition(set, unset routineFlag) routineFlag {
	for {
		old := s.v.Load()
		next := (routineFlag(old) &^ unset) | set
		checkRoutineState(next)
		if s.v.CompareAndSwap(old, uint32(next)) {
			return routineFlag(old)
		}
	}
}

func (s *routineState) set(f routineFlag) routineFlag { return s.transition(f, 0) }

func (s *routineState) unset(f routineFlag) routineFlag { return s.transition(0, f) }

func (s *routineState) store(f routineFlag) {
	checkRoutineState(f)
	s.v.Store(uint32(f))
}

// checkRoutineState rejects flag combinations no transition may produce.
func checkRoutineState(f routineFlag) {
	if f&flagCompleted != 0 && f&flagStarted == 0 {
		usage("invalid routine state %s: completed without started", f)
	}
	if f&flagPendingRestart != 0 && f&flagStarted == 0 {
		usage("invalid routine state %s: pending restart without started", f)
	}
}
