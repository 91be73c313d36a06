package core

import (
	"runtime"
	"sync/atomic"
)

// SyncRunner drives a routine to completion on the goroutine that starts
// it. Start does not return before the routine has completed, which makes
// it handy in tests and for one-off work that must finish in place.
//
// A routine paused on a SyncRunner keeps the caller spinning until it is
// resumed or stopped from another goroutine.
type SyncRunner struct {
	name     string
	paused   atomic.Bool
	stopping atomic.Bool
	disposed atomic.Bool
	driving  atomic.Int32
}

var _ Runner = (*SyncRunner)(nil)

// NewSyncRunner creates a SyncRunner.
func NewSyncRunner(name string) *SyncRunner {
	if name == "" {
		name = "SyncRunner"
	}
	return &SyncRunner{name: name}
}

func (s *SyncRunner) Name() string { return s.name }

// StartRoutine advances r until it completes, yielding the goroutine
// between steps. Nested starts, from a task awaiting another routine on the
// same runner, are driven recursively.
func (s *SyncRunner) StartRoutine(r *Routine) {
	s.driving.Add(1)
	defer func() {
		// The outermost drive acknowledges a StopAllRoutines.
		if s.driving.Add(-1) == 0 {
			s.stopping.Store(false)
		}
	}()

	for r.Advance() {
		runtime.Gosched()
	}
}

// StopAllRoutines stops the routine being driven on its next step.
func (s *SyncRunner) StopAllRoutines() {
	if s.driving.Load() > 0 {
		s.stopping.Store(true)
	}
}

func (s *SyncRunner) Paused() bool          { return s.paused.Load() }
func (s *SyncRunner) SetPaused(paused bool) { s.paused.Store(paused) }

func (s *SyncRunner) IsStopping() bool {
	return s.stopping.Load() || s.disposed.Load()
}

func (s *SyncRunner) RunningTaskCount() int { return int(s.driving.Load()) }

// Dispose makes every later start complete immediately as stopped.
func (s *SyncRunner) Dispose() { s.disposed.Store(true) }
