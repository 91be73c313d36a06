package core

import (
	"time"

	"github.com/google/uuid"
)

// RoutineRecord captures a routine leaving a runner.
type RoutineRecord struct {
	RoutineID  uuid.UUID
	Name       string
	RunnerName string
	Outcome    string
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Steps      int
}

// RunnerStats is a point-in-time snapshot of a runner.
type RunnerStats struct {
	Name         string
	WakeStrategy string
	Queued       int
	Active       int
	Started      int64
	Completed    int64
	Panicked     int64
	Rejected     int64
	Paused       bool
	Stopping     bool
	Killed       bool
	LastRoutine  string
	LastFinished time.Time
}

// ParallelStats is a snapshot of a MultiThreadedParallelCollection.
type ParallelStats struct {
	Name     string
	Runners  int
	Tasks    int
	Pending  int32
	Running  bool
	Disposed bool
}
