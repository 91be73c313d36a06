package core

import (
	"context"
	"fmt"
	"os"
	"time"
)

// =============================================================================
// PanicHandler: runner goroutine faults
// =============================================================================

// PanicHandler is called when a panic escapes a routine on a
// MultiThreadRunner. The routine is dropped and the runner keeps going.
//
// Implementations must be safe for concurrent use; every runner calls it
// from its own goroutine.
type PanicHandler interface {
	// HandlePanic receives the runner and routine names, the recovered
	// value and the stack at the time of the panic.
	HandlePanic(ctx context.Context, runnerName, routineName string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler prints the panic and its stack to stderr.
type DefaultPanicHandler struct{}

func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, runnerName, routineName string, panicInfo any, stackTrace []byte) {
	fmt.Fprintf(os.Stderr, "[Runner %s] routine %s panicked: %v\nStack trace:\n%s",
		runnerName, routineName, panicInfo, stackTrace)
}

// =============================================================================
// Metrics
// =============================================================================

// Routine outcomes reported to Metrics.RecordRoutineCompleted.
const (
	OutcomeCompleted = "completed"
	OutcomeStopped   = "stopped"
	OutcomeFailed    = "failed"
	OutcomePanicked  = "panicked"
)

// Metrics collects runner metrics. Methods are called on the runner
// goroutine and must not block.
type Metrics interface {
	// RecordRoutineStep records the duration of one Advance call.
	RecordRoutineStep(runnerName string, duration time.Duration)

	// RecordRoutinePanic records a panic that escaped a routine.
	RecordRoutinePanic(runnerName string, panicInfo any)

	// RecordRoutineCompleted records a routine leaving the runner, with one
	// of the Outcome constants.
	RecordRoutineCompleted(runnerName string, outcome string)

	// RecordQueueDepth records the number of routines waiting in the
	// ingress queue plus the active list.
	RecordQueueDepth(runnerName string, depth int)

	// RecordRoutineRejected records a StartRoutine refused by the runner.
	RecordRoutineRejected(runnerName string, reason string)
}

// NilMetrics discards every metric. It is the default.
type NilMetrics struct{}

func (m *NilMetrics) RecordRoutineStep(runnerName string, duration time.Duration) {}
func (m *NilMetrics) RecordRoutinePanic(runnerName string, panicInfo any)         {}
func (m *NilMetrics) RecordRoutineCompleted(runnerName string, outcome string)    {}
func (m *NilMetrics) RecordQueueDepth(runnerName string, depth int)               {}
func (m *NilMetrics) RecordRoutineRejected(runnerName string, reason string)      {}

// =============================================================================
// RejectedRoutineHandler
// =============================================================================

// RejectedRoutineHandler is called when a runner refuses a routine, which
// happens once the runner has been killed.
type RejectedRoutineHandler interface {
	HandleRejectedRoutine(runnerName, routineName, reason string)
}

// DefaultRejectedRoutineHandler logs rejected routines through a Logger.
type DefaultRejectedRoutineHandler struct {
	Logger Logger
}

func (h *DefaultRejectedRoutineHandler) HandleRejectedRoutine(runnerName, routineName, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = defaultLogger
	}
	logger.Warn("routine rejected",
		F("runner", runnerName), F("routine", routineName), F("reason", reason))
}

// =============================================================================
// RunnerConfig
// =============================================================================

// WakeStrategy selects how an idle MultiThreadRunner waits for work.
type WakeStrategy int

const (
	// WakeRelaxed parks the runner goroutine until work is enqueued.
	WakeRelaxed WakeStrategy = iota
	// WakeQuick spins on an atomic flag before parking, trading CPU for
	// wake-up latency.
	WakeQuick
)

func (s WakeStrategy) String() string {
	switch s {
	case WakeRelaxed:
		return "relaxed"
	case WakeQuick:
		return "quick"
	default:
		return fmt.Sprintf("WakeStrategy(%d)", int(s))
	}
}

// ParseWakeStrategy parses "relaxed" or "quick".
func ParseWakeStrategy(s string) (WakeStrategy, error) {
	switch s {
	case "", "relaxed":
		return WakeRelaxed, nil
	case "quick":
		return WakeQuick, nil
	default:
		return 0, fmt.Errorf("unknown wake strategy %q", s)
	}
}

// RunnerConfig configures a MultiThreadRunner. Zero values fall back to
// the defaults of DefaultRunnerConfig.
type RunnerConfig struct {
	Name         string
	WakeStrategy WakeStrategy

	// Interval paces the loop: the runner sleeps this long after each
	// iteration that had work.
	Interval time.Duration

	// TightTasks yields the goroutine after each iteration with work.
	TightTasks bool

	// LockOSThread wires the runner goroutine to its OS thread.
	LockOSThread bool

	// HistoryCapacity bounds the run history kept for RecentRoutines.
	HistoryCapacity int

	Logger          Logger
	PanicHandler    PanicHandler
	Metrics         Metrics
	RejectedHandler RejectedRoutineHandler
}

// DefaultRunnerConfig returns a config with default handlers.
func DefaultRunnerConfig(name string) RunnerConfig {
	return RunnerConfig{
		Name:            name,
		WakeStrategy:    WakeRelaxed,
		HistoryCapacity: defaultRunHistoryCapacity,
		Logger:          defaultLogger,
		PanicHandler:    &DefaultPanicHandler{},
		Metrics:         &NilMetrics{},
		RejectedHandler: &DefaultRejectedRoutineHandler{},
	}
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	d := DefaultRunnerConfig(c.Name)
	if c.Name == "" {
		c.Name = "MultiThreadRunner"
	}
	if c.HistoryCapacity <= 0 {
		c.HistoryCapacity = d.HistoryCapacity
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	if c.PanicHandler == nil {
		c.PanicHandler = d.PanicHandler
	}
	if c.Metrics == nil {
		c.Metrics = d.Metrics
	}
	if c.RejectedHandler == nil {
		c.RejectedHandler = &DefaultRejectedRoutineHandler{Logger: c.Logger}
	}
	return c
}
