package core

import (
	"sync"
	"sync/atomic"
)

// manualRunner is a Runner stepped by the test through tick, like a host
// frame loop would.
type manualRunner struct {
	name     string
	mu       sync.Mutex
	routines []*Routine
	paused   atomic.Bool
	stopping atomic.Bool
	disposed atomic.Bool
}

func newManualRunner(name string) *manualRunner {
	return &manualRunner{name: name}
}

func (m *manualRunner) Name() string { return m.name }

func (m *manualRunner) StartRoutine(r *Routine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routines = append(m.routines, r)
}

// tick advances every scheduled routine once. Routines started during the
// tick run from the next one.
func (m *manualRunner) tick() {
	m.mu.Lock()
	current := m.routines
	m.routines = nil
	m.mu.Unlock()

	var keep []*Routine
	for _, r := range current {
		if r.Advance() {
			keep = append(keep, r)
		}
	}

	m.mu.Lock()
	m.routines = append(keep, m.routines...)
	m.mu.Unlock()

	if len(keep) == 0 {
		m.stopping.Store(false)
	}
}

func (m *manualRunner) ticks(n int) {
	for range n {
		m.tick()
	}
}

func (m *manualRunner) StopAllRoutines()      { m.stopping.Store(true) }
func (m *manualRunner) Paused() bool          { return m.paused.Load() }
func (m *manualRunner) SetPaused(paused bool) { m.paused.Store(paused) }
func (m *manualRunner) IsStopping() bool      { return m.stopping.Load() }
func (m *manualRunner) Dispose()              { m.disposed.Store(true) }

func (m *manualRunner) RunningTaskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.routines)
}

// recordingLogger keeps every log line for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) record(level, msg string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, formatLogLine(level, msg, fields))
}

func (l *recordingLogger) Debug(msg string, fields ...Field) { l.record("DEBUG", msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...Field)  { l.record("INFO", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...Field)  { l.record("WARN", msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...Field) { l.record("ERROR", msg, fields) }

func (l *recordingLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// counterTask counts its steps and never finishes on its own.
func counterTask(n *atomic.Int64) *StepTask {
	return Steps(func(int) (Signal, bool) {
		n.Add(1)
		return Yield(), true
	})
}

// finiteTask counts its steps and finishes after steps of them.
func finiteTask(n *atomic.Int64, steps int) *StepTask {
	return Steps(func(step int) (Signal, bool) {
		n.Add(1)
		return Yield(), step < steps-1
	})
}
