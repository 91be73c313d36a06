package tasks

import (
	"sync"

	"github.com/Swind/go-tasks/core"
)

// =============================================================================
// Default Schedulers (Singleton)
// =============================================================================

const defaultRunnerName = "DefaultRunner"

var (
	defaultMu     sync.Mutex
	defaultConfig *core.RunnerConfig
	defaultRunner *core.MultiThreadRunner
	defaultPool   *core.RoutinePool
)

// InitDefaultSchedulers creates the default runner with cfg. It does
// nothing if the default runner already exists; call
// StopAndCleanupAllDefaultSchedulers first to replace it.
func InitDefaultSchedulers(cfg core.RunnerConfig) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultRunner != nil {
		return // Already initialized
	}
	if cfg.Name == "" {
		cfg.Name = defaultRunnerName
	}
	defaultConfig = &cfg
	defaultRunner = core.NewMultiThreadRunner(cfg)
}

// DefaultRunner returns the process-wide runner, creating it on first use.
func DefaultRunner() *core.MultiThreadRunner {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRunnerLocked()
}

func defaultRunnerLocked() *core.MultiThreadRunner {
	if defaultRunner == nil {
		cfg := core.DefaultRunnerConfig(defaultRunnerName)
		if defaultConfig != nil {
			cfg = *defaultConfig
		}
		defaultRunner = core.NewMultiThreadRunner(cfg)
	}
	return defaultRunner
}

// DefaultRoutinePool returns the process-wide routine pool, creating it on
// first use.
func DefaultRoutinePool() *core.RoutinePool {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultPool == nil {
		defaultPool = core.NewRoutinePool()
	}
	return defaultPool
}

// AllocateNewRoutine returns a restartable routine bound to the default
// runner. The caller owns it.
func AllocateNewRoutine() *core.Routine {
	return core.NewRoutine(DefaultRunner())
}

// Run starts task on the default runner with a pooled routine.
func Run(task core.Task) *core.Continuation {
	return RunOnScheduler(DefaultRunner(), task)
}

// RunOnScheduler starts task on runner with a routine from the default
// pool. The routine returns to the pool when task completes.
func RunOnScheduler(runner core.Runner, task core.Task) *core.Continuation {
	return DefaultRoutinePool().Acquire(runner).SetTask(task).Start(nil, nil)
}

// PauseAllTasks pauses the default runner.
func PauseAllTasks() {
	DefaultRunner().SetPaused(true)
}

// ResumeAllTasks resumes the default runner.
func ResumeAllTasks() {
	DefaultRunner().SetPaused(false)
}

// StopAndCleanupAllDefaultSchedulers kills the default runner and drops
// the default pool and configuration. It is safe to call any number of
// times; the next use creates fresh defaults.
func StopAndCleanupAllDefaultSchedulers() {
	defaultMu.Lock()
	runner := defaultRunner
	defaultRunner = nil
	defaultPool = nil
	defaultConfig = nil
	defaultMu.Unlock()

	if runner != nil {
		runner.Kill(nil)
	}
}
