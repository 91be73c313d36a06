// Package config loads runner configuration from TOML files.
//
// A file declares any number of runners and, optionally, the
// multi-threaded parallel collection:
//
//	[[runner]]
//	name = "io"
//	wake = "quick"
//	interval = "2ms"
//	default = true
//
//	[parallel]
//	name = "physics"
//	workers = 4
//	  [parallel.runner]
//	  tight_tasks = true
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Swind/go-tasks/core"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid config")

// File is the parsed form of a configuration file.
type File struct {
	Runners  []Runner  `toml:"runner"`
	Parallel *Parallel `toml:"parallel"`
}

// Runner configures one MultiThreadRunner.
type Runner struct {
	Name            string   `toml:"name"`
	Wake            string   `toml:"wake"`
	Interval        Duration `toml:"interval"`
	TightTasks      bool     `toml:"tight_tasks"`
	LockOSThread    bool     `toml:"lock_os_thread"`
	HistoryCapacity int      `toml:"history_capacity"`

	// Default marks the runner used for the process-wide default runner.
	Default bool `toml:"default"`
}

// Parallel configures a MultiThreadedParallelCollection.
type Parallel struct {
	Name    string `toml:"name"`
	Workers int    `toml:"workers"`
	Runner  Runner `toml:"runner"`
}

// Duration is a time.Duration written as a string such as "5ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load reads and validates the file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return File{}, fmt.Errorf("config %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates TOML data.
func Parse(data []byte) (File, error) {
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return File{}, fmt.Errorf("decode: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return File{}, fmt.Errorf("%w: unknown key %s", ErrInvalidConfig, undecoded[0])
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Validate checks names, wake strategies and numeric bounds.
func (f File) Validate() error {
	seen := make(map[string]struct{}, len(f.Runners))
	defaults := 0
	for i, r := range f.Runners {
		if r.Name == "" {
			return fmt.Errorf("%w: runner %d has no name", ErrInvalidConfig, i)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("%w: duplicate runner %q", ErrInvalidConfig, r.Name)
		}
		seen[r.Name] = struct{}{}
		if r.Default {
			defaults++
		}
		if err := r.validate(); err != nil {
			return fmt.Errorf("runner %q: %w", r.Name, err)
		}
	}
	if defaults > 1 {
		return fmt.Errorf("%w: %d runners marked default", ErrInvalidConfig, defaults)
	}

	if p := f.Parallel; p != nil {
		if p.Workers < 0 {
			return fmt.Errorf("%w: parallel workers must not be negative, got %d", ErrInvalidConfig, p.Workers)
		}
		if err := p.Runner.validate(); err != nil {
			return fmt.Errorf("parallel runner: %w", err)
		}
	}
	return nil
}

func (r Runner) validate() error {
	if _, err := core.ParseWakeStrategy(r.Wake); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if r.Interval.Duration < 0 {
		return fmt.Errorf("%w: negative interval %s", ErrInvalidConfig, r.Interval.Duration)
	}
	if r.HistoryCapacity < 0 {
		return fmt.Errorf("%w: negative history capacity %d", ErrInvalidConfig, r.HistoryCapacity)
	}
	return nil
}

// RunnerConfig converts r into a core.RunnerConfig using logger for the
// runner's logs. Handlers and metrics keep their defaults.
func (r Runner) RunnerConfig(logger core.Logger) core.RunnerConfig {
	// validated by Parse
	wake, _ := core.ParseWakeStrategy(r.Wake)

	cfg := core.DefaultRunnerConfig(r.Name)
	cfg.WakeStrategy = wake
	cfg.Interval = r.Interval.Duration
	cfg.TightTasks = r.TightTasks
	cfg.LockOSThread = r.LockOSThread
	if r.HistoryCapacity > 0 {
		cfg.HistoryCapacity = r.HistoryCapacity
	}
	if logger != nil {
		cfg.Logger = logger
		cfg.RejectedHandler = &core.DefaultRejectedRoutineHandler{Logger: logger}
	}
	return cfg
}

// RunnerConfigs converts every declared runner.
func (f File) RunnerConfigs(logger core.Logger) []core.RunnerConfig {
	out := make([]core.RunnerConfig, 0, len(f.Runners))
	for _, r := range f.Runners {
		out = append(out, r.RunnerConfig(logger))
	}
	return out
}

// DefaultRunner returns the runner marked default, if any.
func (f File) DefaultRunner() (Runner, bool) {
	for _, r := range f.Runners {
		if r.Default {
			return r, true
		}
	}
	return Runner{}, false
}

// ParallelConfig converts the [parallel] table. ok is false when the file
// has none.
func (f File) ParallelConfig(logger core.Logger) (cfg core.ParallelConfig, ok bool) {
	if f.Parallel == nil {
		return core.ParallelConfig{}, false
	}
	return core.ParallelConfig{
		Name:    f.Parallel.Name,
		Workers: f.Parallel.Workers,
		Runner:  f.Parallel.Runner.RunnerConfig(logger),
	}, true
}
