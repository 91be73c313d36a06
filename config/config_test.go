package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Swind/go-tasks/core"
)

const sample = `
[[runner]]
name = "io"
wake = "quick"
interval = "2ms"
history_capacity = 10
default = true

[[runner]]
name = "render"
lock_os_thread = true
tight_tasks = true

[parallel]
name = "physics"
workers = 4
  [parallel.runner]
  tight_tasks = true
`

// TestParse_Sample verifies a complete file decodes into runner configs
// Given: A file with two runners and a parallel section
// When: It is parsed and converted
// Then: Every field reaches the matching core config
func TestParse_Sample(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, f.Runners, 2)

	logger := core.NewNoOpLogger()
	cfgs := f.RunnerConfigs(logger)
	require.Len(t, cfgs, 2)

	io := cfgs[0]
	assert.Equal(t, "io", io.Name)
	assert.Equal(t, core.WakeQuick, io.WakeStrategy)
	assert.Equal(t, 2*time.Millisecond, io.Interval)
	assert.Equal(t, 10, io.HistoryCapacity)
	assert.Same(t, logger, io.Logger)

	render := cfgs[1]
	assert.Equal(t, core.WakeRelaxed, render.WakeStrategy)
	assert.True(t, render.LockOSThread)
	assert.True(t, render.TightTasks)
	assert.Positive(t, render.HistoryCapacity)

	def, ok := f.DefaultRunner()
	require.True(t, ok)
	assert.Equal(t, "io", def.Name)

	pc, ok := f.ParallelConfig(logger)
	require.True(t, ok)
	assert.Equal(t, "physics", pc.Name)
	assert.Equal(t, 4, pc.Workers)
	assert.True(t, pc.Runner.TightTasks)
}

// TestParse_Invalid verifies every validation rule
func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing name", "[[runner]]\nwake = \"quick\"\n"},
		{"duplicate name", "[[runner]]\nname = \"a\"\n[[runner]]\nname = \"a\"\n"},
		{"unknown wake", "[[runner]]\nname = \"a\"\nwake = \"eager\"\n"},
		{"negative interval", "[[runner]]\nname = \"a\"\ninterval = \"-1s\"\n"},
		{"negative history", "[[runner]]\nname = \"a\"\nhistory_capacity = -1\n"},
		{"two defaults", "[[runner]]\nname = \"a\"\ndefault = true\n[[runner]]\nname = \"b\"\ndefault = true\n"},
		{"negative workers", "[parallel]\nworkers = -2\n"},
		{"bad parallel runner", "[parallel]\n[parallel.runner]\nwake = \"eager\"\n"},
		{"unknown key", "[[runner]]\nname = \"a\"\ncolour = \"blue\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := Parse([]byte("[[runner]]\nname = \"a\"\ninterval = \"soon\"\n"))
	assert.Error(t, err, "unparsable duration")
}

// TestParse_Empty verifies an empty file is valid and declares nothing
func TestParse_Empty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)

	assert.Empty(t, f.RunnerConfigs(nil))
	_, ok := f.DefaultRunner()
	assert.False(t, ok)
	_, ok = f.ParallelConfig(nil)
	assert.False(t, ok)
}

// TestLoad verifies files are read from disk and errors name the path
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.toml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Runners, 2)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[[runner]]\n"), 0o600))
	_, err = Load(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), bad)
}

// TestDuration_RoundTrip verifies durations encode back to their text form
func TestDuration_RoundTrip(t *testing.T) {
	f := File{Runners: []Runner{{Name: "a", Interval: Duration{1500 * time.Microsecond}}}}

	data, err := toml.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(data), `interval = "1.5ms"`)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, f.Runners[0].Interval, back.Runners[0].Interval)
}
