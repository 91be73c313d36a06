package prometheus

import (
	"context"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Swind/go-tasks/core"
)

type runnerStub struct {
	stats core.RunnerStats
}

func (s runnerStub) Stats() core.RunnerStats { return s.stats }

type parallelStub struct {
	stats core.ParallelStats
}

func (s parallelStub) Stats() core.ParallelStats { return s.stats }

type poolStub int

func (s poolStub) Len() int { return int(s) }

func TestSnapshotPoller_CollectsRunnerParallelAndPoolStats(t *testing.T) {
	// Given: a poller with one provider of each kind
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	require.NoError(t, err)

	poller.AddRunner("runner-a", runnerStub{stats: core.RunnerStats{
		WakeStrategy: "quick",
		Queued:       3,
		Active:       1,
		Completed:    9,
		Rejected:     2,
		Killed:       true,
	}})
	poller.AddParallel("physics", parallelStub{stats: core.ParallelStats{
		Runners: 4,
		Pending: 2,
		Running: true,
	}})
	poller.AddPool("routines", poolStub(5))

	// When: the poller runs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	// Then: the gauges mirror the snapshots
	require.Eventually(t, func() bool {
		queued := testutil.ToFloat64(poller.runnerQueued.WithLabelValues("runner-a", "quick"))
		pending := testutil.ToFloat64(poller.parallelPending.WithLabelValues("physics"))
		return queued == 3 && pending == 2
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(poller.runnerActive.WithLabelValues("runner-a", "quick")))
	assert.Equal(t, 9.0, testutil.ToFloat64(poller.runnerCompleted.WithLabelValues("runner-a", "quick")))
	assert.Equal(t, 1.0, testutil.ToFloat64(poller.runnerKilled.WithLabelValues("runner-a", "quick")))
	assert.Equal(t, 0.0, testutil.ToFloat64(poller.runnerPaused.WithLabelValues("runner-a", "quick")))
	assert.Equal(t, 4.0, testutil.ToFloat64(poller.parallelWorkers.WithLabelValues("physics")))
	assert.Equal(t, 1.0, testutil.ToFloat64(poller.parallelRunning.WithLabelValues("physics")))
	assert.Equal(t, 5.0, testutil.ToFloat64(poller.poolAvailable.WithLabelValues("routines")))
}

func TestSnapshotPoller_RealRunnerAndPool(t *testing.T) {
	// Given: a live runner and routine pool
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, time.Hour)
	require.NoError(t, err)

	runner := core.NewMultiThreadRunner(core.RunnerConfig{Name: "live", Logger: core.NewNoOpLogger()})
	defer runner.Dispose()
	pool := core.NewRoutinePool()

	poller.AddRunner(runner.Name(), runner)
	poller.AddPool("routines", pool)

	// When: a pooled routine completes and a snapshot is taken
	cont := pool.Acquire(runner).SetTask(core.Steps(func(step int) (core.Signal, bool) {
		return core.Yield(), step < 1
	})).Start(nil, nil)
	require.Eventually(t, cont.Completed, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return runner.Stats().Completed == 1 }, time.Second, time.Millisecond)
	poller.CollectOnce()

	// Then: the completion and the returned routine are visible
	assert.Equal(t, 1.0, testutil.ToFloat64(poller.runnerCompleted.WithLabelValues("live", "relaxed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(poller.poolAvailable.WithLabelValues("routines")))
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.NotPanics(t, func() {
		poller.Start(ctx)
		poller.Start(ctx)
		poller.Stop()
		poller.Stop()
	})
}

func TestSnapshotPoller_RegistersTwiceOnSameRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	_, err := NewSnapshotPoller(reg, time.Second)
	require.NoError(t, err)
	_, err = NewSnapshotPoller(reg, time.Second)
	assert.NoError(t, err)
}
