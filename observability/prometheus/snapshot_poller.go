package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-tasks/core"
)

// RunnerSnapshotProvider provides current runner stats snapshots.
type RunnerSnapshotProvider interface {
	Stats() core.RunnerStats
}

// ParallelSnapshotProvider provides multi-threaded parallel collection snapshots.
type ParallelSnapshotProvider interface {
	Stats() core.ParallelStats
}

// PoolSizeProvider reports how many idle objects a pool holds.
type PoolSizeProvider interface {
	Len() int
}

// SnapshotPoller periodically exports Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	mu       sync.RWMutex
	runners  map[string]RunnerSnapshotProvider
	parallel map[string]ParallelSnapshotProvider
	pools    map[string]PoolSizeProvider

	runnerQueued    *prom.GaugeVec
	runnerActive    *prom.GaugeVec
	runnerCompleted *prom.GaugeVec
	runnerPanicked  *prom.GaugeVec
	runnerRejected  *prom.GaugeVec
	runnerPaused    *prom.GaugeVec
	runnerKilled    *prom.GaugeVec

	parallelPending *prom.GaugeVec
	parallelRunning *prom.GaugeVec
	parallelWorkers *prom.GaugeVec

	poolAvailable *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{Namespace: "tasks", Name: name, Help: help}, labels)
	}

	p := &SnapshotPoller{
		interval: interval,
		runners:  make(map[string]RunnerSnapshotProvider),
		parallel: make(map[string]ParallelSnapshotProvider),
		pools:    make(map[string]PoolSizeProvider),

		runnerQueued:    gauge("runner_queued", "Routines waiting in a runner's ingress queue.", "runner", "wake"),
		runnerActive:    gauge("runner_active", "Routines in a runner's active list.", "runner", "wake"),
		runnerCompleted: gauge("runner_completed", "Routines that left a runner, snapshot.", "runner", "wake"),
		runnerPanicked:  gauge("runner_panicked", "Routines dropped after a panic, snapshot.", "runner", "wake"),
		runnerRejected:  gauge("runner_rejected", "Rejected routine starts, snapshot.", "runner", "wake"),
		runnerPaused:    gauge("runner_paused", "Runner paused state (1=paused, 0=running).", "runner", "wake"),
		runnerKilled:    gauge("runner_killed", "Runner killed state (1=killed, 0=alive).", "runner", "wake"),

		parallelPending: gauge("parallel_pending", "Workers still running in a multi-threaded parallel collection.", "collection"),
		parallelRunning: gauge("parallel_running", "Collection running state (1=running, 0=idle).", "collection"),
		parallelWorkers: gauge("parallel_workers", "Worker runners of a multi-threaded parallel collection.", "collection"),

		poolAvailable: gauge("pool_available", "Idle objects held by a pool.", "pool"),
	}

	for _, c := range []**prom.GaugeVec{
		&p.runnerQueued, &p.runnerActive, &p.runnerCompleted, &p.runnerPanicked,
		&p.runnerRejected, &p.runnerPaused, &p.runnerKilled,
		&p.parallelPending, &p.parallelRunning, &p.parallelWorkers,
		&p.poolAvailable,
	} {
		registered, err := registerCollector(reg, *c)
		if err != nil {
			return nil, err
		}
		*c = registered
	}
	return p, nil
}

// AddRunner adds or replaces a runner snapshot provider by name.
func (p *SnapshotPoller) AddRunner(name string, provider RunnerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	p.mu.Lock()
	p.runners[normalizeLabel(name, "runner")] = provider
	p.mu.Unlock()
}

// AddParallel adds or replaces a parallel collection provider by name.
func (p *SnapshotPoller) AddParallel(name string, provider ParallelSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	p.mu.Lock()
	p.parallel[normalizeLabel(name, "collection")] = provider
	p.mu.Unlock()
}

// AddPool adds or replaces a pool size provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSizeProvider) {
	if p == nil || provider == nil {
		return
	}
	p.mu.Lock()
	p.pools[normalizeLabel(name, "pool")] = provider
	p.mu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.running {
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling and waits for the loop to exit; repeated
// calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()

	cancel()
	<-done
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.CollectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CollectOnce()
		}
	}
}

// CollectOnce exports one snapshot of every provider.
func (p *SnapshotPoller) CollectOnce() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for name, provider := range p.runners {
		s := provider.Stats()
		wake := normalizeLabel(s.WakeStrategy, "unknown")
		p.runnerQueued.WithLabelValues(name, wake).Set(float64(s.Queued))
		p.runnerActive.WithLabelValues(name, wake).Set(float64(s.Active))
		p.runnerCompleted.WithLabelValues(name, wake).Set(float64(s.Completed))
		p.runnerPanicked.WithLabelValues(name, wake).Set(float64(s.Panicked))
		p.runnerRejected.WithLabelValues(name, wake).Set(float64(s.Rejected))
		p.runnerPaused.WithLabelValues(name, wake).Set(boolGauge(s.Paused))
		p.runnerKilled.WithLabelValues(name, wake).Set(boolGauge(s.Killed))
	}

	for name, provider := range p.parallel {
		s := provider.Stats()
		p.parallelPending.WithLabelValues(name).Set(float64(s.Pending))
		p.parallelRunning.WithLabelValues(name).Set(boolGauge(s.Running))
		p.parallelWorkers.WithLabelValues(name).Set(float64(s.Runners))
	}

	for name, provider := range p.pools {
		p.poolAvailable.WithLabelValues(name).Set(float64(provider.Len()))
	}
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
