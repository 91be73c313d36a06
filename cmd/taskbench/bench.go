package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Swind/go-tasks/config"
	"github.com/Swind/go-tasks/core"
	obs "github.com/Swind/go-tasks/observability/prometheus"
)

// bench holds what every command shares: configuration, logger and the
// metrics pipeline.
type bench struct {
	file     config.File
	logger   core.Logger
	reg      *prom.Registry
	exporter *obs.MetricsExporter
	poller   *obs.SnapshotPoller

	metricsAddr string
	linger      time.Duration
}

func newBench(c *cli.Context) (*bench, error) {
	b := &bench{
		reg:         prom.NewRegistry(),
		metricsAddr: c.String("metrics-addr"),
		linger:      c.Duration("linger"),
	}

	logger := core.NewDefaultLogger()
	logger.Verbose = c.Bool("verbose")
	b.logger = logger

	if path := c.String("config"); path != "" {
		f, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		b.file = f
	}

	var err error
	if b.exporter, err = obs.NewMetricsExporter("tasks", b.reg, obs.ExporterOptions{}); err != nil {
		return nil, fmt.Errorf("metrics exporter: %w", err)
	}
	if b.poller, err = obs.NewSnapshotPoller(b.reg, 100*time.Millisecond); err != nil {
		return nil, fmt.Errorf("snapshot poller: %w", err)
	}
	return b, nil
}

// runnerConfig returns the configured runner called name, or defaults.
func (b *bench) runnerConfig(name string) core.RunnerConfig {
	cfg := core.DefaultRunnerConfig(name)
	for _, r := range b.file.Runners {
		if r.Name == name {
			cfg = r.RunnerConfig(b.logger)
			break
		}
	}
	cfg.Logger = b.logger
	cfg.Metrics = b.exporter
	return cfg
}

// defaultRunnerConfig returns the runner marked default in the file.
func (b *bench) defaultRunnerConfig() core.RunnerConfig {
	if r, ok := b.file.DefaultRunner(); ok {
		return b.runnerConfig(r.Name)
	}
	return b.runnerConfig("DefaultRunner")
}

func (b *bench) parallelConfig(name string, workers int) core.ParallelConfig {
	cfg, ok := b.file.ParallelConfig(b.logger)
	if !ok {
		cfg = core.ParallelConfig{Name: name, Runner: core.DefaultRunnerConfig("")}
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	cfg.Runner.Logger = b.logger
	cfg.Runner.Metrics = b.exporter
	return cfg
}

// run executes workload while the metrics endpoint and the snapshot poller
// are up, then tears both down.
func (b *bench) run(ctx context.Context, workload func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	b.poller.Start(ctx)
	defer b.poller.Stop()

	if b.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(b.reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: b.metricsAddr, Handler: mux}

		g.Go(func() error {
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			return server.Shutdown(shutdownCtx)
		})
		b.logger.Info("serving metrics", core.F("addr", b.metricsAddr))
	}

	g.Go(func() error {
		defer cancel()
		if err := workload(ctx); err != nil {
			return err
		}
		if b.linger > 0 {
			select {
			case <-time.After(b.linger):
			case <-ctx.Done():
			}
		}
		return nil
	})

	return g.Wait()
}

func printStats(s core.RunnerStats) {
	fmt.Printf("  runner %-20s wake=%-7s completed=%d panicked=%d rejected=%d\n",
		s.Name, s.WakeStrategy, s.Completed, s.Panicked, s.Rejected)
}
