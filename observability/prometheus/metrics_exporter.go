package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-tasks/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	StepBuckets []float64
}

// defaultStepBuckets covers single Advance calls, from 1µs to ~1s.
var defaultStepBuckets = prom.ExponentialBuckets(1e-6, 4, 11)

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	stepSeconds    *prom.HistogramVec
	panicTotal     *prom.CounterVec
	completedTotal *prom.CounterVec
	rejectedTotal  *prom.CounterVec
	queueDepth     *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
// Registering twice on the same registry reuses the collectors already there.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "tasks"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.StepBuckets
	if len(buckets) == 0 {
		buckets = defaultStepBuckets
	}

	stepVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "routine_step_seconds",
		Help:      "Duration of one routine Advance in seconds.",
		Buckets:   buckets,
	}, []string{"runner"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "routine_panic_total",
		Help:      "Total number of panics escaping routines.",
	}, []string{"runner"})
	completedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "routine_completed_total",
		Help:      "Total number of routines that left a runner, by outcome.",
	}, []string{"runner", "outcome"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "routine_rejected_total",
		Help:      "Total number of rejected routine starts.",
	}, []string{"runner", "reason"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Routines scheduled on a runner, queued or active.",
	}, []string{"runner"})

	var err error
	if stepVec, err = registerCollector(reg, stepVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if completedVec, err = registerCollector(reg, completedVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		stepSeconds:    stepVec,
		panicTotal:     panicVec,
		completedTotal: completedVec,
		rejectedTotal:  rejectedVec,
		queueDepth:     queueDepthVec,
	}, nil
}

func (m *MetricsExporter) RecordRoutineStep(runnerName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepSeconds.WithLabelValues(normalizeLabel(runnerName, "unknown")).Observe(duration.Seconds())
}

func (m *MetricsExporter) RecordRoutinePanic(runnerName string, panicInfo any) {
	if m == nil {
		return
	}
	m.panicTotal.WithLabelValues(normalizeLabel(runnerName, "unknown")).Inc()
}

func (m *MetricsExporter) RecordRoutineCompleted(runnerName string, outcome string) {
	if m == nil {
		return
	}
	m.completedTotal.WithLabelValues(normalizeLabel(runnerName, "unknown"), normalizeLabel(outcome, "unknown")).Inc()
}

func (m *MetricsExporter) RecordQueueDepth(runnerName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(runnerName, "unknown")).Set(float64(depth))
}

func (m *MetricsExporter) RecordRoutineRejected(runnerName string, reason string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(normalizeLabel(runnerName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
