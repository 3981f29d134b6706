// Package observe provides application-wide observability primitives for
// lyralign: OpenTelemetry metrics with a Prometheus exporter bridge, plus
// HTTP middleware tying request logging and latency recording together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-
// level default [Metrics] instance ([DefaultMetrics]) is provided for
// convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all lyralign metrics.
const meterName = "github.com/MrWong99/lyralign"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// StageDuration tracks per-pipeline-stage wall-clock time. Use with
	// attributes:
	//   attribute.String("stage", ...), attribute.String("status", ...)
	StageDuration metric.Float64Histogram

	// RunDuration tracks the end-to-end duration of a pipeline run.
	RunDuration metric.Float64Histogram

	// CacheLookups counts result-cache reads. Use with attributes:
	//   attribute.String("stage", ...), attribute.Bool("hit", ...)
	CacheLookups metric.Int64Counter

	// RefineStrategies counts which refinement strategy won a run. Use
	// with attributes:
	//   attribute.String("strategy", ...), attribute.String("tier", ...)
	RefineStrategies metric.Int64Counter

	// RunsCompleted counts terminal runs. Use with attribute:
	//   attribute.String("outcome", "completed"|"failed")
	RunsCompleted metric.Int64Counter

	// ActiveRuns tracks the number of pipeline runs currently executing.
	ActiveRuns metric.Int64UpDownCounter

	// QueueDepth tracks the number of jobs waiting for a worker.
	QueueDepth metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). ML
// inference dominates stage time, so the buckets reach into minutes.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("lyralign.stage.duration",
		metric.WithDescription("Wall-clock duration of a pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RunDuration, err = m.Float64Histogram("lyralign.run.duration",
		metric.WithDescription("End-to-end duration of a pipeline run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.CacheLookups, err = m.Int64Counter("lyralign.cache.lookups",
		metric.WithDescription("Result-cache reads by stage and hit/miss."),
	); err != nil {
		return nil, err
	}
	if met.RefineStrategies, err = m.Int64Counter("lyralign.refine.strategies",
		metric.WithDescription("Winning refinement strategy per run, by strategy and tier."),
	); err != nil {
		return nil, err
	}
	if met.RunsCompleted, err = m.Int64Counter("lyralign.runs.completed",
		metric.WithDescription("Terminal pipeline runs by outcome."),
	); err != nil {
		return nil, err
	}

	if met.ActiveRuns, err = m.Int64UpDownCounter("lyralign.active_runs",
		metric.WithDescription("Number of pipeline runs currently executing."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("lyralign.queue_depth",
		metric.WithDescription("Number of jobs waiting for a worker."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("lyralign.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
