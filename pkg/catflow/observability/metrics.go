package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records catflow metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordStage records a pipeline stage execution with its duration and error status.
	RecordStage(ctx context.Context, stage string, duration time.Duration, err error)

	// RecordRun records a pipeline run completion.
	RecordRun(ctx context.Context, success bool, duration time.Duration)

	// RecordMerge records the tallies of one merge call.
	RecordMerge(ctx context.Context, counts MergeCounts, duration time.Duration)

	// RecordReport records a run report save.
	RecordReport(ctx context.Context, stage string, sizeBytes int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	stageExecutions metric.Int64Counter
	stageLatency    metric.Float64Histogram
	stageErrors     metric.Int64Counter
	pipelineRuns    metric.Int64Counter
	pipelineLatency metric.Float64Histogram
	mergeEvents     metric.Int64Counter
	mergeConflicts  metric.Int64Counter
	mergeCycles     metric.Int64Counter
	mergeLatency    metric.Float64Histogram
	reportSize      metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily initializes the shared OTel instruments.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("catflow")
	m := &otelMetrics{}
	var err error

	if m.stageExecutions, err = meter.Int64Counter("catflow.stage.executions",
		metric.WithDescription("Number of pipeline stage executions"),
	); err != nil {
		return nil, err
	}
	if m.stageLatency, err = meter.Float64Histogram("catflow.stage.latency_ms",
		metric.WithDescription("Pipeline stage latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.stageErrors, err = meter.Int64Counter("catflow.stage.errors",
		metric.WithDescription("Number of failed pipeline stages"),
	); err != nil {
		return nil, err
	}
	if m.pipelineRuns, err = meter.Int64Counter("catflow.pipeline.runs",
		metric.WithDescription("Number of pipeline runs"),
	); err != nil {
		return nil, err
	}
	if m.pipelineLatency, err = meter.Float64Histogram("catflow.pipeline.latency_ms",
		metric.WithDescription("Pipeline run latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.mergeEvents, err = meter.Int64Counter("catflow.merge.events",
		metric.WithDescription("Number of events enriched, by resolution status"),
	); err != nil {
		return nil, err
	}
	if m.mergeConflicts, err = meter.Int64Counter("catflow.merge.item_conflicts",
		metric.WithDescription("Number of conflicting item to category rows"),
	); err != nil {
		return nil, err
	}
	if m.mergeCycles, err = meter.Int64Counter("catflow.merge.cycles",
		metric.WithDescription("Number of category cycles detected"),
	); err != nil {
		return nil, err
	}
	if m.mergeLatency, err = meter.Float64Histogram("catflow.merge.latency_ms",
		metric.WithDescription("Merge latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.reportSize, err = meter.Int64Histogram("catflow.report.size_bytes",
		metric.WithDescription("Run report size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordStage records a stage execution.
func (m *otelMetrics) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("stage", stage))

	m.stageExecutions.Add(ctx, 1, attrs)
	m.stageLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.stageErrors.Add(ctx, 1, attrs)
	}
}

// RecordRun records a pipeline run.
func (m *otelMetrics) RecordRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.pipelineRuns.Add(ctx, 1, attrs)
	m.pipelineLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordMerge records merge tallies. Events are split by status so
// dashboards can chart the unresolved share directly.
func (m *otelMetrics) RecordMerge(ctx context.Context, c MergeCounts, duration time.Duration) {
	m.mergeEvents.Add(ctx, int64(c.Resolved), metric.WithAttributes(attribute.String("status", "resolved")))
	m.mergeEvents.Add(ctx, int64(c.UnresolvedItems), metric.WithAttributes(attribute.String("status", "unresolved_item")))
	m.mergeEvents.Add(ctx, int64(c.UnresolvedCategories), metric.WithAttributes(attribute.String("status", "unresolved_category")))
	m.mergeConflicts.Add(ctx, int64(c.ItemConflicts))
	m.mergeCycles.Add(ctx, int64(c.Cycles))
	m.mergeLatency.Record(ctx, float64(duration.Milliseconds()))
}

// RecordReport records a run report save.
func (m *otelMetrics) RecordReport(ctx context.Context, stage string, sizeBytes int64) {
	m.reportSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("stage", stage)))
}
