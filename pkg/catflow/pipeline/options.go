package pipeline

import (
	"log/slog"

	"github.com/randalmurphal/catflow/pkg/catflow/observability"
	"github.com/randalmurphal/catflow/pkg/catflow/report"
)

// DefaultName is the pipeline name used in spans and reports.
const DefaultName = "catflow"

// pipelineConfig holds the options of a Pipeline.
type pipelineConfig struct {
	name           string
	runID          string
	logger         *slog.Logger
	reports        report.Store
	metricsEnabled bool
	tracingEnabled bool
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
}

// Option configures a Pipeline.
type Option func(*pipelineConfig)

// WithName sets the pipeline name recorded in spans and reports.
func WithName(name string) Option {
	return func(c *pipelineConfig) {
		if name != "" {
			c.name = name
		}
	}
}

// WithRunID fixes the run identifier. Default: a new UUID per run.
func WithRunID(id string) Option {
	return func(c *pipelineConfig) {
		c.runID = id
	}
}

// WithLogger enables structured logging. Default: no logging.
//
// Log events:
//   - Run start/complete/error (info/error)
//   - Stage start (debug), stage complete (info), stage error (error)
//   - Tables loaded, merge summary, outputs written
func WithLogger(logger *slog.Logger) Option {
	return func(c *pipelineConfig) {
		c.logger = logger
	}
}

// WithReportStore saves a report after every stage. A failed save is
// logged and does not fail the run. Default: no reports.
func WithReportStore(store report.Store) Option {
	return func(c *pipelineConfig) {
		c.reports = store
	}
}

// WithMetrics enables OpenTelemetry metrics. Overrides Settings.Metrics.
//
// Metrics recorded:
//   - catflow.stage.executions, catflow.stage.errors, catflow.stage.latency_ms
//   - catflow.pipeline.runs, catflow.pipeline.latency_ms
//   - catflow.merge.* from the transform stage
//   - catflow.report.size_bytes
func WithMetrics(enabled bool) Option {
	return func(c *pipelineConfig) {
		c.metricsEnabled = enabled
	}
}

// WithTracing enables OpenTelemetry tracing. Overrides Settings.Tracing.
//
// Spans created:
//   - catflow.run (one per run)
//   - catflow.stage.<name> (one per stage, child of the run span)
//   - catflow.merge (inside the transform stage)
func WithTracing(enabled bool) Option {
	return func(c *pipelineConfig) {
		c.tracingEnabled = enabled
	}
}
