package catflow

import (
	"log/slog"

	"github.com/randalmurphal/catflow/pkg/catflow/observability"
)

// mergeConfig holds configuration for one Merge call.
type mergeConfig struct {
	workers       int
	pathSeparator string
	logger        *slog.Logger
	metrics       observability.MetricsRecorder
	spans         observability.SpanManager
}

// defaultMergeConfig returns the default merge configuration:
// single-threaded, no logging, no metrics, no tracing.
func defaultMergeConfig() mergeConfig {
	return mergeConfig{
		workers:       1,
		pathSeparator: DefaultPathSeparator,
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// MergeOption configures Merge.
type MergeOption func(*mergeConfig)

// WithWorkers fans the enrichment pass out over n goroutines.
// Default: 1 (single-threaded). Values below 1 are ignored.
//
// The category cache is warmed single-threaded before fan-out, and output
// order still matches input order.
func WithWorkers(n int) MergeOption {
	return func(c *mergeConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithPathSeparator sets the separator used when the output table renders
// ancestor paths. Default: DefaultPathSeparator.
func WithPathSeparator(sep string) MergeOption {
	return func(c *mergeConfig) {
		if sep != "" {
			c.pathSeparator = sep
		}
	}
}

// WithLogger logs the merge summary to logger. Merge never logs otherwise.
func WithLogger(logger *slog.Logger) MergeOption {
	return func(c *mergeConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics for the merge.
//
// Metrics recorded:
//   - catflow.merge.events (counter by status)
//   - catflow.merge.item_conflicts, catflow.merge.cycles (counters)
//   - catflow.merge.latency_ms (histogram)
func WithMetrics(enabled bool) MergeOption {
	return func(c *mergeConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing wraps the merge in a catflow.merge span.
func WithTracing(enabled bool) MergeOption {
	return func(c *mergeConfig) {
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}
