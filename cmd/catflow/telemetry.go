package main

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/catflow/pkg/catflow/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// installTelemetry installs OpenTelemetry providers that report to logger
// when Settings.Metrics or Settings.Tracing is on. Spans are logged as they
// end; metrics are collected once and logged by the returned shutdown func.
func installTelemetry(s config.Settings, logger *slog.Logger) func(context.Context) {
	var shutdowns []func(context.Context)

	if s.Tracing {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(&spanLogger{logger: logger}))
		otel.SetTracerProvider(tp)
		shutdowns = append(shutdowns, func(ctx context.Context) {
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
			}
		})
	}

	if s.Metrics {
		reader := sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		otel.SetMeterProvider(mp)
		shutdowns = append(shutdowns, func(ctx context.Context) {
			var rm metricdata.ResourceMetrics
			if err := reader.Collect(ctx, &rm); err != nil {
				logger.Warn("metrics collection failed", slog.String("error", err.Error()))
			} else {
				logMetrics(logger, rm)
			}
			if err := mp.Shutdown(ctx); err != nil {
				logger.Warn("meter shutdown failed", slog.String("error", err.Error()))
			}
		})
	}

	return func(ctx context.Context) {
		for _, fn := range shutdowns {
			fn(ctx)
		}
	}
}

// spanLogger is a SpanExporter that writes each finished span to a logger.
type spanLogger struct {
	logger *slog.Logger
}

func (e *spanLogger) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		attrs := []slog.Attr{
			slog.String("span", span.Name()),
			slog.String("trace_id", span.SpanContext().TraceID().String()),
			slog.Float64("duration_ms", float64(span.EndTime().Sub(span.StartTime()).Microseconds())/1000),
			slog.String("status", span.Status().Code.String()),
		}
		for _, kv := range span.Attributes() {
			attrs = append(attrs, slog.String(string(kv.Key), kv.Value.Emit()))
		}
		e.logger.LogAttrs(ctx, slog.LevelDebug, "span", attrs...)
	}
	return nil
}

func (e *spanLogger) Shutdown(context.Context) error { return nil }

// logMetrics logs one line per counter and histogram data point.
func logMetrics(logger *slog.Logger, rm metricdata.ResourceMetrics) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					logger.Info("metric", append(attrArgs(dp.Attributes),
						slog.String("name", m.Name),
						slog.Int64("value", dp.Value))...)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					logger.Info("metric", append(attrArgs(dp.Attributes),
						slog.String("name", m.Name),
						slog.Uint64("count", dp.Count),
						slog.Float64("sum", dp.Sum))...)
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					logger.Info("metric", append(attrArgs(dp.Attributes),
						slog.String("name", m.Name),
						slog.Uint64("count", dp.Count),
						slog.Int64("sum", dp.Sum))...)
				}
			}
		}
	}
}

func attrArgs(set attribute.Set) []any {
	out := make([]any, 0, set.Len()+3)
	for _, kv := range set.ToSlice() {
		out = append(out, slog.String(string(kv.Key), kv.Value.Emit()))
	}
	return out
}
