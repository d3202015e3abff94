package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest installs a test meter provider and returns a cleanup function.
func setupMetricsTest(t *testing.T) (*sdkmetric.ManualReader, func()) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	originalProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	cleanup := func() {
		otel.SetMeterProvider(originalProvider)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	}
	return reader, cleanup
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the sum of datapoints carrying attribute key=value.
func sumFor(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "Expected Sum type")

	var total int64
	for _, dp := range sum.DataPoints {
		v, ok := dp.Attributes.Value(attribute.Key(key))
		if ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestNewMetricsRecorder(t *testing.T) {
	_, cleanup := setupMetricsTest(t)
	defer cleanup()

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)

	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop, "Expected real metrics recorder, got noop")
}

func TestRecordStage(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordStage(ctx, "extract", 20*time.Millisecond, nil)
	m.RecordStage(ctx, "load", 10*time.Millisecond, errors.New("disk full"))

	rm := collectMetrics(t, reader)

	executions := findMetric(rm, "catflow.stage.executions")
	require.NotNil(t, executions)
	assert.Equal(t, int64(1), sumFor(t, executions, "stage", "extract"))
	assert.Equal(t, int64(1), sumFor(t, executions, "stage", "load"))

	stageErrors := findMetric(rm, "catflow.stage.errors")
	require.NotNil(t, stageErrors)
	assert.Equal(t, int64(0), sumFor(t, stageErrors, "stage", "extract"))
	assert.Equal(t, int64(1), sumFor(t, stageErrors, "stage", "load"))

	latency := findMetric(rm, "catflow.stage.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "Expected Histogram type")
	assert.NotEmpty(t, hist.DataPoints)
}

func TestRecordMerge(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordMerge(context.Background(), MergeCounts{
		Events:               10,
		Resolved:             7,
		UnresolvedItems:      2,
		UnresolvedCategories: 1,
		ItemConflicts:        3,
		Cycles:               1,
	}, 5*time.Millisecond)

	rm := collectMetrics(t, reader)

	events := findMetric(rm, "catflow.merge.events")
	require.NotNil(t, events)
	assert.Equal(t, int64(7), sumFor(t, events, "status", "resolved"))
	assert.Equal(t, int64(2), sumFor(t, events, "status", "unresolved_item"))
	assert.Equal(t, int64(1), sumFor(t, events, "status", "unresolved_category"))

	conflicts := findMetric(rm, "catflow.merge.item_conflicts")
	require.NotNil(t, conflicts)
	sum, ok := conflicts.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)

	require.NotNil(t, findMetric(rm, "catflow.merge.cycles"))
	require.NotNil(t, findMetric(rm, "catflow.merge.latency_ms"))
}

func TestRecordRunAndReport(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)
	ctx := context.Background()

	m.RecordRun(ctx, true, 100*time.Millisecond)
	m.RecordRun(ctx, false, 50*time.Millisecond)
	m.RecordReport(ctx, "transform", 512)

	rm := collectMetrics(t, reader)

	runs := findMetric(rm, "catflow.pipeline.runs")
	require.NotNil(t, runs)
	sum, ok := runs.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2, "success and failure are separate series")

	size := findMetric(rm, "catflow.report.size_bytes")
	require.NotNil(t, size)
	hist, ok := size.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, int64(512), hist.DataPoints[0].Sum)
}
