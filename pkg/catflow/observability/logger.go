// Package observability provides structured logging, metrics, and tracing
// for catflow runs.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// MergeCounts carries the tallies of one merge for logging and metrics.
type MergeCounts struct {
	Events               int
	Resolved             int
	UnresolvedItems      int
	UnresolvedCategories int
	ItemConflicts        int
	Cycles               int
	MissingCategories    int
	OrphanCategories     int
}

// EnrichLogger adds run context to a logger.
// Returns a new logger with run_id and stage fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", "transform")
//	enriched.Info("doing work") // includes run_id, stage
func EnrichLogger(logger *slog.Logger, runID, stage string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("stage", stage),
	)
}

// LogRunStart logs the start of a pipeline run.
func LogRunStart(logger *slog.Logger, runID string) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run starting",
		slog.String("run_id", runID),
	)
}

// LogRunComplete logs successful pipeline completion.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, stageCount int) {
	if logger == nil {
		return
	}
	logger.Info("pipeline run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("stages_executed", stageCount),
	)
}

// LogRunError logs pipeline failure.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, lastStage string) {
	if logger == nil {
		return
	}
	logger.Error("pipeline run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_stage", lastStage),
	)
}

// LogStageStart logs stage execution start.
func LogStageStart(logger *slog.Logger, stage string) {
	if logger == nil {
		return
	}
	logger.Debug("stage starting",
		slog.String("stage", stage),
	)
}

// LogStageComplete logs successful stage completion.
func LogStageComplete(logger *slog.Logger, stage string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("stage completed",
		slog.String("stage", stage),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogStageError logs stage execution error.
func LogStageError(logger *slog.Logger, stage string, err error) {
	if logger == nil {
		return
	}
	logger.Error("stage failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

// LogTableLoaded logs the row count of an extracted table.
func LogTableLoaded(logger *slog.Logger, table, path string, rows int) {
	if logger == nil {
		return
	}
	logger.Info("table loaded",
		slog.String("table", table),
		slog.String("path", path),
		slog.Int("rows", rows),
	)
}

// LogTableMissing logs an input file that does not exist.
func LogTableMissing(logger *slog.Logger, table, path string) {
	if logger == nil {
		return
	}
	logger.Error("input file not found",
		slog.String("table", table),
		slog.String("path", path),
	)
}

// LogMergeSummary logs the data-quality tallies of a merge.
// Unresolved rows raise the level to warn.
func LogMergeSummary(logger *slog.Logger, c MergeCounts) {
	if logger == nil {
		return
	}
	level := slog.LevelInfo
	if c.UnresolvedItems > 0 || c.UnresolvedCategories > 0 || c.ItemConflicts > 0 || c.Cycles > 0 {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "merge summary",
		slog.Int("events", c.Events),
		slog.Int("resolved", c.Resolved),
		slog.Int("unresolved_items", c.UnresolvedItems),
		slog.Int("unresolved_categories", c.UnresolvedCategories),
		slog.Int("item_conflicts", c.ItemConflicts),
		slog.Int("cycles", c.Cycles),
		slog.Int("missing_categories", c.MissingCategories),
		slog.Int("orphan_categories", c.OrphanCategories),
	)
}

// LogOutputWritten logs a persisted output file.
func LogOutputWritten(logger *slog.Logger, format, path string, rows int) {
	if logger == nil {
		return
	}
	logger.Info("output written",
		slog.String("format", format),
		slog.String("path", path),
		slog.Int("rows", rows),
	)
}

// LogOutputError logs a failed secondary output (non-fatal).
func LogOutputError(logger *slog.Logger, format, path string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("output failed",
		slog.String("format", format),
		slog.String("path", path),
		slog.String("error", err.Error()),
	)
}

// LogReportError logs a run report persistence failure (non-fatal).
func LogReportError(logger *slog.Logger, stage string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("run report failed",
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
