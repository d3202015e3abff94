package pipeline

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/catflow/pkg/catflow/observability"
)

// Context is passed to every stage. It extends context.Context with the
// run's identity and a logger already enriched with run_id and stage.
type Context interface {
	context.Context

	// Logger returns the stage logger. Never nil.
	Logger() *slog.Logger

	// RunID returns the identifier of the current run.
	RunID() string

	// Stage returns the name of the running stage.
	Stage() string
}

// runContext is the internal implementation of Context.
type runContext struct {
	context.Context

	logger *slog.Logger
	runID  string
	stage  string
}

func (c *runContext) Logger() *slog.Logger { return c.logger }
func (c *runContext) RunID() string        { return c.runID }
func (c *runContext) Stage() string        { return c.stage }

// newRunContext wraps ctx for a run. A nil logger discards output.
func newRunContext(ctx context.Context, logger *slog.Logger, runID string) *runContext {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &runContext{Context: ctx, logger: logger, runID: runID}
}

// forStage derives the context of one stage. spanCtx carries the stage
// span so work inside the stage nests under it.
func (c *runContext) forStage(spanCtx context.Context, stage string) *runContext {
	return &runContext{
		Context: spanCtx,
		logger:  observability.EnrichLogger(c.logger, c.runID, stage),
		runID:   c.runID,
		stage:   stage,
	}
}
