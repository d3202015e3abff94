// Package pipeline runs the catflow extract, transform and load stages.
//
// A run reads the three input tables, aborts if any is absent or empty,
// merges them and writes the enriched table in every configured format.
// Each stage is timed, traced and logged, recovers from panics, and leaves
// a report in the configured report.Store.
//
// Example:
//
//	p, err := pipeline.New(settings,
//	    pipeline.WithLogger(logger),
//	    pipeline.WithReportStore(store))
//	if err != nil {
//	    return err
//	}
//	run, err := p.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(run.ID, run.State.Result.Summary.UnresolvedItems)
package pipeline

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/catflow/pkg/catflow"
	"github.com/randalmurphal/catflow/pkg/catflow/config"
	"github.com/randalmurphal/catflow/pkg/catflow/extract"
	"github.com/randalmurphal/catflow/pkg/catflow/load"
	"github.com/randalmurphal/catflow/pkg/catflow/observability"
	"github.com/randalmurphal/catflow/pkg/catflow/report"
)

// Stage names.
const (
	StageExtract   = "extract"
	StageTransform = "transform"
	StageLoad      = "load"
)

// State is carried from stage to stage.
type State struct {
	Tables extract.Tables
	Result *catflow.Result
	Load   load.Result
}

// StageFunc runs one stage. It reads and updates st and may add details
// to rep, whose status, duration and error are filled in by the pipeline.
type StageFunc func(ctx Context, st *State, rep *report.Report) error

// Stage is a named step of the pipeline.
type Stage struct {
	Name string
	Run  StageFunc
}

// Run is the outcome of Pipeline.Run.
type Run struct {
	ID string
	// State is the state after the last stage that ran. On failure it
	// holds whatever the completed stages produced.
	State *State
	// Stages counts the stages that completed.
	Stages   int
	Duration time.Duration
}

// Pipeline runs the stages for one set of Settings.
type Pipeline struct {
	settings config.Settings
	stages   []Stage
	cfg      pipelineConfig
}

// New validates s and builds the extract, transform and load pipeline.
func New(s config.Settings, opts ...Option) (*Pipeline, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	cfg := pipelineConfig{
		name:           DefaultName,
		metricsEnabled: s.Metrics,
		tracingEnabled: s.Tracing,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.metrics = observability.NoopMetrics{}
	if cfg.metricsEnabled {
		cfg.metrics = observability.NewMetricsRecorder()
	}
	cfg.spans = observability.NoopSpanManager{}
	if cfg.tracingEnabled {
		cfg.spans = observability.NewSpanManager()
	}

	p := &Pipeline{settings: s, cfg: cfg}
	p.stages = []Stage{
		{Name: StageExtract, Run: p.extract},
		{Name: StageTransform, Run: p.transform},
		{Name: StageLoad, Run: p.load},
	}
	return p, nil
}

// Stages returns the stage names in run order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Run executes every stage in order and stops at the first failure.
//
// The returned Run is never nil once ctx is valid. Errors are:
//   - *StageError wrapping the stage's error; a missing input surfaces as
//     a StageError for extract that matches catflow.ErrMissingInput
//   - *PanicError if a stage panicked
//   - *CancellationError if ctx was cancelled or Settings.Timeout elapsed
func (p *Pipeline) Run(ctx context.Context) (run *Run, runErr error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if p.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.settings.Timeout)
		defer cancel()
	}

	runID := p.cfg.runID
	if runID == "" {
		runID = uuid.New().String()
	}

	start := time.Now()
	observability.LogRunStart(p.cfg.logger, runID)

	spanCtx, runSpan := p.cfg.spans.StartRunSpan(ctx, p.cfg.name, runID)
	defer func() {
		p.cfg.spans.EndSpanWithError(runSpan, runErr)
	}()

	rc := newRunContext(spanCtx, p.cfg.logger, runID)
	run = &Run{ID: runID, State: &State{}}

	lastStage := ""
	for _, stage := range p.stages {
		lastStage = stage.Name
		if runErr = p.runStage(rc, stage, run.State); runErr != nil {
			break
		}
		run.Stages++
	}

	run.Duration = time.Since(start)
	durationMs := float64(run.Duration) / float64(time.Millisecond)
	p.cfg.metrics.RecordRun(spanCtx, runErr == nil, run.Duration)
	if runErr != nil {
		observability.LogRunError(p.cfg.logger, runID, runErr, durationMs, lastStage)
	} else {
		observability.LogRunComplete(p.cfg.logger, runID, durationMs, run.Stages)
	}
	return run, runErr
}

// runStage executes one stage with tracing, metrics, logging and a report.
func (p *Pipeline) runStage(rc *runContext, stage Stage, st *State) error {
	if err := rc.Err(); err != nil {
		return &CancellationError{Stage: stage.Name, Cause: err}
	}

	stageCtx, span := p.cfg.spans.StartStageSpan(rc, stage.Name)
	sc := rc.forStage(stageCtx, stage.Name)
	observability.LogStageStart(sc.logger, stage.Name)

	rep := report.New(rc.runID, stage.Name, report.StatusOK)
	rep.Pipeline = p.cfg.name

	start := time.Now()
	err := p.executeStage(sc, stage, st, rep)
	duration := time.Since(start)

	p.cfg.metrics.RecordStage(stageCtx, stage.Name, duration, err)
	p.cfg.spans.EndSpanWithError(span, err)

	rep.Status = statusFor(err)
	rep.WithDuration(duration).WithError(err)
	p.saveReport(sc, rep)

	if err != nil {
		observability.LogStageError(sc.logger, stage.Name, err)
		return err
	}
	observability.LogStageComplete(sc.logger, stage.Name, float64(duration)/float64(time.Millisecond))
	return nil
}

// executeStage runs the stage with panic recovery and classifies its error.
func (p *Pipeline) executeStage(sc *runContext, stage Stage, st *State, rep *report.Report) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Stage: stage.Name,
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	if err := stage.Run(sc, st, rep); err != nil {
		if ctxErr := sc.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return &CancellationError{Stage: stage.Name, Cause: ctxErr, WasExecuting: true}
		}
		return &StageError{Stage: stage.Name, Err: err}
	}
	return nil
}

// saveReport persists rep. Failures are logged, never returned.
func (p *Pipeline) saveReport(sc *runContext, rep *report.Report) {
	if p.cfg.reports == nil {
		return
	}
	if err := p.cfg.reports.Save(rep); err != nil {
		observability.LogReportError(sc.logger, rep.Stage, err)
		return
	}
	if data, err := rep.Marshal(); err == nil {
		p.cfg.metrics.RecordReport(sc, rep.Stage, int64(len(data)))
	}
}

func statusFor(err error) report.Status {
	var cancelled *CancellationError
	switch {
	case err == nil:
		return report.StatusOK
	case errors.As(err, &cancelled):
		return report.StatusCancelled
	case errors.Is(err, catflow.ErrMissingInput):
		return report.StatusAborted
	default:
		return report.StatusFailed
	}
}
