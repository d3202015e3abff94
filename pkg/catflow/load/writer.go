package load

import (
	"context"
	"errors"
	"log/slog"

	"github.com/randalmurphal/catflow/pkg/catflow"
	"github.com/randalmurphal/catflow/pkg/catflow/observability"
)

// Output describes one written destination.
type Output struct {
	Format string `json:"format"`
	Path   string `json:"path"`
	Rows   int    `json:"rows"`
}

// Result is the outcome of Writer.Write.
type Result struct {
	// Outputs lists the destinations written successfully, primary first.
	Outputs []Output
	// Warnings joins the secondary sink failures, or is nil.
	Warnings error
}

// Writer writes a table to a primary sink and optional secondary sinks.
type Writer struct {
	primary   Sink
	secondary []Sink
	logger    *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithSecondary adds sinks whose failures do not fail the write.
func WithSecondary(sinks ...Sink) WriterOption {
	return func(w *Writer) {
		w.secondary = append(w.secondary, sinks...)
	}
}

// WithLogger logs each written output and each secondary failure.
func WithLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// NewWriter returns a Writer with primary as the required output.
func NewWriter(primary Sink, opts ...WriterOption) *Writer {
	w := &Writer{primary: primary}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ForFormats builds a Writer from format names. The first format is the
// primary output; path maps a format to its destination.
func ForFormats(formats []string, path func(format string) string, opts ...WriterOption) (*Writer, error) {
	if len(formats) == 0 {
		return nil, errors.New("no output format")
	}
	sinks := make([]Sink, 0, len(formats))
	for _, f := range formats {
		s, err := New(f, path(f))
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return NewWriter(sinks[0], append([]WriterOption{WithSecondary(sinks[1:]...)}, opts...)...), nil
}

// Sinks returns the primary sink followed by the secondary sinks.
func (w *Writer) Sinks() []Sink {
	return append([]Sink{w.primary}, w.secondary...)
}

// Write writes table to every sink in order. A primary failure is returned
// as the error and no secondary sink is attempted. Secondary failures are
// collected in Result.Warnings and do not stop the remaining sinks.
func (w *Writer) Write(ctx context.Context, table *catflow.EnrichedTable) (Result, error) {
	var res Result
	rows := table.Len()

	if err := w.primary.Write(ctx, table); err != nil {
		observability.LogOutputError(w.logger, w.primary.Format(), w.primary.Path(), err)
		return res, err
	}
	observability.LogOutputWritten(w.logger, w.primary.Format(), w.primary.Path(), rows)
	res.Outputs = append(res.Outputs, Output{Format: w.primary.Format(), Path: w.primary.Path(), Rows: rows})

	var errs []error
	for _, s := range w.secondary {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.Write(ctx, table); err != nil {
			observability.LogOutputError(w.logger, s.Format(), s.Path(), err)
			errs = append(errs, err)
			continue
		}
		observability.LogOutputWritten(w.logger, s.Format(), s.Path(), rows)
		res.Outputs = append(res.Outputs, Output{Format: s.Format(), Path: s.Path(), Rows: rows})
	}
	res.Warnings = errors.Join(errs...)
	return res, nil
}
