package load

import (
	"bufio"
	"context"
	"encoding/csv"

	"github.com/randalmurphal/catflow/pkg/catflow"
)

// CSVSink writes the table as CSV with a header row. Unresolved values are
// empty cells and ancestor paths are joined with the table's separator.
type CSVSink struct {
	path string
}

// NewCSVSink returns a CSVSink writing to path.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Format implements Sink.
func (s *CSVSink) Format() string { return FormatCSV }

// Path implements Sink.
func (s *CSVSink) Path() string { return s.path }

// Write implements Sink.
func (s *CSVSink) Write(ctx context.Context, table *catflow.EnrichedTable) error {
	err := writeAtomic(s.path, func(bw *bufio.Writer) error {
		w := csv.NewWriter(bw)
		if err := w.Write(table.Header()); err != nil {
			return err
		}
		for i := 0; i < table.Len(); i++ {
			if i%cancelCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			if err := w.Write(table.Record(i)); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return &SinkError{Format: FormatCSV, Path: s.path, Err: err}
	}
	return nil
}
