// Package load persists an enriched table.
//
// A Sink writes one output format. A Writer drives a primary sink, whose
// failure fails the load, and any number of secondary sinks, whose failures
// are logged and returned as warnings.
package load

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/catflow/pkg/catflow"
)

// Format names.
const (
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
	FormatSQLite  = "sqlite"
	FormatParquet = "parquet"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown output format")

// Sink writes an enriched table to one destination.
type Sink interface {
	// Format returns the format name, e.g. "csv".
	Format() string
	// Path returns the destination.
	Path() string
	// Write replaces the destination's content with table.
	Write(ctx context.Context, table *catflow.EnrichedTable) error
}

// New returns the sink for format writing to path.
func New(format, path string) (Sink, error) {
	switch format {
	case FormatCSV:
		return NewCSVSink(path), nil
	case FormatJSONL:
		return NewJSONLSink(path), nil
	case FormatSQLite:
		return NewSQLiteSink(path), nil
	case FormatParquet:
		return NewParquetSink(path), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// SinkError reports a failed write.
type SinkError struct {
	Format string
	Path   string
	Err    error
}

// Error implements the error interface.
func (e *SinkError) Error() string {
	return fmt.Sprintf("write %s output %s: %v", e.Format, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *SinkError) Unwrap() error {
	return e.Err
}
