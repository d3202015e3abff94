package load

import (
	"bufio"
	"context"
	"encoding/json"
	"strconv"

	"github.com/randalmurphal/catflow/pkg/catflow"
)

// JSONLSink writes one JSON object per row, keys in header order.
//
// Event columns are strings. Enrichment values are typed: unresolved
// category and root identifiers and depth are null, ancestor_path is an
// array.
type JSONLSink struct {
	path string
}

// NewJSONLSink returns a JSONLSink writing to path.
func NewJSONLSink(path string) *JSONLSink {
	return &JSONLSink{path: path}
}

// Format implements Sink.
func (s *JSONLSink) Format() string { return FormatJSONL }

// Path implements Sink.
func (s *JSONLSink) Path() string { return s.path }

// Write implements Sink.
func (s *JSONLSink) Write(ctx context.Context, table *catflow.EnrichedTable) error {
	header := table.Header()
	keys := make([][]byte, len(header))
	for i, name := range header {
		keys[i] = appendString(nil, name)
	}
	eventCols := len(header) - len(catflow.EnrichmentColumns)

	err := writeAtomic(s.path, func(w *bufio.Writer) error {
		var line []byte
		for i := 0; i < table.Len(); i++ {
			if i%cancelCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			row := &table.Rows[i]
			rec := table.Record(i)

			line = append(line[:0], '{')
			for c := 0; c < eventCols; c++ {
				line = appendKey(line, keys[c], c)
				line = appendString(line, rec[c])
			}
			line = appendKey(line, keys[eventCols], eventCols)
			line = appendNullableString(line, row.CategoryID)
			line = appendKey(line, keys[eventCols+1], eventCols+1)
			line = appendNullableString(line, row.RootCategoryID)
			line = appendKey(line, keys[eventCols+2], eventCols+2)
			if row.Depth == catflow.UnresolvedDepth {
				line = append(line, "null"...)
			} else {
				line = strconv.AppendInt(line, int64(row.Depth), 10)
			}
			line = appendKey(line, keys[eventCols+3], eventCols+3)
			line = appendStrings(line, row.AncestorPath)
			line = appendKey(line, keys[eventCols+4], eventCols+4)
			line = appendString(line, row.Status.String())
			line = append(line, '}', '\n')

			if _, err := w.Write(line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &SinkError{Format: FormatJSONL, Path: s.path, Err: err}
	}
	return nil
}

func appendKey(dst, key []byte, i int) []byte {
	if i > 0 {
		dst = append(dst, ',')
	}
	dst = append(dst, key...)
	return append(dst, ':')
}

// appendString appends s as a JSON string. Marshalling a string never fails.
func appendString(dst []byte, s string) []byte {
	b, _ := json.Marshal(s)
	return append(dst, b...)
}

func appendNullableString(dst []byte, s string) []byte {
	if s == "" {
		return append(dst, "null"...)
	}
	return appendString(dst, s)
}

func appendStrings(dst []byte, ss []string) []byte {
	if ss == nil {
		return append(dst, "null"...)
	}
	dst = append(dst, '[')
	for i, s := range ss {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendString(dst, s)
	}
	return append(dst, ']')
}
