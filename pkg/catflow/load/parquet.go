package load

import (
	"bufio"
	"context"
	"fmt"

	"github.com/parquet-go/parquet-go"
	"github.com/randalmurphal/catflow/pkg/catflow"
)

// ParquetSink writes the enriched table as a single Parquet file.
//
// Event columns are required strings. category_id, root_category_id and
// depth are optional and null when unresolved; ancestor_path is a
// repeated string, empty when unresolved. Column names are made unique
// the way SQLiteSink does it.
type ParquetSink struct {
	path string
}

// NewParquetSink returns a ParquetSink writing to path.
func NewParquetSink(path string) *ParquetSink {
	return &ParquetSink{path: path}
}

// Format implements Sink.
func (s *ParquetSink) Format() string { return FormatParquet }

// Path implements Sink.
func (s *ParquetSink) Path() string { return s.path }

// Write implements Sink.
func (s *ParquetSink) Write(ctx context.Context, table *catflow.EnrichedTable) error {
	columns := uniqueColumns(table.Header())
	eventCols := len(columns) - len(catflow.EnrichmentColumns)
	schema, leaves, err := parquetSchema(columns, eventCols)
	if err != nil {
		return &SinkError{Format: FormatParquet, Path: s.path, Err: err}
	}

	err = writeAtomic(s.path, func(w *bufio.Writer) error {
		pw := parquet.NewWriter(w, schema)
		// Values of a row are grouped by column index, which follows the
		// schema's sorted field order rather than the header order.
		byColumn := make([][]parquet.Value, len(columns))
		order := columnOrder(leaves)
		rows := make([]parquet.Row, 1)
		for i := 0; i < table.Len(); i++ {
			if i%cancelCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			row := &table.Rows[i]
			rec := table.Record(i)

			for c := 0; c < eventCols; c++ {
				byColumn[c] = append(byColumn[c][:0], parquet.ValueOf(rec[c]).Level(0, 0, leaves[c]))
			}
			byColumn[eventCols] = optionalString(byColumn[eventCols][:0], row.CategoryID, leaves[eventCols])
			byColumn[eventCols+1] = optionalString(byColumn[eventCols+1][:0], row.RootCategoryID, leaves[eventCols+1])
			if row.Depth == catflow.UnresolvedDepth {
				byColumn[eventCols+2] = append(byColumn[eventCols+2][:0], parquet.NullValue().Level(0, 0, leaves[eventCols+2]))
			} else {
				byColumn[eventCols+2] = append(byColumn[eventCols+2][:0], parquet.Int64Value(int64(row.Depth)).Level(0, 1, leaves[eventCols+2]))
			}
			byColumn[eventCols+3] = repeatedString(byColumn[eventCols+3][:0], row.AncestorPath, leaves[eventCols+3])
			byColumn[eventCols+4] = append(byColumn[eventCols+4][:0], parquet.ValueOf(row.Status.String()).Level(0, 0, leaves[eventCols+4]))

			out := rows[0][:0]
			for _, c := range order {
				out = append(out, byColumn[c]...)
			}
			rows[0] = out
			if _, err := pw.WriteRows(rows); err != nil {
				return fmt.Errorf("write row %d: %w", i, err)
			}
		}
		if err := pw.Close(); err != nil {
			return fmt.Errorf("close parquet writer: %w", err)
		}
		return nil
	})
	if err != nil {
		return &SinkError{Format: FormatParquet, Path: s.path, Err: err}
	}
	return nil
}

// parquetSchema builds the enriched_events schema for columns and returns
// the leaf column index of each header position.
func parquetSchema(columns []string, eventCols int) (*parquet.Schema, []int, error) {
	group := make(parquet.Group, len(columns))
	for c := 0; c < eventCols; c++ {
		group[columns[c]] = parquet.String()
	}
	group[columns[eventCols]] = parquet.Optional(parquet.String())
	group[columns[eventCols+1]] = parquet.Optional(parquet.String())
	group[columns[eventCols+2]] = parquet.Optional(parquet.Int(64))
	group[columns[eventCols+3]] = parquet.Repeated(parquet.String())
	group[columns[eventCols+4]] = parquet.String()

	schema := parquet.NewSchema(TableName, group)
	leaves := make([]int, len(columns))
	for i, name := range columns {
		leaf, ok := schema.Lookup(name)
		if !ok {
			return nil, nil, fmt.Errorf("schema has no column %q", name)
		}
		leaves[i] = leaf.ColumnIndex
	}
	return schema, leaves, nil
}

// columnOrder returns header positions sorted by leaf column index.
func columnOrder(leaves []int) []int {
	order := make([]int, len(leaves))
	for pos, leaf := range leaves {
		order[leaf] = pos
	}
	return order
}

func optionalString(dst []parquet.Value, s string, column int) []parquet.Value {
	if s == "" {
		return append(dst, parquet.NullValue().Level(0, 0, column))
	}
	return append(dst, parquet.ValueOf(s).Level(0, 1, column))
}

// repeatedString encodes an empty list as a single null at definition
// level 0; later elements of a list carry repetition level 1.
func repeatedString(dst []parquet.Value, values []string, column int) []parquet.Value {
	if len(values) == 0 {
		return append(dst, parquet.NullValue().Level(0, 0, column))
	}
	for i, v := range values {
		rep := 0
		if i > 0 {
			rep = 1
		}
		dst = append(dst, parquet.ValueOf(v).Level(rep, 1, column))
	}
	return dst
}
