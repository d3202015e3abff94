// Package extract reads the three catflow input tables from CSV files.
//
// A missing file is not an error: the table comes back nil and the caller
// decides whether it was required. A file that exists but cannot be read
// or lacks a required column fails with *FileError.
package extract

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/randalmurphal/catflow/pkg/catflow"
	"github.com/randalmurphal/catflow/pkg/catflow/category"
	"github.com/randalmurphal/catflow/pkg/catflow/config"
	"github.com/randalmurphal/catflow/pkg/catflow/itemindex"
	"github.com/randalmurphal/catflow/pkg/catflow/observability"
	"golang.org/x/sync/errgroup"
)

// cancelCheckEvery is how many rows are read between context checks.
const cancelCheckEvery = 4096

// Tables holds the extracted inputs. A nil field means the file was absent.
type Tables struct {
	Events *catflow.EventTable
	Items  []itemindex.Mapping
	Nodes  []category.Node
}

// Paths names the three input files.
type Paths struct {
	Events     string
	Items      string
	Categories string
}

// Reader reads input tables with a fixed column layout.
type Reader struct {
	columns config.Columns
	logger  *slog.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger logs a line per table read. Default: no logging.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

// NewReader returns a Reader for the given column names.
func NewReader(columns config.Columns, opts ...Option) *Reader {
	r := &Reader{columns: columns}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadAll reads the three tables concurrently.
func (r *Reader) ReadAll(ctx context.Context, paths Paths) (Tables, error) {
	var t Tables
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events, err := r.Events(gctx, paths.Events)
		t.Events = events
		return err
	})
	g.Go(func() error {
		items, err := r.Items(gctx, paths.Items)
		t.Items = items
		return err
	})
	g.Go(func() error {
		nodes, err := r.Categories(gctx, paths.Categories)
		t.Nodes = nodes
		return err
	})
	if err := g.Wait(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

// Events reads the events table. Every column is kept in
// EventTable.Columns; the configured timestamp, user, event type and item
// columns are also parsed into the typed Event fields. Only the item column
// is required. An unparseable timestamp leaves Event.Timestamp zero and the
// raw value in Fields.
func (r *Reader) Events(ctx context.Context, path string) (*catflow.EventTable, error) {
	const table = catflow.TableEvents
	cols := r.columns.Events

	var (
		out                              *catflow.EventTable
		badStamps                        int
		tsCol, userCol, typeCol, itemCol int
	)
	found, err := r.readCSV(ctx, table, path, func(header []string) error {
		idx := indexHeader(header)
		var err error
		if itemCol, err = requireColumn(idx, cols.Item); err != nil {
			return err
		}
		tsCol = lookupColumn(idx, cols.Timestamp)
		userCol = lookupColumn(idx, cols.User)
		typeCol = lookupColumn(idx, cols.EventType)
		out = &catflow.EventTable{Columns: header}
		return nil
	}, func(rec []string) {
		ev := catflow.Event{
			Index:  len(out.Events),
			UserID: field(rec, userCol),
			Type:   field(rec, typeCol),
			ItemID: field(rec, itemCol),
			Fields: rec,
		}
		if raw := field(rec, tsCol); raw != "" {
			ts, err := ParseTimestamp(raw)
			if err != nil {
				badStamps++
			} else {
				ev.Timestamp = ts
			}
		}
		out.Events = append(out.Events, ev)
	})
	if err != nil || !found {
		return nil, err
	}
	if badStamps > 0 && r.logger != nil {
		r.logger.Warn("unparsed timestamps",
			slog.String("table", table),
			slog.String("path", path),
			slog.Int("rows", badStamps),
		)
	}
	observability.LogTableLoaded(r.logger, table, path, out.Len())
	return out, nil
}

// Items reads the item to category table.
func (r *Reader) Items(ctx context.Context, path string) ([]itemindex.Mapping, error) {
	const table = catflow.TableItems
	cols := r.columns.Items

	var (
		out                  []itemindex.Mapping
		itemCol, categoryCol int
	)
	found, err := r.readCSV(ctx, table, path, func(header []string) error {
		idx := indexHeader(header)
		var err error
		if itemCol, err = requireColumn(idx, cols.Item); err != nil {
			return err
		}
		categoryCol, err = requireColumn(idx, cols.Category)
		return err
	}, func(rec []string) {
		out = append(out, itemindex.Mapping{
			ItemID:     field(rec, itemCol),
			CategoryID: field(rec, categoryCol),
		})
	})
	if err != nil || !found {
		return nil, err
	}
	observability.LogTableLoaded(r.logger, table, path, len(out))
	if out == nil {
		out = []itemindex.Mapping{}
	}
	return out, nil
}

// Categories reads the category tree. An empty parent marks a root.
func (r *Reader) Categories(ctx context.Context, path string) ([]category.Node, error) {
	const table = catflow.TableCategories
	cols := r.columns.Tree

	var (
		out                    []category.Node
		categoryCol, parentCol int
	)
	found, err := r.readCSV(ctx, table, path, func(header []string) error {
		idx := indexHeader(header)
		var err error
		if categoryCol, err = requireColumn(idx, cols.Category); err != nil {
			return err
		}
		parentCol, err = requireColumn(idx, cols.Parent)
		return err
	}, func(rec []string) {
		out = append(out, category.Node{
			ID:       field(rec, categoryCol),
			ParentID: field(rec, parentCol),
		})
	})
	if err != nil || !found {
		return nil, err
	}
	observability.LogTableLoaded(r.logger, table, path, len(out))
	if out == nil {
		out = []category.Node{}
	}
	return out, nil
}

// readCSV streams path through onHeader and onRow. found is false when the
// file does not exist.
func (r *Reader) readCSV(ctx context.Context, table, path string, onHeader func([]string) error, onRow func([]string)) (found bool, err error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		observability.LogTableMissing(r.logger, table, path)
		return false, nil
	}
	if err != nil {
		return false, &FileError{Table: table, Path: path, Err: err}
	}
	defer f.Close()

	if r.logger != nil {
		r.logger.Debug("reading table", slog.String("table", table), slog.String("path", path))
	}

	cr := csv.NewReader(bufio.NewReader(f))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return true, &FileError{Table: table, Path: path, Err: errors.New("no header row")}
	}
	if err != nil {
		return true, &FileError{Table: table, Path: path, Line: 1, Err: err}
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if err := onHeader(header); err != nil {
		return true, &FileError{Table: table, Path: path, Line: 1, Err: err}
	}

	for n := 0; ; n++ {
		if n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return true, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		if err != nil {
			// *csv.ParseError carries its own line number.
			return true, &FileError{Table: table, Path: path, Err: err}
		}
		onRow(rec)
	}
}

func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return idx
}

func requireColumn(idx map[string]int, name string) (int, error) {
	i, ok := idx[name]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrMissingColumn, name)
	}
	return i, nil
}

// lookupColumn returns -1 for an unnamed or absent optional column.
func lookupColumn(idx map[string]int, name string) int {
	if name == "" {
		return -1
	}
	if i, ok := idx[name]; ok {
		return i
	}
	return -1
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
