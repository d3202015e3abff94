package load

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/randalmurphal/catflow/pkg/catflow"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// TableName is the table SQLiteSink writes.
const TableName = "enriched_events"

// SQLiteSink writes the table into a SQLite database, replacing any
// previous enriched_events table. Event columns are TEXT; depth is an
// INTEGER; unresolved values are NULL.
type SQLiteSink struct {
	path string
}

// NewSQLiteSink returns a SQLiteSink writing to the database at path.
func NewSQLiteSink(path string) *SQLiteSink {
	return &SQLiteSink{path: path}
}

// Format implements Sink.
func (s *SQLiteSink) Format() string { return FormatSQLite }

// Path implements Sink.
func (s *SQLiteSink) Path() string { return s.path }

// Write implements Sink. All rows are inserted in one transaction.
func (s *SQLiteSink) Write(ctx context.Context, table *catflow.EnrichedTable) error {
	if err := s.write(ctx, table); err != nil {
		return &SinkError{Format: FormatSQLite, Path: s.path, Err: err}
	}
	return nil
}

func (s *SQLiteSink) write(ctx context.Context, table *catflow.EnrichedTable) error {
	if s.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	columns := uniqueColumns(table.Header(), "row_index")
	eventCols := len(columns) - len(catflow.EnrichmentColumns)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+TableName); err != nil {
		return fmt.Errorf("drop table: %w", err)
	}

	defs := make([]string, 0, len(columns)+1)
	defs = append(defs, "row_index INTEGER PRIMARY KEY")
	for i, c := range columns {
		typ := "TEXT"
		if i == eventCols+2 {
			typ = "INTEGER"
		}
		defs = append(defs, quoteIdent(c)+" "+typ)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", TableName, strings.Join(defs, ", "))); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	names := make([]string, 0, len(columns)+1)
	names = append(names, "row_index")
	for _, c := range columns {
		names = append(names, quoteIdent(c))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		TableName, strings.Join(names, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(names))
	for i := 0; i < table.Len(); i++ {
		row := &table.Rows[i]
		rec := table.Record(i)

		args[0] = i
		for c := 0; c < eventCols; c++ {
			args[c+1] = rec[c]
		}
		args[eventCols+1] = nullable(row.CategoryID)
		args[eventCols+2] = nullable(row.RootCategoryID)
		if row.Depth == catflow.UnresolvedDepth {
			args[eventCols+3] = nil
		} else {
			args[eventCols+3] = row.Depth
		}
		args[eventCols+4] = nullable(rec[eventCols+3])
		args[eventCols+5] = row.Status.String()

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
