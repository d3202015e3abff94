package extract

import (
	"errors"
	"fmt"
)

// ErrMissingColumn is returned when a header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// FileError reports an input file that exists but could not be read.
type FileError struct {
	Table string
	Path  string
	// Line is the 1-based line of the failure, or 0 when not line specific.
	Line int
	Err  error
}

// Error implements the error interface.
func (e *FileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("extract %s from %s: line %d: %v", e.Table, e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("extract %s from %s: %v", e.Table, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FileError) Unwrap() error {
	return e.Err
}
