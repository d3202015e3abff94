package catflow

import (
	"errors"
	"fmt"
)

// Input table names used in MissingInputError and in logs.
const (
	TableEvents     = "events"
	TableItems      = "item_categories"
	TableCategories = "category_tree"
)

// ErrMissingInput is the sentinel matched by every MissingInputError.
var ErrMissingInput = errors.New("missing required input")

// MissingInputError reports a required input table that is absent or empty.
// It is the only condition that fails a merge.
type MissingInputError struct {
	// Table is one of TableEvents, TableItems or TableCategories.
	Table string
}

// Error implements the error interface.
func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing required input: %s table is absent or empty", e.Table)
}

// Unwrap returns ErrMissingInput for errors.Is support.
func (e *MissingInputError) Unwrap() error {
	return ErrMissingInput
}
