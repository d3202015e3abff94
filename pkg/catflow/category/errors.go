package category

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCyclicCategory is the sentinel matched by every CyclicCategoryError.
var ErrCyclicCategory = errors.New("cyclic category reference")

// CyclicCategoryError reports that walking parent links from CategoryID
// revisited a node instead of reaching a root.
//
// It is local to one resolution. Callers downgrade it to an unresolved
// marker; it never aborts a run.
type CyclicCategoryError struct {
	// CategoryID is the category whose resolution failed.
	CategoryID string
	// Repeated is the first identifier seen twice during the walk.
	Repeated string
	// Chain is the walk in visit order, ending just before the repeat.
	Chain []string
}

// Error implements the error interface.
func (e *CyclicCategoryError) Error() string {
	return fmt.Sprintf("category %s: cycle at %s (%s)", e.CategoryID, e.Repeated, strings.Join(e.Chain, " -> "))
}

// Unwrap returns ErrCyclicCategory for errors.Is support.
func (e *CyclicCategoryError) Unwrap() error {
	return ErrCyclicCategory
}
