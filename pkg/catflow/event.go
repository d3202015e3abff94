package catflow

import (
	"strconv"
	"strings"
	"time"
)

// UnresolvedDepth marks the depth of an event whose category hierarchy
// could not be determined.
const UnresolvedDepth = -1

// DefaultPathSeparator joins ancestor paths when rendering records.
const DefaultPathSeparator = ">"

// Enrichment column names appended to every output row.
const (
	ColumnCategoryID     = "category_id"
	ColumnRootCategoryID = "root_category_id"
	ColumnDepth          = "depth"
	ColumnAncestorPath   = "ancestor_path"
	ColumnStatus         = "category_status"
)

// EnrichmentColumns lists the appended columns in output order.
var EnrichmentColumns = []string{
	ColumnCategoryID,
	ColumnRootCategoryID,
	ColumnDepth,
	ColumnAncestorPath,
	ColumnStatus,
}

// TypedEventColumns names the columns rendered for a table that carries no
// raw columns of its own.
var TypedEventColumns = []string{"timestamp", "user_id", "event_type", "item_id"}

// Event is one user/item interaction.
type Event struct {
	// Index is the row position in the input table.
	Index     int
	Timestamp time.Time
	UserID    string
	Type      string
	ItemID    string
	// Fields holds the raw row values, aligned with EventTable.Columns.
	Fields []string
}

// EventTable is the events input: the original header plus typed rows.
type EventTable struct {
	Columns []string
	Events  []Event
}

// Len returns the number of events.
func (t EventTable) Len() int {
	return len(t.Events)
}

// Status is the enrichment outcome of one event.
type Status int

const (
	// StatusResolved means the item and its full category chain resolved.
	StatusResolved Status = iota

	// StatusUnresolvedItem means the item has no category mapping.
	StatusUnresolvedItem

	// StatusUnresolvedCategory means the mapped category is not in the tree.
	// The category is reported as its own root at depth 0.
	StatusUnresolvedCategory

	// StatusCyclicCategory means the mapped category sits on or below a
	// cycle in the tree.
	StatusCyclicCategory
)

// String returns the status name written to the category_status column.
func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusUnresolvedItem:
		return "unresolved_item"
	case StatusUnresolvedCategory:
		return "unresolved_category"
	case StatusCyclicCategory:
		return "cyclic_category"
	default:
		return "unknown"
	}
}

// MarshalText renders the status name in JSON and YAML.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EnrichedEvent is an Event plus its resolved category context.
type EnrichedEvent struct {
	Event

	CategoryID     string
	RootCategoryID string
	// Depth is UnresolvedDepth when the hierarchy is unknown.
	Depth int
	// AncestorPath runs from RootCategoryID to CategoryID. Shared with the
	// resolver cache; do not modify.
	AncestorPath []string
	Status       Status
}

// Resolved reports whether the event carries a fully resolved hierarchy.
func (e EnrichedEvent) Resolved() bool {
	return e.Status == StatusResolved
}

// EnrichedTable is the merge output: one row per input event, in input order.
type EnrichedTable struct {
	// Columns is the original events header.
	Columns []string
	Rows    []EnrichedEvent
	// PathSeparator joins AncestorPath in rendered records.
	// Empty means DefaultPathSeparator.
	PathSeparator string
}

// Len returns the number of rows.
func (t *EnrichedTable) Len() int {
	return len(t.Rows)
}

// Header returns the output column names: the original columns followed by
// EnrichmentColumns.
func (t *EnrichedTable) Header() []string {
	base := t.Columns
	if len(base) == 0 {
		base = TypedEventColumns
	}
	out := make([]string, 0, len(base)+len(EnrichmentColumns))
	out = append(out, base...)
	return append(out, EnrichmentColumns...)
}

// Record renders row i as strings aligned with Header. Unresolved values
// render as empty strings.
func (t *EnrichedTable) Record(i int) []string {
	row := t.Rows[i]
	out := make([]string, 0, len(t.Header()))

	if len(t.Columns) == 0 {
		ts := ""
		if !row.Timestamp.IsZero() {
			ts = strconv.FormatInt(row.Timestamp.UnixMilli(), 10)
		}
		out = append(out, ts, row.UserID, row.Type, row.ItemID)
	} else {
		for c := range t.Columns {
			if c < len(row.Fields) {
				out = append(out, row.Fields[c])
			} else {
				out = append(out, "")
			}
		}
	}

	depth := ""
	if row.Depth != UnresolvedDepth {
		depth = strconv.Itoa(row.Depth)
	}
	sep := t.PathSeparator
	if sep == "" {
		sep = DefaultPathSeparator
	}
	return append(out,
		row.CategoryID,
		row.RootCategoryID,
		depth,
		strings.Join(row.AncestorPath, sep),
		row.Status.String(),
	)
}
