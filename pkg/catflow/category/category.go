// Package category resolves category hierarchies from a flat parent/child table.
//
// A Resolver is built once from every Node of the tree and answers, for any
// category identifier, its root category, depth and ancestor path. Results
// are computed lazily by walking parent links and memoized for the lifetime
// of the Resolver, including every intermediate node touched by a walk.
//
// Data-quality problems are not errors:
//   - an identifier absent from the tree resolves to itself as an orphan root
//     with StatusMissing, and a WarningMissing is recorded once;
//   - a parent reference pointing outside the tree ends the walk at the last
//     known node, and a WarningOrphan is recorded once per dangling parent;
//   - a cycle fails only the affected categories with *CyclicCategoryError
//     and records one WarningCycle.
package category

import "fmt"

// Node is one row of the category tree.
type Node struct {
	// ID is the category identifier.
	ID string
	// ParentID is the parent category identifier. Empty marks a root.
	ParentID string
}

// IsRoot reports whether the node has no parent reference.
func (n Node) IsRoot() bool {
	return n.ParentID == ""
}

// Status describes how a category was resolved.
type Status int

const (
	// StatusResolved means the walk reached a root through known nodes.
	StatusResolved Status = iota

	// StatusMissing means the identifier is not in the tree. The category
	// is reported as its own root at depth 0.
	StatusMissing

	// StatusCyclic means the walk from this category never reaches a root.
	StatusCyclic
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusMissing:
		return "missing"
	case StatusCyclic:
		return "cyclic"
	default:
		return "unknown"
	}
}

// Resolved is the memoized hierarchy of one category.
//
// Path is shared with the resolver cache and with the paths of the
// category's descendants. It must not be modified.
type Resolved struct {
	CategoryID string
	RootID     string
	// Depth is the number of parent edges between RootID and CategoryID.
	Depth int
	// Path lists identifiers from RootID to CategoryID, inclusive.
	Path   []string
	Status Status
}

// OK reports whether the category resolved through known nodes.
func (r Resolved) OK() bool {
	return r.Status == StatusResolved
}

// WarningKind classifies a recorded tree warning.
type WarningKind int

const (
	// WarningMissing is recorded when an unknown identifier is resolved.
	WarningMissing WarningKind = iota

	// WarningOrphan is recorded when a node references an unknown parent.
	WarningOrphan

	// WarningCycle is recorded when a walk detects a cycle.
	WarningCycle

	// WarningDuplicate is recorded when the tree lists a node twice with
	// different parents. The first row wins.
	WarningDuplicate
)

// String returns the warning kind name.
func (k WarningKind) String() string {
	switch k {
	case WarningMissing:
		return "missing_category"
	case WarningOrphan:
		return "orphan_category"
	case WarningCycle:
		return "category_cycle"
	case WarningDuplicate:
		return "duplicate_category"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind name in JSON and YAML.
func (k WarningKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a kind name written by MarshalText.
func (k *WarningKind) UnmarshalText(text []byte) error {
	for _, kind := range []WarningKind{WarningMissing, WarningOrphan, WarningCycle, WarningDuplicate} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown warning kind %q", text)
}

// Warning is a data-quality finding recorded by the Resolver.
type Warning struct {
	Kind       WarningKind `json:"kind"`
	CategoryID string      `json:"category_id"`
	// Detail is the dangling parent, the repeated node or the ignored
	// parent, depending on Kind.
	Detail string `json:"detail,omitempty"`
}

// Stats summarizes resolver activity.
type Stats struct {
	Nodes       int
	Cached      int
	CacheHits   int64
	CacheMisses int64
	Missing     int
	Orphans     int
	Cycles      int
	Duplicates  int
}
