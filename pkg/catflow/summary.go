package catflow

import (
	"github.com/randalmurphal/catflow/pkg/catflow/category"
	"github.com/randalmurphal/catflow/pkg/catflow/itemindex"
	"github.com/randalmurphal/catflow/pkg/catflow/observability"
)

// Summary reports the data-quality outcome of a merge. It is returned to
// the caller for logging or persistence; Merge keeps no global state.
type Summary struct {
	Events   int `json:"events"`
	Resolved int `json:"resolved"`
	// UnresolvedItems counts events whose item has no mapping, once per
	// occurrence.
	UnresolvedItems int `json:"unresolved_items"`
	// UnresolvedCategories counts events whose category is missing from
	// the tree or cyclic, once per occurrence.
	UnresolvedCategories int `json:"unresolved_categories"`
	// ItemConflicts counts mapping rows that disagreed with the first
	// category recorded for their item.
	ItemConflicts int `json:"item_conflicts"`
	// Cycles counts cycles detected in the category tree.
	Cycles int `json:"cycles"`
	// MissingCategories and OrphanCategories count distinct identifiers.
	MissingCategories int `json:"missing_categories"`
	OrphanCategories  int `json:"orphan_categories"`

	Conflicts []itemindex.Conflict `json:"conflicts,omitempty"`
	Warnings  []category.Warning   `json:"warnings,omitempty"`
}

// Clean reports whether every event resolved and no conflict or cycle was seen.
func (s Summary) Clean() bool {
	return s.UnresolvedItems == 0 && s.UnresolvedCategories == 0 && s.ItemConflicts == 0 && s.Cycles == 0
}

// Counts converts the summary for the observability helpers.
func (s Summary) Counts() observability.MergeCounts {
	return observability.MergeCounts{
		Events:               s.Events,
		Resolved:             s.Resolved,
		UnresolvedItems:      s.UnresolvedItems,
		UnresolvedCategories: s.UnresolvedCategories,
		ItemConflicts:        s.ItemConflicts,
		Cycles:               s.Cycles,
		MissingCategories:    s.MissingCategories,
		OrphanCategories:     s.OrphanCategories,
	}
}

// summarize tallies the enriched rows and the indexes' findings.
func summarize(rows []EnrichedEvent, items *itemindex.Index, tree *category.Resolver) Summary {
	s := Summary{Events: len(rows)}
	for i := range rows {
		switch rows[i].Status {
		case StatusResolved:
			s.Resolved++
		case StatusUnresolvedItem:
			s.UnresolvedItems++
		case StatusUnresolvedCategory, StatusCyclicCategory:
			s.UnresolvedCategories++
		}
	}

	stats := tree.Stats()
	s.Cycles = stats.Cycles
	s.MissingCategories = stats.Missing
	s.OrphanCategories = stats.Orphans

	s.Conflicts = items.Conflicts()
	s.ItemConflicts = len(s.Conflicts)
	s.Warnings = tree.Warnings()
	return s
}
