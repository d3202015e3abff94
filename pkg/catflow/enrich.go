package catflow

import (
	"github.com/randalmurphal/catflow/pkg/catflow/category"
	"github.com/randalmurphal/catflow/pkg/catflow/itemindex"
)

// Enrich attaches category context to ev.
//
// An unknown item yields StatusUnresolvedItem with every enrichment field
// unresolved. A category on a cycle yields StatusCyclicCategory; the
// resolver has already recorded the warning. A category absent from the
// tree yields StatusUnresolvedCategory with the category as its own root.
// The event is always returned; nothing is dropped.
//
// Given the same event and the same built indexes, Enrich always returns
// the same result.
func Enrich(ev Event, items *itemindex.Index, tree *category.Resolver) EnrichedEvent {
	out := EnrichedEvent{Event: ev, Depth: UnresolvedDepth}

	categoryID, ok := items.Lookup(ev.ItemID)
	if !ok {
		out.Status = StatusUnresolvedItem
		return out
	}
	out.CategoryID = categoryID

	resolved, err := tree.Resolve(categoryID)
	if err != nil {
		// Resolve fails only with *category.CyclicCategoryError.
		out.Status = StatusCyclicCategory
		return out
	}

	out.RootCategoryID = resolved.RootID
	out.Depth = resolved.Depth
	out.AncestorPath = resolved.Path
	if resolved.Status == category.StatusMissing {
		out.Status = StatusUnresolvedCategory
	} else {
		out.Status = StatusResolved
	}
	return out
}

// Enricher binds the indexes built for one merge.
type Enricher struct {
	items *itemindex.Index
	tree  *category.Resolver
}

// NewEnricher returns an Enricher over the given indexes.
func NewEnricher(items *itemindex.Index, tree *category.Resolver) *Enricher {
	return &Enricher{items: items, tree: tree}
}

// Enrich is the method form of the package-level Enrich.
func (e *Enricher) Enrich(ev Event) EnrichedEvent {
	return Enrich(ev, e.items, e.tree)
}
