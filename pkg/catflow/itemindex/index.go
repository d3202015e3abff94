// Package itemindex maps item identifiers to their primary category.
//
// The index is built in a single pass over the raw mapping table. The first
// row seen for an item wins; a later row assigning a different category is
// kept as a Conflict for reporting instead of overwriting the first. This
// keeps results reproducible for a given first occurrence, whatever order
// the remaining rows arrive in.
package itemindex

// Mapping is one row of the item-to-category table.
type Mapping struct {
	ItemID     string
	CategoryID string
}

// Conflict records a row that assigned a second category to an item.
type Conflict struct {
	ItemID              string `json:"item_id"`
	FirstCategory       string `json:"first_category"`
	ConflictingCategory string `json:"conflicting_category"`
	// Row is the zero-based position of the conflicting row.
	Row int `json:"row"`
}

// Index is a read-only item to category lookup.
// It is safe for concurrent reads once built.
type Index struct {
	categories map[string]string
	conflicts  []Conflict
}

// New builds an Index from the mapping rows.
// Rows with an empty item or category identifier are skipped.
func New(mappings []Mapping) *Index {
	idx := &Index{
		categories: make(map[string]string, len(mappings)),
	}

	for row, m := range mappings {
		if m.ItemID == "" || m.CategoryID == "" {
			continue
		}
		first, ok := idx.categories[m.ItemID]
		if !ok {
			idx.categories[m.ItemID] = m.CategoryID
			continue
		}
		if first != m.CategoryID {
			idx.conflicts = append(idx.conflicts, Conflict{
				ItemID:              m.ItemID,
				FirstCategory:       first,
				ConflictingCategory: m.CategoryID,
				Row:                 row,
			})
		}
	}
	return idx
}

// Lookup returns the category of itemID. ok is false when the item is
// unknown; that is an unresolved reference, not an error.
func (idx *Index) Lookup(itemID string) (categoryID string, ok bool) {
	categoryID, ok = idx.categories[itemID]
	return categoryID, ok
}

// Len returns the number of distinct items.
func (idx *Index) Len() int {
	return len(idx.categories)
}

// Conflicts returns the recorded conflicts in row order.
func (idx *Index) Conflicts() []Conflict {
	out := make([]Conflict, len(idx.conflicts))
	copy(out, idx.conflicts)
	return out
}

// CategoryIDs returns the distinct primary categories of itemIDs, in the
// order they are first referenced. Unknown items are skipped.
func (idx *Index) CategoryIDs(itemIDs []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, item := range itemIDs {
		c, ok := idx.categories[item]
		if !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
