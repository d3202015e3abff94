package catflow

import (
	"testing"

	"github.com/randalmurphal/catflow/pkg/catflow/category"
	"github.com/randalmurphal/catflow/pkg/catflow/itemindex"
	"github.com/stretchr/testify/assert"
)

func TestEnrich(t *testing.T) {
	items := itemindex.New([]itemindex.Mapping{
		{ItemID: "I1", CategoryID: "C100"},
		{ItemID: "I2", CategoryID: "C404"},
		{ItemID: "I3", CategoryID: "X"},
	})
	tree := category.NewResolver(append(retailTree(),
		category.Node{ID: "X", ParentID: "X"},
	))

	tests := []struct {
		name      string
		item      string
		want      Status
		wantCat   string
		wantRoot  string
		wantDepth int
		wantPath  []string
	}{
		{"resolved", "I1", StatusResolved, "C100", "C1", 2, []string{"C1", "C10", "C100"}},
		{"missing category", "I2", StatusUnresolvedCategory, "C404", "C404", 0, []string{"C404"}},
		{"self cycle", "I3", StatusCyclicCategory, "X", "", UnresolvedDepth, nil},
		{"unknown item", "I9", StatusUnresolvedItem, "", "", UnresolvedDepth, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Event{Index: 7, ItemID: tt.item, UserID: "U1"}
			got := Enrich(ev, items, tree)

			assert.Equal(t, ev, got.Event, "event fields pass through")
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.wantCat, got.CategoryID)
			assert.Equal(t, tt.wantRoot, got.RootCategoryID)
			assert.Equal(t, tt.wantDepth, got.Depth)
			assert.Equal(t, tt.wantPath, got.AncestorPath)
			assert.Equal(t, tt.want == StatusResolved, got.Resolved())
		})
	}
}

func TestEnricher_Deterministic(t *testing.T) {
	e := NewEnricher(
		itemindex.New([]itemindex.Mapping{{ItemID: "I1", CategoryID: "C10"}}),
		category.NewResolver(retailTree()),
	)

	first := e.Enrich(Event{ItemID: "I1"})
	second := e.Enrich(Event{ItemID: "I1"})
	assert.Equal(t, first, second)
}
