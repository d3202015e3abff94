package catflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/randalmurphal/catflow/pkg/catflow/category"
	"github.com/randalmurphal/catflow/pkg/catflow/itemindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventsFor builds an events table with one event per item.
func eventsFor(items ...string) EventTable {
	t := EventTable{}
	for i, item := range items {
		t.Events = append(t.Events, Event{Index: i, ItemID: item, UserID: fmt.Sprintf("U%d", i), Type: "view"})
	}
	return t
}

// retailTree is a small three-level forest:
//
//	C1 -> C10 -> C100
//	C2
func retailTree() []category.Node {
	return []category.Node{
		{ID: "C100", ParentID: "C10"},
		{ID: "C10", ParentID: "C1"},
		{ID: "C1"},
		{ID: "C2"},
	}
}

func TestMerge_ResolvesHierarchy(t *testing.T) {
	res, err := Merge(context.Background(),
		eventsFor("I1"),
		[]itemindex.Mapping{{ItemID: "I1", CategoryID: "C10"}},
		[]category.Node{{ID: "C10", ParentID: "C1"}, {ID: "C1"}},
	)
	require.NoError(t, err)
	require.Len(t, res.Table.Rows, 1)

	row := res.Table.Rows[0]
	assert.Equal(t, "C10", row.CategoryID)
	assert.Equal(t, "C1", row.RootCategoryID)
	assert.Equal(t, 1, row.Depth)
	assert.Equal(t, []string{"C1", "C10"}, row.AncestorPath)
	assert.Equal(t, StatusResolved, row.Status)
	assert.True(t, res.Summary.Clean())
}

func TestMerge_UnresolvedItemCountedPerOccurrence(t *testing.T) {
	res, err := Merge(context.Background(),
		eventsFor("I1", "I9", "I9"),
		[]itemindex.Mapping{{ItemID: "I1", CategoryID: "C1"}},
		retailTree(),
	)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Table.Len())
	assert.Equal(t, 2, res.Summary.UnresolvedItems)
	assert.Equal(t, 1, res.Summary.Resolved)

	for _, row := range res.Table.Rows[1:] {
		assert.Equal(t, StatusUnresolvedItem, row.Status)
		assert.Empty(t, row.CategoryID)
		assert.Empty(t, row.RootCategoryID)
		assert.Equal(t, UnresolvedDepth, row.Depth)
		assert.Nil(t, row.AncestorPath)
	}
}

func TestMerge_CycleFailsOnlyAffectedEvents(t *testing.T) {
	res, err := Merge(context.Background(),
		eventsFor("I1", "I2", "I1"),
		[]itemindex.Mapping{
			{ItemID: "I1", CategoryID: "A"},
			{ItemID: "I2", CategoryID: "C10"},
		},
		append(retailTree(),
			category.Node{ID: "A", ParentID: "B"},
			category.Node{ID: "B", ParentID: "A"},
		),
	)
	require.NoError(t, err)

	assert.Equal(t, StatusCyclicCategory, res.Table.Rows[0].Status)
	assert.Equal(t, "A", res.Table.Rows[0].CategoryID)
	assert.Equal(t, UnresolvedDepth, res.Table.Rows[0].Depth)
	assert.Equal(t, StatusResolved, res.Table.Rows[1].Status)
	assert.Equal(t, StatusCyclicCategory, res.Table.Rows[2].Status)

	assert.Equal(t, 1, res.Summary.Cycles)
	assert.Equal(t, 2, res.Summary.UnresolvedCategories)

	var cycles int
	for _, w := range res.Summary.Warnings {
		if w.Kind == category.WarningCycle {
			cycles++
		}
	}
	assert.Equal(t, 1, cycles, "one warning per detected cycle")
}

func TestMerge_MissingCategoryIsOwnRoot(t *testing.T) {
	res, err := Merge(context.Background(),
		eventsFor("I1"),
		[]itemindex.Mapping{{ItemID: "I1", CategoryID: "C404"}},
		retailTree(),
	)
	require.NoError(t, err)

	row := res.Table.Rows[0]
	assert.Equal(t, StatusUnresolvedCategory, row.Status)
	assert.Equal(t, "C404", row.CategoryID)
	assert.Equal(t, "C404", row.RootCategoryID)
	assert.Equal(t, 0, row.Depth)
	assert.Equal(t, 1, res.Summary.MissingCategories)
	assert.Equal(t, 1, res.Summary.UnresolvedCategories)
}

func TestMerge_ItemConflicts(t *testing.T) {
	res, err := Merge(context.Background(),
		eventsFor("I1"),
		[]itemindex.Mapping{
			{ItemID: "I1", CategoryID: "C10"},
			{ItemID: "I1", CategoryID: "C2"},
		},
		retailTree(),
	)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Summary.ItemConflicts)
	require.Len(t, res.Summary.Conflicts, 1)
	assert.Equal(t, "C2", res.Summary.Conflicts[0].ConflictingCategory)
	assert.Equal(t, "C10", res.Table.Rows[0].CategoryID, "first mapping wins")
	assert.False(t, res.Summary.Clean())
}

func TestMerge_PreservesOrder(t *testing.T) {
	items := []string{"I3", "I1", "I2", "I1", "I3"}
	res, err := Merge(context.Background(),
		eventsFor(items...),
		[]itemindex.Mapping{
			{ItemID: "I1", CategoryID: "C1"},
			{ItemID: "I2", CategoryID: "C10"},
			{ItemID: "I3", CategoryID: "C100"},
		},
		retailTree(),
	)
	require.NoError(t, err)
	require.Equal(t, len(items), res.Table.Len())

	for i, row := range res.Table.Rows {
		assert.Equal(t, i, row.Index)
		assert.Equal(t, items[i], row.ItemID)
	}
	assert.Equal(t, []string{"C1", "C10", "C100"}, res.Table.Rows[0].AncestorPath)
}

func TestMerge_MissingInput(t *testing.T) {
	mappings := []itemindex.Mapping{{ItemID: "I1", CategoryID: "C1"}}
	tree := retailTree()

	tests := []struct {
		name     string
		events   EventTable
		mappings []itemindex.Mapping
		nodes    []category.Node
		table    string
	}{
		{"no events", EventTable{}, mappings, tree, TableEvents},
		{"no item mappings", eventsFor("I1"), nil, tree, TableItems},
		{"no category tree", eventsFor("I1"), mappings, nil, TableCategories},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Merge(context.Background(), tt.events, tt.mappings, tt.nodes)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrMissingInput)

			var mie *MissingInputError
			require.True(t, errors.As(err, &mie))
			assert.Equal(t, tt.table, mie.Table)
		})
	}
}

func TestMerge_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Merge(ctx, eventsFor("I1"), []itemindex.Mapping{{ItemID: "I1", CategoryID: "C1"}}, retailTree())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMerge_WorkersMatchSequential(t *testing.T) {
	var (
		items    []string
		mappings []itemindex.Mapping
	)
	for i := 0; i < 1000; i++ {
		items = append(items, fmt.Sprintf("I%d", i%50))
	}
	cats := []string{"C1", "C10", "C100", "C2", "C404", "A"}
	for i := 0; i < 45; i++ {
		mappings = append(mappings, itemindex.Mapping{ItemID: fmt.Sprintf("I%d", i), CategoryID: cats[i%len(cats)]})
	}
	// Mapped items that no event references, on a cycle, missing from the
	// tree and orphaned.
	mappings = append(mappings,
		itemindex.Mapping{ItemID: "X1", CategoryID: "P"},
		itemindex.Mapping{ItemID: "X2", CategoryID: "C999"},
		itemindex.Mapping{ItemID: "X3", CategoryID: "O1"},
	)
	nodes := append(retailTree(),
		category.Node{ID: "A", ParentID: "B"},
		category.Node{ID: "B", ParentID: "A"},
		category.Node{ID: "P", ParentID: "Q"},
		category.Node{ID: "Q", ParentID: "P"},
		category.Node{ID: "O1", ParentID: "GONE"},
	)

	seq, err := Merge(context.Background(), eventsFor(items...), mappings, nodes)
	require.NoError(t, err)
	par, err := Merge(context.Background(), eventsFor(items...), mappings, nodes, WithWorkers(8))
	require.NoError(t, err)

	assert.Equal(t, seq.Table.Rows, par.Table.Rows)
	assert.Equal(t, seq.Summary.Counts(), par.Summary.Counts())
	assert.Equal(t, seq.Summary.Warnings, par.Summary.Warnings)
	assert.Equal(t, 1, par.Summary.Cycles, "only the cycle events reach is counted")
	assert.Equal(t, 0, par.Summary.OrphanCategories)
}

func TestMerge_UnreferencedCategoriesDoNotAffectSummary(t *testing.T) {
	var events EventTable
	for i := 0; i < 100; i++ {
		events.Events = append(events.Events, Event{Index: i, ItemID: "I1"})
	}
	mappings := []itemindex.Mapping{
		{ItemID: "I1", CategoryID: "C10"},
		{ItemID: "I2", CategoryID: "A"},
		{ItemID: "I3", CategoryID: "C404"},
	}
	nodes := append(retailTree(),
		category.Node{ID: "A", ParentID: "B"},
		category.Node{ID: "B", ParentID: "A"},
	)

	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			res, err := Merge(context.Background(), events, mappings, nodes, WithWorkers(workers))
			require.NoError(t, err)
			assert.Equal(t, 0, res.Summary.Cycles)
			assert.Equal(t, 0, res.Summary.MissingCategories)
			assert.Empty(t, res.Summary.Warnings)
			assert.True(t, res.Summary.Clean())
		})
	}
}

func TestMerge_Idempotent(t *testing.T) {
	events := eventsFor("I1", "I2", "I3")
	mappings := []itemindex.Mapping{
		{ItemID: "I1", CategoryID: "C100"},
		{ItemID: "I2", CategoryID: "C404"},
	}

	first, err := Merge(context.Background(), events, mappings, retailTree())
	require.NoError(t, err)
	second, err := Merge(context.Background(), events, mappings, retailTree())
	require.NoError(t, err)

	assert.Equal(t, first.Table.Rows, second.Table.Rows)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestMerge_PathSeparatorOption(t *testing.T) {
	res, err := Merge(context.Background(),
		eventsFor("I1"),
		[]itemindex.Mapping{{ItemID: "I1", CategoryID: "C100"}},
		retailTree(),
		WithPathSeparator("/"),
	)
	require.NoError(t, err)

	rec := res.Table.Record(0)
	assert.Equal(t, "C1/C10/C100", rec[len(rec)-2])
}

func TestMerge_LogsSummary(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := Merge(context.Background(),
		eventsFor("I1", "I9"),
		[]itemindex.Mapping{{ItemID: "I1", CategoryID: "C1"}},
		retailTree(),
		WithLogger(logger),
	)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "merge summary", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, float64(2), rec["events"])
	assert.Equal(t, float64(1), rec["unresolved_items"])
}

func TestMerge_ObservabilityEnabled(t *testing.T) {
	res, err := Merge(context.Background(),
		eventsFor("I1"),
		[]itemindex.Mapping{{ItemID: "I1", CategoryID: "C1"}},
		retailTree(),
		WithMetrics(true),
		WithTracing(true),
		WithWorkers(0),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.Resolved)
}
