package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/randalmurphal/catflow/pkg/catflow"
	"github.com/randalmurphal/catflow/pkg/catflow/category"
	"github.com/randalmurphal/catflow/pkg/catflow/itemindex"
)

// dataset builds events over items spread across a category tree of the
// given depth and fan-out. One item in ten has no mapping.
func dataset(events, items, depth, fanout int) (catflow.EventTable, []itemindex.Mapping, []category.Node) {
	nodes := []category.Node{{ID: "n0"}}
	var leaves []string
	level := []string{"n0"}
	next := 1
	for d := 0; d < depth; d++ {
		var children []string
		for _, parent := range level {
			for f := 0; f < fanout; f++ {
				id := fmt.Sprintf("n%d", next)
				next++
				nodes = append(nodes, category.Node{ID: id, ParentID: parent})
				children = append(children, id)
			}
		}
		level = children
	}
	leaves = level

	mappings := make([]itemindex.Mapping, 0, items)
	for i := 0; i < items; i++ {
		if i%10 == 9 {
			continue
		}
		mappings = append(mappings, itemindex.Mapping{
			ItemID:     fmt.Sprintf("i%d", i),
			CategoryID: leaves[i%len(leaves)],
		})
	}

	table := catflow.EventTable{Events: make([]catflow.Event, events)}
	for i := range table.Events {
		table.Events[i] = catflow.Event{
			Index:  i,
			UserID: fmt.Sprintf("u%d", i%5000),
			Type:   "view",
			ItemID: fmt.Sprintf("i%d", (i*7919)%items),
		}
	}
	return table, mappings, nodes
}

func benchmarkMerge(b *testing.B, events, workers int) {
	table, mappings, nodes := dataset(events, 10000, 4, 4)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := catflow.Merge(ctx, table, mappings, nodes, catflow.WithWorkers(workers)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMerge_10k measures a sequential merge of 10k events.
func BenchmarkMerge_10k(b *testing.B) {
	benchmarkMerge(b, 10_000, 1)
}

// BenchmarkMerge_100k measures a sequential merge of 100k events.
func BenchmarkMerge_100k(b *testing.B) {
	benchmarkMerge(b, 100_000, 1)
}

// BenchmarkMerge_100k_Parallel4 measures a 4-worker merge of 100k events.
func BenchmarkMerge_100k_Parallel4(b *testing.B) {
	benchmarkMerge(b, 100_000, 4)
}

// BenchmarkResolver_Deep measures resolving every node of a deep chain with
// a cold cache.
func BenchmarkResolver_Deep(b *testing.B) {
	const depth = 1000
	nodes := make([]category.Node, depth)
	for i := range nodes {
		nodes[i] = category.Node{ID: fmt.Sprintf("c%d", i)}
		if i > 0 {
			nodes[i].ParentID = fmt.Sprintf("c%d", i-1)
		}
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := category.NewResolver(nodes)
		if _, err := r.Resolve(nodes[depth-1].ID); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkResolver_Cached measures a cache hit.
func BenchmarkResolver_Cached(b *testing.B) {
	_, _, nodes := dataset(1, 1, 4, 4)
	r := category.NewResolver(nodes)
	leaf := nodes[len(nodes)-1].ID
	_, _ = r.Resolve(leaf)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.Resolve(leaf)
	}
}

// BenchmarkItemIndex measures building the item index.
func BenchmarkItemIndex(b *testing.B) {
	_, mappings, _ := dataset(1, 100_000, 2, 4)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		itemindex.New(mappings)
	}
}
