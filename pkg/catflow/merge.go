package catflow

import (
	"context"
	"time"

	"github.com/randalmurphal/catflow/pkg/catflow/category"
	"github.com/randalmurphal/catflow/pkg/catflow/itemindex"
	"github.com/randalmurphal/catflow/pkg/catflow/observability"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Result is the output of Merge.
type Result struct {
	Table   EnrichedTable
	Summary Summary
}

// Merge joins every event to its item's category and resolves the category
// hierarchy.
//
// The item index and the category resolver are built exactly once. Events
// are enriched in input order and the output table has one row per input
// event in the same order. Unresolved items, missing or cyclic categories
// and conflicting mappings never fail the merge; they are reported in the
// returned Summary.
//
// Merge fails only with a *MissingInputError when any input is empty, or
// with the context's error if ctx is cancelled while fanning out.
//
// Example:
//
//	res, err := catflow.Merge(ctx, events, mappings, nodes, catflow.WithWorkers(4))
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Summary.UnresolvedItems)
func Merge(ctx context.Context, events EventTable, mappings []itemindex.Mapping, nodes []category.Node, opts ...MergeOption) (res *Result, err error) {
	switch {
	case len(events.Events) == 0:
		return nil, &MissingInputError{Table: TableEvents}
	case len(mappings) == 0:
		return nil, &MissingInputError{Table: TableItems}
	case len(nodes) == 0:
		return nil, &MissingInputError{Table: TableCategories}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := defaultMergeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	spanCtx, span := cfg.spans.StartMergeSpan(ctx, len(events.Events))
	defer func() {
		cfg.spans.EndSpanWithError(span, err)
	}()

	items := itemindex.New(mappings)
	tree := category.NewResolver(nodes)
	enricher := NewEnricher(items, tree)

	rows := make([]EnrichedEvent, len(events.Events))
	if cfg.workers > 1 && len(rows) > cfg.workers {
		// Cache population is a write; do all of it before fan-out so the
		// workers only read. Only categories events reach are warmed, so the
		// warnings match a sequential merge.
		referenced := make([]string, len(events.Events))
		for i, ev := range events.Events {
			referenced[i] = ev.ItemID
		}
		tree.Warm(items.CategoryIDs(referenced))
		if err := enrichParallel(spanCtx, enricher, events.Events, rows, cfg.workers); err != nil {
			return nil, err
		}
	} else {
		for i, ev := range events.Events {
			rows[i] = enricher.Enrich(ev)
		}
	}

	summary := summarize(rows, items, tree)
	counts := summary.Counts()

	observability.LogMergeSummary(cfg.logger, counts)
	cfg.metrics.RecordMerge(spanCtx, counts, time.Since(start))
	cfg.spans.AddSpanEvent(spanCtx, "merge.summary",
		attribute.Int("events", counts.Events),
		attribute.Int("unresolved_items", counts.UnresolvedItems),
		attribute.Int("unresolved_categories", counts.UnresolvedCategories),
		attribute.Int("item_conflicts", counts.ItemConflicts),
		attribute.Int("cycles", counts.Cycles),
	)

	return &Result{
		Table: EnrichedTable{
			Columns:       events.Columns,
			Rows:          rows,
			PathSeparator: cfg.pathSeparator,
		},
		Summary: summary,
	}, nil
}

// enrichParallel splits events into contiguous chunks, one per worker.
// Each worker writes only its own slots of rows, so order is preserved.
func enrichParallel(ctx context.Context, e *Enricher, events []Event, rows []EnrichedEvent, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	chunk := (len(events) + workers - 1) / workers
	for lo := 0; lo < len(events); lo += chunk {
		hi := min(lo+chunk, len(events))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				rows[i] = e.Enrich(events[i])
			}
			return nil
		})
	}
	return g.Wait()
}
