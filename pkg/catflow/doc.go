/*
Package catflow enriches e-commerce interaction events with category context.

# Overview

catflow joins three tables:

  - events: one row per user/item interaction (view, addtocart, transaction)
  - item categories: which category an item belongs to
  - category tree: a parent link for every category

Every event comes out with its item's category, the root of that category's
hierarchy, the depth below the root and the full ancestor path. Output order
matches input order and no event is ever dropped.

# Basic Usage

	events := catflow.EventTable{Events: []catflow.Event{{ItemID: "I1"}}}
	mappings := []itemindex.Mapping{{ItemID: "I1", CategoryID: "C10"}}
	nodes := []category.Node{
	    {ID: "C10", ParentID: "C1"},
	    {ID: "C1"},
	}

	res, err := catflow.Merge(ctx, events, mappings, nodes)
	if err != nil {
	    log.Fatal(err)
	}
	row := res.Table.Rows[0]
	fmt.Println(row.RootCategoryID, row.Depth, row.AncestorPath) // C1 1 [C1 C10]

# Data Quality

Dirty inputs are reported, not fatal:

  - an item with no mapping gets StatusUnresolvedItem
  - a category missing from the tree becomes its own root with
    StatusUnresolvedCategory
  - a category on a cycle gets StatusCyclicCategory and one warning per
    detected cycle
  - an item mapped to several categories keeps the first and the rest are
    listed in Summary.Conflicts

Merge fails only when an input table is empty (*MissingInputError) or the
context is cancelled.

# Concurrency

WithWorkers fans the enrichment pass out over several goroutines. The
category cache is warmed before fan-out, so the result is identical to a
single-threaded run.

# Observability

WithLogger, WithMetrics and WithTracing attach slog logging and
OpenTelemetry metrics and spans to the merge. See the observability
package for the instrument names.

# Subpackages

  - category: hierarchy resolution with memoization and cycle detection
  - itemindex: first-wins item to category lookup
  - extract: CSV readers for the three input tables
  - load: CSV, JSON Lines, SQLite and Parquet writers for the enriched table
  - report: persisted run reports
  - pipeline: the extract, transform and load run with per-stage reporting
  - config: file and environment configuration
*/
package catflow
