package category

import (
	"sync"
	"sync/atomic"
)

// entry is one memoized resolution. err is set for cyclic categories.
type entry struct {
	resolved Resolved
	err      *CyclicCategoryError
}

func (e entry) result() (Resolved, error) {
	if e.err != nil {
		return e.resolved, e.err
	}
	return e.resolved, nil
}

type warningKey struct {
	kind WarningKind
	id   string
}

// Resolver answers hierarchy queries over an immutable category forest.
//
// Resolver is safe for concurrent use. Cache reads take a read lock and
// cache population takes the write lock; callers fanning out over many
// goroutines should Warm the identifiers they need first.
type Resolver struct {
	parents map[string]string

	mu       sync.RWMutex
	cache    map[string]entry
	warnings []Warning
	warned   map[warningKey]struct{}
	counts   map[WarningKind]int

	hits   atomic.Int64
	misses atomic.Int64
}

// NewResolver indexes the given nodes. Rows with an empty ID are ignored.
// If a node appears more than once, the first row wins and a differing
// parent is recorded as a WarningDuplicate.
func NewResolver(nodes []Node) *Resolver {
	r := &Resolver{
		parents: make(map[string]string, len(nodes)),
		cache:   make(map[string]entry, len(nodes)),
		warned:  make(map[warningKey]struct{}),
		counts:  make(map[WarningKind]int),
	}
	for _, n := range nodes {
		if n.ID == "" {
			continue
		}
		if prev, ok := r.parents[n.ID]; ok {
			if prev != n.ParentID {
				r.warnOnce(WarningDuplicate, n.ID, n.ParentID)
			}
			continue
		}
		r.parents[n.ID] = n.ParentID
	}
	return r
}

// Len returns the number of distinct nodes in the tree.
func (r *Resolver) Len() int {
	return len(r.parents)
}

// Known reports whether id is a node of the tree.
func (r *Resolver) Known(id string) bool {
	_, ok := r.parents[id]
	return ok
}

// Resolve returns the root, depth and ancestor path of id.
//
// An identifier absent from the tree is not an error: it resolves to itself
// with StatusMissing. A cycle reachable from id returns a
// *CyclicCategoryError alongside a Resolved with StatusCyclic, Depth -1 and
// no path. Repeated calls for the same id are served from the cache and
// return identical results.
func (r *Resolver) Resolve(id string) (Resolved, error) {
	r.mu.RLock()
	e, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		r.hits.Add(1)
		return e.result()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have filled it in between the locks.
	if e, ok := r.cache[id]; ok {
		r.hits.Add(1)
		return e.result()
	}
	r.misses.Add(1)
	return r.resolveLocked(id).result()
}

// Warm resolves every identifier so later lookups only read the cache.
// Errors are absorbed; they are replayed by Resolve.
func (r *Resolver) Warm(ids []string) {
	for _, id := range ids {
		_, _ = r.Resolve(id)
	}
}

// resolveLocked walks parent links upward from id. Must hold r.mu.
func (r *Resolver) resolveLocked(id string) entry {
	if _, known := r.parents[id]; !known {
		e := entry{resolved: Resolved{
			CategoryID: id,
			RootID:     id,
			Path:       []string{id},
			Status:     StatusMissing,
		}}
		r.cache[id] = e
		r.warnOnce(WarningMissing, id, "")
		return e
	}

	var (
		chain   []string // leaf first
		visited = make(map[string]struct{})
		base    []string // path of a cached ancestor, if the walk reached one
		cur     = id
	)
	for {
		if cur != id {
			if e, ok := r.cache[cur]; ok {
				if e.err != nil {
					return r.cacheCyclic(id, chain, e.err.Repeated, append(append([]string(nil), chain...), e.err.Chain...))
				}
				base = e.resolved.Path
				break
			}
		}
		if _, seen := visited[cur]; seen {
			r.warnOnce(WarningCycle, id, cur)
			return r.cacheCyclic(id, chain, cur, chain)
		}
		visited[cur] = struct{}{}
		chain = append(chain, cur)

		parent := r.parents[cur]
		if parent == "" {
			break
		}
		if _, known := r.parents[parent]; !known {
			r.warnOnce(WarningOrphan, cur, parent)
			break
		}
		cur = parent
	}

	// Every node on the chain is a prefix of one root-to-leaf path, so they
	// all share a single backing array through capped sub-slices.
	full := make([]string, 0, len(base)+len(chain))
	full = append(full, base...)
	for i := len(chain) - 1; i >= 0; i-- {
		full = append(full, chain[i])
	}
	root := full[0]
	for i, n := range chain {
		depth := len(full) - 1 - i
		r.cache[n] = entry{resolved: Resolved{
			CategoryID: n,
			RootID:     root,
			Depth:      depth,
			Path:       full[: depth+1 : depth+1],
			Status:     StatusResolved,
		}}
	}
	return r.cache[id]
}

// cacheCyclic marks every node on the failed walk as cyclic.
func (r *Resolver) cacheCyclic(id string, chain []string, repeated string, cycle []string) entry {
	for _, n := range chain {
		r.cache[n] = entry{
			resolved: Resolved{CategoryID: n, Depth: -1, Status: StatusCyclic},
			err:      &CyclicCategoryError{CategoryID: n, Repeated: repeated, Chain: cycle},
		}
	}
	return r.cache[id]
}

// warnOnce records a warning the first time (kind, id) is seen.
func (r *Resolver) warnOnce(kind WarningKind, id, detail string) {
	key := warningKey{kind: kind, id: id}
	if _, ok := r.warned[key]; ok {
		return
	}
	r.warned[key] = struct{}{}
	r.counts[kind]++
	r.warnings = append(r.warnings, Warning{Kind: kind, CategoryID: id, Detail: detail})
}

// Warnings returns the recorded warnings in detection order.
func (r *Resolver) Warnings() []Warning {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Warning, len(r.warnings))
	copy(out, r.warnings)
	return out
}

// Stats returns a snapshot of cache and warning counters.
func (r *Resolver) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		Nodes:       len(r.parents),
		Cached:      len(r.cache),
		CacheHits:   r.hits.Load(),
		CacheMisses: r.misses.Load(),
		Missing:     r.counts[WarningMissing],
		Orphans:     r.counts[WarningOrphan],
		Cycles:      r.counts[WarningCycle],
		Duplicates:  r.counts[WarningDuplicate],
	}
}
