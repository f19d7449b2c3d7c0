package walk

import (
	"container/heap"
	"context"

	"github.com/perspectivedb/perspectivedb/pkg/dag"
)

// Source is the minimal read interface the Ancestor Walker needs from a
// backing store: random access to an item by its version. This is the
// "getByVersion" half of the external interface described in spec.md §6; the
// walker itself assembles the reverse-topological sequence by following
// parent pointers, rather than requiring the store to do so.
type Source interface {
	// GetByVersion returns the item with the given version, or (nil, nil) if
	// no such item exists.
	GetByVersion(ctx context.Context, version string) (*dag.Item, error)
}

// frontierEntry is a pending candidate in the ancestor walk's frontier,
// ordered so that the walk yields items in reverse-topological order.
type frontierEntry struct {
	item *dag.Item
	// discovered is a monotonic discovery counter used to break ties between
	// items with equal InsertionIndex (e.g. two items from a perspective
	// that doesn't assign meaningful indices), preserving a stable,
	// deterministic order.
	discovered int64
}

// frontierHeap implements container/heap.Interface, ordering entries so that
// the item with the highest InsertionIndex (ties broken by most-recently
// discovered) is popped first. This realizes spec.md §4.2's "store is queried
// with a descending h.i sort" for the local perspective, and falls back to
// insertion/discovery order for perspectives that don't populate
// InsertionIndex, matching the "natural insertion order" rule for remote
// perspectives.
type frontierHeap []*frontierEntry

func (h frontierHeap) Len() int { return len(h) }

func (h frontierHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.item.Header.InsertionIndex != b.item.Header.InsertionIndex {
		return a.item.Header.InsertionIndex > b.item.Header.InsertionIndex
	}
	return a.discovered > b.discovered
}

func (h frontierHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *frontierHeap) Push(x any) {
	*h = append(*h, x.(*frontierEntry))
}

func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return entry
}

// walker implements Stream by expanding a frontier of pending ancestor
// versions, following parent pointers backward from a starting item.
type walker struct {
	source      Source
	selector    Selector
	perspective string

	frontier  frontierHeap
	queued    map[string]bool
	yielded   map[string]bool
	discovery int64
	closed    bool
	// deferredErr, when set, is returned by the next call to Next instead of
	// continuing the walk. It holds store errors encountered while eagerly
	// resolving a newly discovered parent version during enqueueVersion,
	// which has no error return of its own.
	deferredErr error
}

// Walk implements the Ancestor Walker (C2): starting at the item whose
// version equals head, it yields each matching item in reverse-topological
// order, replacing head with its parents and continuing, until no more
// reachable items match (spec.md §4.2). If head cannot be found in source,
// the returned stream ends immediately without error.
func Walk(ctx context.Context, source Source, selector Selector, head string, perspective string) Stream {
	if head == "" {
		return Empty()
	}
	item, err := source.GetByVersion(ctx, head)
	if err != nil {
		return &errorStream{err: err}
	}
	if item == nil {
		return Empty()
	}
	return WalkFromItem(ctx, source, selector, item, perspective)
}

// WalkFromItem is equivalent to Walk, but seeds the traversal from an
// already-resolved item rather than looking one up by version. This is the
// direct entry point used when a caller (such as the Merger) already holds
// the starting item in hand, including virtual heads that have no version to
// look up at all (spec.md §9 design notes recommend this direct form over
// smuggling virtual heads through a prepended stream).
func WalkFromItem(ctx context.Context, source Source, selector Selector, start *dag.Item, perspective string) Stream {
	w := &walker{
		source:      source,
		selector:    selector,
		perspective: perspective,
		queued:      make(map[string]bool),
		yielded:     make(map[string]bool),
	}
	if start == nil {
		return Empty()
	}
	if start.Header.IsVirtual() {
		// A virtual head's parents seed the frontier directly; the virtual
		// head itself is never fetched, queued, or yielded (spec.md §4.3
		// virtual head edge policy).
		for _, p := range start.Header.Parents {
			w.enqueueVersion(ctx, p)
		}
		return w
	}
	w.push(start)
	return w
}

// push adds an already-resolved item to the frontier if it hasn't been
// queued before.
func (w *walker) push(item *dag.Item) {
	if item == nil || w.queued[item.Header.Version] {
		return
	}
	w.queued[item.Header.Version] = true
	w.discovery++
	heap.Push(&w.frontier, &frontierEntry{item: item, discovered: w.discovery})
}

// enqueueVersion resolves a version through the source and pushes it onto
// the frontier. Lookup errors are swallowed here and surfaced lazily on the
// next Next() call via deferredErr, keeping Walk's seeding (which has no
// error return) and Next's pull-based contract consistent.
func (w *walker) enqueueVersion(ctx context.Context, version string) {
	if version == "" || w.queued[version] {
		return
	}
	item, err := w.source.GetByVersion(ctx, version)
	if err != nil {
		w.queued[version] = true
		w.deferredErr = err
		return
	}
	if item == nil {
		// Unresolvable ancestor: the branch simply stops expanding here,
		// consistent with partially-replicated DAGs (spec.md §1).
		w.queued[version] = true
		return
	}
	w.push(item)
}

// Next implements Stream.Next.
func (w *walker) Next(ctx context.Context) (*dag.Item, error) {
	if w.closed {
		return nil, nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if w.deferredErr != nil {
			err := w.deferredErr
			w.deferredErr = nil
			return nil, err
		}
		if w.frontier.Len() == 0 {
			return nil, nil
		}
		entry := heap.Pop(&w.frontier).(*frontierEntry)
		cur := entry.item
		if w.yielded[cur.Header.Version] {
			continue
		}
		w.yielded[cur.Header.Version] = true
		for _, p := range cur.Header.Parents {
			w.enqueueVersion(ctx, p)
		}
		if w.selector.matches(cur) {
			return cur, nil
		}
	}
}

// Close implements Stream.Close.
func (w *walker) Close() error {
	w.closed = true
	w.frontier = nil
	return nil
}

// errorStream is a Stream that immediately and permanently returns a fixed
// error, used when a head lookup fails during Walk's seeding step.
type errorStream struct {
	err error
}

// Next implements Stream.Next.
func (s *errorStream) Next(ctx context.Context) (*dag.Item, error) {
	return nil, s.err
}

// Close implements Stream.Close.
func (s *errorStream) Close() error {
	return nil
}
