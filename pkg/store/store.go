// Package store defines the external interface a backing store must provide
// to the reconciliation engine (spec.md §6) and provides an in-memory
// reference implementation.
package store

import (
	"context"

	"github.com/perspectivedb/perspectivedb/pkg/dag"
	"github.com/perspectivedb/perspectivedb/pkg/dag/walk"
)

// Store is the full interface a perspective's backing store exposes to the
// reconciliation engine: item insertion, random-access lookup by version,
// current-head lookup by logical id, and the ancestor walk primitive
// consumed by the Ancestor Walker (C2) (spec.md §6).
//
// Store embeds walk.Source, so any Store satisfies the minimal interface the
// Ancestor Walker and Merger require without an explicit adapter.
type Store interface {
	walk.Source

	// Put inserts an item, assigning it a fresh, monotonically increasing
	// InsertionIndex under this store's perspective, and makes it the new
	// head for its id. Put does not validate that item's parents exist in
	// the store; partially-replicated histories are expected (spec.md §1).
	Put(ctx context.Context, item *dag.Item) error

	// GetHead returns the current head item for the given logical id, or
	// (nil, nil) if the store has no items for that id.
	GetHead(ctx context.Context, id []byte) (*dag.Item, error)

	// Walk returns a Stream over the reverse-topological ancestry of head,
	// restricted by selector (spec.md §4.2). It's a thin convenience wrapper
	// around walk.Walk bound to this store.
	Walk(ctx context.Context, selector walk.Selector, head string, perspective string) walk.Stream
}
