// Package walk implements the Ancestor Walker (C2) and the Concatenated /
// Virtual-Head Stream (C5) components of the reconciliation engine: pull-based
// iterators that emit DAG items in reverse-topological order, and the
// combinators used to compose and resume them.
//
// A Stream is the rearchitected replacement for the source implementation's
// callback-threaded, pause/resume event stream (spec.md §9 design notes): a
// single Next method the consumer calls to pull the next item, with
// backpressure implicit in not calling it.
package walk

import (
	"context"
	"errors"

	"github.com/perspectivedb/perspectivedb/pkg/dag"
)

// errAlreadyOpened is returned by an Opener produced from ConcatOpenStreams
// if it's invoked more than once (it wraps a single already-open Stream, so
// it can't be reopened).
var errAlreadyOpened = errors.New("stream already opened")

// errNotReopenable is returned by Reopen when given a Stream that wasn't
// produced by ConcatStreams/ConcatOpenStreams.
var errNotReopenable = errors.New("stream does not support reopening")

// Stream yields DAG items one at a time in reverse-topological order. Next
// returns (nil, nil) at end-of-stream. A non-nil error aborts the stream; the
// consumer should not call Next again after an error. Close releases any
// resources held by the stream and is safe to call multiple times; it must be
// called even after a stream has been fully drained or has errored.
type Stream interface {
	// Next returns the next item in the stream, or (nil, nil) if the stream
	// is exhausted. It blocks until an item is available, the stream ends, or
	// ctx is cancelled (in which case it returns ctx.Err()).
	Next(ctx context.Context) (*dag.Item, error)
	// Close terminates the stream, releasing any underlying store cursors.
	// Closing an already-closed stream is a no-op.
	Close() error
}

// emptyStream is a Stream that yields no items. It's returned when a walk's
// requested head cannot be found, per the edge behavior in spec.md §4.2: "If
// the requested head is not found, the stream ends without error."
type emptyStream struct{}

// Next implements Stream.Next.
func (emptyStream) Next(ctx context.Context) (*dag.Item, error) {
	return nil, nil
}

// Close implements Stream.Close.
func (emptyStream) Close() error {
	return nil
}

// Empty returns a Stream that immediately yields end-of-stream.
func Empty() Stream {
	return emptyStream{}
}

// sliceStream is a Stream backed by a pre-computed, fixed slice of items.
// It's used for the single-element virtual-head stream and for tests.
type sliceStream struct {
	items  []*dag.Item
	cursor int
}

// Slice returns a Stream that yields the given items in order, then ends.
func Slice(items []*dag.Item) Stream {
	return &sliceStream{items: items}
}

// Next implements Stream.Next.
func (s *sliceStream) Next(ctx context.Context) (*dag.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cursor >= len(s.items) {
		return nil, nil
	}
	item := s.items[s.cursor]
	s.cursor++
	return item, nil
}

// Close implements Stream.Close.
func (s *sliceStream) Close() error {
	s.cursor = len(s.items)
	return nil
}
