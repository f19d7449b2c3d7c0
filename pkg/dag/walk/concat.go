package walk

import (
	"context"

	"github.com/perspectivedb/perspectivedb/pkg/dag"
)

// Opener constructs a fresh Stream equivalent to one previously consumed.
// ConcatStreams accepts a list of Openers (rather than already-open Streams)
// so that Reopen can rebuild an equivalent concatenation for a second,
// independent traversal pass (spec.md §4.5).
type Opener func() (Stream, error)

// concatStream implements Stream by draining a sequence of streams (each
// produced by its Opener) one at a time, in order.
type concatStream struct {
	openers []Opener
	index   int
	current Stream
	closed  bool
}

// ConcatStreams produces a single stream emitting all items of the first
// source until it ends, then the second, and so on (spec.md §4.5). Each
// source is provided as an Opener so the resulting stream can be reopened.
func ConcatStreams(openers ...Opener) Stream {
	return &concatStream{openers: openers}
}

// ConcatOpenStreams is a convenience wrapper around ConcatStreams for
// callers that already have open streams in hand and don't need Reopen
// support (e.g. one-shot consumption in tests).
func ConcatOpenStreams(streams ...Stream) Stream {
	openers := make([]Opener, len(streams))
	for i, s := range streams {
		s := s
		used := false
		openers[i] = func() (Stream, error) {
			if used {
				return nil, errAlreadyOpened
			}
			used = true
			return s, nil
		}
	}
	return ConcatStreams(openers...)
}

// Next implements Stream.Next.
func (c *concatStream) Next(ctx context.Context) (*dag.Item, error) {
	if c.closed {
		return nil, nil
	}
	for {
		if c.current == nil {
			if c.index >= len(c.openers) {
				return nil, nil
			}
			stream, err := c.openers[c.index]()
			if err != nil {
				return nil, err
			}
			c.index++
			c.current = stream
		}
		item, err := c.current.Next(ctx)
		if err != nil {
			return nil, err
		}
		if item != nil {
			return item, nil
		}
		// Current source exhausted; advance to the next one.
		_ = c.current.Close()
		c.current = nil
	}
}

// Close implements Stream.Close.
func (c *concatStream) Close() error {
	c.closed = true
	if c.current != nil {
		err := c.current.Close()
		c.current = nil
		return err
	}
	return nil
}

// Reopen rebuilds an equivalent, fresh concatenation of the same underlying
// openers, for a second independent traversal pass (spec.md §4.5). The
// receiver itself is left usable; Reopen does not consume it.
func Reopen(s Stream) (Stream, error) {
	c, ok := s.(*concatStream)
	if !ok {
		return nil, errNotReopenable
	}
	return &concatStream{openers: c.openers}, nil
}

// VirtualHeadStream prepends a synthetic virtual head in front of rest,
// preserving rest's resumability. This lets the LCA Finder treat an
// unpersisted in-flight merge result as just another root without the
// backing stream needing to know anything about it (spec.md §4.5 "Use").
func VirtualHeadStream(head *dag.Item, rest Opener) Stream {
	headOpener := func() (Stream, error) {
		return Slice([]*dag.Item{head}), nil
	}
	return ConcatStreams(headOpener, rest)
}
