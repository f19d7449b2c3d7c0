package store

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/golang/groupcache/lru"

	"github.com/perspectivedb/perspectivedb/pkg/dag"
	"github.com/perspectivedb/perspectivedb/pkg/dag/walk"
	"github.com/perspectivedb/perspectivedb/pkg/encoding"
	"github.com/perspectivedb/perspectivedb/pkg/identifier"
	"github.com/perspectivedb/perspectivedb/pkg/logging"
)

// defaultCacheSize is the default number of items MemoryStore keeps warm in
// its LRU lookup cache. Since MemoryStore's backing map is already an
// in-memory hash table, the cache doesn't change lookup complexity here; it
// exists to exercise and document the same cache-in-front-of-GetByVersion
// pattern a disk- or network-backed store would need, where GetByVersion is
// genuinely expensive (spec.md §6 "getByVersion" is called heavily by the
// Ancestor Walker and LCA Finder).
const defaultCacheSize = 4096

// MemoryStore is an in-memory, single-process reference implementation of
// Store, used by tests and the debug CLI. It is safe for concurrent use.
type MemoryStore struct {
	perspective string
	log         *logging.Logger

	mu        sync.RWMutex
	items     map[string]*dag.Item // version -> item
	heads     map[string]string    // string(id) -> current head version
	nextIndex int64

	cache *lru.Cache
}

// NewMemoryStore creates an empty MemoryStore tagging every item it stores
// with the given perspective. If perspective is empty, a fresh,
// collision-resistant perspective tag is minted via pkg/identifier, the same
// way a newly registered peer with no prior tag of its own would be
// assigned one.
func NewMemoryStore(perspective string, log *logging.Logger) *MemoryStore {
	if perspective == "" {
		if minted, err := identifier.New(identifier.PrefixPerspective); err == nil {
			perspective = minted
		}
	}
	return &MemoryStore{
		perspective: perspective,
		log:         log.Sublogger("store"),
		items:       make(map[string]*dag.Item),
		heads:       make(map[string]string),
		cache:       lru.New(defaultCacheSize),
	}
}

// Put implements Store.Put. An item with no version (a virtual head, such as
// a fresh true-merge result) is assigned one before being stored: spec.md §6
// leaves version assignment to the writer, and MemoryStore plays that writer
// role by content-addressing the item, the same way a real backing store
// would mint an opaque version for a newly committed change.
func (s *MemoryStore) Put(ctx context.Context, item *dag.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := item.EnsureValid(false); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := item.Copy()
	if stored.Header.Version == "" {
		version, err := synthesizeVersion(stored)
		if err != nil {
			return fmt.Errorf("unable to synthesize version: %w", err)
		}
		stored.Header.Version = version
	}
	stored.Header.Perspective = s.perspective
	stored.Header.InsertionIndex = atomic.AddInt64(&s.nextIndex, 1)

	s.items[stored.Header.Version] = stored
	s.heads[string(stored.Header.ID)] = stored.Header.Version
	s.cache.Add(stored.Header.Version, stored)

	s.log.Debug("stored version", stored.Header.Version, "at index", stored.Header.InsertionIndex)
	return nil
}

// synthesizeVersion content-addresses an item's identity, ancestry, and body
// into an opaque version string: SHA-256 over a canonical JSON encoding
// (Go's encoding/json sorts map keys, making the digest deterministic),
// Base62-encoded for compactness.
func synthesizeVersion(item *dag.Item) (string, error) {
	payload := struct {
		ID      []byte   `json:"id"`
		Parents []string `json:"parents"`
		Body    dag.Body `json:"body"`
	}{
		ID:      item.Header.ID,
		Parents: item.Header.Parents,
		Body:    item.Body,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return encoding.EncodeBase62(sum[:]), nil
}

// GetByVersion implements walk.Source (and thus Store).
func (s *MemoryStore) GetByVersion(ctx context.Context, version string) (*dag.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if version == "" {
		return nil, nil
	}

	// The LRU cache mutates its recency list on Get, so every cache access is
	// made under the exclusive lock.
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.cache.Get(version); ok {
		return cached.(*dag.Item).Copy(), nil
	}

	item, ok := s.items[version]
	if !ok {
		return nil, nil
	}

	s.cache.Add(version, item)
	return item.Copy(), nil
}

// GetHead implements Store.GetHead.
func (s *MemoryStore) GetHead(ctx context.Context, id []byte) (*dag.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	version, ok := s.heads[string(id)]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.GetByVersion(ctx, version)
}

// Walk implements Store.Walk.
func (s *MemoryStore) Walk(ctx context.Context, selector walk.Selector, head string, perspective string) walk.Stream {
	return walk.Walk(ctx, s, selector, head, perspective)
}
