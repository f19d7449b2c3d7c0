package dag

// Item is the unit of replication: a Header describing identity and graph
// position, plus an opaque Body. Items are immutable once constructed; the
// core only ever observes items handed to it by a store or produces new ones
// as merge output (spec.md §3 "Ownership").
type Item struct {
	Header Header
	Body   Body
}

// NewVirtualHead constructs an unpersisted item representing an in-flight
// merge result or synthetic root: it carries the given id and parents but no
// version.
func NewVirtualHead(id []byte, parents []string, body Body) *Item {
	return &Item{
		Header: Header{
			ID:      id,
			Parents: parents,
		},
		Body: body,
	}
}

// Copy creates a deep copy of the item.
func (i *Item) Copy() *Item {
	if i == nil {
		return nil
	}
	return &Item{
		Header: i.Header.copy(),
		Body:   i.Body.Clone(),
	}
}

// Equal performs a structural comparison between this item and another,
// including a deep comparison of their bodies.
func (i *Item) Equal(other *Item) bool {
	if i == other {
		return true
	} else if i == nil || other == nil {
		return false
	}
	return i.Header.equal(other.Header) && i.Body.Equal(other.Body)
}

// EnsureValid ensures that the item's invariants are respected. If
// requireVersion is true, a missing version is considered invalid (used for
// items that are expected to already be persisted, as opposed to virtual
// heads).
func (i *Item) EnsureValid(requireVersion bool) error {
	if i == nil {
		return errNilItem
	}
	return i.Header.ensureValid(requireVersion)
}

// IsTombstone reports whether the item is marked as deleted. A nil item is
// not considered a tombstone.
func (i *Item) IsTombstone() bool {
	return i != nil && i.Header.Tombstone
}
