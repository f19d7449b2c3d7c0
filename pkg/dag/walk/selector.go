package walk

import (
	"bytes"

	"github.com/perspectivedb/perspectivedb/pkg/dag"
)

// Selector filters items during an ancestor walk. Items that don't match the
// selector are still traversed (their parents are expanded), but are not
// yielded to the consumer (spec.md §4.2).
type Selector struct {
	// ID restricts the walk to items sharing this logical id. A nil or
	// empty ID matches any id.
	ID []byte
	// Match, if non-nil, is an additional per-item predicate evaluated after
	// the ID constraint. It receives items that have already passed the ID
	// check.
	Match func(*dag.Item) bool
}

// matches reports whether the given item satisfies the selector.
func (s Selector) matches(item *dag.Item) bool {
	if item == nil {
		return false
	}
	if len(s.ID) > 0 && !bytes.Equal(s.ID, item.Header.ID) {
		return false
	}
	if s.Match != nil && !s.Match(item) {
		return false
	}
	return true
}

// Any is a Selector that matches every item it is given.
var Any = Selector{}
