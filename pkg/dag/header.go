package dag

// maximumIDLength is the maximum length, in bytes, allowed for a Header's ID.
// This is enforced unconditionally as a protocol-level invariant, not as a
// storage-index constraint (see the decided Open Question in SPEC_FULL.md).
const maximumIDLength = 254

// Header carries the identity and graph-positioning metadata for an Item. It
// corresponds to the "h" object in the data model: logical identity, opaque
// version, parent versions, perspective tag, local insertion index, and
// tombstone marker.
type Header struct {
	// ID is the logical identity of the tracked object. Two items share
	// history if and only if their IDs are equal.
	ID []byte
	// Version is the opaque, content-addressed version identifier. It is
	// empty on a virtual head representing an in-flight merge that has not
	// yet been inserted into any store.
	Version string
	// Parents is the ordered list of parent versions. It may be empty for
	// roots, have one entry for linear history, or have two or more entries
	// for merges.
	Parents []string
	// Perspective is the tag of the peer this image of the item belongs to.
	Perspective string
	// InsertionIndex is the monotonically increasing local insertion index
	// under the local perspective. It is zero (absent) for items observed
	// from a remote perspective.
	InsertionIndex int64
	// Tombstone indicates that the object is considered deleted at this
	// version.
	Tombstone bool
}

// IsVirtual returns true if the header has no version, meaning it represents
// an unpersisted, in-flight item (a virtual head or a true-merge result that
// has not yet been assigned a version by a writer).
func (h Header) IsVirtual() bool {
	return h.Version == ""
}

// copy creates a deep copy of the header, duplicating the ID and Parents
// slices so that the copy may be held independently of the original.
func (h Header) copy() Header {
	var id []byte
	if h.ID != nil {
		id = make([]byte, len(h.ID))
		copy(id, h.ID)
	}
	var parents []string
	if h.Parents != nil {
		parents = make([]string, len(h.Parents))
		copy(parents, h.Parents)
	}
	return Header{
		ID:             id,
		Version:        h.Version,
		Parents:        parents,
		Perspective:    h.Perspective,
		InsertionIndex: h.InsertionIndex,
		Tombstone:      h.Tombstone,
	}
}

// equal performs a structural comparison between two headers.
func (h Header) equal(other Header) bool {
	if string(h.ID) != string(other.ID) {
		return false
	} else if h.Version != other.Version {
		return false
	} else if h.Perspective != other.Perspective {
		return false
	} else if h.InsertionIndex != other.InsertionIndex {
		return false
	} else if h.Tombstone != other.Tombstone {
		return false
	}
	if len(h.Parents) != len(other.Parents) {
		return false
	}
	for i, p := range h.Parents {
		if p != other.Parents[i] {
			return false
		}
	}
	return true
}

// ensureValid ensures that the header's invariants are respected. If
// requireVersion is true, a missing version is treated as invalid (used when
// validating items that are expected to already be persisted).
func (h Header) ensureValid(requireVersion bool) error {
	if len(h.ID) == 0 {
		return errMissingID
	} else if len(h.ID) > maximumIDLength {
		return errIDTooLong
	}
	if requireVersion && h.Version == "" {
		return errMissingVersion
	}
	for _, p := range h.Parents {
		if p == "" {
			return errEmptyParentVersion
		}
	}
	return nil
}
