package merge

import (
	"context"

	"github.com/perspectivedb/perspectivedb/pkg/dag"
	"github.com/perspectivedb/perspectivedb/pkg/dag/walk"
)

// Extract pulls the (version, parents) tuple out of an item. It defaults to
// reading Header.Version/Header.Parents directly, but callers may supply
// their own to let the LCA Finder operate on raw business items without
// copying (spec.md §4.3).
type Extract func(item *dag.Item) (version string, parents []string)

// defaultExtract is the identity extraction used when no Extract is
// supplied.
func defaultExtract(item *dag.Item) (string, []string) {
	return item.Header.Version, item.Header.Parents
}

// Result is the output of FindLCAs: the set of lowest common ancestor
// versions, plus the resolved ancestor items as seen from each side.
type Result struct {
	// LCAs is the list of LCA versions, in the order they were discovered.
	// Callers that only need the set may treat it as such (spec.md §5).
	LCAs []string
	// ItemsX maps each LCA version to the item as observed in stream X.
	ItemsX map[string]*dag.Item
	// ItemsY maps each LCA version to the item as observed in stream Y.
	ItemsY map[string]*dag.Item
	// RootX and RootY are the versions of the two traversal roots, or the
	// empty string if the corresponding root was a virtual head.
	RootX, RootY string
}

// versionSet is a small set-of-strings helper used for the open-heads and
// common-ancestors bookkeeping.
type versionSet map[string]bool

func (s versionSet) add(v string)      { s[v] = true }
func (s versionSet) has(v string) bool { return s[v] }
func (s versionSet) del(v string)      { delete(s, v) }

// subsetOf reports whether every member of s is also a member of other.
func (s versionSet) subsetOf(other versionSet) bool {
	for v := range s {
		if !other.has(v) {
			return false
		}
	}
	return true
}

// FindLCAs implements the LCA Finder (C3): it consumes two reverse-
// topological ancestor streams and computes the lowest common ancestors of
// their two roots, along with the resolved ancestor item seen from each side
// for every LCA (spec.md §4.3). rootX and rootY must be the same items the
// corresponding streams were rooted at (sX.Next()'s first non-virtual
// result, or the virtual head passed to walk.WalkFromItem).
//
// If extract is nil, Header.Version/Header.Parents are used directly.
//
// FindLCAs does not error when the two roots belong to disconnected DAG
// components; it simply returns an empty LCA list (spec.md P7).
func FindLCAs(ctx context.Context, sX, sY walk.Stream, rootX, rootY *dag.Item, extract Extract) (Result, error) {
	if sX == nil || sY == nil {
		return Result{}, &dag.ArgumentError{Reason: "missing stream"}
	}
	if extract == nil {
		extract = defaultExtract
	}

	openHeadsX := make(versionSet)
	openHeadsY := make(versionSet)
	seenX := make(versionSet)
	seenY := make(versionSet)
	commonAncestors := make(versionSet)
	itemsX := make(map[string]*dag.Item)
	itemsY := make(map[string]*dag.Item)
	var lcas []string

	rootXVersion, rootXParents := rootAndParents(rootX, extract)
	rootYVersion, rootYParents := rootAndParents(rootY, extract)
	seedOpenHeads(openHeadsX, rootXVersion, rootXParents)
	seedOpenHeads(openHeadsY, rootYVersion, rootYParents)

	terminated := func() bool {
		return openHeadsX.subsetOf(commonAncestors) && openHeadsY.subsetOf(commonAncestors)
	}

	process := func(item *dag.Item, opens, seen, otherSeen versionSet, items map[string]*dag.Item) error {
		v, pa := extract(item)
		if !opens.has(v) {
			return nil
		}
		opens.del(v)
		for _, p := range pa {
			opens.add(p)
		}
		seen.add(v)
		if commonAncestors.has(v) {
			items[v] = item
		}
		if otherSeen.has(v) {
			if !commonAncestors.has(v) {
				lcas = append(lcas, v)
				commonAncestors.add(v)
			}
			for _, p := range pa {
				commonAncestors.add(p)
				lcas = removeVersion(lcas, p)
			}
		}
		return nil
	}

	doneX, doneY := len(openHeadsX) == 0, len(openHeadsY) == 0
	for !terminated() && (!doneX || !doneY) {
		if !doneX {
			item, err := sX.Next(ctx)
			if err != nil {
				return Result{}, dag.WrapStoreError(err)
			}
			if item == nil {
				doneX = true
			} else if err := process(item, openHeadsX, seenX, seenY, itemsX); err != nil {
				return Result{}, err
			}
			if terminated() {
				break
			}
		}
		if !doneY {
			item, err := sY.Next(ctx)
			if err != nil {
				return Result{}, dag.WrapStoreError(err)
			}
			if item == nil {
				doneY = true
			} else if err := process(item, openHeadsY, seenY, seenX, itemsY); err != nil {
				return Result{}, err
			}
		}
	}

	// Project the item maps down to exactly the surviving (non-shadowed)
	// LCA versions.
	finalSet := make(versionSet, len(lcas))
	for _, v := range lcas {
		finalSet.add(v)
	}
	for v := range itemsX {
		if !finalSet.has(v) {
			delete(itemsX, v)
		}
	}
	for v := range itemsY {
		if !finalSet.has(v) {
			delete(itemsY, v)
		}
	}

	return Result{
		LCAs:   lcas,
		ItemsX: itemsX,
		ItemsY: itemsY,
		RootX:  rootXVersion,
		RootY:  rootYVersion,
	}, nil
}

// rootAndParents extracts a root item's version and parents, tolerating a
// nil item (treated as a root with no parents).
func rootAndParents(root *dag.Item, extract Extract) (string, []string) {
	if root == nil {
		return "", nil
	}
	return extract(root)
}

// seedOpenHeads seeds a frontier set for a traversal root: a virtual root
// (empty version) seeds its parents directly, since the virtual head itself
// is never yielded by its stream (spec.md §4.3 virtual head edge policy).
func seedOpenHeads(opens versionSet, version string, parents []string) {
	if version == "" {
		for _, p := range parents {
			opens.add(p)
		}
		return
	}
	opens.add(version)
}

// removeVersion returns a copy of versions with v removed, preserving order.
func removeVersion(versions []string, v string) []string {
	for i, candidate := range versions {
		if candidate == v {
			result := make([]string, 0, len(versions)-1)
			result = append(result, versions[:i]...)
			result = append(result, versions[i+1:]...)
			return result
		}
	}
	return versions
}
