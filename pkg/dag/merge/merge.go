package merge

import (
	"bytes"
	"context"

	"github.com/perspectivedb/perspectivedb/pkg/dag"
	"github.com/perspectivedb/perspectivedb/pkg/dag/walk"
	"github.com/perspectivedb/perspectivedb/pkg/logging"
)

// Tree is the minimal read interface the Merger needs from each perspective's
// backing store: the same "getByVersion" primitive the Ancestor Walker
// consumes (spec.md §6). A concrete store satisfies this trivially.
type Tree = walk.Source

// state names the Merger's progress through spec.md §4.4's state machine,
// surfaced for logging rather than driving control flow (the Go
// implementation expresses the same sequence directly as a function body).
type state string

const (
	stateInit          state = "init"
	stateStreamsOpened state = "streams-opened"
	stateLcasCollected state = "lcas-collected"
	stateLcaFolded     state = "lca-folded"
	stateMerged        state = "merged"
)

// Merge implements the Merger (C4): given two items claiming the same
// logical id, one per perspective, it produces the pair of merged items each
// perspective should adopt (spec.md §4.4). itemX and itemY must both be
// persisted (non-virtual); treeX and treeY are used to walk ancestors and to
// resolve LCA versions back into per-perspective items.
//
// On success, mergedX is what perspective X should write (carrying X's own
// InsertionIndex and perspective tag) and mergedY is the equivalent for Y.
// On a true merge with conflicting attributes, Merge returns a
// *dag.MergeConflictError. Merge itself rejects unversioned items, so a
// resolution built with dag.NewVirtualHead cannot be passed back to it
// directly; FindLCAs and walk.WalkFromItem do accept such virtual roots.
func Merge(ctx context.Context, itemX, itemY *dag.Item, treeX, treeY Tree, log *logging.Logger) (mergedX, mergedY *dag.Item, err error) {
	st := stateInit
	log = log.Sublogger("merge")

	if itemX == nil || itemY == nil {
		return nil, nil, &dag.ArgumentError{Reason: "missing item"}
	}
	if err := itemX.EnsureValid(true); err != nil {
		return nil, nil, err
	}
	if err := itemY.EnsureValid(true); err != nil {
		return nil, nil, err
	}
	if !bytes.Equal(itemX.Header.ID, itemY.Header.ID) {
		return nil, nil, &dag.IdMismatchError{X: string(itemX.Header.ID), Y: string(itemY.Header.ID)}
	}

	if itemX.Header.Version == itemY.Header.Version {
		log.Debug("items already at the same version, nothing to merge")
		return itemX.Copy(), itemY.Copy(), nil
	}

	selector := walk.Selector{ID: itemX.Header.ID}
	sX := walk.WalkFromItem(ctx, treeX, selector, itemX, itemX.Header.Perspective)
	sY := walk.WalkFromItem(ctx, treeY, selector, itemY, itemY.Header.Perspective)
	defer sX.Close()
	defer sY.Close()
	st = stateStreamsOpened

	result, err := FindLCAs(ctx, sX, sY, itemX, itemY, nil)
	if err != nil {
		log.Error("lca search failed:", err)
		return nil, nil, err
	}
	if len(result.LCAs) == 0 {
		return nil, nil, &dag.NoLcaFoundError{RootX: itemX.Header.Version, RootY: itemY.Header.Version}
	}
	st = stateLcasCollected

	lcaItemsX, lcaItemsY, err := resolveLCAItems(ctx, treeX, treeY, result)
	if err != nil {
		return nil, nil, err
	}

	foldedX, foldedY, err := foldLCAs(ctx, treeX, treeY, result.LCAs, lcaItemsX, lcaItemsY)
	if err != nil {
		log.Error("lca folding failed:", err)
		return nil, nil, err
	}
	st = stateLcaFolded

	if foldedX.Header.Version != foldedY.Header.Version {
		return nil, nil, &dag.LcaVersionMismatchError{X: foldedX.Header.Version, Y: foldedY.Header.Version}
	}
	lcaVersion := foldedX.Header.Version

	switch {
	case lcaVersion != "" && lcaVersion == itemX.Header.Version:
		mergedX, mergedY, err = fastForward(itemY, itemX, foldedY, foldedX)
	case lcaVersion != "" && lcaVersion == itemY.Header.Version:
		mergedY, mergedX, err = fastForward(itemX, itemY, foldedX, foldedY)
	default:
		mergedX, mergedY, err = trueMerge(itemX, itemY, foldedX, foldedY)
	}
	if err != nil {
		return nil, nil, err
	}
	st = stateMerged
	log.Debug("merge complete, reached state", st)
	return mergedX, mergedY, nil
}

// resolveLCAItems fills in any LCA item missing from the LCA Finder's result
// (spec.md §4.3 notes that an item only gets captured in ItemsX/ItemsY if it
// was still pending when its version became a common ancestor; a version
// discovered as common only after its side already yielded it is never
// captured that way) by falling back to a direct store lookup.
func resolveLCAItems(ctx context.Context, treeX, treeY Tree, result Result) (map[string]*dag.Item, map[string]*dag.Item, error) {
	itemsX := make(map[string]*dag.Item, len(result.LCAs))
	itemsY := make(map[string]*dag.Item, len(result.LCAs))
	for _, v := range result.LCAs {
		ix, err := resolveOne(ctx, treeX, result.ItemsX, v, "X")
		if err != nil {
			return nil, nil, err
		}
		itemsX[v] = ix

		iy, err := resolveOne(ctx, treeY, result.ItemsY, v, "Y")
		if err != nil {
			return nil, nil, err
		}
		itemsY[v] = iy
	}
	return itemsX, itemsY, nil
}

func resolveOne(ctx context.Context, tree Tree, cached map[string]*dag.Item, version, perspective string) (*dag.Item, error) {
	if item, ok := cached[version]; ok {
		return item, nil
	}
	item, err := tree.GetByVersion(ctx, version)
	if err != nil {
		return nil, dag.WrapStoreError(err)
	}
	if item == nil {
		return nil, &dag.LcaUnresolvableError{Version: version, Perspective: perspective}
	}
	return item, nil
}

// foldLCAs reduces a set of LCA versions down to a single pair of items (one
// per perspective) via recursive pairwise folding, per spec.md §4.4 step 5:
// "pair the first two LCA items, invoke the Merger on them ... continue
// folding until one LCA remains." The X-side fold runs entirely within
// treeX and the Y-side fold entirely within treeY, since every LCA version
// is, by construction, resolvable in both trees (resolveLCAItems already
// confirmed this); each side's fold therefore never crosses perspectives.
func foldLCAs(ctx context.Context, treeX, treeY Tree, lcas []string, itemsX, itemsY map[string]*dag.Item) (*dag.Item, *dag.Item, error) {
	if len(lcas) == 1 {
		return itemsX[lcas[0]], itemsY[lcas[0]], nil
	}
	foldedX, err := foldSide(ctx, treeX, lcas, itemsX)
	if err != nil {
		return nil, nil, err
	}
	foldedY, err := foldSide(ctx, treeY, lcas, itemsY)
	if err != nil {
		return nil, nil, err
	}
	return foldedX, foldedY, nil
}

// foldSide folds a single perspective's images of the LCA set into one
// virtual item by repeated pairwise folding. Unlike the top-level Merge,
// every image folded here comes from the same tree and the same
// perspective, so there is no "other side" to carve private attributes out
// for: foldPair merges bodies as a single, fully shared set via
// ThreeWayMergeBody rather than mergePerspectiveBodies.
func foldSide(ctx context.Context, tree Tree, lcas []string, items map[string]*dag.Item) (*dag.Item, error) {
	cur := items[lcas[0]]
	for _, v := range lcas[1:] {
		next := items[v]
		folded, err := foldPair(ctx, tree, cur, next)
		if err != nil {
			return nil, err
		}
		cur = folded
	}
	return cur, nil
}

// foldPair merges two items known to live in the same tree and perspective
// into a single virtual item representing both, recursively resolving and
// folding their own LCA set first (spec.md §4.4's folding step applied one
// level down). If one item is already an ancestor of the other, folding is
// just a fast-forward: the descendant is returned as-is.
func foldPair(ctx context.Context, tree Tree, a, b *dag.Item) (*dag.Item, error) {
	if a.Header.Version == b.Header.Version {
		return a, nil
	}

	selector := walk.Selector{ID: a.Header.ID}
	sA := walk.WalkFromItem(ctx, tree, selector, a, a.Header.Perspective)
	sB := walk.WalkFromItem(ctx, tree, selector, b, b.Header.Perspective)
	defer sA.Close()
	defer sB.Close()

	result, err := FindLCAs(ctx, sA, sB, a, b, nil)
	if err != nil {
		return nil, err
	}
	if len(result.LCAs) == 0 {
		return nil, &dag.NoLcaFoundError{RootX: a.Header.Version, RootY: b.Header.Version}
	}

	lcaItems, err := resolveLCAItemsSingle(ctx, tree, result)
	if err != nil {
		return nil, err
	}

	var lca *dag.Item
	if len(result.LCAs) == 1 {
		lca = lcaItems[result.LCAs[0]]
	} else {
		lca, err = foldSide(ctx, tree, result.LCAs, lcaItems)
		if err != nil {
			return nil, err
		}
	}

	switch lca.Header.Version {
	case a.Header.Version:
		return b, nil
	case b.Header.Version:
		return a, nil
	}

	merged, conflicts := ThreeWayMergeBody(a.Body, b.Body, lca.Body, lca.Body)
	if len(conflicts) > 0 {
		return nil, &dag.MergeConflictError{Attributes: conflicts}
	}
	return &dag.Item{
		Header: dag.Header{
			ID:          append([]byte(nil), a.Header.ID...),
			Parents:     foldedParents(a, b),
			Perspective: a.Header.Perspective,
			Tombstone:   a.Header.Tombstone && b.Header.Tombstone,
		},
		Body: merged,
	}, nil
}

// foldedParents builds the parent list for a freshly folded item, per
// spec.md §4.4's "h.pa = [itemX.h.v, itemY.h.v] (or joined from parents if
// one side is a virtual head)" rule. A virtual side (produced by an earlier
// round of folding a 3+ LCA set) has no version of its own to record, so its
// own Header.Parents are spliced in directly rather than an empty string.
func foldedParents(a, b *dag.Item) []string {
	var parents []string
	parents = appendFoldedParent(parents, a)
	parents = appendFoldedParent(parents, b)
	return parents
}

// appendFoldedParent appends item's contribution to a folded parent list:
// its own version if persisted, or its own parents spliced in if virtual.
func appendFoldedParent(parents []string, item *dag.Item) []string {
	if item.Header.IsVirtual() {
		return append(parents, item.Header.Parents...)
	}
	return append(parents, item.Header.Version)
}

// resolveLCAItemsSingle is resolveLCAItems' single-tree counterpart, used by
// foldPair where both streams read from the same tree: an LCA version may
// have been captured under either stream's ItemsX/ItemsY bucket depending on
// which side was still pending when it surfaced, so both are checked before
// falling back to a direct store lookup.
func resolveLCAItemsSingle(ctx context.Context, tree Tree, result Result) (map[string]*dag.Item, error) {
	out := make(map[string]*dag.Item, len(result.LCAs))
	for _, v := range result.LCAs {
		if item, ok := result.ItemsX[v]; ok {
			out[v] = item
			continue
		}
		if item, ok := result.ItemsY[v]; ok {
			out[v] = item
			continue
		}
		item, err := tree.GetByVersion(ctx, v)
		if err != nil {
			return nil, dag.WrapStoreError(err)
		}
		if item == nil {
			return nil, &dag.LcaUnresolvableError{Version: v, Perspective: "fold"}
		}
		out[v] = item
	}
	return out, nil
}

// fastForward implements the fast-forward branch of spec.md §4.4's dispatch:
// behind is the item whose version equals the resolved LCA's, and ahead is
// the descendant it is catching up to. lcaAhead and lcaBehind are the folded
// LCA items as seen from ahead's and behind's trees respectively (when there
// was a single, unfolded LCA, lcaBehind is behind itself and lcaAhead is
// behind's version as stored in ahead's tree).
//
// It returns (mergedBehind, mergedAhead): the new item behind's perspective
// should adopt, and ahead's own item unchanged.
func fastForward(ahead, behind, lcaAhead, lcaBehind *dag.Item) (mergedBehind, mergedAhead *dag.Item, err error) {
	mergedBody := fastForwardBody(behind.Body, ahead.Body, lcaBehind.Body, lcaAhead.Body)
	mergedBehind = &dag.Item{
		Header: dag.Header{
			ID:             append([]byte(nil), behind.Header.ID...),
			Version:        ahead.Header.Version,
			Parents:        append([]string(nil), ahead.Header.Parents...),
			Perspective:    behind.Header.Perspective,
			InsertionIndex: behind.Header.InsertionIndex,
			Tombstone:      ahead.Header.Tombstone,
		},
		Body: mergedBody,
	}
	return mergedBehind, ahead.Copy(), nil
}

// trueMerge implements the non-fast-forward branch of spec.md §4.4's
// dispatch: both sides have diverged since the LCA, so each perspective's
// output is computed independently via mergePerspectiveBodies, preserving
// perspective-private attributes on their own side only.
func trueMerge(itemX, itemY, lcaX, lcaY *dag.Item) (mergedX, mergedY *dag.Item, err error) {
	bodyX, bodyY, conflicts := mergePerspectiveBodies(itemX.Body, itemY.Body, lcaX.Body, lcaY.Body)
	if len(conflicts) > 0 {
		return nil, nil, &dag.MergeConflictError{Attributes: conflicts}
	}

	parents := []string{itemX.Header.Version, itemY.Header.Version}
	tombstone := itemX.Header.Tombstone && itemY.Header.Tombstone

	mergedX = &dag.Item{
		Header: dag.Header{
			ID:             append([]byte(nil), itemX.Header.ID...),
			Parents:        append([]string(nil), parents...),
			Perspective:    itemX.Header.Perspective,
			InsertionIndex: itemX.Header.InsertionIndex,
			Tombstone:      tombstone,
		},
		Body: bodyX,
	}
	mergedY = &dag.Item{
		Header: dag.Header{
			ID:             append([]byte(nil), itemY.Header.ID...),
			Parents:        append([]string(nil), parents...),
			Perspective:    itemY.Header.Perspective,
			InsertionIndex: itemY.Header.InsertionIndex,
			Tombstone:      tombstone,
		},
		Body: bodyY,
	}
	return mergedX, mergedY, nil
}
