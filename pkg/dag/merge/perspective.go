package merge

import (
	"github.com/perspectivedb/perspectivedb/pkg/dag"
)

// mergePerspectiveBodies computes the two per-perspective output bodies for
// a true (non-fast-forward) merge between two perspectives.
//
// A plain application of ThreeWayMergeBody across perspectives has a flaw:
// an attribute tracked only by one perspective (a "private" field, such as a
// secrets hook's injected attribute) is, from the other perspective's point
// of view, indistinguishable from a deleted attribute, since both appear as
// simply absent from that side's current and ancestor bodies. Running the
// generic algorithm directly would therefore delete private attributes on
// every cross-perspective merge.
//
// This function resolves that (spec.md §4.4/§9, "two versions of the body
// are produced ... so each perspective's private fields are preserved")
// by partitioning attributes into shared attributes — tracked by both
// perspectives' current or ancestor bodies — and perspective-private
// attributes — present in only one side's current or ancestor body. Shared
// attributes go through a single ThreeWayMergeBody pass, common to both
// outputs. Private attributes bypass merge entirely and are carried forward
// verbatim from their owning side's current body onto that side's output
// only; they never appear on the other side's output and never contribute a
// conflict.
func mergePerspectiveBodies(bodyX, bodyY, lcaBodyX, lcaBodyY dag.Body) (mergedX, mergedY dag.Body, conflicts []string) {
	privateX := make(dag.Body)
	privateY := make(dag.Body)
	sharedKeys := make(map[string]struct{})

	for name := range attributeUnion(bodyX, bodyY, lcaBodyX, lcaBodyY) {
		_, xCur := bodyX[name]
		_, xLca := lcaBodyX[name]
		_, yCur := bodyY[name]
		_, yLca := lcaBodyY[name]

		switch {
		case !yCur && !yLca && (xCur || xLca):
			if xCur {
				privateX[name] = bodyX[name]
			}
		case !xCur && !xLca && (yCur || yLca):
			if yCur {
				privateY[name] = bodyY[name]
			}
		default:
			sharedKeys[name] = struct{}{}
		}
	}

	sharedMerged, sharedConflicts := ThreeWayMergeBody(
		filterBody(bodyX, sharedKeys),
		filterBody(bodyY, sharedKeys),
		filterBody(lcaBodyX, sharedKeys),
		filterBody(lcaBodyY, sharedKeys),
	)
	if len(sharedConflicts) > 0 {
		return nil, nil, sharedConflicts
	}

	mergedX = make(dag.Body, len(sharedMerged)+len(privateX))
	mergedY = make(dag.Body, len(sharedMerged)+len(privateY))
	for k, v := range sharedMerged {
		mergedX[k] = v
		mergedY[k] = v
	}
	for k, v := range privateX {
		mergedX[k] = v
	}
	for k, v := range privateY {
		mergedY[k] = v
	}
	return mergedX, mergedY, nil
}

// fastForwardBody computes the body a catching-up perspective should adopt
// when fast-forwarding to ahead: unlike a true merge, there is no divergence
// to reconcile, so ahead's current body is authoritative for every attribute
// it carries. The one exception is behind's own perspective-private
// attributes (spec.md §4.4/§9): an attribute with no footprint at all in
// ahead's perspective, neither currently nor at the common ancestor, belongs
// only to behind and must survive the catch-up rather than being dropped
// just because ahead doesn't carry it forward.
//
// Passing behind's body through mergePerspectiveBodies here (as an earlier
// draft did) double-counts: any attribute ahead added since the ancestor has
// no footprint in behind's lca or current body either, so the shared/private
// split would misclassify it as "private to ahead" and silently drop it from
// behind's catch-up body instead of adopting it.
func fastForwardBody(bodyBehind, bodyAhead, lcaBodyBehind, lcaBodyAhead dag.Body) dag.Body {
	merged := bodyAhead.Clone()
	if merged == nil {
		merged = make(dag.Body)
	}
	for name := range attributeUnion(bodyBehind, lcaBodyBehind) {
		if _, ok := bodyAhead[name]; ok {
			continue
		}
		if _, ok := lcaBodyAhead[name]; ok {
			continue
		}
		if v, ok := bodyBehind[name]; ok {
			merged[name] = v
		}
	}
	return merged
}

// filterBody returns a copy of b containing only the attributes named in
// keys.
func filterBody(b dag.Body, keys map[string]struct{}) dag.Body {
	result := make(dag.Body, len(keys))
	for k := range keys {
		if v, ok := b[k]; ok {
			result[k] = v
		}
	}
	return result
}
