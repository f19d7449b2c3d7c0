// Package merge implements the Three-Way Body Merge (C1), the LCA Finder
// (C3), and the Merger (C4) components of the reconciliation engine.
package merge

import (
	"sort"

	"github.com/perspectivedb/perspectivedb/pkg/dag"
)

// ThreeWayMergeBody merges bodyX and bodyY against their (already-reconciled
// or structurally equal) common-ancestor bodies lcaBodyX and lcaBodyY,
// implementing spec.md §4.1 exactly: for each attribute appearing in any
// input, keep the value both sides agree on, take whichever side changed it
// away from the ancestor, and otherwise record a conflict.
//
// It returns the merged body and a nil conflict list on success, or a nil
// body and the sorted list of conflicting attribute names otherwise. The
// function is symmetric: swapping X and Y yields the same conflict set and,
// absent conflicts, structurally equal bodies (spec.md P3).
func ThreeWayMergeBody(bodyX, bodyY, lcaBodyX, lcaBodyY dag.Body) (dag.Body, []string) {
	merged := make(dag.Body)
	var conflicts []string

	for name := range attributeUnion(bodyX, bodyY, lcaBodyX, lcaBodyY) {
		vLca, lcaHas := lookupEquivalent(lcaBodyX, lcaBodyY, name)
		vX, xHas := bodyX[name]
		vY, yHas := bodyY[name]

		switch {
		case equalPresence(vX, xHas, vY, yHas):
			if xHas {
				merged[name] = vX
			}
		case equalPresence(vX, xHas, vLca, lcaHas):
			// X matches the ancestor; Y's value (including absence) wins.
			if yHas {
				merged[name] = vY
			}
		case equalPresence(vY, yHas, vLca, lcaHas):
			// Y matches the ancestor; X's value (including absence) wins.
			if xHas {
				merged[name] = vX
			}
		default:
			conflicts = append(conflicts, name)
		}
	}

	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, conflicts
	}
	return merged, nil
}

// lookupEquivalent returns the LCA value for an attribute. The caller
// guarantees both LCA bodies have already been reconciled (or are
// structurally equal); when they disagree (e.g. during recursive LCA
// folding before reconciliation completes), lcaBodyX's value takes
// precedence whenever lcaBodyX has the attribute; lcaBodyY's value is used
// only for attributes lcaBodyX lacks.
func lookupEquivalent(lcaBodyX, lcaBodyY dag.Body, name string) (any, bool) {
	if v, ok := lcaBodyX[name]; ok {
		return v, true
	}
	if v, ok := lcaBodyY[name]; ok {
		return v, true
	}
	return nil, false
}

// equalPresence reports whether two (value, present) pairs are equivalent:
// both absent, or both present with structurally equal values.
func equalPresence(a any, aHas bool, b any, bHas bool) bool {
	if aHas != bHas {
		return false
	}
	if !aHas {
		return true
	}
	return dag.ValuesEqual(a, b)
}

// attributeUnion returns the set of attribute names appearing in any of the
// given bodies.
func attributeUnion(bodies ...dag.Body) map[string]struct{} {
	names := make(map[string]struct{})
	for _, b := range bodies {
		for k := range b {
			names[k] = struct{}{}
		}
	}
	return names
}
