package merge

import (
	"testing"

	"github.com/perspectivedb/perspectivedb/pkg/dag"
)

// TestMergePerspectiveBodiesSharedOnly covers attributes both perspectives
// track: behaves exactly like ThreeWayMergeBody, identical output both sides.
func TestMergePerspectiveBodiesSharedOnly(t *testing.T) {
	lca := dag.Body{"x": 1}
	bodyX := dag.Body{"x": 2}
	bodyY := dag.Body{"x": 1}

	mergedX, mergedY, conflicts := mergePerspectiveBodies(bodyX, bodyY, lca, lca)
	if conflicts != nil {
		t.Fatalf("unexpected conflicts: %v", conflicts)
	}
	if !mergedX.Equal(mergedY) {
		t.Fatalf("expected equal outputs for a fully shared attribute: %v / %v", mergedX, mergedY)
	}
	if mergedX["x"] != 2 {
		t.Fatalf("expected x=2, got %v", mergedX["x"])
	}
}

// TestMergePerspectiveBodiesPrivateFieldSurvives is the core regression this
// function exists to prevent: an attribute only X's side has ever tracked
// must survive onto X's output and never appear on Y's, rather than being
// deleted by a naive three-way merge that sees it as absent-on-Y.
func TestMergePerspectiveBodiesPrivateFieldSurvives(t *testing.T) {
	lcaBodyX := dag.Body{"x": 1, "secret": "s"}
	lcaBodyY := dag.Body{"x": 1}
	bodyX := dag.Body{"x": 1, "secret": "s"}
	bodyY := dag.Body{"x": 9}

	mergedX, mergedY, conflicts := mergePerspectiveBodies(bodyX, bodyY, lcaBodyX, lcaBodyY)
	if conflicts != nil {
		t.Fatalf("unexpected conflicts: %v", conflicts)
	}
	if mergedX["secret"] != "s" {
		t.Fatalf("expected private field to survive on X's output, got %v", mergedX)
	}
	if _, has := mergedY["secret"]; has {
		t.Fatalf("expected private field to never appear on Y's output, got %v", mergedY)
	}
	if mergedX["x"] != 9 || mergedY["x"] != 9 {
		t.Fatalf("expected shared attribute's edit to propagate to both sides, got %v / %v", mergedX["x"], mergedY["x"])
	}
}

// TestMergePerspectiveBodiesPrivateFieldDeletedLocally covers a perspective
// deleting its own private field: the deletion is local and doesn't touch
// the other side (which never had the field to begin with).
func TestMergePerspectiveBodiesPrivateFieldDeletedLocally(t *testing.T) {
	lcaBodyX := dag.Body{"x": 1, "secret": "s"}
	lcaBodyY := dag.Body{"x": 1}
	bodyX := dag.Body{"x": 1}
	bodyY := dag.Body{"x": 1}

	mergedX, mergedY, conflicts := mergePerspectiveBodies(bodyX, bodyY, lcaBodyX, lcaBodyY)
	if conflicts != nil {
		t.Fatalf("unexpected conflicts: %v", conflicts)
	}
	if _, has := mergedX["secret"]; has {
		t.Fatalf("expected deleted private field to stay deleted on X, got %v", mergedX)
	}
	if _, has := mergedY["secret"]; has {
		t.Fatalf("expected Y's output to never gain the private field, got %v", mergedY)
	}
}

// TestMergePerspectiveBodiesSharedConflict covers a genuine conflict on a
// shared attribute still surfacing even when private attributes are present.
func TestMergePerspectiveBodiesSharedConflict(t *testing.T) {
	lcaBodyX := dag.Body{"x": 1, "secret": "s"}
	lcaBodyY := dag.Body{"x": 1}
	bodyX := dag.Body{"x": 2, "secret": "s"}
	bodyY := dag.Body{"x": 3}

	_, _, conflicts := mergePerspectiveBodies(bodyX, bodyY, lcaBodyX, lcaBodyY)
	if len(conflicts) != 1 || conflicts[0] != "x" {
		t.Fatalf("expected conflict on x, got %v", conflicts)
	}
}

// TestMergePerspectiveBodiesBothSidesPrivate covers each side having its own
// distinct private attribute: both survive, each on only its own side.
func TestMergePerspectiveBodiesBothSidesPrivate(t *testing.T) {
	lcaBodyX := dag.Body{"onlyX": "a"}
	lcaBodyY := dag.Body{"onlyY": "b"}
	bodyX := dag.Body{"onlyX": "a"}
	bodyY := dag.Body{"onlyY": "b"}

	mergedX, mergedY, conflicts := mergePerspectiveBodies(bodyX, bodyY, lcaBodyX, lcaBodyY)
	if conflicts != nil {
		t.Fatalf("unexpected conflicts: %v", conflicts)
	}
	if mergedX["onlyX"] != "a" {
		t.Fatalf("expected X's private field on X's output, got %v", mergedX)
	}
	if _, has := mergedX["onlyY"]; has {
		t.Fatalf("expected Y's private field to never appear on X's output, got %v", mergedX)
	}
	if mergedY["onlyY"] != "b" {
		t.Fatalf("expected Y's private field on Y's output, got %v", mergedY)
	}
	if _, has := mergedY["onlyX"]; has {
		t.Fatalf("expected X's private field to never appear on Y's output, got %v", mergedY)
	}
}
