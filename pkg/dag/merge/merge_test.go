package merge

import (
	"context"
	"testing"

	"github.com/perspectivedb/perspectivedb/pkg/dag"
	"github.com/perspectivedb/perspectivedb/pkg/store"
)

// item constructs a persisted item for seeding test stores.
func item(id string, version string, parents []string, body dag.Body, tombstone bool) *dag.Item {
	return &dag.Item{
		Header: dag.Header{
			ID:        []byte(id),
			Version:   version,
			Parents:   parents,
			Tombstone: tombstone,
		},
		Body: body.Clone(),
	}
}

// seed inserts items, in order, into every given store.
func seed(t *testing.T, items []*dag.Item, stores ...*store.MemoryStore) {
	t.Helper()
	for _, it := range items {
		for _, s := range stores {
			if err := s.Put(context.Background(), it); err != nil {
				t.Fatalf("unable to seed item %q: %v", it.Header.Version, err)
			}
		}
	}
}

// TestMergeLinearFastForward implements spec.md S1: A <- B, merge(A, B) ->
// both outputs equal B.
func TestMergeLinearFastForward(t *testing.T) {
	a := item("1", "A", nil, dag.Body{"x": 1}, false)
	b := item("1", "B", []string{"A"}, dag.Body{"x": 1, "y": 2}, false)

	sx := store.NewMemoryStore("x", nil)
	sy := store.NewMemoryStore("y", nil)
	seed(t, []*dag.Item{a, b}, sx, sy)

	ax, _ := sx.GetByVersion(context.Background(), "A")
	bx, _ := sy.GetByVersion(context.Background(), "B")

	mergedX, mergedY, err := Merge(context.Background(), ax, bx, sx, sy, nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if mergedX.Header.Version != "B" || mergedY.Header.Version != "B" {
		t.Fatalf("expected both outputs at version B, got %q and %q", mergedX.Header.Version, mergedY.Header.Version)
	}
	if !mergedX.Body.Equal(bx.Body) || !mergedY.Body.Equal(bx.Body) {
		t.Fatalf("expected both outputs to have B's body")
	}
}

// TestMergeSimpleThreeWay implements spec.md S2.
func TestMergeSimpleThreeWay(t *testing.T) {
	a := item("1", "A", nil, dag.Body{"x": 1, "y": 1}, false)
	b := item("1", "B", []string{"A"}, dag.Body{"x": 2, "y": 1}, false)
	c := item("1", "C", []string{"A"}, dag.Body{"x": 1, "y": 3}, false)

	sx := store.NewMemoryStore("x", nil)
	sy := store.NewMemoryStore("y", nil)
	seed(t, []*dag.Item{a, b, c}, sx, sy)

	bItem, _ := sx.GetByVersion(context.Background(), "B")
	cItem, _ := sy.GetByVersion(context.Background(), "C")

	mergedX, mergedY, err := Merge(context.Background(), bItem, cItem, sx, sy, nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	wantBody := dag.Body{"x": 2, "y": 3}
	if !mergedX.Body.Equal(wantBody) || !mergedY.Body.Equal(wantBody) {
		t.Fatalf("unexpected merged body: %v / %v", mergedX.Body, mergedY.Body)
	}
	wantParents := map[string]bool{"B": true, "C": true}
	if len(mergedX.Header.Parents) != 2 || !wantParents[mergedX.Header.Parents[0]] || !wantParents[mergedX.Header.Parents[1]] {
		t.Fatalf("unexpected merged parents: %v", mergedX.Header.Parents)
	}
}

// TestMergeConflict implements spec.md S3.
func TestMergeConflict(t *testing.T) {
	a := item("1", "A", nil, dag.Body{"x": 1}, false)
	b := item("1", "B", []string{"A"}, dag.Body{"x": 2}, false)
	c := item("1", "C", []string{"A"}, dag.Body{"x": 3}, false)

	sx := store.NewMemoryStore("x", nil)
	sy := store.NewMemoryStore("y", nil)
	seed(t, []*dag.Item{a, b, c}, sx, sy)

	bItem, _ := sx.GetByVersion(context.Background(), "B")
	cItem, _ := sy.GetByVersion(context.Background(), "C")

	_, _, err := Merge(context.Background(), bItem, cItem, sx, sy, nil)
	conflict, ok := err.(*dag.MergeConflictError)
	if !ok {
		t.Fatalf("expected *dag.MergeConflictError, got %T (%v)", err, err)
	}
	if len(conflict.Attributes) != 1 || conflict.Attributes[0] != "x" {
		t.Fatalf("unexpected conflict attributes: %v", conflict.Attributes)
	}
}

// TestMergeCrissCross implements spec.md S4: two incomparable LCAs, neither
// a descendant of the other, requiring recursive folding before the merge
// can proceed. The two children P1 and P2 of R both feed into the two
// merge points D and E, the minimal shape that produces two LCAs instead
// of one (S4's own diagram traces the same incomparable-pair situation
// through a larger lattice). P1 and P2 touch disjoint attributes so their
// own fold is conflict-free; D and E each build on both and additionally
// diverge on "v", so the outer merge still has real work to do once
// folding reduces them to a single ancestor.
func TestMergeCrissCross(t *testing.T) {
	r := item("1", "R", nil, dag.Body{"v": 0}, false)
	p1 := item("1", "P1", []string{"R"}, dag.Body{"v": 0, "a": 1}, false)
	p2 := item("1", "P2", []string{"R"}, dag.Body{"v": 0, "b": 1}, false)
	d := item("1", "D", []string{"P1", "P2"}, dag.Body{"v": 0, "a": 1, "b": 1}, false)
	e := item("1", "E", []string{"P1", "P2"}, dag.Body{"v": 9, "a": 1, "b": 1}, false)

	sx := store.NewMemoryStore("x", nil)
	sy := store.NewMemoryStore("y", nil)
	seed(t, []*dag.Item{r, p1, p2, d, e}, sx, sy)

	dItem, _ := sx.GetByVersion(context.Background(), "D")
	eItem, _ := sy.GetByVersion(context.Background(), "E")

	mergedX, mergedY, err := Merge(context.Background(), dItem, eItem, sx, sy, nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(mergedX.Header.Parents) != 2 {
		t.Fatalf("expected 2 parents, got %v", mergedX.Header.Parents)
	}
	if !mergedX.Body.Equal(mergedY.Body) {
		t.Fatalf("expected structurally equal bodies on both sides for a single-perspective fold: %v / %v", mergedX.Body, mergedY.Body)
	}

	// merge(E, D) should be symmetric (P3).
	mergedX2, mergedY2, err := Merge(context.Background(), eItem, dItem, sy, sx, nil)
	if err != nil {
		t.Fatalf("Merge (swapped) failed: %v", err)
	}
	if !mergedX2.Body.Equal(mergedY.Body) || !mergedY2.Body.Equal(mergedX.Body) {
		t.Fatalf("merge was not symmetric mod perspective swap")
	}
}

// TestMergeFastForwardPreservesPrivateFields implements spec.md S5.
func TestMergeFastForwardPreservesPrivateFields(t *testing.T) {
	aI := item("1", "A", nil, dag.Body{"x": 1, "some": "secret"}, false)
	bI := item("1", "B", []string{"A"}, dag.Body{"x": 1, "some": "secret"}, false)

	aII := item("1", "A", nil, dag.Body{"x": 1}, false)
	bII := item("1", "B", []string{"A"}, dag.Body{"x": 1}, false)
	cII := item("1", "C", []string{"B"}, dag.Body{"x": 9}, false)

	perspectiveI := store.NewMemoryStore("I", nil)
	perspectiveII := store.NewMemoryStore("II", nil)
	seed(t, []*dag.Item{aI, bI}, perspectiveI)
	seed(t, []*dag.Item{aII, bII, cII}, perspectiveII)

	bItem, _ := perspectiveI.GetByVersion(context.Background(), "B")
	cItem, _ := perspectiveII.GetByVersion(context.Background(), "C")

	mergedX, mergedY, err := Merge(context.Background(), bItem, cItem, perspectiveI, perspectiveII, nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if mergedX.Header.Version != "C" || mergedY.Header.Version != "C" {
		t.Fatalf("expected both outputs at C, got %q / %q", mergedX.Header.Version, mergedY.Header.Version)
	}
	if mergedX.Body["some"] != "secret" {
		t.Fatalf("expected perspective I's private field to survive fast-forward, got %v", mergedX.Body)
	}
	if _, has := mergedY.Body["some"]; has {
		t.Fatalf("expected perspective II's output to never gain the private field, got %v", mergedY.Body)
	}
	if mergedX.Body["x"] != 9 {
		t.Fatalf("expected the concurrent edit to 'x' to be reflected, got %v", mergedX.Body["x"])
	}
}

// TestFoldSideSplicesVirtualParents covers folding 3 mutually incomparable
// LCAs, the minimal shape where foldSide must hand foldPair a virtual
// intermediate item (the unpersisted result of folding the first pair) as one
// of its two inputs. Per spec.md §4.4, a virtual contributor's own parents
// must be spliced into the next fold's parent list; the previous code instead
// recorded the virtual item's (nonexistent) empty-string version, which
// pkg/dag/walk's enqueueVersion silently drops, severing ancestry the next
// time a walk is seeded from the folded result.
func TestFoldSideSplicesVirtualParents(t *testing.T) {
	r := item("1", "R", nil, dag.Body{"v": 0}, false)
	p1 := item("1", "P1", []string{"R"}, dag.Body{"v": 0, "a": 1}, false)
	p2 := item("1", "P2", []string{"R"}, dag.Body{"v": 0, "b": 1}, false)
	p3 := item("1", "P3", []string{"R"}, dag.Body{"v": 0, "c": 1}, false)

	sx := store.NewMemoryStore("x", nil)
	seed(t, []*dag.Item{r, p1, p2, p3}, sx)

	items := map[string]*dag.Item{"P1": p1, "P2": p2, "P3": p3}
	folded, err := foldSide(context.Background(), sx, []string{"P1", "P2", "P3"}, items)
	if err != nil {
		t.Fatalf("foldSide failed: %v", err)
	}

	for _, p := range folded.Header.Parents {
		if p == "" {
			t.Fatalf("folded parents contain an empty string (virtual ancestry lost): %v", folded.Header.Parents)
		}
	}

	want := map[string]bool{"P1": true, "P2": true, "P3": true}
	if len(folded.Header.Parents) != len(want) {
		t.Fatalf("expected parents spliced from all 3 LCAs, got %v", folded.Header.Parents)
	}
	for _, p := range folded.Header.Parents {
		if !want[p] {
			t.Fatalf("unexpected parent %q in folded result: %v", p, folded.Header.Parents)
		}
	}

	wantBody := dag.Body{"v": 0, "a": 1, "b": 1, "c": 1}
	if !folded.Body.Equal(wantBody) {
		t.Fatalf("expected folded body to combine all 3 sides' edits, got %v", folded.Body)
	}
}

// TestMergeFourWayCrissCross implements spec.md:41's "up to four observed in
// practice": D and E both build on all of P1..P4, so their minimal common
// ancestors are the four siblings themselves, none dominating another. This
// drives foldSide through two full rounds of pairwise folding on each side
// (three folds to reduce four LCAs to one), the deepest case where a
// corrupted virtual parent could silently sever ancestry partway through.
func TestMergeFourWayCrissCross(t *testing.T) {
	r := item("1", "R", nil, dag.Body{"v": 0}, false)
	p1 := item("1", "P1", []string{"R"}, dag.Body{"v": 0, "a": 1}, false)
	p2 := item("1", "P2", []string{"R"}, dag.Body{"v": 0, "b": 1}, false)
	p3 := item("1", "P3", []string{"R"}, dag.Body{"v": 0, "c": 1}, false)
	p4 := item("1", "P4", []string{"R"}, dag.Body{"v": 0, "d": 1}, false)
	parents := []string{"P1", "P2", "P3", "P4"}
	d := item("1", "D", parents, dag.Body{"v": 0, "a": 1, "b": 1, "c": 1, "d": 1}, false)
	e := item("1", "E", parents, dag.Body{"v": 9, "a": 1, "b": 1, "c": 1, "d": 1}, false)

	sx := store.NewMemoryStore("x", nil)
	sy := store.NewMemoryStore("y", nil)
	seed(t, []*dag.Item{r, p1, p2, p3, p4, d, e}, sx, sy)

	dItem, _ := sx.GetByVersion(context.Background(), "D")
	eItem, _ := sy.GetByVersion(context.Background(), "E")

	mergedX, mergedY, err := Merge(context.Background(), dItem, eItem, sx, sy, nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if len(mergedX.Header.Parents) != 2 || mergedX.Header.Parents[0] != "D" || mergedX.Header.Parents[1] != "E" {
		t.Fatalf("expected the outer merge's parents to be [D, E], got %v", mergedX.Header.Parents)
	}
	wantBody := dag.Body{"v": 9, "a": 1, "b": 1, "c": 1, "d": 1}
	if !mergedX.Body.Equal(wantBody) || !mergedY.Body.Equal(wantBody) {
		t.Fatalf("expected both outputs to reflect all 4 ancestors' edits plus E's divergence on v, got %v / %v", mergedX.Body, mergedY.Body)
	}
}

// TestMergeTombstoneOneSided implements the first half of spec.md S6: a
// tombstone merged against an unrelated edit must not itself flip the
// tombstone bit, and the live edit must survive.
func TestMergeTombstoneOneSided(t *testing.T) {
	a := item("1", "A", nil, dag.Body{"x": 1, "y": 2}, false)
	b := item("1", "B", []string{"A"}, dag.Body{"x": 2, "y": 2}, false)
	c := item("1", "C", []string{"A"}, dag.Body{"x": 1, "y": 2}, true)

	sx := store.NewMemoryStore("x", nil)
	sy := store.NewMemoryStore("y", nil)
	seed(t, []*dag.Item{a, b, c}, sx, sy)

	bItem, _ := sx.GetByVersion(context.Background(), "B")
	cItem, _ := sy.GetByVersion(context.Background(), "C")

	mergedX, _, err := Merge(context.Background(), bItem, cItem, sx, sy, nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if mergedX.Header.Tombstone {
		t.Fatalf("expected merge of one-sided tombstone against an edit to not be marked deleted")
	}
	if mergedX.Body["x"] != 2 {
		t.Fatalf("expected B's edit to 'x' to survive, got %v", mergedX.Body["x"])
	}
}

// TestMergeTombstoneBothSides implements the second half of spec.md S6: both
// sides tombstoned produces a tombstoned merge result.
func TestMergeTombstoneBothSides(t *testing.T) {
	a := item("1", "A", nil, dag.Body{"x": 1}, false)
	b := item("1", "B", []string{"A"}, dag.Body{"x": 1}, true)
	c := item("1", "C", []string{"A"}, dag.Body{"x": 1}, true)

	sx := store.NewMemoryStore("x", nil)
	sy := store.NewMemoryStore("y", nil)
	seed(t, []*dag.Item{a, b, c}, sx, sy)

	bItem, _ := sx.GetByVersion(context.Background(), "B")
	cItem, _ := sy.GetByVersion(context.Background(), "C")

	mergedX, mergedY, err := Merge(context.Background(), bItem, cItem, sx, sy, nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !mergedX.Header.Tombstone || !mergedY.Header.Tombstone {
		t.Fatalf("expected both-tombstone merge to produce a tombstoned result")
	}
}

// TestMergeFastForwardIdempotence implements spec.md P4.
func TestMergeFastForwardIdempotence(t *testing.T) {
	a := item("1", "A", nil, dag.Body{"x": 1}, false)

	sx := store.NewMemoryStore("x", nil)
	sy := store.NewMemoryStore("y", nil)
	seed(t, []*dag.Item{a}, sx, sy)

	aX, _ := sx.GetByVersion(context.Background(), "A")
	aY, _ := sy.GetByVersion(context.Background(), "A")

	mergedX, mergedY, err := Merge(context.Background(), aX, aY, sx, sy, nil)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !mergedX.Equal(aX) || !mergedY.Equal(aY) {
		t.Fatalf("expected merge(A, A) to be a no-op")
	}
}

// TestMergeDisconnectedNoLca implements spec.md P7.
func TestMergeDisconnectedNoLca(t *testing.T) {
	a := item("1", "A", nil, dag.Body{"x": 1}, false)
	z := item("1", "Z", nil, dag.Body{"x": 2}, false)

	sx := store.NewMemoryStore("x", nil)
	sy := store.NewMemoryStore("y", nil)
	seed(t, []*dag.Item{a}, sx)
	seed(t, []*dag.Item{z}, sy)

	aItem, _ := sx.GetByVersion(context.Background(), "A")
	zItem, _ := sy.GetByVersion(context.Background(), "Z")

	_, _, err := Merge(context.Background(), aItem, zItem, sx, sy, nil)
	if _, ok := err.(*dag.NoLcaFoundError); !ok {
		t.Fatalf("expected *dag.NoLcaFoundError, got %T (%v)", err, err)
	}
}

// TestMergeIdMismatch ensures items with different logical ids are rejected.
func TestMergeIdMismatch(t *testing.T) {
	a := item("1", "A", nil, dag.Body{}, false)
	z := item("2", "Z", nil, dag.Body{}, false)

	sx := store.NewMemoryStore("x", nil)
	sy := store.NewMemoryStore("y", nil)
	seed(t, []*dag.Item{a}, sx)
	seed(t, []*dag.Item{z}, sy)

	aItem, _ := sx.GetByVersion(context.Background(), "A")
	zItem, _ := sy.GetByVersion(context.Background(), "Z")

	_, _, err := Merge(context.Background(), aItem, zItem, sx, sy, nil)
	if _, ok := err.(*dag.IdMismatchError); !ok {
		t.Fatalf("expected *dag.IdMismatchError, got %T (%v)", err, err)
	}
}
