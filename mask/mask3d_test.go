package mask

import (
	"context"
	"errors"
	"testing"
)

func pointSet3d(t *testing.T, m *Mask3d) map[Point3d]struct{} {
	t.Helper()
	pts, err := m.Points(context.Background())
	if err != nil {
		t.Fatalf("Points failed: %v\n", err)
	}
	set := make(map[Point3d]struct{}, len(pts))
	for _, p := range pts {
		set[p] = struct{}{}
	}
	return set
}

func samePoints3d(t *testing.T, got, want *Mask3d) {
	t.Helper()
	gs, ws := pointSet3d(t, got), pointSet3d(t, want)
	if len(gs) != len(ws) {
		t.Errorf("Got %d points, expected %d\n", len(gs), len(ws))
		return
	}
	for p := range ws {
		if _, found := gs[p]; !found {
			t.Errorf("Missing point %s\n", p)
		}
	}
}

func box3d(x, y, z, w, h, d int32) *Mask3d {
	var pts []Point3d
	for k := z; k < z+d; k++ {
		for j := y; j < y+h; j++ {
			for i := x; i < x+w; i++ {
				pts = append(pts, Point3d{i, j, k})
			}
		}
	}
	return Mask3dFromPoints(pts)
}

func TestMask3dFromPoints(t *testing.T) {
	pts := []Point3d{{1, 2, 3}, {4, 2, 3}, {1, 5, 6}}
	m := Mask3dFromPoints(pts)
	want := NewBounds3d(1, 2, 3, 4, 4, 4)
	if m.Bounds != want {
		t.Errorf("Bad bounds %s, expected %s\n", m.Bounds, want)
	}
	if m.NumPoints() != 3 {
		t.Errorf("Expected 3 points, got %d\n", m.NumPoints())
	}
	for _, p := range pts {
		if !m.Contains(p[0], p[1], p[2]) {
			t.Errorf("Mask missing point %s\n", p)
		}
	}
	if m.Contains(2, 2, 3) {
		t.Errorf("Mask contains point that was never set\n")
	}
}

func TestMask3dPointsOrder(t *testing.T) {
	// Points come back in ascending (z, y, x) scan order regardless of
	// insertion order.
	m := Mask3dFromPoints([]Point3d{{2, 1, 5}, {0, 0, 1}, {1, 1, 5}, {3, 0, 5}})
	pts, err := m.Points(context.Background())
	if err != nil {
		t.Fatalf("Points failed: %v\n", err)
	}
	want := []Point3d{{0, 0, 1}, {3, 0, 5}, {1, 1, 5}, {2, 1, 5}}
	if len(pts) != len(want) {
		t.Fatalf("Got %d points, expected %d\n", len(pts), len(want))
	}
	for i, p := range want {
		if pts[i] != p {
			t.Errorf("Point %d is %s, expected %s\n", i, pts[i], p)
		}
	}
}

func TestMask3dUnionIdentity(t *testing.T) {
	ctx := context.Background()
	a := box3d(0, 0, 0, 3, 3, 2)
	empty := NewMask3d(NewBounds3d(10, 10, 10, 5, 5, 5))

	union, err := Union(ctx, a, empty)
	if err != nil {
		t.Fatalf("Union with empty mask failed: %v\n", err)
	}
	samePoints3d(t, union, a)
	if union == a {
		t.Errorf("union(A, empty) returned the operand instead of a clone\n")
	}

	union, err = Union(ctx, nil, a)
	if err != nil {
		t.Fatalf("Union with nil failed: %v\n", err)
	}
	samePoints3d(t, union, a)
}

func TestMask3dReconstruction(t *testing.T) {
	// (A - B) + (A ^ B) + (B - A) must rebuild A + B exactly.
	ctx := context.Background()
	a := box3d(0, 0, 0, 3, 3, 3)
	b := box3d(1, 1, 1, 3, 3, 3)

	sub1, err := Subtract(ctx, a, b)
	if err != nil {
		t.Fatalf("Subtract failed: %v\n", err)
	}
	inter, err := Intersect(ctx, a, b)
	if err != nil {
		t.Fatalf("Intersect failed: %v\n", err)
	}
	if inter.NumPoints() != 8 {
		t.Errorf("Intersection has %d points, expected 8\n", inter.NumPoints())
	}
	sub2, err := Subtract(ctx, b, a)
	if err != nil {
		t.Fatalf("Subtract failed: %v\n", err)
	}
	rebuilt, err := Merge(ctx, []*Mask3d{sub1, inter, sub2}, OpUnion)
	if err != nil {
		t.Fatalf("Merge failed: %v\n", err)
	}
	union, err := Union(ctx, a, b)
	if err != nil {
		t.Fatalf("Union failed: %v\n", err)
	}
	samePoints3d(t, rebuilt, union)

	// A ^ A is empty.
	xor, err := ExclusiveUnion(ctx, a, a)
	if err != nil {
		t.Fatalf("ExclusiveUnion failed: %v\n", err)
	}
	if !xor.IsEmpty() {
		t.Errorf("A ^ A has %d points, expected none\n", xor.NumPoints())
	}
}

func TestMask3dInfiniteAxisRules(t *testing.T) {
	ctx := context.Background()
	finite := box3d(0, 0, 0, 4, 4, 2)
	infinite := UniformMask3d(square2d(0, 0, 4, 4))

	if _, err := Union(ctx, finite, infinite); !errors.Is(err, ErrIncompatible) {
		t.Errorf("Union of finite and infinite Z should fail, got %v\n", err)
	}
	if _, err := Intersect(ctx, finite, infinite); !errors.Is(err, ErrIncompatible) {
		t.Errorf("Intersection of finite and infinite Z should fail, got %v\n", err)
	}
	if _, err := ExclusiveUnion(ctx, infinite, finite); !errors.Is(err, ErrIncompatible) {
		t.Errorf("Exclusive union of infinite and finite Z should fail, got %v\n", err)
	}

	// Subtraction follows the minuend: finite - infinite stays finite.
	sub, err := Subtract(ctx, finite, infinite)
	if err != nil {
		t.Fatalf("finite - infinite failed: %v\n", err)
	}
	if !sub.IsEmpty() {
		t.Errorf("Subtracting a covering infinite mask should empty the minuend\n")
	}

	// Union of two infinite-Z masks combines the shared slices.
	other := UniformMask3d(square2d(2, 2, 4, 4))
	union, err := Union(ctx, infinite, other)
	if err != nil {
		t.Fatalf("Union of two infinite masks failed: %v\n", err)
	}
	if !union.Bounds.InfiniteZ() {
		t.Errorf("Union of infinite masks lost the infinite extent\n")
	}
	if union.UniformSlice().NumPoints() != 28 {
		t.Errorf("Shared slice union has %d points, expected 28\n",
			union.UniformSlice().NumPoints())
	}
}

func TestMask3dSubtractFromInfinite(t *testing.T) {
	// infinite - finite punches per-index overrides into the shared slice.
	ctx := context.Background()
	infinite := UniformMask3d(square2d(0, 0, 4, 4))
	hole := Mask3dFromPoints([]Point3d{{1, 1, 5}, {2, 1, 5}})

	sub, err := Subtract(ctx, infinite, hole)
	if err != nil {
		t.Fatalf("infinite - finite failed: %v\n", err)
	}
	if !sub.Bounds.InfiniteZ() {
		t.Errorf("Result lost the infinite extent\n")
	}
	if sub.Contains(1, 1, 5) || sub.Contains(2, 1, 5) {
		t.Errorf("Subtracted voxels still present at the override index\n")
	}
	if !sub.Contains(0, 0, 5) {
		t.Errorf("Unsubtracted voxel missing at the override index\n")
	}
	if !sub.Contains(1, 1, 99) || !sub.Contains(1, 1, -99) {
		t.Errorf("Shared slice no longer covers other indices\n")
	}
}

func TestMask3dUpscaleDownscale(t *testing.T) {
	ctx := context.Background()
	m := Mask3dFromPoints([]Point3d{{1, 1, 2}})

	up, err := m.Upscale(ctx)
	if err != nil {
		t.Fatalf("Upscale failed: %v\n", err)
	}
	if up.NumPoints() != 8 {
		t.Errorf("Upscale has %d points, expected 8\n", up.NumPoints())
	}
	// Each scaled slice is duplicated to Z=2k and 2k+1.
	for _, z := range []int32{4, 5} {
		for _, p := range []Point2d{{2, 2}, {3, 2}, {2, 3}, {3, 3}} {
			if !up.Contains(p[0], p[1], z) {
				t.Errorf("Upscale missing voxel (%d,%d,%d)\n", p[0], p[1], z)
			}
		}
	}
	want := NewBounds3d(2, 2, 4, 2, 2, 2)
	if up.Bounds != want {
		t.Errorf("Bad upscaled bounds %s, expected %s\n", up.Bounds, want)
	}

	// The 2x2x2 block is solid, so it survives even the strictest vote.
	down, err := up.Downscale(ctx, MaxThreshold3d)
	if err != nil {
		t.Fatalf("Downscale failed: %v\n", err)
	}
	samePoints3d(t, down, m)
	if down.Bounds != m.Bounds {
		t.Errorf("Round trip changed bounds: %s -> %s\n", m.Bounds, down.Bounds)
	}
}

func TestMask3dDownscaleVoting(t *testing.T) {
	ctx := context.Background()
	// Half-full 2x2x2 block at the origin: 4 votes.
	m := Mask3dFromPoints([]Point3d{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}})

	down, err := m.Downscale(ctx, 4)
	if err != nil {
		t.Fatalf("Downscale failed: %v\n", err)
	}
	if !down.Contains(0, 0, 0) {
		t.Errorf("4 votes should pass threshold 4\n")
	}
	down, err = m.Downscale(ctx, 5)
	if err != nil {
		t.Fatalf("Downscale failed: %v\n", err)
	}
	if down.Contains(0, 0, 0) {
		t.Errorf("4 votes should fail threshold 5\n")
	}
	if _, err = m.Downscale(ctx, 9); err == nil {
		t.Errorf("Expected error for out-of-range threshold\n")
	}
}

func TestMask3dScale2d(t *testing.T) {
	ctx := context.Background()
	m := Mask3dFromPoints([]Point3d{{1, 1, 3}})

	up, err := m.Upscale2d(ctx)
	if err != nil {
		t.Fatalf("Upscale2d failed: %v\n", err)
	}
	if up.NumPoints() != 4 {
		t.Errorf("Upscale2d has %d points, expected 4\n", up.NumPoints())
	}
	// Z is untouched.
	if got := up.ZIndexes(); len(got) != 1 || got[0] != 3 {
		t.Errorf("Upscale2d changed Z indices: %v\n", got)
	}
	down, err := up.Downscale2d(ctx, 4)
	if err != nil {
		t.Fatalf("Downscale2d failed: %v\n", err)
	}
	samePoints3d(t, down, m)
}

func TestMask3dMoveBounds(t *testing.T) {
	// Promotion to infinite Z requires at most one occupied slice.
	m := Mask3dFromPoints([]Point3d{{1, 1, 4}})
	infZ := m.Bounds
	infZ.Size[2] = InfiniteExtent
	if err := m.MoveBounds(infZ); err != nil {
		t.Fatalf("Promotion of single-slice mask failed: %v\n", err)
	}
	if !m.Contains(1, 1, -7) || !m.Contains(1, 1, 100) {
		t.Errorf("Promoted mask does not cover all Z indices\n")
	}

	multi := Mask3dFromPoints([]Point3d{{0, 0, 0}, {0, 0, 1}})
	infZ = multi.Bounds
	infZ.Size[2] = InfiniteExtent
	if err := multi.MoveBounds(infZ); !errors.Is(err, ErrIncompatible) {
		t.Errorf("Promotion of multi-slice mask should fail, got %v\n", err)
	}

	// Demotion materializes the shared slice at every index.
	u := UniformMask3d(square2d(0, 0, 2, 2))
	if err := u.MoveBounds(NewBounds3d(0, 0, 5, 2, 2, 3)); err != nil {
		t.Fatalf("Demotion failed: %v\n", err)
	}
	if u.NumPoints() != 12 {
		t.Errorf("Demoted mask has %d points, expected 12\n", u.NumPoints())
	}
	if u.Contains(0, 0, 4) || !u.Contains(0, 0, 5) || !u.Contains(1, 1, 7) {
		t.Errorf("Demoted mask covers the wrong Z extent\n")
	}
}

func TestMask3dTranslate(t *testing.T) {
	m := Mask3dFromPoints([]Point3d{{1, 2, 3}})
	m.Translate(10, -2, 1)
	if !m.Contains(11, 0, 4) {
		t.Errorf("Translated voxel not found\n")
	}
	if m.NumPoints() != 1 {
		t.Errorf("Translate changed the point count to %d\n", m.NumPoints())
	}
	if m.Bounds.MinPt != (Point3d{11, 0, 4}) {
		t.Errorf("Bad translated bounds %s\n", m.Bounds)
	}
}

func TestMask3dOptimizeBoundsIdempotent(t *testing.T) {
	m := NewMask3d(NewBounds3d(-10, -10, -10, 40, 40, 40))
	slice := NewMask2d(NewBounds2d(-10, -10, 40, 40))
	slice.Set(0, 0, true)
	slice.Set(2, 3, true)
	if err := m.SetSliceAt(5, slice); err != nil {
		t.Fatalf("SetSliceAt failed: %v\n", err)
	}
	if err := m.SetSliceAt(7, NewMask2d(NewBounds2d(-10, -10, 40, 40))); err != nil {
		t.Fatalf("SetSliceAt failed: %v\n", err)
	}

	m.OptimizeBounds()
	want := NewBounds3d(0, 0, 5, 3, 4, 1)
	if m.Bounds != want {
		t.Errorf("OptimizeBounds got %s, expected %s\n", m.Bounds, want)
	}
	pts := pointSet3d(t, m)
	m.OptimizeBounds()
	if m.Bounds != want {
		t.Errorf("Second OptimizeBounds moved bounds to %s\n", m.Bounds)
	}
	after := pointSet3d(t, m)
	if len(after) != len(pts) {
		t.Errorf("OptimizeBounds changed the point count\n")
	}

	// An empty mask collapses to zero bounds.
	e := NewMask3d(NewBounds3d(0, 0, 0, 10, 10, 10))
	e.OptimizeBounds()
	if e.Bounds != (Bounds3d{}) {
		t.Errorf("Empty mask optimized to %s, expected zero bounds\n", e.Bounds)
	}
}

func TestMask3dContainsIntersects(t *testing.T) {
	a := box3d(0, 0, 0, 4, 4, 4)
	b := box3d(1, 1, 1, 2, 2, 2)
	if !a.ContainsMask(b) || b.ContainsMask(a) {
		t.Errorf("Containment of nested boxes is wrong\n")
	}
	if !a.Intersects(b) {
		t.Errorf("Nested boxes should intersect\n")
	}
	c := box3d(10, 10, 10, 2, 2, 2)
	if a.Intersects(c) {
		t.Errorf("Disjoint boxes should not intersect\n")
	}

	// An infinite-Z mask contains any finite mask under its footprint.
	u := UniformMask3d(square2d(0, 0, 4, 4))
	if !u.ContainsMask(b) {
		t.Errorf("Infinite mask should contain finite mask under its footprint\n")
	}
	if u.ContainsMask(c) {
		t.Errorf("Infinite mask should not contain mask outside its footprint\n")
	}
}

func TestMask3dInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := box3d(0, 0, 0, 4, 4, 4)
	if _, err := Union(ctx, a, a.Clone()); !errors.Is(err, ErrInterrupted) {
		t.Errorf("Canceled union returned %v, expected interruption\n", err)
	}
	if _, err := a.Points(ctx); !errors.Is(err, ErrInterrupted) {
		t.Errorf("Canceled enumeration returned %v, expected interruption\n", err)
	}
}

func TestMask3dContourLength(t *testing.T) {
	// A 1x1x1 mask has 6 exposed faces.
	single := Mask3dFromPoints([]Point3d{{0, 0, 0}})
	area, err := single.ContourLength(context.Background())
	if err != nil {
		t.Fatalf("ContourLength failed: %v\n", err)
	}
	if area != surfaceWeight[6] {
		t.Errorf("Single voxel area %f, expected %f\n", area, surfaceWeight[6])
	}

	u := UniformMask3d(square2d(0, 0, 2, 2))
	if _, err := u.ContourLength(context.Background()); !errors.Is(err, ErrIncompatible) {
		t.Errorf("Infinite-Z surface estimation should fail, got %v\n", err)
	}
}

func TestMask3dDownscaleOddOrigin(t *testing.T) {
	ctx := context.Background()
	// A solid block whose origin sits mid-way through a 2x2x2 cell: the
	// scaled extent covers every cell the block touches, one more per axis
	// than half the source size.
	m := box3d(1, 1, 1, 2, 2, 2)

	down, err := m.Downscale(ctx, 1)
	if err != nil {
		t.Fatalf("Downscale failed: %v\n", err)
	}
	want := NewBounds3d(0, 0, 0, 2, 2, 2)
	if down.Bounds != want {
		t.Errorf("Bad downscaled bounds %s, expected %s\n", down.Bounds, want)
	}
	if down.NumPoints() != 8 {
		t.Errorf("Downscale has %d points, expected 8\n", down.NumPoints())
	}
	if !down.Contains(0, 0, 1) || !down.Contains(1, 1, 0) {
		t.Errorf("Downscale dropped cells the source block touches\n")
	}
	for _, z := range down.ZIndexes() {
		if z < down.Bounds.MinPt[2] || z >= down.Bounds.MinPt[2]+down.Bounds.Size[2] {
			t.Errorf("Slice index %d outside bounds %s\n", z, down.Bounds)
		}
	}
	pts, err := down.Points(ctx)
	if err != nil {
		t.Fatalf("Points failed: %v\n", err)
	}
	for _, p := range pts {
		if !down.Contains(p[0], p[1], p[2]) {
			t.Errorf("Enumerated point %v is not contained\n", p)
		}
	}
	// Out-of-bounds slices would be silently lost here.
	self, err := Union(ctx, down, down.Clone())
	if err != nil {
		t.Fatalf("Union failed: %v\n", err)
	}
	if self.NumPoints() != down.NumPoints() {
		t.Errorf("Self-union lost points: %d -> %d\n", down.NumPoints(), self.NumPoints())
	}
}

func TestMask3dContainsMaskNilReceiver(t *testing.T) {
	var none *Mask3d
	if !none.ContainsMask(nil) {
		t.Errorf("Empty mask should contain nil\n")
	}
	if !none.ContainsMask(UniformMask3d(nil)) {
		t.Errorf("Empty mask should contain an empty infinite mask\n")
	}
	if none.ContainsMask(UniformMask3d(square2d(0, 0, 2, 2))) {
		t.Errorf("Empty mask cannot contain an occupied infinite mask\n")
	}
	if none.ContainsMask(box3d(0, 0, 0, 1, 1, 1)) {
		t.Errorf("Empty mask cannot contain an occupied finite mask\n")
	}
}
