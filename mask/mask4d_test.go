package mask

import (
	"context"
	"errors"
	"testing"
)

func TestMask4dFromPoints(t *testing.T) {
	pts := []Point4d{{0, 0, 0, 0}, {1, 0, 0, 0}, {5, 5, 5, 3}}
	m := Mask4dFromPoints(pts)
	want := NewBounds4d(0, 0, 0, 0, 6, 6, 6, 4)
	if m.Bounds != want {
		t.Errorf("Bad bounds %s, expected %s\n", m.Bounds, want)
	}
	if m.NumPoints() != 3 {
		t.Errorf("Expected 3 points, got %d\n", m.NumPoints())
	}
	for _, p := range pts {
		if !m.Contains(p[0], p[1], p[2], p[3]) {
			t.Errorf("Mask missing point %s\n", p)
		}
	}
	if got := m.TIndexes(); len(got) != 2 || got[0] != 0 || got[1] != 3 {
		t.Errorf("Bad T indices %v\n", got)
	}
}

func TestMask4dPointsOrder(t *testing.T) {
	m := Mask4dFromPoints([]Point4d{{1, 0, 0, 7}, {0, 0, 0, 2}, {0, 1, 0, 7}})
	pts, err := m.Points(context.Background())
	if err != nil {
		t.Fatalf("Points failed: %v\n", err)
	}
	want := []Point4d{{0, 0, 0, 2}, {1, 0, 0, 7}, {0, 1, 0, 7}}
	if len(pts) != len(want) {
		t.Fatalf("Got %d points, expected %d\n", len(pts), len(want))
	}
	for i, p := range want {
		if pts[i] != p {
			t.Errorf("Point %d is %s, expected %s\n", i, pts[i], p)
		}
	}
}

func TestMask4dSetOps(t *testing.T) {
	ctx := context.Background()
	a := Mask4dFromPoints([]Point4d{{0, 0, 0, 0}, {1, 0, 0, 0}, {0, 0, 0, 1}})
	b := Mask4dFromPoints([]Point4d{{1, 0, 0, 0}, {2, 0, 0, 0}})

	union, err := Union(ctx, a, b)
	if err != nil {
		t.Fatalf("Union failed: %v\n", err)
	}
	if union.NumPoints() != 4 {
		t.Errorf("Union has %d points, expected 4\n", union.NumPoints())
	}

	inter, err := Intersect(ctx, a, b)
	if err != nil {
		t.Fatalf("Intersect failed: %v\n", err)
	}
	if inter.NumPoints() != 1 || !inter.Contains(1, 0, 0, 0) {
		t.Errorf("Bad intersection %s\n", inter)
	}

	sub, err := Subtract(ctx, a, b)
	if err != nil {
		t.Fatalf("Subtract failed: %v\n", err)
	}
	if sub.NumPoints() != 2 || sub.Contains(1, 0, 0, 0) {
		t.Errorf("Bad subtraction %s\n", sub)
	}
}

func TestMask4dInfiniteT(t *testing.T) {
	ctx := context.Background()
	frame := Mask3dFromPoints([]Point3d{{0, 0, 0}})
	u := UniformMask4d(frame)
	if !u.Bounds.InfiniteT() {
		t.Fatalf("UniformMask4d did not set infinite T extent\n")
	}
	if !u.Contains(0, 0, 0, -50) || !u.Contains(0, 0, 0, 50) {
		t.Errorf("Shared frame does not cover all T indices\n")
	}

	finite := Mask4dFromPoints([]Point4d{{0, 0, 0, 0}})
	if _, err := Union(ctx, u, finite); !errors.Is(err, ErrIncompatible) {
		t.Errorf("Union of infinite and finite T should fail, got %v\n", err)
	}
	sub, err := Subtract(ctx, finite, u)
	if err != nil {
		t.Fatalf("finite - infinite failed: %v\n", err)
	}
	if !sub.IsEmpty() {
		t.Errorf("Subtracting a covering infinite mask should empty the minuend\n")
	}
}

func TestMask4dScale(t *testing.T) {
	ctx := context.Background()
	m := Mask4dFromPoints([]Point4d{{1, 1, 1, 2}})

	up, err := m.Upscale(ctx)
	if err != nil {
		t.Fatalf("Upscale failed: %v\n", err)
	}
	// X, Y and Z scale; T stays.
	if up.NumPoints() != 8 {
		t.Errorf("Upscale has %d points, expected 8\n", up.NumPoints())
	}
	if !up.Contains(2, 2, 2, 2) || !up.Contains(3, 3, 3, 2) {
		t.Errorf("Upscaled block misplaced\n")
	}
	if up.Contains(2, 2, 2, 4) {
		t.Errorf("Upscale scaled the T axis\n")
	}

	down, err := up.Downscale(ctx, MaxThreshold3d)
	if err != nil {
		t.Fatalf("Downscale failed: %v\n", err)
	}
	if down.NumPoints() != 1 || !down.Contains(1, 1, 1, 2) {
		t.Errorf("Round trip did not reconstruct the mask\n")
	}

	up2d, err := m.Upscale2d(ctx)
	if err != nil {
		t.Fatalf("Upscale2d failed: %v\n", err)
	}
	if up2d.NumPoints() != 4 || !up2d.Contains(2, 2, 1, 2) {
		t.Errorf("Upscale2d scaled the wrong axes\n")
	}
}

func TestMask4dMoveBounds(t *testing.T) {
	m := Mask4dFromPoints([]Point4d{{0, 0, 0, 5}})
	infT := m.Bounds
	infT.Size[3] = InfiniteExtent
	if err := m.MoveBounds(infT); err != nil {
		t.Fatalf("Promotion of single-frame mask failed: %v\n", err)
	}
	if !m.Contains(0, 0, 0, -3) {
		t.Errorf("Promoted mask does not cover all T indices\n")
	}

	multi := Mask4dFromPoints([]Point4d{{0, 0, 0, 0}, {0, 0, 0, 1}})
	infT = multi.Bounds
	infT.Size[3] = InfiniteExtent
	if err := multi.MoveBounds(infT); !errors.Is(err, ErrIncompatible) {
		t.Errorf("Promotion of multi-frame mask should fail, got %v\n", err)
	}
}

func TestMask4dOptimizeBounds(t *testing.T) {
	m := NewMask4d(NewBounds4d(-5, -5, -5, -5, 20, 20, 20, 20))
	if err := m.SetFrameAt(3, Mask3dFromPoints([]Point3d{{0, 0, 0}, {2, 1, 1}})); err != nil {
		t.Fatalf("SetFrameAt failed: %v\n", err)
	}
	m.OptimizeBounds()
	want := NewBounds4d(0, 0, 0, 3, 3, 2, 2, 1)
	if m.Bounds != want {
		t.Errorf("OptimizeBounds got %s, expected %s\n", m.Bounds, want)
	}
	m.OptimizeBounds()
	if m.Bounds != want {
		t.Errorf("Second OptimizeBounds moved bounds to %s\n", m.Bounds)
	}
}

func TestMask4dDownscaleOddOrigin(t *testing.T) {
	ctx := context.Background()
	// Two voxels straddling a 2x2x2 cell border at an odd X origin.
	m := Mask4dFromPoints([]Point4d{{1, 0, 0, 0}, {2, 0, 0, 0}})

	down, err := m.Downscale(ctx, 1)
	if err != nil {
		t.Fatalf("Downscale failed: %v\n", err)
	}
	if !down.Contains(0, 0, 0, 0) || !down.Contains(1, 0, 0, 0) {
		t.Errorf("Downscale dropped cells the source voxels touch\n")
	}
	if down.Bounds.MinPt[0] != 0 || down.Bounds.Size[0] != 2 {
		t.Errorf("Bad downscaled X extent [%d,%d), expected [0,2)\n",
			down.Bounds.MinPt[0], down.Bounds.MinPt[0]+down.Bounds.Size[0])
	}
}

func TestMask4dContainsMaskNilChildren(t *testing.T) {
	full := UniformMask4d(UniformMask3d(square2d(0, 0, 2, 2)))
	hollow := UniformMask4d(nil)
	if hollow.ContainsMask(full) {
		t.Errorf("Empty shared frame cannot contain an occupied mask\n")
	}
	if !full.ContainsMask(hollow) {
		t.Errorf("Occupied mask should contain an empty shared frame\n")
	}
	var none *Mask4d
	if !none.ContainsMask(hollow) {
		t.Errorf("Empty mask should contain an empty mask\n")
	}
	if none.ContainsMask(full) {
		t.Errorf("Empty mask cannot contain an occupied mask\n")
	}
}
