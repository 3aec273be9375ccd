package mask

import (
	"context"
	"fmt"
)

// Edge classification weights for the perimeter estimator.  Cells are
// classified by their exposed 4-connected edges; the non-unit weights are
// empirically tuned to compensate for the staircase overshoot of raw edge
// counting and should not be read as an exact geometric formula.
const (
	cornerWeight   = 1.4142135623730951 // two adjacent exposed edges
	stripWeight    = 2.0                // two opposite exposed edges
	capWeight      = 2.23606797749979   // three exposed edges
	isolatedWeight = 3.141592653589793  // all four edges exposed
)

// Per-voxel surface contribution by number of exposed 6-connected faces.
// Same caveat as the 2d weights: tuned, not derived.
var surfaceWeight = [7]float64{0, 0.894, 1.3409, 1.5879, 2.0, 2.6667, 4.1888}

// isContourCell reports whether a true cell has at least one false
// 4-neighbor.
func (m *Mask2d) isContourCell(x, y int32) bool {
	return !m.Get(x-1, y) || !m.Get(x+1, y) || !m.Get(x, y-1) || !m.Get(x, y+1)
}

// ContourPoints returns the border cells of the mask in scan order.
func (m *Mask2d) ContourPoints() []Point2d {
	if m == nil {
		return nil
	}
	var pts []Point2d
	var i int64
	for y := int32(0); y < m.Bounds.Size[1]; y++ {
		gy := m.Bounds.MinPt[1] + y
		for x := int32(0); x < m.Bounds.Size[0]; x++ {
			gx := m.Bounds.MinPt[0] + x
			if m.Bits[i] && m.isContourCell(gx, gy) {
				pts = append(pts, Point2d{gx, gy})
			}
			i++
		}
	}
	return pts
}

// Moore neighborhood in clockwise order starting west.
var mooreDirs = [8]Point2d{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

// ConnectedContourPoints traces the outer boundary of the mask with a
// Moore-neighbor walk and returns the contour cells in connected order.
// Inner holes and additional connected components are not traced.
func (m *Mask2d) ConnectedContourPoints() []Point2d {
	if m == nil {
		return nil
	}
	// First true cell in scan order is guaranteed on the outer boundary.
	var start Point2d
	found := false
	var i int64
scan:
	for y := int32(0); y < m.Bounds.Size[1]; y++ {
		for x := int32(0); x < m.Bounds.Size[0]; x++ {
			if m.Bits[i] {
				start = Point2d{m.Bounds.MinPt[0] + x, m.Bounds.MinPt[1] + y}
				found = true
				break scan
			}
			i++
		}
	}
	if !found {
		return nil
	}
	contour := []Point2d{start}
	cur := start
	// The cell west of the start is false, so backtracking begins there.
	backtrack := 0
	maxSteps := int(m.NumPoints())*4 + 4
	for step := 0; step < maxSteps; step++ {
		next := -1
		for k := 1; k <= 8; k++ {
			d := (backtrack + k) % 8
			nx := cur[0] + mooreDirs[d][0]
			ny := cur[1] + mooreDirs[d][1]
			if m.Get(nx, ny) {
				next = d
				break
			}
		}
		if next < 0 {
			// Isolated cell.
			return contour
		}
		cur = Point2d{cur[0] + mooreDirs[next][0], cur[1] + mooreDirs[next][1]}
		if cur == start {
			return contour
		}
		contour = append(contour, cur)
		// Re-enter the neighborhood from the cell we came from.
		backtrack = (next + 4) % 8
	}
	return contour
}

// ContourLength estimates the perimeter of the mask by classifying each
// cell's exposed edges.
func (m *Mask2d) ContourLength() float64 {
	if m == nil {
		return 0
	}
	var length float64
	var i int64
	for y := int32(0); y < m.Bounds.Size[1]; y++ {
		gy := m.Bounds.MinPt[1] + y
		for x := int32(0); x < m.Bounds.Size[0]; x++ {
			gx := m.Bounds.MinPt[0] + x
			i++
			if !m.Bits[i-1] {
				continue
			}
			w := !m.Get(gx-1, gy)
			e := !m.Get(gx+1, gy)
			n := !m.Get(gx, gy-1)
			s := !m.Get(gx, gy+1)
			exposed := 0
			for _, open := range []bool{w, e, n, s} {
				if open {
					exposed++
				}
			}
			switch exposed {
			case 1:
				length++
			case 2:
				if (w && e) || (n && s) {
					length += stripWeight
				} else {
					length += cornerWeight
				}
			case 3:
				length += capWeight
			case 4:
				length += isolatedWeight
			}
		}
	}
	return length
}

// ContourPoints returns an approximation of the mask's outer shell: every
// point of the lowest and highest slices plus the 2d border cells of the
// slices between them.  Voxels of intermediate slices that face an empty
// neighbor slice are not detected, so the result is not fully accurate in
// 3d.
func (m *Mask3d) ContourPoints(ctx context.Context) ([]Point3d, error) {
	if m == nil {
		return nil, nil
	}
	var pts []Point3d
	appendSlice := func(z int32, slice *Mask2d, whole bool) {
		var spts []Point2d
		if whole {
			spts = slice.Points()
		} else {
			spts = slice.ContourPoints()
		}
		for _, p := range spts {
			pts = append(pts, Point3d{p[0], p[1], z})
		}
	}
	if m.slices.uniform != nil {
		appendSlice(AnyIndex, m.slices.uniform, false)
	}
	idxs := m.slices.indexes()
	for i, z := range idxs {
		if err := CheckInterrupt(ctx); err != nil {
			return nil, err
		}
		whole := i == 0 || i == len(idxs)-1
		appendSlice(z, m.slices.at(z), whole)
	}
	return pts, nil
}

// ContourLength estimates the surface area of the mask by classifying each
// voxel's exposed 6-connected faces.  Masks with infinite Z extent are not
// supported.
func (m *Mask3d) ContourLength(ctx context.Context) (float64, error) {
	if m == nil {
		return 0, nil
	}
	if m.Bounds.InfiniteZ() {
		return 0, fmt.Errorf("%w: surface estimation on infinite Z extent", ErrIncompatible)
	}
	var area float64
	for _, z := range m.slices.indexes() {
		if err := CheckInterrupt(ctx); err != nil {
			return 0, err
		}
		slice := m.slices.at(z)
		prev := m.SliceAt(z - 1)
		next := m.SliceAt(z + 1)
		for _, p := range slice.Points() {
			exposed := 0
			if !slice.Get(p[0]-1, p[1]) {
				exposed++
			}
			if !slice.Get(p[0]+1, p[1]) {
				exposed++
			}
			if !slice.Get(p[0], p[1]-1) {
				exposed++
			}
			if !slice.Get(p[0], p[1]+1) {
				exposed++
			}
			if !prev.Get(p[0], p[1]) {
				exposed++
			}
			if !next.Get(p[0], p[1]) {
				exposed++
			}
			area += surfaceWeight[exposed]
		}
	}
	return area, nil
}
