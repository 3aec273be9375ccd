package mask

import (
	"context"
	"fmt"
)

// Downscale voting thresholds: a downscaled output cell is true iff at least
// threshold of the cells merged into it are true.
const (
	MaxThreshold2d     = 4
	DefaultThreshold2d = 3
	MaxThreshold3d     = 8
	DefaultThreshold3d = 5
)

// Mask2d is a rectangular bounded boolean bitmap, the fundamental storage
// unit of the region mask hierarchy.  Bits is row-major with length
// Size[0]*Size[1]; an empty mask has zero sizes and nil Bits.
type Mask2d struct {
	Bounds Bounds2d
	Bits   []bool
}

// NewMask2d returns an all-false mask covering the given bounds.
func NewMask2d(bounds Bounds2d) *Mask2d {
	if bounds.IsEmpty() {
		return &Mask2d{}
	}
	return &Mask2d{
		Bounds: bounds,
		Bits:   make([]bool, bounds.NumCells()),
	}
}

// Mask2dFromBits wraps an explicit bounds + bitmap pair.  The bitmap length
// must match the bounds area.
func Mask2dFromBits(bounds Bounds2d, bits []bool) (*Mask2d, error) {
	if int64(len(bits)) != bounds.NumCells() {
		return nil, fmt.Errorf("bitmap length %d does not match bounds %s", len(bits), bounds)
	}
	return &Mask2d{Bounds: bounds, Bits: bits}, nil
}

// Mask2dFromPoints builds a mask from a point list, computing the bounding
// box from the coordinate extrema.
func Mask2dFromPoints(pts []Point2d) *Mask2d {
	if len(pts) == 0 {
		return &Mask2d{}
	}
	minPt, maxPt := pts[0], pts[0]
	for _, p := range pts[1:] {
		for dim := 0; dim < 2; dim++ {
			if p[dim] < minPt[dim] {
				minPt[dim] = p[dim]
			}
			if p[dim] > maxPt[dim] {
				maxPt[dim] = p[dim]
			}
		}
	}
	m := NewMask2d(NewBounds2d(minPt[0], minPt[1], maxPt[0]-minPt[0]+1, maxPt[1]-minPt[1]+1))
	for _, p := range pts {
		m.Set(p[0], p[1], true)
	}
	return m
}

// Mask2dFromPointsF builds a mask from real coordinates, rounding each to
// its nearest cell.
func Mask2dFromPointsF(pts []Point2dF) *Mask2d {
	rounded := make([]Point2d, len(pts))
	for i, p := range pts {
		rounded[i] = p.Round()
	}
	return Mask2dFromPoints(rounded)
}

func (m *Mask2d) offset(x, y int32) int64 {
	return int64(y-m.Bounds.MinPt[1])*int64(m.Bounds.Size[0]) + int64(x-m.Bounds.MinPt[0])
}

// Get returns the value of the cell at global coordinates (x, y), false
// outside the bounds.
func (m *Mask2d) Get(x, y int32) bool {
	if m == nil || !m.Bounds.Contains(x, y) {
		return false
	}
	return m.Bits[m.offset(x, y)]
}

// Contains reports whether the mask holds the given point.
func (m *Mask2d) Contains(x, y int32) bool {
	return m.Get(x, y)
}

// Set writes the cell at global coordinates (x, y).  Writes outside the
// bounds are dropped; use MoveBounds to grow a mask first.
func (m *Mask2d) Set(x, y int32, v bool) {
	if m == nil || !m.Bounds.Contains(x, y) {
		return
	}
	m.Bits[m.offset(x, y)] = v
}

// Clone returns a deep copy.
func (m *Mask2d) Clone() *Mask2d {
	if m == nil {
		return nil
	}
	c := &Mask2d{Bounds: m.Bounds}
	if m.Bits != nil {
		c.Bits = make([]bool, len(m.Bits))
		copy(c.Bits, m.Bits)
	}
	return c
}

// IsEmpty reports whether the mask holds no points.
func (m *Mask2d) IsEmpty() bool {
	if m == nil {
		return true
	}
	for _, b := range m.Bits {
		if b {
			return false
		}
	}
	return true
}

// NumPoints returns the number of true cells.
func (m *Mask2d) NumPoints() uint64 {
	if m == nil {
		return 0
	}
	var n uint64
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Points returns all true cells in ascending (y, x) scan order.
func (m *Mask2d) Points() []Point2d {
	if m == nil {
		return nil
	}
	pts := make([]Point2d, 0, m.NumPoints())
	var i int64
	for y := int32(0); y < m.Bounds.Size[1]; y++ {
		for x := int32(0); x < m.Bounds.Size[0]; x++ {
			if m.Bits[i] {
				pts = append(pts, Point2d{m.Bounds.MinPt[0] + x, m.Bounds.MinPt[1] + y})
			}
			i++
		}
	}
	return pts
}

// ContainsMask reports whether every point of other is also in m.
func (m *Mask2d) ContainsMask(other *Mask2d) bool {
	if other == nil {
		return true
	}
	var i int64
	for y := int32(0); y < other.Bounds.Size[1]; y++ {
		for x := int32(0); x < other.Bounds.Size[0]; x++ {
			if other.Bits[i] && !m.Get(other.Bounds.MinPt[0]+x, other.Bounds.MinPt[1]+y) {
				return false
			}
			i++
		}
	}
	return true
}

// Intersects reports whether the two masks share at least one point.
func (m *Mask2d) Intersects(other *Mask2d) bool {
	if m == nil || other == nil {
		return false
	}
	overlap := m.Bounds.Intersect(other.Bounds)
	if overlap.IsEmpty() {
		return false
	}
	for y := overlap.MinPt[1]; y < overlap.MinPt[1]+overlap.Size[1]; y++ {
		for x := overlap.MinPt[0]; x < overlap.MinPt[0]+overlap.Size[0]; x++ {
			if m.Get(x, y) && other.Get(x, y) {
				return true
			}
		}
	}
	return false
}

// combine fulfills the set-algebra Operand contract.  The result is re-tiled
// to the operator's natural bounds: union of rectangles for union and
// exclusive union, intersection for intersection, and the minuend's
// rectangle for subtraction.
func (m *Mask2d) combine(ctx context.Context, op Op, other *Mask2d) (*Mask2d, error) {
	var bounds Bounds2d
	switch op {
	case OpUnion, OpExclusiveUnion:
		bounds = m.Bounds.Union(other.Bounds)
	case OpIntersect:
		bounds = m.Bounds.Intersect(other.Bounds)
	case OpSubtract:
		bounds = m.Bounds
	default:
		return nil, fmt.Errorf("%w: %s on 2d masks", ErrIncompatible, op)
	}
	result := NewMask2d(bounds)
	if bounds.IsEmpty() {
		return result, nil
	}
	var i int64
	for y := bounds.MinPt[1]; y < bounds.MinPt[1]+bounds.Size[1]; y++ {
		for x := bounds.MinPt[0]; x < bounds.MinPt[0]+bounds.Size[0]; x++ {
			a, b := m.Get(x, y), other.Get(x, y)
			switch op {
			case OpUnion:
				result.Bits[i] = a || b
			case OpIntersect:
				result.Bits[i] = a && b
			case OpExclusiveUnion:
				result.Bits[i] = a != b
			case OpSubtract:
				result.Bits[i] = a && !b
			}
			i++
		}
	}
	return result, nil
}

// Upscale returns a mask scaled 2x in X and Y, each cell becoming a 2x2
// block.
func (m *Mask2d) Upscale() *Mask2d {
	if m == nil {
		return nil
	}
	b := m.Bounds
	result := NewMask2d(NewBounds2d(b.MinPt[0]*2, b.MinPt[1]*2, b.Size[0]*2, b.Size[1]*2))
	var i int64
	for y := int32(0); y < b.Size[1]; y++ {
		for x := int32(0); x < b.Size[0]; x++ {
			if m.Bits[i] {
				gx := (b.MinPt[0] + x) * 2
				gy := (b.MinPt[1] + y) * 2
				result.Set(gx, gy, true)
				result.Set(gx+1, gy, true)
				result.Set(gx, gy+1, true)
				result.Set(gx+1, gy+1, true)
			}
			i++
		}
	}
	return result
}

// downscaleCounts returns the downscaled bounds along with the number of
// true cells (0-4) in each 2x2 block, blocks being aligned to even global
// coordinates.
func (m *Mask2d) downscaleCounts() (Bounds2d, []uint8) {
	b := m.Bounds
	if b.IsEmpty() {
		return Bounds2d{}, nil
	}
	ox := b.MinPt[0] >> 1
	oy := b.MinPt[1] >> 1
	ow := (b.MinPt[0]+b.Size[0]-1)>>1 - ox + 1
	oh := (b.MinPt[1]+b.Size[1]-1)>>1 - oy + 1
	out := NewBounds2d(ox, oy, ow, oh)
	counts := make([]uint8, int64(ow)*int64(oh))
	var i int64
	for y := int32(0); y < b.Size[1]; y++ {
		gy := b.MinPt[1] + y
		row := int64((gy>>1)-oy) * int64(ow)
		for x := int32(0); x < b.Size[0]; x++ {
			if m.Bits[i] {
				gx := b.MinPt[0] + x
				counts[row+int64((gx>>1)-ox)]++
			}
			i++
		}
	}
	return out, counts
}

// Downscale returns a mask scaled 1/2x in X and Y.  Each output cell is
// true iff at least threshold cells of its 2x2 source block are true.
// Threshold must lie in [1,4]; 0 selects the default of 3.
func (m *Mask2d) Downscale(threshold int) (*Mask2d, error) {
	if threshold == 0 {
		threshold = DefaultThreshold2d
	}
	if threshold < 1 || threshold > MaxThreshold2d {
		return nil, fmt.Errorf("2d downscale threshold %d out of range [1,%d]", threshold, MaxThreshold2d)
	}
	if m == nil {
		return nil, nil
	}
	bounds, counts := m.downscaleCounts()
	result := NewMask2d(bounds)
	for i, n := range counts {
		if int(n) >= threshold {
			result.Bits[i] = true
		}
	}
	return result, nil
}

// MoveBounds re-tiles the mask in place to the given bounds, preserving the
// content of the overlapping region and clearing the rest.  This is the one
// in-place exception to the operations-return-new-values rule, together
// with OptimizeBounds.
func (m *Mask2d) MoveBounds(bounds Bounds2d) {
	if m == nil || bounds == m.Bounds {
		return
	}
	moved := NewMask2d(bounds)
	overlap := m.Bounds.Intersect(bounds)
	for y := overlap.MinPt[1]; y < overlap.MinPt[1]+overlap.Size[1]; y++ {
		for x := overlap.MinPt[0]; x < overlap.MinPt[0]+overlap.Size[0]; x++ {
			if m.Bits[m.offset(x, y)] {
				moved.Bits[moved.offset(x, y)] = true
			}
		}
	}
	m.Bounds = moved.Bounds
	m.Bits = moved.Bits
}

// Translate shifts the mask bounds by the given offset without touching
// cell content.
func (m *Mask2d) Translate(dx, dy int32) {
	if m == nil {
		return
	}
	m.Bounds.MinPt[0] += dx
	m.Bounds.MinPt[1] += dy
}

// OptimizedBounds returns the minimal bounding rectangle of the true cells
// without modifying the mask.
func (m *Mask2d) OptimizedBounds() Bounds2d {
	if m == nil {
		return Bounds2d{}
	}
	var minPt, maxPt Point2d
	found := false
	var i int64
	for y := int32(0); y < m.Bounds.Size[1]; y++ {
		for x := int32(0); x < m.Bounds.Size[0]; x++ {
			if m.Bits[i] {
				p := Point2d{m.Bounds.MinPt[0] + x, m.Bounds.MinPt[1] + y}
				if !found {
					minPt, maxPt = p, p
					found = true
				} else {
					for dim := 0; dim < 2; dim++ {
						if p[dim] < minPt[dim] {
							minPt[dim] = p[dim]
						}
						if p[dim] > maxPt[dim] {
							maxPt[dim] = p[dim]
						}
					}
				}
			}
			i++
		}
	}
	if !found {
		return Bounds2d{}
	}
	return NewBounds2d(minPt[0], minPt[1], maxPt[0]-minPt[0]+1, maxPt[1]-minPt[1]+1)
}

// OptimizeBounds shrinks the mask in place to the minimal bounding
// rectangle of its true cells.
func (m *Mask2d) OptimizeBounds() {
	if m == nil {
		return
	}
	m.MoveBounds(m.OptimizedBounds())
}

func (m *Mask2d) String() string {
	if m == nil {
		return "Mask2d(nil)"
	}
	return fmt.Sprintf("Mask2d%s with %d points", m.Bounds, m.NumPoints())
}
