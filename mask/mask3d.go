package mask

import (
	"context"
	"fmt"
	"sync"
)

// Mask3d composes 2d masks along the Z axis.  A mask that applies to every
// Z index ("infinite Z") stores one shared slice instead of per-index
// duplicates; see ndStorage.
//
// Operations return new masks.  The documented exceptions are MoveBounds
// and OptimizeBounds, which mutate the receiver in place.
type Mask3d struct {
	Bounds Bounds3d

	mu     sync.Mutex
	slices ndStorage[*Mask2d]
}

// NewMask3d returns an empty mask with the given bounds.
func NewMask3d(bounds Bounds3d) *Mask3d {
	return &Mask3d{Bounds: bounds}
}

// UniformMask3d returns a mask holding the given slice at every Z index.
func UniformMask3d(slice *Mask2d) *Mask3d {
	m := &Mask3d{}
	if slice != nil {
		m.Bounds.SetRect(slice.Bounds)
	}
	m.Bounds.Size[2] = InfiniteExtent
	m.slices.uniform = slice
	return m
}

// Mask3dFromSlices builds a mask from an explicit per-slice array covering
// bounds.MinPt[2] onward.  The array length must match the Z extent.
func Mask3dFromSlices(bounds Bounds3d, slices []*Mask2d) (*Mask3d, error) {
	if bounds.InfiniteZ() {
		return nil, fmt.Errorf("%w: explicit slice array with infinite Z extent", ErrIncompatible)
	}
	if int64(len(slices)) != int64(bounds.Size[2]) {
		return nil, fmt.Errorf("got %d slices for bounds %s", len(slices), bounds)
	}
	m := NewMask3d(bounds)
	for i, slice := range slices {
		if slice != nil {
			m.slices.set(bounds.MinPt[2]+int32(i), slice)
		}
	}
	return m, nil
}

// Mask3dFromSliceMap builds a mask from an ordered Z-index to slice map.
// Every key must lie within the bounds' Z extent.
func Mask3dFromSliceMap(bounds Bounds3d, slices map[int32]*Mask2d) (*Mask3d, error) {
	m := NewMask3d(bounds)
	for z, slice := range slices {
		if !bounds.zSpan().contains(z) {
			return nil, fmt.Errorf("slice index %d outside bounds %s", z, bounds)
		}
		if bounds.InfiniteZ() {
			// One shared slice stands in for the whole axis.
			if m.slices.uniform != nil {
				return nil, fmt.Errorf("%w: more than one slice for infinite Z extent", ErrIncompatible)
			}
			m.slices.uniform = slice
			continue
		}
		if slice != nil {
			m.slices.set(z, slice)
		}
	}
	return m, nil
}

// Mask3dFromPoints builds a mask from a point list, computing the bounding
// box from the coordinate extrema.
func Mask3dFromPoints(pts []Point3d) *Mask3d {
	var b Mask3dBuilder
	for _, p := range pts {
		b.Add(p[0], p[1], p[2])
	}
	return b.Mask()
}

// Mask3dFromPointsF builds a mask from real coordinates, rounding each to
// its nearest voxel.
func Mask3dFromPointsF(pts []Point3dF) *Mask3d {
	rounded := make([]Point3d, len(pts))
	for i, p := range pts {
		rounded[i] = p.Round()
	}
	return Mask3dFromPoints(rounded)
}

// SliceAt returns the slice covering the given Z index, nil when the index
// holds no points.  For an infinite-Z mask any index resolves to the shared
// slice unless an override is stored.
func (m *Mask3d) SliceAt(z int32) *Mask2d {
	if m == nil || !m.Bounds.zSpan().contains(z) {
		return nil
	}
	return m.slices.at(z)
}

// SetSliceAt stores a slice at the given Z index, growing the XY bounds to
// cover it.  The index must lie within the Z extent.
func (m *Mask3d) SetSliceAt(z int32, slice *Mask2d) error {
	if !m.Bounds.zSpan().contains(z) {
		return fmt.Errorf("slice index %d outside bounds %s", z, m.Bounds)
	}
	if slice != nil {
		m.Bounds.SetRect(m.Bounds.Rect().Union(slice.Bounds))
	}
	m.slices.set(z, slice)
	return nil
}

// ZIndexes returns the explicitly stored Z indices in ascending order.  The
// shared slice of an infinite-Z mask is not included.
func (m *Mask3d) ZIndexes() []int32 {
	if m == nil {
		return nil
	}
	return m.slices.indexes()
}

// UniformSlice returns the shared slice of an infinite-Z mask, nil for
// finite masks.
func (m *Mask3d) UniformSlice() *Mask2d {
	if m == nil {
		return nil
	}
	return m.slices.uniform
}

// Clone returns a deep copy down to the 2d bitmaps.
func (m *Mask3d) Clone() *Mask3d {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &Mask3d{Bounds: m.Bounds, slices: m.slices.clone()}
}

// IsEmpty reports whether the mask holds no points.
func (m *Mask3d) IsEmpty() bool {
	if m == nil {
		return true
	}
	return m.slices.isEmpty()
}

// Contains reports whether the mask holds the given voxel.
func (m *Mask3d) Contains(x, y, z int32) bool {
	return m.SliceAt(z).Get(x, y)
}

// ContainsMask reports whether every point of other is also in m.  A nil
// receiver is an empty mask and contains only empty masks.
func (m *Mask3d) ContainsMask(other *Mask3d) bool {
	if other == nil {
		return true
	}
	if m == nil {
		return other.IsEmpty()
	}
	if other.Bounds.InfiniteZ() {
		if !m.Bounds.InfiniteZ() {
			return other.IsEmpty()
		}
		if !m.slices.uniform.ContainsMask(other.slices.uniform) {
			return false
		}
	}
	for _, z := range other.slices.indexes() {
		if !m.SliceAt(z).ContainsMask(other.SliceAt(z)) {
			return false
		}
	}
	return true
}

// Intersects reports whether the two masks share at least one voxel.
func (m *Mask3d) Intersects(other *Mask3d) bool {
	if m == nil || other == nil {
		return false
	}
	if m.Bounds.InfiniteZ() && other.Bounds.InfiniteZ() &&
		m.slices.uniform.Intersects(other.slices.uniform) {
		return true
	}
	for _, z := range other.slices.indexes() {
		if m.SliceAt(z).Intersects(other.SliceAt(z)) {
			return true
		}
	}
	for _, z := range m.slices.indexes() {
		if other.SliceAt(z).Intersects(m.SliceAt(z)) {
			return true
		}
	}
	return false
}

// NumPoints returns the number of voxels.  The shared slice of an
// infinite-Z mask is counted once.
func (m *Mask3d) NumPoints() uint64 {
	if m == nil {
		return 0
	}
	var n uint64
	if m.slices.uniform != nil {
		n += m.slices.uniform.NumPoints()
	}
	for _, slice := range m.slices.dense {
		n += slice.NumPoints()
	}
	return n
}

// Points returns all voxels in ascending (z, y, x) scan order.  The shared
// slice of an infinite-Z mask is enumerated once at the representative
// AnyIndex coordinate.
func (m *Mask3d) Points(ctx context.Context) ([]Point3d, error) {
	if m == nil {
		return nil, nil
	}
	pts := make([]Point3d, 0, m.NumPoints())
	appendSlice := func(z int32, slice *Mask2d) {
		for _, p := range slice.Points() {
			pts = append(pts, Point3d{p[0], p[1], z})
		}
	}
	if m.slices.uniform != nil {
		appendSlice(AnyIndex, m.slices.uniform)
	}
	for _, z := range m.slices.indexes() {
		if err := CheckInterrupt(ctx); err != nil {
			return nil, err
		}
		appendSlice(z, m.slices.at(z))
	}
	return pts, nil
}

// PointsAsInts returns the voxels as a flat [x0,y0,z0, x1,y1,z1, ...] array
// in the same order as Points.
func (m *Mask3d) PointsAsInts(ctx context.Context) ([]int32, error) {
	pts, err := m.Points(ctx)
	if err != nil {
		return nil, err
	}
	flat := make([]int32, 0, len(pts)*3)
	for _, p := range pts {
		flat = append(flat, p[0], p[1], p[2])
	}
	return flat, nil
}

// combine fulfills the set-algebra Operand contract, delegating slice pairs
// to the 2d operators along the composed Z axis.
func (m *Mask3d) combine(ctx context.Context, op Op, other *Mask3d) (*Mask3d, error) {
	zs, err := composedSpan(op, m.Bounds.zSpan(), other.Bounds.zSpan())
	if err != nil {
		return nil, err
	}
	var rect Bounds2d
	switch op {
	case OpUnion, OpExclusiveUnion:
		rect = m.Bounds.Rect().Union(other.Bounds.Rect())
	case OpIntersect:
		rect = m.Bounds.Rect().Intersect(other.Bounds.Rect())
	case OpSubtract:
		rect = m.Bounds.Rect()
	}
	if zs.empty() || rect.IsEmpty() {
		return &Mask3d{}, nil
	}
	slices, err := combineStorage(ctx, op, &m.slices, &other.slices,
		m.Bounds.zSpan(), other.Bounds.zSpan(), zs)
	if err != nil {
		return nil, err
	}
	result := &Mask3d{slices: slices}
	result.Bounds.SetRect(rect)
	result.Bounds.MinPt[2] = zs.origin
	result.Bounds.Size[2] = zs.size
	return result, nil
}

// Upscale returns a mask scaled 2x in X, Y and Z.  Each scaled slice is
// duplicated to Z indices 2k and 2k+1 to preserve solid volumes.  The
// shared slice of an infinite-Z mask is scaled once and re-shared.
func (m *Mask3d) Upscale(ctx context.Context) (*Mask3d, error) {
	if m == nil {
		return nil, nil
	}
	result := &Mask3d{}
	if m.slices.uniform != nil {
		result.slices.uniform = m.slices.uniform.Upscale()
	}
	for _, z := range m.slices.indexes() {
		if err := CheckInterrupt(ctx); err != nil {
			return nil, err
		}
		up := m.slices.at(z).Upscale()
		result.slices.set(z*2, up)
		result.slices.set(z*2+1, up.Clone())
	}
	b := m.Bounds
	result.Bounds.SetRect(NewBounds2d(b.MinPt[0]*2, b.MinPt[1]*2, b.Size[0]*2, b.Size[1]*2))
	if b.InfiniteZ() {
		result.Bounds.MinPt[2] = b.MinPt[2]
		result.Bounds.Size[2] = InfiniteExtent
	} else {
		result.Bounds.MinPt[2] = b.MinPt[2] * 2
		result.Bounds.Size[2] = b.Size[2] * 2
	}
	return result, nil
}

// downscaleVotes sums the 2x2 block counts of two adjacent slices into one
// vote plane covering the union of their downscaled rectangles.
func downscaleVotes(a, b *Mask2d) (Bounds2d, []uint8) {
	var ab, bb Bounds2d
	var ac, bc []uint8
	if a != nil {
		ab, ac = a.downscaleCounts()
	}
	if b != nil {
		bb, bc = b.downscaleCounts()
	}
	bounds := ab.Union(bb)
	if bounds.IsEmpty() {
		return Bounds2d{}, nil
	}
	votes := make([]uint8, bounds.NumCells())
	accumulate := func(cb Bounds2d, counts []uint8) {
		var i int64
		for y := int32(0); y < cb.Size[1]; y++ {
			row := int64(cb.MinPt[1]+y-bounds.MinPt[1]) * int64(bounds.Size[0])
			for x := int32(0); x < cb.Size[0]; x++ {
				votes[row+int64(cb.MinPt[0]+x-bounds.MinPt[0])] += counts[i]
				i++
			}
		}
	}
	accumulate(ab, ac)
	accumulate(bb, bc)
	return bounds, votes
}

func voteSlice(bounds Bounds2d, votes []uint8, threshold int) *Mask2d {
	slice := NewMask2d(bounds)
	for i, n := range votes {
		if int(n) >= threshold {
			slice.Bits[i] = true
		}
	}
	return slice
}

// Downscale returns a mask scaled 1/2x in X, Y and Z.  Each output voxel
// gathers the votes of its 2x2x2 source block, pairing adjacent slices
// (2k, 2k+1); it is true iff at least threshold source voxels are true.
// Threshold must lie in [1,8]; 0 selects the default of 5.  The shared
// slice of an infinite-Z mask votes for both Z copies of each block and is
// re-shared.
func (m *Mask3d) Downscale(ctx context.Context, threshold int) (*Mask3d, error) {
	if threshold == 0 {
		threshold = DefaultThreshold3d
	}
	if threshold < 1 || threshold > MaxThreshold3d {
		return nil, fmt.Errorf("3d downscale threshold %d out of range [1,%d]", threshold, MaxThreshold3d)
	}
	if m == nil {
		return nil, nil
	}
	result := &Mask3d{}
	if m.slices.uniform != nil {
		bounds, votes := downscaleVotes(m.slices.uniform, m.slices.uniform)
		result.slices.uniform = voteSlice(bounds, votes, threshold)
	}
	// Group explicit slices into (2k, 2k+1) pairs; the shared slice fills
	// the other half of a partially overridden pair.
	outIdx := make(map[int32]struct{})
	for _, z := range m.slices.indexes() {
		outIdx[z >> 1] = struct{}{}
	}
	for oz := range outIdx {
		if err := CheckInterrupt(ctx); err != nil {
			return nil, err
		}
		bounds, votes := downscaleVotes(m.SliceAt(oz*2), m.SliceAt(oz*2+1))
		slice := voteSlice(bounds, votes, threshold)
		if result.slices.uniform != nil || !slice.IsEmpty() {
			result.slices.set(oz, slice)
		}
	}
	b := m.Bounds
	ox, sx := halveSpan(b.MinPt[0], b.Size[0])
	oy, sy := halveSpan(b.MinPt[1], b.Size[1])
	result.Bounds.SetRect(NewBounds2d(ox, oy, sx, sy))
	if b.InfiniteZ() {
		result.Bounds.MinPt[2] = b.MinPt[2]
		result.Bounds.Size[2] = InfiniteExtent
	} else {
		result.Bounds.MinPt[2], result.Bounds.Size[2] = halveSpan(b.MinPt[2], b.Size[2])
	}
	return result, nil
}

// Upscale2d returns a mask scaled 2x in X and Y only, leaving Z untouched.
func (m *Mask3d) Upscale2d(ctx context.Context) (*Mask3d, error) {
	if m == nil {
		return nil, nil
	}
	slices, err := mapStorage(ctx, &m.slices, func(s *Mask2d) (*Mask2d, error) {
		return s.Upscale(), nil
	})
	if err != nil {
		return nil, err
	}
	result := &Mask3d{slices: slices}
	b := m.Bounds
	result.Bounds.SetRect(NewBounds2d(b.MinPt[0]*2, b.MinPt[1]*2, b.Size[0]*2, b.Size[1]*2))
	result.Bounds.MinPt[2] = b.MinPt[2]
	result.Bounds.Size[2] = b.Size[2]
	return result, nil
}

// Downscale2d returns a mask scaled 1/2x in X and Y only, leaving Z
// untouched.  Threshold must lie in [1,4]; 0 selects the default of 3.
func (m *Mask3d) Downscale2d(ctx context.Context, threshold int) (*Mask3d, error) {
	if m == nil {
		return nil, nil
	}
	slices, err := mapStorage(ctx, &m.slices, func(s *Mask2d) (*Mask2d, error) {
		return s.Downscale(threshold)
	})
	if err != nil {
		return nil, err
	}
	result := &Mask3d{slices: slices}
	b := m.Bounds
	ox, sx := halveSpan(b.MinPt[0], b.Size[0])
	oy, sy := halveSpan(b.MinPt[1], b.Size[1])
	result.Bounds.SetRect(NewBounds2d(ox, oy, sx, sy))
	result.Bounds.MinPt[2] = b.MinPt[2]
	result.Bounds.Size[2] = b.Size[2]
	return result, nil
}

// MoveBounds re-tiles the mask in place to the given bounds, preserving
// overlapping content and clearing the rest.  Moving a finite mask to
// infinite Z is only supported when at most one slice holds points, since
// there is no well-defined shared slice otherwise; moving an infinite mask
// to finite Z materializes the shared slice at every index of the new
// extent.
func (m *Mask3d) MoveBounds(bounds Bounds3d) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rect := bounds.Rect()
	var moved ndStorage[*Mask2d]
	switch {
	case m.Bounds.InfiniteZ() && bounds.InfiniteZ():
		moved = m.slices.clone()
		if moved.uniform != nil {
			moved.uniform.MoveBounds(rect)
		}
		for _, z := range moved.indexes() {
			if s := moved.at(z); s != nil {
				s.MoveBounds(rect)
			}
		}
	case m.Bounds.InfiniteZ():
		// Demote: materialize the shared slice across the new extent.
		for z := bounds.MinPt[2]; z < bounds.MinPt[2]+bounds.Size[2]; z++ {
			if s := m.slices.at(z); s != nil {
				c := s.Clone()
				c.MoveBounds(rect)
				moved.set(z, c)
			}
		}
	case bounds.InfiniteZ():
		var only *Mask2d
		for _, z := range m.slices.indexes() {
			s := m.slices.at(z)
			if s.IsEmpty() {
				continue
			}
			if only != nil {
				return fmt.Errorf("%w: cannot promote mask with %d occupied slices to infinite Z",
					ErrIncompatible, len(m.slices.dense))
			}
			only = s
		}
		if only != nil {
			c := only.Clone()
			c.MoveBounds(rect)
			moved.uniform = c
		}
	default:
		for _, z := range m.slices.indexes() {
			if !bounds.zSpan().contains(z) {
				continue
			}
			c := m.slices.at(z).Clone()
			c.MoveBounds(rect)
			moved.set(z, c)
		}
	}
	m.Bounds = bounds
	m.slices = moved
	return nil
}

// Translate shifts the mask bounds by the given offset without touching
// voxel content.
func (m *Mask3d) Translate(dx, dy, dz int32) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.slices.uniform != nil {
		m.slices.uniform.Translate(dx, dy)
	}
	if dz != 0 && len(m.slices.dense) > 0 {
		dense := make(map[int32]*Mask2d, len(m.slices.dense))
		for z, s := range m.slices.dense {
			dense[z+dz] = s
		}
		m.slices.dense = dense
	}
	for _, s := range m.slices.dense {
		s.Translate(dx, dy)
	}
	m.Bounds.MinPt[0] += dx
	m.Bounds.MinPt[1] += dy
	if !m.Bounds.InfiniteZ() {
		m.Bounds.MinPt[2] += dz
	}
}

// OptimizeBounds shrinks the mask in place to the minimal bounding box of
// its voxels, compacting every slice.  Applying it twice yields the same
// bounds and content as applying it once.
func (m *Mask3d) OptimizeBounds() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.slices.uniform != nil {
		m.slices.uniform.OptimizeBounds()
		if m.slices.uniform.IsEmpty() {
			m.slices.uniform = nil
		}
	}
	for _, z := range m.slices.indexes() {
		if s := m.slices.at(z); s != nil {
			s.OptimizeBounds()
		}
	}
	if m.slices.uniform == nil {
		// Without a shared slice the occupied extent is just the
		// non-empty explicit slices, so an infinite axis demotes to the
		// finite span they cover.
		m.slices.dropEmpty()
		idxs := m.slices.indexes()
		if len(idxs) == 0 {
			m.Bounds = Bounds3d{}
			m.slices = ndStorage[*Mask2d]{}
			return
		}
		m.Bounds.MinPt[2] = idxs[0]
		m.Bounds.Size[2] = idxs[len(idxs)-1] - idxs[0] + 1
	}
	rect := Bounds2d{}
	if m.slices.uniform != nil {
		rect = m.slices.uniform.Bounds
	}
	for _, s := range m.slices.dense {
		if s != nil && !s.IsEmpty() {
			rect = rect.Union(s.Bounds)
		}
	}
	m.Bounds.SetRect(rect)
}

// OptimizedBounds returns the minimal bounding box without modifying the
// mask.
func (m *Mask3d) OptimizedBounds() Bounds3d {
	if m == nil {
		return Bounds3d{}
	}
	c := m.Clone()
	c.OptimizeBounds()
	return c.Bounds
}

func (m *Mask3d) String() string {
	if m == nil {
		return "Mask3d(nil)"
	}
	return fmt.Sprintf("Mask3d%s with %d points", m.Bounds, m.NumPoints())
}

// Mask3dBuilder accumulates voxels one at a time and materializes them as a
// Mask3d with the exact bounding box.  Used by point-list construction and
// by the connected-component labeler.
type Mask3dBuilder struct {
	pts          []Point3d
	minPt, maxPt Point3d
}

// Add records one voxel.
func (b *Mask3dBuilder) Add(x, y, z int32) {
	p := Point3d{x, y, z}
	if len(b.pts) == 0 {
		b.minPt, b.maxPt = p, p
	} else {
		b.minPt.SetMinimum(p)
		b.maxPt.SetMaximum(p)
	}
	b.pts = append(b.pts, p)
}

// NumPoints returns the number of voxels recorded so far.
func (b *Mask3dBuilder) NumPoints() int {
	return len(b.pts)
}

// Mask materializes the accumulated voxels.
func (b *Mask3dBuilder) Mask() *Mask3d {
	if len(b.pts) == 0 {
		return &Mask3d{}
	}
	bounds := Bounds3d{
		MinPt: b.minPt,
		Size: Point3d{
			b.maxPt[0] - b.minPt[0] + 1,
			b.maxPt[1] - b.minPt[1] + 1,
			b.maxPt[2] - b.minPt[2] + 1,
		},
	}
	m := NewMask3d(bounds)
	rect := bounds.Rect()
	for _, p := range b.pts {
		slice := m.slices.at(p[2])
		if slice == nil {
			slice = NewMask2d(rect)
			m.slices.set(p[2], slice)
		}
		slice.Set(p[0], p[1], true)
	}
	return m
}
