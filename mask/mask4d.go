package mask

import (
	"context"
	"fmt"
)

// Mask4d composes 3d masks along the T axis.  Most operations delegate to
// the 3d level; the T axis follows the same infinite-extent convention as Z.
type Mask4d struct {
	Bounds Bounds4d
	frames ndStorage[*Mask3d]
}

// NewMask4d returns an empty mask with the given bounds.
func NewMask4d(bounds Bounds4d) *Mask4d {
	return &Mask4d{Bounds: bounds}
}

// UniformMask4d returns a mask holding the given 3d mask at every T index.
func UniformMask4d(frame *Mask3d) *Mask4d {
	m := &Mask4d{}
	if frame != nil {
		m.Bounds.SetBounds3d(frame.Bounds)
	}
	m.Bounds.Size[3] = InfiniteExtent
	m.frames.uniform = frame
	return m
}

// Mask4dFromFrameMap builds a mask from an ordered T-index to 3d mask map.
func Mask4dFromFrameMap(bounds Bounds4d, frames map[int32]*Mask3d) (*Mask4d, error) {
	m := NewMask4d(bounds)
	for t, frame := range frames {
		if !bounds.tSpan().contains(t) {
			return nil, fmt.Errorf("frame index %d outside bounds %s", t, bounds)
		}
		if bounds.InfiniteT() {
			if m.frames.uniform != nil {
				return nil, fmt.Errorf("%w: more than one frame for infinite T extent", ErrIncompatible)
			}
			m.frames.uniform = frame
			continue
		}
		if frame != nil {
			m.frames.set(t, frame)
		}
	}
	return m, nil
}

// Mask4dFromPoints builds a mask from a point list, computing the bounding
// box from the coordinate extrema.
func Mask4dFromPoints(pts []Point4d) *Mask4d {
	if len(pts) == 0 {
		return &Mask4d{}
	}
	builders := make(map[int32]*Mask3dBuilder)
	for _, p := range pts {
		b := builders[p[3]]
		if b == nil {
			b = &Mask3dBuilder{}
			builders[p[3]] = b
		}
		b.Add(p[0], p[1], p[2])
	}
	m := &Mask4d{}
	var bounds Bounds4d
	first := true
	for t, b := range builders {
		frame := b.Mask()
		m.frames.set(t, frame)
		var fb Bounds4d
		fb.SetBounds3d(frame.Bounds)
		fb.MinPt[3], fb.Size[3] = t, 1
		if first {
			bounds = fb
			first = false
		} else {
			bounds = bounds.Union(fb)
		}
	}
	m.Bounds = bounds
	return m
}

// FrameAt returns the 3d mask covering the given T index, nil when the
// index holds no points.
func (m *Mask4d) FrameAt(t int32) *Mask3d {
	if m == nil || !m.Bounds.tSpan().contains(t) {
		return nil
	}
	return m.frames.at(t)
}

// SetFrameAt stores a 3d mask at the given T index, growing the outer
// bounds to cover it.
func (m *Mask4d) SetFrameAt(t int32, frame *Mask3d) error {
	if !m.Bounds.tSpan().contains(t) {
		return fmt.Errorf("frame index %d outside bounds %s", t, m.Bounds)
	}
	if frame != nil {
		m.Bounds.SetBounds3d(m.Bounds.Bounds3d().Union(frame.Bounds))
	}
	m.frames.set(t, frame)
	return nil
}

// TIndexes returns the explicitly stored T indices in ascending order.
func (m *Mask4d) TIndexes() []int32 {
	if m == nil {
		return nil
	}
	return m.frames.indexes()
}

// UniformFrame returns the shared 3d mask of an infinite-T mask, nil for
// finite masks.
func (m *Mask4d) UniformFrame() *Mask3d {
	if m == nil {
		return nil
	}
	return m.frames.uniform
}

// Clone returns a deep copy down to the 2d bitmaps.
func (m *Mask4d) Clone() *Mask4d {
	if m == nil {
		return nil
	}
	return &Mask4d{Bounds: m.Bounds, frames: m.frames.clone()}
}

// IsEmpty reports whether the mask holds no points.
func (m *Mask4d) IsEmpty() bool {
	if m == nil {
		return true
	}
	return m.frames.isEmpty()
}

// Contains reports whether the mask holds the given point.
func (m *Mask4d) Contains(x, y, z, t int32) bool {
	return m.FrameAt(t).Contains(x, y, z)
}

// ContainsMask reports whether every point of other is also in m.  A nil
// receiver is an empty mask and contains only empty masks.
func (m *Mask4d) ContainsMask(other *Mask4d) bool {
	if other == nil {
		return true
	}
	if m == nil {
		return other.IsEmpty()
	}
	if other.Bounds.InfiniteT() {
		if !m.Bounds.InfiniteT() {
			return other.IsEmpty()
		}
		if !m.frames.uniform.ContainsMask(other.frames.uniform) {
			return false
		}
	}
	for _, t := range other.frames.indexes() {
		if !m.FrameAt(t).ContainsMask(other.FrameAt(t)) {
			return false
		}
	}
	return true
}

// Intersects reports whether the two masks share at least one point.
func (m *Mask4d) Intersects(other *Mask4d) bool {
	if m == nil || other == nil {
		return false
	}
	if m.Bounds.InfiniteT() && other.Bounds.InfiniteT() &&
		m.frames.uniform.Intersects(other.frames.uniform) {
		return true
	}
	for _, t := range other.frames.indexes() {
		if m.FrameAt(t).Intersects(other.FrameAt(t)) {
			return true
		}
	}
	for _, t := range m.frames.indexes() {
		if other.FrameAt(t).Intersects(m.FrameAt(t)) {
			return true
		}
	}
	return false
}

// NumPoints returns the number of points, counting any shared child once.
func (m *Mask4d) NumPoints() uint64 {
	if m == nil {
		return 0
	}
	var n uint64
	if m.frames.uniform != nil {
		n += m.frames.uniform.NumPoints()
	}
	for _, frame := range m.frames.dense {
		n += frame.NumPoints()
	}
	return n
}

// Points returns all points in ascending (t, z, y, x) scan order, with
// shared children enumerated once at the representative AnyIndex.
func (m *Mask4d) Points(ctx context.Context) ([]Point4d, error) {
	if m == nil {
		return nil, nil
	}
	pts := make([]Point4d, 0, m.NumPoints())
	appendFrame := func(t int32, frame *Mask3d) error {
		fpts, err := frame.Points(ctx)
		if err != nil {
			return err
		}
		for _, p := range fpts {
			pts = append(pts, Point4d{p[0], p[1], p[2], t})
		}
		return nil
	}
	if m.frames.uniform != nil {
		if err := appendFrame(AnyIndex, m.frames.uniform); err != nil {
			return nil, err
		}
	}
	for _, t := range m.frames.indexes() {
		if err := CheckInterrupt(ctx); err != nil {
			return nil, err
		}
		if err := appendFrame(t, m.frames.at(t)); err != nil {
			return nil, err
		}
	}
	return pts, nil
}

// PointsAsInts returns the points as a flat [x0,y0,z0,t0, ...] array.
func (m *Mask4d) PointsAsInts(ctx context.Context) ([]int32, error) {
	pts, err := m.Points(ctx)
	if err != nil {
		return nil, err
	}
	flat := make([]int32, 0, len(pts)*4)
	for _, p := range pts {
		flat = append(flat, p[0], p[1], p[2], p[3])
	}
	return flat, nil
}

// combine fulfills the set-algebra Operand contract along the composed T
// axis.
func (m *Mask4d) combine(ctx context.Context, op Op, other *Mask4d) (*Mask4d, error) {
	ts, err := composedSpan(op, m.Bounds.tSpan(), other.Bounds.tSpan())
	if err != nil {
		return nil, err
	}
	var inner Bounds3d
	switch op {
	case OpUnion, OpExclusiveUnion:
		inner = m.Bounds.Bounds3d().Union(other.Bounds.Bounds3d())
	case OpIntersect:
		inner = m.Bounds.Bounds3d().Intersect(other.Bounds.Bounds3d())
	case OpSubtract:
		inner = m.Bounds.Bounds3d()
	}
	if ts.empty() || inner.IsEmpty() {
		return &Mask4d{}, nil
	}
	frames, err := combineStorage(ctx, op, &m.frames, &other.frames,
		m.Bounds.tSpan(), other.Bounds.tSpan(), ts)
	if err != nil {
		return nil, err
	}
	result := &Mask4d{frames: frames}
	result.Bounds.SetBounds3d(inner)
	result.Bounds.MinPt[3] = ts.origin
	result.Bounds.Size[3] = ts.size
	return result, nil
}

func (m *Mask4d) scaleBounds(up bool, scaleZ bool) Bounds4d {
	b := m.Bounds
	var out Bounds4d
	for dim := 0; dim < 3; dim++ {
		if dim == 2 && (!scaleZ || b.Size[2] == InfiniteExtent) {
			out.MinPt[2], out.Size[2] = b.MinPt[2], b.Size[2]
			continue
		}
		if up {
			out.MinPt[dim], out.Size[dim] = b.MinPt[dim]*2, b.Size[dim]*2
		} else {
			out.MinPt[dim], out.Size[dim] = halveSpan(b.MinPt[dim], b.Size[dim])
		}
	}
	out.MinPt[3], out.Size[3] = b.MinPt[3], b.Size[3]
	return out
}

// Upscale returns a mask scaled 2x in X, Y and Z, leaving T untouched.
func (m *Mask4d) Upscale(ctx context.Context) (*Mask4d, error) {
	if m == nil {
		return nil, nil
	}
	frames, err := mapStorage(ctx, &m.frames, func(f *Mask3d) (*Mask3d, error) {
		return f.Upscale(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &Mask4d{Bounds: m.scaleBounds(true, true), frames: frames}, nil
}

// Downscale returns a mask scaled 1/2x in X, Y and Z with the 3d voting
// threshold, leaving T untouched.
func (m *Mask4d) Downscale(ctx context.Context, threshold int) (*Mask4d, error) {
	if m == nil {
		return nil, nil
	}
	frames, err := mapStorage(ctx, &m.frames, func(f *Mask3d) (*Mask3d, error) {
		return f.Downscale(ctx, threshold)
	})
	if err != nil {
		return nil, err
	}
	return &Mask4d{Bounds: m.scaleBounds(false, true), frames: frames}, nil
}

// Upscale2d returns a mask scaled 2x in X and Y only.
func (m *Mask4d) Upscale2d(ctx context.Context) (*Mask4d, error) {
	if m == nil {
		return nil, nil
	}
	frames, err := mapStorage(ctx, &m.frames, func(f *Mask3d) (*Mask3d, error) {
		return f.Upscale2d(ctx)
	})
	if err != nil {
		return nil, err
	}
	return &Mask4d{Bounds: m.scaleBounds(true, false), frames: frames}, nil
}

// Downscale2d returns a mask scaled 1/2x in X and Y only with the 2d voting
// threshold.
func (m *Mask4d) Downscale2d(ctx context.Context, threshold int) (*Mask4d, error) {
	if m == nil {
		return nil, nil
	}
	frames, err := mapStorage(ctx, &m.frames, func(f *Mask3d) (*Mask3d, error) {
		return f.Downscale2d(ctx, threshold)
	})
	if err != nil {
		return nil, err
	}
	return &Mask4d{Bounds: m.scaleBounds(false, false), frames: frames}, nil
}

// MoveBounds re-tiles the mask in place to the given bounds, with the same
// infinite-axis promotion and demotion rules as the 3d level.
func (m *Mask4d) MoveBounds(bounds Bounds4d) error {
	if m == nil {
		return nil
	}
	inner := bounds.Bounds3d()
	var moved ndStorage[*Mask3d]
	retile := func(f *Mask3d) (*Mask3d, error) {
		c := f.Clone()
		if err := c.MoveBounds(inner); err != nil {
			return nil, err
		}
		return c, nil
	}
	switch {
	case m.Bounds.InfiniteT() && bounds.InfiniteT():
		if m.frames.uniform != nil {
			c, err := retile(m.frames.uniform)
			if err != nil {
				return err
			}
			moved.uniform = c
		}
		for _, t := range m.frames.indexes() {
			if f := m.frames.at(t); f != nil {
				c, err := retile(f)
				if err != nil {
					return err
				}
				moved.set(t, c)
			}
		}
	case m.Bounds.InfiniteT():
		for t := bounds.MinPt[3]; t < bounds.MinPt[3]+bounds.Size[3]; t++ {
			if f := m.frames.at(t); f != nil {
				c, err := retile(f)
				if err != nil {
					return err
				}
				moved.set(t, c)
			}
		}
	case bounds.InfiniteT():
		var only *Mask3d
		for _, t := range m.frames.indexes() {
			f := m.frames.at(t)
			if f.IsEmpty() {
				continue
			}
			if only != nil {
				return fmt.Errorf("%w: cannot promote mask with %d occupied frames to infinite T",
					ErrIncompatible, len(m.frames.dense))
			}
			only = f
		}
		if only != nil {
			c, err := retile(only)
			if err != nil {
				return err
			}
			moved.uniform = c
		}
	default:
		for _, t := range m.frames.indexes() {
			if !bounds.tSpan().contains(t) {
				continue
			}
			c, err := retile(m.frames.at(t))
			if err != nil {
				return err
			}
			moved.set(t, c)
		}
	}
	m.Bounds = bounds
	m.frames = moved
	return nil
}

// OptimizeBounds shrinks the mask in place to the minimal bounding box of
// its points, compacting every child.
func (m *Mask4d) OptimizeBounds() {
	if m == nil {
		return
	}
	if m.frames.uniform != nil {
		m.frames.uniform.OptimizeBounds()
		if m.frames.uniform.IsEmpty() {
			m.frames.uniform = nil
		}
	}
	for _, t := range m.frames.indexes() {
		if f := m.frames.at(t); f != nil {
			f.OptimizeBounds()
		}
	}
	if m.frames.uniform == nil {
		m.frames.dropEmpty()
		idxs := m.frames.indexes()
		if len(idxs) == 0 {
			m.Bounds = Bounds4d{}
			m.frames = ndStorage[*Mask3d]{}
			return
		}
		m.Bounds.MinPt[3] = idxs[0]
		m.Bounds.Size[3] = idxs[len(idxs)-1] - idxs[0] + 1
	}
	inner := Bounds3d{}
	if m.frames.uniform != nil {
		inner = m.frames.uniform.Bounds
	}
	for _, f := range m.frames.dense {
		if f != nil && !f.IsEmpty() {
			inner = inner.Union(f.Bounds)
		}
	}
	m.Bounds.SetBounds3d(inner)
}

// OptimizedBounds returns the minimal bounding box without modifying the
// mask.
func (m *Mask4d) OptimizedBounds() Bounds4d {
	if m == nil {
		return Bounds4d{}
	}
	c := m.Clone()
	c.OptimizeBounds()
	return c.Bounds
}

func (m *Mask4d) String() string {
	if m == nil {
		return "Mask4d(nil)"
	}
	return fmt.Sprintf("Mask4d%s with %d points", m.Bounds, m.NumPoints())
}
