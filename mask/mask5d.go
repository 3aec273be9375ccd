package mask

import (
	"context"
	"fmt"
)

// Mask5d composes 4d masks along the C axis and is the top-level region
// representation.
type Mask5d struct {
	Bounds   Bounds5d
	channels ndStorage[*Mask4d]
}

// NewMask5d returns an empty mask with the given bounds.
func NewMask5d(bounds Bounds5d) *Mask5d {
	return &Mask5d{Bounds: bounds}
}

// UniformMask5d returns a mask holding the given 4d mask at every channel.
func UniformMask5d(channel *Mask4d) *Mask5d {
	m := &Mask5d{}
	if channel != nil {
		m.Bounds.SetBounds4d(channel.Bounds)
	}
	m.Bounds.Size[4] = InfiniteExtent
	m.channels.uniform = channel
	return m
}

// Mask5dFromChannelMap builds a mask from an ordered C-index to 4d mask map.
func Mask5dFromChannelMap(bounds Bounds5d, channels map[int32]*Mask4d) (*Mask5d, error) {
	m := NewMask5d(bounds)
	for c, channel := range channels {
		if !bounds.cSpan().contains(c) {
			return nil, fmt.Errorf("channel index %d outside bounds %s", c, bounds)
		}
		if bounds.InfiniteC() {
			if m.channels.uniform != nil {
				return nil, fmt.Errorf("%w: more than one channel for infinite C extent", ErrIncompatible)
			}
			m.channels.uniform = channel
			continue
		}
		if channel != nil {
			m.channels.set(c, channel)
		}
	}
	return m, nil
}

// Mask5dFromPoints builds a mask from a point list, computing the bounding
// box from the coordinate extrema.
func Mask5dFromPoints(pts []Point5d) *Mask5d {
	if len(pts) == 0 {
		return &Mask5d{}
	}
	byChannel := make(map[int32][]Point4d)
	for _, p := range pts {
		byChannel[p[4]] = append(byChannel[p[4]], Point4d{p[0], p[1], p[2], p[3]})
	}
	m := &Mask5d{}
	var bounds Bounds5d
	first := true
	for c, cpts := range byChannel {
		channel := Mask4dFromPoints(cpts)
		m.channels.set(c, channel)
		var cb Bounds5d
		cb.SetBounds4d(channel.Bounds)
		cb.MinPt[4], cb.Size[4] = c, 1
		if first {
			bounds = cb
			first = false
		} else {
			bounds.SetBounds4d(bounds.Bounds4d().Union(cb.Bounds4d()))
			cs := spanUnion(bounds.cSpan(), cb.cSpan())
			bounds.MinPt[4], bounds.Size[4] = cs.origin, cs.size
		}
	}
	m.Bounds = bounds
	return m
}

// ChannelAt returns the 4d mask covering the given channel, nil when the
// channel holds no points.
func (m *Mask5d) ChannelAt(c int32) *Mask4d {
	if m == nil || !m.Bounds.cSpan().contains(c) {
		return nil
	}
	return m.channels.at(c)
}

// SetChannelAt stores a 4d mask at the given channel, growing the outer
// bounds to cover it.
func (m *Mask5d) SetChannelAt(c int32, channel *Mask4d) error {
	if !m.Bounds.cSpan().contains(c) {
		return fmt.Errorf("channel index %d outside bounds %s", c, m.Bounds)
	}
	if channel != nil {
		m.Bounds.SetBounds4d(m.Bounds.Bounds4d().Union(channel.Bounds))
	}
	m.channels.set(c, channel)
	return nil
}

// CIndexes returns the explicitly stored channel indices in ascending order.
func (m *Mask5d) CIndexes() []int32 {
	if m == nil {
		return nil
	}
	return m.channels.indexes()
}

// UniformChannel returns the shared 4d mask of an infinite-C mask, nil for
// finite masks.
func (m *Mask5d) UniformChannel() *Mask4d {
	if m == nil {
		return nil
	}
	return m.channels.uniform
}

// Clone returns a deep copy down to the 2d bitmaps.
func (m *Mask5d) Clone() *Mask5d {
	if m == nil {
		return nil
	}
	return &Mask5d{Bounds: m.Bounds, channels: m.channels.clone()}
}

// IsEmpty reports whether the mask holds no points.
func (m *Mask5d) IsEmpty() bool {
	if m == nil {
		return true
	}
	return m.channels.isEmpty()
}

// Contains reports whether the mask holds the given point.
func (m *Mask5d) Contains(x, y, z, t, c int32) bool {
	return m.ChannelAt(c).Contains(x, y, z, t)
}

// ContainsMask reports whether every point of other is also in m.  A nil
// receiver is an empty mask and contains only empty masks.
func (m *Mask5d) ContainsMask(other *Mask5d) bool {
	if other == nil {
		return true
	}
	if m == nil {
		return other.IsEmpty()
	}
	if other.Bounds.InfiniteC() {
		if !m.Bounds.InfiniteC() {
			return other.IsEmpty()
		}
		if !m.channels.uniform.ContainsMask(other.channels.uniform) {
			return false
		}
	}
	for _, c := range other.channels.indexes() {
		if !m.ChannelAt(c).ContainsMask(other.ChannelAt(c)) {
			return false
		}
	}
	return true
}

// Intersects reports whether the two masks share at least one point.
func (m *Mask5d) Intersects(other *Mask5d) bool {
	if m == nil || other == nil {
		return false
	}
	if m.Bounds.InfiniteC() && other.Bounds.InfiniteC() &&
		m.channels.uniform.Intersects(other.channels.uniform) {
		return true
	}
	for _, c := range other.channels.indexes() {
		if m.ChannelAt(c).Intersects(other.ChannelAt(c)) {
			return true
		}
	}
	for _, c := range m.channels.indexes() {
		if other.ChannelAt(c).Intersects(m.ChannelAt(c)) {
			return true
		}
	}
	return false
}

// NumPoints returns the number of points, counting any shared child once.
func (m *Mask5d) NumPoints() uint64 {
	if m == nil {
		return 0
	}
	var n uint64
	if m.channels.uniform != nil {
		n += m.channels.uniform.NumPoints()
	}
	for _, channel := range m.channels.dense {
		n += channel.NumPoints()
	}
	return n
}

// Points returns all points in ascending (c, t, z, y, x) scan order, with
// shared children enumerated once at the representative AnyIndex.
func (m *Mask5d) Points(ctx context.Context) ([]Point5d, error) {
	if m == nil {
		return nil, nil
	}
	pts := make([]Point5d, 0, m.NumPoints())
	appendChannel := func(c int32, channel *Mask4d) error {
		cpts, err := channel.Points(ctx)
		if err != nil {
			return err
		}
		for _, p := range cpts {
			pts = append(pts, Point5d{p[0], p[1], p[2], p[3], c})
		}
		return nil
	}
	if m.channels.uniform != nil {
		if err := appendChannel(AnyIndex, m.channels.uniform); err != nil {
			return nil, err
		}
	}
	for _, c := range m.channels.indexes() {
		if err := CheckInterrupt(ctx); err != nil {
			return nil, err
		}
		if err := appendChannel(c, m.channels.at(c)); err != nil {
			return nil, err
		}
	}
	return pts, nil
}

// PointsAsInts returns the points as a flat [x0,y0,z0,t0,c0, ...] array.
func (m *Mask5d) PointsAsInts(ctx context.Context) ([]int32, error) {
	pts, err := m.Points(ctx)
	if err != nil {
		return nil, err
	}
	flat := make([]int32, 0, len(pts)*5)
	for _, p := range pts {
		flat = append(flat, p[0], p[1], p[2], p[3], p[4])
	}
	return flat, nil
}

// combine fulfills the set-algebra Operand contract along the composed C
// axis.
func (m *Mask5d) combine(ctx context.Context, op Op, other *Mask5d) (*Mask5d, error) {
	cs, err := composedSpan(op, m.Bounds.cSpan(), other.Bounds.cSpan())
	if err != nil {
		return nil, err
	}
	var inner Bounds4d
	switch op {
	case OpUnion, OpExclusiveUnion:
		inner = m.Bounds.Bounds4d().Union(other.Bounds.Bounds4d())
	case OpIntersect:
		inner = m.Bounds.Bounds4d().Intersect(other.Bounds.Bounds4d())
	case OpSubtract:
		inner = m.Bounds.Bounds4d()
	}
	if cs.empty() || inner.IsEmpty() {
		return &Mask5d{}, nil
	}
	channels, err := combineStorage(ctx, op, &m.channels, &other.channels,
		m.Bounds.cSpan(), other.Bounds.cSpan(), cs)
	if err != nil {
		return nil, err
	}
	result := &Mask5d{channels: channels}
	result.Bounds.SetBounds4d(inner)
	result.Bounds.MinPt[4] = cs.origin
	result.Bounds.Size[4] = cs.size
	return result, nil
}

func (m *Mask5d) mapChannels(ctx context.Context, inner func(*Mask4d) (*Mask4d, error)) (*Mask5d, error) {
	channels, err := mapStorage(ctx, &m.channels, inner)
	if err != nil {
		return nil, err
	}
	result := &Mask5d{channels: channels}
	result.Bounds = m.Bounds
	return result, nil
}

func (m *Mask5d) scaleBounds(up bool, scaleZ bool) Bounds5d {
	b := m.Bounds
	var out Bounds5d
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
	out.MinPt[4], out.Size[4] = b.MinPt[4], b.Size[4]
	return out
}

// Upscale returns a mask scaled 2x in X, Y and Z, leaving T and C untouched.
// Like the lower levels, resulting bounds are not minimized.
func (m *Mask5d) Upscale(ctx context.Context) (*Mask5d, error) {
	if m == nil {
		return nil, nil
	}
	result, err := m.mapChannels(ctx, func(c *Mask4d) (*Mask4d, error) {
		return c.Upscale(ctx)
	})
	if err != nil {
		return nil, err
	}
	result.Bounds = m.scaleBounds(true, true)
	return result, nil
}

// Downscale returns a mask scaled 1/2x in X, Y and Z with the 3d voting
// threshold, leaving T and C untouched.
func (m *Mask5d) Downscale(ctx context.Context, threshold int) (*Mask5d, error) {
	if m == nil {
		return nil, nil
	}
	result, err := m.mapChannels(ctx, func(c *Mask4d) (*Mask4d, error) {
		return c.Downscale(ctx, threshold)
	})
	if err != nil {
		return nil, err
	}
	result.Bounds = m.scaleBounds(false, true)
	return result, nil
}

// Upscale2d returns a mask scaled 2x in X and Y only.
func (m *Mask5d) Upscale2d(ctx context.Context) (*Mask5d, error) {
	if m == nil {
		return nil, nil
	}
	result, err := m.mapChannels(ctx, func(c *Mask4d) (*Mask4d, error) {
		return c.Upscale2d(ctx)
	})
	if err != nil {
		return nil, err
	}
	result.Bounds = m.scaleBounds(true, false)
	return result, nil
}

// Downscale2d returns a mask scaled 1/2x in X and Y only with the 2d voting
// threshold.
func (m *Mask5d) Downscale2d(ctx context.Context, threshold int) (*Mask5d, error) {
	if m == nil {
		return nil, nil
	}
	result, err := m.mapChannels(ctx, func(c *Mask4d) (*Mask4d, error) {
		return c.Downscale2d(ctx, threshold)
	})
	if err != nil {
		return nil, err
	}
	result.Bounds = m.scaleBounds(false, false)
	return result, nil
}

// OptimizeBounds shrinks the mask in place to the minimal bounding box of
// its points, compacting every child.
func (m *Mask5d) OptimizeBounds() {
	if m == nil {
		return
	}
	if m.channels.uniform != nil {
		m.channels.uniform.OptimizeBounds()
		if m.channels.uniform.IsEmpty() {
			m.channels.uniform = nil
		}
	}
	for _, c := range m.channels.indexes() {
		if ch := m.channels.at(c); ch != nil {
			ch.OptimizeBounds()
		}
	}
	if m.channels.uniform == nil {
		m.channels.dropEmpty()
		idxs := m.channels.indexes()
		if len(idxs) == 0 {
			m.Bounds = Bounds5d{}
			m.channels = ndStorage[*Mask4d]{}
			return
		}
		m.Bounds.MinPt[4] = idxs[0]
		m.Bounds.Size[4] = idxs[len(idxs)-1] - idxs[0] + 1
	}
	inner := Bounds4d{}
	if m.channels.uniform != nil {
		inner = m.channels.uniform.Bounds
	}
	for _, ch := range m.channels.dense {
		if ch != nil && !ch.IsEmpty() {
			inner = inner.Union(ch.Bounds)
		}
	}
	m.Bounds.SetBounds4d(inner)
}

// OptimizedBounds returns the minimal bounding box without modifying the
// mask.
func (m *Mask5d) OptimizedBounds() Bounds5d {
	if m == nil {
		return Bounds5d{}
	}
	c := m.Clone()
	c.OptimizeBounds()
	return c.Bounds
}

func (m *Mask5d) String() string {
	if m == nil {
		return "Mask5d(nil)"
	}
	return fmt.Sprintf("Mask5d%s with %d points", m.Bounds, m.NumPoints())
}
