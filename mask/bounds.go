package mask

import (
	"fmt"
	"math"
)

// InfiniteExtent is the sentinel size for an axis along which a mask is
// unbounded, i.e., one representative child is shared by every index on
// that axis.
const InfiniteExtent int32 = math.MaxInt32

// AnyIndex is the representative coordinate reported for points stored in
// the shared child of an unbounded axis.
const AnyIndex int32 = math.MinInt32

// span is an interval along a single composed axis.
type span struct {
	origin int32
	size   int32
}

var infiniteSpan = span{0, InfiniteExtent}

func (s span) infinite() bool {
	return s.size == InfiniteExtent
}

func (s span) empty() bool {
	return s.size == 0
}

// max returns the last index covered.  Only valid for finite non-empty spans.
func (s span) max() int32 {
	return s.origin + s.size - 1
}

func (s span) contains(i int32) bool {
	if s.infinite() {
		return true
	}
	return i >= s.origin && i < s.origin+s.size
}

func spanUnion(a, b span) span {
	if a.empty() {
		return b
	}
	if b.empty() {
		return a
	}
	if a.infinite() || b.infinite() {
		return infiniteSpan
	}
	lo, hi := a.origin, a.max()
	if b.origin < lo {
		lo = b.origin
	}
	if b.max() > hi {
		hi = b.max()
	}
	return span{lo, hi - lo + 1}
}

// halveSpan downscales a finite interval by two, covering every even-aligned
// block the source interval touches.  An odd origin lands mid-block, so the
// result can be one wider than size/2.
func halveSpan(origin, size int32) (int32, int32) {
	if size <= 0 {
		return origin >> 1, 0
	}
	o := origin >> 1
	return o, (origin+size-1)>>1 - o + 1
}

func spanIntersect(a, b span) span {
	if a.empty() || b.empty() {
		return span{}
	}
	if a.infinite() {
		return b
	}
	if b.infinite() {
		return a
	}
	lo, hi := a.origin, a.max()
	if b.origin > lo {
		lo = b.origin
	}
	if b.max() < hi {
		hi = b.max()
	}
	if hi < lo {
		return span{}
	}
	return span{lo, hi - lo + 1}
}

func extentString(size int32) string {
	if size == InfiniteExtent {
		return "inf"
	}
	return fmt.Sprintf("%d", size)
}

// Bounds2d is an axis-aligned integer rectangle.
type Bounds2d struct {
	MinPt Point2d
	Size  Point2d
}

func NewBounds2d(x, y, w, h int32) Bounds2d {
	return Bounds2d{Point2d{x, y}, Point2d{w, h}}
}

func (b Bounds2d) IsEmpty() bool {
	return b.Size[0] <= 0 || b.Size[1] <= 0
}

func (b Bounds2d) NumCells() int64 {
	if b.IsEmpty() {
		return 0
	}
	return int64(b.Size[0]) * int64(b.Size[1])
}

func (b Bounds2d) Contains(x, y int32) bool {
	return x >= b.MinPt[0] && x < b.MinPt[0]+b.Size[0] &&
		y >= b.MinPt[1] && y < b.MinPt[1]+b.Size[1]
}

// Union returns the smallest rectangle covering both bounds.
func (b Bounds2d) Union(b2 Bounds2d) Bounds2d {
	if b.IsEmpty() {
		return b2
	}
	if b2.IsEmpty() {
		return b
	}
	sx := spanUnion(span{b.MinPt[0], b.Size[0]}, span{b2.MinPt[0], b2.Size[0]})
	sy := spanUnion(span{b.MinPt[1], b.Size[1]}, span{b2.MinPt[1], b2.Size[1]})
	return NewBounds2d(sx.origin, sy.origin, sx.size, sy.size)
}

// Intersect returns the overlapping rectangle, which may be empty.
func (b Bounds2d) Intersect(b2 Bounds2d) Bounds2d {
	sx := spanIntersect(span{b.MinPt[0], b.Size[0]}, span{b2.MinPt[0], b2.Size[0]})
	sy := spanIntersect(span{b.MinPt[1], b.Size[1]}, span{b2.MinPt[1], b2.Size[1]})
	if sx.empty() || sy.empty() {
		return Bounds2d{}
	}
	return NewBounds2d(sx.origin, sy.origin, sx.size, sy.size)
}

func (b Bounds2d) String() string {
	return fmt.Sprintf("(%d,%d,%dx%d)", b.MinPt[0], b.MinPt[1], b.Size[0], b.Size[1])
}

// Bounds3d is an axis-aligned integer box.  Size[2] may be InfiniteExtent.
type Bounds3d struct {
	MinPt Point3d
	Size  Point3d
}

func NewBounds3d(x, y, z, w, h, d int32) Bounds3d {
	return Bounds3d{Point3d{x, y, z}, Point3d{w, h, d}}
}

func (b Bounds3d) IsEmpty() bool {
	return b.Size[0] <= 0 || b.Size[1] <= 0 || b.Size[2] <= 0
}

// InfiniteZ returns true if the mask covers every Z index.
func (b Bounds3d) InfiniteZ() bool {
	return b.Size[2] == InfiniteExtent
}

func (b Bounds3d) Rect() Bounds2d {
	return NewBounds2d(b.MinPt[0], b.MinPt[1], b.Size[0], b.Size[1])
}

func (b *Bounds3d) SetRect(r Bounds2d) {
	b.MinPt[0], b.MinPt[1] = r.MinPt[0], r.MinPt[1]
	b.Size[0], b.Size[1] = r.Size[0], r.Size[1]
}

func (b Bounds3d) zSpan() span {
	return span{b.MinPt[2], b.Size[2]}
}

// Union returns the smallest box covering both bounds.  A Z extent touched
// by an infinite operand stays infinite.
func (b Bounds3d) Union(b2 Bounds3d) Bounds3d {
	if b.IsEmpty() {
		return b2
	}
	if b2.IsEmpty() {
		return b
	}
	var out Bounds3d
	out.SetRect(b.Rect().Union(b2.Rect()))
	zs := spanUnion(b.zSpan(), b2.zSpan())
	out.MinPt[2], out.Size[2] = zs.origin, zs.size
	return out
}

// Intersect returns the overlapping box, which may be empty.
func (b Bounds3d) Intersect(b2 Bounds3d) Bounds3d {
	rect := b.Rect().Intersect(b2.Rect())
	zs := spanIntersect(b.zSpan(), b2.zSpan())
	if rect.IsEmpty() || zs.empty() {
		return Bounds3d{}
	}
	var out Bounds3d
	out.SetRect(rect)
	out.MinPt[2], out.Size[2] = zs.origin, zs.size
	return out
}

func (b Bounds3d) Contains(x, y, z int32) bool {
	return b.Rect().Contains(x, y) && b.zSpan().contains(z)
}

func (b Bounds3d) String() string {
	return fmt.Sprintf("(%d,%d,%d,%dx%dx%s)", b.MinPt[0], b.MinPt[1], b.MinPt[2],
		b.Size[0], b.Size[1], extentString(b.Size[2]))
}

// Bounds4d adds a T axis.  Size[3] may be InfiniteExtent.
type Bounds4d struct {
	MinPt Point4d
	Size  Point4d
}

func NewBounds4d(x, y, z, t, w, h, d, nt int32) Bounds4d {
	return Bounds4d{Point4d{x, y, z, t}, Point4d{w, h, d, nt}}
}

func (b Bounds4d) IsEmpty() bool {
	return b.Size[0] <= 0 || b.Size[1] <= 0 || b.Size[2] <= 0 || b.Size[3] <= 0
}

// InfiniteT returns true if the mask covers every T index.
func (b Bounds4d) InfiniteT() bool {
	return b.Size[3] == InfiniteExtent
}

func (b Bounds4d) Bounds3d() Bounds3d {
	return NewBounds3d(b.MinPt[0], b.MinPt[1], b.MinPt[2], b.Size[0], b.Size[1], b.Size[2])
}

func (b *Bounds4d) SetBounds3d(b3 Bounds3d) {
	copy(b.MinPt[:3], b3.MinPt[:])
	copy(b.Size[:3], b3.Size[:])
}

func (b Bounds4d) tSpan() span {
	return span{b.MinPt[3], b.Size[3]}
}

// Union returns the smallest box covering both bounds.
func (b Bounds4d) Union(b2 Bounds4d) Bounds4d {
	if b.IsEmpty() {
		return b2
	}
	if b2.IsEmpty() {
		return b
	}
	var out Bounds4d
	out.SetBounds3d(b.Bounds3d().Union(b2.Bounds3d()))
	ts := spanUnion(b.tSpan(), b2.tSpan())
	out.MinPt[3], out.Size[3] = ts.origin, ts.size
	return out
}

// Intersect returns the overlapping box, which may be empty.
func (b Bounds4d) Intersect(b2 Bounds4d) Bounds4d {
	b3 := b.Bounds3d().Intersect(b2.Bounds3d())
	ts := spanIntersect(b.tSpan(), b2.tSpan())
	if b3.IsEmpty() || ts.empty() {
		return Bounds4d{}
	}
	var out Bounds4d
	out.SetBounds3d(b3)
	out.MinPt[3], out.Size[3] = ts.origin, ts.size
	return out
}

func (b Bounds4d) Contains(x, y, z, t int32) bool {
	return b.Bounds3d().Contains(x, y, z) && b.tSpan().contains(t)
}

func (b Bounds4d) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d,%dx%dx%sx%s)", b.MinPt[0], b.MinPt[1], b.MinPt[2],
		b.MinPt[3], b.Size[0], b.Size[1], extentString(b.Size[2]), extentString(b.Size[3]))
}

// Bounds5d adds a C axis.  Size[4] may be InfiniteExtent.
type Bounds5d struct {
	MinPt Point5d
	Size  Point5d
}

func NewBounds5d(x, y, z, t, c, w, h, d, nt, nc int32) Bounds5d {
	return Bounds5d{Point5d{x, y, z, t, c}, Point5d{w, h, d, nt, nc}}
}

func (b Bounds5d) IsEmpty() bool {
	for dim := 0; dim < 5; dim++ {
		if b.Size[dim] <= 0 {
			return true
		}
	}
	return false
}

// InfiniteC returns true if the mask covers every channel.
func (b Bounds5d) InfiniteC() bool {
	return b.Size[4] == InfiniteExtent
}

func (b Bounds5d) Bounds4d() Bounds4d {
	return Bounds4d{
		Point4d{b.MinPt[0], b.MinPt[1], b.MinPt[2], b.MinPt[3]},
		Point4d{b.Size[0], b.Size[1], b.Size[2], b.Size[3]},
	}
}

func (b *Bounds5d) SetBounds4d(b4 Bounds4d) {
	copy(b.MinPt[:4], b4.MinPt[:])
	copy(b.Size[:4], b4.Size[:])
}

func (b Bounds5d) cSpan() span {
	return span{b.MinPt[4], b.Size[4]}
}

func (b Bounds5d) Contains(x, y, z, t, c int32) bool {
	return b.Bounds4d().Contains(x, y, z, t) && b.cSpan().contains(c)
}

func (b Bounds5d) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d,%d,%dx%dx%sx%sx%s)", b.MinPt[0], b.MinPt[1],
		b.MinPt[2], b.MinPt[3], b.MinPt[4], b.Size[0], b.Size[1],
		extentString(b.Size[2]), extentString(b.Size[3]), extentString(b.Size[4]))
}
