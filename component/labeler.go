package component

import (
	"context"
	"fmt"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"

	"github.com/bioimagetools/roimask/mask"
)

// DefaultMemoryBudget caps the bytes used for in-memory label planes before
// the labeler spills planes to a disk-backed store.
const DefaultMemoryBudget = 1 << 30 // 1 GiB

// Config tunes the labeler's resource handling.
type Config struct {
	// MemoryBudget is the label-plane budget in bytes; 0 selects
	// DefaultMemoryBudget.
	MemoryBudget uint64 `toml:"memory_budget"`

	// SpillDir is the scratch directory for the disk-backed plane store;
	// empty selects the system temp directory.
	SpillDir string `toml:"spill_dir"`
}

func (c *Config) budget() uint64 {
	if c == nil || c.MemoryBudget == 0 {
		return DefaultMemoryBudget
	}
	return c.MemoryBudget
}

func (c *Config) spillDir() string {
	if c == nil {
		return ""
	}
	return c.SpillDir
}

// labelArena is a disjoint-set forest over provisional labels.  Labels are
// arena indices rather than node pointers; label 0 is the background.
type labelArena struct {
	target []uint32
}

func newLabelArena() *labelArena {
	return &labelArena{target: []uint32{0}}
}

// mint allocates the next provisional label, its own root.
func (a *labelArena) mint() uint32 {
	l := uint32(len(a.target))
	a.target = append(a.target, l)
	return l
}

// resolve follows target pointers to the root, compacting the path.
func (a *labelArena) resolve(l uint32) uint32 {
	root := l
	for a.target[root] != root {
		root = a.target[root]
	}
	for a.target[l] != root {
		a.target[l], l = root, a.target[l]
	}
	return root
}

// fuse links the higher of the two roots to the lower.
func (a *labelArena) fuse(x, y uint32) {
	rx, ry := a.resolve(x), a.resolve(y)
	switch {
	case rx < ry:
		a.target[ry] = rx
	case ry < rx:
		a.target[rx] = ry
	}
}

func (a *labelArena) numLabels() uint32 {
	return uint32(len(a.target)) - 1
}

// Extract labels the 26-connected components of a 3d mask and returns one
// mask per component.  The input mask is never modified.  A canceled
// context aborts the scan with mask.ErrInterrupted and no partial result.
func Extract(ctx context.Context, m *mask.Mask3d, cfg *Config) ([]*mask.Mask3d, error) {
	if m == nil || m.IsEmpty() {
		return nil, nil
	}
	if m.Bounds.InfiniteZ() {
		return nil, fmt.Errorf("%w: component extraction on infinite Z extent", mask.ErrIncompatible)
	}
	tlog := mask.NewTimeLog()

	zIdxs := m.ZIndexes()
	if len(zIdxs) == 0 {
		return nil, nil
	}

	// Slices built independently of the enclosing mask may carry rects
	// wider than its bounds, so scan the union of all slice rects.
	rect := m.Bounds.Rect()
	for _, z := range zIdxs {
		if s := m.SliceAt(z); s != nil {
			rect = rect.Union(s.Bounds)
		}
	}
	w, h := int64(rect.Size[0]), int64(rect.Size[1])
	if w <= 0 || h <= 0 {
		return nil, nil
	}

	planeBytes := uint64(w) * uint64(h) * 4
	needed := planeBytes * uint64(len(zIdxs))
	budget := cfg.budget()
	mask.Debugf("labeling %s (~%s resident)\n", m, humanize.IBytes(uint64(size.Of(m))))

	var store planeStore
	if needed > budget {
		mask.Infof("label planes need %s for %d slices, over the %s budget; spilling to disk\n",
			humanize.IBytes(needed), len(zIdxs), humanize.IBytes(budget))
		ds, err := newDiskStore(cfg.spillDir())
		if err != nil {
			return nil, fmt.Errorf("%w: no memory for label planes and no disk fallback: %v",
				mask.ErrOutOfMemory, err)
		}
		store = ds
	} else {
		store = make(memStore)
	}
	defer store.close()

	arena := newLabelArena()

	// Single pass in Z-major raster order.  Each foreground voxel looks
	// only at its already-visited backward neighborhood: 4 cells of the
	// current slice plus 9 cells of the previous slice.
	var prev []uint32
	prevZ := zIdxs[0] - 2
	var neighbors [13]uint32
	for _, z := range zIdxs {
		slice := m.SliceAt(z)
		if z != prevZ+1 {
			prev = nil
		}
		cur := make([]uint32, w*h)
		for y := int64(0); y < h; y++ {
			if err := mask.CheckInterrupt(ctx); err != nil {
				return nil, err
			}
			gy := int32(y) + rect.MinPt[1]
			for x := int64(0); x < w; x++ {
				if !slice.Get(int32(x)+rect.MinPt[0], gy) {
					continue
				}
				n := 0
				add := func(plane []uint32, px, py int64) {
					if plane == nil || px < 0 || px >= w || py < 0 || py >= h {
						return
					}
					if l := plane[py*w+px]; l != 0 {
						neighbors[n] = l
						n++
					}
				}
				add(cur, x-1, y)
				add(cur, x-1, y-1)
				add(cur, x, y-1)
				add(cur, x+1, y-1)
				for dy := int64(-1); dy <= 1; dy++ {
					for dx := int64(-1); dx <= 1; dx++ {
						add(prev, x+dx, y+dy)
					}
				}
				if n == 0 {
					cur[y*w+x] = arena.mint()
					continue
				}
				min := neighbors[0]
				for i := 1; i < n; i++ {
					if neighbors[i] < min {
						min = neighbors[i]
					}
				}
				cur[y*w+x] = min
				for i := 0; i < n; i++ {
					if neighbors[i] != min {
						arena.fuse(min, neighbors[i])
					}
				}
			}
		}
		if err := store.put(z, cur); err != nil {
			return nil, err
		}
		prev, prevZ = cur, z
	}

	// Compact roots into final component numbers.
	final := make([]uint32, len(arena.target))
	var numComponents uint32
	for l := uint32(1); l <= arena.numLabels(); l++ {
		if arena.target[l] == l {
			numComponents++
			final[l] = numComponents
		}
	}
	if numComponents == 0 {
		return nil, nil
	}

	// Second pass: resolve every provisional label to its final number and
	// accumulate voxels into one builder per component.
	builders := make([]*mask.Mask3dBuilder, numComponents)
	for i := range builders {
		builders[i] = &mask.Mask3dBuilder{}
	}
	for _, z := range zIdxs {
		if err := mask.CheckInterrupt(ctx); err != nil {
			return nil, err
		}
		plane, err := store.get(z)
		if err != nil {
			return nil, err
		}
		for y := int64(0); y < h; y++ {
			for x := int64(0); x < w; x++ {
				l := plane[y*w+x]
				if l == 0 {
					continue
				}
				fid := final[arena.resolve(l)]
				builders[fid-1].Add(int32(x)+rect.MinPt[0], int32(y)+rect.MinPt[1], z)
			}
		}
	}

	components := make([]*mask.Mask3d, numComponents)
	for i, b := range builders {
		components[i] = b.Mask()
	}
	tlog.Infof("extracted %d components (%d provisional labels) from %s",
		numComponents, arena.numLabels(), m)
	return components, nil
}
