package mask

import (
	"context"
	"sort"
)

// ndStorage composes child masks along one integer axis.  A finite mask
// keeps its children in dense, keyed by axis index.  A mask that is
// unbounded along the axis keeps one shared child in uniform; dense entries
// then act as per-index overrides, which only arise from the permissive
// subtraction direction and from explicit materialization.
type ndStorage[M Operand[M]] struct {
	uniform M
	dense   map[int32]M
}

func (s *ndStorage[M]) at(idx int32) M {
	if m, found := s.dense[idx]; found {
		return m
	}
	return s.uniform
}

func (s *ndStorage[M]) set(idx int32, m M) {
	if s.dense == nil {
		s.dense = make(map[int32]M)
	}
	s.dense[idx] = m
}

func (s *ndStorage[M]) remove(idx int32) {
	delete(s.dense, idx)
}

// indexes returns the explicitly stored axis indices in ascending order.
func (s *ndStorage[M]) indexes() []int32 {
	idxs := make([]int32, 0, len(s.dense))
	for idx := range s.dense {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
	return idxs
}

func (s *ndStorage[M]) isEmpty() bool {
	var zero M
	if s.uniform != zero && !s.uniform.IsEmpty() {
		return false
	}
	for _, m := range s.dense {
		if m != zero && !m.IsEmpty() {
			return false
		}
	}
	return true
}

func (s *ndStorage[M]) clone() ndStorage[M] {
	var zero M
	var c ndStorage[M]
	if s.uniform != zero {
		c.uniform = s.uniform.Clone()
	}
	if len(s.dense) > 0 {
		c.dense = make(map[int32]M, len(s.dense))
		for idx, m := range s.dense {
			if m != zero {
				c.dense[idx] = m.Clone()
			}
		}
	}
	return c
}

// childAt returns the child a storage holds for an axis index, or the zero
// value when the index falls outside the operand's extent.
func childAt[M Operand[M]](s *ndStorage[M], sp span, idx int32) M {
	var zero M
	if !sp.contains(idx) {
		return zero
	}
	return s.at(idx)
}

// mergedIndexes returns the ascending union of both storages' explicit
// axis indices.
func mergedIndexes[M Operand[M]](a, b *ndStorage[M]) []int32 {
	seen := make(map[int32]struct{}, len(a.dense)+len(b.dense))
	for idx := range a.dense {
		seen[idx] = struct{}{}
	}
	for idx := range b.dense {
		seen[idx] = struct{}{}
	}
	idxs := make([]int32, 0, len(seen))
	for idx := range seen {
		idxs = append(idxs, idx)
	}
	sort.Slice(idxs, func(i, j int) bool { return idxs[i] < idxs[j] })
	return idxs
}

// combineStorage applies a boolean operator child by child along the
// composed axis.  The out span must already have passed the infinite-axis
// compatibility check via composedSpan.
func combineStorage[M Operand[M]](ctx context.Context, op Op, a, b *ndStorage[M], aspan, bspan, out span) (ndStorage[M], error) {
	var result ndStorage[M]
	var zero M
	if out.empty() {
		return result, nil
	}
	if out.infinite() {
		var bu M
		if bspan.infinite() {
			bu = b.uniform
		}
		u, err := Combine(ctx, op, a.uniform, bu)
		if err != nil {
			return ndStorage[M]{}, err
		}
		result.uniform = u
		// Explicitly stored children override the shared one, so the
		// result must carry an override wherever either operand does,
		// even when the combined child comes out empty.
		for _, idx := range mergedIndexes(a, b) {
			if err := CheckInterrupt(ctx); err != nil {
				return ndStorage[M]{}, err
			}
			r, err := Combine(ctx, op, childAt(a, aspan, idx), childAt(b, bspan, idx))
			if err != nil {
				return ndStorage[M]{}, err
			}
			result.set(idx, r)
		}
		return result, nil
	}
	for idx := out.origin; ; idx++ {
		if err := CheckInterrupt(ctx); err != nil {
			return ndStorage[M]{}, err
		}
		r, err := Combine(ctx, op, childAt(a, aspan, idx), childAt(b, bspan, idx))
		if err != nil {
			return ndStorage[M]{}, err
		}
		if r != zero && !r.IsEmpty() {
			result.set(idx, r)
		}
		if idx == out.max() {
			break
		}
	}
	return result, nil
}

// mapStorage applies f to every stored child, keeping axis indices as-is.
func mapStorage[M Operand[M]](ctx context.Context, s *ndStorage[M], f func(M) (M, error)) (ndStorage[M], error) {
	var result ndStorage[M]
	var zero M
	if s.uniform != zero {
		u, err := f(s.uniform)
		if err != nil {
			return result, err
		}
		result.uniform = u
	}
	for idx, m := range s.dense {
		if err := CheckInterrupt(ctx); err != nil {
			return ndStorage[M]{}, err
		}
		if m == zero {
			result.set(idx, zero)
			continue
		}
		r, err := f(m)
		if err != nil {
			return ndStorage[M]{}, err
		}
		result.set(idx, r)
	}
	return result, nil
}

// dropEmpty removes dense children that hold no points.
func (s *ndStorage[M]) dropEmpty() {
	var zero M
	for idx, m := range s.dense {
		if m == zero || m.IsEmpty() {
			delete(s.dense, idx)
		}
	}
}
