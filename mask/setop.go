package mask

import (
	"context"
	"fmt"
)

// Op selects one of the boolean set operators shared by every mask
// dimensionality.
type Op uint8

const (
	OpUnion Op = iota
	OpIntersect
	OpExclusiveUnion
	OpSubtract
)

func (op Op) String() string {
	switch op {
	case OpUnion:
		return "union"
	case OpIntersect:
		return "intersection"
	case OpExclusiveUnion:
		return "exclusive union"
	case OpSubtract:
		return "subtraction"
	default:
		return fmt.Sprintf("unknown op %d", uint8(op))
	}
}

// Operand is the constraint satisfied by every mask dimensionality that can
// participate in the recursive set-algebra engine.  A nil operand is treated
// as an empty mask per the operator's identity element.
type Operand[M any] interface {
	comparable
	Clone() M
	IsEmpty() bool
	combine(ctx context.Context, op Op, other M) (M, error)
}

// Combine applies the given boolean operator to two masks of the same
// dimensionality, returning a new mask.  Nil operands degrade per the
// operator's identity element: union and exclusive union pass the other
// operand through, intersection yields nil, and subtraction yields nil for
// a nil minuend or passes the minuend through for a nil subtrahend.
func Combine[M Operand[M]](ctx context.Context, op Op, a, b M) (M, error) {
	var zero M
	if a == zero || a.IsEmpty() {
		switch op {
		case OpUnion, OpExclusiveUnion:
			if b == zero {
				return zero, nil
			}
			return b.Clone(), nil
		default:
			return zero, nil
		}
	}
	if b == zero || b.IsEmpty() {
		if op == OpIntersect {
			return zero, nil
		}
		return a.Clone(), nil
	}
	return a.combine(ctx, op, b)
}

// Union returns the union of a and b as a new mask.
func Union[M Operand[M]](ctx context.Context, a, b M) (M, error) {
	return Combine(ctx, OpUnion, a, b)
}

// Intersect returns the intersection of a and b as a new mask.
func Intersect[M Operand[M]](ctx context.Context, a, b M) (M, error) {
	return Combine(ctx, OpIntersect, a, b)
}

// ExclusiveUnion returns the symmetric difference of a and b as a new mask.
func ExclusiveUnion[M Operand[M]](ctx context.Context, a, b M) (M, error) {
	return Combine(ctx, OpExclusiveUnion, a, b)
}

// Subtract returns a minus b as a new mask.
func Subtract[M Operand[M]](ctx context.Context, a, b M) (M, error) {
	return Combine(ctx, OpSubtract, a, b)
}

// Merge reduces a list of masks under one boolean operator.  A single-element
// list short-circuits to a copy of that element.
func Merge[M Operand[M]](ctx context.Context, masks []M, op Op) (M, error) {
	var zero M
	if len(masks) == 0 {
		return zero, nil
	}
	if len(masks) == 1 {
		if masks[0] == zero {
			return zero, nil
		}
		return masks[0].Clone(), nil
	}
	result := masks[0]
	var err error
	for _, m := range masks[1:] {
		if err = CheckInterrupt(ctx); err != nil {
			return zero, err
		}
		if result, err = Combine(ctx, op, result, m); err != nil {
			return zero, err
		}
	}
	return result, nil
}

// composedSpan computes the composed-axis extent of an operation's result
// and enforces the infinite-axis compatibility rule: union, intersection
// and exclusive union require both operands to agree on finiteness, while
// subtraction follows the minuend's extent.
func composedSpan(op Op, a, b span) (span, error) {
	switch op {
	case OpUnion, OpExclusiveUnion:
		if a.infinite() != b.infinite() {
			return span{}, fmt.Errorf("%w: cannot take %s of finite and infinite extents", ErrIncompatible, op)
		}
		if a.infinite() {
			return infiniteSpan, nil
		}
		return spanUnion(a, b), nil
	case OpIntersect:
		if a.infinite() != b.infinite() {
			return span{}, fmt.Errorf("%w: cannot take %s of finite and infinite extents", ErrIncompatible, op)
		}
		if a.infinite() {
			return infiniteSpan, nil
		}
		return spanIntersect(a, b), nil
	case OpSubtract:
		return a, nil
	default:
		return span{}, fmt.Errorf("%w: %s", ErrIncompatible, op)
	}
}
