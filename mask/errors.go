package mask

import (
	"context"
	"errors"
)

var (
	// ErrIncompatible is returned when a set-algebra operation is requested
	// between operands that disagree on the finiteness of the composed axis,
	// or when an operation cannot be expressed for the given dimensionality.
	ErrIncompatible = errors.New("unsupported operation on incompatible masks")

	// ErrInterrupted is returned when a cooperative cancellation check
	// observes a canceled context mid-scan.  No partial result is published.
	ErrInterrupted = errors.New("operation interrupted")

	// ErrOutOfMemory is returned when an allocation cannot be satisfied and
	// no fallback storage is available.
	ErrOutOfMemory = errors.New("not enough memory")
)

// CheckInterrupt returns ErrInterrupted if the given context has been
// canceled.  Long scans call this between rows and slices.
func CheckInterrupt(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ErrInterrupted
	default:
		return nil
	}
}
