/*
Package mask implements N-dimensional boolean region masks, the canonical
geometric representation behind arbitrarily-shaped regions of interest.

A region is a hierarchy of per-axis bitmaps: Mask2d is a bounded row-major
bitmap, Mask3d composes 2d slices along Z, Mask4d composes 3d masks along T,
and Mask5d composes 4d masks along C.  An axis may be unbounded
("infinite"), in which case one representative child is shared by every
index of that axis.

The four boolean set operators (union, intersection, exclusive union,
subtraction) are provided by a single generic engine that recurses
dimension by dimension down to the 2d primitive, applying identity-element
rules for nil operands and enforcing the infinite-axis compatibility rule.
Fast power-of-two scaling with configurable voting thresholds is available
at every level.

Masks are value-like: operations return new masks.  MoveBounds and
OptimizeBounds are the two documented in-place exceptions.  Long operations
take a context.Context and return ErrInterrupted when canceled, publishing
no partial results.
*/
package mask
