package mask

import (
	"fmt"
	"math"
)

// Point2d is a 2d integer point.
type Point2d [2]int32

func (p Point2d) String() string {
	return fmt.Sprintf("(%d,%d)", p[0], p[1])
}

// Point3d is a 3d integer point with X, Y, Z components.
type Point3d [3]int32

func (p Point3d) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p[0], p[1], p[2])
}

// SetMinimum sets each component of the receiver to the minimum of itself
// and the passed point's component.
func (p *Point3d) SetMinimum(p2 Point3d) {
	for dim := 0; dim < 3; dim++ {
		if p2[dim] < p[dim] {
			p[dim] = p2[dim]
		}
	}
}

// SetMaximum sets each component of the receiver to the maximum of itself
// and the passed point's component.
func (p *Point3d) SetMaximum(p2 Point3d) {
	for dim := 0; dim < 3; dim++ {
		if p2[dim] > p[dim] {
			p[dim] = p2[dim]
		}
	}
}

// Point4d is a 4d integer point with X, Y, Z, T components.
type Point4d [4]int32

func (p Point4d) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", p[0], p[1], p[2], p[3])
}

// Point5d is a 5d integer point with X, Y, Z, T, C components.
type Point5d [5]int32

func (p Point5d) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d,%d)", p[0], p[1], p[2], p[3], p[4])
}

// Point2dF and Point3dF are floating-point coordinates as supplied by
// callers working in scaled or physical space.  Constructors round them
// to the nearest voxel.
type Point2dF [2]float64

type Point3dF [3]float64

func roundCoord(v float64) int32 {
	return int32(math.Round(v))
}

// Round returns the nearest integer point.
func (p Point2dF) Round() Point2d {
	return Point2d{roundCoord(p[0]), roundCoord(p[1])}
}

// Round returns the nearest integer point.
func (p Point3dF) Round() Point3d {
	return Point3d{roundCoord(p[0]), roundCoord(p[1]), roundCoord(p[2])}
}
