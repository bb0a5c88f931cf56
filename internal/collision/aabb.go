package collision

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB is an axis-aligned box in world space.
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// NewAABB builds a box from two corners given in any order.
func NewAABB(a, b mgl64.Vec3) AABB {
	return AABB{Min: minVec(a, b), Max: maxVec(a, b)}
}

// FromCenterSize builds the box center ± size/2.
func FromCenterSize(center, size mgl64.Vec3) AABB {
	half := size.Mul(0.5)
	return AABB{Min: center.Sub(half), Max: center.Add(half)}
}

// EmptyAABB returns the identity for Union: inverted infinite bounds.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: mgl64.Vec3{inf, inf, inf},
		Max: mgl64.Vec3{-inf, -inf, -inf},
	}
}

// Size returns the extent on each axis.
func (b AABB) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the midpoint of the box.
func (b AABB) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// IsEmpty reports whether the box is inverted on any axis or carries NaN.
func (b AABB) IsEmpty() bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(b.Min[i]) || math.IsNaN(b.Max[i]) || b.Max[i] < b.Min[i] {
			return true
		}
	}
	return false
}

// IsDegenerate reports whether the box is empty or has zero extent on every axis.
// Degenerate boxes never collide.
func (b AABB) IsDegenerate() bool {
	if b.IsEmpty() {
		return true
	}
	s := b.Size()
	return s[0] == 0 && s[1] == 0 && s[2] == 0
}

// Overlaps is the inclusive interval test on all three axes: boxes that only
// share a face still overlap.
func (b AABB) Overlaps(o AABB) bool {
	return b.Min[0] <= o.Max[0] && b.Max[0] >= o.Min[0] &&
		b.Min[1] <= o.Max[1] && b.Max[1] >= o.Min[1] &&
		b.Min[2] <= o.Max[2] && b.Max[2] >= o.Min[2]
}

// Union returns the smallest box containing both. Empty operands are ignored.
func (b AABB) Union(o AABB) AABB {
	if o.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return o
	}
	return AABB{Min: minVec(b.Min, o.Min), Max: maxVec(b.Max, o.Max)}
}

// Translate shifts the box by d.
func (b AABB) Translate(d mgl64.Vec3) AABB {
	return AABB{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

func minVec(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])}
}

func maxVec(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])}
}
