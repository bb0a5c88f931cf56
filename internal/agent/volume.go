package agent

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/xkilldash9x/wayfarer/internal/collision"
)

// DefaultSize is used when the visual representation yields no usable extent.
var DefaultSize = mgl64.Vec3{1, 1, 1}

// BoundingSize returns the agent's extent, deriving it from Visual on first use.
// defaulted is true when DefaultSize was substituted. The result is memoized
// either way and never recomputed.
func (a *Agent) BoundingSize() (size mgl64.Vec3, defaulted bool) {
	if !a.sizeKnown {
		a.size, a.sizeDefaulted = measure(a.Visual)
		a.sizeKnown = true
	}
	return a.size, a.sizeDefaulted
}

// SetBoundingSize fixes the extent before first use, e.g. from a scenario.
// It has no effect once the size is known.
func (a *Agent) SetBoundingSize(size mgl64.Vec3) {
	if a.sizeKnown {
		return
	}
	box := collision.FromCenterSize(mgl64.Vec3{}, size)
	if !finite(size) || box.IsDegenerate() {
		a.size, a.sizeDefaulted = DefaultSize, true
	} else {
		a.size = size
	}
	a.sizeKnown = true
}

func measure(visual collision.HasWorldVolume) (mgl64.Vec3, bool) {
	if visual == nil {
		return DefaultSize, true
	}
	box, ok := collision.WorldVolume(visual)
	if !ok || box.IsDegenerate() || !finite(box.Size()) {
		return DefaultSize, true
	}
	return box.Size(), false
}

// BoundingBoxFor returns the agent's AABB if it stood at pos.
func BoundingBoxFor(a *Agent, pos mgl64.Vec3) collision.AABB {
	size, _ := a.BoundingSize()
	return collision.FromCenterSize(pos, size)
}

// Obstacle exposes the agent to other agents' collision tests. It is only
// collidable while the agent is Active.
func (a *Agent) Obstacle() collision.HasWorldVolume {
	return agentVolume{a: a}
}

type agentVolume struct {
	a *Agent
}

func (v agentVolume) ID() string       { return v.a.ID.String() }
func (v agentVolume) Collidable() bool { return v.a.IsActive() }

func (v agentVolume) EachVolume(visit func(collision.AABB) bool) bool {
	return visit(BoundingBoxFor(v.a, v.a.Position))
}

func finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Finite reports whether every component of v is a real number.
func Finite(v mgl64.Vec3) bool { return finite(v) }
