package agent

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/paulmach/orb"
)

// WorldBounds is the horizontal rectangle an agent may never leave. The orb
// point's first coordinate is world x and the second is world z.
type WorldBounds struct {
	bound orb.Bound
	set   bool
}

// NewWorldBounds returns bounds covering [minX,maxX] x [minZ,maxZ]. Swapped
// limits are reordered.
func NewWorldBounds(minX, maxX, minZ, maxZ float64) WorldBounds {
	b := orb.Bound{Min: orb.Point{minX, minZ}, Max: orb.Point{minX, minZ}}
	return WorldBounds{bound: b.Extend(orb.Point{maxX, maxZ}), set: true}
}

// SquareBounds returns bounds of half width h centered on the origin.
func SquareBounds(h float64) WorldBounds {
	return NewWorldBounds(-h, h, -h, h)
}

// IsSet reports whether the agent declared bounds at all.
func (w WorldBounds) IsSet() bool { return w.set }

func (w WorldBounds) MinX() float64 { return w.bound.Min[0] }
func (w WorldBounds) MaxX() float64 { return w.bound.Max[0] }
func (w WorldBounds) MinZ() float64 { return w.bound.Min[1] }
func (w WorldBounds) MaxZ() float64 { return w.bound.Max[1] }

// Bound exposes the underlying orb rectangle.
func (w WorldBounds) Bound() orb.Bound { return w.bound }

// Contains reports whether p lies inside the bounds on x and z, edges included.
// Undeclared bounds contain every finite point; non-finite points are never inside.
func (w WorldBounds) Contains(p mgl64.Vec3) bool {
	if !finite(p) {
		return false
	}
	if !w.set {
		return true
	}
	return w.bound.Contains(orb.Point{p[0], p[2]})
}

// Clamp clamps x and z independently. y is untouched.
func (w WorldBounds) Clamp(p mgl64.Vec3) mgl64.Vec3 {
	if !w.set {
		return p
	}
	return mgl64.Vec3{
		math.Max(w.MinX(), math.Min(w.MaxX(), p[0])),
		p[1],
		math.Max(w.MinZ(), math.Min(w.MaxZ(), p[2])),
	}
}

// CellOf returns the grid cell containing p for the given cell size, counted
// from the bounds' minimum corner.
func (w WorldBounds) CellOf(p mgl64.Vec3, cellSize float64) GridCell {
	return GridCell{
		X: int(math.Floor((p[0] - w.MinX()) / cellSize)),
		Z: int(math.Floor((p[2] - w.MinZ()) / cellSize)),
	}
}

// GridDims is the number of cells along x and z.
func (w WorldBounds) GridDims(cellSize float64) (cols, rows int) {
	return int(math.Ceil((w.MaxX() - w.MinX()) / cellSize)),
		int(math.Ceil((w.MaxZ() - w.MinZ()) / cellSize))
}

// InGrid reports whether c is a cell of the grid.
func (w WorldBounds) InGrid(c GridCell, cellSize float64) bool {
	cols, rows := w.GridDims(cellSize)
	return c.X >= 0 && c.Z >= 0 && c.X < cols && c.Z < rows
}

// CellCenter returns the clamped center of c at height y.
func (w WorldBounds) CellCenter(c GridCell, cellSize, y float64) mgl64.Vec3 {
	return w.Clamp(mgl64.Vec3{
		w.MinX() + float64(c.X)*cellSize + cellSize/2,
		y,
		w.MinZ() + float64(c.Z)*cellSize + cellSize/2,
	})
}
