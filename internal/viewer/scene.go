package viewer

import (
	"math"

	"github.com/xkilldash9x/wayfarer/api/schemas"
	"github.com/xkilldash9x/wayfarer/internal/agent"
	"github.com/xkilldash9x/wayfarer/internal/collision"
	"github.com/xkilldash9x/wayfarer/internal/simulation"
)

// Scene is everything drawn for one frame, independent of the output device.
type Scene struct {
	Bounds  agent.WorldBounds
	Statics []collision.HasWorldVolume
	Frame   schemas.FrameRecord
	// Paused is set while the viewer holds every agent still.
	Paused bool
}

// SceneOf captures the current state of w.
func SceneOf(w *simulation.World) Scene {
	return Scene{
		Bounds:  w.Bounds(),
		Statics: w.Statics(),
		Frame:   w.Snapshot(),
	}
}

// projection maps the ground plane onto a cols x rows grid. +X runs right
// and +Z runs down.
type projection struct {
	minX, maxX float64
	minZ, maxZ float64
	sx, sz     float64
	cols, rows int
}

func newProjection(b agent.WorldBounds, cols, rows int) projection {
	p := projection{minX: b.MinX(), maxX: b.MaxX(), minZ: b.MinZ(), maxZ: b.MaxZ(), cols: cols, rows: rows}
	if w := p.maxX - p.minX; w > 0 {
		p.sx = float64(cols) / w
	}
	if d := p.maxZ - p.minZ; d > 0 {
		p.sz = float64(rows) / d
	}
	return p
}

// cell returns the grid cell holding (x, z). ok is false outside the world.
func (p projection) cell(x, z float64) (col, row int, ok bool) {
	if p.cols <= 0 || p.rows <= 0 {
		return 0, 0, false
	}
	if !(x >= p.minX && x <= p.maxX && z >= p.minZ && z <= p.maxZ) {
		return 0, 0, false
	}
	// The far edge belongs to the last cell.
	col = min(int((x-p.minX)*p.sx), p.cols-1)
	row = min(int((z-p.minZ)*p.sz), p.rows-1)
	return col, row, true
}

// span returns the cell range covered by box, clamped to the grid.
func (p projection) span(box collision.AABB) (c0, r0, c1, r1 int, ok bool) {
	if p.cols <= 0 || p.rows <= 0 || box.IsEmpty() {
		return 0, 0, 0, 0, false
	}
	if box.Max.X() < p.minX || box.Min.X() > p.maxX || box.Max.Z() < p.minZ || box.Min.Z() > p.maxZ {
		return 0, 0, 0, 0, false
	}
	c0 = p.clampCol(box.Min.X())
	c1 = p.clampCol(box.Max.X())
	r0 = p.clampRow(box.Min.Z())
	r1 = p.clampRow(box.Max.Z())
	return c0, r0, c1, r1, true
}

func (p projection) clampCol(x float64) int {
	return max(0, min(int(math.Floor((x-p.minX)*p.sx)), p.cols-1))
}

func (p projection) clampRow(z float64) int {
	return max(0, min(int(math.Floor((z-p.minZ)*p.sz)), p.rows-1))
}
