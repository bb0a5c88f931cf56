package behavior

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/xkilldash9x/wayfarer/internal/agent"
	"github.com/xkilldash9x/wayfarer/internal/collision"
	"go.uber.org/zap"
)

// FreeWander picks a uniformly random bearing and a distance in
// [0, WanderDistance] from the agent, clamped into its world bounds.
func (m *Machine) FreeWander(a *agent.Agent) mgl64.Vec3 {
	angle := m.rng.Float64() * 2 * math.Pi
	dist := m.rng.Float64() * a.Config().WanderDistance
	t := a.Position.Add(mgl64.Vec3{math.Cos(angle) * dist, 0, math.Sin(angle) * dist})
	return a.Bounds.Clamp(t)
}

// GridRedirect looks at the 3x3 block of cells around the agent's cell and
// returns the center of a cell holding the fewest known nearby obstacles,
// chosen uniformly among ties. Cells outside the grid are never chosen.
// Without grid or nearby information it falls back to FreeWander.
func (m *Machine) GridRedirect(a *agent.Agent) mgl64.Vec3 {
	nearby, known := a.Nearby()
	if !known || !a.Bounds.IsSet() || m.cellSize <= 0 {
		return m.FreeWander(a)
	}

	counts := make(map[agent.GridCell]int, len(nearby))
	for _, c := range nearby {
		counts[a.Bounds.CellOf(c, m.cellSize)]++
	}

	best := math.MaxInt
	var candidates []agent.GridCell
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			cell := agent.GridCell{X: a.Cell.X + dx, Z: a.Cell.Z + dz}
			if !a.Bounds.InGrid(cell, m.cellSize) {
				continue
			}
			n := counts[cell]
			if n < best {
				best = n
				candidates = candidates[:0]
			}
			if n == best {
				candidates = append(candidates, cell)
			}
		}
	}
	if len(candidates) == 0 {
		return m.FreeWander(a)
	}
	pick := candidates[m.rng.Intn(len(candidates))]
	return a.Bounds.CellCenter(pick, m.cellSize, a.Position[1])
}

// LocalScan samples ScanSampleCount evenly spaced bearings at IdleScanRadius
// and returns a random spot whose bounding box is clear. ok is false when the
// agent does not scan or every sample is blocked.
func (m *Machine) LocalScan(a *agent.Agent, snap *collision.Snapshot) (spot mgl64.Vec3, ok bool) {
	cfg := a.Config()
	if cfg.ScanSampleCount <= 0 || cfg.IdleScanRadius <= 0 {
		return mgl64.Vec3{}, false
	}
	self := a.ID.String()
	var free []mgl64.Vec3
	for i := 0; i < cfg.ScanSampleCount; i++ {
		angle := 2 * math.Pi * float64(i) / float64(cfg.ScanSampleCount)
		p := a.Position.Add(mgl64.Vec3{math.Cos(angle) * cfg.IdleScanRadius, 0, math.Sin(angle) * cfg.IdleScanRadius})
		p = a.Bounds.Clamp(p)
		if !snap.Intersects(agent.BoundingBoxFor(a, p), self) {
			free = append(free, p)
		}
	}
	if len(free) == 0 {
		return mgl64.Vec3{}, false
	}
	return free[m.rng.Intn(len(free))], true
}

// assignTarget sets the agent's target after rejecting non-finite points.
func (m *Machine) assignTarget(a *agent.Agent, t mgl64.Vec3) {
	if !agent.Finite(t) {
		m.logger.Warn("Rejected non-finite target.",
			zap.String("agent", a.Name),
			zap.Float64s("target", t[:]))
		t = m.FreeWander(a)
		if !agent.Finite(t) {
			t = a.Position
		}
	}
	a.Target = &t
}
