package behavior

import (
	"fmt"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/wayfarer/internal/agent"
	"github.com/xkilldash9x/wayfarer/internal/collision"
)

func TestFreeWander_StaysInBounds(t *testing.T) {
	m := NewTestMachine(4, 1)
	cfg := rangerConfig()
	cfg.WanderDistance = 100
	a := newActiveAgent(t, m, mgl64.Vec3{49, 2, 49}, withConfig(cfg))

	for i := 0; i < 500; i++ {
		p := m.FreeWander(a)
		require.True(t, a.Bounds.Contains(p), "target %v outside bounds", p)
		assert.Equal(t, 2.0, p.Y(), "wander keeps the agent's height")
	}
}

func TestFreeWander_RespectsDistance(t *testing.T) {
	m := NewTestMachine(6, 1)
	a := newActiveAgent(t, m, mgl64.Vec3{})
	for i := 0; i < 500; i++ {
		p := m.FreeWander(a)
		require.LessOrEqual(t, p.Sub(a.Position).Len(), a.Config().WanderDistance+1e-9)
	}
}

func TestGridRedirect(t *testing.T) {
	t.Run("without nearby cache falls back to free wander", func(t *testing.T) {
		m := NewTestMachine(1, 1)
		a, err := agent.New(agent.Spec{Name: "fresh", Config: rangerConfig(), Bounds: agent.SquareBounds(50)})
		require.NoError(t, err)
		_, known := a.Nearby()
		require.False(t, known)

		p := m.GridRedirect(a)
		assert.LessOrEqual(t, p.Sub(a.Position).Len(), a.Config().WanderDistance+1e-9)
	})

	t.Run("avoids the densest cells", func(t *testing.T) {
		m := NewTestMachine(8, 1)
		a := newActiveAgent(t, m, mgl64.Vec3{0.5, 0, 0.5})
		require.Equal(t, agent.GridCell{X: 50, Z: 50}, a.Cell)

		// Every neighbor but (49,49) holds at least one obstacle center.
		var nearby []mgl64.Vec3
		for dx := -1; dx <= 1; dx++ {
			for dz := -1; dz <= 1; dz++ {
				if dx == -1 && dz == -1 {
					continue
				}
				nearby = append(nearby, mgl64.Vec3{0.5 + float64(dx), 0, 0.5 + float64(dz)})
			}
		}
		a.SetNearby(nearby)

		for i := 0; i < 50; i++ {
			p := m.GridRedirect(a)
			assertVecInDelta(t, mgl64.Vec3{-0.5, 0, -0.5}, p, 1e-9)
		}
	})

	t.Run("ties are broken at random", func(t *testing.T) {
		m := NewTestMachine(10, 1)
		a := newActiveAgent(t, m, mgl64.Vec3{0.5, 0, 0.5})
		a.SetNearby(nil)

		seen := map[agent.GridCell]int{}
		for i := 0; i < 900; i++ {
			seen[a.Bounds.CellOf(m.GridRedirect(a), 1)]++
		}
		assert.Len(t, seen, 9, "all empty neighbors are candidates")
		for cell, n := range seen {
			assert.Greater(t, n, 50, "cell %v picked too rarely", cell)
		}
	})

	t.Run("never leaves the grid", func(t *testing.T) {
		m := NewTestMachine(12, 1)
		a := newActiveAgent(t, m, mgl64.Vec3{-49.9, 0, -49.9})
		require.Equal(t, agent.GridCell{X: 0, Z: 0}, a.Cell)
		a.SetNearby(nil)

		for i := 0; i < 200; i++ {
			cell := a.Bounds.CellOf(m.GridRedirect(a), 1)
			require.GreaterOrEqual(t, cell.X, 0)
			require.GreaterOrEqual(t, cell.Z, 0)
			require.LessOrEqual(t, cell.X, 1)
			require.LessOrEqual(t, cell.Z, 1)
		}
	})

	t.Run("zero cell size disables grid awareness", func(t *testing.T) {
		m := NewTestMachine(14, 0)
		a := newActiveAgent(t, m, mgl64.Vec3{})
		a.SetNearby([]mgl64.Vec3{{1, 0, 1}})
		p := m.GridRedirect(a)
		assert.True(t, a.Bounds.Contains(p))
	})
}

func TestLocalScan(t *testing.T) {
	t.Run("disabled without samples", func(t *testing.T) {
		m := NewTestMachine(1, 1)
		cfg := rangerConfig()
		cfg.ScanSampleCount = 0
		a := newActiveAgent(t, m, mgl64.Vec3{}, withConfig(cfg))
		_, ok := m.LocalScan(a, emptySnapshot())
		assert.False(t, ok)
	})

	t.Run("samples sit on the scan circle", func(t *testing.T) {
		m := NewTestMachine(2, 1)
		a := newActiveAgent(t, m, mgl64.Vec3{5, 0, 5})
		for i := 0; i < 50; i++ {
			p, ok := m.LocalScan(a, emptySnapshot())
			require.True(t, ok)
			assert.InDelta(t, a.Config().IdleScanRadius, p.Sub(a.Position).Len(), 1e-9)
		}
	})

	t.Run("ignores the agent's own volume", func(t *testing.T) {
		m := NewTestMachine(3, 1)
		a := newActiveAgent(t, m, mgl64.Vec3{})
		snap := collision.NewSnapshot([]collision.HasWorldVolume{a.Obstacle()})
		_, ok := m.LocalScan(a, snap)
		assert.True(t, ok)
	})
}

func TestAssignTarget_RejectsNonFinite(t *testing.T) {
	m := NewTestMachine(1, 1)
	a := newActiveAgent(t, m, mgl64.Vec3{})

	m.assignTarget(a, mgl64.Vec3{math.NaN(), 0, 0})
	require.NotNil(t, a.Target)
	assert.True(t, agent.Finite(*a.Target))

	m.assignTarget(a, mgl64.Vec3{math.Inf(1), 0, 0})
	assert.True(t, agent.Finite(*a.Target))
}

// -- Properties over long runs --

func scatteredRocks(n int) []collision.HasWorldVolume {
	rocks := make([]collision.HasWorldVolume, 0, n)
	for i := 0; i < n; i++ {
		x := float64((i*37)%80) - 40
		z := float64((i*53)%80) - 40
		rocks = append(rocks, collision.NewLeaf(fmt.Sprintf("rock-%d", i),
			collision.FromCenterSize(mgl64.Vec3{x, 0, z}, mgl64.Vec3{2, 2, 2})))
	}
	return rocks
}

func TestStep_LongRunInvariants(t *testing.T) {
	policies := []agent.Policy{agent.Wander, agent.ReactiveBounce}
	for _, policy := range policies {
		t.Run(policy.String(), func(t *testing.T) {
			m := NewTestMachine(99, 1)
			rocks := scatteredRocks(60)
			snap := collision.NewSnapshot(rocks)

			var agents []*agent.Agent
			for i := 0; i < 8; i++ {
				start := mgl64.Vec3{float64(i*10) - 35, 0, 45}
				agents = append(agents, newActiveAgent(t, m, start, withPolicy(policy)))
			}

			for step := 0; step < 3000; step++ {
				for _, a := range agents {
					before, state := a.Position, a.State
					require.NoError(t, m.Step(a, 1.0/30, snap))

					require.True(t, a.State.Valid(), "undefined state %v", a.State)
					require.True(t, a.Bounds.Contains(a.Position), "left bounds at %v", a.Position)
					if state == agent.Wandering && a.Position != before {
						box := agent.BoundingBoxFor(a, a.Position)
						require.False(t, collision.Intersects(box, rocks, a.ID.String()),
							"wander step %d moved %s into an obstacle at %v", step, a.Name, a.Position)
					}
				}
			}
		})
	}
}

func TestStep_PatrolStaysOnSegment(t *testing.T) {
	m := NewTestMachine(7, 1)
	start, end := mgl64.Vec3{-10, 0, 3}, mgl64.Vec3{10, 0, 3}
	a := newActiveAgent(t, m, mgl64.Vec3{}, withPolicy(agent.Patrol), withRoute(start, end))

	for i := 0; i < 2000; i++ {
		require.NoError(t, m.Step(a, 0.05, emptySnapshot()))
		require.Equal(t, agent.Patrolling, a.State)
		require.GreaterOrEqual(t, a.Patrol.Progress, 0.0)
		require.LessOrEqual(t, a.Patrol.Progress, 1.0)
		assert.InDelta(t, 3.0, a.Position.Z(), 1e-9)
		assert.True(t, a.Moving)
	}
}

func TestClamp(t *testing.T) {
	a, err := agent.New(agent.Spec{Name: "drifter", Config: rangerConfig(), Bounds: agent.NewWorldBounds(-5, 5, -3, 3)})
	require.NoError(t, err)

	a.Position = mgl64.Vec3{8, 4, -9}
	Clamp(a)
	assert.Equal(t, mgl64.Vec3{5, 4, -3}, a.Position, "only x and z are clamped")

	a.Position = mgl64.Vec3{1, 0, 1}
	Clamp(a)
	assert.Equal(t, mgl64.Vec3{1, 0, 1}, a.Position)

	assert.NotPanics(t, func() { Clamp(nil) })
}
