// Package simulation hosts agents in a world: it owns the registry and the
// static scene, builds the per-frame obstacle snapshot, steps every agent in
// registry order and hands each finished frame to observers such as the
// recorder or the database sink.
package simulation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/xkilldash9x/wayfarer/api/schemas"
	"github.com/xkilldash9x/wayfarer/internal/agent"
	"github.com/xkilldash9x/wayfarer/internal/animation"
	"github.com/xkilldash9x/wayfarer/internal/behavior"
	"github.com/xkilldash9x/wayfarer/internal/collision"
	"github.com/xkilldash9x/wayfarer/internal/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultIdleClip = "idle"
	defaultMoveClip = "walk"
)

// FrameObserver receives every finished frame.
type FrameObserver interface {
	ObserveFrame(ctx context.Context, frame schemas.FrameRecord) error
}

// FrameObserverFunc adapts a function to FrameObserver.
type FrameObserverFunc func(ctx context.Context, frame schemas.FrameRecord) error

func (f FrameObserverFunc) ObserveFrame(ctx context.Context, frame schemas.FrameRecord) error {
	return f(ctx, frame)
}

// World is one independent simulation. It is not safe for concurrent use;
// batch runs give every goroutine its own World.
type World struct {
	cfg      config.SimulationConfig
	presets  map[string]config.BehaviorPreset
	bounds   agent.WorldBounds
	cellSize float64

	rng      *rand.Rand
	machine  *behavior.Machine
	registry *agent.Registry
	statics  []collision.HasWorldVolume

	// pending counts down frames until a Loading agent is activated.
	pending map[uuid.UUID]int
	// throttles hold the per-agent off-screen step limiter.
	throttles map[uuid.UUID]*rate.Sometimes
	view      orb.Bound

	runID    uuid.UUID
	scenario string
	frame    int
	elapsed  float64

	logger *zap.Logger
}

// NewWorld returns an empty world configured by cfg. presets resolves
// archetype names used by Spawn.
func NewWorld(cfg config.SimulationConfig, presets map[string]config.BehaviorPreset, logger *zap.Logger) *World {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("world")
	rng := rand.New(rand.NewSource(cfg.Seed))
	half := cfg.World.HalfExtent()
	cellSize := cfg.World.CellSize()
	view := cfg.Offscreen.View

	return &World{
		cfg:       cfg,
		presets:   presets,
		bounds:    agent.SquareBounds(half),
		cellSize:  cellSize,
		rng:       rng,
		machine:   behavior.New(behavior.Config{CellSize: cellSize, Rng: rng}, logger),
		registry:  agent.NewRegistry(),
		pending:   make(map[uuid.UUID]int),
		throttles: make(map[uuid.UUID]*rate.Sometimes),
		view:      orb.Bound{Min: orb.Point{view.MinX, view.MinZ}, Max: orb.Point{view.MaxX, view.MaxZ}},
		runID:     uuid.New(),
		logger:    logger,
	}
}

// RunID identifies this world's run in recordings and the database.
func (w *World) RunID() uuid.UUID { return w.runID }

// Frame is the number of completed frames.
func (w *World) Frame() int { return w.frame }

// Elapsed is the simulated time in seconds.
func (w *World) Elapsed() float64 { return w.elapsed }

// Bounds are the world bounds every agent is clamped to.
func (w *World) Bounds() agent.WorldBounds { return w.bounds }

// CellSize is the grid cell edge used for redirects.
func (w *World) CellSize() float64 { return w.cellSize }

// Registry exposes the world's agents.
func (w *World) Registry() *agent.Registry { return w.registry }

// Statics returns the static obstacles.
func (w *World) Statics() []collision.HasWorldVolume { return w.statics }

// AddStatic adds static obstacles to the scene.
func (w *World) AddStatic(obstacles ...collision.HasWorldVolume) {
	w.statics = append(w.statics, obstacles...)
}

// Load applies a scenario: world override, statics and agents.
func (w *World) Load(s *Scenario) error {
	if s == nil {
		return nil
	}
	if err := s.Validate(); err != nil {
		return err
	}
	w.scenario = s.Name
	if ws := s.World; ws != nil {
		w.bounds = agent.NewWorldBounds(ws.MinX, ws.MaxX, ws.MinZ, ws.MaxZ)
		if ws.CellSize > 0 {
			w.cellSize = ws.CellSize
		}
		w.machine = behavior.New(behavior.Config{CellSize: w.cellSize, Rng: w.rng}, w.logger)
	}
	w.AddStatic(s.BuildObstacles()...)

	for _, spec := range s.Agents {
		if _, err := w.SpawnGroup(spec); err != nil {
			return err
		}
	}
	w.logger.Info("Scenario loaded.",
		zap.String("scenario", s.Name),
		zap.Int("statics", len(w.statics)),
		zap.Int("agents", w.registry.Len()))
	return nil
}

// SpawnGroup spawns spec.Count agents (at least one) named name-1..name-N,
// scattered uniformly within spec.Scatter of the spec position.
func (w *World) SpawnGroup(spec AgentSpec) ([]*agent.Agent, error) {
	if spec.Count <= 1 {
		a, err := w.Spawn(spec)
		if err != nil {
			return nil, err
		}
		return []*agent.Agent{a}, nil
	}
	out := make([]*agent.Agent, 0, spec.Count)
	base := mgl64.Vec3(spec.Position)
	for i := 1; i <= spec.Count; i++ {
		one := spec
		one.Count = 1
		one.Name = fmt.Sprintf("%s-%d", spec.Name, i)
		angle := w.rng.Float64() * 2 * math.Pi
		r := w.rng.Float64() * spec.Scatter
		one.Position = base.Add(mgl64.Vec3{math.Cos(angle) * r, 0, math.Sin(angle) * r})
		a, err := w.Spawn(one)
		if err != nil {
			return out, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Spawn creates one agent from its archetype preset and registers it. Agents
// with LoadFrames stay Loading until that many frames have passed; others
// are activated immediately.
func (w *World) Spawn(spec AgentSpec) (*agent.Agent, error) {
	preset, ok := w.presets[spec.Archetype]
	if !ok {
		return nil, fmt.Errorf("simulation: agent %q: unknown archetype %q", spec.Name, spec.Archetype)
	}
	if spec.Policy != "" {
		preset.Policy = spec.Policy
	}
	if spec.Speed > 0 {
		preset.Speed = spec.Speed
	}
	if spec.WanderDistance > 0 {
		preset.WanderDistance = spec.WanderDistance
	}
	tuning, policy, err := agent.FromPreset(preset)
	if err != nil {
		return nil, fmt.Errorf("simulation: agent %q: %w", spec.Name, err)
	}

	var route *agent.PatrolRoute
	if spec.Patrol != nil {
		route = agent.NewPatrolRoute(mgl64.Vec3(spec.Patrol.Start), mgl64.Vec3(spec.Patrol.End))
		route.Progress = math.Max(0, math.Min(1, spec.Patrol.Progress))
	}

	var visual collision.HasWorldVolume
	if spec.Visual != nil {
		visual = buildObstacle(*spec.Visual, spec.Name+"/visual")
	}

	idle, move := spec.IdleClip, spec.MoveClip
	if idle == "" {
		idle = defaultIdleClip
	}
	if move == "" {
		move = defaultMoveClip
	}
	bridge, _ := animation.NewClipBridge(idle, move)

	a, err := agent.New(agent.Spec{
		Name:     spec.Name,
		Kind:     spec.Archetype,
		Policy:   policy,
		Config:   tuning,
		Position: w.bounds.Clamp(mgl64.Vec3(spec.Position)),
		Bounds:   w.bounds,
		Patrol:   route,
		Visual:   visual,
		Anim:     bridge,
	})
	if err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}
	if spec.Size != nil {
		a.SetBoundingSize(mgl64.Vec3(*spec.Size))
	}
	a.SetPaused(spec.Paused)

	if err := w.registry.Add(a); err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}
	if spec.LoadFrames > 0 {
		w.pending[a.ID] = spec.LoadFrames
		return a, nil
	}
	if err := w.machine.Activate(a); err != nil {
		return nil, fmt.Errorf("simulation: activating %q: %w", a.Name, err)
	}
	return a, nil
}

// Despawn destroys and removes an agent.
func (w *World) Despawn(id uuid.UUID) bool {
	delete(w.pending, id)
	delete(w.throttles, id)
	return w.registry.Remove(id)
}

// SetPaused pauses or resumes the named agent.
func (w *World) SetPaused(name string, paused bool) bool {
	a, ok := w.registry.FindByName(name)
	if !ok {
		return false
	}
	a.SetPaused(paused)
	return true
}

// PauseAll pauses or resumes every agent.
func (w *World) PauseAll(paused bool) {
	for _, a := range w.registry.All() {
		a.SetPaused(paused)
	}
}

// obstacles is the frame's obstacle list: statics followed by every agent.
// Agents that are not Active report themselves non-collidable.
func (w *World) obstacles(agents []*agent.Agent) []collision.HasWorldVolume {
	out := make([]collision.HasWorldVolume, 0, len(w.statics)+len(agents))
	out = append(out, w.statics...)
	for _, a := range agents {
		out = append(out, a.Obstacle())
	}
	return out
}

// Tick advances the world by one frame.
func (w *World) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.activatePending()

	agents := w.registry.All()
	snap := collision.NewSnapshot(w.obstacles(agents))
	// Freeze every volume at its pre-frame position before anyone moves.
	snap.Len()

	dt := w.cfg.Delta
	for _, a := range agents {
		if err := w.stepAgent(a, dt, snap); err != nil {
			return fmt.Errorf("simulation: frame %d: agent %q: %w", w.frame, a.Name, err)
		}
	}
	w.frame++
	w.elapsed += dt
	return nil
}

func (w *World) stepAgent(a *agent.Agent, dt float64, snap *collision.Snapshot) error {
	if !w.cfg.Offscreen.Enabled || w.onScreen(a) {
		return w.machine.Step(a, dt, snap)
	}
	every := w.cfg.Offscreen.Every
	limiter, ok := w.throttles[a.ID]
	if !ok {
		limiter = &rate.Sometimes{Every: every}
		w.throttles[a.ID] = limiter
	}
	var err error
	limiter.Do(func() {
		err = w.machine.Step(a, dt*float64(every), snap)
	})
	return err
}

func (w *World) onScreen(a *agent.Agent) bool {
	return w.view.Contains(orb.Point{a.Position[0], a.Position[2]})
}

func (w *World) activatePending() {
	if len(w.pending) == 0 {
		return
	}
	// Registry order keeps activation, and so the rng draws, deterministic.
	for _, a := range w.registry.All() {
		left, ok := w.pending[a.ID]
		if !ok {
			continue
		}
		if left > 1 {
			w.pending[a.ID] = left - 1
			continue
		}
		delete(w.pending, a.ID)
		if err := w.machine.Activate(a); err != nil {
			w.logger.Warn("Failed to activate agent.", zap.String("agent", a.Name), zap.Error(err))
			continue
		}
		w.logger.Debug("Agent finished loading.", zap.String("agent", a.Name), zap.Int("frame", w.frame))
	}
}

// Run ticks the world frames times, handing every frame to the observers.
// It stops early when ctx is done.
func (w *World) Run(ctx context.Context, frames int, observers ...FrameObserver) (schemas.RunSummary, error) {
	summary := schemas.RunSummary{
		RunID:     w.runID.String(),
		Seed:      w.cfg.Seed,
		Scenario:  w.scenario,
		StartedAt: time.Now().UTC(),
	}
	w.logger.Info("Simulation starting.",
		zap.String("run_id", summary.RunID),
		zap.Int64("seed", w.cfg.Seed),
		zap.Int("frames", frames),
		zap.Int("agents", w.registry.Len()))

	for i := 0; i < frames; i++ {
		if err := w.Tick(ctx); err != nil {
			summary.Frames = w.frame
			summary.Status = schemas.RunInterrupted
			return summary, err
		}
		record := w.Snapshot()
		for _, o := range observers {
			if err := o.ObserveFrame(ctx, record); err != nil {
				summary.Frames = w.frame
				summary.Status = schemas.RunInterrupted
				return summary, fmt.Errorf("simulation: observer at frame %d: %w", w.frame, err)
			}
		}
	}

	summary.Frames = w.frame
	summary.Status = schemas.RunCompleted
	summary.Agents = w.registry.Len()
	summary.FinishedAt = time.Now().UTC()
	summary.Final = w.Snapshot().StateCounts()
	w.logger.Info("Simulation finished.",
		zap.String("run_id", summary.RunID),
		zap.Int("frames", summary.Frames),
		zap.Duration("wall", summary.Duration()))
	return summary, nil
}

// Snapshot captures the current frame as a record.
func (w *World) Snapshot() schemas.FrameRecord {
	agents := w.registry.All()
	rec := schemas.FrameRecord{
		RunID:  w.runID.String(),
		Frame:  w.frame,
		Time:   w.elapsed,
		Agents: make([]schemas.AgentSnapshot, 0, len(agents)),
	}
	for _, a := range agents {
		state := a.State.String()
		if !a.IsActive() {
			state = a.Lifecycle().String()
		}
		rec.Agents = append(rec.Agents, schemas.AgentSnapshot{
			ID:       a.ID.String(),
			Name:     a.Name,
			Kind:     a.Kind,
			State:    state,
			Policy:   a.Policy.String(),
			Position: [3]float64(a.Position),
			Yaw:      a.Yaw(),
			Moving:   a.Moving,
			Clip:     a.Anim.ActiveName(),
			Paused:   a.IsPaused(),
		})
	}
	return rec
}
