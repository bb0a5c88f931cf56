// Package behavior runs the per-agent state machine: wandering toward targets,
// waiting between moves, patrolling fixed routes and bouncing away from
// obstacles. It consumes the collision oracle and the target selectors and
// drives the animation bridge.
package behavior

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/xkilldash9x/wayfarer/internal/agent"
	"github.com/xkilldash9x/wayfarer/internal/collision"
	"go.uber.org/zap"
)

var (
	// ErrNilAgent is returned when Step or Activate is handed a nil agent.
	ErrNilAgent = errors.New("behavior: nil agent")
	// ErrNilObstacles is returned for a missing obstacle snapshot. It is the
	// only structural error Step surfaces.
	ErrNilObstacles = errors.New("behavior: nil obstacle snapshot")
	// ErrInvalidDelta is returned for negative or non-finite delta times.
	ErrInvalidDelta = errors.New("behavior: invalid delta time")
)

// nearbyCells is how far, in cells, the nearby obstacle cache reaches.
const nearbyCells = 3

// Config configures a Machine.
type Config struct {
	// CellSize is the edge of a grid cell used for density-aware redirects.
	// Zero disables grid awareness and redirects fall back to free wander.
	CellSize float64
	// Rng drives every random choice. A time-seeded source is used when nil.
	Rng *rand.Rand
}

// Machine steps agents. It holds no per-agent state and is not safe for
// concurrent use because of the shared rng; one Machine serves one world.
type Machine struct {
	cellSize float64
	rng      *rand.Rand
	logger   *zap.Logger
}

// New returns a Machine.
func New(cfg Config, logger *zap.Logger) *Machine {
	rng := cfg.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		cellSize: cfg.CellSize,
		rng:      rng,
		logger:   logger.Named("behavior"),
	}
}

// NewTestMachine returns a deterministic Machine with a no-op logger.
func NewTestMachine(seed int64, cellSize float64) *Machine {
	return New(Config{CellSize: cellSize, Rng: rand.New(rand.NewSource(seed))}, zap.NewNop())
}

// CellSize returns the grid cell size.
func (m *Machine) CellSize() float64 { return m.cellSize }

// Activate moves a Loading agent to Active and puts it in its initial state
// with a target already chosen.
func (m *Machine) Activate(a *agent.Agent) error {
	if a == nil {
		return ErrNilAgent
	}
	if err := a.MarkActive(); err != nil {
		return err
	}
	if size, defaulted := a.BoundingSize(); defaulted {
		m.logger.Warn("Visual representation has no usable extent; using default size.",
			zap.String("agent", a.Name),
			zap.Float64s("size", size[:]))
	}

	if a.Policy == agent.Patrol && a.Patrol.Valid() {
		a.Position = a.Patrol.PointAt(a.Patrol.Progress)
		m.enterPatrolling(a)
	} else {
		m.enterWandering(a, m.FreeWander(a))
	}
	a.Position = a.Bounds.Clamp(a.Position)
	m.refreshCell(a)
	m.logger.Debug("Agent activated.",
		zap.String("agent", a.Name),
		zap.Stringer("policy", a.Policy),
		zap.Stringer("state", a.State))
	return nil
}

// Step advances one agent by dt seconds against the frame's obstacles.
// Inactive and paused agents are left untouched.
func (m *Machine) Step(a *agent.Agent, dt float64, snap *collision.Snapshot) error {
	if a == nil {
		return ErrNilAgent
	}
	if snap == nil {
		return ErrNilObstacles
	}
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidDelta, dt)
	}
	if !a.IsActive() || a.IsPaused() {
		return nil
	}

	a.Anim.Advance(dt)

	var moving bool
	switch a.State {
	case agent.Wandering:
		moving = m.stepWandering(a, dt, snap)
	case agent.Waiting:
		m.stepWaiting(a, dt, snap)
	case agent.Patrolling:
		moving = m.stepPatrolling(a, dt)
	case agent.Bouncing:
		moving = m.stepBouncing(a, dt)
	default:
		m.logger.Warn("Agent in unknown state; resetting to waiting.",
			zap.String("agent", a.Name),
			zap.Stringer("state", a.State))
		m.enterWaiting(a)
	}

	a.Moving = moving
	a.Anim.Update(moving)
	m.refreshGrid(a, snap)
	Clamp(a)
	return nil
}

func (m *Machine) stepWandering(a *agent.Agent, dt float64, snap *collision.Snapshot) bool {
	cfg := a.Config()
	if a.Target == nil {
		m.assignTarget(a, m.FreeWander(a))
	}

	toTarget := a.Target.Sub(a.Position)
	toTarget[1] = 0
	distSq := toTarget.LenSqr()
	if distSq < cfg.ArrivalThreshold*cfg.ArrivalThreshold {
		m.enterWaiting(a)
		return false
	}

	dist := math.Sqrt(distSq)
	dir := toTarget.Mul(1 / dist)
	// Never overshoot: a long step past the target would oscillate around it.
	stride := math.Min(cfg.Speed*dt, dist)
	if stride == 0 {
		return false
	}
	candidate := a.Position.Add(dir.Mul(stride))

	if snap.Intersects(agent.BoundingBoxFor(a, candidate), a.ID.String()) {
		m.onBlocked(a, dir)
		return false
	}

	a.Position = candidate
	m.face(a, dir)
	return true
}

// onBlocked reacts to a collision on the current heading. The agent has not moved.
func (m *Machine) onBlocked(a *agent.Agent, heading mgl64.Vec3) {
	if a.Policy == agent.ReactiveBounce {
		m.enterBouncing(a, heading.Mul(-1))
		return
	}
	m.assignTarget(a, m.GridRedirect(a))
	m.logger.Debug("Path blocked; redirecting.",
		zap.String("agent", a.Name),
		zap.Float64s("target", a.Target[:]))
}

func (m *Machine) stepWaiting(a *agent.Agent, dt float64, snap *collision.Snapshot) {
	a.WaitTimer -= dt
	if a.WaitTimer > 0 {
		return
	}
	if a.Policy == agent.Patrol && a.Patrol != nil {
		m.enterPatrolling(a)
		return
	}
	target, ok := m.LocalScan(a, snap)
	if !ok {
		target = m.FreeWander(a)
	}
	m.enterWandering(a, target)
}

func (m *Machine) stepPatrolling(a *agent.Agent, dt float64) bool {
	route := a.Patrol
	if !route.Valid() {
		m.abandonRoute(a)
		return false
	}
	length := route.Length()
	if length == 0 {
		a.Position = route.Start
		return false
	}

	heading := route.End.Sub(route.Start).Mul(route.Direction)
	progress := route.Progress + route.Direction*a.Config().Speed*dt/length
	switch {
	case progress >= 1:
		progress = 1
		route.Direction = -1
	case progress <= 0:
		progress = 0
		route.Direction = 1
	}
	point := route.PointAt(progress)
	if !agent.Finite(point) {
		m.abandonRoute(a)
		return false
	}
	route.Progress = progress
	a.Position = point
	a.Target = patrolTarget(route)

	heading[1] = 0
	if heading.LenSqr() > 0 {
		m.face(a, heading.Normalize())
	}
	return dt > 0
}

func (m *Machine) stepBouncing(a *agent.Agent, dt float64) bool {
	dir := a.BounceDirection
	dir[1] = 0
	moved := false
	// A throttled step can be longer than the bounce that is left.
	span := math.Min(dt, math.Max(a.BounceTimer, 0))
	if dir.LenSqr() > 0 && span > 0 {
		a.Position = a.Position.Add(dir.Normalize().Mul(a.Config().Speed * span))
		moved = true
	}
	a.BounceTimer -= dt
	if a.BounceTimer <= 0 {
		m.resume(a)
	}
	return moved
}

func (m *Machine) resume(a *agent.Agent) {
	switch a.ResumeState {
	case agent.Wandering:
		m.enterWandering(a, m.FreeWander(a))
	case agent.Patrolling:
		if a.Patrol != nil {
			m.enterPatrolling(a)
			return
		}
		m.enterWaiting(a)
	default:
		m.enterWaiting(a)
	}
}

// -- transitions --

func (m *Machine) enterWandering(a *agent.Agent, target mgl64.Vec3) {
	m.transition(a, agent.Wandering)
	a.WaitTimer = 0
	a.BounceTimer = 0
	m.assignTarget(a, target)
}

func (m *Machine) enterWaiting(a *agent.Agent) {
	m.transition(a, agent.Waiting)
	a.Target = nil
	a.BounceTimer = 0
	a.WaitTimer = m.drawWait(a.Config())
}

func (m *Machine) enterPatrolling(a *agent.Agent) {
	if !a.Patrol.Valid() {
		m.abandonRoute(a)
		return
	}
	m.transition(a, agent.Patrolling)
	a.WaitTimer = 0
	a.BounceTimer = 0
	a.Target = patrolTarget(a.Patrol)
}

func (m *Machine) enterBouncing(a *agent.Agent, away mgl64.Vec3) {
	m.transition(a, agent.Bouncing)
	a.Target = nil
	a.WaitTimer = 0
	a.BounceTimer = a.Config().BounceDuration
	a.BounceDirection = away
	a.ResumeState = agent.Waiting
}

func (m *Machine) transition(a *agent.Agent, to agent.State) {
	if a.State != to {
		m.logger.Debug("Agent state transition.",
			zap.String("agent", a.Name),
			zap.Stringer("from", a.State),
			zap.Stringer("to", to))
	}
	a.State = to
}

func (m *Machine) drawWait(cfg agent.BehaviorConfig) float64 {
	return cfg.MinWait + m.rng.Float64()*(cfg.MaxWait-cfg.MinWait)
}

// abandonRoute drops a missing or non-finite route and wanders instead, so a
// patroller is never left holding an unusable target.
func (m *Machine) abandonRoute(a *agent.Agent) {
	if a.Patrol != nil {
		m.logger.Warn("Rejected non-finite patrol route; wandering instead.",
			zap.String("agent", a.Name),
			zap.Float64s("start", a.Patrol.Start[:]),
			zap.Float64s("end", a.Patrol.End[:]))
		a.Patrol = nil
	}
	m.enterWandering(a, m.FreeWander(a))
}

func patrolTarget(route *agent.PatrolRoute) *mgl64.Vec3 {
	end := route.End
	if route.Direction < 0 {
		end = route.Start
	}
	return &end
}

// -- grid awareness --

func (m *Machine) refreshCell(a *agent.Agent) {
	if !a.Bounds.IsSet() || m.cellSize <= 0 {
		return
	}
	a.Cell = a.Bounds.CellOf(a.Bounds.Clamp(a.Position), m.cellSize)
}

func (m *Machine) refreshGrid(a *agent.Agent, snap *collision.Snapshot) {
	if !a.Bounds.IsSet() || m.cellSize <= 0 {
		return
	}
	pos := a.Bounds.Clamp(a.Position)
	a.Cell = a.Bounds.CellOf(pos, m.cellSize)
	a.SetNearby(snap.Nearby(pos, nearbyCells*m.cellSize, a.ID.String()))
}
