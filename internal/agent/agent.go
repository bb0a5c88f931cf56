// Package agent defines the per-agent record driven by the behavior state
// machine, together with its lifecycle, tuning, world bounds and the registry
// that owns every agent of a world.
//
// The scene owns visual nodes; an Agent only keeps a read-only reference to its
// visual representation for sizing and never the other way round.
package agent

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/xkilldash9x/wayfarer/internal/animation"
	"github.com/xkilldash9x/wayfarer/internal/collision"
)

// State is the behavior state machine's current mode.
type State int

const (
	Wandering State = iota
	Waiting
	Patrolling
	Bouncing
)

func (s State) String() string {
	switch s {
	case Wandering:
		return "wandering"
	case Waiting:
		return "waiting"
	case Patrolling:
		return "patrolling"
	case Bouncing:
		return "bouncing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Valid reports whether s is one of the four defined states.
func (s State) Valid() bool {
	return s >= Wandering && s <= Bouncing
}

// Lifecycle tracks whether the agent is ready to be stepped.
type Lifecycle int

const (
	// Loading agents exist but their visual representation is not ready yet.
	Loading Lifecycle = iota
	Active
	Destroyed
)

func (l Lifecycle) String() string {
	switch l {
	case Loading:
		return "loading"
	case Active:
		return "active"
	case Destroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("lifecycle(%d)", int(l))
	}
}

var (
	// ErrNotLoading is returned when activating an agent that already left Loading.
	ErrNotLoading = errors.New("agent: not in loading state")
	// ErrPatrolRouteRequired is returned for patrol agents without a route.
	ErrPatrolRouteRequired = errors.New("agent: patrol policy requires a patrol route")
	// ErrNotFinite is returned for positions or waypoints with NaN or infinite components.
	ErrNotFinite = errors.New("agent: coordinates are not finite")
)

// GridCell is a discretized (x, z) cell index.
type GridCell struct {
	X int
	Z int
}

// PatrolRoute is a back-and-forth route between exactly two waypoints.
type PatrolRoute struct {
	Start mgl64.Vec3
	End   mgl64.Vec3
	// Progress is the position along Start->End in [0,1].
	Progress float64
	// Direction is +1 towards End and -1 towards Start.
	Direction float64
}

// NewPatrolRoute returns a route starting at Start heading to End.
func NewPatrolRoute(start, end mgl64.Vec3) *PatrolRoute {
	return &PatrolRoute{Start: start, End: end, Direction: 1}
}

// Valid reports whether both waypoints and the progress are real numbers.
func (r *PatrolRoute) Valid() bool {
	return r != nil && finite(r.Start) && finite(r.End) &&
		!math.IsNaN(r.Progress) && !math.IsInf(r.Progress, 0)
}

// Length is the segment length.
func (r *PatrolRoute) Length() float64 {
	return r.End.Sub(r.Start).Len()
}

// PointAt interpolates the route at progress p.
func (r *PatrolRoute) PointAt(p float64) mgl64.Vec3 {
	return r.Start.Add(r.End.Sub(r.Start).Mul(p))
}

// Agent is one autonomous NPC or creature.
type Agent struct {
	ID     uuid.UUID
	Name   string
	Kind   string
	Policy Policy

	Position    mgl64.Vec3
	Orientation mgl64.Quat

	State  State
	Target *mgl64.Vec3

	WaitTimer       float64
	BounceTimer     float64
	BounceDirection mgl64.Vec3
	// ResumeState is entered when a bounce ends.
	ResumeState State

	Bounds WorldBounds
	Cell   GridCell
	Patrol *PatrolRoute
	Anim   *animation.Bridge
	// Visual is the scene representation, read once to derive the bounding size.
	Visual collision.HasWorldVolume

	// Moving is the kinetic signal of the last step.
	Moving bool

	config    BehaviorConfig
	lifecycle Lifecycle
	paused    bool

	size          mgl64.Vec3
	sizeKnown     bool
	sizeDefaulted bool

	nearby      []mgl64.Vec3
	nearbyKnown bool
}

// Spec describes an agent to create.
type Spec struct {
	Name     string
	Kind     string
	Policy   Policy
	Config   BehaviorConfig
	Position mgl64.Vec3
	Bounds   WorldBounds
	Patrol   *PatrolRoute
	Visual   collision.HasWorldVolume
	Anim     *animation.Bridge
}

// New validates spec and returns an agent in the Loading state.
func New(spec Spec) (*Agent, error) {
	if err := spec.Config.Validate(); err != nil {
		return nil, fmt.Errorf("agent %q: %w", spec.Name, err)
	}
	if spec.Policy == Patrol && spec.Patrol == nil {
		return nil, fmt.Errorf("agent %q: %w", spec.Name, ErrPatrolRouteRequired)
	}
	if !finite(spec.Position) {
		return nil, fmt.Errorf("agent %q: position %v: %w", spec.Name, spec.Position, ErrNotFinite)
	}
	if spec.Patrol != nil && !spec.Patrol.Valid() {
		return nil, fmt.Errorf("agent %q: patrol route %v -> %v: %w", spec.Name, spec.Patrol.Start, spec.Patrol.End, ErrNotFinite)
	}
	a := &Agent{
		ID:          uuid.New(),
		Name:        spec.Name,
		Kind:        spec.Kind,
		Policy:      spec.Policy,
		Position:    spec.Position,
		Orientation: mgl64.QuatIdent(),
		State:       Waiting,
		ResumeState: Waiting,
		Bounds:      spec.Bounds,
		Patrol:      spec.Patrol,
		Visual:      spec.Visual,
		Anim:        spec.Anim,
		config:      spec.Config,
		lifecycle:   Loading,
	}
	return a, nil
}

// Config returns the immutable tuning record.
func (a *Agent) Config() BehaviorConfig { return a.config }

// Lifecycle returns the current lifecycle stage.
func (a *Agent) Lifecycle() Lifecycle { return a.lifecycle }

// IsActive reports whether the state machine should run for this agent.
func (a *Agent) IsActive() bool { return a.lifecycle == Active }

// MarkActive moves a Loading agent to Active.
func (a *Agent) MarkActive() error {
	if a.lifecycle != Loading {
		return fmt.Errorf("%w: %s is %s", ErrNotLoading, a.Name, a.lifecycle)
	}
	a.lifecycle = Active
	return nil
}

// Destroy ends the agent's life. It is idempotent.
func (a *Agent) Destroy() {
	a.lifecycle = Destroyed
	a.Target = nil
	a.Moving = false
}

// IsPaused reports whether external systems suspended this agent.
func (a *Agent) IsPaused() bool { return a.paused }

// SetPaused suspends or resumes the agent. State and target are kept.
func (a *Agent) SetPaused(paused bool) { a.paused = paused }

// Nearby returns the cached centers of nearby obstacles and whether the cache
// was ever filled.
func (a *Agent) Nearby() ([]mgl64.Vec3, bool) { return a.nearby, a.nearbyKnown }

// SetNearby replaces the nearby obstacle cache.
func (a *Agent) SetNearby(centers []mgl64.Vec3) {
	a.nearby = centers
	a.nearbyKnown = true
}

// Forward is the agent's facing direction. Models face +Z at rest.
func (a *Agent) Forward() mgl64.Vec3 {
	return a.Orientation.Rotate(mgl64.Vec3{0, 0, 1})
}

// Yaw is the heading angle about +Y in radians, zero along +Z.
func (a *Agent) Yaw() float64 {
	f := a.Forward()
	return math.Atan2(f[0], f[2])
}
