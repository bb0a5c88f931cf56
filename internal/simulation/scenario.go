package simulation

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/mitchellh/go-homedir"
	"github.com/xkilldash9x/wayfarer/internal/collision"
	"gopkg.in/yaml.v3"
)

// Scenario is a scene description: optional world override, static
// obstacles and the agents to spawn.
type Scenario struct {
	Name      string         `yaml:"name"`
	World     *WorldSpec     `yaml:"world,omitempty"`
	Obstacles []ObstacleSpec `yaml:"obstacles"`
	Agents    []AgentSpec    `yaml:"agents"`
}

// WorldSpec overrides the configured world rectangle and grid.
type WorldSpec struct {
	MinX     float64 `yaml:"min_x"`
	MaxX     float64 `yaml:"max_x"`
	MinZ     float64 `yaml:"min_z"`
	MaxZ     float64 `yaml:"max_z"`
	CellSize float64 `yaml:"cell_size"`
}

// ObstacleSpec is a static box or, when Children is set, a group whose
// volume is the union of its children.
type ObstacleSpec struct {
	ID         string         `yaml:"id"`
	Center     [3]float64     `yaml:"center"`
	Size       [3]float64     `yaml:"size"`
	Collidable *bool          `yaml:"collidable,omitempty"`
	Children   []ObstacleSpec `yaml:"children,omitempty"`
}

// PatrolSpec is a two-waypoint route.
type PatrolSpec struct {
	Start [3]float64 `yaml:"start"`
	End   [3]float64 `yaml:"end"`
	// Progress is the starting point along the route in [0,1].
	Progress float64 `yaml:"progress"`
}

// AgentSpec describes one agent or, with Count > 1, a herd of identical ones
// scattered around Position.
type AgentSpec struct {
	Name      string      `yaml:"name"`
	Archetype string      `yaml:"archetype"`
	Policy    string      `yaml:"policy,omitempty"`
	Position  [3]float64  `yaml:"position"`
	Size      *[3]float64 `yaml:"size,omitempty"`
	// Visual is the agent's model as a box tree. Its union size becomes the
	// bounding size unless Size overrides it.
	Visual *ObstacleSpec `yaml:"visual,omitempty"`
	Patrol *PatrolSpec   `yaml:"patrol,omitempty"`
	Count     int         `yaml:"count,omitempty"`
	Scatter   float64     `yaml:"scatter,omitempty"`
	// LoadFrames keeps the agent Loading for this many frames, as if its model
	// were still streaming in.
	LoadFrames int    `yaml:"load_frames,omitempty"`
	IdleClip   string `yaml:"idle_clip,omitempty"`
	MoveClip   string `yaml:"move_clip,omitempty"`
	Paused     bool   `yaml:"paused,omitempty"`

	Speed          float64 `yaml:"speed,omitempty"`
	WanderDistance float64 `yaml:"wander_distance,omitempty"`
}

// LoadScenario reads a YAML scenario. A leading ~ in path is expanded.
func LoadScenario(path string) (*Scenario, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("simulation: expanding scenario path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("simulation: reading scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("simulation: parsing scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks structural problems a world cannot recover from.
func (s *Scenario) Validate() error {
	var errs []error
	if w := s.World; w != nil {
		if !finite(w.MinX, w.MaxX, w.MinZ, w.MaxZ, w.CellSize) {
			errs = append(errs, fmt.Errorf("world: bounds and cell_size must be finite"))
		} else if w.MinX >= w.MaxX || w.MinZ >= w.MaxZ {
			errs = append(errs, fmt.Errorf("world must have min < max on both axes"))
		}
		if w.CellSize < 0 {
			errs = append(errs, fmt.Errorf("world.cell_size must not be negative"))
		}
	}
	names := make(map[string]bool, len(s.Agents))
	for i, a := range s.Agents {
		if a.Name == "" {
			errs = append(errs, fmt.Errorf("agents[%d]: name is required", i))
		} else if names[a.Name] {
			errs = append(errs, fmt.Errorf("agents[%d]: duplicate name %q", i, a.Name))
		}
		names[a.Name] = true
		if a.Archetype == "" {
			errs = append(errs, fmt.Errorf("agents[%d]: archetype is required", i))
		}
		if a.Count < 0 || a.LoadFrames < 0 {
			errs = append(errs, fmt.Errorf("agents[%d]: count and load_frames must not be negative", i))
		}
		if !finite(a.Position[:]...) {
			errs = append(errs, fmt.Errorf("agents[%d]: position must be finite", i))
		}
		if a.Size != nil && !finite(a.Size[:]...) {
			errs = append(errs, fmt.Errorf("agents[%d]: size must be finite", i))
		}
		if !finite(a.Scatter, a.Speed, a.WanderDistance) {
			errs = append(errs, fmt.Errorf("agents[%d]: scatter, speed and wander_distance must be finite", i))
		}
		if p := a.Patrol; p != nil {
			if !finite(p.Start[:]...) || !finite(p.End[:]...) || !finite(p.Progress) {
				errs = append(errs, fmt.Errorf("agents[%d]: patrol start, end and progress must be finite", i))
			}
		}
		if a.Visual != nil {
			errs = append(errs, validateObstacle(*a.Visual, fmt.Sprintf("agents[%d].visual", i))...)
		}
	}
	for i, o := range s.Obstacles {
		errs = append(errs, validateObstacle(o, fmt.Sprintf("obstacles[%d]", i))...)
	}
	if len(errs) > 0 {
		return fmt.Errorf("simulation: invalid scenario %q: %w", s.Name, errors.Join(errs...))
	}
	return nil
}

func validateObstacle(o ObstacleSpec, path string) []error {
	var errs []error
	if len(o.Children) == 0 && (!finite(o.Center[:]...) || !finite(o.Size[:]...)) {
		errs = append(errs, fmt.Errorf("%s: center and size must be finite", path))
	}
	for i, c := range o.Children {
		errs = append(errs, validateObstacle(c, fmt.Sprintf("%s.children[%d]", path, i))...)
	}
	return errs
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// BuildObstacles turns the obstacle specs into collision volumes.
func (s *Scenario) BuildObstacles() []collision.HasWorldVolume {
	out := make([]collision.HasWorldVolume, 0, len(s.Obstacles))
	for i, o := range s.Obstacles {
		out = append(out, buildObstacle(o, fmt.Sprintf("static-%d", i)))
	}
	return out
}

func buildObstacle(o ObstacleSpec, fallbackID string) collision.HasWorldVolume {
	id := o.ID
	if id == "" {
		id = fallbackID
	}
	collidable := o.Collidable == nil || *o.Collidable
	if len(o.Children) > 0 {
		g := collision.NewGroup(id)
		for i, c := range o.Children {
			g.Add(buildObstacle(c, fmt.Sprintf("%s/%d", id, i)))
		}
		g.SetCollidable(collidable)
		return g
	}
	leaf := collision.NewLeaf(id, collision.FromCenterSize(mgl64.Vec3(o.Center), mgl64.Vec3(o.Size)))
	leaf.SetCollidable(collidable)
	return leaf
}

// DefaultScenario is a small mixed scene used when no scenario file is given:
// a rocky clearing with a few herds, two rangers, a mercenary and a sentinel
// guarding the south edge.
func DefaultScenario() *Scenario {
	return &Scenario{
		Name: "clearing",
		Obstacles: []ObstacleSpec{
			{ID: "boulder", Center: [3]float64{6, 0, 6}, Size: [3]float64{3, 2, 3}},
			{ID: "log", Center: [3]float64{-8, 0, 2}, Size: [3]float64{6, 1, 1}},
			{ID: "pond", Center: [3]float64{0, 0, -12}, Size: [3]float64{8, 0.5, 5}},
			{
				ID: "grove",
				Children: []ObstacleSpec{
					{Center: [3]float64{15, 0, -5}, Size: [3]float64{1, 6, 1}},
					{Center: [3]float64{17, 0, -3}, Size: [3]float64{1, 6, 1}},
					{Center: [3]float64{14, 0, -1}, Size: [3]float64{1, 6, 1}},
				},
			},
		},
		Agents: []AgentSpec{
			{Name: "bear", Archetype: "bear", Position: [3]float64{-20, 0, 20}, Count: 2, Scatter: 6, Size: &[3]float64{1.2, 1.4, 2}},
			{Name: "chicken", Archetype: "chicken", Position: [3]float64{10, 0, 15}, Count: 5, Scatter: 4, Size: &[3]float64{0.4, 0.5, 0.4}},
			{Name: "fox", Archetype: "fox", Position: [3]float64{-15, 0, -15}, Count: 2, Scatter: 5, Size: &[3]float64{0.5, 0.6, 1}},
			{Name: "ranger", Archetype: "ranger", Position: [3]float64{0, 0, 5}, Count: 2, Scatter: 3, Size: &[3]float64{0.6, 1.8, 0.6}},
			{Name: "mercenary", Archetype: "mercenary", Position: [3]float64{-5, 0, -5}, Size: &[3]float64{0.6, 1.8, 0.6}},
			{Name: "alien", Archetype: "alien", Position: [3]float64{25, 0, 25}, LoadFrames: 30, Size: &[3]float64{1, 2.2, 1}},
			{
				Name:      "sentinel",
				Archetype: "sentinel",
				Size:      &[3]float64{0.8, 2, 0.8},
				Patrol:    &PatrolSpec{Start: [3]float64{-30, 0, -30}, End: [3]float64{30, 0, -30}},
			},
		},
	}
}
