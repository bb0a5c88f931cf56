package agent

import (
	"fmt"
	"math"

	"github.com/xkilldash9x/wayfarer/internal/config"
)

// Policy selects how an agent picks targets and reacts to collisions.
type Policy int

const (
	// Wander roams to random points and redirects on collision.
	Wander Policy = iota
	// Patrol walks a fixed two-point route back and forth.
	Patrol
	// ReactiveBounce roams like Wander but backs away from obstacles it hits.
	ReactiveBounce
)

func (p Policy) String() string {
	switch p {
	case Wander:
		return config.PolicyWander
	case Patrol:
		return config.PolicyPatrol
	case ReactiveBounce:
		return config.PolicyReactiveBounce
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a config policy name to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch name {
	case config.PolicyWander, "":
		return Wander, nil
	case config.PolicyPatrol:
		return Patrol, nil
	case config.PolicyReactiveBounce:
		return ReactiveBounce, nil
	}
	return Wander, fmt.Errorf("agent: unknown policy %q", name)
}

// DefaultBounceDuration is how long a reactive agent backs away after a hit.
const DefaultBounceDuration = 0.5

// BehaviorConfig is the immutable tuning record of an agent.
type BehaviorConfig struct {
	Speed            float64
	WanderDistance   float64
	MinWait          float64
	MaxWait          float64
	ArrivalThreshold float64
	// TurnSpeed is the slerp factor applied per step, in [0,1].
	TurnSpeed       float64
	IdleScanRadius  float64
	ScanSampleCount int
	BounceDuration  float64
}

// Validate rejects values the state machine cannot use.
func (c BehaviorConfig) Validate() error {
	fields := map[string]float64{
		"speed":             c.Speed,
		"wander_distance":   c.WanderDistance,
		"min_wait":          c.MinWait,
		"max_wait":          c.MaxWait,
		"arrival_threshold": c.ArrivalThreshold,
		"turn_speed":        c.TurnSpeed,
		"idle_scan_radius":  c.IdleScanRadius,
		"bounce_duration":   c.BounceDuration,
	}
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("behavior config: %s must be a finite non-negative number, got %v", name, v)
		}
	}
	if c.Speed == 0 {
		return fmt.Errorf("behavior config: speed must be positive")
	}
	if c.MaxWait < c.MinWait {
		return fmt.Errorf("behavior config: max_wait %v is below min_wait %v", c.MaxWait, c.MinWait)
	}
	if c.TurnSpeed > 1 {
		return fmt.Errorf("behavior config: turn_speed must not exceed 1")
	}
	if c.ScanSampleCount < 0 {
		return fmt.Errorf("behavior config: scan_sample_count must not be negative")
	}
	return nil
}

// FromPreset converts a config file preset into a tuning record and policy.
func FromPreset(p config.BehaviorPreset) (BehaviorConfig, Policy, error) {
	policy, err := ParsePolicy(p.Policy)
	if err != nil {
		return BehaviorConfig{}, Wander, err
	}
	bounce := p.BounceDuration
	if bounce == 0 {
		bounce = DefaultBounceDuration
	}
	cfg := BehaviorConfig{
		Speed:            p.Speed,
		WanderDistance:   p.WanderDistance,
		MinWait:          p.MinWait,
		MaxWait:          p.MaxWait,
		ArrivalThreshold: p.ArrivalThreshold,
		TurnSpeed:        p.TurnSpeed,
		IdleScanRadius:   p.IdleScanRadius,
		ScanSampleCount:  p.ScanSampleCount,
		BounceDuration:   bounce,
	}
	return cfg, policy, cfg.Validate()
}
