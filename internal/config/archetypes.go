// File: internal/config/archetypes.go
// This file defines the behavior presets for every creature and NPC kind the
// simulation knows about. A preset bundles the movement tuning (speed, roam
// distance, idle timing, turning) with the targeting policy, so a scenario can
// spawn a "bear" or a "mercenary" by name and only override what it needs.
package config

import "fmt"

// Policy names accepted in presets and scenario files.
const (
	PolicyWander         = "wander"
	PolicyPatrol         = "patrol"
	PolicyReactiveBounce = "reactive_bounce"
)

// BehaviorPreset is the config-file form of a behavior tuning record.
type BehaviorPreset struct {
	Policy           string  `mapstructure:"policy" yaml:"policy"`
	Speed            float64 `mapstructure:"speed" yaml:"speed"`
	WanderDistance   float64 `mapstructure:"wander_distance" yaml:"wander_distance"`
	MinWait          float64 `mapstructure:"min_wait" yaml:"min_wait"`
	MaxWait          float64 `mapstructure:"max_wait" yaml:"max_wait"`
	ArrivalThreshold float64 `mapstructure:"arrival_threshold" yaml:"arrival_threshold"`
	TurnSpeed        float64 `mapstructure:"turn_speed" yaml:"turn_speed"`
	IdleScanRadius   float64 `mapstructure:"idle_scan_radius" yaml:"idle_scan_radius"`
	ScanSampleCount  int     `mapstructure:"scan_sample_count" yaml:"scan_sample_count"`
	BounceDuration   float64 `mapstructure:"bounce_duration" yaml:"bounce_duration"`
}

// Validate checks a preset for values the state machine cannot work with.
func (p *BehaviorPreset) Validate() error {
	switch p.Policy {
	case PolicyWander, PolicyPatrol, PolicyReactiveBounce:
	default:
		return fmt.Errorf("policy must be one of %q, %q, %q", PolicyWander, PolicyPatrol, PolicyReactiveBounce)
	}
	if p.Speed <= 0 {
		return fmt.Errorf("speed must be positive")
	}
	if p.MinWait < 0 || p.MaxWait < p.MinWait {
		return fmt.Errorf("wait range must satisfy 0 <= min_wait <= max_wait")
	}
	if p.ArrivalThreshold <= 0 {
		return fmt.Errorf("arrival_threshold must be positive")
	}
	if p.TurnSpeed < 0 || p.TurnSpeed > 1 {
		return fmt.Errorf("turn_speed must be between 0.0 and 1.0")
	}
	if p.ScanSampleCount < 0 {
		return fmt.Errorf("scan_sample_count must not be negative")
	}
	if p.Policy == PolicyReactiveBounce && p.BounceDuration <= 0 {
		return fmt.Errorf("bounce_duration must be positive for %q", PolicyReactiveBounce)
	}
	return nil
}

type presetDefaults struct {
	name   string
	preset BehaviorPreset
}

var builtinPresets = []presetDefaults{
	{"bear", BehaviorPreset{Policy: PolicyWander, Speed: 1.0, WanderDistance: 15, MinWait: 1.5, MaxWait: 4, ArrivalThreshold: 0.5, TurnSpeed: 0.05, IdleScanRadius: 3, ScanSampleCount: 12, BounceDuration: 0.5}},
	{"chicken", BehaviorPreset{Policy: PolicyWander, Speed: 2.0, WanderDistance: 8, MinWait: 0.5, MaxWait: 2, ArrivalThreshold: 0.3, TurnSpeed: 0.2, IdleScanRadius: 3, ScanSampleCount: 12, BounceDuration: 0.5}},
	{"fox", BehaviorPreset{Policy: PolicyWander, Speed: 1.5, WanderDistance: 15, MinWait: 1, MaxWait: 3, ArrivalThreshold: 0.4, TurnSpeed: 0.1, IdleScanRadius: 3, ScanSampleCount: 12, BounceDuration: 0.5}},
	{"ranger", BehaviorPreset{Policy: PolicyWander, Speed: 1.5, WanderDistance: 10, MinWait: 0.2, MaxWait: 0.6, ArrivalThreshold: 0.3, TurnSpeed: 0.1, IdleScanRadius: 3, ScanSampleCount: 12, BounceDuration: 0.5}},
	{"mercenary", BehaviorPreset{Policy: PolicyReactiveBounce, Speed: 1.5, WanderDistance: 10, MinWait: 0.2, MaxWait: 0.6, ArrivalThreshold: 0.3, TurnSpeed: 0.1, IdleScanRadius: 3, ScanSampleCount: 12, BounceDuration: 0.5}},
	{"alien", BehaviorPreset{Policy: PolicyReactiveBounce, Speed: 1.5, WanderDistance: 20, MinWait: 0.5, MaxWait: 1.5, ArrivalThreshold: 0.5, TurnSpeed: 0.1, IdleScanRadius: 3, ScanSampleCount: 12, BounceDuration: 0.5}},
	{"sentinel", BehaviorPreset{Policy: PolicyPatrol, Speed: 1.0, WanderDistance: 0, MinWait: 0, MaxWait: 0, ArrivalThreshold: 0.3, TurnSpeed: 0.1, IdleScanRadius: 0, ScanSampleCount: 0, BounceDuration: 0.5}},
}

// setArchetypeDefaults registers the built-in presets under "archetypes.<name>".
func setArchetypeDefaults(v viperSetter) {
	for _, d := range builtinPresets {
		prefix := "archetypes." + d.name + "."
		v.SetDefault(prefix+"policy", d.preset.Policy)
		v.SetDefault(prefix+"speed", d.preset.Speed)
		v.SetDefault(prefix+"wander_distance", d.preset.WanderDistance)
		v.SetDefault(prefix+"min_wait", d.preset.MinWait)
		v.SetDefault(prefix+"max_wait", d.preset.MaxWait)
		v.SetDefault(prefix+"arrival_threshold", d.preset.ArrivalThreshold)
		v.SetDefault(prefix+"turn_speed", d.preset.TurnSpeed)
		v.SetDefault(prefix+"idle_scan_radius", d.preset.IdleScanRadius)
		v.SetDefault(prefix+"scan_sample_count", d.preset.ScanSampleCount)
		v.SetDefault(prefix+"bounce_duration", d.preset.BounceDuration)
	}
}

// viperSetter is the slice of *viper.Viper used for defaults.
type viperSetter interface {
	SetDefault(key string, value interface{})
}
