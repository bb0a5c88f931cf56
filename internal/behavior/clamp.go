package behavior

import "github.com/xkilldash9x/wayfarer/internal/agent"

// Clamp pulls the agent's x and z back inside its declared world bounds.
// Targets are already clamped when chosen, so this only corrects drift from
// bounces and external placement.
func Clamp(a *agent.Agent) {
	if a == nil || !a.Bounds.IsSet() {
		return
	}
	a.Position = a.Bounds.Clamp(a.Position)
}
