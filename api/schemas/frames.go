package schemas

import (
	"sort"
	"time"
)

// -- Recording Schemas --

// AgentSnapshot is the observable state of one agent at the end of a frame.
type AgentSnapshot struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Kind     string     `json:"kind,omitempty"`
	State    string     `json:"state"`
	Policy   string     `json:"policy"`
	Position [3]float64 `json:"position"`
	// Yaw is the heading about +Y in radians, zero along +Z.
	Yaw    float64 `json:"yaw"`
	Moving bool    `json:"moving"`
	Clip   string  `json:"clip,omitempty"`
	Paused bool    `json:"paused,omitempty"`
}

// FrameRecord is one line of a recording.
type FrameRecord struct {
	RunID  string          `json:"run_id"`
	Frame  int             `json:"frame"`
	Time   float64         `json:"time"`
	Agents []AgentSnapshot `json:"agents"`
}

// StateCounts tallies agents per state name.
func (f FrameRecord) StateCounts() map[string]int {
	counts := make(map[string]int, 4)
	for _, a := range f.Agents {
		counts[a.State]++
	}
	return counts
}

// Agent finds an agent by name.
func (f FrameRecord) Agent(name string) (AgentSnapshot, bool) {
	for _, a := range f.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentSnapshot{}, false
}

// MovingCount is the number of agents that moved in the frame.
func (f FrameRecord) MovingCount() int {
	n := 0
	for _, a := range f.Agents {
		if a.Moving {
			n++
		}
	}
	return n
}

// SortedStates returns the state names present in the frame in lexical order.
func (f FrameRecord) SortedStates() []string {
	counts := f.StateCounts()
	states := make([]string, 0, len(counts))
	for s := range counts {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}

// -- Run Schemas --

// RunStatus is how far a run got.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunInterrupted RunStatus = "interrupted"
)

// RunSummary describes one simulation run.
type RunSummary struct {
	RunID      string         `json:"run_id"`
	Seed       int64          `json:"seed"`
	Scenario   string         `json:"scenario"`
	Frames     int            `json:"frames"`
	Agents     int            `json:"agents"`
	Status     RunStatus      `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Final      map[string]int `json:"final_states"`
}

// Duration is the wall-clock time the run took.
func (r RunSummary) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
