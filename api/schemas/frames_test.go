package schemas

import (
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFrame() FrameRecord {
	return FrameRecord{
		RunID: "run-1",
		Frame: 12,
		Time:  0.2,
		Agents: []AgentSnapshot{
			{ID: "a", Name: "bear", State: "wandering", Moving: true},
			{ID: "b", Name: "fox", State: "waiting"},
			{ID: "c", Name: "ranger", State: "wandering", Moving: true, Paused: true},
		},
	}
}

func TestFrameRecord_Summaries(t *testing.T) {
	f := sampleFrame()
	assert.Equal(t, map[string]int{"wandering": 2, "waiting": 1}, f.StateCounts())
	assert.Equal(t, []string{"waiting", "wandering"}, f.SortedStates())
	assert.Equal(t, 2, f.MovingCount())

	fox, ok := f.Agent("fox")
	require.True(t, ok)
	assert.Equal(t, "b", fox.ID)
	_, ok = f.Agent("moose")
	assert.False(t, ok)
}

func TestFrameRecord_WireNames(t *testing.T) {
	data, err := json.Marshal(sampleFrame())
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "run_id")
	agents := raw["agents"].([]interface{})
	first := agents[0].(map[string]interface{})
	assert.Contains(t, first, "position")
	assert.NotContains(t, first, "clip", "empty clip is omitted")
	assert.NotContains(t, first, "paused")
}

func TestRunSummary_Duration(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := RunSummary{StartedAt: start}
	assert.Zero(t, r.Duration())
	r.FinishedAt = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, r.Duration())
}
