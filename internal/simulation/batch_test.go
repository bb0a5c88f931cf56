package simulation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/wayfarer/api/schemas"
	"go.uber.org/zap/zaptest"
)

func TestSeedRange(t *testing.T) {
	assert.Equal(t, []int64{7, 8, 9}, SeedRange(7, 3))
	assert.Empty(t, SeedRange(1, 0))
}

func TestBatch_Run(t *testing.T) {
	sim := testSim()
	sim.Frames = 50
	sim.Workers = 2

	var frames atomic.Int64
	b := &Batch{
		Sim:      sim,
		Presets:  testPresets(),
		Scenario: DefaultScenario(),
		Logger:   zaptest.NewLogger(t),
		Observers: func(seed int64, w *World) ([]FrameObserver, error) {
			return []FrameObserver{FrameObserverFunc(func(context.Context, schemas.FrameRecord) error {
				frames.Add(1)
				return nil
			})}, nil
		},
	}

	seeds := SeedRange(100, 5)
	summaries, err := b.Run(context.Background(), seeds)
	require.NoError(t, err)
	require.Len(t, summaries, 5)
	for i, s := range summaries {
		assert.Equal(t, seeds[i], s.Seed, "summaries keep seed order")
		assert.Equal(t, 50, s.Frames)
		assert.Equal(t, "clearing", s.Scenario)
		assert.NotEmpty(t, s.RunID)
	}
	assert.Equal(t, int64(250), frames.Load())
}

func TestBatch_FirstFailureCancels(t *testing.T) {
	sim := testSim()
	sim.Frames = 10000
	sim.Workers = 3

	boom := errors.New("observer exploded")
	b := &Batch{
		Sim:      sim,
		Presets:  testPresets(),
		Scenario: DefaultScenario(),
		Observers: func(seed int64, w *World) ([]FrameObserver, error) {
			if seed == 2 {
				return nil, boom
			}
			return nil, nil
		},
	}

	_, err := b.Run(context.Background(), SeedRange(1, 3))
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "seed 2")
}

func TestBatch_BadScenario(t *testing.T) {
	b := &Batch{
		Sim:      testSim(),
		Presets:  testPresets(),
		Scenario: &Scenario{Agents: []AgentSpec{{Name: "x", Archetype: "unicorn"}}},
	}
	_, err := b.Run(context.Background(), []int64{1})
	assert.ErrorContains(t, err, "unknown archetype")
}
