package simulation

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/wayfarer/api/schemas"
	"github.com/xkilldash9x/wayfarer/internal/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Batch runs the same scenario under several seeds in parallel. Each seed gets
// its own World; nothing is shared between them.
type Batch struct {
	Sim      config.SimulationConfig
	Presets  map[string]config.BehaviorPreset
	Scenario *Scenario
	// Observers builds the frame observers for one run. It may be nil.
	Observers func(seed int64, w *World) ([]FrameObserver, error)
	Logger    *zap.Logger
}

// SeedRange returns n consecutive seeds starting at first.
func SeedRange(first int64, n int) []int64 {
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = first + int64(i)
	}
	return seeds
}

// Run executes one world per seed with at most Sim.Workers running at once.
// Summaries are returned in seed order. The first failure cancels the rest.
func (b *Batch) Run(ctx context.Context, seeds []int64) ([]schemas.RunSummary, error) {
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := b.Sim.Workers
	if workers <= 0 {
		workers = 1
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	summaries := make([]schemas.RunSummary, len(seeds))
	logger.Info("Starting batch.", zap.Int("runs", len(seeds)), zap.Int("workers", workers))

	for i, seed := range seeds {
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			cfg := b.Sim
			cfg.Seed = seed
			w := NewWorld(cfg, b.Presets, logger.With(zap.Int64("seed", seed)))
			if err := w.Load(b.Scenario); err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}

			var observers []FrameObserver
			if b.Observers != nil {
				obs, err := b.Observers(seed, w)
				if err != nil {
					return fmt.Errorf("seed %d: %w", seed, err)
				}
				observers = obs
			}

			summary, err := w.Run(groupCtx, cfg.Frames, observers...)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			summaries[i] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}
