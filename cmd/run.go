// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfarer/api/schemas"
	"github.com/xkilldash9x/wayfarer/internal/config"
	"github.com/xkilldash9x/wayfarer/internal/observability"
	"github.com/xkilldash9x/wayfarer/internal/simulation"
	"github.com/xkilldash9x/wayfarer/internal/store"
	"github.com/xkilldash9x/wayfarer/internal/viewer"
)

// runOptions holds the flags of `run` that have no config key.
type runOptions struct {
	Seeds    int
	SVG      string
	SVGScale float64
}

// newRunCmd creates and configures the `run` command.
func newRunCmd(provider storeProvider) *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a headless simulation",
		Long: `Loads a scenario (the built-in clearing when none is given), steps every
agent for the configured number of frames and prints a summary per seed.
Frames can be recorded as JSON lines, persisted to PostgreSQL, and the final
frame exported as an SVG.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runSimulation(ctx, observability.GetLogger(), cfg, opts, provider, cmd.OutOrStdout())
		},
	}

	f := runCmd.Flags()
	f.String("scenario", "", "Scenario YAML file. Defaults to the built-in clearing.")
	f.Int("frames", 0, "Number of frames to simulate (default from config)")
	f.Float64("dt", 0, "Seconds per frame (default from config)")
	f.Int64("seed", 0, "Seed of the first run (default from config)")
	f.Int("workers", 0, "Maximum runs in parallel (default from config)")
	f.String("record", "", "Record frames as JSON lines to this file. A .br suffix compresses with brotli.")
	f.Int("every", 0, "Record one frame out of N (default from config)")
	f.Bool("persist", false, "Persist runs and frames to PostgreSQL (WAYFARER_DATABASE_URL)")
	f.IntVar(&opts.Seeds, "seeds", 1, "Number of consecutive seeds to run")
	f.StringVar(&opts.SVG, "svg", "", "Write the final frame as an SVG to this file")
	f.Float64Var(&opts.SVGScale, "svg-scale", 4, "Pixels per world unit in the SVG")

	return runCmd
}

// runSimulation contains the core, testable logic of the `run` command.
func runSimulation(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	opts runOptions,
	provider storeProvider,
	out io.Writer,
) error {
	scenario, err := loadScenario(cfg.Simulation().Scenario)
	if err != nil {
		return err
	}
	seeds := simulation.SeedRange(cfg.Simulation().Seed, max(1, opts.Seeds))

	var st *store.Store
	if cfg.Database().Persist {
		s, cleanup, err := provider.Create(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		if cleanup != nil {
			defer cleanup()
		}
		st = s
	}

	outputs := &runOutputs{
		ctx:      ctx,
		cfg:      cfg,
		opts:     opts,
		store:    st,
		scenario: scenario.Name,
		multi:    len(seeds) > 1,
		logger:   logger,
		runs:     make(map[int64]*seedRun, len(seeds)),
	}
	batch := &simulation.Batch{
		Sim:       cfg.Simulation(),
		Presets:   cfg.Archetypes(),
		Scenario:  scenario,
		Observers: outputs.observers,
		Logger:    logger,
	}

	logger.Info("Starting simulation",
		zap.String("scenario", scenario.Name),
		zap.Int("seeds", len(seeds)),
		zap.Int("frames", cfg.Simulation().Frames))

	summaries, runErr := batch.Run(ctx, seeds)
	// Finish what was recorded even when the run was interrupted.
	closeErr := outputs.close(context.WithoutCancel(ctx), runErr == nil)
	if err := errors.Join(runErr, closeErr); err != nil {
		return err
	}

	printSummaries(out, summaries)
	return nil
}

func loadScenario(path string) (*simulation.Scenario, error) {
	if path == "" {
		return simulation.DefaultScenario(), nil
	}
	s, err := simulation.LoadScenario(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario: %w", err)
	}
	return s, nil
}

// seedRun is everything attached to the world of one seed.
type seedRun struct {
	seed     int64
	world    *simulation.World
	recorder *simulation.Recorder
	sink     *store.FrameSink
}

// runOutputs wires recorders and database sinks to every world of a batch.
type runOutputs struct {
	ctx      context.Context
	cfg      config.Interface
	opts     runOptions
	store    *store.Store
	scenario string
	multi    bool
	logger   *zap.Logger

	mu   sync.Mutex
	runs map[int64]*seedRun
}

// observers is called from the batch workers, once per seed.
func (o *runOutputs) observers(seed int64, w *simulation.World) ([]simulation.FrameObserver, error) {
	run := &seedRun{seed: seed, world: w}
	o.mu.Lock()
	o.runs[seed] = run
	o.mu.Unlock()

	var observers []simulation.FrameObserver
	if path := o.cfg.Recording().Path; path != "" {
		rec, err := simulation.NewRecorder(o.pathFor(path, seed), o.cfg.Recording().Every)
		if err != nil {
			return nil, err
		}
		run.recorder = rec
		observers = append(observers, rec)
	}

	if o.store != nil {
		err := o.store.CreateRun(o.ctx, schemas.RunSummary{
			RunID:     w.RunID().String(),
			Seed:      seed,
			Scenario:  o.scenario,
			StartedAt: time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		run.sink = store.NewFrameSink(o.store, o.cfg.Database().FlushEvery)
		observers = append(observers, run.sink)
	}
	return observers, nil
}

// close flushes and closes every output in seed order. The SVG is only
// written for runs that completed.
func (o *runOutputs) close(ctx context.Context, completed bool) error {
	o.mu.Lock()
	runs := make([]*seedRun, 0, len(o.runs))
	for _, r := range o.runs {
		runs = append(runs, r)
	}
	o.mu.Unlock()
	sort.Slice(runs, func(i, j int) bool { return runs[i].seed < runs[j].seed })

	var errs []error
	for _, r := range runs {
		if r.sink != nil {
			if err := r.sink.Flush(ctx); err != nil {
				errs = append(errs, fmt.Errorf("seed %d: %w", r.seed, err))
			}
			status := schemas.RunCompleted
			if !completed {
				status = schemas.RunInterrupted
			}
			err := o.store.FinishRun(ctx, schemas.RunSummary{
				RunID:      r.world.RunID().String(),
				Frames:     r.world.Frame(),
				Status:     status,
				FinishedAt: time.Now().UTC(),
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("seed %d: %w", r.seed, err))
			}
			o.logger.Info("Run persisted",
				zap.Int64("seed", r.seed),
				zap.String("status", string(status)),
				zap.Int64("rows", r.sink.Copied()))
		}
		if r.recorder != nil {
			if err := r.recorder.Close(); err != nil {
				errs = append(errs, fmt.Errorf("seed %d: closing recording: %w", r.seed, err))
			}
		}
		if completed && o.opts.SVG != "" {
			path := o.pathFor(o.opts.SVG, r.seed)
			if err := viewer.SaveSVG(path, viewer.SceneOf(r.world), o.opts.SVGScale); err != nil {
				errs = append(errs, fmt.Errorf("seed %d: %w", r.seed, err))
				continue
			}
			o.logger.Info("Final frame exported", zap.String("path", path))
		}
	}
	return errors.Join(errs...)
}

// pathFor gives each seed its own file when several seeds run:
// run.jsonl.br becomes run-seed7.jsonl.br.
func (o *runOutputs) pathFor(path string, seed int64) string {
	if !o.multi {
		return path
	}
	dir, base := filepath.Split(path)
	suffix := fmt.Sprintf("-seed%d", seed)
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i] + suffix + base[i:]
	} else {
		base += suffix
	}
	return dir + base
}

// printSummaries writes one line per run.
func printSummaries(out io.Writer, summaries []schemas.RunSummary) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEED\tRUN\tFRAMES\tAGENTS\tWALL\tFINAL STATES")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n",
			s.Seed, s.RunID, s.Frames, s.Agents, s.Duration().Round(time.Millisecond), formatStates(s.Final))
	}
	_ = tw.Flush()
}

func formatStates(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s:%d", name, counts[name])
	}
	return strings.Join(parts, " ")
}
