// File: cmd/view.go
package cmd

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/wayfarer/internal/observability"
	"github.com/xkilldash9x/wayfarer/internal/simulation"
	"github.com/xkilldash9x/wayfarer/internal/viewer"
)

// screenFactory opens the terminal. Tests substitute a simulation screen.
type screenFactory func() (tcell.Screen, error)

func newTerminalScreen() (tcell.Screen, error) {
	return tcell.NewScreen()
}

// newViewCmd creates the `view` command.
func newViewCmd(newScreen screenFactory) *cobra.Command {
	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "Watch a simulation live in the terminal",
		Long: `Runs a scenario in real time and draws it top-down.
Keys: q or Esc quits, space pauses every agent, p pauses the first agent.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{quietConsoleAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			scenario, err := loadScenario(cfg.Simulation().Scenario)
			if err != nil {
				return err
			}
			world := simulation.NewWorld(cfg.Simulation(), cfg.Archetypes(), logger)
			if err := world.Load(scenario); err != nil {
				return err
			}

			screen, err := newScreen()
			if err != nil {
				return fmt.Errorf("failed to open terminal: %w", err)
			}
			if err := screen.Init(); err != nil {
				return fmt.Errorf("failed to initialize terminal: %w", err)
			}
			defer screen.Fini()

			return viewer.New(screen, world, cfg.Viewer(), logger).Run(ctx)
		},
	}

	f := viewCmd.Flags()
	f.String("scenario", "", "Scenario YAML file. Defaults to the built-in clearing.")
	f.Int64("seed", 0, "Random seed (default from config)")
	f.Float64("dt", 0, "Seconds per frame (default from config)")
	f.Int("fps", 0, "Frames drawn per second (default from config)")
	return viewCmd
}
