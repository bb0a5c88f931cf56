// File: cmd/runs.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/wayfarer/api/schemas"
	"github.com/xkilldash9x/wayfarer/internal/config"
)

// newRunsCmd creates the `runs` command listing persisted runs.
func newRunsCmd(provider storeProvider) *cobra.Command {
	var limit int

	runsCmd := &cobra.Command{
		Use:   "runs [RUN_ID]",
		Short: "List persisted runs, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return listRuns(ctx, cfg, provider, runID, limit, cmd.OutOrStdout())
		},
	}
	runsCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	return runsCmd
}

func listRuns(ctx context.Context, cfg config.Interface, provider storeProvider, runID string, limit int, out io.Writer) error {
	s, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	var runs []schemas.RunSummary
	if runID != "" {
		run, err := s.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		runs = append(runs, run)
	} else if runs, err = s.ListRuns(ctx, limit); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSEED\tSCENARIO\tFRAMES\tSTARTED\tSTATUS")
	for _, r := range runs {
		status := string(schemas.RunRunning)
		if !r.FinishedAt.IsZero() {
			ended := r.Status
			if ended == "" || ended == schemas.RunRunning {
				ended = schemas.RunCompleted
			}
			status = string(ended) + " after " + r.Duration().Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%s\n",
			r.RunID, r.Seed, r.Scenario, r.Frames, r.StartedAt.Format(time.RFC3339), status)
	}
	return tw.Flush()
}
