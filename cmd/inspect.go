// File: cmd/inspect.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hpcloud/tail"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfarer/api/schemas"
	"github.com/xkilldash9x/wayfarer/internal/observability"
	"github.com/xkilldash9x/wayfarer/internal/simulation"
)

// newInspectCmd creates the `inspect` command.
func newInspectCmd() *cobra.Command {
	var follow bool
	var agentName string

	inspectCmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Summarize a frame recording",
		Long: `Prints one line per recorded frame with the number of moving agents and
the per-state tallies. With --follow the file is tailed while a run is still
writing it; compressed (.br) recordings cannot be followed.`,
		Args: cobra.ExactArgs(1),
		// Reading a recording needs no config; the logger falls back to development.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if follow {
				return followRecording(cmd.Context(), args[0], agentName, out)
			}
			return inspectRecording(args[0], agentName, out)
		},
	}

	inspectCmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep reading as frames are appended")
	inspectCmd.Flags().StringVarP(&agentName, "agent", "a", "", "Also print the state and position of this agent")
	return inspectCmd
}

// inspectRecording prints every frame of a finished recording.
func inspectRecording(path, agentName string, out io.Writer) error {
	rr, err := simulation.OpenRecording(path)
	if err != nil {
		return err
	}
	defer rr.Close()

	frames := 0
	for {
		frame, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		frames++
		fmt.Fprintln(out, describeFrame(frame, agentName))
	}
	fmt.Fprintf(out, "%d frames\n", frames)
	return nil
}

// followRecording tails a plain recording until ctx is done.
func followRecording(ctx context.Context, path, agentName string, out io.Writer) error {
	if strings.HasSuffix(path, simulation.CompressedSuffix) {
		return fmt.Errorf("cannot follow a compressed recording: %s", path)
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return err
	}

	t, err := tail.TailFile(expanded, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to follow %s: %w", expanded, err)
	}
	defer t.Cleanup()
	defer func() { _ = t.Stop() }()

	logger := observability.GetLogger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				logger.Warn("Error reading from recording", zap.Error(line.Err))
				continue
			}
			if strings.TrimSpace(line.Text) == "" {
				continue
			}
			frame, err := simulation.DecodeFrame([]byte(line.Text))
			if err != nil {
				logger.Warn("Skipping undecodable line", zap.Error(err))
				continue
			}
			fmt.Fprintln(out, describeFrame(frame, agentName))
		}
	}
}

func describeFrame(f schemas.FrameRecord, agentName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "frame %6d  t=%8.2fs  moving %3d/%-3d", f.Frame, f.Time, f.MovingCount(), len(f.Agents))
	counts := f.StateCounts()
	for _, s := range f.SortedStates() {
		fmt.Fprintf(&b, "  %s:%d", s, counts[s])
	}
	if agentName != "" {
		if a, ok := f.Agent(agentName); ok {
			fmt.Fprintf(&b, "  | %s %s (%.2f, %.2f, %.2f)", a.Name, a.State, a.Position[0], a.Position[1], a.Position[2])
		} else {
			fmt.Fprintf(&b, "  | %s absent", agentName)
		}
	}
	return b.String()
}
