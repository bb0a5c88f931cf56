// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/wayfarer/internal/config"
	"github.com/xkilldash9x/wayfarer/internal/observability"
)

// TestMain silences the global logger once; later Initialize calls are no-ops.
func TestMain(m *testing.M) {
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})
	os.Exit(m.Run())
}

// resetForTest provides the single source of truth for resetting test state.
func resetForTest(t *testing.T) {
	t.Helper()
	cfgFile = ""
	osExit = os.Exit
	// Keep config discovery away from any config.yaml in the working directory.
	t.Chdir(t.TempDir())
}

// executeCommand runs the full command tree with args and returns its output.
func executeCommand(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	if root == nil {
		root = newRootCmd()
	}
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// createTempConfig writes content to a config file in a fresh temp dir.
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// testConfig is the default configuration shortened for fast runs.
func testConfig(frames int) *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.SetSimulationFrames(frames)
	cfg.LoggerCfg.LogFile = ""
	return cfg
}
