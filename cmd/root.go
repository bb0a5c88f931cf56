// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/wayfarer/internal/config"
	"github.com/xkilldash9x/wayfarer/internal/observability"
)

var (
	cfgFile string
	osExit  = os.Exit
)

type contextKey string

const configKey contextKey = "config"

// quietConsoleAnnotation marks commands that own the terminal; their logs go
// to the log file only.
const quietConsoleAnnotation = "wayfarer/quiet-console"

// flagBindings maps command flags onto config keys so a flag, when set,
// overrides the config file and environment.
var flagBindings = map[string]string{
	"frames":   "simulation.frames",
	"dt":       "simulation.delta",
	"seed":     "simulation.seed",
	"workers":  "simulation.workers",
	"scenario": "simulation.scenario",
	"record":   "recording.path",
	"every":    "recording.every",
	"persist":  "database.persist",
	"fps":      "viewer.fps",
}

// newRootCmd builds the command tree. A fresh tree per call keeps tests isolated.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "wayfarer",
		Short:         "Wayfarer simulates wandering, patrolling and colliding NPCs.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "wayfarer"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.Initialize(cfg.Logger(), consoleWriterFor(cmd))
			observability.GetLogger().Debug("Starting wayfarer", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml or $HOME/.wayfarer/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	provider := NewStoreProvider()
	rootCmd.AddCommand(newRunCmd(provider))
	rootCmd.AddCommand(newRunsCmd(provider))
	rootCmd.AddCommand(newViewCmd(newTerminalScreen))
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the root command with a context that is cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	observability.Sync()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		osExit(1)
	}
}

// initializeConfig reads in the config file, environment variables and the
// flags of the executing command.
func initializeConfig(cmd *cobra.Command, v *viper.Viper) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.wayfarer")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("WAYFARER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagBindings[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	return bindErr
}

func consoleWriterFor(cmd *cobra.Command) zapcore.WriteSyncer {
	if cmd.Annotations[quietConsoleAnnotation] == "true" {
		return zapcore.AddSync(io.Discard)
	}
	return zapcore.Lock(os.Stdout)
}

// getConfigFromContext returns the configuration stored by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (config.Interface, error) {
	cfg, ok := ctx.Value(configKey).(config.Interface)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not found in context")
	}
	return cfg, nil
}
