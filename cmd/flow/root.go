package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/flow/internal/cli"
	"github.com/aretw0/flow/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flow",
	Short: "Flow runs declarative request pipelines",
	Long: `Flow interprets an assembly of steps, switches, subflows and parallel
groups against a per-request context, dispatching each step to a registered task.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "flow.yaml", "Host configuration file")
	rootCmd.PersistentFlags().StringP("assembly", "a", "", "Assembly file (overrides the configured source)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
}

// setup resolves the configuration and logger shared by every command.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	flags := cmd.Flags()
	configPath, _ := flags.GetString("config")
	assembly, _ := flags.GetString("assembly")
	level, _ := flags.GetString("log-level")
	format, _ := flags.GetString("log-format")

	cfg, err := cli.LoadConfig(cli.Options{
		ConfigPath: configPath,
		Assembly:   assembly,
		LogLevel:   level,
		LogFormat:  format,
	}, flags.Changed("config"))
	if err != nil {
		return nil, nil, err
	}

	logger, err := cli.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
