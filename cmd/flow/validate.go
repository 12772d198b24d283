package main

import (
	"fmt"

	"github.com/aretw0/flow/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the assembly against the task registry",
	Long:  `Parses and compiles the assembly, reporting unknown tasks, malformed nodes and invalid switch conditions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		engine, closeFn, err := cli.NewEngine(cfg, logger)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		defer closeFn()

		snap := engine.Snapshot()
		fmt.Fprintf(cmd.OutOrStdout(), "Assembly is valid! ✅ (version %q, %d top-level nodes)\n",
			snap.Version(), len(snap.Assembly().Nodes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
