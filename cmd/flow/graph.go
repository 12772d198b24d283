package main

import (
	"fmt"

	"github.com/aretw0/flow/internal/cli"
	"github.com/aretw0/flow/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the assembly as a Mermaid diagram",
	Long:  `Parses the assembly and outputs a Mermaid diagram (graph TD) of its steps and branches.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		asm, err := cli.LoadAssembly(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(asm, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
