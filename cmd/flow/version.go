package main

import (
	"fmt"

	"github.com/aretw0/flow"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of flow",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "flow version %s\n", flow.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
