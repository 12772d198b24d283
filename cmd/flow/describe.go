package main

import (
	"fmt"
	"os"

	"github.com/aretw0/flow/internal/cli"
	"github.com/aretw0/flow/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print an outline of the assembly",
	Long:  `Renders the assembly as a markdown outline. Output is styled when stdout is a terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		asm, err := cli.LoadAssembly(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		doc := tui.Describe(asm)
		out := cmd.OutOrStdout()
		fd := int(os.Stdout.Fd())
		if !term.IsTerminal(fd) {
			fmt.Fprint(out, doc)
			return nil
		}

		width, _, err := term.GetSize(fd)
		if err != nil {
			width = 0
		}
		render, err := tui.NewRenderer(width)
		if err != nil {
			return err
		}
		styled, err := render(doc)
		if err != nil {
			return err
		}
		tui.PrintBanner(out)
		fmt.Fprint(out, styled)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}
