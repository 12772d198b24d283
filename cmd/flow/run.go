package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/flow/internal/cli"
	"github.com/aretw0/flow/internal/presentation/graph"
	"github.com/aretw0/flow/internal/presentation/tui"
	"github.com/aretw0/flow/pkg/domain"
	"github.com/aretw0/flow/pkg/observability"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the assembly once",
	Long: `Runs the assembly against a single message and prints the resulting context as JSON.
The message is read from --message, or from stdin when --message is "-".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		message, _ := cmd.Flags().GetString("message")
		showGraph, _ := cmd.Flags().GetBool("graph")

		input := []byte(message)
		if message == "-" {
			input, err = io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read message: %w", err)
			}
		}

		trace := &cli.Trace{}
		engine, closeFn, err := cli.NewEngine(cfg, logger, trace.Hooks(), observability.AuditHooks(logger))
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		data, runErr := cli.RunOnce(ctx, engine, input)
		if data != nil {
			if err := cli.WriteContext(cmd.OutOrStdout(), data); err != nil {
				return err
			}
		}

		status := domain.StatusCompleted
		if runErr != nil {
			status = domain.StatusFailed
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "run %s\n", tui.Status(status))

		if showGraph {
			overlay := &graph.Overlay{VisitedNodes: trace.Visited(), FailedNode: trace.Failed()}
			fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(engine.Snapshot().Assembly(), overlay))
		}
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("message", "m", "", `Initial message as JSON ("-" reads stdin)`)
	runCmd.Flags().Bool("graph", false, "Print a Mermaid graph highlighting the visited steps")
}
