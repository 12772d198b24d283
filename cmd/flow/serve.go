package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/flow/internal/cli"
	"github.com/aretw0/flow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assembly over HTTP",
	Long: `Exposes the assembly as an HTTP endpoint. Every request runs the flow with the
request under "request" and writes back "message". The assembly is hot reloaded
when its source changes. Metrics are served on /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.Listen = listen
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			return err
		}

		engine, closeFn, err := cli.NewEngine(cfg, logger, metrics.Hooks(), observability.AuditHooks(logger))
		if err != nil {
			return err
		}
		defer closeFn()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return cli.Serve(ctx, cfg.Listen, cli.NewRouter(engine, reg, logger), engine, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Address to listen on (default from config, :8080)")
}
