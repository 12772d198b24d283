package main

import (
	"fmt"
	"os"

	"github.com/aretw0/flow/internal/compiler"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish <file>",
	Short: "Publish an assembly to the redis source",
	Long: `Parses the given assembly file and stores it under the configured redis key,
notifying running servers through the change channel.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("redis-addr"); addr != "" {
			cfg.Redis.Addr = addr
		}
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis address is required (config redis.addr or --redis-addr)")
		}

		doc, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if _, err := compiler.NewParser().Parse(doc); err != nil {
			return err
		}

		loader := cfg.Redis.NewLoader()
		defer loader.Close()
		if err := loader.Publish(cmd.Context(), doc); err != nil {
			return fmt.Errorf("failed to publish: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Published %s to %s\n", args[0], cfg.Redis.Addr)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().String("redis-addr", "", "Redis address (overrides config)")
}
