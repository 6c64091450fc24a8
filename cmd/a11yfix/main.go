// CLAUDE:SUMMARY a11yfix CLI: fix a page offline, serve the HTTP API, expose MCP tools over stdio, manage the description cache.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:          "a11yfix",
	Short:        "Repair accessibility violations reported by axe",
	Long:         "a11yfix applies removals, heuristics and model-assisted rewrites to fix the violations of an axe report in the page it was taken from.",
	SilenceUsage: true,
}

func main() {
	rootCmd.Version = version

	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(cacheCmd)

	rootCmd.PersistentFlags().String("config", "a11yfix.yaml", "YAML configuration file (optional)")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error (overrides log_level)")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
