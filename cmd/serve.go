package cmd

import (
	"context"
	"fmt"

	"fabricmcp/internal/app"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveConfigPath points at the YAML configuration file. Defaults and
// environment overrides apply when the file is absent.
var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP proxy server",
	Long: `Starts the MCP proxy: launches the background inventory cache,
connects the slice write path to the orchestrator, and serves MCP tools
over the configured transport (streamable-http by default).

Configuration is read from the file given by --config, layered over
built-in defaults; FABRIC_* environment variables override both.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := app.New(serveConfigPath, serveDebug)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx, rootCmd.Version)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "config.yaml", "Path to the configuration file")
}
