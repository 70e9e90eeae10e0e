package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command for the fabric-mcp application.
var rootCmd = &cobra.Command{
	Use:   "fabric-mcp",
	Short: "MCP proxy for the FABRIC testbed control plane",
	Long: `fabric-mcp exposes the FABRIC testbed's orchestrator, credential
manager, and core API as MCP tools: inventory queries served from a
background cache, slice lifecycle operations validated against a local
state machine, and project/key lookups.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// the application already reports.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from the main
// package to inject the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command. Called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "fabric-mcp version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
