package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the appbridge application
var rootCmd = &cobra.Command{
	Use:   "appbridge",
	Short: "Databricks workspace tools over the Model Context Protocol",
	Long: `appbridge exposes Databricks workspace operations as MCP tools for AI
assistants.

It can run as:
  - An MCP server inside a Databricks App, acting on behalf of each caller
  - A local MCP server using the developer's own credentials
  - A CLI for interactive workspace login and agent queries`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "appbridge version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newVersionCmd())
}
