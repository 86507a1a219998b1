package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reverb-labs/recall/internal/cli"
	"github.com/reverb-labs/recall/internal/cli/client"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "recall",
		Short: "Recall CLI - conversational memory for AI agents",
		Long: `Recall CLI provides commands to index and search conversational memory.

Environment variables:
  RECALL_API_KEY   API key for authentication
  RECALL_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env)")

	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.SessionCmd())
	rootCmd.AddCommand(client.AddCmd())
	rootCmd.AddCommand(client.DeleteCmd())
	rootCmd.AddCommand(client.HealthCmd())

	rootCmd.PersistentFlags().Bool("help-json", false, "Output command schema as JSON")
	cli.HandleHelpJSON(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
