package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reverb-labs/recall/internal/cli"
	"github.com/reverb-labs/recall/internal/cli/admin"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "recalld",
		Short: "Recall daemon",
		Long:  "Recall daemon for running the conversational memory API server",
	}

	rootCmd.PersistentFlags().Bool("help-json", false, "Output command schema as JSON")
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the daemon version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Println(version)
		},
	})

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.HandleHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
