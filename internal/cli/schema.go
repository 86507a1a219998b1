// Package cli holds utilities shared by the recall and recalld commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FlagDoc describes a single flag in the machine-readable command schema.
type FlagDoc struct {
	Name        string `json:"name"`
	Shorthand   string `json:"shorthand,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// CommandDoc describes a command tree for tooling that drives the CLI
// programmatically (completion generators, wrapper scripts).
type CommandDoc struct {
	Name        string       `json:"name"`
	Use         string       `json:"use,omitempty"`
	Description string       `json:"description,omitempty"`
	Flags       []FlagDoc    `json:"flags,omitempty"`
	Subcommands []CommandDoc `json:"subcommands,omitempty"`
}

// Describe builds the schema for cmd and its visible subcommands.
func Describe(cmd *cobra.Command) CommandDoc {
	doc := CommandDoc{
		Name:        cmd.Name(),
		Use:         cmd.Use,
		Description: cmd.Short,
		Flags:       flagDocs(cmd),
	}
	for _, sub := range cmd.Commands() {
		if sub.Hidden || sub.Name() == "help" {
			continue
		}
		doc.Subcommands = append(doc.Subcommands, Describe(sub))
	}
	return doc
}

func flagDocs(cmd *cobra.Command) []FlagDoc {
	var docs []FlagDoc
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "help" || f.Name == "help-json" {
			return
		}
		docs = append(docs, FlagDoc{
			Name:        f.Name,
			Shorthand:   f.Shorthand,
			Type:        f.Value.Type(),
			Default:     f.DefValue,
			Description: f.Usage,
		})
	})
	return docs
}

// HandleHelpJSON scans os.Args for --help-json and, if present, prints the
// schema for the addressed command and exits. Must run before Execute so the
// flag is handled ahead of argument validation.
func HandleHelpJSON(root *cobra.Command) {
	for i, arg := range os.Args {
		if arg != "--help-json" {
			continue
		}
		target := resolve(root, os.Args[1:i])
		out, err := json.MarshalIndent(Describe(target), "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "schema: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		os.Exit(0)
	}
}

func resolve(cmd *cobra.Command, args []string) *cobra.Command {
	if len(args) == 0 {
		return cmd
	}
	for _, sub := range cmd.Commands() {
		if sub.Name() == args[0] || sub.HasAlias(args[0]) {
			return resolve(sub, args[1:])
		}
	}
	return cmd
}
