// Package cli — list.go implements the "corelens list" command.
//
// The list command displays the registered diagnostic modules with
// their synopses, as a text table or a JSON array depending on the
// --json flag.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/richl9/drgn-tools/internal/corelens"
	"github.com/richl9/drgn-tools/internal/diag"
)

// NewListCommand creates the "list" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available diagnostic modules",
		Long: `List the registered diagnostic modules and what each one reports.

Examples:
  corelens list
  corelens list --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			printModuleList(cmd.OutOrStdout(), diag.Registry())
			return nil
		},
	}
}

// moduleJSON is the JSON output structure for a single module in the
// list command.
type moduleJSON struct {
	Name     string `json:"name"`
	Synopsis string `json:"synopsis"`
}

// printModuleList outputs the module list in text or JSON format,
// depending on the global --json flag.
func printModuleList(out io.Writer, reg *corelens.Registry) {
	names := reg.Names()

	if IsJSONOutput() {
		type resultJSON struct {
			Modules []moduleJSON `json:"modules"`
		}
		result := resultJSON{Modules: make([]moduleJSON, 0, len(names))}
		for _, name := range names {
			result.Modules = append(result.Modules, moduleJSON{
				Name:     name,
				Synopsis: reg.Synopsis(name),
			})
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(out, string(data))
		return
	}

	fmt.Fprintf(out, "%-20s %s\n", "MODULE", "SYNOPSIS")
	for _, name := range names {
		fmt.Fprintf(out, "%-20s %s\n", name, reg.Synopsis(name))
	}
}
