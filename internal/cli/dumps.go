// Package cli — dumps.go implements the "corelens dumps" command.
//
// The dumps command lists the dump library: every snapshot and vmcore
// in the library directory, with kind, size and modification time.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/richl9/drgn-tools/internal/dumps"
)

// dumpsFlags holds the flag values for the dumps command.
type dumpsFlags struct {
	// dumpDir is the dump library directory to list.
	dumpDir string
}

// NewDumpsCommand creates the "dumps" cobra command.
func NewDumpsCommand() *cobra.Command {
	flags := &dumpsFlags{}

	cmd := &cobra.Command{
		Use:   "dumps",
		Short: "List the dump library",
		Long: `List every dump in the library directory. Snapshots (*.json, *.jsonc)
and vmcores (vmcore*, *.core) are listed; everything else is ignored.

Examples:
  corelens dumps
  corelens dumps --dump-dir /dumps --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDumps(flags, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&flags.dumpDir, "dump-dir", defaultDumpDir(), "Dump library directory")

	return cmd
}

// runDumps is the main logic function for the dumps command.
func runDumps(flags *dumpsFlags, out io.Writer) error {
	lib, err := dumps.Open(flags.dumpDir)
	if err != nil {
		return err
	}
	all, err := lib.List()
	if err != nil {
		return err
	}
	printDumpsList(out, all)
	return nil
}

// dumpJSON is the JSON output structure for a single dump in the
// dumps command.
type dumpJSON struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Size    int64  `json:"size"`
	ModTime string `json:"modTime"`
}

// printDumpsList outputs the dump list in text or JSON format,
// depending on the global --json flag.
func printDumpsList(out io.Writer, all []dumps.Info) {
	if IsJSONOutput() {
		type resultJSON struct {
			Dumps []dumpJSON `json:"dumps"`
		}
		result := resultJSON{Dumps: make([]dumpJSON, 0, len(all))}
		for _, d := range all {
			result.Dumps = append(result.Dumps, dumpJSON{
				Name:    d.Name,
				Path:    d.Path,
				Kind:    string(d.Kind),
				Size:    d.Size,
				ModTime: d.ModTime.UTC().Format(time.RFC3339),
			})
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(out, string(data))
		return
	}

	if len(all) == 0 {
		fmt.Fprintln(out, "No dumps found.")
		return
	}

	fmt.Fprintf(out, "%-24s %-10s %-12s %s\n", "NAME", "KIND", "SIZE", "MODIFIED")
	for _, d := range all {
		fmt.Fprintf(out, "%-24s %-10s %-12s %s\n",
			d.Name, d.Kind, formatSize(d.Size), d.ModTime.UTC().Format("2006-01-02 15:04"))
	}
}

// formatSize renders a byte count with a binary unit suffix.
func formatSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
