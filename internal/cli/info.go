// Package cli — info.go implements the "corelens info" command.
//
// The info command prints the metadata a dump carries without loading
// the full object graph: for vmcores the VMCOREINFO note and per-CPU
// PIDs read straight from the ELF core, for snapshots the system
// summary fields.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/richl9/drgn-tools/internal/dumps"
	"github.com/richl9/drgn-tools/internal/snapshot"
	"github.com/richl9/drgn-tools/internal/vmcore"
)

// infoFlags holds the flag values for the info command.
type infoFlags struct {
	// dumpDir is the dump library directory used to resolve names.
	dumpDir string
}

// NewInfoCommand creates the "info" cobra command.
func NewInfoCommand() *cobra.Command {
	flags := &infoFlags{}

	cmd := &cobra.Command{
		Use:   "info DUMP",
		Short: "Show dump metadata",
		Long: `Show the metadata of a dump: kernel release, page size, CPU count
and crash time. Works on both snapshots and raw ELF vmcores.

Examples:
  corelens info /dumps/vmcore-uek7
  corelens info uek7-panic --json`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0], flags, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&flags.dumpDir, "dump-dir", defaultDumpDir(), "Dump library directory")

	return cmd
}

// dumpMeta is the metadata common to both dump kinds, and the JSON
// output structure of the info command.
type dumpMeta struct {
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	Release   string `json:"release"`
	PageSize  uint64 `json:"pageSize"`
	CPUs      int    `json:"cpus"`
	CrashTime string `json:"crashTime,omitempty"`

	// CrashedPIDs are the per-CPU PIDs from the vmcore's PRSTATUS
	// notes, in note order. Empty for snapshots.
	CrashedPIDs []int `json:"crashedPids,omitempty"`
}

// runInfo is the main logic function for the info command.
func runInfo(ref string, flags *infoFlags, out io.Writer) error {
	info, err := resolveDump(ref, flags.dumpDir)
	if err != nil {
		return err
	}

	var meta dumpMeta
	switch info.Kind {
	case dumps.KindVmcore:
		meta, err = vmcoreMeta(info.Path)
	default:
		meta, err = snapshotMeta(info.Path)
	}
	if err != nil {
		return err
	}

	printInfoResult(out, meta)
	return nil
}

// vmcoreMeta reads the metadata out of a raw ELF vmcore.
func vmcoreMeta(path string) (dumpMeta, error) {
	core, err := vmcore.Open(path)
	if err != nil {
		return dumpMeta{}, err
	}
	defer func() { _ = core.Close() }()

	meta := dumpMeta{
		Path:        path,
		Kind:        string(dumps.KindVmcore),
		Release:     core.OSRelease(),
		PageSize:    core.PageSize(),
		CPUs:        core.CPUs(),
		CrashedPIDs: core.PrstatusPIDs(),
	}
	if ct := core.CrashTime(); !ct.IsZero() {
		meta.CrashTime = ct.UTC().Format(time.RFC3339)
	}
	return meta, nil
}

// snapshotMeta reads the metadata out of a snapshot.
func snapshotMeta(path string) (dumpMeta, error) {
	prog, err := snapshot.Load(path)
	if err != nil {
		return dumpMeta{}, err
	}

	sys := prog.Info()
	meta := dumpMeta{
		Path:     path,
		Kind:     string(dumps.KindSnapshot),
		Release:  sys.OSRelease,
		PageSize: sys.PageSize,
		CPUs:     len(prog.OnlineCPUs()),
	}
	if !sys.CrashTime.IsZero() {
		meta.CrashTime = sys.CrashTime.UTC().Format(time.RFC3339)
	}
	return meta, nil
}

// printInfoResult outputs the metadata in text or JSON format,
// depending on the global --json flag.
func printInfoResult(out io.Writer, meta dumpMeta) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(meta, "", "  ")
		fmt.Fprintln(out, string(data))
		return
	}

	crash := meta.CrashTime
	if crash == "" {
		crash = "unknown"
	}
	fmt.Fprintf(out, "%-12s %s\n", "PATH", meta.Path)
	fmt.Fprintf(out, "%-12s %s\n", "KIND", meta.Kind)
	fmt.Fprintf(out, "%-12s %s\n", "RELEASE", meta.Release)
	fmt.Fprintf(out, "%-12s %d\n", "PAGE SIZE", meta.PageSize)
	fmt.Fprintf(out, "%-12s %d\n", "CPUS", meta.CPUs)
	fmt.Fprintf(out, "%-12s %s\n", "CRASH TIME", crash)
	if len(meta.CrashedPIDs) > 0 {
		fmt.Fprintf(out, "%-12s %s\n", "CRASHED PIDS", formatPIDs(meta.CrashedPIDs))
	}
}

// formatPIDs renders the per-CPU PID list as a comma-separated
// string.
func formatPIDs(pids []int) string {
	parts := make([]string, 0, len(pids))
	for _, pid := range pids {
		parts = append(parts, strconv.Itoa(pid))
	}
	return strings.Join(parts, ",")
}
