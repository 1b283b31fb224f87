// Package cli — report.go implements the "corelens report" command.
//
// The report command runs every registered module with default
// arguments and writes one report file per module into an output
// directory, then prints a pass/fail summary. It is the one-shot
// "collect everything" entry point for a fresh dump.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/richl9/drgn-tools/internal/corelens"
	"github.com/richl9/drgn-tools/internal/diag"
	"github.com/richl9/drgn-tools/internal/dumps"
	"github.com/richl9/drgn-tools/internal/envconf"
	"github.com/richl9/drgn-tools/internal/model"
	"github.com/richl9/drgn-tools/internal/snapshot"
)

// reportFlags holds the flag values for the report command.
type reportFlags struct {
	// dump is the dump reference, as in the run command.
	dump string

	// dumpDir is the dump library directory used to resolve names.
	dumpDir string

	// outputDir receives one <module>.txt file per module.
	outputDir string

	// maxLineWidth truncates report lines when > 0.
	maxLineWidth int
}

// NewReportCommand creates the "report" cobra command.
func NewReportCommand() *cobra.Command {
	flags := &reportFlags{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a full diagnostic report for a dump",
		Long: `Run every registered module with default arguments and write one
report file per module into the output directory.

Examples:
  corelens report -d uek7-panic
  corelens report -d /dumps/uek7-panic.jsonc -o reports/uek7-panic`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), flags, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&flags.dump, "dump", "d", "", "Dump snapshot path or library name (required)")
	cmd.Flags().StringVar(&flags.dumpDir, "dump-dir", defaultDumpDir(), "Dump library directory")
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", "corelens-out", "Directory for per-module report files")
	cmd.Flags().IntVar(&flags.maxLineWidth, "max-line-width", envconf.DefaultMaxLineWidth, "Truncate report lines to this width (0 = no limit)")
	_ = cmd.MarkFlagRequired("dump")

	return cmd
}

// runReport is the main logic function for the report command.
func runReport(ctx context.Context, flags *reportFlags, out io.Writer) error {
	// Step 1: Resolve and load the dump.
	info, err := resolveDump(flags.dump, flags.dumpDir)
	if err != nil {
		return err
	}
	if info.Kind != dumps.KindSnapshot {
		return model.NewCLIError(model.ExitDumpNotFound,
			fmt.Sprintf("%s is a vmcore; modules need a snapshot (use \"corelens info\" for vmcore metadata)", info.Path))
	}
	prog, err := snapshot.Load(info.Path)
	if err != nil {
		return err
	}

	// Step 2: Run the full default suite into the output directory.
	invocations, err := corelens.DefaultInvocations(diag.Registry())
	if err != nil {
		return err
	}
	runner := &corelens.Runner{
		OutputDir:    flags.outputDir,
		MaxLineWidth: flags.maxLineWidth,
	}
	results, err := runner.Run(ctx, prog, invocations, io.Discard)
	if err != nil {
		return err
	}

	// Step 3: Summarize.
	printReportResult(out, info, results)
	for _, res := range results {
		if !res.OK() {
			return model.NewCLIError(model.ExitModuleFailed,
				fmt.Sprintf("module %s failed", res.Module))
		}
	}
	return nil
}

// printReportResult outputs the per-module summary in text or JSON
// format, depending on the global --json flag.
func printReportResult(out io.Writer, info *dumps.Info, results []model.ModuleResult) {
	if IsJSONOutput() {
		type resultJSON struct {
			Dump    string               `json:"dump"`
			Modules []model.ModuleResult `json:"modules"`
		}
		data, _ := json.MarshalIndent(resultJSON{Dump: info.Path, Modules: results}, "", "  ")
		fmt.Fprintln(out, string(data))
		return
	}

	fmt.Fprintf(out, "Report for %s\n\n", info.Path)
	fmt.Fprintf(out, "%-20s %-8s %-14s %s\n", "MODULE", "STATUS", "DURATION", "OUTPUT")
	for _, res := range results {
		status := "ok"
		if !res.OK() {
			status = "FAILED"
		}
		fmt.Fprintf(out, "%-20s %-8s %-14s %s\n",
			res.Module, status, res.Duration.Round(roundTo(res)), res.OutputPath)
	}
}

// roundTo picks a display granularity so sub-millisecond module runs
// do not print as "0s".
func roundTo(res model.ModuleResult) time.Duration {
	if res.Duration < time.Millisecond {
		return time.Microsecond
	}
	return time.Millisecond
}
