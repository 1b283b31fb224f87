// Package cli — run.go implements the "corelens run" command.
//
// The run command loads a dump snapshot and executes diagnostic
// modules against it, streaming each module's report to stdout. By
// default every registered module runs with its default arguments; a
// subset (with arguments) can be selected with repeated -M flags.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/richl9/drgn-tools/internal/corelens"
	"github.com/richl9/drgn-tools/internal/diag"
	"github.com/richl9/drgn-tools/internal/dumps"
	"github.com/richl9/drgn-tools/internal/log"
	"github.com/richl9/drgn-tools/internal/model"
	"github.com/richl9/drgn-tools/internal/snapshot"
)

// runFlags holds the flag values for the run command.
// These are bound to cobra flags in NewRunCommand.
type runFlags struct {
	// dump is the dump reference: a snapshot file path, or a name
	// resolved against the dump library directory.
	dump string

	// modules are module run specs ("lockup -t 5"), one per -M flag.
	// Empty means every registered module with default arguments.
	modules []string

	// dumpDir is the dump library directory used to resolve names.
	dumpDir string

	// maxLineWidth truncates report lines when > 0.
	maxLineWidth int
}

// NewRunCommand creates the "run" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run diagnostic modules against a dump",
		Long: `Run diagnostic modules against a dump snapshot and stream the
reports to stdout.

Without -M every registered module runs with its default arguments.
Each -M flag selects one module, optionally with arguments.

Examples:
  corelens run -d /dumps/uek7-panic.jsonc
  corelens run -d uek7-panic -M "lockup -t 5" -M inflight-io`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.dump, "dump", "d", "", "Dump snapshot path or library name (required)")
	cmd.Flags().StringArrayVarP(&flags.modules, "module", "M", nil, "Module run spec, e.g. \"lockup -t 5\" (repeatable)")
	cmd.Flags().StringVar(&flags.dumpDir, "dump-dir", defaultDumpDir(), "Dump library directory")
	cmd.Flags().IntVar(&flags.maxLineWidth, "max-line-width", 0, "Truncate report lines to this width (0 = no limit)")
	_ = cmd.MarkFlagRequired("dump")

	return cmd
}

// runRun is the main logic function for the run command.
func runRun(ctx context.Context, flags *runFlags) error {
	logger := log.WithComponent("cli")

	// Step 1: Resolve the dump reference. Only snapshots carry the
	// object graph the modules read; vmcores are metadata-only here.
	info, err := resolveDump(flags.dump, flags.dumpDir)
	if err != nil {
		return err
	}
	if info.Kind != dumps.KindSnapshot {
		return model.NewCLIError(model.ExitDumpNotFound,
			fmt.Sprintf("%s is a vmcore; modules need a snapshot (use \"corelens info\" for vmcore metadata)", info.Path))
	}

	// Step 2: Parse the module specs into invocations.
	reg := diag.Registry()
	var invocations []*corelens.Invocation
	if len(flags.modules) == 0 {
		invocations, err = corelens.DefaultInvocations(reg)
	} else {
		invocations, err = corelens.ParseRunSpecs(reg, flags.modules)
	}
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid module spec", err)
	}

	// Step 3: Load the snapshot and run the batch.
	prog, err := snapshot.Load(info.Path)
	if err != nil {
		return err
	}
	logger.Debug().Str("dump", info.Path).Int("modules", len(invocations)).Msg("running modules")

	runner := &corelens.Runner{MaxLineWidth: flags.maxLineWidth}
	results, err := runner.Run(ctx, prog, invocations, os.Stdout)
	if err != nil {
		return err
	}

	// Step 4: A module failure is already reported inline; surface it
	// in the exit code.
	for _, res := range results {
		if !res.OK() {
			return model.NewCLIError(model.ExitModuleFailed,
				fmt.Sprintf("module %s failed", res.Module))
		}
	}
	return nil
}

// resolveDump maps a dump reference to its library entry. A reference
// that is an existing file resolves through its own directory, so run
// works on arbitrary paths without a configured library.
func resolveDump(ref, dir string) (*dumps.Info, error) {
	if fi, err := os.Stat(ref); err == nil && !fi.IsDir() {
		lib, err := dumps.Open(filepath.Dir(ref))
		if err != nil {
			return nil, err
		}
		return lib.Resolve(ref)
	}

	lib, err := dumps.Open(dir)
	if err != nil {
		return nil, err
	}
	return lib.Resolve(ref)
}

// defaultDumpDir returns the dump library directory: the
// DRGNTOOLS_DUMP_DIR environment variable when set, the current
// directory otherwise.
func defaultDumpDir() string {
	if dir := os.Getenv("DRGNTOOLS_DUMP_DIR"); dir != "" {
		return dir
	}
	return "."
}
