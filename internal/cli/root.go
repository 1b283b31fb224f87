// Package cli implements the cobra-based CLI commands for corelens.
//
// Each subcommand (run, report, list, info, check, runner, sandbox,
// dumps) is defined in its own file within this package. This file
// defines the root command that serves as the parent for all
// subcommands and handles global flags.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/richl9/drgn-tools/internal/log"
	"github.com/richl9/drgn-tools/internal/model"
)

// Global flag variables shared across all subcommands, bound to
// cobra persistent flags on the root command.
var (
	// jsonOutput switches command output to structured JSON for
	// machine consumption.
	jsonOutput bool

	// verbose enables debug-level logging on stderr.
	verbose bool
)

// Version, Commit and Date are injected from the main package at
// build time via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates and configures the root cobra command. The
// root command itself performs no action — subcommands carry the
// functionality.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "corelens",
		Short: "Kernel core dump diagnostics",
		Long: `corelens runs diagnostic modules against kernel core dump snapshots:
lockup detection, workqueue watchdog analysis, in-flight block I/O,
and CRS eviction detection.

Dumps are analyzed directly (run, report), in configured batches
(runner), or inside Docker sandboxes (runner --docker, sandbox).`,

		// Errors are formatted by Execute, text or JSON per --json.
		SilenceUsage:  true,
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),

		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Configure(log.Config{Verbose: verbose})
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewReportCommand())
	rootCmd.AddCommand(NewListCommand())
	rootCmd.AddCommand(NewInfoCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewRunnerCommand())
	rootCmd.AddCommand(NewSandboxCommand())
	rootCmd.AddCommand(NewDumpsCommand())

	return rootCmd
}

// Execute runs the root command and translates errors into process
// exit codes. CLIErrors carry their own code; anything else exits 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		printError(err.Error(), nil)
		os.Exit(int(model.ExitGeneralError))
	}
}

// printError outputs an error in the format selected by --json.
// Errors go to stderr either way; stdout is reserved for report and
// command output.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// IsJSONOutput returns whether the --json flag is set. Subcommands
// use it to pick their output format.
func IsJSONOutput() bool {
	return jsonOutput
}
