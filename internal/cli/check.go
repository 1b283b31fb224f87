// Package cli — check.go implements the "corelens check" command.
//
// The check command loads a runner configuration and validates it
// without running anything: environment names, dump paths, module
// specs and passenv globs are all verified against the same rules the
// runner applies. Findings are printed one per line; any finding
// makes the command exit with the invalid-config code.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/richl9/drgn-tools/internal/diag"
	"github.com/richl9/drgn-tools/internal/envconf"
	"github.com/richl9/drgn-tools/internal/model"
)

// checkFlags holds the flag values for the check command.
type checkFlags struct {
	// config is the runner configuration file to validate.
	config string
}

// NewCheckCommand creates the "check" cobra command.
func NewCheckCommand() *cobra.Command {
	flags := &checkFlags{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a runner configuration",
		Long: `Load a runner configuration file and report every problem it has:
missing dumps, unknown modules, malformed module arguments, bad
passenv globs, duplicate environment names.

Exit code 0 means the configuration is valid.

Examples:
  corelens check -c corelens.yaml
  corelens check -c corelens.yaml --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(flags, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&flags.config, "config", "c", "corelens.yaml", "Runner configuration file")

	return cmd
}

// runCheck is the main logic function for the check command.
func runCheck(flags *checkFlags, out io.Writer) error {
	cfg, err := envconf.Load(flags.config)
	if err != nil {
		return err
	}

	findings := envconf.Validate(cfg, diag.Registry())
	printCheckResult(out, flags.config, findings)

	if len(findings) > 0 {
		return model.NewCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("%s: %d problem(s) found", flags.config, len(findings)))
	}
	return nil
}

// printCheckResult outputs the validation findings in text or JSON
// format, depending on the global --json flag.
func printCheckResult(out io.Writer, path string, findings []envconf.ValidationError) {
	if IsJSONOutput() {
		type findingJSON struct {
			Field   string `json:"field"`
			Message string `json:"message"`
		}
		type resultJSON struct {
			Config   string        `json:"config"`
			Valid    bool          `json:"valid"`
			Findings []findingJSON `json:"findings"`
		}
		result := resultJSON{
			Config:   path,
			Valid:    len(findings) == 0,
			Findings: make([]findingJSON, 0, len(findings)),
		}
		for _, f := range findings {
			result.Findings = append(result.Findings, findingJSON{Field: f.Field, Message: f.Message})
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(out, string(data))
		return
	}

	if len(findings) == 0 {
		fmt.Fprintf(out, "%s: OK\n", path)
		return
	}
	for _, f := range findings {
		fmt.Fprintf(out, "%s: %s\n", path, f.Error())
	}
}
