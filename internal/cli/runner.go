// Package cli — runner.go implements the "corelens runner" command.
//
// The runner command executes the configured environments: each
// environment's dump is loaded and its module suite run, with the
// per-module reports and a manifest written under the configured
// output directory. With --docker the environments are launched as
// detached sandbox containers instead of running in-process.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/richl9/drgn-tools/internal/diag"
	"github.com/richl9/drgn-tools/internal/envconf"
	"github.com/richl9/drgn-tools/internal/model"
	"github.com/richl9/drgn-tools/internal/runner"
	"github.com/richl9/drgn-tools/internal/sandbox"
)

// runnerFlags holds the flag values for the runner command.
type runnerFlags struct {
	// config is the runner configuration file.
	config string

	// jobs bounds environment parallelism.
	jobs int

	// envs restricts the run to the named environments.
	envs []string

	// dockerImage, when set, launches each environment as a detached
	// sandbox container from this image instead of running locally.
	dockerImage string
}

// NewRunnerCommand creates the "runner" cobra command.
func NewRunnerCommand() *cobra.Command {
	flags := &runnerFlags{}

	cmd := &cobra.Command{
		Use:   "runner",
		Short: "Run the configured environments",
		Long: `Run every environment from the configuration file: load its dump,
execute its module suite, and write per-module reports plus a
manifest.yaml summary into the output directory.

With --docker each environment is launched as a detached container
instead; use "corelens sandbox list" to track them.

Examples:
  corelens runner -c corelens.yaml
  corelens runner -c corelens.yaml --jobs 4 --env uek7-panic
  corelens runner -c corelens.yaml --docker corelens:latest`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunner(cmd.Context(), flags, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&flags.config, "config", "c", "corelens.yaml", "Runner configuration file")
	cmd.Flags().IntVarP(&flags.jobs, "jobs", "j", 1, "Environments to run in parallel")
	cmd.Flags().StringArrayVar(&flags.envs, "env", nil, "Run only the named environment (repeatable)")
	cmd.Flags().StringVar(&flags.dockerImage, "docker", "", "Launch environments as sandbox containers from this image")

	return cmd
}

// runRunner is the main logic function for the runner command.
func runRunner(ctx context.Context, flags *runnerFlags, out io.Writer) error {
	// Step 1: Load and validate the configuration. Running against a
	// broken config would produce confusing per-environment failures.
	cfg, err := envconf.Load(flags.config)
	if err != nil {
		return err
	}
	if findings := envconf.Validate(cfg, diag.Registry()); len(findings) > 0 {
		printCheckResult(out, flags.config, findings)
		return model.NewCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("%s: %d problem(s) found", flags.config, len(findings)))
	}

	// Step 2: Docker mode hands the environments to sandbox
	// containers and returns without waiting for them.
	if flags.dockerImage != "" {
		return launchSandboxes(ctx, cfg, flags, out)
	}

	// Step 3: Local mode runs everything in-process.
	results, err := runner.New(diag.Registry()).Run(ctx, cfg, runner.Options{
		Jobs: flags.jobs,
		Only: flags.envs,
	})
	if err != nil {
		return err
	}

	printRunnerResult(out, results)
	if code := runner.ExitCode(results); code != int(model.ExitSuccess) {
		return model.NewCLIError(model.ExitCode(code), "one or more environments failed")
	}
	return nil
}

// launchSandboxes starts one detached sandbox container per selected
// environment. Unknown --env names fail before anything launches,
// matching local mode; the daemon is pinged first so a dead daemon
// fails once up front instead of once per environment.
func launchSandboxes(ctx context.Context, cfg *envconf.Config, flags *runnerFlags, out io.Writer) error {
	envs, err := runner.SelectEnvs(cfg, flags.envs)
	if err != nil {
		return err
	}

	cli, err := sandbox.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()
	if err := cli.Ping(ctx); err != nil {
		return err
	}

	for _, env := range envs {
		id, err := sandbox.Launch(ctx, launchSpec(cfg, env, flags.dockerImage))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-20s %s\n", env.Name, id)
	}
	return nil
}

// launchSpec builds the sandbox launch for one environment. The
// configured passenv globs are resolved against the current process
// environment here: the container receives KEY=value entries, never
// the patterns themselves.
func launchSpec(cfg *envconf.Config, env *envconf.Environment, image string) sandbox.LaunchSpec {
	return sandbox.LaunchSpec{
		Image:    image,
		EnvName:  env.Name,
		DumpPath: cfg.ResolvePath(env.Dump),
		PassEnv:  envconf.PassEnv(cfg.PassEnvFor(env)),
		Modules:  env.Modules,
	}
}

// printRunnerResult outputs the per-environment summary in text or
// JSON format, depending on the global --json flag.
func printRunnerResult(out io.Writer, results []model.EnvResult) {
	if IsJSONOutput() {
		type resultJSON struct {
			Environments []model.EnvResult `json:"environments"`
		}
		data, _ := json.MarshalIndent(resultJSON{Environments: results}, "", "  ")
		fmt.Fprintln(out, string(data))
		return
	}

	fmt.Fprintf(out, "%-20s %-8s %-14s %s\n", "ENVIRONMENT", "STATUS", "DURATION", "FAILED MODULES")
	for i := range results {
		res := &results[i]
		failed := "-"
		if names := res.Failed(); len(names) > 0 {
			failed = strings.Join(names, ",")
		}
		fmt.Fprintf(out, "%-20s %-8s %-14s %s\n",
			res.Name, res.Status, res.Duration.Round(time.Millisecond), failed)
	}
}
