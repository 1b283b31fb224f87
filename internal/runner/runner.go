// Package runner executes configured environments: for each one it
// loads the dump, runs the module suite, and writes per-module
// report files plus a manifest summarizing the batch.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/richl9/drgn-tools/internal/corelens"
	"github.com/richl9/drgn-tools/internal/envconf"
	"github.com/richl9/drgn-tools/internal/log"
	"github.com/richl9/drgn-tools/internal/model"
	"github.com/richl9/drgn-tools/internal/snapshot"
)

// Options configures a batch run.
type Options struct {
	// Jobs bounds how many environments execute concurrently.
	// Values below 1 mean serial execution.
	Jobs int

	// Only restricts the run to the named environments. Empty means
	// all configured environments.
	Only []string
}

// Runner executes environments from a configuration against the
// module registry.
type Runner struct {
	Registry *corelens.Registry
}

// New returns a Runner over the given registry.
func New(reg *corelens.Registry) *Runner {
	return &Runner{Registry: reg}
}

// Run executes the configured environments and writes reports under
// the configured output directory:
//
//	<outdir>/<env>/<module>.txt
//	<outdir>/manifest.yaml
//
// An environment failure is recorded in its result, not returned;
// Run only errors on context cancellation or when report output
// cannot be written at all. Results come back in configuration
// order regardless of scheduling.
func (r *Runner) Run(ctx context.Context, cfg *envconf.Config, opts Options) ([]model.EnvResult, error) {
	envs, err := SelectEnvs(cfg, opts.Only)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating output directory %s", cfg.Output.Dir)
	}

	logger := log.WithComponent("runner")
	results := make([]model.EnvResult, len(envs))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Jobs > 1 {
		g.SetLimit(opts.Jobs)
	} else {
		g.SetLimit(1)
	}
	for i, env := range envs {
		i, env := i, env
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			logger.Info().Str("env", env.Name).Str("dump", env.Dump).Msg("environment started")
			results[i] = r.runEnv(gctx, cfg, env)
			logger.Info().
				Str("env", env.Name).
				Str("status", results[i].Status.String()).
				Dur("duration", results[i].Duration).
				Strs("failed", results[i].Failed()).
				Msg("environment finished")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := writeManifest(filepath.Join(cfg.Output.Dir, "manifest.yaml"), results); err != nil {
		return nil, err
	}
	return results, nil
}

// runEnv executes one environment's suite. All failure modes (dump
// unreadable, module errors) end in a failed result.
func (r *Runner) runEnv(ctx context.Context, cfg *envconf.Config, env *envconf.Environment) model.EnvResult {
	result := model.EnvResult{
		Name:      env.Name,
		Dump:      cfg.ResolvePath(env.Dump),
		Status:    model.StatusRunning,
		StartedAt: time.Now(),
	}
	defer func() {
		result.Duration = time.Since(result.StartedAt)
	}()

	prog, err := snapshot.Load(result.Dump)
	if err != nil {
		result.Status = model.StatusFailed
		result.Modules = []model.ModuleResult{{
			Module: "(load)",
			Err:    err,
			Error:  err.Error(),
		}}
		return result
	}

	invocations, err := r.invocationsFor(env)
	if err != nil {
		// Validated configs never hit this; an unvalidated config
		// still gets a coherent failure.
		result.Status = model.StatusFailed
		result.Modules = []model.ModuleResult{{
			Module: "(config)",
			Err:    err,
			Error:  err.Error(),
		}}
		return result
	}

	moduleRunner := &corelens.Runner{
		OutputDir:    filepath.Join(cfg.Output.Dir, env.Name),
		MaxLineWidth: cfg.Output.MaxLineWidth,
	}
	modules, err := moduleRunner.Run(ctx, prog, invocations, io.Discard)
	result.Modules = modules
	if err != nil || len(result.Failed()) > 0 {
		result.Status = model.StatusFailed
	} else {
		result.Status = model.StatusPassed
	}
	return result
}

// invocationsFor resolves an environment's module suite: its
// configured specs, or the full default suite when none are set.
func (r *Runner) invocationsFor(env *envconf.Environment) ([]*corelens.Invocation, error) {
	if len(env.Modules) == 0 {
		return corelens.DefaultInvocations(r.Registry)
	}
	return corelens.ParseRunSpecs(r.Registry, env.Modules)
}

// SelectEnvs resolves an environment-name filter against the
// configuration, in configuration order: no names selects everything,
// and an unknown name is an ExitEnvNotFound error rather than a
// silent skip.
func SelectEnvs(cfg *envconf.Config, only []string) ([]*envconf.Environment, error) {
	if len(only) == 0 {
		envs := make([]*envconf.Environment, len(cfg.Environments))
		for i := range cfg.Environments {
			envs[i] = &cfg.Environments[i]
		}
		return envs, nil
	}

	var envs []*envconf.Environment
	for _, name := range only {
		env, ok := cfg.Environment(name)
		if !ok {
			return nil, model.NewCLIError(
				model.ExitEnvNotFound,
				fmt.Sprintf("environment %q is not defined in the configuration", name),
			)
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// manifest is the YAML shape of the batch summary.
type manifest struct {
	GeneratedAt  time.Time         `yaml:"generatedAt"`
	Environments []model.EnvResult `yaml:"environments"`
}

// writeManifest writes the batch summary next to the reports.
func writeManifest(path string, results []model.EnvResult) error {
	data, err := yaml.Marshal(&manifest{
		GeneratedAt:  time.Now().UTC(),
		Environments: results,
	})
	if err != nil {
		return errors.Wrap(err, "encoding manifest")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing manifest %s", path)
	}
	return nil
}

// ExitCode maps a batch outcome to the process exit code: success
// only when every environment passed.
func ExitCode(results []model.EnvResult) int {
	for i := range results {
		if results[i].Status != model.StatusPassed {
			return int(model.ExitModuleFailed)
		}
	}
	return int(model.ExitSuccess)
}
