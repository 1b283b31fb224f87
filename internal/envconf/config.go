package envconf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/richl9/drgn-tools/internal/model"
)

// DefaultMaxLineWidth is the report line width applied when the
// configuration does not set one. Diagnostic reports are meant to be
// diffable and readable on a plain terminal, so lines are clipped at
// the classic 80 columns.
const DefaultMaxLineWidth = 80

// DefaultPassEnv are the pass-through patterns applied to every
// environment on top of its own. They cover the tool's own variables
// and the CI systems the suite runs under.
var DefaultPassEnv = []string{
	"DRGNTOOLS_*",
	"GITLAB_CI",
	"GITHUB_ACTIONS",
	"VMCORE_*",
}

// Config is the parsed runner configuration.
type Config struct {
	// Environments lists the named environments, in file order.
	Environments []Environment `yaml:"environments"`

	// Defaults holds settings shared by every environment.
	Defaults Defaults `yaml:"defaults"`

	// Output holds report output settings.
	Output Output `yaml:"output"`

	// Dir is the directory the configuration file was loaded from.
	// Relative paths in the file resolve against it. Not part of the
	// YAML schema.
	Dir string `yaml:"-"`
}

// Environment binds one dump to a module suite.
type Environment struct {
	// Name identifies the environment. Must satisfy
	// model.ValidateName.
	Name string `yaml:"name"`

	// Dump is the path to the environment's snapshot file.
	Dump string `yaml:"dump"`

	// Vmcore optionally names the raw ELF vmcore the snapshot was
	// captured from, for metadata cross-checks.
	Vmcore string `yaml:"vmcore,omitempty"`

	// Modules lists module run specs ("lockup -t 5"). An empty list
	// means the full default suite.
	Modules []string `yaml:"modules,omitempty"`

	// Requires lists files that must exist for this environment to
	// run (auxiliary data the modules read).
	Requires []string `yaml:"requires,omitempty"`

	// PassEnv lists glob patterns of environment variables forwarded
	// into the environment's execution, in addition to the defaults.
	PassEnv []string `yaml:"passenv,omitempty"`
}

// Defaults holds settings shared by every environment.
type Defaults struct {
	// PassEnv lists glob patterns applied to every environment. When
	// absent, DefaultPassEnv is used.
	PassEnv []string `yaml:"passenv"`
}

// Output holds report output settings.
type Output struct {
	// Dir is the report output directory.
	Dir string `yaml:"dir"`

	// MaxLineWidth clips report lines. 0 means DefaultMaxLineWidth.
	MaxLineWidth int `yaml:"maxLineWidth"`
}

// Load reads and parses a configuration file, applying defaults.
// Validation is separate (Validate); Load only fails on I/O and YAML
// errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitConfigInvalid,
				fmt.Sprintf("config file not found: %s", path),
				err,
			)
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, model.WrapCLIError(
			model.ExitConfigInvalid,
			fmt.Sprintf("parsing config %s", path),
			err,
		)
	}

	cfg.Dir = filepath.Dir(path)
	if cfg.Defaults.PassEnv == nil {
		cfg.Defaults.PassEnv = append([]string(nil), DefaultPassEnv...)
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "corelens-out"
	}
	if cfg.Output.MaxLineWidth == 0 {
		cfg.Output.MaxLineWidth = DefaultMaxLineWidth
	}
	return &cfg, nil
}

// Environment returns the named environment.
func (c *Config) Environment(name string) (*Environment, bool) {
	for i := range c.Environments {
		if c.Environments[i].Name == name {
			return &c.Environments[i], true
		}
	}
	return nil, false
}

// ResolvePath resolves a path from the configuration file against
// the file's directory. Absolute paths pass through unchanged.
func (c *Config) ResolvePath(p string) string {
	if filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}

// PassEnvFor returns the effective pass-through patterns for an
// environment: the defaults followed by the environment's own.
func (c *Config) PassEnvFor(env *Environment) []string {
	patterns := append([]string(nil), c.Defaults.PassEnv...)
	return append(patterns, env.PassEnv...)
}
