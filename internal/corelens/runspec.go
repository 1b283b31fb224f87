package corelens

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

// Invocation is a module instance with its parsed arguments, ready to
// run.
type Invocation struct {
	// Module is the fresh module instance, its flag-bound fields
	// already populated from the run spec's arguments.
	Module Module

	// Args are the raw arguments from the run spec, kept for
	// reporting.
	Args []string
}

// ParseRunSpec parses a run spec — the module name optionally
// followed by its flags, e.g. "lockup -t 5" — against the registry.
//
// Module arguments are whitespace-separated; none of the modules take
// arguments that need quoting, so no shell-style splitting is done.
func ParseRunSpec(reg *Registry, spec string) (*Invocation, error) {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty module spec")
	}
	name, args := fields[0], fields[1:]

	mod, err := reg.New(name)
	if err != nil {
		return nil, err
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	mod.AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("module %s: %w", name, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("module %s: unexpected arguments: %v", name, fs.Args())
	}

	return &Invocation{Module: mod, Args: args}, nil
}

// ParseRunSpecs parses a list of run specs, failing on the first bad
// one.
func ParseRunSpecs(reg *Registry, specs []string) ([]*Invocation, error) {
	invocations := make([]*Invocation, 0, len(specs))
	for _, spec := range specs {
		inv, err := ParseRunSpec(reg, spec)
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
	}
	return invocations, nil
}

// DefaultInvocations creates a default-flag invocation for every
// registered module, in name order. This backs the "report" command,
// which runs the full suite.
func DefaultInvocations(reg *Registry) ([]*Invocation, error) {
	return ParseRunSpecs(reg, reg.Names())
}
