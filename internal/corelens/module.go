package corelens

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"github.com/richl9/drgn-tools/internal/kernel"
)

// Module is one diagnostic. Implementations declare their flags on a
// pflag.FlagSet (mirroring how cobra commands declare theirs) and
// write their report to the provided writer.
type Module interface {
	// Name returns the module's registry name. Must satisfy
	// model.ValidateName.
	Name() string

	// Synopsis returns a one-line description for listings.
	Synopsis() string

	// AddFlags declares the module's flags. Implementations bind
	// flag values to their own fields; the runner parses the flag
	// set before calling Run.
	AddFlags(fs *pflag.FlagSet)

	// Run executes the diagnostic against prog, writing the report
	// to w. Returning an error marks the module failed without
	// aborting the rest of the batch.
	Run(ctx context.Context, prog kernel.Program, w io.Writer) error
}

// Factory creates a fresh Module instance. Registries store factories
// rather than instances so that flag state never leaks between
// invocations or concurrent environment runs.
type Factory func() Module
