package corelens

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/richl9/drgn-tools/internal/kernel"
	"github.com/richl9/drgn-tools/internal/model"
)

// Runner executes a batch of module invocations against one program.
type Runner struct {
	// OutputDir, when set, receives one <module>.txt report file per
	// invocation instead of streaming everything to a single writer.
	OutputDir string

	// MaxLineWidth truncates report lines when > 0. It carries the
	// configured report width limit (default 80) from the runner
	// configuration into module output.
	MaxLineWidth int
}

// Run executes the invocations in order against prog. Each module's
// report is preceded by a section header; a module failure is
// recorded in its result and the batch continues, matching the
// expectation that one broken diagnostic must not cost the report of
// the others.
func (r *Runner) Run(ctx context.Context, prog kernel.Program, invocations []*Invocation, w io.Writer) ([]model.ModuleResult, error) {
	if r.OutputDir != "" {
		if err := os.MkdirAll(r.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	results := make([]model.ModuleResult, 0, len(invocations))
	for _, inv := range invocations {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, r.runOne(ctx, prog, inv, w))
	}
	return results, nil
}

// runOne executes a single invocation and converts its outcome
// (including a panic) into a ModuleResult.
func (r *Runner) runOne(ctx context.Context, prog kernel.Program, inv *Invocation, w io.Writer) model.ModuleResult {
	name := inv.Module.Name()
	result := model.ModuleResult{Module: name, Args: inv.Args}

	out := w
	var file *os.File
	if r.OutputDir != "" {
		path := filepath.Join(r.OutputDir, name+".txt")
		f, err := os.Create(path)
		if err != nil {
			result.Err = err
			result.Error = err.Error()
			return result
		}
		file = f
		out = f
		result.OutputPath = path
	} else {
		fmt.Fprintf(out, "====== MODULE %s ======\n", name)
	}
	if r.MaxLineWidth > 0 {
		out = NewLineLimitWriter(out, r.MaxLineWidth)
	}

	start := time.Now()
	err := runModule(ctx, inv.Module, prog, out)
	result.Duration = time.Since(start)

	if lw, ok := out.(*LineLimitWriter); ok {
		lw.Flush()
	}
	if file != nil {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	if err != nil {
		result.Err = err
		result.Error = err.Error()
		if r.OutputDir == "" {
			fmt.Fprintf(w, "corelens: module %s failed: %v\n", name, err)
		}
	}
	return result
}

// runModule calls the module with panic containment. A diagnostic
// tripping over an inconsistent dump must surface as that module's
// failure, not take down the whole report.
func runModule(ctx context.Context, mod Module, prog kernel.Program, w io.Writer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("module panicked: %v", r)
		}
	}()
	return mod.Run(ctx, prog, w)
}
