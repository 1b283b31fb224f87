package diag

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/richl9/drgn-tools/internal/corelens"
	"github.com/richl9/drgn-tools/internal/kernel"
)

// sysInfo prints the dump's identifying facts. It runs first in the
// full report so every other module's output can be read against the
// kernel release and crash time it names.
type sysInfo struct{}

func newSysInfo() corelens.Module { return &sysInfo{} }

func (m *sysInfo) Name() string { return "sys" }

func (m *sysInfo) Synopsis() string {
	return "Print basic system and dump information"
}

func (m *sysInfo) AddFlags(fs *pflag.FlagSet) {}

func (m *sysInfo) Run(ctx context.Context, prog kernel.Program, w io.Writer) error {
	info := prog.Info()

	var table corelens.Table
	table.AddRow("RELEASE", info.OSRelease)
	table.AddRow("PAGE SIZE", fmt.Sprintf("%d", info.PageSize))
	table.AddRow("CPUS", fmt.Sprintf("%d", info.CPUs))

	crashTime := "unknown"
	if !info.CrashTime.IsZero() {
		crashTime = info.CrashTime.UTC().Format(time.RFC3339)
	}
	table.AddRow("CRASH TIME", crashTime)

	task, err := prog.CrashedTask()
	switch {
	case errors.Is(err, kernel.ErrNoCrashedTask):
		table.AddRow("PANICKING TASK", "none recorded")
	case err != nil:
		return err
	default:
		table.AddRow("PANICKING TASK", fmt.Sprintf("%q (pid %d, cpu %d)", task.Comm, task.PID, task.CPU))
	}

	table.Render(w)
	return nil
}
