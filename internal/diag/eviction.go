package diag

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/richl9/drgn-tools/internal/corelens"
	"github.com/richl9/drgn-tools/internal/kernel"
)

// crsMonitorComms are the CRS watchdog processes. A panic out of one
// of these is the eviction signature this module looks for.
var crsMonitorComms = map[string]struct{}{
	"cssdmonitor": {},
	"ocssd.bin":   {},
}

// crsEviction detects cluster node evictions caused by spinlock
// contention in the fsnotify dentry-flag walk. The chain it checks:
// the panic came from a CRS monitor process, tasks are stuck waiting
// for an RCU grace period, others are spinning on a lock, and the
// lock holder is walking a directory's children in
// __fsnotify_update_child_dentry_flags. A directory full of negative
// dentries makes that walk long enough to miss heartbeats.
type crsEviction struct{}

func newCrsEviction() corelens.Module { return &crsEviction{} }

func (m *crsEviction) Name() string { return "crs-eviction" }

func (m *crsEviction) Synopsis() string {
	return "Detectors for crs eviction related issues"
}

func (m *crsEviction) AddFlags(fs *pflag.FlagSet) {}

func (m *crsEviction) Run(ctx context.Context, prog kernel.Program, w io.Writer) error {
	task, err := prog.CrashedTask()
	if errors.Is(err, kernel.ErrNoCrashedTask) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, ok := crsMonitorComms[task.Comm]; !ok {
		return nil
	}
	m.reportFsnotifyContention(w, prog)
	return nil
}

func (m *crsEviction) reportFsnotifyContention(w io.Writer, prog kernel.Program) {
	if len(kernel.TasksWithAnyFunc(prog, rcuGPFuncs)) == 0 {
		return
	}
	if len(kernel.TasksWithAnyFunc(prog, spinlockFuncs)) == 0 {
		return
	}

	for _, tf := range kernel.TasksWithAnyFunc(prog, fsnotifyFuncs) {
		if tf.Frame.Name != "__fsnotify_update_child_dentry_flags" {
			continue
		}
		addr, ok := tf.Frame.Local("alias")
		if !ok {
			continue
		}
		dentry, ok := prog.Dentry(addr)
		if !ok {
			continue
		}
		total, negative := kernel.CountChildren(prog, dentry)

		fmt.Fprintln(w, "CRS eviction caused by spinlock contention due to fsnotify detected.")
		fmt.Fprintf(w, "PID: %d\n", tf.Task.PID)
		fmt.Fprintf(w, "Directory being iterated: %s\n", dentry.Path)
		fmt.Fprintf(w, "Total dentries: %d\n", total)
		fmt.Fprintf(w, "Negative dentries: %d\n", negative)
		if total > 0 {
			fmt.Fprintf(w, "%% Negative dentries: %.2f%%\n",
				float64(negative)/float64(total)*100)
		}
	}
}
