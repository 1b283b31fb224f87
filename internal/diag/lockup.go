package diag

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/richl9/drgn-tools/internal/corelens"
	"github.com/richl9/drgn-tools/internal/kernel"
)

// Stack functions identifying what a blocked task is waiting on.
// A task is classified purely by the functions on its captured
// stack.
var (
	rcuGPFuncs = []string{
		"percpu_ref_switch_to_atomic_sync",
		"__wait_rcu_gp",
	}
	spinlockFuncs = []string{
		"__pv_queued_spin_lock_slowpath",
		"native_queued_spin_lock_slowpath",
		"queued_spin_lock_slowpath",
	}
	fsnotifyFuncs = []string{
		"__fsnotify_update_child_dentry_flags",
	}
)

// lockup scans every online CPU's runqueue for tasks that have been
// on-CPU past a threshold, then lists tasks waiting on an RCU grace
// period, a spinlock, or fsnotify for longer than the same threshold.
type lockup struct {
	timeSeconds float64
}

func newLockup() corelens.Module { return &lockup{} }

func (m *lockup) Name() string { return "lockup" }

func (m *lockup) Synopsis() string {
	return "Print tasks which have been on-cpu for too long (possible RCU blockers) and tasks waiting RCU grace period if any"
}

func (m *lockup) AddFlags(fs *pflag.FlagSet) {
	fs.Float64VarP(&m.timeSeconds, "time", "t", 2,
		"list all the processes that have been running more than <time> seconds")
}

func (m *lockup) Run(ctx context.Context, prog kernel.Program, w io.Writer) error {
	threshNS := uint64(m.timeSeconds * 1e9)

	nrProcesses := 0
	for _, cpu := range prog.OnlineCPUs() {
		rq, err := prog.Runqueue(cpu)
		if err != nil {
			return err
		}
		curr := rq.Curr
		runTime := kernel.LastRunToNow(prog, curr)
		if runTime < threshNS {
			continue
		}
		if kernel.IsSwapper(curr, cpu) {
			continue
		}
		fmt.Fprintf(w, "CPU %d RUNQUEUE: %x\n", cpu, rq.Addr)
		fmt.Fprintf(w, "  PID: %-6d  TASK: %x  PRIO: %d  COMMAND: %q   LOCKUP TIME: %s\n",
			curr.PID, curr.Addr, curr.Prio, curr.Comm, kernel.FormatDuration(runTime))
		fmt.Fprintf(w, "\nCalltrace:\n")
		kernel.WriteBacktrace(w, prog, curr, 0)
		fmt.Fprintln(w)
		nrProcesses++
	}

	fmt.Fprintf(w, "We found %d processes running more than %g seconds\n",
		nrProcesses, m.timeSeconds)

	m.dumpWaitingTasks(w, prog, threshNS, rcuGPFuncs, "rcu grace period")
	m.dumpWaitingTasks(w, prog, threshNS, spinlockFuncs, "spinlock")
	m.dumpWaitingTasks(w, prog, threshNS, fsnotifyFuncs, "fsnotify")
	return nil
}

// dumpWaitingTasks prints a table of tasks whose stacks contain one
// of the given functions and that have been off-CPU past the
// threshold, de-duplicated by PID. The table header prints even when
// nothing matched so a reader can tell the scan ran.
func (m *lockup) dumpWaitingTasks(w io.Writer, prog kernel.Program, threshNS uint64, funcs []string, waitDesc string) {
	var table corelens.Table
	table.AddRow("TASK", "NAME", "PID", "PENDING_TIME")

	seen := make(map[int]struct{})
	for _, tf := range kernel.TasksWithAnyFunc(prog, funcs) {
		pid := tf.Task.PID
		if _, dup := seen[pid]; dup {
			continue
		}
		pending := kernel.LastRunToNow(prog, tf.Task)
		if pending <= threshNS {
			continue
		}
		table.AddRow(
			fmt.Sprintf("0x%x", tf.Task.Addr),
			tf.Task.Comm,
			fmt.Sprintf("%d", pid),
			kernel.FormatDuration(pending),
		)
		seen[pid] = struct{}{}
	}

	fmt.Fprintf(w, "\nWe found below tasks waiting for %s over %g seconds:\n",
		waitDesc, m.timeSeconds)
	table.Render(w)
}
