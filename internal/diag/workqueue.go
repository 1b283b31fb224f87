package diag

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/richl9/drgn-tools/internal/corelens"
	"github.com/richl9/drgn-tools/internal/kernel"
)

// workqueueLockup reports workqueue workers that have been executing
// one work item past the workqueue watchdog threshold, the same
// condition the kernel's own watchdog would flag.
type workqueueLockup struct{}

func newWorkqueueLockup() corelens.Module { return &workqueueLockup{} }

func (m *workqueueLockup) Name() string { return "workqueue-lockup" }

func (m *workqueueLockup) Synopsis() string {
	return "Detect workqueue lockup issues"
}

func (m *workqueueLockup) AddFlags(fs *pflag.FlagSet) {}

func (m *workqueueLockup) Run(ctx context.Context, prog kernel.Program, w io.Writer) error {
	threshSeconds := kernel.WatchdogThreshSeconds(prog)
	threshNS := threshSeconds * 1_000_000_000
	fmt.Fprintf(w, "Workqueue watchdog threshold: %d seconds\n\n", threshSeconds)

	lockupCount := 0
	for _, cpu := range prog.OnlineCPUs() {
		for _, pool := range prog.WorkerPools(cpu) {
			for _, worker := range pool.Workers {
				if !worker.Busy() {
					continue
				}
				task := worker.Task
				runtime := kernel.LastRunToNow(prog, task)
				if runtime < threshNS {
					continue
				}
				lockupCount++

				fmt.Fprintf(w, "CPU %d pool %d workqueue: %s pwq: 0x%x\n",
					task.CPU, pool.ID, worker.DisplayWorkqueueName(), worker.PoolWorkqueue)
				printCPUCurrentTask(w, prog, cpu)
				fmt.Fprintln(w)
				fmt.Fprintf(w, "  CURRENT_WORKER_TASK:   PID: %-6d  TASK: %x  PRIO: %d (%s)  COMMAND: %q\n",
					task.PID, task.Addr, task.Prio, kernel.SchedClass(task.Prio), task.Comm)
				fmt.Fprintf(w, "  WORK:      0x%x  FUNC: %s\n",
					worker.CurrentWork, worker.CurrentFuncName(prog))
				fmt.Fprintf(w, "  RUNTIME: %s\n", kernel.FormatDuration(runtime))
				fmt.Fprintf(w, "  Calltrace:\n")
				kernel.WriteBacktrace(w, prog, task, 4)
				fmt.Fprintln(w)
			}
		}
	}

	if lockupCount == 0 {
		fmt.Fprintln(w, "Workqueue lockup not detected. No workqueue workers appear to be stuck past watchdog threshold.")
	} else {
		fmt.Fprintf(w, "Workqueue lockup detected! Found %d workqueue workers past watchdog threshold.\n", lockupCount)
	}
	return nil
}

func printCPUCurrentTask(w io.Writer, prog kernel.Program, cpu int) {
	rq, err := prog.Runqueue(cpu)
	if err != nil {
		return
	}
	curr := rq.Curr
	fmt.Fprintf(w, "  CURRENT_TASK_ON_CPU: PID: %-6d  TASK: %x  PRIO: %d (%s)  COMMAND: %q\n",
		curr.PID, curr.Addr, curr.Prio, kernel.SchedClass(curr.Prio), curr.Comm)
}
