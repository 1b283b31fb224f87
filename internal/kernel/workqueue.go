package kernel

import "fmt"

// WorkerPool is a per-CPU workqueue worker pool.
type WorkerPool struct {
	// Addr is the kernel address of the worker_pool.
	Addr uint64

	// ID is the pool's kernel-assigned id.
	ID int

	// CPU is the CPU the pool is bound to.
	CPU int

	// Workers lists the pool's worker threads.
	Workers []*Worker
}

// Worker is a workqueue worker thread.
type Worker struct {
	// Addr is the kernel address of the struct worker.
	Addr uint64

	// Task is the worker's kernel thread.
	Task *Task

	// CurrentWork is the address of the work_struct being executed,
	// or 0 when the worker is idle.
	CurrentWork uint64

	// CurrentFunc is the address of the work function being executed.
	CurrentFunc uint64

	// PoolWorkqueue is the address of the pool_workqueue the current
	// work was queued through, or 0 if unknown.
	PoolWorkqueue uint64

	// WorkqueueName is the owning workqueue's name, empty if it could
	// not be read.
	WorkqueueName string
}

// Busy reports whether the worker is executing a work item.
func (w *Worker) Busy() bool {
	return w.CurrentWork != 0
}

// CurrentFuncName resolves the worker's current work function to a
// symbol name, falling back to "UNKNOWN: 0x<addr>" when the address
// is not in the symbol table.
func (w *Worker) CurrentFuncName(prog Program) string {
	if name, ok := prog.SymbolName(w.CurrentFunc); ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN: 0x%x", w.CurrentFunc)
}

// DisplayWorkqueueName returns the owning workqueue's name for
// reports, "unknown" when the capture could not read it.
func (w *Worker) DisplayWorkqueueName() string {
	if w.WorkqueueName == "" {
		return "unknown"
	}
	return w.WorkqueueName
}

// wqWatchdogDefaultSeconds is the kernel's default workqueue watchdog
// threshold, used when the dump predates the wq_watchdog_thresh
// variable.
const wqWatchdogDefaultSeconds = 30

// WatchdogThreshSeconds returns the workqueue watchdog threshold in
// seconds, defaulting to 30 when the kernel does not export
// wq_watchdog_thresh.
func WatchdogThreshSeconds(prog Program) uint64 {
	if v, ok := prog.Uint64Var("wq_watchdog_thresh"); ok {
		return v
	}
	return wqWatchdogDefaultSeconds
}
