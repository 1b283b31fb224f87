package kernel

import (
	"fmt"
	"time"
)

// CoreInfo holds the identifying metadata of a kernel dump.
type CoreInfo struct {
	// OSRelease is the kernel release string (uname -r).
	OSRelease string

	// PageSize is the kernel page size in bytes.
	PageSize uint64

	// CrashTime is when the dump was taken. Zero if unknown.
	CrashTime time.Time

	// CPUs is the number of online CPUs captured in the dump.
	CPUs int

	// CrashedPID is the PID of the panicking task, or 0 if the dump
	// was not taken from a panic (e.g. a live snapshot).
	CrashedPID int
}

// Program is a read-only view of one kernel's state at a single
// instant. All diagnostic modules are written against this interface.
//
// Lookup methods return a boolean rather than an error when the only
// failure mode is absence; operations with richer failure modes
// (Runqueue, CrashedTask) return errors.
type Program interface {
	// Info returns the dump's identifying metadata.
	Info() CoreInfo

	// NowNS returns the kernel's monotonic clock (local_clock) at
	// capture time, in nanoseconds. Task run times are measured
	// against this instant.
	NowNS() uint64

	// OnlineCPUs returns the online CPU numbers in ascending order.
	OnlineCPUs() []int

	// Runqueue returns the per-CPU runqueue for an online CPU.
	Runqueue(cpu int) (*Runqueue, error)

	// Tasks returns every task in the dump. The order is stable for
	// a given Program but otherwise unspecified.
	Tasks() []*Task

	// TaskByPID looks up a task by its PID.
	TaskByPID(pid int) (*Task, bool)

	// StackTrace returns the captured stack frames of a task, newest
	// frame first. Tasks without a captured stack return nil.
	StackTrace(t *Task) []StackFrame

	// WorkerPools returns the workqueue worker pools bound to a CPU.
	WorkerPools(cpu int) []*WorkerPool

	// Disks returns all block devices in the dump.
	Disks() []*Disk

	// NvmeControllers returns all NVMe controllers in the dump.
	NvmeControllers() []*NvmeController

	// Dentry looks up a dentry by its kernel address.
	Dentry(addr uint64) (*Dentry, bool)

	// SymbolName resolves a kernel text address to a symbol name.
	SymbolName(addr uint64) (string, bool)

	// Uint64Var reads a global kernel variable by name (e.g.
	// "wq_watchdog_thresh").
	Uint64Var(name string) (uint64, bool)

	// Constant reads a named kernel constant (enum value or macro)
	// recorded in the dump (e.g. "BLK_MQ_F_TAG_SHARED").
	Constant(name string) (uint64, bool)

	// CrashedTask returns the task that triggered the panic. When the
	// dump carries no explicit crashed-thread record, implementations
	// fall back to the current task of the crashing CPU.
	CrashedTask() (*Task, error)
}

// Runqueue is a per-CPU scheduler runqueue.
type Runqueue struct {
	// Addr is the kernel address of the struct rq.
	Addr uint64

	// CPU is the CPU this runqueue belongs to.
	CPU int

	// Curr is the task currently on this CPU. Never nil for an
	// online CPU (the idle task counts).
	Curr *Task
}

// ErrNoCrashedTask is returned by CrashedTask when the dump carries
// neither a crashed-thread record nor a crashing-CPU variable.
var ErrNoCrashedTask = fmt.Errorf("dump has no crashed task record")
