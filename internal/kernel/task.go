package kernel

import "fmt"

// Task is a kernel task (struct task_struct) as captured in a dump.
type Task struct {
	// Addr is the kernel address of the task_struct.
	Addr uint64

	// PID is the task's kernel PID.
	PID int

	// Comm is the task's command name, already escaped to printable
	// ASCII.
	Comm string

	// Prio is the task's effective scheduler priority. Values below
	// 100 are realtime.
	Prio int

	// CPU is the CPU the task last ran on.
	CPU int

	// LastArrivalNS is the sched_info last_arrival timestamp — the
	// monotonic clock value when the task last started running.
	LastArrivalNS uint64
}

// rtPrioLimit separates realtime priorities from CFS ones. Kernel
// priorities 0-99 are RT; 100-139 map to nice levels.
const rtPrioLimit = 100

// SchedClass returns the scheduling class label for a priority value:
// "RT" for realtime priorities, "CFS" otherwise.
func SchedClass(prio int) string {
	if prio < rtPrioLimit {
		return "RT"
	}
	return "CFS"
}

// LastRunToNow returns how long ago the task last started running,
// in nanoseconds, measured against the dump's capture instant.
//
// A task that is still on-CPU has been running for this long; a task
// that is waiting has been off-CPU (pending) for this long. Clamps to
// zero if the task's timestamp is ahead of the capture clock, which
// can happen when per-CPU clocks drift slightly.
func LastRunToNow(prog Program, t *Task) uint64 {
	now := prog.NowNS()
	if t.LastArrivalNS > now {
		return 0
	}
	return now - t.LastArrivalNS
}

// IsSwapper reports whether the task is the idle task of the given
// CPU. The lockup scan skips these: the idle task being "on CPU" for
// a long time just means the CPU is idle.
func IsSwapper(t *Task, cpu int) bool {
	return t.Comm == fmt.Sprintf("swapper/%d", cpu)
}
