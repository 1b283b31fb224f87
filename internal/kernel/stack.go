package kernel

import (
	"fmt"
	"io"
	"strings"
)

// StackFrame is one frame of a captured task stack.
type StackFrame struct {
	// Name is the function the frame is executing. May be empty when
	// the unwinder could not resolve a symbol.
	Name string

	// PC is the frame's program counter.
	PC uint64

	// Locals maps local variable names to object addresses, for the
	// few frames where the capture recorded them (e.g. the dentry
	// "alias" in __fsnotify_update_child_dentry_flags).
	Locals map[string]uint64
}

// Local returns the captured address of a named local variable.
func (f *StackFrame) Local(name string) (uint64, bool) {
	addr, ok := f.Locals[name]
	return addr, ok
}

// TaskFrame pairs a task with the stack frame that matched a search.
type TaskFrame struct {
	Task  *Task
	Frame StackFrame
}

// TasksWithAnyFunc scans every task's stack and returns each task
// whose stack contains at least one of the named functions, paired
// with the first matching frame.
//
// This is the primitive behind all the "who is waiting on X" scans:
// a task blocked on a spinlock, an RCU grace period, or fsnotify is
// identified purely by the functions on its stack.
func TasksWithAnyFunc(prog Program, funcNames []string) []TaskFrame {
	if len(funcNames) == 0 {
		return nil
	}
	want := make(map[string]struct{}, len(funcNames))
	for _, name := range funcNames {
		want[name] = struct{}{}
	}

	var matches []TaskFrame
	for _, t := range prog.Tasks() {
		for _, frame := range prog.StackTrace(t) {
			if _, ok := want[frame.Name]; ok {
				matches = append(matches, TaskFrame{Task: t, Frame: frame})
				break
			}
		}
	}
	return matches
}

// WriteBacktrace writes a task's stack trace to w, one frame per
// line, indented by indent spaces:
//
//	#0  __schedule [0xffffffff81a2b3c4]
//	#1  schedule [0xffffffff81a2b811]
//
// Frames without a resolved name fall back to the symbol table, then
// to a bare address.
func WriteBacktrace(w io.Writer, prog Program, t *Task, indent int) {
	pad := strings.Repeat(" ", indent)
	frames := prog.StackTrace(t)
	if len(frames) == 0 {
		fmt.Fprintf(w, "%s(no stack captured for PID %d)\n", pad, t.PID)
		return
	}
	for i, frame := range frames {
		name := frame.Name
		if name == "" {
			if resolved, ok := prog.SymbolName(frame.PC); ok {
				name = resolved
			} else {
				name = "???"
			}
		}
		fmt.Fprintf(w, "%s#%-2d %s [0x%x]\n", pad, i, name, frame.PC)
	}
}
