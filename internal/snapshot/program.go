package snapshot

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/richl9/drgn-tools/internal/kernel"
)

// Program is an in-memory kernel.Program built from snapshot Data.
type Program struct {
	info       kernel.CoreInfo
	now        uint64
	cpus       []int
	tasks      []*kernel.Task
	byPID      map[int]*kernel.Task
	stacks     map[uint64][]kernel.StackFrame // keyed by task address
	runqueues  map[int]*kernel.Runqueue
	pools      map[int][]*kernel.WorkerPool
	disks      []*kernel.Disk
	nvme       []*kernel.NvmeController
	dentries   map[uint64]*kernel.Dentry
	symbols    []SymbolData // sorted by address
	variables  map[string]uint64
	constants  map[string]uint64
	crashedPID int
}

// New builds a Program from decoded snapshot data, resolving all
// cross-references (runqueue and worker tasks by PID) and indexing
// the lookup tables. It is the single construction path for both
// Load and tests.
func New(data *Data) (*Program, error) {
	p := &Program{
		info: kernel.CoreInfo{
			OSRelease:  data.Info.OSRelease,
			PageSize:   data.Info.PageSize,
			CPUs:       len(data.OnlineCPUs),
			CrashedPID: data.CrashedPID,
		},
		now:        data.NowNS,
		byPID:      make(map[int]*kernel.Task, len(data.Tasks)),
		stacks:     make(map[uint64][]kernel.StackFrame),
		runqueues:  make(map[int]*kernel.Runqueue, len(data.Runqueues)),
		pools:      make(map[int][]*kernel.WorkerPool),
		dentries:   make(map[uint64]*kernel.Dentry, len(data.Dentries)),
		variables:  data.Variables,
		constants:  data.Constants,
		crashedPID: data.CrashedPID,
	}
	if data.Info.CrashTimeUnix != 0 {
		p.info.CrashTime = time.Unix(data.Info.CrashTimeUnix, 0).UTC()
	}

	// Tasks first: everything else references them by PID.
	for i := range data.Tasks {
		td := &data.Tasks[i]
		t := &kernel.Task{
			Addr:          td.Addr,
			PID:           td.PID,
			Comm:          td.Comm,
			Prio:          td.Prio,
			CPU:           td.CPU,
			LastArrivalNS: td.LastArrivalNS,
		}
		if _, dup := p.byPID[t.PID]; dup {
			return nil, errors.Errorf("snapshot: duplicate task pid %d", t.PID)
		}
		p.tasks = append(p.tasks, t)
		p.byPID[t.PID] = t
		if len(td.Stack) > 0 {
			p.stacks[t.Addr] = framesFromData(td.Stack)
		}
	}

	for _, rd := range data.Runqueues {
		curr, ok := p.byPID[rd.CurrPID]
		if !ok {
			return nil, errors.Errorf("snapshot: runqueue for cpu %d references unknown pid %d", rd.CPU, rd.CurrPID)
		}
		p.runqueues[rd.CPU] = &kernel.Runqueue{Addr: rd.Addr, CPU: rd.CPU, Curr: curr}
	}

	for i := range data.Pools {
		pd := &data.Pools[i]
		pool := &kernel.WorkerPool{Addr: pd.Addr, ID: pd.ID, CPU: pd.CPU}
		for _, wd := range pd.Workers {
			task, ok := p.byPID[wd.PID]
			if !ok {
				return nil, errors.Errorf("snapshot: worker pool %d references unknown pid %d", pd.ID, wd.PID)
			}
			pool.Workers = append(pool.Workers, &kernel.Worker{
				Addr:          wd.Addr,
				Task:          task,
				CurrentWork:   wd.CurrentWork,
				CurrentFunc:   wd.CurrentFunc,
				PoolWorkqueue: wd.PoolWorkqueue,
				WorkqueueName: wd.Workqueue,
			})
		}
		p.pools[pd.CPU] = append(p.pools[pd.CPU], pool)
	}

	for i := range data.Disks {
		dd := &data.Disks[i]
		p.disks = append(p.disks, &kernel.Disk{
			Addr:  dd.Addr,
			Name:  dd.Name,
			Queue: queueFromData(&dd.Queue),
		})
	}

	for i := range data.Nvme {
		nd := &data.Nvme[i]
		ctrl := &kernel.NvmeController{Addr: nd.Addr, Instance: nd.Instance}
		if nd.Admin != nil {
			ctrl.AdminQueue = queueFromData(nd.Admin)
		}
		if nd.Connect != nil {
			ctrl.ConnectQueue = queueFromData(nd.Connect)
		}
		if nd.Fabrics != nil {
			ctrl.FabricsQueue = queueFromData(nd.Fabrics)
		}
		p.nvme = append(p.nvme, ctrl)
	}

	for i := range data.Dentries {
		dd := &data.Dentries[i]
		p.dentries[dd.Addr] = &kernel.Dentry{
			Addr:       dd.Addr,
			Path:       dd.Path,
			Negative:   dd.Negative,
			ChildAddrs: dd.Children,
		}
	}

	// CPU set: explicit list wins, otherwise derived from runqueues.
	if len(data.OnlineCPUs) > 0 {
		p.cpus = append(p.cpus, data.OnlineCPUs...)
	} else {
		for cpu := range p.runqueues {
			p.cpus = append(p.cpus, cpu)
		}
	}
	sort.Ints(p.cpus)
	p.info.CPUs = len(p.cpus)

	p.symbols = append(p.symbols, data.Symbols...)
	sort.Slice(p.symbols, func(i, j int) bool { return p.symbols[i].Addr < p.symbols[j].Addr })

	if p.crashedPID != 0 {
		if _, ok := p.byPID[p.crashedPID]; !ok {
			return nil, errors.Errorf("snapshot: crashedPid %d is not in the task list", p.crashedPID)
		}
	}

	return p, nil
}

func framesFromData(frames []FrameData) []kernel.StackFrame {
	out := make([]kernel.StackFrame, 0, len(frames))
	for _, fd := range frames {
		out = append(out, kernel.StackFrame{Name: fd.Func, PC: fd.PC, Locals: fd.Locals})
	}
	return out
}

func queueFromData(qd *QueueData) *kernel.Queue {
	q := &kernel.Queue{Addr: qd.Addr}
	for i := range qd.HWQueues {
		hd := &qd.HWQueues[i]
		hwq := &kernel.HardwareQueue{Addr: hd.Addr, Flags: hd.Flags}
		for j := range hd.Pending {
			hwq.Pending = append(hwq.Pending, requestFromData(&hd.Pending[j]))
		}
		q.HWQueues = append(q.HWQueues, hwq)
	}
	for i := range qd.SQPending {
		q.SQPending = append(q.SQPending, requestFromData(&qd.SQPending[i]))
	}
	return q
}

func requestFromData(rd *RequestData) *kernel.Request {
	return &kernel.Request{
		Addr:        rd.Addr,
		CPU:         rd.CPU,
		Op:          rd.CmdFlags & 0xff,
		CmdFlags:    rd.CmdFlags,
		Sector:      rd.Sector,
		DataLen:     rd.DataLen,
		IssueTimeNS: rd.IssueTimeNS,
		TargetDisk:  rd.TargetDisk,
	}
}

// Info implements kernel.Program.
func (p *Program) Info() kernel.CoreInfo { return p.info }

// NowNS implements kernel.Program.
func (p *Program) NowNS() uint64 { return p.now }

// OnlineCPUs implements kernel.Program.
func (p *Program) OnlineCPUs() []int { return p.cpus }

// Runqueue implements kernel.Program.
func (p *Program) Runqueue(cpu int) (*kernel.Runqueue, error) {
	rq, ok := p.runqueues[cpu]
	if !ok {
		return nil, fmt.Errorf("no runqueue captured for cpu %d", cpu)
	}
	return rq, nil
}

// Tasks implements kernel.Program.
func (p *Program) Tasks() []*kernel.Task { return p.tasks }

// TaskByPID implements kernel.Program.
func (p *Program) TaskByPID(pid int) (*kernel.Task, bool) {
	t, ok := p.byPID[pid]
	return t, ok
}

// StackTrace implements kernel.Program.
func (p *Program) StackTrace(t *kernel.Task) []kernel.StackFrame {
	return p.stacks[t.Addr]
}

// WorkerPools implements kernel.Program.
func (p *Program) WorkerPools(cpu int) []*kernel.WorkerPool {
	return p.pools[cpu]
}

// Disks implements kernel.Program.
func (p *Program) Disks() []*kernel.Disk { return p.disks }

// NvmeControllers implements kernel.Program.
func (p *Program) NvmeControllers() []*kernel.NvmeController { return p.nvme }

// Dentry implements kernel.Program.
func (p *Program) Dentry(addr uint64) (*kernel.Dentry, bool) {
	d, ok := p.dentries[addr]
	return d, ok
}

// SymbolName implements kernel.Program. Resolution follows kallsyms
// conventions: the nearest symbol at or below the address wins, but a
// sized symbol only covers [Addr, Addr+Size) and a zero-size symbol
// only matches its exact address.
func (p *Program) SymbolName(addr uint64) (string, bool) {
	i := sort.Search(len(p.symbols), func(i int) bool { return p.symbols[i].Addr > addr })
	if i == 0 {
		return "", false
	}
	sym := p.symbols[i-1]
	if sym.Size == 0 {
		if sym.Addr != addr {
			return "", false
		}
		return sym.Name, true
	}
	if addr >= sym.Addr+sym.Size {
		return "", false
	}
	return sym.Name, true
}

// Uint64Var implements kernel.Program.
func (p *Program) Uint64Var(name string) (uint64, bool) {
	v, ok := p.variables[name]
	return v, ok
}

// Constant implements kernel.Program.
func (p *Program) Constant(name string) (uint64, bool) {
	v, ok := p.constants[name]
	return v, ok
}

// CrashedTask implements kernel.Program. It prefers the explicit
// crashed-PID record; dumps without one fall back to the current task
// of the CPU named by the crashing_cpu variable.
func (p *Program) CrashedTask() (*kernel.Task, error) {
	if p.crashedPID != 0 {
		t, ok := p.byPID[p.crashedPID]
		if !ok {
			return nil, fmt.Errorf("crashed pid %d is not in the task list", p.crashedPID)
		}
		return t, nil
	}
	if cpu, ok := p.variables["crashing_cpu"]; ok {
		rq, err := p.Runqueue(int(cpu))
		if err != nil {
			return nil, errors.Wrap(err, "resolving crashing_cpu")
		}
		return rq.Curr, nil
	}
	return nil, kernel.ErrNoCrashedTask
}
