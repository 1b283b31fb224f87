package snapshot

// Data is the raw decoded form of a snapshot file. Field names mirror
// the JSON schema; addresses and timestamps are plain numbers.
//
// The struct is exported so tests and capture tooling can build
// programs directly with New, bypassing the file round trip.
type Data struct {
	// Info identifies the dump.
	Info InfoData `json:"info"`

	// NowNS is the capture instant on the kernel's monotonic clock.
	NowNS uint64 `json:"nowNs"`

	// OnlineCPUs lists the online CPU numbers. If empty, the CPU set
	// is derived from the runqueue list.
	OnlineCPUs []int `json:"onlineCpus,omitempty"`

	// CrashedPID is the PID of the panicking task, 0 if none was
	// recorded.
	CrashedPID int `json:"crashedPid,omitempty"`

	// Tasks lists every captured task.
	Tasks []TaskData `json:"tasks"`

	// Runqueues lists the per-CPU runqueues.
	Runqueues []RunqueueData `json:"runqueues,omitempty"`

	// Pools lists the per-CPU workqueue worker pools.
	Pools []PoolData `json:"workerPools,omitempty"`

	// Disks lists block devices with their queues.
	Disks []DiskData `json:"disks,omitempty"`

	// Nvme lists NVMe controllers with their management queues.
	Nvme []NvmeData `json:"nvmeControllers,omitempty"`

	// Dentries lists captured directory entries.
	Dentries []DentryData `json:"dentries,omitempty"`

	// Symbols is the kernel symbol table subset needed to resolve
	// captured text addresses.
	Symbols []SymbolData `json:"symbols,omitempty"`

	// Variables holds global kernel variable values by name.
	Variables map[string]uint64 `json:"variables,omitempty"`

	// Constants holds named kernel constants (enum/macro values).
	Constants map[string]uint64 `json:"constants,omitempty"`
}

// InfoData identifies the dumped kernel.
type InfoData struct {
	OSRelease     string `json:"osRelease"`
	PageSize      uint64 `json:"pageSize,omitempty"`
	CrashTimeUnix int64  `json:"crashTimeUnix,omitempty"`
}

// TaskData is one captured task with its stack.
type TaskData struct {
	Addr          uint64      `json:"addr"`
	PID           int         `json:"pid"`
	Comm          string      `json:"comm"`
	Prio          int         `json:"prio"`
	CPU           int         `json:"cpu"`
	LastArrivalNS uint64      `json:"lastArrivalNs"`
	Stack         []FrameData `json:"stack,omitempty"`
}

// FrameData is one captured stack frame.
type FrameData struct {
	Func   string            `json:"func,omitempty"`
	PC     uint64            `json:"pc"`
	Locals map[string]uint64 `json:"locals,omitempty"`
}

// RunqueueData is one per-CPU runqueue. CurrPID references a task in
// the Tasks list.
type RunqueueData struct {
	Addr    uint64 `json:"addr"`
	CPU     int    `json:"cpu"`
	CurrPID int    `json:"currPid"`
}

// PoolData is one workqueue worker pool.
type PoolData struct {
	Addr    uint64       `json:"addr"`
	ID      int          `json:"id"`
	CPU     int          `json:"cpu"`
	Workers []WorkerData `json:"workers,omitempty"`
}

// WorkerData is one workqueue worker. PID references a task in the
// Tasks list.
type WorkerData struct {
	Addr          uint64 `json:"addr"`
	PID           int    `json:"pid"`
	CurrentWork   uint64 `json:"currentWork,omitempty"`
	CurrentFunc   uint64 `json:"currentFunc,omitempty"`
	PoolWorkqueue uint64 `json:"poolWorkqueue,omitempty"`
	Workqueue     string `json:"workqueue,omitempty"`
}

// DiskData is one block device.
type DiskData struct {
	Addr  uint64    `json:"addr"`
	Name  string    `json:"name"`
	Queue QueueData `json:"queue"`
}

// QueueData is one request queue, blk-mq or legacy single-queue.
type QueueData struct {
	Addr      uint64        `json:"addr"`
	HWQueues  []HWQueueData `json:"hwQueues,omitempty"`
	SQPending []RequestData `json:"sqPending,omitempty"`
}

// HWQueueData is one blk-mq hardware dispatch queue.
type HWQueueData struct {
	Addr    uint64        `json:"addr"`
	Flags   uint64        `json:"flags,omitempty"`
	Pending []RequestData `json:"pending,omitempty"`
}

// RequestData is one in-flight block request. CPU uses -1 for
// "not recorded".
type RequestData struct {
	Addr        uint64 `json:"addr"`
	CPU         int    `json:"cpu"`
	CmdFlags    uint64 `json:"cmdFlags"`
	Sector      uint64 `json:"sector"`
	DataLen     uint64 `json:"dataLen"`
	IssueTimeNS uint64 `json:"issueTimeNs"`
	TargetDisk  uint64 `json:"targetDisk,omitempty"`
}

// NvmeData is one NVMe controller. Absent queues stay nil.
type NvmeData struct {
	Addr     uint64     `json:"addr"`
	Instance int        `json:"instance"`
	Admin    *QueueData `json:"adminQueue,omitempty"`
	Connect  *QueueData `json:"connectQueue,omitempty"`
	Fabrics  *QueueData `json:"fabricsQueue,omitempty"`
}

// DentryData is one captured dentry.
type DentryData struct {
	Addr     uint64   `json:"addr"`
	Path     string   `json:"path,omitempty"`
	Negative bool     `json:"negative,omitempty"`
	Children []uint64 `json:"children,omitempty"`
}

// SymbolData is one kernel symbol. Size 0 means "exact address only";
// a nonzero size lets the symbol cover [Addr, Addr+Size).
type SymbolData struct {
	Addr uint64 `json:"addr"`
	Name string `json:"name"`
	Size uint64 `json:"size,omitempty"`
}
