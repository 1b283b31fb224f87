package diag

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richl9/drgn-tools/internal/corelens"
	"github.com/richl9/drgn-tools/internal/kernel"
	"github.com/richl9/drgn-tools/internal/snapshot"
)

const secondNS = 1_000_000_000

// evictionFixture models the CRS eviction scenario end to end: the
// cssdmonitor panicked on CPU 1 while blocked on an RCU grace
// period, another task spins on a queued spinlock, and a kworker sits
// in the fsnotify child-dentry walk over a directory dominated by
// negative dentries. The same dump exercises every module.
func evictionFixture() *snapshot.Data {
	return &snapshot.Data{
		Info: snapshot.InfoData{
			OSRelease:     "5.15.0-205.149.5.1.el8uek.x86_64",
			PageSize:      4096,
			CrashTimeUnix: 1767225600,
		},
		NowNS:      100 * secondNS,
		CrashedPID: 2001,
		Tasks: []snapshot.TaskData{
			{
				Addr: 0xffff8881000000a0, PID: 0, Comm: "swapper/0",
				Prio: 120, CPU: 0, LastArrivalNS: 0,
			},
			{
				Addr: 0xffff8881000000a1, PID: 2001, Comm: "cssdmonitor",
				Prio: 120, CPU: 1, LastArrivalNS: 95 * secondNS,
				Stack: []snapshot.FrameData{
					{Func: "__schedule", PC: 0xffffffff81a00010},
					{Func: "__wait_rcu_gp", PC: 0xffffffff81a00020},
				},
			},
			{
				Addr: 0xffff8881000000a2, PID: 2002, Comm: "kworker/1:2",
				Prio: 120, CPU: 1, LastArrivalNS: 40 * secondNS,
				Stack: []snapshot.FrameData{
					{
						Func:   "__fsnotify_update_child_dentry_flags",
						PC:     0xffffffff81a00030,
						Locals: map[string]uint64{"alias": 0xffff888100de0001},
					},
					{Func: "fsnotify_recalc_mask", PC: 0xffffffff81a00040},
				},
			},
			{
				Addr: 0xffff8881000000a3, PID: 2003, Comm: "ora_lms0",
				Prio: 120, CPU: 0, LastArrivalNS: 90 * secondNS,
				Stack: []snapshot.FrameData{
					{Func: "native_queued_spin_lock_slowpath", PC: 0xffffffff81a00050},
				},
			},
		},
		Runqueues: []snapshot.RunqueueData{
			{Addr: 0xffff88810f000000, CPU: 0, CurrPID: 0},
			{Addr: 0xffff88810f000001, CPU: 1, CurrPID: 2001},
		},
		Pools: []snapshot.PoolData{
			{
				Addr: 0xffff888100b00000, ID: 3, CPU: 1,
				Workers: []snapshot.WorkerData{
					{
						Addr: 0xffff888100b10000, PID: 2002,
						CurrentWork:   0xffff888100c00000,
						CurrentFunc:   0xffffffff81b00000,
						PoolWorkqueue: 0xffff888100b20000,
						Workqueue:     "events",
					},
				},
			},
		},
		Disks: []snapshot.DiskData{
			{
				Addr: 0xffff888100d10000, Name: "sda",
				Queue: snapshot.QueueData{
					Addr: 0xffff888100d11000,
					HWQueues: []snapshot.HWQueueData{
						{
							Addr: 0xffff888100d12000,
							Pending: []snapshot.RequestData{
								{
									Addr: 0xffff888100d13000, CPU: 2,
									CmdFlags: 1 | 1<<11, Sector: 4096,
									DataLen: 8192, IssueTimeNS: 98 * secondNS,
								},
							},
						},
					},
					SQPending: []snapshot.RequestData{
						{
							Addr: 0xffff888100d14000, CPU: -1,
							CmdFlags: 0, Sector: 100, DataLen: 512,
							IssueTimeNS: 97 * secondNS,
						},
					},
				},
			},
			{
				Addr: 0xffff888100d20000, Name: "sdb",
				Queue: snapshot.QueueData{
					Addr: 0xffff888100d21000,
					HWQueues: []snapshot.HWQueueData{
						{
							Addr:  0xffff888100d22000,
							Flags: 8, // shared tags with sda's HBA
							Pending: []snapshot.RequestData{
								{
									Addr: 0xffff888100d23000, CPU: 0,
									CmdFlags: 0, Sector: 8, DataLen: 4096,
									IssueTimeNS: 99 * secondNS,
									TargetDisk:  0xffff888100d20000,
								},
								{
									Addr: 0xffff888100d24000, CPU: 1,
									CmdFlags: 0, Sector: 16, DataLen: 4096,
									IssueTimeNS: 99 * secondNS,
									TargetDisk:  0xffff888100d10000,
								},
							},
						},
					},
				},
			},
		},
		Nvme: []snapshot.NvmeData{
			{
				Addr: 0xffff888100e00000, Instance: 0,
				Admin: &snapshot.QueueData{
					Addr: 0xffff888100e01000,
					HWQueues: []snapshot.HWQueueData{
						{
							Addr: 0xffff888100e02000,
							Pending: []snapshot.RequestData{
								{
									Addr: 0xffff888100e03000, CPU: 3,
									CmdFlags: 0, Sector: 0, DataLen: 64,
									IssueTimeNS: 60 * secondNS,
								},
							},
						},
					},
				},
			},
		},
		Dentries: []snapshot.DentryData{
			{
				Addr: 0xffff888100de0001, Path: "/var/run/css",
				Children: []uint64{0xffff888100de0002, 0xffff888100de0003, 0xffff888100de0004},
			},
			{Addr: 0xffff888100de0002, Negative: true},
			{Addr: 0xffff888100de0003, Negative: true},
			{Addr: 0xffff888100de0004, Path: "/var/run/css/lock"},
		},
		Symbols: []snapshot.SymbolData{
			{Addr: 0xffffffff81b00000, Name: "fsnotify_mark_destroy_workfn", Size: 0x100},
		},
		Constants: map[string]uint64{
			"BLK_MQ_F_TAG_QUEUE_SHARED": 8,
		},
	}
}

func fixtureProgram(t *testing.T) kernel.Program {
	t.Helper()
	prog, err := snapshot.New(evictionFixture())
	require.NoError(t, err)
	return prog
}

// runDiag parses a module spec against the built-in registry and
// runs it, returning the report text.
func runDiag(t *testing.T, prog kernel.Program, spec string) string {
	t.Helper()
	inv, err := corelens.ParseRunSpec(Registry(), spec)
	require.NoError(t, err)
	var sb strings.Builder
	require.NoError(t, inv.Module.Run(context.Background(), prog, &sb))
	return sb.String()
}

func TestRegistryNames(t *testing.T) {
	assert.Equal(t,
		[]string{"crs-eviction", "inflight-io", "lockup", "sys", "workqueue-lockup"},
		Registry().Names())
}

func TestLockup(t *testing.T) {
	prog := fixtureProgram(t)
	out := runDiag(t, prog, "lockup")

	// CPU 0 runs swapper/0 and is skipped; CPU 1 runs cssdmonitor
	// for 5 seconds, past the default 2 second threshold.
	assert.NotContains(t, out, "swapper/0\"")
	assert.Contains(t, out, "CPU 1 RUNQUEUE: ffff88810f000001")
	assert.Contains(t, out,
		`  PID: 2001    TASK: ffff8881000000a1  PRIO: 120  COMMAND: "cssdmonitor"   LOCKUP TIME: 00:00:05.000`)
	assert.Contains(t, out, "\nCalltrace:\n#0  __schedule [0xffffffff81a00010]\n#1  __wait_rcu_gp [0xffffffff81a00020]")
	assert.Contains(t, out, "We found 1 processes running more than 2 seconds")

	assert.Contains(t, out, "We found below tasks waiting for rcu grace period over 2 seconds:")
	assert.Contains(t, out, "0xffff8881000000a1  cssdmonitor  2001  00:00:05.000")
	assert.Contains(t, out, "We found below tasks waiting for spinlock over 2 seconds:")
	assert.Contains(t, out, "0xffff8881000000a3  ora_lms0  2003  00:00:10.000")
	assert.Contains(t, out, "We found below tasks waiting for fsnotify over 2 seconds:")
	assert.Contains(t, out, "0xffff8881000000a2  kworker/1:2  2002  00:01:00.000")
}

func TestLockup_ThresholdFlag(t *testing.T) {
	prog := fixtureProgram(t)
	out := runDiag(t, prog, "lockup -t 7")

	// At 7 seconds only the spinner (10s) and the kworker (60s)
	// remain; cssdmonitor's 5 seconds no longer qualify.
	assert.Contains(t, out, "We found 0 processes running more than 7 seconds")
	assert.Contains(t, out, "We found below tasks waiting for rcu grace period over 7 seconds:")
	assert.NotContains(t, out, "cssdmonitor  2001")
	assert.Contains(t, out, "ora_lms0  2003")
	assert.Contains(t, out, "kworker/1:2  2002")
}

func TestWorkqueueLockup(t *testing.T) {
	prog := fixtureProgram(t)
	out := runDiag(t, prog, "workqueue-lockup")

	assert.Contains(t, out, "Workqueue watchdog threshold: 30 seconds")
	assert.Contains(t, out, "CPU 1 pool 3 workqueue: events pwq: 0xffff888100b20000")
	assert.Contains(t, out,
		`  CURRENT_TASK_ON_CPU: PID: 2001    TASK: ffff8881000000a1  PRIO: 120 (CFS)  COMMAND: "cssdmonitor"`)
	assert.Contains(t, out,
		`  CURRENT_WORKER_TASK:   PID: 2002    TASK: ffff8881000000a2  PRIO: 120 (CFS)  COMMAND: "kworker/1:2"`)
	assert.Contains(t, out, "  WORK:      0xffff888100c00000  FUNC: fsnotify_mark_destroy_workfn")
	assert.Contains(t, out, "  RUNTIME: 00:01:00.000")
	assert.Contains(t, out, "    #0  __fsnotify_update_child_dentry_flags [0xffffffff81a00030]")
	assert.Contains(t, out, "Workqueue lockup detected! Found 1 workqueue workers past watchdog threshold.")
}

func TestWorkqueueLockup_NotDetected(t *testing.T) {
	data := evictionFixture()
	// Raise the watchdog threshold past the worker's 60s runtime.
	data.Variables = map[string]uint64{"wq_watchdog_thresh": 120}
	prog, err := snapshot.New(data)
	require.NoError(t, err)

	out := runDiag(t, prog, "workqueue-lockup")
	assert.Contains(t, out, "Workqueue watchdog threshold: 120 seconds")
	assert.Contains(t, out, "Workqueue lockup not detected. No workqueue workers appear to be stuck past watchdog threshold.")
	assert.NotContains(t, out, "CURRENT_WORKER_TASK")
}

func TestInflightIO(t *testing.T) {
	prog := fixtureProgram(t)
	out := runDiag(t, prog, "inflight-io")

	assert.Contains(t, out, "device               hwq                  request              cpu              op")
	assert.Contains(t, out, "flags                offset               len                  inflight-time")

	// sda blk-mq request: WRITE with the SYNC flag, 2 seconds old.
	assert.Contains(t, out, "sda                  ffff888100d12000     ffff888100d13000     2                WRITE")
	assert.Contains(t, out, "SYNC                 4096                 8192                 00:00:02.000")

	// sda legacy single-queue request: no hwq, no issuing cpu.
	assert.Contains(t, out, "sda                  -                    ffff888100d14000     -                READ")

	// sdb shares tags with sda's HBA: only the request targeting sdb
	// itself shows up under sdb.
	assert.Contains(t, out, "sdb                  ffff888100d22000     ffff888100d23000")
	assert.NotContains(t, out, "ffff888100d24000")

	// NVMe admin queue requests appear in the full scan.
	assert.Contains(t, out, "nvme0-admin          ffff888100e02000     ffff888100e03000")
}

func TestInflightIO_SingleDisk(t *testing.T) {
	prog := fixtureProgram(t)
	out := runDiag(t, prog, "inflight-io --diskname sda")

	assert.Contains(t, out, "sda")
	assert.NotContains(t, out, "sdb")
	assert.NotContains(t, out, "nvme0-admin", "nvme management queues only dump in the full scan")
}

func TestInflightIO_MissingSharedTagConstant(t *testing.T) {
	data := evictionFixture()
	data.Constants = nil
	prog, err := snapshot.New(data)
	require.NoError(t, err)

	inv, err := corelens.ParseRunSpec(Registry(), "inflight-io")
	require.NoError(t, err)
	var sb strings.Builder
	err = inv.Module.Run(context.Background(), prog, &sb)
	assert.ErrorContains(t, err, "BLK_MQ_F_TAG_SHARED")
}

func TestCrsEviction(t *testing.T) {
	prog := fixtureProgram(t)
	out := runDiag(t, prog, "crs-eviction")

	assert.Contains(t, out, "CRS eviction caused by spinlock contention due to fsnotify detected.")
	assert.Contains(t, out, "PID: 2002")
	assert.Contains(t, out, "Directory being iterated: /var/run/css")
	assert.Contains(t, out, "Total dentries: 3")
	assert.Contains(t, out, "Negative dentries: 2")
	assert.Contains(t, out, "% Negative dentries: 66.67%")
}

func TestCrsEviction_NotACrsPanic(t *testing.T) {
	data := evictionFixture()
	data.Tasks[1].Comm = "bash"
	prog, err := snapshot.New(data)
	require.NoError(t, err)

	out := runDiag(t, prog, "crs-eviction")
	assert.Empty(t, out, "non-CRS panics produce no report")
}

func TestCrsEviction_NoSpinlockWaiters(t *testing.T) {
	data := evictionFixture()
	data.Tasks[3].Stack = nil
	prog, err := snapshot.New(data)
	require.NoError(t, err)

	out := runDiag(t, prog, "crs-eviction")
	assert.Empty(t, out, "the detector needs the full RCU+spinlock+fsnotify chain")
}

func TestSysInfo(t *testing.T) {
	prog := fixtureProgram(t)
	out := runDiag(t, prog, "sys")

	assert.Contains(t, out, "RELEASE")
	assert.Contains(t, out, "5.15.0-205.149.5.1.el8uek.x86_64")
	assert.Contains(t, out, "PAGE SIZE")
	assert.Contains(t, out, "4096")
	assert.Contains(t, out, "CPUS")
	assert.Contains(t, out, `PANICKING TASK  "cssdmonitor" (pid 2001, cpu 1)`)
}
