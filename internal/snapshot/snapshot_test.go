package snapshot

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richl9/drgn-tools/internal/model"
)

// TestLoad_Fixture loads the JSONC fixture end to end and checks the
// resolved object graph, including pieces that exercise the comment
// stripping (the fixture is commented throughout).
func TestLoad_Fixture(t *testing.T) {
	prog, err := Load(filepath.Join("testdata", "uek7-panic.jsonc"))
	require.NoError(t, err)

	info := prog.Info()
	assert.Equal(t, "5.15.0-205.149.5.1.el9uek.x86_64", info.OSRelease)
	assert.Equal(t, uint64(4096), info.PageSize)
	assert.Equal(t, 2, info.CPUs)
	assert.Equal(t, 2001, info.CrashedPID)
	assert.False(t, info.CrashTime.IsZero())

	assert.Equal(t, []int{0, 1}, prog.OnlineCPUs())
	require.Len(t, prog.Tasks(), 3)

	// Runqueue wiring: cpu 1's current task is the kworker.
	rq, err := prog.Runqueue(1)
	require.NoError(t, err)
	assert.Equal(t, "kworker/1:2", rq.Curr.Comm)

	_, err = prog.Runqueue(5)
	assert.Error(t, err, "uncaptured cpu must not resolve")

	// Stacks and locals survive the round trip.
	monitor, ok := prog.TaskByPID(2001)
	require.True(t, ok)
	frames := prog.StackTrace(monitor)
	require.Len(t, frames, 2)
	assert.Equal(t, "__wait_rcu_gp", frames[0].Name)

	worker, ok := prog.TaskByPID(2002)
	require.True(t, ok)
	alias, ok := prog.StackTrace(worker)[0].Local("alias")
	require.True(t, ok)
	dentry, ok := prog.Dentry(alias)
	require.True(t, ok)
	assert.Equal(t, "/u01/app/grid/log", dentry.Path)

	// Worker pools reference resolved tasks.
	pools := prog.WorkerPools(1)
	require.Len(t, pools, 1)
	require.Len(t, pools[0].Workers, 1)
	assert.Same(t, worker, pools[0].Workers[0].Task)

	// Block and NVMe graphs.
	require.Len(t, prog.Disks(), 1)
	disk := prog.Disks()[0]
	assert.Equal(t, "sda", disk.Name)
	require.Len(t, disk.Queue.HWQueues, 1)
	require.Len(t, disk.Queue.HWQueues[0].Pending, 1)
	rqst := disk.Queue.HWQueues[0].Pending[0]
	assert.Equal(t, "WRITE", rqst.OpName())
	assert.Equal(t, "SYNC", rqst.FlagNames())

	require.Len(t, prog.NvmeControllers(), 1)
	q, name := prog.NvmeControllers()[0].MgmtQueue("admin")
	require.NotNil(t, q)
	assert.Equal(t, "nvme0-admin", name)

	// Variables and constants.
	thresh, ok := prog.Uint64Var("wq_watchdog_thresh")
	require.True(t, ok)
	assert.Equal(t, uint64(30), thresh)

	_, ok = prog.Constant("BLK_MQ_F_TAG_SHARED")
	assert.False(t, ok, "old constant name is absent on this kernel")
	shared, ok := prog.Constant("BLK_MQ_F_TAG_QUEUE_SHARED")
	require.True(t, ok)
	assert.Equal(t, uint64(8), shared)
}

// TestLoad_MissingFile verifies the CLIError mapping for absent
// snapshots.
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "no-such.jsonc"))
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitDumpNotFound, cliErr.Code)
}

// TestNew_CrossReferenceErrors verifies that dangling PID references
// are rejected at build time rather than surfacing as nil tasks
// during analysis.
func TestNew_CrossReferenceErrors(t *testing.T) {
	base := func() *Data {
		return &Data{
			Info:  InfoData{OSRelease: "6.1.0"},
			NowNS: 1000,
			Tasks: []TaskData{{Addr: 0x100, PID: 1, Comm: "systemd", Prio: 120}},
		}
	}

	data := base()
	data.Runqueues = []RunqueueData{{Addr: 0x200, CPU: 0, CurrPID: 99}}
	_, err := New(data)
	assert.ErrorContains(t, err, "unknown pid 99")

	data = base()
	data.Pools = []PoolData{{ID: 1, CPU: 0, Workers: []WorkerData{{PID: 42}}}}
	_, err = New(data)
	assert.ErrorContains(t, err, "unknown pid 42")

	data = base()
	data.CrashedPID = 7
	_, err = New(data)
	assert.ErrorContains(t, err, "crashedPid 7")

	data = base()
	data.Tasks = append(data.Tasks, TaskData{Addr: 0x101, PID: 1, Comm: "dup"})
	_, err = New(data)
	assert.ErrorContains(t, err, "duplicate task pid 1")
}

// TestProgram_SymbolName verifies kallsyms-style resolution: sized
// symbols cover a range, zero-size symbols match exactly.
func TestProgram_SymbolName(t *testing.T) {
	prog, err := New(&Data{
		NowNS: 1,
		Symbols: []SymbolData{
			{Addr: 0x2000, Name: "schedule", Size: 0x100},
			{Addr: 0x3000, Name: "panic"}, // zero size: exact only
		},
	})
	require.NoError(t, err)

	name, ok := prog.SymbolName(0x2000)
	require.True(t, ok)
	assert.Equal(t, "schedule", name)

	name, ok = prog.SymbolName(0x2050)
	require.True(t, ok)
	assert.Equal(t, "schedule", name, "sized symbol covers interior addresses")

	_, ok = prog.SymbolName(0x2100)
	assert.False(t, ok, "address past the symbol's size must miss")

	name, ok = prog.SymbolName(0x3000)
	require.True(t, ok)
	assert.Equal(t, "panic", name)

	_, ok = prog.SymbolName(0x3001)
	assert.False(t, ok, "zero-size symbol matches only its exact address")

	_, ok = prog.SymbolName(0x100)
	assert.False(t, ok, "below the first symbol")
}

// TestProgram_CrashedTask covers both resolution paths: the explicit
// record and the crashing_cpu fallback.
func TestProgram_CrashedTask(t *testing.T) {
	// Explicit record.
	prog, err := Load(filepath.Join("testdata", "uek7-panic.jsonc"))
	require.NoError(t, err)
	crashed, err := prog.CrashedTask()
	require.NoError(t, err)
	assert.Equal(t, "cssdmonitor", crashed.Comm)

	// Fallback via crashing_cpu.
	prog, err = New(&Data{
		NowNS:     1,
		Tasks:     []TaskData{{Addr: 0x100, PID: 55, Comm: "ocssd.bin", Prio: 89, CPU: 0}},
		Runqueues: []RunqueueData{{Addr: 0x200, CPU: 0, CurrPID: 55}},
		Variables: map[string]uint64{"crashing_cpu": 0},
	})
	require.NoError(t, err)
	crashed, err = prog.CrashedTask()
	require.NoError(t, err)
	assert.Equal(t, "ocssd.bin", crashed.Comm)

	// Neither record present.
	prog, err = New(&Data{NowNS: 1})
	require.NoError(t, err)
	_, err = prog.CrashedTask()
	assert.Error(t, err)
}
