package diag

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/richl9/drgn-tools/internal/corelens"
	"github.com/richl9/drgn-tools/internal/kernel"
)

// inflightIO lists block I/O requests currently owned by drivers:
// blk-mq hardware queue requests per disk, legacy single-queue
// requests, and (for the full scan) NVMe management queue requests
// that no disk listing would ever show.
type inflightIO struct {
	diskName string
}

func newInflightIO() corelens.Module { return &inflightIO{} }

func (m *inflightIO) Name() string { return "inflight-io" }

func (m *inflightIO) Synopsis() string {
	return "Display I/O requests that are currently pending"
}

func (m *inflightIO) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&m.diskName, "diskname", "all", "Dump in-flight IO from some disk")
}

func (m *inflightIO) Run(ctx context.Context, prog kernel.Program, w io.Writer) error {
	fmt.Fprintf(w, "%-20s %-20s %-20s %-16s %-16s\n%-20s %-20s %-20s %-16s\n",
		"device", "hwq", "request", "cpu", "op",
		"flags", "offset", "len", "inflight-time")

	// Renamed to BLK_MQ_F_TAG_QUEUE_SHARED in v5.10; try both.
	sharedMask, ok := prog.Constant("BLK_MQ_F_TAG_SHARED")
	if !ok {
		sharedMask, ok = prog.Constant("BLK_MQ_F_TAG_QUEUE_SHARED")
	}
	if !ok {
		return errors.New("dump records neither BLK_MQ_F_TAG_SHARED nor BLK_MQ_F_TAG_QUEUE_SHARED")
	}

	for _, disk := range prog.Disks() {
		if m.diskName != "all" && m.diskName != disk.Name {
			continue
		}
		for _, hwq := range disk.Queue.HWQueues {
			for _, rq := range hwq.Pending {
				// Shared-tag hardware queues carry requests from every
				// disk behind the same HBA; attribute each request to
				// its target disk only.
				if hwq.Flags&sharedMask != 0 && rq.TargetDisk != disk.Addr {
					continue
				}
				printRequest(w, prog, disk.Name, fmt.Sprintf("%-20x", hwq.Addr), rq.IssuedCPU(), rq)
			}
		}
		// Legacy single-queue requests have no hardware queue and no
		// recorded issuing CPU.
		for _, rq := range disk.Queue.SQPending {
			printRequest(w, prog, disk.Name, fmt.Sprintf("%-20s", "-"), "-", rq)
		}
	}

	if m.diskName == "all" {
		dumpNvmeMgmtInflight(w, prog, "admin")
		dumpNvmeMgmtInflight(w, prog, "connect")
		dumpNvmeMgmtInflight(w, prog, "fabrics")
	}
	return nil
}

// dumpNvmeMgmtInflight prints pending requests on the NVMe
// management queue of the given kind for every controller that has
// one.
func dumpNvmeMgmtInflight(w io.Writer, prog kernel.Program, kind string) {
	for _, ctrl := range prog.NvmeControllers() {
		q, name := ctrl.MgmtQueue(kind)
		if q == nil {
			continue
		}
		for _, hwq := range q.HWQueues {
			for _, rq := range hwq.Pending {
				printRequest(w, prog, name, fmt.Sprintf("%-20x", hwq.Addr), rq.IssuedCPU(), rq)
			}
		}
	}
}

// printRequest writes one request as a two-line record matching the
// column header. hwqCell arrives pre-padded so blk-mq and
// single-queue rows share this path.
func printRequest(w io.Writer, prog kernel.Program, device, hwqCell, cpu string, rq *kernel.Request) {
	fmt.Fprintf(w, "%-20s %s %-20x %-16s %-16s\n%-20s %-20d %-20d %-16s\n",
		device, hwqCell, rq.Addr, cpu, rq.OpName(),
		rq.FlagNames(), rq.Sector, rq.DataLen,
		kernel.FormatDuration(rq.PendingTime(prog)))
}
