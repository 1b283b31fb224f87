package kernel

import (
	"fmt"
	"strings"
)

// Disk is a block device (struct gendisk) with its request queue.
type Disk struct {
	// Addr is the kernel address of the gendisk.
	Addr uint64

	// Name is the disk name (e.g. "sda", "nvme0n1").
	Name string

	// Queue is the disk's request queue.
	Queue *Queue
}

// Queue is a block request queue. Multi-queue (blk-mq) devices carry
// their pending requests on hardware queues; legacy single-queue
// devices carry them directly on the queue.
type Queue struct {
	// Addr is the kernel address of the request_queue.
	Addr uint64

	// HWQueues lists the hardware dispatch queues (blk-mq).
	HWQueues []*HardwareQueue

	// SQPending lists pending requests on a legacy single-queue
	// device. Empty for blk-mq devices.
	SQPending []*Request
}

// HardwareQueue is a blk-mq hardware dispatch queue.
type HardwareQueue struct {
	// Addr is the kernel address of the blk_mq_hw_ctx.
	Addr uint64

	// Flags is the hardware queue flag word (BLK_MQ_F_*).
	Flags uint64

	// Pending lists requests currently owned by the driver.
	Pending []*Request
}

// Request is an in-flight block I/O request.
type Request struct {
	// Addr is the kernel address of the struct request.
	Addr uint64

	// CPU is the CPU the request was issued from, or -1 if the
	// kernel did not record one.
	CPU int

	// Op is the request operation (REQ_OP_* value, low bits of
	// cmd_flags).
	Op uint64

	// CmdFlags is the full cmd_flags word including the REQ_* flag
	// bits above the op.
	CmdFlags uint64

	// Sector is the request's starting sector.
	Sector uint64

	// DataLen is the request's data length in bytes.
	DataLen uint64

	// IssueTimeNS is when the request was handed to the driver, on
	// the capture clock.
	IssueTimeNS uint64

	// TargetDisk is the gendisk address the request targets. Used to
	// attribute requests on shared-tag hardware queues to the right
	// disk.
	TargetDisk uint64
}

// IssuedCPU returns the issuing CPU as a display string, "-" when the
// kernel did not record one.
func (r *Request) IssuedCPU() string {
	if r.CPU < 0 {
		return "-"
	}
	return fmt.Sprintf("%d", r.CPU)
}

// PendingTime returns how long the request has been in flight, in
// nanoseconds, measured against the dump's capture instant.
func (r *Request) PendingTime(prog Program) uint64 {
	now := prog.NowNS()
	if r.IssueTimeNS > now || r.IssueTimeNS == 0 {
		return 0
	}
	return now - r.IssueTimeNS
}

// reqOpBits is the width of the op field inside cmd_flags.
const reqOpBits = 8

// opNames maps REQ_OP_* values to display names. The table covers the
// operations that show up in practice; unknown values render as hex.
var opNames = map[uint64]string{
	0: "READ",
	1: "WRITE",
	2: "FLUSH",
	3: "DISCARD",
	5: "SECURE_ERASE",
	7: "WRITE_ZEROES",
	9: "ZONE_OPEN",
}

// OpName returns the display name for the request's operation.
func (r *Request) OpName() string {
	if name, ok := opNames[r.Op]; ok {
		return name
	}
	return fmt.Sprintf("op-0x%x", r.Op)
}

// reqFlagNames maps cmd_flags bit positions (above the op field) to
// display names, in bit order.
var reqFlagNames = []struct {
	bit  uint
	name string
}{
	{8, "FAILFAST_DEV"},
	{9, "FAILFAST_TRANSPORT"},
	{10, "FAILFAST_DRIVER"},
	{11, "SYNC"},
	{12, "META"},
	{13, "PRIO"},
	{14, "NOMERGE"},
	{15, "IDLE"},
	{16, "INTEGRITY"},
	{17, "FUA"},
	{18, "PREFLUSH"},
	{19, "RAHEAD"},
	{20, "BACKGROUND"},
	{21, "NOWAIT"},
}

// FlagNames renders the request's flag bits as a pipe-joined name
// list (e.g. "SYNC|FUA"). Requests with no flag bits set render as
// "-"; bits without a known name are kept as hex so nothing is
// silently dropped.
func (r *Request) FlagNames() string {
	flags := r.CmdFlags >> reqOpBits << reqOpBits
	if flags == 0 {
		return "-"
	}

	var names []string
	remaining := flags
	for _, f := range reqFlagNames {
		mask := uint64(1) << f.bit
		if flags&mask != 0 {
			names = append(names, f.name)
			remaining &^= mask
		}
	}
	if remaining != 0 {
		names = append(names, fmt.Sprintf("0x%x", remaining))
	}
	return strings.Join(names, "|")
}
