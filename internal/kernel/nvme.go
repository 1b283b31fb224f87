package kernel

import "fmt"

// NvmeController is an NVMe controller with its management queues.
// Beyond per-namespace I/O queues (which surface as regular disks),
// a controller owns up to three management queues whose stuck
// requests never show up in any disk listing:
//
//   - the admin queue (always present)
//   - the connect queue (fabrics transports, kernels >= 4.8)
//   - the fabrics command queue (kernels >= 5.4)
//
// A nil queue means the controller does not have that queue — either
// the kernel predates it or the transport does not use it.
type NvmeController struct {
	// Addr is the kernel address of the nvme_ctrl.
	Addr uint64

	// Instance is the controller instance number ("nvme0" → 0).
	Instance int

	// AdminQueue is the controller's admin request queue.
	AdminQueue *Queue

	// ConnectQueue is the fabrics connect queue, if present.
	ConnectQueue *Queue

	// FabricsQueue is the fabrics command queue, if present.
	FabricsQueue *Queue
}

// MgmtQueue returns the controller's management queue of the given
// kind ("admin", "connect" or "fabrics") together with its display
// name ("nvme0-admin"). Returns nil when the controller does not
// have that queue.
func (c *NvmeController) MgmtQueue(kind string) (*Queue, string) {
	var q *Queue
	switch kind {
	case "admin":
		q = c.AdminQueue
	case "connect":
		q = c.ConnectQueue
	case "fabrics":
		q = c.FabricsQueue
	default:
		return nil, ""
	}
	if q == nil {
		return nil, ""
	}
	return q, fmt.Sprintf("nvme%d-%s", c.Instance, kind)
}
