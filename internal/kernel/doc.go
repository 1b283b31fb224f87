// Package kernel defines the kernel object model that diagnostic
// modules analyze: tasks, runqueues, workqueue worker pools, block
// layer queues and requests, NVMe controllers, dentries, and stack
// frames.
//
// The central abstraction is the Program interface — a read-only view
// of one machine's kernel state at a single instant. Modules are
// written purely against Program, which keeps them independent of
// where the state came from (today a state snapshot, see
// internal/snapshot; the raw-vmcore reader in internal/vmcore supplies
// the metadata subset).
//
// The package also carries the small pieces of kernel knowledge the
// modules share: scheduling-class classification from task priority,
// block request op/flag decoding, and duration formatting for
// "how long has this been stuck" columns.
package kernel
