// Package snapshot loads kernel-state snapshot files and exposes them
// as a kernel.Program for the diagnostic modules.
//
// A snapshot is a JSONC document (JSON with comments and trailing
// commas allowed) carrying the resolved kernel object graph of one
// machine at one instant: tasks with their captured stacks, per-CPU
// runqueues and worker pools, block and NVMe queues with in-flight
// requests, dentries, a symbol table, and the global variables and
// constants the modules consult. Snapshots are produced by a capture
// step with debuginfo access; this package only consumes them, so the
// analysis side needs no DWARF machinery.
//
// Comments are stripped with github.com/tidwall/jsonc before parsing
// with encoding/json, so capture pipelines may annotate snapshots
// freely.
package snapshot
