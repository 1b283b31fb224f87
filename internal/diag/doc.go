// Package diag holds the built-in diagnostic modules: lockup
// detection, workqueue watchdog analysis, in-flight block I/O, CRS
// eviction detection, and a dump summary. Each module is a stateless
// report over a kernel.Program; Registry wires them into the
// corelens framework.
package diag
