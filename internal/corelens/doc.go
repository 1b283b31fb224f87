// Package corelens is the diagnostic module framework: the Module
// interface, the registry that enforces unique module names, run-spec
// parsing ("lockup -t 5"), and the batch runner that executes modules
// against a loaded kernel program.
//
// Modules are registered as factories so every invocation gets a
// fresh instance with its own flag state; the same registry can serve
// any number of concurrent environment runs.
package corelens
