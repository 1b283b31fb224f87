// Package model defines the domain value types shared across the
// corelens CLI: exit codes, the CLIError type that carries them,
// environment run results, and name validation.
//
// This package contains pure data structures with no external
// dependencies. Runtime state (loaded dumps, registries, sandbox
// containers) lives in the packages that own it; model only describes
// the shapes those packages exchange.
package model
