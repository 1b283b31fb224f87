// Package main is the entry point for the corelens CLI.
//
// This binary analyzes kernel core dump snapshots: it runs diagnostic
// modules against them, batches runs over configured environments,
// and manages Docker sandboxes for isolated runs. It delegates all
// functionality to the internal/cli package, which defines cobra
// commands.
//
// Build-time variables (version, commit, date) are injected via
// ldflags by GoReleaser during the release process. During
// development, they default to "dev", "none", and "unknown"
// respectively.
package main

import (
	"github.com/richl9/drgn-tools/internal/cli"
)

// version, commit, and date are set by GoReleaser at build time
// via ldflags (see .goreleaser.yml). They provide binary
// identification for the --version flag output.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Inject build-time version info into the CLI package.
	cli.Version = version
	cli.Commit = commit
	cli.Date = date

	rootCmd := cli.NewRootCommand()
	cli.Execute(rootCmd)
}
