// Package cli — sandbox.go implements the "corelens sandbox" command
// group.
//
// Sandbox containers are discovered purely by their labels, so these
// commands have no local state: list shows every managed container,
// stop stops the one belonging to an environment, clean stops and
// removes all of them.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/richl9/drgn-tools/internal/model"
	"github.com/richl9/drgn-tools/internal/sandbox"
)

// NewSandboxCommand creates the "sandbox" cobra command group.
func NewSandboxCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Manage sandbox containers",
		Long: `Manage the Docker containers launched by "corelens runner --docker".

Examples:
  corelens sandbox list
  corelens sandbox stop uek7-panic
  corelens sandbox clean`,
	}

	cmd.AddCommand(newSandboxListCommand())
	cmd.AddCommand(newSandboxStopCommand())
	cmd.AddCommand(newSandboxCleanCommand())

	return cmd
}

// newSandboxListCommand creates the "sandbox list" subcommand.
func newSandboxListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sandbox containers",
		Args:  cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runSandboxList(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

// newSandboxStopCommand creates the "sandbox stop" subcommand.
func newSandboxStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop ENV",
		Short: "Stop the sandbox container of an environment",
		Args:  cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runSandboxStop(cmd.Context(), args[0], cmd.OutOrStdout())
		},
	}
}

// newSandboxCleanCommand creates the "sandbox clean" subcommand.
func newSandboxCleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Stop and remove all sandbox containers",
		Args:  cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runSandboxClean(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

// withSandboxClient connects to the Docker daemon, verifies it is
// responding, and hands the client to fn.
func withSandboxClient(ctx context.Context, fn func(*sandbox.Client) error) error {
	cli, err := sandbox.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()
	if err := cli.Ping(ctx); err != nil {
		return err
	}
	return fn(cli)
}

// runSandboxList is the main logic function for "sandbox list".
func runSandboxList(ctx context.Context, out io.Writer) error {
	return withSandboxClient(ctx, func(cli *sandbox.Client) error {
		containers, err := sandbox.List(ctx, cli)
		if err != nil {
			return err
		}
		printSandboxList(out, containers)
		return nil
	})
}

// runSandboxStop is the main logic function for "sandbox stop".
func runSandboxStop(ctx context.Context, envName string, out io.Writer) error {
	return withSandboxClient(ctx, func(cli *sandbox.Client) error {
		containers, err := sandbox.List(ctx, cli)
		if err != nil {
			return err
		}
		for _, c := range containers {
			if c.Meta == nil || c.Meta.Env != envName {
				continue
			}
			if err := sandbox.Stop(ctx, cli, c.ID); err != nil {
				return err
			}
			fmt.Fprintf(out, "stopped %s (%s)\n", envName, shortID(c.ID))
			return nil
		}
		return model.NewCLIError(model.ExitEnvNotFound,
			fmt.Sprintf("no sandbox container for environment %q", envName))
	})
}

// runSandboxClean is the main logic function for "sandbox clean".
// Remove forces removal, so running containers do not need a
// separate stop first.
func runSandboxClean(ctx context.Context, out io.Writer) error {
	return withSandboxClient(ctx, func(cli *sandbox.Client) error {
		containers, err := sandbox.List(ctx, cli)
		if err != nil {
			return err
		}
		for _, c := range containers {
			if err := sandbox.Remove(ctx, cli, c.ID); err != nil {
				return err
			}
			fmt.Fprintf(out, "removed %s\n", shortID(c.ID))
		}
		if len(containers) == 0 {
			fmt.Fprintln(out, "No sandbox containers found.")
		}
		return nil
	})
}

// sandboxJSON is the JSON output structure for a single container in
// "sandbox list".
type sandboxJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	Env       string `json:"env,omitempty"`
	Dump      string `json:"dump,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// printSandboxList outputs the container list in text or JSON format,
// depending on the global --json flag.
func printSandboxList(out io.Writer, containers []sandbox.ContainerInfo) {
	if IsJSONOutput() {
		type resultJSON struct {
			Containers []sandboxJSON `json:"containers"`
		}
		result := resultJSON{Containers: make([]sandboxJSON, 0, len(containers))}
		for _, c := range containers {
			entry := sandboxJSON{ID: c.ID, Name: c.Name, State: c.State}
			if c.Meta != nil {
				entry.Env = c.Meta.Env
				entry.Dump = c.Meta.Dump
				entry.CreatedAt = c.Meta.CreatedAt.UTC().Format(time.RFC3339)
			}
			result.Containers = append(result.Containers, entry)
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Fprintln(out, string(data))
		return
	}

	if len(containers) == 0 {
		fmt.Fprintln(out, "No sandbox containers found.")
		return
	}

	fmt.Fprintf(out, "%-14s %-20s %-10s %s\n", "CONTAINER", "ENVIRONMENT", "STATE", "DUMP")
	for _, c := range containers {
		env, dump := "?", "?"
		if c.Meta != nil {
			env, dump = c.Meta.Env, c.Meta.Dump
		}
		fmt.Fprintf(out, "%-14s %-20s %-10s %s\n", shortID(c.ID), env, c.State, dump)
	}
}

// shortID abbreviates a container ID the way the docker CLI does.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
