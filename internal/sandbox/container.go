// container.go implements sandbox container lifecycle operations:
// launching environment runs, listing managed containers, and
// stopping or removing them.
//
// Lifecycle follows two patterns:
//   - Launch shells out to `docker run`, matching how operators
//     launch things by hand and keeping the full CLI surface
//     (binds, env flags) available without SDK struct plumbing.
//   - List/Stop/Remove go through the Docker SDK, where the typed
//     API and server-side label filtering are a better fit.
package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/pkg/errors"

	"github.com/richl9/drgn-tools/internal/log"
	"github.com/richl9/drgn-tools/internal/model"
)

// ContainerInfo describes one managed sandbox container.
type ContainerInfo struct {
	// ID is the container's full Docker ID.
	ID string

	// Name is the container name with the API's leading "/"
	// stripped.
	Name string

	// State is the Docker short state string ("running", "exited",
	// "created").
	State string

	// Meta is the sandbox metadata parsed from the container's
	// labels, nil when the labels are malformed.
	Meta *Meta
}

// LaunchSpec describes one sandbox launch.
type LaunchSpec struct {
	// Image is the container image holding the corelens binary.
	Image string

	// EnvName is the environment being run.
	EnvName string

	// DumpPath is the host path of the environment's dump, bind
	// mounted read-only into the container.
	DumpPath string

	// PassEnv lists "KEY=value" entries forwarded into the
	// container.
	PassEnv []string

	// Modules lists module run specs. Empty means the full default
	// suite.
	Modules []string
}

// containerDumpDir is where the dump is mounted inside the
// container.
const containerDumpDir = "/corelens/dumps"

// Launch starts a detached sandbox container running the
// environment's module suite and returns the container ID.
//
// The container is labeled with the sandbox metadata so that List
// can rediscover it later without any local state.
func Launch(ctx context.Context, spec LaunchSpec) (string, error) {
	meta := Meta{
		Env:       spec.EnvName,
		Dump:      spec.DumpPath,
		CreatedAt: time.Now(),
	}

	mountedDump := filepath.Join(containerDumpDir, filepath.Base(spec.DumpPath))
	args := []string{
		"run", "--detach",
		"--name", "corelens-" + spec.EnvName,
		"--volume", fmt.Sprintf("%s:%s:ro", spec.DumpPath, mountedDump),
	}
	for key, value := range BuildLabels(meta) {
		args = append(args, "--label", key+"="+value)
	}
	for _, entry := range spec.PassEnv {
		args = append(args, "--env", entry)
	}
	args = append(args, spec.Image, "corelens", "run", "-d", mountedDump)
	for _, m := range spec.Modules {
		args = append(args, "-M", m)
	}

	logger := log.WithComponent("sandbox")
	logger.Debug().Strs("args", args).Msg("launching sandbox container")

	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("docker run failed for environment %q: %s",
				spec.EnvName, strings.TrimSpace(string(out))),
			err,
		)
	}

	// `docker run --detach` prints the new container ID.
	id := strings.TrimSpace(string(out))
	logger.Info().Str("env", spec.EnvName).Str("container", id).Msg("sandbox started")
	return id, nil
}

// List queries the daemon for every container carrying the corelens
// management label, including stopped ones — a finished environment
// run still needs to show up until it is removed.
func List(ctx context.Context, cli *Client) ([]ContainerInfo, error) {
	// Server-side label filtering beats listing everything and
	// filtering here.
	filterArgs := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}
	return result, nil
}

// containerToInfo converts a Docker API container to ContainerInfo.
func containerToInfo(c types.Container) ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		// The API reports names with a leading "/".
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	// Malformed labels leave Meta nil rather than failing the whole
	// listing; the container is still visible for cleanup.
	meta, err := ParseLabels(c.Labels)
	if err != nil {
		meta = nil
	}

	return ContainerInfo{
		ID:    c.ID,
		Name:  name,
		State: c.State,
		Meta:  meta,
	}
}

// Stop stops a sandbox container, letting the daemon apply its
// default kill timeout.
func Stop(ctx context.Context, cli *Client, containerID string) error {
	if err := cli.Inner().ContainerStop(ctx, containerID, container.StopOptions{}); err != nil {
		return errors.Wrapf(err, "stopping container %s", containerID)
	}
	return nil
}

// Remove deletes a sandbox container. Force covers the
// still-running case so cleanup never needs a separate stop.
func Remove(ctx context.Context, cli *Client, containerID string) error {
	if err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		return errors.Wrapf(err, "removing container %s", containerID)
	}
	return nil
}
