package sandbox

import (
	"fmt"
	"strings"
	"time"
)

// Label key constants define the Docker labels that persist sandbox
// metadata on containers. The labels are the sole persistence
// mechanism — there is no state file to fall out of sync with the
// daemon.
//
// All keys share the "corelens." prefix to avoid collisions with
// labels set by other tools on the same host.
const (
	// LabelPrefix is the common prefix for all sandbox labels.
	LabelPrefix = "corelens."

	// LabelManagedBy identifies containers managed by this tool.
	// Key: "corelens.managed-by", value: always "corelens".
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelEnv stores the environment name the container runs.
	LabelEnv = LabelPrefix + "env"

	// LabelDump stores the host path of the dump bound into the
	// container.
	LabelDump = LabelPrefix + "dump"

	// LabelCreatedAt stores the RFC3339 creation timestamp.
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for LabelManagedBy, used for
// label-filtered discovery through the Docker API.
const ManagedByValue = "corelens"

// Meta is the sandbox metadata carried on a container's labels.
type Meta struct {
	// Env is the environment name.
	Env string

	// Dump is the host path of the environment's dump.
	Dump string

	// CreatedAt is when the sandbox container was created.
	CreatedAt time.Time
}

// BuildLabels constructs the Docker label map for a sandbox
// container. ParseLabels inverts it.
func BuildLabels(meta Meta) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelEnv:       meta.Env,
		LabelDump:      meta.Dump,
		LabelCreatedAt: meta.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs sandbox metadata from container labels.
// Missing required labels are reported all at once rather than one
// per call, so a single inspect shows everything wrong.
func ParseLabels(labels map[string]string) (*Meta, error) {
	requiredKeys := []string{
		LabelManagedBy,
		LabelEnv,
		LabelDump,
		LabelCreatedAt,
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return &Meta{
		Env:       labels[LabelEnv],
		Dump:      labels[LabelDump],
		CreatedAt: createdAt,
	}, nil
}
