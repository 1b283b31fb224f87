// Package sandbox runs environments inside Docker containers and
// tracks them afterwards.
//
// Dumps from production machines get analyzed on shared triage hosts;
// running each environment's module suite in a container keeps its
// dependencies and pass-through variables isolated from the host and
// from other environments. Container labels are the only persisted
// state: every sandbox container carries "corelens.*" labels holding
// the environment name, dump path, and creation time, so the full
// sandbox inventory can be rebuilt from the Docker daemon alone.
package sandbox
