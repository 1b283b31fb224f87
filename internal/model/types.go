package model

import (
	"fmt"
	"regexp"
	"time"
)

// EnvStatus represents the lifecycle state of a runner environment.
// The state transitions are:
//
//	Running → Passed | Failed
type EnvStatus string

const (
	// StatusRunning indicates the environment's module suite is
	// currently executing.
	StatusRunning EnvStatus = "running"

	// StatusPassed indicates every module in the suite completed
	// without error.
	StatusPassed EnvStatus = "passed"

	// StatusFailed indicates the dump could not be loaded or at least
	// one module returned an error.
	StatusFailed EnvStatus = "failed"
)

// String returns the string representation of EnvStatus.
func (s EnvStatus) String() string {
	return string(s)
}

// ModuleResult records the outcome of one diagnostic module run.
type ModuleResult struct {
	// Module is the registered module name (e.g. "lockup").
	Module string `json:"module" yaml:"module"`

	// Args are the arguments the module ran with, if any.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// Err holds the module's failure, nil on success. It is excluded
	// from serialization; Error carries the message instead.
	Err error `json:"-" yaml:"-"`

	// Error is the failure message for serialized reports.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Duration is the module's wall-clock run time.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// OutputPath is the report file the module wrote to, when the
	// runner writes per-module files. Empty for combined output.
	OutputPath string `json:"outputPath,omitempty" yaml:"outputPath,omitempty"`
}

// OK reports whether the module completed without error.
func (r *ModuleResult) OK() bool {
	return r.Err == nil && r.Error == ""
}

// EnvResult records the outcome of one runner environment.
type EnvResult struct {
	// Name is the environment name from the runner configuration.
	Name string `json:"name" yaml:"name"`

	// Dump is the resolved path of the dump the suite ran against.
	Dump string `json:"dump" yaml:"dump"`

	// Status is the terminal state of the environment run.
	Status EnvStatus `json:"status" yaml:"status"`

	// Modules holds the per-module outcomes, in execution order.
	Modules []ModuleResult `json:"modules" yaml:"modules"`

	// Duration is the environment's total wall-clock run time.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// StartedAt is when the environment run began.
	StartedAt time.Time `json:"startedAt" yaml:"startedAt"`
}

// Failed returns the names of modules that did not complete cleanly.
func (r *EnvResult) Failed() []string {
	var failed []string
	for i := range r.Modules {
		if !r.Modules[i].OK() {
			failed = append(failed, r.Modules[i].Module)
		}
	}
	return failed
}

// nameRegex validates environment and module names: lowercase
// alphanumerics and hyphens, starting and ending with an alphanumeric.
var nameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$|^[a-z0-9]$`)

// ValidateName checks whether name is a valid environment or module
// identifier. Names appear in file paths, container labels, and report
// headers, so the accepted alphabet is deliberately narrow.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid name %q: must contain only lowercase alphanumerics and hyphens, and start/end with an alphanumeric", name)
	}
	return nil
}

// ExitCode defines the CLI exit codes. These codes let scripts and CI
// systems programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitDumpNotFound indicates the dump file (snapshot or vmcore)
	// was not found or could not be parsed.
	ExitDumpNotFound ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not
	// accessible (sandbox commands only).
	ExitDockerNotRunning ExitCode = 3

	// ExitConfigInvalid indicates the runner configuration failed
	// validation.
	ExitConfigInvalid ExitCode = 4

	// ExitModuleFailed indicates at least one diagnostic module
	// returned an error.
	ExitModuleFailed ExitCode = 5

	// ExitEnvNotFound indicates the named runner environment does not
	// exist in the configuration.
	ExitEnvNotFound ExitCode = 6
)

// CLIError is an error type that carries an exit code, allowing the
// CLI layer to translate domain errors into process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
