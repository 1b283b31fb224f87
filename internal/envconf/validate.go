package envconf

import (
	"fmt"
	"os"
	"path"

	"github.com/richl9/drgn-tools/internal/corelens"
	"github.com/richl9/drgn-tools/internal/model"
)

// ValidationError represents a specific validation failure in a
// runner configuration.
type ValidationError struct {
	// Field is the configuration field path that failed validation
	// (e.g., "environments[2].dump").
	Field string

	// Message describes what is wrong with the field value.
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s: %s", e.Field, e.Message)
}

// Validate performs schema checks on a loaded configuration and
// returns a list of validation errors (empty list = valid).
//
// Checks performed:
//   - Environment names are well-formed and unique
//   - Each environment's dump path resolves to an existing file
//   - Every `requires` path resolves to an existing file
//   - Every module spec parses against the registry
//   - Every pass-through pattern is a valid glob
//   - The output line width is positive
func Validate(cfg *Config, reg *corelens.Registry) []ValidationError {
	var errs []ValidationError

	seen := make(map[string]int)
	for i := range cfg.Environments {
		env := &cfg.Environments[i]
		field := func(f string) string {
			return fmt.Sprintf("environments[%d].%s", i, f)
		}

		if err := model.ValidateName(env.Name); err != nil {
			errs = append(errs, ValidationError{Field: field("name"), Message: err.Error()})
		} else if prev, dup := seen[env.Name]; dup {
			errs = append(errs, ValidationError{
				Field:   field("name"),
				Message: fmt.Sprintf("duplicate environment name %q (first declared at environments[%d])", env.Name, prev),
			})
		} else {
			seen[env.Name] = i
		}

		if env.Dump == "" {
			errs = append(errs, ValidationError{Field: field("dump"), Message: "dump path is required"})
		} else if err := checkFile(cfg.ResolvePath(env.Dump)); err != nil {
			errs = append(errs, ValidationError{Field: field("dump"), Message: err.Error()})
		}

		if env.Vmcore != "" {
			if err := checkFile(cfg.ResolvePath(env.Vmcore)); err != nil {
				errs = append(errs, ValidationError{Field: field("vmcore"), Message: err.Error()})
			}
		}

		for j, req := range env.Requires {
			if err := checkFile(cfg.ResolvePath(req)); err != nil {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("environments[%d].requires[%d]", i, j),
					Message: err.Error(),
				})
			}
		}

		for j, spec := range env.Modules {
			if _, err := corelens.ParseRunSpec(reg, spec); err != nil {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("environments[%d].modules[%d]", i, j),
					Message: err.Error(),
				})
			}
		}

		for j, pattern := range env.PassEnv {
			if !validGlob(pattern) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("environments[%d].passenv[%d]", i, j),
					Message: fmt.Sprintf("invalid glob pattern %q", pattern),
				})
			}
		}
	}

	for j, pattern := range cfg.Defaults.PassEnv {
		if !validGlob(pattern) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("defaults.passenv[%d]", j),
				Message: fmt.Sprintf("invalid glob pattern %q", pattern),
			})
		}
	}

	if cfg.Output.MaxLineWidth <= 0 {
		errs = append(errs, ValidationError{
			Field:   "output.maxLineWidth",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Output.MaxLineWidth),
		})
	}

	return errs
}

// checkFile reports whether p is an existing regular file.
func checkFile(p string) error {
	info, err := os.Stat(p)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", p)
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("is a directory, expected a file: %s", p)
	}
	return nil
}

// validGlob reports whether pattern is accepted by path.Match.
func validGlob(pattern string) bool {
	_, err := path.Match(pattern, "")
	return err == nil
}
