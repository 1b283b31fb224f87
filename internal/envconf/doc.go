// Package envconf handles the corelens runner configuration file.
//
// The configuration is YAML and declares named environments, each
// binding a dump to a module suite, plus shared defaults (environment
// variable pass-through patterns) and output settings (report
// directory, maximum report line width).
//
// Key responsibilities:
//   - Load and parse the configuration with defaults applied
//   - Validate the schema: unique well-formed names, resolvable
//     paths, module specs known to the registry
//   - Filter the process environment by pass-through glob patterns
package envconf
