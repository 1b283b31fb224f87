package envconf

import (
	"os"
	"path"
	"strings"
)

// MatchesAny reports whether name matches at least one of the glob
// patterns. Patterns use path.Match syntax ("DRGNTOOLS_*" matches
// DRGNTOOLS_DEBUG). Invalid patterns never match; Validate flags
// them separately.
func MatchesAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// PassEnv filters the process environment by the given glob patterns
// and returns the matching entries in "KEY=value" form, preserving
// os.Environ order. This is the set of variables forwarded into an
// isolated environment run.
func PassEnv(patterns []string) []string {
	var passed []string
	for _, entry := range os.Environ() {
		key, _, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if MatchesAny(key, patterns) {
			passed = append(passed, entry)
		}
	}
	return passed
}
