// Package dumps manages the local dump library: a directory of
// kernel snapshots and raw vmcores that environments reference by
// name.
//
// Design decisions:
//   - The library is just a directory; there is no index file. The
//     filesystem is the source of truth, so dropping a dump in place
//     is enough to make it resolvable.
//   - Classification is by filename only (*.json/*.jsonc are
//     snapshots, vmcore*/*.core are vmcores) — dumps are often
//     multi-gigabyte and must not be opened just to be listed.
//   - Missing dumps surface as model.CLIError with ExitDumpNotFound
//     to enable proper CLI exit code handling.
package dumps

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/richl9/drgn-tools/internal/model"
)

// Kind classifies a dump file.
type Kind string

const (
	// KindSnapshot is a JSONC kernel snapshot.
	KindSnapshot Kind = "snapshot"

	// KindVmcore is a raw ELF vmcore.
	KindVmcore Kind = "vmcore"
)

// Info holds metadata about one dump in the library.
type Info struct {
	// Name is the dump's library name: the filename without its
	// snapshot extension ("uek7-panic.jsonc" → "uek7-panic").
	// Vmcores keep their full filename as the name.
	Name string

	// Path is the absolute path to the dump file.
	Path string

	// Kind classifies the dump.
	Kind Kind

	// Size is the file size in bytes.
	Size int64

	// ModTime is the file's modification time.
	ModTime time.Time
}

// Library provides access to a dump directory.
type Library struct {
	dir string
}

// Open returns a Library over the given directory. The directory
// must exist; an empty directory is a valid (empty) library.
func Open(dir string) (*Library, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, model.NewCLIError(
			model.ExitDumpNotFound,
			fmt.Sprintf("dump directory not found: %s", dir),
		)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening dump directory %s", dir)
	}
	if !info.IsDir() {
		return nil, model.NewCLIError(
			model.ExitDumpNotFound,
			fmt.Sprintf("not a directory: %s", dir),
		)
	}
	return &Library{dir: dir}, nil
}

// Dir returns the library's directory.
func (l *Library) Dir() string {
	return l.dir
}

// List scans the library and returns every dump, sorted by name.
// Files that are neither snapshots nor vmcores are skipped.
func (l *Library) List() ([]Info, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "scanning dump directory %s", l.dir)
	}

	var dumps []Info
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		kind, name, ok := classify(entry.Name())
		if !ok {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", entry.Name())
		}
		dumps = append(dumps, Info{
			Name:    name,
			Path:    filepath.Join(l.dir, entry.Name()),
			Kind:    kind,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
	}

	sort.Slice(dumps, func(i, j int) bool { return dumps[i].Name < dumps[j].Name })
	return dumps, nil
}

// Resolve maps a dump reference to a path. A reference that is an
// existing file path is returned as-is; otherwise it is treated as a
// library name. Ambiguous names (matching both a snapshot and a
// vmcore) are an error rather than a silent pick.
func (l *Library) Resolve(ref string) (*Info, error) {
	if fi, err := os.Stat(ref); err == nil && !fi.IsDir() {
		kind, name, ok := classify(filepath.Base(ref))
		if !ok {
			kind, name = KindSnapshot, filepath.Base(ref)
		}
		return &Info{Name: name, Path: ref, Kind: kind, Size: fi.Size(), ModTime: fi.ModTime()}, nil
	}

	all, err := l.List()
	if err != nil {
		return nil, err
	}
	var matches []Info
	for _, d := range all {
		if d.Name == ref {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return nil, model.NewCLIError(
			model.ExitDumpNotFound,
			fmt.Sprintf("dump %q not found in %s", ref, l.dir),
		)
	case 1:
		return &matches[0], nil
	default:
		return nil, model.NewCLIError(
			model.ExitDumpNotFound,
			fmt.Sprintf("dump name %q is ambiguous in %s (%d matches)", ref, l.dir, len(matches)),
		)
	}
}

// classify maps a filename to its dump kind and library name.
func classify(filename string) (Kind, string, bool) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".json"), strings.HasSuffix(lower, ".jsonc"):
		return KindSnapshot, strings.TrimSuffix(filename, filepath.Ext(filename)), true
	case strings.HasPrefix(lower, "vmcore"), strings.HasSuffix(lower, ".core"):
		return KindVmcore, filename, true
	default:
		return "", "", false
	}
}
