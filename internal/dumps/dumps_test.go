package dumps

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richl9/drgn-tools/internal/model"
)

// newLibrary builds a throwaway dump directory with a mix of
// snapshots, vmcores, and noise.
func newLibrary(t *testing.T) *Library {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{
		"uek7-panic.jsonc": "{}",
		"uek6-hang.json":   "{}",
		"vmcore.uek7":      "ELF",
		"node3.core":       "ELF",
		"README.md":        "not a dump",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	lib, err := Open(dir)
	require.NoError(t, err)
	return lib
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nonexistent"))
	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitDumpNotFound, cliErr.Code)
}

func TestList(t *testing.T) {
	lib := newLibrary(t)
	all, err := lib.List()
	require.NoError(t, err)
	require.Len(t, all, 4, "README.md and subdir are not dumps")

	names := make([]string, 0, len(all))
	for _, d := range all {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"node3.core", "uek6-hang", "uek7-panic", "vmcore.uek7"}, names)

	for _, d := range all {
		switch d.Name {
		case "uek7-panic", "uek6-hang":
			assert.Equal(t, KindSnapshot, d.Kind, d.Name)
		default:
			assert.Equal(t, KindVmcore, d.Kind, d.Name)
		}
		assert.NotZero(t, d.Size)
		assert.False(t, d.ModTime.IsZero())
	}
}

func TestResolve_ByName(t *testing.T) {
	lib := newLibrary(t)

	d, err := lib.Resolve("uek7-panic")
	require.NoError(t, err)
	assert.Equal(t, KindSnapshot, d.Kind)
	assert.Equal(t, filepath.Join(lib.Dir(), "uek7-panic.jsonc"), d.Path)

	d, err = lib.Resolve("vmcore.uek7")
	require.NoError(t, err)
	assert.Equal(t, KindVmcore, d.Kind)
}

func TestResolve_ByPath(t *testing.T) {
	lib := newLibrary(t)

	// A direct path resolves even when outside the library.
	outside := filepath.Join(t.TempDir(), "other.jsonc")
	require.NoError(t, os.WriteFile(outside, []byte("{}"), 0o644))

	d, err := lib.Resolve(outside)
	require.NoError(t, err)
	assert.Equal(t, outside, d.Path)
	assert.Equal(t, "other", d.Name)
}

func TestResolve_NotFound(t *testing.T) {
	lib := newLibrary(t)
	_, err := lib.Resolve("no-such-dump")
	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitDumpNotFound, cliErr.Code)
}

func TestResolve_Ambiguous(t *testing.T) {
	lib := newLibrary(t)
	// "uek7-panic" now matches both a snapshot and... another
	// snapshot with a different extension.
	require.NoError(t, os.WriteFile(filepath.Join(lib.Dir(), "uek7-panic.json"), []byte("{}"), 0o644))

	_, err := lib.Resolve("uek7-panic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}
