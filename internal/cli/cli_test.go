// Package cli — cli_test.go contains unit tests for the CLI's pure
// formatting helpers and for commands that run without a Docker
// daemon: list, info, check, and dump resolution.
package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richl9/drgn-tools/internal/diag"
	"github.com/richl9/drgn-tools/internal/dumps"
	"github.com/richl9/drgn-tools/internal/envconf"
	"github.com/richl9/drgn-tools/internal/model"
)

// testSnapshot is the smallest dump the info command reads metadata
// from.
const testSnapshot = `{
  // single-CPU idle capture
  "info": {"osRelease": "5.15.0-test", "pageSize": 4096, "crashTimeUnix": 1767225600},
  "nowNs": 10000000000,
  "tasks": [{"addr": 1, "pid": 0, "comm": "swapper/0", "prio": 120, "cpu": 0, "lastArrivalNs": 0}],
  "runqueues": [{"addr": 100, "cpu": 0, "currPid": 0}]
}`

// withJSONOutput runs fn with the global --json flag forced to v.
func withJSONOutput(t *testing.T, v bool, fn func()) {
	t.Helper()
	prev := jsonOutput
	jsonOutput = v
	defer func() { jsonOutput = prev }()
	fn()
}

func TestPrintModuleList(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		withJSONOutput(t, false, func() {
			printModuleList(&buf, diag.Registry())
		})

		out := buf.String()
		assert.Contains(t, out, "MODULE")
		for _, name := range diag.Registry().Names() {
			assert.Contains(t, out, name)
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		withJSONOutput(t, true, func() {
			printModuleList(&buf, diag.Registry())
		})

		out := buf.String()
		assert.Contains(t, out, `"modules"`)
		assert.Contains(t, out, `"name": "lockup"`)
		assert.Contains(t, out, `"synopsis"`)
	})
}

func TestResolveDump(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uek7-panic.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(testSnapshot), 0o644))

	t.Run("by path", func(t *testing.T) {
		info, err := resolveDump(path, t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, path, info.Path)
		assert.Equal(t, dumps.KindSnapshot, info.Kind)
	})

	t.Run("by name", func(t *testing.T) {
		info, err := resolveDump("uek7-panic", dir)
		require.NoError(t, err)
		assert.Equal(t, path, info.Path)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := resolveDump("nope", dir)
		var cliErr *model.CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, model.ExitDumpNotFound, cliErr.Code)
	})
}

func TestRunInfo_Snapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uek7-panic.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(testSnapshot), 0o644))

	var buf bytes.Buffer
	withJSONOutput(t, false, func() {
		require.NoError(t, runInfo(path, &infoFlags{dumpDir: dir}, &buf))
	})

	out := buf.String()
	assert.Contains(t, out, "5.15.0-test")
	assert.Contains(t, out, "snapshot")
	assert.Contains(t, out, "4096")
	assert.Contains(t, out, "2026-01-01T00:00:00Z")
}

func TestRunCheck(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.jsonc"), []byte(testSnapshot), 0o644))

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "valid.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
environments:
  - name: uek7-panic
    dump: ok.jsonc
`), 0o644))

		var buf bytes.Buffer
		withJSONOutput(t, false, func() {
			require.NoError(t, runCheck(&checkFlags{config: path}, &buf))
		})
		assert.Contains(t, buf.String(), "OK")
	})

	t.Run("findings", func(t *testing.T) {
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
environments:
  - name: uek7-panic
    dump: missing.jsonc
    modules: ["no-such-module"]
`), 0o644))

		var buf bytes.Buffer
		var err error
		withJSONOutput(t, false, func() {
			err = runCheck(&checkFlags{config: path}, &buf)
		})

		var cliErr *model.CLIError
		require.ErrorAs(t, err, &cliErr)
		assert.Equal(t, model.ExitConfigInvalid, cliErr.Code)
		assert.Contains(t, buf.String(), "environments[0].dump")
		assert.Contains(t, buf.String(), "environments[0].modules[0]")
	})
}

func TestLaunchSpec_PassEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.jsonc"), []byte(testSnapshot), 0o644))
	path := filepath.Join(dir, "corelens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environments:
  - name: uek7-panic
    dump: ok.jsonc
    passenv: ["ORACLE_*"]
`), 0o644))

	cfg, err := envconf.Load(path)
	require.NoError(t, err)
	env, ok := cfg.Environment("uek7-panic")
	require.True(t, ok)

	t.Setenv("DRGNTOOLS_DEBUG", "1")
	t.Setenv("ORACLE_HOME", "/opt/oracle")
	t.Setenv("UNRELATED_VAR", "x")

	spec := launchSpec(cfg, env, "corelens:latest")
	assert.Equal(t, "corelens:latest", spec.Image)
	assert.Equal(t, "uek7-panic", spec.EnvName)
	assert.Equal(t, filepath.Join(dir, "ok.jsonc"), spec.DumpPath)

	// The container gets resolved KEY=value entries, never the
	// configured glob patterns.
	assert.Contains(t, spec.PassEnv, "DRGNTOOLS_DEBUG=1")
	assert.Contains(t, spec.PassEnv, "ORACLE_HOME=/opt/oracle")
	assert.NotContains(t, spec.PassEnv, "DRGNTOOLS_*")
	assert.NotContains(t, spec.PassEnv, "ORACLE_*")
	assert.NotContains(t, spec.PassEnv, "UNRELATED_VAR=x")
	for _, entry := range spec.PassEnv {
		assert.Contains(t, entry, "=")
	}
}

func TestLaunchSandboxes_UnknownEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.jsonc"), []byte(testSnapshot), 0o644))
	path := filepath.Join(dir, "corelens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environments:
  - name: uek7-panic
    dump: ok.jsonc
`), 0o644))

	cfg, err := envconf.Load(path)
	require.NoError(t, err)

	// The unknown name fails before any Docker connection is made.
	var buf bytes.Buffer
	flags := &runnerFlags{dockerImage: "corelens:latest", envs: []string{"typo"}}
	err = launchSandboxes(context.Background(), cfg, flags, &buf)

	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitEnvNotFound, cliErr.Code)
	assert.Contains(t, cliErr.Message, "typo")
}

// writeTestVmcore builds a minimal ELF64 little-endian core with one
// PT_NOTE segment holding VMCOREINFO and two NT_PRSTATUS notes.
func writeTestVmcore(t *testing.T) string {
	t.Helper()

	appendNote := func(buf *bytes.Buffer, name string, noteType uint32, desc []byte) {
		nameBytes := append([]byte(name), 0)
		hdr := [3]uint32{uint32(len(nameBytes)), uint32(len(desc)), noteType}
		binary.Write(buf, binary.LittleEndian, hdr)
		buf.Write(nameBytes)
		for buf.Len()%4 != 0 {
			buf.WriteByte(0)
		}
		buf.Write(desc)
		for buf.Len()%4 != 0 {
			buf.WriteByte(0)
		}
	}
	prstatus := func(pid uint32) []byte {
		desc := make([]byte, 336)
		binary.LittleEndian.PutUint32(desc[32:], pid)
		return desc
	}

	var notes bytes.Buffer
	appendNote(&notes, "VMCOREINFO", 0,
		[]byte("OSRELEASE=5.15.0-205.149.5.1.el8uek.x86_64\nPAGESIZE=4096\nCRASHTIME=1767225600\n"))
	appendNote(&notes, "CORE", 1, prstatus(2001))
	appendNote(&notes, "CORE", 1, prstatus(0))

	const (
		ehSize    = 64
		phEntSize = 56
	)

	var f bytes.Buffer
	// ELF identification: magic, 64-bit, little-endian, version 1.
	f.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1})
	f.Write(make([]byte, 9))
	binary.Write(&f, binary.LittleEndian, uint16(4))  // e_type: ET_CORE
	binary.Write(&f, binary.LittleEndian, uint16(62)) // e_machine: EM_X86_64
	binary.Write(&f, binary.LittleEndian, uint32(1))  // e_version
	binary.Write(&f, binary.LittleEndian, uint64(0))  // e_entry
	binary.Write(&f, binary.LittleEndian, uint64(ehSize))
	binary.Write(&f, binary.LittleEndian, uint64(0)) // e_shoff
	binary.Write(&f, binary.LittleEndian, uint32(0)) // e_flags
	binary.Write(&f, binary.LittleEndian, uint16(ehSize))
	binary.Write(&f, binary.LittleEndian, uint16(phEntSize))
	binary.Write(&f, binary.LittleEndian, uint16(1)) // e_phnum
	binary.Write(&f, binary.LittleEndian, uint16(0)) // e_shentsize
	binary.Write(&f, binary.LittleEndian, uint16(0)) // e_shnum
	binary.Write(&f, binary.LittleEndian, uint16(0)) // e_shstrndx

	binary.Write(&f, binary.LittleEndian, uint32(4)) // p_type: PT_NOTE
	binary.Write(&f, binary.LittleEndian, uint32(0)) // p_flags
	binary.Write(&f, binary.LittleEndian, uint64(ehSize+phEntSize))
	binary.Write(&f, binary.LittleEndian, uint64(0)) // p_vaddr
	binary.Write(&f, binary.LittleEndian, uint64(0)) // p_paddr
	binary.Write(&f, binary.LittleEndian, uint64(notes.Len()))
	binary.Write(&f, binary.LittleEndian, uint64(notes.Len()))
	binary.Write(&f, binary.LittleEndian, uint64(0)) // p_align
	f.Write(notes.Bytes())

	path := filepath.Join(t.TempDir(), "vmcore.uek7")
	require.NoError(t, os.WriteFile(path, f.Bytes(), 0o644))
	return path
}

func TestRunInfo_Vmcore(t *testing.T) {
	path := writeTestVmcore(t)

	var buf bytes.Buffer
	withJSONOutput(t, false, func() {
		require.NoError(t, runInfo(path, &infoFlags{dumpDir: filepath.Dir(path)}, &buf))
	})

	out := buf.String()
	assert.Contains(t, out, "vmcore")
	assert.Contains(t, out, "5.15.0-205.149.5.1.el8uek.x86_64")
	assert.Contains(t, out, "CRASHED PIDS 2001,0")
	assert.Contains(t, out, "2026-01-01T00:00:00Z")
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 << 20, "5.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.n))
	}
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abc123", shortID("abc123"))
	assert.Equal(t, "0123456789ab", shortID("0123456789abcdef0123"))
}
