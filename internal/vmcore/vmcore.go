// Package vmcore reads metadata from raw kernel core dumps (ELF
// ET_CORE files, as written by kdump/makedumpfile in ELF format).
//
// The package deliberately stops at the ELF layer: it parses the
// VMCOREINFO note, counts crashed-CPU register notes, and reads
// physical memory ranges. Interpreting kernel data structures is the
// snapshot layer's job; vmcore exists so the CLI can identify a raw
// dump and cross-check it against the snapshot captured from it.
package vmcore

import (
	"debug/elf"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/richl9/drgn-tools/internal/model"
)

// Note type values seen in kernel core dumps.
const (
	// ntPrstatus is NT_PRSTATUS: one note per crashed CPU with its
	// register state.
	ntPrstatus = 1

	// prstatusPIDOffset locates pr_pid inside the x86-64
	// elf_prstatus layout: signal info (12 bytes), cursig (2),
	// padding (2), sigpend (8), sighold (8).
	prstatusPIDOffset = 32
)

// vmcoreinfoName is the note name the kernel uses for the
// VMCOREINFO blob.
const vmcoreinfoName = "VMCOREINFO"

// Core is an open raw vmcore.
type Core struct {
	// Path is the file the core was opened from.
	Path string

	file  *os.File
	elf   *elf.File
	info  map[string]string
	prPID []int
}

// Open opens a raw vmcore and parses its notes. The file must be an
// ELF core file; anything else is rejected up front.
func Open(path string) (*Core, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitDumpNotFound,
				fmt.Sprintf("vmcore not found: %s", path),
				err,
			)
		}
		return nil, errors.Wrapf(err, "opening vmcore %s", path)
	}

	ef, err := elf.NewFile(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "parsing %s as ELF", path)
	}
	if ef.Type != elf.ET_CORE {
		f.Close()
		return nil, errors.Errorf("%s is not a core file (ELF type %v)", path, ef.Type)
	}

	core := &Core{
		Path: path,
		file: f,
		elf:  ef,
		info: make(map[string]string),
	}
	if err := core.parseNotes(); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "parsing notes of %s", path)
	}
	return core, nil
}

// Close releases the underlying file.
func (c *Core) Close() error {
	return c.file.Close()
}

// parseNotes walks every PT_NOTE segment, collecting the VMCOREINFO
// blob and the per-CPU NT_PRSTATUS PIDs.
func (c *Core) parseNotes() error {
	for _, prog := range c.elf.Progs {
		if prog.Type != elf.PT_NOTE {
			continue
		}
		data := make([]byte, prog.Filesz)
		if _, err := io.ReadFull(prog.Open(), data); err != nil {
			return errors.Wrap(err, "reading note segment")
		}
		if err := c.parseNoteSegment(data); err != nil {
			return err
		}
	}
	return nil
}

// parseNoteSegment decodes the ELF note records in one segment.
// Each record is three 4-byte words (namesz, descsz, type) followed
// by the name and descriptor, each padded to 4 bytes.
func (c *Core) parseNoteSegment(data []byte) error {
	order := c.elf.ByteOrder
	for len(data) >= 12 {
		namesz := order.Uint32(data[0:4])
		descsz := order.Uint32(data[4:8])
		noteType := order.Uint32(data[8:12])
		data = data[12:]

		namePadded := align4(int(namesz))
		descPadded := align4(int(descsz))
		if len(data) < namePadded+descPadded {
			return errors.Errorf("truncated note record (namesz=%d descsz=%d)", namesz, descsz)
		}
		name := strings.TrimRight(string(data[:namesz]), "\x00")
		desc := data[namePadded : namePadded+int(descsz)]
		data = data[namePadded+descPadded:]

		switch {
		case name == vmcoreinfoName:
			c.parseVmcoreinfo(desc)
		case noteType == ntPrstatus:
			if len(desc) >= prstatusPIDOffset+4 {
				pid := int(int32(order.Uint32(desc[prstatusPIDOffset : prstatusPIDOffset+4])))
				c.prPID = append(c.prPID, pid)
			}
		}
	}
	return nil
}

// parseVmcoreinfo decodes the KEY=value lines of the VMCOREINFO
// blob.
func (c *Core) parseVmcoreinfo(desc []byte) {
	for _, line := range strings.Split(string(desc), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok || key == "" {
			continue
		}
		c.info[key] = value
	}
}

// VMCoreInfo returns the parsed VMCOREINFO key-value pairs.
func (c *Core) VMCoreInfo() map[string]string {
	return c.info
}

// OSRelease returns the crashed kernel's release string, empty when
// the dump has no VMCOREINFO.
func (c *Core) OSRelease() string {
	return c.info["OSRELEASE"]
}

// PageSize returns the crashed kernel's page size, 0 when unknown.
func (c *Core) PageSize() uint64 {
	v, err := strconv.ParseUint(c.info["PAGESIZE"], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// CrashTime returns when the dump was taken, zero when the kernel
// did not record a CRASHTIME.
func (c *Core) CrashTime() time.Time {
	secs, err := strconv.ParseInt(c.info["CRASHTIME"], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

// CPUs returns the number of CPUs that wrote register state into the
// dump (one NT_PRSTATUS note each).
func (c *Core) CPUs() int {
	return len(c.prPID)
}

// PrstatusPIDs returns the pr_pid of each NT_PRSTATUS note, in note
// order. The first entry is conventionally the panicking task.
func (c *Core) PrstatusPIDs() []int {
	return c.prPID
}

// ReadPhysical reads len(buf) bytes of physical memory at paddr from
// the dump's PT_LOAD segments. Reads crossing a segment boundary are
// rejected rather than silently zero-filled.
func (c *Core) ReadPhysical(paddr uint64, buf []byte) error {
	for _, prog := range c.elf.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if paddr < prog.Paddr || paddr >= prog.Paddr+prog.Filesz {
			continue
		}
		if paddr+uint64(len(buf)) > prog.Paddr+prog.Filesz {
			return errors.Errorf(
				"read of %d bytes at 0x%x crosses the end of its segment",
				len(buf), paddr)
		}
		if _, err := prog.ReadAt(buf, int64(paddr-prog.Paddr)); err != nil {
			return errors.Wrapf(err, "reading %d bytes at physical 0x%x", len(buf), paddr)
		}
		return nil
	}
	return errors.Errorf("physical address 0x%x is not covered by any segment", paddr)
}

// ReadPhysicalUint64 reads one native-endian word of physical
// memory.
func (c *Core) ReadPhysicalUint64(paddr uint64) (uint64, error) {
	var buf [8]byte
	if err := c.ReadPhysical(paddr, buf[:]); err != nil {
		return 0, err
	}
	return c.elf.ByteOrder.Uint64(buf[:]), nil
}

// align4 rounds n up to the next multiple of 4, the ELF note
// padding unit.
func align4(n int) int {
	return (n + 3) &^ 3
}
