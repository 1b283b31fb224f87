package kernel

// Dentry is a directory entry (struct dentry) as captured in a dump.
type Dentry struct {
	// Addr is the kernel address of the dentry.
	Addr uint64

	// Path is the dentry's filesystem path as resolved at capture
	// time. Empty if the path could not be reconstructed.
	Path string

	// Negative reports whether this is a negative dentry — a cached
	// lookup failure with no inode behind it.
	Negative bool

	// ChildAddrs lists the kernel addresses of the dentry's
	// children.
	ChildAddrs []uint64
}

// CountChildren walks a directory dentry's children and returns the
// total count and how many of them are negative. Children missing
// from the dump are still counted as present (their address was on
// the child list) but cannot be classified, so they count as
// non-negative.
//
// A high negative ratio on a hot directory is the signature of the
// fsnotify dentry-flag walk holding a spinlock for a long time.
func CountChildren(prog Program, d *Dentry) (total, negative int) {
	for _, addr := range d.ChildAddrs {
		total++
		if child, ok := prog.Dentry(addr); ok && child.Negative {
			negative++
		}
	}
	return total, negative
}
