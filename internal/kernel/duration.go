package kernel

import "fmt"

// FormatDuration renders a nanosecond duration in the dump-report
// timestamp layout used throughout crash-style tooling:
//
//	HH:MM:SS.mmm          (under one day)
//	D HH:MM:SS.mmm        (one day or more)
//
// Sub-millisecond precision is dropped; these columns answer "how
// long has this been stuck", where milliseconds are already generous.
func FormatDuration(ns uint64) string {
	ms := ns / 1_000_000
	secs := ms / 1000
	ms %= 1000

	mins := secs / 60
	secs %= 60
	hours := mins / 60
	mins %= 60
	days := hours / 24
	hours %= 24

	if days > 0 {
		return fmt.Sprintf("%d %02d:%02d:%02d.%03d", days, hours, mins, secs, ms)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, mins, secs, ms)
}
