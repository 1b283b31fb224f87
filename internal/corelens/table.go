package corelens

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Table renders rows as fixed-width columns, each column padded to
// its widest cell with a two-space gutter. This is the layout the
// waiting-task tables use:
//
//	TASK                NAME         PID   PENDING_TIME
//	0xffff8881000       cssdmonitor  2001  00:01:23.000
type Table struct {
	rows [][]string
}

// AddRow appends a row. The first row is conventionally the header.
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows added, headers included.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table to w. Ragged rows are allowed; short rows
// simply leave their trailing columns empty.
func (t *Table) Render(w io.Writer) {
	var widths []int
	for _, row := range t.rows {
		for i, cell := range row {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	for _, row := range t.rows {
		var sb strings.Builder
		for i, cell := range row {
			if i < len(row)-1 {
				sb.WriteString(fmt.Sprintf("%-*s  ", widths[i], cell))
			} else {
				// Last cell unpadded to avoid trailing spaces.
				sb.WriteString(cell)
			}
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}
}

// LineLimitWriter truncates each output line to a maximum width,
// enforcing the configured report line limit. Truncation is marked
// with a trailing '>' so a clipped line is distinguishable from one
// that happened to fit exactly.
type LineLimitWriter struct {
	w     io.Writer
	max   int
	buf   bytes.Buffer // current partial line
	fault error
}

// NewLineLimitWriter wraps w with a per-line width limit. max must be
// at least 2 (one content byte plus the truncation marker).
func NewLineLimitWriter(w io.Writer, max int) *LineLimitWriter {
	if max < 2 {
		max = 2
	}
	return &LineLimitWriter{w: w, max: max}
}

// Write implements io.Writer. Input is buffered per line so the limit
// applies to logical lines regardless of how writes are chunked.
// The whole input counts as consumed; an unterminated final line sits
// in the buffer until the next newline or Flush.
func (l *LineLimitWriter) Write(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		idx := bytes.IndexByte(p, '\n')
		if idx < 0 {
			l.buf.Write(p)
			break
		}
		l.buf.Write(p[:idx])
		l.emitLine()
		p = p[idx+1:]
	}
	if l.fault != nil {
		return 0, l.fault
	}
	return total, nil
}

// Flush writes out any unterminated final line. Call after the last
// Write.
func (l *LineLimitWriter) Flush() error {
	if l.buf.Len() > 0 {
		l.emitLine()
	}
	return l.fault
}

func (l *LineLimitWriter) emitLine() {
	line := l.buf.Bytes()
	if len(line) > l.max {
		clipped := make([]byte, 0, l.max)
		clipped = append(clipped, line[:l.max-1]...)
		clipped = append(clipped, '>')
		line = clipped
	}
	if l.fault == nil {
		if _, err := l.w.Write(append(line, '\n')); err != nil {
			l.fault = err
		}
	}
	l.buf.Reset()
}
