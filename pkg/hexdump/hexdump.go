// Package hexdump renders byte slices as grouped uppercase hex dumps.
//
// The output format is fixed because log artifacts are diffed across debug
// sessions: an offset column, then byte groups in stream order with wider
// gaps at 8, 16 and 32 byte boundaries so word and long boundaries stay
// visible at a glance.
//
//	00000: 0001 0203 0405 0607  0809 0A0B 0C0D 0E0F
package hexdump

import (
	"fmt"
	"strings"
)

// Options controls group size and line width.
type Options struct {
	// Unit is the number of bytes per group: 1, 2, or 4. Bytes within a
	// group appear in stream order, no endian reversal. Defaults to 2.
	Unit int

	// BytesPerLine is the number of input bytes rendered per line.
	// Defaults to 16. Values that are not a multiple of Unit are rounded
	// down, but never below Unit.
	BytesPerLine int
}

func (o Options) normalized() Options {
	switch o.Unit {
	case 1, 2, 4:
	default:
		o.Unit = 2
	}
	if o.BytesPerLine <= 0 {
		o.BytesPerLine = 16
	}
	o.BytesPerLine -= o.BytesPerLine % o.Unit
	if o.BytesPerLine < o.Unit {
		o.BytesPerLine = o.Unit
	}
	return o
}

// Dump renders data with default options, lines joined by newlines without a
// trailing newline. Returns "" for empty input.
func Dump(data []byte) string {
	return DumpWith(data, Options{})
}

// DumpWith renders data with the given options, lines joined by newlines
// without a trailing newline. Returns "" for empty input.
func DumpWith(data []byte, opts Options) string {
	return strings.Join(Lines(data, opts), "\n")
}

// Lines renders data as individual dump lines. Callers that indent or prefix
// each line (the log sink does both) use this instead of Dump. Returns nil
// for empty input.
func Lines(data []byte, opts Options) []string {
	if len(data) == 0 {
		return nil
	}
	opts = opts.normalized()

	lines := make([]string, 0, (len(data)+opts.BytesPerLine-1)/opts.BytesPerLine)
	var b strings.Builder

	for base := 0; base < len(data); base += opts.BytesPerLine {
		end := base + opts.BytesPerLine
		if end > len(data) {
			end = len(data)
		}

		b.Reset()
		fmt.Fprintf(&b, "%05X:", base)

		for off := base; off < end; off += opts.Unit {
			b.WriteString(gap(off - base))
			groupEnd := off + opts.Unit
			if groupEnd > end {
				groupEnd = end // trailing partial group rendered short
			}
			for _, by := range data[off:groupEnd] {
				fmt.Fprintf(&b, "%02X", by)
			}
		}
		lines = append(lines, b.String())
	}
	return lines
}

// gap returns the separator before a group starting at in-line offset o.
// Every group gets one space; groups on 8/16/32 byte boundaries get extra
// width so the boundaries read as columns.
func gap(o int) string {
	if o == 0 {
		return " "
	}
	switch {
	case o%32 == 0:
		return "    "
	case o%16 == 0:
		return "   "
	case o%8 == 0:
		return "  "
	default:
		return " "
	}
}
