package logsink

import (
	"fmt"
	"strings"

	"github.com/c360/probestream/frame"
	"github.com/c360/probestream/pkg/hexdump"
	"github.com/c360/probestream/pkg/timestamp"
)

// formatter renders messages into display lines. It tracks text-line
// continuity: consecutive text lines from the same core within the same
// integer second blank the seconds column, so sub-fields of one logical
// event read as a group.
type formatter struct {
	hexOpts hexdump.Options

	haveText bool
	lastCore int
	lastSecs int64
}

func newFormatter(unit, bytesPerLine int) *formatter {
	return &formatter{
		hexOpts: hexdump.Options{Unit: unit, BytesPerLine: bytesPerLine},
	}
}

// Render formats one message relative to the session start clock reading.
// Messages without an embedded timestamp are stamped with now.
func (f *formatter) Render(msg frame.Message, sessionStart, now int64) []string {
	switch m := msg.(type) {
	case frame.TextLine:
		return []string{f.textLine(m, sessionStart)}

	case frame.DebuggerPacket:
		f.breakContinuity()
		secs, micros := timestamp.SplitOffset(sessionStart, now)
		head := fmt.Sprintf("%s[cog%d] debugger packet (%d bytes)",
			prefix(secs, micros), m.Core, m.DeclaredLength)
		return appendDump([]string{head}, m.Payload, f.hexOpts)

	case frame.WindowCommand:
		f.breakContinuity()
		secs, micros := timestamp.SplitOffset(sessionStart, now)
		body := m.Verb
		if len(m.Args) > 0 {
			body += " " + strings.Join(m.Args, " ")
		}
		return []string{fmt.Sprintf("%s[%s] %s", prefix(secs, micros), m.Window, body)}

	case frame.WindowSample:
		f.breakContinuity()
		secs, micros := timestamp.SplitOffset(sessionStart, now)
		head := fmt.Sprintf("%s[%s] #%d", prefix(secs, micros), m.Window, m.Sequence)
		if printable(m.Payload) {
			if len(m.Payload) > 0 {
				head += " " + string(m.Payload)
			}
			return []string{head}
		}
		head += fmt.Sprintf(" (%d bytes)", len(m.Payload))
		return appendDump([]string{head}, m.Payload, f.hexOpts)

	default:
		f.breakContinuity()
		secs, micros := timestamp.SplitOffset(sessionStart, now)
		return []string{fmt.Sprintf("%s%s message", prefix(secs, micros), msg.Kind())}
	}
}

func (f *formatter) textLine(m frame.TextLine, sessionStart int64) string {
	secs, micros := timestamp.SplitOffset(sessionStart, m.TimestampMicros)

	continuation := f.haveText && f.lastCore == m.Core && f.lastSecs == secs
	f.haveText = true
	f.lastCore = m.Core
	f.lastSecs = secs

	head := prefix(secs, micros)
	if continuation {
		head = contPrefix(micros)
	}
	if m.Core >= 0 {
		return fmt.Sprintf("%s[cog%d] %s", head, m.Core, m.Text)
	}
	return head + m.Text
}

// breakContinuity forgets the previous text line, forcing a full prefix on
// the next one. Called between sessions and around non-text renders.
func (f *formatter) breakContinuity() {
	f.haveText = false
}

// prefix renders `ssssss.uuuuuu  `: seconds right-aligned width 7,
// microseconds zero-padded width 6, two trailing spaces.
func prefix(secs, micros int64) string {
	return fmt.Sprintf("%7d.%06d  ", secs, micros)
}

// contPrefix blanks the seconds column for a continuation line.
func contPrefix(micros int64) string {
	return fmt.Sprintf("%7s.%06d  ", "", micros)
}

// appendDump renders payload as hex lines indented under the header.
func appendDump(lines []string, payload []byte, opts hexdump.Options) []string {
	for _, l := range hexdump.Lines(payload, opts) {
		lines = append(lines, "  "+l)
	}
	return lines
}

// printable reports whether payload renders as plain text: ASCII printable
// plus tab.
func printable(payload []byte) bool {
	for _, b := range payload {
		if b == '\t' {
			continue
		}
		if b < 0x20 || b > 0x7E {
			return false
		}
	}
	return true
}
