package frame

import (
	"bytes"
	"strings"

	"github.com/c360/probestream/pkg/timestamp"
)

// Wire format constants.
const (
	// MarkerDebuggerBase is the binary packet marker for core 0. The low
	// nibble selects the core; the whole range below MarkerDebuggerMax is
	// reserved for packet markers.
	MarkerDebuggerBase byte = 0xE0

	// MarkerDebuggerMax is the last byte of the reserved marker range.
	MarkerDebuggerMax byte = 0xEF

	// MarkerWindow is the backtick delimiter opening a window frame.
	MarkerWindow byte = 0x60
)

// Configuration defaults.
const (
	DefaultCores          = 8
	DefaultMaxPacketBytes = 4096
	DefaultMaxLineBytes   = 4096
)

// markerSpan is the width of the reserved marker range; core counts beyond
// it cannot be expressed in a marker byte.
const markerSpan = int(MarkerDebuggerMax-MarkerDebuggerBase) + 1

// Config configures an Extractor.
type Config struct {
	// Cores is the number of cores the probe can report, 1..16.
	// Marker bytes selecting a core at or above this count are malformed.
	Cores int

	// MaxPacketBytes bounds the declared payload length of a binary
	// packet. Larger declarations are treated as corruption.
	MaxPacketBytes int

	// MaxLineBytes bounds LF-terminated frames. Text lines reaching it are
	// force-emitted and restarted; window frames reaching it are discarded.
	MaxLineBytes int

	// Clock supplies microsecond timestamps for text lines.
	// Defaults to timestamp.Now.
	Clock func() int64

	// OnWarning, when set, receives one Warning per decode anomaly,
	// synchronously from Feed.
	OnWarning func(Warning)
}

func (c Config) withDefaults() Config {
	if c.Cores <= 0 {
		c.Cores = DefaultCores
	}
	if c.Cores > markerSpan {
		c.Cores = markerSpan
	}
	if c.MaxPacketBytes <= 0 {
		c.MaxPacketBytes = DefaultMaxPacketBytes
	}
	if c.MaxLineBytes <= 0 {
		c.MaxLineBytes = DefaultMaxLineBytes
	}
	if c.Clock == nil {
		c.Clock = timestamp.Now
	}
	return c
}

type state int

const (
	stateIdle state = iota
	stateText
	stateBinary
	stateWindow
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateText:
		return "text"
	case stateBinary:
		return "binary"
	case stateWindow:
		return "window"
	default:
		return "unknown"
	}
}

// Extractor splits a continuous byte stream into typed Messages. It is a
// plain state machine with no locking; the pipeline goroutine owns it.
//
// Bytes are consumed strictly in order. A partial frame survives across Feed
// calls and decoding resumes from saved state without rescanning. Bytes are
// only ever skipped as an explicit resynchronization step, surfaced through
// OnWarning.
type Extractor struct {
	cfg Config

	epoch uint64

	// buf holds unconsumed stream bytes; cursor is the read position and
	// always sits at the start of the frame being accumulated. scanPos
	// tracks terminator search progress for LF-terminated states so bytes
	// are never rescanned.
	buf     []byte
	cursor  int
	scanPos int

	// streamOffset is the absolute offset of buf[0] since start or reset.
	streamOffset int64

	st state

	// Binary frame progress. The 3-byte header is consumed only once it
	// is complete and valid; until then cursor stays at the marker.
	binHeaderDone bool
	binCore       int
	binRemaining  int

	// Per-window sample sequence numbers, session-scoped.
	seqs map[string]uint64
}

// New creates an Extractor. Zero-value config fields take defaults.
func New(cfg Config) *Extractor {
	return &Extractor{
		cfg:  cfg.withDefaults(),
		seqs: make(map[string]uint64),
	}
}

// Feed appends chunk to the stream buffer and returns all messages that
// completed. More messages may follow on the next call.
func (e *Extractor) Feed(chunk []byte) []Message {
	e.buf = append(e.buf, chunk...)

	var out []Message

scan:
	for e.cursor < len(e.buf) {
		switch e.st {
		case stateIdle:
			e.classify()

		case stateBinary:
			if !e.binHeaderDone {
				if len(e.buf)-e.cursor < 3 {
					break scan
				}
				declared := int(e.buf[e.cursor+1]) | int(e.buf[e.cursor+2])<<8
				if declared > e.cfg.MaxPacketBytes {
					e.warn(WarnLengthOverflow, e.buf[e.cursor])
					e.advance(e.cursor + 1)
					e.st = stateIdle
					continue
				}
				e.binCore = int(e.buf[e.cursor] - MarkerDebuggerBase)
				e.binRemaining = declared
				e.binHeaderDone = true
				e.advance(e.cursor + 3)
			}
			if len(e.buf)-e.cursor < e.binRemaining {
				break scan
			}
			payload := make([]byte, e.binRemaining)
			copy(payload, e.buf[e.cursor:e.cursor+e.binRemaining])
			out = append(out, DebuggerPacket{
				SessionEpoch:   e.epoch,
				Core:           e.binCore,
				Payload:        payload,
				DeclaredLength: e.binRemaining,
			})
			e.advance(e.cursor + e.binRemaining)
			e.st = stateIdle

		case stateText, stateWindow:
			limit := e.cursor + e.cfg.MaxLineBytes
			searchEnd := len(e.buf)
			if searchEnd > limit {
				searchEnd = limit
			}
			if e.scanPos < searchEnd {
				if idx := bytes.IndexByte(e.buf[e.scanPos:searchEnd], '\n'); idx >= 0 {
					e.completeLine(e.scanPos+idx, &out)
					continue
				}
				e.scanPos = searchEnd
			}
			if e.scanPos >= limit {
				e.overlong(limit, &out)
				continue
			}
			break scan
		}
	}

	e.compact()
	return out
}

// classify inspects the byte at the frame start and picks the grammar.
func (e *Extractor) classify() {
	b := e.buf[e.cursor]
	switch {
	case b >= MarkerDebuggerBase && b <= MarkerDebuggerMax:
		if core := int(b - MarkerDebuggerBase); core >= e.cfg.Cores {
			e.warn(WarnUnknownMarker, b)
			e.advance(e.cursor + 1)
			return
		}
		e.st = stateBinary
		e.binHeaderDone = false
	case b == MarkerWindow:
		e.st = stateWindow
		e.scanPos = e.cursor + 1
	default:
		e.st = stateText
		e.scanPos = e.cursor
	}
}

// completeLine finishes the LF-terminated frame ending at nl (the LF index).
func (e *Extractor) completeLine(nl int, out *[]Message) {
	line := trimCR(e.buf[e.cursor:nl])

	if e.st == stateWindow {
		if msg, ok := e.parseWindow(line[1:]); ok {
			*out = append(*out, msg)
		} else {
			e.warn(WarnWindowSyntax, line[0])
		}
	} else {
		*out = append(*out, e.textLine(line))
	}

	e.advance(nl + 1)
	e.st = stateIdle
}

// overlong handles a frame that reached MaxLineBytes without LF. Text lines
// are force-emitted with no bytes lost; window frames are discarded as an
// explicit resynchronization.
func (e *Extractor) overlong(limit int, out *[]Message) {
	if e.st == stateText {
		*out = append(*out, e.textLine(e.buf[e.cursor:limit]))
	} else {
		e.warn(WarnLineOverflow, e.buf[e.cursor])
	}
	e.advance(limit)
	e.st = stateIdle
}

// textLine builds a TextLine, attributing it to a core when the line starts
// with a CogN prefix.
func (e *Extractor) textLine(line []byte) TextLine {
	return TextLine{
		SessionEpoch:    e.epoch,
		Core:            parseCore(line, e.cfg.Cores),
		Text:            string(line),
		TimestampMicros: e.cfg.Clock(),
	}
}

// parseWindow parses the frame content after the backtick. Returns false if
// the window name fails the grammar.
func (e *Extractor) parseWindow(content []byte) (Message, bool) {
	n := 0
	for n < len(content) && isNameByte(content[n], n == 0) {
		n++
	}
	if n == 0 {
		return nil, false
	}
	name := string(content[:n])
	body := content[n:]

	fields := strings.Fields(string(body))
	if len(fields) > 0 && isLetter(fields[0][0]) {
		return WindowCommand{
			SessionEpoch: e.epoch,
			Window:       name,
			Verb:         fields[0],
			Args:         fields[1:],
		}, true
	}

	trimmed := bytes.TrimSpace(body)
	payload := make([]byte, len(trimmed))
	copy(payload, trimmed)
	seq := e.seqs[name]
	e.seqs[name] = seq + 1
	return WindowSample{
		SessionEpoch: e.epoch,
		Window:       name,
		Sequence:     seq,
		Payload:      payload,
	}, true
}

// Reset discards any partial frame, clears the buffer and per-window
// sequences, and tags subsequent messages with newEpoch.
func (e *Extractor) Reset(newEpoch uint64) {
	e.epoch = newEpoch
	e.buf = e.buf[:0]
	e.cursor = 0
	e.scanPos = 0
	e.streamOffset = 0
	e.st = stateIdle
	e.binHeaderDone = false
	e.seqs = make(map[string]uint64)
}

// Epoch returns the epoch applied to extracted messages.
func (e *Extractor) Epoch() uint64 { return e.epoch }

// Buffered returns the number of unconsumed bytes held for a partial frame.
func (e *Extractor) Buffered() int { return len(e.buf) - e.cursor }

// State names the current decode state, for diagnostics.
func (e *Extractor) State() string { return e.st.String() }

// advance moves the cursor to pos and keeps the terminator search position
// at least at the cursor.
func (e *Extractor) advance(pos int) {
	e.cursor = pos
	if e.scanPos < pos {
		e.scanPos = pos
	}
}

// compact slides unconsumed bytes to the front of the buffer so memory stays
// bounded by the size of one partial frame.
func (e *Extractor) compact() {
	if e.cursor == 0 {
		return
	}
	n := copy(e.buf, e.buf[e.cursor:])
	e.buf = e.buf[:n]
	e.streamOffset += int64(e.cursor)
	e.scanPos -= e.cursor
	e.cursor = 0
}

func (e *Extractor) warn(reason WarnReason, b byte) {
	if e.cfg.OnWarning == nil {
		return
	}
	e.cfg.OnWarning(Warning{
		Reason: reason,
		Offset: e.streamOffset + int64(e.cursor),
		Byte:   b,
	})
}

func trimCR(line []byte) []byte {
	if len(line) > 0 && line[len(line)-1] == '\r' {
		return line[:len(line)-1]
	}
	return line
}

// parseCore reads a leading Cog<digit> prefix, optionally followed by a
// colon. The prefix must end the line or be followed by a separator for the
// attribution to count.
func parseCore(line []byte, cores int) int {
	if len(line) < 4 || line[0] != 'C' || line[1] != 'o' || line[2] != 'g' {
		return CoreUnknown
	}
	d := line[3]
	if d < '0' || d > '9' {
		return CoreUnknown
	}
	core := int(d - '0')
	if core >= cores {
		return CoreUnknown
	}
	if len(line) == 4 {
		return core
	}
	switch line[4] {
	case ':', ' ', '\t':
		return core
	}
	return CoreUnknown
}

func isNameByte(b byte, first bool) bool {
	if isLetter(b) || b == '_' {
		return true
	}
	return !first && b >= '0' && b <= '9'
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}
