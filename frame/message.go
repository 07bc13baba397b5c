package frame

// Kind discriminates the message types produced by the extractor.
type Kind int

const (
	// KindText is a LF-terminated trace line, optionally attributed to a core.
	KindText Kind = iota

	// KindDebugger is a length-prefixed binary snapshot from one core's
	// debug monitor.
	KindDebugger

	// KindWindowCommand is a control frame addressed to a named logical window.
	KindWindowCommand

	// KindWindowSample is a streaming data frame addressed to a named logical window.
	KindWindowSample
)

// String returns the kind's wire-stable lowercase name.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDebugger:
		return "debugger"
	case KindWindowCommand:
		return "window_command"
	case KindWindowSample:
		return "window_sample"
	default:
		return "unknown"
	}
}

// CoreUnknown marks messages that could not be attributed to a specific core.
const CoreUnknown = -1

// Message is one decoded frame. Concrete types are TextLine, DebuggerPacket,
// WindowCommand, and WindowSample; consumers type-switch on those.
type Message interface {
	// Kind identifies the concrete message type.
	Kind() Kind

	// Epoch is the reset epoch the message was extracted in. It is
	// informational metadata for consumers, never a routing key.
	Epoch() uint64
}

// TextLine is one line of trace text.
type TextLine struct {
	SessionEpoch uint64

	// Core is the source core when the line carried a CogN prefix,
	// otherwise CoreUnknown.
	Core int

	// Text is the line as received, without the terminating LF/CRLF.
	Text string

	// TimestampMicros is the extractor clock reading at emission.
	TimestampMicros int64
}

func (m TextLine) Kind() Kind    { return KindText }
func (m TextLine) Epoch() uint64 { return m.SessionEpoch }

// DebuggerPacket is one binary snapshot frame from a core's debug monitor.
type DebuggerPacket struct {
	SessionEpoch uint64

	// Core is the source core, taken from the marker byte.
	Core int

	// Payload holds exactly DeclaredLength bytes.
	Payload []byte

	// DeclaredLength is the header's little-endian length field.
	DeclaredLength int
}

func (m DebuggerPacket) Kind() Kind    { return KindDebugger }
func (m DebuggerPacket) Epoch() uint64 { return m.SessionEpoch }

// WindowCommand is a control frame for a named logical window.
type WindowCommand struct {
	SessionEpoch uint64

	// Window is the target window name.
	Window string

	// Verb is the first body token.
	Verb string

	// Args are the remaining whitespace-split body tokens.
	Args []string
}

func (m WindowCommand) Kind() Kind    { return KindWindowCommand }
func (m WindowCommand) Epoch() uint64 { return m.SessionEpoch }

// WindowSample is a streaming data frame for a named logical window.
type WindowSample struct {
	SessionEpoch uint64

	// Window is the target window name.
	Window string

	// Sequence numbers samples per window, starting at 0, restarting on reset.
	Sequence uint64

	// Payload is the body after the window name, whitespace-trimmed.
	Payload []byte
}

func (m WindowSample) Kind() Kind    { return KindWindowSample }
func (m WindowSample) Epoch() uint64 { return m.SessionEpoch }
