package frame

// WarnReason identifies why the extractor abandoned or split a frame.
type WarnReason int

const (
	// WarnUnknownMarker is a byte in the debugger marker range whose core
	// index is out of range for the configured core count.
	WarnUnknownMarker WarnReason = iota

	// WarnLengthOverflow is a binary header declaring a payload larger
	// than MaxPacketBytes.
	WarnLengthOverflow

	// WarnWindowSyntax is a window frame whose name fails the grammar.
	WarnWindowSyntax

	// WarnLineOverflow is a window frame exceeding MaxLineBytes without a
	// terminating LF.
	WarnLineOverflow
)

// String returns the reason's lowercase name.
func (r WarnReason) String() string {
	switch r {
	case WarnUnknownMarker:
		return "unknown_marker"
	case WarnLengthOverflow:
		return "length_overflow"
	case WarnWindowSyntax:
		return "window_syntax"
	case WarnLineOverflow:
		return "line_overflow"
	default:
		return "unknown"
	}
}

// Warning describes one decode anomaly. Decoding always continues after a
// warning; the extractor resynchronizes and never aborts a Feed.
type Warning struct {
	// Reason classifies the anomaly.
	Reason WarnReason

	// Offset is the absolute stream offset (bytes since start or last
	// reset) of the frame start the warning refers to.
	Offset int64

	// Byte is the byte at the frame start.
	Byte byte
}
