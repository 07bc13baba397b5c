package natsmirror

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360/probestream/frame"
)

// rawCoreToken is the subject token for text lines that carried no core
// prefix.
const rawCoreToken = "raw"

// coreToken renders a core number as a subject token.
func coreToken(core int) string {
	if core < 0 {
		return rawCoreToken
	}
	return fmt.Sprintf("cog%d", core)
}

// sanitizeToken maps a window name onto a single NATS subject token. NATS
// reserves '.', '*', and '>'; anything outside [A-Za-z0-9_-] becomes '_'.
func sanitizeToken(name string) string {
	if name == "" {
		return "_"
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// subjectFor builds the subject a message publishes on:
//
//	<prefix>.text.cog<N>      attributed trace lines (raw when unattributed)
//	<prefix>.debugger.cog<N>  debug monitor snapshots
//	<prefix>.window.<name>    window commands and samples, by window
//
// Window commands and samples share a subject; subscribers discriminate on
// the payload's kind field.
func subjectFor(prefix string, msg frame.Message) string {
	switch m := msg.(type) {
	case frame.TextLine:
		return prefix + ".text." + coreToken(m.Core)
	case frame.DebuggerPacket:
		return prefix + ".debugger." + coreToken(m.Core)
	case frame.WindowCommand:
		return prefix + ".window." + sanitizeToken(m.Window)
	case frame.WindowSample:
		return prefix + ".window." + sanitizeToken(m.Window)
	default:
		return prefix + "." + msg.Kind().String()
	}
}

// Wire forms. Field names are part of the published contract; subscribers
// parse on the kind discriminator. Payload bytes render as base64 per
// encoding/json.

type wireText struct {
	Kind            string `json:"kind"`
	Epoch           uint64 `json:"epoch"`
	Core            int    `json:"core"`
	Text            string `json:"text"`
	TimestampMicros int64  `json:"timestamp_micros"`
}

type wireDebugger struct {
	Kind    string `json:"kind"`
	Epoch   uint64 `json:"epoch"`
	Core    int    `json:"core"`
	Length  int    `json:"length"`
	Payload []byte `json:"payload"`
}

type wireWindowCommand struct {
	Kind   string   `json:"kind"`
	Epoch  uint64   `json:"epoch"`
	Window string   `json:"window"`
	Verb   string   `json:"verb"`
	Args   []string `json:"args,omitempty"`
}

type wireWindowSample struct {
	Kind     string `json:"kind"`
	Epoch    uint64 `json:"epoch"`
	Window   string `json:"window"`
	Sequence uint64 `json:"sequence"`
	Payload  []byte `json:"payload"`
}

// encodeMessage renders a decoded message as its JSON wire form.
func encodeMessage(msg frame.Message) ([]byte, error) {
	switch m := msg.(type) {
	case frame.TextLine:
		return json.Marshal(wireText{
			Kind:            m.Kind().String(),
			Epoch:           m.SessionEpoch,
			Core:            m.Core,
			Text:            m.Text,
			TimestampMicros: m.TimestampMicros,
		})
	case frame.DebuggerPacket:
		return json.Marshal(wireDebugger{
			Kind:    m.Kind().String(),
			Epoch:   m.SessionEpoch,
			Core:    m.Core,
			Length:  m.DeclaredLength,
			Payload: m.Payload,
		})
	case frame.WindowCommand:
		return json.Marshal(wireWindowCommand{
			Kind:   m.Kind().String(),
			Epoch:  m.SessionEpoch,
			Window: m.Window,
			Verb:   m.Verb,
			Args:   m.Args,
		})
	case frame.WindowSample:
		return json.Marshal(wireWindowSample{
			Kind:     m.Kind().String(),
			Epoch:    m.SessionEpoch,
			Window:   m.Window,
			Sequence: m.Sequence,
			Payload:  m.Payload,
		})
	default:
		return nil, fmt.Errorf("no wire form for message kind %v", msg.Kind())
	}
}
