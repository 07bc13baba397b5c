package natsmirror

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/probestream/frame"
)

func TestSubjectFor(t *testing.T) {
	tests := []struct {
		name string
		msg  frame.Message
		want string
	}{
		{
			"attributed text",
			frame.TextLine{SessionEpoch: 1, Core: 3, Text: "boot"},
			"probestream.text.cog3",
		},
		{
			"unattributed text",
			frame.TextLine{SessionEpoch: 1, Core: frame.CoreUnknown, Text: "noise"},
			"probestream.text.raw",
		},
		{
			"debugger packet",
			frame.DebuggerPacket{SessionEpoch: 2, Core: 0, Payload: []byte{1}},
			"probestream.debugger.cog0",
		},
		{
			"window command",
			frame.WindowCommand{SessionEpoch: 2, Window: "MyScope", Verb: "clear"},
			"probestream.window.MyScope",
		},
		{
			"window sample",
			frame.WindowSample{SessionEpoch: 2, Window: "MyScope", Sequence: 7},
			"probestream.window.MyScope",
		},
		{
			"window name needing sanitization",
			frame.WindowSample{SessionEpoch: 2, Window: "adc.raw>*"},
			"probestream.window.adc_raw__",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, subjectFor("probestream", tt.msg))
		})
	}
}

func TestSubjectForMultiTokenPrefix(t *testing.T) {
	msg := frame.TextLine{Core: 1, Text: "x"}
	assert.Equal(t, "lab.bench3.text.cog1", subjectFor("lab.bench3", msg))
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"MyScope", "MyScope"},
		{"adc-raw_2", "adc-raw_2"},
		{"a.b", "a_b"},
		{"a b", "a_b"},
		{"wild*card>", "wild_card_"},
		{"", "_"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeToken(tt.in), "input %q", tt.in)
	}
}

func TestCoreToken(t *testing.T) {
	assert.Equal(t, "cog0", coreToken(0))
	assert.Equal(t, "cog7", coreToken(7))
	assert.Equal(t, "raw", coreToken(frame.CoreUnknown))
}

func TestEncodeTextLine(t *testing.T) {
	data, err := encodeMessage(frame.TextLine{
		SessionEpoch:    3,
		Core:            2,
		Text:            "temp=41C",
		TimestampMicros: 1234567,
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"kind": "text",
		"epoch": 3,
		"core": 2,
		"text": "temp=41C",
		"timestamp_micros": 1234567
	}`, string(data))
}

func TestEncodeDebuggerPacket(t *testing.T) {
	data, err := encodeMessage(frame.DebuggerPacket{
		SessionEpoch:   1,
		Core:           5,
		Payload:        []byte{0x01, 0x02, 0x03},
		DeclaredLength: 3,
	})
	require.NoError(t, err)

	// []byte marshals as base64
	assert.JSONEq(t, `{
		"kind": "debugger",
		"epoch": 1,
		"core": 5,
		"length": 3,
		"payload": "AQID"
	}`, string(data))
}

func TestEncodeWindowCommand(t *testing.T) {
	data, err := encodeMessage(frame.WindowCommand{
		SessionEpoch: 4,
		Window:       "MyScope",
		Verb:         "trigger",
		Args:         []string{"rising", "128"},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"kind": "window_command",
		"epoch": 4,
		"window": "MyScope",
		"verb": "trigger",
		"args": ["rising", "128"]
	}`, string(data))
}

func TestEncodeWindowCommandNoArgs(t *testing.T) {
	data, err := encodeMessage(frame.WindowCommand{
		SessionEpoch: 4,
		Window:       "MyScope",
		Verb:         "clear",
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"kind": "window_command",
		"epoch": 4,
		"window": "MyScope",
		"verb": "clear"
	}`, string(data))
}

func TestEncodeWindowSample(t *testing.T) {
	data, err := encodeMessage(frame.WindowSample{
		SessionEpoch: 2,
		Window:       "adc",
		Sequence:     9,
		Payload:      []byte("0 1 2"),
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"kind": "window_sample",
		"epoch": 2,
		"window": "adc",
		"sequence": 9,
		"payload": "MCAxIDI="
	}`, string(data))
}
