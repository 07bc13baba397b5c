package frame

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock pins TimestampMicros so message sequences compare byte-exact.
func fixedClock() int64 { return 424242 }

func newTestExtractor(warnings *[]Warning) *Extractor {
	cfg := Config{Clock: fixedClock}
	if warnings != nil {
		cfg.OnWarning = func(w Warning) { *warnings = append(*warnings, w) }
	}
	return New(cfg)
}

// packet builds a binary debugger frame for core with the given payload.
func packet(core int, payload []byte) []byte {
	frame := []byte{MarkerDebuggerBase | byte(core), byte(len(payload)), byte(len(payload) >> 8)}
	return append(frame, payload...)
}

func TestTextLineBasic(t *testing.T) {
	e := newTestExtractor(nil)

	msgs := e.Feed([]byte("hello world\n"))
	require.Len(t, msgs, 1)

	line, ok := msgs[0].(TextLine)
	require.True(t, ok)
	assert.Equal(t, "hello world", line.Text)
	assert.Equal(t, CoreUnknown, line.Core)
	assert.Equal(t, int64(424242), line.TimestampMicros)
	assert.Equal(t, uint64(0), line.Epoch())
	assert.Equal(t, 0, e.Buffered())
}

func TestTextLineCRLFStripped(t *testing.T) {
	e := newTestExtractor(nil)

	msgs := e.Feed([]byte("trace\r\n"))
	require.Len(t, msgs, 1)
	assert.Equal(t, "trace", msgs[0].(TextLine).Text)
}

func TestTextLineEmpty(t *testing.T) {
	e := newTestExtractor(nil)

	msgs := e.Feed([]byte("\n\r\n"))
	require.Len(t, msgs, 2)
	assert.Equal(t, "", msgs[0].(TextLine).Text)
	assert.Equal(t, "", msgs[1].(TextLine).Text)
}

func TestTextLineCoreAttribution(t *testing.T) {
	tests := []struct {
		name string
		line string
		core int
	}{
		{"colon separator", "Cog0: INIT $0000_0000", 0},
		{"space separator", "Cog3 load complete", 3},
		{"bare prefix", "Cog7", 7},
		{"prefix then colon only", "Cog5:", 5},
		{"core out of range", "Cog9 too high", CoreUnknown},
		{"no digit", "Cognitive science", CoreUnknown},
		{"digit run", "Cog12 ambiguous", CoreUnknown},
		{"mid-line prefix ignored", "boot Cog2: late", CoreUnknown},
		{"plain text", "no prefix here", CoreUnknown},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			e := newTestExtractor(nil)
			msgs := e.Feed([]byte(test.line + "\n"))
			require.Len(t, msgs, 1)
			line := msgs[0].(TextLine)
			assert.Equal(t, test.core, line.Core)
			assert.Equal(t, test.line, line.Text, "text is kept verbatim")
		})
	}
}

func TestBinaryPacket(t *testing.T) {
	e := newTestExtractor(nil)

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	msgs := e.Feed(packet(3, payload))
	require.Len(t, msgs, 1)

	pkt, ok := msgs[0].(DebuggerPacket)
	require.True(t, ok)
	assert.Equal(t, 3, pkt.Core)
	assert.Equal(t, 4, pkt.DeclaredLength)
	assert.Equal(t, payload, pkt.Payload)
	assert.Equal(t, 0, e.Buffered())
}

func TestBinaryPacketEmptyPayload(t *testing.T) {
	e := newTestExtractor(nil)

	msgs := e.Feed(packet(0, nil))
	require.Len(t, msgs, 1)

	pkt := msgs[0].(DebuggerPacket)
	assert.Equal(t, 0, pkt.Core)
	assert.Equal(t, 0, pkt.DeclaredLength)
	assert.Empty(t, pkt.Payload)
}

func TestBackToBackIdenticalPackets(t *testing.T) {
	e := newTestExtractor(nil)

	payload := bytes.Repeat([]byte{0xAB}, 16)
	stream := append(packet(2, payload), packet(2, payload)...)

	msgs := e.Feed(stream)
	require.Len(t, msgs, 2, "each packet extracts exactly once")

	for _, m := range msgs {
		pkt := m.(DebuggerPacket)
		assert.Equal(t, 2, pkt.Core)
		assert.Equal(t, payload, pkt.Payload)
	}
	assert.Equal(t, 0, e.Buffered(), "cursor advanced exactly 2x(3+L)")
	assert.Equal(t, "idle", e.State())
}

func TestBinaryPacketPayloadNotRescanned(t *testing.T) {
	e := newTestExtractor(nil)

	// Payload containing marker bytes, backticks and newlines must pass
	// through untouched because the declared length owns the frame end.
	payload := []byte{MarkerDebuggerBase, '\n', MarkerWindow, 0xEF, '\r'}
	msgs := e.Feed(append(packet(1, payload), []byte("after\n")...))
	require.Len(t, msgs, 2)

	assert.Equal(t, payload, msgs[0].(DebuggerPacket).Payload)
	assert.Equal(t, "after", msgs[1].(TextLine).Text)
}

func TestBinaryPacketSplitAcrossFeeds(t *testing.T) {
	e := newTestExtractor(nil)
	full := packet(4, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	// Split mid-header.
	require.Empty(t, e.Feed(full[:2]))
	assert.Equal(t, "binary", e.State())
	assert.Equal(t, 2, e.Buffered())

	// Split mid-payload.
	require.Empty(t, e.Feed(full[2:7]))
	msgs := e.Feed(full[7:])
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, msgs[0].(DebuggerPacket).Payload)
}

func TestMalformedLengthResyncsOneByte(t *testing.T) {
	var warnings []Warning
	e := newTestExtractor(&warnings)

	// Declared length 0xFFFF exceeds MaxPacketBytes. Resync skips exactly
	// one byte; the remaining bytes decode as a text line.
	stream := append([]byte{MarkerDebuggerBase | 1, 0xFF, 0xFF}, []byte("OK\n")...)
	msgs := e.Feed(stream)

	require.Len(t, warnings, 1)
	assert.Equal(t, WarnLengthOverflow, warnings[0].Reason)
	assert.Equal(t, int64(0), warnings[0].Offset)
	assert.Equal(t, MarkerDebuggerBase|1, warnings[0].Byte)

	require.Len(t, msgs, 1)
	assert.Equal(t, "\xff\xffOK", msgs[0].(TextLine).Text)
	assert.Equal(t, 0, e.Buffered())
}

func TestUnknownMarkerResyncsOneByte(t *testing.T) {
	var warnings []Warning
	e := newTestExtractor(&warnings)

	// 0xEA selects core 10; default config has 8 cores.
	msgs := e.Feed(append([]byte{0xEA}, packet(0, []byte{9})...))

	require.Len(t, warnings, 1)
	assert.Equal(t, WarnUnknownMarker, warnings[0].Reason)
	assert.Equal(t, byte(0xEA), warnings[0].Byte)

	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{9}, msgs[0].(DebuggerPacket).Payload)
}

func TestWindowCommand(t *testing.T) {
	e := newTestExtractor(nil)

	msgs := e.Feed([]byte("`scope trigger auto 50\n"))
	require.Len(t, msgs, 1)

	cmd, ok := msgs[0].(WindowCommand)
	require.True(t, ok)
	assert.Equal(t, "scope", cmd.Window)
	assert.Equal(t, "trigger", cmd.Verb)
	assert.Equal(t, []string{"auto", "50"}, cmd.Args)
}

func TestWindowCommandNoArgs(t *testing.T) {
	e := newTestExtractor(nil)

	msgs := e.Feed([]byte("`term clear\n"))
	require.Len(t, msgs, 1)

	cmd := msgs[0].(WindowCommand)
	assert.Equal(t, "term", cmd.Window)
	assert.Equal(t, "clear", cmd.Verb)
	assert.Empty(t, cmd.Args)
}

func TestWindowSample(t *testing.T) {
	e := newTestExtractor(nil)

	msgs := e.Feed([]byte("`plot 1.5 2.5\n`plot 3.5 4.5\n"))
	require.Len(t, msgs, 2)

	first := msgs[0].(WindowSample)
	assert.Equal(t, "plot", first.Window)
	assert.Equal(t, uint64(0), first.Sequence)
	assert.Equal(t, []byte("1.5 2.5"), first.Payload)

	second := msgs[1].(WindowSample)
	assert.Equal(t, uint64(1), second.Sequence)
	assert.Equal(t, []byte("3.5 4.5"), second.Payload)
}

func TestWindowSampleSequencesPerWindow(t *testing.T) {
	e := newTestExtractor(nil)

	msgs := e.Feed([]byte("`a 1\n`b 1\n`a 2\n"))
	require.Len(t, msgs, 3)

	assert.Equal(t, uint64(0), msgs[0].(WindowSample).Sequence)
	assert.Equal(t, uint64(0), msgs[1].(WindowSample).Sequence)
	assert.Equal(t, uint64(1), msgs[2].(WindowSample).Sequence)
}

func TestWindowSampleEmptyBody(t *testing.T) {
	e := newTestExtractor(nil)

	msgs := e.Feed([]byte("`beat\n"))
	require.Len(t, msgs, 1)

	s := msgs[0].(WindowSample)
	assert.Equal(t, "beat", s.Window)
	assert.Empty(t, s.Payload)
}

func TestWindowNameGrammar(t *testing.T) {
	e := newTestExtractor(nil)

	msgs := e.Feed([]byte("`_raw9 go\n"))
	require.Len(t, msgs, 1)
	assert.Equal(t, "_raw9", msgs[0].(WindowCommand).Window)

	// Underscore-leading body token is not a letter, so it is a sample.
	msgs = e.Feed([]byte("`w _data\n"))
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("_data"), msgs[0].(WindowSample).Payload)
}

func TestWindowEmptyNameMalformed(t *testing.T) {
	var warnings []Warning
	e := newTestExtractor(&warnings)

	msgs := e.Feed([]byte("`123 nope\nrecovered\n"))
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnWindowSyntax, warnings[0].Reason)
	assert.Equal(t, MarkerWindow, warnings[0].Byte)

	require.Len(t, msgs, 1)
	assert.Equal(t, "recovered", msgs[0].(TextLine).Text)
}

func TestWindowSplitAcrossFeeds(t *testing.T) {
	e := newTestExtractor(nil)

	require.Empty(t, e.Feed([]byte("`sco")))
	assert.Equal(t, "window", e.State())
	require.Empty(t, e.Feed([]byte("pe set ")))

	msgs := e.Feed([]byte("fast\n"))
	require.Len(t, msgs, 1)
	cmd := msgs[0].(WindowCommand)
	assert.Equal(t, "scope", cmd.Window)
	assert.Equal(t, "set", cmd.Verb)
	assert.Equal(t, []string{"fast"}, cmd.Args)
}

func TestTextOverlongForceEmitted(t *testing.T) {
	var warnings []Warning
	e := New(Config{MaxLineBytes: 8, Clock: fixedClock, OnWarning: func(w Warning) {
		warnings = append(warnings, w)
	}})

	msgs := e.Feed([]byte("0123456789AB\n"))
	require.Len(t, msgs, 2)
	assert.Equal(t, "01234567", msgs[0].(TextLine).Text)
	assert.Equal(t, "89AB", msgs[1].(TextLine).Text)
	assert.Empty(t, warnings, "force-emit loses no bytes and is not a warning")

	// A line of exactly MaxLineBytes force-emits, then its own LF
	// terminates an empty continuation line.
	msgs = e.Feed([]byte("abcdefgh\n"))
	require.Len(t, msgs, 2)
	assert.Equal(t, "abcdefgh", msgs[0].(TextLine).Text)
	assert.Equal(t, "", msgs[1].(TextLine).Text)
}

func TestWindowOverlongDiscarded(t *testing.T) {
	var warnings []Warning
	e := New(Config{MaxLineBytes: 8, Clock: fixedClock, OnWarning: func(w Warning) {
		warnings = append(warnings, w)
	}})

	msgs := e.Feed([]byte("`abcdefghij\n"))

	require.Len(t, warnings, 1)
	assert.Equal(t, WarnLineOverflow, warnings[0].Reason)
	assert.Equal(t, MarkerWindow, warnings[0].Byte)

	// The first MaxLineBytes are discarded; the tail re-enters
	// classification as a text line.
	require.Len(t, msgs, 1)
	assert.Equal(t, "hij", msgs[0].(TextLine).Text)
}

func TestResetDiscardsPartialFrame(t *testing.T) {
	e := newTestExtractor(nil)

	// Partial binary frame: header plus half the payload.
	full := packet(5, []byte{1, 2, 3, 4})
	require.Empty(t, e.Feed(full[:5]))
	assert.Positive(t, e.Buffered())

	e.Reset(1)
	assert.Equal(t, 0, e.Buffered())
	assert.Equal(t, "idle", e.State())
	assert.Equal(t, uint64(1), e.Epoch())

	// The rest of the old frame is reinterpreted from scratch in the new
	// epoch; it must not complete the discarded packet.
	msgs := e.Feed(append(append([]byte{}, full[5:]...), '\n'))
	for _, m := range msgs {
		assert.Equal(t, uint64(1), m.Epoch())
		assert.NotEqual(t, KindDebugger, m.Kind())
	}
}

func TestResetRestartsSampleSequences(t *testing.T) {
	e := newTestExtractor(nil)

	msgs := e.Feed([]byte("`s 1\n`s 2\n"))
	require.Len(t, msgs, 2)
	assert.Equal(t, uint64(1), msgs[1].(WindowSample).Sequence)

	e.Reset(1)

	msgs = e.Feed([]byte("`s 3\n"))
	require.Len(t, msgs, 1)
	assert.Equal(t, uint64(0), msgs[0].(WindowSample).Sequence)
	assert.Equal(t, uint64(1), msgs[0].Epoch())
}

func TestEpochTagging(t *testing.T) {
	e := newTestExtractor(nil)

	msgs := e.Feed([]byte("one\n"))
	require.Len(t, msgs, 1)
	assert.Equal(t, uint64(0), msgs[0].Epoch())

	e.Reset(7)
	msgs = e.Feed(append(packet(0, []byte{1}), []byte("`w x\n")...))
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Equal(t, uint64(7), m.Epoch())
	}
}

func TestWarningOffsetsAreAbsolute(t *testing.T) {
	var warnings []Warning
	e := newTestExtractor(&warnings)

	e.Feed([]byte("ab\n"))           // 3 bytes consumed
	e.Feed([]byte{0xEF})             // unknown marker at offset 3
	e.Feed([]byte{0xEE})             // unknown marker at offset 4
	require.Len(t, warnings, 2)
	assert.Equal(t, int64(3), warnings[0].Offset)
	assert.Equal(t, int64(4), warnings[1].Offset)

	// Offsets restart after reset.
	e.Reset(1)
	e.Feed([]byte{0xEF})
	require.Len(t, warnings, 3)
	assert.Equal(t, int64(0), warnings[2].Offset)
}

// mixedStream is a composite of all grammars used by the chunk-boundary
// property tests.
func mixedStream() []byte {
	var buf bytes.Buffer
	buf.WriteString("Cog0: INIT $0000_0000 load\r\n")
	buf.Write(packet(2, []byte{0x01, 0x02, 0x03}))
	buf.WriteString("`scope trigger auto\n")
	buf.WriteString("plain trace line\n")
	buf.Write(packet(2, []byte{0x01, 0x02, 0x03}))
	buf.Write(packet(7, nil))
	buf.WriteString("`plot 1 2 3\n`plot 4 5 6\n")
	buf.WriteString("Cog3 done\n")
	return buf.Bytes()
}

func feedInChunks(stream []byte, sizes func(i int) int) []Message {
	e := newTestExtractor(nil)
	var out []Message
	for i := 0; i < len(stream); {
		n := sizes(i)
		if n < 1 {
			n = 1
		}
		if i+n > len(stream) {
			n = len(stream) - i
		}
		out = append(out, e.Feed(stream[i:i+n])...)
		i += n
	}
	return out
}

func TestChunkBoundaryIndependence(t *testing.T) {
	stream := mixedStream()

	whole := feedInChunks(stream, func(int) int { return len(stream) })
	require.NotEmpty(t, whole)

	bytewise := feedInChunks(stream, func(int) int { return 1 })
	if diff := cmp.Diff(whole, bytewise); diff != "" {
		t.Errorf("byte-by-byte feed diverged (-whole +bytewise):\n%s", diff)
	}

	// Every two-chunk split.
	for split := 1; split < len(stream); split++ {
		e := newTestExtractor(nil)
		got := e.Feed(stream[:split])
		got = append(got, e.Feed(stream[split:])...)
		if diff := cmp.Diff(whole, got); diff != "" {
			t.Fatalf("split at %d diverged (-whole +split):\n%s", split, diff)
		}
	}

	// A handful of fixed odd chunk sizes.
	for _, size := range []int{2, 3, 5, 7, 11} {
		got := feedInChunks(stream, func(int) int { return size })
		if diff := cmp.Diff(whole, got); diff != "" {
			t.Errorf("chunk size %d diverged:\n%s", size, diff)
		}
	}
}

func TestChunkBoundaryIndependenceWithCorruption(t *testing.T) {
	// Same property with malformed input mixed in: resync decisions must
	// be split-invariant too.
	var stream []byte
	// Unknown marker, then a clean line.
	stream = append(stream, 0xEF)
	stream = append(stream, []byte("ok\n")...)
	// Oversized declaration; the resync'd leftovers become a text line
	// terminated by the LF.
	stream = append(stream, MarkerDebuggerBase, 0xFF, 0xFF, '\n')
	stream = append(stream, packet(1, []byte{0xAA, 0xBB})...)

	whole := feedInChunks(stream, func(int) int { return len(stream) })
	bytewise := feedInChunks(stream, func(int) int { return 1 })
	if diff := cmp.Diff(whole, bytewise); diff != "" {
		t.Errorf("corrupted stream diverged across chunking (-whole +bytewise):\n%s", diff)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "text", KindText.String())
	assert.Equal(t, "debugger", KindDebugger.String())
	assert.Equal(t, "window_command", KindWindowCommand.String())
	assert.Equal(t, "window_sample", KindWindowSample.String())
	assert.Equal(t, "unknown", Kind(99).String())
}

func TestWarnReasonString(t *testing.T) {
	assert.Equal(t, "unknown_marker", WarnUnknownMarker.String())
	assert.Equal(t, "length_overflow", WarnLengthOverflow.String())
	assert.Equal(t, "window_syntax", WarnWindowSyntax.String())
	assert.Equal(t, "line_overflow", WarnLineOverflow.String())
}

func TestConfigDefaultsClamped(t *testing.T) {
	e := New(Config{Cores: 99})
	// Marker range holds 16 cores at most; 0xEF must now be valid.
	msgs := e.Feed(packet(15, []byte{1}))
	require.Len(t, msgs, 1)
	assert.Equal(t, 15, msgs[0].(DebuggerPacket).Core)
}

func BenchmarkFeedTextLines(b *testing.B) {
	line := []byte("Cog1: some representative trace output line\n")
	e := New(Config{Clock: fixedClock})
	b.SetBytes(int64(len(line)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Feed(line)
	}
}

func BenchmarkFeedPackets(b *testing.B) {
	pkt := packet(3, bytes.Repeat([]byte{0x55}, 64))
	e := New(Config{Clock: fixedClock})
	b.SetBytes(int64(len(pkt)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Feed(pkt)
	}
}
