package router

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/probestream/frame"
)

type captureDest struct {
	msgs []frame.Message
}

func (d *captureDest) Deliver(msg frame.Message) {
	d.msgs = append(d.msgs, msg)
}

func newTestRouter(cfg Config) *Router {
	return New(cfg, Deps{})
}

func textLine(text string) frame.TextLine {
	return frame.TextLine{Core: frame.CoreUnknown, Text: text}
}

func sample(window string, seq uint64, payload string) frame.WindowSample {
	return frame.WindowSample{Window: window, Sequence: seq, Payload: []byte(payload)}
}

func TestCoreKey(t *testing.T) {
	assert.Equal(t, "cog0", CoreKey(0))
	assert.Equal(t, "cog7", CoreKey(7))
	assert.Equal(t, "cog15", CoreKey(15))
}

func TestRegisterValidation(t *testing.T) {
	r := newTestRouter(Config{})

	err := r.Register("", &captureDest{})
	assert.Error(t, err)

	err = r.Register("term", nil)
	assert.Error(t, err)
}

func TestTextRoutesToLog(t *testing.T) {
	r := newTestRouter(Config{})
	log := &captureDest{}
	require.NoError(t, r.Register(KeyLog, log))

	keys := r.Route(textLine("hello"))

	assert.Equal(t, []string{KeyLog}, keys)
	require.Len(t, log.msgs, 1)
	assert.Equal(t, "hello", log.msgs[0].(frame.TextLine).Text)
}

func TestTextWithoutLogSinkDropped(t *testing.T) {
	r := newTestRouter(Config{})

	keys := r.Route(textLine("orphan"))

	assert.Empty(t, keys)
}

func TestDebuggerPacketFansOutToCoreView(t *testing.T) {
	r := newTestRouter(Config{})
	log := &captureDest{}
	view := &captureDest{}
	require.NoError(t, r.Register(KeyLog, log))
	require.NoError(t, r.Register(CoreKey(3), view))

	pkt := frame.DebuggerPacket{Core: 3, Payload: []byte{1, 2}, DeclaredLength: 2}
	keys := r.Route(pkt)

	assert.Equal(t, []string{KeyLog, "cog3"}, keys)
	assert.Len(t, log.msgs, 1)
	assert.Len(t, view.msgs, 1)

	// A packet for a core without a view still reaches the log.
	keys = r.Route(frame.DebuggerPacket{Core: 5})
	assert.Equal(t, []string{KeyLog}, keys)
	assert.Len(t, view.msgs, 1)
}

func TestWindowMessagesRouteByName(t *testing.T) {
	r := newTestRouter(Config{})
	term := &captureDest{}
	require.NoError(t, r.Register("term", term))

	keys := r.Route(frame.WindowCommand{Window: "term", Verb: "size", Args: []string{"80", "25"}})
	assert.Equal(t, []string{"term"}, keys)

	keys = r.Route(sample("term", 0, "42"))
	assert.Equal(t, []string{"term"}, keys)

	require.Len(t, term.msgs, 2)
}

func TestUnregisteredWindowParksMessages(t *testing.T) {
	r := newTestRouter(Config{})

	keys := r.Route(sample("scope", 0, "a"))
	assert.Empty(t, keys)
	r.Route(sample("scope", 1, "b"))
	r.Route(sample("scope", 2, "c"))

	assert.Equal(t, 3, r.PendingDepth("scope"))

	// Late registration flushes in original order, then removes the queue.
	scope := &captureDest{}
	require.NoError(t, r.Register("scope", scope))

	require.Len(t, scope.msgs, 3)
	for i, want := range []string{"a", "b", "c"} {
		got := scope.msgs[i].(frame.WindowSample)
		assert.Equal(t, uint64(i), got.Sequence)
		assert.Equal(t, want, string(got.Payload))
	}
	assert.Equal(t, 0, r.PendingDepth("scope"))

	// Subsequent messages deliver directly.
	r.Route(sample("scope", 3, "d"))
	assert.Len(t, scope.msgs, 4)
}

func TestPendingQueueEvictsOldest(t *testing.T) {
	r := newTestRouter(Config{PendingCapacity: 2})

	r.Route(sample("la", 0, "first"))
	r.Route(sample("la", 1, "second"))
	r.Route(sample("la", 2, "third"))

	assert.Equal(t, 2, r.PendingDepth("la"))

	la := &captureDest{}
	require.NoError(t, r.Register("la", la))

	require.Len(t, la.msgs, 2)
	assert.Equal(t, "second", string(la.msgs[0].(frame.WindowSample).Payload))
	assert.Equal(t, "third", string(la.msgs[1].(frame.WindowSample).Payload))
}

func TestMaxPendingWindowsDropsNewName(t *testing.T) {
	r := newTestRouter(Config{MaxPendingWindows: 2})

	r.Route(sample("w1", 0, "x"))
	r.Route(sample("w2", 0, "y"))
	r.Route(sample("w3", 0, "z"))

	assert.Equal(t, 1, r.PendingDepth("w1"))
	assert.Equal(t, 1, r.PendingDepth("w2"))
	assert.Equal(t, 0, r.PendingDepth("w3"), "over-limit window must not get a queue")

	// Existing queues keep accepting.
	r.Route(sample("w1", 1, "x2"))
	assert.Equal(t, 2, r.PendingDepth("w1"))
}

func TestRegisterReplacesDestination(t *testing.T) {
	r := newTestRouter(Config{})
	first := &captureDest{}
	second := &captureDest{}

	require.NoError(t, r.Register("term", first))
	require.NoError(t, r.Register("term", second))

	r.Route(sample("term", 0, "v"))

	assert.Empty(t, first.msgs)
	assert.Len(t, second.msgs, 1)
}

func TestUnregisterStopsDelivery(t *testing.T) {
	r := newTestRouter(Config{})
	term := &captureDest{}
	require.NoError(t, r.Register("term", term))

	r.Route(sample("term", 0, "a"))
	r.Unregister("term")
	r.Route(sample("term", 1, "b"))

	assert.Len(t, term.msgs, 1)
	assert.Equal(t, 1, r.PendingDepth("term"), "messages park again after unregister")
}

func TestTapsObserveEverything(t *testing.T) {
	r := newTestRouter(Config{})
	log := &captureDest{}
	tap := &captureDest{}
	require.NoError(t, r.Register(KeyLog, log))
	r.RegisterTap("mirror", tap)

	r.Route(textLine("one"))
	r.Route(sample("ghost", 0, "parked")) // no destination, parked
	r.Route(frame.DebuggerPacket{Core: 1})

	assert.Len(t, tap.msgs, 3, "taps see delivered, parked, and fanned-out messages alike")

	r.UnregisterTap("mirror")
	r.Route(textLine("two"))
	assert.Len(t, tap.msgs, 3)
}

func TestTapNotReplayedOnFlush(t *testing.T) {
	r := newTestRouter(Config{})
	tap := &captureDest{}
	r.RegisterTap("mirror", tap)

	r.Route(sample("scope", 0, "a"))
	require.Len(t, tap.msgs, 1)

	scope := &captureDest{}
	require.NoError(t, r.Register("scope", scope))

	assert.Len(t, scope.msgs, 1)
	assert.Len(t, tap.msgs, 1, "pending flush must not re-tap messages")
}

func TestOnResetClearsNothing(t *testing.T) {
	r := newTestRouter(Config{})
	log := &captureDest{}
	tap := &captureDest{}
	require.NoError(t, r.Register(KeyLog, log))
	r.RegisterTap("mirror", tap)
	r.Route(sample("scope", 0, "parked"))

	r.OnReset(1)

	assert.Equal(t, []string{KeyLog}, r.Keys())
	assert.Equal(t, 1, r.PendingDepth("scope"), "pending queues survive resets")

	r.Route(textLine("after"))
	assert.Len(t, log.msgs, 1, "registrations survive resets")
	assert.Len(t, tap.msgs, 2, "taps survive resets")

	// Old-epoch parked messages still flush after the reset.
	scope := &captureDest{}
	require.NoError(t, r.Register("scope", scope))
	assert.Len(t, scope.msgs, 1)
}

func TestKeysSorted(t *testing.T) {
	r := newTestRouter(Config{})
	for _, key := range []string{"term", KeyLog, "cog2", "alpha"} {
		require.NoError(t, r.Register(key, &captureDest{}))
	}

	assert.Equal(t, []string{"alpha", "cog2", "log", "term"}, r.Keys())
}

func TestRouteManyWindows(t *testing.T) {
	r := newTestRouter(Config{})

	// Stays within the default name limit.
	for i := 0; i < DefaultMaxPendingWindows; i++ {
		r.Route(sample(fmt.Sprintf("w%03d", i), 0, "x"))
	}
	for i := 0; i < DefaultMaxPendingWindows; i++ {
		assert.Equal(t, 1, r.PendingDepth(fmt.Sprintf("w%03d", i)))
	}

	// One past the limit drops.
	r.Route(sample("overflow", 0, "x"))
	assert.Equal(t, 0, r.PendingDepth("overflow"))
}
