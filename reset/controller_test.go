package reset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/probestream/metric"
)

type fakeExtractor struct {
	calls  *[]string
	epochs []uint64
}

func (f *fakeExtractor) Reset(epoch uint64) {
	*f.calls = append(*f.calls, "extractor")
	f.epochs = append(f.epochs, epoch)
}

type fakeSink struct {
	calls  *[]string
	epochs []uint64
}

func (f *fakeSink) OnReset(epoch uint64) {
	*f.calls = append(*f.calls, "sink")
	f.epochs = append(f.epochs, epoch)
}

type fakeRouter struct {
	calls  *[]string
	epochs []uint64
}

func (f *fakeRouter) OnReset(epoch uint64) {
	*f.calls = append(*f.calls, "router")
	f.epochs = append(f.epochs, epoch)
}

type fakeLine struct {
	states []bool
	err    error
}

func (f *fakeLine) SetLine(asserted bool) error {
	f.states = append(f.states, asserted)
	return f.err
}

func newTestController() (*Controller, *fakeExtractor, *fakeSink, *fakeRouter, *[]string) {
	calls := &[]string{}
	ext := &fakeExtractor{calls: calls}
	sink := &fakeSink{calls: calls}
	router := &fakeRouter{calls: calls}
	c := NewController(Deps{
		Extractor: ext,
		Sink:      sink,
		Router:    router,
	})
	return c, ext, sink, router, calls
}

func TestControllerInitialState(t *testing.T) {
	c, _, _, _, calls := newTestController()

	assert.Equal(t, uint64(0), c.Epoch())
	assert.False(t, c.Asserted())
	assert.Empty(t, *calls)
}

func TestAssertDoesNotAdvanceEpoch(t *testing.T) {
	c, _, _, _, calls := newTestController()

	c.SetAsserted(true)

	assert.True(t, c.Asserted())
	assert.Equal(t, uint64(0), c.Epoch())
	assert.Empty(t, *calls, "handlers must not run on assert")
}

func TestReleaseAdvancesEpochAndRunsChain(t *testing.T) {
	c, ext, sink, router, calls := newTestController()

	c.SetAsserted(true)
	c.SetAsserted(false)

	assert.False(t, c.Asserted())
	assert.Equal(t, uint64(1), c.Epoch())

	require.Equal(t, []string{"extractor", "sink", "router"}, *calls,
		"reset chain must run extractor, then sink, then router")
	assert.Equal(t, []uint64{1}, ext.epochs)
	assert.Equal(t, []uint64{1}, sink.epochs)
	assert.Equal(t, []uint64{1}, router.epochs)
}

func TestSetAssertedIdempotent(t *testing.T) {
	c, _, _, _, calls := newTestController()
	line := &fakeLine{}
	c.deps.Line = line

	c.SetAsserted(true)
	c.SetAsserted(true)
	c.SetAsserted(true)

	assert.Equal(t, []bool{true}, line.states, "repeat asserts must not re-drive the line")

	c.SetAsserted(false)
	c.SetAsserted(false)

	assert.Equal(t, uint64(1), c.Epoch(), "repeat release must not advance the epoch again")
	assert.Len(t, *calls, 3, "chain runs once per cycle")
}

func TestReleaseWithoutAssertIsNoOp(t *testing.T) {
	c, _, _, _, calls := newTestController()

	c.SetAsserted(false)

	assert.Equal(t, uint64(0), c.Epoch())
	assert.Empty(t, *calls)
}

func TestEpochIncrementsOncePerCycle(t *testing.T) {
	c, ext, _, _, _ := newTestController()

	for i := 1; i <= 5; i++ {
		c.SetAsserted(true)
		c.SetAsserted(false)
	}

	assert.Equal(t, uint64(5), c.Epoch())
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, ext.epochs)
}

func TestLineDrivenOnBothTransitions(t *testing.T) {
	c, _, _, _, _ := newTestController()
	line := &fakeLine{}
	c.deps.Line = line

	c.SetAsserted(true)
	c.SetAsserted(false)

	assert.Equal(t, []bool{true, false}, line.states)
}

func TestLineFailureDoesNotBlockProtocol(t *testing.T) {
	c, ext, _, _, _ := newTestController()
	line := &fakeLine{err: errors.New("dtr unsupported")}
	c.deps.Line = line

	c.SetAsserted(true)
	c.SetAsserted(false)

	assert.Equal(t, uint64(1), c.Epoch())
	assert.Equal(t, []uint64{1}, ext.epochs, "chain must still run when the line drive fails")
}

func TestNilHandlersTolerated(t *testing.T) {
	c := NewController(Deps{})

	c.SetAsserted(true)
	c.SetAsserted(false)

	assert.Equal(t, uint64(1), c.Epoch())
}

func TestResetRecordsMetrics(t *testing.T) {
	registry := metric.NewRegistry()
	calls := &[]string{}
	c := NewController(Deps{
		Extractor: &fakeExtractor{calls: calls},
		Metrics:   registry,
	})

	c.SetAsserted(true)
	c.SetAsserted(false)
	c.SetAsserted(true)
	c.SetAsserted(false)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	var resets, epoch float64
	for _, mf := range families {
		switch mf.GetName() {
		case "probestream_reset_resets_total":
			resets = mf.GetMetric()[0].GetCounter().GetValue()
		case "probestream_reset_session_epoch":
			epoch = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 2.0, resets)
	assert.Equal(t, 2.0, epoch)
}
