package logsink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVelocityEmpty(t *testing.T) {
	v := newVelocity(2 * time.Second)

	assert.Equal(t, 0.0, v.Rate(1_000_000))
}

func TestVelocityCountsOverWindow(t *testing.T) {
	v := newVelocity(2 * time.Second)

	for i := 0; i < 10; i++ {
		v.Record(1_000_000)
	}

	// 10 messages over a 2s window.
	assert.Equal(t, 5.0, v.Rate(1_000_000))
}

func TestVelocityExpiresOldBuckets(t *testing.T) {
	v := newVelocity(2 * time.Second)

	for i := 0; i < 8; i++ {
		v.Record(1_000_000)
	}
	assert.Equal(t, 4.0, v.Rate(1_000_000))

	// A full window later everything has expired.
	assert.Equal(t, 0.0, v.Rate(3_000_000))
}

func TestVelocitySlidesPartially(t *testing.T) {
	v := newVelocity(2 * time.Second)

	for i := 0; i < 4; i++ {
		v.Record(1_000_000)
	}
	for i := 0; i < 4; i++ {
		v.Record(1_500_000)
	}
	assert.Equal(t, 4.0, v.Rate(1_500_000))

	// At t=3.05s the first burst (bucket at 1.0s) has left the window,
	// the second (1.5s) has not.
	assert.Equal(t, 2.0, v.Rate(3_050_000))
}

func TestVelocityReset(t *testing.T) {
	v := newVelocity(2 * time.Second)

	for i := 0; i < 20; i++ {
		v.Record(1_000_000)
	}
	assert.Equal(t, 10.0, v.Rate(1_000_000))

	v.Reset()
	assert.Equal(t, 0.0, v.Rate(1_000_000))

	// Still usable after reset.
	v.Record(1_100_000)
	assert.Equal(t, 0.5, v.Rate(1_100_000))
}
