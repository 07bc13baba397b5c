package natsclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// integrationURL returns the NATS URL for integration tests, skipping the
// test when none is configured.
func integrationURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("PROBESTREAM_TEST_NATS_URL")
	if url == "" {
		t.Skip("set PROBESTREAM_TEST_NATS_URL to run NATS integration tests")
	}
	return url
}

func TestIntegration_ConnectPublishSubscribe(t *testing.T) {
	url := integrationURL(t)

	client, err := NewClient(url,
		WithTimeout(5*time.Second),
		WithMaxReconnects(0),
		WithHealthInterval(0),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, client.Connect(ctx))
	t.Cleanup(func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = client.Close(closeCtx)
	})

	require.NoError(t, client.WaitForConnection(ctx))
	assert.True(t, client.IsHealthy())

	received := make(chan []byte, 1)
	require.NoError(t, client.Subscribe(ctx, "probestream.itest", func(_ context.Context, data []byte) {
		select {
		case received <- data:
		default:
		}
	}))

	require.NoError(t, client.Publish(ctx, "probestream.itest", []byte(`{"text":"hello"}`)))

	select {
	case data := <-received:
		assert.JSONEq(t, `{"text":"hello"}`, string(data))
	case <-time.After(5 * time.Second):
		t.Fatal("subscription did not receive published message")
	}

	rtt, err := client.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))
}

func TestIntegration_ConnectInvalidURL(t *testing.T) {
	integrationURL(t) // only meaningful where a real server is reachable

	client, err := NewClient("nats://127.0.0.1:1",
		WithTimeout(500*time.Millisecond),
		WithMaxReconnects(0),
		WithHealthInterval(0),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = client.Connect(ctx)
	assert.Error(t, err)
	assert.False(t, client.IsHealthy())
	assert.Equal(t, int32(1), client.Failures())
}
