// Package natsclient manages the NATS connection used by the mirror output.
//
// # Overview
//
// Client wraps a single nats.Conn with:
//   - Circuit breaker: repeated connection failures open the circuit and
//     back off exponentially (capped), so a dead broker costs one failed
//     dial per backoff window instead of a dial per message
//   - Status tracking: an atomic ConnectionStatus readable from any
//     goroutine, plus a GetStatus snapshot with failure count, reconnect
//     count and RTT for health reporting
//   - Lifecycle callbacks: disconnect/reconnect/health-change hooks, used by
//     the mirror to log transitions and by metrics to keep the
//     nats_connected gauge and nats_reconnects counter current
//   - Graceful close: Close drains subscriptions within a timeout before
//     force-closing, and clears credentials from memory
//
// # Usage
//
//	client, err := natsclient.NewClient(strings.Join(urls, ","),
//	    natsclient.WithName("probestream"),
//	    natsclient.WithLogger(natsclient.SlogLogger(logger)),
//	    natsclient.WithMetrics(registry),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    // transient: the mirror stays unhealthy and retries
//	}
//	defer client.Close(ctx)
//
//	err = client.Publish(ctx, "probestream.text.cog3", payload)
//
// Publish and Subscribe return ErrNotConnected while the connection is down;
// callers treat that as a droppable condition, not a fatal one. Connect
// returns ErrCircuitOpen while the breaker is open.
//
// # Integration tests
//
// Tests that need a real broker read PROBESTREAM_TEST_NATS_URL and skip when
// it is unset, so the default test run never depends on external services.
package natsclient
