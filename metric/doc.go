// Package metric provides Prometheus-based metrics collection and an HTTP
// server for probestream pipeline monitoring.
//
// The package offers a centralized metrics registry managing both core
// pipeline metrics (decoder throughput, reset cycles, router and sink
// activity, NATS health) and custom component-specific metrics. It includes
// an HTTP server exposing metrics in Prometheus format.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: Pipeline-level metrics automatically registered (Metrics type)
//  2. Component Registry: Extensible registration for component-specific metrics (Registrar interface)
//  3. HTTP Server: Metrics endpoint with health checks (Server type)
//
// This separates infrastructure concerns (core metrics) from component
// concerns (component-specific metrics) while providing a unified metrics
// endpoint.
//
// # Basic Usage
//
// Setting up metrics collection and the HTTP server:
//
//	registry := metric.NewRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("Metrics server error: %v", err)
//	    }
//	}()
//
//	// Record core pipeline metrics
//	core := registry.CoreMetrics()
//	core.RecordBytesConsumed(4096)
//	core.RecordMessageExtracted("text")
//	core.RecordReset(3)
//
// The server exposes Prometheus-formatted metrics at
// http://localhost:9090/metrics and a health check at
// http://localhost:9090/healthz.
//
// # Core Metrics
//
// The package automatically registers core pipeline metrics tracking:
//
//   - Component lifecycle: component_status, health_status
//   - Decoder activity: decoder_bytes_total, decoder_messages_total, decoder_warnings_total
//   - Reset protocol: reset_resets_total, reset_session_epoch
//   - Routing: router_messages_total, router_pending_depth, router_pending_evicted_total
//   - Log sink: sink_ingested_total, sink_flushes_total, sink_batched_mode, sink_velocity
//   - NATS connectivity: nats_connected, nats_reconnects_total
//   - Error tracking: errors_total by component and class
//
// All core metrics use the namespace "probestream":
//
//	probestream_decoder_messages_total{kind="window_sample"}
//	probestream_router_pending_depth
//	probestream_reset_session_epoch
//
// # Component-Specific Metrics
//
// Components register custom metrics through the registry:
//
//	buffered := prometheus.NewGauge(prometheus.GaugeOpts{
//	    Name: "probestream_serial_buffered_bytes",
//	    Help: "Bytes waiting in the serial read buffer",
//	})
//	err := registry.RegisterGauge("serial-input", "buffered_bytes", buffered)
//
// Registration is keyed by component and metric name; registering the same
// pair twice returns an invalid-class error.
//
// # Registrar Interface
//
// Components accept the Registrar interface for dependency injection:
//
//	type SerialInput struct {
//	    metrics metric.Registrar
//	}
//
// This enables testing with mock registrars and keeps components decoupled
// from the concrete registry.
//
// # Thread Safety
//
// All registry operations are safe for concurrent use:
//   - Registration methods use mutex protection
//   - Metric recording is lock-free (Prometheus guarantee)
//   - CoreMetrics() returns a shared instance safe for concurrent recording
package metric
