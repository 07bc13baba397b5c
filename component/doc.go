// Package component defines the plumbing shared by every probestream
// component: the Discoverable interface for inspection, the Pattern A
// lifecycle contract, port declarations for resource-conflict detection,
// schema generation from struct tags, and validated config unmarshaling.
//
// # Component model
//
// A component is anything cmd assembles and manages: the serial input, the
// decode pipeline, and the output surfaces (websocket, NATS mirror). Each
// implements Discoverable so the health monitor and diagnostics endpoints
// can inspect it, and LifecycleComponent so cmd can drive it through
// Initialize/Start/Stop uniformly:
//
//	Initialize() error                  // validate config, no I/O
//	Start(ctx context.Context) error    // spawn goroutines, bind resources
//	Stop(timeout time.Duration) error   // graceful shutdown with deadline
//
// Start and Stop are idempotent: starting a running component or stopping a
// stopped one returns nil.
//
// # Ports and conflicts
//
// Components declare the external resources they touch as Ports (serial
// devices, TCP listeners, NATS subjects, log directories). The Registry
// rejects a second component claiming an exclusive resource, so a
// misconfigured deployment fails at assembly instead of at runtime.
//
// # Config schemas
//
// Config structs carry `schema` tags next to their `json` tags;
// GenerateConfigSchema reflects over them once at init to produce the
// ConfigSchema served by diagnostics. SafeUnmarshal validates raw JSON
// (size, depth, control characters) before decoding it into a config
// struct.
package component
