// Package health turns per-component health into one system status.
//
// Components report a binary Healthy through the component.Discoverable
// contract; the Monitor pulls those on demand, sanitizes error text, and
// folds them into a three-state aggregate: healthy (everything up),
// degraded (an optional output is down), unhealthy (the core pipeline is
// down or nothing is registered). The Monitor doubles as the /healthz
// http.Handler and as a background loop that logs state transitions.
package health
