package component

import (
	"time"
)

// Discoverable is implemented by every managed component so the health
// monitor and diagnostics endpoints can inspect it without knowing its
// concrete type.
//
// Component types in this system:
//   - input: byte sources (serial port)
//   - pipeline: the single-threaded decode core
//   - output: live views and mirrors (websocket, NATS)
type Discoverable interface {
	// Meta returns basic component information.
	Meta() Metadata

	// InputPorts returns the external resources this component consumes.
	InputPorts() []Port

	// OutputPorts returns the external resources this component exposes.
	OutputPorts() []Port

	// ConfigSchema describes the component's configuration parameters.
	ConfigSchema() ConfigSchema

	// Health returns current health status.
	Health() HealthStatus

	// DataFlow returns current throughput metrics.
	DataFlow() FlowMetrics
}

// Metadata describes what a component is.
type Metadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "input", "pipeline", "output"
	Description string `json:"description"`
	Version     string `json:"version"`
}

// ConfigSchema describes the configuration parameters for a component.
type ConfigSchema struct {
	Properties map[string]PropertySchema `json:"properties"`
	Required   []string                  `json:"required"`
}

// PropertySchema describes a single configuration property.
type PropertySchema struct {
	Type        string   `json:"type"` // "string", "int", "bool", "float", "enum", "array", "object"
	Description string   `json:"description"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Minimum     *int     `json:"minimum,omitempty"`
	Maximum     *int     `json:"maximum,omitempty"`
	Category    string   `json:"category,omitempty"` // "basic" or "advanced"
}

// HealthStatus describes the current health state of a component.
type HealthStatus struct {
	Healthy    bool          `json:"healthy"`
	LastCheck  time.Time     `json:"last_check"`
	ErrorCount int           `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// FlowMetrics describes the current data flow through a component.
type FlowMetrics struct {
	MessagesPerSecond float64   `json:"messages_per_second"`
	BytesPerSecond    float64   `json:"bytes_per_second"`
	ErrorRate         float64   `json:"error_rate"`
	LastActivity      time.Time `json:"last_activity"`
}
