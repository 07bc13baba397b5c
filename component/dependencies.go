package component

import (
	"log/slog"

	"github.com/c360/probestream/metric"
	"github.com/c360/probestream/natsclient"
)

// Dependencies carries the shared collaborators components receive at
// construction instead of reaching for globals.
type Dependencies struct {
	NATSClient *natsclient.Client // broker connection for the mirror output (can be nil)
	Metrics    *metric.Registry   // prometheus registry (can be nil)
	Logger     *slog.Logger       // structured logger (nil defaults to slog.Default())
}

// GetLogger returns the configured logger or the process default.
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithComponent returns a logger tagged with the component name.
func (d *Dependencies) GetLoggerWithComponent(componentName string) *slog.Logger {
	return d.GetLogger().With("component", componentName)
}
