package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360/probestream/component"
	"github.com/c360/probestream/metric"
)

// DefaultCheckInterval paces the background Run loop.
const DefaultCheckInterval = 15 * time.Second

// MonitorDeps carries the monitor's ambient collaborators.
type MonitorDeps struct {
	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Monitor aggregates the health of every registered component on demand.
// One component is designated core: while the core is healthy the system is
// at worst degraded, so a failed optional output never takes /healthz down
// with it.
type Monitor struct {
	registry *component.Registry
	core     string
	logger   *slog.Logger
	metrics  *metric.Metrics
}

// NewMonitor creates a monitor over the registry. core names the component
// whose failure makes the whole system unhealthy, normally "pipeline".
func NewMonitor(registry *component.Registry, core string, deps MonitorDeps) *Monitor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var coreMetrics *metric.Metrics
	if deps.Metrics != nil {
		coreMetrics = deps.Metrics.CoreMetrics()
	}
	return &Monitor{
		registry: registry,
		core:     core,
		logger:   logger.With("component", "health"),
		metrics:  coreMetrics,
	}
}

// Check inspects every registered component and returns the aggregate with
// one sub-status per component.
func (m *Monitor) Check() Status {
	names := m.registry.Names()

	healthyCount := 0
	coreHealthy := true
	subs := make([]Status, 0, len(names))

	for _, name := range names {
		comp, ok := m.registry.Get(name)
		if !ok {
			continue
		}
		sub := FromComponentHealth(name, comp.Health())
		subs = append(subs, sub)

		if sub.Healthy {
			healthyCount++
		} else if name == m.core {
			coreHealthy = false
		}
		if m.metrics != nil {
			m.metrics.RecordHealthStatus(name, sub.Healthy)
		}
	}

	if len(subs) == 0 {
		return NewUnhealthy("probestream", "no components registered")
	}

	// Strict aggregate first, then the core relaxation: while the core is
	// up, failed optional outputs degrade the system instead of downing it.
	agg := Aggregate("probestream", subs)
	if agg.IsUnhealthy() && coreHealthy {
		agg.Status = "degraded"
	}
	agg.Message = fmt.Sprintf("%d/%d components healthy", healthyCount, len(subs))
	return agg
}

// ServeHTTP answers /healthz with the JSON aggregate. Degraded still
// returns 200 so probes keep the process alive while a non-core output is
// down; only a failed core returns 503.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status := m.Check()

	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		m.logger.Warn("failed to write health response", "error", err)
	}
}

// Run re-checks on an interval until the context ends, logging status
// transitions. The per-component gauges refresh on every pass.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := ""
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			status := m.Check()
			if status.Status != last {
				m.logger.Info("system health changed",
					"from", last,
					"to", status.Status,
					"detail", status.Message)
				last = status.Status
			}
		}
	}
}
