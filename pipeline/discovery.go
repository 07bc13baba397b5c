package pipeline

import (
	"time"

	"github.com/c360/probestream/component"
)

func (p *Pipeline) Meta() component.Metadata {
	return component.Metadata{
		Name:        "pipeline",
		Type:        "pipeline",
		Description: "Single-threaded decode core: extracts frames, routes messages, drives the session log",
		Version:     "1.0.0",
	}
}

// InputPorts returns nil: the pipeline holds no external resources. Bytes
// arrive from the serial input through Feed.
func (p *Pipeline) InputPorts() []component.Port {
	return nil
}

// OutputPorts returns nil: delivery happens through registered destinations,
// which own their own resources.
func (p *Pipeline) OutputPorts() []component.Port {
	return nil
}

func (p *Pipeline) ConfigSchema() component.ConfigSchema {
	return configSchema
}

// Health reports the loop state. Decode warnings count as errors for
// monitoring but do not make the pipeline unhealthy; a corrupt stream is
// an input problem, not a pipeline failure.
func (p *Pipeline) Health() component.HealthStatus {
	var uptime time.Duration
	if p.running.Load() {
		uptime = time.Since(p.startTime)
	}
	return component.HealthStatus{
		Healthy:    p.running.Load(),
		LastCheck:  time.Now(),
		ErrorCount: int(p.warnings.Load()),
		Uptime:     uptime,
	}
}

func (p *Pipeline) DataFlow() component.FlowMetrics {
	bytes := p.bytesIn.Load()
	msgs := p.msgsOut.Load()
	warns := p.warnings.Load()

	var perSecond, bytesPerSecond, errorRate float64
	if p.running.Load() {
		if uptime := time.Since(p.startTime).Seconds(); uptime > 0 {
			perSecond = float64(msgs) / uptime
			bytesPerSecond = float64(bytes) / uptime
		}
	}
	if msgs > 0 {
		errorRate = float64(warns) / float64(msgs)
	}

	var lastActivity time.Time
	if micros := p.lastActivity.Load(); micros > 0 {
		lastActivity = time.UnixMicro(micros)
	}

	return component.FlowMetrics{
		MessagesPerSecond: perSecond,
		BytesPerSecond:    bytesPerSecond,
		ErrorRate:         errorRate,
		LastActivity:      lastActivity,
	}
}
