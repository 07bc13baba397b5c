package component

import (
	"encoding/json"
	"fmt"

	"github.com/c360/probestream/errors"
)

// Direction for data flow.
type Direction string

// Direction constants for port data flow.
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Port describes one external resource a component touches.
type Port struct {
	Name        string    `json:"name"`
	Direction   Direction `json:"direction"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`
	Config      Portable  `json:"config"`
}

// Portable identifies a port's underlying resource for conflict detection.
type Portable interface {
	ResourceID() string // unique identifier for conflict detection
	IsExclusive() bool  // whether a second claimant is an error
	Type() string       // port type identifier
}

// SerialPort is a serial device. Exclusive: exactly one component may hold
// the device open.
type SerialPort struct {
	Device   string `json:"device"`    // "/dev/ttyUSB0"
	BaudRate int    `json:"baud_rate"` // 115200, 2000000
}

func (s SerialPort) ResourceID() string { return fmt.Sprintf("serial:%s", s.Device) }

func (s SerialPort) IsExclusive() bool { return true }

func (s SerialPort) Type() string { return "serial" }

// NetworkPort is a TCP/UDP binding. Exclusive: a listen address can be
// bound once.
type NetworkPort struct {
	Protocol string `json:"protocol"` // "tcp", "udp"
	Host     string `json:"host"`
	Port     int    `json:"port"`
}

func (n NetworkPort) ResourceID() string {
	return fmt.Sprintf("%s:%s:%d", n.Protocol, n.Host, n.Port)
}

func (n NetworkPort) IsExclusive() bool { return true }

func (n NetworkPort) Type() string { return "network" }

// NATSPort is a NATS subject. Shared: any number of publishers and
// subscribers coexist.
type NATSPort struct {
	Subject string `json:"subject"`
	Queue   string `json:"queue,omitempty"`
}

func (n NATSPort) ResourceID() string { return fmt.Sprintf("nats:%s", n.Subject) }

func (n NATSPort) IsExclusive() bool { return false }

func (n NATSPort) Type() string { return "nats" }

// FilePort is filesystem access. Shared for reads; log artifact directories
// are effectively single-writer but rotation makes collisions harmless.
type FilePort struct {
	Path    string `json:"path"`
	Pattern string `json:"pattern,omitempty"`
}

func (f FilePort) ResourceID() string { return fmt.Sprintf("file:%s", f.Path) }

func (f FilePort) IsExclusive() bool { return false }

func (f FilePort) Type() string { return "file" }

// MarshalJSON wraps the Portable config with its type tag so it survives a
// round trip through diagnostics endpoints.
func (p Port) MarshalJSON() ([]byte, error) {
	type portAlias Port

	wrapper := struct {
		portAlias
		Config json.RawMessage `json:"config"`
	}{
		portAlias: (portAlias)(p),
	}

	if p.Config != nil {
		tagged := struct {
			Type string `json:"type"`
			Data any    `json:"data"`
		}{
			Type: p.Config.Type(),
			Data: p.Config,
		}

		configBytes, err := json.Marshal(tagged)
		if err != nil {
			return nil, errors.Wrap(err, "Port", "MarshalJSON", "config marshaling")
		}
		wrapper.Config = configBytes
	}

	return json.Marshal(wrapper)
}

// UnmarshalJSON reconstructs the Portable config from its type tag.
func (p *Port) UnmarshalJSON(data []byte) error {
	type portAlias Port

	temp := struct {
		*portAlias
		Config json.RawMessage `json:"config"`
	}{
		portAlias: (*portAlias)(p),
	}

	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	if len(temp.Config) == 0 {
		return nil
	}

	var wrapper struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(temp.Config, &wrapper); err != nil {
		return errors.Wrap(err, "Port", "UnmarshalJSON", "config wrapper unmarshaling")
	}

	switch wrapper.Type {
	case "serial":
		var cfg SerialPort
		if err := json.Unmarshal(wrapper.Data, &cfg); err != nil {
			return errors.Wrap(err, "Port", "UnmarshalJSON", "serial config unmarshaling")
		}
		p.Config = cfg
	case "network":
		var cfg NetworkPort
		if err := json.Unmarshal(wrapper.Data, &cfg); err != nil {
			return errors.Wrap(err, "Port", "UnmarshalJSON", "network config unmarshaling")
		}
		p.Config = cfg
	case "nats":
		var cfg NATSPort
		if err := json.Unmarshal(wrapper.Data, &cfg); err != nil {
			return errors.Wrap(err, "Port", "UnmarshalJSON", "nats config unmarshaling")
		}
		p.Config = cfg
	case "file":
		var cfg FilePort
		if err := json.Unmarshal(wrapper.Data, &cfg); err != nil {
			return errors.Wrap(err, "Port", "UnmarshalJSON", "file config unmarshaling")
		}
		p.Config = cfg
	default:
		return errors.WrapInvalid(
			fmt.Errorf("unknown config type: %s", wrapper.Type),
			"Port", "UnmarshalJSON", "config type validation")
	}

	return nil
}
