package component

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortResourceIDs(t *testing.T) {
	tests := []struct {
		name      string
		config    Portable
		id        string
		portType  string
		exclusive bool
	}{
		{
			name:      "serial",
			config:    SerialPort{Device: "/dev/ttyUSB0", BaudRate: 2_000_000},
			id:        "serial:/dev/ttyUSB0",
			portType:  "serial",
			exclusive: true,
		},
		{
			name:      "network",
			config:    NetworkPort{Protocol: "tcp", Host: "0.0.0.0", Port: 8080},
			id:        "tcp:0.0.0.0:8080",
			portType:  "network",
			exclusive: true,
		},
		{
			name:      "nats",
			config:    NATSPort{Subject: "probe.text"},
			id:        "nats:probe.text",
			portType:  "nats",
			exclusive: false,
		},
		{
			name:      "file",
			config:    FilePort{Path: "/var/log/probe"},
			id:        "file:/var/log/probe",
			portType:  "file",
			exclusive: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.id, tt.config.ResourceID())
			assert.Equal(t, tt.portType, tt.config.Type())
			assert.Equal(t, tt.exclusive, tt.config.IsExclusive())
		})
	}
}

func TestPortJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		port Port
	}{
		{
			name: "serial",
			port: Port{
				Name:        "probe",
				Direction:   DirectionInput,
				Required:    true,
				Description: "debug probe serial stream",
				Config:      SerialPort{Device: "/dev/ttyUSB0", BaudRate: 2_000_000},
			},
		},
		{
			name: "network",
			port: Port{
				Name:      "live-view",
				Direction: DirectionOutput,
				Config:    NetworkPort{Protocol: "tcp", Host: "127.0.0.1", Port: 8080},
			},
		},
		{
			name: "nats",
			port: Port{
				Name:      "mirror",
				Direction: DirectionOutput,
				Config:    NATSPort{Subject: "probe.>"},
			},
		},
		{
			name: "file",
			port: Port{
				Name:      "artifacts",
				Direction: DirectionOutput,
				Config:    FilePort{Path: "/var/log/probe", Pattern: "*.log"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.port)
			require.NoError(t, err)

			var decoded Port
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, tt.port, decoded)
		})
	}
}

func TestPortUnmarshalUnknownType(t *testing.T) {
	raw := `{"name":"x","direction":"input","config":{"type":"carrier-pigeon","data":{}}}`

	var port Port
	err := json.Unmarshal([]byte(raw), &port)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config type")
}

func TestPortUnmarshalNoConfig(t *testing.T) {
	raw := `{"name":"bare","direction":"output"}`

	var port Port
	require.NoError(t, json.Unmarshal([]byte(raw), &port))
	assert.Equal(t, "bare", port.Name)
	assert.Nil(t, port.Config)
}
