package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema is the structural contract for config files. It rejects
// unknown keys, which is where most config mistakes surface: a typo like
// "baudrate" fails loudly instead of silently keeping the default. Semantic
// rules that need cross-field context live in Config.Validate.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "probestream configuration",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "version": {"type": "string"},
    "probe": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "cores": {"type": "integer", "minimum": 1, "maximum": 16},
        "max_packet_bytes": {"type": "integer", "minimum": 1},
        "max_line_bytes": {"type": "integer", "minimum": 1},
        "queue_size": {"type": "integer", "minimum": 1}
      }
    },
    "serial": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "device": {"type": "string"},
        "baud_rate": {"type": "integer", "minimum": 1}
      }
    },
    "router": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "pending_capacity": {"type": "integer", "minimum": 1},
        "max_pending_windows": {"type": "integer", "minimum": 1}
      }
    },
    "log": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "dir": {"type": "string"},
        "file_prefix": {"type": "string"},
        "hex_unit": {"type": "integer", "enum": [1, 2, 4]},
        "hex_bytes_per_line": {"type": "integer", "minimum": 1, "maximum": 64},
        "min_interval": {"type": ["string", "number"]},
        "max_interval": {"type": ["string", "number"]},
        "batch_target": {"type": "integer", "minimum": 1},
        "immediate_threshold": {"type": "number"},
        "display_lines": {"type": "integer", "minimum": 1},
        "velocity_window": {"type": ["string", "number"]}
      }
    },
    "mirror": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "urls": {"type": "array", "items": {"type": "string"}},
        "subject_prefix": {"type": "string"},
        "max_reconnects": {"type": "integer"},
        "reconnect_wait": {"type": ["string", "number"]},
        "workers": {"type": "integer", "minimum": 1},
        "queue_size": {"type": "integer", "minimum": 1}
      }
    },
    "websocket": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "addr": {"type": "string"},
        "path": {"type": "string"},
        "write_timeout": {"type": ["string", "number"]},
        "send_buffer": {"type": "integer", "minimum": 1}
      }
    },
    "metrics": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "addr": {"type": "string"}
      }
    }
  }
}`

// validateAgainstSchema checks a raw JSON config document against the
// embedded schema before any unmarshalling happens.
func validateAgainstSchema(raw []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	documentLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("config does not match schema:")
	for _, desc := range result.Errors() {
		fmt.Fprintf(&sb, "\n  - %s: %s", desc.Field(), desc.Description())
	}
	return fmt.Errorf("%s", sb.String())
}
