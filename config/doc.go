// Package config loads and validates the application configuration.
//
// A config file may be JSON or YAML, selected by extension. Loading runs in
// three stages: the raw document is checked against an embedded JSON Schema
// (structure and types, unknown keys rejected), the surviving fields are
// merged onto DefaultConfig so partial files stay runnable, and
// Config.Validate enforces the semantic rules the schema cannot express.
// A handful of PROBESTREAM_* environment variables override the fields that
// differ per machine.
//
// Duration-valued fields are written as Go duration strings ("50ms", "2s")
// in the file and decode through the Duration wrapper type.
package config
