package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	maxConfigSize = 10 << 20 // config files larger than this are rejected
	maxJSONDepth  = 100
	maxEnvVarLen  = 10000
	maxPathLen    = 4096

	// EnvPrefix namespaces the environment overrides.
	EnvPrefix = "PROBESTREAM"
)

// Load reads, schema-checks, and validates one configuration file. The file
// may be JSON or YAML, chosen by extension; values it omits keep their
// defaults, and environment overrides apply last.
func Load(path string) (*Config, error) {
	raw, err := loadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if err := validateAgainstSchema(raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg, err := mergeOntoDefaults(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// loadRaw reads the file and returns its contents as canonical JSON bytes.
func loadRaw(path string) ([]byte, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	if isYAMLPath(path) {
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		data, err = json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("cannot convert YAML document: %w", err)
		}
	}

	if err := validateJSONDepth(data); err != nil {
		return nil, fmt.Errorf("invalid structure: %w", err)
	}
	return data, nil
}

func isYAMLPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// mergeOntoDefaults overlays the file's fields onto DefaultConfig so partial
// configs stay runnable.
func mergeOntoDefaults(raw []byte) (*Config, error) {
	var override map[string]any
	if err := json.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("invalid config document: %w", err)
	}

	baseJSON, err := json.Marshal(DefaultConfig())
	if err != nil {
		return nil, err
	}
	var base map[string]any
	if err := json.Unmarshal(baseJSON, &base); err != nil {
		return nil, err
	}

	merged := deepMerge(base, override)

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(mergedJSON, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config values: %w", err)
	}
	return &cfg, nil
}

// deepMerge recursively merges override onto base. Nil override values are
// skipped so explicit nulls cannot blank out defaults.
func deepMerge(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMerge(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// applyEnvOverrides lets deployment scripts override the fields that differ
// per machine without editing the config file.
func applyEnvOverrides(cfg *Config) {
	if val, ok := envValue("SERIAL_DEVICE"); ok {
		cfg.Serial.Device = val
	}
	if val, ok := envValue("SERIAL_BAUD"); ok {
		if baud, err := strconv.Atoi(val); err == nil {
			cfg.Serial.BaudRate = baud
		}
	}
	if val, ok := envValue("LOG_DIR"); ok {
		cfg.Log.Dir = val
	}
	if val, ok := envValue("MIRROR_URLS"); ok {
		cfg.Mirror.URLs = strings.Split(val, ",")
	}
	if val, ok := envValue("WEBSOCKET_ADDR"); ok {
		cfg.WebSocket.Addr = val
	}
	if val, ok := envValue("METRICS_ADDR"); ok {
		cfg.Metrics.Addr = val
	}
}

func envValue(suffix string) (string, bool) {
	key := EnvPrefix + "_" + suffix
	val := os.Getenv(key)
	if val == "" {
		return "", false
	}
	if err := validateEnvVar(key, val); err != nil {
		return "", false
	}
	return val, true
}

func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("environment variable %s too long: %d > %d", key, len(value), maxEnvVarLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("null byte in environment variable %s", key)
	}
	return nil
}

func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("empty config path")
	}
	if len(path) > maxPathLen {
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return nil
	default:
		return fmt.Errorf("config file must be .json, .yaml, or .yml: %s", path)
	}
}

// safeReadFile reads a config file with size and type checks so a mistyped
// path cannot pull gigabytes or a device node into memory.
func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	return data, nil
}

// SaveToFile writes the configuration as indented JSON with owner-only
// permissions.
func (c *Config) SaveToFile(path string) error {
	if err := validateConfigPath(path); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if len(data) > maxConfigSize {
		return fmt.Errorf("config data too large: %d bytes > %d", len(data), maxConfigSize)
	}
	return os.WriteFile(path, data, 0600)
}

// validateJSONDepth walks the document bracket structure, bounding nesting
// depth before json.Unmarshal recurses into it.
func validateJSONDepth(data []byte) error {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(data); i++ {
		b := data[i]

		if escaped {
			escaped = false
			continue
		}
		if b == '\\' && inString {
			escaped = true
			continue
		}
		if b == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch b {
		case '{', '[':
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("nesting too deep: %d > %d", depth, maxJSONDepth)
			}
		case '}', ']':
			depth--
			if depth < 0 {
				return errors.New("malformed document: unbalanced brackets")
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("malformed document: unclosed brackets (depth=%d)", depth)
	}
	return nil
}
