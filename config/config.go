package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Duration is a time.Duration that decodes from config-file strings like
// "50ms" or "2s". Bare numbers are accepted as nanoseconds.
type Duration time.Duration

// Std returns the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(time.Duration(val))
		return nil
	default:
		return fmt.Errorf("duration must be a string or number, got %T", v)
	}
}

// Config is the complete application configuration. Every section has a
// working default; a config file only overrides what it mentions.
type Config struct {
	Version   string          `json:"version"`
	Probe     ProbeConfig     `json:"probe"`
	Serial    SerialConfig    `json:"serial"`
	Router    RouterConfig    `json:"router"`
	Log       LogConfig       `json:"log"`
	Mirror    MirrorConfig    `json:"mirror"`
	WebSocket WebSocketConfig `json:"websocket"`
	Metrics   MetricsConfig   `json:"metrics"`
}

// ProbeConfig tunes the decode core.
type ProbeConfig struct {
	Cores          int `json:"cores"`
	MaxPacketBytes int `json:"max_packet_bytes"`
	MaxLineBytes   int `json:"max_line_bytes"`
	QueueSize      int `json:"queue_size"`
}

// SerialConfig selects the probe's serial port.
type SerialConfig struct {
	Enabled  bool   `json:"enabled"`
	Device   string `json:"device"`
	BaudRate int    `json:"baud_rate"`
}

// RouterConfig bounds the pending-window machinery.
type RouterConfig struct {
	PendingCapacity   int `json:"pending_capacity"`
	MaxPendingWindows int `json:"max_pending_windows"`
}

// LogConfig shapes the session log: artifact location, hex-dump layout, and
// the adaptive batching envelope.
type LogConfig struct {
	Dir                string   `json:"dir"`
	FilePrefix         string   `json:"file_prefix"`
	HexUnit            int      `json:"hex_unit"`
	HexBytesPerLine    int      `json:"hex_bytes_per_line"`
	MinInterval        Duration `json:"min_interval"`
	MaxInterval        Duration `json:"max_interval"`
	BatchTarget        int      `json:"batch_target"`
	ImmediateThreshold float64  `json:"immediate_threshold"`
	DisplayLines       int      `json:"display_lines"`
	VelocityWindow     Duration `json:"velocity_window"`
}

// MirrorConfig configures the NATS republisher. Disabled by default.
type MirrorConfig struct {
	Enabled       bool     `json:"enabled"`
	URLs          []string `json:"urls"`
	SubjectPrefix string   `json:"subject_prefix"`
	MaxReconnects int      `json:"max_reconnects"`
	ReconnectWait Duration `json:"reconnect_wait"`
	Workers       int      `json:"workers"`
	QueueSize     int      `json:"queue_size"`
}

// WebSocketConfig configures the live log view. Disabled by default.
type WebSocketConfig struct {
	Enabled      bool     `json:"enabled"`
	Addr         string   `json:"addr"`
	Path         string   `json:"path"`
	WriteTimeout Duration `json:"write_timeout"`
	SendBuffer   int      `json:"send_buffer"`
}

// MetricsConfig configures the metrics/health listener.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// DefaultConfig returns a configuration that runs out of the box: serial
// decode on, outputs off, metrics on.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0.0",
		Probe: ProbeConfig{
			Cores:          8,
			MaxPacketBytes: 4096,
			MaxLineBytes:   4096,
			QueueSize:      1024,
		},
		Serial: SerialConfig{
			Enabled:  true,
			Device:   "/dev/ttyUSB0",
			BaudRate: 2_000_000,
		},
		Router: RouterConfig{
			PendingCapacity:   256,
			MaxPendingWindows: 64,
		},
		Log: LogConfig{
			Dir:                "./logs",
			FilePrefix:         "probe",
			HexUnit:            2,
			HexBytesPerLine:    16,
			MinInterval:        Duration(50 * time.Millisecond),
			MaxInterval:        Duration(500 * time.Millisecond),
			BatchTarget:        50,
			ImmediateThreshold: 20,
			DisplayLines:       500,
			VelocityWindow:     Duration(2 * time.Second),
		},
		Mirror: MirrorConfig{
			Enabled:       false,
			URLs:          []string{"nats://localhost:4222"},
			SubjectPrefix: "probestream",
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
			Workers:       2,
			QueueSize:     1024,
		},
		WebSocket: WebSocketConfig{
			Enabled:      false,
			Addr:         ":8080",
			Path:         "/stream",
			WriteTimeout: Duration(5 * time.Second),
			SendBuffer:   64,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
	}
}

// Validate checks semantic constraints the JSON Schema cannot express,
// normalizing a few fields along the way.
func (c *Config) Validate() error {
	if c.Version != "" {
		if _, _, _, err := parseSemVer(c.Version); err != nil {
			return fmt.Errorf("version: %w", err)
		}
	}

	if c.Probe.Cores < 1 || c.Probe.Cores > 16 {
		return fmt.Errorf("probe.cores must be 1..16, got %d", c.Probe.Cores)
	}
	if c.Probe.MaxPacketBytes < 1 {
		return errors.New("probe.max_packet_bytes must be positive")
	}
	if c.Probe.MaxLineBytes < 1 {
		return errors.New("probe.max_line_bytes must be positive")
	}
	if c.Probe.QueueSize < 1 {
		return errors.New("probe.queue_size must be positive")
	}

	if c.Serial.Enabled {
		if c.Serial.Device == "" {
			return errors.New("serial.device is required when serial is enabled")
		}
		if c.Serial.BaudRate < 1 {
			return errors.New("serial.baud_rate must be positive")
		}
	}

	if c.Router.PendingCapacity < 1 {
		return errors.New("router.pending_capacity must be positive")
	}
	if c.Router.MaxPendingWindows < 1 {
		return errors.New("router.max_pending_windows must be positive")
	}

	if err := c.validateLog(); err != nil {
		return err
	}

	if c.Mirror.Enabled {
		if len(c.Mirror.URLs) == 0 {
			return errors.New("mirror.urls is required when mirror is enabled")
		}
		if !isValidSubjectPart(c.Mirror.SubjectPrefix) {
			return fmt.Errorf(
				"mirror.subject_prefix %q is not valid for NATS subjects (alphanumeric, dots, dashes, underscores)",
				c.Mirror.SubjectPrefix,
			)
		}
		if c.Mirror.Workers < 1 {
			return errors.New("mirror.workers must be positive")
		}
		if c.Mirror.QueueSize < 1 {
			return errors.New("mirror.queue_size must be positive")
		}
	}

	if c.WebSocket.Enabled {
		if c.WebSocket.Addr == "" {
			return errors.New("websocket.addr is required when websocket is enabled")
		}
		if !strings.HasPrefix(c.WebSocket.Path, "/") {
			return fmt.Errorf("websocket.path must start with /, got %q", c.WebSocket.Path)
		}
		if c.WebSocket.WriteTimeout <= 0 {
			return errors.New("websocket.write_timeout must be positive")
		}
		if c.WebSocket.SendBuffer < 1 {
			return errors.New("websocket.send_buffer must be positive")
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics is enabled")
	}

	return nil
}

func (c *Config) validateLog() error {
	if c.Log.Dir == "" {
		return errors.New("log.dir is required")
	}
	switch c.Log.HexUnit {
	case 1, 2, 4:
	default:
		return fmt.Errorf("log.hex_unit must be 1, 2, or 4, got %d", c.Log.HexUnit)
	}
	if c.Log.HexBytesPerLine < c.Log.HexUnit || c.Log.HexBytesPerLine > 64 {
		return fmt.Errorf("log.hex_bytes_per_line must be %d..64, got %d", c.Log.HexUnit, c.Log.HexBytesPerLine)
	}
	if c.Log.HexBytesPerLine%c.Log.HexUnit != 0 {
		return errors.New("log.hex_bytes_per_line must be a multiple of log.hex_unit")
	}
	if c.Log.MinInterval <= 0 || c.Log.MaxInterval <= 0 {
		return errors.New("log intervals must be positive")
	}
	if c.Log.MinInterval > c.Log.MaxInterval {
		return fmt.Errorf("log.min_interval %s exceeds log.max_interval %s", c.Log.MinInterval, c.Log.MaxInterval)
	}
	if c.Log.BatchTarget < 1 {
		return errors.New("log.batch_target must be positive")
	}
	if c.Log.ImmediateThreshold <= 0 {
		return errors.New("log.immediate_threshold must be positive")
	}
	if c.Log.DisplayLines < 1 {
		return errors.New("log.display_lines must be positive")
	}
	if c.Log.VelocityWindow <= 0 {
		return errors.New("log.velocity_window must be positive")
	}
	return nil
}

// Clone creates a deep copy through a JSON round trip.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// String returns an indented JSON rendering, for -validate output.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// SafeConfig provides thread-safe access to a shared configuration.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig wraps cfg for concurrent readers.
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// isValidSubjectPart reports whether s can appear as one token of a NATS
// subject. Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// parseSemVer parses "major.minor.patch", tolerating a leading 'v'.
func parseSemVer(version string) (int, int, int, error) {
	if version == "" {
		return 0, 0, 0, errors.New("version cannot be empty")
	}
	version = strings.TrimPrefix(version, "v")

	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("version must be 'major.minor.patch', got %q", version)
	}

	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid version component %q: %w", part, err)
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], nil
}
