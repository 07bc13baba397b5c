package component

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidatorLimits(t *testing.T) {
	v := NewConfigValidator()

	t.Run("empty config valid", func(t *testing.T) {
		assert.NoError(t, v.ValidateConfig(nil))
	})

	t.Run("simple config valid", func(t *testing.T) {
		assert.NoError(t, v.ValidateConfig(json.RawMessage(
			`{"device":"/dev/ttyUSB0","baud_rate":2000000,"debug":true}`)))
	})

	t.Run("oversized rejected", func(t *testing.T) {
		huge := json.RawMessage(make([]byte, MaxJSONSize+1))
		assert.Error(t, v.ValidateConfig(huge))
	})

	t.Run("deep nesting rejected", func(t *testing.T) {
		depth := 12
		raw := strings.Repeat(`{"a":`, depth) + `1` + strings.Repeat(`}`, depth)
		assert.Error(t, v.ValidateConfig(json.RawMessage(raw)))
	})

	t.Run("long string rejected", func(t *testing.T) {
		raw := `{"s":"` + strings.Repeat("x", MaxStringLength+1) + `"}`
		assert.Error(t, v.ValidateConfig(json.RawMessage(raw)))
	})

	t.Run("control characters rejected", func(t *testing.T) {
		assert.Error(t, v.ValidateConfig(json.RawMessage(`{"s":"badvalue"}`)))
	})

	t.Run("malformed JSON rejected", func(t *testing.T) {
		assert.Error(t, v.ValidateConfig(json.RawMessage(`{"unterminated`)))
	})
}

type validatedConfig struct {
	Device   string `json:"device"`
	BaudRate int    `json:"baud_rate"`
}

func (c *validatedConfig) Validate() error {
	if c.Device == "" {
		return assert.AnError
	}
	return nil
}

func TestSafeUnmarshal(t *testing.T) {
	t.Run("decodes and validates", func(t *testing.T) {
		var cfg validatedConfig
		err := SafeUnmarshal(json.RawMessage(`{"device":"/dev/ttyACM0","baud_rate":115200}`), &cfg)
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyACM0", cfg.Device)
		assert.Equal(t, 115200, cfg.BaudRate)
	})

	t.Run("empty config leaves defaults", func(t *testing.T) {
		cfg := validatedConfig{Device: "/dev/default"}
		require.NoError(t, SafeUnmarshal(nil, &cfg))
		assert.Equal(t, "/dev/default", cfg.Device)
	})

	t.Run("Validate failure surfaces", func(t *testing.T) {
		var cfg validatedConfig
		err := SafeUnmarshal(json.RawMessage(`{"baud_rate":115200}`), &cfg)
		assert.Error(t, err)
	})

	t.Run("non-pointer target rejected", func(t *testing.T) {
		err := SafeUnmarshal(json.RawMessage(`{}`), validatedConfig{})
		assert.Error(t, err)
	})
}

func TestValidateComponentName(t *testing.T) {
	assert.NoError(t, ValidateComponentName("serial-input"))
	assert.NoError(t, ValidateComponentName("pipeline_0"))

	assert.Error(t, ValidateComponentName(""))
	assert.Error(t, ValidateComponentName("has space"))
	assert.Error(t, ValidateComponentName("dot.name"))
	assert.Error(t, ValidateComponentName(strings.Repeat("a", 65)))
}

func TestValidatePortNumber(t *testing.T) {
	assert.NoError(t, ValidatePortNumber(1))
	assert.NoError(t, ValidatePortNumber(8080))
	assert.NoError(t, ValidatePortNumber(65535))

	assert.Error(t, ValidatePortNumber(0))
	assert.Error(t, ValidatePortNumber(-1))
	assert.Error(t, ValidatePortNumber(65536))
}
