package component

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/c360/probestream/errors"
)

// Validation limits shared by the config gate.
const (
	MaxStringLength = 1024        // maximum length for string values
	MaxJSONSize     = 1024 * 1024 // maximum raw config size (1MB)
	MinPortNumber   = 1
	MaxPortNumber   = 65535
)

// ConfigValidator is the security gate for raw component configuration.
// It bounds size, nesting depth, array length, and string content before
// anything is unmarshaled.
type ConfigValidator struct {
	maxDepth     int
	maxArraySize int
	maxStringLen int
	maxJSONSize  int
}

// NewConfigValidator creates a validator with the package limits.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		maxDepth:     10,
		maxArraySize: 1000,
		maxStringLen: MaxStringLength,
		maxJSONSize:  MaxJSONSize,
	}
}

// ValidateConfig checks raw JSON config against all limits. Empty config
// is valid; components fall back to defaults.
func (v *ConfigValidator) ValidateConfig(rawConfig json.RawMessage) error {
	if len(rawConfig) > v.maxJSONSize {
		return errors.WrapInvalid(
			fmt.Errorf("config size %d exceeds maximum %d", len(rawConfig), v.maxJSONSize),
			"ConfigValidator", "ValidateConfig", "size check")
	}
	if len(rawConfig) == 0 {
		return nil
	}

	var config any
	decoder := json.NewDecoder(strings.NewReader(string(rawConfig)))
	decoder.UseNumber()

	if err := decoder.Decode(&config); err != nil {
		return errors.WrapInvalid(err, "ConfigValidator", "ValidateConfig", "JSON parsing")
	}

	if err := v.validateValue(config, 0); err != nil {
		return errors.Wrap(err, "ConfigValidator", "ValidateConfig", "deep validation")
	}
	return nil
}

func (v *ConfigValidator) validateValue(value any, depth int) error {
	if depth > v.maxDepth {
		return errors.WrapInvalid(
			fmt.Errorf("JSON depth %d exceeds maximum %d", depth, v.maxDepth),
			"ConfigValidator", "validateValue", "depth check")
	}

	switch val := value.(type) {
	case string:
		if len(val) > v.maxStringLen {
			return errors.WrapInvalid(
				fmt.Errorf("string length %d exceeds maximum %d", len(val), v.maxStringLen),
				"ConfigValidator", "validateValue", "string length check")
		}
		if err := validateStringContent(val); err != nil {
			return err
		}

	case json.Number:
		if _, err := val.Int64(); err != nil {
			if _, err := val.Float64(); err != nil {
				return errors.WrapInvalid(err, "ConfigValidator", "validateValue", "number validation")
			}
		}

	case []any:
		if len(val) > v.maxArraySize {
			return errors.WrapInvalid(
				fmt.Errorf("array size %d exceeds maximum %d", len(val), v.maxArraySize),
				"ConfigValidator", "validateValue", "array size check")
		}
		for i, elem := range val {
			if err := v.validateValue(elem, depth+1); err != nil {
				return errors.Wrap(err, "ConfigValidator", "validateValue",
					fmt.Sprintf("array element %d", i))
			}
		}

	case map[string]any:
		for key, elem := range val {
			if len(key) > v.maxStringLen {
				return errors.WrapInvalid(
					fmt.Errorf("key '%s' length exceeds maximum", key),
					"ConfigValidator", "validateValue", "key length check")
			}
			if err := validateStringContent(key); err != nil {
				return errors.Wrap(err, "ConfigValidator", "validateValue", "key validation")
			}
			if err := v.validateValue(elem, depth+1); err != nil {
				return errors.Wrap(err, "ConfigValidator", "validateValue",
					fmt.Sprintf("object field '%s'", key))
			}
		}

	case bool, nil:
		// always safe

	default:
		return errors.WrapInvalid(
			fmt.Errorf("unexpected type %T in config", value),
			"ConfigValidator", "validateValue", "type check")
	}

	return nil
}

// validateStringContent rejects null bytes and control characters other
// than tab/newline/carriage return.
func validateStringContent(s string) error {
	if strings.Contains(s, "\x00") {
		return errors.WrapInvalid(
			fmt.Errorf("string contains null byte"),
			"ConfigValidator", "validateStringContent", "null byte check")
	}
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return errors.WrapInvalid(
				fmt.Errorf("string contains control character: 0x%02x", r),
				"ConfigValidator", "validateStringContent", "control character check")
		}
	}
	return nil
}

// Validatable is implemented by configs that self-validate after decode.
type Validatable interface {
	Validate() error
}

// SafeUnmarshal validates raw JSON with the config gate, then unmarshals
// it into target. If target implements Validatable its Validate runs last.
func SafeUnmarshal(rawConfig json.RawMessage, target any) error {
	validator := NewConfigValidator()
	if err := validator.ValidateConfig(rawConfig); err != nil {
		return errors.Wrap(err, "ConfigValidator", "SafeUnmarshal", "config validation")
	}

	if len(rawConfig) == 0 {
		return nil
	}

	if reflect.TypeOf(target).Kind() != reflect.Ptr {
		return errors.WrapInvalid(
			fmt.Errorf("target must be a pointer, got %T", target),
			"ConfigValidator", "SafeUnmarshal", "target type check")
	}

	if err := json.Unmarshal(rawConfig, target); err != nil {
		return errors.WrapInvalid(err, "ConfigValidator", "SafeUnmarshal", "JSON unmarshaling")
	}

	if validatable, ok := target.(Validatable); ok {
		if err := validatable.Validate(); err != nil {
			return errors.Wrap(err, "ConfigValidator", "SafeUnmarshal", "struct validation")
		}
	}
	return nil
}

// ValidateComponentName enforces the instance naming rules: 1-64 characters
// of letters, digits, hyphen, underscore.
func ValidateComponentName(name string) error {
	if name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("component name is empty"),
			"ConfigValidator", "ValidateComponentName", "name check")
	}
	if len(name) > 64 {
		return errors.WrapInvalid(
			fmt.Errorf("component name %q exceeds 64 characters", name),
			"ConfigValidator", "ValidateComponentName", "length check")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return errors.WrapInvalid(
				fmt.Errorf("component name %q contains invalid character %q", name, r),
				"ConfigValidator", "ValidateComponentName", "character check")
		}
	}
	return nil
}

// ValidatePortNumber checks a TCP/UDP port is in the valid range.
func ValidatePortNumber(port int) error {
	if port < MinPortNumber || port > MaxPortNumber {
		return errors.WrapInvalid(
			fmt.Errorf("port %d outside valid range %d-%d", port, MinPortNumber, MaxPortNumber),
			"ConfigValidator", "ValidatePortNumber", "range check")
	}
	return nil
}
