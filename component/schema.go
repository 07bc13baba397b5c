package component

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/c360/probestream/errors"
)

// ValidationError is one failed constraint when validating a configuration
// map against a ConfigSchema.
//
// Error codes: "required", "min", "max", "enum", "type".
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidateConfig validates a configuration map against a schema. Unknown
// fields are allowed; only declared properties are checked. An empty result
// means the configuration is valid.
func ValidateConfig(config map[string]any, schema ConfigSchema) []ValidationError {
	var errs []ValidationError

	for _, required := range schema.Required {
		if _, exists := config[required]; !exists {
			errs = append(errs, ValidationError{
				Field:   required,
				Message: fmt.Sprintf("Field %q is required", required),
				Code:    "required",
			})
		}
	}

	for fieldName, value := range config {
		propSchema, exists := schema.Properties[fieldName]
		if !exists {
			continue
		}

		if err := validateType(fieldName, value, propSchema); err != nil {
			errs = append(errs, *err)
			continue
		}

		if len(propSchema.Enum) > 0 {
			if err := validateEnum(fieldName, value, propSchema.Enum); err != nil {
				errs = append(errs, *err)
			}
		}

		if propSchema.Type == "int" || propSchema.Type == "float" {
			if propSchema.Minimum != nil {
				if err := validateBound(fieldName, value, *propSchema.Minimum, true); err != nil {
					errs = append(errs, *err)
				}
			}
			if propSchema.Maximum != nil {
				if err := validateBound(fieldName, value, *propSchema.Maximum, false); err != nil {
					errs = append(errs, *err)
				}
			}
		}
	}

	return errs
}

func validateType(fieldName string, value any, propSchema PropertySchema) *ValidationError {
	switch propSchema.Type {
	case "string", "enum":
		if _, ok := value.(string); !ok {
			return &ValidationError{
				Field:   fieldName,
				Message: fmt.Sprintf("Field %q must be a string", fieldName),
				Code:    "type",
			}
		}
	case "int":
		switch value.(type) {
		case int, int32, int64, float64:
		default:
			return &ValidationError{
				Field:   fieldName,
				Message: fmt.Sprintf("Field %q must be an integer", fieldName),
				Code:    "type",
			}
		}
	case "bool":
		if _, ok := value.(bool); !ok {
			return &ValidationError{
				Field:   fieldName,
				Message: fmt.Sprintf("Field %q must be a boolean", fieldName),
				Code:    "type",
			}
		}
	case "float":
		switch value.(type) {
		case int, int32, int64, float32, float64:
		default:
			return &ValidationError{
				Field:   fieldName,
				Message: fmt.Sprintf("Field %q must be a number", fieldName),
				Code:    "type",
			}
		}
	}
	return nil
}

func validateEnum(fieldName string, value any, enumValues []string) *ValidationError {
	strValue, ok := value.(string)
	if !ok {
		return &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("Field %q must be a string for enum validation", fieldName),
			Code:    "type",
		}
	}
	for _, allowed := range enumValues {
		if strValue == allowed {
			return nil
		}
	}
	return &ValidationError{
		Field:   fieldName,
		Message: fmt.Sprintf("Field %q must be one of: %v", fieldName, enumValues),
		Code:    "enum",
	}
}

func validateBound(fieldName string, value any, bound int, isMin bool) *ValidationError {
	var num float64
	switch v := value.(type) {
	case int:
		num = float64(v)
	case int32:
		num = float64(v)
	case int64:
		num = float64(v)
	case float32:
		num = float64(v)
	case float64:
		num = v
	default:
		return &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("Field %q must be numeric", fieldName),
			Code:    "type",
		}
	}

	if isMin && num < float64(bound) {
		return &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("Field %q must be >= %d", fieldName, bound),
			Code:    "min",
		}
	}
	if !isMin && num > float64(bound) {
		return &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("Field %q must be <= %d", fieldName, bound),
			Code:    "max",
		}
	}
	return nil
}

// SchemaDirectives is a parsed schema struct tag.
type SchemaDirectives struct {
	Type        string
	Description string
	Category    string // "basic" or "advanced"
	Default     any    // stored as string, converted during generation
	Required    bool
	Hidden      bool
	Min         *int
	Max         *int
	Enum        []string
}

// ParseSchemaTag parses one schema tag into directives.
//
// Directives are comma-separated; key-value pairs use a colon; enum values
// are pipe-separated; `required` and `hidden` are bare flags. The type
// directive is mandatory.
//
//	schema:"type:string,description:Serial device path,category:basic"
//	schema:"type:int,description:Baud rate,min:1200,default:2000000"
//	schema:"type:enum,description:Log level,enum:debug|info|warn|error,default:info"
func ParseSchemaTag(tag string) (SchemaDirectives, error) {
	directives := SchemaDirectives{}

	if tag == "" {
		return directives, errors.WrapInvalid(
			fmt.Errorf("empty schema tag"),
			"SchemaTag", "ParseSchemaTag", "tag validation")
	}

	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if !strings.Contains(part, ":") {
			switch part {
			case "required":
				directives.Required = true
			case "hidden":
				directives.Hidden = true
			default:
				return directives, errors.WrapInvalid(
					fmt.Errorf("unknown boolean flag: %s", part),
					"SchemaTag", "ParseSchemaTag", "flag parsing")
			}
			continue
		}

		kv := strings.SplitN(part, ":", 2)
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		if value == "" {
			return directives, errors.WrapInvalid(
				fmt.Errorf("empty value for directive: %s", key),
				"SchemaTag", "ParseSchemaTag", "value validation")
		}

		switch key {
		case "type":
			if !isValidType(value) {
				return directives, errors.WrapInvalid(
					fmt.Errorf("invalid type: %s", value),
					"SchemaTag", "ParseSchemaTag", "type validation")
			}
			directives.Type = value
		case "description":
			directives.Description = value
		case "category":
			if value != "basic" && value != "advanced" {
				return directives, errors.WrapInvalid(
					fmt.Errorf("invalid category: %s (must be 'basic' or 'advanced')", value),
					"SchemaTag", "ParseSchemaTag", "category validation")
			}
			directives.Category = value
		case "default":
			directives.Default = value
		case "min":
			n, err := strconv.Atoi(value)
			if err != nil {
				return directives, errors.WrapInvalid(
					fmt.Errorf("invalid min value: %s", value),
					"SchemaTag", "ParseSchemaTag", "min parsing")
			}
			directives.Min = &n
		case "max":
			n, err := strconv.Atoi(value)
			if err != nil {
				return directives, errors.WrapInvalid(
					fmt.Errorf("invalid max value: %s", value),
					"SchemaTag", "ParseSchemaTag", "max parsing")
			}
			directives.Max = &n
		case "enum":
			directives.Enum = strings.Split(value, "|")
			for i := range directives.Enum {
				directives.Enum[i] = strings.TrimSpace(directives.Enum[i])
			}
		default:
			return directives, errors.WrapInvalid(
				fmt.Errorf("unknown directive: %s", key),
				"SchemaTag", "ParseSchemaTag", "directive validation")
		}
	}

	if directives.Type == "" {
		return directives, errors.WrapInvalid(
			fmt.Errorf("type directive is required"),
			"SchemaTag", "ParseSchemaTag", "required field validation")
	}

	return directives, nil
}

func isValidType(t string) bool {
	switch t {
	case "string", "int", "bool", "float", "enum", "array", "object":
		return true
	}
	return false
}

// GenerateConfigSchema reflects over a config struct's `schema` tags to
// build its ConfigSchema. Call it once at package init and cache the
// result; there is no reflection at runtime.
//
// Only exported fields with both a json name and a schema tag are
// included; fields with invalid tags are skipped.
func GenerateConfigSchema(configType reflect.Type) ConfigSchema {
	schema := ConfigSchema{
		Properties: make(map[string]PropertySchema),
		Required:   []string{},
	}

	if configType.Kind() == reflect.Ptr {
		configType = configType.Elem()
	}
	if configType.Kind() != reflect.Struct {
		return schema
	}

	for i := 0; i < configType.NumField(); i++ {
		field := configType.Field(i)

		jsonTag := field.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}
		fieldName := strings.Split(jsonTag, ",")[0]
		if fieldName == "" {
			continue
		}

		schemaTag := field.Tag.Get("schema")
		if schemaTag == "" {
			continue
		}

		directives, err := ParseSchemaTag(schemaTag)
		if err != nil {
			continue // graceful degradation: bad tag, field skipped
		}
		if directives.Hidden {
			continue
		}

		description := directives.Description
		if description == "" {
			description = fieldName
		}

		schema.Properties[fieldName] = PropertySchema{
			Type:        directives.Type,
			Description: description,
			Category:    directives.Category,
			Default:     convertDefault(directives.Default, directives.Type),
			Minimum:     directives.Min,
			Maximum:     directives.Max,
			Enum:        directives.Enum,
		}

		if directives.Required {
			schema.Required = append(schema.Required, fieldName)
		}
	}

	return schema
}

// convertDefault converts a tag's string default to the declared type.
func convertDefault(value any, fieldType string) any {
	if value == nil {
		return nil
	}
	valueStr, ok := value.(string)
	if !ok {
		return value
	}

	switch fieldType {
	case "string", "enum":
		return valueStr
	case "int":
		n, err := strconv.Atoi(valueStr)
		if err != nil {
			return nil
		}
		return n
	case "bool":
		b, err := strconv.ParseBool(valueStr)
		if err != nil {
			return nil
		}
		return b
	case "float":
		f, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return nil
		}
		return f
	default:
		return nil
	}
}
