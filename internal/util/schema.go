package util

import (
	"fmt"
	"math"
	"reflect"
	"strings"
)

// ValidationError reports a single parameter that failed schema validation.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Field, e.Message)
}

// CreateSchema derives a JSON schema from a struct via reflection. Field
// names honor json tags, `description` tags become property descriptions,
// and every exported non-pointer field without omitempty lands in the
// required list.
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	properties := map[string]any{}
	var required []string

	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			name, ok := schemaFieldName(field)
			if !ok {
				continue
			}

			prop := map[string]any{"type": jsonType(field.Type)}
			if desc := field.Tag.Get("description"); desc != "" {
				prop["description"] = desc
			}
			properties[name] = prop

			if !optionalField(field) {
				required = append(required, name)
			}
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// schemaFieldName resolves the property name for a struct field, reporting
// false for unexported or json:"-" fields.
func schemaFieldName(field reflect.StructField) (string, bool) {
	if !field.IsExported() {
		return "", false
	}
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, true
	}
	return field.Name, true
}

// optionalField reports whether a field stays out of the required list:
// pointers and omitempty fields do.
func optionalField(field reflect.StructField) bool {
	if field.Type.Kind() == reflect.Ptr {
		return true
	}
	_, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
	for _, opt := range strings.Split(opts, ",") {
		if strings.TrimSpace(opt) == "omitempty" {
			return true
		}
	}
	return false
}

var kindTypes = map[reflect.Kind]string{
	reflect.String:  "string",
	reflect.Bool:    "boolean",
	reflect.Int:     "integer",
	reflect.Int8:    "integer",
	reflect.Int16:   "integer",
	reflect.Int32:   "integer",
	reflect.Int64:   "integer",
	reflect.Uint:    "integer",
	reflect.Uint8:   "integer",
	reflect.Uint16:  "integer",
	reflect.Uint32:  "integer",
	reflect.Uint64:  "integer",
	reflect.Float32: "number",
	reflect.Float64: "number",
	reflect.Slice:   "array",
	reflect.Array:   "array",
	reflect.Map:     "object",
	reflect.Struct:  "object",
}

// jsonType maps a Go type onto its JSON schema type name, defaulting to
// string for kinds with no schema equivalent.
func jsonType(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		return jsonType(t.Elem())
	}
	if name, ok := kindTypes[t.Kind()]; ok {
		return name
	}
	return "string"
}

// ValidateParameters checks params against a JSON schema: required fields
// must be present and values must match their declared property type.
// Fields with no property entry pass through unchecked.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	for _, name := range requiredFields(schema) {
		if _, ok := params[name]; !ok {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, value := range params {
		prop, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}
		want, _ := prop["type"].(string)
		if !typeMatches(value, want) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", want, value),
			}
		}
	}
	return nil
}

// requiredFields tolerates both schema shapes: []string as built by
// CreateSchema and []any as produced by JSON decoding.
func requiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		names := make([]string, 0, len(req))
		for _, r := range req {
			if name, ok := r.(string); ok {
				names = append(names, name)
			}
		}
		return names
	default:
		return nil
	}
}

// typeMatches reports whether value satisfies the JSON schema type name.
// nil passes any type; unknown type names pass everything.
func typeMatches(value any, want string) bool {
	if value == nil {
		return true
	}
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "integer":
		return isIntegral(value)
	case "number":
		return isNumeric(value)
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

// isIntegral accepts any Go integer and, because JSON numbers decode as
// float64, floats carrying whole values.
func isIntegral(value any) bool {
	v := reflect.ValueOf(value)
	switch {
	case v.CanInt(), v.CanUint():
		return true
	case v.CanFloat():
		f := v.Float()
		return f == math.Trunc(f)
	}
	return false
}

func isNumeric(value any) bool {
	v := reflect.ValueOf(value)
	return v.CanInt() || v.CanUint() || v.CanFloat()
}
