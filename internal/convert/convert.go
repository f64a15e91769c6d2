// Package convert renames JSON object keys between the snake_case convention
// used on the wire and the camelCase convention used in memory.
package convert

import "github.com/iancoleman/strcase"

// ToSnakeCase returns a copy of v with every top-level map key renamed to
// snake_case. Arrays are converted element by element. Nested values are
// passed through unchanged; only top-level field names differ between the
// wire and in-memory representations.
func ToSnakeCase(v any) any {
	return convertKeys(v, strcase.ToSnake)
}

// ToCamelCase returns a copy of v with every top-level map key renamed to
// camelCase. The inverse of ToSnakeCase over identifier-style keys.
func ToCamelCase(v any) any {
	return convertKeys(v, strcase.ToLowerCamel)
}

func convertKeys(v any, rename func(string) string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[rename(k)] = item
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = convertKeys(item, rename)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = convertKeys(item, rename)
		}
		return out
	default:
		return v
	}
}
