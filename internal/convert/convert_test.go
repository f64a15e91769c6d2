package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToSnakeCase(t *testing.T) {
	in := map[string]any{
		"firstName": "John",
		"lastName":  "Doe",
	}

	out := ToSnakeCase(in)

	assert.Equal(t, map[string]any{
		"first_name": "John",
		"last_name":  "Doe",
	}, out)
}

func TestToCamelCase(t *testing.T) {
	in := map[string]any{
		"first_name": "John",
		"last_name":  "Doe",
	}

	out := ToCamelCase(in)

	assert.Equal(t, map[string]any{
		"firstName": "John",
		"lastName":  "Doe",
	}, out)
}

func TestConvertList(t *testing.T) {
	in := []any{
		map[string]any{"first_name": "John"},
		map[string]any{"first_name": "Jane"},
	}

	out := ToCamelCase(in)

	assert.Equal(t, []any{
		map[string]any{"firstName": "John"},
		map[string]any{"firstName": "Jane"},
	}, out)
}

func TestShallowConversion(t *testing.T) {
	// Nested values pass through untouched; only top-level keys are renamed.
	in := map[string]any{
		"deviceInfo": map[string]any{"hardwareVersion": "pi3"},
	}

	out := ToSnakeCase(in)

	assert.Equal(t, map[string]any{
		"device_info": map[string]any{"hardwareVersion": "pi3"},
	}, out)
}

func TestRoundTripRestoresKeys(t *testing.T) {
	in := map[string]any{
		"id":                   1,
		"device_temp":          22.5,
		"last_update_received": "2024-02-19T04:06:33",
		"load_avg":             0.5,
	}

	out := ToSnakeCase(ToCamelCase(in)).(map[string]any)

	assert.Len(t, out, len(in))
	for k := range in {
		assert.Contains(t, out, k)
	}
}

func TestIdempotent(t *testing.T) {
	in := map[string]any{"first_name": "John"}

	once := ToSnakeCase(in)
	twice := ToSnakeCase(once)

	assert.Equal(t, once, twice)
}

func TestNonObjectPassthrough(t *testing.T) {
	assert.Equal(t, "plain", ToCamelCase("plain"))
	assert.Nil(t, ToCamelCase(nil))
}
