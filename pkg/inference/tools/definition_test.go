package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testContextKey string

type addInput struct {
	Value int `json:"value"`
}

func TestToolCallSupportsContextAndInputSignature(t *testing.T) {
	def, err := NewToolFromFunc(
		"add_one",
		"adds one",
		func(ctx context.Context, in addInput) (int, error) {
			require.NotNil(t, ctx)
			return in.Value + 1, nil
		},
	)
	require.NoError(t, err)

	out, err := def.Call(context.Background(), []byte(`{"value":41}`))
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestToolCallPassesProvidedContext(t *testing.T) {
	key := testContextKey("tool-test-key")
	def, err := NewToolFromFunc(
		"ctx_passthrough",
		"checks context propagation",
		func(ctx context.Context, in addInput) (bool, error) {
			v, _ := ctx.Value(key).(string)
			return v == "ok" && in.Value == 7, nil
		},
	)
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), key, "ok")
	out, err := def.Call(ctx, []byte(`{"value":7}`))
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func GetWeather(in addInput) (string, error) {
	return "sunny", nil
}

func TestToolNameDerivedFromFunction(t *testing.T) {
	def, err := NewToolFromFunc("", "weather", GetWeather)
	require.NoError(t, err)
	assert.Equal(t, "get_weather", def.Name)
}

func TestToolSchemaListsParameters(t *testing.T) {
	type input struct {
		City  string `json:"city"`
		Limit int    `json:"limit,omitempty"`
	}
	def, err := NewToolFromFunc("lookup", "lookup", func(in input) (string, error) {
		return in.City, nil
	})
	require.NoError(t, err)

	schemaJSON, err := def.SchemaJSON()
	require.NoError(t, err)

	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal(schemaJSON, &schema))
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "city")
	assert.Contains(t, props, "limit")
}

func TestNewToolFromFuncRejectsBadSignatures(t *testing.T) {
	_, err := NewToolFromFunc("x", "not a function", 42)
	require.Error(t, err)

	_, err = NewToolFromFunc("x", "no returns", func() {})
	require.Error(t, err)

	_, err = NewToolFromFunc("x", "second return not error", func() (int, int) { return 0, 0 })
	require.Error(t, err)

	_, err = NewToolFromFunc("x", "too many params", func(a, b, c int) (int, error) { return 0, nil })
	require.Error(t, err)
}

func TestToolCallRejectsMalformedArguments(t *testing.T) {
	def, err := NewToolFromFunc("add_one", "adds one", func(in addInput) (int, error) {
		return in.Value + 1, nil
	})
	require.NoError(t, err)

	_, err = def.Call(context.Background(), []byte(`{"value":"not a number"}`))
	require.Error(t, err)
}
