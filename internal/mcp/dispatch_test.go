package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_GetCurrentTime(t *testing.T) {
	d := NewDispatcher(nil)

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      "get_current_time",
			"arguments": map[string]any{"format": "date"},
		},
	}
	raw, err := json.Marshal(req)
	require.NoError(t, err)

	resp, err := d.HandleMessage(context.Background(), raw)
	require.NoError(t, err)
	require.NotNil(t, resp)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(resp, &decoded))
	assert.Contains(t, decoded, "result")
}

func TestDispatcher_WeatherToolRegisteredWhenLookupProvided(t *testing.T) {
	called := false
	d := NewDispatcher(func(ctx context.Context, city string) (string, error) {
		called = true
		return "clear", nil
	})

	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      "get_weather",
			"arguments": map[string]any{"city": "Shenzhen"},
		},
	}
	raw, err := json.Marshal(req)
	require.NoError(t, err)

	_, err = d.HandleMessage(context.Background(), raw)
	require.NoError(t, err)
	assert.True(t, called)
}
