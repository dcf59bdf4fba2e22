package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaozhivoice/bridge/internal/llm"
)

type registeredTool struct {
	description string
	parameters  map[string]any
	handler     llm.ToolHandler
}

type fakeToolProvider struct {
	tools map[string]registeredTool
}

func newFakeToolProvider() *fakeToolProvider {
	return &fakeToolProvider{tools: make(map[string]registeredTool)}
}

func (f *fakeToolProvider) RegisterTool(name, description string, parameters map[string]any, handler llm.ToolHandler) {
	f.tools[name] = registeredTool{description, parameters, handler}
}

func (f *fakeToolProvider) call(t *testing.T, name string, args map[string]any) (string, error) {
	t.Helper()
	entry, ok := f.tools[name]
	require.True(t, ok, "tool %s not registered", name)
	return entry.handler(context.Background(), args)
}

func TestRegisterBuiltinTools_GetCurrentTime(t *testing.T) {
	provider := newFakeToolProvider()
	RegisterBuiltinTools(provider, nil)

	result, err := provider.call(t, "get_current_time", map[string]any{"format": "date"})
	require.NoError(t, err)
	assert.Len(t, result, len("2006-01-02"))
}

func TestRegisterBuiltinTools_WeatherMissingCity(t *testing.T) {
	provider := newFakeToolProvider()
	RegisterBuiltinTools(provider, func(ctx context.Context, city string) (string, error) {
		return "sunny", nil
	})

	_, err := provider.call(t, "get_weather", map[string]any{})
	assert.Error(t, err)
}

func TestRegisterBuiltinTools_WeatherSuccess(t *testing.T) {
	provider := newFakeToolProvider()
	RegisterBuiltinTools(provider, func(ctx context.Context, city string) (string, error) {
		assert.Equal(t, "Beijing", city)
		return "sunny, 20C", nil
	})

	result, err := provider.call(t, "get_weather", map[string]any{"city": "Beijing"})
	require.NoError(t, err)
	assert.Equal(t, "sunny, 20C", result)
}

func TestRegisterBuiltinTools_WeatherLookupError(t *testing.T) {
	provider := newFakeToolProvider()
	RegisterBuiltinTools(provider, func(ctx context.Context, city string) (string, error) {
		return "", assert.AnError
	})

	result, err := provider.call(t, "get_weather", map[string]any{"city": "Nowhere"})
	require.NoError(t, err)
	assert.Contains(t, result, "unable to fetch weather")
}
