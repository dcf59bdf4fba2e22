// Package mcp implements the device-side MCP tool plane spec.md scopes as
// thin: builtin tools registered against the LLM provider plus a
// passthrough dispatcher for inbound `iot`/`mcp` messages. A full MCP
// runtime (resources, prompts, server-to-server transport) is out of
// scope; only tool registration and dispatch are wired.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/xiaozhivoice/bridge/internal/llm"
)

// ToolRegistrar is the subset of llm.Provider this package depends on,
// letting tests exercise tool wiring without a full Provider fake.
type ToolRegistrar interface {
	RegisterTool(name, description string, parameters map[string]any, handler llm.ToolHandler)
}

// RegisterBuiltinTools wires the builtin tool set into provider, mirroring
// pkg/hardwarefinal/tools/builtin_tools.go's get_current_time/get_weather
// pair generalized to the Provider.RegisterTool contract.
func RegisterBuiltinTools(provider ToolRegistrar, weather WeatherLookup) {
	provider.RegisterTool(
		"get_current_time",
		"Returns the current date and time.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"format": map[string]any{
					"type":        "string",
					"description": "datetime, date, or time",
					"enum":        []string{"datetime", "date", "time"},
				},
			},
		},
		executeGetCurrentTime,
	)

	if weather != nil {
		provider.RegisterTool(
			"get_weather",
			"Returns weather information for a named city.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"city": map[string]any{
						"type":        "string",
						"description": "City name",
					},
				},
				"required": []string{"city"},
			},
			newWeatherHandler(weather),
		)
	}
}

func executeGetCurrentTime(_ context.Context, args map[string]any) (string, error) {
	format, _ := args["format"].(string)
	now := time.Now()
	switch format {
	case "date":
		return now.Format("2006-01-02"), nil
	case "time":
		return now.Format("15:04:05"), nil
	default:
		return now.Format("2006-01-02 15:04:05"), nil
	}
}

// WeatherLookup abstracts the external weather API call so this package
// has no direct network dependency of its own.
type WeatherLookup func(ctx context.Context, city string) (string, error)

func newWeatherHandler(lookup WeatherLookup) llm.ToolHandler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		city, ok := args["city"].(string)
		if !ok || city == "" {
			return "", fmt.Errorf("mcp: get_weather: missing city argument")
		}
		result, err := lookup(ctx, city)
		if err != nil {
			return fmt.Sprintf("unable to fetch weather for %s: %v", city, err), nil
		}
		return result, nil
	}
}
