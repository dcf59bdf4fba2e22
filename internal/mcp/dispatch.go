package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Dispatcher exposes the same builtin tool set over mcp-go's in-process
// server so a device's `mcp` passthrough messages (spec.md Section 4.1's
// thin iot/mcp dispatch) resolve through the real MCP tool-call contract
// instead of a hand-rolled one.
type Dispatcher struct {
	srv *server.MCPServer
}

// NewDispatcher builds a Dispatcher with the time/weather builtin tools
// registered, mirroring the llm.Provider registrations in builtin.go so
// both a tool-calling LLM and a raw MCP passthrough message reach the same
// handlers.
func NewDispatcher(weather WeatherLookup) *Dispatcher {
	srv := server.NewMCPServer("xiaozhi-bridge", "1.0.0")

	srv.AddTool(
		mcpsdk.NewTool("get_current_time",
			mcpsdk.WithDescription("Returns the current date and time."),
			mcpsdk.WithString("format", mcpsdk.Description("datetime, date, or time")),
		),
		func(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			format := req.GetString("format", "")
			text, err := executeGetCurrentTime(ctx, map[string]any{"format": format})
			if err != nil {
				return mcpsdk.NewToolResultError(err.Error()), nil
			}
			return mcpsdk.NewToolResultText(text), nil
		},
	)

	if weather != nil {
		handler := newWeatherHandler(weather)
		srv.AddTool(
			mcpsdk.NewTool("get_weather",
				mcpsdk.WithDescription("Returns weather information for a named city."),
				mcpsdk.WithString("city", mcpsdk.Required(), mcpsdk.Description("City name")),
			),
			func(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
				city, err := req.RequireString("city")
				if err != nil {
					return mcpsdk.NewToolResultError(err.Error()), nil
				}
				text, err := handler(ctx, map[string]any{"city": city})
				if err != nil {
					return mcpsdk.NewToolResultError(err.Error()), nil
				}
				return mcpsdk.NewToolResultText(text), nil
			},
		)
	}

	return &Dispatcher{srv: srv}
}

// HandleMessage dispatches one raw `mcp` passthrough payload (a JSON-RPC
// tool call envelope) to the registered tool server and returns its
// JSON-RPC response, ready to forward back to the device verbatim.
func (d *Dispatcher) HandleMessage(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	resp := d.srv.HandleMessage(ctx, raw)
	if resp == nil {
		return nil, nil
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal response: %w", err)
	}
	return out, nil
}
