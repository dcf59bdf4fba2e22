// Package controlplane is a pure client for the device-management control
// plane spec.md Section 6 names. It serves nothing; it only decodes the
// `{code,msg,data}` envelope the control plane's HTTP API returns.
package controlplane

import (
	"context"
	"fmt"
	"net/http"

	"github.com/carlmjohnson/requests"
)

// Error codes the control plane is known to return in its envelope.
const (
	CodeSuccess         = 0
	CodeDeviceNotFound  = 10041
	CodeDeviceNotBound  = 10042
)

// Envelope mirrors pkg/response.Response's shape, adapted from a
// served-gin-handler type to a pure client-side decode target.
type Envelope[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

// APIError wraps a non-success envelope so callers can branch on Code
// (e.g. CodeDeviceNotBound carries a bind code in Data).
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("controlplane: code=%d msg=%q", e.Code, e.Msg)
}

// Client talks to one control-plane base URL.
type Client struct {
	baseURL string
}

// New builds a Client bound to baseURL (spec.md Section 6's
// CONTROL_PLANE_BASE_URL).
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL}
}

// ServerBaseConfig is the `/config/server-base` response payload.
type ServerBaseConfig struct {
	WSBaseURL  string `json:"ws_base_url"`
	OTABaseURL string `json:"ota_base_url"`
}

// ServerBase fetches the server-wide base configuration a device needs to
// bootstrap its connection.
func (c *Client) ServerBase(ctx context.Context) (ServerBaseConfig, error) {
	var env Envelope[ServerBaseConfig]
	if err := requests.
		URL(c.baseURL).
		Path("/config/server-base").
		Method(http.MethodPost).
		ToJSON(&env).
		Fetch(ctx); err != nil {
		return ServerBaseConfig{}, fmt.Errorf("controlplane: server-base: %w", err)
	}
	if env.Code != CodeSuccess {
		return ServerBaseConfig{}, &APIError{Code: env.Code, Msg: env.Msg}
	}
	return env.Data, nil
}

// AgentModels is the `/config/agent-models` response payload: the per-agent
// ASR/TTS/LLM/VAD module selection and vendor credentials spec.md Section 6
// calls `selected_module`.
type AgentModels struct {
	AgentID string            `json:"agent_id"`
	Modules map[string]string `json:"modules"`
	Auth    map[string]map[string]string `json:"auth"`
	Audio   map[string]map[string]any    `json:"audio"`
}

// AgentModels resolves one agent's provider configuration.
func (c *Client) AgentModels(ctx context.Context, agentID string) (AgentModels, error) {
	var env Envelope[AgentModels]
	if err := requests.
		URL(c.baseURL).
		Path("/config/agent-models").
		Param("agent_id", agentID).
		Method(http.MethodPost).
		ToJSON(&env).
		Fetch(ctx); err != nil {
		return AgentModels{}, fmt.Errorf("controlplane: agent-models: %w", err)
	}
	if env.Code == CodeDeviceNotFound || env.Code == CodeDeviceNotBound {
		return AgentModels{}, &APIError{Code: env.Code, Msg: env.Msg}
	}
	if env.Code != CodeSuccess {
		return AgentModels{}, &APIError{Code: env.Code, Msg: env.Msg}
	}
	return env.Data, nil
}

// ChatHistoryEntry is one turn reported to `/agent/chat-history/report`.
type ChatHistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReportChatHistory uploads a turn's transcript, fire-and-forget from the
// orchestrator's point of view (errors are logged, never block a session).
func (c *Client) ReportChatHistory(ctx context.Context, agentID string, entries []ChatHistoryEntry) error {
	var env Envelope[any]
	body := map[string]any{"agent_id": agentID, "entries": entries}
	if err := requests.
		URL(c.baseURL).
		Path("/agent/chat-history/report").
		BodyJSON(body).
		ToJSON(&env).
		Fetch(ctx); err != nil {
		return fmt.Errorf("controlplane: chat-history/report: %w", err)
	}
	if env.Code != CodeSuccess {
		return &APIError{Code: env.Code, Msg: env.Msg}
	}
	return nil
}

// SaveChatSummary uploads a rolling summary for sessionID via
// `/agent/chat-summary/{id}/save`.
func (c *Client) SaveChatSummary(ctx context.Context, sessionID, summary string) error {
	var env Envelope[any]
	body := map[string]any{"summary": summary}
	if err := requests.
		URL(c.baseURL).
		Pathf("/agent/chat-summary/%s/save", sessionID).
		BodyJSON(body).
		ToJSON(&env).
		Fetch(ctx); err != nil {
		return fmt.Errorf("controlplane: chat-summary/save: %w", err)
	}
	if env.Code != CodeSuccess {
		return &APIError{Code: env.Code, Msg: env.Msg}
	}
	return nil
}
