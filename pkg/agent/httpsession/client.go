// Package httpsession implements agent.LLMSession against an external
// HTTP session service: a process that owns the actual vendor SDK and
// its tool-execution loop, both explicitly out of scope for this
// module (spec.md §1). This client is the thin contract boundary
// spec.md §4.5 describes — it posts one phase invocation and parses
// back the structured result — grounded on the teacher pack's HTTP AI
// provider clients (itsneelabh-gomind/ai/providers/openai.Client),
// generalized from a single vendor endpoint to the session-service
// shape this orchestrator actually calls.
package httpsession

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codeready-toolchain/connector-forge/pkg/agent"
)

// Client posts phase invocations to an external session service over
// HTTP and parses its JSON response into agent.SessionResult.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Client targeting baseURL (e.g.
// "http://localhost:9100"), with a per-call timeout applied on top of
// whatever deadline the caller's context already carries.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type wireRequest struct {
	Phase         string         `json:"phase"`
	SystemPrompt  string         `json:"system_prompt"`
	ToolAllowlist []string       `json:"tool_allowlist"`
	WorkingDir    string         `json:"working_dir"`
	MaxTurns      int            `json:"max_turns"`
	Input         map[string]any `json:"input"`
}

type wireResponse struct {
	Success         bool    `json:"success"`
	Output          any     `json:"output"`
	Error           string  `json:"error,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	TokensUsed      int     `json:"tokens_used"`
}

// Run implements agent.LLMSession.
func (c *Client) Run(ctx context.Context, req agent.SessionRequest) (agent.SessionResult, error) {
	body, err := json.Marshal(wireRequest{
		Phase:         req.Phase,
		SystemPrompt:  req.SystemPrompt,
		ToolAllowlist: req.ToolAllowlist,
		WorkingDir:    req.WorkingDir,
		MaxTurns:      req.MaxTurns,
		Input:         req.Input,
	})
	if err != nil {
		return agent.SessionResult{}, fmt.Errorf("httpsession: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sessions/"+req.Phase, bytes.NewReader(body))
	if err != nil {
		return agent.SessionResult{}, fmt.Errorf("httpsession: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return agent.SessionResult{}, fmt.Errorf("httpsession: %s call failed: %w", req.Phase, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return agent.SessionResult{}, fmt.Errorf("httpsession: read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return agent.SessionResult{
			Success: false,
			Error:   fmt.Sprintf("httpsession: %s responded %d: %s", req.Phase, resp.StatusCode, string(raw)),
		}, nil
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		// Tolerant fallback per spec.md §4.5: preserve raw output rather
		// than fail the adapter outright.
		return agent.SessionResult{Success: false, Error: fmt.Sprintf("httpsession: unparseable response: %s", string(raw))}, nil
	}

	return agent.SessionResult{
		Success:         wire.Success,
		Output:          wire.Output,
		Error:           wire.Error,
		DurationSeconds: wire.DurationSeconds,
		TokensUsed:      wire.TokensUsed,
	}, nil
}
