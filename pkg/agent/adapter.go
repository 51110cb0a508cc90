// Package agent implements the per-phase agent adapters described in
// spec.md §4.5: each adapter translates one node's abstract
// responsibility into a single LLM session with a restricted tool
// allowlist, a working-directory constraint, and a maximum turn
// budget, then parses the session's result into typed fields.
package agent

import (
	"context"
	"fmt"
	"time"
)

// Tool names drawn from the allowlist in spec.md §4.5.
const (
	ToolReadFile  = "read-file"
	ToolWriteFile = "write-file"
	ToolEditFile  = "edit-file"
	ToolRunShell  = "run-shell"
	ToolSearchWeb = "search-web"
	ToolFetchURL  = "fetch-url"
)

// SessionRequest is what an adapter sends to the external LLM session
// service (spec.md §4.5's "Operation" bullet). The service's internals
// — the vendor SDK and its tool-execution loop — are explicitly out of
// scope (spec.md §1); LLMSession is the contract boundary.
type SessionRequest struct {
	Phase         string
	SystemPrompt  string
	ToolAllowlist []string
	WorkingDir    string
	MaxTurns      int
	Input         map[string]any
}

// SessionResult is the structured result spec.md §4.5 requires at
// minimum.
type SessionResult struct {
	Success         bool
	Output          any
	Error           string
	DurationSeconds float64
	TokensUsed      int
}

// LLMSession is the external collaborator every adapter drives. Its
// implementation (vendor SDK, prompt construction, tool-execution
// loop) is outside this module's scope; pkg/agent/mockllm provides a
// deterministic stand-in for tests.
type LLMSession interface {
	Run(ctx context.Context, req SessionRequest) (SessionResult, error)
}

// BaseAdapter carries the per-phase configuration shared by every
// concrete adapter. It validates the declared tool allowlist before
// handing a request to the session service; it does not itself apply
// the shell-command and path-traversal hooks in security.go.
type BaseAdapter struct {
	Phase         string
	SystemPrompt  string
	ToolAllowlist []string
	MaxTurns      int
	Session       LLMSession
}

// Invoke constrains req to the adapter's working directory and tool
// allowlist, then runs one LLM session. Security hooks (dangerous
// shell commands, path traversal) are enforced inside the session
// implementation's tool-execution loop for actual tool calls; this
// method additionally validates the declared allowlist itself so a
// misconfigured adapter can never request a tool the phase doesn't
// need.
func (a *BaseAdapter) Invoke(ctx context.Context, workingDir string, input map[string]any) (SessionResult, error) {
	for _, tool := range a.ToolAllowlist {
		if !isKnownTool(tool) {
			return SessionResult{}, fmt.Errorf("agent: adapter %s declares unknown tool %q", a.Phase, tool)
		}
	}

	start := time.Now()
	result, err := a.Session.Run(ctx, SessionRequest{
		Phase:         a.Phase,
		SystemPrompt:  a.SystemPrompt,
		ToolAllowlist: a.ToolAllowlist,
		WorkingDir:    workingDir,
		MaxTurns:      a.MaxTurns,
		Input:         input,
	})
	if err != nil {
		return SessionResult{Success: false, Error: err.Error(), DurationSeconds: time.Since(start).Seconds()}, nil
	}
	return result, nil
}

func isKnownTool(tool string) bool {
	switch tool {
	case ToolReadFile, ToolWriteFile, ToolEditFile, ToolRunShell, ToolSearchWeb, ToolFetchURL:
		return true
	default:
		return false
	}
}
