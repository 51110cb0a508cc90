// Package mockllm provides a deterministic, scriptable stand-in for
// the external LLM session service, grounded on the teacher's
// test/e2e/mock_llm.go fake-LLM-client pattern. It lets end-to-end
// tests drive the real graph engine and real node functions while
// controlling exactly what each phase "decides".
package mockllm

import (
	"context"
	"fmt"
	"sync"

	"github.com/codeready-toolchain/connector-forge/pkg/agent"
)

// Session is a scripted agent.LLMSession: each phase has a queue of
// results consumed in order, one per call. Calling Run with an empty
// queue for that phase is a test-authoring error and panics loudly
// rather than silently returning a zero value.
type Session struct {
	mu       sync.Mutex
	queues   map[string][]agent.SessionResult
	calls    []agent.SessionRequest
	onCall   func(agent.SessionRequest)
}

// New constructs an empty scripted session.
func New() *Session {
	return &Session{queues: make(map[string][]agent.SessionResult)}
}

// Script appends a result to the queue for phase. Results for a phase
// are returned in the order scripted.
func (s *Session) Script(phase string, result agent.SessionResult) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[phase] = append(s.queues[phase], result)
	return s
}

// OnCall registers a callback invoked with every request before its
// scripted result is returned — useful for asserting on the working
// directory or input payload a node constructed.
func (s *Session) OnCall(fn func(agent.SessionRequest)) *Session {
	s.onCall = fn
	return s
}

// Calls returns every request received so far, in order.
func (s *Session) Calls() []agent.SessionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]agent.SessionRequest(nil), s.calls...)
}

// Run implements agent.LLMSession.
func (s *Session) Run(_ context.Context, req agent.SessionRequest) (agent.SessionResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	queue := s.queues[req.Phase]
	if len(queue) == 0 {
		s.mu.Unlock()
		panic(fmt.Sprintf("mockllm: no scripted result left for phase %q", req.Phase))
	}
	result := queue[0]
	s.queues[req.Phase] = queue[1:]
	s.mu.Unlock()

	if s.onCall != nil {
		s.onCall(req)
	}
	return result, nil
}
