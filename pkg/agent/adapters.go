package agent

// Per-phase adapter constructors. Each sets the tool allowlist and
// turn budget appropriate to its phase's responsibility (spec.md
// §4.4.1-4.4.7); the system prompt text itself is an out-of-scope
// collaborator concern (spec.md §1) and is left to the caller via
// SystemPrompt.

// NewResearchAdapter builds the adapter for the Research node: reads
// documentation, searches and fetches external pages, and may write
// files (e.g. its research notes) but never runs shell commands.
func NewResearchAdapter(session LLMSession, systemPrompt string) *BaseAdapter {
	return &BaseAdapter{
		Phase:         "research",
		SystemPrompt:  systemPrompt,
		ToolAllowlist: []string{ToolSearchWeb, ToolFetchURL, ToolReadFile, ToolWriteFile},
		MaxTurns:      40,
		Session:       session,
	}
}

// NewGeneratorAdapter builds the adapter for the Generator node: reads
// and writes connector source, may run shell commands (linters,
// formatters).
func NewGeneratorAdapter(session LLMSession, systemPrompt string) *BaseAdapter {
	return &BaseAdapter{
		Phase:         "generator",
		SystemPrompt:  systemPrompt,
		ToolAllowlist: []string{ToolReadFile, ToolWriteFile, ToolEditFile, ToolRunShell},
		MaxTurns:      60,
		Session:       session,
	}
}

// NewMockGeneratorAdapter builds the adapter for the MockGenerator
// node: reads source, writes fixtures and the loader module.
func NewMockGeneratorAdapter(session LLMSession, systemPrompt string) *BaseAdapter {
	return &BaseAdapter{
		Phase:         "mock_generator",
		SystemPrompt:  systemPrompt,
		ToolAllowlist: []string{ToolReadFile, ToolWriteFile, ToolEditFile},
		MaxTurns:      30,
		Session:       session,
	}
}

// NewTesterAdapter builds the adapter for the Tester node: writes or
// repairs the test suite and executes it via shell.
func NewTesterAdapter(session LLMSession, systemPrompt string) *BaseAdapter {
	return &BaseAdapter{
		Phase:         "tester",
		SystemPrompt:  systemPrompt,
		ToolAllowlist: []string{ToolReadFile, ToolWriteFile, ToolEditFile, ToolRunShell},
		MaxTurns:      45,
		Session:       session,
	}
}

// NewTestReviewerAdapter builds the adapter for the TestReviewer node:
// read-only triage of test output against source.
func NewTestReviewerAdapter(session LLMSession, systemPrompt string) *BaseAdapter {
	return &BaseAdapter{
		Phase:         "test_reviewer",
		SystemPrompt:  systemPrompt,
		ToolAllowlist: []string{ToolReadFile},
		MaxTurns:      20,
		Session:       session,
	}
}

// NewReviewerAdapter builds the adapter for the Reviewer node:
// read-only code-quality review.
func NewReviewerAdapter(session LLMSession, systemPrompt string) *BaseAdapter {
	return &BaseAdapter{
		Phase:         "reviewer",
		SystemPrompt:  systemPrompt,
		ToolAllowlist: []string{ToolReadFile},
		MaxTurns:      25,
		Session:       session,
	}
}

// NewPublisherAdapter builds the adapter for the Publisher node: reads
// files and drives git/host-service operations via shell.
func NewPublisherAdapter(session LLMSession, systemPrompt string) *BaseAdapter {
	return &BaseAdapter{
		Phase:         "publisher",
		SystemPrompt:  systemPrompt,
		ToolAllowlist: []string{ToolReadFile, ToolRunShell},
		MaxTurns:      15,
		Session:       session,
	}
}
