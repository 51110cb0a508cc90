package nodes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/connector-forge/pkg/agent"
	"github.com/codeready-toolchain/connector-forge/pkg/agent/mockllm"
	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

func TestResearchNodeFirstEntry(t *testing.T) {
	session := mockllm.New().Script("research", agent.SessionResult{
		Success: true,
		Output: map[string]any{
			"full_document":          "# Stripe API\n...",
			"context_gaps_addressed": []string{},
			"tokens_used":            1200,
		},
	})
	deps := newTestDeps(session, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))
	node := NewResearchNode(deps)

	initial := pipeline.CreateInitialState(pipeline.InitialStateParams{ConnectorName: "stripe"})
	update, err := node(context.Background(), initial)
	require.NoError(t, err)

	assert.Equal(t, pipeline.PhaseResearching, *update.CurrentPhase)
	require.NotNil(t, update.ResearchOutput)
	assert.Equal(t, "# Stripe API\n...", update.ResearchOutput.FullDocument)
	assert.Equal(t, "", *update.ReviewDecision, "research always clears a stale review_decision")
	assert.Empty(t, update.Errors)

	calls := session.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, false, calls[0].Input["is_reentry"])
}

func TestResearchNodeReentryFlagsContextGaps(t *testing.T) {
	session := mockllm.New().Script("research", agent.SessionResult{
		Success: true,
		Output:  map[string]any{"full_document": "# revised", "tokens_used": 500},
	})
	deps := newTestDeps(session, time.Now())
	node := NewResearchNode(deps)

	s := pipeline.CreateInitialState(pipeline.InitialStateParams{ConnectorName: "stripe"})
	s.ContextGaps = []string{"webhook signing not documented"}

	_, err := node(context.Background(), s)
	require.NoError(t, err)

	calls := session.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, true, calls[0].Input["is_reentry"])
}

func TestResearchNodeAdapterFailureRecordsError(t *testing.T) {
	session := mockllm.New().Script("research", agent.SessionResult{Success: false, Error: "rate limited"})
	deps := newTestDeps(session, time.Now())
	node := NewResearchNode(deps)

	s := pipeline.CreateInitialState(pipeline.InitialStateParams{ConnectorName: "stripe"})
	update, err := node(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, update.Errors, 1)
	assert.Contains(t, update.Errors[0], "rate limited")
	assert.Nil(t, update.ResearchOutput)
}
