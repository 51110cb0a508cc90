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

func TestPublisherNodeMissingConfigIsError(t *testing.T) {
	session := mockllm.New()
	deps := newTestDeps(session, time.Now())
	deps.Publish = PublisherConfig{}
	node := NewPublisherNode(deps)

	s := pipeline.CreateInitialState(pipeline.InitialStateParams{ConnectorName: "stripe"})
	update, err := node(context.Background(), s)
	require.NoError(t, err)
	assert.NotEmpty(t, update.Errors)
	assert.Empty(t, session.Calls())
}

func TestPublisherNodeSuccessSetsCompletedAndSuccess(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	session := mockllm.New().Script("publisher", agent.SessionResult{
		Success: true,
		Output:  map[string]any{"pr_url": "https://github.com/codeready-toolchain/connectors/pull/42"},
	})
	deps := newTestDeps(session, now)
	node := NewPublisherNode(deps)

	s := pipeline.CreateInitialState(pipeline.InitialStateParams{ConnectorName: "stripe", Now: now.Add(-5 * time.Minute)})
	update, err := node(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, pipeline.PhaseCompleted, *update.CurrentPhase)
	assert.Equal(t, pipeline.StatusSuccess, *update.Status)
	assert.True(t, *update.Published)
	require.NotNil(t, update.PRURL)
	assert.Equal(t, "https://github.com/codeready-toolchain/connectors/pull/42", *update.PRURL)
	require.NotNil(t, update.CompletedAt)
}

func TestPublisherNodeDegradedModeYieldsPartialStatus(t *testing.T) {
	now := time.Now()
	session := mockllm.New().Script("publisher", agent.SessionResult{
		Success: true,
		Output:  map[string]any{"pr_url": "https://github.com/codeready-toolchain/connectors/pull/43"},
	})
	deps := newTestDeps(session, now)
	node := NewPublisherNode(deps)

	s := pipeline.CreateInitialState(pipeline.InitialStateParams{ConnectorName: "stripe"})
	s.DegradedMode = true

	update, err := node(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusPartial, *update.Status)
}
