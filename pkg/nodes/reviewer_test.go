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

func TestCoverageDecisionThresholds(t *testing.T) {
	assert.Equal(t, pipeline.ReviewApprove, coverageDecision(1.00))
	assert.Equal(t, pipeline.ReviewApprove, coverageDecision(0.80))
	assert.Equal(t, pipeline.ReviewRejectCode, coverageDecision(0.79))
	assert.Equal(t, pipeline.ReviewRejectCode, coverageDecision(0.50))
	assert.Equal(t, pipeline.ReviewRejectContext, coverageDecision(0.49))
	assert.Equal(t, pipeline.ReviewRejectContext, coverageDecision(0.0))
}

func TestReviewerNodeApprovesFullCoverageCleanly(t *testing.T) {
	session := mockllm.New().Script("reviewer", agent.SessionResult{Success: true, Output: map[string]any{}})
	deps := newTestDeps(session, time.Now())
	node := NewReviewerNode(deps)

	s := pipeline.CreateInitialState(pipeline.InitialStateParams{ConnectorName: "stripe"})
	s.TestResults = &pipeline.TestResults{Passed: true, CoverageRatio: 1.0}

	update, err := node(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ReviewApprove, *update.ReviewDecision)
	assert.False(t, *update.DegradedMode)
}

func TestReviewerNodeApprovesPartialCoverageDegraded(t *testing.T) {
	session := mockllm.New().Script("reviewer", agent.SessionResult{
		Success: true,
		Output:  map[string]any{"degraded_streams": []string{"refunds"}},
	})
	deps := newTestDeps(session, time.Now())
	node := NewReviewerNode(deps)

	s := pipeline.CreateInitialState(pipeline.InitialStateParams{ConnectorName: "stripe"})
	s.TestResults = &pipeline.TestResults{Passed: true, CoverageRatio: 0.85}

	update, err := node(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ReviewApprove, *update.ReviewDecision)
	assert.True(t, *update.DegradedMode)
	require.NotNil(t, update.DegradedStreams)
	assert.Equal(t, []string{"refunds"}, *update.DegradedStreams)
}

func TestReviewerNodeRejectsCodeBelowPartialThreshold(t *testing.T) {
	session := mockllm.New().Script("reviewer", agent.SessionResult{
		Success: true,
		Output:  map[string]any{"feedback": []string{"pagination cursor never advances"}},
	})
	deps := newTestDeps(session, time.Now())
	node := NewReviewerNode(deps)

	s := pipeline.CreateInitialState(pipeline.InitialStateParams{ConnectorName: "stripe"})
	s.TestResults = &pipeline.TestResults{Passed: false, CoverageRatio: 0.6}

	update, err := node(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, pipeline.ReviewRejectCode, *update.ReviewDecision)
	require.NotNil(t, update.ReviewRetries)
	assert.Equal(t, 1, *update.ReviewRetries)
}

func TestReviewerNodeRejectContextResetsArtifactsAndPreservesDecision(t *testing.T) {
	session := mockllm.New().Script("reviewer", agent.SessionResult{
		Success: true,
		Output:  map[string]any{"context_gap": "rate-limit headers undocumented"},
	})
	deps := newTestDeps(session, time.Now())
	node := NewReviewerNode(deps)

	s := pipeline.CreateInitialState(pipeline.InitialStateParams{ConnectorName: "stripe"})
	s.GeneratedCode = &pipeline.GeneratedCode{Files: map[string]string{"connector.go": "x"}}
	s.TestCode = &pipeline.TestCode{Files: map[string]string{"connector_test.go": "x"}}
	s.TestResults = &pipeline.TestResults{Passed: false, CoverageRatio: 0.3}
	s.TestReviewDecision = pipeline.TestReviewInvalid
	s.TestReviewFeedback = []string{"stale feedback"}
	s.ReviewFeedback = []string{"stale review feedback"}

	update, err := node(context.Background(), s)
	require.NoError(t, err)

	require.NotNil(t, update.ReviewDecision)
	assert.Equal(t, pipeline.ReviewRejectContext, *update.ReviewDecision, "router reads this on the same transition")

	require.NotNil(t, update.GeneratedCode)
	assert.Nil(t, *update.GeneratedCode)
	require.NotNil(t, update.TestCode)
	assert.Nil(t, *update.TestCode)
	require.NotNil(t, update.TestResults)
	assert.Nil(t, *update.TestResults)

	require.NotNil(t, update.TestReviewDecision)
	assert.Equal(t, "", *update.TestReviewDecision)
	require.NotNil(t, update.TestReviewFeedback)
	assert.Empty(t, *update.TestReviewFeedback)
	require.NotNil(t, update.ReviewFeedback)
	assert.Empty(t, *update.ReviewFeedback)

	require.Len(t, update.ContextGaps, 1)
	assert.Contains(t, update.ContextGaps[0], "rate-limit headers undocumented")
	require.NotNil(t, update.ResearchRetries)
	assert.Equal(t, 1, *update.ResearchRetries)

	final := pipeline.Apply(s, update)
	assert.Nil(t, final.GeneratedCode)
	assert.Nil(t, final.TestCode)
	assert.Nil(t, final.TestResults)
	assert.Equal(t, pipeline.ReviewRejectContext, final.ReviewDecision)
}
