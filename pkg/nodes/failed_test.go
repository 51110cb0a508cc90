package nodes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/connector-forge/pkg/agent/mockllm"
	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

func TestFailedNodeStampsOutcome(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	deps := newTestDeps(mockllm.New(), now)
	node := NewFailedNode(deps)

	s := pipeline.CreateInitialState(pipeline.InitialStateParams{ConnectorName: "stripe", Now: now.Add(-90 * time.Second)})
	update, err := node(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, pipeline.PhaseFailed, *update.CurrentPhase)
	assert.Equal(t, pipeline.StatusFailed, *update.Status)
	require.NotNil(t, update.CompletedAt)
	require.NotNil(t, update.TotalDuration)
	assert.InDelta(t, 90.0, *update.TotalDuration, 0.01)
	assert.Len(t, update.Logs, 2)
}
