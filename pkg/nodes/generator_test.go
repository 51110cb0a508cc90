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

func TestGeneratorModeDispatch(t *testing.T) {
	base := pipeline.CreateInitialState(pipeline.InitialStateParams{})
	assert.Equal(t, "generate", generatorMode(base))

	withTestFeedback := base
	withTestFeedback.TestReviewFeedback = []string{"CODE_BUG: nil pointer on empty page"}
	assert.Equal(t, "fix", generatorMode(withTestFeedback))

	withReviewFeedback := base
	withReviewFeedback.ReviewFeedback = []string{"missing rate-limit backoff"}
	assert.Equal(t, "improve", generatorMode(withReviewFeedback))
}

func TestGeneratorNodeClearsFeedbackAfterConsuming(t *testing.T) {
	session := mockllm.New().Script("generator", agent.SessionResult{
		Success: true,
		Output: map[string]any{
			"files":  map[string]string{"connector.go": "package stripe"},
			"action": "create",
		},
	})
	deps := newTestDeps(session, time.Now())
	node := NewGeneratorNode(deps)

	s := pipeline.CreateInitialState(pipeline.InitialStateParams{ConnectorName: "stripe"})
	s.TestReviewFeedback = []string{"CODE_BUG: off-by-one in pagination"}

	update, err := node(context.Background(), s)
	require.NoError(t, err)

	require.NotNil(t, update.GeneratedCode)
	gc := *update.GeneratedCode
	require.NotNil(t, gc)
	assert.Equal(t, "package stripe", gc.Files["connector.go"])

	require.NotNil(t, update.TestReviewFeedback)
	assert.Empty(t, *update.TestReviewFeedback)
	require.NotNil(t, update.ReviewFeedback)
	assert.Empty(t, *update.ReviewFeedback)
}

// CreateInitialState must assign a non-empty connector_dir (spec.md
// §4.4.2, §5) so every adapter call — including this one — carries a
// real working directory instead of "".
func TestGeneratorNodeInvokesWithNonEmptyConnectorDir(t *testing.T) {
	session := mockllm.New().Script("generator", agent.SessionResult{
		Success: true,
		Output: map[string]any{
			"files":  map[string]string{"connector.go": "package stripe"},
			"action": "create",
		},
	})
	deps := newTestDeps(session, time.Now())
	node := NewGeneratorNode(deps)

	s := pipeline.CreateInitialState(pipeline.InitialStateParams{ConnectorName: "Stripe"})
	require.NotEmpty(t, s.ConnectorDir)

	_, err := node(context.Background(), s)
	require.NoError(t, err)

	calls := session.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, s.ConnectorDir, calls[0].WorkingDir)
	assert.Equal(t, "source-stripe", calls[0].WorkingDir)
}

func TestGeneratorNodeUnparseableOutputIsError(t *testing.T) {
	session := mockllm.New().Script("generator", agent.SessionResult{Success: true, Output: 12345})
	deps := newTestDeps(session, time.Now())
	node := NewGeneratorNode(deps)

	s := pipeline.CreateInitialState(pipeline.InitialStateParams{ConnectorName: "stripe"})
	update, err := node(context.Background(), s)
	require.NoError(t, err)
	assert.NotEmpty(t, update.Errors)
}
