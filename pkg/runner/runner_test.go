package runner

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/connector-forge/pkg/agent"
	"github.com/codeready-toolchain/connector-forge/pkg/agent/mockllm"
	"github.com/codeready-toolchain/connector-forge/pkg/checkpoint"
	"github.com/codeready-toolchain/connector-forge/pkg/graph"
	"github.com/codeready-toolchain/connector-forge/pkg/nodes"
	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

func happyPathSession() *mockllm.Session {
	return mockllm.New().
		Script("research", agent.SessionResult{Success: true, Output: map[string]any{"full_document": "# widget-api"}}).
		Script("generator", agent.SessionResult{Success: true, Output: map[string]any{
			"files": map[string]string{"connector.go": "package widget"}, "action": "create",
		}}).
		Script("mock_generator", agent.SessionResult{Success: true, Output: map[string]any{
			"summary": "fixtures ready", "fixtures_dir": "fixtures",
			"fixtures_created": []string{"fixtures/a.json"}, "loader_generated": true,
		}}).
		Script("tester", agent.SessionResult{Success: true, Output: map[string]any{
			"status": "completed", "passed": true, "tests_passed": 5, "tests_failed": 0, "tests_total": 5,
			"files": map[string]string{"connector_test.go": "package widget"},
		}}).
		Script("reviewer", agent.SessionResult{Success: true, Output: map[string]any{}}).
		Script("publisher", agent.SessionResult{Success: true, Output: map[string]any{
			"pr_url": "https://github.com/codeready-toolchain/connectors/pull/1",
		}})
}

func newTestRunner(t *testing.T, session *mockllm.Session, maxConcurrent int64) (*Runner, checkpoint.Store) {
	t.Helper()
	deps := &nodes.Deps{
		Research:      agent.NewResearchAdapter(session, ""),
		Generator:     agent.NewGeneratorAdapter(session, ""),
		MockGenerator: agent.NewMockGeneratorAdapter(session, ""),
		Tester:        agent.NewTesterAdapter(session, ""),
		TestReviewer:  agent.NewTestReviewerAdapter(session, ""),
		Reviewer:      agent.NewReviewerAdapter(session, ""),
		Publisher:     agent.NewPublisherAdapter(session, ""),
		Publish:       nodes.PublisherConfig{Owner: "codeready-toolchain", Repo: "connectors", Token: "test-token"},
	}
	store := checkpoint.NewMemoryStore()
	app, err := graph.Compile(nodes.BuildGraph(deps), store)
	require.NoError(t, err)
	return New(app, maxConcurrent), store
}

func waitForCompletion(t *testing.T, r *Runner, threadID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		info, ok := r.LocalRunInfo(threadID)
		if ok && !info.IsActive() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("pipeline %s did not complete within deadline", threadID)
}

func TestGenerateThreadIDFormat(t *testing.T) {
	id := GenerateThreadID("stripe")
	assert.Regexp(t, `^pipeline-stripe-[0-9a-f]{8}$`, id)
}

func TestRunnerStartRunsToCompletion(t *testing.T) {
	r, store := newTestRunner(t, happyPathSession(), 4)

	threadID, err := r.Start(context.Background(), pipeline.InitialStateParams{ConnectorName: "widget"})
	require.NoError(t, err)
	assert.Regexp(t, `^pipeline-widget-[0-9a-f]{8}$`, threadID)

	waitForCompletion(t, r, threadID)

	snap, err := r.GetState(context.Background(), threadID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSuccess, snap.Values.Status)
	assert.Equal(t, pipeline.PhaseCompleted, snap.Values.CurrentPhase)

	history, err := store.History(context.Background(), threadID)
	require.NoError(t, err)
	assert.Len(t, history, 7)

	info, ok := r.LocalRunInfo(threadID)
	require.True(t, ok)
	assert.False(t, info.IsActive())
	assert.Empty(t, info.Err)
}

// The reviewer flagged that no code path ever set state.ConnectorDir,
// so every adapter call reached the session with an empty working
// directory. This asserts the fix: Start computes a non-empty,
// thread_id-namespaced directory and every phase's call carries it.
func TestRunnerStartNamespacesConnectorDirByThread(t *testing.T) {
	session := happyPathSession()
	r, _ := newTestRunner(t, session, 4)

	threadID, err := r.Start(context.Background(), pipeline.InitialStateParams{
		ConnectorName: "Widget API", ConnectorType: pipeline.ConnectorSource,
	})
	require.NoError(t, err)
	waitForCompletion(t, r, threadID)

	calls := session.Calls()
	require.NotEmpty(t, calls)

	suffix := threadID[strings.LastIndex(threadID, "-")+1:]
	wantDir := "source-widget-api-" + suffix
	for _, c := range calls {
		assert.Equal(t, wantDir, c.WorkingDir, "phase %q invoked with wrong working dir", c.Phase)
	}
}

func TestRunnerStartRejectsOverCapacity(t *testing.T) {
	r, _ := newTestRunner(t, mockllm.New(), 1)

	// Hold the single concurrency slot directly to simulate "a run is
	// still executing" without needing a real in-flight pipeline.
	require.True(t, r.sem.TryAcquire(1))
	defer r.sem.Release(1)

	_, err := r.Start(context.Background(), pipeline.InitialStateParams{ConnectorName: "widget"})
	assert.ErrorIs(t, err, ErrAtCapacity)
}

func TestRunnerCancelStopsActiveRun(t *testing.T) {
	session := mockllm.New().Script("research", agent.SessionResult{
		Success: true, Output: map[string]any{"full_document": "# widget-api"},
	})
	r, _ := newTestRunner(t, session, 4)

	threadID, err := r.Start(context.Background(), pipeline.InitialStateParams{ConnectorName: "widget"})
	require.NoError(t, err)

	ok := r.Cancel(threadID)
	assert.True(t, ok)

	waitForCompletion(t, r, threadID)

	assert.False(t, r.Cancel(threadID), "cancelling an already-finished run reports false")
	assert.False(t, r.Cancel("unknown-thread"), "cancelling an unknown thread reports false")
}

func TestRunnerActiveRunsAndCleanup(t *testing.T) {
	r, _ := newTestRunner(t, happyPathSession(), 4)

	threadID, err := r.Start(context.Background(), pipeline.InitialStateParams{ConnectorName: "widget"})
	require.NoError(t, err)

	waitForCompletion(t, r, threadID)
	assert.Empty(t, r.ActiveRuns())

	removed := r.CleanupCompleted(-time.Second)
	assert.Equal(t, 1, removed)

	_, ok := r.LocalRunInfo(threadID)
	assert.False(t, ok)
}

func TestRunnerResumeRejectsUnknownRun(t *testing.T) {
	r, _ := newTestRunner(t, mockllm.New(), 4)
	err := r.Resume(context.Background(), "pipeline-widget-deadbeef")
	assert.Error(t, err)
}

// panickingSession simulates an LLMSession implementation that panics
// instead of returning an error (e.g. mockllm.Session.Run against an
// empty, unscripted queue) — used to verify execute() contains the
// panic to a single failed run rather than crashing the process.
type panickingSession struct{}

func (panickingSession) Run(context.Context, agent.SessionRequest) (agent.SessionResult, error) {
	panic("mockllm: no scripted result left for phase")
}

func TestRunnerExecuteRecoversFromPanic(t *testing.T) {
	var session agent.LLMSession = panickingSession{}
	deps := &nodes.Deps{
		Research:      agent.NewResearchAdapter(session, ""),
		Generator:     agent.NewGeneratorAdapter(session, ""),
		MockGenerator: agent.NewMockGeneratorAdapter(session, ""),
		Tester:        agent.NewTesterAdapter(session, ""),
		TestReviewer:  agent.NewTestReviewerAdapter(session, ""),
		Reviewer:      agent.NewReviewerAdapter(session, ""),
		Publisher:     agent.NewPublisherAdapter(session, ""),
		Publish:       nodes.PublisherConfig{Owner: "o", Repo: "r", Token: "t"},
	}
	app, err := graph.Compile(nodes.BuildGraph(deps), checkpoint.NewMemoryStore())
	require.NoError(t, err)
	r := New(app, 4)

	threadID, err := r.Start(context.Background(), pipeline.InitialStateParams{ConnectorName: "widget"})
	require.NoError(t, err)
	waitForCompletion(t, r, threadID)

	info, ok := r.LocalRunInfo(threadID)
	require.True(t, ok)
	assert.False(t, info.IsActive())
	assert.Contains(t, info.Err, "panic")

	// The semaphore slot must be released despite the panic, so a
	// second, independent run can still start.
	threadID2, err := r.Start(context.Background(), pipeline.InitialStateParams{ConnectorName: "widget-2"})
	require.NoError(t, err)
	waitForCompletion(t, r, threadID2)
}

func TestRunnerMermaidDelegatesToGraph(t *testing.T) {
	r, _ := newTestRunner(t, mockllm.New(), 4)
	diagram := r.Mermaid()
	assert.Contains(t, diagram, "flowchart TD")
}
