package nodes

import (
	"time"

	"github.com/codeready-toolchain/connector-forge/pkg/agent"
	"github.com/codeready-toolchain/connector-forge/pkg/agent/mockllm"
)

// newTestDeps wires every phase's adapter to the same scripted session,
// matching the teacher's single-fake-client e2e setup.
func newTestDeps(session *mockllm.Session, now time.Time) *Deps {
	return &Deps{
		Research:      agent.NewResearchAdapter(session, ""),
		Generator:     agent.NewGeneratorAdapter(session, ""),
		MockGenerator: agent.NewMockGeneratorAdapter(session, ""),
		Tester:        agent.NewTesterAdapter(session, ""),
		TestReviewer:  agent.NewTestReviewerAdapter(session, ""),
		Reviewer:      agent.NewReviewerAdapter(session, ""),
		Publisher:     agent.NewPublisherAdapter(session, ""),
		Publish:       PublisherConfig{Owner: "codeready-toolchain", Repo: "connectors", Token: "test-token"},
		Now:           func() time.Time { return now },
	}
}
