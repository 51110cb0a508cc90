package pipeline

// Node names used as routing targets. END is the terminal sentinel
// consulted by the graph engine (spec.md §4.2).
const (
	NodeResearch     = "research"
	NodeGenerator    = "generator"
	NodeMockGenerator = "mock_generator"
	NodeTester       = "tester"
	NodeTestReviewer = "test_reviewer"
	NodeReviewer     = "reviewer"
	NodePublisher    = "publisher"
	NodeFailed       = "failed"
	END              = "END"
)

// RouteAfterTestReview implements the routing table in spec.md §4.3.
func RouteAfterTestReview(s State) string {
	if len(s.Errors) > 0 {
		return NodeFailed
	}

	switch s.TestReviewDecision {
	case TestReviewInvalid:
		if s.TestRetries >= s.MaxTestRetries {
			return NodeFailed
		}
		return NodeTester
	case TestReviewValidFail:
		if s.GenFixRetries >= s.MaxGenFixRetries {
			return NodeFailed
		}
		return NodeGenerator
	case TestReviewValidPass:
		return NodeReviewer
	default:
		return NodeFailed
	}
}

// RouteIfNoErrors builds a router for the plain sequential edges
// (research→generator, generator→mock_generator, tester→test_reviewer,
// publisher→END) that §4.4's general node contract implies: any node
// that appended to Errors routes to failed instead of its nominal
// successor. MockGenerator is excluded from this wrapper at graph-build
// time (see pkg/nodes): its edge is unconditional, so a MockGenerator
// failure still reaches the Tester. The error entry it recorded stays
// in Errors, so the Tester's own edge then routes to failed.
func RouteIfNoErrors(next string) func(State) string {
	return func(s State) string {
		if len(s.Errors) > 0 {
			return NodeFailed
		}
		return next
	}
}

// RouteAfterReview implements the routing table in spec.md §4.3,
// including the intentional ≥ vs > asymmetry on reject_context: the
// reviewer node pre-increments research_retries as part of the
// re-research reset, so the router permits the just-incremented value
// to equal the max and still proceed — only a further overshoot is
// fatal.
func RouteAfterReview(s State) string {
	if len(s.Errors) > 0 {
		return NodeFailed
	}

	switch s.ReviewDecision {
	case ReviewApprove:
		return NodePublisher
	case ReviewRejectCode:
		if s.ReviewRetries >= s.MaxReviewRetries {
			return NodeFailed
		}
		return NodeGenerator
	case ReviewRejectContext:
		if s.ResearchRetries > s.MaxResearchRetries {
			return NodeFailed
		}
		return NodeResearch
	default:
		return NodeFailed
	}
}
