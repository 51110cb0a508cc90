package nodes

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/connector-forge/pkg/graph"
	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

type reviewerOutputPayload struct {
	// OverrideDecision lets the agent's semantic code-quality read
	// override the coverage-driven default (spec.md §4.4.6: "Decision
	// is coverage-driven but may be overridden by semantic code
	// quality"). Empty means "accept the coverage-driven default".
	OverrideDecision string   `json:"override_decision,omitempty"`
	DegradedStreams  []string `json:"degraded_streams,omitempty"`
	Feedback         []string `json:"feedback,omitempty"`
	ContextGap       string   `json:"context_gap,omitempty"`
}

// coverageDecision implements the threshold table in spec.md §4.4.6.
func coverageDecision(coverage float64) string {
	switch {
	case coverage >= pipeline.CoverageFullPass:
		return pipeline.ReviewApprove
	case coverage >= pipeline.CoveragePartialMin:
		return pipeline.ReviewApprove
	case coverage >= pipeline.CoverageRejectCodeMin:
		return pipeline.ReviewRejectCode
	default:
		return pipeline.ReviewRejectContext
	}
}

// NewReviewerNode implements the Reviewer phase (spec.md §4.4.6),
// including the re-research reset performed when the decision is
// reject_context.
func NewReviewerNode(deps *Deps) graph.NodeFunc {
	return func(ctx context.Context, s pipeline.State) (pipeline.Update, error) {
		phase := pipeline.PhaseReviewing

		coverage := 0.0
		if s.TestResults != nil {
			coverage = s.TestResults.CoverageRatio
		}
		defaultDecision := coverageDecision(coverage)

		input := map[string]any{
			"coverage_ratio":   coverage,
			"default_decision": defaultDecision,
		}
		if s.GeneratedCode != nil {
			input["generated_files"] = s.GeneratedCode.Files
		}
		if s.TestResults != nil {
			input["test_results"] = s.TestResults
		}

		result, err := deps.Reviewer.Invoke(ctx, s.ConnectorDir, input)
		if err != nil || !result.Success {
			msg := failureMessage(err, result)
			return pipeline.Update{
				CurrentPhase: &phase,
				Errors:       []string{fmt.Sprintf("reviewer: %s", msg)},
				Logs:         []string{"reviewer failed: " + msg},
			}, nil
		}

		var payload reviewerOutputPayload
		// Tolerate an empty/unparseable payload as "accept the default"
		// rather than a hard failure, since the coverage-driven
		// decision alone is always sufficient to proceed.
		_ = decodeOutput(result.Output, &payload)

		decision := defaultDecision
		if payload.OverrideDecision != "" {
			decision = payload.OverrideDecision
		}

		switch decision {
		case pipeline.ReviewApprove:
			degraded := coverage < pipeline.CoverageFullPass
			return pipeline.Update{
				CurrentPhase:    &phase,
				ReviewDecision:  pipeline.StrPtr(pipeline.ReviewApprove),
				DegradedMode:    pipeline.BoolPtr(degraded),
				DegradedStreams: pipeline.StrSlicePtr(payload.DegradedStreams),
				Logs:            []string{fmt.Sprintf("reviewer approved (coverage=%.2f, degraded=%v)", coverage, degraded)},
			}, nil

		case pipeline.ReviewRejectCode:
			next := s.ReviewRetries + 1
			return pipeline.Update{
				CurrentPhase:   &phase,
				ReviewDecision: pipeline.StrPtr(pipeline.ReviewRejectCode),
				ReviewRetries:  &next,
				ReviewFeedback: pipeline.StrSlicePtr(payload.Feedback),
				Logs:           []string{fmt.Sprintf("reviewer rejected code (coverage=%.2f)", coverage)},
			}, nil

		case pipeline.ReviewRejectContext:
			return reResearchReset(s, phase, payload), nil

		default:
			return pipeline.Update{
				CurrentPhase: &phase,
				Errors:       []string{fmt.Sprintf("reviewer: unknown decision %q", decision)},
				Logs:         []string{"reviewer produced unknown decision"},
			}, nil
		}
	}
}

// reResearchReset implements the scrub spec.md §4.4.6 names: clear
// artifacts tainted by the wrong research, accumulate the context gap,
// pre-increment research_retries, and — crucially — preserve
// review_decision so RouteAfterReview can still read it on this same
// transition (it is cleared only at the top of the next Research node
// run, spec.md §3 invariant 5).
func reResearchReset(s pipeline.State, phase string, payload reviewerOutputPayload) pipeline.Update {
	gap := payload.ContextGap
	if gap == "" {
		gap = "reviewer: coverage below context-sufficiency threshold"
	}
	nextResearchRetries := s.ResearchRetries + 1

	return pipeline.Update{
		CurrentPhase:       &phase,
		ReviewDecision:     pipeline.StrPtr(pipeline.ReviewRejectContext),
		GeneratedCode:      pipeline.GeneratedCodePtr(nil),
		TestCode:           pipeline.TestCodePtr(nil),
		TestResults:        pipeline.TestResultsPtr(nil),
		TestReviewDecision: pipeline.StrPtr(""),
		TestReviewFeedback: pipeline.StrSlicePtr([]string{}),
		ReviewFeedback:     pipeline.StrSlicePtr([]string{}),
		ContextGaps:        []string{gap},
		ResearchRetries:    &nextResearchRetries,
		Logs:               []string{"reviewer: re-research reset, coverage too low to understand the API contract"},
	}
}
