package nodes

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/connector-forge/pkg/graph"
	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

type testReviewerOutputPayload struct {
	Decision string   `json:"decision"` // "invalid" | "valid_fail"
	Feedback []string `json:"feedback"`
}

// NewTestReviewerNode implements the TestReviewer phase (spec.md
// §4.4.5).
func NewTestReviewerNode(deps *Deps) graph.NodeFunc {
	return func(ctx context.Context, s pipeline.State) (pipeline.Update, error) {
		phase := pipeline.PhaseTestReviewing

		// Fast path: tests passed outright, no adapter call needed, no
		// counter increment, no feedback.
		if s.TestResults != nil && s.TestResults.Passed {
			decision := pipeline.TestReviewValidPass
			empty := []string{}
			return pipeline.Update{
				CurrentPhase:       &phase,
				TestReviewDecision: &decision,
				TestReviewFeedback: pipeline.StrSlicePtr(empty),
				Logs:               []string{"test_reviewer: tests passed, no triage needed"},
			}, nil
		}

		input := map[string]any{}
		if s.TestResults != nil {
			input["test_results"] = s.TestResults
		}
		if s.GeneratedCode != nil {
			input["generated_files"] = s.GeneratedCode.Files
		}
		if s.TestCode != nil {
			input["test_files"] = s.TestCode.Files
		}

		result, err := deps.TestReviewer.Invoke(ctx, s.ConnectorDir, input)
		if err != nil || !result.Success {
			// On adapter exception, default to VALID_FAIL: prefer
			// fixing code over fixing tests when signal is unclear
			// (spec.md §4.4.5).
			decision := pipeline.TestReviewValidFail
			nextGenFix := s.GenFixRetries + 1
			msg := failureMessage(err, result)
			return pipeline.Update{
				CurrentPhase:       &phase,
				TestReviewDecision: &decision,
				GenFixRetries:      &nextGenFix,
				TestReviewFeedback: pipeline.StrSlicePtr([]string{fmt.Sprintf("CODE_BUG: test_reviewer adapter failed (%s), defaulting to valid_fail", msg)}),
				Logs:               []string{"test_reviewer adapter failed, defaulting to valid_fail: " + msg},
			}, nil
		}

		var payload testReviewerOutputPayload
		if err := decodeOutput(result.Output, &payload); err != nil {
			decision := pipeline.TestReviewValidFail
			nextGenFix := s.GenFixRetries + 1
			return pipeline.Update{
				CurrentPhase:       &phase,
				TestReviewDecision: &decision,
				GenFixRetries:      &nextGenFix,
				TestReviewFeedback: pipeline.StrSlicePtr([]string{fmt.Sprintf("CODE_BUG: unparseable test_reviewer output (%s), defaulting to valid_fail", err)}),
				Logs:               []string{"test_reviewer produced unparseable output, defaulting to valid_fail"},
			}, nil
		}

		update := pipeline.Update{
			CurrentPhase:       &phase,
			TestReviewDecision: &payload.Decision,
			TestReviewFeedback: pipeline.StrSlicePtr(payload.Feedback),
			Logs:               []string{fmt.Sprintf("test_reviewer decided %s", payload.Decision)},
		}

		switch payload.Decision {
		case pipeline.TestReviewInvalid:
			next := s.TestRetries + 1
			update.TestRetries = &next
		case pipeline.TestReviewValidFail:
			next := s.GenFixRetries + 1
			update.GenFixRetries = &next
		}

		return update, nil
	}
}
