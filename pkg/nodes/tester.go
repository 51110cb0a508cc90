package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/connector-forge/pkg/graph"
	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

type testerOutputPayload struct {
	Status      string            `json:"status"`
	Passed      bool              `json:"passed"`
	TestsPassed int               `json:"tests_passed"`
	TestsFailed int               `json:"tests_failed"`
	TestsTotal  int               `json:"tests_total"`
	Errors      []string          `json:"errors"`
	Details     string            `json:"details"`
	Files       map[string]string `json:"files"`
}

// testerMode computes which of the three sub-modes (spec.md §4.4.4)
// applies, mirroring generatorMode's state-pattern dispatch.
func testerMode(s pipeline.State) string {
	hasTestIssue := false
	for _, f := range s.TestReviewFeedback {
		if strings.HasPrefix(f, "TEST_ISSUE:") {
			hasTestIssue = true
			break
		}
	}
	switch {
	case s.TestRetries > 0 && hasTestIssue:
		return "fix"
	case s.GenFixRetries > 0:
		return "rerun"
	default:
		return "generate"
	}
}

// NewTesterNode implements the Tester phase (spec.md §4.4.4).
func NewTesterNode(deps *Deps) graph.NodeFunc {
	return func(ctx context.Context, s pipeline.State) (pipeline.Update, error) {
		phase := pipeline.PhaseTesting
		mode := testerMode(s)

		input := map[string]any{
			"mode":                 mode,
			"test_review_feedback": s.TestReviewFeedback,
		}
		if s.GeneratedCode != nil {
			input["generated_files"] = s.GeneratedCode.Files
		}
		if s.TestCode != nil {
			input["existing_test_files"] = s.TestCode.Files
		}

		result, err := deps.Tester.Invoke(ctx, s.ConnectorDir, input)
		if err != nil || !result.Success {
			// A genuine agent-call failure (the session itself could
			// not run) is a global error — distinct from the
			// infrastructure-failure case below, which the
			// TestReviewer triages instead (spec.md §4.4.4).
			msg := failureMessage(err, result)
			return pipeline.Update{
				CurrentPhase: &phase,
				Errors:       []string{fmt.Sprintf("tester: %s", msg)},
				Logs:         []string{"tester failed: " + msg},
			}, nil
		}

		var payload testerOutputPayload
		if err := decodeOutput(result.Output, &payload); err != nil {
			return pipeline.Update{
				CurrentPhase: &phase,
				Errors:       []string{fmt.Sprintf("tester: %s", err)},
				Logs:         []string{"tester produced unparseable output"},
			}, nil
		}

		coverage := 0.0
		if payload.TestsTotal > 0 {
			coverage = float64(payload.TestsPassed) / float64(payload.TestsTotal)
		}

		update := pipeline.Update{
			CurrentPhase: &phase,
			TestResults: pipeline.TestResultsPtr(&pipeline.TestResults{
				Status:        payload.Status,
				Passed:        payload.Passed,
				TestsPassed:   payload.TestsPassed,
				TestsFailed:   payload.TestsFailed,
				TestsTotal:    payload.TestsTotal,
				Errors:        payload.Errors,
				Details:       payload.Details,
				CoverageRatio: coverage,
			}),
			Logs: []string{fmt.Sprintf("tester completed (mode=%s, status=%s)", mode, payload.Status)},
		}
		if mode != "rerun" && len(payload.Files) > 0 {
			update.TestCode = pipeline.TestCodePtr(&pipeline.TestCode{Files: payload.Files, Action: mode})
		}
		return update, nil
	}
}
