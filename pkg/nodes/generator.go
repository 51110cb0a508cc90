package nodes

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/connector-forge/pkg/graph"
	"github.com/codeready-toolchain/connector-forge/pkg/pipeline"
)

type generatorOutputPayload struct {
	Files  map[string]string `json:"files"`
	Action string            `json:"action"`
	Reason string            `json:"reason"`
}

// generatorMode computes which of the three sub-modes (spec.md
// §4.4.2) applies, from state pattern rather than an explicit
// argument (spec.md §9, "Agent sub-modes by state pattern").
func generatorMode(s pipeline.State) string {
	switch {
	case len(s.TestReviewFeedback) > 0:
		return "fix"
	case len(s.ReviewFeedback) > 0:
		return "improve"
	default:
		return "generate"
	}
}

// NewGeneratorNode implements the Generator phase (spec.md §4.4.2).
func NewGeneratorNode(deps *Deps) graph.NodeFunc {
	return func(ctx context.Context, s pipeline.State) (pipeline.Update, error) {
		phase := pipeline.PhaseGenerating
		mode := generatorMode(s)

		input := map[string]any{
			"mode":                 mode,
			"connector_name":       s.ConnectorName,
			"connector_type":       s.ConnectorType,
			"test_review_feedback": s.TestReviewFeedback,
			"review_feedback":      s.ReviewFeedback,
		}
		if s.ResearchOutput != nil {
			input["research_document"] = s.ResearchOutput.FullDocument
		}

		result, err := deps.Generator.Invoke(ctx, s.ConnectorDir, input)
		if err != nil || !result.Success {
			msg := failureMessage(err, result)
			return pipeline.Update{
				CurrentPhase: &phase,
				Errors:       []string{fmt.Sprintf("generator: %s", msg)},
				Logs:         []string{"generator failed: " + msg},
			}, nil
		}

		var payload generatorOutputPayload
		if err := decodeOutput(result.Output, &payload); err != nil {
			return pipeline.Update{
				CurrentPhase: &phase,
				Errors:       []string{fmt.Sprintf("generator: %s", err)},
				Logs:         []string{"generator produced unparseable output"},
			}, nil
		}

		code := &pipeline.GeneratedCode{
			Files:  payload.Files,
			Action: payload.Action,
			Reason: payload.Reason,
		}

		// Cleared by explicit overwrite after consumption — the one
		// case where an empty list legitimately clears a feedback
		// field (spec.md §3, §9).
		emptyFeedback := []string{}

		return pipeline.Update{
			CurrentPhase:       &phase,
			GeneratedCode:      pipeline.GeneratedCodePtr(code),
			TestReviewFeedback: pipeline.StrSlicePtr(emptyFeedback),
			ReviewFeedback:     pipeline.StrSlicePtr(emptyFeedback),
			Logs:               []string{fmt.Sprintf("generator completed (mode=%s)", mode)},
		}, nil
	}
}
